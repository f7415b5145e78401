package pathfinding

// openEntry is a frontier cell. seq records discovery order and breaks ties
// between entries of equal estimated cost.
type openEntry struct {
	idx int
	f   PathCost
	seq uint64
}

func (e openEntry) less(o openEntry) bool {
	if c := e.f.Compare(o.f); c != 0 {
		return c < 0
	}
	return e.seq < o.seq
}

// openHeap is a binary min-heap of frontier entries.
type openHeap []openEntry

func (h *openHeap) push(e openEntry) {
	*h = append(*h, e)
	i := len(*h) - 1
	for i > 0 {
		parent := (i - 1) / 2
		if !(*h)[i].less((*h)[parent]) {
			break
		}
		(*h)[parent], (*h)[i] = (*h)[i], (*h)[parent]
		i = parent
	}
}

func (h *openHeap) pop() openEntry {
	old := *h
	n := len(old)
	e := old[0]
	old[0] = old[n-1]
	*h = old[:n-1]

	i := 0
	for {
		left := 2*i + 1
		if left >= len(*h) {
			break
		}
		smallest := left
		if right := left + 1; right < len(*h) && (*h)[right].less((*h)[left]) {
			smallest = right
		}
		if !(*h)[smallest].less((*h)[i]) {
			break
		}
		(*h)[i], (*h)[smallest] = (*h)[smallest], (*h)[i]
		i = smallest
	}
	return e
}
