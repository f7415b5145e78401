package core

import "strconv"

const (
	// TicksPerSecond is the fixed simulation rate.
	TicksPerSecond = 30

	// TickIntervalMillis is the integer length of one tick. Sleep durations
	// are divided by this value, so 1000ms is 30 ticks and 33ms is 1 tick.
	TickIntervalMillis = 1000 / TicksPerSecond
)

// GameTime counts simulation ticks since the start of a game. It is the only
// clock simulation code may observe.
type GameTime uint32

// GameTimeDelta is a signed difference between two GameTime values.
type GameTimeDelta int32

// Next returns the following tick.
func (t GameTime) Next() GameTime {
	return t + 1
}

// Add offsets t by d. Negative results clamp to zero.
func (t GameTime) Add(d GameTimeDelta) GameTime {
	v := int64(t) + int64(d)
	if v < 0 {
		return 0
	}
	return GameTime(v)
}

// Sub returns t - o.
func (t GameTime) Sub(o GameTime) GameTimeDelta {
	return GameTimeDelta(int64(t) - int64(o))
}

// Millis converts a tick count to script time in milliseconds.
func (t GameTime) Millis() uint32 {
	return uint32(uint64(t) * 1000 / TicksPerSecond)
}

// Seconds returns elapsed seconds for display.
func (t GameTime) Seconds() float64 {
	return float64(t) / TicksPerSecond
}

func (t GameTime) String() string {
	return "t" + strconv.FormatUint(uint64(t), 10)
}

// TicksFromMillis converts a millisecond duration to whole ticks, truncating.
func TicksFromMillis(ms uint32) GameTimeDelta {
	return GameTimeDelta(ms / TickIntervalMillis)
}

// SceneTime counts presentation frames. It never feeds simulation state.
type SceneTime uint32

func (t SceneTime) Next() SceneTime {
	return t + 1
}
