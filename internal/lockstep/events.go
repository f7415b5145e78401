package lockstep

import "github.com/vovakirdan/lockstep/internal/core"

// SessionEvent is sent from the verifier to spectator sessions.
type SessionEvent interface {
	sessionEvent()
}

// TickEvent reports the hashes of every replica after a tick.
type TickEvent struct {
	Tick   core.GameTime
	Hashes []uint64
}

func (TickEvent) sessionEvent() {}

// DesyncEvent is sent when a replica's hash differs from replica 0.
type DesyncEvent struct {
	Desync Desync
}

func (DesyncEvent) sessionEvent() {}

// FinishedEvent is sent once when a verification run ends.
type FinishedEvent struct {
	Report Report
	Reason EndReason
}

func (FinishedEvent) sessionEvent() {}

// EndReason describes why a verification run stopped.
type EndReason int

const (
	EndCompleted EndReason = iota // All ticks ran
	EndDesync                     // Stopped at the first desync
	EndCancelled                  // Context cancelled
	EndFailed                     // A replica returned an error
)

func (r EndReason) String() string {
	switch r {
	case EndCompleted:
		return "completed"
	case EndDesync:
		return "desync"
	case EndCancelled:
		return "cancelled"
	case EndFailed:
		return "failed"
	default:
		return "unknown"
	}
}
