package sweep

import "time"

// Status is the lifecycle state of a sweep session.
type Status string

const (
	StatusIdle      Status = "idle"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
	StatusFailed    Status = "failed"
)

// Terminal reports whether s ends a session.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled || s == StatusFailed
}

// Mode selects how the engine picks frequencies.
type Mode string

const (
	// ModeFinite measures a generated list of frequencies once.
	ModeFinite Mode = "finite"
	// ModeContinuous keeps measuring the midpoint of the widest gap until
	// cancelled or no gap can be split further.
	ModeContinuous Mode = "continuous"
)

// Point is one measurement.
type Point struct {
	Frequency float64 `json:"frequency_hz"`
	Power     float64 `json:"power_dbm"`
}

// EventKind tags an Event.
type EventKind string

const (
	EventMeasurement EventKind = "measurement"
	EventLog         EventKind = "log"
	EventTerminal    EventKind = "terminal"
)

// Event is one notification from a running session. Exactly one of Point,
// Text or Status is meaningful, depending on Kind.
type Event struct {
	Kind EventKind `json:"kind"`
	// Seq numbers the events of a session from 1.
	Seq  int       `json:"seq"`
	Time time.Time `json:"time"`

	Point  *Point `json:"point,omitempty"`
	Text   string `json:"text,omitempty"`
	Status Status `json:"status,omitempty"`
	Reason string `json:"reason,omitempty"`
}
