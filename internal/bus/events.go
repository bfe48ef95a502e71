package bus

import "time"

// Kind classifies an event.
type Kind string

const (
	KindLog      Kind = "log"
	KindProgress Kind = "progress"
	KindTerminal Kind = "terminal"
)

// Level is the severity of a log event.
type Level string

const (
	LevelInfo  Level = "info"
	LevelError Level = "error"
)

// Outcome is the final state reported by a terminal event.
type Outcome string

const (
	OutcomeSuccess            Outcome = "success"
	OutcomeFatal              Outcome = "fatal"
	OutcomeReconnectExhausted Outcome = "reconnect-exhausted"
	OutcomeStopped            Outcome = "stopped"
)

// Event is one message from a copy run to whoever renders it.
type Event struct {
	RunID   string    `json:"runId"`
	Time    time.Time `json:"time"`
	Kind    Kind      `json:"kind"`
	Level   Level     `json:"level,omitempty"`
	Text    string    `json:"text,omitempty"`
	Percent int       `json:"percent,omitempty"`
	Outcome Outcome   `json:"outcome,omitempty"`
}

// IsError reports whether the event should be rendered as a failure.
func (e Event) IsError() bool {
	if e.Level == LevelError {
		return true
	}
	return e.Kind == KindTerminal && e.Outcome != OutcomeSuccess && e.Outcome != OutcomeStopped
}
