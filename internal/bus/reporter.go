package bus

import (
	"fmt"
	"sync"
	"time"
)

// Reporter stamps events of a single run and hands them to a Publisher.
type Reporter struct {
	pub   Publisher
	runID string
	now   func() time.Time
}

// NewReporter creates a Reporter for the given run.
func NewReporter(pub Publisher, runID string) *Reporter {
	return &Reporter{pub: pub, runID: runID, now: time.Now}
}

// RunID returns the run identifier stamped on every event.
func (r *Reporter) RunID() string {
	if r == nil {
		return ""
	}
	return r.runID
}

// Info emits an informational log event.
func (r *Reporter) Info(format string, args ...any) {
	r.emit(Event{Kind: KindLog, Level: LevelInfo, Text: sprintf(format, args)})
}

// Error emits an error log event.
func (r *Reporter) Error(format string, args ...any) {
	r.emit(Event{Kind: KindLog, Level: LevelError, Text: sprintf(format, args)})
}

// Progress emits a progress event with a percentage in [0, 100].
func (r *Reporter) Progress(percent int) {
	r.emit(Event{Kind: KindProgress, Percent: percent})
}

// Terminal emits the final event of the run.
func (r *Reporter) Terminal(outcome Outcome, text string) {
	ev := Event{Kind: KindTerminal, Outcome: outcome, Text: text, Level: LevelInfo}
	if outcome == OutcomeFatal || outcome == OutcomeReconnectExhausted {
		ev.Level = LevelError
	}
	r.emit(ev)
}

func (r *Reporter) emit(ev Event) {
	if r == nil || r.pub == nil {
		return
	}
	ev.RunID = r.runID
	ev.Time = r.now()
	r.pub.Publish(ev)
}

func sprintf(format string, args []any) string {
	if len(args) == 0 {
		return format
	}
	return fmt.Sprintf(format, args...)
}

// Recorder is a Publisher that keeps every event in memory.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

// Publish implements Publisher.
func (r *Recorder) Publish(ev Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

// Events returns a copy of the recorded events.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// Filter returns the recorded events of the given kind.
func (r *Recorder) Filter(kind Kind) []Event {
	var out []Event
	for _, ev := range r.Events() {
		if ev.Kind == kind {
			out = append(out, ev)
		}
	}
	return out
}

// Texts returns the text of every recorded log event at the given level.
func (r *Recorder) Texts(level Level) []string {
	var out []string
	for _, ev := range r.Filter(KindLog) {
		if ev.Level == level {
			out = append(out, ev.Text)
		}
	}
	return out
}

// Last returns the most recent event, or false when nothing was recorded.
func (r *Recorder) Last() (Event, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.events) == 0 {
		return Event{}, false
	}
	return r.events[len(r.events)-1], true
}
