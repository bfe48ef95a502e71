package tui

import (
	"fmt"
	"io"
	"sync"

	"github.com/fatih/color"

	"github.com/hkuds/tgcopy/internal/bus"
)

// Plain renders run events as [INFO]/[ERROR] lines for terminals without
// full-screen support and for redirected output.
type Plain struct {
	mu  sync.Mutex
	w   io.Writer
	out chan bus.Event

	info  *color.Color
	err   *color.Color
	ok    *color.Color
	quiet bool // suppress progress lines
}

// NewPlain creates a plain renderer writing to w. Progress events are
// printed unless quiet is set.
func NewPlain(w io.Writer, quiet bool) *Plain {
	return &Plain{
		w:     w,
		out:   make(chan bus.Event, 1),
		info:  color.New(color.FgCyan),
		err:   color.New(color.FgRed, color.Bold),
		ok:    color.New(color.FgGreen, color.Bold),
		quiet: quiet,
	}
}

// Handle renders one event. It is meant to be subscribed to the run's event
// bus.
func (p *Plain) Handle(ev bus.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch ev.Kind {
	case bus.KindLog:
		p.line(ev.IsError(), ev.Text)
	case bus.KindProgress:
		if !p.quiet {
			p.line(false, fmt.Sprintf("Progress: %d%%", ev.Percent))
		}
	case bus.KindTerminal:
		switch ev.Outcome {
		case bus.OutcomeSuccess:
			_, _ = p.ok.Fprint(p.w, "[DONE]")
			_, _ = fmt.Fprintln(p.w, " "+ev.Text)
		default:
			p.line(ev.IsError(), ev.Text)
		}
		select {
		case p.out <- ev:
		default:
		}
	}
}

func (p *Plain) line(isErr bool, text string) {
	if isErr {
		_, _ = p.err.Fprint(p.w, "[ERROR]")
	} else {
		_, _ = p.info.Fprint(p.w, "[INFO]")
	}
	_, _ = fmt.Fprintln(p.w, " "+text)
}

// Done delivers the terminal event once it has been rendered.
func (p *Plain) Done() <-chan bus.Event {
	return p.out
}
