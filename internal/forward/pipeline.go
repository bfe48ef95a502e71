package forward

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"go.uber.org/zap"

	"github.com/hkuds/tgcopy/internal/bus"
	"github.com/hkuds/tgcopy/internal/logging"
	"github.com/hkuds/tgcopy/internal/platform"
)

// DefaultPacing is the delay between two copied messages.
const DefaultPacing = 500 * time.Millisecond

// ErrEnumerate is returned when the source history cannot be read.
var ErrEnumerate = errors.New("read source history")

// Journal remembers which source messages were already copied.
type Journal interface {
	IsRecorded(msgID int) bool
	Record(msgID int) error
}

// RunState holds the counters of one pipeline run.
type RunState struct {
	RunID     string
	Processed int
	Matched   int
	Failed    int
	Skipped   int
}

// Percent returns floor(Processed*100/Matched), or zero with nothing matched.
func (s RunState) Percent() int {
	if s.Matched == 0 {
		return 0
	}
	return s.Processed * 100 / s.Matched
}

// PipelineOptions configures a Pipeline.
type PipelineOptions struct {
	Client platform.Client
	Filter FilterConfig
	// Pacing is waited after every retained message. Zero means
	// DefaultPacing; a negative value disables pacing.
	Pacing time.Duration
	// Journal is optional.
	Journal Journal
	Report  *bus.Reporter
}

// Pipeline copies the matching history of a source conversation to a
// destination conversation in chronological order.
type Pipeline struct {
	opts  PipelineOptions
	sleep func(ctx context.Context, d time.Duration) error
}

// NewPipeline creates a Pipeline.
func NewPipeline(opts PipelineOptions) *Pipeline {
	if opts.Pacing == 0 {
		opts.Pacing = DefaultPacing
	}
	return &Pipeline{opts: opts, sleep: sleepContext}
}

// Run enumerates src, keeps the messages accepted by the filter and sends
// them to dst oldest first. Per-message send failures are reported and
// skipped. A lost connection aborts the run with platform.ErrDisconnected;
// an unreadable source aborts it with ErrEnumerate. Cancelling ctx stops the
// run at the next message boundary without an error.
func (p *Pipeline) Run(ctx context.Context, src, dst platform.Entity) (RunState, error) {
	state := RunState{RunID: p.opts.Report.RunID()}
	log := logging.From(ctx).With(zap.String("run", state.RunID))

	p.opts.Report.Info("Starting to copy messages...")

	retained, skipped, err := p.enumerate(ctx, src)
	state.Skipped = skipped
	if err != nil {
		return state, err
	}

	state.Matched = len(retained)
	log.Info("Enumeration done",
		zap.Int64("source", src.ID),
		zap.Int("matched", state.Matched),
		zap.Int("skipped", state.Skipped))

	p.opts.Report.Info("Found %d messages to copy...", state.Matched)
	if state.Matched == 0 {
		p.opts.Report.Info("No messages to copy")
		p.opts.Report.Info("Finished copying messages!")
		return state, nil
	}

	// Enumeration is newest first; walk backwards to send oldest first.
	for i := len(retained) - 1; i >= 0; i-- {
		if ctx.Err() != nil {
			log.Info("Copy stopped", zap.Int("processed", state.Processed))
			break
		}

		item := retained[i]
		if err := p.send(ctx, dst, item.Message); err != nil {
			if errors.Is(err, platform.ErrDisconnected) {
				return state, err
			}
			state.Failed++
			log.Warn("Send failed", zap.Int("msg", item.Message.ID), zap.Error(err))
			p.opts.Report.Error("Error copying message: %v", err)
		} else {
			state.Processed++
			p.opts.Report.Progress(state.Percent())
			p.opts.Report.Info("Copied %s message (%d/%d)", item.Type, state.Processed, state.Matched)
			p.record(log, item.Message.ID)
		}

		if p.opts.Pacing > 0 {
			_ = p.sleep(ctx, p.opts.Pacing)
		}
	}

	p.opts.Report.Info("Finished copying messages!")
	return state, nil
}

func (p *Pipeline) enumerate(ctx context.Context, src platform.Entity) ([]Classified, int, error) {
	var (
		retained []Classified
		skipped  int
	)

	ioCtx := context.WithoutCancel(ctx)
	it := p.opts.Client.IterMessages(ioCtx, src)
	for {
		if ctx.Err() != nil {
			return retained, skipped, nil
		}
		if !it.Next(ioCtx) {
			break
		}

		msg := it.Value()
		ok, typ := Classify(msg, p.opts.Filter)
		if !ok {
			continue
		}
		if p.opts.Journal != nil && p.opts.Journal.IsRecorded(msg.ID) {
			skipped++
			continue
		}
		retained = append(retained, Classified{Message: msg, Type: typ})
	}

	if err := it.Err(); err != nil {
		if errors.Is(err, platform.ErrDisconnected) {
			return retained, skipped, err
		}
		return retained, skipped, fmt.Errorf("%w: %w", ErrEnumerate, err)
	}
	return retained, skipped, nil
}

// send copies one message: its text first, then its attachment. The first
// failure ends the message.
func (p *Pipeline) send(ctx context.Context, dst platform.Entity, msg platform.Message) error {
	ioCtx := context.WithoutCancel(ctx)
	if msg.HasText() {
		if err := p.opts.Client.SendMessage(ioCtx, dst, msg.Text); err != nil {
			return errors.Wrap(err, "send text")
		}
	}
	if msg.HasMedia() {
		if err := p.opts.Client.SendFile(ioCtx, dst, msg.Media); err != nil {
			return errors.Wrap(err, "send media")
		}
	}
	return nil
}

func (p *Pipeline) record(log *zap.Logger, msgID int) {
	if p.opts.Journal == nil {
		return
	}
	if err := p.opts.Journal.Record(msgID); err != nil {
		log.Error("Journal write failed", zap.Int("msg", msgID), zap.Error(err))
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
