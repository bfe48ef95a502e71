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

const (
	DefaultMaxRetries        = 5
	DefaultReconnectInterval = 5 * time.Second
)

// ErrReconnectExhausted is returned when the connection could not be
// established within the retry bound.
var ErrReconnectExhausted = errors.New("max reconnection attempts reached")

// State is a step of the supervisor's state machine.
type State int

const (
	StateDisconnected State = iota
	StateConnected
	StateForwarding
	StateStopped
	StateFatal
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnected:
		return "connected"
	case StateForwarding:
		return "forwarding"
	case StateStopped:
		return "stopped"
	case StateFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// ResolvePolicy decides whether failing to resolve the conversations
// consumes the connection retry budget.
type ResolvePolicy string

const (
	// ResolveShared counts resolution failures against MaxRetries.
	ResolveShared ResolvePolicy = "shared"
	// ResolveUnbounded retries resolution until stopped.
	ResolveUnbounded ResolvePolicy = "unbounded"
)

// ParseResolvePolicy maps a policy name to a ResolvePolicy. The empty string
// selects ResolveShared.
func ParseResolvePolicy(s string) (ResolvePolicy, error) {
	switch ResolvePolicy(s) {
	case "", ResolveShared:
		return ResolveShared, nil
	case ResolveUnbounded:
		return ResolveUnbounded, nil
	}
	return "", errors.Errorf("unknown resolve retry policy %q", s)
}

// SupervisorOptions configures a Supervisor.
type SupervisorOptions struct {
	Client   platform.Client
	SourceID int64
	DestID   int64
	Filter   FilterConfig

	MaxRetries        int
	ReconnectInterval time.Duration
	Pacing            time.Duration
	ResolveRetry      ResolvePolicy

	Journal Journal
	Report  *bus.Reporter
	// OnState, when set, observes every state transition.
	OnState func(State)
}

// Supervisor connects, resolves both conversations and runs the pipeline,
// reconnecting when the connection drops.
type Supervisor struct {
	opts  SupervisorOptions
	state State
	sleep func(ctx context.Context, d time.Duration) error
}

// NewSupervisor creates a Supervisor with defaults applied.
func NewSupervisor(opts SupervisorOptions) *Supervisor {
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = DefaultMaxRetries
	}
	if opts.ReconnectInterval <= 0 {
		opts.ReconnectInterval = DefaultReconnectInterval
	}
	if opts.ResolveRetry == "" {
		opts.ResolveRetry = ResolveShared
	}
	return &Supervisor{opts: opts, sleep: sleepContext}
}

// State returns the current state.
func (s *Supervisor) State() State {
	return s.state
}

// Run drives the state machine to Stopped or Fatal and always disconnects
// the client before returning. It returns the counters of the last pipeline
// run and nil on success or external stop.
func (s *Supervisor) Run(ctx context.Context) (RunState, error) {
	log := logging.From(ctx).With(zap.String("run", s.opts.Report.RunID()))
	ioCtx := context.WithoutCancel(ctx)

	defer func() {
		if err := s.opts.Client.Disconnect(); err != nil {
			log.Warn("Disconnect failed", zap.Error(err))
		}
	}()

	var (
		last     RunState
		retries  int
		src, dst platform.Entity
	)

	s.setState(StateDisconnected)
	for {
		if ctx.Err() != nil {
			return last, s.stop()
		}

		switch s.state {
		case StateDisconnected:
			err := s.connect(ioCtx)
			if err == nil {
				retries = 0
				s.setState(StateConnected)
				continue
			}
			if errors.Is(err, platform.ErrUnauthorized) {
				return last, s.fatal(bus.OutcomeFatal, "Please login first!", err)
			}

			log.Warn("Connect failed", zap.Int("attempt", retries+1), zap.Error(err))
			s.opts.Report.Error("Connection error: %v", err)
			if exhausted := s.backoff(ctx, &retries); exhausted {
				return last, s.fatal(bus.OutcomeReconnectExhausted,
					"Max reconnection attempts reached. Please restart the application.",
					ErrReconnectExhausted)
			}

		case StateConnected:
			var err error
			src, dst, err = s.resolve(ioCtx)
			if err == nil {
				s.setState(StateForwarding)
				continue
			}
			if errors.Is(err, platform.ErrDisconnected) {
				s.dropConnection(log)
				continue
			}

			log.Warn("Resolve failed", zap.Error(err))
			s.opts.Report.Error("Error validating chat IDs: %v", err)
			if s.opts.ResolveRetry == ResolveUnbounded {
				_ = s.sleep(ctx, s.opts.ReconnectInterval)
				continue
			}
			if exhausted := s.backoff(ctx, &retries); exhausted {
				return last, s.fatal(bus.OutcomeFatal,
					"Could not resolve the source or destination chat.",
					errors.Wrap(err, "resolve chats"))
			}

		case StateForwarding:
			p := NewPipeline(PipelineOptions{
				Client:  s.opts.Client,
				Filter:  s.opts.Filter,
				Pacing:  s.opts.Pacing,
				Journal: s.opts.Journal,
				Report:  s.opts.Report,
			})
			p.sleep = s.sleep

			state, err := p.Run(ctx, src, dst)
			last = state
			switch {
			case err == nil && ctx.Err() != nil:
				return last, s.stop()
			case err == nil:
				s.setState(StateStopped)
				s.opts.Report.Terminal(bus.OutcomeSuccess,
					fmt.Sprintf("Copied %d of %d messages", last.Processed, last.Matched))
				return last, nil
			case errors.Is(err, platform.ErrDisconnected):
				log.Warn("Connection lost during copy", zap.Int("processed", state.Processed))
				s.dropConnection(log)
			default:
				s.opts.Report.Error("Error copying messages: %v", err)
				return last, s.fatal(bus.OutcomeFatal, err.Error(), err)
			}
		}
	}
}

// dropConnection tears down a connection that stopped answering so the next
// connect dials a fresh one.
func (s *Supervisor) dropConnection(log *zap.Logger) {
	if err := s.opts.Client.Disconnect(); err != nil {
		log.Warn("Disconnect failed", zap.Error(err))
	}
	s.opts.Report.Info("Connection lost. Attempting to reconnect...")
	s.setState(StateDisconnected)
}

func (s *Supervisor) connect(ctx context.Context) error {
	if err := s.opts.Client.Connect(ctx); err != nil {
		return err
	}
	ok, err := s.opts.Client.IsAuthorized(ctx)
	if err != nil {
		return errors.Wrap(err, "check authorization")
	}
	if !ok {
		return platform.ErrUnauthorized
	}
	return nil
}

func (s *Supervisor) resolve(ctx context.Context) (src, dst platform.Entity, err error) {
	src, err = s.opts.Client.GetEntity(ctx, s.opts.SourceID)
	if err != nil {
		return src, dst, errors.Wrapf(err, "source %d", s.opts.SourceID)
	}
	dst, err = s.opts.Client.GetEntity(ctx, s.opts.DestID)
	if err != nil {
		return src, dst, errors.Wrapf(err, "destination %d", s.opts.DestID)
	}

	s.opts.Report.Info("Connected to source: %s", src.Name())
	s.opts.Report.Info("Connected to destination: %s", dst.Name())
	return src, dst, nil
}

// backoff consumes one retry and waits the reconnect interval. It reports
// true once the retry budget is spent.
func (s *Supervisor) backoff(ctx context.Context, retries *int) bool {
	*retries++
	if *retries >= s.opts.MaxRetries {
		return true
	}
	s.opts.Report.Info("Reconnecting... Attempt %d/%d", *retries, s.opts.MaxRetries)
	_ = s.sleep(ctx, s.opts.ReconnectInterval)
	return false
}

func (s *Supervisor) stop() error {
	s.setState(StateStopped)
	s.opts.Report.Terminal(bus.OutcomeStopped, "Copy stopped")
	return nil
}

func (s *Supervisor) fatal(outcome bus.Outcome, text string, err error) error {
	s.setState(StateFatal)
	s.opts.Report.Terminal(outcome, text)
	return err
}

func (s *Supervisor) setState(st State) {
	s.state = st
	if s.opts.OnState != nil {
		s.opts.OnState(st)
	}
}
