package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/hkuds/tgcopy/internal/bus"
	"github.com/hkuds/tgcopy/internal/config"
	"github.com/hkuds/tgcopy/internal/forward"
	"github.com/hkuds/tgcopy/internal/journal"
	"github.com/hkuds/tgcopy/internal/logging"
	"github.com/hkuds/tgcopy/internal/notify"
	"github.com/hkuds/tgcopy/internal/platform"
	"github.com/hkuds/tgcopy/internal/stream"
	"github.com/hkuds/tgcopy/internal/tui"
)

var (
	copySource       int64
	copyDest         int64
	copyText         bool
	copyMedia        bool
	copyDocuments    bool
	copyPlain        bool
	copyQuiet        bool
	copyStream       bool
	copyNotify       bool
	copyJournal      bool
	copyResetJournal bool
)

var copyCmd = &cobra.Command{
	Use:   "copy",
	Short: "Copy the history of one chat into another",
	Long: `Copy every matching message of the source chat into the destination chat,
oldest first. Without --source and --dest the chats and content types are
picked interactively. Press s or ctrl+c to stop a running copy.`,
	RunE: runCopyCmd,
}

func init() {
	f := copyCmd.Flags()
	f.Int64Var(&copySource, "source", 0, "source chat ID (see tgcopy chats)")
	f.Int64Var(&copyDest, "dest", 0, "destination chat ID")
	f.BoolVar(&copyText, "text", true, "copy text messages")
	f.BoolVar(&copyMedia, "media", true, "copy photos and videos")
	f.BoolVar(&copyDocuments, "documents", true, "copy documents")
	f.BoolVar(&copyPlain, "plain", false, "print [INFO]/[ERROR] lines instead of the progress screen")
	f.BoolVar(&copyQuiet, "quiet", false, "with --plain, omit progress lines")
	f.BoolVar(&copyStream, "stream", false, "broadcast run events over a websocket")
	f.BoolVar(&copyNotify, "notify", false, "send a summary through the configured bot when the run ends")
	f.BoolVar(&copyJournal, "journal", false, "skip messages already copied by an earlier run")
	f.BoolVar(&copyResetJournal, "reset-journal", false, "forget what earlier runs copied before starting")
}

// copyRun describes one copy between two chats.
type copyRun struct {
	Client     platform.Client
	Source     int64
	Dest       int64
	SourceName string
	DestName   string
	Filter     forward.FilterConfig

	Plain   bool
	Quiet   bool
	Stream  bool
	Notify  bool
	Journal bool
	Out     io.Writer
}

func runCopyCmd(cmd *cobra.Command, args []string) error {
	ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	a, ctx, err := loadApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	creds, err := a.credentials()
	if err != nil {
		return err
	}

	run := copyRun{
		Source:  copySource,
		Dest:    copyDest,
		Filter:  copyFilter(cmd, a.cfg.Copy),
		Plain:   copyPlain,
		Quiet:   copyQuiet,
		Stream:  copyStream,
		Notify:  copyNotify || a.cfg.Notify.Enabled,
		Journal: copyJournal || a.cfg.Copy.Journal,
		Out:     os.Stdout,
	}

	if run.Source == 0 || run.Dest == 0 {
		if run.Plain {
			return errors.New("--source and --dest are required with --plain")
		}
		if err := pickChats(ctx, a, creds, &run); err != nil {
			return err
		}
	}
	if run.Source == run.Dest {
		return errors.New("source and destination must differ")
	}
	if !run.Filter.Any() {
		return errors.New("select at least one content type")
	}

	if copyResetJournal {
		if err := journal.Reset(a.cfg.JournalDir(), run.Source, run.Dest); err != nil {
			return err
		}
	}

	run.Client = a.newClient(creds)
	_, err = runCopy(ctx, a.cfg, run)
	return err
}

// copyFilter starts from the configured content types and applies the flags
// given on the command line.
func copyFilter(cmd *cobra.Command, c config.CopyConfig) forward.FilterConfig {
	filter := forward.FilterConfig{
		IncludeText:      c.Text,
		IncludeMedia:     c.Media,
		IncludeDocuments: c.Documents,
	}
	flags := cmd.Flags()
	if flags.Changed("text") {
		filter.IncludeText = copyText
	}
	if flags.Changed("media") {
		filter.IncludeMedia = copyMedia
	}
	if flags.Changed("documents") {
		filter.IncludeDocuments = copyDocuments
	}
	return filter
}

// pickChats asks for the chats not given as flags and for the content types.
func pickChats(ctx context.Context, a *app, creds config.Credentials, run *copyRun) error {
	dialogs, err := a.loadDialogs(ctx, creds)
	if err != nil {
		return err
	}
	platform.SortDialogsByTitle(dialogs)

	if run.Source == 0 {
		d, err := tui.PickDialog(ctx, "Source chat", dialogs)
		if err != nil {
			return err
		}
		run.Source, run.SourceName = d.ID, d.Title
	}
	if run.Dest == 0 {
		d, err := tui.PickDialog(ctx, "Destination chat", dialogs)
		if err != nil {
			return err
		}
		run.Dest, run.DestName = d.ID, d.Title
	}

	run.Filter, err = tui.PickFilters(ctx, run.Filter)
	return err
}

// runCopy runs the supervisor on a worker goroutine and feeds its events to
// the presentation and the optional stream and notifier. It returns the
// terminal event; the error is nil when the run succeeded or was stopped.
func runCopy(ctx context.Context, cfg *config.Config, run copyRun) (bus.Event, error) {
	runID := uuid.NewString()
	log := logging.From(ctx).With(zap.String("run", runID))
	ctx = logging.With(ctx, log)

	if run.SourceName == "" {
		run.SourceName = strconv.FormatInt(run.Source, 10)
	}
	if run.DestName == "" {
		run.DestName = strconv.FormatInt(run.Dest, 10)
	}
	if run.Out == nil {
		run.Out = os.Stdout
	}

	policy, err := forward.ParseResolvePolicy(cfg.Copy.ResolveRetry)
	if err != nil {
		return bus.Event{}, err
	}

	events := bus.NewEventBus()
	report := bus.NewReporter(events, runID)

	var jr forward.Journal
	if run.Journal {
		j, err := journal.Open(cfg.JournalDir(), run.Source, run.Dest)
		if err != nil {
			return bus.Event{}, err
		}
		defer func() {
			if err := j.Close(); err != nil {
				log.Warn("Close journal", zap.Error(err))
			}
		}()
		if n := j.Len(); n > 0 {
			report.Info("Journal: %d messages already copied will be skipped", n)
		}
		jr = j
	}

	runCtx, stop := context.WithCancel(ctx)
	defer stop()

	sup := forward.NewSupervisor(forward.SupervisorOptions{
		Client:            run.Client,
		SourceID:          run.Source,
		DestID:            run.Dest,
		Filter:            run.Filter,
		MaxRetries:        cfg.Copy.MaxRetries,
		ReconnectInterval: cfg.Copy.ReconnectInterval(),
		Pacing:            cfg.Copy.Pacing(),
		ResolveRetry:      policy,
		Journal:           jr,
		Report:            report,
		OnState: func(s forward.State) {
			log.Debug("State changed", zap.Stringer("state", s))
		},
	})

	var (
		mu       sync.Mutex
		terminal bus.Event
	)
	events.Subscribe(func(ev bus.Event) {
		switch ev.Kind {
		case bus.KindLog:
			if ev.IsError() {
				log.Error(ev.Text)
			} else {
				log.Info(ev.Text)
			}
		case bus.KindTerminal:
			log.Info("Run finished", zap.String("outcome", string(ev.Outcome)), zap.String("text", ev.Text))
			mu.Lock()
			terminal = ev
			mu.Unlock()
		}
	})

	var progress *tui.Progress
	if run.Plain {
		events.Subscribe(tui.NewPlain(run.Out, run.Quiet).Handle)
	} else {
		title := fmt.Sprintf("Copying %s → %s", run.SourceName, run.DestName)
		// The screen outlives a signal so it can show the terminal event.
		progress = tui.NewProgress(context.WithoutCancel(ctx), title, stop)
		events.Subscribe(progress.Handle)
	}

	if run.Stream {
		srv := stream.New(cfg.Stream.Addr, log)
		if err := srv.Start(ctx); err != nil {
			return bus.Event{}, err
		}
		defer func() { _ = srv.Stop() }()
		events.Subscribe(srv.Handle)
		report.Info("Streaming events on ws://%s%s", srv.Addr(), stream.Path)
	}

	if run.Notify {
		n, err := notify.New(notify.Options{
			Token:  cfg.Notify.Token,
			ChatID: cfg.Notify.ChatID,
			Logger: log,
		})
		if err != nil {
			report.Error("Notifications disabled: %v", err)
		} else {
			n.Begin(run.SourceName, run.DestName)
			events.Subscribe(n.Handle)
		}
	}

	var runErr error
	g, gctx := errgroup.WithContext(runCtx)
	g.Go(func() error {
		defer events.Close()
		_, runErr = sup.Run(gctx)
		return nil
	})
	g.Go(func() error {
		events.Dispatch(context.Background())
		return nil
	})
	if progress != nil {
		g.Go(func() error {
			_, err := progress.Run()
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return bus.Event{}, err
	}

	mu.Lock()
	defer mu.Unlock()
	switch {
	case terminal.Kind != bus.KindTerminal:
		return terminal, errors.New("run ended without a result")
	case terminal.Outcome == bus.OutcomeSuccess, terminal.Outcome == bus.OutcomeStopped:
		return terminal, nil
	case runErr != nil:
		return terminal, errors.Wrap(runErr, terminal.Text)
	default:
		return terminal, errors.New(terminal.Text)
	}
}
