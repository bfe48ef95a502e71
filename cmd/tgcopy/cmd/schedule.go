package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-faster/errors"
	"github.com/spf13/cobra"

	"github.com/hkuds/tgcopy/internal/cron"
	"github.com/hkuds/tgcopy/internal/forward"
	"github.com/hkuds/tgcopy/internal/logging"
)

var (
	scheduleSpec      string
	scheduleSource    int64
	scheduleDest      int64
	scheduleText      bool
	scheduleMedia     bool
	scheduleDocuments bool
)

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Manage scheduled copies",
	Long: `Scheduled copies repeat a copy on a cron schedule. Every run skips the
messages earlier runs already copied, so a schedule keeps the destination in
step with the source.`,
}

var scheduleAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Add a scheduled copy",
	Example: `  tgcopy schedule add --schedule "0 3 * * *" --source -1001234567890 --dest -1009876543210
  tgcopy schedule add --schedule "@every 6h" --source 111 --dest 222 --documents=false`,
	RunE: runScheduleAdd,
}

var scheduleListCmd = &cobra.Command{
	Use:   "list",
	Short: "List scheduled copies",
	RunE:  runScheduleList,
}

var scheduleRemoveCmd = &cobra.Command{
	Use:   "remove <id>",
	Short: "Remove a scheduled copy",
	Args:  cobra.ExactArgs(1),
	RunE:  runScheduleRemove,
}

var scheduleRunCmd = &cobra.Command{
	Use:   "run [id]",
	Short: "Run one job now, or run the scheduler in the foreground",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runScheduleRun,
}

func init() {
	f := scheduleAddCmd.Flags()
	f.StringVar(&scheduleSpec, "schedule", "", "cron expression (\"0 3 * * *\") or descriptor (\"@every 6h\")")
	f.Int64Var(&scheduleSource, "source", 0, "source chat ID")
	f.Int64Var(&scheduleDest, "dest", 0, "destination chat ID")
	f.BoolVar(&scheduleText, "text", true, "copy text messages")
	f.BoolVar(&scheduleMedia, "media", true, "copy photos and videos")
	f.BoolVar(&scheduleDocuments, "documents", true, "copy documents")
	_ = scheduleAddCmd.MarkFlagRequired("schedule")
	_ = scheduleAddCmd.MarkFlagRequired("source")
	_ = scheduleAddCmd.MarkFlagRequired("dest")

	scheduleCmd.AddCommand(scheduleAddCmd)
	scheduleCmd.AddCommand(scheduleListCmd)
	scheduleCmd.AddCommand(scheduleRemoveCmd)
	scheduleCmd.AddCommand(scheduleRunCmd)
}

// newScheduler loads the jobs file. Jobs run as quiet plain copies that
// always use the journal.
func newScheduler(a *app) (*cron.Scheduler, error) {
	runner := func(ctx context.Context, job cron.Job) (string, error) {
		creds, err := a.credentials()
		if err != nil {
			return "error", err
		}
		ev, err := runCopy(ctx, a.cfg, copyRun{
			Client:  a.newClient(creds),
			Source:  job.Source,
			Dest:    job.Dest,
			Filter:  job.Filters,
			Plain:   true,
			Quiet:   true,
			Notify:  a.cfg.Notify.Enabled,
			Journal: true,
			Out:     os.Stdout,
		})
		return string(ev.Outcome), err
	}

	s := cron.NewScheduler(a.cfg.JobsPath(), runner, a.log)
	if err := s.Load(); err != nil {
		return nil, err
	}
	return s, nil
}

func runScheduleAdd(cmd *cobra.Command, args []string) error {
	a, _, err := loadApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	s, err := newScheduler(a)
	if err != nil {
		return err
	}

	job, err := s.AddJob(scheduleSpec, scheduleSource, scheduleDest, forward.FilterConfig{
		IncludeText:      scheduleText,
		IncludeMedia:     scheduleMedia,
		IncludeDocuments: scheduleDocuments,
	})
	if err != nil {
		return err
	}

	fmt.Printf("Added job %s (%s)\n", job.ID, job.Schedule)
	fmt.Println("Start the scheduler with: tgcopy schedule run")
	return nil
}

func runScheduleList(cmd *cobra.Command, args []string) error {
	a, _, err := loadApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	s, err := newScheduler(a)
	if err != nil {
		return err
	}

	jobs := s.ListJobs()
	if len(jobs) == 0 {
		fmt.Println("No scheduled copies.")
		return nil
	}

	now := time.Now()
	fmt.Printf("%-10s %-16s %-16s %-16s %-5s %-20s %s\n", "ID", "SCHEDULE", "SOURCE", "DEST", "TYPES", "NEXT RUN", "LAST")
	for _, job := range jobs {
		next := "-"
		if sched, err := cron.ParseSchedule(job.Schedule); err == nil {
			next = sched.Next(now).Format("2006-01-02 15:04")
		}
		last := "-"
		if !job.LastRun.IsZero() {
			last = job.LastOutcome + " at " + job.LastRun.Format("2006-01-02 15:04")
		}
		fmt.Printf("%-10s %-16s %-16d %-16d %-5s %-20s %s\n",
			job.ID[:8], job.Schedule, job.Source, job.Dest, filterTags(job.Filters), next, last)
	}
	return nil
}

func runScheduleRemove(cmd *cobra.Command, args []string) error {
	a, _, err := loadApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	s, err := newScheduler(a)
	if err != nil {
		return err
	}

	job, err := s.RemoveJob(args[0])
	if err != nil {
		return err
	}
	fmt.Printf("Removed job %s\n", job.ID)
	return nil
}

func runScheduleRun(cmd *cobra.Command, args []string) error {
	ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	a, ctx, err := loadApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	s, err := newScheduler(a)
	if err != nil {
		return err
	}

	if len(args) == 1 {
		job, err := s.RunNow(ctx, args[0])
		if err != nil {
			return err
		}
		fmt.Printf("Job %s finished: %s\n", job.ID[:8], job.LastOutcome)
		return nil
	}

	if len(s.ListJobs()) == 0 {
		fmt.Println("No scheduled copies. Add one with: tgcopy schedule add")
		return nil
	}
	if err := s.Start(ctx); err != nil {
		return errors.Wrap(err, "start scheduler")
	}

	logging.From(ctx).Info("Scheduler started")
	fmt.Printf("Scheduler is running %d jobs. Press Ctrl+C to stop.\n", len(s.ListJobs()))

	<-ctx.Done()
	fmt.Println("\nShutting down scheduler...")
	s.Stop()
	fmt.Println("Scheduler stopped.")
	return nil
}

// filterTags renders the content types as T, M and D letters.
func filterTags(f forward.FilterConfig) string {
	tags := ""
	if f.IncludeText {
		tags += "T"
	}
	if f.IncludeMedia {
		tags += "M"
	}
	if f.IncludeDocuments {
		tags += "D"
	}
	return tags
}
