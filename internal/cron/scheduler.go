// Package cron runs copy jobs on cron schedules. Jobs are persisted to
// jobs.json in the data directory and survive restarts.
package cron

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/hkuds/tgcopy/internal/forward"
)

var (
	// ErrJobNotFound is returned for an unknown job ID.
	ErrJobNotFound = errors.New("job not found")
	// ErrJobRunning is returned when a job is started while its previous run
	// is still active.
	ErrJobRunning = errors.New("job is already running")
)

// Job is a scheduled copy from one conversation into another.
type Job struct {
	ID       string               `json:"id"`
	Schedule string               `json:"schedule"` // cron expression or "@every 6h"
	Source   int64                `json:"source"`
	Dest     int64                `json:"dest"`
	Filters  forward.FilterConfig `json:"filters"`
	Created  time.Time            `json:"created"`

	LastRun     time.Time `json:"last_run,omitzero"`
	LastOutcome string    `json:"last_outcome,omitempty"`
}

// Runner performs one run of a job and returns its outcome.
type Runner func(ctx context.Context, job Job) (string, error)

// jobEntry wraps a Job with runtime state for the scheduler.
type jobEntry struct {
	Job     Job
	entryID cron.EntryID
	running bool
}

// Scheduler fires copy jobs on their schedules. A job never overlaps
// itself: a firing while the previous run is active is skipped.
type Scheduler struct {
	runner Runner
	log    *zap.Logger
	now    func() time.Time

	mu      sync.Mutex
	entries map[string]*jobEntry

	persistPath string
	cron        *cron.Cron
	ctx         context.Context
	cancel      context.CancelFunc
}

// NewScheduler creates a Scheduler persisting jobs to path.
func NewScheduler(path string, runner Runner, log *zap.Logger) *Scheduler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Scheduler{
		runner:      runner,
		log:         log.Named("cron"),
		now:         time.Now,
		entries:     make(map[string]*jobEntry),
		persistPath: path,
		cron:        cron.New(),
	}
}

// ParseSchedule validates a standard 5-field cron expression or a
// descriptor such as "@daily" or "@every 1h".
func ParseSchedule(spec string) (cron.Schedule, error) {
	sched, err := cron.ParseStandard(strings.TrimSpace(spec))
	if err != nil {
		return nil, errors.Wrapf(err, "invalid schedule %q", spec)
	}
	return sched, nil
}

// Load reads persisted jobs. A missing file is not an error.
func (s *Scheduler) Load() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadLocked()
}

// Start schedules every loaded job and starts the cron timers.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.ctx, s.cancel = context.WithCancel(ctx)
	for _, entry := range s.entries {
		if err := s.scheduleLocked(entry); err != nil {
			s.log.Error("Skipping job", zap.String("job", entry.Job.ID), zap.Error(err))
		}
	}
	s.cron.Start()
	return nil
}

// Stop stops the timers, cancels running jobs and waits for them to end.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	s.mu.Unlock()
	<-s.cron.Stop().Done()
}

// AddJob registers a new job, schedules it when the scheduler is running
// and persists it.
func (s *Scheduler) AddJob(schedule string, source, dest int64, filters forward.FilterConfig) (Job, error) {
	if _, err := ParseSchedule(schedule); err != nil {
		return Job{}, err
	}
	if source == dest {
		return Job{}, errors.New("source and destination must differ")
	}
	if !filters.Any() {
		return Job{}, errors.New("select at least one content type")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	entry := &jobEntry{
		Job: Job{
			ID:       uuid.NewString(),
			Schedule: strings.TrimSpace(schedule),
			Source:   source,
			Dest:     dest,
			Filters:  filters,
			Created:  s.now(),
		},
	}
	s.entries[entry.Job.ID] = entry

	if s.ctx != nil {
		if err := s.scheduleLocked(entry); err != nil {
			return entry.Job, err
		}
	}

	if err := s.saveLocked(); err != nil {
		return entry.Job, errors.Wrap(err, "job added but failed to persist")
	}
	return entry.Job, nil
}

// RemoveJob unschedules and removes a job by ID or unique ID prefix.
func (s *Scheduler) RemoveJob(id string) (Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, err := s.findLocked(id)
	if err != nil {
		return Job{}, err
	}
	if entry.entryID != 0 {
		s.cron.Remove(entry.entryID)
	}
	delete(s.entries, entry.Job.ID)

	return entry.Job, s.saveLocked()
}

// ListJobs returns all jobs, oldest first.
func (s *Scheduler) ListJobs() []Job {
	s.mu.Lock()
	defer s.mu.Unlock()

	jobs := make([]Job, 0, len(s.entries))
	for _, entry := range s.entries {
		jobs = append(jobs, entry.Job)
	}
	sort.Slice(jobs, func(i, j int) bool {
		if !jobs[i].Created.Equal(jobs[j].Created) {
			return jobs[i].Created.Before(jobs[j].Created)
		}
		return jobs[i].ID < jobs[j].ID
	})
	return jobs
}

// Next returns the next fire time of a scheduled job.
func (s *Scheduler) Next(id string) (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, err := s.findLocked(id)
	if err != nil || entry.entryID == 0 {
		return time.Time{}, false
	}
	return s.cron.Entry(entry.entryID).Next, true
}

// RunNow runs a job immediately and waits for it. ErrJobRunning is returned
// when the job is already active.
func (s *Scheduler) RunNow(ctx context.Context, id string) (Job, error) {
	entry, err := s.acquire(id)
	if err != nil {
		return Job{}, err
	}
	return s.execute(ctx, entry)
}

func (s *Scheduler) scheduleLocked(entry *jobEntry) error {
	id := entry.Job.ID
	entryID, err := s.cron.AddFunc(entry.Job.Schedule, func() { s.fire(id) })
	if err != nil {
		return errors.Wrapf(err, "schedule job %s", id)
	}
	entry.entryID = entryID
	return nil
}

// fire is the cron callback of a job.
func (s *Scheduler) fire(id string) {
	entry, err := s.acquire(id)
	if err != nil {
		s.log.Info("Skipping job", zap.String("job", id), zap.Error(err))
		return
	}

	s.mu.Lock()
	ctx := s.ctx
	s.mu.Unlock()
	if ctx == nil {
		ctx = context.Background()
	}

	if _, err := s.execute(ctx, entry); err != nil {
		s.log.Error("Job failed", zap.String("job", id), zap.Error(err))
	}
}

// acquire marks a job as running.
func (s *Scheduler) acquire(id string) (*jobEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, err := s.findLocked(id)
	if err != nil {
		return nil, err
	}
	if entry.running {
		return nil, ErrJobRunning
	}
	entry.running = true
	return entry, nil
}

func (s *Scheduler) execute(ctx context.Context, entry *jobEntry) (Job, error) {
	s.mu.Lock()
	job := entry.Job
	s.mu.Unlock()

	log := s.log.With(zap.String("job", job.ID))
	log.Info("Job started", zap.Int64("source", job.Source), zap.Int64("dest", job.Dest))

	outcome, err := s.runner(ctx, job)
	if err != nil && outcome == "" {
		outcome = "error"
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	entry.running = false
	entry.Job.LastRun = s.now()
	entry.Job.LastOutcome = outcome
	if _, ok := s.entries[job.ID]; ok {
		if serr := s.saveLocked(); serr != nil {
			log.Error("Persist jobs", zap.Error(serr))
		}
	}

	log.Info("Job finished", zap.String("outcome", outcome))
	return entry.Job, err
}

// findLocked resolves a full ID or a unique prefix of one.
func (s *Scheduler) findLocked(id string) (*jobEntry, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, ErrJobNotFound
	}
	if entry, ok := s.entries[id]; ok {
		return entry, nil
	}

	var match *jobEntry
	for key, entry := range s.entries {
		if strings.HasPrefix(key, id) {
			if match != nil {
				return nil, errors.Errorf("job id %q is ambiguous", id)
			}
			match = entry
		}
	}
	if match == nil {
		return nil, errors.Wrap(ErrJobNotFound, id)
	}
	return match, nil
}

// --- persistence ---

type persistedState struct {
	Jobs []Job `json:"jobs"`
}

func (s *Scheduler) saveLocked() error {
	state := persistedState{Jobs: make([]Job, 0, len(s.entries))}
	for _, e := range s.entries {
		state.Jobs = append(state.Jobs, e.Job)
	}
	sort.Slice(state.Jobs, func(i, j int) bool {
		return state.Jobs[i].Created.Before(state.Jobs[j].Created)
	})

	if err := os.MkdirAll(filepath.Dir(s.persistPath), 0o700); err != nil {
		return err
	}

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(s.persistPath, data, 0o600)
}

func (s *Scheduler) loadLocked() error {
	data, err := os.ReadFile(s.persistPath)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return errors.Wrap(err, "read jobs")
	}

	var state persistedState
	if err := json.Unmarshal(data, &state); err != nil {
		return errors.Wrapf(err, "parse %s", s.persistPath)
	}

	for _, job := range state.Jobs {
		s.entries[job.ID] = &jobEntry{Job: job}
	}
	return nil
}
