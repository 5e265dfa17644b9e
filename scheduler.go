package courier

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// DefaultSyncInterval is the scheduler cadence when none is configured.
const DefaultSyncInterval = 5 * time.Minute

// SchedulerState is Stopped or Running.
type SchedulerState int

const (
	SchedulerStopped SchedulerState = iota
	SchedulerRunning
)

func (s SchedulerState) String() string {
	if s == SchedulerRunning {
		return "running"
	}
	return "stopped"
}

// SyncJob is the work a scheduler runs on each tick.
type SyncJob func(ctx context.Context) error

// Scheduler runs a SyncJob on a fixed cadence until stopped. A failing or
// panicking job is logged and the loop keeps going.
type Scheduler struct {
	job        SyncJob
	log        zerolog.Logger
	jobTimeout time.Duration

	mu       sync.Mutex
	state    SchedulerState
	interval time.Duration
	stopSync chan struct{}
	syncDone chan struct{}
	reset    chan time.Duration
	cancel   context.CancelFunc
}

// NewScheduler creates a stopped scheduler. A non-positive interval uses
// DefaultSyncInterval; a non-positive jobTimeout disables the per-run limit.
func NewScheduler(job SyncJob, interval, jobTimeout time.Duration, log zerolog.Logger) *Scheduler {
	if interval <= 0 {
		interval = DefaultSyncInterval
	}
	return &Scheduler{
		job:        job,
		interval:   interval,
		jobTimeout: jobTimeout,
		log:        log.With().Str("component", "scheduler").Logger(),
	}
}

// Start begins the periodic loop. The first run happens one interval after
// Start returns.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == SchedulerRunning {
		return ErrSchedulerRunning
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.stopSync = make(chan struct{})
	s.syncDone = make(chan struct{})
	s.reset = make(chan time.Duration, 1)
	s.state = SchedulerRunning

	go s.loop(ctx, s.interval, s.stopSync, s.syncDone, s.reset)

	s.log.Info().Dur("interval", s.interval).Msg("scheduler started")
	return nil
}

// Stop halts the loop, cancelling a run in progress, and waits for the loop
// to exit. Stopping a stopped scheduler is a no-op.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if s.state != SchedulerRunning {
		s.mu.Unlock()
		return
	}
	s.state = SchedulerStopped
	close(s.stopSync)
	s.cancel()
	done := s.syncDone
	s.mu.Unlock()

	<-done
	s.log.Info().Msg("scheduler stopped")
}

// State returns the current state.
func (s *Scheduler) State() SchedulerState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Interval returns the configured cadence.
func (s *Scheduler) Interval() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.interval
}

// SetInterval changes the cadence. A running loop picks it up immediately
// and waits the new interval before its next run.
func (s *Scheduler) SetInterval(d time.Duration) {
	if d <= 0 {
		d = DefaultSyncInterval
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if d == s.interval {
		return
	}
	s.interval = d
	if s.state != SchedulerRunning {
		return
	}
	// Drop a pending reset in favour of the newest one.
	select {
	case <-s.reset:
	default:
	}
	s.reset <- d
	s.log.Info().Dur("interval", d).Msg("scheduler interval changed")
}

// SyncNow runs the job once outside the cadence. It shares no lock with the
// loop; mutual exclusion is the job's own concern.
func (s *Scheduler) SyncNow(ctx context.Context) error {
	return s.run(ctx)
}

func (s *Scheduler) loop(ctx context.Context, interval time.Duration, stop <-chan struct{}, done chan<- struct{}, reset <-chan time.Duration) {
	defer close(done)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case d := <-reset:
			ticker.Reset(d)
		case <-ticker.C:
			if err := s.run(ctx); err != nil {
				s.log.Warn().Err(err).Msg("scheduled sync failed")
			}
		}
	}
}

func (s *Scheduler) run(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error().Interface("panic", r).Msg("sync job panicked")
			err = fmt.Errorf("sync job panicked: %v", r)
		}
	}()

	if s.jobTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.jobTimeout)
		defer cancel()
	}
	return s.job(ctx)
}
