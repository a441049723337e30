// Package scheduler runs the alert cycle on a fixed interval.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/timmy/jobalerts/internal/logger"
	"github.com/timmy/jobalerts/internal/service"
)

// ErrCycleRunning is returned by RunNow while another cycle is in progress.
var ErrCycleRunning = errors.New("alert cycle already running")

// Runner executes one alert cycle.
type Runner interface {
	RunCycle(ctx context.Context) *service.CycleStats
}

// Scheduler wraps robfig/cron and guarantees cycles never overlap, whether
// started by the timer or on demand.
type Scheduler struct {
	cron   *cron.Cron
	runner Runner
	spec   string
	logger *logger.Logger

	mu sync.Mutex
	wg sync.WaitGroup
}

// New creates a Scheduler that fires every interval.
func New(runner Runner, interval time.Duration, log *logger.Logger) *Scheduler {
	if log == nil {
		log = logger.GetDefault()
	}
	cronLog := cron.PrintfLogger(log.WithField(logger.FieldComponent, "cron"))
	return &Scheduler{
		cron: cron.New(cron.WithChain(
			cron.Recover(cronLog),
			cron.SkipIfStillRunning(cronLog),
		)),
		runner: runner,
		spec:   fmt.Sprintf("@every %s", interval),
		logger: log,
	}
}

// Start registers the job and starts the scheduler. One cycle runs
// immediately so a fresh worker does not wait a full interval.
func (s *Scheduler) Start(ctx context.Context) error {
	_, err := s.cron.AddFunc(s.spec, func() {
		s.tick(ctx)
	})
	if err != nil {
		return fmt.Errorf("cron.AddFunc: %w", err)
	}

	s.cron.Start()
	s.logger.WithField("spec", s.spec).Info("[scheduler] Cron started")

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.tick(ctx)
	}()

	return nil
}

// Stop halts the timer and waits for a running cycle to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.wg.Wait()
	s.logger.Info("[scheduler] Cron stopped")
}

func (s *Scheduler) tick(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	if _, err := s.RunNow(ctx); err != nil {
		if errors.Is(err, ErrCycleRunning) {
			s.logger.Debug("[scheduler] Previous cycle still running, skipping tick")
			return
		}
		s.logger.WithError(err).Error("[scheduler] Cycle aborted")
	}
}

// RunNow runs one cycle synchronously unless one is already in progress.
// A panic inside the cycle is recovered and returned as an error.
func (s *Scheduler) RunNow(ctx context.Context) (stats *service.CycleStats, err error) {
	if !s.mu.TryLock() {
		return nil, ErrCycleRunning
	}
	defer s.mu.Unlock()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("alert cycle panicked: %v", r)
		}
	}()

	return s.runner.RunCycle(ctx), nil
}
