package bot

import (
	"context"
	"runtime/debug"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Stage is one periodically triggered pipeline step. A failing tick is
// logged and the schedule continues.
type Stage struct {
	Name     string
	Interval time.Duration
	// SleepFirst delays the first run by one interval, letting upstream
	// stages populate their queue first.
	SleepFirst bool
	Run        func(ctx context.Context) error
}

// Scheduler drives the stages on independent intervals until the context is
// cancelled.
type Scheduler struct {
	stages []Stage
	log    zerolog.Logger
	wg     sync.WaitGroup
}

func NewScheduler(log zerolog.Logger, stages ...Stage) *Scheduler {
	return &Scheduler{stages: stages, log: log}
}

// Start launches one goroutine per stage and returns immediately.
func (s *Scheduler) Start(ctx context.Context) {
	for _, stage := range s.stages {
		stage := stage
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.runStage(ctx, stage)
		}()
	}
}

// Wait blocks until every stage goroutine has stopped.
func (s *Scheduler) Wait() {
	s.wg.Wait()
}

func (s *Scheduler) runStage(ctx context.Context, stage Stage) {
	if !stage.SleepFirst {
		s.safeRun(ctx, stage)
	}
	ticker := time.NewTicker(stage.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			s.log.Info().Str("stage", stage.Name).Msg("stage stopped")
			return
		case <-ticker.C:
			s.safeRun(ctx, stage)
		}
	}
}

// safeRun isolates one tick: errors are logged, panics are recovered, and
// the schedule keeps going either way.
func (s *Scheduler) safeRun(ctx context.Context, stage Stage) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error().
				Str("stage", stage.Name).
				Interface("panic", r).
				Bytes("stack", debug.Stack()).
				Msg("stage tick panicked")
		}
	}()
	if err := stage.Run(ctx); err != nil {
		s.log.Error().Err(err).Str("stage", stage.Name).Msg("stage tick failed")
	}
}
