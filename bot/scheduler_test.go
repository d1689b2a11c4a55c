package bot

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestScheduler_RunsStagesIndependently(t *testing.T) {
	var fast, slow atomic.Int32
	s := NewScheduler(zerolog.Nop(),
		Stage{Name: "fast", Interval: 10 * time.Millisecond, Run: func(context.Context) error {
			fast.Add(1)
			return nil
		}},
		Stage{Name: "slow", Interval: 50 * time.Millisecond, SleepFirst: true, Run: func(context.Context) error {
			slow.Add(1)
			return nil
		}},
	)

	ctx, cancel := context.WithCancel(context.Background())
	s.Start(ctx)
	time.Sleep(120 * time.Millisecond)
	cancel()
	s.Wait()

	assert.Greater(t, fast.Load(), slow.Load())
	assert.GreaterOrEqual(t, slow.Load(), int32(1))
}

func TestScheduler_FailingStageKeepsTicking(t *testing.T) {
	var runs atomic.Int32
	s := NewScheduler(zerolog.Nop(),
		Stage{Name: "broken", Interval: 10 * time.Millisecond, Run: func(context.Context) error {
			runs.Add(1)
			return errors.New("tick failed")
		}},
	)

	ctx, cancel := context.WithCancel(context.Background())
	s.Start(ctx)
	time.Sleep(60 * time.Millisecond)
	cancel()
	s.Wait()

	assert.GreaterOrEqual(t, runs.Load(), int32(3))
}

func TestScheduler_RecoversPanics(t *testing.T) {
	var runs atomic.Int32
	s := NewScheduler(zerolog.Nop(),
		Stage{Name: "panicky", Interval: 10 * time.Millisecond, Run: func(context.Context) error {
			runs.Add(1)
			panic("boom")
		}},
	)

	ctx, cancel := context.WithCancel(context.Background())
	s.Start(ctx)
	time.Sleep(50 * time.Millisecond)
	cancel()
	s.Wait()

	assert.GreaterOrEqual(t, runs.Load(), int32(2))
}
