package app

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/fairyhunter13/screening-gate/internal/domain"
)

type countingSweeper struct {
	calls atomic.Int32
	err   error
}

func (c *countingSweeper) Sweep(ctx context.Context) (domain.SweepResult, error) {
	c.calls.Add(1)
	if _, ok := ctx.Deadline(); !ok {
		return domain.SweepResult{}, errors.New("sweep context has no deadline")
	}
	return domain.SweepResult{InProgressSwept: 1}, c.err
}

func TestNewAbandonmentSweeper_Defaults(t *testing.T) {
	assert.Nil(t, NewAbandonmentSweeper(nil, time.Second))
	s := NewAbandonmentSweeper(&countingSweeper{}, 0)
	assert.Equal(t, 15*time.Minute, s.interval)
	assert.Equal(t, time.Minute, s.timeout)

	var nilSweeper *AbandonmentSweeper
	nilSweeper.Run(context.Background())
}

func TestAbandonmentSweeper_RunsUntilCancelled(t *testing.T) {
	cs := &countingSweeper{}
	s := NewAbandonmentSweeper(cs, 10*time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	assert.Eventually(t, func() bool { return cs.calls.Load() >= 3 }, time.Second, 5*time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop")
	}
}

func TestAbandonmentSweeper_ErrorsDoNotStopLoop(t *testing.T) {
	cs := &countingSweeper{err: errors.New("db unreachable")}
	s := NewAbandonmentSweeper(cs, 10*time.Millisecond)
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	s.Run(ctx)
	assert.GreaterOrEqual(t, cs.calls.Load(), int32(2))
}
