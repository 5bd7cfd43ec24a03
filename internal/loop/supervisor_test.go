package loop

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// countingRunner returns scripted errors, one per RunSession call.
type countingRunner struct {
	mu      sync.Mutex
	errs    []error
	runs    int
	onEmpty error
}

func (r *countingRunner) RunSession(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.runs < len(r.errs) {
		err := r.errs[r.runs]
		r.runs++
		return err
	}
	r.runs++
	return r.onEmpty
}

func (r *countingRunner) runCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.runs
}

func newTestSupervisor(r SessionRunner, mode RunMode) *Supervisor {
	s := NewSupervisor(r, mode, zap.NewNop())
	s.initialBackoff = time.Millisecond
	s.maxBackoff = 4 * time.Millisecond
	return s
}

func TestParseRunMode(t *testing.T) {
	mode, err := ParseRunMode("one-shot")
	require.NoError(t, err)
	assert.Equal(t, ModeOneShot, mode)

	mode, err = ParseRunMode("forever")
	require.NoError(t, err)
	assert.Equal(t, ModeForever, mode)

	_, err = ParseRunMode("bogus")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bogus")
}

func TestSupervisorOneShot(t *testing.T) {
	t.Run("clean session returns nil", func(t *testing.T) {
		runner := &countingRunner{}
		err := newTestSupervisor(runner, ModeOneShot).Run(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 1, runner.runCount())
	})

	t.Run("failed session propagates the error", func(t *testing.T) {
		sessionErr := errors.New("registration rejected")
		runner := &countingRunner{errs: []error{sessionErr}}
		err := newTestSupervisor(runner, ModeOneShot).Run(context.Background())
		require.ErrorIs(t, err, sessionErr)
		assert.Equal(t, 1, runner.runCount())
	})
}

func TestSupervisorForever(t *testing.T) {
	t.Run("restarts after clean exits until cancelled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		runner := &countingRunner{}

		done := make(chan error, 1)
		go func() { done <- newTestSupervisor(runner, ModeForever).Run(ctx) }()

		// Let a few sessions run, then cancel.
		assert.Eventually(t, func() bool { return runner.runCount() >= 3 },
			time.Second, time.Millisecond)
		cancel()

		err := <-done
		require.ErrorIs(t, err, context.Canceled)
	})

	t.Run("backs off between failed sessions", func(t *testing.T) {
		sessionErr := errors.New("control server down")
		runner := &countingRunner{onEmpty: sessionErr}

		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()

		err := newTestSupervisor(runner, ModeForever).Run(ctx)
		require.ErrorIs(t, err, context.DeadlineExceeded)

		// With a 1ms initial backoff doubling to a 4ms cap, 50ms fits a
		// bounded number of attempts; without backoff this would be thousands.
		assert.Greater(t, runner.runCount(), 2)
		assert.Less(t, runner.runCount(), 30)
	})
}
