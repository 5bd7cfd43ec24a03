// File: internal/loop/supervisor.go
package loop

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// RunMode selects what happens when a session ends.
type RunMode string

const (
	// ModeOneShot runs a single session and exits, reporting its error. Suited
	// to CI runners where an external supervisor handles restarts.
	ModeOneShot RunMode = "one-shot"
	// ModeForever restarts sessions indefinitely, backing off after fatal
	// failures so a dead control server does not cause a crash storm.
	ModeForever RunMode = "forever"
)

// ParseRunMode validates a run-mode argument.
func ParseRunMode(s string) (RunMode, error) {
	switch RunMode(s) {
	case ModeOneShot, ModeForever:
		return RunMode(s), nil
	default:
		return "", fmt.Errorf("unrecognized run mode %q (expected %q or %q)", s, ModeOneShot, ModeForever)
	}
}

// SessionRunner runs one complete session. Satisfied by *Loop.
type SessionRunner interface {
	RunSession(ctx context.Context) error
}

// Backoff durations between failed sessions in forever mode.
const (
	initialBackoff = time.Second
	maxBackoff     = time.Minute
)

// Supervisor owns the restart policy around the session loop. The loop itself
// never retries; every restart decision lives here.
type Supervisor struct {
	runner SessionRunner
	mode   RunMode
	logger *zap.Logger

	initialBackoff time.Duration
	maxBackoff     time.Duration
}

// NewSupervisor creates a Supervisor for the given run mode.
func NewSupervisor(runner SessionRunner, mode RunMode, logger *zap.Logger) *Supervisor {
	return &Supervisor{
		runner:         runner,
		mode:           mode,
		logger:         logger.Named("supervisor"),
		initialBackoff: initialBackoff,
		maxBackoff:     maxBackoff,
	}
}

// Run executes sessions according to the run mode until the context is
// cancelled. In one-shot mode it returns the single session's error; in
// forever mode it only returns once the context ends.
func (s *Supervisor) Run(ctx context.Context) error {
	backoff := s.initialBackoff
	for {
		err := s.runner.RunSession(ctx)

		if s.mode == ModeOneShot {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		if err == nil {
			// Clean exit: the server finished a scenario. Start the next
			// session immediately with fresh backoff.
			s.logger.Info("Session ended cleanly; starting a new one.")
			backoff = s.initialBackoff
			continue
		}

		s.logger.Error("Session failed; backing off before restart.",
			zap.Error(err), zap.Duration("backoff", backoff))

		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return ctx.Err()
		}

		backoff *= 2
		if backoff > s.maxBackoff {
			backoff = s.maxBackoff
		}
	}
}
