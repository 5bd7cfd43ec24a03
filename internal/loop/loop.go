// File: internal/loop/loop.go

// Package loop drives the agent's session lifecycle: register with the control
// server, then poll/dispatch/respond strictly sequentially until the server
// says exit or a fatal protocol error occurs.
package loop

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/michaelkaye/trafficlight-agent/internal/browser"
	"github.com/michaelkaye/trafficlight-agent/internal/control"
	"github.com/michaelkaye/trafficlight-agent/internal/dispatch"
)

// closeTimeout bounds browser teardown at the end of a session.
const closeTimeout = 10 * time.Second

// Client is the subset of the control client the loop needs. Satisfied by
// *control.Client.
type Client interface {
	Register(ctx context.Context, controlURL, sessionID string) error
	Poll(ctx context.Context, sessionBaseURL string) (*control.Action, error)
	Respond(ctx context.Context, sessionBaseURL, result string) error
}

// Dispatcher executes one action against a browser session. Satisfied by
// *dispatch.Dispatcher.
type Dispatcher interface {
	Dispatch(ctx context.Context, action *control.Action, sess browser.Session) (result string, ok bool, err error)
}

// Loop owns the per-session state machine. A fresh browser session and a fresh
// random session identifier are created on every RunSession call; sessions
// never overlap within one agent process.
type Loop struct {
	controlURL string
	client     Client
	dispatcher Dispatcher
	newSession browser.Factory
	logger     *zap.Logger
}

// New assembles a Loop.
func New(controlURL string, client Client, dispatcher Dispatcher, newSession browser.Factory, logger *zap.Logger) *Loop {
	return &Loop{
		controlURL: controlURL,
		client:     client,
		dispatcher: dispatcher,
		newSession: newSession,
		logger:     logger.Named("loop"),
	}
}

// RunSession executes one registration-to-exit session.
//
// It returns nil when the server sends the "exit" action, and an error when
// registration, polling or responding fails — those are fatal to the session
// and restart policy belongs to the Supervisor. Dispatch failures are never
// fatal: they are converted to the "error" result and the loop keeps going.
//
// The protocol is strictly sequential: the next poll is not issued until the
// previous action's response (or the decision to send none) is finalized.
func (l *Loop) RunSession(ctx context.Context) error {
	// 128-bit random identifier, collision-resistant across concurrent agents.
	sessionID := uuid.New().String()
	log := l.logger.With(zap.String("session_id", sessionID))

	sess, err := l.newSession(ctx)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), closeTimeout)
		defer cancel()
		if err := sess.Close(closeCtx); err != nil {
			log.Warn("Error closing browser session.", zap.Error(err))
		}
	}()

	if err := l.client.Register(ctx, l.controlURL, sessionID); err != nil {
		return err
	}
	log.Info("Session registered.")

	base := control.SessionBaseURL(l.controlURL, sessionID)
	for {
		action, err := l.client.Poll(ctx, base)
		if err != nil {
			return err
		}

		if action.Name == dispatch.ActionExit {
			log.Info("Exit requested by control server; ending session.")
			return nil
		}

		result, ok, err := l.dispatcher.Dispatch(ctx, action, sess)
		if err != nil {
			// Dispatch failures are recovered here: report the error token and
			// continue, unless the whole agent is being cancelled.
			if ctx.Err() != nil {
				return ctx.Err()
			}
			log.Error("Action failed.", zap.String("action", action.Name), zap.Error(err))
			result, ok = dispatch.ResultError, true
		}

		if !ok {
			// Absent result: nothing to send, straight back to polling.
			continue
		}

		if err := l.client.Respond(ctx, base, result); err != nil {
			return err
		}
	}
}
