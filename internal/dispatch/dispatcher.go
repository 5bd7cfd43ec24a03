// File: internal/dispatch/dispatcher.go

// Package dispatch translates named control-server actions into deterministic
// sequences of browser operations against the element-web deployment under
// test. It is the bulk of the agent: one state-driven case per supported UI
// action.
package dispatch

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/michaelkaye/trafficlight-agent/internal/browser"
	"github.com/michaelkaye/trafficlight-agent/internal/control"
)

// Action names understood by the dispatcher. "exit" is handled by the loop
// before dispatch and never reaches here.
const (
	ActionRegister                = "register"
	ActionLogin                   = "login"
	ActionStartCrosssign          = "start_crosssign"
	ActionAcceptCrosssign         = "accept_crosssign"
	ActionVerifyCrosssignEmoji    = "verify_crosssign_emoji"
	ActionIdle                    = "idle"
	ActionCreateRoom              = "create_room"
	ActionSendMessage             = "send_message"
	ActionChangeHistoryVisibility = "change_room_history_visibility"
	ActionInviteUser              = "invite_user"
	ActionExit                    = "exit"
)

// Completion tokens, one distinct token per action. The control server keys
// its scenario steps off these literals.
const (
	ResultRegistered               = "registered"
	ResultLoggedIn                 = "loggedin"
	ResultStartedCrosssign         = "started_crosssign"
	ResultAcceptedCrosssign        = "accepted_crosssign"
	ResultVerifiedCrosssign        = "verified_crosssign"
	ResultRoomCreated              = "room_created"
	ResultMessageSent              = "message_sent"
	ResultHistoryVisibilityChanged = "changed_history_visibility"
	ResultInvited                  = "invited"

	// ResultError is what the loop reports when a dispatch case fails. The
	// server cannot distinguish failure causes beyond this token.
	ResultError = "error"
)

// DefaultIdleWait is how long the "idle" action suspends.
const DefaultIdleWait = 5 * time.Second

// Dispatcher maps one action at a time onto a browser session. It holds no
// per-action state; the browser page is the only state that carries across
// actions within a session.
type Dispatcher struct {
	appURL   string
	idleWait time.Duration
	logger   *zap.Logger
}

// New creates a Dispatcher targeting the element-web deployment at appURL.
func New(appURL string, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{
		appURL:   appURL,
		idleWait: DefaultIdleWait,
		logger:   logger.Named("dispatch"),
	}
}

// Dispatch executes the named action against the session.
//
// The returned result is the completion token to report; ok is false when no
// response should be sent at all (the "idle" action and unknown action names).
// Any error is recoverable from the loop's point of view: the caller converts
// it to the literal ResultError and keeps the session alive.
func (d *Dispatcher) Dispatch(ctx context.Context, action *control.Action, sess browser.Session) (result string, ok bool, err error) {
	log := d.logger.With(zap.String("action", action.Name))
	log.Info("Dispatching action.")

	switch action.Name {
	case ActionRegister:
		result, err = d.register(ctx, sess, action.Data)
	case ActionLogin:
		result, err = d.login(ctx, sess, action.Data)
	case ActionStartCrosssign:
		result, err = d.startCrosssign(ctx, sess)
	case ActionAcceptCrosssign:
		result, err = d.acceptCrosssign(ctx, sess)
	case ActionVerifyCrosssignEmoji:
		result, err = d.verifyCrosssignEmoji(ctx, sess)
	case ActionIdle:
		return "", false, d.idle(ctx)
	case ActionCreateRoom:
		result, err = d.createRoom(ctx, sess, action.Data)
	case ActionSendMessage:
		result, err = d.sendMessage(ctx, sess, action.Data)
	case ActionChangeHistoryVisibility:
		result, err = d.changeHistoryVisibility(ctx, sess, action.Data)
	case ActionInviteUser:
		result, err = d.inviteUser(ctx, sess, action.Data)
	default:
		// Unknown actions are not reported to the server at all; the operator
		// gets a warning and the loop moves on to the next poll.
		log.Warn("Ignoring unknown action.")
		return "", false, nil
	}

	if err != nil {
		return "", false, fmt.Errorf("action %s: %w", action.Name, err)
	}
	log.Info("Action complete.", zap.String("result", result))
	return result, true, nil
}

// register creates a new account through the registration form.
func (d *Dispatcher) register(ctx context.Context, sess browser.Session, data map[string]interface{}) (string, error) {
	username, err := stringField(data, "username")
	if err != nil {
		return "", err
	}
	password, err := stringField(data, "password")
	if err != nil {
		return "", err
	}

	if err := sess.Navigate(ctx, d.appURL+"/#/register"); err != nil {
		return "", err
	}
	if err := sess.Type(ctx, selRegistrationUsername, username); err != nil {
		return "", err
	}
	if err := sess.Type(ctx, selRegistrationPassword, password); err != nil {
		return "", err
	}
	if err := sess.Type(ctx, selRegistrationConfirm, password); err != nil {
		return "", err
	}
	if err := sess.Click(ctx, selAuthSubmit); err != nil {
		return "", err
	}
	if err := sess.WaitVisible(ctx, selMatrixChat); err != nil {
		return "", err
	}
	return ResultRegistered, nil
}

// login signs in an existing account, pointing the client at the homeserver
// named in the action data first.
func (d *Dispatcher) login(ctx context.Context, sess browser.Session, data map[string]interface{}) (string, error) {
	username, err := stringField(data, "username")
	if err != nil {
		return "", err
	}
	password, err := stringField(data, "password")
	if err != nil {
		return "", err
	}
	// The homeserver URL arrives nested: {"homeserver_url": {"local": ...}}.
	homeserver, err := nestedStringField(data, "homeserver_url", "local")
	if err != nil {
		return "", err
	}

	if err := sess.Navigate(ctx, d.appURL+"/#/login"); err != nil {
		return "", err
	}
	if err := sess.Click(ctx, selServerPickerChange); err != nil {
		return "", err
	}
	if err := sess.Type(ctx, selServerPickerOther, homeserver); err != nil {
		return "", err
	}
	if err := sess.Click(ctx, selServerPickerContinue); err != nil {
		return "", err
	}
	if err := sess.Type(ctx, selLoginUsername, username); err != nil {
		return "", err
	}
	if err := sess.Type(ctx, selLoginPassword, password); err != nil {
		return "", err
	}
	if err := sess.Click(ctx, selAuthSubmit); err != nil {
		return "", err
	}
	if err := sess.WaitVisible(ctx, selMatrixChat); err != nil {
		return "", err
	}
	return ResultLoggedIn, nil
}

// startCrosssign kicks off device verification from this device by accepting
// the verification toast.
func (d *Dispatcher) startCrosssign(ctx context.Context, sess browser.Session) (string, error) {
	if err := sess.WaitVisible(ctx, selVerificationToast); err != nil {
		return "", err
	}
	if err := sess.Click(ctx, selVerificationToastAccept); err != nil {
		return "", err
	}
	return ResultStartedCrosssign, nil
}

// acceptCrosssign accepts an incoming verification request from another
// device.
func (d *Dispatcher) acceptCrosssign(ctx context.Context, sess browser.Session) (string, error) {
	if err := sess.WaitVisible(ctx, selVerificationToast); err != nil {
		return "", err
	}
	if err := sess.Click(ctx, selVerificationToastAccept); err != nil {
		return "", err
	}
	return ResultAcceptedCrosssign, nil
}

// verifyCrosssignEmoji confirms the emoji comparison and completes the
// verification flow.
func (d *Dispatcher) verifyCrosssignEmoji(ctx context.Context, sess browser.Session) (string, error) {
	if err := sess.Click(ctx, selVerificationEmojiMatch); err != nil {
		return "", err
	}
	if err := sess.Click(ctx, selVerificationCompleteDone); err != nil {
		return "", err
	}
	return ResultVerifiedCrosssign, nil
}

// idle suspends for the configured wait without busy-waiting. No response is
// sent for this action.
func (d *Dispatcher) idle(ctx context.Context) error {
	select {
	case <-time.After(d.idleWait):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// createRoom creates a room with the requested name.
func (d *Dispatcher) createRoom(ctx context.Context, sess browser.Session, data map[string]interface{}) (string, error) {
	name, err := stringField(data, "name")
	if err != nil {
		return "", err
	}

	if err := sess.Click(ctx, selRoomListPlus); err != nil {
		return "", err
	}
	if err := sess.Click(ctx, selNewRoomMenuItem); err != nil {
		return "", err
	}
	if err := sess.Type(ctx, selCreateRoomName, name); err != nil {
		return "", err
	}
	if err := sess.Click(ctx, selDialogPrimary); err != nil {
		return "", err
	}
	if err := sess.WaitVisible(ctx, selRoomHeader); err != nil {
		return "", err
	}
	return ResultRoomCreated, nil
}

// sendMessage types the message into the composer and sends it with Enter.
func (d *Dispatcher) sendMessage(ctx context.Context, sess browser.Session, data map[string]interface{}) (string, error) {
	message, err := stringField(data, "message")
	if err != nil {
		return "", err
	}

	if err := sess.Type(ctx, selMessageComposer, message+"\n"); err != nil {
		return "", err
	}
	return ResultMessageSent, nil
}

// changeHistoryVisibility flips the room's history visibility radio in the
// security tab of room settings, then closes the dialog.
func (d *Dispatcher) changeHistoryVisibility(ctx context.Context, sess browser.Session, data map[string]interface{}) (string, error) {
	visibility, err := stringField(data, "historyVisibility")
	if err != nil {
		return "", err
	}

	if err := sess.Click(ctx, selRoomSettingsButton); err != nil {
		return "", err
	}
	if err := sess.Click(ctx, selRoomSecurityTab); err != nil {
		return "", err
	}
	if err := sess.Click(ctx, selHistoryVisibilityPrefix+visibility); err != nil {
		return "", err
	}
	if err := sess.Click(ctx, selDialogCancel); err != nil {
		return "", err
	}
	return ResultHistoryVisibilityChanged, nil
}

// inviteUser invites the given Matrix user ID to the current room.
func (d *Dispatcher) inviteUser(ctx context.Context, sess browser.Session, data map[string]interface{}) (string, error) {
	userID, err := stringField(data, "userId")
	if err != nil {
		return "", err
	}

	if err := sess.Click(ctx, selRoomInfoButton); err != nil {
		return "", err
	}
	if err := sess.Click(ctx, selRoomPeopleCard); err != nil {
		return "", err
	}
	if err := sess.Click(ctx, selMemberInvite); err != nil {
		return "", err
	}
	if err := sess.Type(ctx, selInviteDialogBox, userID); err != nil {
		return "", err
	}
	if err := sess.Click(ctx, selInviteDialogGo); err != nil {
		return "", err
	}
	return ResultInvited, nil
}

// stringField extracts a required string parameter from the action data.
func stringField(data map[string]interface{}, key string) (string, error) {
	val, present := data[key]
	if !present {
		return "", fmt.Errorf("missing required parameter %q", key)
	}
	s, isString := val.(string)
	if !isString {
		return "", fmt.Errorf("parameter %q is not a string (got %T)", key, val)
	}
	return s, nil
}

// nestedStringField extracts data[outer][inner] as a string.
func nestedStringField(data map[string]interface{}, outer, inner string) (string, error) {
	val, present := data[outer]
	if !present {
		return "", fmt.Errorf("missing required parameter %q", outer)
	}
	m, isMap := val.(map[string]interface{})
	if !isMap {
		return "", fmt.Errorf("parameter %q is not an object (got %T)", outer, val)
	}
	return stringField(m, inner)
}
