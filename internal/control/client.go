// File: internal/control/client.go

// Package control implements the HTTP client side of the trafficlight
// protocol: register, poll and respond, all rooted at
// {controlUrl}/client/{sessionId}.
package control

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// ClientType identifies this agent flavour to the control server.
const ClientType = "element-web"

// Action is one instruction received from the control server.
type Action struct {
	Name string                 `json:"action"`
	Data map[string]interface{} `json:"data"`
}

// RegistrationError is returned when the register call does not come back with
// HTTP 200. Fatal for the session.
type RegistrationError struct {
	Status int
	Err    error
}

func (e *RegistrationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("registration failed: %v", e.Err)
	}
	return fmt.Sprintf("registration rejected by control server: HTTP %d", e.Status)
}

func (e *RegistrationError) Unwrap() error { return e.Err }

// PollError is returned when a poll fails, either at the transport/status
// level or because the response body did not parse. Both are fatal and
// indistinguishable to the caller.
type PollError struct {
	Status int
	Err    error
}

func (e *PollError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("poll failed: %v", e.Err)
	}
	return fmt.Sprintf("poll failed: HTTP %d", e.Status)
}

func (e *PollError) Unwrap() error { return e.Err }

// RespondError is returned when delivering an action result fails. Fatal for
// the session.
type RespondError struct {
	Status int
	Err    error
}

func (e *RespondError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("respond failed: %v", e.Err)
	}
	return fmt.Sprintf("respond failed: HTTP %d", e.Status)
}

func (e *RespondError) Unwrap() error { return e.Err }

// Client talks to the trafficlight control server.
type Client struct {
	http    *http.Client
	logger  *zap.Logger
	version string
}

// NewClient creates a control client. version is reported in the registration
// body; timeout bounds each HTTP round trip.
func NewClient(timeout time.Duration, version string, logger *zap.Logger) *Client {
	return &Client{
		http:    &http.Client{Timeout: timeout},
		logger:  logger.Named("control"),
		version: version,
	}
}

// SessionBaseURL returns the per-session base path all further calls use.
func SessionBaseURL(controlURL, sessionID string) string {
	return fmt.Sprintf("%s/client/%s", controlURL, sessionID)
}

// Register announces the session to the control server. Success is strictly
// HTTP 200; anything else is a RegistrationError.
func (c *Client) Register(ctx context.Context, controlURL, sessionID string) error {
	payload := struct {
		Type    string `json:"type"`
		Version string `json:"version"`
	}{Type: ClientType, Version: c.version}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode registration body: %w", err)
	}

	url := SessionBaseURL(controlURL, sessionID) + "/register"
	c.logger.Info("Registering with control server.", zap.String("url", url), zap.String("session_id", sessionID))

	status, err := c.post(ctx, url, body)
	if err != nil {
		return &RegistrationError{Err: err}
	}
	if status != http.StatusOK {
		return &RegistrationError{Status: status}
	}
	return nil
}

// Poll fetches the next action for the session. Blocks until the server
// answers; the server holds the request open while it has nothing to say.
func (c *Client) Poll(ctx context.Context, sessionBaseURL string) (*Action, error) {
	url := sessionBaseURL + "/poll"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &PollError{Err: err}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &PollError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return nil, &PollError{Status: resp.StatusCode}
	}

	var action Action
	if err := json.NewDecoder(resp.Body).Decode(&action); err != nil {
		// A malformed body is treated the same as a failed poll.
		return nil, &PollError{Status: resp.StatusCode, Err: fmt.Errorf("decode poll body: %w", err)}
	}

	c.logger.Debug("Received action.", zap.String("action", action.Name))
	return &action, nil
}

// Respond reports an action result back to the control server.
func (c *Client) Respond(ctx context.Context, sessionBaseURL, result string) error {
	payload := struct {
		Response string `json:"response"`
	}{Response: result}

	body, err := json.Marshal(payload)
	if err != nil {
		return &RespondError{Err: fmt.Errorf("encode respond body: %w", err)}
	}

	url := sessionBaseURL + "/respond"
	c.logger.Debug("Responding.", zap.String("response", result))

	status, err := c.post(ctx, url, body)
	if err != nil {
		return &RespondError{Err: err}
	}
	if status != http.StatusOK {
		return &RespondError{Status: status}
	}
	return nil
}

// post sends a JSON body and returns the response status, draining the body so
// connections are reused.
func (c *Client) post(ctx context.Context, url string, body []byte) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	return resp.StatusCode, nil
}
