package control

import (
	"context"
	stdjson "encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestClient() *Client {
	return NewClient(5*time.Second, "test-version", zap.NewNop())
}

func TestRegister(t *testing.T) {
	t.Run("posts type and version to the session path", func(t *testing.T) {
		var gotPath string
		var gotBody map[string]string
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotPath = r.URL.Path
			require.Equal(t, http.MethodPost, r.Method)
			body, err := io.ReadAll(r.Body)
			require.NoError(t, err)
			require.NoError(t, stdjson.Unmarshal(body, &gotBody))
			w.WriteHeader(http.StatusOK)
		}))
		defer srv.Close()

		err := newTestClient().Register(context.Background(), srv.URL, "abc-123")
		require.NoError(t, err)

		assert.Equal(t, "/client/abc-123/register", gotPath)
		assert.Equal(t, ClientType, gotBody["type"])
		assert.Equal(t, "test-version", gotBody["version"])
	})

	t.Run("non-200 status is a RegistrationError", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer srv.Close()

		err := newTestClient().Register(context.Background(), srv.URL, "abc-123")
		require.Error(t, err)

		var regErr *RegistrationError
		require.ErrorAs(t, err, &regErr)
		assert.Equal(t, http.StatusInternalServerError, regErr.Status)
	})

	t.Run("unreachable server is a RegistrationError", func(t *testing.T) {
		err := newTestClient().Register(context.Background(), "http://127.0.0.1:1", "abc-123")
		var regErr *RegistrationError
		require.ErrorAs(t, err, &regErr)
	})
}

func TestPoll(t *testing.T) {
	t.Run("decodes action and data", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t, http.MethodGet, r.Method)
			require.Equal(t, "/client/abc/poll", r.URL.Path)
			w.Header().Set("Content-Type", "application/json")
			io.WriteString(w, `{"action":"login","data":{"username":"alice","password":"pw"}}`)
		}))
		defer srv.Close()

		action, err := newTestClient().Poll(context.Background(), srv.URL+"/client/abc")
		require.NoError(t, err)

		assert.Equal(t, "login", action.Name)
		assert.Equal(t, "alice", action.Data["username"])
		assert.Equal(t, "pw", action.Data["password"])
	})

	t.Run("non-200 status is a PollError", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		}))
		defer srv.Close()

		_, err := newTestClient().Poll(context.Background(), srv.URL+"/client/abc")
		var pollErr *PollError
		require.ErrorAs(t, err, &pollErr)
		assert.Equal(t, http.StatusServiceUnavailable, pollErr.Status)
	})

	t.Run("malformed body is treated as a PollError", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			io.WriteString(w, `{"action": not-json`)
		}))
		defer srv.Close()

		_, err := newTestClient().Poll(context.Background(), srv.URL+"/client/abc")
		var pollErr *PollError
		require.ErrorAs(t, err, &pollErr)
		assert.Error(t, pollErr.Err)
	})

	t.Run("context cancellation aborts the poll", func(t *testing.T) {
		release := make(chan struct{})
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			<-release
		}))
		defer srv.Close()
		defer close(release)

		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()

		_, err := newTestClient().Poll(ctx, srv.URL+"/client/abc")
		var pollErr *PollError
		require.ErrorAs(t, err, &pollErr)
	})
}

func TestRespond(t *testing.T) {
	t.Run("posts the result token", func(t *testing.T) {
		var gotBody map[string]string
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t, "/client/abc/respond", r.URL.Path)
			body, err := io.ReadAll(r.Body)
			require.NoError(t, err)
			require.NoError(t, stdjson.Unmarshal(body, &gotBody))
		}))
		defer srv.Close()

		err := newTestClient().Respond(context.Background(), srv.URL+"/client/abc", "loggedin")
		require.NoError(t, err)
		assert.Equal(t, "loggedin", gotBody["response"])
	})

	t.Run("non-200 status is a RespondError", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		}))
		defer srv.Close()

		err := newTestClient().Respond(context.Background(), srv.URL+"/client/abc", "error")
		var respErr *RespondError
		require.ErrorAs(t, err, &respErr)
		assert.Equal(t, http.StatusBadGateway, respErr.Status)
	})
}

func TestSessionBaseURL(t *testing.T) {
	assert.Equal(t, "http://c:5000/client/id-1", SessionBaseURL("http://c:5000", "id-1"))
}
