package directory

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hscsupdater/internal/roster"
)

func newTestClient(t *testing.T, h http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return New(Config{
		APIKey:         "secret",
		ServerPort:     9600,
		PingTimeout:    200 * time.Millisecond,
		RequestTimeout: time.Second,
	}, WithBaseURL(srv.URL+"/api/v1"))
}

func TestNewBuildsBaseURL(t *testing.T) {
	c := New(Config{Address: "10.0.0.5", Port: 8083, ServerPort: 9600})
	assert.Equal(t, "http://10.0.0.5:8083/api/v1", c.baseURL)
	assert.Equal(t, "9600", c.serverPort)
	assert.Equal(t, DefaultPingTimeout, c.pingTimeout)
	assert.Equal(t, DefaultRequestTimeout, c.requestTimeout)
}

func TestPingOmitsAuthorization(t *testing.T) {
	var gotAuth string
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/api/v1/ping", r.URL.Path)
		gotAuth = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusOK)
	}))

	require.NoError(t, c.Ping(context.Background()))
	assert.Empty(t, gotAuth)
}

func TestPingTimeoutIsUnreachable(t *testing.T) {
	release := make(chan struct{})
	defer close(release)
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))

	start := time.Now()
	err := c.Ping(context.Background())
	assert.ErrorIs(t, err, ErrUnreachable)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestPingNon2xxIsUnreachable(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	assert.ErrorIs(t, c.Ping(context.Background()), ErrUnreachable)
}

func TestRegisterPostsSnapshot(t *testing.T) {
	var got roster.ServerInfo
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/v1/register/9600", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusCreated)
	}))

	info := roster.ServerInfo{
		ServerName: "Test Server",
		HTTPPort:   8081,
		TrackName:  "spa",
		Clients:    map[string]roster.Client{"S1": {Name: "Alice", SteamID: "S1", Car: "Lambo"}},
	}
	require.NoError(t, c.Register(context.Background(), info))
	assert.Equal(t, info, got)
}

func TestRegisterWireShape(t *testing.T) {
	var raw map[string]any
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&raw))
	}))

	require.NoError(t, c.Register(context.Background(), roster.ServerInfo{
		ServerName: "Test Server",
		HTTPPort:   8081,
		TrackName:  "spa",
		Clients:    map[string]roster.Client{},
	}))
	assert.Equal(t, "Test Server", raw["server_name"])
	assert.EqualValues(t, 8081, raw["http_port"])
	assert.Equal(t, "spa", raw["track_name"])
	assert.Equal(t, map[string]any{}, raw["clients"])
}

func TestRegisterRejected(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "invalid key", http.StatusUnauthorized)
	}))

	err := c.Register(context.Background(), roster.ServerInfo{})
	var rej *RejectedError
	require.True(t, errors.As(err, &rej))
	assert.Equal(t, http.StatusUnauthorized, rej.StatusCode)
	assert.Equal(t, "invalid key", rej.Body)
	assert.Equal(t, "register", rej.Op)
	assert.Contains(t, err.Error(), "invalid key")
}

func TestClientDeltas(t *testing.T) {
	type call struct {
		method, path string
		body         roster.Client
	}
	var calls []call
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		var cl roster.Client
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&cl))
		calls = append(calls, call{r.Method, r.URL.Path, cl})
	}))

	alice := roster.Client{Name: "Alice", SteamID: "S1", Car: "Lambo"}
	require.NoError(t, c.AddClient(context.Background(), alice))
	require.NoError(t, c.RemoveClient(context.Background(), alice))

	require.Len(t, calls, 2)
	assert.Equal(t, call{http.MethodPatch, "/api/v1/add_client/9600", alice}, calls[0])
	assert.Equal(t, call{http.MethodPatch, "/api/v1/remove_client/9600", alice}, calls[1])
}

func TestSendTransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c := New(Config{APIKey: "secret", ServerPort: 1}, WithBaseURL(url+"/api/v1"))
	err := c.AddClient(context.Background(), roster.Client{SteamID: "S1"})
	assert.ErrorIs(t, err, ErrUnreachable)
}
