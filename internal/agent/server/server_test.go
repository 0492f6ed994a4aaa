package server

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/autopeer-io/cartrack/internal/api"
	"github.com/autopeer-io/cartrack/internal/pkg/outcome"
	"github.com/autopeer-io/cartrack/internal/session"
	"github.com/autopeer-io/cartrack/pkg/options"
)

type staticSession struct {
	mu sync.Mutex
	st session.State
}

func (s *staticSession) Current() session.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st
}

func (s *staticSession) set(st session.State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st = st
}

type staticUpload struct {
	mu sync.Mutex
	o  outcome.Outcome[api.Ack]
}

func (s *staticUpload) Current() outcome.Outcome[api.Ack] {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.o
}

func (s *staticUpload) set(o outcome.Outcome[api.Ack]) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.o = o
}

func get(t *testing.T, srv *httptest.Server, path string) (int, string) {
	t.Helper()
	resp, err := http.Get(srv.URL + path)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(body)
}

func TestServerEndpoints(t *testing.T) {
	sessions := &staticSession{st: session.State{Kind: session.KindLoading}}
	uploads := &staticUpload{o: outcome.Idle[api.Ack]()}
	srv := httptest.NewServer(NewServer(options.NewHttpOptions(), sessions, uploads).Handler())
	defer srv.Close()

	code, body := get(t, srv, "/healthz")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", body)

	code, _ = get(t, srv, "/readyz")
	assert.Equal(t, http.StatusServiceUnavailable, code)

	sessions.set(session.State{
		Kind:     session.KindLoggedIn,
		Language: &api.LanguagePack{Code: "en"},
		Profile: &session.Profile{
			Email:     "d@example.com",
			Cars:      []api.Car{{ID: "c1", Token: "secret"}},
			ActiveCar: &api.Car{ID: "c1", Token: "secret"},
		},
	})
	code, _ = get(t, srv, "/readyz")
	assert.Equal(t, http.StatusOK, code)

	code, body = get(t, srv, "/v1/session")
	require.Equal(t, http.StatusOK, code)
	assert.NotContains(t, body, "secret")
	var st session.State
	require.NoError(t, json.Unmarshal([]byte(body), &st))
	assert.Equal(t, session.KindLoggedIn, st.Kind)
	assert.Equal(t, "c1", st.ActiveCar().ID)

	uploads.set(outcome.Success(api.Ack{Message: "stored"}))
	code, body = get(t, srv, "/v1/upload")
	require.Equal(t, http.StatusOK, code)
	var o outcome.Outcome[api.Ack]
	require.NoError(t, json.Unmarshal([]byte(body), &o))
	ack, ok := o.Value()
	require.True(t, ok)
	assert.Equal(t, "stored", ack.Message)

	code, body = get(t, srv, "/metrics")
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, "go_goroutines")

	code, _ = get(t, srv, "/v1/nope")
	assert.Equal(t, http.StatusNotFound, code)
}
