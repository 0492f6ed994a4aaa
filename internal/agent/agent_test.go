package agent

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/autopeer-io/cartrack/internal/api"
	"github.com/autopeer-io/cartrack/internal/auth"
	"github.com/autopeer-io/cartrack/internal/session"
	"github.com/autopeer-io/cartrack/internal/telemetry"
	"github.com/autopeer-io/cartrack/pkg/options"
)

type fakeBackend struct {
	mu      sync.Mutex
	uploads []api.LocationUpdate
	tokens  []string
}

func (b *fakeBackend) handler(t *testing.T, idToken string) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(api.PathConf, func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(api.Conf{
			DefaultLanguage: "en",
			Languages:       []api.LanguagePack{{Code: "en", Name: "English"}},
		})
	})
	mux.HandleFunc(api.PathMe, func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer "+idToken {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_ = json.NewEncoder(w).Encode(api.User{
			Email: "driver@example.com",
			Cars:  []api.Car{{ID: "car-1", Name: "Blue", Token: "cap-1"}},
		})
	})
	mux.HandleFunc(api.PathLocations, func(w http.ResponseWriter, r *http.Request) {
		var update api.LocationUpdate
		if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
			t.Errorf("decode upload: %v", err)
		}
		b.mu.Lock()
		b.uploads = append(b.uploads, update)
		b.tokens = append(b.tokens, r.Header.Get("X-Token"))
		b.mu.Unlock()
		_ = json.NewEncoder(w).Encode(api.Ack{Message: "stored"})
	})
	return mux
}

func (b *fakeBackend) count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.uploads)
}

func testJWT(email string) string {
	enc := base64.RawURLEncoding
	payload, _ := json.Marshal(map[string]any{"email": email, "exp": time.Now().Add(time.Hour).Unix()})
	return enc.EncodeToString([]byte(`{"alg":"none"}`)) + "." + enc.EncodeToString(payload) + ".sig"
}

func testConfig(t *testing.T, baseURL, tokenFile string) *Config {
	dir := t.TempDir()
	prefsFile := filepath.Join(dir, "preferences.yaml")
	require.NoError(t, os.WriteFile(prefsFile, []byte("selectedCarId: car-1\n"), 0o600))

	cfg := &Config{
		ApiOptions:       options.NewApiOptions(),
		AuthOptions:      options.NewAuthOptions(),
		MqttOptions:      options.NewMqttOptions(),
		S3Options:        options.NewS3Options(),
		HttpOptions:      options.NewHttpOptions(),
		SessionOptions:   options.NewSessionOptions(),
		TelemetryOptions: options.NewTelemetryOptions(),
	}
	cfg.ApiOptions.BaseURL = baseURL
	cfg.AuthOptions.TokenFile = tokenFile
	cfg.MqttOptions.Enabled = false
	cfg.S3Options.Enabled = false
	cfg.HttpOptions.Enabled = false
	cfg.SessionOptions.PreferencesFile = prefsFile
	cfg.TelemetryOptions.VehicleID = "test-vehicle"
	return cfg
}

func TestAgentUploadsForSelectedCar(t *testing.T) {
	idToken := testJWT("driver@example.com")
	tokenFile := filepath.Join(t.TempDir(), "id_token")
	require.NoError(t, os.WriteFile(tokenFile, []byte(idToken), 0o600))

	backend := &fakeBackend{}
	srv := httptest.NewServer(backend.handler(t, idToken))
	defer srv.Close()

	a, err := testConfig(t, srv.URL, tokenFile).NewAgent()
	require.NoError(t, err)
	assert.Nil(t, a.hub)
	assert.Nil(t, a.server)
	assert.Nil(t, a.archive)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	require.Eventually(t, func() bool {
		return a.session.Current().Kind == session.KindLoggedIn && a.session.Current().ActiveCar() != nil
	}, 5*time.Second, 10*time.Millisecond)
	assert.Equal(t, "car-1", a.session.Current().ActiveCar().ID)

	a.telemetry.ReplaceLocations([]telemetry.LocationFix{{Longitude: 13.4, Latitude: 52.5, Timestamp: 1}})
	require.Eventually(t, func() bool { return backend.count() == 1 }, 5*time.Second, 10*time.Millisecond)

	backend.mu.Lock()
	assert.Equal(t, "car-1", backend.uploads[0].CarID)
	assert.Equal(t, "cap-1", backend.tokens[0])
	assert.Len(t, backend.uploads[0].Updates, 1)
	backend.mu.Unlock()

	require.Eventually(t, func() bool { return a.uploader.Current().IsSuccess() }, 5*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("agent did not stop")
	}
}

func TestAgentWithoutCredentialStaysAnonymous(t *testing.T) {
	backend := &fakeBackend{}
	srv := httptest.NewServer(backend.handler(t, "unused"))
	defer srv.Close()

	cfg := testConfig(t, srv.URL, "")
	_, isAnonymous := cfg.NewTokenSource().(auth.Anonymous)
	assert.True(t, isAnonymous)

	a, err := cfg.NewAgent()
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	require.Eventually(t, func() bool {
		return a.session.Current().Kind == session.KindAnonymous
	}, 5*time.Second, 10*time.Millisecond)

	a.telemetry.ReplaceLocations([]telemetry.LocationFix{{Longitude: 1, Latitude: 2, Timestamp: 3}})
	time.Sleep(100 * time.Millisecond)
	assert.Zero(t, backend.count())

	cancel()
	require.NoError(t, <-done)
}

func TestAgentSignsOutWhenTokenFileRemoved(t *testing.T) {
	idToken := testJWT("driver@example.com")
	tokenFile := filepath.Join(t.TempDir(), "id_token")
	require.NoError(t, os.WriteFile(tokenFile, []byte(idToken), 0o600))

	backend := &fakeBackend{}
	srv := httptest.NewServer(backend.handler(t, idToken))
	defer srv.Close()

	cfg := testConfig(t, srv.URL, tokenFile)
	cfg.AuthOptions.RetryInterval = 20 * time.Millisecond
	a, err := cfg.NewAgent()
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	require.Eventually(t, func() bool {
		return a.session.Current().Kind == session.KindLoggedIn
	}, 5*time.Second, 10*time.Millisecond)

	require.NoError(t, os.Remove(tokenFile))
	token, err := a.auth.FetchToken(ctx)
	require.NoError(t, err)
	assert.Empty(t, token)
	require.Eventually(t, func() bool {
		return a.session.Current().Kind == session.KindAnonymous
	}, 5*time.Second, 10*time.Millisecond)

	// The sign-in loop picks up a new credential.
	require.NoError(t, os.WriteFile(tokenFile, []byte(idToken), 0o600))
	require.Eventually(t, func() bool {
		return a.session.Current().Kind == session.KindLoggedIn
	}, 5*time.Second, 10*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
}

func TestNewTokenSourceSelection(t *testing.T) {
	cfg := testConfig(t, "http://127.0.0.1:1", "/tmp/id")
	cfg.AuthOptions.RefreshTokenFile = "/tmp/refresh"
	_, ok := cfg.NewTokenSource().(*auth.FileSource)
	assert.True(t, ok)

	cfg.AuthOptions.TokenFile = ""
	src, ok := cfg.NewTokenSource().(*auth.RefreshSource)
	require.True(t, ok)
	assert.Equal(t, cfg.AuthOptions.TokenURL, src.Config.Endpoint.TokenURL)
}
