package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/autopeer-io/cartrack/internal/telemetry"
)

const mediaType = "application/vnd.cartrack.v1+json"

type countingTokens struct {
	mu     sync.Mutex
	tokens []string
	calls  int
}

func (c *countingTokens) FetchToken(context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	if len(c.tokens) == 0 {
		return "", nil
	}
	t := c.tokens[0]
	if len(c.tokens) > 1 {
		c.tokens = c.tokens[1:]
	}
	return t, nil
}

func (c *countingTokens) Calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

func newTestClient(srv *httptest.Server, tokens TokenSource) *Client {
	return NewClient(Config{
		BaseURL:   srv.URL,
		Timeout:   5 * time.Second,
		UserAgent: "cartrack-agent/test",
		MediaType: mediaType,
	}, tokens, WithHTTPClient(srv.Client()))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", mediaType)
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func expired(w http.ResponseWriter) {
	writeJSON(w, http.StatusUnauthorized, map[string]any{
		"errors": []map[string]string{{"key": KeyTokenExpired, "message": "expired"}},
	})
}

func TestRequestHeaders(t *testing.T) {
	var got http.Header
	var body []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Clone()
		body, _ = io.ReadAll(r.Body)
		writeJSON(w, http.StatusOK, Ack{Message: "ok"})
	}))
	defer srv.Close()

	c := newTestClient(srv, &countingTokens{tokens: []string{"id-1"}})
	ack, err := c.PostLocations(context.Background(), "car-token", &LocationUpdate{CarID: "car-1"})
	require.NoError(t, err)
	assert.Equal(t, "ok", ack.Message)

	assert.Equal(t, mediaType, got.Get("Accept"))
	assert.Equal(t, mediaType, got.Get("Content-Type"))
	assert.Equal(t, "cartrack-agent/test", got.Get("User-Agent"))
	assert.Equal(t, "XMLHttpRequest", got.Get("X-Requested-With"))
	assert.Equal(t, "Bearer id-1", got.Get("Authorization"))
	assert.Equal(t, "car-token", got.Get("X-Token"))
	assert.JSONEq(t, `{"updates":null,"carId":"car-1","car":{"timestamp":0}}`, string(body))
}

func TestAnonymousRequestOmitsAuthorization(t *testing.T) {
	var got http.Header
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Clone()
		writeJSON(w, http.StatusOK, Conf{DefaultLanguage: "en"})
	}))
	defer srv.Close()

	conf, err := newTestClient(srv, nil).Conf(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "en", conf.DefaultLanguage)
	assert.Empty(t, got.Get("Authorization"))
	assert.Empty(t, got.Get("X-Token"))
}

func TestIdentityTokenIsCached(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, User{Email: "driver@example.com"})
	}))
	defer srv.Close()

	tokens := &countingTokens{tokens: []string{"id-1"}}
	c := newTestClient(srv, tokens)
	for i := 0; i < 3; i++ {
		_, err := c.Me(context.Background())
		require.NoError(t, err)
	}
	assert.Equal(t, 1, tokens.Calls())

	c.InvalidateToken()
	_, err := c.Me(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, tokens.Calls())
}

func TestTokenFetchedAcrossInvalidationIsNotCached(t *testing.T) {
	var mu sync.Mutex
	var seen []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		seen = append(seen, r.Header.Get("Authorization"))
		mu.Unlock()
		writeJSON(w, http.StatusOK, User{Email: "driver@example.com"})
	}))
	defer srv.Close()

	var c *Client
	var calls int
	c = newTestClient(srv, TokenSourceFunc(func(context.Context) (string, error) {
		calls++
		if calls == 1 {
			// The identity changes while the old token is being fetched.
			c.InvalidateToken()
			return "id-old", nil
		}
		return "id-new", nil
	}))

	for i := 0; i < 2; i++ {
		_, err := c.Me(context.Background())
		require.NoError(t, err)
	}
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"Bearer id-old", "Bearer id-new"}, seen)
	assert.Equal(t, 2, calls)
}

func TestExpiredTokenIsRefreshedOnce(t *testing.T) {
	var requests atomic.Int32
	var auths []string
	var mu sync.Mutex
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		mu.Lock()
		auths = append(auths, r.Header.Get("Authorization"))
		mu.Unlock()
		if r.Header.Get("Authorization") == "Bearer stale" {
			expired(w)
			return
		}
		writeJSON(w, http.StatusOK, User{Email: "driver@example.com"})
	}))
	defer srv.Close()

	tokens := &countingTokens{tokens: []string{"stale", "fresh"}}
	user, err := newTestClient(srv, tokens).Me(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "driver@example.com", user.Email)

	assert.EqualValues(t, 2, requests.Load())
	assert.Equal(t, []string{"Bearer stale", "Bearer fresh"}, auths)
	assert.Equal(t, 2, tokens.Calls())
}

func TestTwoConsecutiveExpiriesFailWithoutThirdAttempt(t *testing.T) {
	var requests atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		expired(w)
	}))
	defer srv.Close()

	tokens := &countingTokens{tokens: []string{"stale", "also-stale"}}
	_, err := newTestClient(srv, tokens).Me(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAuthExpired)
	assert.EqualValues(t, 2, requests.Load())
}

func TestExpiryWithoutFreshTokenPropagatesOriginalError(t *testing.T) {
	var requests atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		expired(w)
	}))
	defer srv.Close()

	calls := 0
	tokens := TokenSourceFunc(func(context.Context) (string, error) {
		calls++
		if calls == 1 {
			return "stale", nil
		}
		return "", errors.New("provider unavailable")
	})

	_, err := newTestClient(srv, tokens).Me(context.Background())
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnauthorized, apiErr.Status)
	assert.EqualValues(t, 1, requests.Load())
}

func TestErrorTaxonomy(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		check   func(t *testing.T, err error)
	}{
		{
			name: "api error",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				writeJSON(w, http.StatusBadRequest, map[string]any{
					"errors": []map[string]string{{"key": "car_not_found", "message": "no such car"}},
				})
			},
			check: func(t *testing.T, err error) {
				var apiErr *APIError
				require.ErrorAs(t, err, &apiErr)
				assert.True(t, apiErr.HasKey("car_not_found"))
				assert.NotErrorIs(t, err, ErrAuthExpired)
			},
		},
		{
			name: "status error",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusBadGateway)
				_, _ = w.Write([]byte("<html>bad gateway</html>"))
			},
			check: func(t *testing.T, err error) {
				var statusErr *StatusError
				require.ErrorAs(t, err, &statusErr)
				assert.Equal(t, http.StatusBadGateway, statusErr.Code)
			},
		},
		{
			name: "empty envelope is a status error",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				writeJSON(w, http.StatusInternalServerError, map[string]any{"errors": []any{}})
			},
			check: func(t *testing.T, err error) {
				var statusErr *StatusError
				require.ErrorAs(t, err, &statusErr)
			},
		},
		{
			name: "decode error",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusOK)
				_, _ = w.Write([]byte("not json"))
			},
			check: func(t *testing.T, err error) {
				var decodeErr *DecodeError
				require.ErrorAs(t, err, &decodeErr)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var requests atomic.Int32
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				requests.Add(1)
				tt.handler(w, r)
			}))
			defer srv.Close()

			_, err := newTestClient(srv, nil).Conf(context.Background())
			tt.check(t, err)
			assert.EqualValues(t, 1, requests.Load(), "non-auth failures are never retried")
		})
	}
}

func TestNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c := NewClient(Config{BaseURL: url, Timeout: time.Second}, nil)
	_, err := c.Conf(context.Background())
	var netErr *NetworkError
	require.ErrorAs(t, err, &netErr)
}

func TestLocationUpdateRoundTripKeepsAbsentFields(t *testing.T) {
	speed := 42.0
	alt := 120.5
	in := LocationUpdate{
		Updates: []telemetry.LocationFix{
			{Longitude: 2.35, Latitude: 48.85, Altitude: &alt, Timestamp: 1000},
			{Longitude: 2.36, Latitude: 48.86, Timestamp: 2000},
		},
		CarID: "car-1",
		Car:   telemetry.Reading{Speed: &speed, Timestamp: 1500},
	}

	data, err := json.Marshal(in)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "accuracy")
	assert.NotContains(t, string(data), "batteryLevel")

	var out LocationUpdate
	require.NoError(t, json.Unmarshal(data, &out))
	assert.Equal(t, in, out)
	assert.Nil(t, out.Updates[1].Altitude)
	assert.Nil(t, out.Car.Gear)
}
