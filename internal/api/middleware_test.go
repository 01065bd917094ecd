package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"garagebook/internal/auth"
	"garagebook/internal/config"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubVerifier struct {
	claims *auth.Claims
	err    error
	got    string
}

func (v *stubVerifier) Verify(raw string) (*auth.Claims, error) {
	v.got = raw
	return v.claims, v.err
}

func TestGate(t *testing.T) {
	ok := func(w http.ResponseWriter, r *http.Request) {
		claims, found := auth.ClaimsFrom(r.Context())
		if !found {
			w.WriteHeader(http.StatusTeapot)
			return
		}
		w.Header().Set("X-Admin", claims.Email)
		w.WriteHeader(http.StatusOK)
	}

	tests := []struct {
		name   string
		header string
		err    error
		want   int
	}{
		{"missing header", "", nil, http.StatusUnauthorized},
		{"wrong scheme", "Basic abc", nil, http.StatusUnauthorized},
		{"scheme only", "Bearer", nil, http.StatusUnauthorized},
		{"rejected token", "Bearer abc", auth.ErrInvalidToken, http.StatusForbidden},
		{"valid token", "Bearer abc", nil, http.StatusOK},
		{"lowercase scheme", "bearer abc", nil, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			verifier := &stubVerifier{claims: &auth.Claims{Email: "admin@shop.com"}, err: tt.err}
			nop := zerolog.Nop()
			handler := NewGate(verifier, &nop).Wrap(ok)

			req := httptest.NewRequest(http.MethodGet, "/api/bookings", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			handler(rec, req)

			assert.Equal(t, tt.want, rec.Code)
			if tt.want == http.StatusOK {
				assert.Equal(t, "abc", verifier.got)
				assert.Equal(t, "admin@shop.com", rec.Header().Get("X-Admin"))
			}
		})
	}
}

func TestRequestIDMiddleware(t *testing.T) {
	var seen string
	handler := requestIDMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = requestIDFrom(r.Context())
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.NotEmpty(t, seen)
	assert.Equal(t, seen, rec.Header().Get(requestIDHeader))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(requestIDHeader, "req-42")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, "req-42", seen)
	assert.Equal(t, "req-42", rec.Header().Get(requestIDHeader))
}

func TestRecoveryMiddleware(t *testing.T) {
	nop := zerolog.Nop()
	handler := recoveryMiddleware(&nop, http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic(errors.New("boom"))
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"message":"Server error"}`, rec.Body.String())
}

func TestMiddlewareChain_PanicIsLoggedWithRequestID(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /boom", func(http.ResponseWriter, *http.Request) {
		panic("boom")
	})
	handler := wrapMiddleware(config.APIConfig{}, &logger, mux)

	req := httptest.NewRequest(http.MethodGet, "/boom", nil)
	req.Header.Set(requestIDHeader, "req-panic")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "req-panic", rec.Header().Get(requestIDHeader))

	var panicLine, accessLine map[string]any
	for _, line := range bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n")) {
		var entry map[string]any
		require.NoError(t, json.Unmarshal(line, &entry))
		switch entry["message"] {
		case "Recovered from panic":
			panicLine = entry
		case "http request":
			accessLine = entry
		}
	}

	require.NotNil(t, panicLine)
	require.NotNil(t, accessLine)
	assert.Equal(t, "req-panic", panicLine["request_id"])
	assert.Equal(t, "req-panic", accessLine["request_id"])
	assert.Equal(t, float64(http.StatusInternalServerError), accessLine["status"])
	assert.Equal(t, "GET /boom", accessLine["route"])
}

func TestCORSMiddleware(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	handler := corsMiddleware(config.APICORSConfig{AllowedOrigins: []string{"https://shop.example/"}}, next)

	t.Run("preflight", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodOptions, "/api/bookings", nil)
		req.Header.Set("Origin", "https://shop.example")
		req.Header.Set("Access-Control-Request-Method", http.MethodPost)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusNoContent, rec.Code)
		assert.Equal(t, "https://shop.example", rec.Header().Get("Access-Control-Allow-Origin"))
		assert.Contains(t, rec.Header().Get("Access-Control-Allow-Headers"), "Authorization")
	})

	t.Run("unknown origin", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/bookings", nil)
		req.Header.Set("Origin", "https://evil.example")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("wildcard", func(t *testing.T) {
		wild := corsMiddleware(config.APICORSConfig{AllowedOrigins: []string{"*"}}, next)
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Origin", "https://any.example")
		rec := httptest.NewRecorder()
		wild.ServeHTTP(rec, req)
		assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	})
}

func TestClientResolver(t *testing.T) {
	nop := zerolog.Nop()
	resolver := newClientResolver([]string{"10.0.0.1", "192.168.0.0/16", "not-an-ip"}, &nop)

	tests := []struct {
		name   string
		remote string
		xff    []string
		want   string
	}{
		{"direct peer", "203.0.113.5:51234", nil, "203.0.113.5"},
		{"forged header from untrusted peer", "203.0.113.5:51234", []string{"198.51.100.7"}, "203.0.113.5"},
		{"trusted proxy", "10.0.0.1:4000", []string{"198.51.100.7"}, "198.51.100.7"},
		{"client prepends fake hop", "10.0.0.1:4000", []string{"1.2.3.4, 198.51.100.7"}, "198.51.100.7"},
		{"proxy chain", "10.0.0.1:4000", []string{"198.51.100.7, 192.168.3.3"}, "198.51.100.7"},
		{"repeated headers", "10.0.0.1:4000", []string{"1.2.3.4", "198.51.100.7"}, "198.51.100.7"},
		{"all hops trusted", "10.0.0.1:4000", []string{"192.168.1.1, 192.168.2.2"}, "192.168.1.1"},
		{"garbled hop", "10.0.0.1:4000", []string{"198.51.100.7, garbage"}, "10.0.0.1"},
		{"trusted proxy without header", "10.0.0.1:4000", nil, "10.0.0.1"},
		{"unparsable remote", "garbage", nil, clientKeyUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remote
			for _, v := range tt.xff {
				req.Header.Add("X-Forwarded-For", v)
			}
			assert.Equal(t, tt.want, resolver.clientIP(req))
		})
	}
}

func TestRateLimiter_PerClient(t *testing.T) {
	limiter := newRateLimiter(config.APIRateLimitConfig{RPS: 0.001, Burst: 2}, newClientResolver(nil, nil))
	handler := limiter.Wrap(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusCreated) })

	call := func(ip string) int {
		req := httptest.NewRequest(http.MethodPost, "/api/bookings", nil)
		req.RemoteAddr = ip + ":1000"
		rec := httptest.NewRecorder()
		handler(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusCreated, call("1.1.1.1"))
	assert.Equal(t, http.StatusCreated, call("1.1.1.1"))
	assert.Equal(t, http.StatusTooManyRequests, call("1.1.1.1"))
	assert.Equal(t, http.StatusCreated, call("2.2.2.2"))

	rotating := httptest.NewRequest(http.MethodPost, "/api/bookings", nil)
	rotating.RemoteAddr = "1.1.1.1:1000"
	rotating.Header.Set("X-Forwarded-For", "9.9.9.9")
	rec := httptest.NewRecorder()
	handler(rec, rotating)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
}
