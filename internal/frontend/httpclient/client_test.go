package httpclient

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/iot2db/iot2db/internal/config"
	"github.com/iot2db/iot2db/internal/infrastructure/resilience"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func testOptions(t *testing.T) Options {
	opts := DefaultOptions("test")
	opts.Timeout = 2 * time.Second
	opts.Retries = 0
	opts.Logger = zaptest.NewLogger(t)
	return opts
}

func TestGetDocument(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Accept"))
		w.Write([]byte(`{"power":1.50}`))
	}))
	defer server.Close()

	doc, err := New(testOptions(t)).GetDocument(context.Background(), server.URL)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"power": json.Number("1.50")}, doc)
}

func TestBasicAuth(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok || user != "admin" || pass != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	_, err := New(testOptions(t)).GetDocument(context.Background(), server.URL)
	assert.ErrorIs(t, err, ErrStatus)

	password := "secret"
	opts := testOptions(t)
	opts.BasicAuth = &config.BasicAuth{Username: "admin", Password: &password}
	_, err = New(opts).GetDocument(context.Background(), server.URL)
	assert.NoError(t, err)
}

func TestPostDocument(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		body, _ := io.ReadAll(r.Body)
		w.Write(body)
	}))
	defer server.Close()

	doc, err := New(testOptions(t)).PostDocument(context.Background(), server.URL, map[string]any{"method": "x"})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"method": "x"}, doc)
}

func TestInvalidBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html>`))
	}))
	defer server.Close()

	_, err := New(testOptions(t)).GetDocument(context.Background(), server.URL)
	assert.Error(t, err)
}

func TestBreakerOpensAfterFailures(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	opts := testOptions(t)
	opts.Breaker = resilience.Settings{FailureThreshold: 2, Cooldown: time.Hour}
	client := New(opts)

	for i := 0; i < 2; i++ {
		_, err := client.GetDocument(context.Background(), server.URL)
		assert.ErrorIs(t, err, ErrStatus)
	}
	assert.Equal(t, resilience.StateOpen, client.BreakerState())

	_, err := client.GetDocument(context.Background(), server.URL)
	assert.ErrorIs(t, err, resilience.ErrCircuitOpen)
	assert.Equal(t, int32(2), hits.Load())
}

func TestRequestHonoursContext(t *testing.T) {
	opts := testOptions(t)
	opts.RateLimit = 0.001
	client := New(opts)

	_, err := client.Request(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = client.Request(ctx)
	assert.Error(t, err)
}
