package httputil

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/putscan/pkg/config"
	"github.com/wonny/putscan/pkg/logger"
)

func testConfig() *config.Config {
	return &config.Config{
		Env:      "development",
		LogLevel: "error",
		Gateway: config.GatewayConfig{
			Timeout:     5 * time.Second,
			InsecureTLS: true,
		},
	}
}

func TestNew(t *testing.T) {
	client := New(testConfig(), logger.Nop())
	require.NotNil(t, client)

	assert.Equal(t, 5*time.Second, client.httpClient.Timeout)
	assert.Equal(t, 3, client.retryConfig.MaxRetries)

	transport, ok := client.httpClient.Transport.(*http.Transport)
	require.True(t, ok)
	require.NotNil(t, transport.TLSClientConfig)
	assert.True(t, transport.TLSClientConfig.InsecureSkipVerify)
}

func TestNewWithTimeout(t *testing.T) {
	client := NewWithTimeout(testConfig(), logger.Nop(), time.Second)
	assert.Equal(t, time.Second, client.httpClient.Timeout)
}

func TestWithRetry(t *testing.T) {
	client := New(testConfig(), logger.Nop()).WithRetry(5, 2*time.Second)
	assert.Equal(t, 5, client.retryConfig.MaxRetries)
	assert.Equal(t, 2*time.Second, client.retryConfig.InitialDelay)
}

func TestDisableRetry(t *testing.T) {
	var attempts int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&attempts, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := New(testConfig(), logger.Nop()).DisableRetry()
	assert.False(t, client.retryConfig.Enabled)

	err := client.GetJSON(context.Background(), server.URL, nil)
	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusServiceUnavailable, statusErr.StatusCode)
	assert.Equal(t, int32(1), atomic.LoadInt32(&attempts))
}

func TestGetJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"authenticated":true,"connected":true}`))
	}))
	defer server.Close()

	var out struct {
		Authenticated bool `json:"authenticated"`
		Connected     bool `json:"connected"`
	}
	err := New(testConfig(), logger.Nop()).GetJSON(context.Background(), server.URL, &out)
	require.NoError(t, err)
	assert.True(t, out.Authenticated)
	assert.True(t, out.Connected)
}

func TestPostJSONDecode(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		_, _ = w.Write([]byte(`{"session":"abc"}`))
	}))
	defer server.Close()

	var out struct {
		Session string `json:"session"`
	}
	err := New(testConfig(), logger.Nop()).PostJSONDecode(context.Background(), server.URL, map[string]string{}, &out)
	require.NoError(t, err)
	assert.Equal(t, "abc", out.Session)
}

func TestRetryOn5xx(t *testing.T) {
	var attempts int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&attempts, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	}))
	defer server.Close()

	client := New(testConfig(), logger.Nop()).WithRetry(3, 10*time.Millisecond)

	resp, err := client.Get(context.Background(), server.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, int32(3), atomic.LoadInt32(&attempts))
}

func TestWithPacing(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))
	defer server.Close()

	client := New(testConfig(), logger.Nop()).DisableRetry().WithPacing(20, 1)

	start := time.Now()
	for i := 0; i < 3; i++ {
		require.NoError(t, client.GetJSON(context.Background(), server.URL, nil))
	}
	// burst 1 at 20 rps: the 2nd and 3rd requests wait ~50ms each
	assert.GreaterOrEqual(t, time.Since(start), 80*time.Millisecond)
}

func TestPacingHonoursContext(t *testing.T) {
	client := New(testConfig(), logger.Nop()).DisableRetry().WithPacing(0.001, 1)
	client.limiter.Allow() // drain the single token

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := client.Get(ctx, "http://127.0.0.1:1")
	assert.Error(t, err)
}

func TestIsRetryableError(t *testing.T) {
	tests := []struct {
		statusCode int
		want       bool
	}{
		{200, false},
		{400, false},
		{404, false},
		{429, true},
		{500, true},
		{503, true},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("status_%d", tt.statusCode), func(t *testing.T) {
			assert.Equal(t, tt.want, IsRetryableError(tt.statusCode))
		})
	}
}
