package httpclient

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"regintel/sources"
)

func testOptions(name string) Options {
	return Options{
		Name:        name,
		Delay:       time.Millisecond,
		Timeout:     time.Second,
		MaxRetries:  3,
		BaseDelay:   time.Millisecond,
		Cooldown429: time.Millisecond,
	}
}

func TestGetJSONSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Accept"))
		w.Write([]byte(`{"value": 42}`))
	}))
	defer srv.Close()

	client := New(testOptions("test"), zap.NewNop())

	var out struct {
		Value int `json:"value"`
	}
	err := client.GetJSON(context.Background(), srv.URL, nil, &out)
	require.NoError(t, err)
	assert.Equal(t, 42, out.Value)
}

func TestGetJSONSendsHeaders(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "secret", r.Header.Get("X-API-Key"))
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	client := New(testOptions("test"), zap.NewNop())
	var out map[string]any
	err := client.GetJSON(context.Background(), srv.URL, map[string]string{"X-API-Key": "secret"}, &out)
	require.NoError(t, err)
}

func TestGetJSONRecoversAfter429(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls <= 2 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte(`{"ok": true}`))
	}))
	defer srv.Close()

	client := New(testOptions("test"), zap.NewNop())
	var out struct {
		OK bool `json:"ok"`
	}
	err := client.GetJSON(context.Background(), srv.URL, nil, &out)
	require.NoError(t, err)
	assert.True(t, out.OK)
	assert.Equal(t, 3, calls)
}

func TestGetJSONRetriesServerErrors(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte(`{"ok": true}`))
	}))
	defer srv.Close()

	client := New(testOptions("test"), zap.NewNop())
	var out struct {
		OK bool `json:"ok"`
	}
	err := client.GetJSON(context.Background(), srv.URL, nil, &out)
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestGetJSONExhaustedRetries(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := New(testOptions("test"), zap.NewNop())
	var out map[string]any
	err := client.GetJSON(context.Background(), srv.URL, nil, &out)
	require.Error(t, err)
	assert.ErrorIs(t, err, sources.ErrSourceUnavailable)
	assert.Equal(t, 3, calls)
}

func TestGetJSONContextCancel(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	opts := testOptions("test")
	opts.BaseDelay = time.Minute
	client := New(opts, zap.NewNop())

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	var out map[string]any
	err := client.GetJSON(ctx, srv.URL, nil, &out)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestStripQuery(t *testing.T) {
	assert.Equal(t, "https://api.fda.gov/device/510k.json",
		stripQuery("https://api.fda.gov/device/510k.json?api_key=geheim&limit=100"))
	assert.Equal(t, "https://example.com/path", stripQuery("https://example.com/path"))
}
