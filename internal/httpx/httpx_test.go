package httpx

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Accept"))
		w.Write([]byte(`{"fastestFee": 12}`))
	}))
	defer srv.Close()

	var v struct {
		FastestFee float64 `json:"fastestFee"`
	}
	require.NoError(t, GetJSON(context.Background(), NewClient(Options{Timeout: time.Second}), srv.URL, &v))
	assert.Equal(t, 12.0, v.FastestFee)
}

func TestGet_StatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, strings.Repeat("x", 500), http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := Get(context.Background(), srv.Client(), srv.URL, nil)
	var serr *StatusError
	require.True(t, errors.As(err, &serr))
	assert.Equal(t, http.StatusServiceUnavailable, serr.StatusCode)
	assert.LessOrEqual(t, len(serr.Body), 203)
}

func TestGetJSON_BadBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`not json`))
	}))
	defer srv.Close()

	var v map[string]any
	err := GetJSON(context.Background(), srv.Client(), srv.URL, &v)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode")
}

func TestNewClient_Proxy(t *testing.T) {
	c := NewClient(Options{Proxy: "127.0.0.1:9050", TorIsolation: true})
	tr, ok := c.Transport.(*http.Transport)
	require.True(t, ok)
	assert.Nil(t, tr.Proxy)
	assert.NotNil(t, tr.DialContext)
}
