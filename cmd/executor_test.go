package cmd

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func buildGet(t *testing.T, url string) func() (*http.Request, error) {
	t.Helper()
	return func() (*http.Request, error) {
		return http.NewRequestWithContext(context.Background(), http.MethodGet, url, nil)
	}
}

func TestExecuteRecoversAfterFailures(t *testing.T) {
	hits := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		if hits < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	exec := newRequestExecutor(srv.Client(), 3, time.Millisecond)
	resp, err := exec.execute(context.Background(), buildGet(t, srv.URL))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, 3, hits)
}

func TestExecuteExhaustsBudget(t *testing.T) {
	hits := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	exec := newRequestExecutor(srv.Client(), 3, time.Millisecond)
	_, err := exec.execute(context.Background(), buildGet(t, srv.URL))
	require.ErrorIs(t, err, errRequestExhausted)
	require.Equal(t, 3, hits)

	var se statusError
	require.ErrorAs(t, err, &se)
	require.Equal(t, http.StatusBadGateway, se.code)
}

func TestExecuteStopsOnContextCancel(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	exec := newRequestExecutor(srv.Client(), 5, 50*time.Millisecond)
	_, err := exec.execute(ctx, buildGet(t, srv.URL))
	require.ErrorIs(t, err, context.Canceled)
}

func TestIsTokenRejected(t *testing.T) {
	require.True(t, isTokenRejected(statusError{code: 419, status: "419 unknown"}))
	require.True(t, isTokenRejected(statusError{code: http.StatusForbidden, status: "403 Forbidden"}))
	require.False(t, isTokenRejected(statusError{code: http.StatusBadGateway, status: "502 Bad Gateway"}))
	require.False(t, isTokenRejected(nil))
}
