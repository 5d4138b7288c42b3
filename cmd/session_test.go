package cmd

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSessionOpenCapturesToken(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/transparencia/faturas", func(w http.ResponseWriter, r *http.Request) {
		http.SetCookie(w, &http.Cookie{Name: "laravel_session", Value: "abc"})
		w.Write([]byte(tokenPage("tok-123")))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	cfg := testConfig(t, srv.URL)
	session := newPortalSession(cfg, "faturas")
	exec := newRequestExecutor(session.client, cfg.MaxAttempts, cfg.BaseDelay)

	require.NoError(t, session.open(context.Background(), exec))
	require.Equal(t, "tok-123", session.currentToken())
}

func TestSessionOpenTokenMissing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html><head></head><body>sem meta</body></html>"))
	}))
	defer srv.Close()

	cfg := testConfig(t, srv.URL)
	session := newPortalSession(cfg, "faturas")
	exec := newRequestExecutor(session.client, cfg.MaxAttempts, cfg.BaseDelay)

	err := session.open(context.Background(), exec)
	require.ErrorIs(t, err, errTokenMissing)
}

// An expired token answers 419; the search call must re-open the session and
// replay with the fresh token instead of giving up.
func TestSearchPageRefreshesRejectedToken(t *testing.T) {
	var mu sync.Mutex
	validToken := "tok-1"
	openCount := 0

	mux := http.NewServeMux()
	mux.HandleFunc("/transparencia/contratos", func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		openCount++
		w.Write([]byte(tokenPage(validToken)))
	})
	mux.HandleFunc("/transparencia/contratos/search", func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		if r.Header.Get("x-csrf-token") != validToken {
			w.WriteHeader(419)
			return
		}
		json.NewEncoder(w).Encode(searchResponse{Data: [][]string{{"linha"}}})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	cfg := testConfig(t, srv.URL)
	cfg.MaxAttempts = 1
	cfg.BaseDelay = time.Millisecond
	session := newPortalSession(cfg, "contratos")
	exec := newRequestExecutor(session.client, cfg.MaxAttempts, cfg.BaseDelay)

	require.NoError(t, session.open(context.Background(), exec))

	// Invalidate the session token server-side.
	mu.Lock()
	validToken = "tok-2"
	mu.Unlock()

	resp, err := searchPage(context.Background(), session, exec, pageRequest{draw: 1, start: 0, length: 10})
	require.NoError(t, err)
	require.Len(t, resp.Data, 1)
	require.Equal(t, "tok-2", session.currentToken())
	require.Equal(t, 2, openCount)
}
