package main

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/culturalbot/eventbot/internal/config"
)

func TestLoggingMiddleware_PassesThroughAndCapturesStatus(t *testing.T) {
	var status int
	handler := loggingMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte("ok"))
		status = w.(*statusRecorder).status
	}))

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	rr := httptest.NewRecorder()

	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusCreated {
		t.Fatalf("expected status %d, got %d", http.StatusCreated, rr.Code)
	}
	if status != http.StatusCreated {
		t.Fatalf("expected recorder to capture %d, got %d", http.StatusCreated, status)
	}
	if body := rr.Body.String(); body != "ok" {
		t.Fatalf("expected body %q, got %q", "ok", body)
	}
	if rr.Header().Get("X-Request-Id") == "" {
		t.Fatalf("expected a generated request id")
	}
}

func TestLoggingMiddleware_KeepsIncomingRequestID(t *testing.T) {
	handler := loggingMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-Id", "abc-123")
	rr := httptest.NewRecorder()

	handler.ServeHTTP(rr, req)

	if got := rr.Header().Get("X-Request-Id"); got != "abc-123" {
		t.Fatalf("expected request id to be propagated, got %q", got)
	}
}

func TestSetupLogger_Level(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	logger := setupLogger(config.LogConfig{Level: "warn", Format: "json"})
	if logger.Enabled(context.Background(), slog.LevelInfo) {
		t.Fatalf("expected info to be disabled at warn level")
	}
	if !logger.Enabled(context.Background(), slog.LevelWarn) {
		t.Fatalf("expected warn to be enabled")
	}

	logger = setupLogger(config.LogConfig{Level: "bogus"})
	if !logger.Enabled(context.Background(), slog.LevelInfo) {
		t.Fatalf("expected unknown level to default to info")
	}
}

func TestRootCmd_Subcommands(t *testing.T) {
	root := newRootCmd()

	for _, name := range []string{"serve", "sweep-media", "exchange-token"} {
		cmd, _, err := root.Find([]string{name})
		if err != nil || cmd.Name() != name {
			t.Fatalf("expected subcommand %q, got %v err=%v", name, cmd, err)
		}
	}
}

func TestExchangeTokenCmd(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("fb_exchange_token") != "short" {
			http.Error(w, "bad token", http.StatusBadRequest)
			return
		}
		_, _ = w.Write([]byte(`{"access_token":"long","token_type":"bearer","expires_in":3600}`))
	}))
	defer srv.Close()

	cmd := newExchangeTokenCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"--api-url", srv.URL, "--app-id", "app", "--app-secret", "secret", "--token", "short"})

	if err := cmd.Execute(); err != nil {
		t.Fatalf("Execute() error: %v", err)
	}
	if !strings.Contains(out.String(), "access_token=long") || !strings.Contains(out.String(), "expires_in=1h0m0s") {
		t.Fatalf("unexpected output %q", out.String())
	}
}

func TestExchangeTokenCmd_MissingFlags(t *testing.T) {
	t.Setenv("META_APP_ID", "")
	t.Setenv("META_APP_SECRET", "")
	t.Setenv("WHATSAPP_TOKEN", "")

	cmd := newExchangeTokenCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{})

	if err := cmd.Execute(); err == nil {
		t.Fatalf("expected error for missing flags")
	}
}
