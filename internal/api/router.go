package api

import (
	"log/slog"
	"net/http"
	"runtime/debug"
)

func Router(h *Handler) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /v1/health", h.Health)

	mux.HandleFunc("GET /webhook", h.VerifyWebhook)
	mux.HandleFunc("POST /webhook", h.ReceiveWebhook)

	if h.adminToken != "" {
		mux.HandleFunc("GET /v1/contacts", h.requireAdmin(h.ListContacts))
		mux.HandleFunc("GET /v1/contacts/stats", h.requireAdmin(h.ContactStats))
		mux.HandleFunc("GET /v1/contacts/{phone}/messages", h.requireAdmin(h.ListContactMessages))

		if h.sweeper != nil {
			mux.HandleFunc("GET /v1/sweeper/status", h.requireAdmin(h.SweeperStatus))
			mux.HandleFunc("POST /v1/sweeper/start", h.requireAdmin(h.SweeperStart))
			mux.HandleFunc("POST /v1/sweeper/stop", h.requireAdmin(h.SweeperStop))
			mux.HandleFunc("POST /v1/sweeper/run", h.requireAdmin(h.SweeperRun))
		}
	}

	mux.HandleFunc("GET /", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("eventbot"))
	})

	return recoverMiddleware(mux)
}

func recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				slog.Error("panic serving request", "method", r.Method, "path", r.URL.Path, "panic", rec, "stack", string(debug.Stack()))
				http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, r)
	})
}
