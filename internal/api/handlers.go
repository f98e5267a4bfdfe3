package api

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/culturalbot/eventbot/internal/model"
	"github.com/culturalbot/eventbot/internal/repo"
	"github.com/culturalbot/eventbot/internal/scheduler"
)

const maxWebhookBody = 1 << 20

type MessageHandler interface {
	HandleMessage(ctx context.Context, msg model.InboundMessage) error
}

type Handler struct {
	bot         MessageHandler
	repo        repo.ContactRepository
	sweeper     *scheduler.Scheduler
	verifyToken string
	adminToken  string
}

func NewHandler(bot MessageHandler, r repo.ContactRepository, sweeper *scheduler.Scheduler, verifyToken, adminToken string) *Handler {
	return &Handler{
		bot:         bot,
		repo:        r,
		sweeper:     sweeper,
		verifyToken: verifyToken,
		adminToken:  adminToken,
	}
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

// VerifyWebhook answers the platform's subscription handshake.
func (h *Handler) VerifyWebhook(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	mode := q.Get("hub.mode")
	token := q.Get("hub.verify_token")

	if mode != "subscribe" || token == "" ||
		subtle.ConstantTimeCompare([]byte(token), []byte(h.verifyToken)) != 1 {
		slog.Warn("webhook verification rejected", "mode", mode)
		w.WriteHeader(http.StatusForbidden)
		return
	}

	slog.Info("webhook verified")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(q.Get("hub.challenge")))
}

// ReceiveWebhook handles one delivery inside the request. Anything that
// goes wrong is logged and still acknowledged so the platform does not
// retry.
func (h *Handler) ReceiveWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
	if err != nil {
		slog.Warn("failed to read webhook body", "error", err)
		w.WriteHeader(http.StatusOK)
		return
	}

	msg, ok, err := ParseInbound(body)
	if err != nil {
		slog.Warn("failed to decode webhook payload", "error", err)
		w.WriteHeader(http.StatusOK)
		return
	}
	if !ok {
		slog.Debug("webhook delivery without messages")
		w.WriteHeader(http.StatusOK)
		return
	}

	// A dropped connection must not abort a half-processed message; the
	// store and HTTP clients carry their own timeouts.
	if err := h.bot.HandleMessage(context.WithoutCancel(r.Context()), msg); err != nil {
		slog.Error("failed to process message", "message_id", msg.ID, "phone", msg.From, "error", err)
	}
	w.WriteHeader(http.StatusOK)
}

func (h *Handler) ListContacts(w http.ResponseWriter, r *http.Request) {
	limit := parseInt(r.URL.Query().Get("limit"), 50)
	offset := parseInt(r.URL.Query().Get("offset"), 0)

	items, err := h.repo.ListContacts(r.Context(), limit, offset)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if items == nil {
		items = []model.Contact{}
	}

	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (h *Handler) ContactStats(w http.ResponseWriter, r *http.Request) {
	s, err := h.repo.Stats(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, s)
}

func (h *Handler) ListContactMessages(w http.ResponseWriter, r *http.Request) {
	phone := r.PathValue("phone")
	limit := parseInt(r.URL.Query().Get("limit"), 0)

	items, err := h.repo.ListMessages(r.Context(), phone, limit)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if items == nil {
		items = []model.HistoryEntry{}
	}

	writeJSON(w, http.StatusOK, map[string]any{"phoneNumber": phone, "items": items})
}

func (h *Handler) SweeperStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.sweeper.Status())
}

func (h *Handler) SweeperStart(w http.ResponseWriter, r *http.Request) {
	h.sweeper.Start()
	writeJSON(w, http.StatusOK, map[string]any{"running": h.sweeper.IsRunning()})
}

func (h *Handler) SweeperStop(w http.ResponseWriter, r *http.Request) {
	h.sweeper.Stop()
	writeJSON(w, http.StatusOK, map[string]any{"running": h.sweeper.IsRunning()})
}

func (h *Handler) SweeperRun(w http.ResponseWriter, r *http.Request) {
	if err := h.sweeper.RunOnce(r.Context()); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, h.sweeper.Status())
}

// requireAdmin guards next with a static bearer token.
func (h *Handler) requireAdmin(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || subtle.ConstantTimeCompare([]byte(token), []byte(h.adminToken)) != 1 {
			writeJSON(w, http.StatusUnauthorized, map[string]any{"error": "unauthorized"})
			return
		}
		next(w, r)
	}
}

func parseInt(raw string, def int) int {
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return v
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
