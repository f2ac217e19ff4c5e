// Package api serves the JSON chat relay.
package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/comigor/deepassist-go/internal/history"
	"github.com/comigor/deepassist-go/internal/logger"
	"github.com/comigor/deepassist-go/internal/middleware"
	"github.com/comigor/deepassist-go/internal/relay"
)

// maxRequestBodySize caps the /chat request body (1MB).
const maxRequestBodySize = 1 << 20

// SessionHeader lets callers pick a conversation without changing the body.
const SessionHeader = "X-Session-ID"

// JSON writes v as a JSON response with status.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.L.Warn("write json response", "error", err)
	}
}

// Handler serves POST /chat.
type Handler struct {
	relay *relay.Relay
	store *history.Store
}

// NewHandler creates a relay handler over store.
func NewHandler(r *relay.Relay, store *history.Store) *Handler {
	return &Handler{relay: r, store: store}
}

type chatRequest struct {
	Message   *string `json:"message"`
	SessionID string  `json:"session_id"`
}

// Chat handles POST /chat {"message": "..."}.
func (h *Handler) Chat(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)

	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		JSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = r.Header.Get(SessionHeader)
	}
	if sessionID == "" {
		sessionID = history.DefaultSession
	}

	// every failure, a missing message included, is a 500 carrying the raw error
	reply, err := h.relay.Handle(r.Context(), h.store, sessionID, req.Message)
	if err != nil {
		JSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	JSON(w, http.StatusOK, map[string]string{"response": reply})
}

// RegisterRoutes mounts the relay routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/chat", h.Chat)
}

// NewRouter builds the relay server's router with its middleware stack.
func NewRouter(h *Handler, allowedOrigins []string) http.Handler {
	r := chi.NewRouter()
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(middleware.AccessLog)
	r.Use(chiMiddleware.Recoverer)
	r.Use(middleware.CORS(allowedOrigins))

	h.RegisterRoutes(r)
	return r
}
