package agent

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/ashureev/unichat/internal/answer"
	"github.com/ashureev/unichat/internal/api"
	"github.com/ashureev/unichat/internal/domain"
	"github.com/ashureev/unichat/internal/identity"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
)

// defaultMaxRequestBodySize is the default maximum allowed request body size (1MB).
const defaultMaxRequestBodySize = 1 << 20

// Handler serves the JSON chat API.
type Handler struct {
	svc         *Service
	limiter     *RateLimiter
	maxBodySize int64
}

// NewHandler creates a JSON API handler. limiter may be nil.
func NewHandler(svc *Service, limiter *RateLimiter, maxBodySize int64) *Handler {
	if maxBodySize <= 0 {
		maxBodySize = defaultMaxRequestBodySize
	}
	return &Handler{svc: svc, limiter: limiter, maxBodySize: maxBodySize}
}

// ChatRequest is the body of POST /api/chat.
type ChatRequest struct {
	Message string `json:"message"`
}

// EntryView is a conversation entry as rendered to clients.
type EntryView struct {
	Role    domain.Speaker `json:"role"`
	Speaker string         `json:"speaker"`
	Text    string         `json:"text"`
	At      time.Time      `json:"at"`
}

// ChatResponse is returned by POST /api/chat.
type ChatResponse struct {
	Reply     string         `json:"reply"`
	Outcome   answer.Outcome `json:"outcome"`
	InScope   bool           `json:"in_scope"`
	Reasoning string         `json:"reasoning,omitempty"`
	History   []EntryView    `json:"history"`
}

// HistoryResponse is returned by GET /api/history.
type HistoryResponse struct {
	SessionID  string      `json:"session_id"`
	IntroShown bool        `json:"intro_shown"`
	History    []EntryView `json:"history"`
}

// NewestFirstViews renders a log newest first.
func NewestFirstViews(log *domain.ConversationLog) []EntryView {
	entries := log.NewestFirst()
	views := make([]EntryView, 0, len(entries))
	for _, e := range entries {
		views = append(views, EntryView{Role: e.Speaker, Speaker: e.Speaker.Label(), Text: e.Text, At: e.At})
	}
	return views
}

// RegisterRoutes registers chat API routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/api/chat", h.HandleChat)
	r.Get("/api/history", h.HandleHistory)
	r.Delete("/api/history", h.HandleReset)
	r.Get("/api/subjects", h.HandleSubjects)
}

// HandleChat handles POST /api/chat.
func (h *Handler) HandleChat(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())
	sessionID := identity.SessionIDFromContext(r.Context())
	if userID == "" {
		api.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	if !h.limiter.Allow(userID) {
		api.Error(w, http.StatusTooManyRequests, "rate limit exceeded")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxBodySize)
	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			api.Error(w, http.StatusRequestEntityTooLarge, "request body too large")
			return
		}
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	ex, sess, err := h.svc.Submit(r.Context(), userID, sessionID, req.Message)
	if errors.Is(err, ErrEmptyQuestion) {
		api.Error(w, http.StatusBadRequest, "message is required")
		return
	}
	if err != nil {
		slog.Error("chat submission failed",
			"user_id", userID,
			"session_id", sessionID,
			"request_id", chiMiddleware.GetReqID(r.Context()),
			"error", err,
		)
		api.Error(w, http.StatusInternalServerError, "failed to process message")
		return
	}

	api.JSON(w, http.StatusOK, ChatResponse{
		Reply:     ex.Result.Text,
		Outcome:   ex.Result.Outcome,
		InScope:   ex.Verdict.InScope,
		Reasoning: ex.Verdict.Reasoning,
		History:   NewestFirstViews(&sess.Log),
	})
}

// HandleHistory handles GET /api/history.
func (h *Handler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())
	sessionID := identity.SessionIDFromContext(r.Context())

	sess, err := h.svc.Session(r.Context(), userID, sessionID)
	if err != nil {
		slog.Error("failed to load history", "user_id", userID, "session_id", sessionID, "error", err)
		api.Error(w, http.StatusInternalServerError, "failed to load history")
		return
	}
	api.JSON(w, http.StatusOK, HistoryResponse{
		SessionID:  sessionID,
		IntroShown: sess.IntroShown,
		History:    NewestFirstViews(&sess.Log),
	})
}

// HandleReset handles DELETE /api/history.
func (h *Handler) HandleReset(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())
	sessionID := identity.SessionIDFromContext(r.Context())

	if err := h.svc.Reset(r.Context(), userID, sessionID); err != nil {
		slog.Error("failed to reset conversation", "user_id", userID, "session_id", sessionID, "error", err)
		api.Error(w, http.StatusInternalServerError, "failed to reset conversation")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleSubjects handles GET /api/subjects.
func (h *Handler) HandleSubjects(w http.ResponseWriter, _ *http.Request) {
	api.JSON(w, http.StatusOK, map[string]any{
		"subjects": h.svc.Subjects(),
		"gate":     h.svc.GateName(),
	})
}
