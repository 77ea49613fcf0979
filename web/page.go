package web

import (
	"context"
	"errors"
	"html/template"
	"log/slog"
	"net/http"

	"github.com/ashureev/unichat/internal/agent"
	"github.com/ashureev/unichat/internal/config"
	"github.com/ashureev/unichat/internal/domain"
	"github.com/ashureev/unichat/internal/identity"
	"github.com/go-chi/chi/v5"
)

// ChatService is the part of agent.Service the page needs.
type ChatService interface {
	Submit(ctx context.Context, userID, sessionID, input string) (agent.Exchange, *domain.ChatSession, error)
	TakeIntro(ctx context.Context, userID, sessionID string) (bool, *domain.ChatSession, error)
	Reset(ctx context.Context, userID, sessionID string) error
}

// PageHandler serves the server-rendered chat page.
type PageHandler struct {
	svc        ChatService
	limiter    *agent.RateLimiter
	curriculum config.Curriculum
	tmpl       *template.Template
	intro      template.HTML
}

type pageData struct {
	Title    string
	Tagline  string
	Intro    template.HTML
	Entries  []template.HTML
	Subjects []string
	Notice   string
}

// NewPageHandler parses the embedded templates and renders the intro once.
func NewPageHandler(svc ChatService, limiter *agent.RateLimiter, cur config.Curriculum) (*PageHandler, error) {
	tmpl, err := parseTemplates()
	if err != nil {
		return nil, err
	}
	intro, err := RenderMarkdown(cur.Intro)
	if err != nil {
		return nil, err
	}
	return &PageHandler{svc: svc, limiter: limiter, curriculum: cur, tmpl: tmpl, intro: intro}, nil
}

// RegisterRoutes registers the page routes.
func (h *PageHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.Index)
	r.Post("/ask", h.Ask)
	r.Post("/reset", h.Reset)
	r.Handle("/static/*", StaticHandler())
}

// Index renders the page: intro on the first view of a session, then the
// question form and the log newest first.
func (h *PageHandler) Index(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())
	sessionID := identity.SessionIDFromContext(r.Context())

	showIntro, sess, err := h.svc.TakeIntro(r.Context(), userID, sessionID)
	if err != nil {
		slog.Error("failed to load chat session", "user_id", userID, "session_id", sessionID, "error", err)
		http.Error(w, "failed to load conversation", http.StatusInternalServerError)
		return
	}

	data := pageData{
		Title:    h.curriculum.Title,
		Tagline:  h.curriculum.Tagline,
		Subjects: h.curriculum.Subjects,
		Notice:   r.URL.Query().Get("notice"),
	}
	if showIntro {
		data.Intro = h.intro
	}
	for _, e := range sess.Log.NewestFirst() {
		rendered, err := RenderMarkdown(EntryMarkdown(e))
		if err != nil {
			slog.Warn("failed to render entry", "session_id", sessionID, "error", err)
			rendered = template.HTML(template.HTMLEscapeString(EntryMarkdown(e))) //nolint:gosec // escaped above.
		}
		data.Entries = append(data.Entries, rendered)
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := h.tmpl.ExecuteTemplate(w, "index.html", data); err != nil {
		slog.Error("failed to render page", "error", err)
	}
}

// Ask handles the form submission and redirects back to the page.
func (h *PageHandler) Ask(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())
	sessionID := identity.SessionIDFromContext(r.Context())

	if !h.limiter.Allow(userID) {
		http.Redirect(w, r, "/?notice=rate_limited", http.StatusSeeOther)
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}

	_, _, err := h.svc.Submit(r.Context(), userID, sessionID, r.PostFormValue("question"))
	if err != nil && !errors.Is(err, agent.ErrEmptyQuestion) {
		slog.Error("chat submission failed", "user_id", userID, "session_id", sessionID, "error", err)
		http.Error(w, "failed to process question", http.StatusInternalServerError)
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// Reset clears the session's conversation and redirects back to the page.
func (h *PageHandler) Reset(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())
	sessionID := identity.SessionIDFromContext(r.Context())

	if err := h.svc.Reset(r.Context(), userID, sessionID); err != nil {
		slog.Error("failed to reset conversation", "user_id", userID, "session_id", sessionID, "error", err)
		http.Error(w, "failed to reset conversation", http.StatusInternalServerError)
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}
