package agent

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/ashureev/unichat/internal/answer"
	"github.com/ashureev/unichat/internal/identity"
	"github.com/ashureev/unichat/internal/store"
	"github.com/coder/websocket"
)

// WebSocketHandler serves the event-driven chat host on /ws/chat.
type WebSocketHandler struct {
	svc           *Service
	repo          store.Repository
	conns         *ConnectionRegistry
	limiter       *RateLimiter
	intro         string
	readLimit     int64
	allowedOrigin string
	isDev         bool
}

// WebSocketConfig configures a WebSocketHandler.
type WebSocketConfig struct {
	Intro         string
	ReadLimit     int64
	AllowedOrigin string
	IsDev         bool
}

// NewWebSocketHandler creates a websocket chat handler. limiter may be nil.
func NewWebSocketHandler(svc *Service, repo store.Repository, limiter *RateLimiter, cfg WebSocketConfig) *WebSocketHandler {
	if cfg.ReadLimit <= 0 {
		cfg.ReadLimit = defaultMaxRequestBodySize
	}
	return &WebSocketHandler{
		svc:           svc,
		repo:          repo,
		conns:         NewConnectionRegistry(),
		limiter:       limiter,
		intro:         cfg.Intro,
		readLimit:     cfg.ReadLimit,
		allowedOrigin: cfg.AllowedOrigin,
		isDev:         cfg.IsDev,
	}
}

// ActiveConnections returns the number of open chat sockets.
func (h *WebSocketHandler) ActiveConnections() int {
	return h.conns.Count()
}

// wsMessage is the client-to-server frame.
type wsMessage struct {
	Type    string `json:"type"`
	Content string `json:"content,omitempty"`
}

// wsEvent is the server-to-client frame.
type wsEvent struct {
	Type    string         `json:"type"`
	Content string         `json:"content,omitempty"`
	Outcome answer.Outcome `json:"outcome,omitempty"`
	Error   string         `json:"error,omitempty"`
	History []EntryView    `json:"history,omitempty"`
}

// ServeHTTP implements http.Handler for the websocket upgrade.
func (h *WebSocketHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())
	sessionID := identity.SessionIDFromContext(r.Context())
	slog.Info("WebSocket connection request", "user_id", userID, "session_id", sessionID, "ip", identity.IPFromRequest(r))

	if !h.checkOrigin(r) {
		http.Error(w, "origin not allowed", http.StatusForbidden)
		return
	}

	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		slog.Error("Failed to accept WebSocket", "error", err, "user_id", userID)
		return
	}
	defer func() {
		if closeErr := ws.Close(websocket.StatusNormalClosure, "session ended"); closeErr != nil {
			slog.Debug("Failed to close websocket", "error", closeErr, "user_id", userID)
		}
	}()
	ws.SetReadLimit(h.readLimit)

	h.conns.Register(userID, sessionID, ws)
	defer h.conns.Unregister(userID, sessionID, ws)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	if err := h.sendIntro(ctx, ws, userID, sessionID); err != nil {
		slog.Debug("Failed to send intro", "error", err, "user_id", userID)
		return
	}

	h.inputLoop(ctx, ws, userID, sessionID)
	slog.Info("Chat connection ended", "user_id", userID, "session_id", sessionID)
}

func (h *WebSocketHandler) checkOrigin(r *http.Request) bool {
	if h.isDev {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" || h.allowedOrigin == "*" {
		return true
	}
	if origin == h.allowedOrigin {
		return true
	}
	slog.Warn("WebSocket origin rejected", "origin", origin, "allowed", h.allowedOrigin)
	return false
}

func (h *WebSocketHandler) sendIntro(ctx context.Context, ws *websocket.Conn, userID, sessionID string) error {
	show, sess, err := h.svc.TakeIntro(ctx, userID, sessionID)
	if err != nil {
		slog.Warn("Failed to load chat session", "error", err, "user_id", userID, "session_id", sessionID)
		return h.writeJSON(ctx, ws, wsEvent{Type: "error", Error: "session_unavailable"})
	}
	if show && h.intro != "" {
		if err := h.writeJSON(ctx, ws, wsEvent{Type: "intro", Content: h.intro}); err != nil {
			return err
		}
	}
	if sess.Log.Len() == 0 {
		return nil
	}
	return h.writeJSON(ctx, ws, wsEvent{Type: "history", History: NewestFirstViews(&sess.Log)})
}

func (h *WebSocketHandler) inputLoop(ctx context.Context, ws *websocket.Conn, userID, sessionID string) {
	for {
		_, message, err := ws.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) != -1 {
				slog.Debug("WebSocket closed by client", "user_id", userID)
			} else if !errors.Is(err, context.Canceled) {
				slog.Warn("WebSocket read error", "error", err, "user_id", userID)
			}
			return
		}

		var msg wsMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			if err := h.writeJSON(ctx, ws, wsEvent{Type: "error", Error: "invalid_message"}); err != nil {
				return
			}
			continue
		}

		var out wsEvent
		switch msg.Type {
		case "message":
			out = h.handleMessage(ctx, userID, sessionID, msg.Content)
		case "history":
			sess, err := h.svc.Session(ctx, userID, sessionID)
			if err != nil {
				out = wsEvent{Type: "error", Error: "session_unavailable"}
				break
			}
			out = wsEvent{Type: "history", History: NewestFirstViews(&sess.Log)}
		case "reset":
			if err := h.svc.Reset(ctx, userID, sessionID); err != nil {
				slog.Error("Failed to reset conversation", "error", err, "user_id", userID, "session_id", sessionID)
				out = wsEvent{Type: "error", Error: "reset_failed"}
				break
			}
			out = wsEvent{Type: "reset"}
		case "ping":
			out = wsEvent{Type: "pong"}
		default:
			out = wsEvent{Type: "error", Error: "unknown_type"}
		}

		if err := h.writeJSON(ctx, ws, out); err != nil {
			slog.Debug("Failed to write websocket event", "error", err, "type", out.Type, "user_id", userID)
			return
		}

		go func() {
			updateCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := h.repo.UpdateLastSeen(updateCtx, userID, time.Now()); err != nil {
				slog.Warn("Failed to update last seen", "error", err)
			}
		}()
	}
}

func (h *WebSocketHandler) handleMessage(ctx context.Context, userID, sessionID, content string) wsEvent {
	if !h.limiter.Allow(userID) {
		return wsEvent{Type: "error", Error: "rate_limited"}
	}
	ex, sess, err := h.svc.Submit(ctx, userID, sessionID, content)
	if errors.Is(err, ErrEmptyQuestion) {
		return wsEvent{Type: "error", Error: "empty_message"}
	}
	if err != nil {
		slog.Error("Chat submission failed", "error", err, "user_id", userID, "session_id", sessionID)
		return wsEvent{Type: "error", Error: "submission_failed"}
	}
	return wsEvent{
		Type:    "reply",
		Content: ex.Result.Text,
		Outcome: ex.Result.Outcome,
		History: NewestFirstViews(&sess.Log),
	}
}

func (h *WebSocketHandler) writeJSON(ctx context.Context, ws *websocket.Conn, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	writeCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return ws.Write(writeCtx, websocket.MessageText, data)
}
