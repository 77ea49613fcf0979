// Package identity provides anonymous per-device identity and per-tab chat
// sessions.
package identity

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/ashureev/unichat/internal/domain"
	"github.com/ashureev/unichat/internal/store"
)

const (
	AnonCookieName    = "unichat_anon_id"
	SessionCookieName = "unichat_session"
	SessionHeaderName = "X-Unichat-Session-ID"
	anonCookieMaxAge  = 30 * 24 * time.Hour
	lastSeenInterval  = time.Minute
)

type contextKey int

const (
	userIDKey contextKey = iota
	sessionIDKey
)

var (
	anonIDPattern    = regexp.MustCompile(`^anon_[a-f0-9]{32}$`)
	sessionIDPattern = regexp.MustCompile(`^[A-Za-z0-9._:-]{1,128}$`)
)

// UserIDFromContext extracts the user ID from the request context.
func UserIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(userIDKey).(string); ok {
		return v
	}
	return ""
}

// SessionIDFromContext extracts the chat session ID from the request context.
func SessionIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(sessionIDKey).(string); ok {
		return v
	}
	return ""
}

// WithIdentity returns a context carrying the given identity.
func WithIdentity(ctx context.Context, userID, sessionID string) context.Context {
	ctx = context.WithValue(ctx, userIDKey, userID)
	return context.WithValue(ctx, sessionIDKey, sessionID)
}

func randomHex(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

func generateAnonID() (string, error) {
	h, err := randomHex(16)
	if err != nil {
		return "", fmt.Errorf("generate anonymous id: %w", err)
	}
	return "anon_" + h, nil
}

func generateSessionID() (string, error) {
	h, err := randomHex(8)
	if err != nil {
		return "", fmt.Errorf("generate session id: %w", err)
	}
	return "tab-" + h, nil
}

func isValidAnonID(id string) bool {
	return anonIDPattern.MatchString(id)
}

func isValidSessionID(id string) bool {
	return sessionIDPattern.MatchString(strings.TrimSpace(id))
}

func deriveUsername(userID string) string {
	if len(userID) > 13 {
		return "anon-" + userID[len(userID)-8:]
	}
	return "anon-user"
}

// ensureUser creates the visitor record on first sight and refreshes
// last_seen_at at most once per lastSeenInterval.
func ensureUser(ctx context.Context, repo store.Repository, userID string) error {
	user, err := repo.GetUser(ctx, userID)
	if err != nil {
		return err
	}

	now := time.Now()
	if user == nil {
		return repo.UpsertUser(ctx, &domain.User{
			UserID:     userID,
			Username:   deriveUsername(userID),
			LastSeenAt: now,
			CreatedAt:  now,
			UpdatedAt:  now,
		})
	}
	if user.IdleFor(now) >= lastSeenInterval {
		if err := repo.UpdateLastSeen(ctx, userID, now); err != nil {
			slog.Warn("failed to update last seen", "user_id", userID, "error", err)
		}
	}
	return nil
}

func getOrCreateAnonID(w http.ResponseWriter, r *http.Request, isDev bool) (string, error) {
	id := ""
	if c, err := r.Cookie(AnonCookieName); err == nil && isValidAnonID(c.Value) {
		id = c.Value
	} else {
		generated, err := generateAnonID()
		if err != nil {
			return "", err
		}
		id = generated
	}

	http.SetCookie(w, &http.Cookie{
		Name:     AnonCookieName,
		Value:    id,
		Path:     "/",
		MaxAge:   int(anonCookieMaxAge.Seconds()),
		Expires:  time.Now().Add(anonCookieMaxAge),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   !isDev,
	})
	return id, nil
}

// getOrCreateSessionID resolves the chat session: an explicit header or query
// parameter wins (API and websocket clients), then the browser-session cookie
// set for the HTML page. A new browser session gets a fresh id.
func getOrCreateSessionID(w http.ResponseWriter, r *http.Request, isDev bool) (string, error) {
	if sid := r.Header.Get(SessionHeaderName); isValidSessionID(sid) {
		return strings.TrimSpace(sid), nil
	}
	if sid := r.URL.Query().Get("session_id"); isValidSessionID(sid) {
		return strings.TrimSpace(sid), nil
	}
	if c, err := r.Cookie(SessionCookieName); err == nil && isValidSessionID(c.Value) {
		return c.Value, nil
	}

	sid, err := generateSessionID()
	if err != nil {
		return "", err
	}
	// No MaxAge: the cookie, and with it the conversation, ends with the browser session.
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    sid,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   !isDev,
	})
	return sid, nil
}

// Middleware injects anonymous per-device identity and the chat session ID.
func Middleware(repo store.Repository, isDev bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, err := getOrCreateAnonID(w, r, isDev)
			if err != nil {
				http.Error(w, `{"error":"failed to establish anonymous identity"}`, http.StatusInternalServerError)
				return
			}

			if err := ensureUser(r.Context(), repo, userID); err != nil {
				slog.Error("failed to initialize anonymous user", "user_id", userID, "error", err)
				http.Error(w, `{"error":"failed to initialize anonymous user"}`, http.StatusInternalServerError)
				return
			}

			sessionID, err := getOrCreateSessionID(w, r, isDev)
			if err != nil {
				http.Error(w, `{"error":"failed to establish chat session"}`, http.StatusInternalServerError)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), userID, sessionID)))
		})
	}
}

// IPFromRequest returns a normalized remote IP for optional request tracing.
func IPFromRequest(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
