package identity

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/ashureev/unichat/internal/store/storetest"
)

type seen struct {
	userID    string
	sessionID string
}

func runMiddleware(t *testing.T, repo *storetest.Repo, req *http.Request) (*httptest.ResponseRecorder, seen) {
	t.Helper()
	var got seen
	h := Middleware(repo, true)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got.userID = UserIDFromContext(r.Context())
		got.sessionID = SessionIDFromContext(r.Context())
	}))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr, got
}

func TestMiddlewareIssuesIdentityAndSession(t *testing.T) {
	repo := storetest.New()
	rr, got := runMiddleware(t, repo, httptest.NewRequest(http.MethodGet, "/", nil))

	if !isValidAnonID(got.userID) {
		t.Fatalf("expected generated anon id, got %q", got.userID)
	}
	if !strings.HasPrefix(got.sessionID, "tab-") {
		t.Fatalf("expected generated session id, got %q", got.sessionID)
	}

	var anon, session *http.Cookie
	for _, c := range rr.Result().Cookies() {
		switch c.Name {
		case AnonCookieName:
			anon = c
		case SessionCookieName:
			session = c
		}
	}
	if anon == nil || anon.Value != got.userID {
		t.Fatalf("expected anon cookie for %q, got %+v", got.userID, anon)
	}
	if session == nil || session.MaxAge != 0 {
		t.Fatalf("expected browser-session cookie, got %+v", session)
	}

	user, err := repo.GetUser(context.Background(), got.userID)
	if err != nil || user == nil {
		t.Fatalf("expected user to be created, got %v, %v", user, err)
	}
}

func TestMiddlewareReusesCookies(t *testing.T) {
	repo := storetest.New()
	anonID := "anon_0123456789abcdef0123456789abcdef"

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: AnonCookieName, Value: anonID})
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: "tab-cafe"})
	_, got := runMiddleware(t, repo, req)

	if got.userID != anonID {
		t.Errorf("expected %q, got %q", anonID, got.userID)
	}
	if got.sessionID != "tab-cafe" {
		t.Errorf("expected tab-cafe, got %q", got.sessionID)
	}
}

func TestMiddlewareHeaderOverridesCookie(t *testing.T) {
	repo := storetest.New()

	req := httptest.NewRequest(http.MethodGet, "/api/history", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: "tab-cafe"})
	req.Header.Set(SessionHeaderName, "api-client-1")
	_, got := runMiddleware(t, repo, req)

	if got.sessionID != "api-client-1" {
		t.Errorf("expected header session, got %q", got.sessionID)
	}
}

func TestMiddlewareRejectsMalformedIDs(t *testing.T) {
	repo := storetest.New()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: AnonCookieName, Value: "anon_not-hex"})
	req.Header.Set(SessionHeaderName, "bad session id with spaces")
	_, got := runMiddleware(t, repo, req)

	if got.userID == "anon_not-hex" {
		t.Error("expected malformed anon id to be replaced")
	}
	if got.sessionID == "bad session id with spaces" {
		t.Error("expected malformed session id to be replaced")
	}
}

func TestDeriveUsername(t *testing.T) {
	if got := deriveUsername("anon_0123456789abcdef0123456789abcdef"); got != "anon-89abcdef" {
		t.Errorf("unexpected username %q", got)
	}
	if got := deriveUsername("x"); got != "anon-user" {
		t.Errorf("unexpected short username %q", got)
	}
}
