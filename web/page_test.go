package web

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/ashureev/unichat/internal/agent"
	"github.com/ashureev/unichat/internal/answer"
	"github.com/ashureev/unichat/internal/config"
	"github.com/ashureev/unichat/internal/domain"
	"github.com/ashureev/unichat/internal/identity"
	"github.com/go-chi/chi/v5"
)

type fakeChat struct {
	sess      *domain.ChatSession
	submitted []string
	resets    int
	submitErr error
}

func newFakeChat() *fakeChat {
	return &fakeChat{sess: domain.NewChatSession("anon-1", "tab-1")}
}

func (f *fakeChat) Submit(_ context.Context, _, _ string, input string) (agent.Exchange, *domain.ChatSession, error) {
	if f.submitErr != nil {
		return agent.Exchange{}, nil, f.submitErr
	}
	if strings.TrimSpace(input) == "" {
		return agent.Exchange{}, f.sess, agent.ErrEmptyQuestion
	}
	f.submitted = append(f.submitted, input)
	f.sess.Log.Append(domain.SpeakerUser, input)
	f.sess.Log.Append(domain.SpeakerAssistant, answer.RefusalText)
	return agent.Exchange{Question: input, Result: answer.Refusal()}, f.sess, nil
}

func (f *fakeChat) TakeIntro(context.Context, string, string) (bool, *domain.ChatSession, error) {
	show := !f.sess.IntroShown
	f.sess.IntroShown = true
	return show, f.sess, nil
}

func (f *fakeChat) Reset(context.Context, string, string) error {
	f.resets++
	f.sess = domain.NewChatSession("anon-1", "tab-1")
	return nil
}

func newTestPage(t *testing.T, chat *fakeChat) http.Handler {
	t.Helper()
	h, err := NewPageHandler(chat, nil, config.DefaultCurriculum())
	if err != nil {
		t.Fatalf("NewPageHandler: %v", err)
	}
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(identity.WithIdentity(r.Context(), "anon-1", "tab-1")))
		})
	})
	h.RegisterRoutes(r)
	return r
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, path, nil))
	return rr
}

func postForm(t *testing.T, h http.Handler, path string, form url.Values) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestIndexShowsIntroOnce(t *testing.T) {
	h := newTestPage(t, newFakeChat())

	first := get(t, h, "/").Body.String()
	for _, want := range []string{"🎓 University Chatbot by Aqsa Shah", "Ask any question related to your subjects below:", "📝 Your Question:", "AssalamuAlaikum"} {
		if !strings.Contains(first, want) {
			t.Fatalf("first view missing %q", want)
		}
	}
	if second := get(t, h, "/").Body.String(); strings.Contains(second, "AssalamuAlaikum") {
		t.Fatal("intro should only be shown once per session")
	}
}

func TestAskRedirectsAndRendersNewestFirst(t *testing.T) {
	chat := newFakeChat()
	h := newTestPage(t, chat)

	rr := postForm(t, h, "/ask", url.Values{"question": {"What's the weather today?"}})
	if rr.Code != http.StatusSeeOther || rr.Header().Get("Location") != "/" {
		t.Fatalf("expected 303 to /, got %d %q", rr.Code, rr.Header().Get("Location"))
	}

	body := get(t, h, "/").Body.String()
	bot := strings.Index(body, "<strong>Bot:</strong>")
	you := strings.Index(body, "<strong>You:</strong>")
	if bot < 0 || you < 0 || bot > you {
		t.Fatalf("expected Bot entry before You entry, got bot=%d you=%d", bot, you)
	}
}

func TestAskEmptyQuestionIsIgnored(t *testing.T) {
	chat := newFakeChat()
	h := newTestPage(t, chat)

	rr := postForm(t, h, "/ask", url.Values{"question": {"   "}})
	if rr.Code != http.StatusSeeOther {
		t.Fatalf("expected 303, got %d", rr.Code)
	}
	if chat.sess.Log.Len() != 0 {
		t.Fatalf("expected empty log, got %d", chat.sess.Log.Len())
	}
}

func TestAskSubmitFailure(t *testing.T) {
	chat := newFakeChat()
	chat.submitErr = errors.New("database locked")
	h := newTestPage(t, chat)

	rr := postForm(t, h, "/ask", url.Values{"question": {"java"}})
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rr.Code)
	}
}

func TestResetClearsLog(t *testing.T) {
	chat := newFakeChat()
	h := newTestPage(t, chat)
	postForm(t, h, "/ask", url.Values{"question": {"java"}})

	rr := postForm(t, h, "/reset", nil)
	if rr.Code != http.StatusSeeOther || chat.resets != 1 {
		t.Fatalf("expected reset redirect, got %d resets=%d", rr.Code, chat.resets)
	}
	if chat.sess.Log.Len() != 0 {
		t.Fatal("expected empty log after reset")
	}
}

func TestModelOutputIsEscaped(t *testing.T) {
	chat := newFakeChat()
	chat.sess.Log.Append(domain.SpeakerAssistant, "<script>alert(1)</script>")
	h := newTestPage(t, chat)

	if body := get(t, h, "/").Body.String(); strings.Contains(body, "<script>alert(1)</script>") {
		t.Fatal("raw HTML from the model must not reach the page")
	}
}

func TestStaticStylesheet(t *testing.T) {
	h := newTestPage(t, newFakeChat())

	if rr := get(t, h, "/static/style.css"); rr.Code != http.StatusOK {
		t.Fatalf("expected 200 for stylesheet, got %d", rr.Code)
	}
	if rr := get(t, h, "/static/missing.js"); rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for missing asset, got %d", rr.Code)
	}
}
