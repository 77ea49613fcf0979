package agent

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ashureev/unichat/internal/answer"
	"github.com/ashureev/unichat/internal/gate"
	"github.com/ashureev/unichat/internal/identity"
	"github.com/ashureev/unichat/internal/llm/llmtest"
	"github.com/coder/websocket"
)

func dialChat(t *testing.T, fake *llmtest.Fake) (*websocket.Conn, context.Context) {
	t.Helper()
	svc, repo, _ := newTestService(t, gate.Lexical{}, fake)
	h := NewWebSocketHandler(svc, repo, nil, WebSocketConfig{Intro: "Welcome!", IsDev: true})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h.ServeHTTP(w, r.WithContext(identity.WithIdentity(r.Context(), "anon-ws", "tab-ws")))
	}))
	t.Cleanup(srv.Close)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	conn, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close(websocket.StatusNormalClosure, "") })
	return conn, ctx
}

func readEvent(t *testing.T, ctx context.Context, conn *websocket.Conn) wsEvent {
	t.Helper()
	_, data, err := conn.Read(ctx)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var ev wsEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		t.Fatalf("unmarshal %q: %v", data, err)
	}
	return ev
}

func sendMessage(t *testing.T, ctx context.Context, conn *websocket.Conn, msg wsMessage) {
	t.Helper()
	data, err := json.Marshal(msg)
	if err != nil {
		t.Fatal(err)
	}
	if err := conn.Write(ctx, websocket.MessageText, data); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func TestWebSocketIntroThenReply(t *testing.T) {
	conn, ctx := dialChat(t, &llmtest.Fake{Reply: "A class is a blueprint."})

	if ev := readEvent(t, ctx, conn); ev.Type != "intro" || ev.Content != "Welcome!" {
		t.Fatalf("expected intro event, got %+v", ev)
	}

	sendMessage(t, ctx, conn, wsMessage{Type: "message", Content: "java oop classes"})
	ev := readEvent(t, ctx, conn)
	if ev.Type != "reply" || ev.Content != "A class is a blueprint." || ev.Outcome != answer.OutcomeAnswered {
		t.Fatalf("unexpected reply %+v", ev)
	}
	if len(ev.History) != 2 || ev.History[0].Speaker != "Bot" {
		t.Fatalf("expected newest-first history of 2, got %+v", ev.History)
	}

	sendMessage(t, ctx, conn, wsMessage{Type: "message", Content: "What's the weather today?"})
	if ev := readEvent(t, ctx, conn); ev.Content != answer.RefusalText {
		t.Fatalf("expected refusal, got %+v", ev)
	}
}

func TestWebSocketPingEmptyAndUnknown(t *testing.T) {
	conn, ctx := dialChat(t, &llmtest.Fake{})
	readEvent(t, ctx, conn) // intro

	sendMessage(t, ctx, conn, wsMessage{Type: "ping"})
	if ev := readEvent(t, ctx, conn); ev.Type != "pong" {
		t.Fatalf("expected pong, got %+v", ev)
	}

	sendMessage(t, ctx, conn, wsMessage{Type: "message", Content: "   "})
	if ev := readEvent(t, ctx, conn); ev.Type != "error" || ev.Error != "empty_message" {
		t.Fatalf("expected empty_message error, got %+v", ev)
	}

	sendMessage(t, ctx, conn, wsMessage{Type: "resize"})
	if ev := readEvent(t, ctx, conn); ev.Error != "unknown_type" {
		t.Fatalf("expected unknown_type error, got %+v", ev)
	}
}

func TestWebSocketReset(t *testing.T) {
	conn, ctx := dialChat(t, &llmtest.Fake{Reply: "ok"})
	readEvent(t, ctx, conn)

	sendMessage(t, ctx, conn, wsMessage{Type: "message", Content: "java"})
	readEvent(t, ctx, conn)

	sendMessage(t, ctx, conn, wsMessage{Type: "reset"})
	if ev := readEvent(t, ctx, conn); ev.Type != "reset" {
		t.Fatalf("expected reset ack, got %+v", ev)
	}

	sendMessage(t, ctx, conn, wsMessage{Type: "history"})
	if ev := readEvent(t, ctx, conn); ev.Type != "history" || len(ev.History) != 0 {
		t.Fatalf("expected empty history, got %+v", ev)
	}
}

func TestCheckOrigin(t *testing.T) {
	h := &WebSocketHandler{allowedOrigin: "https://chat.example.edu"}

	req := httptest.NewRequest(http.MethodGet, "/ws/chat", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	if h.checkOrigin(req) {
		t.Fatal("expected foreign origin to be rejected")
	}
	req.Header.Set("Origin", "https://chat.example.edu")
	if !h.checkOrigin(req) {
		t.Fatal("expected configured origin to be allowed")
	}
	req.Header.Del("Origin")
	if !h.checkOrigin(req) {
		t.Fatal("expected missing origin to be allowed")
	}
}
