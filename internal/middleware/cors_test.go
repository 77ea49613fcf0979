package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestCORS(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})
	tests := []struct {
		name       string
		allowed    []string
		origin     string
		method     string
		wantOrigin string
		wantCreds  string
		wantCode   int
	}{
		{name: "explicit origin", allowed: []string{"https://chat.example.edu"}, origin: "https://chat.example.edu", method: http.MethodGet, wantOrigin: "https://chat.example.edu", wantCreds: "true", wantCode: http.StatusTeapot},
		{name: "wildcard has no credentials", allowed: []string{"*"}, origin: "https://any.example.com", method: http.MethodGet, wantOrigin: "https://any.example.com", wantCode: http.StatusTeapot},
		{name: "foreign origin", allowed: []string{"https://chat.example.edu"}, origin: "https://evil.example.com", method: http.MethodGet, wantCode: http.StatusTeapot},
		{name: "preflight", allowed: []string{"*"}, origin: "https://any.example.com", method: http.MethodOptions, wantOrigin: "https://any.example.com", wantCode: http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := CORS(tt.allowed, "X-Unichat-Session-ID")(next)
			req := httptest.NewRequest(tt.method, "/api/chat", nil)
			req.Header.Set("Origin", tt.origin)
			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, req)

			if rr.Code != tt.wantCode {
				t.Fatalf("expected %d, got %d", tt.wantCode, rr.Code)
			}
			if got := rr.Header().Get("Access-Control-Allow-Origin"); got != tt.wantOrigin {
				t.Fatalf("Allow-Origin = %q, want %q", got, tt.wantOrigin)
			}
			if got := rr.Header().Get("Access-Control-Allow-Credentials"); got != tt.wantCreds {
				t.Fatalf("Allow-Credentials = %q, want %q", got, tt.wantCreds)
			}
			if tt.wantOrigin != "" {
				if got := rr.Header().Get("Access-Control-Allow-Headers"); got != "Content-Type, X-Unichat-Session-ID" {
					t.Fatalf("Allow-Headers = %q", got)
				}
			}
		})
	}
}
