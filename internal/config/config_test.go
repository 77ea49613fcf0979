package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Port != "8080" {
		t.Errorf("expected default port 8080, got %q", cfg.Port)
	}
	if cfg.GateStrategy != GateLexical {
		t.Errorf("expected lexical gate, got %q", cfg.GateStrategy)
	}
	if cfg.LLM.Model != DefaultModel {
		t.Errorf("expected model %q, got %q", DefaultModel, cfg.LLM.Model)
	}
	if cfg.LLM.BaseURL != DefaultBaseURL {
		t.Errorf("expected base url %q, got %q", DefaultBaseURL, cfg.LLM.BaseURL)
	}
	if cfg.SessionTTL != 60*time.Minute {
		t.Errorf("expected 60m session TTL, got %s", cfg.SessionTTL)
	}
	if cfg.RateLimit.Enabled() {
		t.Error("expected rate limiting to be disabled by default")
	}
}

func TestLoadMissingAPIKeyIsNotFatal(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("LLM_PROVIDER", "openai")

	if _, err := Load(); err != nil {
		t.Fatalf("expected missing key to be tolerated at startup, got %v", err)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("GATE_STRATEGY", "MODEL")
	t.Setenv("LLM_PROVIDER", "genai")
	t.Setenv("SESSION_TTL", "15m")
	t.Setenv("RATE_LIMIT_PER_MINUTE", "12")
	t.Setenv("CONVERSATION_LOG_ENABLED", "yes")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.GateStrategy != GateModel {
		t.Errorf("expected model gate, got %q", cfg.GateStrategy)
	}
	if cfg.LLM.Provider != ProviderGenAI {
		t.Errorf("expected genai provider, got %q", cfg.LLM.Provider)
	}
	if cfg.SessionTTL != 15*time.Minute {
		t.Errorf("expected 15m, got %s", cfg.SessionTTL)
	}
	if !cfg.RateLimit.Enabled() || cfg.RateLimit.RequestsPerMinute != 12 {
		t.Errorf("unexpected rate limit %+v", cfg.RateLimit)
	}
	if !cfg.ConversationLog.Enabled {
		t.Error("expected conversation log enabled")
	}
}

func TestLoadRejectsUnknownGate(t *testing.T) {
	t.Setenv("GATE_STRATEGY", "embedding")

	_, err := Load()
	if err == nil {
		t.Fatal("expected error for unknown gate strategy")
	}
	if !strings.Contains(err.Error(), "GATE_STRATEGY") {
		t.Errorf("expected GATE_STRATEGY in error, got %v", err)
	}
}

func TestIsDevelopment(t *testing.T) {
	cases := map[string]bool{
		"":                          true,
		"http://localhost:5173":     true,
		"http://127.0.0.1:8080":     true,
		"https://chat.example.edu": false,
	}
	for url, want := range cases {
		cfg := &Config{FrontendURL: url}
		if got := cfg.IsDevelopment(); got != want {
			t.Errorf("IsDevelopment(%q) = %v, want %v", url, got, want)
		}
	}
}

func TestDefaultCurriculum(t *testing.T) {
	cur := DefaultCurriculum()
	if err := cur.Validate(); err != nil {
		t.Fatalf("default curriculum invalid: %v", err)
	}
	if len(cur.SubjectSet()) != 8 {
		t.Errorf("expected 8 subjects, got %d", len(cur.SubjectSet()))
	}
	persona := cur.SystemPersona()
	if !strings.Contains(persona, "University of Sindh") {
		t.Errorf("persona should name the institution: %q", persona)
	}
	if !strings.Contains(persona, "pre-calculus") {
		t.Errorf("persona should name the subjects: %q", persona)
	}
}

func TestLoadCurriculumFromYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "curriculum.yaml")
	content := `institution: Example Polytechnic
subjects:
  - Operating Systems
  - Linear Algebra
persona: You tutor Example Polytechnic students.
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	cur, err := LoadCurriculum(path)
	if err != nil {
		t.Fatalf("LoadCurriculum failed: %v", err)
	}
	if cur.Institution != "Example Polytechnic" {
		t.Errorf("unexpected institution %q", cur.Institution)
	}
	if len(cur.SubjectSet()) != 2 {
		t.Fatalf("expected 2 subjects, got %d", len(cur.SubjectSet()))
	}
	if cur.SystemPersona() != "You tutor Example Polytechnic students." {
		t.Errorf("unexpected persona %q", cur.SystemPersona())
	}
	if cur.Title != DefaultCurriculum().Title {
		t.Errorf("expected default title to be kept, got %q", cur.Title)
	}
}

func TestLoadCurriculumRejectsUnknownFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "curriculum.yaml")
	if err := os.WriteFile(path, []byte("subjectz: [java]\n"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := LoadCurriculum(path); err == nil {
		t.Fatal("expected error for unknown field")
	}
}
