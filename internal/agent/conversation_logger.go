package agent

import (
	"container/list"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"unicode"
)

// ConversationLogConfig controls NDJSON conversation transcripts.
type ConversationLogConfig struct {
	Enabled       bool
	Dir           string
	GlobalEnabled bool
	GlobalPath    string
	QueueSize     int
	// MaxOpenFiles bounds the per-session transcript handles kept open.
	MaxOpenFiles int
}

const (
	defaultMaxOpenTranscripts = 64
	eventConversationReset    = "conversation_reset"
)

// ConversationLogEvent is one line of a transcript.
type ConversationLogEvent struct {
	Timestamp  string         `json:"ts"`
	UserID     string         `json:"user_id"`
	SessionID  string         `json:"session_id"`
	Channel    string         `json:"channel"`
	Direction  string         `json:"direction,omitempty"`
	EventType  string         `json:"event_type"`
	ContentRaw string         `json:"content_raw,omitempty"`
	Content    string         `json:"content,omitempty"`
	Meta       map[string]any `json:"meta,omitempty"`
}

// ConversationLogger records conversation events without blocking the caller.
type ConversationLogger interface {
	Log(event ConversationLogEvent)
	Close() error
}

type noopConversationLogger struct{}

func (noopConversationLogger) Log(ConversationLogEvent) {}
func (noopConversationLogger) Close() error             { return nil }

// fileConversationLogger appends events to per-session NDJSON files from a
// single writer goroutine.
type fileConversationLogger struct {
	cfg    ConversationLogConfig
	logger *slog.Logger
	queue  chan ConversationLogEvent
	done   chan struct{}

	mu     sync.RWMutex
	closed bool

	// Per-session handles, least recently written at the back of lru.
	handlesMu sync.Mutex
	handles   map[string]*list.Element
	lru       *list.List
	global    *os.File
}

type openTranscript struct {
	path string
	f    *os.File
}

// NewConversationLogger returns a no-op logger when both outputs are disabled.
func NewConversationLogger(cfg ConversationLogConfig, logger *slog.Logger) (ConversationLogger, error) {
	if !cfg.Enabled && !cfg.GlobalEnabled {
		return noopConversationLogger{}, nil
	}
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 1000
	}
	if cfg.MaxOpenFiles <= 0 {
		cfg.MaxOpenFiles = defaultMaxOpenTranscripts
	}
	if cfg.Enabled {
		if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
			return nil, fmt.Errorf("create conversation log dir: %w", err)
		}
	}
	if cfg.GlobalEnabled {
		if err := os.MkdirAll(filepath.Dir(cfg.GlobalPath), 0o755); err != nil {
			return nil, fmt.Errorf("create global conversation log dir: %w", err)
		}
	}

	l := &fileConversationLogger{
		cfg:     cfg,
		logger:  logger,
		queue:   make(chan ConversationLogEvent, cfg.QueueSize),
		done:    make(chan struct{}),
		handles: make(map[string]*list.Element),
		lru:     list.New(),
	}
	go l.run()
	return l, nil
}

// Log enqueues an event; it is dropped with a warning when the queue is full.
func (l *fileConversationLogger) Log(event ConversationLogEvent) {
	if event.Content == "" && event.ContentRaw != "" {
		event.Content = cleanForReadability(event.ContentRaw)
	}

	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.closed {
		return
	}
	select {
	case l.queue <- event:
	default:
		l.logger.Warn("conversation log queue full, dropping event",
			"user_id", event.UserID,
			"session_id", event.SessionID,
			"event_type", event.EventType,
		)
	}
}

// Close drains the queue and closes all files.
func (l *fileConversationLogger) Close() error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil
	}
	l.closed = true
	close(l.queue)
	l.mu.Unlock()

	<-l.done
	return nil
}

func (l *fileConversationLogger) run() {
	defer close(l.done)
	defer l.closeAll()

	for event := range l.queue {
		line, err := json.Marshal(event)
		if err != nil {
			l.logger.Warn("failed to marshal conversation event", "error", err)
			continue
		}
		line = append(line, '\n')

		if l.cfg.Enabled {
			path := filepath.Join(l.cfg.Dir, safePathPart(event.UserID), safePathPart(event.SessionID)+".ndjson")
			l.writeTranscript(path, line)
			if event.EventType == eventConversationReset {
				l.closeTranscript(path)
			}
		}
		if l.cfg.GlobalEnabled {
			l.writeGlobal(line)
		}
	}
}

func (l *fileConversationLogger) writeTranscript(path string, line []byte) {
	l.handlesMu.Lock()
	defer l.handlesMu.Unlock()

	var f *os.File
	if el, ok := l.handles[path]; ok {
		l.lru.MoveToFront(el)
		f = el.Value.(*openTranscript).f
	} else {
		opened, err := openAppend(path)
		if err != nil {
			l.logger.Warn("failed to open conversation log", "path", path, "error", err)
			return
		}
		l.handles[path] = l.lru.PushFront(&openTranscript{path: path, f: opened})
		f = opened
		for l.lru.Len() > l.cfg.MaxOpenFiles {
			l.evict(l.lru.Back())
		}
	}
	if _, err := f.Write(line); err != nil {
		l.logger.Warn("failed to write conversation log", "path", path, "error", err)
	}
}

func (l *fileConversationLogger) closeTranscript(path string) {
	l.handlesMu.Lock()
	defer l.handlesMu.Unlock()
	if el, ok := l.handles[path]; ok {
		l.evict(el)
	}
}

// evict closes and forgets one handle. handlesMu must be held.
func (l *fileConversationLogger) evict(el *list.Element) {
	t := l.lru.Remove(el).(*openTranscript)
	delete(l.handles, t.path)
	if err := t.f.Close(); err != nil {
		l.logger.Warn("failed to close conversation log", "path", t.path, "error", err)
	}
}

func (l *fileConversationLogger) writeGlobal(line []byte) {
	if l.global == nil {
		f, err := openAppend(l.cfg.GlobalPath)
		if err != nil {
			l.logger.Warn("failed to open conversation log", "path", l.cfg.GlobalPath, "error", err)
			return
		}
		l.global = f
	}
	if _, err := l.global.Write(line); err != nil {
		l.logger.Warn("failed to write conversation log", "path", l.cfg.GlobalPath, "error", err)
	}
}

func (l *fileConversationLogger) closeAll() {
	l.handlesMu.Lock()
	for l.lru.Len() > 0 {
		l.evict(l.lru.Back())
	}
	l.handlesMu.Unlock()

	if l.global != nil {
		if err := l.global.Close(); err != nil {
			l.logger.Warn("failed to close conversation log", "path", l.cfg.GlobalPath, "error", err)
		}
	}
}

func openAppend(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	return os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
}

var unsafePathChars = regexp.MustCompile(`[^A-Za-z0-9._-]`)

func safePathPart(s string) string {
	s = unsafePathChars.ReplaceAllString(s, "_")
	s = strings.Trim(s, ".")
	if s == "" {
		return "unknown"
	}
	return s
}

var ansiSequence = regexp.MustCompile(`\x1b(\[[0-9;?]*[ -/]*[@-~]|\][^\x07]*\x07|[@-Z\\-_])`)

// cleanForReadability strips ANSI escapes and control characters.
func cleanForReadability(s string) string {
	s = ansiSequence.ReplaceAllString(s, "")
	s = strings.Map(func(r rune) rune {
		if r == '\n' || r == '\t' {
			return r
		}
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, s)
	return strings.TrimSpace(s)
}
