// Package agent runs the chat cycle: relevance gate, answer, conversation log.
package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/ashureev/unichat/internal/answer"
	"github.com/ashureev/unichat/internal/domain"
	"github.com/ashureev/unichat/internal/gate"
	"github.com/ashureev/unichat/internal/store"
)

// ErrEmptyQuestion is returned when a submission has no text.
var ErrEmptyQuestion = errors.New("question is empty")

// Answerer produces the display string for an accepted question.
type Answerer interface {
	Answer(ctx context.Context, question string) answer.Result
}

// Exchange is the outcome of one submission.
type Exchange struct {
	Question string
	Verdict  gate.Verdict
	Result   answer.Result
}

// Service provides the chat cycle over persisted per-tab sessions.
type Service struct {
	gate     gate.Gate
	answerer Answerer
	subjects []domain.Subject
	repo     store.Repository
	log      ConversationLogger
	logger   *slog.Logger

	// locks serialises the load-cycle-save sequence per session key. An
	// entry lives only while some caller holds or waits for it.
	locksMu sync.Mutex
	locks   map[string]*sessionLock
}

type sessionLock struct {
	mu   sync.Mutex
	refs int
}

// ServiceConfig bundles the collaborators of a Service.
type ServiceConfig struct {
	Gate     gate.Gate
	Answerer Answerer
	Subjects []domain.Subject
	Repo     store.Repository
	Log      ConversationLogger
	Logger   *slog.Logger
}

// NewService creates a chat service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Gate == nil {
		return nil, errors.New("relevance gate is required")
	}
	if cfg.Answerer == nil {
		return nil, errors.New("answerer is required")
	}
	if len(cfg.Subjects) == 0 {
		return nil, errors.New("at least one subject is required")
	}
	if cfg.Repo == nil {
		return nil, errors.New("repository is required")
	}
	if cfg.Log == nil {
		cfg.Log = noopConversationLogger{}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Service{
		gate:     cfg.Gate,
		answerer: cfg.Answerer,
		subjects: cfg.Subjects,
		repo:     cfg.Repo,
		log:      cfg.Log,
		logger:   cfg.Logger,
		locks:    make(map[string]*sessionLock),
	}, nil
}

// Subjects returns the configured subjects.
func (s *Service) Subjects() []domain.Subject {
	return s.subjects
}

// GateName returns the active gate strategy.
func (s *Service) GateName() string {
	return s.gate.Name()
}

// Ask runs one cycle against sess without persisting it. A blank input is
// rejected with ErrEmptyQuestion and leaves the log untouched; otherwise
// exactly two entries are appended, user first.
func (s *Service) Ask(ctx context.Context, sess *domain.ChatSession, input string) (Exchange, error) {
	if strings.TrimSpace(input) == "" {
		return Exchange{}, ErrEmptyQuestion
	}

	ex := Exchange{Question: input}
	ex.Verdict = s.gate.Check(ctx, input, s.subjects)
	if ex.Verdict.Err != nil {
		s.logger.Warn("relevance check tripped",
			"gate", s.gate.Name(),
			"user_id", sess.UserID,
			"session_id", sess.SessionID,
			"error", ex.Verdict.Err,
		)
	}

	if ex.Verdict.InScope {
		ex.Result = s.answerer.Answer(ctx, input)
	} else {
		ex.Result = answer.Refusal()
	}

	sess.Log.Append(domain.SpeakerUser, input)
	sess.Log.Append(domain.SpeakerAssistant, ex.Result.Text)

	s.logger.Info("question handled",
		"gate", s.gate.Name(),
		"user_id", sess.UserID,
		"session_id", sess.SessionID,
		"in_scope", ex.Verdict.InScope,
		"outcome", ex.Result.Outcome,
		"question_length", len(input),
	)
	return ex, nil
}

// Submit loads the session, runs Ask and saves the result. A failed save is
// logged, not returned: the reply has already been produced.
func (s *Service) Submit(ctx context.Context, userID, sessionID, input string) (Exchange, *domain.ChatSession, error) {
	unlock := s.lock(userID, sessionID)
	defer unlock()

	sess, err := s.load(ctx, userID, sessionID)
	if err != nil {
		return Exchange{}, nil, err
	}

	ex, err := s.Ask(ctx, sess, input)
	if err != nil {
		return Exchange{}, sess, err
	}

	s.logExchange(sess, ex)

	// The request context may already be cancelled by a disconnecting client;
	// the cycle is complete, so persist it regardless.
	saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := s.repo.SaveChatSession(saveCtx, sess); err != nil {
		s.logger.Error("failed to save chat session", "user_id", userID, "session_id", sessionID, "error", err)
	}
	return ex, sess, nil
}

// Session returns the stored session or a new empty one.
func (s *Service) Session(ctx context.Context, userID, sessionID string) (*domain.ChatSession, error) {
	unlock := s.lock(userID, sessionID)
	defer unlock()
	return s.load(ctx, userID, sessionID)
}

// TakeIntro reports whether the intro should be shown now, and records that
// it has been. It returns true once per session.
func (s *Service) TakeIntro(ctx context.Context, userID, sessionID string) (bool, *domain.ChatSession, error) {
	unlock := s.lock(userID, sessionID)
	defer unlock()

	sess, err := s.load(ctx, userID, sessionID)
	if err != nil {
		return false, nil, err
	}
	if sess.IntroShown {
		return false, sess, nil
	}
	sess.IntroShown = true
	if err := s.repo.SaveChatSession(ctx, sess); err != nil {
		return false, sess, fmt.Errorf("save intro flag: %w", err)
	}
	return true, sess, nil
}

// Reset starts a new conversation in the session.
func (s *Service) Reset(ctx context.Context, userID, sessionID string) error {
	unlock := s.lock(userID, sessionID)
	defer unlock()

	if err := s.repo.DeleteChatSession(ctx, userID, sessionID); err != nil {
		return err
	}
	s.log.Log(ConversationLogEvent{
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		UserID:    userID,
		SessionID: sessionID,
		Channel:   "session",
		EventType: eventConversationReset,
	})
	return nil
}

// Close flushes the conversation logger.
func (s *Service) Close() error {
	return s.log.Close()
}

func (s *Service) load(ctx context.Context, userID, sessionID string) (*domain.ChatSession, error) {
	sess, err := s.repo.GetChatSession(ctx, userID, sessionID)
	if err != nil {
		return nil, fmt.Errorf("load chat session: %w", err)
	}
	if sess == nil {
		sess = domain.NewChatSession(userID, sessionID)
	}
	return sess, nil
}

func (s *Service) lock(userID, sessionID string) func() {
	key := domain.SessionKey(userID, sessionID)

	s.locksMu.Lock()
	l, ok := s.locks[key]
	if !ok {
		l = &sessionLock{}
		s.locks[key] = l
	}
	l.refs++
	s.locksMu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		s.locksMu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(s.locks, key)
		}
		s.locksMu.Unlock()
	}
}

func (s *Service) logExchange(sess *domain.ChatSession, ex Exchange) {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	s.log.Log(ConversationLogEvent{
		Timestamp:  now,
		UserID:     sess.UserID,
		SessionID:  sess.SessionID,
		Channel:    "chat",
		Direction:  "outbound",
		EventType:  "chat_user_message",
		ContentRaw: ex.Question,
	})
	meta := map[string]any{
		"gate":      s.gate.Name(),
		"in_scope":  ex.Verdict.InScope,
		"reasoning": ex.Verdict.Reasoning,
		"outcome":   ex.Result.Outcome,
	}
	if ex.Verdict.Err != nil {
		meta["gate_error"] = ex.Verdict.Err.Error()
	}
	s.log.Log(ConversationLogEvent{
		Timestamp:  now,
		UserID:     sess.UserID,
		SessionID:  sess.SessionID,
		Channel:    "chat",
		Direction:  "inbound",
		EventType:  "chat_assistant_message",
		ContentRaw: ex.Result.Text,
		Meta:       meta,
	})
}
