package chat

import (
	"context"
	"errors"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/zhouzirui/snailgpt/backend/internal/model/chat"
	"github.com/zhouzirui/snailgpt/backend/internal/service/ai"
)

var ErrMessageRequired = errors.New("message is required")

// Completer issues completion calls.
type Completer interface {
	Complete(ctx context.Context, req ai.Request) ai.Result
}

// SessionStore persists session transcripts.
type SessionStore interface {
	Save(ctx context.Context, sess *chat.Session, explicitTitle string) error
	Load(ctx context.Context, id string) (chat.Session, error)
	List(ctx context.Context) ([]chat.Summary, error)
	ClearAll(ctx context.Context) (int, error)
}

// TurnRequest is one inbound user message.
type TurnRequest struct {
	Message string
	Title   string
	Extreme bool
}

// TurnResult describes how a turn went.
type TurnResult struct {
	Mode       ai.Mode
	Reply      string
	YieldedAny bool
	Failure    *ai.Failure
	Fault      error
	SaveErr    error
}

// Service runs chat turns and owns the process-wide current session.
type Service struct {
	completer Completer
	assembler *ai.Assembler
	store     SessionStore
	logger    logrus.FieldLogger

	mu      sync.RWMutex
	current chat.Session
}

// NewService wires the orchestrator.
func NewService(completer Completer, assembler *ai.Assembler, store SessionStore, logger logrus.FieldLogger) *Service {
	return &Service{
		completer: completer,
		assembler: assembler,
		store:     store,
		logger:    logger,
	}
}

// Turn runs one exchange against an explicit session and returns the updated
// session. Tokens are handed to onToken as soon as they are accepted by the
// filter; persistence happens after the stream ends.
func (s *Service) Turn(ctx context.Context, sess chat.Session, req TurnRequest, onToken func(string)) (chat.Session, TurnResult) {
	sess = sess.Clone()
	mode := ai.Classify(req.Message, req.Extreme)
	log := s.logger.WithFields(logrus.Fields{"session_id": sess.ID, "mode": mode})

	var res ai.Result
	messages, err := s.assembler.Assemble(ctx, mode, sess.History, req.Message)
	if err != nil {
		res = ai.Result{Failure: &ai.Failure{Kind: ai.FailureOther, Detail: err.Error()}}
	} else {
		res = s.completer.Complete(ctx, ai.Request{
			Messages: messages,
			Stream:   true,
			Params:   ai.ParamsFor(mode),
		})
	}

	filtered := ai.FilterStream(res, onToken)

	reply := filtered.FullText
	if reply == "" {
		reply = filtered.Fallback
	}
	sess.History = append(sess.History,
		chat.Message{Role: chat.RoleUser, Content: req.Message},
		chat.Message{Role: chat.RoleAssistant, Content: reply},
	)

	result := TurnResult{
		Mode:       mode,
		Reply:      reply,
		YieldedAny: filtered.YieldedAny,
		Failure:    res.Failure,
		Fault:      filtered.Fault,
	}

	// The turn is persisted even if the client went away mid-stream.
	if err := s.store.Save(context.WithoutCancel(ctx), &sess, req.Title); err != nil {
		result.SaveErr = err
		log.WithError(err).Error("failed to save session")
	}

	log.WithFields(logrus.Fields{
		"session_id": sess.ID,
		"yielded":    filtered.YieldedAny,
		"chars":      len(filtered.FullText),
	}).Info("chat turn completed")
	return sess, result
}

// Chat runs a turn on the current session and makes the result current.
func (s *Service) Chat(ctx context.Context, req TurnRequest, onToken func(string)) (chat.Session, TurnResult, error) {
	if req.Message == "" {
		return chat.Session{}, TurnResult{}, ErrMessageRequired
	}

	updated, result := s.Turn(ctx, s.Current(), req, onToken)

	s.mu.Lock()
	s.current = updated
	s.mu.Unlock()

	return updated.Clone(), result, nil
}

// Current returns a copy of the current session.
func (s *Service) Current() chat.Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current.Clone()
}

// OpenSession loads a persisted session and makes it current.
func (s *Service) OpenSession(ctx context.Context, id string) (chat.Session, error) {
	sess, err := s.store.Load(ctx, id)
	if err != nil {
		return chat.Session{}, err
	}

	s.mu.Lock()
	s.current = sess.Clone()
	s.mu.Unlock()

	return sess, nil
}

// ListSessions returns persisted session summaries, newest first.
func (s *Service) ListSessions(ctx context.Context) ([]chat.Summary, error) {
	return s.store.List(ctx)
}

// ClearCurrent forgets the current session without touching persisted records.
func (s *Service) ClearCurrent() {
	s.mu.Lock()
	s.current = chat.Session{}
	s.mu.Unlock()
}

// ClearAll forgets the current session and deletes every persisted record.
func (s *Service) ClearAll(ctx context.Context) error {
	s.ClearCurrent()

	removed, err := s.store.ClearAll(ctx)
	if err != nil {
		return err
	}
	s.logger.WithField("removed", removed).Info("cleared all sessions")
	return nil
}
