package memory

import (
	"context"
	"sync"

	"github.com/lexmartem/uznai/internal/domain"
)

// SessionStore is an in-memory implementation of app.SessionStore.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[string]domain.QuizSession
	answers  map[string]map[string]domain.SessionAnswer // sessionID -> questionID -> answer
	results  map[string]domain.QuizResult               // sessionID -> result
}

func NewSessionStore() *SessionStore {
	return &SessionStore{
		sessions: make(map[string]domain.QuizSession),
		answers:  make(map[string]map[string]domain.SessionAnswer),
		results:  make(map[string]domain.QuizResult),
	}
}

func (s *SessionStore) Create(_ context.Context, session domain.QuizSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[session.ID] = session
	return nil
}

func (s *SessionStore) Get(_ context.Context, sessionID string) (domain.QuizSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[sessionID]
	if !ok {
		return domain.QuizSession{}, domain.ErrSessionNotFound
	}
	return session, nil
}

func (s *SessionStore) Update(_ context.Context, session domain.QuizSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[session.ID]; !ok {
		return domain.ErrSessionNotFound
	}
	s.sessions[session.ID] = session
	return nil
}

func (s *SessionStore) FindActive(_ context.Context, userID, quizID string) (domain.QuizSession, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, session := range s.sessions {
		if session.UserID == userID && session.QuizID == quizID && session.Status == domain.SessionInProgress {
			return session, true, nil
		}
	}
	return domain.QuizSession{}, false, nil
}

func (s *SessionStore) ListByUser(_ context.Context, userID string) ([]domain.QuizSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var sessions []domain.QuizSession
	for _, session := range s.sessions {
		if session.UserID == userID {
			sessions = append(sessions, session)
		}
	}
	return sessions, nil
}

func (s *SessionStore) SaveAnswer(_ context.Context, sessionID string, answer domain.SessionAnswer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	byQuestion, ok := s.answers[sessionID]
	if !ok {
		byQuestion = make(map[string]domain.SessionAnswer)
		s.answers[sessionID] = byQuestion
	}
	byQuestion[answer.QuestionID] = answer
	return nil
}

func (s *SessionStore) Answers(_ context.Context, sessionID string) (map[string]domain.SessionAnswer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]domain.SessionAnswer, len(s.answers[sessionID]))
	for questionID, answer := range s.answers[sessionID] {
		out[questionID] = answer
	}
	return out, nil
}

func (s *SessionStore) SaveResult(_ context.Context, result domain.QuizResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results[result.SessionID] = result
	return nil
}

func (s *SessionStore) ResultBySession(_ context.Context, sessionID string) (domain.QuizResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result, ok := s.results[sessionID]
	if !ok {
		return domain.QuizResult{}, domain.ErrResultNotFound
	}
	return result, nil
}
