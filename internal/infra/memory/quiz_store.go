package memory

import (
	"context"
	"sync"

	"github.com/lexmartem/uznai/internal/domain"
)

// QuizStore is an in-memory implementation of app.QuizStore with
// optimistic-concurrency writes.
type QuizStore struct {
	mu      sync.RWMutex
	quizzes map[string]domain.Quiz
}

func NewQuizStore() *QuizStore {
	return &QuizStore{quizzes: make(map[string]domain.Quiz)}
}

// NewQuizStoreSeeded is useful for tests and demo runs.
func NewQuizStoreSeeded(quizzes map[string]domain.Quiz) *QuizStore {
	store := NewQuizStore()
	for id, quiz := range quizzes {
		quiz.ID = id
		if quiz.Version == 0 {
			quiz.Version = 1
		}
		store.quizzes[id] = quiz
	}
	return store
}

func (s *QuizStore) Get(_ context.Context, quizID string) (domain.Quiz, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	quiz, ok := s.quizzes[quizID]
	if !ok {
		return domain.Quiz{}, domain.ErrQuizNotFound
	}
	return cloneQuiz(quiz), nil
}

func (s *QuizStore) Create(_ context.Context, quiz domain.Quiz) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if quiz.Version == 0 {
		quiz.Version = 1
	}
	s.quizzes[quiz.ID] = cloneQuiz(quiz)
	return nil
}

// Save stores the quiz only if the current version equals expectedVersion.
func (s *QuizStore) Save(_ context.Context, quiz domain.Quiz, expectedVersion int) (domain.Quiz, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.quizzes[quiz.ID]
	if !ok {
		return domain.Quiz{}, domain.ErrQuizNotFound
	}
	if current.Version != expectedVersion {
		return domain.Quiz{}, domain.ErrVersionConflict
	}
	s.quizzes[quiz.ID] = cloneQuiz(quiz)
	return cloneQuiz(quiz), nil
}

// cloneQuiz copies the nested slices so callers cannot mutate stored state.
func cloneQuiz(quiz domain.Quiz) domain.Quiz {
	out := quiz
	out.Collaborators = append([]string(nil), quiz.Collaborators...)
	out.Questions = make([]domain.Question, len(quiz.Questions))
	for i, q := range quiz.Questions {
		cq := q
		cq.Answers = append([]domain.Answer(nil), q.Answers...)
		out.Questions[i] = cq
	}
	return out
}
