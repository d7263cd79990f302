package app

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/lexmartem/uznai/internal/domain"
)

// SessionStore abstracts how quiz sessions, submitted answers, and results are
// stored (in-memory, Redis-marked, etc).
type SessionStore interface {
	Create(ctx context.Context, session domain.QuizSession) error
	Get(ctx context.Context, sessionID string) (domain.QuizSession, error)
	Update(ctx context.Context, session domain.QuizSession) error
	FindActive(ctx context.Context, userID, quizID string) (domain.QuizSession, bool, error)
	ListByUser(ctx context.Context, userID string) ([]domain.QuizSession, error)
	SaveAnswer(ctx context.Context, sessionID string, answer domain.SessionAnswer) error
	Answers(ctx context.Context, sessionID string) (map[string]domain.SessionAnswer, error)
	SaveResult(ctx context.Context, result domain.QuizResult) error
	ResultBySession(ctx context.Context, sessionID string) (domain.QuizResult, error)
}

// QuizReader loads quiz content for session use cases; in production this is
// the Redis-cached read path.
type QuizReader interface {
	Get(ctx context.Context, quizID string) (domain.Quiz, error)
}

// SessionService is the session authority: it owns the lifecycle of timed
// quiz attempts and enforces the one-active-session rule.
type SessionService struct {
	sessions SessionStore
	quizzes  QuizReader
	now      func() time.Time
	newID    func() string
}

func NewSessionService(sessions SessionStore, quizzes QuizReader) *SessionService {
	return &SessionService{
		sessions: sessions,
		quizzes:  quizzes,
		now:      time.Now,
		newID:    uuid.NewString,
	}
}

// NewSessionServiceWithClock is test-only for deterministic timestamps.
func NewSessionServiceWithClock(sessions SessionStore, quizzes QuizReader, now func() time.Time) *SessionService {
	s := NewSessionService(sessions, quizzes)
	s.now = now
	return s
}

// Start creates a new in-progress session for (user, quiz). If the user
// already has one it fails with domain.ErrActiveSessionExists; the client is
// expected to re-fetch its session list and adopt the existing entry.
func (s *SessionService) Start(ctx context.Context, userID, quizID string) (domain.QuizSession, error) {
	quiz, err := s.quizzes.Get(ctx, quizID)
	if err != nil {
		return domain.QuizSession{}, err
	}

	if _, active, err := s.sessions.FindActive(ctx, userID, quizID); err != nil {
		return domain.QuizSession{}, err
	} else if active {
		return domain.QuizSession{}, domain.ErrActiveSessionExists
	}

	session := domain.QuizSession{
		ID:               s.newID(),
		QuizID:           quizID,
		UserID:           userID,
		StartedAt:        s.now(),
		Status:           domain.SessionInProgress,
		QuestionCount:    len(quiz.Questions),
		TimeLimitMinutes: int(quiz.TimeLimit() / time.Minute),
	}
	if err := s.sessions.Create(ctx, session); err != nil {
		return domain.QuizSession{}, err
	}
	return session, nil
}

// Get returns a session by id.
func (s *SessionService) Get(ctx context.Context, sessionID string) (domain.QuizSession, error) {
	return s.sessions.Get(ctx, sessionID)
}

// ListByUser returns all sessions of a user, most recently started first.
func (s *SessionService) ListByUser(ctx context.Context, userID string) ([]domain.QuizSession, error) {
	sessions, err := s.sessions.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].StartedAt.After(sessions[j].StartedAt)
	})
	return sessions, nil
}

// Questions returns one page of the session's questions in ascending
// orderIndex, with correctness flags stripped and the user's previous answers
// attached. Only in-progress sessions may fetch questions.
func (s *SessionService) Questions(ctx context.Context, sessionID string, page, size int) ([]domain.SessionQuestion, int, error) {
	session, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, 0, err
	}
	if session.Status != domain.SessionInProgress {
		return nil, 0, domain.ErrSessionNotActive
	}

	quiz, err := s.quizzes.Get(ctx, session.QuizID)
	if err != nil {
		return nil, 0, err
	}
	answers, err := s.sessions.Answers(ctx, sessionID)
	if err != nil {
		return nil, 0, err
	}

	questions := make([]domain.Question, len(quiz.Questions))
	copy(questions, quiz.Questions)
	sort.Slice(questions, func(i, j int) bool {
		return questions[i].OrderIndex < questions[j].OrderIndex
	})

	view := make([]domain.SessionQuestion, 0, len(questions))
	for _, q := range questions {
		view = append(view, sessionView(q, answers[q.ID]))
	}

	total := len(view)
	if size <= 0 {
		size = 10
	}
	start := page * size
	if start >= total {
		return []domain.SessionQuestion{}, total, nil
	}
	end := start + size
	if end > total {
		end = total
	}
	return view[start:end], total, nil
}

// SubmitAnswer upserts the answer for one question of an in-progress session.
// Exactly one payload shape must be present: selected option ids or free text.
func (s *SessionService) SubmitAnswer(ctx context.Context, sessionID, questionID string, submission domain.AnswerSubmission) error {
	if (len(submission.SelectedAnswerIDs) == 0) == (submission.TextAnswer == "") {
		return domain.ErrInvalidSubmission
	}

	session, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		return err
	}
	if session.Status != domain.SessionInProgress {
		return domain.ErrSessionNotActive
	}

	quiz, err := s.quizzes.Get(ctx, session.QuizID)
	if err != nil {
		return err
	}
	if !quizHasQuestion(quiz, questionID) {
		return domain.ErrQuestionNotFound
	}

	answer := domain.SessionAnswer{
		QuestionID:        questionID,
		SelectedAnswerIDs: submission.SelectedAnswerIDs,
		TextAnswer:        submission.TextAnswer,
		AnsweredAt:        s.now(),
	}
	if err := s.sessions.SaveAnswer(ctx, sessionID, answer); err != nil {
		return err
	}

	answers, err := s.sessions.Answers(ctx, sessionID)
	if err != nil {
		return err
	}
	session.AnsweredCount = len(answers)
	return s.sessions.Update(ctx, session)
}

// Complete transitions an in-progress session to completed, scores it, and
// stores the result.
func (s *SessionService) Complete(ctx context.Context, sessionID string) (domain.QuizSession, error) {
	session, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		return domain.QuizSession{}, err
	}
	if session.Status != domain.SessionInProgress {
		return domain.QuizSession{}, domain.ErrSessionNotActive
	}

	quiz, err := s.quizzes.Get(ctx, session.QuizID)
	if err != nil {
		return domain.QuizSession{}, err
	}
	answers, err := s.sessions.Answers(ctx, sessionID)
	if err != nil {
		return domain.QuizSession{}, err
	}

	now := s.now()
	session.Status = domain.SessionCompleted
	session.CompletedAt = &now
	if err := s.sessions.Update(ctx, session); err != nil {
		return domain.QuizSession{}, err
	}

	result := scoreSession(quiz, session, answers)
	result.ID = s.newID()
	result.CompletedAt = now
	if err := s.sessions.SaveResult(ctx, result); err != nil {
		return domain.QuizSession{}, err
	}
	return session, nil
}

// Expire marks an in-progress session expired. Expiring a session that is
// already completed or expired is a no-op, so duplicate expiry notifications
// from closing tabs are harmless.
func (s *SessionService) Expire(ctx context.Context, sessionID string) error {
	session, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		return err
	}
	if session.Status != domain.SessionInProgress {
		return nil
	}
	session.Status = domain.SessionExpired
	return s.sessions.Update(ctx, session)
}

// Result returns the stored result of a completed session.
func (s *SessionService) Result(ctx context.Context, sessionID string) (domain.QuizResult, error) {
	return s.sessions.ResultBySession(ctx, sessionID)
}

func sessionView(q domain.Question, answer domain.SessionAnswer) domain.SessionQuestion {
	options := make([]domain.SessionAnswerOption, 0, len(q.Answers))
	for _, a := range q.Answers {
		options = append(options, domain.SessionAnswerOption{
			ID:          a.ID,
			AnswerText:  a.AnswerText,
			OrderIndex:  a.OrderIndex,
			ImageURL:    a.ImageURL,
			CodeSnippet: a.CodeSnippet,
		})
	}
	sort.Slice(options, func(i, j int) bool { return options[i].OrderIndex < options[j].OrderIndex })

	view := domain.SessionQuestion{
		ID:           q.ID,
		QuestionText: q.QuestionText,
		QuestionType: q.QuestionType,
		OrderIndex:   q.OrderIndex,
		ImageURL:     q.ImageURL,
		CodeSnippet:  q.CodeSnippet,
		Answers:      options,
	}
	if answer.QuestionID != "" {
		view.UserAnswers = answer.SelectedAnswerIDs
	}
	return view
}

func quizHasQuestion(quiz domain.Quiz, questionID string) bool {
	for _, q := range quiz.Questions {
		if q.ID == questionID {
			return true
		}
	}
	return false
}
