package app_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/lexmartem/uznai/internal/app"
	"github.com/lexmartem/uznai/internal/domain"
	"github.com/lexmartem/uznai/internal/infra/memory"
)

func TestStartSessionOncePerQuiz(t *testing.T) {
	ctx := context.Background()
	service := newSessionService()

	session, err := service.Start(ctx, "alice", "quiz-1")
	if err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if session.Status != domain.SessionInProgress {
		t.Fatalf("expected in-progress session, got %s", session.Status)
	}
	if session.QuestionCount != 3 {
		t.Fatalf("expected 3 questions, got %d", session.QuestionCount)
	}
	if session.TimeLimitMinutes != 10 {
		t.Fatalf("expected 10 minute limit, got %d", session.TimeLimitMinutes)
	}

	if _, err := service.Start(ctx, "alice", "quiz-1"); !errors.Is(err, domain.ErrActiveSessionExists) {
		t.Fatalf("expected active session error, got %v", err)
	}

	// Another user and another quiz are unaffected.
	if _, err := service.Start(ctx, "bob", "quiz-1"); err != nil {
		t.Fatalf("start for bob failed: %v", err)
	}
}

func TestStartSessionUnknownQuiz(t *testing.T) {
	service := newSessionService()
	if _, err := service.Start(context.Background(), "alice", "missing"); !errors.Is(err, domain.ErrQuizNotFound) {
		t.Fatalf("expected quiz not found, got %v", err)
	}
}

func TestQuestionsOrderedAndPaged(t *testing.T) {
	ctx := context.Background()
	service := newSessionService()

	session, err := service.Start(ctx, "alice", "quiz-1")
	if err != nil {
		t.Fatalf("start failed: %v", err)
	}

	questions, total, err := service.Questions(ctx, session.ID, 0, 10)
	if err != nil {
		t.Fatalf("questions failed: %v", err)
	}
	if total != 3 || len(questions) != 3 {
		t.Fatalf("expected 3 questions, got total=%d len=%d", total, len(questions))
	}
	for i, q := range questions {
		if i > 0 && questions[i-1].OrderIndex > q.OrderIndex {
			t.Fatalf("questions out of order: %+v", questions)
		}
	}

	// Pagination.
	page, total, err := service.Questions(ctx, session.ID, 1, 2)
	if err != nil {
		t.Fatalf("questions page failed: %v", err)
	}
	if total != 3 || len(page) != 1 {
		t.Fatalf("expected 1 question on page 1, got total=%d len=%d", total, len(page))
	}
}

func TestSubmitAnswerTracksProgress(t *testing.T) {
	ctx := context.Background()
	service := newSessionService()
	session, _ := service.Start(ctx, "alice", "quiz-1")

	err := service.SubmitAnswer(ctx, session.ID, "q1", domain.AnswerSubmission{SelectedAnswerIDs: []string{"a2"}})
	if err != nil {
		t.Fatalf("submit failed: %v", err)
	}

	updated, _ := service.Get(ctx, session.ID)
	if updated.AnsweredCount != 1 {
		t.Fatalf("expected 1 answered, got %d", updated.AnsweredCount)
	}

	// Re-answering the same question must not double count.
	err = service.SubmitAnswer(ctx, session.ID, "q1", domain.AnswerSubmission{SelectedAnswerIDs: []string{"a1"}})
	if err != nil {
		t.Fatalf("resubmit failed: %v", err)
	}
	updated, _ = service.Get(ctx, session.ID)
	if updated.AnsweredCount != 1 {
		t.Fatalf("expected 1 answered after resubmit, got %d", updated.AnsweredCount)
	}
}

func TestSubmitAnswerValidation(t *testing.T) {
	ctx := context.Background()
	service := newSessionService()
	session, _ := service.Start(ctx, "alice", "quiz-1")

	// Neither shape.
	err := service.SubmitAnswer(ctx, session.ID, "q1", domain.AnswerSubmission{})
	if !errors.Is(err, domain.ErrInvalidSubmission) {
		t.Fatalf("expected invalid submission, got %v", err)
	}
	// Both shapes.
	err = service.SubmitAnswer(ctx, session.ID, "q1", domain.AnswerSubmission{SelectedAnswerIDs: []string{"a1"}, TextAnswer: "x"})
	if !errors.Is(err, domain.ErrInvalidSubmission) {
		t.Fatalf("expected invalid submission, got %v", err)
	}
	// Unknown question.
	err = service.SubmitAnswer(ctx, session.ID, "nope", domain.AnswerSubmission{TextAnswer: "x"})
	if !errors.Is(err, domain.ErrQuestionNotFound) {
		t.Fatalf("expected question not found, got %v", err)
	}
}

func TestCompleteScoresSession(t *testing.T) {
	ctx := context.Background()
	service := newSessionService()
	session, _ := service.Start(ctx, "alice", "quiz-1")

	// q1 correct selection, q2 wrong selection, q3 correct text modulo case.
	mustSubmit(t, service, session.ID, "q1", domain.AnswerSubmission{SelectedAnswerIDs: []string{"a2"}})
	mustSubmit(t, service, session.ID, "q2", domain.AnswerSubmission{SelectedAnswerIDs: []string{"t2"}})
	mustSubmit(t, service, session.ID, "q3", domain.AnswerSubmission{TextAnswer: "  Four "})

	completed, err := service.Complete(ctx, session.ID)
	if err != nil {
		t.Fatalf("complete failed: %v", err)
	}
	if completed.Status != domain.SessionCompleted || completed.CompletedAt == nil {
		t.Fatalf("expected completed session, got %+v", completed)
	}

	result, err := service.Result(ctx, session.ID)
	if err != nil {
		t.Fatalf("result failed: %v", err)
	}
	if result.Score != 66 {
		t.Fatalf("expected score 66, got %d", result.Score)
	}
	if len(result.QuestionResults) != 3 {
		t.Fatalf("expected 3 question results, got %d", len(result.QuestionResults))
	}
	if !result.QuestionResults[0].IsCorrect || result.QuestionResults[1].IsCorrect || !result.QuestionResults[2].IsCorrect {
		t.Fatalf("unexpected per-question outcome: %+v", result.QuestionResults)
	}

	// A completed session accepts no further operations.
	if _, err := service.Complete(ctx, session.ID); !errors.Is(err, domain.ErrSessionNotActive) {
		t.Fatalf("expected not active, got %v", err)
	}
	err = service.SubmitAnswer(ctx, session.ID, "q1", domain.AnswerSubmission{TextAnswer: "late"})
	if !errors.Is(err, domain.ErrSessionNotActive) {
		t.Fatalf("expected not active, got %v", err)
	}

	// And the user can start again.
	if _, err := service.Start(ctx, "alice", "quiz-1"); err != nil {
		t.Fatalf("restart after completion failed: %v", err)
	}
}

func TestMultiSelectNeedsExactSet(t *testing.T) {
	ctx := context.Background()
	store := memory.NewSessionStore()
	quizzes := memory.NewQuizStoreSeeded(map[string]domain.Quiz{
		"quiz-m": {
			Questions: []domain.Question{{
				ID:           "q1",
				QuestionType: domain.QuestionMultipleChoiceMultiple,
				Answers: []domain.Answer{
					{ID: "a1", IsCorrect: true},
					{ID: "a2", IsCorrect: true},
					{ID: "a3"},
				},
			}},
		},
	})
	service := app.NewSessionService(store, quizzes)

	cases := []struct {
		name     string
		selected []string
		want     int
	}{
		{"exact", []string{"a1", "a2"}, 100},
		{"partial", []string{"a1"}, 0},
		{"superset", []string{"a1", "a2", "a3"}, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			session, err := service.Start(ctx, "u-"+tc.name, "quiz-m")
			if err != nil {
				t.Fatalf("start failed: %v", err)
			}
			mustSubmit(t, service, session.ID, "q1", domain.AnswerSubmission{SelectedAnswerIDs: tc.selected})
			if _, err := service.Complete(ctx, session.ID); err != nil {
				t.Fatalf("complete failed: %v", err)
			}
			result, err := service.Result(ctx, session.ID)
			if err != nil {
				t.Fatalf("result failed: %v", err)
			}
			if result.Score != tc.want {
				t.Fatalf("expected score %d, got %d", tc.want, result.Score)
			}
		})
	}
}

func TestExpireIsIdempotent(t *testing.T) {
	ctx := context.Background()
	service := newSessionService()
	session, _ := service.Start(ctx, "alice", "quiz-1")

	if err := service.Expire(ctx, session.ID); err != nil {
		t.Fatalf("expire failed: %v", err)
	}
	// Duplicate expiry notifications from closing tabs are harmless.
	if err := service.Expire(ctx, session.ID); err != nil {
		t.Fatalf("second expire failed: %v", err)
	}

	expired, _ := service.Get(ctx, session.ID)
	if expired.Status != domain.SessionExpired {
		t.Fatalf("expected expired, got %s", expired.Status)
	}

	// Expiry never overwrites completion.
	session2, _ := service.Start(ctx, "alice", "quiz-1")
	mustSubmit(t, service, session2.ID, "q1", domain.AnswerSubmission{SelectedAnswerIDs: []string{"a2"}})
	if _, err := service.Complete(ctx, session2.ID); err != nil {
		t.Fatalf("complete failed: %v", err)
	}
	if err := service.Expire(ctx, session2.ID); err != nil {
		t.Fatalf("expire after complete failed: %v", err)
	}
	got, _ := service.Get(ctx, session2.ID)
	if got.Status != domain.SessionCompleted {
		t.Fatalf("expected completed to stick, got %s", got.Status)
	}
}

func TestResultBeforeCompletion(t *testing.T) {
	ctx := context.Background()
	service := newSessionService()
	session, _ := service.Start(ctx, "alice", "quiz-1")
	if _, err := service.Result(ctx, session.ID); !errors.Is(err, domain.ErrResultNotFound) {
		t.Fatalf("expected result not found, got %v", err)
	}
}

func TestListByUserNewestFirst(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	clock := now
	store := memory.NewSessionStore()
	service := app.NewSessionServiceWithClock(store, memory.NewQuizStoreSeeded(sessionQuizzes()), func() time.Time {
		clock = clock.Add(time.Minute)
		return clock
	})

	first, _ := service.Start(ctx, "alice", "quiz-1")
	if err := service.Expire(ctx, first.ID); err != nil {
		t.Fatalf("expire failed: %v", err)
	}
	second, _ := service.Start(ctx, "alice", "quiz-1")

	sessions, err := service.ListByUser(ctx, "alice")
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(sessions) != 2 || sessions[0].ID != second.ID {
		t.Fatalf("expected newest first, got %+v", sessions)
	}
}

func mustSubmit(t *testing.T, service *app.SessionService, sessionID, questionID string, submission domain.AnswerSubmission) {
	t.Helper()
	if err := service.SubmitAnswer(context.Background(), sessionID, questionID, submission); err != nil {
		t.Fatalf("submit %s failed: %v", questionID, err)
	}
}

func newSessionService() *app.SessionService {
	return app.NewSessionService(memory.NewSessionStore(), memory.NewQuizStoreSeeded(sessionQuizzes()))
}

func sessionQuizzes() map[string]domain.Quiz {
	return map[string]domain.Quiz{
		"quiz-1": {
			Title:            "Session quiz",
			TimeLimitMinutes: 10,
			Questions: []domain.Question{
				{
					ID:           "q2",
					QuestionText: "True or false?",
					QuestionType: domain.QuestionTrueFalse,
					OrderIndex:   1,
					Answers: []domain.Answer{
						{ID: "t1", AnswerText: "True", IsCorrect: true, OrderIndex: 0},
						{ID: "t2", AnswerText: "False", OrderIndex: 1},
					},
				},
				{
					ID:           "q1",
					QuestionText: "Pick the right option",
					QuestionType: domain.QuestionMultipleChoiceSingle,
					OrderIndex:   0,
					Answers: []domain.Answer{
						{ID: "a1", AnswerText: "Wrong", OrderIndex: 0},
						{ID: "a2", AnswerText: "Right", IsCorrect: true, OrderIndex: 1},
					},
				},
				{
					ID:           "q3",
					QuestionText: "What is 2 + 2, in words?",
					QuestionType: domain.QuestionShortAnswer,
					OrderIndex:   2,
					Answers: []domain.Answer{
						{ID: "s1", AnswerText: "four", IsCorrect: true},
					},
				},
			},
		},
	}
}
