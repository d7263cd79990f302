package rest

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/lexmartem/uznai/internal/app"
	"github.com/lexmartem/uznai/internal/domain"
	"github.com/lexmartem/uznai/internal/infra/memory"
	transport "github.com/lexmartem/uznai/internal/transport/http"
)

func TestSessionFlow(t *testing.T) {
	ctx := context.Background()
	server := newAuthority(t)
	client := NewClient(server.URL, "alice")

	session, err := client.StartSession(ctx, "quiz-1")
	if err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if session.Status != domain.SessionInProgress || session.QuestionCount != 2 {
		t.Fatalf("unexpected session: %+v", session)
	}

	// The one-active rule crosses the wire as the shared sentinel.
	if _, err := client.StartSession(ctx, "quiz-1"); !errors.Is(err, domain.ErrActiveSessionExists) {
		t.Fatalf("expected active session sentinel, got %v", err)
	}

	sessions, err := client.ListSessions(ctx)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(sessions) != 1 || sessions[0].ID != session.ID {
		t.Fatalf("expected the started session, got %+v", sessions)
	}

	questions, total, err := client.SessionQuestions(ctx, session.ID, 0, 10)
	if err != nil {
		t.Fatalf("questions failed: %v", err)
	}
	if total != 2 || len(questions) != 2 {
		t.Fatalf("expected 2 questions, got total=%d len=%d", total, len(questions))
	}
	for _, q := range questions {
		for _, a := range q.Answers {
			if a.AnswerText == "" {
				t.Fatalf("expected answer text in exam view, got %+v", a)
			}
		}
	}

	err = client.SubmitAnswer(ctx, session.ID, questions[0].ID, domain.AnswerSubmission{SelectedAnswerIDs: []string{"a2"}})
	if err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	err = client.SubmitAnswer(ctx, session.ID, questions[1].ID, domain.AnswerSubmission{TextAnswer: "four"})
	if err != nil {
		t.Fatalf("submit failed: %v", err)
	}

	refreshed, err := client.GetSession(ctx, session.ID)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if refreshed.AnsweredCount != 2 {
		t.Fatalf("expected 2 answered, got %d", refreshed.AnsweredCount)
	}

	completed, err := client.CompleteSession(ctx, session.ID)
	if err != nil {
		t.Fatalf("complete failed: %v", err)
	}
	if completed.Status != domain.SessionCompleted {
		t.Fatalf("expected completed, got %s", completed.Status)
	}

	result, err := client.SessionResult(ctx, session.ID)
	if err != nil {
		t.Fatalf("result failed: %v", err)
	}
	if result.Score != 100 {
		t.Fatalf("expected score 100, got %d", result.Score)
	}
}

func TestExpireSession(t *testing.T) {
	ctx := context.Background()
	server := newAuthority(t)
	client := NewClient(server.URL, "alice")

	session, err := client.StartSession(ctx, "quiz-1")
	if err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if err := client.ExpireSession(ctx, session.ID); err != nil {
		t.Fatalf("expire failed: %v", err)
	}
	// Duplicate notifications are accepted.
	if err := client.ExpireSession(ctx, session.ID); err != nil {
		t.Fatalf("second expire failed: %v", err)
	}

	expired, err := client.GetSession(ctx, session.ID)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if expired.Status != domain.SessionExpired {
		t.Fatalf("expected expired, got %s", expired.Status)
	}
}

func TestSentinelMapping(t *testing.T) {
	ctx := context.Background()
	server := newAuthority(t)
	client := NewClient(server.URL, "alice")

	if _, err := client.GetQuiz(ctx, "missing"); !errors.Is(err, domain.ErrQuizNotFound) {
		t.Fatalf("expected quiz not found, got %v", err)
	}
	if _, err := client.GetSession(ctx, "missing"); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Fatalf("expected session not found, got %v", err)
	}

	session, err := client.StartSession(ctx, "quiz-1")
	if err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if _, err := client.SessionResult(ctx, session.ID); !errors.Is(err, domain.ErrResultNotFound) {
		t.Fatalf("expected result not found, got %v", err)
	}
	err = client.SubmitAnswer(ctx, session.ID, "q1", domain.AnswerSubmission{})
	if !errors.Is(err, domain.ErrInvalidSubmission) {
		t.Fatalf("expected invalid submission, got %v", err)
	}
}

func TestCreateAndGetQuiz(t *testing.T) {
	ctx := context.Background()
	server := newAuthority(t)
	client := NewClient(server.URL, "alice")

	created, err := client.CreateQuiz(ctx, domain.Quiz{Title: "Fresh", TimeLimitMinutes: 5})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if created.ID == "" || created.Version != 1 || created.CreatorID != "alice" {
		t.Fatalf("unexpected created quiz: %+v", created)
	}

	fetched, err := client.GetQuiz(ctx, created.ID)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if fetched.Title != "Fresh" {
		t.Fatalf("expected fetched quiz, got %+v", fetched)
	}
}

func newAuthority(t *testing.T) *httptest.Server {
	t.Helper()
	quizzes := memory.NewQuizStoreSeeded(map[string]domain.Quiz{
		"quiz-1": {
			Title:            "Authority quiz",
			TimeLimitMinutes: 10,
			Questions: []domain.Question{
				{
					ID:           "q1",
					QuestionText: "Pick one",
					QuestionType: domain.QuestionMultipleChoiceSingle,
					OrderIndex:   0,
					Answers: []domain.Answer{
						{ID: "a1", AnswerText: "Wrong", OrderIndex: 0},
						{ID: "a2", AnswerText: "Right", IsCorrect: true, OrderIndex: 1},
					},
				},
				{
					ID:           "q2",
					QuestionText: "2 + 2 in words",
					QuestionType: domain.QuestionShortAnswer,
					OrderIndex:   1,
					Answers: []domain.Answer{
						{ID: "s1", AnswerText: "four", IsCorrect: true},
					},
				},
			},
		},
	})
	sessions := app.NewSessionService(memory.NewSessionStore(), quizzes)

	mux := http.NewServeMux()
	transport.NewSessionHandler(sessions).Register(mux)
	transport.NewQuizHandler(quizzes).Register(mux)
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}
