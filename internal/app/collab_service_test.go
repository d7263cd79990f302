package app_test

import (
	"context"
	"encoding/json"
	"errors"
	"reflect"
	"testing"

	"github.com/lexmartem/uznai/internal/app"
	"github.com/lexmartem/uznai/internal/domain"
	"github.com/lexmartem/uznai/internal/infra/memory"
)

func TestJoinBroadcastsPresence(t *testing.T) {
	ctx := context.Background()
	service := newCollabService()

	users, err := service.Join(ctx, "quiz-1", "alice")
	if err != nil {
		t.Fatalf("join failed: %v", err)
	}
	if !reflect.DeepEqual(users, []string{"alice"}) {
		t.Fatalf("expected [alice], got %v", users)
	}

	ch, cancel, err := service.Subscribe(ctx, "quiz-1")
	if err != nil {
		t.Fatalf("subscribe failed: %v", err)
	}
	defer cancel()

	if _, err := service.Join(ctx, "quiz-1", "bob"); err != nil {
		t.Fatalf("join failed: %v", err)
	}

	event := <-ch
	if event.Type != app.RoomEventUsers {
		t.Fatalf("expected users event, got %s", event.Type)
	}
	if !reflect.DeepEqual(event.Users, []string{"alice", "bob"}) {
		t.Fatalf("expected [alice bob], got %v", event.Users)
	}
}

func TestSecondTabKeepsPresence(t *testing.T) {
	ctx := context.Background()
	service := newCollabService()

	// Two tabs of the same user.
	if _, err := service.Join(ctx, "quiz-1", "alice"); err != nil {
		t.Fatalf("join failed: %v", err)
	}
	if _, err := service.Join(ctx, "quiz-1", "alice"); err != nil {
		t.Fatalf("join failed: %v", err)
	}

	service.Leave(ctx, "quiz-1", "alice")
	if users := service.ActiveUsers("quiz-1"); !reflect.DeepEqual(users, []string{"alice"}) {
		t.Fatalf("expected alice still present, got %v", users)
	}

	service.Leave(ctx, "quiz-1", "alice")
	if users := service.ActiveUsers("quiz-1"); len(users) != 0 {
		t.Fatalf("expected empty presence, got %v", users)
	}
}

func TestJoinUnknownQuiz(t *testing.T) {
	service := newCollabService()
	if _, err := service.Join(context.Background(), "missing", "alice"); !errors.Is(err, domain.ErrQuizNotFound) {
		t.Fatalf("expected quiz not found, got %v", err)
	}
}

func TestProcessChangeAppliesAndBroadcasts(t *testing.T) {
	ctx := context.Background()
	store := memory.NewQuizStoreSeeded(collabQuiz())
	service := app.NewCollabService(store, nil)

	ch, cancel, err := service.Subscribe(ctx, "quiz-1")
	if err != nil {
		t.Fatalf("subscribe failed: %v", err)
	}
	defer cancel()

	title := "Renamed"
	data, _ := json.Marshal(map[string]any{"title": title})
	saved, err := service.ProcessChange(ctx, "quiz-1", "alice", domain.QuizChange{
		ChangeType: domain.ChangeQuizUpdated,
		ChangeData: data,
		Version:    1,
	})
	if err != nil {
		t.Fatalf("process change failed: %v", err)
	}
	if saved.Title != title || saved.Version != 2 {
		t.Fatalf("expected renamed quiz at version 2, got %q v%d", saved.Title, saved.Version)
	}

	event := <-ch
	if event.Type != app.RoomEventChange {
		t.Fatalf("expected change event, got %s", event.Type)
	}
	// The broadcast carries the resulting version, not the observed one.
	if event.Change.Version != 2 {
		t.Fatalf("expected broadcast version 2, got %d", event.Change.Version)
	}

	stored, err := store.Get(ctx, "quiz-1")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if stored.Title != title {
		t.Fatalf("expected stored title %q, got %q", title, stored.Title)
	}
}

func TestProcessChangeRejectsStaleVersion(t *testing.T) {
	ctx := context.Background()
	service := newCollabService()

	ch, cancel, err := service.Subscribe(ctx, "quiz-1")
	if err != nil {
		t.Fatalf("subscribe failed: %v", err)
	}
	defer cancel()

	data, _ := json.Marshal(map[string]any{"title": "stale"})
	_, err = service.ProcessChange(ctx, "quiz-1", "alice", domain.QuizChange{
		ChangeType: domain.ChangeQuizUpdated,
		ChangeData: data,
		Version:    7,
	})
	if !errors.Is(err, domain.ErrVersionConflict) {
		t.Fatalf("expected version conflict, got %v", err)
	}

	select {
	case event := <-ch:
		t.Fatalf("rejected change must not be broadcast, got %+v", event)
	default:
	}
}

func TestProcessChangeInvalidatesCache(t *testing.T) {
	ctx := context.Background()
	store := memory.NewQuizStoreSeeded(collabQuiz())
	inv := &recordingInvalidator{}
	service := app.NewCollabService(store, inv)

	data, _ := json.Marshal(map[string]any{"username": "bob"})
	_, err := service.ProcessChange(ctx, "quiz-1", "alice", domain.QuizChange{
		ChangeType: domain.ChangeCollaboratorAdded,
		ChangeData: data,
		Version:    1,
	})
	if err != nil {
		t.Fatalf("process change failed: %v", err)
	}
	if !reflect.DeepEqual(inv.quizIDs, []string{"quiz-1"}) {
		t.Fatalf("expected one invalidation for quiz-1, got %v", inv.quizIDs)
	}
}

func TestSubscribeCancelDropsListener(t *testing.T) {
	ctx := context.Background()
	service := newCollabService()

	ch1, cancel1, _ := service.Subscribe(ctx, "quiz-1")
	ch2, cancel2, _ := service.Subscribe(ctx, "quiz-1")
	defer cancel2()

	cancel1()
	cancel1() // safe to repeat

	if _, open := <-ch1; open {
		t.Fatalf("expected canceled channel to be closed")
	}

	if _, err := service.Join(ctx, "quiz-1", "alice"); err != nil {
		t.Fatalf("join failed: %v", err)
	}
	event := <-ch2
	if event.Type != app.RoomEventUsers {
		t.Fatalf("expected users event on remaining subscriber, got %s", event.Type)
	}
}

type recordingInvalidator struct {
	quizIDs []string
}

func (r *recordingInvalidator) Invalidate(_ context.Context, quizID string) {
	r.quizIDs = append(r.quizIDs, quizID)
}

func newCollabService() *app.CollabService {
	return app.NewCollabService(memory.NewQuizStoreSeeded(collabQuiz()), nil)
}

func collabQuiz() map[string]domain.Quiz {
	return map[string]domain.Quiz{
		"quiz-1": {
			Title:     "Collab quiz",
			CreatorID: "alice",
			Questions: []domain.Question{
				{
					ID:           "q1",
					QuestionText: "Pick one",
					QuestionType: domain.QuestionMultipleChoiceSingle,
					Answers: []domain.Answer{
						{ID: "a1", AnswerText: "Wrong"},
						{ID: "a2", AnswerText: "Right", IsCorrect: true},
					},
				},
			},
		},
	}
}
