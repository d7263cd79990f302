package redis

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/lexmartem/uznai/internal/domain"
	"github.com/lexmartem/uznai/internal/infra/memory"
)

// SessionStore is a Redis-aware implementation of app.SessionStore.
// Notes:
//   - Session state lives in the embedded in-memory store; Redis carries a
//     liveness marker per active (user, quiz) pair so other instances can see
//     which attempts are open.
//   - For true distribution you'd move session snapshots into Redis as well.
type SessionStore struct {
	*memory.SessionStore
	client *redis.Client
	ttl    time.Duration
}

func NewSessionStore(client *redis.Client, ttl time.Duration) *SessionStore {
	return &SessionStore{
		SessionStore: memory.NewSessionStore(),
		client:       client,
		ttl:          ttl,
	}
}

func (s *SessionStore) Create(ctx context.Context, session domain.QuizSession) error {
	if err := s.SessionStore.Create(ctx, session); err != nil {
		return err
	}
	// best-effort liveness marker
	_ = s.client.Set(ctx, s.key(session.UserID, session.QuizID), session.ID, s.ttl).Err()
	return nil
}

func (s *SessionStore) Update(ctx context.Context, session domain.QuizSession) error {
	if err := s.SessionStore.Update(ctx, session); err != nil {
		return err
	}
	if session.Status != domain.SessionInProgress {
		_ = s.client.Del(ctx, s.key(session.UserID, session.QuizID)).Err()
	}
	return nil
}

func (s *SessionStore) key(userID, quizID string) string {
	return "session:active:" + userID + ":" + quizID
}
