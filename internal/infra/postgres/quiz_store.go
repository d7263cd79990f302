package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"github.com/lexmartem/uznai/internal/domain"
)

// QuizStore persists quiz documents as JSONB with a version column used for
// optimistic-concurrency writes.
type QuizStore struct {
	pool *pgxpool.Pool
}

func NewQuizStore(pool *pgxpool.Pool) *QuizStore {
	return &QuizStore{pool: pool}
}

func (s *QuizStore) Get(ctx context.Context, quizID string) (domain.Quiz, error) {
	var raw []byte
	var version int
	err := s.pool.QueryRow(ctx, `SELECT data, version FROM quizzes WHERE id=$1`, quizID).Scan(&raw, &version)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Quiz{}, domain.ErrQuizNotFound
	}
	if err != nil {
		return domain.Quiz{}, fmt.Errorf("load quiz: %w", err)
	}
	var quiz domain.Quiz
	if err := json.Unmarshal(raw, &quiz); err != nil {
		return domain.Quiz{}, fmt.Errorf("unmarshal quiz: %w", err)
	}
	quiz.Version = version
	return quiz, nil
}

func (s *QuizStore) Create(ctx context.Context, quiz domain.Quiz) error {
	if quiz.Version == 0 {
		quiz.Version = 1
	}
	raw, err := json.Marshal(quiz)
	if err != nil {
		return fmt.Errorf("marshal quiz: %w", err)
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO quizzes (id, data, version) VALUES ($1, $2, $3)
		 ON CONFLICT (id) DO UPDATE SET data=EXCLUDED.data, version=EXCLUDED.version`,
		quiz.ID, raw, quiz.Version)
	if err != nil {
		return fmt.Errorf("insert quiz: %w", err)
	}
	return nil
}

// Save writes the quiz only when the stored version still equals
// expectedVersion, so concurrent editors cannot clobber each other.
func (s *QuizStore) Save(ctx context.Context, quiz domain.Quiz, expectedVersion int) (domain.Quiz, error) {
	raw, err := json.Marshal(quiz)
	if err != nil {
		return domain.Quiz{}, fmt.Errorf("marshal quiz: %w", err)
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE quizzes SET data=$1, version=$2 WHERE id=$3 AND version=$4`,
		raw, quiz.Version, quiz.ID, expectedVersion)
	if err != nil {
		return domain.Quiz{}, fmt.Errorf("save quiz: %w", err)
	}
	if tag.RowsAffected() == 0 {
		var exists bool
		if err := s.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM quizzes WHERE id=$1)`, quiz.ID).Scan(&exists); err == nil && !exists {
			return domain.Quiz{}, domain.ErrQuizNotFound
		}
		return domain.Quiz{}, domain.ErrVersionConflict
	}
	return quiz, nil
}
