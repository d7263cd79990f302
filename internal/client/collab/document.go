package collab

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/lexmartem/uznai/internal/domain"
)

// Document tracks the locally observed quiz and merges remote changes by
// version: a change is applied only when it advances past the last observed
// version. Stale broadcasts are rejected client-side as a defensive check
// even though the hub is the source of truth.
type Document struct {
	mu   sync.Mutex
	quiz domain.Quiz
}

func NewDocument(quiz domain.Quiz) *Document {
	return &Document{quiz: quiz}
}

// Quiz returns a snapshot of the observed document.
func (d *Document) Quiz() domain.Quiz {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.quiz
}

// Version returns the last observed document version. Every outgoing change
// must carry it.
func (d *Document) Version() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.quiz.Version
}

// Merge applies a broadcast change when its version is newer than the
// observed one and reports whether it was applied. When it returns false the
// caller should re-fetch a fresh copy of the document.
func (d *Document) Merge(change domain.QuizChange) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if change.Version <= d.quiz.Version {
		return false
	}
	if err := d.quiz.Apply(change); err != nil {
		return false
	}
	d.quiz.Version = change.Version
	return true
}

// Replace swaps in a freshly fetched document, e.g. after a rejected merge.
func (d *Document) Replace(quiz domain.Quiz) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.quiz = quiz
}

// NewChange builds an outgoing change for this document, marshaling the
// payload and stamping the last observed version.
func (d *Document) NewChange(changeType domain.ChangeType, payload any) (domain.QuizChange, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return domain.QuizChange{}, fmt.Errorf("encode change payload: %w", err)
	}
	return domain.QuizChange{
		ChangeType: changeType,
		ChangeData: data,
		Version:    d.Version(),
	}, nil
}
