package app

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/lexmartem/uznai/internal/domain"
)

// QuizStore abstracts how quiz documents are stored (in-memory, Postgres).
// Save performs an optimistic-concurrency write: it fails with
// domain.ErrVersionConflict unless the stored version equals expectedVersion.
type QuizStore interface {
	Get(ctx context.Context, quizID string) (domain.Quiz, error)
	Create(ctx context.Context, quiz domain.Quiz) error
	Save(ctx context.Context, quiz domain.Quiz, expectedVersion int) (domain.Quiz, error)
}

// QuizCacheInvalidator drops cached session views of a quiz after an edit.
type QuizCacheInvalidator interface {
	Invalidate(ctx context.Context, quizID string)
}

// RoomEventType distinguishes the two streams a room carries.
type RoomEventType string

const (
	// RoomEventChange is a document change broadcast as received from a writer.
	RoomEventChange RoomEventType = "change"
	// RoomEventUsers is a wholesale replacement of the room's presence set.
	RoomEventUsers RoomEventType = "users"
)

// RoomEvent is delivered to every subscriber of a quiz room.
type RoomEvent struct {
	Type   RoomEventType
	Change *domain.QuizChange
	Users  []string
}

// CollabService maintains per-quiz rooms: who is present, who is subscribed,
// and version-checked application of document changes.
type CollabService struct {
	store      QuizStore
	invalidate QuizCacheInvalidator
	now        func() time.Time

	mu    sync.Mutex
	rooms map[string]*room
}

// NewCollabService builds the collaboration use cases. invalidate may be nil
// when no session-view cache is configured.
func NewCollabService(store QuizStore, invalidate QuizCacheInvalidator) *CollabService {
	return &CollabService{
		store:      store,
		invalidate: invalidate,
		now:        time.Now,
		rooms:      make(map[string]*room),
	}
}

// Join adds a username to the quiz room's presence set and broadcasts the new
// set to every subscriber. Joining twice (another tab) is counted so that one
// tab leaving does not remove the user from presence.
func (s *CollabService) Join(ctx context.Context, quizID, username string) ([]string, error) {
	if _, err := s.store.Get(ctx, quizID); err != nil {
		return nil, err
	}
	r := s.getOrCreateRoom(quizID)
	return r.join(username), nil
}

// Leave removes one presence reference for username and broadcasts the new
// set. Empty rooms with no subscribers are dropped.
func (s *CollabService) Leave(_ context.Context, quizID, username string) {
	s.mu.Lock()
	r, ok := s.rooms[quizID]
	s.mu.Unlock()
	if !ok {
		return
	}
	r.leave(username)
	s.dropIfEmpty(quizID)
}

// Subscribe returns a channel that receives change and presence events for a
// quiz room. The caller must invoke the returned cancel function to avoid
// leaks; cancel is safe to call more than once.
func (s *CollabService) Subscribe(_ context.Context, quizID string) (<-chan RoomEvent, func(), error) {
	r := s.getOrCreateRoom(quizID)
	ch, cancel := r.subscribe()
	wrapped := func() {
		cancel()
		s.dropIfEmpty(quizID)
	}
	return ch, wrapped, nil
}

// ProcessChange validates a change against the quiz's current version, applies
// it to the document, persists it, and broadcasts the applied change (stamped
// with the resulting version) to the room. A stale version is rejected with
// domain.ErrVersionConflict and nothing is broadcast.
func (s *CollabService) ProcessChange(ctx context.Context, quizID, username string, change domain.QuizChange) (domain.Quiz, error) {
	quiz, err := s.store.Get(ctx, quizID)
	if err != nil {
		return domain.Quiz{}, err
	}
	if change.Version != quiz.Version {
		return domain.Quiz{}, domain.ErrVersionConflict
	}

	if err := quiz.Apply(change); err != nil {
		return domain.Quiz{}, err
	}
	quiz.Version++
	quiz.UpdatedAt = s.now()

	saved, err := s.store.Save(ctx, quiz, change.Version)
	if err != nil {
		return domain.Quiz{}, err
	}
	if s.invalidate != nil {
		s.invalidate.Invalidate(ctx, quizID)
	}

	applied := change
	applied.Version = saved.Version

	s.mu.Lock()
	r, ok := s.rooms[quizID]
	s.mu.Unlock()
	if ok {
		r.broadcast(RoomEvent{Type: RoomEventChange, Change: &applied})
	}
	return saved, nil
}

// ActiveUsers returns the current presence set of a room.
func (s *CollabService) ActiveUsers(quizID string) []string {
	s.mu.Lock()
	r, ok := s.rooms[quizID]
	s.mu.Unlock()
	if !ok {
		return nil
	}
	return r.users()
}

func (s *CollabService) getOrCreateRoom(quizID string) *room {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rooms[quizID]
	if !ok {
		r = newRoom()
		s.rooms[quizID] = r
	}
	return r
}

func (s *CollabService) dropIfEmpty(quizID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r, ok := s.rooms[quizID]; ok && r.isEmpty() {
		delete(s.rooms, quizID)
	}
}

// room is the in-process fan-out point for one quiz id.
type room struct {
	mu          sync.Mutex
	presence    map[string]int // username -> tab count
	subscribers map[chan RoomEvent]struct{}
}

func newRoom() *room {
	return &room{
		presence:    make(map[string]int),
		subscribers: make(map[chan RoomEvent]struct{}),
	}
}

func (r *room) join(username string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.presence[username]++
	users := r.usersLocked()
	r.broadcastLocked(RoomEvent{Type: RoomEventUsers, Users: users})
	return users
}

func (r *room) leave(username string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if count, ok := r.presence[username]; ok {
		if count <= 1 {
			delete(r.presence, username)
		} else {
			r.presence[username] = count - 1
		}
	}
	r.broadcastLocked(RoomEvent{Type: RoomEventUsers, Users: r.usersLocked()})
}

func (r *room) subscribe() (<-chan RoomEvent, func()) {
	ch := make(chan RoomEvent, 8)

	r.mu.Lock()
	r.subscribers[ch] = struct{}{}
	r.mu.Unlock()

	cancel := func() {
		r.mu.Lock()
		if _, ok := r.subscribers[ch]; ok {
			delete(r.subscribers, ch)
			close(ch)
		}
		r.mu.Unlock()
	}
	return ch, cancel
}

func (r *room) broadcast(event RoomEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.broadcastLocked(event)
}

func (r *room) broadcastLocked(event RoomEvent) {
	for ch := range r.subscribers {
		select {
		case ch <- event:
		default:
			// Drop the oldest pending event so a slow subscriber cannot
			// block the broadcast.
			select {
			case <-ch:
			default:
			}
			ch <- event
		}
	}
}

func (r *room) users() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.usersLocked()
}

func (r *room) usersLocked() []string {
	users := make([]string, 0, len(r.presence))
	for username := range r.presence {
		users = append(users, username)
	}
	sort.Strings(users)
	return users
}

func (r *room) isEmpty() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.presence) == 0 && len(r.subscribers) == 0
}
