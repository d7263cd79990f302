package session

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/lexmartem/uznai/internal/domain"
)

var (
	// ErrSessionDesync is returned when the authority reports an active
	// session that cannot be found on re-fetch. Recovery needs a manual
	// refresh; this is the one user-visible race in the start flow.
	ErrSessionDesync = errors.New("active session exists but could not be adopted")
	// ErrSubmissionInFlight guards the single-flight rule: one answer
	// submission at a time per session.
	ErrSubmissionInFlight = errors.New("answer submission already in flight")
	// ErrNotInProgress is returned for operations that require a running attempt.
	ErrNotInProgress = errors.New("session is not in progress")
	// ErrNoQuestions indicates the adopted session's quiz has no questions.
	ErrNoQuestions = errors.New("session has no questions")
)

// State is the lifecycle of one attempt. Completed and Expired are terminal;
// a new attempt needs a new Runner.
type State int

const (
	NotStarted State = iota
	InProgress
	Completed
	Expired
)

func (s State) String() string {
	switch s {
	case NotStarted:
		return "not-started"
	case InProgress:
		return "in-progress"
	case Completed:
		return "completed"
	case Expired:
		return "expired"
	}
	return "unknown"
}

// Authority is the server contract the state machine drives. Implemented by
// the REST client in production and by fakes in tests.
type Authority interface {
	StartSession(ctx context.Context, quizID string) (domain.QuizSession, error)
	ListSessions(ctx context.Context) ([]domain.QuizSession, error)
	SessionQuestions(ctx context.Context, sessionID string, page, size int) ([]domain.SessionQuestion, int, error)
	SubmitAnswer(ctx context.Context, sessionID, questionID string, submission domain.AnswerSubmission) error
	CompleteSession(ctx context.Context, sessionID string) (domain.QuizSession, error)
	ExpireSession(ctx context.Context, sessionID string) error
}

// Option configures a Runner.
type Option func(*Runner)

// WithClock is test-only for deterministic countdowns.
func WithClock(now func() time.Time) Option {
	return func(r *Runner) { r.now = now }
}

// WithTickInterval overrides the 1s countdown tick (tests).
func WithTickInterval(d time.Duration) Option {
	return func(r *Runner) { r.tick = d }
}

// WithPageSize overrides the question page size used when loading the attempt.
func WithPageSize(n int) Option {
	return func(r *Runner) { r.pageSize = n }
}

// Runner drives one user's timed attempt at a quiz: session initialization
// (reuse-or-create), question sequencing, single-flight answer submission,
// and a countdown that expires the session exactly once.
type Runner struct {
	authority Authority
	quizID    string
	now       func() time.Time
	tick      time.Duration
	pageSize  int

	mu        sync.Mutex
	state     State
	session   domain.QuizSession
	questions []domain.SessionQuestion
	index     int
	inFlight  bool

	expireOnce sync.Once
	doneOnce   sync.Once
	stopOnce   sync.Once
	done       chan struct{}
	expired    chan struct{}
	stop       chan struct{}
}

func NewRunner(authority Authority, quizID string, opts ...Option) *Runner {
	r := &Runner{
		authority: authority,
		quizID:    quizID,
		now:       time.Now,
		tick:      time.Second,
		pageSize:  10,
		done:      make(chan struct{}),
		expired:   make(chan struct{}),
		stop:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Initialize adopts the user's existing in-progress session for the quiz or
// starts a new one, loads the ordered questions, and starts the countdown.
// Calling it again while in progress returns the same session without any
// network traffic. If creation races with another tab or device, the session
// list is re-fetched and the winner's session adopted; failing that the
// caller gets ErrSessionDesync.
func (r *Runner) Initialize(ctx context.Context) (domain.QuizSession, error) {
	r.mu.Lock()
	switch r.state {
	case InProgress:
		session := r.session
		r.mu.Unlock()
		return session, nil
	case Completed, Expired:
		r.mu.Unlock()
		return domain.QuizSession{}, ErrNotInProgress
	}
	r.mu.Unlock()

	session, err := r.adoptOrStart(ctx)
	if err != nil {
		return domain.QuizSession{}, err
	}
	questions, err := r.loadQuestions(ctx, session.ID)
	if err != nil {
		return domain.QuizSession{}, err
	}
	if len(questions) == 0 {
		return domain.QuizSession{}, ErrNoQuestions
	}

	r.mu.Lock()
	r.state = InProgress
	r.session = session
	r.questions = questions
	r.index = 0
	r.mu.Unlock()

	go r.countdown()
	return session, nil
}

func (r *Runner) adoptOrStart(ctx context.Context) (domain.QuizSession, error) {
	if session, ok, err := r.findActive(ctx); err != nil {
		return domain.QuizSession{}, err
	} else if ok {
		return session, nil
	}

	session, err := r.authority.StartSession(ctx, r.quizID)
	if err == nil {
		return session, nil
	}
	if !errors.Is(err, domain.ErrActiveSessionExists) {
		return domain.QuizSession{}, err
	}

	// Another tab or device won the create race; adopt its session.
	if session, ok, err := r.findActive(ctx); err != nil {
		return domain.QuizSession{}, err
	} else if ok {
		return session, nil
	}
	return domain.QuizSession{}, ErrSessionDesync
}

func (r *Runner) findActive(ctx context.Context) (domain.QuizSession, bool, error) {
	sessions, err := r.authority.ListSessions(ctx)
	if err != nil {
		return domain.QuizSession{}, false, err
	}
	for _, s := range sessions {
		if s.QuizID == r.quizID && s.Status == domain.SessionInProgress {
			return s, true, nil
		}
	}
	return domain.QuizSession{}, false, nil
}

func (r *Runner) loadQuestions(ctx context.Context, sessionID string) ([]domain.SessionQuestion, error) {
	var questions []domain.SessionQuestion
	for page := 0; ; page++ {
		batch, total, err := r.authority.SessionQuestions(ctx, sessionID, page, r.pageSize)
		if err != nil {
			return nil, err
		}
		questions = append(questions, batch...)
		if len(questions) >= total || len(batch) == 0 {
			return questions, nil
		}
	}
}

// SubmitAnswer submits the answer for the current question. On success the
// runner advances to the next question, or completes the session when the
// last question was answered; completion is signaled on Done(). On failure
// the index does not move and the same question should be re-prompted. Only
// one submission may be in flight per session.
func (r *Runner) SubmitAnswer(ctx context.Context, submission domain.AnswerSubmission) error {
	r.mu.Lock()
	if r.state != InProgress {
		r.mu.Unlock()
		return ErrNotInProgress
	}
	if r.inFlight {
		r.mu.Unlock()
		return ErrSubmissionInFlight
	}
	r.inFlight = true
	sessionID := r.session.ID
	question := r.questions[r.index]
	last := r.index+1 >= len(r.questions)
	r.mu.Unlock()

	err := r.authority.SubmitAnswer(ctx, sessionID, question.ID, submission)

	r.mu.Lock()
	r.inFlight = false
	if err != nil {
		r.mu.Unlock()
		return err
	}
	r.session.AnsweredCount++
	if !last {
		r.index++
		r.mu.Unlock()
		return nil
	}
	r.mu.Unlock()
	return r.Complete(ctx)
}

// Complete explicitly finishes the attempt. Usually called internally after
// the last answer, but exposed so a retry is possible when the completion
// call itself failed.
func (r *Runner) Complete(ctx context.Context) error {
	r.mu.Lock()
	if r.state != InProgress {
		r.mu.Unlock()
		return ErrNotInProgress
	}
	sessionID := r.session.ID
	r.mu.Unlock()

	session, err := r.authority.CompleteSession(ctx, sessionID)
	if err != nil {
		return err
	}

	r.mu.Lock()
	r.state = Completed
	r.session = session
	r.mu.Unlock()
	r.stopTicker()
	r.doneOnce.Do(func() { close(r.done) })
	return nil
}

// Close is the abandonment path: tearing down the owning view (navigation,
// tab close) expires an in-progress session as a best-effort notification and
// stops the countdown so no expiry can fire against a stale session. Safe to
// call any number of times.
func (r *Runner) Close() {
	r.mu.Lock()
	active := r.state == InProgress
	r.mu.Unlock()
	if active {
		r.expire()
	}
	r.stopTicker()
}

// Remaining is the countdown value: max(0, startedAt + limit − now). It never
// goes negative and is zero before initialization and after the attempt ends.
func (r *Runner) Remaining() time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state != InProgress {
		return 0
	}
	remaining := r.session.Deadline().Sub(r.now())
	if remaining < 0 {
		return 0
	}
	return remaining
}

// CurrentQuestion returns the question the attempt is waiting on.
func (r *Runner) CurrentQuestion() (domain.SessionQuestion, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state != InProgress || r.index >= len(r.questions) {
		return domain.SessionQuestion{}, false
	}
	return r.questions[r.index], true
}

// Index is the zero-based position of the current question.
func (r *Runner) Index() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.index
}

// QuestionCount is the number of questions in the attempt.
func (r *Runner) QuestionCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.questions)
}

// State returns the attempt's lifecycle state.
func (r *Runner) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Session returns the last observed session snapshot.
func (r *Runner) Session() domain.QuizSession {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.session
}

// Done is closed when the attempt completes; the caller navigates to results.
func (r *Runner) Done() <-chan struct{} { return r.done }

// Expired is closed when the attempt expires (timeout or abandonment).
func (r *Runner) Expired() <-chan struct{} { return r.expired }

func (r *Runner) countdown() {
	if r.Remaining() == 0 {
		r.expire()
		return
	}
	ticker := time.NewTicker(r.tick)
	defer ticker.Stop()
	for {
		select {
		case <-r.stop:
			return
		case <-ticker.C:
			if r.Remaining() == 0 {
				r.expire()
				return
			}
		}
	}
}

// expire fires the expiry call exactly once per attempt, whether it comes
// from the countdown reaching zero or from abandonment.
func (r *Runner) expire() {
	r.expireOnce.Do(func() {
		r.mu.Lock()
		active := r.state == InProgress
		sessionID := r.session.ID
		if active {
			r.state = Expired
		}
		r.mu.Unlock()
		if !active {
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		// Best effort; the tab may be closing and there is no retry.
		if err := r.authority.ExpireSession(ctx, sessionID); err != nil {
			log.Printf("expire session %s: %v", sessionID, err)
		}
		close(r.expired)
		r.stopTicker()
	})
}

func (r *Runner) stopTicker() {
	r.stopOnce.Do(func() { close(r.stop) })
}
