package domain

import "time"

// SessionStatus is the lifecycle state of one quiz attempt.
type SessionStatus string

const (
	SessionInProgress SessionStatus = "IN_PROGRESS"
	SessionCompleted  SessionStatus = "COMPLETED"
	SessionExpired    SessionStatus = "EXPIRED"
)

// QuizSession is one user's timed attempt at a quiz. At most one in-progress
// session per (user, quiz) pair exists at a time.
type QuizSession struct {
	ID               string        `json:"id"`
	QuizID           string        `json:"quizId"`
	UserID           string        `json:"userId"`
	StartedAt        time.Time     `json:"startedAt"`
	CompletedAt      *time.Time    `json:"completedAt,omitempty"`
	Status           SessionStatus `json:"status"`
	QuestionCount    int           `json:"questionCount"`
	AnsweredCount    int           `json:"answeredCount"`
	TimeLimitMinutes int           `json:"timeLimitMinutes"`
}

// Deadline is the instant the session times out.
func (s QuizSession) Deadline() time.Time {
	return s.StartedAt.Add(time.Duration(s.TimeLimitMinutes) * time.Minute)
}

// AnswerSubmission carries one answer. Exactly one of SelectedAnswerIDs or
// TextAnswer is set, depending on the question type.
type AnswerSubmission struct {
	SelectedAnswerIDs []string `json:"selectedAnswerIds,omitempty"`
	TextAnswer        string   `json:"textAnswer,omitempty"`
}

// SessionAnswer is a stored submission for one question of a session.
type SessionAnswer struct {
	QuestionID        string    `json:"questionId"`
	SelectedAnswerIDs []string  `json:"selectedAnswerIds,omitempty"`
	TextAnswer        string    `json:"textAnswer,omitempty"`
	AnsweredAt        time.Time `json:"answeredAt"`
}

// SessionAnswerOption is an answer option as shown during the attempt.
// Correctness flags are deliberately absent.
type SessionAnswerOption struct {
	ID          string `json:"id"`
	AnswerText  string `json:"answerText"`
	OrderIndex  int    `json:"orderIndex"`
	ImageURL    string `json:"imageUrl,omitempty"`
	CodeSnippet string `json:"codeSnippet,omitempty"`
}

// SessionQuestion is the exam-taking view of a question.
type SessionQuestion struct {
	ID           string                `json:"id"`
	QuestionText string                `json:"questionText"`
	QuestionType QuestionType          `json:"questionType"`
	OrderIndex   int                   `json:"orderIndex"`
	ImageURL     string                `json:"imageUrl,omitempty"`
	CodeSnippet  string                `json:"codeSnippet,omitempty"`
	Answers      []SessionAnswerOption `json:"answers"`
	UserAnswers  []string              `json:"userAnswers,omitempty"`
}

// AnswerResult reveals the correctness of one answer option after completion.
type AnswerResult struct {
	ID         string `json:"id"`
	AnswerText string `json:"answerText"`
	IsCorrect  bool   `json:"isCorrect"`
}

// QuestionResult is the per-question outcome of a completed session.
type QuestionResult struct {
	QuestionID    string         `json:"questionId"`
	QuestionText  string         `json:"questionText"`
	IsCorrect     bool           `json:"isCorrect"`
	AnswerResults []AnswerResult `json:"answerResults"`
}

// QuizResult is the scored outcome of a completed session. It is only
// available once the session has been completed.
type QuizResult struct {
	ID              string           `json:"id"`
	SessionID       string           `json:"sessionId"`
	QuizID          string           `json:"quizId"`
	UserID          string           `json:"userId"`
	Score           int              `json:"score"` // percentage 0-100
	CompletedAt     time.Time        `json:"completedAt"`
	QuestionResults []QuestionResult `json:"questionResults"`
}
