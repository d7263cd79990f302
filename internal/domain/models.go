package domain

import "time"

// QuestionType enumerates the supported question kinds.
type QuestionType string

const (
	QuestionMultipleChoiceSingle   QuestionType = "MULTIPLE_CHOICE_SINGLE"
	QuestionMultipleChoiceMultiple QuestionType = "MULTIPLE_CHOICE_MULTIPLE"
	QuestionTrueFalse              QuestionType = "TRUE_FALSE"
	QuestionShortAnswer            QuestionType = "SHORT_ANSWER"
	QuestionImage                  QuestionType = "IMAGE"
	QuestionCode                   QuestionType = "CODE"
)

// IsChoice reports whether the question is answered by selecting options
// rather than by free text.
func (t QuestionType) IsChoice() bool {
	switch t {
	case QuestionMultipleChoiceSingle, QuestionMultipleChoiceMultiple, QuestionTrueFalse:
		return true
	}
	return false
}

// Answer is one answer option of a question.
type Answer struct {
	ID          string `json:"id"`
	AnswerText  string `json:"answerText"`
	IsCorrect   bool   `json:"isCorrect"`
	OrderIndex  int    `json:"orderIndex"`
	ImageURL    string `json:"imageUrl,omitempty"`
	CodeSnippet string `json:"codeSnippet,omitempty"`
}

// Question models a quiz question with its ordered answer options.
type Question struct {
	ID           string       `json:"id"`
	QuestionText string       `json:"questionText"`
	QuestionType QuestionType `json:"questionType"`
	OrderIndex   int          `json:"orderIndex"`
	ImageURL     string       `json:"imageUrl,omitempty"`
	CodeSnippet  string       `json:"codeSnippet,omitempty"`
	Answers      []Answer     `json:"answers"`
}

// Quiz is the shared document collaborators edit. Version is bumped on every
// accepted change; a write must carry the version the writer last observed,
// and the store rejects writes against a stale version.
type Quiz struct {
	ID               string     `json:"id"`
	Title            string     `json:"title"`
	Description      string     `json:"description"`
	IsPublic         bool       `json:"isPublic"`
	CreatorID        string     `json:"creatorId"`
	Collaborators    []string   `json:"collaborators"`
	Questions        []Question `json:"questions"`
	TimeLimitMinutes int        `json:"timeLimitMinutes"` // defaults to 30 if zero
	Version          int        `json:"version"`
	CreatedAt        time.Time  `json:"createdAt"`
	UpdatedAt        time.Time  `json:"updatedAt"`
}

// TimeLimit returns the session time limit, falling back to 30 minutes when
// the document does not set one.
func (q Quiz) TimeLimit() time.Duration {
	minutes := q.TimeLimitMinutes
	if minutes <= 0 {
		minutes = 30
	}
	return time.Duration(minutes) * time.Minute
}
