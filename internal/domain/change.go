package domain

import (
	"encoding/json"
	"fmt"
)

// ChangeType classifies one collaborative edit broadcast to a quiz room.
type ChangeType string

const (
	ChangeQuizCreated         ChangeType = "QUIZ_CREATED"
	ChangeQuizUpdated         ChangeType = "QUIZ_UPDATED"
	ChangeQuestionAdded       ChangeType = "QUESTION_ADDED"
	ChangeQuestionUpdated     ChangeType = "QUESTION_UPDATED"
	ChangeQuestionDeleted     ChangeType = "QUESTION_DELETED"
	ChangeAnswerAdded         ChangeType = "ANSWER_ADDED"
	ChangeAnswerUpdated       ChangeType = "ANSWER_UPDATED"
	ChangeAnswerDeleted       ChangeType = "ANSWER_DELETED"
	ChangeCollaboratorAdded   ChangeType = "COLLABORATOR_ADDED"
	ChangeCollaboratorRemoved ChangeType = "COLLABORATOR_REMOVED"
	ChangeChatMessage         ChangeType = "CHAT_MESSAGE"
)

// QuizChange is one versioned edit. Version is the quiz version the writer
// last observed when the change is sent to the hub, and the resulting quiz
// version when the change is broadcast back to the room.
type QuizChange struct {
	ChangeType ChangeType      `json:"changeType"`
	ChangeData json.RawMessage `json:"changeData"`
	Version    int             `json:"version"`
}

type quizUpdatePayload struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
	IsPublic    *bool   `json:"isPublic"`
}

type questionDeletePayload struct {
	QuestionID string `json:"questionId"`
}

type answerPayload struct {
	QuestionID string `json:"questionId"`
	Answer     Answer `json:"answer"`
}

type answerDeletePayload struct {
	QuestionID string `json:"questionId"`
	AnswerID   string `json:"answerId"`
}

type collaboratorPayload struct {
	Username string `json:"username"`
}

// Apply mutates the quiz according to the change payload. It does not touch
// the quiz version; callers own the version bump. Chat messages leave the
// document untouched.
func (q *Quiz) Apply(change QuizChange) error {
	switch change.ChangeType {
	case ChangeQuizUpdated:
		var p quizUpdatePayload
		if err := json.Unmarshal(change.ChangeData, &p); err != nil {
			return fmt.Errorf("decode quiz update: %w", err)
		}
		if p.Title != nil {
			q.Title = *p.Title
		}
		if p.Description != nil {
			q.Description = *p.Description
		}
		if p.IsPublic != nil {
			q.IsPublic = *p.IsPublic
		}
	case ChangeQuestionAdded:
		var question Question
		if err := json.Unmarshal(change.ChangeData, &question); err != nil {
			return fmt.Errorf("decode question: %w", err)
		}
		q.Questions = append(q.Questions, question)
	case ChangeQuestionUpdated:
		var question Question
		if err := json.Unmarshal(change.ChangeData, &question); err != nil {
			return fmt.Errorf("decode question: %w", err)
		}
		for i := range q.Questions {
			if q.Questions[i].ID == question.ID {
				q.Questions[i] = question
				return nil
			}
		}
		return ErrQuestionNotFound
	case ChangeQuestionDeleted:
		var p questionDeletePayload
		if err := json.Unmarshal(change.ChangeData, &p); err != nil {
			return fmt.Errorf("decode question delete: %w", err)
		}
		for i := range q.Questions {
			if q.Questions[i].ID == p.QuestionID {
				q.Questions = append(q.Questions[:i], q.Questions[i+1:]...)
				return nil
			}
		}
		return ErrQuestionNotFound
	case ChangeAnswerAdded:
		var p answerPayload
		if err := json.Unmarshal(change.ChangeData, &p); err != nil {
			return fmt.Errorf("decode answer: %w", err)
		}
		question := q.question(p.QuestionID)
		if question == nil {
			return ErrQuestionNotFound
		}
		question.Answers = append(question.Answers, p.Answer)
	case ChangeAnswerUpdated:
		var p answerPayload
		if err := json.Unmarshal(change.ChangeData, &p); err != nil {
			return fmt.Errorf("decode answer: %w", err)
		}
		question := q.question(p.QuestionID)
		if question == nil {
			return ErrQuestionNotFound
		}
		for i := range question.Answers {
			if question.Answers[i].ID == p.Answer.ID {
				question.Answers[i] = p.Answer
				break
			}
		}
	case ChangeAnswerDeleted:
		var p answerDeletePayload
		if err := json.Unmarshal(change.ChangeData, &p); err != nil {
			return fmt.Errorf("decode answer delete: %w", err)
		}
		question := q.question(p.QuestionID)
		if question == nil {
			return ErrQuestionNotFound
		}
		for i := range question.Answers {
			if question.Answers[i].ID == p.AnswerID {
				question.Answers = append(question.Answers[:i], question.Answers[i+1:]...)
				break
			}
		}
	case ChangeCollaboratorAdded:
		var p collaboratorPayload
		if err := json.Unmarshal(change.ChangeData, &p); err != nil {
			return fmt.Errorf("decode collaborator: %w", err)
		}
		for _, existing := range q.Collaborators {
			if existing == p.Username {
				return nil
			}
		}
		q.Collaborators = append(q.Collaborators, p.Username)
	case ChangeCollaboratorRemoved:
		var p collaboratorPayload
		if err := json.Unmarshal(change.ChangeData, &p); err != nil {
			return fmt.Errorf("decode collaborator: %w", err)
		}
		for i, existing := range q.Collaborators {
			if existing == p.Username {
				q.Collaborators = append(q.Collaborators[:i], q.Collaborators[i+1:]...)
				break
			}
		}
	case ChangeQuizCreated, ChangeChatMessage:
		// No document mutation; these exist only to be broadcast.
	default:
		return fmt.Errorf("unknown change type %q", change.ChangeType)
	}
	return nil
}

func (q *Quiz) question(id string) *Question {
	for i := range q.Questions {
		if q.Questions[i].ID == id {
			return &q.Questions[i]
		}
	}
	return nil
}
