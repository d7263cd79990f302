package app

import (
	"sort"
	"strings"

	"github.com/lexmartem/uznai/internal/domain"
)

// scoreSession grades every question of the quiz against the stored answers.
// Selections must match the correct option set exactly; text answers are
// compared case-insensitively after trimming against the accepted answers.
func scoreSession(quiz domain.Quiz, session domain.QuizSession, answers map[string]domain.SessionAnswer) domain.QuizResult {
	questions := make([]domain.Question, len(quiz.Questions))
	copy(questions, quiz.Questions)
	sort.Slice(questions, func(i, j int) bool {
		return questions[i].OrderIndex < questions[j].OrderIndex
	})

	results := make([]domain.QuestionResult, 0, len(questions))
	correctCount := 0
	for _, q := range questions {
		answer, answered := answers[q.ID]
		correct := answered && isCorrect(q, answer)
		if correct {
			correctCount++
		}

		answerResults := make([]domain.AnswerResult, 0, len(q.Answers))
		for _, a := range q.Answers {
			answerResults = append(answerResults, domain.AnswerResult{
				ID:         a.ID,
				AnswerText: a.AnswerText,
				IsCorrect:  a.IsCorrect,
			})
		}
		results = append(results, domain.QuestionResult{
			QuestionID:    q.ID,
			QuestionText:  q.QuestionText,
			IsCorrect:     correct,
			AnswerResults: answerResults,
		})
	}

	score := 0
	if len(questions) > 0 {
		score = correctCount * 100 / len(questions)
	}
	return domain.QuizResult{
		SessionID:       session.ID,
		QuizID:          quiz.ID,
		UserID:          session.UserID,
		Score:           score,
		QuestionResults: results,
	}
}

func isCorrect(q domain.Question, answer domain.SessionAnswer) bool {
	if len(answer.SelectedAnswerIDs) > 0 {
		return selectionMatches(q, answer.SelectedAnswerIDs)
	}
	return textMatches(q, answer.TextAnswer)
}

func selectionMatches(q domain.Question, selected []string) bool {
	correct := make(map[string]bool)
	for _, a := range q.Answers {
		if a.IsCorrect {
			correct[a.ID] = true
		}
	}
	if len(correct) == 0 || len(selected) != len(correct) {
		return false
	}
	for _, id := range selected {
		if !correct[id] {
			return false
		}
	}
	return true
}

func textMatches(q domain.Question, text string) bool {
	given := strings.ToLower(strings.TrimSpace(text))
	if given == "" {
		return false
	}
	for _, a := range q.Answers {
		if a.IsCorrect && strings.ToLower(strings.TrimSpace(a.AnswerText)) == given {
			return true
		}
	}
	return false
}
