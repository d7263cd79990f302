package http

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/lexmartem/uznai/internal/app"
	"github.com/lexmartem/uznai/internal/domain"
)

// QuizHandler exposes the minimal document endpoints: create and fetch. The
// editing surface itself lives on the collaboration socket.
type QuizHandler struct {
	quizzes app.QuizStore
}

func NewQuizHandler(quizzes app.QuizStore) *QuizHandler {
	return &QuizHandler{quizzes: quizzes}
}

func (h *QuizHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/v1/quizzes", h.createQuiz)
	mux.HandleFunc("GET /api/v1/quizzes/{quizId}", h.getQuiz)
}

type createQuizRequest struct {
	Title            string   `json:"title"`
	Description      string   `json:"description"`
	IsPublic         bool     `json:"isPublic"`
	Collaborators    []string `json:"collaborators"`
	TimeLimitMinutes int      `json:"timeLimitMinutes"`
}

func (h *QuizHandler) createQuiz(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	var req createQuizRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid quiz payload")
		return
	}
	now := time.Now()
	quiz := domain.Quiz{
		ID:               uuid.NewString(),
		Title:            req.Title,
		Description:      req.Description,
		IsPublic:         req.IsPublic,
		CreatorID:        userID,
		Collaborators:    req.Collaborators,
		TimeLimitMinutes: req.TimeLimitMinutes,
		Version:          1,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := h.quizzes.Create(r.Context(), quiz); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, quiz)
}

func (h *QuizHandler) getQuiz(w http.ResponseWriter, r *http.Request) {
	quiz, err := h.quizzes.Get(r.Context(), r.PathValue("quizId"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, quiz)
}
