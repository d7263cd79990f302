package http

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/lexmartem/uznai/internal/app"
	"github.com/lexmartem/uznai/internal/domain"
)

// SessionHandler exposes the session authority over REST, mirroring the
// /api/v1 surface quiz-taking clients consume.
type SessionHandler struct {
	sessions *app.SessionService
}

func NewSessionHandler(sessions *app.SessionService) *SessionHandler {
	return &SessionHandler{sessions: sessions}
}

func (h *SessionHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/v1/quizzes/{quizId}/sessions", h.startSession)
	mux.HandleFunc("GET /api/v1/sessions/{sessionId}", h.getSession)
	mux.HandleFunc("GET /api/v1/sessions/{sessionId}/questions", h.getQuestions)
	mux.HandleFunc("POST /api/v1/sessions/{sessionId}/questions/{questionId}/answers", h.submitAnswer)
	mux.HandleFunc("POST /api/v1/sessions/{sessionId}/complete", h.completeSession)
	mux.HandleFunc("POST /api/v1/sessions/{sessionId}/expire", h.expireSession)
	mux.HandleFunc("GET /api/v1/sessions/{sessionId}/result", h.getResult)
	mux.HandleFunc("GET /api/v1/users/me/sessions", h.listSessions)
}

func (h *SessionHandler) startSession(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	session, err := h.sessions.Start(r.Context(), userID, r.PathValue("quizId"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, session)
}

func (h *SessionHandler) getSession(w http.ResponseWriter, r *http.Request) {
	session, err := h.sessions.Get(r.Context(), r.PathValue("sessionId"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, session)
}

func (h *SessionHandler) getQuestions(w http.ResponseWriter, r *http.Request) {
	page, size := pageParams(r)
	questions, total, err := h.sessions.Questions(r.Context(), r.PathValue("sessionId"), page, size)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, pagedResponse[domain.SessionQuestion]{
		Content:       questions,
		TotalElements: total,
		TotalPages:    totalPages(total, size),
	})
}

func (h *SessionHandler) submitAnswer(w http.ResponseWriter, r *http.Request) {
	var submission domain.AnswerSubmission
	if err := json.NewDecoder(r.Body).Decode(&submission); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid answer payload")
		return
	}
	err := h.sessions.SubmitAnswer(r.Context(), r.PathValue("sessionId"), r.PathValue("questionId"), submission)
	if err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *SessionHandler) completeSession(w http.ResponseWriter, r *http.Request) {
	session, err := h.sessions.Complete(r.Context(), r.PathValue("sessionId"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, session)
}

func (h *SessionHandler) expireSession(w http.ResponseWriter, r *http.Request) {
	if err := h.sessions.Expire(r.Context(), r.PathValue("sessionId")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *SessionHandler) getResult(w http.ResponseWriter, r *http.Request) {
	result, err := h.sessions.Result(r.Context(), r.PathValue("sessionId"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *SessionHandler) listSessions(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	sessions, err := h.sessions.ListByUser(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}

	page, size := pageParams(r)
	total := len(sessions)
	start := page * size
	if start > total {
		start = total
	}
	end := start + size
	if end > total {
		end = total
	}
	writeJSON(w, http.StatusOK, pagedResponse[domain.QuizSession]{
		Content:       sessions[start:end],
		TotalElements: total,
		TotalPages:    totalPages(total, size),
	})
}

type pagedResponse[T any] struct {
	Content       []T `json:"content"`
	TotalElements int `json:"totalElements"`
	TotalPages    int `json:"totalPages"`
}

type messageResponse struct {
	Message string `json:"message"`
}

// currentUser reads the authenticated user id. Token verification happens in
// front of this service; here the identity header is trusted.
func currentUser(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID := r.Header.Get("X-User-ID")
	if userID == "" {
		writeMessage(w, http.StatusUnauthorized, "missing user identity")
		return "", false
	}
	return userID, true
}

func pageParams(r *http.Request) (page, size int) {
	page, _ = strconv.Atoi(r.URL.Query().Get("page"))
	size, _ = strconv.Atoi(r.URL.Query().Get("size"))
	if page < 0 {
		page = 0
	}
	if size <= 0 {
		size = 10
	}
	return page, size
}

func totalPages(total, size int) int {
	if size <= 0 {
		return 0
	}
	return (total + size - 1) / size
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Printf("write response: %v", err)
	}
}

func writeMessage(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, messageResponse{Message: message})
}

func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrQuizNotFound),
		errors.Is(err, domain.ErrSessionNotFound),
		errors.Is(err, domain.ErrQuestionNotFound),
		errors.Is(err, domain.ErrResultNotFound):
		writeMessage(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrActiveSessionExists),
		errors.Is(err, domain.ErrVersionConflict),
		errors.Is(err, domain.ErrSessionNotActive):
		writeMessage(w, http.StatusConflict, err.Error())
	case errors.Is(err, domain.ErrInvalidSubmission):
		writeMessage(w, http.StatusBadRequest, err.Error())
	default:
		writeMessage(w, http.StatusInternalServerError, err.Error())
	}
}
