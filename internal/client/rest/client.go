package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/lexmartem/uznai/internal/domain"
)

// Client calls the /api/v1 session authority. It satisfies the Authority
// contract the session runner drives and the fetch side of the collaboration
// document flow.
type Client struct {
	baseURL string
	userID  string
	token   string
	http    *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client, e.g. for custom timeouts.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithToken attaches a bearer token to every request.
func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

// NewClient builds a client for the authority at baseURL acting as userID.
func NewClient(baseURL, userID string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		userID:  userID,
		http:    &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// GetQuiz fetches the current document, e.g. after a rejected merge.
func (c *Client) GetQuiz(ctx context.Context, quizID string) (domain.Quiz, error) {
	var quiz domain.Quiz
	err := c.do(ctx, http.MethodGet, "/api/v1/quizzes/"+quizID, nil, http.StatusOK, &quiz)
	return quiz, err
}

// CreateQuiz registers a new document with the authority.
func (c *Client) CreateQuiz(ctx context.Context, quiz domain.Quiz) (domain.Quiz, error) {
	var created domain.Quiz
	err := c.do(ctx, http.MethodPost, "/api/v1/quizzes", quiz, http.StatusCreated, &created)
	return created, err
}

// StartSession creates a new attempt at the quiz. The authority rejects the
// call with domain.ErrActiveSessionExists when one is already in progress.
func (c *Client) StartSession(ctx context.Context, quizID string) (domain.QuizSession, error) {
	var session domain.QuizSession
	err := c.do(ctx, http.MethodPost, "/api/v1/quizzes/"+quizID+"/sessions", nil, http.StatusCreated, &session)
	return session, err
}

// GetSession fetches one session by ID.
func (c *Client) GetSession(ctx context.Context, sessionID string) (domain.QuizSession, error) {
	var session domain.QuizSession
	err := c.do(ctx, http.MethodGet, "/api/v1/sessions/"+sessionID, nil, http.StatusOK, &session)
	return session, err
}

// ListSessions returns the calling user's sessions, newest first.
func (c *Client) ListSessions(ctx context.Context) ([]domain.QuizSession, error) {
	var page pagedResponse[domain.QuizSession]
	path := "/api/v1/users/me/sessions?page=0&size=100"
	if err := c.do(ctx, http.MethodGet, path, nil, http.StatusOK, &page); err != nil {
		return nil, err
	}
	return page.Content, nil
}

// SessionQuestions fetches one page of the attempt's questions and the total
// question count.
func (c *Client) SessionQuestions(ctx context.Context, sessionID string, page, size int) ([]domain.SessionQuestion, int, error) {
	var resp pagedResponse[domain.SessionQuestion]
	path := fmt.Sprintf("/api/v1/sessions/%s/questions?page=%d&size=%d", sessionID, page, size)
	if err := c.do(ctx, http.MethodGet, path, nil, http.StatusOK, &resp); err != nil {
		return nil, 0, err
	}
	return resp.Content, resp.TotalElements, nil
}

// SubmitAnswer records the answer to one question of the session.
func (c *Client) SubmitAnswer(ctx context.Context, sessionID, questionID string, submission domain.AnswerSubmission) error {
	path := "/api/v1/sessions/" + sessionID + "/questions/" + questionID + "/answers"
	return c.do(ctx, http.MethodPost, path, submission, http.StatusNoContent, nil)
}

// CompleteSession finishes the attempt and triggers scoring.
func (c *Client) CompleteSession(ctx context.Context, sessionID string) (domain.QuizSession, error) {
	var session domain.QuizSession
	err := c.do(ctx, http.MethodPost, "/api/v1/sessions/"+sessionID+"/complete", nil, http.StatusOK, &session)
	return session, err
}

// ExpireSession marks an abandoned or timed-out attempt as expired.
func (c *Client) ExpireSession(ctx context.Context, sessionID string) error {
	return c.do(ctx, http.MethodPost, "/api/v1/sessions/"+sessionID+"/expire", nil, http.StatusNoContent, nil)
}

// SessionResult fetches the scored outcome of a completed session.
func (c *Client) SessionResult(ctx context.Context, sessionID string) (domain.QuizResult, error) {
	var result domain.QuizResult
	err := c.do(ctx, http.MethodGet, "/api/v1/sessions/"+sessionID+"/result", nil, http.StatusOK, &result)
	return result, err
}

type pagedResponse[T any] struct {
	Content       []T `json:"content"`
	TotalElements int `json:"totalElements"`
	TotalPages    int `json:"totalPages"`
}

type messageResponse struct {
	Message string `json:"message"`
}

func (c *Client) do(ctx context.Context, method, path string, body any, wantStatus int, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("X-User-ID", c.userID)
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != wantStatus {
		return apiError(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// sentinels maps the authority's error messages back to the shared sentinel
// errors so callers can branch with errors.Is across the wire.
var sentinels = []error{
	domain.ErrQuizNotFound,
	domain.ErrVersionConflict,
	domain.ErrQuestionNotFound,
	domain.ErrSessionNotFound,
	domain.ErrSessionNotActive,
	domain.ErrActiveSessionExists,
	domain.ErrInvalidSubmission,
	domain.ErrResultNotFound,
}

func apiError(resp *http.Response) error {
	var msg messageResponse
	if err := json.NewDecoder(resp.Body).Decode(&msg); err != nil || msg.Message == "" {
		return fmt.Errorf("authority returned status %d", resp.StatusCode)
	}
	for _, sentinel := range sentinels {
		if msg.Message == sentinel.Error() {
			return sentinel
		}
	}
	return fmt.Errorf("authority returned status %d: %s", resp.StatusCode, msg.Message)
}
