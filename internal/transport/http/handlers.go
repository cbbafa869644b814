package http

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"iq-test-service/internal/app"
	"iq-test-service/internal/auth"
	"iq-test-service/internal/domain"
	"iq-test-service/internal/logger"
)

// Handler serves the REST surface of the attempt and catalog services.
type Handler struct {
	attempts *app.AttemptService
	catalog  *app.CatalogService
	log      *logger.Logger
}

func NewHandler(attempts *app.AttemptService, catalog *app.CatalogService, log *logger.Logger) *Handler {
	return &Handler{attempts: attempts, catalog: catalog, log: log.With("component", "http")}
}

// flexibleID accepts both JSON strings and numbers; older clients send
// numeric ids.
type flexibleID string

func (id *flexibleID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = flexibleID(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("id must be a string or number")
	}
	*id = flexibleID(n.String())
	return nil
}

type startRequest struct {
	TestID flexibleID `json:"test_id"`
}

type startResponse struct {
	AttemptID string `json:"attemptId"`
}

type answerPayload struct {
	QuestionID flexibleID `json:"question_id"`
	Answer     string     `json:"answer"`
}

type submitRequest struct {
	AttemptID flexibleID      `json:"attemptId"`
	Answers   []answerPayload `json:"answers"`
}

type submitResponse struct {
	IQScore float64 `json:"iq_score"`
}

func (h *Handler) ListTests(w http.ResponseWriter, r *http.Request) {
	tests, err := h.catalog.ListTests(r.Context())
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	if tests == nil {
		tests = []domain.Test{}
	}
	writeJSON(w, http.StatusOK, tests)
}

func (h *Handler) ListQuestions(w http.ResponseWriter, r *http.Request) {
	questions, err := h.catalog.ListQuestions(r.Context(), strings.TrimSpace(r.URL.Query().Get("test_id")))
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, questions)
}

func (h *Handler) StartAttempt(w http.ResponseWriter, r *http.Request) {
	var req startRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, h.log, err)
		return
	}
	userID, _ := auth.UserFromContext(r.Context())
	attemptID, err := h.attempts.Start(r.Context(), string(req.TestID), userID)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusCreated, startResponse{AttemptID: attemptID})
}

func (h *Handler) SubmitAttempt(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, h.log, err)
		return
	}
	answers := make([]domain.Answer, 0, len(req.Answers))
	for _, a := range req.Answers {
		answers = append(answers, domain.Answer{QuestionID: string(a.QuestionID), Answer: a.Answer})
	}
	userID, _ := auth.UserFromContext(r.Context())
	score, err := h.attempts.Submit(r.Context(), string(req.AttemptID), userID, answers)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, submitResponse{IQScore: score})
}

func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserFromContext(r.Context())
	results, err := h.attempts.History(r.Context(), userID)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, results)
}

func decodeBody(r *http.Request, dst any) error {
	if r.Body == nil {
		return fmt.Errorf("%w: request body is required", domain.ErrValidation)
	}
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return fmt.Errorf("%w: malformed JSON body", domain.ErrValidation)
	}
	return nil
}
