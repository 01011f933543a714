package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/unitflow/unitflow/internal/batch"
	"github.com/unitflow/unitflow/internal/common"
	"github.com/unitflow/unitflow/internal/quality"
	"github.com/unitflow/unitflow/internal/repository"
	"github.com/unitflow/unitflow/internal/runs"
)

type handlers struct {
	svc   *runs.Service
	store repository.Store
	orch  *batch.Orchestrator
	log   *slog.Logger
}

// errorEnvelope is the structured error body every endpoint shares.
type errorEnvelope struct {
	Code        string `json:"code"`
	UserMessage string `json:"userMessage"`
	RequestID   string `json:"requestId"`
}

func (h *handlers) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type extractRequest struct {
	Force bool   `json:"force"`
	Mode  string `json:"mode"` // "full" (default) | "cover"
}

type extractResponse struct {
	OK                bool    `json:"ok"`
	Skipped           bool    `json:"skipped,omitempty"`
	Reason            string  `json:"reason,omitempty"`
	RunID             string  `json:"runId,omitempty"`
	Status            string  `json:"status,omitempty"`
	IsScanned         bool    `json:"isScanned"`
	ExtractedChars    int     `json:"extractedChars"`
	OverallConfidence float64 `json:"overallConfidence"`
	RequestID         string  `json:"requestId"`
}

func (h *handlers) extract(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetReqID(r.Context())
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, http.StatusBadRequest, "INVALID_ID", "submission id must be a UUID")
		return
	}

	var body extractRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			h.writeError(w, r, http.StatusBadRequest, "INVALID_BODY", "request body must be JSON")
			return
		}
	}
	mode := quality.ModeFull
	if body.Mode == string(quality.ModeCover) {
		mode = quality.ModeCover
	}

	out, err := h.svc.Extract(r.Context(), runs.Request{
		SubmissionID: id,
		Force:        body.Force,
		Mode:         mode,
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	if out.Skipped {
		writeJSON(w, http.StatusOK, extractResponse{OK: true, Skipped: true, Reason: out.SkipReason, RequestID: reqID})
		return
	}
	writeJSON(w, http.StatusOK, extractResponse{
		OK:                true,
		RunID:             out.RunID.String(),
		Status:            string(out.Status),
		IsScanned:         out.IsScanned,
		ExtractedChars:    out.ExtractedChars,
		OverallConfidence: out.OverallConfidence,
		RequestID:         reqID,
	})
}

type runView struct {
	ID                string   `json:"id"`
	Status            string   `json:"status"`
	IsScanned         bool     `json:"isScanned"`
	OverallConfidence float64  `json:"overallConfidence"`
	PageCount         int      `json:"pageCount"`
	Warnings          []string `json:"warnings,omitempty"`
	StartedAt         string   `json:"startedAt"`
	FinishedAt        *string  `json:"finishedAt,omitempty"`
	Error             *string  `json:"error,omitempty"`
}

func (h *handlers) listRuns(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, http.StatusBadRequest, "INVALID_ID", "submission id must be a UUID")
		return
	}
	list, err := h.store.ListRuns(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	views := make([]runView, 0, len(list))
	for _, run := range list {
		v := runView{
			ID:                run.ID.String(),
			Status:            string(run.Status),
			IsScanned:         run.IsScanned,
			OverallConfidence: run.OverallConfidence,
			PageCount:         run.PageCount,
			Warnings:          run.Warnings,
			StartedAt:         run.StartedAt.Format("2006-01-02T15:04:05Z07:00"),
			Error:             run.ErrorMessage,
		}
		if run.FinishedAt != nil {
			s := run.FinishedAt.Format("2006-01-02T15:04:05Z07:00")
			v.FinishedAt = &s
		}
		views = append(views, v)
	}
	writeJSON(w, http.StatusOK, map[string]any{"runs": views})
}

type batchRequest struct {
	SubmissionIDs   []string `json:"submissionIds"`
	Concurrency     int      `json:"concurrency"`
	RetryFailedOnly bool     `json:"retryFailedOnly"`
	ForceRetry      bool     `json:"forceRetry"`
	AllowNeedsOCR   bool     `json:"allowNeedsOcr"`
}

func (h *handlers) batchGrade(w http.ResponseWriter, r *http.Request) {
	if h.orch == nil {
		h.writeError(w, r, http.StatusNotImplemented, "NO_GRADER", "grading port not configured")
		return
	}
	var body batchRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		h.writeError(w, r, http.StatusBadRequest, "INVALID_BODY", "request body must be JSON")
		return
	}
	ids := make([]uuid.UUID, 0, len(body.SubmissionIDs))
	for _, raw := range body.SubmissionIDs {
		id, err := uuid.Parse(raw)
		if err != nil {
			h.writeError(w, r, http.StatusBadRequest, "INVALID_ID", "submission ids must be UUIDs")
			return
		}
		ids = append(ids, id)
	}
	summary, err := h.orch.Run(r.Context(), ids, batch.Options{
		Concurrency:     body.Concurrency,
		RetryFailedOnly: body.RetryFailedOnly,
		ForceRetry:      body.ForceRetry,
		AllowNeedsOCR:   body.AllowNeedsOCR,
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// writeServiceError maps the error taxonomy onto HTTP statuses.
func (h *handlers) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, common.ErrNotFound):
		h.writeError(w, r, http.StatusNotFound, "NOT_FOUND", "submission not found")
	case errors.Is(err, common.ErrInvalidInput):
		h.writeError(w, r, http.StatusBadRequest, "INVALID_INPUT", err.Error())
	case errors.Is(err, common.ErrConflict):
		h.writeError(w, r, http.StatusConflict, "CONFLICT", err.Error())
	default:
		h.log.Error("request failed", "path", r.URL.Path, "error", err)
		h.writeError(w, r, http.StatusInternalServerError, "INTERNAL", "extraction failed; see run history")
	}
}

func (h *handlers) writeError(w http.ResponseWriter, r *http.Request, status int, code, msg string) {
	writeJSON(w, status, errorEnvelope{
		Code:        code,
		UserMessage: msg,
		RequestID:   middleware.GetReqID(r.Context()),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
