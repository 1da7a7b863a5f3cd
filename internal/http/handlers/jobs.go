package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"cgigen/internal/domain"
	"cgigen/internal/pipeline"
)

type createJobRequest struct {
	Title           string `json:"title"`
	Description     string `json:"description"`
	ContentType     string `json:"content_type"`
	ProductImageURL string `json:"product_image_url"`
	SceneImageURL   string `json:"scene_image_url"`
}

type jobResponse struct {
	ID              string           `json:"id"`
	Title           string           `json:"title"`
	ContentType     string           `json:"content_type"`
	Status          string           `json:"status"`
	Stage           string           `json:"stage"`
	Progress        int              `json:"progress"`
	CreditsReserved int              `json:"credits_reserved"`
	CostBreakdown   map[string]int64 `json:"cost_breakdown,omitempty"`
	Artifacts       jobArtifacts     `json:"artifacts"`
	Error           string           `json:"error,omitempty"`
	CreatedAt       time.Time        `json:"created_at"`
	UpdatedAt       time.Time        `json:"updated_at"`
}

type jobArtifacts struct {
	EnhancedDescription string `json:"enhanced_description,omitempty"`
	GeneratedImageURL   string `json:"generated_image_url,omitempty"`
	VideoPrompt         string `json:"video_prompt,omitempty"`
	OutputURL           string `json:"output_url,omitempty"`
}

// CreateJob submits a generation job. Credits are reserved before the job
// exists; the pipeline runs detached and the response carries the initial
// state for polling.
func (a *App) CreateJob(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	var req createJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}

	job, err := a.Pipeline.SubmitJob(r.Context(), userID, pipeline.SubmitRequest{
		Title:           req.Title,
		Description:     req.Description,
		ContentType:     domain.ContentType(req.ContentType),
		ProductImageURL: req.ProductImageURL,
		SceneImageURL:   req.SceneImageURL,
	})
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidInput):
			a.error(w, http.StatusBadRequest, "bad_request", err.Error())
		case errors.Is(err, domain.ErrInsufficientCredits):
			a.error(w, http.StatusPaymentRequired, "insufficient_credits", "not enough credits for this job")
		default:
			a.Logger.Error().Err(err).Str("user_id", userID).Msg("jobs: submit failed")
			a.error(w, http.StatusInternalServerError, "internal", "failed to submit job")
		}
		return
	}
	a.json(w, http.StatusAccepted, map[string]any{"job": toJobResponse(job)})
}

// JobStatus returns the polling projection of one job.
func (a *App) JobStatus(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	jobID := chi.URLParam(r, "job_id")
	job, err := a.Pipeline.GetJobStatus(r.Context(), jobID, userID)
	if err != nil {
		a.error(w, http.StatusNotFound, "not_found", "job not found")
		return
	}
	a.json(w, http.StatusOK, map[string]any{"job": toJobResponse(job)})
}

// ListJobs returns the account's jobs, most recent first.
func (a *App) ListJobs(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	jobs, err := a.Pipeline.ListJobs(r.Context(), userID)
	if err != nil {
		a.Logger.Error().Err(err).Str("user_id", userID).Msg("jobs: list failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to list jobs")
		return
	}
	out := make([]jobResponse, 0, len(jobs))
	for i := range jobs {
		out = append(out, toJobResponse(&jobs[i]))
	}
	a.json(w, http.StatusOK, map[string]any{"jobs": out})
}

// DownloadJob returns the output of a completed job.
func (a *App) DownloadJob(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	jobID := chi.URLParam(r, "job_id")
	job, err := a.Pipeline.GetJobStatus(r.Context(), jobID, userID)
	if err != nil || job.Status != domain.JobStatusCompleted {
		a.error(w, http.StatusNotFound, "not_found", "job not available for download")
		return
	}
	a.json(w, http.StatusOK, map[string]any{
		"download_url": job.OutputURL,
		"content_type": job.ContentType,
		"preview_url":  job.GeneratedImageURL,
	})
}

func toJobResponse(j *domain.Job) jobResponse {
	resp := jobResponse{
		ID:              j.ID,
		Title:           j.Title,
		ContentType:     string(j.ContentType),
		Status:          string(j.Status),
		Stage:           string(j.Stage),
		Progress:        j.Progress,
		CreditsReserved: j.CreditsReserved,
		Artifacts: jobArtifacts{
			EnhancedDescription: j.EnhancedDescription,
			GeneratedImageURL:   j.GeneratedImageURL,
			VideoPrompt:         j.VideoPrompt,
			OutputURL:           j.OutputURL,
		},
		Error:     j.ErrorMessage,
		CreatedAt: j.CreatedAt,
		UpdatedAt: j.UpdatedAt,
	}
	if len(j.CostBreakdown) > 0 {
		resp.CostBreakdown = make(map[string]int64, len(j.CostBreakdown))
		for stage, cents := range j.CostBreakdown {
			resp.CostBreakdown[string(stage)] = cents
		}
	}
	return resp
}
