package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"cgigen/internal/domain"
	"cgigen/internal/infra"
)

// SubmitRequest carries a validated-by-the-service job submission. The two
// image references are stable URLs produced by the upload flow; this
// service never touches raw bytes.
type SubmitRequest struct {
	Title           string
	Description     string
	ContentType     domain.ContentType
	ProductImageURL string
	SceneImageURL   string
}

// Service is the submission-side entry point: it validates inputs, reserves
// credits, creates the job record and hands the job to a detached executor
// run. The call returns with the initial job state; later state is read by
// polling.
type Service struct {
	jobs     domain.JobRepository
	ledger   domain.CreditLedger
	executor *Executor
	logger   infra.Logger
}

// NewService wires the submission service.
func NewService(jobs domain.JobRepository, ledger domain.CreditLedger, executor *Executor, logger infra.Logger) *Service {
	return &Service{jobs: jobs, ledger: ledger, executor: executor, logger: logger}
}

// SubmitJob validates the request, reserves credits sized to the content
// type, persists the job and spawns its pipeline. Validation and
// reservation failures happen before any job exists, so they leave no state
// behind.
func (s *Service) SubmitJob(ctx context.Context, ownerID string, req SubmitRequest) (*domain.Job, error) {
	if strings.TrimSpace(req.ProductImageURL) == "" || strings.TrimSpace(req.SceneImageURL) == "" {
		return nil, fmt.Errorf("%w: both product and scene image references are required", domain.ErrInvalidInput)
	}
	if !req.ContentType.Valid() {
		return nil, fmt.Errorf("%w: content type must be image or video", domain.ErrInvalidInput)
	}

	credits := domain.CreditCost(req.ContentType)
	if err := s.ledger.Reserve(ctx, ownerID, credits); err != nil {
		return nil, err
	}

	title := strings.TrimSpace(req.Title)
	if title == "" {
		title = "Untitled CGI project"
	}
	now := time.Now()
	job := &domain.Job{
		ID:              uuid.NewString(),
		OwnerID:         ownerID,
		Title:           title,
		Description:     strings.TrimSpace(req.Description),
		ContentType:     req.ContentType,
		ProductImageURL: req.ProductImageURL,
		SceneImageURL:   req.SceneImageURL,
		Status:          domain.JobStatusProcessing,
		Stage:           domain.StageStarting,
		Progress:        domain.ProgressStarting,
		CreditsReserved: credits,
		CostBreakdown:   map[domain.JobStage]int64{},
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := s.jobs.Create(ctx, job); err != nil {
		// The reservation must not outlive a job that never existed.
		if refundErr := s.ledger.Refund(ctx, ownerID, credits); refundErr != nil {
			s.logger.Error().Err(refundErr).Str("user_id", ownerID).Msg("submit: refund after create failure also failed")
		}
		return nil, err
	}

	s.logger.Info().
		Str("job_id", job.ID).
		Str("user_id", ownerID).
		Str("content_type", string(job.ContentType)).
		Int("credits_reserved", credits).
		Msg("submit: job accepted")

	// Detached from the request: the pipeline outlives the submission call
	// and must not die with its context.
	go s.executor.Run(context.WithoutCancel(ctx), job.ID, ownerID)

	return job.Clone(), nil
}

// GetJobStatus returns the owner-scoped job projection used for polling.
func (s *Service) GetJobStatus(ctx context.Context, jobID, ownerID string) (*domain.Job, error) {
	return s.jobs.GetByID(ctx, jobID, ownerID)
}

// ListJobs returns the owner's jobs, most recent first.
func (s *Service) ListJobs(ctx context.Context, ownerID string) ([]domain.Job, error) {
	return s.jobs.ListByOwner(ctx, ownerID)
}
