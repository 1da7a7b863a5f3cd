package pipeline

import (
	"context"
	"fmt"

	"cgigen/internal/domain"
	"cgigen/internal/infra"
	"cgigen/internal/providers/image"
	"cgigen/internal/providers/prompt"
	"cgigen/internal/providers/video"
)

// Executor drives one job through the fixed stage sequence:
//
//	enhancing_description -> generating_image -> [creating_video_prompt -> generating_video] -> completed
//
// Enhancement stages absorb provider failure by substituting a built-in
// template. Generation stages fail the job and refund the full reservation.
// The executor is the sole writer of its job's record while it runs.
type Executor struct {
	jobs     domain.JobRepository
	ledger   domain.CreditLedger
	enhancer prompt.Enhancer
	prompter prompt.VideoPrompter
	images   image.Generator
	videos   video.Generator
	logger   infra.Logger
}

// NewExecutor wires the pipeline against its collaborators. The videos
// generator is expected to carry its own failover policy.
func NewExecutor(
	jobs domain.JobRepository,
	ledger domain.CreditLedger,
	enhancer prompt.Enhancer,
	prompter prompt.VideoPrompter,
	images image.Generator,
	videos video.Generator,
	logger infra.Logger,
) *Executor {
	return &Executor{
		jobs:     jobs,
		ledger:   ledger,
		enhancer: enhancer,
		prompter: prompter,
		images:   images,
		videos:   videos,
		logger:   logger,
	}
}

// Run executes the pipeline for one job. It is meant to run detached from
// the submission call; a panic inside a stage is caught here so the job
// still lands in the failed state and the refund path still runs.
func (e *Executor) Run(ctx context.Context, jobID, ownerID string) {
	var job *domain.Job
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error().Str("job_id", jobID).Interface("panic", r).Msg("pipeline: stage panicked")
			if job != nil {
				e.fail(ctx, job, fmt.Errorf("internal pipeline fault"))
			}
		}
	}()

	job, err := e.jobs.GetByID(ctx, jobID, ownerID)
	if err != nil {
		e.logger.Error().Err(err).Str("job_id", jobID).Msg("pipeline: job load failed")
		return
	}
	if job.Status.Terminal() {
		return
	}

	e.runEnhanceDescription(ctx, job)

	if !e.runGenerateImage(ctx, job) {
		return
	}

	if job.ContentType == domain.ContentTypeImage {
		e.complete(ctx, job, job.GeneratedImageURL)
		return
	}

	e.runComposeVideoPrompt(ctx, job)

	if !e.runGenerateVideo(ctx, job) {
		return
	}

	e.complete(ctx, job, job.OutputURL)
}

// runEnhanceDescription is stage 1. It never fails the job: on provider
// failure the built-in generic template is used instead.
func (e *Executor) runEnhanceDescription(ctx context.Context, job *domain.Job) {
	e.advance(ctx, job, domain.StageEnhancingDescription, domain.ProgressEnhancingDescription)

	enh, err := e.enhancer.Enhance(ctx, prompt.EnhanceRequest{
		ProductImageURL: job.ProductImageURL,
		SceneImageURL:   job.SceneImageURL,
		Intent:          job.Description,
	})
	var text string
	var cost int64
	if err != nil {
		e.logger.Warn().Err(err).Str("job_id", job.ID).Msg("pipeline: description enhancement failed, using generic template")
		text = genericDescription(job)
	} else {
		text = enh.Text
		cost = enh.CostCents
	}

	job.EnhancedDescription = text
	patch := domain.JobPatch{EnhancedDescription: &text}
	if cost > 0 {
		e.recordCost(job, domain.StageEnhancingDescription, cost)
		patch.StageCost = &domain.StageCost{Stage: domain.StageEnhancingDescription, Cents: cost}
	}
	e.apply(ctx, job.ID, patch)
}

// runGenerateImage is stage 2. Provider failure here is unrecoverable: the
// job fails and the full reservation is refunded.
func (e *Executor) runGenerateImage(ctx context.Context, job *domain.Job) bool {
	e.advance(ctx, job, domain.StageGeneratingImage, domain.ProgressGeneratingImage)

	asset, err := e.images.Generate(ctx, image.GenerateRequest{
		Description:     job.EnhancedDescription,
		ProductImageURL: job.ProductImageURL,
		SceneImageURL:   job.SceneImageURL,
		RequestID:       job.ID,
	})
	if err != nil {
		e.fail(ctx, job, fmt.Errorf("image generation: %w", err))
		return false
	}

	job.GeneratedImageURL = asset.URL
	e.recordCost(job, domain.StageGeneratingImage, asset.CostCents)
	e.apply(ctx, job.ID, domain.JobPatch{
		GeneratedImageURL: &asset.URL,
		StageCost:         &domain.StageCost{Stage: domain.StageGeneratingImage, Cents: asset.CostCents},
	})
	return true
}

// runComposeVideoPrompt is stage 4, mirroring stage 1's absorb-and-continue
// policy.
func (e *Executor) runComposeVideoPrompt(ctx context.Context, job *domain.Job) {
	e.advance(ctx, job, domain.StageCreatingVideoPrompt, domain.ProgressCreatingVideoPrompt)

	comp, err := e.prompter.Compose(ctx, prompt.ComposeRequest{
		ImageURL: job.GeneratedImageURL,
		Intent:   job.Description,
	})
	var text string
	var cost int64
	if err != nil {
		e.logger.Warn().Err(err).Str("job_id", job.ID).Msg("pipeline: video prompt composition failed, using generic template")
		text = genericVideoPrompt(job)
	} else {
		text = comp.Text
		cost = comp.CostCents
	}

	job.VideoPrompt = text
	patch := domain.JobPatch{VideoPrompt: &text}
	if cost > 0 {
		e.recordCost(job, domain.StageCreatingVideoPrompt, cost)
		patch.StageCost = &domain.StageCost{Stage: domain.StageCreatingVideoPrompt, Cents: cost}
	}
	e.apply(ctx, job.ID, patch)
}

// runGenerateVideo is stage 5. The generator already encapsulates the
// primary-then-fallback policy; by the time an error reaches here every
// provider has failed, so the job fails with a full refund.
func (e *Executor) runGenerateVideo(ctx context.Context, job *domain.Job) bool {
	e.advance(ctx, job, domain.StageGeneratingVideo, domain.ProgressGeneratingVideo)

	asset, err := e.videos.Generate(ctx, video.GenerateRequest{
		ImageURL:  job.GeneratedImageURL,
		Prompt:    job.VideoPrompt,
		RequestID: job.ID,
	})
	if err != nil {
		e.fail(ctx, job, fmt.Errorf("video generation: %w", err))
		return false
	}

	e.logger.Info().
		Str("job_id", job.ID).
		Str("provider", asset.Provider).
		Int64("cost_cents", asset.CostCents).
		Msg("pipeline: video generated")

	job.OutputURL = asset.URL
	e.recordCost(job, domain.StageGeneratingVideo, asset.CostCents)
	e.apply(ctx, job.ID, domain.JobPatch{
		OutputURL: &asset.URL,
		StageCost: &domain.StageCost{Stage: domain.StageGeneratingVideo, Cents: asset.CostCents},
	})
	return true
}

// advance moves the job to the next stage checkpoint. Progress only ever
// increases; stages never transition backwards.
func (e *Executor) advance(ctx context.Context, job *domain.Job, stage domain.JobStage, progress int) {
	job.Stage = stage
	job.Progress = progress
	e.apply(ctx, job.ID, domain.JobPatch{Stage: &stage, Progress: &progress})
}

// complete marks the job terminal-successful with the final artifact.
func (e *Executor) complete(ctx context.Context, job *domain.Job, outputURL string) {
	status := domain.JobStatusCompleted
	stage := domain.StageCompleted
	progress := domain.ProgressCompleted
	e.apply(ctx, job.ID, domain.JobPatch{
		Status:    &status,
		Stage:     &stage,
		Progress:  &progress,
		OutputURL: &outputURL,
	})
	e.logger.Info().
		Str("job_id", job.ID).
		Str("content_type", string(job.ContentType)).
		Int64("total_cost_cents", job.TotalCostCents()).
		Msg("pipeline: job completed")
}

// fail marks the job terminal-failed and refunds the whole reservation,
// regardless of how far the pipeline got. Provider cost already incurred by
// earlier stages is not reconciled against the refund.
func (e *Executor) fail(ctx context.Context, job *domain.Job, cause error) {
	status := domain.JobStatusFailed
	msg := cause.Error()
	e.apply(ctx, job.ID, domain.JobPatch{Status: &status, ErrorMessage: &msg})

	if err := e.ledger.Refund(ctx, job.OwnerID, job.CreditsReserved); err != nil {
		e.logger.Error().Err(err).
			Str("job_id", job.ID).
			Str("user_id", job.OwnerID).
			Int("credits", job.CreditsReserved).
			Msg("pipeline: refund failed, credits leaked")
	}
	e.logger.Warn().Err(cause).Str("job_id", job.ID).Msg("pipeline: job failed")
}

func (e *Executor) apply(ctx context.Context, jobID string, patch domain.JobPatch) {
	if err := e.jobs.Update(ctx, jobID, patch); err != nil {
		e.logger.Error().Err(err).Str("job_id", jobID).Msg("pipeline: job update failed")
	}
}

func (e *Executor) recordCost(job *domain.Job, stage domain.JobStage, cents int64) {
	if job.CostBreakdown == nil {
		job.CostBreakdown = make(map[domain.JobStage]int64)
	}
	job.CostBreakdown[stage] = cents
}
