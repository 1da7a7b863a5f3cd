package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"cgigen/internal/domain"
)

// JobRepositoryPG implements domain.JobRepository backed by PostgreSQL.
type JobRepositoryPG struct {
	pool *pgxpool.Pool
}

// NewJobRepository creates a new job repository backed by PostgreSQL.
func NewJobRepository(pool *pgxpool.Pool) *JobRepositoryPG {
	return &JobRepositoryPG{pool: pool}
}

const jobColumns = `id, owner_id, title, description, content_type, product_image_url, scene_image_url,
status, stage, progress, credits_reserved, cost_breakdown,
enhanced_description, generated_image_url, video_prompt, output_url,
error_message, created_at, updated_at`

// Create inserts a new job record.
func (r *JobRepositoryPG) Create(ctx context.Context, job *domain.Job) error {
	breakdown, err := marshalBreakdown(job.CostBreakdown)
	if err != nil {
		return err
	}
	query := `
INSERT INTO jobs (id, owner_id, title, description, content_type, product_image_url, scene_image_url,
                  status, stage, progress, credits_reserved, cost_breakdown)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12);
`
	_, err = r.pool.Exec(ctx, query,
		job.ID,
		job.OwnerID,
		job.Title,
		job.Description,
		job.ContentType,
		job.ProductImageURL,
		job.SceneImageURL,
		job.Status,
		job.Stage,
		job.Progress,
		job.CreditsReserved,
		breakdown,
	)
	return err
}

// GetByID fetches a job scoped to its owner. Jobs owned by other accounts
// report ErrNotFound.
func (r *JobRepositoryPG) GetByID(ctx context.Context, jobID, ownerID string) (*domain.Job, error) {
	query := fmt.Sprintf(`SELECT %s FROM jobs WHERE id = $1 AND owner_id = $2;`, jobColumns)
	return scanJob(r.pool.QueryRow(ctx, query, jobID, ownerID))
}

// Update applies a partial patch to a job record.
func (r *JobRepositoryPG) Update(ctx context.Context, jobID string, patch domain.JobPatch) error {
	var costDelta []byte
	if patch.StageCost != nil {
		b, err := json.Marshal(map[domain.JobStage]int64{patch.StageCost.Stage: patch.StageCost.Cents})
		if err != nil {
			return err
		}
		costDelta = b
	}
	query := `
UPDATE jobs
SET status = COALESCE($2, status),
    stage = COALESCE($3, stage),
    progress = COALESCE($4, progress),
    enhanced_description = COALESCE($5, enhanced_description),
    generated_image_url = COALESCE($6, generated_image_url),
    video_prompt = COALESCE($7, video_prompt),
    output_url = COALESCE($8, output_url),
    error_message = COALESCE($9, error_message),
    cost_breakdown = cost_breakdown || COALESCE($10::jsonb, '{}'::jsonb),
    updated_at = NOW()
WHERE id = $1;
`
	tag, err := r.pool.Exec(ctx, query,
		jobID,
		(*string)(patch.Status),
		(*string)(patch.Stage),
		patch.Progress,
		patch.EnhancedDescription,
		patch.GeneratedImageURL,
		patch.VideoPrompt,
		patch.OutputURL,
		patch.ErrorMessage,
		nullableBytes(costDelta),
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// ListByOwner returns the owner's jobs most-recent-first.
func (r *JobRepositoryPG) ListByOwner(ctx context.Context, ownerID string) ([]domain.Job, error) {
	query := fmt.Sprintf(`SELECT %s FROM jobs WHERE owner_id = $1 ORDER BY created_at DESC;`, jobColumns)
	rows, err := r.pool.Query(ctx, query, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []domain.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, *job)
	}
	return jobs, rows.Err()
}

func scanJob(row pgx.Row) (*domain.Job, error) {
	var job domain.Job
	var breakdown []byte
	if err := row.Scan(
		&job.ID,
		&job.OwnerID,
		&job.Title,
		&job.Description,
		&job.ContentType,
		&job.ProductImageURL,
		&job.SceneImageURL,
		&job.Status,
		&job.Stage,
		&job.Progress,
		&job.CreditsReserved,
		&breakdown,
		&job.EnhancedDescription,
		&job.GeneratedImageURL,
		&job.VideoPrompt,
		&job.OutputURL,
		&job.ErrorMessage,
		&job.CreatedAt,
		&job.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	if len(breakdown) > 0 {
		if err := json.Unmarshal(breakdown, &job.CostBreakdown); err != nil {
			return nil, fmt.Errorf("decode cost breakdown: %w", err)
		}
	}
	return &job, nil
}

func marshalBreakdown(b map[domain.JobStage]int64) ([]byte, error) {
	if b == nil {
		return []byte(`{}`), nil
	}
	return json.Marshal(b)
}

func nullableBytes(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	return b
}

var _ domain.JobRepository = (*JobRepositoryPG)(nil)
