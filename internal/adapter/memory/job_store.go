package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"cgigen/internal/domain"
)

// JobStore is an in-memory domain.JobRepository. Records are copied on the
// way in and out so readers always observe a consistent snapshot.
type JobStore struct {
	mu   sync.RWMutex
	jobs map[string]*domain.Job
}

// NewJobStore creates an empty in-memory job store.
func NewJobStore() *JobStore {
	return &JobStore{jobs: make(map[string]*domain.Job)}
}

// Create inserts a new job record.
func (s *JobStore) Create(ctx context.Context, job *domain.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.ID] = job.Clone()
	return nil
}

// GetByID fetches a job scoped to its owner. A job owned by someone else
// reports ErrNotFound so existence does not leak across accounts.
func (s *JobStore) GetByID(ctx context.Context, jobID, ownerID string) (*domain.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.jobs[jobID]
	if !ok || job.OwnerID != ownerID {
		return nil, domain.ErrNotFound
	}
	return job.Clone(), nil
}

// Update applies a partial patch to a job record.
func (s *JobStore) Update(ctx context.Context, jobID string, patch domain.JobPatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return domain.ErrNotFound
	}
	if patch.Status != nil {
		job.Status = *patch.Status
	}
	if patch.Stage != nil {
		job.Stage = *patch.Stage
	}
	if patch.Progress != nil {
		job.Progress = *patch.Progress
	}
	if patch.EnhancedDescription != nil {
		job.EnhancedDescription = *patch.EnhancedDescription
	}
	if patch.GeneratedImageURL != nil {
		job.GeneratedImageURL = *patch.GeneratedImageURL
	}
	if patch.VideoPrompt != nil {
		job.VideoPrompt = *patch.VideoPrompt
	}
	if patch.OutputURL != nil {
		job.OutputURL = *patch.OutputURL
	}
	if patch.ErrorMessage != nil {
		job.ErrorMessage = *patch.ErrorMessage
	}
	if patch.StageCost != nil {
		if job.CostBreakdown == nil {
			job.CostBreakdown = make(map[domain.JobStage]int64)
		}
		job.CostBreakdown[patch.StageCost.Stage] = patch.StageCost.Cents
	}
	job.UpdatedAt = time.Now()
	return nil
}

// ListByOwner returns the owner's jobs most-recent-first.
func (s *JobStore) ListByOwner(ctx context.Context, ownerID string) ([]domain.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Job, 0)
	for _, job := range s.jobs {
		if job.OwnerID == ownerID {
			out = append(out, *job.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

var _ domain.JobRepository = (*JobStore)(nil)
