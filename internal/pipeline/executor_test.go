package pipeline

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"cgigen/internal/adapter/memory"
	"cgigen/internal/domain"
	"cgigen/internal/providers/image"
	"cgigen/internal/providers/prompt"
	"cgigen/internal/providers/video"
)

type enhancerFunc func(context.Context, prompt.EnhanceRequest) (*prompt.Enhancement, error)

func (f enhancerFunc) Enhance(ctx context.Context, req prompt.EnhanceRequest) (*prompt.Enhancement, error) {
	return f(ctx, req)
}

type prompterFunc func(context.Context, prompt.ComposeRequest) (*prompt.Enhancement, error)

func (f prompterFunc) Compose(ctx context.Context, req prompt.ComposeRequest) (*prompt.Enhancement, error) {
	return f(ctx, req)
}

type imageGenFunc func(context.Context, image.GenerateRequest) (*image.Asset, error)

func (f imageGenFunc) Generate(ctx context.Context, req image.GenerateRequest) (*image.Asset, error) {
	return f(ctx, req)
}

type videoGenFunc func(context.Context, video.GenerateRequest) (*video.Asset, error)

func (f videoGenFunc) Generate(ctx context.Context, req video.GenerateRequest) (*video.Asset, error) {
	return f(ctx, req)
}

func okEnhancer() enhancerFunc {
	return func(ctx context.Context, req prompt.EnhanceRequest) (*prompt.Enhancement, error) {
		return &prompt.Enhancement{Text: "enhanced description", CostCents: 1, Provider: "gemini"}, nil
	}
}

func okPrompter() prompterFunc {
	return func(ctx context.Context, req prompt.ComposeRequest) (*prompt.Enhancement, error) {
		return &prompt.Enhancement{Text: "cinematic motion prompt", CostCents: 1, Provider: "gemini"}, nil
	}
}

func okImageGen() imageGenFunc {
	return func(ctx context.Context, req image.GenerateRequest) (*image.Asset, error) {
		return &image.Asset{URL: "https://cdn.example.com/out.png", Format: "image/png", CostCents: 8, Provider: "fal-flux"}, nil
	}
}

func okVideoGen(cost int64, provider string) videoGenFunc {
	return func(ctx context.Context, req video.GenerateRequest) (*video.Asset, error) {
		return &video.Asset{URL: "https://cdn.example.com/out.mp4", Format: "video/mp4", CostCents: cost, Provider: provider}, nil
	}
}

// recordingStore wraps the memory job store and records every observed
// stage/progress write so tests can assert ordering and monotonicity.
type recordingStore struct {
	domain.JobRepository

	mu       sync.Mutex
	stages   []domain.JobStage
	progress []int
}

func (r *recordingStore) Update(ctx context.Context, jobID string, patch domain.JobPatch) error {
	r.mu.Lock()
	if patch.Stage != nil {
		r.stages = append(r.stages, *patch.Stage)
	}
	if patch.Progress != nil {
		r.progress = append(r.progress, *patch.Progress)
	}
	r.mu.Unlock()
	return r.JobRepository.Update(ctx, jobID, patch)
}

type fixture struct {
	store    *recordingStore
	users    *memory.UserStore
	service  *Service
	executor *Executor
}

func newFixture(t *testing.T, enhancer prompt.Enhancer, prompter prompt.VideoPrompter, images image.Generator, videos video.Generator) *fixture {
	t.Helper()
	store := &recordingStore{JobRepository: memory.NewJobStore()}
	users := memory.NewUserStore()
	logger := zerolog.Nop()
	executor := NewExecutor(store, users, enhancer, prompter, images, videos, logger)
	service := NewService(store, users, executor, logger)
	return &fixture{store: store, users: users, service: service, executor: executor}
}

func (f *fixture) seedUser(t *testing.T, credits int) string {
	t.Helper()
	u := &domain.User{ID: "owner-1", Name: "Owner", Email: "owner@example.com", Credits: credits}
	if err := f.users.Create(context.Background(), u); err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return u.ID
}

func (f *fixture) waitTerminal(t *testing.T, jobID, ownerID string) *domain.Job {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		job, err := f.store.GetByID(context.Background(), jobID, ownerID)
		if err != nil {
			t.Fatalf("GetByID returned error: %v", err)
		}
		if job.Status.Terminal() {
			return job
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatal("job never reached a terminal state")
	return nil
}

func imageSubmit() SubmitRequest {
	return SubmitRequest{
		Title:           "perfume launch",
		Description:     "luxury perfume on a beach at sunset",
		ContentType:     domain.ContentTypeImage,
		ProductImageURL: "https://cdn.example.com/product.png",
		SceneImageURL:   "https://cdn.example.com/scene.png",
	}
}

func videoSubmit() SubmitRequest {
	req := imageSubmit()
	req.ContentType = domain.ContentTypeVideo
	return req
}

func TestImageJobCompletes(t *testing.T) {
	f := newFixture(t, okEnhancer(), okPrompter(), okImageGen(), okVideoGen(120, "fal-kling"))
	owner := f.seedUser(t, 5)

	job, err := f.service.SubmitJob(context.Background(), owner, imageSubmit())
	if err != nil {
		t.Fatalf("SubmitJob returned error: %v", err)
	}
	if job.Status != domain.JobStatusProcessing || job.Progress != 0 {
		t.Fatalf("initial job = %s/%d, want processing/0", job.Status, job.Progress)
	}

	done := f.waitTerminal(t, job.ID, owner)
	if done.Status != domain.JobStatusCompleted {
		t.Fatalf("status = %s, want completed (error: %s)", done.Status, done.ErrorMessage)
	}
	if done.Progress != 100 || done.Stage != domain.StageCompleted {
		t.Fatalf("stage/progress = %s/%d, want completed/100", done.Stage, done.Progress)
	}
	if done.OutputURL != "https://cdn.example.com/out.png" {
		t.Fatalf("OutputURL = %q, want the generated image", done.OutputURL)
	}

	balance, _ := f.users.Balance(context.Background(), owner)
	if balance != 4 {
		t.Fatalf("balance = %d, want 4 after a 1-credit image job", balance)
	}
}

func TestImageJobStageOrdering(t *testing.T) {
	f := newFixture(t, okEnhancer(), okPrompter(), okImageGen(), okVideoGen(120, "fal-kling"))
	owner := f.seedUser(t, 5)

	job, err := f.service.SubmitJob(context.Background(), owner, imageSubmit())
	if err != nil {
		t.Fatalf("SubmitJob returned error: %v", err)
	}
	f.waitTerminal(t, job.ID, owner)

	want := []domain.JobStage{
		domain.StageEnhancingDescription,
		domain.StageGeneratingImage,
		domain.StageCompleted,
	}
	f.store.mu.Lock()
	got := append([]domain.JobStage(nil), f.store.stages...)
	f.store.mu.Unlock()
	if len(got) != len(want) {
		t.Fatalf("stage sequence = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("stage[%d] = %s, want %s", i, got[i], want[i])
		}
	}
}

func TestVideoJobStageOrderingAndMonotonicProgress(t *testing.T) {
	f := newFixture(t, okEnhancer(), okPrompter(), okImageGen(), okVideoGen(120, "fal-kling"))
	owner := f.seedUser(t, 5)

	job, err := f.service.SubmitJob(context.Background(), owner, videoSubmit())
	if err != nil {
		t.Fatalf("SubmitJob returned error: %v", err)
	}
	done := f.waitTerminal(t, job.ID, owner)
	if done.Status != domain.JobStatusCompleted {
		t.Fatalf("status = %s, want completed", done.Status)
	}
	if done.OutputURL != "https://cdn.example.com/out.mp4" {
		t.Fatalf("OutputURL = %q, want the generated video", done.OutputURL)
	}

	wantStages := []domain.JobStage{
		domain.StageEnhancingDescription,
		domain.StageGeneratingImage,
		domain.StageCreatingVideoPrompt,
		domain.StageGeneratingVideo,
		domain.StageCompleted,
	}
	f.store.mu.Lock()
	stages := append([]domain.JobStage(nil), f.store.stages...)
	progress := append([]int(nil), f.store.progress...)
	f.store.mu.Unlock()

	if len(stages) != len(wantStages) {
		t.Fatalf("stage sequence = %v, want %v", stages, wantStages)
	}
	for i := range wantStages {
		if stages[i] != wantStages[i] {
			t.Fatalf("stage[%d] = %s, want %s", i, stages[i], wantStages[i])
		}
	}
	for i := 1; i < len(progress); i++ {
		if progress[i] < progress[i-1] {
			t.Fatalf("progress decreased: %v", progress)
		}
	}
	if progress[len(progress)-1] != 100 {
		t.Fatalf("final progress = %d, want 100", progress[len(progress)-1])
	}
}

func TestInsufficientCreditsRejectsBeforeJobCreation(t *testing.T) {
	f := newFixture(t, okEnhancer(), okPrompter(), okImageGen(), okVideoGen(120, "fal-kling"))
	owner := f.seedUser(t, 3)

	_, err := f.service.SubmitJob(context.Background(), owner, videoSubmit())
	if !errors.Is(err, domain.ErrInsufficientCredits) {
		t.Fatalf("SubmitJob error = %v, want ErrInsufficientCredits", err)
	}

	balance, _ := f.users.Balance(context.Background(), owner)
	if balance != 3 {
		t.Fatalf("balance = %d, want unchanged 3", balance)
	}
	jobs, _ := f.store.ListByOwner(context.Background(), owner)
	if len(jobs) != 0 {
		t.Fatalf("jobs created = %d, want 0", len(jobs))
	}
}

func TestValidationRejectsBeforeAnyLedgerMovement(t *testing.T) {
	f := newFixture(t, okEnhancer(), okPrompter(), okImageGen(), okVideoGen(120, "fal-kling"))
	owner := f.seedUser(t, 5)

	req := imageSubmit()
	req.SceneImageURL = ""
	if _, err := f.service.SubmitJob(context.Background(), owner, req); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("missing scene ref error = %v, want ErrInvalidInput", err)
	}

	req = imageSubmit()
	req.ContentType = domain.ContentType("gif")
	if _, err := f.service.SubmitJob(context.Background(), owner, req); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("bad content type error = %v, want ErrInvalidInput", err)
	}

	balance, _ := f.users.Balance(context.Background(), owner)
	if balance != 5 {
		t.Fatalf("balance = %d, want untouched 5", balance)
	}
}

func TestImageGenerationFailureRefundsFully(t *testing.T) {
	failingImages := imageGenFunc(func(ctx context.Context, req image.GenerateRequest) (*image.Asset, error) {
		return nil, errors.New("flux overloaded")
	})
	f := newFixture(t, okEnhancer(), okPrompter(), failingImages, okVideoGen(120, "fal-kling"))
	owner := f.seedUser(t, 10)

	job, err := f.service.SubmitJob(context.Background(), owner, videoSubmit())
	if err != nil {
		t.Fatalf("SubmitJob returned error: %v", err)
	}
	done := f.waitTerminal(t, job.ID, owner)
	if done.Status != domain.JobStatusFailed {
		t.Fatalf("status = %s, want failed", done.Status)
	}
	if done.ErrorMessage == "" {
		t.Fatal("failed job has no error message")
	}
	if done.OutputURL != "" {
		t.Fatalf("failed job has output artifact %q", done.OutputURL)
	}

	balance, _ := f.users.Balance(context.Background(), owner)
	if balance != 10 {
		t.Fatalf("balance = %d, want fully refunded 10", balance)
	}
}

func TestEnhancementFailuresNeverFailTheJob(t *testing.T) {
	failingEnhancer := enhancerFunc(func(ctx context.Context, req prompt.EnhanceRequest) (*prompt.Enhancement, error) {
		return nil, errors.New("gemini quota exhausted")
	})
	failingPrompter := prompterFunc(func(ctx context.Context, req prompt.ComposeRequest) (*prompt.Enhancement, error) {
		return nil, errors.New("gemini quota exhausted")
	})
	var gotDescription string
	images := imageGenFunc(func(ctx context.Context, req image.GenerateRequest) (*image.Asset, error) {
		gotDescription = req.Description
		return okImageGen()(ctx, req)
	})
	var gotPrompt string
	videos := videoGenFunc(func(ctx context.Context, req video.GenerateRequest) (*video.Asset, error) {
		gotPrompt = req.Prompt
		return okVideoGen(120, "fal-kling")(ctx, req)
	})

	f := newFixture(t, failingEnhancer, failingPrompter, images, videos)
	owner := f.seedUser(t, 5)

	job, err := f.service.SubmitJob(context.Background(), owner, videoSubmit())
	if err != nil {
		t.Fatalf("SubmitJob returned error: %v", err)
	}
	done := f.waitTerminal(t, job.ID, owner)
	if done.Status != domain.JobStatusCompleted {
		t.Fatalf("status = %s, want completed despite enhancement failures", done.Status)
	}
	if !strings.Contains(gotDescription, "Perfume Launch") {
		t.Fatalf("image stage did not receive the generic description: %q", gotDescription)
	}
	if !strings.Contains(gotPrompt, "camera push-in") {
		t.Fatalf("video stage did not receive the generic prompt: %q", gotPrompt)
	}
	// Failed enhancement stages incur no cost.
	if _, ok := done.CostBreakdown[domain.StageEnhancingDescription]; ok {
		t.Fatalf("cost recorded for a failed enhancement stage: %#v", done.CostBreakdown)
	}
}

func TestVideoFallbackCostRecorded(t *testing.T) {
	primary := videoGenFunc(func(ctx context.Context, req video.GenerateRequest) (*video.Asset, error) {
		return nil, context.DeadlineExceeded
	})
	fallback := okVideoGen(90, "fal-minimax")
	failover, err := video.NewFailover(primary, fallback)
	if err != nil {
		t.Fatalf("NewFailover returned error: %v", err)
	}

	f := newFixture(t, okEnhancer(), okPrompter(), okImageGen(), failover)
	owner := f.seedUser(t, 10)

	job, err := f.service.SubmitJob(context.Background(), owner, videoSubmit())
	if err != nil {
		t.Fatalf("SubmitJob returned error: %v", err)
	}
	done := f.waitTerminal(t, job.ID, owner)
	if done.Status != domain.JobStatusCompleted {
		t.Fatalf("status = %s, want completed via fallback", done.Status)
	}
	if got := done.CostBreakdown[domain.StageGeneratingVideo]; got != 90 {
		t.Fatalf("video stage cost = %d, want fallback's 90", got)
	}

	balance, _ := f.users.Balance(context.Background(), owner)
	if balance != 5 {
		t.Fatalf("balance = %d, want 5 after a 5-credit video job", balance)
	}
}

func TestBothVideoProvidersFailingRefundsFully(t *testing.T) {
	broken := videoGenFunc(func(ctx context.Context, req video.GenerateRequest) (*video.Asset, error) {
		return nil, errors.New("provider down")
	})
	failover, err := video.NewFailover(broken, broken)
	if err != nil {
		t.Fatalf("NewFailover returned error: %v", err)
	}

	f := newFixture(t, okEnhancer(), okPrompter(), okImageGen(), failover)
	owner := f.seedUser(t, 10)

	job, err := f.service.SubmitJob(context.Background(), owner, videoSubmit())
	if err != nil {
		t.Fatalf("SubmitJob returned error: %v", err)
	}
	done := f.waitTerminal(t, job.ID, owner)
	if done.Status != domain.JobStatusFailed {
		t.Fatalf("status = %s, want failed", done.Status)
	}

	balance, _ := f.users.Balance(context.Background(), owner)
	if balance != 10 {
		t.Fatalf("balance = %d, want fully refunded 10", balance)
	}
}

func TestStagePanicIsSupervisedAndRefunds(t *testing.T) {
	panicking := imageGenFunc(func(ctx context.Context, req image.GenerateRequest) (*image.Asset, error) {
		panic("nil dereference in adapter")
	})
	f := newFixture(t, okEnhancer(), okPrompter(), panicking, okVideoGen(120, "fal-kling"))
	owner := f.seedUser(t, 10)

	job, err := f.service.SubmitJob(context.Background(), owner, videoSubmit())
	if err != nil {
		t.Fatalf("SubmitJob returned error: %v", err)
	}
	done := f.waitTerminal(t, job.ID, owner)
	if done.Status != domain.JobStatusFailed {
		t.Fatalf("status = %s, want failed after panic", done.Status)
	}

	balance, _ := f.users.Balance(context.Background(), owner)
	if balance != 10 {
		t.Fatalf("balance = %d, want fully refunded 10", balance)
	}
}

func TestCompletedVideoJobCostBreakdown(t *testing.T) {
	f := newFixture(t, okEnhancer(), okPrompter(), okImageGen(), okVideoGen(120, "fal-kling"))
	owner := f.seedUser(t, 5)

	job, err := f.service.SubmitJob(context.Background(), owner, videoSubmit())
	if err != nil {
		t.Fatalf("SubmitJob returned error: %v", err)
	}
	done := f.waitTerminal(t, job.ID, owner)

	want := map[domain.JobStage]int64{
		domain.StageEnhancingDescription: 1,
		domain.StageGeneratingImage:      8,
		domain.StageCreatingVideoPrompt:  1,
		domain.StageGeneratingVideo:      120,
	}
	for stage, cents := range want {
		if done.CostBreakdown[stage] != cents {
			t.Fatalf("CostBreakdown[%s] = %d, want %d", stage, done.CostBreakdown[stage], cents)
		}
	}
	if done.TotalCostCents() != 130 {
		t.Fatalf("TotalCostCents = %d, want 130", done.TotalCostCents())
	}
}
