package domain

import "time"

// ContentType enumerates what a job ultimately produces.
type ContentType string

const (
	ContentTypeImage ContentType = "image"
	ContentTypeVideo ContentType = "video"
)

// Valid reports whether the content type is one the pipeline can run.
func (c ContentType) Valid() bool {
	return c == ContentTypeImage || c == ContentTypeVideo
}

// JobStatus enumerates job lifecycle states. Completed and failed are
// terminal; a terminal job is never mutated again.
type JobStatus string

const (
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

// Terminal reports whether the status admits no further transitions.
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// JobStage enumerates the fixed forward sequence of pipeline steps.
type JobStage string

const (
	StageStarting             JobStage = "starting"
	StageEnhancingDescription JobStage = "enhancing_description"
	StageGeneratingImage      JobStage = "generating_image"
	StageCreatingVideoPrompt  JobStage = "creating_video_prompt"
	StageGeneratingVideo      JobStage = "generating_video"
	StageCompleted            JobStage = "completed"
)

// Progress checkpoints per stage. These are fixed values for a polling
// client's progress bar, not derived from elapsed time.
const (
	ProgressStarting             = 0
	ProgressEnhancingDescription = 10
	ProgressGeneratingImage      = 35
	ProgressCreatingVideoPrompt  = 60
	ProgressGeneratingVideo      = 80
	ProgressCompleted            = 100
)

// Credit prices per content type. Fixed business constants.
const (
	CreditCostImage = 1
	CreditCostVideo = 5
)

// CreditCost returns the reservation size for a content type.
func CreditCost(c ContentType) int {
	if c == ContentTypeVideo {
		return CreditCostVideo
	}
	return CreditCostImage
}

// Job encapsulates the lifecycle of one CGI generation request.
type Job struct {
	ID              string
	OwnerID         string
	Title           string
	Description     string
	ContentType     ContentType
	ProductImageURL string
	SceneImageURL   string

	Status   JobStatus
	Stage    JobStage
	Progress int

	CreditsReserved int
	// CostBreakdown accumulates incurred provider cost per stage, in USD
	// cents, as stages complete.
	CostBreakdown map[JobStage]int64

	EnhancedDescription string
	GeneratedImageURL   string
	VideoPrompt         string
	OutputURL           string

	ErrorMessage string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// TotalCostCents sums the incurred provider cost across executed stages.
func (j *Job) TotalCostCents() int64 {
	var total int64
	for _, c := range j.CostBreakdown {
		total += c
	}
	return total
}

// Clone returns a deep copy so store readers never observe a
// partially-applied patch.
func (j *Job) Clone() *Job {
	cp := *j
	if j.CostBreakdown != nil {
		cp.CostBreakdown = make(map[JobStage]int64, len(j.CostBreakdown))
		for k, v := range j.CostBreakdown {
			cp.CostBreakdown[k] = v
		}
	}
	return &cp
}

// StageCost records the provider cost incurred by one executed stage.
type StageCost struct {
	Stage JobStage
	Cents int64
}

// JobPatch is a partial mutation applied by the pipeline executor. Nil
// fields are left untouched.
type JobPatch struct {
	Status              *JobStatus
	Stage               *JobStage
	Progress            *int
	EnhancedDescription *string
	GeneratedImageURL   *string
	VideoPrompt         *string
	OutputURL           *string
	ErrorMessage        *string
	StageCost           *StageCost
}
