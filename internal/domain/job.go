package domain

import "time"

// Variant selects the pipeline a job runs. Each variant owns its own stage
// registry and status vocabulary.
type Variant string

const (
	// VariantProduct is the two-scene product short: a sequential chain of
	// six stages ending in a concatenated video with a CTA closing still.
	VariantProduct Variant = "product"
	// VariantCharacter is the five-segment character short: planning fans
	// out into N independent frame+clip sub-pipelines joined by a merge.
	VariantCharacter Variant = "character"
)

// Status enumerates job lifecycle states. In-progress values correspond to
// the highest-ordinal stage whose artifacts have been durably written.
type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"

	// Product variant stage statuses.
	StatusPlanning      Status = "planning"
	StatusPreparing     Status = "preparing"
	StatusGeneratingS1  Status = "generating_s1"
	StatusPreparingCTA  Status = "preparing_cta"
	StatusGeneratingS2  Status = "generating_s2"
	StatusConcatenating Status = "concatenating"

	// Character variant stage statuses (planning is shared).
	StatusRendering Status = "rendering"
	StatusMerging   Status = "merging"
)

// Terminal reports whether no further stages will run without an explicit
// resume or rework request.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Reference is an opaque, stable handle into the artifact store.
type Reference string

// Action is a pending control request recorded on a job and consumed by an
// executor, either the in-process runner or the polling worker.
type Action string

const (
	ActionRun    Action = "run"
	ActionResume Action = "resume"
	ActionRework Action = "rework"
)

// SegmentStatus tracks the terminal outcome of one fan-out segment.
type SegmentStatus string

const (
	SegmentPending   SegmentStatus = "pending"
	SegmentCompleted SegmentStatus = "completed"
	SegmentFailed    SegmentStatus = "failed"
)

// Segment is one independent unit of the character variant's fan-out stage.
// Segments are owned by their job and carry their own artifact sub-map.
type Segment struct {
	Index        int                  `json:"index"`
	Title        string               `json:"title"`
	Seconds      int                  `json:"seconds"`
	Prompt       string               `json:"prompt"`
	Status       SegmentStatus        `json:"status"`
	Artifacts    map[string]Reference `json:"artifacts"`
	ErrorMessage string               `json:"error_message,omitempty"`
}

// Input is the submission payload for a job. Which fields are consulted
// depends on the variant; binary assets travel separately and are seeded into
// the artifact map at submission time, so stage definitions reference them
// like any other artifact.
type Input struct {
	Topic              string `json:"topic,omitempty"`
	Script             string `json:"script,omitempty"`
	ProductBrand       string `json:"product_brand,omitempty"`
	ProductDescription string `json:"product_description,omitempty"`
	GameName           string `json:"game_name,omitempty"`
	UserPrompt         string `json:"user_prompt,omitempty"`
}

// Job is one production request's mutable execution record. The artifact map
// is append-only during normal execution: a completed stage's references are
// never removed, only an explicit rework may overwrite them.
type Job struct {
	ID            string
	Variant       Variant
	Status        Status
	FailedAtStage string
	CurrentStep   string
	ErrorMessage  string
	Input         Input
	Artifacts     map[string]Reference
	Segments      []Segment
	PendingAction Action
	ReworkStage   string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}
