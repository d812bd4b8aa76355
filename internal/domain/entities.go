// Package domain defines the entities and ports of the CV screening
// pipeline. It stays dependency-free so adapters and usecases can be
// swapped without touching the core model.
package domain

import (
	"context"
	"errors"
	"time"
)

// Error taxonomy (sentinels)
var (
	ErrInvalidArgument   = errors.New("invalid argument")
	ErrNotFound          = errors.New("not found")
	ErrConflict          = errors.New("conflict")
	ErrTooShort          = errors.New("extracted text too short")
	ErrUpstreamTimeout   = errors.New("upstream timeout")
	ErrUpstreamRateLimit = errors.New("upstream rate limit")
	ErrSchemaInvalid     = errors.New("schema invalid")
	ErrInternal          = errors.New("internal error")
)

// Recommendation buckets produced by the scorer, plus the degraded bucket
// the orchestrator assigns when a candidate's model call fails outright.
const (
	RecommendShortlist = "SHORTLIST"
	RecommendReview    = "REVIEW"
	RecommendReject    = "REJECT"
	RecommendError     = "ERROR"
)

// Project relevance levels.
const (
	RelevanceLow    = "low"
	RelevanceMedium = "medium"
	RelevanceHigh   = "high"
)

// Issue types the extraction contract may report.
const (
	IssueAmbiguous     = "ambiguous"
	IssueContradiction = "contradiction"
	IssueWeakEvidence  = "weak_evidence"
	IssueError         = "error"
	IssueWarning       = "warning"
)

// SkillMatch is one required or preferred skill claim. Found=true requires
// a verbatim Evidence quote from the CV text; Normalize enforces this.
type SkillMatch struct {
	Skill    string `json:"skill"`
	Found    bool   `json:"found"`
	Evidence string `json:"evidence,omitempty"`
}

// Project is one project claim extracted from the CV.
type Project struct {
	Title           string   `json:"title"`
	Technologies    []string `json:"technologies,omitempty"`
	DeploymentProof bool     `json:"deployment_proof"`
	Relevance       string   `json:"relevance"`
}

// TransferableSkill carries no Found flag: its presence implies a quote
// exists, so Evidence must be non-empty.
type TransferableSkill struct {
	Skill    string `json:"skill"`
	Evidence string `json:"evidence"`
}

// Issue is an extraction-quality finding that the scorer penalizes.
type Issue struct {
	Type        string `json:"type"`
	Description string `json:"description"`
}

// CandidateProfile is the structured schema a candidate's CV is reduced
// to by the extraction contract. Constructed once per candidate by the
// repair layer, normalized, then treated as immutable.
type CandidateProfile struct {
	RequiredSkills     []SkillMatch        `json:"required_skills"`
	PreferredSkills    []SkillMatch        `json:"preferred_skills"`
	Projects           []Project           `json:"projects"`
	TransferableSkills []TransferableSkill `json:"transferable_skills"`
	ExperienceYears    int                 `json:"experience_years"`
	Issues             []Issue             `json:"issues"`
}

// EmptyProfile returns the canonical empty extraction: all sequences
// empty, zero experience, a single issue describing the failure.
func EmptyProfile(issueType, description string) CandidateProfile {
	return CandidateProfile{
		RequiredSkills:     []SkillMatch{},
		PreferredSkills:    []SkillMatch{},
		Projects:           []Project{},
		TransferableSkills: []TransferableSkill{},
		Issues:             []Issue{{Type: issueType, Description: description}},
	}
}

// Normalize enforces the construction invariants in place and returns the
// receiver for chaining:
//   - found=true without evidence is downgraded to found=false and a
//     weak_evidence issue is recorded (no quote, no claim);
//   - transferable skills without evidence are dropped;
//   - relevance values outside {low,medium,high} become low;
//   - negative experience years are clamped to zero;
//   - nil sequences become empty so consumers can range without checks.
func (p *CandidateProfile) Normalize() *CandidateProfile {
	if p.RequiredSkills == nil {
		p.RequiredSkills = []SkillMatch{}
	}
	if p.PreferredSkills == nil {
		p.PreferredSkills = []SkillMatch{}
	}
	if p.Projects == nil {
		p.Projects = []Project{}
	}
	if p.TransferableSkills == nil {
		p.TransferableSkills = []TransferableSkill{}
	}
	if p.Issues == nil {
		p.Issues = []Issue{}
	}
	normSkills := func(skills []SkillMatch) {
		for i := range skills {
			if skills[i].Found && skills[i].Evidence == "" {
				skills[i].Found = false
				p.Issues = append(p.Issues, Issue{
					Type:        IssueWeakEvidence,
					Description: "claimed skill without evidence: " + skills[i].Skill,
				})
			}
		}
	}
	normSkills(p.RequiredSkills)
	normSkills(p.PreferredSkills)
	kept := p.TransferableSkills[:0]
	for _, ts := range p.TransferableSkills {
		if ts.Evidence != "" {
			kept = append(kept, ts)
		}
	}
	p.TransferableSkills = kept
	for i := range p.Projects {
		switch p.Projects[i].Relevance {
		case RelevanceLow, RelevanceMedium, RelevanceHigh:
		default:
			p.Projects[i].Relevance = RelevanceLow
		}
	}
	if p.ExperienceYears < 0 {
		p.ExperienceYears = 0
	}
	return p
}

// ScoreResult is the deterministic scorer's output. FinalScore is the
// base score plus every category contribution, clamped to [0,100] as the
// last step; Breakdown is the additive ledger in application order.
type ScoreResult struct {
	FinalScore     int                 `json:"final_score"`
	Recommendation string              `json:"recommendation"`
	Breakdown      []string            `json:"breakdown"`
	Details        map[string][]string `json:"details"`
}

// CandidateResult is the final per-candidate artifact. Read-only once
// produced; collected and later sorted by the ranking stage.
type CandidateResult struct {
	CVFile         string              `json:"cv_file"`
	FitScore       int                 `json:"fit_score"`
	Recommendation string              `json:"recommendation"`
	Summary        string              `json:"summary"`
	Breakdown      []string            `json:"breakdown"`
	ExtractedData  CandidateProfile    `json:"extracted_data"`
	Details        map[string][]string `json:"details"`
	CVTextPreview  string              `json:"cv_text_preview"`
}

// BatchStats partitions results by recommendation bucket.
type BatchStats struct {
	Total     int `json:"total"`
	Shortlist int `json:"shortlist"`
	Review    int `json:"review"`
	Reject    int `json:"reject"`
}

// BatchStatus tracks a screening batch through the queue.
type BatchStatus string

// Batch lifecycle states.
const (
	BatchQueued     BatchStatus = "queued"
	BatchProcessing BatchStatus = "processing"
	BatchCompleted  BatchStatus = "completed"
	BatchFailed     BatchStatus = "failed"
)

// Batch is one screening run over a set of candidates.
type Batch struct {
	ID             string
	Status         BatchStatus
	JobDescription string
	Total          int
	Completed      int
	Failed         int
	Error          string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Repositories (ports)

// BatchRepository persists screening batches.
type BatchRepository interface {
	Create(ctx Context, b Batch) (string, error)
	Get(ctx Context, id string) (Batch, error)
	UpdateStatus(ctx Context, id string, status BatchStatus, errMsg *string) error
	UpdateCounts(ctx Context, id string, completed, failed int) error
}

// ResultRepository persists per-candidate results for a batch.
type ResultRepository interface {
	Insert(ctx Context, batchID string, r CandidateResult) error
	ListByBatch(ctx Context, batchID string) ([]CandidateResult, error)
}

// Queue (port)

// ScreenTaskPayload is the unit of work carried on the queue: one batch
// with its fully materialized candidate texts. Text extraction happens
// before enqueue; text availability is a precondition, not a stream.
type ScreenTaskPayload struct {
	BatchID         string            `json:"batch_id"`
	JobDescription  string            `json:"job_description"`
	Candidates      map[string]string `json:"candidates"`
	Concurrency     int               `json:"concurrency"`
	EnableSummaries bool              `json:"enable_summaries"`
}

// Queue enqueues screening tasks for asynchronous processing.
type Queue interface {
	EnqueueScreen(ctx Context, payload ScreenTaskPayload) (string, error)
}

// AIClient (port)

// AIClient is the model-inference collaborator. ChatJSON sends a
// system+user prompt pair and returns the raw completion text, which may
// be malformed; the repair layer owns coercing it into a profile.
type AIClient interface {
	ChatJSON(ctx Context, systemPrompt, userPrompt string, maxTokens int) (string, error)
}

// ProfileExtractor (port)

// ProfileExtractor turns one candidate's CV text into a normalized
// profile via the model collaborator, absorbing malformed responses.
// ExtractProfile fails only when the model call itself fails; response
// shape problems degrade to an empty or partial profile instead.
type ProfileExtractor interface {
	ExtractProfile(ctx Context, jobDescription, candidate, cvText string) (CandidateProfile, error)
	Summarize(ctx Context, jobDescription, candidate string, fitScore int, recommendation string, breakdown []string) (string, error)
}

// TextExtractor (port)

// TextExtractor extracts plain text from a candidate file. Implementations
// return ErrTooShort (wrapped) when the extracted text is below the
// usable minimum; such candidates are skipped before scoring.
type TextExtractor interface {
	ExtractPath(ctx Context, fileName, path string) (string, error)
}

// ProgressStore (port)

// ProgressSnapshot is the last reported progress of a running batch.
type ProgressSnapshot struct {
	Completed      int     `json:"completed"`
	Total          int     `json:"total"`
	ElapsedSeconds float64 `json:"elapsed_seconds"`
}

// ProgressStore persists batch progress so callers can poll it.
type ProgressStore interface {
	Set(ctx Context, batchID string, s ProgressSnapshot) error
	Get(ctx Context, batchID string) (ProgressSnapshot, error)
}

// MinCVTextLen is the minimum usable extracted-text length; anything
// shorter is treated as an extraction failure.
const MinCVTextLen = 50

// Context is an alias to context.Context kept for signature brevity in
// ports; adapters and usecases pass standard contexts through.
type Context = context.Context
