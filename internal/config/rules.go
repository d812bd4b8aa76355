package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/fairyhunter13/cv-screener/internal/domain"
)

// Addition category keys in the scoring rules.
const (
	CategoryRequiredSkill    = "required_skill"
	CategoryPreferredSkill   = "preferred_skill"
	CategoryRelevantProject  = "relevant_project"
	CategoryDeploymentProof  = "deployment_proof"
	CategoryTransferable     = "transferable_skill"
	DeductionMissingRequired = "missing_required"
)

// CategoryRule holds the per-category point value and caps.
type CategoryRule struct {
	Points    int `yaml:"points"`
	MaxCount  int `yaml:"max_count"`
	MaxPoints int `yaml:"max_points"`
}

// Thresholds separate the three recommendation buckets.
type Thresholds struct {
	Shortlist int `yaml:"shortlist"`
	Review    int `yaml:"review"`
}

// ScoringRules is the deterministic scorer's configuration. Constructed
// once at startup and shared read-only across all screening workers;
// never mutated mid-run.
type ScoringRules struct {
	BaseScore  int                     `yaml:"base_score"`
	Additions  map[string]CategoryRule `yaml:"additions"`
	Deductions map[string]int          `yaml:"deductions"`
	Thresholds Thresholds              `yaml:"thresholds"`
}

// DefaultScoringRules returns the built-in rule set.
//
// error and warning issues carry an explicit zero penalty: they must show
// up in the breakdown ledger without moving the score, so the canonical
// empty extraction still lands exactly on the base score.
func DefaultScoringRules() ScoringRules {
	return ScoringRules{
		BaseScore: 50,
		Additions: map[string]CategoryRule{
			CategoryRequiredSkill:   {Points: 15, MaxCount: 3, MaxPoints: 45},
			CategoryPreferredSkill:  {Points: 5, MaxCount: 2, MaxPoints: 10},
			CategoryRelevantProject: {Points: 10, MaxCount: 2, MaxPoints: 20},
			CategoryDeploymentProof: {Points: 5, MaxCount: 2, MaxPoints: 10},
			CategoryTransferable:    {Points: 5, MaxCount: 2, MaxPoints: 10},
		},
		Deductions: map[string]int{
			DeductionMissingRequired:   -20,
			domain.IssueContradiction:  -10,
			domain.IssueAmbiguous:      -5,
			domain.IssueWeakEvidence:   -3,
			domain.IssueError:          0,
			domain.IssueWarning:        0,
		},
		Thresholds: Thresholds{Shortlist: 75, Review: 60},
	}
}

// LoadScoringRules returns the defaults overlaid with the YAML file at
// path, if given. A malformed or unreadable file is a startup error; the
// run must not proceed on half-applied rules.
func LoadScoringRules(path string) (ScoringRules, error) {
	rules := DefaultScoringRules()
	if path == "" {
		return rules, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return ScoringRules{}, fmt.Errorf("op=rules.load: %w", err)
	}
	// Unmarshal into the prefilled struct: keys present in the file
	// override, everything else keeps its default.
	if err := yaml.Unmarshal(b, &rules); err != nil {
		return ScoringRules{}, fmt.Errorf("op=rules.load: %w: %v", domain.ErrInvalidArgument, err)
	}
	if err := rules.Validate(); err != nil {
		return ScoringRules{}, err
	}
	return rules, nil
}

// Validate rejects rule sets that would make scoring nonsensical.
func (r ScoringRules) Validate() error {
	if r.BaseScore < 0 || r.BaseScore > 100 {
		return fmt.Errorf("op=rules.validate: %w: base_score %d outside [0,100]", domain.ErrInvalidArgument, r.BaseScore)
	}
	if r.Thresholds.Review > r.Thresholds.Shortlist {
		return fmt.Errorf("op=rules.validate: %w: review threshold %d above shortlist %d", domain.ErrInvalidArgument, r.Thresholds.Review, r.Thresholds.Shortlist)
	}
	for name, c := range r.Additions {
		if c.Points < 0 || c.MaxCount < 0 {
			return fmt.Errorf("op=rules.validate: %w: negative points/max_count for %s", domain.ErrInvalidArgument, name)
		}
	}
	return nil
}

// Addition returns the rule for an addition category, zero-valued if absent.
func (r ScoringRules) Addition(name string) CategoryRule {
	return r.Additions[name]
}

// PenaltyFor looks up the penalty for an issue type, defaulting to the
// ambiguous penalty for unrecognized types.
func (r ScoringRules) PenaltyFor(issueType string) int {
	if p, ok := r.Deductions[issueType]; ok {
		return p
	}
	return r.Deductions[domain.IssueAmbiguous]
}

// Recommend maps a final score to its recommendation bucket.
func (r ScoringRules) Recommend(score int) string {
	switch {
	case score >= r.Thresholds.Shortlist:
		return domain.RecommendShortlist
	case score >= r.Thresholds.Review:
		return domain.RecommendReview
	default:
		return domain.RecommendReject
	}
}
