package scoring

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fairyhunter13/cv-screener/internal/config"
	"github.com/fairyhunter13/cv-screener/internal/domain"
)

func newTestScorer() *Scorer {
	return New(config.DefaultScoringRules())
}

func TestScore_EmptyProfileScoresBase(t *testing.T) {
	t.Parallel()

	res := newTestScorer().Score(domain.CandidateProfile{})
	assert.Equal(t, 50, res.FinalScore)
	assert.Equal(t, domain.RecommendReject, res.Recommendation)
	require.Len(t, res.Breakdown, 1)
	assert.Equal(t, "Base score: 50", res.Breakdown[0])
}

func TestScore_CanonicalEmptyExtraction(t *testing.T) {
	t.Parallel()

	// The repair fallback emits a profile with a single error issue; that
	// issue must appear in the ledger without moving the score.
	p := domain.EmptyProfile(domain.IssueError, "model response unparseable")
	res := newTestScorer().Score(p)
	assert.Equal(t, 50, res.FinalScore)
	require.Len(t, res.Breakdown, 2)
	assert.Equal(t, "0 for error: model response unparseable", res.Breakdown[1])
}

func TestScore_Deterministic(t *testing.T) {
	t.Parallel()

	p := domain.CandidateProfile{
		RequiredSkills: []domain.SkillMatch{
			{Skill: "Go", Found: true, Evidence: "built Go microservices for 4 years"},
			{Skill: "Kubernetes", Found: false},
		},
		PreferredSkills: []domain.SkillMatch{{Skill: "Terraform", Found: true, Evidence: "IaC for AWS"}},
		Projects: []domain.Project{
			{Title: "payments api", Relevance: domain.RelevanceHigh, DeploymentProof: true},
		},
		TransferableSkills: []domain.TransferableSkill{{Skill: "mentoring", Evidence: "onboarded 3 juniors"}},
		Issues:             []domain.Issue{{Type: domain.IssueAmbiguous, Description: "dates unclear"}},
	}

	s := newTestScorer()
	first := s.Score(p)
	second := s.Score(p)
	assert.Equal(t, first, second)
}

func TestScore_RequiredSkillCapAndUncappedMissing(t *testing.T) {
	t.Parallel()

	t.Run("ten_found_capped_at_45", func(t *testing.T) {
		t.Parallel()
		var p domain.CandidateProfile
		for i := 0; i < 10; i++ {
			p.RequiredSkills = append(p.RequiredSkills, domain.SkillMatch{
				Skill: fmt.Sprintf("skill-%d", i), Found: true, Evidence: "seen in cv",
			})
		}
		res := newTestScorer().Score(p)
		assert.Equal(t, 95, res.FinalScore)
		assert.Contains(t, res.Breakdown, "+45 for 10 required skill(s) found")
	})

	t.Run("five_missing_not_capped", func(t *testing.T) {
		t.Parallel()
		var p domain.CandidateProfile
		for i := 0; i < 5; i++ {
			p.RequiredSkills = append(p.RequiredSkills, domain.SkillMatch{Skill: fmt.Sprintf("skill-%d", i)})
		}
		res := newTestScorer().Score(p)
		// 50 - 100, clamped
		assert.Equal(t, 0, res.FinalScore)
		assert.Equal(t, domain.RecommendReject, res.Recommendation)
		assert.Contains(t, res.Breakdown, "-100 for 5 missing required skill(s)")
	})
}

func TestScore_ClampBothEnds(t *testing.T) {
	t.Parallel()

	t.Run("floor", func(t *testing.T) {
		t.Parallel()
		p := domain.CandidateProfile{
			RequiredSkills: []domain.SkillMatch{
				{Skill: "a"}, {Skill: "b"}, {Skill: "c"}, {Skill: "d"}, {Skill: "e"},
			},
			Issues: []domain.Issue{
				{Type: domain.IssueContradiction, Description: "says 2 and 6 years"},
				{Type: domain.IssueContradiction, Description: "two graduation dates"},
			},
		}
		res := newTestScorer().Score(p)
		assert.Equal(t, 0, res.FinalScore)
	})

	t.Run("ceiling", func(t *testing.T) {
		t.Parallel()
		var p domain.CandidateProfile
		for i := 0; i < 4; i++ {
			p.RequiredSkills = append(p.RequiredSkills, domain.SkillMatch{
				Skill: fmt.Sprintf("req-%d", i), Found: true, Evidence: "seen",
			})
			p.PreferredSkills = append(p.PreferredSkills, domain.SkillMatch{
				Skill: fmt.Sprintf("pref-%d", i), Found: true, Evidence: "seen",
			})
			p.Projects = append(p.Projects, domain.Project{
				Title: fmt.Sprintf("proj-%d", i), Relevance: domain.RelevanceHigh, DeploymentProof: true,
			})
			p.TransferableSkills = append(p.TransferableSkills, domain.TransferableSkill{
				Skill: fmt.Sprintf("soft-%d", i), Evidence: "seen",
			})
		}
		// raw: 50 + 45 + 10 + 20 + 10 + 10 = 145
		res := newTestScorer().Score(p)
		assert.Equal(t, 100, res.FinalScore)
		assert.Equal(t, domain.RecommendShortlist, res.Recommendation)
	})
}

func TestScore_ProjectRelevanceAndDeploymentIndependent(t *testing.T) {
	t.Parallel()

	p := domain.CandidateProfile{
		Projects: []domain.Project{
			{Title: "legacy crud", Relevance: domain.RelevanceMedium, DeploymentProof: true},
			{Title: "ml pipeline", Relevance: domain.RelevanceHigh},
			{Title: "chat bot", Relevance: domain.RelevanceLow, DeploymentProof: true},
		},
	}
	res := newTestScorer().Score(p)
	// 50 + 10 (one high) + 10 (two deployed)
	assert.Equal(t, 70, res.FinalScore)
	assert.Contains(t, res.Breakdown, "+10 for 1 highly relevant project(s)")
	assert.Contains(t, res.Breakdown, "+10 for 2 deployment proof(s)")
}

func TestScore_BreakdownFormat(t *testing.T) {
	t.Parallel()

	longEvidence := strings.Repeat("x", 80)
	p := domain.CandidateProfile{
		RequiredSkills: []domain.SkillMatch{
			{Skill: "Go", Found: true, Evidence: longEvidence},
			{Skill: "Rust", Found: false},
		},
		Issues: []domain.Issue{{Type: domain.IssueWeakEvidence, Description: "skill list with no context"}},
	}
	res := newTestScorer().Score(p)

	assert.Equal(t, "Base score: 50", res.Breakdown[0])
	assert.Equal(t, "+15 for 1 required skill(s) found", res.Breakdown[1])
	assert.Equal(t, "  ✓ Go: \""+strings.Repeat("x", 60)+"...\"", res.Breakdown[2])
	assert.Equal(t, "-20 for 1 missing required skill(s)", res.Breakdown[3])
	assert.Equal(t, "  ✗ Missing: Rust", res.Breakdown[4])
	assert.Equal(t, "-3 for weak_evidence: skill list with no context", res.Breakdown[5])

	// details mirror the per-category lines
	assert.Equal(t, res.Breakdown[1:5], res.Details["required_skills"])
	assert.Equal(t, res.Breakdown[5:], res.Details["issues"])

	// 50 + 15 - 20 - 3
	assert.Equal(t, 42, res.FinalScore)
}

func TestScore_SingleRequiredSkillLandsInReview(t *testing.T) {
	t.Parallel()

	p := domain.CandidateProfile{
		RequiredSkills: []domain.SkillMatch{{Skill: "Go", Found: true, Evidence: "Go services"}},
	}
	res := newTestScorer().Score(p)
	assert.Equal(t, 65, res.FinalScore)
	assert.Equal(t, domain.RecommendReview, res.Recommendation)
}

func TestScore_UnrecognizedIssueTypeDefaultsToAmbiguous(t *testing.T) {
	t.Parallel()

	p := domain.CandidateProfile{
		Issues: []domain.Issue{{Type: "suspicious_gap", Description: "three year gap"}},
	}
	res := newTestScorer().Score(p)
	assert.Equal(t, 45, res.FinalScore)
	assert.Contains(t, res.Breakdown, "-5 for suspicious_gap: three year gap")
}
