package ai

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fairyhunter13/cv-screener/internal/domain"
)

const wellFormed = `{
  "required_skills": [{"skill": "Go", "found": true, "evidence": "4 years of Go"}],
  "preferred_skills": [],
  "projects": [{"title": "payments api", "technologies": ["go", "postgres"], "deployment_proof": true, "relevance": "high"}],
  "transferable_skills": [],
  "experience_years": 4,
  "issues": []
}`

func TestRepair_DirectParse(t *testing.T) {
	t.Parallel()

	p, strategy := NewRepairer().Repair(wellFormed)
	assert.Equal(t, StrategyDirect, strategy)
	require.Len(t, p.RequiredSkills, 1)
	assert.True(t, p.RequiredSkills[0].Found)
	assert.Equal(t, 4, p.ExperienceYears)
}

func TestRepair_IdempotentUnderFencing(t *testing.T) {
	t.Parallel()

	r := NewRepairer()
	plain, _ := r.Repair(wellFormed)
	fenced, strategy := r.Repair("Here is the extraction:\n```json\n" + wellFormed + "\n```\nLet me know if you need more.")
	assert.Equal(t, StrategyFenced, strategy)
	assert.Equal(t, plain, fenced)
}

func TestRepair_BraceSpanInProse(t *testing.T) {
	t.Parallel()

	p, strategy := NewRepairer().Repair("Sure! " + wellFormed + " Hope that helps.")
	assert.Equal(t, StrategyBraceSpan, strategy)
	require.Len(t, p.RequiredSkills, 1)
}

func TestRepair_CommonDefectsMatchWellFormed(t *testing.T) {
	t.Parallel()

	r := NewRepairer()
	want, _ := r.Repair(`{"required_skills": [{"skill": "Go", "found": true, "evidence": "Go services"}, {"skill": "SQL", "found": false, "evidence": null}]}`)

	t.Run("trailing_comma", func(t *testing.T) {
		t.Parallel()
		got, strategy := r.Repair(`{"required_skills": [{"skill": "Go", "found": true, "evidence": "Go services"}, {"skill": "SQL", "found": false, "evidence": null},]}`)
		assert.Equal(t, StrategyCleanup, strategy)
		assert.Equal(t, want, got)
	})

	t.Run("missing_comma_between_objects", func(t *testing.T) {
		t.Parallel()
		got, strategy := r.Repair(`{"required_skills": [{"skill": "Go", "found": true, "evidence": "Go services"} {"skill": "SQL", "found": false, "evidence": null}]}`)
		assert.Equal(t, StrategyCleanup, strategy)
		assert.Equal(t, want, got)
	})

	t.Run("control_characters", func(t *testing.T) {
		t.Parallel()
		got, strategy := r.Repair("{\"required_skills\": [{\"skill\": \"Go\", \"found\": true, \"evidence\": \"Go services\"}, {\"skill\": \"SQL\", \"found\": false, \"evidence\": null}]}\x00\x01")
		// the span parse succeeds once the garbage outside the braces is gone
		assert.Contains(t, []string{StrategyBraceSpan, StrategyCleanup}, strategy)
		assert.Equal(t, want, got)
	})
}

func TestRepair_PartialSalvage(t *testing.T) {
	t.Parallel()

	raw := `The candidate... "skill": "Go", "found": true, "evidence": "Go at scale" garbage
	"skill": "Rust", "found": false ]]]}{{ not json at all`
	p, strategy := NewRepairer().Repair(raw)
	assert.Equal(t, StrategySalvage, strategy)
	require.Len(t, p.RequiredSkills, 2)
	assert.Equal(t, "Go", p.RequiredSkills[0].Skill)
	assert.True(t, p.RequiredSkills[0].Found)
	assert.Equal(t, "Go at scale", p.RequiredSkills[0].Evidence)
	assert.Equal(t, "Rust", p.RequiredSkills[1].Skill)
	assert.False(t, p.RequiredSkills[1].Found)
	require.NotEmpty(t, p.Issues)
	assert.Equal(t, domain.IssueWarning, p.Issues[0].Type)
}

func TestRepair_TotalFailureYieldsEmptyExtraction(t *testing.T) {
	t.Parallel()

	p, strategy := NewRepairer().Repair("I am sorry, I cannot help with that.")
	assert.Equal(t, StrategyEmpty, strategy)
	assert.Empty(t, p.RequiredSkills)
	assert.Zero(t, p.ExperienceYears)
	require.Len(t, p.Issues, 1)
	assert.Equal(t, domain.IssueError, p.Issues[0].Type)
}

func TestRepair_FoundWithoutEvidenceDowngraded(t *testing.T) {
	t.Parallel()

	p, strategy := NewRepairer().Repair(`{"required_skills": [{"skill": "Go", "found": true}]}`)
	assert.Equal(t, StrategyDirect, strategy)
	require.Len(t, p.RequiredSkills, 1)
	assert.False(t, p.RequiredSkills[0].Found)
	require.Len(t, p.Issues, 1)
	assert.Equal(t, domain.IssueWeakEvidence, p.Issues[0].Type)
}
