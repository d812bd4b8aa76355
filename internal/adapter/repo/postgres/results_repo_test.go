package postgres

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fairyhunter13/cv-screener/internal/domain"
)

func sampleResult() domain.CandidateResult {
	return domain.CandidateResult{
		CVFile:         "jane_doe.pdf",
		FitScore:       82,
		Recommendation: domain.RecommendShortlist,
		Summary:        "Strong Go and Postgres background.",
		Breakdown:      []string{"Base score: 50", "+45 for 3 required skill(s) found"},
		ExtractedData: domain.CandidateProfile{
			RequiredSkills: []domain.SkillMatch{{Skill: "Go", Found: true, Evidence: "Go services"}},
		},
		Details:       map[string][]string{"required_skills": {"+45 for 3 required skill(s) found"}},
		CVTextPreview: "Jane Doe, software engineer...",
	}
}

func TestResultRepo_Insert(t *testing.T) {
	t.Parallel()

	pool := &fakePool{}
	require.NoError(t, NewResultRepo(pool).Insert(context.Background(), "batch-1", sampleResult()))

	require.Len(t, pool.execSQL, 1)
	assert.Contains(t, pool.execSQL[0], "INSERT INTO candidate_results")
	args := pool.execArgs[0]
	assert.Equal(t, "batch-1", args[0])
	assert.Equal(t, "jane_doe.pdf", args[1])
	assert.Equal(t, 82, args[2])

	// breakdown round-trips through JSONB
	var breakdown []string
	require.NoError(t, json.Unmarshal(args[5].([]byte), &breakdown))
	assert.Equal(t, sampleResult().Breakdown, breakdown)
}

func TestResultRepo_ListByBatch(t *testing.T) {
	t.Parallel()

	res := sampleResult()
	breakdown, _ := json.Marshal(res.Breakdown)
	extracted, _ := json.Marshal(res.ExtractedData)
	details, _ := json.Marshal(res.Details)

	pool := &fakePool{rows: &fakeRows{data: [][]any{
		{res.CVFile, res.FitScore, res.Recommendation, res.Summary, breakdown, extracted, details, res.CVTextPreview},
	}}}
	got, err := NewResultRepo(pool).ListByBatch(context.Background(), "batch-1")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, res.CVFile, got[0].CVFile)
	assert.Equal(t, res.FitScore, got[0].FitScore)
	assert.Equal(t, res.Breakdown, got[0].Breakdown)
	require.Len(t, got[0].ExtractedData.RequiredSkills, 1)
	assert.Equal(t, "Go", got[0].ExtractedData.RequiredSkills[0].Skill)
}

func TestResultRepo_ListByBatch_Empty(t *testing.T) {
	t.Parallel()

	pool := &fakePool{rows: &fakeRows{}}
	got, err := NewResultRepo(pool).ListByBatch(context.Background(), "batch-1")
	require.NoError(t, err)
	assert.Empty(t, got)
}
