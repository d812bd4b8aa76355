package usecase

import (
	"sort"
	"strings"

	"github.com/fairyhunter13/cv-screener/internal/domain"
)

// TopN returns the n highest-scoring results. The sort is stable so
// equal scores keep their completion order. n <= 0 or n beyond the
// slice returns everything; the input is never mutated.
func TopN(results []domain.CandidateResult, n int) []domain.CandidateResult {
	out := make([]domain.CandidateResult, len(results))
	copy(out, results)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].FitScore > out[j].FitScore
	})
	if n <= 0 || n > len(out) {
		return out
	}
	return out[:n]
}

// Stats partitions results into recommendation buckets. Classification
// is by case-insensitive substring so decorated recommendations still
// land in a bucket; anything unmatched, including ERROR results, counts
// as a reject.
func Stats(results []domain.CandidateResult) domain.BatchStats {
	stats := domain.BatchStats{Total: len(results)}
	for _, r := range results {
		rec := strings.ToUpper(r.Recommendation)
		switch {
		case strings.Contains(rec, domain.RecommendShortlist):
			stats.Shortlist++
		case strings.Contains(rec, domain.RecommendReview):
			stats.Review++
		default:
			stats.Reject++
		}
	}
	return stats
}
