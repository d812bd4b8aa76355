// Package scoring implements the deterministic scoring engine.
//
// The engine turns an extracted candidate profile into a fit score and a
// human-readable breakdown. It is pure: the same profile and rules always
// produce the same result, with no model involvement.
package scoring

import (
	"fmt"

	"github.com/fairyhunter13/cv-screener/internal/config"
	"github.com/fairyhunter13/cv-screener/internal/domain"
)

const evidenceClipLen = 60

// Scorer applies a fixed rule set to candidate profiles.
type Scorer struct {
	rules config.ScoringRules
}

// New returns a Scorer bound to the given rules. The rules are treated as
// read-only for the lifetime of the scorer.
func New(rules config.ScoringRules) *Scorer {
	return &Scorer{rules: rules}
}

// Score computes the final score, recommendation and breakdown for one
// candidate. Category order is fixed: required, preferred, projects,
// transferable, issues. The running total is clamped to [0,100] once, at
// the end.
func (s *Scorer) Score(p domain.CandidateProfile) domain.ScoreResult {
	score := s.rules.BaseScore
	breakdown := []string{fmt.Sprintf("Base score: %d", score)}
	details := make(map[string][]string)

	requiredScore, requiredLines := s.scoreRequiredSkills(p.RequiredSkills)
	score += requiredScore
	breakdown = append(breakdown, requiredLines...)
	details["required_skills"] = requiredLines

	preferredScore, preferredLines := s.scorePreferredSkills(p.PreferredSkills)
	score += preferredScore
	breakdown = append(breakdown, preferredLines...)
	details["preferred_skills"] = preferredLines

	projectScore, projectLines := s.scoreProjects(p.Projects)
	score += projectScore
	breakdown = append(breakdown, projectLines...)
	details["projects"] = projectLines

	transferScore, transferLines := s.scoreTransferableSkills(p.TransferableSkills)
	score += transferScore
	breakdown = append(breakdown, transferLines...)
	details["transferable_skills"] = transferLines

	issueScore, issueLines := s.scoreIssues(p.Issues)
	score += issueScore
	breakdown = append(breakdown, issueLines...)
	details["issues"] = issueLines

	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}

	return domain.ScoreResult{
		FinalScore:     score,
		Recommendation: s.rules.Recommend(score),
		Breakdown:      breakdown,
		Details:        details,
	}
}

func (s *Scorer) scoreRequiredSkills(skills []domain.SkillMatch) (int, []string) {
	var found, missing []domain.SkillMatch
	for _, sk := range skills {
		if sk.Found {
			found = append(found, sk)
		} else {
			missing = append(missing, sk)
		}
	}

	rule := s.rules.Addition(config.CategoryRequiredSkill)
	points := len(found) * rule.Points
	if points > rule.MaxPoints {
		points = rule.MaxPoints
	}

	var lines []string
	if len(found) > 0 {
		lines = append(lines, fmt.Sprintf("+%d for %d required skill(s) found", points, len(found)))
		for _, sk := range firstN(found, 3) {
			lines = append(lines, fmt.Sprintf("  ✓ %s: \"%s...\"", sk.Skill, clip(orNA(sk.Evidence), evidenceClipLen)))
		}
	}

	// The missing penalty is intentionally uncapped: a CV missing five
	// required skills should sink regardless of whatever else it matched.
	missingPenalty := len(missing) * s.rules.Deductions[config.DeductionMissingRequired]
	if len(missing) > 0 {
		lines = append(lines, fmt.Sprintf("%d for %d missing required skill(s)", missingPenalty, len(missing)))
		for _, sk := range firstN(missing, 3) {
			lines = append(lines, fmt.Sprintf("  ✗ Missing: %s", sk.Skill))
		}
	}

	return points + missingPenalty, lines
}

func (s *Scorer) scorePreferredSkills(skills []domain.SkillMatch) (int, []string) {
	var found []domain.SkillMatch
	for _, sk := range skills {
		if sk.Found {
			found = append(found, sk)
		}
	}

	rule := s.rules.Addition(config.CategoryPreferredSkill)
	count := min(len(found), rule.MaxCount)
	points := count * rule.Points

	var lines []string
	if count > 0 {
		lines = append(lines, fmt.Sprintf("+%d for %d preferred skill(s)", points, count))
		for _, sk := range firstN(found, rule.MaxCount) {
			lines = append(lines, fmt.Sprintf("  ✓ %s", sk.Skill))
		}
	}
	return points, lines
}

func (s *Scorer) scoreProjects(projects []domain.Project) (int, []string) {
	var highRelevance, deployed []domain.Project
	for _, p := range projects {
		if p.Relevance == domain.RelevanceHigh {
			highRelevance = append(highRelevance, p)
		}
		if p.DeploymentProof {
			deployed = append(deployed, p)
		}
	}

	projRule := s.rules.Addition(config.CategoryRelevantProject)
	projCount := min(len(highRelevance), projRule.MaxCount)
	projPoints := projCount * projRule.Points

	// Deployment proof is scored independently of relevance.
	deployRule := s.rules.Addition(config.CategoryDeploymentProof)
	deployCount := min(len(deployed), deployRule.MaxCount)
	deployPoints := deployCount * deployRule.Points

	var lines []string
	if projPoints > 0 {
		lines = append(lines, fmt.Sprintf("+%d for %d highly relevant project(s)", projPoints, projCount))
		for _, p := range firstN(highRelevance, projRule.MaxCount) {
			title := p.Title
			if title == "" {
				title = "Unnamed project"
			}
			lines = append(lines, fmt.Sprintf("  ✓ %s", title))
		}
	}
	if deployPoints > 0 {
		lines = append(lines, fmt.Sprintf("+%d for %d deployment proof(s)", deployPoints, deployCount))
	}

	return projPoints + deployPoints, lines
}

func (s *Scorer) scoreTransferableSkills(skills []domain.TransferableSkill) (int, []string) {
	rule := s.rules.Addition(config.CategoryTransferable)
	count := min(len(skills), rule.MaxCount)
	points := count * rule.Points

	var lines []string
	if count > 0 {
		lines = append(lines, fmt.Sprintf("+%d for %d transferable skill(s)", points, count))
		for _, sk := range firstN(skills, rule.MaxCount) {
			lines = append(lines, fmt.Sprintf("  ✓ %s", orNA(sk.Skill)))
		}
	}
	return points, lines
}

func (s *Scorer) scoreIssues(issues []domain.Issue) (int, []string) {
	total := 0
	var lines []string
	for _, issue := range issues {
		issueType := issue.Type
		if issueType == "" {
			issueType = domain.IssueAmbiguous
		}
		penalty := s.rules.PenaltyFor(issueType)
		total += penalty
		lines = append(lines, fmt.Sprintf("%d for %s: %s", penalty, issueType, clip(orNA(issue.Description), evidenceClipLen)))
	}
	return total, lines
}

func firstN[T any](s []T, n int) []T {
	if len(s) > n {
		return s[:n]
	}
	return s
}

func clip(s string, n int) string {
	r := []rune(s)
	if len(r) > n {
		return string(r[:n])
	}
	return s
}

func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}
