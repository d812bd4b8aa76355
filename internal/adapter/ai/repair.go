// Package ai implements the extraction contract against an LLM collaborator:
// prompt construction, response repair, and debug artifacts for responses
// that defeat every repair strategy.
package ai

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/fairyhunter13/cv-screener/internal/domain"
	"github.com/fairyhunter13/cv-screener/pkg/textx"
)

// Repair strategy tags, in escalation order. The tag names which strategy
// first yielded a usable profile; they double as metric labels and debug
// artifact classifiers.
const (
	StrategyDirect    = "direct"
	StrategyFenced    = "fenced"
	StrategyBraceSpan = "brace_span"
	StrategyCleanup   = "cleanup"
	StrategySalvage   = "salvage"
	StrategyEmpty     = "empty"
)

var (
	fencedBlockRe    = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)```")
	trailingCommaRe  = regexp.MustCompile(`,(\s*[}\]])`)
	adjacentObjectRe = regexp.MustCompile(`}\s*{`)
	adjacentArrayRe  = regexp.MustCompile(`]\s*\[`)

	salvageSkillRe    = regexp.MustCompile(`"skill"\s*:\s*"([^"]*)"`)
	salvageFoundRe    = regexp.MustCompile(`"found"\s*:\s*(true|false)`)
	salvageEvidenceRe = regexp.MustCompile(`"evidence"\s*:\s*"([^"]*)"`)
)

// Repairer salvages a CandidateProfile from raw model text. Strategies are
// tried cheapest-first so well-formed output is never touched by the
// cleanup heuristics.
type Repairer struct{}

// NewRepairer creates a new response repairer.
func NewRepairer() *Repairer {
	return &Repairer{}
}

// Repair never fails: on total breakdown it returns the canonical empty
// extraction carrying a single error issue. The returned tag names the
// strategy that produced the profile.
func (r *Repairer) Repair(raw string) (domain.CandidateProfile, string) {
	if p, ok := parseProfile(raw); ok {
		return p, StrategyDirect
	}

	if inner, ok := r.fencedBlock(raw); ok {
		if p, ok := parseProfile(inner); ok {
			return p, StrategyFenced
		}
	}

	span, hasSpan := r.braceSpan(raw)
	if hasSpan {
		if p, ok := parseProfile(span); ok {
			return p, StrategyBraceSpan
		}
		if p, ok := parseProfile(r.cleanup(span)); ok {
			return p, StrategyCleanup
		}
	}

	if p, ok := r.salvage(raw); ok {
		return p, StrategySalvage
	}

	return domain.EmptyProfile(domain.IssueError, "model response could not be parsed as the extraction schema"), StrategyEmpty
}

// fencedBlock returns the interior of the first triple-backtick block.
func (r *Repairer) fencedBlock(raw string) (string, bool) {
	m := fencedBlockRe.FindStringSubmatch(raw)
	if m == nil {
		return "", false
	}
	return strings.TrimSpace(m[1]), true
}

// braceSpan returns the span from the first { to its balanced closing },
// falling back to the last } in the text when braces never balance.
func (r *Repairer) braceSpan(raw string) (string, bool) {
	start := strings.Index(raw, "{")
	if start == -1 {
		return "", false
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(raw); i++ {
		c := raw[i]
		switch {
		case escaped:
			escaped = false
		case c == '\\' && inString:
			escaped = true
		case c == '"':
			inString = !inString
		case !inString && c == '{':
			depth++
		case !inString && c == '}':
			depth--
			if depth == 0 {
				return raw[start : i+1], true
			}
		}
	}
	end := strings.LastIndex(raw, "}")
	if end <= start {
		return "", false
	}
	return raw[start : end+1], true
}

// cleanup applies the punctuation heuristics: strip control characters
// outside \n\r\t, drop commas hanging before a closing brace/bracket, and
// insert the comma missing between adjacent object/array literals.
func (r *Repairer) cleanup(span string) string {
	span = textx.SanitizeText(span)
	span = trailingCommaRe.ReplaceAllString(span, "$1")
	span = adjacentObjectRe.ReplaceAllString(span, "},{")
	span = adjacentArrayRe.ReplaceAllString(span, "],[")
	return span
}

// salvage reconstructs a best-effort required_skills list from loose
// "skill"/"found" token pairs in otherwise unparseable text. Each skill
// occurrence claims the found/evidence tokens that appear before the next
// skill occurrence.
func (r *Repairer) salvage(raw string) (domain.CandidateProfile, bool) {
	skillLocs := salvageSkillRe.FindAllStringSubmatchIndex(raw, -1)
	if len(skillLocs) == 0 {
		return domain.CandidateProfile{}, false
	}

	var skills []domain.SkillMatch
	for i, loc := range skillLocs {
		segStart := loc[1]
		segEnd := len(raw)
		if i+1 < len(skillLocs) {
			segEnd = skillLocs[i+1][0]
		}
		seg := raw[segStart:segEnd]

		fm := salvageFoundRe.FindStringSubmatch(seg)
		if fm == nil {
			continue
		}
		sk := domain.SkillMatch{
			Skill: raw[loc[2]:loc[3]],
			Found: fm[1] == "true",
		}
		if em := salvageEvidenceRe.FindStringSubmatch(seg); em != nil {
			sk.Evidence = em[1]
		}
		skills = append(skills, sk)
	}
	if len(skills) == 0 {
		return domain.CandidateProfile{}, false
	}

	p := domain.CandidateProfile{
		RequiredSkills: skills,
		Issues: []domain.Issue{{
			Type:        domain.IssueWarning,
			Description: fmt.Sprintf("partial extraction: recovered %d skill entries from malformed response", len(skills)),
		}},
	}
	p.Normalize()
	return p, true
}

// parseProfile parses s as the extraction schema and normalizes the result
// so the profile invariants hold regardless of what the model sent.
func parseProfile(s string) (domain.CandidateProfile, bool) {
	s = strings.TrimSpace(s)
	if s == "" || s[0] != '{' {
		return domain.CandidateProfile{}, false
	}
	var p domain.CandidateProfile
	if err := json.Unmarshal([]byte(s), &p); err != nil {
		return domain.CandidateProfile{}, false
	}
	p.Normalize()
	return p, true
}
