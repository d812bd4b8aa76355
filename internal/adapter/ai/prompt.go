package ai

import "fmt"

// ExtractionSystemPrompt steers the model toward literal, evidence-bound
// extraction. Kept short; the contract details live in the user prompt.
const ExtractionSystemPrompt = "You are an objective technical recruiter AI. " +
	"You extract structured facts from CVs. You respond with a single JSON object and nothing else. " +
	"Follow all rules and formatting instructions precisely."

const extractionUserTemplate = `Compare the CV only against the job description. Be neutral, literal, and fully evidence-based.

HARD RULES
- Use ONLY text explicitly present in the CV or job description. No assumptions, no invented experience.
- Every "found": true and every transferable skill MUST carry a verbatim CV quote in "evidence".
- If a skill is missing or unclear, set "found": false and "evidence": null. Never guess.
- Do not infer or mention protected attributes.
- Ambiguous or contradictory CV claims go into "issues", one entry each.

OUTPUT
Respond with exactly one JSON object, no prose, no markdown fences:
{
  "required_skills": [{"skill": "<from job description>", "found": true|false, "evidence": "<verbatim CV quote>"|null}],
  "preferred_skills": [{"skill": "<from job description>", "found": true|false, "evidence": "<verbatim CV quote>"|null}],
  "projects": [{"title": "<string>", "technologies": ["<string>"], "deployment_proof": true|false, "relevance": "low"|"medium"|"high"}],
  "transferable_skills": [{"skill": "<string>", "evidence": "<verbatim CV quote>"}],
  "experience_years": <non-negative integer, 0 unless explicitly stated>,
  "issues": [{"type": "ambiguous"|"contradiction"|"weak_evidence", "description": "<string>"}]
}

List every required and preferred skill named in the job description, found or not.
Mark "relevance" by how directly a project exercises the job's required responsibilities.
Set "deployment_proof" true only for explicit production/deployment evidence.

Job Description:
%s

CV Content:
%s`

// BuildExtractionPrompt renders the extraction contract user prompt for one
// candidate.
func BuildExtractionPrompt(jobDescription, cvText string) string {
	return fmt.Sprintf(extractionUserTemplate, jobDescription, cvText)
}

// SummarySystemPrompt steers the optional per-candidate summary call.
const SummarySystemPrompt = "You are an objective technical recruiter AI. " +
	"You write terse, factual candidate summaries. No praise, no speculation."

const summaryUserTemplate = `Write a 1-2 sentence summary of how this candidate fits the role, based only on the facts below. Plain text, no markdown.

Job Description:
%s

Candidate: %s
Fit score: %d (%s)
Scoring breakdown:
%s`

// BuildSummaryPrompt renders the optional summary user prompt from an
// already-scored candidate.
func BuildSummaryPrompt(jobDescription, candidate string, fitScore int, recommendation, breakdown string) string {
	return fmt.Sprintf(summaryUserTemplate, jobDescription, candidate, fitScore, recommendation, breakdown)
}
