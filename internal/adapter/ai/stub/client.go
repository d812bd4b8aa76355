// Package stub provides a fast, deterministic AI client for local
// development and tests, so the pipeline can run without an API key.
package stub

import (
	"encoding/json"
	"time"

	"github.com/fairyhunter13/cv-screener/internal/domain"
)

// Client implements domain.AIClient with canned extraction output.
type Client struct{}

func New() *Client { return &Client{} }

// ChatJSON returns a compact JSON string matching the extraction schema.
func (c *Client) ChatJSON(_ domain.Context, _ string, _ string, _ int) (string, error) {
	// Simulate a tiny bit of processing latency to resemble real work
	time.Sleep(50 * time.Millisecond)
	payload := map[string]any{
		"required_skills": []map[string]any{
			{"skill": "Go", "found": true, "evidence": "4 years building Go services"},
			{"skill": "PostgreSQL", "found": true, "evidence": "designed PostgreSQL schemas"},
			{"skill": "Kubernetes", "found": false, "evidence": nil},
		},
		"preferred_skills": []map[string]any{
			{"skill": "Terraform", "found": true, "evidence": "managed infrastructure with Terraform"},
		},
		"projects": []map[string]any{
			{"title": "payments api", "technologies": []string{"go", "postgres"}, "deployment_proof": true, "relevance": "high"},
		},
		"transferable_skills": []map[string]any{
			{"skill": "mentoring", "evidence": "mentored two junior engineers"},
		},
		"experience_years": 4,
		"issues":           []map[string]any{},
	}
	b, _ := json.Marshal(payload)
	return string(b), nil
}
