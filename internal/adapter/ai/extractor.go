package ai

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/fairyhunter13/cv-screener/internal/adapter/observability"
	"github.com/fairyhunter13/cv-screener/internal/domain"
)

// Extractor implements domain.ProfileExtractor: prompt, model call,
// repair, debug artifact. When serialize is set, model calls across all
// workers go through one mutex; repair stays outside the lock so CPU work
// overlaps with other candidates' inference.
type Extractor struct {
	client    domain.AIClient
	repairer  *Repairer
	dumper    *DebugDumper
	maxTokens int

	serialize bool
	callMu    sync.Mutex
}

// NewExtractor wires an Extractor. dumper may be nil to disable artifacts.
func NewExtractor(client domain.AIClient, dumper *DebugDumper, maxTokens int, serialize bool) *Extractor {
	if maxTokens <= 0 {
		maxTokens = 1024
	}
	return &Extractor{
		client:    client,
		repairer:  NewRepairer(),
		dumper:    dumper,
		maxTokens: maxTokens,
		serialize: serialize,
	}
}

// ExtractProfile requests the extraction contract for one candidate and
// repairs whatever comes back. Only a failed model call returns an error.
func (e *Extractor) ExtractProfile(ctx domain.Context, jobDescription, candidate, cvText string) (domain.CandidateProfile, error) {
	raw, err := e.chat(ctx, ExtractionSystemPrompt, BuildExtractionPrompt(jobDescription, cvText))
	if err != nil {
		return domain.CandidateProfile{}, fmt.Errorf("op=extract.chat: %w", err)
	}

	profile, strategy := e.repairer.Repair(raw)
	observability.ObserveRepair(strategy)
	if strategy != StrategyDirect {
		slog.Info("model response repaired",
			slog.String("candidate", candidate),
			slog.String("strategy", strategy))
	}
	// Keep the raw response around whenever full parsing failed
	if strategy == StrategySalvage || strategy == StrategyEmpty {
		e.dumper.Dump(candidate, strategy, raw)
	}
	return profile, nil
}

// Summarize produces the optional per-candidate summary. Failures degrade
// to an empty summary rather than failing the candidate.
func (e *Extractor) Summarize(ctx domain.Context, jobDescription, candidate string, fitScore int, recommendation string, breakdown []string) (string, error) {
	raw, err := e.chat(ctx, SummarySystemPrompt,
		BuildSummaryPrompt(jobDescription, candidate, fitScore, recommendation, strings.Join(breakdown, "\n")))
	if err != nil {
		return "", fmt.Errorf("op=summarize.chat: %w", err)
	}
	return strings.TrimSpace(raw), nil
}

func (e *Extractor) chat(ctx domain.Context, system, user string) (string, error) {
	if e.serialize {
		e.callMu.Lock()
		defer e.callMu.Unlock()
	}
	return e.client.ChatJSON(ctx, system, user, e.maxTokens)
}
