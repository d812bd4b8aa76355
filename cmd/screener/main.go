// Command screener runs the screening pipeline locally over a directory
// of CV files, without the queue or database. It prints live progress,
// a ranked table of the best candidates, and writes the full results to
// a timestamped JSON file.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fairyhunter13/cv-screener/internal/adapter/ai"
	"github.com/fairyhunter13/cv-screener/internal/adapter/ai/openrouter"
	"github.com/fairyhunter13/cv-screener/internal/adapter/ai/stub"
	"github.com/fairyhunter13/cv-screener/internal/adapter/observability"
	tikaext "github.com/fairyhunter13/cv-screener/internal/adapter/textextractor/tika"
	"github.com/fairyhunter13/cv-screener/internal/config"
	"github.com/fairyhunter13/cv-screener/internal/domain"
	"github.com/fairyhunter13/cv-screener/internal/scoring"
	"github.com/fairyhunter13/cv-screener/internal/usecase"
	"github.com/fairyhunter13/cv-screener/pkg/textx"
)

func main() {
	var (
		cvDir       = flag.String("cv-dir", "cvs", "directory containing candidate CV files (.pdf, .docx, .txt)")
		jdPath      = flag.String("jd", "job_description.txt", "path to the job description text file")
		topN        = flag.Int("top", 10, "how many ranked candidates to print")
		outDir      = flag.String("out", ".", "directory for the JSON results export")
		concurrency = flag.Int("concurrency", 0, "screening workers (0 uses SCREEN_CONCURRENCY)")
		summaries   = flag.Bool("summaries", false, "generate a model summary per candidate")
	)
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fatalf("config load failed: %v", err)
	}
	slog.SetDefault(observability.SetupLogger(cfg))
	observability.InitMetrics()

	jdBytes, err := os.ReadFile(*jdPath)
	if err != nil {
		fatalf("read job description: %v", err)
	}
	jobDescription := strings.TrimSpace(string(jdBytes))
	if jobDescription == "" {
		fatalf("job description file %s is empty", *jdPath)
	}

	files, err := collectCVFiles(*cvDir)
	if err != nil {
		fatalf("scan cv directory: %v", err)
	}
	if len(files) == 0 {
		fatalf("no .pdf, .docx or .txt files found under %s", *cvDir)
	}
	fmt.Printf("Found %d CV file(s) under %s\n", len(files), *cvDir)

	ctx := context.Background()
	candidates := extractAll(ctx, cfg, files)
	if len(candidates) == 0 {
		fatalf("no usable CV texts extracted")
	}

	var aiClient domain.AIClient
	if cfg.OpenRouterAPIKey != "" {
		aiClient = openrouter.New(cfg)
	} else {
		fmt.Println("OPENROUTER_API_KEY not set; using the deterministic stub client")
		aiClient = stub.New()
	}
	extractor := ai.NewExtractor(aiClient, ai.NewDebugDumper(cfg.DebugResponseDir), cfg.AIMaxTokens, cfg.AISerializeCalls)

	rules, err := config.LoadScoringRules(cfg.ScoringRulesPath)
	if err != nil {
		fatalf("scoring rules: %v", err)
	}
	screener := usecase.NewScreener(extractor, scoring.New(rules))

	workers := *concurrency
	if workers == 0 {
		workers = cfg.ScreenConcurrency
	}
	fmt.Printf("Screening %d candidate(s) with %d worker(s)...\n", len(candidates), usecase.ClampConcurrency(workers))

	results := screener.ProcessAll(ctx, jobDescription, candidates, workers, *summaries, printProgress)
	fmt.Println()

	printTable(results, *topN)
	printStats(results)

	path, err := exportJSON(*outDir, jobDescription, results)
	if err != nil {
		fatalf("export results: %v", err)
	}
	fmt.Printf("\nFull results written to %s\n", path)
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "screener: "+format+"\n", args...)
	os.Exit(1)
}

// collectCVFiles lists screenable files directly under dir, dropping
// duplicate filenames that differ only by case.
func collectCVFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool)
	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		switch strings.ToLower(filepath.Ext(name)) {
		case ".pdf", ".docx", ".txt":
		default:
			continue
		}
		key := strings.ToLower(name)
		if seen[key] {
			fmt.Printf("Skipping duplicate filename %s\n", name)
			continue
		}
		seen[key] = true
		files = append(files, filepath.Join(dir, name))
	}
	sort.Strings(files)
	return files, nil
}

// extractAll pulls plain text out of every file with a bounded worker
// pool. PDFs and DOCX go through Tika; .txt files are read directly.
// Files with too little text are reported and skipped.
func extractAll(ctx context.Context, cfg config.Config, files []string) map[string]string {
	tika := tikaext.New(cfg.TikaURL)

	workers := cfg.ExtractConcurrency
	if workers < 1 {
		workers = 1
	}
	if workers > len(files) {
		workers = len(files)
	}

	type extracted struct {
		name, text string
		err        error
	}
	jobs := make(chan string)
	out := make(chan extracted)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for path := range jobs {
				name := filepath.Base(path)
				text, err := extractOne(ctx, tika, path)
				out <- extracted{name: name, text: text, err: err}
			}
		}()
	}
	go func() {
		defer close(jobs)
		for _, f := range files {
			jobs <- f
		}
	}()
	go func() {
		wg.Wait()
		close(out)
	}()

	candidates := make(map[string]string, len(files))
	for e := range out {
		switch {
		case e.err == nil:
			candidates[e.name] = e.text
		case errors.Is(e.err, domain.ErrTooShort):
			fmt.Printf("Skipping %s: extracted text too short\n", e.name)
		default:
			fmt.Printf("Skipping %s: %v\n", e.name, e.err)
		}
	}
	return candidates
}

func extractOne(ctx context.Context, tika *tikaext.Client, path string) (string, error) {
	if strings.ToLower(filepath.Ext(path)) == ".txt" {
		b, err := os.ReadFile(path)
		if err != nil {
			return "", err
		}
		text := textx.CollapseWhitespace(textx.SanitizeText(string(b)))
		if len(text) < domain.MinCVTextLen {
			return "", fmt.Errorf("%d chars: %w", len(text), domain.ErrTooShort)
		}
		return text, nil
	}
	return tika.ExtractPath(ctx, filepath.Base(path), path)
}

func printProgress(completed, total int, elapsed float64) {
	if completed == 0 {
		fmt.Printf("\r[%d/%d] starting...", completed, total)
		return
	}
	line := fmt.Sprintf("\r[%d/%d] %.0fs elapsed", completed, total, elapsed)
	if completed < total {
		eta := elapsed / float64(completed) * float64(total-completed)
		line += fmt.Sprintf(", ~%.0fs remaining", eta)
	}
	fmt.Print(line + "    ")
}

func printTable(results []domain.CandidateResult, topN int) {
	ranked := usecase.TopN(results, topN)
	fmt.Printf("\nTop %d candidate(s):\n", len(ranked))
	fmt.Printf("%-4s %-40s %-6s %s\n", "#", "CV FILE", "SCORE", "RECOMMENDATION")
	for i, r := range ranked {
		name := r.CVFile
		if len(name) > 40 {
			name = name[:37] + "..."
		}
		fmt.Printf("%-4d %-40s %-6d %s\n", i+1, name, r.FitScore, r.Recommendation)
	}
}

func printStats(results []domain.CandidateResult) {
	stats := usecase.Stats(results)
	fmt.Printf("\nTotal %d | Shortlist %d | Review %d | Reject %d\n",
		stats.Total, stats.Shortlist, stats.Review, stats.Reject)
}

// exportJSON writes the full result set to screening_results_<ts>.json
// in dir and returns the path.
func exportJSON(dir, jobDescription string, results []domain.CandidateResult) (string, error) {
	ranked := usecase.TopN(results, 0)
	payload := map[string]any{
		"screened_at":     time.Now().UTC().Format(time.RFC3339),
		"job_description": jobDescription,
		"stats":           usecase.Stats(results),
		"results":         ranked,
	}
	b, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return "", err
	}
	path := filepath.Join(dir, fmt.Sprintf("screening_results_%s.json", time.Now().Format("20060102_150405")))
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return "", err
	}
	return path, nil
}
