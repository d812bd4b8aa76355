// Package openrouter implements domain.AIClient against the OpenRouter
// chat completions API (OpenAI-compatible).
package openrouter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	backoff "github.com/cenkalti/backoff/v4"

	"github.com/fairyhunter13/cv-screener/internal/adapter/ai/tokencount"
	"github.com/fairyhunter13/cv-screener/internal/adapter/observability"
	"github.com/fairyhunter13/cv-screener/internal/config"
	"github.com/fairyhunter13/cv-screener/internal/domain"
)

// Client calls a single configured OpenRouter model with retry/backoff.
type Client struct {
	cfg     config.Config
	hc      *http.Client
	counter *tokencount.Counter
}

// New constructs a client with a chat timeout generous enough for slow
// free-tier models.
func New(cfg config.Config) *Client {
	timeout := 60 * time.Second
	if cfg.IsDev() {
		timeout = 300 * time.Second
	}
	return &Client{
		cfg:     cfg,
		hc:      &http.Client{Timeout: timeout},
		counter: tokencount.NewCounter(),
	}
}

func (c *Client) getBackoffConfig() *backoff.ExponentialBackOff {
	expo := backoff.NewExponentialBackOff()
	maxElapsedTime, initialInterval, maxInterval, multiplier := c.cfg.GetAIBackoffConfig()
	expo.MaxElapsedTime = maxElapsedTime
	expo.InitialInterval = initialInterval
	expo.MaxInterval = maxInterval
	expo.Multiplier = multiplier
	return expo
}

// ChatJSON sends a system+user chat completion and returns the raw message
// content. 429 and 5xx responses are retried with exponential backoff; 4xx
// responses fail immediately. The user prompt is trimmed to the configured
// token budget before sending.
func (c *Client) ChatJSON(ctx domain.Context, systemPrompt, userPrompt string, maxTokens int) (string, error) {
	if c.cfg.OpenRouterAPIKey == "" {
		slog.Error("OpenRouter API key missing", slog.String("provider", "openrouter"))
		return "", fmt.Errorf("%w: OPENROUTER_API_KEY missing", domain.ErrInvalidArgument)
	}

	model := c.cfg.OpenRouterModel
	if budget := c.cfg.AIPromptTokenBudget; budget > 0 {
		trimmed := c.counter.TruncateToBudget(userPrompt, model, budget)
		if len(trimmed) < len(userPrompt) {
			slog.Debug("user prompt trimmed to token budget",
				slog.Int("budget", budget),
				slog.Int("chars_before", len(userPrompt)),
				slog.Int("chars_after", len(trimmed)))
		}
		userPrompt = trimmed
	}

	body := map[string]any{
		"model":       model,
		"temperature": 0.2,
		"max_tokens":  maxTokens,
		"messages": []map[string]string{
			{"role": "system", "content": systemPrompt},
			{"role": "user", "content": userPrompt},
		},
	}
	b, _ := json.Marshal(body)

	var out struct {
		Model   string `json:"model"`
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	endpoint := c.cfg.OpenRouterBaseURL + "/chat/completions"
	op := func() error {
		start := time.Now()
		// Recreate request each attempt to avoid reusing consumed bodies
		r, _ := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(b))
		r.Header.Set("Authorization", "Bearer "+c.cfg.OpenRouterAPIKey)
		r.Header.Set("Content-Type", "application/json")
		resp, err := c.hc.Do(r)
		observability.AIRequestDuration.WithLabelValues("openrouter").Observe(time.Since(start).Seconds())
		if err != nil {
			observability.AIRequestsTotal.WithLabelValues("openrouter", "transport_error").Inc()
			if errors.Is(err, context.DeadlineExceeded) {
				return backoff.Permanent(fmt.Errorf("%w: %v", domain.ErrUpstreamTimeout, err))
			}
			return err
		}
		defer func() { _ = resp.Body.Close() }()

		bodyBytes, err := io.ReadAll(resp.Body)
		if err != nil {
			slog.Error("failed to read response body", slog.String("provider", "openrouter"), slog.Any("error", err))
			return err
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			// Retryable: let backoff handle retries
			observability.AIRequestsTotal.WithLabelValues("openrouter", "rate_limited").Inc()
			slog.Warn("ai provider rate limited", slog.String("provider", "openrouter"), slog.Int("status", resp.StatusCode), slog.String("x_request_id", resp.Header.Get("X-Request-Id")))
			return fmt.Errorf("%w: status 429", domain.ErrUpstreamRateLimit)
		}
		if resp.StatusCode >= 400 && resp.StatusCode < 500 {
			// Client error: non-retryable
			observability.AIRequestsTotal.WithLabelValues("openrouter", "client_error").Inc()
			slog.Warn("ai provider 4xx", slog.String("provider", "openrouter"), slog.Int("status", resp.StatusCode), slog.String("model", model), slog.String("endpoint", endpoint), slog.String("body", snippet(bodyBytes)))
			return backoff.Permanent(fmt.Errorf("chat status %d", resp.StatusCode))
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			// 5xx and others: retryable
			observability.AIRequestsTotal.WithLabelValues("openrouter", "server_error").Inc()
			slog.Error("ai provider non-2xx", slog.String("provider", "openrouter"), slog.Int("status", resp.StatusCode), slog.String("model", model), slog.String("endpoint", endpoint), slog.String("body", snippet(bodyBytes)))
			return fmt.Errorf("chat status %d", resp.StatusCode)
		}
		if err := json.Unmarshal(bodyBytes, &out); err != nil {
			observability.AIRequestsTotal.WithLabelValues("openrouter", "decode_error").Inc()
			slog.Error("ai provider decode error", slog.String("provider", "openrouter"), slog.String("model", model), slog.Any("error", err))
			return err
		}
		observability.AIRequestsTotal.WithLabelValues("openrouter", "ok").Inc()
		return nil
	}

	bo := backoff.WithContext(c.getBackoffConfig(), ctx)
	if err := backoff.Retry(op, bo); err != nil {
		slog.Error("OpenRouter API failed after retries", slog.String("provider", "openrouter"), slog.Any("error", err))
		return "", fmt.Errorf("openrouter chat: %w", err)
	}

	if len(out.Choices) == 0 {
		slog.Error("OpenRouter API returned empty choices", slog.String("provider", "openrouter"))
		return "", fmt.Errorf("%w: empty choices from OpenRouter", domain.ErrSchemaInvalid)
	}
	if out.Model != "" && out.Model != model {
		slog.Warn("model substitution detected",
			slog.String("requested_model", model),
			slog.String("actual_model", out.Model),
			slog.String("provider", "openrouter"))
	}
	return out.Choices[0].Message.Content, nil
}

func snippet(b []byte) string {
	if len(b) > 512 {
		b = b[:512]
	}
	return string(b)
}
