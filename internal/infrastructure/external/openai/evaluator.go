// Package openai implements the answer evaluator on the OpenAI chat
// completions API. The model returns written feedback and a quality score
// that the progress engine converts into XP.
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/MiniPiccino/ThinkDeeperProd/internal/domain/shared"
	"github.com/MiniPiccino/ThinkDeeperProd/pkg/circuitbreaker"
	"github.com/MiniPiccino/ThinkDeeperProd/pkg/logger"
	"github.com/MiniPiccino/ThinkDeeperProd/pkg/retry"
)

// ══════════════════════════════════════════════════════════════════════════════
// CONFIGURATION
// ══════════════════════════════════════════════════════════════════════════════

// Score bounds for a single evaluation. Out-of-range model output is clamped,
// never rejected.
const (
	MinScore = 1
	MaxScore = 20
)

// ClientConfig contains configuration for the evaluator client.
type ClientConfig struct {
	// BaseURL is the API base URL, without a trailing slash.
	BaseURL string

	// APIKey authenticates requests.
	APIKey string

	// Model is the chat model identifier.
	Model string

	// Timeout is the per-request HTTP timeout.
	Timeout time.Duration

	// Logger for structured logging.
	Logger *logger.Logger
}

// DefaultClientConfig returns sensible defaults for the given key.
func DefaultClientConfig(apiKey string) ClientConfig {
	return ClientConfig{
		BaseURL: "https://api.openai.com/v1",
		APIKey:  apiKey,
		Model:   "gpt-4o-mini",
		Timeout: 30 * time.Second,
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// CLIENT
// ══════════════════════════════════════════════════════════════════════════════

// Client evaluates answers via the chat completions endpoint.
type Client struct {
	config     ClientConfig
	httpClient *http.Client
	log        *logger.Logger
	retrier    *retry.Retrier
	breaker    *circuitbreaker.CircuitBreaker
}

// NewClient creates an evaluator client.
func NewClient(config ClientConfig) *Client {
	log := config.Logger
	if log == nil {
		log = logger.Default()
	}
	return &Client{
		config: config,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
		log:     log.With(logger.Component("openai_evaluator")),
		retrier: retry.EvaluatorRetrier(),
		breaker: circuitbreaker.New(circuitbreaker.DefaultConfig("openai")),
	}
}

const systemPrompt = `You are a thoughtful reflection coach. The user answered a daily reflection prompt.
Assess the depth and sincerity of the answer, considering the time spent writing it.
Respond with a JSON object: {"feedback": "<2-4 sentences of encouraging, specific feedback>", "xp": <integer 1-20>}.`

// Evaluate submits the answer for assessment and returns feedback and a
// clamped score. Every failure mode surfaces as shared.ErrEvaluationFailed;
// callers treat evaluation as all-or-nothing.
func (c *Client) Evaluate(ctx context.Context, prompt, answer string, durationSeconds int) (string, int, error) {
	start := time.Now()

	v, err := retry.DoWithData(ctx, c.retrier, func(ctx context.Context) (verdict, error) {
		var v verdict
		err := c.breaker.Execute(ctx, func(ctx context.Context) error {
			var execErr error
			v, execErr = c.evaluateOnce(ctx, prompt, answer, durationSeconds)
			return execErr
		})
		return v, err
	})
	if err != nil {
		c.log.Warn("evaluation failed",
			logger.Err(err),
			logger.Latency(time.Since(start)),
		)
		return "", 0, shared.WrapError("evaluation", "Evaluate", shared.ErrEvaluationFailed,
			"answer evaluation failed", err)
	}

	c.log.Debug("answer evaluated",
		logger.Int("score", v.XP),
		logger.Latency(time.Since(start)),
	)
	return v.Feedback, v.XP, nil
}

type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []chatMessage   `json:"messages"`
	Temperature    float64         `json:"temperature"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// verdict is the JSON object the model is instructed to emit.
type verdict struct {
	Feedback string `json:"feedback"`
	XP       int    `json:"xp"`
}

func (c *Client) evaluateOnce(ctx context.Context, prompt, answer string, durationSeconds int) (verdict, error) {
	userContent := fmt.Sprintf("Prompt: %s\n\nAnswer: %s\n\nTime spent: %d seconds", prompt, answer, durationSeconds)

	payload := chatRequest{
		Model: c.config.Model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userContent},
		},
		Temperature:    0.4,
		ResponseFormat: &responseFormat{Type: "json_object"},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return verdict{}, retry.Permanent(fmt.Errorf("marshal request: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.config.BaseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return verdict{}, retry.Permanent(fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.config.APIKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// Transport failures are worth another attempt.
		return verdict{}, retry.Retryable(fmt.Errorf("http request: %w", err))
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return verdict{}, retry.Retryable(fmt.Errorf("read response: %w", err))
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return verdict{}, retry.Retryable(fmt.Errorf("api status %d: %s", resp.StatusCode, truncateBody(respBody)))
	case resp.StatusCode != http.StatusOK:
		return verdict{}, retry.Permanent(fmt.Errorf("api status %d: %s", resp.StatusCode, truncateBody(respBody)))
	}

	var parsed chatResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return verdict{}, retry.Permanent(fmt.Errorf("unmarshal response: %w", err))
	}
	if len(parsed.Choices) == 0 {
		return verdict{}, retry.Permanent(fmt.Errorf("response has no choices"))
	}

	var v verdict
	if err := json.Unmarshal([]byte(parsed.Choices[0].Message.Content), &v); err != nil {
		return verdict{}, retry.Permanent(fmt.Errorf("parse verdict: %w", err))
	}
	if strings.TrimSpace(v.Feedback) == "" {
		return verdict{}, retry.Permanent(fmt.Errorf("verdict has empty feedback"))
	}

	v.XP = clampScore(v.XP)
	return v, nil
}

func clampScore(score int) int {
	if score < MinScore {
		return MinScore
	}
	if score > MaxScore {
		return MaxScore
	}
	return score
}

func truncateBody(body []byte) string {
	const limit = 200
	s := string(body)
	if len(s) > limit {
		return s[:limit]
	}
	return s
}
