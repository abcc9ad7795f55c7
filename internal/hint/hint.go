// Package hint produces short tutoring hints for an assignment. Hints come
// from an OpenRouter chat model when an API key is configured and fall back
// to keyword rules otherwise.
package hint

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
)

const (
	DefaultEndpoint   = "https://openrouter.ai/api/v1/chat/completions"
	DefaultModel      = "openchat/openchat-7b:free"
	DefaultMaxTokens  = 150
	DefaultTimeout    = 10 * time.Second
	DefaultMaxRetries = 2

	systemPrompt = "You are a helpful SQL tutor."
)

// Request describes what the student is working on.
type Request struct {
	Question  string `json:"question"`
	UserQuery string `json:"userQuery"`
	TableName string `json:"tableName"`
}

// Options configures the model client.
type Options struct {
	APIKey    string
	Endpoint  string
	Model     string
	MaxTokens int
	// Timeout bounds the whole attempt, retries included.
	Timeout time.Duration
	// MaxRetries counts retries after a 429 or 5xx answer. Zero selects
	// DefaultMaxRetries and a negative value disables retries.
	MaxRetries int
	HTTPClient *http.Client
}

// Generator produces hints.
type Generator struct {
	opts   Options
	client *http.Client
	logger *slog.Logger
}

// New creates a Generator. If logger is nil, a discard logger is used.
func New(opts Options, logger *slog.Logger) *Generator {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if opts.Endpoint == "" {
		opts.Endpoint = DefaultEndpoint
	}
	if opts.Model == "" {
		opts.Model = DefaultModel
	}
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = DefaultMaxTokens
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	switch {
	case opts.MaxRetries == 0:
		opts.MaxRetries = DefaultMaxRetries
	case opts.MaxRetries < 0:
		opts.MaxRetries = 0
	}
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{}
	}
	return &Generator{opts: opts, client: client, logger: logger}
}

// Hint returns a hint for req. It never fails: when the model is not
// configured or does not answer, the rule-based fallback is returned.
func (g *Generator) Hint(ctx context.Context, req Request) string {
	fallback := Fallback(req.Question, req.TableName)
	if g.opts.APIKey == "" {
		return fallback
	}

	ctx, cancel := context.WithTimeout(ctx, g.opts.Timeout)
	defer cancel()

	text, err := g.complete(ctx, req)
	if err != nil {
		g.logger.Warn("hint model unavailable, using fallback", slog.Any("error", err))
		return fallback
	}
	return text
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model     string        `json:"model"`
	Messages  []chatMessage `json:"messages"`
	MaxTokens int           `json:"max_tokens"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

var errNoChoices = errors.New("model returned no choices")

func (g *Generator) complete(ctx context.Context, req Request) (string, error) {
	body, err := json.Marshal(chatRequest{
		Model: g.opts.Model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: Prompt(req)},
		},
		MaxTokens: g.opts.MaxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("encode request: %w", err)
	}

	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = 200 * time.Millisecond
	exp.MaxElapsedTime = 0
	policy := backoff.WithContext(backoff.WithMaxRetries(exp, uint64(g.opts.MaxRetries)), ctx)

	return backoff.RetryWithData(func() (string, error) {
		return g.post(ctx, body)
	}, policy)
}

func (g *Generator) post(ctx context.Context, body []byte) (string, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.opts.Endpoint, bytes.NewReader(body))
	if err != nil {
		return "", backoff.Permanent(fmt.Errorf("build request: %w", err))
	}
	httpReq.Header.Set("Authorization", "Bearer "+g.opts.APIKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("post: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, resp.Body)
		err := fmt.Errorf("model endpoint returned %s", resp.Status)
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			return "", err
		}
		return "", backoff.Permanent(err)
	}

	var out chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", backoff.Permanent(fmt.Errorf("decode response: %w", err))
	}
	if len(out.Choices) == 0 {
		return "", backoff.Permanent(errNoChoices)
	}
	text := strings.TrimSpace(out.Choices[0].Message.Content)
	if text == "" {
		return "", backoff.Permanent(errNoChoices)
	}
	return text, nil
}

// Prompt renders the tutoring prompt sent as the user message.
func Prompt(req Request) string {
	userQuery := req.UserQuery
	if strings.TrimSpace(userQuery) == "" {
		userQuery = "No query written yet"
	}

	var b strings.Builder
	b.WriteString("You are a SQL tutor helping a student.\n\n")
	fmt.Fprintf(&b, "Question:\n%s\n\n", req.Question)
	fmt.Fprintf(&b, "Table:\n%s\n\n", req.TableName)
	fmt.Fprintf(&b, "Student Query:\n%s\n\n", userQuery)
	b.WriteString("Rules:\n")
	b.WriteString("- Do NOT give full SQL solution\n")
	b.WriteString("- Only guidance\n")
	b.WriteString("- Max 3 sentences\n")
	return b.String()
}

// Fallback picks a canned hint from keywords in the question.
func Fallback(question, tableName string) string {
	lower := strings.ToLower(question)

	switch {
	case strings.Contains(lower, "greater than") || strings.Contains(lower, ">"):
		return fmt.Sprintf("Try using a WHERE clause on the %s table with a comparison operator (>) to filter rows.", tableName)
	case strings.Contains(lower, "average") || strings.Contains(lower, "avg"):
		return "Consider using the AVG() aggregate function and GROUP BY to compute averages."
	case strings.Contains(lower, "less than") || strings.Contains(lower, "<"):
		return "Use a WHERE clause with a less-than (<) condition to filter the rows properly."
	case strings.Contains(lower, "count"):
		return "You may need to use COUNT() along with GROUP BY depending on the requirement."
	default:
		return "Think about which columns need filtering and whether you should use WHERE, GROUP BY, or an aggregate function."
	}
}
