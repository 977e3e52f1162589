package inference

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"sql-cleanser/internal/config"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

// KeyRequest carries what the oracle sees of one table.
type KeyRequest struct {
	Table   string     `json:"table"`
	Columns []string   `json:"columns"`
	Sample  [][]string `json:"sample"`
}

// Oracle is the optional inference service. Implementations may be slow
// and may fail; callers wrap every call in Attempt.
type Oracle interface {
	// SuggestKey returns candidate key columns in order. The caller
	// validates them against the table.
	SuggestKey(ctx context.Context, req KeyRequest) ([]string, error)
	// Narrate returns free-form guidance that embeds a JSON plan.
	Narrate(ctx context.Context, summary []byte) (string, error)
}

var errEmptyResponse = errors.New("empty response from model")

// ChatOracle talks to an OpenAI compatible chat completion endpoint.
type ChatOracle struct {
	client      *openai.Client
	model       string
	maxTokens   int
	temperature float32
	logger      *zap.Logger
}

// NewPolicy returns the attempt policy configured for every oracle call.
func NewPolicy(cfg config.Inference) Policy {
	return Policy{Attempts: cfg.RetryAttempts, Timeout: cfg.Timeout, Backoff: cfg.Backoff}
}

func NewChatOracle(cfg config.Inference, logger *zap.Logger) *ChatOracle {
	if logger == nil {
		logger = zap.NewNop()
	}
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.Endpoint != "" {
		clientCfg.BaseURL = strings.TrimRight(cfg.Endpoint, "/")
	}
	return &ChatOracle{
		client:      openai.NewClientWithConfig(clientCfg),
		model:       cfg.Model,
		maxTokens:   cfg.MaxTokens,
		temperature: cfg.Temperature,
		logger:      logger.Named("oracle"),
	}
}

const keySystemPrompt = `You are a database expert. Identify the primary key of a table from its columns and sample rows.
Primary keys are usually named id or end with _id, hold unique values and are typically numeric or UUIDs.
Respond with ONLY a JSON array of column names, for example ["id"] or ["user_id", "order_id"].`

const narrativeSystemPrompt = `You are a senior database architect planning a data migration between two SQL dialects.
Using the diff summary you are given, produce:
(A) a Markdown migration guide covering datatype mapping, sequence handling and SQL rewrite tips;
(B) a JSON object with keys: steps[], risk_level, estimated_effort, warnings[].
Return both in one response, with the JSON object in its own fenced block.`

func (o *ChatOracle) SuggestKey(ctx context.Context, req KeyRequest) ([]string, error) {
	payload, err := json.MarshalIndent(req, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode key request: %w", err)
	}
	content, err := o.complete(ctx, keySystemPrompt, "Table:\n"+string(payload))
	if err != nil {
		return nil, err
	}
	columns, err := parseColumns(StripFences(content))
	if err != nil {
		o.logger.Debug("unusable key suggestion", zap.String("table", req.Table), zap.String("response", content))
		return nil, fmt.Errorf("table %s: %w", req.Table, err)
	}
	return columns, nil
}

func (o *ChatOracle) Narrate(ctx context.Context, summary []byte) (string, error) {
	return o.complete(ctx, narrativeSystemPrompt, "Diff summary:\n"+string(summary))
}

func (o *ChatOracle) complete(ctx context.Context, system, user string) (string, error) {
	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       o.model,
		Temperature: o.temperature,
		MaxTokens:   o.maxTokens,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
	})
	if err != nil {
		return "", fmt.Errorf("chat completion (%s): %w", o.model, err)
	}
	if len(resp.Choices) == 0 {
		return "", errEmptyResponse
	}
	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	if content == "" {
		return "", errEmptyResponse
	}
	o.logger.Debug("chat completion",
		zap.String("model", o.model),
		zap.Int("prompt_tokens", resp.Usage.PromptTokens),
		zap.Int("completion_tokens", resp.Usage.CompletionTokens))
	return content, nil
}

var _ Oracle = (*ChatOracle)(nil)
