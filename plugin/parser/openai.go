package parser

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"

	rerrors "github.com/fieldops/remindd/internal/errors"
)

// OpenAIConfig holds configuration for the OpenAI-compatible parser.
type OpenAIConfig struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

// OpenAIClient parses tasks through an OpenAI-compatible chat completions
// endpoint using a strict JSON schema response format.
type OpenAIClient struct {
	client  *openai.Client
	model   string
	timeout time.Duration
}

// NewOpenAIClient creates a parser client against an OpenAI-compatible API.
func NewOpenAIClient(cfg OpenAIConfig) *OpenAIClient {
	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}

	model := cfg.Model
	if model == "" {
		model = "gpt-4o-mini"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &OpenAIClient{
		client:  openai.NewClientWithConfig(clientConfig),
		model:   model,
		timeout: timeout,
	}
}

// Parse sends the request to the external parser and decodes the candidate.
func (c *OpenAIClient) Parse(ctx context.Context, req *Request) (*Candidate, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	chatReq := openai.ChatCompletionRequest{
		Model:       c.model,
		MaxTokens:   400,
		Temperature: 0, // deterministic as the endpoint allows
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: taskSystemPrompt,
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: buildUserPrompt(req),
			},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONSchema,
			JSONSchema: &openai.ChatCompletionResponseFormatJSONSchema{
				Name:   "task_extraction",
				Strict: true,
				Schema: taskJSONSchema,
			},
		},
	}

	start := time.Now()
	resp, err := c.client.CreateChatCompletion(ctx, chatReq)
	latency := time.Since(start)

	if err != nil {
		slog.Error("parser request failed",
			"error", err,
			"latency_ms", latency.Milliseconds())
		return nil, rerrors.Wrap(err, rerrors.CodeParserUnavailable, "parser request failed")
	}
	if len(resp.Choices) == 0 {
		return nil, rerrors.New(rerrors.CodeParserUnavailable, "empty response from parser")
	}

	candidate, err := decodeCandidate(resp.Choices[0].Message.Content)
	if err != nil {
		slog.Warn("failed to decode parser response",
			"content", truncateForLog(resp.Choices[0].Message.Content, 120),
			"error", err)
		return nil, rerrors.Wrap(err, rerrors.CodeParserUnavailable, "undecodable parser response")
	}

	slog.Debug("parser completed",
		"input", truncateForLog(req.RawText, 60),
		"confidence", candidate.Confidence,
		"latency_ms", latency.Milliseconds(),
		"tokens", resp.Usage.TotalTokens)

	return candidate, nil
}

// buildUserPrompt assembles the parse request. Original text, prior draft
// fields, and correction text are kept as separate labeled sections.
func buildUserPrompt(req *Request) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Current time: %s\n", req.ReferenceInstant.Format("2006-01-02 15:04"))
	fmt.Fprintf(&b, "Timezone: %s\n", req.ReferenceZone)
	fmt.Fprintf(&b, "Original message: %s\n", req.RawText)

	if req.PriorDraft != nil {
		prior, _ := json.Marshal(req.PriorDraft)
		fmt.Fprintf(&b, "Prior draft: %s\n", prior)
	}
	if req.CorrectionText != "" {
		fmt.Fprintf(&b, "Correction from requester: %s\n", req.CorrectionText)
		b.WriteString("Apply the correction to the specific fields it mentions; keep all other prior draft fields unchanged.\n")
	}

	return b.String()
}

var codeFencePattern = regexp.MustCompile("```(?:json)?\\s*([\\s\\S]*?)\\s*```")

// decodeCandidate parses the model output, tolerating markdown code fences.
func decodeCandidate(content string) (*Candidate, error) {
	content = strings.TrimSpace(content)
	if strings.HasPrefix(content, "```") {
		if m := codeFencePattern.FindStringSubmatch(content); len(m) > 1 {
			content = m[1]
		}
	}

	var candidate Candidate
	if err := json.Unmarshal([]byte(content), &candidate); err != nil {
		return nil, fmt.Errorf("JSON unmarshal failed: %w", err)
	}
	return &candidate, nil
}

func truncateForLog(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}

const taskSystemPrompt = `You extract field-service task assignments from operator messages.

Return JSON with these fields:
- task: the obligation, without time/date/assignee words
- assignee: who must do it
- assigner: who asked for it (empty if not stated)
- due_date / due_time: when it is due (YYYY-MM-DD, 24-hour HH:MM; empty if not stated)
- reminder_date / reminder_time: when to remind (empty if not stated)
- repeat_interval: one of "", "daily", "weekdays", "weekly", "biweekly", "monthly"
- site: the site name if one is mentioned
- timezone_context: the timezone the stated times are in ("assigner_local" when none is stated)
- confidence: your certainty in [0,1] that every field is right

Rules:
1. Compute dates relative to the provided current time.
2. Never invent times the message does not state.
3. When a correction is provided, change only the fields it mentions.`

// taskJSONSchema constrains the parser output. The repeat enum prevents
// free-text repeat values from ever entering the pipeline.
var taskJSONSchema = &jsonSchema{
	Type: "object",
	Properties: map[string]*jsonSchema{
		"task":          {Type: "string"},
		"assignee":      {Type: "string"},
		"assigner":      {Type: "string"},
		"due_date":      {Type: "string"},
		"due_time":      {Type: "string"},
		"reminder_date": {Type: "string"},
		"reminder_time": {Type: "string"},
		"repeat_interval": {
			Type: "string",
			Enum: []string{"", "daily", "weekdays", "weekly", "biweekly", "monthly"},
		},
		"site":             {Type: "string"},
		"timezone_context": {Type: "string"},
		"confidence":       {Type: "number"},
	},
	Required: []string{
		"task", "assignee", "assigner", "due_date", "due_time",
		"reminder_date", "reminder_time", "repeat_interval",
		"site", "timezone_context", "confidence",
	},
}

// jsonSchema implements json.Marshaler for the JSON Schema response format.
// Strict mode requires additionalProperties=false on every object, so
// MarshalJSON injects it for object schemas.
type jsonSchema struct {
	Type        string                 `json:"type"`
	Properties  map[string]*jsonSchema `json:"properties,omitempty"`
	Required    []string               `json:"required,omitempty"`
	Enum        []string               `json:"enum,omitempty"`
	Description string                 `json:"description,omitempty"`
}

func (s *jsonSchema) MarshalJSON() ([]byte, error) {
	type alias jsonSchema
	if s.Type != "object" {
		return json.Marshal((*alias)(s))
	}
	return json.Marshal(struct {
		*alias
		AdditionalProperties bool `json:"additionalProperties"`
	}{alias: (*alias)(s)})
}

var _ Client = (*OpenAIClient)(nil)
