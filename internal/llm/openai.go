package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// Compile-time interface check.
var _ Generator = (*OpenAI)(nil)

// rationaleFields are the non-standard response fields OpenAI-compatible
// services use for the reasoning channel.
var rationaleFields = []string{"reasoning", "reasoning_content"}

// OpenAIConfig configures an OpenAI client.
type OpenAIConfig struct {
	BaseURL        string
	APIKey         string
	MaxRetries     int
	RequestTimeout time.Duration
}

// OpenAI is a Generator backed by any OpenAI-compatible chat completions
// endpoint (Groq by default).
type OpenAI struct {
	client openai.Client
}

// NewOpenAI creates a client for the configured endpoint.
func NewOpenAI(cfg OpenAIConfig) *OpenAI {
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(cfg.MaxRetries),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	if cfg.RequestTimeout > 0 {
		opts = append(opts, option.WithRequestTimeout(cfg.RequestTimeout))
	}
	return &OpenAI{client: openai.NewClient(opts...)}
}

// Generate sends one chat completion request.
func (o *OpenAI) Generate(ctx context.Context, req Request) (*Response, error) {
	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(req.Model),
		Messages: make([]openai.ChatCompletionMessageParamUnion, 0, len(req.Messages)),
	}
	if req.Temperature != nil {
		params.Temperature = openai.Float(*req.Temperature)
	}
	for _, m := range req.Messages {
		msg, err := toParam(m)
		if err != nil {
			return nil, err
		}
		params.Messages = append(params.Messages, msg)
	}

	resp, err := o.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, classify(ctx, err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("llm: %s returned no choices", req.Model)
	}

	msg := resp.Choices[0].Message
	out := &Response{Text: msg.Content}
	for _, name := range rationaleFields {
		field, ok := msg.JSON.ExtraFields[name]
		if !ok || !field.Valid() {
			continue
		}
		var s string
		if err := json.Unmarshal([]byte(field.Raw()), &s); err == nil && s != "" {
			out.Rationale = s
			break
		}
	}
	return out, nil
}

func toParam(m Message) (openai.ChatCompletionMessageParamUnion, error) {
	switch m.Role {
	case RoleSystem:
		return openai.SystemMessage(m.Text()), nil
	case RoleAssistant:
		return openai.AssistantMessage(m.Text()), nil
	case RoleUser:
		hasImage := false
		for _, p := range m.Parts {
			if p.IsImage() {
				hasImage = true
				break
			}
		}
		if !hasImage {
			return openai.UserMessage(m.Text()), nil
		}
		parts := make([]openai.ChatCompletionContentPartUnionParam, 0, len(m.Parts))
		for _, p := range m.Parts {
			if p.IsImage() {
				parts = append(parts, openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{
					URL: p.DataURL(),
				}))
				continue
			}
			parts = append(parts, openai.TextContentPart(p.Text))
		}
		return openai.UserMessage(parts), nil
	default:
		return openai.ChatCompletionMessageParamUnion{}, fmt.Errorf("llm: unknown role %q", m.Role)
	}
}

// classify maps transport and service failures onto ErrUnavailable.
// Context errors are returned as-is so callers can detect deadlines.
func classify(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return fmt.Errorf("llm: %w", ctx.Err())
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("llm: %w", err)
	}

	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.StatusCode >= http.StatusInternalServerError,
			apiErr.StatusCode == http.StatusTooManyRequests,
			apiErr.StatusCode == http.StatusUnauthorized,
			apiErr.StatusCode == http.StatusForbidden:
			return fmt.Errorf("%w: status %d", ErrUnavailable, apiErr.StatusCode)
		}
		return fmt.Errorf("llm: request rejected: status %d", apiErr.StatusCode)
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return fmt.Errorf("llm: %w", err)
}
