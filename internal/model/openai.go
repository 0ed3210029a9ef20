// Package model provides the OpenAI client for reasoning service access.
package model

import (
	"context"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/param"
	"github.com/openai/openai-go/shared"

	apperrors "github.com/butler-ai/butler/internal/errors"
)

// OpenAIConfig configures the OpenAI client.
type OpenAIConfig struct {
	APIKey    string
	BaseURL   string // optional OpenAI-compatible endpoint
	Model     string // e.g. "gpt-4o-mini"
	MaxTokens int
}

// OpenAIClient implements Model using the OpenAI chat completions API.
type OpenAIClient struct {
	cfg    OpenAIConfig
	client *openai.Client
}

// NewOpenAIClient creates a new OpenAI client.
func NewOpenAIClient(cfg OpenAIConfig) *OpenAIClient {
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	client := openai.NewClient(opts...)
	return &OpenAIClient{cfg: cfg, client: &client}
}

// Complete runs a one-shot completion.
func (c *OpenAIClient) Complete(ctx context.Context, req *Request) (*Response, error) {
	params := c.buildParams(req)

	resp, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, apperrors.Wrap(err, "model_complete", "reasoning service request failed", apperrors.CategoryCollaborator)
	}
	if len(resp.Choices) == 0 {
		return nil, apperrors.New("model_empty", "reasoning service returned no choices", apperrors.CategoryCollaborator)
	}

	return &Response{
		Text:       resp.Choices[0].Message.Content,
		TokensUsed: int(resp.Usage.TotalTokens),
		Model:      resp.Model,
	}, nil
}

// Stream runs a completion with incremental output.
func (c *OpenAIClient) Stream(ctx context.Context, req *Request) (<-chan StreamChunk, error) {
	params := c.buildParams(req)
	params.StreamOptions = openai.ChatCompletionStreamOptionsParam{
		IncludeUsage: param.NewOpt(true),
	}

	ch := make(chan StreamChunk, 64)

	go func() {
		defer close(ch)

		stream := c.client.Chat.Completions.NewStreaming(ctx, params)
		defer stream.Close()

		acc := &openai.ChatCompletionAccumulator{}

		for stream.Next() {
			if ctx.Err() != nil {
				ch <- StreamChunk{Err: ctx.Err()}
				return
			}

			chunk := stream.Current()
			acc.AddChunk(chunk)

			for _, choice := range chunk.Choices {
				if choice.Delta.Content != "" {
					ch <- StreamChunk{Text: choice.Delta.Content}
				}
			}
		}

		if err := stream.Err(); err != nil {
			ch <- StreamChunk{Err: apperrors.Wrap(err, "model_stream", "reasoning service stream failed", apperrors.CategoryCollaborator)}
			return
		}

		ch <- StreamChunk{Done: true}
	}()

	return ch, nil
}

// IsAvailable checks if the client is configured.
func (c *OpenAIClient) IsAvailable() bool {
	return c != nil && c.cfg.APIKey != ""
}

// Name returns the model name.
func (c *OpenAIClient) Name() string {
	if c.cfg.Model != "" {
		return c.cfg.Model
	}
	return "openai"
}

func (c *OpenAIClient) buildParams(req *Request) openai.ChatCompletionNewParams {
	var messages []openai.ChatCompletionMessageParamUnion

	if req.System != "" {
		messages = append(messages, openai.ChatCompletionMessageParamUnion{
			OfSystem: &openai.ChatCompletionSystemMessageParam{
				Content: openai.ChatCompletionSystemMessageParamContentUnion{
					OfString: param.NewOpt(req.System),
				},
			},
		})
	}
	messages = append(messages, openai.ChatCompletionMessageParamUnion{
		OfUser: &openai.ChatCompletionUserMessageParam{
			Content: openai.ChatCompletionUserMessageParamContentUnion{
				OfString: param.NewOpt(req.Prompt),
			},
		},
	})

	params := openai.ChatCompletionNewParams{
		Model:       c.cfg.Model,
		Messages:    messages,
		Temperature: param.NewOpt(req.Temperature),
	}

	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = c.cfg.MaxTokens
	}
	if maxTokens > 0 {
		params.MaxTokens = param.NewOpt(int64(maxTokens))
	}

	if req.JSON {
		params.ResponseFormat = openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &shared.ResponseFormatJSONObjectParam{},
		}
	}

	return params
}
