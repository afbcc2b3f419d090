// Package genai wraps the OpenAI chat completions API for IntakePipe.
//
// It exposes strict JSON-schema structured generation, which the field extractor
// uses to obtain machine-readable intake fields.
package genai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// DefaultModel is used when no model option is supplied.
const DefaultModel = string(openai.ChatModelGPT4oMini)

var (
	// ErrAPIKeyMissing is returned by NewClient when no API key is configured.
	ErrAPIKeyMissing = errors.New("OpenAI API key not set")
	// ErrNoChoicesReturned is returned when the completion has no choices.
	ErrNoChoicesReturned = errors.New("no choices returned")
	// ErrEmptyContent is returned when the first choice carries no content.
	ErrEmptyContent = errors.New("empty completion content")
)

// ClientInterface is the surface other packages depend on, so tests can substitute fakes.
type ClientInterface interface {
	GenerateStructured(ctx context.Context, messages []openai.ChatCompletionMessageParamUnion, schema Schema) (string, error)
}

// Schema names a JSON schema for structured output.
type Schema struct {
	Name        string
	Description string
	Definition  map[string]any
	Strict      bool
}

// chatService defines minimal interface for chat completions.
type chatService interface {
	Create(ctx context.Context, params openai.ChatCompletionNewParams) (openai.ChatCompletion, error)
}

// openaiChatService adapts the SDK completions service to chatService.
type openaiChatService struct {
	client openai.Client
}

func (s *openaiChatService) Create(ctx context.Context, params openai.ChatCompletionNewParams) (openai.ChatCompletion, error) {
	resp, err := s.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return openai.ChatCompletion{}, err
	}
	return *resp, nil
}

// Client wraps the OpenAI ChatCompletion service.
type Client struct {
	chat                chatService
	model               string
	temperature         *float64
	maxCompletionTokens int64
}

// Opts holds configuration for the GenAI client.
type Opts struct {
	APIKey              string
	Model               string
	Temperature         *float64
	MaxCompletionTokens int64
	BaseURL             string
}

// Option configures a Client.
type Option func(*Opts)

// WithAPIKey sets the OpenAI API key.
func WithAPIKey(key string) Option {
	return func(o *Opts) { o.APIKey = key }
}

// WithModel sets the chat model.
func WithModel(model string) Option {
	return func(o *Opts) { o.Model = model }
}

// WithTemperature sets the sampling temperature. Without it the request omits the
// field and the model default applies.
func WithTemperature(temp float64) Option {
	return func(o *Opts) { o.Temperature = &temp }
}

// WithMaxCompletionTokens caps completion length.
func WithMaxCompletionTokens(n int64) Option {
	return func(o *Opts) { o.MaxCompletionTokens = n }
}

// WithBaseURL points the client at an OpenAI-compatible endpoint.
func WithBaseURL(url string) Option {
	return func(o *Opts) { o.BaseURL = url }
}

// NewClient initializes a new GenAI client from options.
func NewClient(opts ...Option) (*Client, error) {
	cfg := Opts{Model: DefaultModel, MaxCompletionTokens: 1024}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.APIKey == "" {
		return nil, ErrAPIKeyMissing
	}
	reqOpts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(cfg.BaseURL))
	}
	slog.Debug("GenAI.NewClient: creating client", "model", cfg.Model, "base_url_set", cfg.BaseURL != "", "temperature_set", cfg.Temperature != nil)
	return &Client{
		chat:                &openaiChatService{client: openai.NewClient(reqOpts...)},
		model:               cfg.Model,
		temperature:         cfg.Temperature,
		maxCompletionTokens: cfg.MaxCompletionTokens,
	}, nil
}

// GenerateStructured requests a completion constrained to schema and returns the raw JSON content.
func (c *Client) GenerateStructured(ctx context.Context, messages []openai.ChatCompletionMessageParamUnion, schema Schema) (string, error) {
	params := c.params(messages)
	jsonSchema := openai.ResponseFormatJSONSchemaJSONSchemaParam{
		Name:   schema.Name,
		Schema: schema.Definition,
		Strict: openai.Bool(schema.Strict),
	}
	if schema.Description != "" {
		jsonSchema.Description = openai.String(schema.Description)
	}
	params.ResponseFormat = openai.ChatCompletionNewParamsResponseFormatUnion{
		OfJSONSchema: &openai.ResponseFormatJSONSchemaParam{JSONSchema: jsonSchema},
	}
	return c.complete(ctx, params, "GenerateStructured")
}

func (c *Client) params(messages []openai.ChatCompletionMessageParamUnion) openai.ChatCompletionNewParams {
	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(c.model),
		Messages: messages,
	}
	if c.temperature != nil {
		params.Temperature = openai.Float(*c.temperature)
	}
	if c.maxCompletionTokens > 0 {
		params.MaxCompletionTokens = openai.Int(c.maxCompletionTokens)
	}
	return params
}

func (c *Client) complete(ctx context.Context, params openai.ChatCompletionNewParams, method string) (string, error) {
	slog.Debug("GenAI."+method+": sending request", "model", c.model, "messages", len(params.Messages))
	resp, err := c.chat.Create(ctx, params)
	if err != nil {
		slog.Error("GenAI."+method+": completion failed", "error", err, "model", c.model)
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		slog.Warn("GenAI."+method+": no choices returned", "model", c.model)
		return "", ErrNoChoicesReturned
	}
	content := resp.Choices[0].Message.Content
	if content == "" {
		return "", ErrEmptyContent
	}
	slog.Debug("GenAI."+method+": received response", "model", c.model, "length", len(content))
	return content, nil
}
