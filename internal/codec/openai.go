package codec

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai"
)

// #region openai-config
// OpenAIConfig configures the OpenAI-compatible HTTP backend.
type OpenAIConfig struct {
	APIKey         string
	BaseURL        string
	Model          string
	EmbeddingModel string
}

const (
	defaultOpenAIModel    = "gpt-4o-mini"
	defaultEmbeddingModel = string(openai.SmallEmbedding3)
)

// #endregion openai-config

// #region openai-client
// OpenAIClient generates and embeds through an OpenAI-compatible API.
type OpenAIClient struct {
	client         *openai.Client
	model          string
	embeddingModel string
}

// NewOpenAIClient builds a client. BaseURL may point at any compatible
// server.
func NewOpenAIClient(cfg OpenAIConfig) *OpenAIClient {
	oc := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oc.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	if cfg.Model == "" {
		cfg.Model = defaultOpenAIModel
	}
	if cfg.EmbeddingModel == "" {
		cfg.EmbeddingModel = defaultEmbeddingModel
	}
	return &OpenAIClient{
		client:         openai.NewClientWithConfig(oc),
		model:          cfg.Model,
		embeddingModel: cfg.EmbeddingModel,
	}
}

// #endregion openai-client

// #region openai-generate
// Generate runs one chat completion with the policy block as the system
// message.
func (o *OpenAIClient) Generate(ctx context.Context, req Request) (string, error) {
	msgs := make([]openai.ChatCompletionMessage, 0, 2)
	if req.SystemPrompt != "" {
		msgs = append(msgs, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: req.SystemPrompt})
	}
	msgs = append(msgs, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: req.UserPrompt})

	creq := openai.ChatCompletionRequest{
		Model:       o.model,
		Messages:    msgs,
		Temperature: req.Temperature,
	}
	if req.MaxTokens > 0 {
		creq.MaxCompletionTokens = req.MaxTokens
	}

	resp, err := o.client.CreateChatCompletion(ctx, creq)
	if err != nil {
		return "", openAIError(err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrEmptyGeneration
	}
	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if text == "" {
		return "", ErrEmptyGeneration
	}
	return text, nil
}

// #endregion openai-generate

// #region openai-embed
// Embed returns one vector per input, ordered as the inputs.
func (o *OpenAIClient) Embed(ctx context.Context, _ string, inputs []string) ([][]float32, error) {
	resp, err := o.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: inputs,
		Model: openai.EmbeddingModel(o.embeddingModel),
	})
	if err != nil {
		return nil, fmt.Errorf("embeddings: %w", openAIError(err))
	}
	if len(resp.Data) != len(inputs) {
		return nil, fmt.Errorf("embeddings: got %d vectors for %d inputs", len(resp.Data), len(inputs))
	}
	out := make([][]float32, len(inputs))
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(out) {
			return nil, fmt.Errorf("embeddings: index %d out of range", d.Index)
		}
		out[d.Index] = d.Embedding
	}
	return out, nil
}

// #endregion openai-embed

// #region openai-errors
func openAIError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return &GenerationError{Status: apiErr.HTTPStatusCode, Body: apiErr.Message, Backend: "openai", Err: err}
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return &GenerationError{Status: reqErr.HTTPStatusCode, Body: reqErr.Error(), Backend: "openai", Err: err}
	}
	return &GenerationError{Backend: "openai", Body: err.Error(), Err: err}
}

// #endregion openai-errors
