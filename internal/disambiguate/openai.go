package disambiguate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/dharsanguruparan/photosearch/internal/label"
)

const slotPrompt = `You extract photo search keywords. Reply with a JSON object
{"keywords": "<comma separated nouns describing what should appear in the photos>"}.
Use an empty string when the text names nothing to look for.`

// OpenAIConfig addresses an OpenAI-compatible chat completion endpoint.
type OpenAIConfig struct {
	APIKey  string
	BaseURL string
	Model   string
}

// OpenAI fills the keywords slot with a chat completion instead of a Lex bot.
type OpenAI struct {
	client  *openai.Client
	model   string
	enabled bool
	logger  *zap.Logger
}

// NewOpenAI builds the disambiguator. An empty API key disables it.
func NewOpenAI(cfg OpenAIConfig, logger *zap.Logger) *OpenAI {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	enabled := cfg.APIKey != ""
	if !enabled {
		logger.Warn("openai api key not configured, disambiguation disabled")
	}
	return &OpenAI{
		client:  openai.NewClientWithConfig(clientCfg),
		model:   cfg.Model,
		enabled: enabled,
		logger:  logger,
	}
}

// Keywords asks the model for the keywords slot and tokenizes it.
func (o *OpenAI) Keywords(ctx context.Context, text, sessionID string) ([]string, error) {
	if !o.enabled {
		return nil, nil
	}
	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: o.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: slotPrompt},
			{Role: openai.ChatMessageRoleUser, Content: text},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject},
		User:           sessionID,
	})
	if err != nil {
		return nil, parseAPIError(err)
	}
	if len(resp.Choices) == 0 {
		return nil, nil
	}
	var slot struct {
		Keywords string `json:"keywords"`
	}
	if err := json.Unmarshal([]byte(resp.Choices[0].Message.Content), &slot); err != nil {
		o.logger.Debug("unparseable slot reply", zap.String("content", resp.Choices[0].Message.Content))
		return nil, nil
	}
	return label.Tokenize(slot.Keywords), nil
}

func parseAPIError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return fmt.Errorf("chat completion error %d: %s", apiErr.HTTPStatusCode, apiErr.Message)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return fmt.Errorf("chat completion error %d: %w", reqErr.HTTPStatusCode, err)
	}
	return fmt.Errorf("chat completion request: %w", err)
}

// Disabled never extracts keywords; queries always use the tokenizer.
type Disabled struct{}

// Keywords returns nothing.
func (Disabled) Keywords(context.Context, string, string) ([]string, error) {
	return nil, nil
}
