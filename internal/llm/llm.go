// Package llm adapts the external multimodal completion service behind a
// small client interface with a uniform request/response contract.
package llm

import (
	"context"

	"github.com/sashabaranov/go-openai"

	"github.com/glimpsehq/glimpse/internal/config"
)

// Client is the minimal subset of the completion API used by the agent;
// it is easy to mock in tests.
type Client interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// NewClient creates a completion client for any OpenAI-compatible provider.
func NewClient(cfg config.LLMConfig) *openai.Client {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	return openai.NewClientWithConfig(clientCfg)
}

// UserMessage builds the user turn for a completion request. When a
// screenshot data URL is present the message carries two parts, text plus
// image, which is what multimodal providers expect.
func UserMessage(prompt, screenshotDataURL string) openai.ChatCompletionMessage {
	if screenshotDataURL == "" {
		return openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: prompt}
	}
	return openai.ChatCompletionMessage{
		Role: openai.ChatMessageRoleUser,
		MultiContent: []openai.ChatMessagePart{
			{Type: openai.ChatMessagePartTypeText, Text: prompt},
			{
				Type: openai.ChatMessagePartTypeImageURL,
				ImageURL: &openai.ChatMessageImageURL{
					URL:    screenshotDataURL,
					Detail: openai.ImageURLDetailAuto,
				},
			},
		},
	}
}
