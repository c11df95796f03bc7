package provider

import (
	"context"
	"encoding/base64"
	"fmt"
	"log"
	"strings"

	openai "github.com/meguminnnnnnnnn/go-openai"

	"voxelmind.ai/internal/action"
)

const DefaultOpenAIModel = "gpt-4o-mini"

// OpenAI calls an OpenAI-compatible chat completions endpoint with the
// screenshot attached as a data URI.
type OpenAI struct {
	client *openai.Client
	model  string
	debug  bool
	logger *log.Logger
}

func NewOpenAI(endpoint, apiKey, model string, debug bool, logger *log.Logger) *OpenAI {
	config := openai.DefaultConfig(apiKey)
	if base := BaseURL(endpoint); base != "" {
		config.BaseURL = base
	}
	if model == "" {
		model = DefaultOpenAIModel
	}
	return &OpenAI{
		client: openai.NewClientWithConfig(config),
		model:  model,
		debug:  debug,
		logger: logger,
	}
}

// BaseURL turns a configured endpoint into the client's base URL. Both
// ".../v1" and ".../v1/chat/completions" are accepted.
func BaseURL(endpoint string) string {
	u := strings.TrimSpace(endpoint)
	u = strings.TrimRight(u, "/")
	if strings.HasSuffix(strings.ToLower(u), "/chat/completions") {
		u = u[:len(u)-len("/chat/completions")]
	}
	return u
}

func (p *OpenAI) Name() string { return "openai:" + p.model }

func (p *OpenAI) Decide(ctx context.Context, req Request) (*action.Action, error) {
	if len(req.Image) == 0 {
		return nil, ErrNoImage
	}
	dataURI := "data:image/png;base64," + base64.StdEncoding.EncodeToString(req.Image)
	var temperature float32

	creq := openai.ChatCompletionRequest{
		Model: p.model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: SystemInstruction,
			},
			{
				Role: openai.ChatMessageRoleUser,
				MultiContent: []openai.ChatMessagePart{
					{Type: openai.ChatMessagePartTypeText, Text: UserPrompt(req.World, req.Conversation)},
					{Type: openai.ChatMessagePartTypeImageURL, ImageURL: &openai.ChatMessageImageURL{URL: dataURI}},
				},
			},
		},
		Temperature: &temperature,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	}

	resp, err := p.client.CreateChatCompletion(ctx, creq)
	if err != nil {
		return nil, fmt.Errorf("openai: %w", err)
	}
	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		return nil, ErrNoContent
	}
	return decodeContent(p.logger, p.debug, "openai", resp.Choices[0].Message.Content)
}
