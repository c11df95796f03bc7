package provider

import (
	"context"
	"encoding/base64"
	"fmt"
	"log"
	"strings"

	"github.com/liushuangls/go-anthropic/v2"

	"voxelmind.ai/internal/action"
)

const (
	DefaultAnthropicModel = "claude-3-5-haiku-latest"
	anthropicMaxTokens    = 1024
)

// Anthropic sends the observation to the Messages API as a base64 image
// block followed by the text prompt.
type Anthropic struct {
	client *anthropic.Client
	model  string
	debug  bool
	logger *log.Logger
}

func NewAnthropic(endpoint, apiKey, model string, debug bool, logger *log.Logger) *Anthropic {
	var opts []anthropic.ClientOption
	if base := strings.TrimRight(strings.TrimSpace(endpoint), "/"); base != "" {
		opts = append(opts, anthropic.WithBaseURL(base))
	}
	if model == "" {
		model = DefaultAnthropicModel
	}
	return &Anthropic{
		client: anthropic.NewClient(apiKey, opts...),
		model:  model,
		debug:  debug,
		logger: logger,
	}
}

func (p *Anthropic) Name() string { return "anthropic:" + p.model }

func (p *Anthropic) Decide(ctx context.Context, req Request) (*action.Action, error) {
	if len(req.Image) == 0 {
		return nil, ErrNoImage
	}
	source := anthropic.NewMessageContentSource(
		anthropic.MessagesContentSourceTypeBase64,
		"image/png",
		base64.StdEncoding.EncodeToString(req.Image),
	)
	temperature := float32(0)
	mreq := anthropic.MessagesRequest{
		Model: anthropic.Model(p.model),
		MultiSystem: []anthropic.MessageSystemPart{
			{Type: "text", Text: SystemInstruction},
		},
		Messages: []anthropic.Message{{
			Role: anthropic.RoleUser,
			Content: []anthropic.MessageContent{
				anthropic.NewImageMessageContent(source),
				anthropic.NewTextMessageContent(UserPrompt(req.World, req.Conversation)),
			},
		}},
		MaxTokens:   anthropicMaxTokens,
		Temperature: &temperature,
	}

	resp, err := p.client.CreateMessages(ctx, mreq)
	if err != nil {
		return nil, fmt.Errorf("anthropic: %w", err)
	}
	var text strings.Builder
	for _, block := range resp.Content {
		if block.Type == anthropic.MessagesContentTypeText && block.Text != nil {
			text.WriteString(*block.Text)
		}
	}
	content := stripFence(text.String())
	if content == "" {
		return nil, ErrNoContent
	}
	return decodeContent(p.logger, p.debug, "anthropic", content)
}

// stripFence removes a ```json fence some models wrap their answer in.
func stripFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
