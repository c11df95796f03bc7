package provider

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"voxelmind.ai/internal/action"
)

// WorldContext is the structured part of an observation.
type WorldContext struct {
	Dimension string
	Biome     string
	X, Y, Z   float64
	Yaw       float32
	Pitch     float32
}

// Request is one observation sent for a decision.
type Request struct {
	ID           string
	Tick         int64
	Image        []byte // PNG
	World        WorldContext
	Conversation string
}

func NewRequest(tick int64, image []byte, world WorldContext, conversation string) Request {
	return Request{
		ID:           uuid.NewString(),
		Tick:         tick,
		Image:        image,
		World:        world,
		Conversation: conversation,
	}
}

// Provider turns an observation into a decision. A nil action with a nil
// error means the provider chose not to decide.
type Provider interface {
	Decide(ctx context.Context, req Request) (*action.Action, error)
	Name() string
}

var (
	ErrNoContent = errors.New("provider: empty response")
	ErrNoImage   = errors.New("provider: request has no image")
)

// Timeout bounds one decision round: 400ms per decision tick, at least 1s.
func Timeout(intervalTicks int) time.Duration {
	return max(time.Second, time.Duration(intervalTicks)*400*time.Millisecond)
}

// decodeContent parses model output into an action, logging the raw text,
// the normalized summary and schema lint findings when debug is on.
func decodeContent(logger *log.Logger, debug bool, name, content string) (*action.Action, error) {
	if debug && logger != nil {
		logger.Printf("[%s raw] %s", name, truncate(content, 1000))
	}
	a, err := action.ParseJSON([]byte(content))
	if err != nil {
		return nil, fmt.Errorf("%s: %w (content %q)", name, err, truncate(content, 200))
	}
	if debug && logger != nil {
		logger.Printf("[%s parsed] %v", name, action.Summary(a))
		if doc, err := action.Decode([]byte(content)); err == nil {
			for _, v := range action.Lint(doc) {
				logger.Printf("[%s lint] %s", name, v)
			}
		}
	}
	return &a, nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
