package provider

import (
	"context"
	"fmt"
	"strings"
	"time"

	"voxelmind.ai/internal/action"
)

// Stub answers every request with a status line and nothing else. It is the
// provider used when no agent URL is configured.
type Stub struct {
	Now func() time.Time
}

func (s *Stub) Name() string { return "stub" }

func (s *Stub) Decide(ctx context.Context, req Request) (*action.Action, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	now := time.Now
	if s.Now != nil {
		now = s.Now
	}
	msg := fmt.Sprintf("StubAgent tick at %s pos=(%d,%d,%d)",
		now().Format("15:04:05"), int(req.World.X), int(req.World.Y), int(req.World.Z))
	if last := lastLine(req.Conversation); last != "" {
		msg += fmt.Sprintf(" goal=%q", last)
	}
	a := action.Action{Chat: action.ChatText(msg)}
	return &a, nil
}

func lastLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	}
	return strings.TrimSpace(s)
}
