package main

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"voxelmind.ai/internal/protocol"
)

func TestDescribe(t *testing.T) {
	cases := []struct {
		msg  any
		want string
	}{
		{protocol.DecisionMsg{RequestID: "r1", LatencyMS: 12}, "request=r1 latency=12ms rtt=20ms (no decision)"},
		{
			protocol.DecisionMsg{RequestID: "r2", Error: &protocol.ErrorInfo{Code: protocol.ErrProvider, Message: "quota"}},
			"request=r2 latency=0ms rtt=20ms error=" + protocol.ErrProvider + ": quota",
		},
		{protocol.WelcomeMsg{}, "unexpected protocol.WelcomeMsg"},
	}
	for _, tc := range cases {
		if got := describe(tc.msg, 20*time.Millisecond); got != tc.want {
			t.Fatalf("got %q want %q", got, tc.want)
		}
	}

	d := protocol.DecisionMsg{RequestID: "r3", Actions: json.RawMessage(`{"chat":{"message":"hi"}}`)}
	if got := describe(d, 0); !strings.HasPrefix(got, "request=r3 ") || !strings.Contains(got, `"hi"`) {
		t.Fatalf("decision: %q", got)
	}
}

func TestLoadFrame_RendersPNG(t *testing.T) {
	b, err := loadFrame(context.Background(), "")
	if err != nil {
		t.Fatalf("frame: %v", err)
	}
	if !bytes.HasPrefix(b, []byte("\x89PNG\r\n\x1a\n")) {
		t.Fatalf("not a png")
	}
}
