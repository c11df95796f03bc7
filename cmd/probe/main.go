// Command probe sends DECIDE requests to a decider and prints the decisions.
// It exercises a decider deployment without a running agent.
package main

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"voxelmind.ai/internal/action"
	"voxelmind.ai/internal/capture"
	"voxelmind.ai/internal/protocol"
	"voxelmind.ai/internal/voxel"
)

func main() {
	var (
		url   = flag.String("url", "ws://127.0.0.1:8091/v1/decide", "decider ws url")
		name  = flag.String("name", "probe", "agent name sent in HELLO")
		token = flag.String("token", os.Getenv("VOXELMIND_DECIDER_TOKEN"), "decider token")
		image = flag.String("image", "", "PNG frame to send; empty renders a small test field")
		say   = flag.String("say", "", "conversation context sent with each request")
		count = flag.Int("count", 1, "number of DECIDE requests")
		wait  = flag.Duration("timeout", 30*time.Second, "per-request timeout")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[probe] ", log.LstdFlags|log.Lmicroseconds)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	frame, err := loadFrame(ctx, *image)
	if err != nil {
		logger.Fatalf("frame: %v", err)
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, *url, nil)
	if err != nil {
		logger.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	hello := protocol.HelloMsg{
		Type:              protocol.TypeHello,
		ProtocolVersion:   protocol.Version,
		SupportedVersions: []string{protocol.Version},
		AgentName:         *name,
	}
	if *token != "" {
		hello.Auth = &protocol.HelloAuth{Token: *token}
	}
	if err := conn.WriteJSON(hello); err != nil {
		logger.Fatalf("send HELLO: %v", err)
	}

	_ = conn.SetReadDeadline(time.Now().Add(*wait))
	msg, err := readMessage(conn)
	if err != nil {
		logger.Fatalf("handshake: %v", err)
	}
	w, ok := msg.(protocol.WelcomeMsg)
	if !ok {
		logger.Fatalf("handshake: unexpected %T", msg)
	}
	logger.Printf("WELCOME session=%s provider=%s model=%s version=%s", w.SessionID, w.Provider, w.Model, w.SelectedVersion)

	for i := 0; i < *count; i++ {
		if ctx.Err() != nil {
			return
		}
		req := protocol.DecideMsg{
			Type:            protocol.TypeDecide,
			ProtocolVersion: protocol.Version,
			RequestID:       uuid.NewString(),
			Tick:            int64(i * 20),
			World: protocol.WorldInfo{
				Dimension: "minecraft:overworld",
				Biome:     "minecraft:plains",
				Pos:       [3]float64{0.5, 5, 0.5},
			},
			ImagePNG:     base64.StdEncoding.EncodeToString(frame),
			Conversation: *say,
		}
		start := time.Now()
		if err := conn.WriteJSON(req); err != nil {
			logger.Fatalf("send DECIDE: %v", err)
		}
		_ = conn.SetReadDeadline(time.Now().Add(*wait))
		msg, err := readMessage(conn)
		if err != nil {
			logger.Fatalf("read: %v", err)
		}
		fmt.Println(describe(msg, time.Since(start)))
	}
}

// readMessage decodes the next WELCOME, DECISION or ERROR frame.
func readMessage(conn *websocket.Conn) (any, error) {
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return nil, err
		}
		base, err := protocol.DecodeBase(raw)
		if err != nil {
			continue
		}
		switch base.Type {
		case protocol.TypeWelcome:
			var m protocol.WelcomeMsg
			if err := json.Unmarshal(raw, &m); err != nil {
				return nil, err
			}
			return m, nil
		case protocol.TypeDecision:
			var m protocol.DecisionMsg
			if err := json.Unmarshal(raw, &m); err != nil {
				return nil, err
			}
			return m, nil
		case protocol.TypeError:
			var m protocol.ErrorMsg
			if err := json.Unmarshal(raw, &m); err != nil {
				return nil, err
			}
			return nil, fmt.Errorf("%s: %s", m.Code, m.Message)
		}
	}
}

func describe(msg any, rtt time.Duration) string {
	d, ok := msg.(protocol.DecisionMsg)
	if !ok {
		return fmt.Sprintf("unexpected %T", msg)
	}
	head := fmt.Sprintf("request=%s latency=%dms rtt=%dms", d.RequestID, d.LatencyMS, rtt.Milliseconds())
	if d.Error != nil {
		return fmt.Sprintf("%s error=%s: %s", head, d.Error.Code, d.Error.Message)
	}
	if len(d.Actions) == 0 {
		return head + " (no decision)"
	}
	a, err := action.ParseJSON(d.Actions)
	if err != nil {
		return fmt.Sprintf("%s unparseable: %v", head, err)
	}
	b, _ := json.Marshal(action.Summary(a))
	return head + " " + string(b)
}

func loadFrame(ctx context.Context, path string) ([]byte, error) {
	if path != "" {
		return os.ReadFile(path)
	}
	g := voxel.NewGrid(nil, 0, 16)
	g.Fill(voxel.Pos{X: -12, Y: 0, Z: -12}, voxel.Pos{X: 12, Y: 3, Z: 12}, g.Palette.MustLookup("grass_block"))
	for y := 4; y < 8; y++ {
		g.SetBlock(voxel.Pos{X: 3, Y: y, Z: -4}, "oak_log")
	}
	td := &capture.TopDown{
		World:  g,
		Center: func() voxel.Vec3 { return voxel.Vec3{X: 0.5, Y: 4, Z: 0.5} },
		Radius: 12,
	}
	return td.Capture(ctx)
}
