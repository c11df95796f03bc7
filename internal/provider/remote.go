package provider

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"voxelmind.ai/internal/action"
	"voxelmind.ai/internal/protocol"
)

const handshakeTimeout = 5 * time.Second

// Remote asks a decider process over websocket. The connection is dialed on
// first use and redialed after any transport error.
type Remote struct {
	url    string
	name   string
	token  string
	debug  bool
	logger *log.Logger

	mu   sync.Mutex // held for a whole round
	conn *websocket.Conn

	// peer is the decider's provider name from the last WELCOME.
	peer atomic.Pointer[string]
}

func NewRemote(url, agentName, token string, debug bool, logger *log.Logger) *Remote {
	if agentName == "" {
		agentName = "voxelmind"
	}
	return &Remote{url: url, name: agentName, token: token, debug: debug, logger: logger}
}

func (r *Remote) Name() string {
	if p := r.peer.Load(); p != nil && *p != "" {
		return "remote:" + *p
	}
	return "remote"
}

// Close drops the current connection, if any.
func (r *Remote) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.dropLocked()
}

func (r *Remote) dropLocked() error {
	if r.conn == nil {
		return nil
	}
	_ = r.conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"), time.Now().Add(time.Second))
	err := r.conn.Close()
	r.conn = nil
	return err
}

func (r *Remote) Decide(ctx context.Context, req Request) (*action.Action, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.conn == nil {
		if err := r.connectLocked(ctx); err != nil {
			return nil, err
		}
	}
	a, err := r.roundLocked(ctx, req)
	if err != nil {
		var perr *protocol.ErrorInfo
		if !errors.As(err, &perr) {
			// Transport-level failure: the connection state is unknown.
			_ = r.dropLocked()
		}
		return nil, err
	}
	return a, nil
}

func (r *Remote) connectLocked(ctx context.Context) error {
	d := websocket.Dialer{HandshakeTimeout: handshakeTimeout}
	conn, resp, err := d.DialContext(ctx, r.url, nil)
	if err != nil {
		return fmt.Errorf("remote: dial %s: %w", r.url, err)
	}
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}

	hello := protocol.HelloMsg{
		Type:              protocol.TypeHello,
		ProtocolVersion:   protocol.Version,
		SupportedVersions: protocol.SupportedVersions,
		AgentName:         r.name,
	}
	if r.token != "" {
		hello.Auth = &protocol.HelloAuth{Token: r.token}
	}
	deadline := deadlineFor(ctx, handshakeTimeout)
	_ = conn.SetWriteDeadline(deadline)
	if err := conn.WriteJSON(hello); err != nil {
		_ = conn.Close()
		return fmt.Errorf("remote: send HELLO: %w", err)
	}

	_ = conn.SetReadDeadline(deadline)
	_, msg, err := conn.ReadMessage()
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("remote: read WELCOME: %w", err)
	}
	base, err := protocol.DecodeBase(msg)
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("remote: bad handshake reply: %w", err)
	}
	switch base.Type {
	case protocol.TypeWelcome:
	case protocol.TypeError:
		_ = conn.Close()
		var em protocol.ErrorMsg
		_ = json.Unmarshal(msg, &em)
		return fmt.Errorf("remote: handshake rejected: %w", &protocol.ErrorInfo{Code: em.Code, Message: em.Message})
	default:
		_ = conn.Close()
		return fmt.Errorf("remote: expected WELCOME, got %q", base.Type)
	}
	var w protocol.WelcomeMsg
	if err := json.Unmarshal(msg, &w); err != nil {
		_ = conn.Close()
		return fmt.Errorf("remote: decode WELCOME: %w", err)
	}
	if !protocol.IsSupportedVersion(w.ProtocolVersion) {
		_ = conn.Close()
		return fmt.Errorf("remote: unsupported protocol_version %q", w.ProtocolVersion)
	}
	if r.debug && r.logger != nil {
		r.logger.Printf("remote connected session=%s provider=%s model=%s", w.SessionID, w.Provider, w.Model)
	}
	r.conn = conn
	r.peer.Store(&w.Provider)
	return nil
}

func (r *Remote) roundLocked(ctx context.Context, req Request) (*action.Action, error) {
	msg := protocol.DecideMsg{
		Type:            protocol.TypeDecide,
		ProtocolVersion: protocol.Version,
		RequestID:       req.ID,
		Tick:            req.Tick,
		World: protocol.WorldInfo{
			Dimension: req.World.Dimension,
			Biome:     req.World.Biome,
			Pos:       [3]float64{req.World.X, req.World.Y, req.World.Z},
			Yaw:       req.World.Yaw,
			Pitch:     req.World.Pitch,
		},
		Conversation: req.Conversation,
	}
	if len(req.Image) > 0 {
		msg.ImagePNG = base64.StdEncoding.EncodeToString(req.Image)
	}

	deadline := deadlineFor(ctx, 30*time.Second)
	_ = r.conn.SetWriteDeadline(deadline)
	if err := r.conn.WriteJSON(msg); err != nil {
		return nil, fmt.Errorf("remote: send DECIDE: %w", err)
	}

	_ = r.conn.SetReadDeadline(deadline)
	for {
		_, raw, err := r.conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, fmt.Errorf("remote: read DECISION: %w", err)
		}
		base, err := protocol.DecodeBase(raw)
		if err != nil || base.Type != protocol.TypeDecision {
			// Late replies and unrelated messages are skipped.
			continue
		}
		var d protocol.DecisionMsg
		if err := json.Unmarshal(raw, &d); err != nil {
			return nil, fmt.Errorf("remote: decode DECISION: %w", err)
		}
		if d.RequestID != req.ID {
			continue
		}
		if d.Error != nil {
			return nil, fmt.Errorf("remote: %w", d.Error)
		}
		if len(d.Actions) == 0 || string(d.Actions) == "null" {
			return nil, nil
		}
		return decodeContent(r.logger, r.debug, "remote", string(d.Actions))
	}
}

func deadlineFor(ctx context.Context, fallback time.Duration) time.Time {
	if d, ok := ctx.Deadline(); ok {
		return d
	}
	return time.Now().Add(fallback)
}
