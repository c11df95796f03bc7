package ws

import (
	"context"
	"crypto/subtle"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"voxelmind.ai/internal/action"
	"voxelmind.ai/internal/protocol"
	"voxelmind.ai/internal/provider"
)

// Server exposes a provider to remote agents. Each connection handles one
// DECIDE at a time; a DECIDE arriving while another is running gets E_BUSY.
type Server struct {
	prov    provider.Provider
	log     *log.Logger
	timeout time.Duration

	// Token, when set, must match the HELLO auth token.
	Token string

	upgrader websocket.Upgrader
	nextID   atomic.Uint64
}

func NewServer(p provider.Provider, timeout time.Duration, logger *log.Logger) *Server {
	if timeout <= 0 {
		timeout = provider.Timeout(5)
	}
	return &Server{
		prov:    p,
		log:     logger,
		timeout: timeout,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  64 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
	}
}

func (s *Server) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		sid, ok := s.handshake(conn)
		if !ok {
			return
		}

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		out := make(chan []byte, 8)

		// Writer goroutine.
		go func() {
			for {
				select {
				case <-ctx.Done():
					return
				case b := <-out:
					_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
					if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
						cancel()
						return
					}
				}
			}
		}()

		var busy atomic.Bool
		for {
			_ = conn.SetReadDeadline(time.Now().Add(120 * time.Second))
			_, msg, err := conn.ReadMessage()
			if err != nil {
				break
			}
			base, err := protocol.DecodeBase(msg)
			if err != nil {
				send(ctx, out, errorMsg(protocol.ErrProtoBadRequest, "bad json"))
				continue
			}
			if base.Type != protocol.TypeDecide {
				continue
			}
			if err := protocol.Validate(protocol.TypeDecide, msg); err != nil {
				send(ctx, out, decisionError(requestID(msg), protocol.ErrProtoBadRequest, err.Error()))
				continue
			}
			var req protocol.DecideMsg
			if err := json.Unmarshal(msg, &req); err != nil {
				send(ctx, out, decisionError(requestID(msg), protocol.ErrProtoBadRequest, err.Error()))
				continue
			}
			if !protocol.IsSupportedVersion(req.ProtocolVersion) {
				send(ctx, out, decisionError(req.RequestID, protocol.ErrProtoVersion, req.ProtocolVersion))
				continue
			}
			if !busy.CompareAndSwap(false, true) {
				send(ctx, out, decisionError(req.RequestID, protocol.ErrBusy, "decision already running"))
				continue
			}
			go func() {
				defer busy.Store(false)
				send(ctx, out, s.decide(ctx, sid, req))
			}()
		}

		cancel()
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"), time.Now().Add(time.Second))
	}
}

func (s *Server) handshake(conn *websocket.Conn) (string, bool) {
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		return "", false
	}

	base, err := protocol.DecodeBase(msg)
	if err != nil || base.Type != protocol.TypeHello {
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "expected HELLO"), time.Now().Add(time.Second))
		return "", false
	}
	var hello protocol.HelloMsg
	if err := json.Unmarshal(msg, &hello); err != nil {
		return "", false
	}
	if s.Token != "" && (hello.Auth == nil || subtle.ConstantTimeCompare([]byte(hello.Auth.Token), []byte(s.Token)) != 1) {
		_ = writeJSON(conn, errorMsg(protocol.ErrAuth, "invalid token"))
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "unauthorized"), time.Now().Add(time.Second))
		return "", false
	}
	selected := protocol.Negotiate(hello.ProtocolVersion, hello.SupportedVersions)
	if selected == "" {
		_ = writeJSON(conn, errorMsg(protocol.ErrProtoVersion, "unsupported protocol_version "+hello.ProtocolVersion))
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "bad protocol_version"), time.Now().Add(time.Second))
		return "", false
	}
	if hello.AgentName == "" {
		hello.AgentName = "agent"
	}

	sid := fmt.Sprintf("S%d", s.nextID.Add(1))
	kind, model, _ := strings.Cut(s.prov.Name(), ":")
	welcome := protocol.WelcomeMsg{
		Type:            protocol.TypeWelcome,
		ProtocolVersion: protocol.Version,
		SelectedVersion: selected,
		SessionID:       sid,
		Provider:        kind,
		Model:           model,
	}
	if err := writeJSON(conn, welcome); err != nil {
		return "", false
	}
	if s.log != nil {
		s.log.Printf("session %s: agent %q connected", sid, hello.AgentName)
	}
	return sid, true
}

func (s *Server) decide(ctx context.Context, sid string, m protocol.DecideMsg) []byte {
	start := time.Now()
	var img []byte
	if m.ImagePNG != "" {
		b, err := base64.StdEncoding.DecodeString(m.ImagePNG)
		if err != nil {
			return decisionError(m.RequestID, protocol.ErrProtoBadRequest, "image_png is not base64")
		}
		img = b
	}
	req := provider.Request{
		ID:   m.RequestID,
		Tick: m.Tick,
		World: provider.WorldContext{
			Dimension: m.World.Dimension,
			Biome:     m.World.Biome,
			X:         m.World.Pos[0],
			Y:         m.World.Pos[1],
			Z:         m.World.Pos[2],
			Yaw:       m.World.Yaw,
			Pitch:     m.World.Pitch,
		},
		Image:        img,
		Conversation: m.Conversation,
	}

	cctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	a, err := s.prov.Decide(cctx, req)
	latency := time.Since(start).Milliseconds()
	if err != nil {
		if s.log != nil {
			s.log.Printf("session %s: request %s failed: %v", sid, m.RequestID, err)
		}
		code := protocol.ErrProvider
		if errors.Is(err, context.DeadlineExceeded) {
			code = protocol.ErrNoDecision
		}
		return decisionError(m.RequestID, code, err.Error())
	}

	d := protocol.DecisionMsg{
		Type:            protocol.TypeDecision,
		ProtocolVersion: protocol.Version,
		RequestID:       m.RequestID,
		LatencyMS:       latency,
	}
	if a != nil {
		b, err := json.Marshal(action.Summary(*a))
		if err != nil {
			return decisionError(m.RequestID, protocol.ErrInternal, err.Error())
		}
		d.Actions = b
	}
	b, _ := json.Marshal(d)
	return b
}

func send(ctx context.Context, out chan<- []byte, b []byte) {
	select {
	case out <- b:
	case <-ctx.Done():
	}
}

func requestID(msg []byte) string {
	var v struct {
		RequestID string `json:"request_id"`
	}
	_ = json.Unmarshal(msg, &v)
	return v.RequestID
}

func decisionError(reqID, code, message string) []byte {
	b, _ := json.Marshal(protocol.DecisionMsg{
		Type:            protocol.TypeDecision,
		ProtocolVersion: protocol.Version,
		RequestID:       reqID,
		Error:           &protocol.ErrorInfo{Code: code, Message: message},
	})
	return b
}

func errorMsg(code, message string) []byte {
	b, _ := json.Marshal(protocol.ErrorMsg{
		Type:            protocol.TypeError,
		ProtocolVersion: protocol.Version,
		Code:            code,
		Message:         message,
	})
	return b
}

func writeJSON(conn *websocket.Conn, v any) error {
	b, ok := v.([]byte)
	if !ok {
		var err error
		if b, err = json.Marshal(v); err != nil {
			return err
		}
	}
	_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return conn.WriteMessage(websocket.TextMessage, b)
}
