package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"voxelmind.ai/internal/action"
	"voxelmind.ai/internal/protocol"
	"voxelmind.ai/internal/provider"
)

type failing struct{}

func (failing) Name() string { return "failing:x" }
func (failing) Decide(context.Context, provider.Request) (*action.Action, error) {
	return nil, errors.New("boom")
}

func startServer(t *testing.T, p provider.Provider) (*httptest.Server, string) {
	t.Helper()
	srv := httptest.NewServer(NewServer(p, time.Second, nil).Handler())
	return srv, "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestServer_StubRoundTrip(t *testing.T) {
	stub := &provider.Stub{Now: func() time.Time { return time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC) }}
	srv, url := startServer(t, stub)
	defer srv.Close()

	r := provider.NewRemote(url, "test", "", false, nil)
	defer r.Close()
	a, err := r.Decide(context.Background(), provider.NewRequest(7, []byte{1, 2}, provider.WorldContext{X: 3, Y: 4, Z: 5}, ""))
	if err != nil {
		t.Fatalf("decide: %v", err)
	}
	if msg, _ := a.Chat.Text(); msg != "StubAgent tick at 12:00:00 pos=(3,4,5)" {
		t.Fatalf("chat: %q", msg)
	}
	if r.Name() != "remote:stub" {
		t.Fatalf("name: %q", r.Name())
	}
}

func TestServer_ProviderErrorBecomesDecisionError(t *testing.T) {
	srv, url := startServer(t, failing{})
	defer srv.Close()

	r := provider.NewRemote(url, "test", "", false, nil)
	defer r.Close()
	_, err := r.Decide(context.Background(), provider.NewRequest(1, nil, provider.WorldContext{}, ""))
	var perr *protocol.ErrorInfo
	if !errors.As(err, &perr) || perr.Code != protocol.ErrProvider {
		t.Fatalf("expected E_PROVIDER, got %v", err)
	}
}

func dialHello(t *testing.T, url string, version string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	if err := conn.WriteJSON(protocol.HelloMsg{Type: protocol.TypeHello, ProtocolVersion: version, AgentName: "raw"}); err != nil {
		t.Fatalf("hello: %v", err)
	}
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	return conn
}

func TestServer_RejectsUnknownVersion(t *testing.T) {
	srv, url := startServer(t, &provider.Stub{})
	defer srv.Close()

	conn := dialHello(t, url, "0.1")
	defer conn.Close()
	var em protocol.ErrorMsg
	if err := conn.ReadJSON(&em); err != nil {
		t.Fatalf("read: %v", err)
	}
	if em.Type != protocol.TypeError || em.Code != protocol.ErrProtoVersion {
		t.Fatalf("expected version error, got %+v", em)
	}
}

func TestServer_InvalidDecide(t *testing.T) {
	srv, url := startServer(t, &provider.Stub{})
	defer srv.Close()

	conn := dialHello(t, url, protocol.Version)
	defer conn.Close()
	var w protocol.WelcomeMsg
	if err := conn.ReadJSON(&w); err != nil || w.Type != protocol.TypeWelcome || w.SessionID == "" {
		t.Fatalf("welcome: %+v %v", w, err)
	}
	if w.Provider != "stub" || w.SelectedVersion != protocol.Version {
		t.Fatalf("welcome fields: %+v", w)
	}

	bad := `{"type":"DECIDE","protocol_version":"1.0","request_id":"r1","tick":-1,"world":{"pos":[0,0,0],"yaw":0,"pitch":0}}`
	if err := conn.WriteMessage(websocket.TextMessage, []byte(bad)); err != nil {
		t.Fatalf("write: %v", err)
	}
	var d protocol.DecisionMsg
	if err := conn.ReadJSON(&d); err != nil {
		t.Fatalf("read: %v", err)
	}
	if d.RequestID != "r1" || d.Error == nil || d.Error.Code != protocol.ErrProtoBadRequest {
		t.Fatalf("expected bad request, got %+v", d)
	}

	good := protocol.DecideMsg{
		Type: protocol.TypeDecide, ProtocolVersion: protocol.Version, RequestID: "r2", Tick: 4,
		World: protocol.WorldInfo{Pos: [3]float64{1, 2, 3}},
	}
	if err := conn.WriteJSON(good); err != nil {
		t.Fatalf("write: %v", err)
	}
	d = protocol.DecisionMsg{}
	if err := conn.ReadJSON(&d); err != nil {
		t.Fatalf("read: %v", err)
	}
	if d.RequestID != "r2" || d.Error != nil || len(d.Actions) == 0 {
		t.Fatalf("decision: %+v", d)
	}
	if err := protocol.Validate(protocol.TypeDecision, mustMarshal(t, d)); err != nil {
		t.Fatalf("decision does not match schema: %v", err)
	}
	a, err := action.ParseJSON(d.Actions)
	if err != nil {
		t.Fatalf("actions: %v", err)
	}
	if msg, _ := a.Chat.Text(); !strings.HasPrefix(msg, "StubAgent tick at") {
		t.Fatalf("chat: %q", msg)
	}
}

func mustMarshal(t *testing.T, v any) []byte {
	t.Helper()
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return b
}

func TestServer_TokenRequired(t *testing.T) {
	s := NewServer(&provider.Stub{}, time.Second, nil)
	s.Token = "s3cret"
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")

	bad := provider.NewRemote(url, "test", "wrong", false, nil)
	defer bad.Close()
	_, err := bad.Decide(context.Background(), provider.NewRequest(1, nil, provider.WorldContext{}, ""))
	var perr *protocol.ErrorInfo
	if !errors.As(err, &perr) || perr.Code != protocol.ErrAuth {
		t.Fatalf("expected E_AUTH, got %v", err)
	}

	good := provider.NewRemote(url, "test", "s3cret", false, nil)
	defer good.Close()
	if _, err := good.Decide(context.Background(), provider.NewRequest(2, nil, provider.WorldContext{}, "")); err != nil {
		t.Fatalf("decide with token: %v", err)
	}
}
