package observer

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"econgrid.ai/internal/observerproto"
	"econgrid.ai/internal/sim/world"
)

type fakeSource struct {
	mu sync.Mutex
	rs world.RenderState
}

func (f *fakeSource) Config() world.WorldConfig {
	return world.WorldConfig{ID: "w", TickRateHz: 50, Width: 4, Height: 3, Goods: []string{"x", "y"}, Numeraire: "y"}
}

func (f *fakeSource) CurrentTick() uint64 { return f.RenderState().Tick }

func (f *fakeSource) RenderState() world.RenderState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.rs
}

func (f *fakeSource) advance() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rs.Tick++
	f.rs.Agents = []world.RenderAgent{{ID: 1, Pos: world.Vec2{X: int(f.rs.Tick % 4)}}}
	f.rs.Resources = []world.RenderCell{{ID: 1, Good: "x", Stock: "1", Cap: "2"}}
}

func startServer(t *testing.T, opts Options) (*fakeSource, *Server, string) {
	t.Helper()
	src := &fakeSource{}
	s := NewServer(src, nil, opts)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go s.Run(ctx)

	mux := http.NewServeMux()
	mux.Handle("/v1/observe", s.WSHandler())
	mux.Handle("/v1/bootstrap", s.BootstrapHandler())
	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)
	return src, s, ts.URL
}

func dial(t *testing.T, base string, sub observerproto.SubscribeMsg) *websocket.Conn {
	t.Helper()
	u := "ws" + strings.TrimPrefix(base, "http") + "/v1/observe"
	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	b, _ := json.Marshal(sub)
	if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	return conn
}

func readTick(t *testing.T, conn *websocket.Conn) observerproto.TickMsg {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	_, b, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var m observerproto.TickMsg
	if err := json.Unmarshal(b, &m); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return m
}

func subscribe(every int, resources bool) observerproto.SubscribeMsg {
	return observerproto.SubscribeMsg{
		Type:            observerproto.TypeSubscribe,
		ProtocolVersion: observerproto.Version,
		EveryTicks:      every,
		Resources:       resources,
	}
}

func TestObserverStreamsNewTicks(t *testing.T) {
	src, _, url := startServer(t, Options{})
	conn := dial(t, url, subscribe(1, false))

	first := readTick(t, conn)
	if first.Type != observerproto.TypeTick || first.Tick != 0 {
		t.Fatalf("first=%+v", first)
	}
	src.advance()
	next := readTick(t, conn)
	if next.Tick != 1 || len(next.Agents) != 1 {
		t.Fatalf("next=%+v", next)
	}
	if next.Resources != nil {
		t.Fatalf("resources sent without asking: %+v", next.Resources)
	}
}

func TestObserverEveryTicksAndResources(t *testing.T) {
	src, _, url := startServer(t, Options{})
	conn := dial(t, url, subscribe(2, true))
	readTick(t, conn) // initial state

	// Wait for the hub to see each tick before moving on.
	for i := 0; i < 2; i++ {
		src.advance()
		time.Sleep(60 * time.Millisecond)
	}
	m := readTick(t, conn)
	if m.Tick != 2 {
		t.Fatalf("tick=%d want 2 (odd ticks skipped)", m.Tick)
	}
	if len(m.Resources) != 1 {
		t.Fatalf("resources=%v", m.Resources)
	}
}

func TestObserverRejectsBadHandshake(t *testing.T) {
	_, _, url := startServer(t, Options{})
	conn := dial(t, url, observerproto.SubscribeMsg{Type: "HELLO", ProtocolVersion: "0"})
	_ = conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	_, _, err := conn.ReadMessage()
	if !websocket.IsCloseError(err, websocket.ClosePolicyViolation) {
		t.Fatalf("err=%v want policy violation close", err)
	}
}

func TestObserverClientLimit(t *testing.T) {
	var mu sync.Mutex
	var reasons []string
	_, s, url := startServer(t, Options{MaxClients: 1, Hooks: Hooks{Rejected: func(r string) {
		mu.Lock()
		reasons = append(reasons, r)
		mu.Unlock()
	}}})
	first := dial(t, url, subscribe(1, false))
	readTick(t, first)
	if s.Clients() != 1 {
		t.Fatalf("clients=%d", s.Clients())
	}

	second := dial(t, url, subscribe(1, false))
	_ = second.SetReadDeadline(time.Now().Add(3 * time.Second))
	_, _, err := second.ReadMessage()
	if !websocket.IsCloseError(err, websocket.CloseTryAgainLater) {
		t.Fatalf("err=%v want try-again-later close", err)
	}
	mu.Lock()
	defer mu.Unlock()
	if len(reasons) != 1 || reasons[0] != "ws_limit" {
		t.Fatalf("reasons=%v", reasons)
	}
}

func TestBootstrap(t *testing.T) {
	_, _, url := startServer(t, Options{})
	resp, err := http.Get(url + "/v1/bootstrap")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	var b observerproto.BootstrapResponse
	if err := json.NewDecoder(resp.Body).Decode(&b); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if b.WorldID != "w" || b.WorldParams.Width != 4 || b.WorldParams.Numeraire != "y" {
		t.Fatalf("bootstrap=%+v", b)
	}
}
