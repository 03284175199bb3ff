package observer

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"net"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"econgrid.ai/internal/observerproto"
	"econgrid.ai/internal/sim/world"
)

// Source is the read-only view of a running world the server streams from.
type Source interface {
	Config() world.WorldConfig
	CurrentTick() uint64
	RenderState() world.RenderState
}

// Hooks lets the caller count connections without this package importing metrics.
type Hooks struct {
	Connected func(active int)
	Rejected  func(reason string)
}

type Options struct {
	MaxClients int
	// ConnectPerSec and ConnectBurst bound new connections across all clients.
	ConnectPerSec float64
	ConnectBurst  int
	// PollInterval is how often the hub checks for a new tick.
	PollInterval time.Duration
	// LoopbackOnly refuses non-local peers.
	LoopbackOnly bool
	Hooks        Hooks
}

func (o *Options) applyDefaults(tickRateHz int) {
	if o.MaxClients <= 0 {
		o.MaxClients = 64
	}
	if o.ConnectPerSec <= 0 {
		o.ConnectPerSec = 2
	}
	if o.ConnectBurst <= 0 {
		o.ConnectBurst = 8
	}
	if o.PollInterval <= 0 {
		hz := tickRateHz
		if hz <= 0 {
			hz = 5
		}
		o.PollInterval = time.Second / time.Duration(2*hz)
	}
}

type client struct {
	out       chan world.RenderState
	every     atomic.Int64
	resources atomic.Bool
}

type Server struct {
	src  Source
	log  *log.Logger
	opts Options

	upgrader websocket.Upgrader
	limiter  *rate.Limiter

	mu      sync.Mutex
	clients map[*client]struct{}
}

func NewServer(src Source, logger *log.Logger, opts Options) *Server {
	opts.applyDefaults(src.Config().TickRateHz)
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Server{
		src:  src,
		log:  logger,
		opts: opts,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
		limiter: rate.NewLimiter(rate.Limit(opts.ConnectPerSec), opts.ConnectBurst),
		clients: map[*client]struct{}{},
	}
}

// Run broadcasts each newly published render state until ctx is done.
func (s *Server) Run(ctx context.Context) {
	t := time.NewTicker(s.opts.PollInterval)
	defer t.Stop()
	last := s.src.RenderState().Tick
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			rs := s.src.RenderState()
			if rs.Tick == last {
				continue
			}
			last = rs.Tick
			s.broadcast(rs)
		}
	}
}

func (s *Server) broadcast(rs world.RenderState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for c := range s.clients {
		every := uint64(c.every.Load())
		if every > 1 && rs.Tick%every != 0 {
			continue
		}
		select {
		case c.out <- rs:
		default:
			// Slow client: it skips this tick.
		}
	}
}

func (s *Server) add(c *client) (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.clients) >= s.opts.MaxClients {
		return len(s.clients), false
	}
	s.clients[c] = struct{}{}
	return len(s.clients), true
}

func (s *Server) remove(c *client) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.clients, c)
	return len(s.clients)
}

func (s *Server) Clients() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}

func (s *Server) reject(rw http.ResponseWriter, reason string, status int) {
	if s.opts.Hooks.Rejected != nil {
		s.opts.Hooks.Rejected(reason)
	}
	http.Error(rw, reason, status)
}

func (s *Server) connected(n int) {
	if s.opts.Hooks.Connected != nil {
		s.opts.Hooks.Connected(n)
	}
}

func (s *Server) BootstrapHandler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if s.opts.LoopbackOnly && !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}
		resp := observerproto.NewBootstrap(s.src.Config(), s.src.CurrentTick())
		rw.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(rw).Encode(resp)
	}
}

func (s *Server) WSHandler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if s.opts.LoopbackOnly && !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}
		if !s.limiter.Allow() {
			rw.Header().Set("Retry-After", "1")
			s.reject(rw, "rate_limit", http.StatusTooManyRequests)
			return
		}

		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			if s.opts.Hooks.Rejected != nil {
				s.opts.Hooks.Rejected("upgrade")
			}
			return
		}
		defer conn.Close()

		// Handshake: must send SUBSCRIBE first.
		_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var sub observerproto.SubscribeMsg
		if err := json.Unmarshal(msg, &sub); err != nil || !validSubscribe(sub) {
			_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "expected SUBSCRIBE"), time.Now().Add(time.Second))
			return
		}

		c := &client{out: make(chan world.RenderState, 4)}
		c.apply(sub)
		n, ok := s.add(c)
		if !ok {
			if s.opts.Hooks.Rejected != nil {
				s.opts.Hooks.Rejected("ws_limit")
			}
			s.log.Printf("observer rejected: %d clients connected", n)
			_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseTryAgainLater, "server busy"), time.Now().Add(time.Second))
			return
		}
		s.connected(n)
		defer func() { s.connected(s.remove(c)) }()

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		// Current state first so a new client does not wait a tick.
		select {
		case c.out <- s.src.RenderState():
		default:
		}

		writeErr := make(chan error, 1)
		go func() {
			for {
				select {
				case <-ctx.Done():
					writeErr <- ctx.Err()
					return
				case rs := <-c.out:
					b, err := json.Marshal(observerproto.NewTick(rs, c.resources.Load()))
					if err != nil {
						writeErr <- err
						return
					}
					_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
					if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
						writeErr <- err
						return
					}
				}
			}
		}()

		// Reader loop: allow SUBSCRIBE updates.
		for {
			_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
			_, msg, err := conn.ReadMessage()
			if err != nil {
				break
			}
			var sub observerproto.SubscribeMsg
			if err := json.Unmarshal(msg, &sub); err != nil || !validSubscribe(sub) {
				continue
			}
			c.apply(sub)
		}

		cancel()
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"), time.Now().Add(time.Second))

		select {
		case <-writeErr:
		case <-time.After(500 * time.Millisecond):
		}
	}
}

func validSubscribe(sub observerproto.SubscribeMsg) bool {
	return sub.Type == observerproto.TypeSubscribe && sub.ProtocolVersion == observerproto.Version
}

func (c *client) apply(sub observerproto.SubscribeMsg) {
	every := sub.EveryTicks
	if every < 1 {
		every = 1
	}
	if every > 1000 {
		every = 1000
	}
	c.every.Store(int64(every))
	c.resources.Store(sub.Resources)
}

func isLoopbackRemote(remoteAddr string) bool {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	host = strings.TrimPrefix(host, "[")
	host = strings.TrimSuffix(host, "]")
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
