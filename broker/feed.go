package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/indexoptions/kernel/domain"
)

// wireTick is the JSON frame exchanged over the simulated feed's
// websocket: instrument key, LTP and last-trade-time.
type wireTick struct {
	InstrumentKey string    `json:"instrument_key"`
	LTP           float64   `json:"ltp"`
	LTT           time.Time `json:"ltt"`
}

// SimulatedFeed is a TickFeed backed by a real gorilla/websocket
// connection to a local loopback server, rather than an in-process
// channel — this keeps the broker boundary honest to a real streaming
// socket transport even in paper mode. It has no reconnect logic. The
// generator emits ticks only for whatever the feed's own consumer has
// subscribed to (the open-position instrument keys),
// matching a real venue's subscribe-then-stream semantics rather than
// a fixed demo list.
type SimulatedFeed struct {
	mu     sync.Mutex
	subs   map[domain.InstrumentKey]bool
	out    chan Tick
	conn   *websocket.Conn
	server *httpServer
	stop   chan struct{}
}

// NewSimulatedFeed starts a loopback websocket server that emits random-
// walk ticks for whatever instrument keys are subscribed.
func NewSimulatedFeed() *SimulatedFeed {
	return &SimulatedFeed{
		subs: make(map[domain.InstrumentKey]bool),
		out:  make(chan Tick, 1024),
		stop: make(chan struct{}),
	}
}

func (f *SimulatedFeed) Connect(ctx context.Context) error {
	srv, err := newHTTPServer(f.subscribedKeys)
	if err != nil {
		return fmt.Errorf("broker: simulated feed listen: %w", err)
	}
	f.server = srv
	go srv.serve()

	dialCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	conn, _, err := websocket.DefaultDialer.DialContext(dialCtx, "ws://"+srv.addr+"/ticks", nil)
	if err != nil {
		return fmt.Errorf("broker: simulated feed dial: %w", err)
	}
	f.conn = conn
	go f.pump()
	return nil
}

func (f *SimulatedFeed) subscribedKeys() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	keys := make([]string, 0, len(f.subs))
	for k := range f.subs {
		keys = append(keys, string(k))
	}
	return keys
}

func (f *SimulatedFeed) Subscribe(keys ...domain.InstrumentKey) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, k := range keys {
		f.subs[k] = true
	}
	return nil
}

func (f *SimulatedFeed) Unsubscribe(keys ...domain.InstrumentKey) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, k := range keys {
		delete(f.subs, k)
	}
	return nil
}

func (f *SimulatedFeed) Ticks() <-chan Tick { return f.out }

func (f *SimulatedFeed) Close() error {
	close(f.stop)
	if f.conn != nil {
		_ = f.conn.Close()
	}
	if f.server != nil {
		f.server.close()
	}
	return nil
}

// pump relays generator frames from the websocket connection into the
// typed Ticks channel, dropping ticks for unsubscribed instruments.
func (f *SimulatedFeed) pump() {
	for {
		select {
		case <-f.stop:
			return
		default:
		}
		var wt wireTick
		if err := f.conn.ReadJSON(&wt); err != nil {
			return
		}
		key := domain.InstrumentKey(wt.InstrumentKey)
		f.mu.Lock()
		subscribed := f.subs[key]
		f.mu.Unlock()
		if !subscribed {
			continue
		}
		select {
		case f.out <- Tick{InstrumentKey: key, LTP: wt.LTP, LTT: wt.LTT}:
		default: // feed consumer is slow; drop rather than block the reader
		}
	}
}

// httpServer is the minimal loopback websocket generator backing
// SimulatedFeed. keysFn reports the consumer's current subscription set
// on every tick, so the generator only streams frames for instruments
// someone actually asked for.
type httpServer struct {
	ln       net.Listener
	addr     string
	upgrader websocket.Upgrader
	srv      *http.Server
	keysFn   func() []string
}

func newHTTPServer(keysFn func() []string) (*httpServer, error) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, err
	}
	s := &httpServer{ln: ln, addr: ln.Addr().String(), keysFn: keysFn}
	mux := http.NewServeMux()
	mux.HandleFunc("/ticks", s.handle)
	s.srv = &http.Server{Handler: mux}
	return s, nil
}

func (s *httpServer) serve() { _ = s.srv.Serve(s.ln) }

func (s *httpServer) close() { _ = s.srv.Close() }

func (s *httpServer) handle(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	last := make(map[string]float64)
	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()
	for range ticker.C {
		for _, k := range s.keysFn() {
			price, ok := last[k]
			if !ok {
				price = 100 + rng.Float64()*400
			}
			price += (rng.Float64() - 0.5) * price * 0.01
			if price < 0.05 {
				price = 0.05
			}
			last[k] = price
			wt := wireTick{InstrumentKey: k, LTP: price, LTT: time.Now()}
			b, _ := json.Marshal(wt)
			if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
				return
			}
		}
	}
}
