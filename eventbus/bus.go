// Package eventbus implements an observer-pattern fan-out: bounded
// per-subscriber channels, drop-oldest overflow with a data_quality
// alert, and a 30s heartbeat. Delivery is best-effort and
// unordered across subscribers; per-subscriber ordering within one kind
// is preserved by construction (a single goroutine drains a
// subscriber's queue in submission order).
package eventbus

import (
	"sync"
	"time"

	"github.com/indexoptions/kernel/logger"
)

var log = logger.For("eventbus")

// Kind enumerates the message kinds published on the bus.
type Kind string

const (
	KindConnection          Kind = "connection"
	KindPositionUpdate      Kind = "position_update"
	KindTradeClosed         Kind = "trade_closed"
	KindPnLUpdate           Kind = "pnl_update"
	KindCircuitBreakerEvent Kind = "circuit_breaker_event"
	KindAlert               Kind = "alert"
	KindMarketCondition     Kind = "market_condition"
	KindDataQuality         Kind = "data_quality"
	KindSystemStatus        Kind = "system_status"
	KindHeartbeat           Kind = "heartbeat"
)

// AlertLevel is the severity carried on an alert message.
type AlertLevel string

const (
	LevelInfo    AlertLevel = "info"
	LevelWarning AlertLevel = "warning"
	LevelError   AlertLevel = "error"
)

// Message is one published event.
type Message struct {
	Kind      Kind        `json:"kind"`
	Level     AlertLevel  `json:"level,omitempty"`
	Text      string      `json:"text,omitempty"`
	Detail    any         `json:"detail,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// highWaterMark bounds a subscriber's pending queue; once reached, the
// two oldest pending messages are dropped so that a data_quality alert
// and the new message both fit.
const highWaterMark = 256

// subscriber owns one bounded, FIFO-drained outbound queue.
type subscriber struct {
	mu      sync.Mutex
	pending []Message
	notify  chan struct{}
	out     chan Message
	closed  bool
}

// Bus fans out published messages to every live subscriber.
type Bus struct {
	mu   sync.Mutex
	subs map[int]*subscriber
	next int

	stop chan struct{}
}

// New constructs an empty bus and starts its heartbeat goroutine.
func New() *Bus {
	b := &Bus{subs: make(map[int]*subscriber), stop: make(chan struct{})}
	go b.heartbeat()
	return b
}

// Subscribe registers a new observer and returns a channel of messages
// plus an unsubscribe function.
func (b *Bus) Subscribe() (<-chan Message, func()) {
	s := &subscriber{notify: make(chan struct{}, 1), out: make(chan Message, 64)}
	b.mu.Lock()
	id := b.next
	b.next++
	b.subs[id] = s
	b.mu.Unlock()

	go s.drain()

	unsub := func() {
		b.mu.Lock()
		delete(b.subs, id)
		b.mu.Unlock()
		s.close()
	}
	return s.out, unsub
}

// Publish fans a message out to every subscriber's bounded queue,
// dropping the oldest pending entries (and queuing a data_quality alert
// ahead of the new message) for any subscriber already at its
// high-water mark.
func (b *Bus) Publish(m Message) {
	if m.Timestamp.IsZero() {
		m.Timestamp = time.Now()
	}
	b.mu.Lock()
	subs := make([]*subscriber, 0, len(b.subs))
	for _, s := range b.subs {
		subs = append(subs, s)
	}
	b.mu.Unlock()

	for _, s := range subs {
		s.enqueue(m)
	}
}

func (s *subscriber) enqueue(m Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	if len(s.pending) >= highWaterMark {
		s.pending = s.pending[2:]
		s.pending = append(s.pending, Message{
			Kind: KindDataQuality, Level: LevelWarning,
			Text: "subscriber overflow, oldest messages dropped", Timestamp: time.Now(),
		})
		log.Warnf("subscriber queue overflow, dropping oldest messages")
	}
	s.pending = append(s.pending, m)
	select {
	case s.notify <- struct{}{}:
	default:
	}
}

// drain is the single goroutine responsible for delivering one
// subscriber's queue in FIFO order, which is what preserves per-kind
// ordering for that subscriber.
func (s *subscriber) drain() {
	for range s.notify {
		for {
			s.mu.Lock()
			if len(s.pending) == 0 {
				s.mu.Unlock()
				break
			}
			m := s.pending[0]
			s.pending = s.pending[1:]
			s.mu.Unlock()

			select {
			case s.out <- m:
			default: // consumer not reading; message is dropped, not blocked on
			}
		}
	}
}

func (s *subscriber) close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	close(s.notify)
}

func (b *Bus) heartbeat() {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-b.stop:
			return
		case <-ticker.C:
			b.Publish(Message{Kind: KindHeartbeat})
		}
	}
}

// Close stops the heartbeat goroutine. Existing subscribers are not
// force-closed; callers unsubscribe individually.
func (b *Bus) Close() { close(b.stop) }

// Alert implements broker.AlertSink so the token manager can publish
// through the same bus without broker importing eventbus.
func (b *Bus) Alert(level, message string) {
	b.Publish(Message{Kind: KindAlert, Level: AlertLevel(level), Text: message})
}
