// Broadcaster fans an in-flight scan's audit records out to websocket
// subscribers (spec §4.10). It is set once at composition time via
// Engine.WithBroadcaster and invoked at scan start, on each audit
// event, and at scan completion. Each subscriber gets its own buffered
// channel; while a slow subscriber's buffer is full, records for it are
// dropped rather than allowed to block Publish (it stays subscribed
// until its connection's write fails or closes).
package httpapi

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/sawpanic/momentumcore/internal/audit"
)

// Broadcaster publishes audit.Record values to every currently
// connected websocket subscriber. A subscriber whose send buffer is
// full misses that record rather than blocking Publish (spec §4.10:
// "push-only and best-effort").
type Broadcaster struct {
	upgrader websocket.Upgrader
	logger   zerolog.Logger

	mu          sync.Mutex
	subscribers map[chan audit.Record]struct{}
}

// NewBroadcaster constructs an empty Broadcaster. Any origin is
// accepted by the upgrader since this surface is explicitly out of
// scope for deep design (spec §6.2 Non-goal); production deployments
// would front this with their own auth/origin policy.
func NewBroadcaster(logger zerolog.Logger) *Broadcaster {
	return &Broadcaster{
		upgrader:    websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }},
		logger:      logger,
		subscribers: make(map[chan audit.Record]struct{}),
	}
}

// Publish implements engine.Broadcaster.
func (b *Broadcaster) Publish(r audit.Record) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for ch := range b.subscribers {
		select {
		case ch <- r:
		default:
			b.logger.Warn().Msg("scan-stream subscriber too slow, dropping record")
		}
	}
}

func (b *Broadcaster) subscribe() chan audit.Record {
	ch := make(chan audit.Record, 32)
	b.mu.Lock()
	b.subscribers[ch] = struct{}{}
	b.mu.Unlock()
	return ch
}

func (b *Broadcaster) unsubscribe(ch chan audit.Record) {
	b.mu.Lock()
	delete(b.subscribers, ch)
	b.mu.Unlock()
	close(ch)
}

// handleScanStream upgrades GET /scan/stream to a websocket and writes
// each subsequent audit.Record as JSON until the connection closes.
func (s *Server) handleScanStream(w http.ResponseWriter, r *http.Request) {
	conn, err := s.broadcaster.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn().Err(err).Msg("scan-stream upgrade failed")
		return
	}
	defer conn.Close()

	ch := s.broadcaster.subscribe()
	defer s.broadcaster.unsubscribe(ch)

	for record := range ch {
		_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
		if err := conn.WriteJSON(record); err != nil {
			return
		}
	}
}
