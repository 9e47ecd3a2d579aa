// Package eventbridge implements the loopback publication side of the
// "Observable events (emitted to the hosting process)" contract
// (spec.md §6): on_step, on_need_confirm, on_complete, and on_error
// frames pushed to one hosting-process subscriber over a local
// WebSocket connection. Grounded on
// internal/gateway/ws_control_plane.go's upgrader/send-channel/
// write-loop shape, simplified from a bidirectional RPC control plane
// down to a one-way event fan-out (the hosting process only listens).
package eventbridge

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	maxPayloadBytes = 1 << 20
	writeWait       = 10 * time.Second
	pingInterval    = 15 * time.Second
)

// EventType enumerates the four observable event kinds spec.md §6
// names.
type EventType string

const (
	EventStep        EventType = "on_step"
	EventNeedConfirm EventType = "on_need_confirm"
	EventComplete    EventType = "on_complete"
	EventError       EventType = "on_error"
)

// Event is the JSON frame pushed to the subscriber.
type Event struct {
	Type    EventType `json:"type"`
	AgentID string    `json:"agent_id"`
	Seq     int64     `json:"seq"`
	Payload any       `json:"payload"`
}

// Bridge is a single-subscriber loopback event publisher. Only one
// hosting process is expected to connect at a time; events published
// with no subscriber attached are dropped, matching spec.md §6's
// observable-events contract (there is no durable event log).
type Bridge struct {
	mu       sync.Mutex
	upgrader websocket.Upgrader
	sub      *subscriber
	seq      int64
	logger   *slog.Logger
}

type subscriber struct {
	conn *websocket.Conn
	send chan []byte
	done chan struct{}
}

// New creates a Bridge. logger defaults to slog.Default() when nil.
func New(logger *slog.Logger) *Bridge {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bridge{
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
}

// ServeHTTP upgrades the connection and replaces any previous
// subscriber with this one.
func (b *Bridge) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := b.upgrader.Upgrade(w, r, nil)
	if err != nil {
		b.logger.Error("eventbridge upgrade failed", "error", err)
		return
	}

	sub := &subscriber{
		conn: conn,
		send: make(chan []byte, 256),
		done: make(chan struct{}),
	}

	b.mu.Lock()
	prev := b.sub
	b.sub = sub
	b.mu.Unlock()
	if prev != nil {
		prev.close()
	}

	go sub.writeLoop()
	go sub.readLoop(b)
}

func (s *subscriber) close() {
	select {
	case <-s.done:
	default:
		close(s.done)
		_ = s.conn.Close()
	}
}

func (s *subscriber) readLoop(b *Bridge) {
	defer s.close()
	for {
		if _, _, err := s.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (s *subscriber) writeLoop() {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	defer s.close()
	for {
		select {
		case <-s.done:
			return
		case msg, ok := <-s.send:
			if !ok {
				return
			}
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// publish encodes and enqueues an event for the current subscriber, if
// any. Non-blocking: a full or absent subscriber channel drops the
// event rather than stalling the caller.
func (b *Bridge) publish(evt Event) {
	data, err := json.Marshal(evt)
	if err != nil {
		b.logger.Error("eventbridge marshal failed", "error", err)
		return
	}
	if len(data) > maxPayloadBytes {
		b.logger.Error("eventbridge payload too large", "bytes", len(data))
		return
	}

	b.mu.Lock()
	sub := b.sub
	b.mu.Unlock()
	if sub == nil {
		return
	}

	select {
	case sub.send <- data:
	default:
		b.logger.Warn("eventbridge subscriber buffer full, dropping event", "type", evt.Type)
	}
}

func (b *Bridge) nextSeq() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.seq++
	return b.seq
}

// PublishStep emits on_step(agent_id, step) for every append /
// streaming update.
func (b *Bridge) PublishStep(agentID string, step any) {
	b.publish(Event{Type: EventStep, AgentID: agentID, Seq: b.nextSeq(), Payload: step})
}

// PublishNeedConfirm emits on_need_confirm(confirmation) when a
// pending confirmation is posted.
func (b *Bridge) PublishNeedConfirm(agentID string, confirmation any) {
	b.publish(Event{Type: EventNeedConfirm, AgentID: agentID, Seq: b.nextSeq(), Payload: confirmation})
}

// PublishComplete emits on_complete(agent_id, final_text) on normal
// termination.
func (b *Bridge) PublishComplete(agentID, finalText string) {
	b.publish(Event{Type: EventComplete, AgentID: agentID, Seq: b.nextSeq(), Payload: map[string]string{"final_text": finalText}})
}

// PublishError emits on_error(agent_id, error) on abnormal termination
// other than user abort.
func (b *Bridge) PublishError(agentID string, err error) {
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	b.publish(Event{Type: EventError, AgentID: agentID, Seq: b.nextSeq(), Payload: map[string]string{"error": msg}})
}
