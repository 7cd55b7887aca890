// Package hub fans event-channel broadcasts out to every connected socket.
package hub

import (
	"context"

	"go.uber.org/zap"

	"github.com/technobid/auction-backend/internal/metrics"
	"github.com/technobid/auction-backend/pkg/types"
)

// OutboxSize is the per-client buffer. A client that lets it fill up is
// dropped and has to reconnect and resync.
const OutboxSize = 64

type HubMsg interface{ isHubMsg() }

type Register struct {
	ClientID string
	Outbox   chan types.ServerMessage
}

type Unregister struct {
	ClientID string
}

type Broadcast struct {
	Message types.ServerMessage
}

// Send delivers one message to a single client, such as an ack.
type Send struct {
	ClientID string
	Message  types.ServerMessage
}

type Count struct {
	Reply chan int
}

type ShutdownHub struct{}

func (Register) isHubMsg()    {}
func (Unregister) isHubMsg()  {}
func (Broadcast) isHubMsg()   {}
func (Send) isHubMsg()        {}
func (Count) isHubMsg()       {}
func (ShutdownHub) isHubMsg() {}

type Hub struct {
	inbox   chan HubMsg
	clients map[string]chan types.ServerMessage
	ctx     context.Context
	cancel  context.CancelFunc
	done    chan struct{}
	log     *zap.Logger
	metrics *metrics.Recorder
}

func NewHub(parent context.Context, log *zap.Logger, rec *metrics.Recorder) *Hub {
	ctx, cancel := context.WithCancel(parent)
	if log == nil {
		log = zap.NewNop()
	}
	h := &Hub{
		inbox:   make(chan HubMsg, 256),
		clients: make(map[string]chan types.ServerMessage),
		ctx:     ctx,
		cancel:  cancel,
		done:    make(chan struct{}),
		log:     log,
		metrics: rec,
	}
	go h.loop()
	return h
}

func (h *Hub) Inbox() chan<- HubMsg { return h.inbox }

// Done is closed once the loop has exited and every outbox is closed.
func (h *Hub) Done() <-chan struct{} { return h.done }

// Post queues msg unless the hub has stopped.
func (h *Hub) Post(msg HubMsg) {
	select {
	case h.inbox <- msg:
	case <-h.ctx.Done():
	}
}

func (h *Hub) Broadcast(msg types.ServerMessage) { h.Post(Broadcast{Message: msg}) }

// Clients returns the number of registered sockets.
func (h *Hub) Clients(ctx context.Context) (int, error) {
	reply := make(chan int, 1)
	select {
	case h.inbox <- Count{Reply: reply}:
	case <-ctx.Done():
		return 0, ctx.Err()
	case <-h.ctx.Done():
		return 0, h.ctx.Err()
	}
	select {
	case n := <-reply:
		return n, nil
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

func (h *Hub) loop() {
	defer close(h.done)
	for {
		select {
		case <-h.ctx.Done():
			h.shutdown()
			return

		case m := <-h.inbox:
			switch msg := m.(type) {
			case Register:
				if old, ok := h.clients[msg.ClientID]; ok {
					close(old)
				}
				h.clients[msg.ClientID] = msg.Outbox

			case Unregister:
				if ch, ok := h.clients[msg.ClientID]; ok {
					close(ch)
					delete(h.clients, msg.ClientID)
				}

			case Broadcast:
				for id := range h.clients {
					h.deliver(id, msg.Message)
				}

			case Send:
				if _, ok := h.clients[msg.ClientID]; ok {
					h.deliver(msg.ClientID, msg.Message)
				}

			case Count:
				msg.Reply <- len(h.clients)

			case ShutdownHub:
				h.shutdown()
				return
			}
		}
	}
}

func (h *Hub) deliver(id string, msg types.ServerMessage) {
	ch := h.clients[id]
	select {
	case ch <- msg:
	default:
		// Client is slow/full - drop them.
		h.log.Warn("dropping slow client", zap.String("client_id", id), zap.String("event", msg.Type))
		h.metrics.RecordDropped("events")
		close(ch)
		delete(h.clients, id)
	}
}

func (h *Hub) shutdown() {
	for id, ch := range h.clients {
		close(ch)
		delete(h.clients, id)
	}
	h.cancel()
}
