package websocket

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	// pongWait is how long to wait for a pong before declaring the client dead.
	pongWait = 60 * time.Second
	// readLimit bounds inbound frames; clients only send control traffic.
	readLimit = 512
)

// client is one connected WebSocket consumer. Frames are queued on send and
// written by a dedicated writePump so a slow connection never blocks the hub.
type client struct {
	conn *websocket.Conn
	send chan []byte

	closeOnce sync.Once
}

// close shuts the send channel exactly once; writePump exits when the channel
// drains and closes the underlying connection.
func (c *client) close() {
	c.closeOnce.Do(func() { close(c.send) })
}

// hub fans broadcast frames out to every registered client. All client-set
// mutation happens on the run goroutine, so no lock guards the map.
type hub struct {
	register   chan *client
	unregister chan *client
	broadcast  chan []byte

	clients map[*client]struct{}

	// onDrop is called when a client's send queue is full and a frame is
	// discarded for it. onCount reports the connected-client count after
	// every membership change. Either may be nil.
	onDrop  func()
	onCount func(int)
}

func newHub() *hub {
	return &hub{
		register:   make(chan *client),
		unregister: make(chan *client),
		broadcast:  make(chan []byte, 64),
		clients:    make(map[*client]struct{}),
	}
}

// run owns the client set until shutdown closes. On exit every remaining
// client is closed so their pumps unwind.
func (h *hub) run(shutdown <-chan struct{}) {
	for {
		select {
		case <-shutdown:
			for c := range h.clients {
				c.close()
			}
			h.clients = make(map[*client]struct{})
			h.reportCount()
			return

		case c := <-h.register:
			h.clients[c] = struct{}{}
			h.reportCount()

		case c := <-h.unregister:
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				c.close()
				h.reportCount()
			}

		case frame := <-h.broadcast:
			for c := range h.clients {
				select {
				case c.send <- frame:
				default:
					// Queue full: the consumer is not keeping up. Drop
					// this frame for this client rather than stall the
					// remaining clients.
					if h.onDrop != nil {
						h.onDrop()
					}
				}
			}
		}
	}
}

func (h *hub) reportCount() {
	if h.onCount != nil {
		h.onCount(len(h.clients))
	}
}

// offer enqueues a frame for broadcast without ever blocking the caller.
// Returns false when the hub's own queue is saturated.
func (h *hub) offer(frame []byte) bool {
	select {
	case h.broadcast <- frame:
		return true
	default:
		return false
	}
}
