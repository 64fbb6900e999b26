package orchestrator

import (
	"github.com/gorilla/websocket"

	"github.com/kira-labs/orchestrator/core/protocol"
	"github.com/kira-labs/orchestrator/session"
)

// conn pairs a websocket with its session record and the channels that
// serialize its traffic: jobs feeds the per-connection dispatch worker,
// out feeds the single writer goroutine that owns the socket.
type conn struct {
	ws   *websocket.Conn
	sess session.Session

	jobs chan []byte          // inbound raw frames, consumed sequentially
	out  chan protocol.Frame  // outbound frames, written by writeLoop only

	done   chan struct{} // closed on connection teardown
	broken chan struct{} // closed when the write side fails
}

func newConn(ws *websocket.Conn, sess session.Session) *conn {
	return &conn{
		ws:     ws,
		sess:   sess,
		jobs:   make(chan []byte, 16),
		out:    make(chan protocol.Frame, 64),
		done:   make(chan struct{}),
		broken: make(chan struct{}),
	}
}

// readLoop pulls raw messages off the socket into the dispatch queue.
// Returns when the peer disconnects or the socket errors.
func (c *conn) readLoop() {
	for {
		_, raw, err := c.ws.ReadMessage()
		if err != nil {
			return
		}
		select {
		case c.jobs <- raw:
		case <-c.done:
			return
		}
	}
}

// writeLoop is the sole writer on the socket, preserving frame order.
func (c *conn) writeLoop() {
	for {
		select {
		case f := <-c.out:
			data, err := f.Encode()
			if err != nil {
				continue
			}
			if err := c.ws.WriteMessage(websocket.TextMessage, data); err != nil {
				close(c.broken)
				return
			}
		case <-c.done:
			return
		}
	}
}

// send queues a frame for the writer. Frames for a dead connection are
// silently dropped.
func (c *conn) send(f protocol.Frame) {
	select {
	case c.out <- f:
	case <-c.broken:
	case <-c.done:
	}
}

// trySend queues a frame without ever blocking: when the outbound buffer
// of a stalled connection is full, the frame is dropped. Broadcast
// notifications use this so a slow client cannot stall the sender.
func (c *conn) trySend(f protocol.Frame) bool {
	select {
	case c.out <- f:
		return true
	default:
		return false
	}
}
