package websocket

import (
	"crypto/rand"
	"fmt"
	"log"
	"math/big"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	maxMessageSize = 65536
	sendBufferSize = 256

	// wsPingPeriod keeps intermediate proxies/load balancers from idling
	// the TCP connection out; it is independent of the Pusher-level
	// activity timeout the Handler enforces with application frames.
	wsPingPeriod = 50 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Client wraps one accepted WebSocket connection: a buffered outbound
// queue drained by writePump, and a close path that is safe to call
// more than once (handshake rejection and read-loop error both call it).
type Client struct {
	conn     *websocket.Conn
	send     chan []byte
	SocketID string

	closeOnce   sync.Once
	closeCh     chan struct{}
	closeCode   int
	closeReason string
}

func newClient(conn *websocket.Conn) *Client {
	return &Client{
		conn:     conn,
		send:     make(chan []byte, sendBufferSize),
		SocketID: newSocketID(),
		closeCh:  make(chan struct{}),
	}
}

// newSocketID mints a Pusher-shaped "N.M" socket id from random 31-bit
// halves, grounded on the node-id generation elsewhere in this repo
// using crypto/rand rather than math/rand for uniqueness across nodes.
func newSocketID() string {
	a, _ := rand.Int(rand.Reader, big.NewInt(1<<31))
	b, _ := rand.Int(rand.Reader, big.NewInt(1<<31))
	return fmt.Sprintf("%d.%d", a, b)
}

// Send enqueues frame for delivery. A full buffer means the client is
// not draining fast enough; per spec.md's 4200 backpressure code, the
// connection is closed rather than left to grow unbounded.
func (cl *Client) Send(frame []byte) error {
	select {
	case cl.send <- frame:
		return nil
	default:
		cl.Close(CloseBackpressure, "backpressure")
		return fmt.Errorf("websocket: send buffer full for socket %s", cl.SocketID)
	}
}

// Close requests the connection close with a Pusher close code. Safe to
// call multiple times or concurrently with readPump's own cleanup.
func (cl *Client) Close(code int, reason string) {
	cl.closeOnce.Do(func() {
		cl.closeCode = code
		cl.closeReason = reason
		close(cl.closeCh)
	})
}

// readPump blocks reading frames until the connection errors or closes,
// invoking onFrame for each one. onDone runs exactly once on exit,
// covering both a client-initiated close and a server-initiated one.
func (cl *Client) readPump(onFrame func(raw []byte), onDone func()) {
	defer onDone()
	defer cl.conn.Close()

	cl.conn.SetReadLimit(maxMessageSize)

	for {
		_, message, err := cl.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("websocket: read error on socket %s: %v", cl.SocketID, err)
			}
			return
		}
		onFrame(message)
	}
}

// writePump drains the send queue onto the wire, sends a close frame
// once Close is called, and keeps the transport alive with periodic
// WebSocket-level pings.
func (cl *Client) writePump() {
	ticker := time.NewTicker(wsPingPeriod)
	defer func() {
		ticker.Stop()
		cl.conn.Close()
	}()

	for {
		select {
		case frame, ok := <-cl.send:
			if !ok {
				return
			}
			cl.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := cl.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		case <-cl.closeCh:
			cl.conn.SetWriteDeadline(time.Now().Add(writeWait))
			msg := websocket.FormatCloseMessage(closeCodeForWire(cl.closeCode), cl.closeReason)
			cl.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
			return
		case <-ticker.C:
			cl.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := cl.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// closeCodeForWire returns code unchanged: Pusher's own close codes
// already fall in the application range RFC 6455 permits (3000-4999),
// so this identity map is kept as a single seam for the wire code.
func closeCodeForWire(code int) int {
	return code
}
