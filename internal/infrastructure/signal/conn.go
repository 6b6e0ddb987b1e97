package signal

import (
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var errControlSaturated = errors.New("control queue saturated")
var errConnClosed = errors.New("connection closed")

// clientConn implements ports.ClientConn on top of a gorilla websocket. A
// single write pump goroutine owns all socket writes; senders only enqueue.
// Control messages and binary frames travel on separate bounded queues so a
// backlog of video never starves signaling, and vice versa.
type clientConn struct {
	ws      *websocket.Conn
	control chan []byte
	frames  chan []byte
	done    chan struct{}
	once    sync.Once

	writeTimeout time.Duration
	pingInterval time.Duration
	logger       *zap.SugaredLogger
}

func newClientConn(ws *websocket.Conn, controlQueue, frameQueue int, writeTimeout, pingInterval time.Duration, logger *zap.SugaredLogger) *clientConn {
	return &clientConn{
		ws:           ws,
		control:      make(chan []byte, controlQueue),
		frames:       make(chan []byte, frameQueue),
		done:         make(chan struct{}),
		writeTimeout: writeTimeout,
		pingInterval: pingInterval,
		logger:       logger,
	}
}

// SendJSON enqueues a control message. A full control queue means the client
// has stopped reading; the connection is closed because control traffic
// cannot be dropped silently.
func (c *clientConn) SendJSON(v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	select {
	case <-c.done:
		return errConnClosed
	default:
	}
	select {
	case c.control <- data:
		return nil
	default:
		c.Close()
		return errControlSaturated
	}
}

// SendBinary enqueues an opaque frame without blocking. Returns false when
// the frame queue is saturated and the frame was dropped.
func (c *clientConn) SendBinary(data []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.frames <- data:
		return true
	default:
		return false
	}
}

func (c *clientConn) Close() {
	c.once.Do(func() { close(c.done) })
}

// writePump serializes all writes to the socket and emits keepalive pings.
// It exits when Close is called or a write fails.
func (c *clientConn) writePump() {
	ticker := time.NewTicker(c.pingInterval)
	defer func() {
		ticker.Stop()
		c.ws.Close()
	}()

	for {
		select {
		case <-c.done:
			c.ws.SetWriteDeadline(time.Now().Add(c.writeTimeout))
			c.ws.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return

		case data := <-c.control:
			c.ws.SetWriteDeadline(time.Now().Add(c.writeTimeout))
			if err := c.ws.WriteMessage(websocket.TextMessage, data); err != nil {
				c.Close()
				return
			}

		case frame := <-c.frames:
			c.ws.SetWriteDeadline(time.Now().Add(c.writeTimeout))
			if err := c.ws.WriteMessage(websocket.BinaryMessage, frame); err != nil {
				c.Close()
				return
			}

		case <-ticker.C:
			c.ws.SetWriteDeadline(time.Now().Add(c.writeTimeout))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.Close()
				return
			}
		}
	}
}
