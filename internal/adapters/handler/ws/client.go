package ws

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/vncsmyrnk/livepoll/internal/metrics"
)

type frame struct {
	data        []byte
	close       bool
	closeReason string
}

// Client is one WebSocket connection. All writes go through the send queue
// and are performed by writePump, so the connection has a single writer.
type Client struct {
	ID        string
	conn      *websocket.Conn
	send      chan frame
	done      chan struct{}
	closeOnce sync.Once
	opts      Options
	log       logrus.FieldLogger
}

func newClient(id string, conn *websocket.Conn, opts Options, log logrus.FieldLogger) *Client {
	return &Client{
		ID:   id,
		conn: conn,
		send: make(chan frame, opts.SendBuffer),
		done: make(chan struct{}),
		opts: opts,
		log:  log.WithField("conn_id", id),
	}
}

// enqueue never blocks. It reports false when the queue is full or the
// client is already closed.
func (c *Client) enqueue(f frame) bool {
	select {
	case <-c.done:
		return false
	default:
	}

	select {
	case c.send <- f:
		return true
	default:
		return false
	}
}

func (c *Client) shutdown() {
	c.closeOnce.Do(func() {
		close(c.done)
		c.conn.Close()
	})
}

func (c *Client) writePump() {
	ticker := time.NewTicker(c.opts.PingInterval)
	defer func() {
		ticker.Stop()
		c.shutdown()
	}()

	for {
		select {
		case f := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(c.opts.WriteWait))
			if f.close {
				msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, f.closeReason)
				if err := c.conn.WriteMessage(websocket.CloseMessage, msg); err != nil {
					c.log.WithError(err).Debug("failed to write close frame")
				}
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, f.data); err != nil {
				c.log.WithError(err).Debug("write failed")
				return
			}
			metrics.MessagesSent.Inc()

		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(c.opts.WriteWait)); err != nil {
				c.log.WithError(err).Debug("ping failed")
				return
			}

		case <-c.done:
			return
		}
	}
}
