package live

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/coder/websocket"
)

const (
	writeWait  = 10 * time.Second
	pingPeriod = 30 * time.Second
	maxMsgSize = 512 * 1024
	sendBuffer = 256
)

// Client is the editor's browser connection.
type Client struct {
	room     *Room
	conn     *websocket.Conn
	send     chan []byte
	UserID   string
	ClientID string

	closeOnce sync.Once
	closed    chan struct{}
}

func NewClient(room *Room, conn *websocket.Conn, userID, clientID string) *Client {
	return &Client{
		room:     room,
		conn:     conn,
		send:     make(chan []byte, sendBuffer),
		UserID:   userID,
		ClientID: clientID,
		closed:   make(chan struct{}),
	}
}

// ReadPump feeds inbound messages to the room until the connection drops,
// then closes the room.
func (c *Client) ReadPump(ctx context.Context) {
	defer func() {
		c.room.Close()
		c.conn.Close(websocket.StatusNormalClosure, "")
	}()

	c.conn.SetReadLimit(maxMsgSize)

	for {
		_, data, err := c.conn.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) == websocket.StatusNormalClosure ||
				websocket.CloseStatus(err) == websocket.StatusGoingAway {
				return
			}
			slog.Debug("read error", "error", err, "user", c.UserID)
			return
		}

		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			slog.Warn("invalid message", "error", err, "user", c.UserID)
			c.Send(TypeError, 0, ErrorPayload{Message: "invalid message"})
			continue
		}
		c.room.Dispatch(msg)
	}
}

func (c *Client) WritePump(ctx context.Context) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close(websocket.StatusNormalClosure, "")
	}()

	for {
		select {
		case message := <-c.send:
			writeCtx, cancel := context.WithTimeout(ctx, writeWait)
			err := c.conn.Write(writeCtx, websocket.MessageText, message)
			cancel()
			if err != nil {
				slog.Debug("write error", "error", err, "user", c.UserID)
				return
			}

		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, writeWait)
			err := c.conn.Ping(pingCtx)
			cancel()
			if err != nil {
				return
			}

		case <-c.closed:
			c.drain(ctx)
			return

		case <-ctx.Done():
			return
		}
	}
}

// drain writes whatever was queued before the client was shut.
func (c *Client) drain(ctx context.Context) {
	for {
		select {
		case message := <-c.send:
			writeCtx, cancel := context.WithTimeout(ctx, writeWait)
			err := c.conn.Write(writeCtx, websocket.MessageText, message)
			cancel()
			if err != nil {
				return
			}
		default:
			return
		}
	}
}

// Send queues a message. It never blocks; a full buffer drops the message.
// Safe for concurrent use.
func (c *Client) Send(typ string, seq int64, payload any) {
	msg := Message{Type: typ, Seq: seq}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			slog.Error("marshal payload", "type", typ, "error", err)
			return
		}
		msg.Payload = raw
	}
	data, err := json.Marshal(msg)
	if err != nil {
		slog.Error("marshal message", "error", err)
		return
	}

	select {
	case <-c.closed:
		return
	default:
	}
	select {
	case c.send <- data:
	default:
		slog.Warn("client send buffer full, dropping message", "user", c.UserID, "type", typ)
	}
}

// shut stops WritePump after it flushes queued messages.
func (c *Client) shut() {
	c.closeOnce.Do(func() { close(c.closed) })
}
