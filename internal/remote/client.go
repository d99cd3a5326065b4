package remote

import (
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/reminderdev/reminder/internal/player"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
)

// Client is one websocket connection.
type Client struct {
	server    *Server
	conn      *websocket.Conn
	sendCh    chan Message
	sessionID string

	mu         sync.Mutex
	name       string
	identified bool

	closeChan chan struct{}
	closeOnce sync.Once
}

// NewClient wraps an upgraded connection.
func NewClient(server *Server, conn *websocket.Conn) *Client {
	return &Client{
		server:    server,
		conn:      conn,
		sendCh:    make(chan Message, 256),
		sessionID: uuid.New().String(),
		closeChan: make(chan struct{}),
	}
}

func (c *Client) identify(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.name = name
	c.identified = true
}

func (c *Client) isIdentified() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.identified
}

func (c *Client) readPump() {
	defer c.close()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		msgType, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				c.server.logger.Warn("websocket read error", "session", c.sessionID, "err", err)
			}
			return
		}
		c.server.handleMessage(c, msgType, message)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.close()
	}()

	for {
		select {
		case message := <-c.sendCh:
			data, err := json.Marshal(message)
			if err != nil {
				c.server.logger.Error("failed to marshal message", "op", message.Op, "err", err)
				continue
			}

			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				c.server.logger.Debug("failed to write message", "session", c.sessionID, "err", err)
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.closeChan:
			_ = c.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(writeWait))
			return
		}
	}
}

// send queues a message. A client that cannot keep up loses messages
// rather than stalling the player.
func (c *Client) send(msg Message) {
	select {
	case <-c.closeChan:
		return
	default:
	}

	select {
	case c.sendCh <- msg:
	default:
		c.server.logger.Warn("client send buffer full, dropping message", "session", c.sessionID, "op", msg.Op)
	}
}

func (c *Client) sendError(op uint8, err error) {
	c.send(Message{Op: OpError, Data: errorData(op, err)})
}

// errorData maps player errors to their codes.
func errorData(op uint8, err error) ErrorData {
	data := ErrorData{Op: op, Message: err.Error()}
	var perr *player.Error
	switch {
	case errors.As(err, &perr):
		data.Code = string(perr.Code)
	case errors.Is(err, player.ErrTrackUnavailable):
		data.Code = "TRACK_UNAVAILABLE"
	case errors.Is(err, player.ErrNoActiveTrack):
		data.Code = "NO_ACTIVE_TRACK"
	case errors.Is(err, player.ErrNoSource):
		data.Code = "NO_SOURCE"
	}
	return data
}

func (c *Client) close() {
	c.closeOnce.Do(func() {
		close(c.closeChan)
		c.server.unregisterClient(c)
		// Give the write pump a moment to send the close frame.
		time.AfterFunc(100*time.Millisecond, func() { _ = c.conn.Close() })
		c.server.logger.Info("client disconnected", "session", c.sessionID)
	})
}
