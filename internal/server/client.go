package server

import (
	"log/slog"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Asmer72582/upscholar-live/internal/protocol"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer. 64 KB covers the largest
	// SDP offers with room to spare.
	maxMessageSize = 64 * 1024
)

// Client is a wrapper for a single websocket connection (one participant).
type Client struct {
	// Hub is a pointer to the hub that manages this client.
	Hub *Hub

	// Conn is the websocket connection.
	Conn *websocket.Conn

	// RoomID is the ID of the room the client is in, empty until join.
	RoomID string

	// Participant holds the identity and capability flags announced at
	// join time. Flags are mutated by the hub on update-participant.
	Participant protocol.Participant

	// Send is a buffered channel for all outbound messages. The hub
	// writes to this channel and WritePump drains it onto the socket.
	Send chan *protocol.Message

	// dead marks a client whose unregister has been processed. Owned by
	// the hub goroutine; inbound messages from a dead client are dropped
	// because its Send channel is already closed.
	dead bool
}

// inbound pairs a decoded message with the client it arrived on, so the
// hub loop knows the sender without trusting the wire payload.
type inbound struct {
	msg    *protocol.Message
	client *Client
}

// ReadPump pumps messages from the websocket connection to the hub.
//
// The application runs ReadPump in a per-connection goroutine. The
// application ensures that there is at most one reader on a connection
// by executing all reads from this goroutine.
func (c *Client) ReadPump() {
	defer func() {
		c.Hub.Unregister <- c
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		var msg protocol.Message
		if err := c.Conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				slog.Warn("read failed", "remote", c.Conn.RemoteAddr(), "err", err)
			}
			break
		}

		c.Hub.Inbound <- &inbound{msg: &msg, client: c}
	}
}

// WritePump pumps messages from the hub to the websocket connection.
//
// A goroutine running WritePump is started for each connection. The
// application ensures that there is at most one writer to a connection
// by executing all writes from this goroutine.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)

	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel.
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.Conn.WriteJSON(message); err != nil {
				slog.Warn("write failed", "remote", c.Conn.RemoteAddr(), "err", err)
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
