package session

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Asmer72582/upscholar-live/internal/dns"
	"github.com/Asmer72582/upscholar-live/internal/protocol"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024

	maxReconnectAttempts = 5
	initialBackoff       = 500 * time.Millisecond
	maxBackoff           = 10 * time.Second
)

// ChannelEvent is one occurrence on the signaling channel: an inbound
// message, a successful reconnect (the session must re-run the join
// handshake as a fresh bootstrap), or a terminal transport error.
type ChannelEvent struct {
	Msg         *protocol.Message
	Reconnected bool
	Err         error
}

// Channel manages the WebSocket connection to the signaling relay. It
// delivers events in server order, survives transport drops with bounded
// backed-off retries, and honors a server-initiated close with at most
// one immediate retry.
type Channel struct {
	serverURL string
	outgoing  chan *protocol.Message
	events    chan ChannelEvent
	done      chan struct{}
	closeOnce sync.Once

	mu   sync.Mutex
	conn *websocket.Conn
}

// NewChannel creates a channel for the given relay URL. Connect must be
// called before Send.
func NewChannel(serverURL string) *Channel {
	return &Channel{
		serverURL: serverURL,
		outgoing:  make(chan *protocol.Message, 32),
		events:    make(chan ChannelEvent, 64),
		done:      make(chan struct{}),
	}
}

// Connect establishes the WebSocket connection and starts the pump
// loop. The initial connect does not retry; callers surface the failure
// to the user instead.
func (c *Channel) Connect(ctx context.Context) error {
	conn, err := c.dial(ctx)
	if err != nil {
		return WrapError("connect to relay", ErrChannelUnavailable, err.Error())
	}
	c.setConn(conn)

	go c.run()
	return nil
}

func (c *Channel) dial(ctx context.Context) (*websocket.Conn, error) {
	u, err := url.Parse(c.serverURL)
	if err != nil {
		return nil, fmt.Errorf("invalid relay URL: %w", err)
	}

	// Custom dialer that uses our robust DNS lookup.
	dialer := *websocket.DefaultDialer
	dialer.NetDialContext = func(ctx context.Context, network, addr string) (net.Conn, error) {
		host, port, err := net.SplitHostPort(addr)
		if err != nil {
			return nil, err
		}
		resolvedIP, err := dns.Lookup(host)
		if err != nil {
			return nil, fmt.Errorf("dns lookup failed: %w", err)
		}
		d := new(net.Dialer)
		return d.DialContext(ctx, network, net.JoinHostPort(resolvedIP, port))
	}

	conn, _, err := dialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect: %w", err)
	}

	conn.SetReadLimit(maxMessageSize)
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	return conn, nil
}

func (c *Channel) setConn(conn *websocket.Conn) {
	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()
}

func (c *Channel) currentConn() *websocket.Conn {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn
}

// run owns the connection lifecycle: it reads until the transport drops,
// then applies the retry policy and either resumes with a Reconnected
// event or reports a terminal error.
func (c *Channel) run() {
	defer close(c.events)

	for {
		conn := c.currentConn()
		stopWrite := make(chan struct{})
		go c.writePump(conn, stopWrite)

		readErr := c.readLoop(conn)
		close(stopWrite)
		conn.Close()

		select {
		case <-c.done:
			return
		default:
		}

		serverClosed := websocket.IsCloseError(readErr,
			websocket.CloseNormalClosure,
			websocket.CloseGoingAway,
			websocket.ClosePolicyViolation,
		)

		next, err := c.reconnect(serverClosed)
		if err != nil {
			c.events <- ChannelEvent{Err: err}
			return
		}
		c.setConn(next)
		c.events <- ChannelEvent{Reconnected: true}
	}
}

// reconnect redials the relay. An explicit server close gets exactly one
// immediate attempt; a transport drop gets bounded attempts with
// doubling backoff.
func (c *Channel) reconnect(serverClosed bool) (*websocket.Conn, error) {
	attempts := maxReconnectAttempts
	backoff := initialBackoff
	if serverClosed {
		attempts = 1
		backoff = 0
	}

	var lastErr error
	for i := 0; i < attempts; i++ {
		if backoff > 0 {
			select {
			case <-time.After(backoff):
			case <-c.done:
				return nil, ErrChannelClosed
			}
			backoff *= 2
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
		}

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		conn, err := c.dial(ctx)
		cancel()
		if err == nil {
			return conn, nil
		}
		lastErr = err
	}

	details := "retries exhausted"
	if lastErr != nil {
		details = lastErr.Error()
	}
	return nil, WrapError("reconnect", ErrChannelUnavailable, details)
}

// readLoop reads messages until the connection errors out.
func (c *Channel) readLoop(conn *websocket.Conn) error {
	conn.SetReadDeadline(time.Now().Add(pongWait))

	for {
		var msg protocol.Message
		if err := conn.ReadJSON(&msg); err != nil {
			return err
		}

		select {
		case c.events <- ChannelEvent{Msg: &msg}:
		case <-c.done:
			return ErrChannelClosed
		}
	}
}

// writePump writes queued messages to the connection and sends periodic
// pings. One instance runs per live connection.
func (c *Channel) writePump(conn *websocket.Conn, stop <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case message := <-c.outgoing:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(message); err != nil {
				conn.Close()
				return
			}

		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				conn.Close()
				return
			}

		case <-stop:
			return

		case <-c.done:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		}
	}
}

// Send queues a message for delivery. Messages are dropped once the
// channel is closed.
func (c *Channel) Send(msg *protocol.Message) {
	select {
	case c.outgoing <- msg:
	case <-c.done:
	}
}

// Events returns the ordered inbound event stream.
func (c *Channel) Events() <-chan ChannelEvent {
	return c.events
}

// Close shuts the channel down. Safe to call more than once.
func (c *Channel) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
		if conn := c.currentConn(); conn != nil {
			conn.Close()
		}
	})
}
