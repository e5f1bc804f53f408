package session

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Asmer72582/upscholar-live/internal/protocol"
)

var testUpgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// flakyRelay upgrades websocket requests and hands each connection to
// the per-attempt script.
func flakyRelay(t *testing.T, script func(attempt int64, conn *websocket.Conn)) string {
	t.Helper()

	var attempts atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		script(attempts.Add(1), conn)
	}))
	t.Cleanup(srv.Close)

	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func nextEvent(t *testing.T, c *Channel, timeout time.Duration) ChannelEvent {
	t.Helper()
	select {
	case ev, ok := <-c.Events():
		require.True(t, ok, "event stream closed unexpectedly")
		return ev
	case <-time.After(timeout):
		t.Fatal("timed out waiting for channel event")
		return ChannelEvent{}
	}
}

func TestInitialConnectDoesNotRetry(t *testing.T) {
	c := NewChannel("ws://127.0.0.1:1/ws")

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	start := time.Now()
	err := c.Connect(ctx)

	require.ErrorIs(t, err, ErrChannelUnavailable)
	assert.Less(t, time.Since(start), time.Second, "initial connect must fail fast, no retries")
}

func TestServerCloseGetsOneImmediateRetry(t *testing.T) {
	url := flakyRelay(t, func(attempt int64, conn *websocket.Conn) {
		if attempt == 1 {
			conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "rebalancing"))
			conn.Close()
			return
		}
		msg, _ := protocol.NewMessage(protocol.MessageTypeMeetingEnded, nil)
		conn.WriteJSON(msg)
	})

	c := NewChannel(url)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, c.Connect(ctx))
	t.Cleanup(c.Close)

	start := time.Now()
	ev := nextEvent(t, c, 3*time.Second)
	require.True(t, ev.Reconnected, "server close must yield a Reconnected event, got %+v", ev)
	assert.Less(t, time.Since(start), time.Second, "the retry after a server close is immediate")

	ev = nextEvent(t, c, 3*time.Second)
	require.NotNil(t, ev.Msg)
	assert.Equal(t, protocol.MessageTypeMeetingEnded, ev.Msg.Type)
}

func TestTransportDropReconnectsWithBackoff(t *testing.T) {
	url := flakyRelay(t, func(attempt int64, conn *websocket.Conn) {
		if attempt == 1 {
			// Abrupt drop, no close frame.
			conn.Close()
			return
		}
		msg, _ := protocol.NewMessage(protocol.MessageTypeUserLeft, protocol.UserLeftPayload{ParticipantID: "bbb"})
		conn.WriteJSON(msg)
	})

	c := NewChannel(url)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, c.Connect(ctx))
	t.Cleanup(c.Close)

	start := time.Now()
	ev := nextEvent(t, c, 5*time.Second)
	require.True(t, ev.Reconnected)
	assert.GreaterOrEqual(t, time.Since(start), 400*time.Millisecond,
		"a transport drop backs off before redialing")

	ev = nextEvent(t, c, 3*time.Second)
	require.NotNil(t, ev.Msg)
	assert.Equal(t, protocol.MessageTypeUserLeft, ev.Msg.Type)
}

func TestMessagesDeliveredInServerOrder(t *testing.T) {
	url := flakyRelay(t, func(attempt int64, conn *websocket.Conn) {
		for i := 0; i < 5; i++ {
			msg, _ := protocol.NewMessage(protocol.MessageTypeChat, protocol.ChatMessage{ID: string(rune('a' + i))})
			conn.WriteJSON(msg)
		}
	})

	c := NewChannel(url)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, c.Connect(ctx))
	t.Cleanup(c.Close)

	for i := 0; i < 5; i++ {
		ev := nextEvent(t, c, 3*time.Second)
		require.NotNil(t, ev.Msg)
		var chat protocol.ChatMessage
		require.NoError(t, ev.Msg.DecodePayload(&chat))
		assert.Equal(t, string(rune('a'+i)), chat.ID)
	}
}

func TestSendAfterCloseDropsSilently(t *testing.T) {
	url := flakyRelay(t, func(attempt int64, conn *websocket.Conn) {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})

	c := NewChannel(url)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, c.Connect(ctx))

	c.Close()
	c.Close()

	msg, _ := protocol.NewMessage(protocol.MessageTypeChat, protocol.ChatMessage{ID: "late"})
	c.Send(msg)
}
