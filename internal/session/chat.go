package session

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Asmer72582/upscholar-live/internal/protocol"
)

// ChatLog is the append-only local chat view. Sending appends an
// optimistic echo immediately; if the relay reflects our own message
// back it is recognized by id and never rendered twice.
type ChatLog struct {
	mu       sync.Mutex
	selfID   string
	selfName string
	entries  []protocol.ChatMessage
	localIDs map[string]struct{}
}

func NewChatLog(selfID, selfName string) *ChatLog {
	return &ChatLog{
		selfID:   selfID,
		selfName: selfName,
		localIDs: make(map[string]struct{}),
	}
}

// Compose creates a message with a fresh id and timestamp, appends it
// locally and returns it for emission on the channel.
func (l *ChatLog) Compose(body string) protocol.ChatMessage {
	msg := protocol.ChatMessage{
		ID:         uuid.NewString(),
		SenderID:   l.selfID,
		SenderName: l.selfName,
		Body:       body,
		SentAt:     time.Now(),
	}

	l.mu.Lock()
	l.entries = append(l.entries, msg)
	l.localIDs[msg.ID] = struct{}{}
	l.mu.Unlock()

	return msg
}

// Apply appends an inbound message in arrival order. Returns false for
// a reflected copy of one of our own messages.
func (l *ChatLog) Apply(msg protocol.ChatMessage) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if msg.SenderID == l.selfID {
		if _, ok := l.localIDs[msg.ID]; ok {
			return false
		}
	}
	l.entries = append(l.entries, msg)
	return true
}

// Bootstrap replaces the log with the server's session backlog, as
// delivered on (re)join.
func (l *ChatLog) Bootstrap(backlog []protocol.ChatMessage) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.entries = make([]protocol.ChatMessage, len(backlog))
	copy(l.entries, backlog)
	for _, msg := range backlog {
		if msg.SenderID == l.selfID {
			l.localIDs[msg.ID] = struct{}{}
		}
	}
}

// Messages returns a snapshot of the log in arrival order.
func (l *ChatLog) Messages() []protocol.ChatMessage {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]protocol.ChatMessage, len(l.entries))
	copy(out, l.entries)
	return out
}
