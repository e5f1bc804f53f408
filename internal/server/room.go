package server

import (
	"github.com/Asmer72582/upscholar-live/internal/protocol"
)

// Room is a single classroom: N participants ordered by join time, plus
// the live-session chat and whiteboard backlog. The backlog exists only
// while the room does; it is dropped when the last member leaves.
type Room struct {
	// ID is the unique identifier for the room.
	ID string

	// HostID is the participant id of the first joiner.
	HostID string

	// members maps participant id to client. joinOrder preserves the
	// order participants entered, which is the roster order every
	// client renders.
	members   map[string]*Client
	joinOrder []string

	chatLog       []protocol.ChatMessage
	whiteboardLog []protocol.WhiteboardStroke
}

// NewRoom creates an empty room.
func NewRoom(id string) *Room {
	return &Room{
		ID:      id,
		members: make(map[string]*Client),
	}
}

// Add registers a client under its participant id. The first member
// becomes the host. A rejoin with an id already present (a client
// re-running the join handshake after reconnect) replaces the stale
// connection but keeps the original roster position.
func (r *Room) Add(c *Client) {
	id := c.Participant.ID
	if _, ok := r.members[id]; ok {
		r.members[id] = c
		return
	}
	if len(r.members) == 0 {
		r.HostID = id
	}
	r.members[id] = c
	r.joinOrder = append(r.joinOrder, id)
}

// Remove drops a client by participant id. Safe to call for an absent id.
func (r *Room) Remove(id string) {
	if _, ok := r.members[id]; !ok {
		return
	}
	delete(r.members, id)
	for i, mid := range r.joinOrder {
		if mid == id {
			r.joinOrder = append(r.joinOrder[:i], r.joinOrder[i+1:]...)
			break
		}
	}
}

// Get returns the client for a participant id.
func (r *Room) Get(id string) (*Client, bool) {
	c, ok := r.members[id]
	return c, ok
}

// Empty reports whether the room has no members left.
func (r *Room) Empty() bool {
	return len(r.members) == 0
}

// Participants returns the roster in join order.
func (r *Room) Participants() []protocol.Participant {
	out := make([]protocol.Participant, 0, len(r.joinOrder))
	for _, id := range r.joinOrder {
		if c, ok := r.members[id]; ok {
			out = append(out, c.Participant)
		}
	}
	return out
}

// Broadcast sends a message to every member except the given id. Members
// whose send buffer is full are skipped rather than blocking the hub.
func (r *Room) Broadcast(except string, msg *protocol.Message) {
	for id, c := range r.members {
		if id == except {
			continue
		}
		select {
		case c.Send <- msg:
		default:
		}
	}
}

// AppendChat records a chat message in the session backlog.
func (r *Room) AppendChat(m protocol.ChatMessage) {
	r.chatLog = append(r.chatLog, m)
}

// AppendStroke records a whiteboard increment in the session backlog.
func (r *Room) AppendStroke(s protocol.WhiteboardStroke) {
	r.whiteboardLog = append(r.whiteboardLog, s)
}

// ClearWhiteboard empties the whiteboard backlog.
func (r *Room) ClearWhiteboard() {
	r.whiteboardLog = nil
}
