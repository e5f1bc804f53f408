package server

import (
	"log/slog"

	"github.com/Asmer72582/upscholar-live/internal/protocol"
)

// Hub is the central brain of the relay. It manages all active rooms and
// clients. All room and roster state is owned by the single goroutine
// running Run, so no locking is needed anywhere in this package.
type Hub struct {
	// Rooms maps room IDs to Room instances.
	Rooms map[string]*Room

	// Register is a channel for registering new clients.
	Register chan *Client

	// Unregister is a channel for unregistering clients.
	Unregister chan *Client

	// Inbound carries every decoded message from every connection.
	Inbound chan *inbound
}

// NewHub creates a new Hub instance.
func NewHub() *Hub {
	return &Hub{
		Rooms:      make(map[string]*Room),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		Inbound:    make(chan *inbound, 64),
	}
}

// Run starts the hub's main processing loop.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.Register:
			// The client is not in a room yet; it still has to send
			// join-meeting.
			slog.Debug("client registered", "remote", client.Conn.RemoteAddr())

		case client := <-h.Unregister:
			h.unregister(client)

		case in := <-h.Inbound:
			h.dispatch(in.client, in.msg)
		}
	}
}

// unregister removes the client from its room and closes its send
// channel. The dead mark keeps dispatch from writing to that channel if
// a message from the same connection is still queued behind the
// unregister.
func (h *Hub) unregister(c *Client) {
	h.handleLeave(c)
	c.dead = true
	close(c.Send)
}

func (h *Hub) dispatch(c *Client, msg *protocol.Message) {
	if c.dead {
		slog.Debug("dropping message from unregistered client", "type", msg.Type)
		return
	}

	switch msg.Type {
	case protocol.MessageTypeJoinMeeting:
		h.handleJoin(c, msg)

	case protocol.MessageTypeOffer, protocol.MessageTypeAnswer, protocol.MessageTypeICECandidate:
		h.relaySignal(c, msg)

	case protocol.MessageTypeUpdateParticipant:
		h.handleUpdateParticipant(c, msg)

	case protocol.MessageTypeChat:
		h.handleChat(c, msg)

	case protocol.MessageTypeWhiteboard:
		h.handleWhiteboard(c, msg)

	case protocol.MessageTypeWhiteboardClear:
		h.handleWhiteboardClear(c)

	case protocol.MessageTypeEndMeeting:
		h.handleEndMeeting(c)

	default:
		slog.Warn("unknown message type", "type", msg.Type)
	}
}

// handleJoin places the client in the requested room, creating the room
// on first join, and answers with the full roster plus the session
// backlog. Everyone else learns about the newcomer via user-joined.
func (h *Hub) handleJoin(c *Client, msg *protocol.Message) {
	var payload protocol.JoinMeetingPayload
	if err := msg.DecodePayload(&payload); err != nil || payload.RoomID == "" || payload.Identity.ID == "" {
		h.sendError(c, "join-meeting requires a room id and identity")
		return
	}

	room, ok := h.Rooms[payload.RoomID]
	if !ok {
		room = NewRoom(payload.RoomID)
		h.Rooms[payload.RoomID] = room
		slog.Info("room created", "room", room.ID)
	}

	c.RoomID = room.ID
	c.Participant = protocol.Participant{
		ID:   payload.Identity.ID,
		Name: payload.Identity.Name,
		Role: payload.Identity.Role,
		// A fresh join starts with camera and microphone live.
		Video: true,
		Audio: true,
	}

	// A rejoin keeps the flag state announced on the old connection, so
	// a muted participant stays muted in every late joiner's roster.
	rejoin := false
	if prev, ok := room.Get(payload.Identity.ID); ok {
		rejoin = true
		c.Participant.Video = prev.Participant.Video
		c.Participant.Audio = prev.Participant.Audio
		c.Participant.Screen = prev.Participant.Screen
	}
	room.Add(c)
	if room.HostID == c.Participant.ID {
		c.Participant.Role = protocol.RoleHost
	}

	slog.Info("participant joined", "room", room.ID, "participant", c.Participant.ID, "rejoin", rejoin)

	ack, err := protocol.NewMessage(protocol.MessageTypeMeetingJoined, protocol.MeetingJoinedPayload{
		Participants:  room.Participants(),
		IsHost:        room.HostID == c.Participant.ID,
		ChatLog:       room.chatLog,
		WhiteboardLog: room.whiteboardLog,
	})
	if err != nil {
		h.sendError(c, "failed to encode roster")
		return
	}
	ack.RoomID = room.ID
	c.Send <- ack

	if !rejoin {
		joined, _ := protocol.NewMessage(protocol.MessageTypeUserJoined, protocol.UserJoinedPayload{
			Participant: c.Participant,
		})
		room.Broadcast(c.Participant.ID, joined)
	}
}

// handleLeave removes a departing client from its room. A host departure
// ends the meeting for everyone; otherwise the rest of the room gets a
// user-left delta.
func (h *Hub) handleLeave(c *Client) {
	if c.RoomID == "" {
		return
	}
	room, ok := h.Rooms[c.RoomID]
	if !ok {
		return
	}

	// A reconnected client may have replaced this entry already; only
	// the current owner of the id gets to mutate the room.
	if current, ok := room.Get(c.Participant.ID); !ok || current != c {
		return
	}

	room.Remove(c.Participant.ID)
	slog.Info("participant left", "room", room.ID, "participant", c.Participant.ID)

	if c.Participant.ID == room.HostID {
		h.endRoom(room, c.Participant.ID)
		return
	}

	left, _ := protocol.NewMessage(protocol.MessageTypeUserLeft, protocol.UserLeftPayload{
		ParticipantID: c.Participant.ID,
	})
	room.Broadcast(c.Participant.ID, left)

	if room.Empty() {
		delete(h.Rooms, room.ID)
		slog.Info("room deleted", "room", room.ID)
	}
}

// relaySignal forwards an offer/answer/ICE envelope to the addressed
// participant only, stamping the sender id.
func (h *Hub) relaySignal(c *Client, msg *protocol.Message) {
	room := h.roomOf(c)
	if room == nil {
		return
	}
	if msg.To == "" {
		h.sendError(c, "signal envelope requires a target")
		return
	}

	target, ok := room.Get(msg.To)
	if !ok {
		slog.Debug("signal target gone", "room", room.ID, "to", msg.To)
		return
	}

	msg.From = c.Participant.ID
	msg.RoomID = room.ID
	select {
	case target.Send <- msg:
	default:
		slog.Warn("dropping signal, slow consumer", "room", room.ID, "to", msg.To)
	}
}

// handleUpdateParticipant mutates the sender's capability flags and
// rebroadcasts them to the rest of the room.
func (h *Hub) handleUpdateParticipant(c *Client, msg *protocol.Message) {
	room := h.roomOf(c)
	if room == nil {
		return
	}

	var payload protocol.UpdateParticipantPayload
	if err := msg.DecodePayload(&payload); err != nil {
		h.sendError(c, "bad update-participant payload")
		return
	}

	member, ok := room.Get(c.Participant.ID)
	if !ok {
		return
	}
	member.Participant.Video = payload.Video
	member.Participant.Audio = payload.Audio
	member.Participant.Screen = payload.Screen

	msg.From = c.Participant.ID
	room.Broadcast(c.Participant.ID, msg)
}

func (h *Hub) handleChat(c *Client, msg *protocol.Message) {
	room := h.roomOf(c)
	if room == nil {
		return
	}

	var chat protocol.ChatMessage
	if err := msg.DecodePayload(&chat); err != nil || chat.Body == "" {
		h.sendError(c, "bad chat payload")
		return
	}
	chat.SenderID = c.Participant.ID
	chat.SenderName = c.Participant.Name

	room.AppendChat(chat)

	out, _ := protocol.NewMessage(protocol.MessageTypeChat, chat)
	out.From = c.Participant.ID
	room.Broadcast(c.Participant.ID, out)
}

func (h *Hub) handleWhiteboard(c *Client, msg *protocol.Message) {
	room := h.roomOf(c)
	if room == nil {
		return
	}

	var stroke protocol.WhiteboardStroke
	if err := msg.DecodePayload(&stroke); err != nil {
		h.sendError(c, "bad whiteboard payload")
		return
	}
	room.AppendStroke(stroke)

	msg.From = c.Participant.ID
	room.Broadcast(c.Participant.ID, msg)
}

func (h *Hub) handleWhiteboardClear(c *Client) {
	room := h.roomOf(c)
	if room == nil {
		return
	}
	room.ClearWhiteboard()

	out, _ := protocol.NewMessage(protocol.MessageTypeWhiteboardClear, nil)
	out.From = c.Participant.ID
	room.Broadcast(c.Participant.ID, out)
}

// handleEndMeeting lets the host end the class for everyone.
func (h *Hub) handleEndMeeting(c *Client) {
	room := h.roomOf(c)
	if room == nil {
		return
	}
	if c.Participant.ID != room.HostID {
		h.sendError(c, "only the host can end the meeting")
		return
	}
	room.Remove(c.Participant.ID)
	h.endRoom(room, c.Participant.ID)
}

// endRoom broadcasts meeting-ended to the remaining members and tears the
// room down.
func (h *Hub) endRoom(room *Room, except string) {
	ended, _ := protocol.NewMessage(protocol.MessageTypeMeetingEnded, nil)
	room.Broadcast(except, ended)
	delete(h.Rooms, room.ID)
	slog.Info("meeting ended", "room", room.ID)
}

func (h *Hub) roomOf(c *Client) *Room {
	if c.RoomID == "" {
		h.sendError(c, "you must join a meeting first")
		return nil
	}
	room, ok := h.Rooms[c.RoomID]
	if !ok {
		h.sendError(c, "meeting no longer exists")
		return nil
	}
	return room
}

func (h *Hub) sendError(c *Client, text string) {
	msg, err := protocol.NewMessage(protocol.MessageTypeError, protocol.ErrorPayload{Error: text})
	if err != nil {
		return
	}
	select {
	case c.Send <- msg:
	default:
	}
}
