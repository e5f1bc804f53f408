package server

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Asmer72582/upscholar-live/internal/protocol"
)

// The hub loop owns all state, so tests drive dispatch directly instead
// of going through channels and a live websocket.

func newTestClient(h *Hub) *Client {
	return &Client{
		Hub:  h,
		Send: make(chan *protocol.Message, 32),
	}
}

func join(t *testing.T, h *Hub, c *Client, roomID, id, name string) {
	t.Helper()
	msg, err := protocol.NewMessage(protocol.MessageTypeJoinMeeting, protocol.JoinMeetingPayload{
		RoomID:   roomID,
		Identity: protocol.Identity{ID: id, Name: name, Role: protocol.RoleAttendee},
	})
	require.NoError(t, err)
	h.dispatch(c, msg)
}

// drain empties a client's send buffer.
func drain(c *Client) []*protocol.Message {
	var out []*protocol.Message
	for {
		select {
		case msg := <-c.Send:
			out = append(out, msg)
		default:
			return out
		}
	}
}

func firstOfType(msgs []*protocol.Message, msgType string) *protocol.Message {
	for _, msg := range msgs {
		if msg.Type == msgType {
			return msg
		}
	}
	return nil
}

func TestJoinCreatesRoomAndElectsHost(t *testing.T) {
	h := NewHub()
	host := newTestClient(h)

	join(t, h, host, "class", "aaa", "Teacher")

	room, ok := h.Rooms["class"]
	require.True(t, ok, "first join creates the room")
	assert.Equal(t, "aaa", room.HostID)
	assert.Equal(t, protocol.RoleHost, host.Participant.Role)

	msgs := drain(host)
	ack := firstOfType(msgs, protocol.MessageTypeMeetingJoined)
	require.NotNil(t, ack)

	var payload protocol.MeetingJoinedPayload
	require.NoError(t, ack.DecodePayload(&payload))
	assert.True(t, payload.IsHost)
	require.Len(t, payload.Participants, 1)
	assert.True(t, payload.Participants[0].Video, "a fresh join starts with camera live")
	assert.True(t, payload.Participants[0].Audio)
}

func TestSecondJoinerGetsRosterAndOthersGetDelta(t *testing.T) {
	h := NewHub()
	host := newTestClient(h)
	join(t, h, host, "class", "aaa", "Teacher")
	drain(host)

	attendee := newTestClient(h)
	join(t, h, attendee, "class", "bbb", "Ada")

	ack := firstOfType(drain(attendee), protocol.MessageTypeMeetingJoined)
	require.NotNil(t, ack)
	var payload protocol.MeetingJoinedPayload
	require.NoError(t, ack.DecodePayload(&payload))
	assert.False(t, payload.IsHost)
	require.Len(t, payload.Participants, 2)
	// Roster order is join order.
	assert.Equal(t, "aaa", payload.Participants[0].ID)
	assert.Equal(t, "bbb", payload.Participants[1].ID)

	joined := firstOfType(drain(host), protocol.MessageTypeUserJoined)
	require.NotNil(t, joined, "existing members learn about the newcomer")
	var delta protocol.UserJoinedPayload
	require.NoError(t, joined.DecodePayload(&delta))
	assert.Equal(t, "bbb", delta.Participant.ID)
}

func TestJoinWithoutIdentityRejected(t *testing.T) {
	h := NewHub()
	c := newTestClient(h)

	msg, err := protocol.NewMessage(protocol.MessageTypeJoinMeeting, protocol.JoinMeetingPayload{RoomID: "class"})
	require.NoError(t, err)
	h.dispatch(c, msg)

	assert.Empty(t, h.Rooms)
	errMsg := firstOfType(drain(c), protocol.MessageTypeError)
	require.NotNil(t, errMsg)
}

func TestRejoinReplacesConnectionKeepsPosition(t *testing.T) {
	h := NewHub()
	host := newTestClient(h)
	attendee := newTestClient(h)
	join(t, h, host, "class", "aaa", "Teacher")
	join(t, h, attendee, "class", "bbb", "Ada")
	drain(host)
	drain(attendee)

	// The same participant id joins again on a fresh connection, the way
	// a reconnected client re-runs the handshake.
	fresh := newTestClient(h)
	join(t, h, fresh, "class", "bbb", "Ada")

	room := h.Rooms["class"]
	current, ok := room.Get("bbb")
	require.True(t, ok)
	assert.Same(t, fresh, current)

	ack := firstOfType(drain(fresh), protocol.MessageTypeMeetingJoined)
	require.NotNil(t, ack)
	var payload protocol.MeetingJoinedPayload
	require.NoError(t, ack.DecodePayload(&payload))
	assert.Equal(t, "bbb", payload.Participants[1].ID, "rejoin keeps the roster position")

	assert.Nil(t, firstOfType(drain(host), protocol.MessageTypeUserJoined),
		"a rejoin must not announce a new participant")

	// The stale connection unregistering later must not evict the fresh one.
	h.handleLeave(attendee)
	_, ok = room.Get("bbb")
	assert.True(t, ok)
}

func TestSignalRelayedToTargetOnly(t *testing.T) {
	h := NewHub()
	a, b, c := newTestClient(h), newTestClient(h), newTestClient(h)
	join(t, h, a, "class", "aaa", "A")
	join(t, h, b, "class", "bbb", "B")
	join(t, h, c, "class", "ccc", "C")
	drain(a)
	drain(b)
	drain(c)

	offer, err := protocol.NewMessage(protocol.MessageTypeOffer, protocol.SDPPayload{SDP: "v=0"})
	require.NoError(t, err)
	offer.To = "bbb"
	offer.From = "spoofed"
	h.dispatch(a, offer)

	got := firstOfType(drain(b), protocol.MessageTypeOffer)
	require.NotNil(t, got)
	assert.Equal(t, "aaa", got.From, "the relay stamps the real sender")
	assert.Empty(t, drain(c), "signals are targeted, never broadcast")
}

func TestSignalWithoutTargetRejected(t *testing.T) {
	h := NewHub()
	a := newTestClient(h)
	join(t, h, a, "class", "aaa", "A")
	drain(a)

	offer, err := protocol.NewMessage(protocol.MessageTypeOffer, protocol.SDPPayload{SDP: "v=0"})
	require.NoError(t, err)
	h.dispatch(a, offer)

	require.NotNil(t, firstOfType(drain(a), protocol.MessageTypeError))
}

func TestUpdateParticipantMutatesAndRebroadcasts(t *testing.T) {
	h := NewHub()
	a, b := newTestClient(h), newTestClient(h)
	join(t, h, a, "class", "aaa", "A")
	join(t, h, b, "class", "bbb", "B")
	drain(a)
	drain(b)

	update, err := protocol.NewMessage(protocol.MessageTypeUpdateParticipant,
		protocol.UpdateParticipantPayload{Video: false, Audio: true, Screen: true})
	require.NoError(t, err)
	h.dispatch(a, update)

	member, _ := h.Rooms["class"].Get("aaa")
	assert.False(t, member.Participant.Video)
	assert.True(t, member.Participant.Screen)

	got := firstOfType(drain(b), protocol.MessageTypeUpdateParticipant)
	require.NotNil(t, got)
	assert.Equal(t, "aaa", got.From)
	assert.Empty(t, drain(a), "the sender already knows its own flags")
}

func TestChatRecordedAndBroadcast(t *testing.T) {
	h := NewHub()
	a, b := newTestClient(h), newTestClient(h)
	join(t, h, a, "class", "aaa", "Teacher")
	join(t, h, b, "class", "bbb", "Ada")
	drain(a)
	drain(b)

	chat, err := protocol.NewMessage(protocol.MessageTypeChat,
		protocol.ChatMessage{ID: "m1", SenderID: "spoofed", SenderName: "spoofed", Body: "hello"})
	require.NoError(t, err)
	h.dispatch(a, chat)

	room := h.Rooms["class"]
	require.Len(t, room.chatLog, 1)
	assert.Equal(t, "aaa", room.chatLog[0].SenderID, "the relay stamps the sender identity")
	assert.Equal(t, "Teacher", room.chatLog[0].SenderName)

	got := firstOfType(drain(b), protocol.MessageTypeChat)
	require.NotNil(t, got)
	assert.Empty(t, drain(a), "no echo back to the sender")
}

func TestWhiteboardBacklogSurvivesUntilClear(t *testing.T) {
	h := NewHub()
	a := newTestClient(h)
	join(t, h, a, "class", "aaa", "Teacher")
	drain(a)

	stroke, err := protocol.NewMessage(protocol.MessageTypeWhiteboard,
		protocol.WhiteboardStroke{X: 1, Y: 2, Color: "#fff", Width: 3, Mode: protocol.StrokeModeDraw})
	require.NoError(t, err)
	h.dispatch(a, stroke)

	room := h.Rooms["class"]
	require.Len(t, room.whiteboardLog, 1)

	clear, err := protocol.NewMessage(protocol.MessageTypeWhiteboardClear, nil)
	require.NoError(t, err)
	h.dispatch(a, clear)
	assert.Empty(t, room.whiteboardLog)
}

func TestAttendeeLeaveBroadcastsDelta(t *testing.T) {
	h := NewHub()
	host, attendee := newTestClient(h), newTestClient(h)
	join(t, h, host, "class", "aaa", "Teacher")
	join(t, h, attendee, "class", "bbb", "Ada")
	drain(host)
	drain(attendee)

	h.handleLeave(attendee)

	left := firstOfType(drain(host), protocol.MessageTypeUserLeft)
	require.NotNil(t, left)
	var payload protocol.UserLeftPayload
	require.NoError(t, left.DecodePayload(&payload))
	assert.Equal(t, "bbb", payload.ParticipantID)

	_, ok := h.Rooms["class"]
	assert.True(t, ok, "the room survives while members remain")
}

func TestHostLeaveEndsMeeting(t *testing.T) {
	h := NewHub()
	host, attendee := newTestClient(h), newTestClient(h)
	join(t, h, host, "class", "aaa", "Teacher")
	join(t, h, attendee, "class", "bbb", "Ada")
	drain(host)
	drain(attendee)

	h.handleLeave(host)

	require.NotNil(t, firstOfType(drain(attendee), protocol.MessageTypeMeetingEnded))
	_, ok := h.Rooms["class"]
	assert.False(t, ok, "the room is torn down with the host")
}

func TestLastLeaverDeletesRoom(t *testing.T) {
	h := NewHub()
	host, attendee := newTestClient(h), newTestClient(h)
	join(t, h, host, "class", "aaa", "Teacher")
	join(t, h, attendee, "class", "bbb", "Ada")

	h.handleLeave(attendee)
	h.handleLeave(host)

	assert.Empty(t, h.Rooms)
}

func TestOnlyHostEndsMeeting(t *testing.T) {
	h := NewHub()
	host, attendee := newTestClient(h), newTestClient(h)
	join(t, h, host, "class", "aaa", "Teacher")
	join(t, h, attendee, "class", "bbb", "Ada")
	drain(host)
	drain(attendee)

	end, err := protocol.NewMessage(protocol.MessageTypeEndMeeting, nil)
	require.NoError(t, err)

	h.dispatch(attendee, end)
	require.NotNil(t, firstOfType(drain(attendee), protocol.MessageTypeError))
	_, ok := h.Rooms["class"]
	require.True(t, ok)

	h.dispatch(host, end)
	require.NotNil(t, firstOfType(drain(attendee), protocol.MessageTypeMeetingEnded))
	_, ok = h.Rooms["class"]
	assert.False(t, ok)
}

func TestQueuedMessageAfterUnregisterDropped(t *testing.T) {
	h := NewHub()
	c := newTestClient(h)

	// The read pump queues inbound messages before it unregisters, so
	// the hub can process the unregister first and then meet a stale
	// message from the same connection. The send channel is closed by
	// then; dispatch must drop the message instead of writing to it.
	h.unregister(c)

	msg, err := protocol.NewMessage(protocol.MessageTypeJoinMeeting, protocol.JoinMeetingPayload{
		RoomID:   "class",
		Identity: protocol.Identity{ID: "aaa", Name: "Teacher"},
	})
	require.NoError(t, err)

	assert.NotPanics(t, func() { h.dispatch(c, msg) })
	assert.Empty(t, h.Rooms, "a dead client must not create rooms")
}

func TestStaleMessageFromDepartedMemberDropped(t *testing.T) {
	h := NewHub()
	host, attendee := newTestClient(h), newTestClient(h)
	join(t, h, host, "class", "aaa", "Teacher")
	join(t, h, attendee, "class", "bbb", "Ada")
	drain(host)
	drain(attendee)

	h.unregister(attendee)
	drain(host)

	chat, err := protocol.NewMessage(protocol.MessageTypeChat, protocol.ChatMessage{Body: "late"})
	require.NoError(t, err)
	assert.NotPanics(t, func() { h.dispatch(attendee, chat) })

	assert.Empty(t, h.Rooms["class"].chatLog)
	assert.Empty(t, drain(host))
}

func TestRejoinPreservesFlags(t *testing.T) {
	h := NewHub()
	host, attendee := newTestClient(h), newTestClient(h)
	join(t, h, host, "class", "aaa", "Teacher")
	join(t, h, attendee, "class", "bbb", "Ada")
	drain(host)
	drain(attendee)

	mute, err := protocol.NewMessage(protocol.MessageTypeUpdateParticipant,
		protocol.UpdateParticipantPayload{Video: true, Audio: false})
	require.NoError(t, err)
	h.dispatch(attendee, mute)
	drain(host)

	// The participant rejoins on a fresh connection before the stale one
	// unregisters; the mute state announced earlier must survive.
	fresh := newTestClient(h)
	join(t, h, fresh, "class", "bbb", "Ada")

	member, ok := h.Rooms["class"].Get("bbb")
	require.True(t, ok)
	assert.False(t, member.Participant.Audio, "rejoin must not reset the mute state")
	assert.True(t, member.Participant.Video)

	ack := firstOfType(drain(fresh), protocol.MessageTypeMeetingJoined)
	require.NotNil(t, ack)
	var payload protocol.MeetingJoinedPayload
	require.NoError(t, ack.DecodePayload(&payload))
	require.Len(t, payload.Participants, 2)
	assert.False(t, payload.Participants[1].Audio, "the roster ack must carry the preserved flags")
}

func TestMessageBeforeJoinRejected(t *testing.T) {
	h := NewHub()
	c := newTestClient(h)

	chat, err := protocol.NewMessage(protocol.MessageTypeChat, protocol.ChatMessage{Body: "hello"})
	require.NoError(t, err)
	h.dispatch(c, chat)

	require.NotNil(t, firstOfType(drain(c), protocol.MessageTypeError))
}
