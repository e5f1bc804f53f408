package protocol

import (
	"time"

	"github.com/pion/webrtc/v4"
)

// Participant roles.
const (
	RoleHost     = "host"
	RoleAttendee = "attendee"
)

// Identity is the room-scoped identity of a client. It is supplied by
// the authentication layer and carried opaquely in envelopes.
type Identity struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Role string `json:"role"`
}

// Participant is one member of a room: identity plus live capability flags.
type Participant struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Role   string `json:"role"`
	Video  bool   `json:"video"`
	Audio  bool   `json:"audio"`
	Screen bool   `json:"screen"`
}

// ChatMessage is one entry of the room chat. Immutable once created;
// ordering is arrival order at each client.
type ChatMessage struct {
	ID         string    `json:"id"`
	SenderID   string    `json:"senderId"`
	SenderName string    `json:"senderName"`
	Body       string    `json:"body"`
	SentAt     time.Time `json:"sentAt"`
}

// Whiteboard stroke modes.
const (
	StrokeModeDraw  = "draw"
	StrokeModeErase = "erase"
)

// WhiteboardStroke is a single paint increment, emitted per pointer
// move rather than per completed path.
type WhiteboardStroke struct {
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Color string  `json:"color"`
	Width float64 `json:"width"`
	Mode  string  `json:"mode"`
}

// JoinMeetingPayload is sent by a client to enter a room.
type JoinMeetingPayload struct {
	RoomID   string   `json:"roomId"`
	Identity Identity `json:"identity"`
}

// MeetingJoinedPayload acknowledges a join with the full roster and the
// live-session chat/whiteboard backlog.
type MeetingJoinedPayload struct {
	Participants  []Participant      `json:"participants"`
	IsHost        bool               `json:"isHost"`
	ChatLog       []ChatMessage      `json:"chatLog,omitempty"`
	WhiteboardLog []WhiteboardStroke `json:"whiteboardLog,omitempty"`
}

// UserJoinedPayload announces a new participant to the rest of the room.
type UserJoinedPayload struct {
	Participant Participant `json:"participant"`
}

// UserLeftPayload announces a departure.
type UserLeftPayload struct {
	ParticipantID string `json:"participantId"`
}

// SDPPayload carries an offer or answer session description.
type SDPPayload struct {
	SDP string `json:"sdp"`
}

// ICECandidatePayload carries one trickled ICE candidate.
type ICECandidatePayload struct {
	Candidate webrtc.ICECandidateInit `json:"candidate"`
}

// UpdateParticipantPayload broadcasts new capability flags.
type UpdateParticipantPayload struct {
	Video  bool `json:"video"`
	Audio  bool `json:"audio"`
	Screen bool `json:"screen"`
}

// ErrorPayload carries an error message from the server.
type ErrorPayload struct {
	Error string `json:"error"`
}
