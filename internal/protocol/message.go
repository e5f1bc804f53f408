package protocol

import "encoding/json"

// Message defines the structure for all C2S (Client to Server)
// and S2C (Server to Client) websocket messages. From and To carry
// participant ids; the server stamps From on every relayed message
// so clients cannot spoof a sender.
type Message struct {
	Type    string          `json:"type"`
	RoomID  string          `json:"room_id,omitempty"`
	From    string          `json:"from,omitempty"`
	To      string          `json:"to,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Message type constants.
const (
	MessageTypeJoinMeeting = "join-meeting"
	MessageTypeEndMeeting  = "end-meeting"

	MessageTypeMeetingJoined = "meeting-joined"
	MessageTypeUserJoined    = "user-joined"
	MessageTypeUserLeft      = "user-left"
	MessageTypeMeetingEnded  = "meeting-ended"
	MessageTypeError         = "error"

	MessageTypeOffer        = "offer"
	MessageTypeAnswer       = "answer"
	MessageTypeICECandidate = "ice-candidate"

	MessageTypeUpdateParticipant = "update-participant"
	MessageTypeChat              = "chat-message"
	MessageTypeWhiteboard        = "whiteboard-update"
	MessageTypeWhiteboardClear   = "whiteboard-clear"
)

// NewMessage creates a Message with the given type and marshalled payload.
func NewMessage(t string, payload any) (*Message, error) {
	if payload == nil {
		return &Message{Type: t}, nil
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return &Message{Type: t, Payload: b}, nil
}

// DecodePayload decodes the message payload into the provided struct.
func (m *Message) DecodePayload(v any) error {
	if len(m.Payload) == 0 {
		return nil
	}
	return json.Unmarshal(m.Payload, v)
}

// IsSignal reports whether the message is a peer-to-peer negotiation
// envelope (offer, answer or ICE candidate).
func (m *Message) IsSignal() bool {
	switch m.Type {
	case MessageTypeOffer, MessageTypeAnswer, MessageTypeICECandidate:
		return true
	}
	return false
}
