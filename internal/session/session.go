package session

import (
	"context"
	"log/slog"
	"sync"

	"github.com/pion/webrtc/v4"

	"github.com/Asmer72582/upscholar-live/internal/media"
	"github.com/Asmer72582/upscholar-live/internal/protocol"
)

// EventKind classifies session notifications delivered to the UI.
type EventKind int

const (
	EventRosterChanged EventKind = iota
	EventChat
	EventWhiteboard
	EventPeerConnected
	EventPeerClosed
	EventReconnected
	EventEnded
	EventError
)

// Event is one session notification. Consumers render from snapshots;
// the event only says that something changed and, where useful, for whom.
type Event struct {
	Kind        EventKind
	Participant string
	Chat        *protocol.ChatMessage
	Err         error
}

// Options configure a session.
type Options struct {
	ServerURL string
	RoomID    string
	Identity  protocol.Identity
	Devices   media.Devices
	RTCConfig webrtc.Configuration

	// PeerFactory overrides the pion-backed default; tests use this to
	// negotiate against in-memory peers.
	PeerFactory PeerFactory
}

// Session supervises one classroom attendance: it acquires media, opens
// the signaling channel, joins the room and then dispatches every
// inbound message to the owning component. Teardown runs exactly once
// no matter how many exit paths fire.
type Session struct {
	opts    Options
	channel *Channel
	roster  *Roster
	media   *MediaController
	links   *LinkManager
	chat    *ChatLog
	board   *Whiteboard

	events chan Event
	done   chan struct{}

	teardownOnce sync.Once
}

// New assembles a session. Start must be called to bring it live.
func New(opts Options) *Session {
	s := &Session{
		opts:   opts,
		roster: NewRoster(opts.Identity.ID),
		media:  NewMediaController(opts.Devices),
		chat:   NewChatLog(opts.Identity.ID, opts.Identity.Name),
		board:  NewWhiteboard(),
		events: make(chan Event, 256),
		done:   make(chan struct{}),
	}
	return s
}

// Start runs the strict startup sequence: acquire local media, open the
// signaling channel, send the join request. If media acquisition fails
// the channel is never opened.
func (s *Session) Start(ctx context.Context) error {
	queued, err := s.media.Acquire()
	if err != nil {
		return err
	}

	s.channel = NewChannel(s.opts.ServerURL)
	if err := s.channel.Connect(ctx); err != nil {
		s.media.StopAll()
		return err
	}

	factory := s.opts.PeerFactory
	if factory == nil {
		factory = NewPionPeerFactory(s.opts.RTCConfig, s.media)
	}
	s.links = NewLinkManager(s.opts.Identity.ID, factory, s.channel.Send, s.onLinkNotification)

	// Joins requested while capture was pending are evaluated now,
	// exactly once.
	for _, id := range queued {
		s.links.EvaluateInitiation(id)
	}

	s.sendJoin()

	go s.run()
	return nil
}

func (s *Session) sendJoin() {
	msg, err := protocol.NewMessage(protocol.MessageTypeJoinMeeting, protocol.JoinMeetingPayload{
		RoomID:   s.opts.RoomID,
		Identity: s.opts.Identity,
	})
	if err != nil {
		s.emit(Event{Kind: EventError, Err: NewError("encode join", err)})
		return
	}
	msg.From = s.opts.Identity.ID
	s.channel.Send(msg)
}

// run is the dispatcher loop: a single goroutine consuming the ordered
// channel stream and calling into the owning component per message type.
func (s *Session) run() {
	for ev := range s.channel.Events() {
		switch {
		case ev.Err != nil:
			s.emit(Event{Kind: EventError, Err: ev.Err})
			s.teardown()
			return

		case ev.Reconnected:
			// Fresh bootstrap: the join handshake is re-issued and the
			// next meeting-joined replaces local state wholesale. Local
			// capture state is the truth for our own flags, so they are
			// re-announced in case the relay lost them.
			s.emit(Event{Kind: EventReconnected})
			s.sendJoin()
			s.broadcastFlags()

		case ev.Msg != nil:
			if s.dispatch(ev.Msg) {
				return
			}
		}
	}
}

// dispatch handles one inbound message. Returns true when the session
// has ended and the loop should stop.
func (s *Session) dispatch(msg *protocol.Message) bool {
	switch msg.Type {
	case protocol.MessageTypeMeetingJoined:
		s.handleMeetingJoined(msg)

	case protocol.MessageTypeUserJoined:
		s.handleUserJoined(msg)

	case protocol.MessageTypeUserLeft:
		s.handleUserLeft(msg)

	case protocol.MessageTypeOffer, protocol.MessageTypeAnswer, protocol.MessageTypeICECandidate:
		s.links.HandleSignal(msg)

	case protocol.MessageTypeUpdateParticipant:
		var flags protocol.UpdateParticipantPayload
		if err := msg.DecodePayload(&flags); err == nil {
			if s.roster.ApplyFlags(msg.From, flags) {
				s.emit(Event{Kind: EventRosterChanged, Participant: msg.From})
			}
		}

	case protocol.MessageTypeChat:
		var chat protocol.ChatMessage
		if err := msg.DecodePayload(&chat); err == nil {
			if s.chat.Apply(chat) {
				s.emit(Event{Kind: EventChat, Chat: &chat})
			}
		}

	case protocol.MessageTypeWhiteboard:
		var stroke protocol.WhiteboardStroke
		if err := msg.DecodePayload(&stroke); err == nil {
			s.board.Apply(stroke)
			s.emit(Event{Kind: EventWhiteboard, Participant: msg.From})
		}

	case protocol.MessageTypeWhiteboardClear:
		s.board.Clear()
		s.emit(Event{Kind: EventWhiteboard, Participant: msg.From})

	case protocol.MessageTypeMeetingEnded:
		s.emit(Event{Kind: EventEnded, Err: ErrMeetingEnded})
		s.teardown()
		return true

	case protocol.MessageTypeError:
		var payload protocol.ErrorPayload
		if err := msg.DecodePayload(&payload); err == nil {
			s.emit(Event{Kind: EventError, Err: WrapError("relay", ErrChannelClosed, payload.Error)})
		}

	default:
		slog.Debug("ignoring message", "type", msg.Type)
	}
	return false
}

// handleMeetingJoined seeds roster, chat and whiteboard from the ack and
// reconciles the link table: links for participants no longer present
// are destroyed, links toward everyone else are (idempotently) ensured.
func (s *Session) handleMeetingJoined(msg *protocol.Message) {
	var payload protocol.MeetingJoinedPayload
	if err := msg.DecodePayload(&payload); err != nil {
		s.emit(Event{Kind: EventError, Err: NewError("decode roster", err)})
		return
	}

	s.roster.Bootstrap(payload.Participants, payload.IsHost)
	s.chat.Bootstrap(payload.ChatLog)
	s.board.Bootstrap(payload.WhiteboardLog)

	present := make(map[string]bool, len(payload.Participants))
	for _, p := range payload.Participants {
		present[p.ID] = true
	}
	for _, id := range s.links.IDs() {
		if !present[id] {
			s.links.DestroyLink(id)
		}
	}
	for _, id := range s.roster.RemoteIDs() {
		s.evaluateLink(id)
	}

	s.emit(Event{Kind: EventRosterChanged})
}

func (s *Session) handleUserJoined(msg *protocol.Message) {
	var payload protocol.UserJoinedPayload
	if err := msg.DecodePayload(&payload); err != nil {
		return
	}
	if !s.roster.Add(payload.Participant) {
		return
	}
	s.evaluateLink(payload.Participant.ID)
	s.emit(Event{Kind: EventRosterChanged, Participant: payload.Participant.ID})
}

func (s *Session) handleUserLeft(msg *protocol.Message) {
	var payload protocol.UserLeftPayload
	if err := msg.DecodePayload(&payload); err != nil {
		return
	}
	if s.roster.Remove(payload.ParticipantID) {
		s.links.DestroyLink(payload.ParticipantID)
		s.emit(Event{Kind: EventRosterChanged, Participant: payload.ParticipantID})
	}
}

// evaluateLink requests link initiation toward a remote, deferring to
// the media controller's queue while capture is not ready yet.
func (s *Session) evaluateLink(remoteID string) {
	if s.media.Defer(remoteID) {
		return
	}
	s.links.EvaluateInitiation(remoteID)
}

func (s *Session) onLinkNotification(n LinkNotification) {
	switch {
	case n.Err != nil:
		s.emit(Event{Kind: EventPeerClosed, Participant: n.RemoteID, Err: n.Err})
	case n.State == LinkConnected:
		s.emit(Event{Kind: EventPeerConnected, Participant: n.RemoteID})
	}
}

// SendChat appends an optimistic local echo and emits the message.
func (s *Session) SendChat(body string) protocol.ChatMessage {
	chat := s.chat.Compose(body)
	if msg, err := protocol.NewMessage(protocol.MessageTypeChat, chat); err == nil {
		msg.From = s.opts.Identity.ID
		s.channel.Send(msg)
	}
	return chat
}

// Draw applies a stroke increment locally and replicates it.
func (s *Session) Draw(x, y float64, color string, width float64, mode string) {
	stroke := s.board.Compose(x, y, color, width, mode)
	if msg, err := protocol.NewMessage(protocol.MessageTypeWhiteboard, stroke); err == nil {
		msg.From = s.opts.Identity.ID
		s.channel.Send(msg)
	}
}

// ClearWhiteboard wipes the shared canvas for every client.
func (s *Session) ClearWhiteboard() {
	s.board.Clear()
	msg, _ := protocol.NewMessage(protocol.MessageTypeWhiteboardClear, nil)
	msg.From = s.opts.Identity.ID
	s.channel.Send(msg)
}

// ToggleVideo flips the camera flag in place and broadcasts the change.
func (s *Session) ToggleVideo() bool {
	on := s.media.ToggleVideo()
	s.broadcastFlags()
	return on
}

// ToggleAudio flips the microphone flag in place and broadcasts it.
func (s *Session) ToggleAudio() bool {
	on := s.media.ToggleAudio()
	s.broadcastFlags()
	return on
}

// StartScreenShare swaps the outgoing video to a screen capture on all
// live links. A capture ending from the OS side stops the share on the
// same path as a manual stop.
func (s *Session) StartScreenShare() error {
	err := s.media.StartScreenShare(s.links.SubstituteVideoTrack, func() {
		s.StopScreenShare()
	})
	if err != nil {
		return err
	}
	s.broadcastFlags()
	return nil
}

// StopScreenShare restores the camera as the outgoing video.
func (s *Session) StopScreenShare() {
	s.media.StopScreenShare(s.links.SubstituteVideoTrack)
	s.broadcastFlags()
}

func (s *Session) broadcastFlags() {
	msg, err := protocol.NewMessage(protocol.MessageTypeUpdateParticipant, s.media.Flags())
	if err != nil {
		return
	}
	msg.From = s.opts.Identity.ID
	s.channel.Send(msg)
}

// Leave exits the room and tears the session down.
func (s *Session) Leave() {
	s.teardown()
}

// EndMeeting asks the relay to end the class for everyone. Host only.
func (s *Session) EndMeeting() error {
	if !s.roster.IsHost() {
		return ErrNotHost
	}
	msg, _ := protocol.NewMessage(protocol.MessageTypeEndMeeting, nil)
	msg.From = s.opts.Identity.ID
	s.channel.Send(msg)
	s.teardown()
	return nil
}

// teardown stops local media, destroys every peer link and closes the
// channel, in that order, exactly once even when triggered from
// overlapping causes.
func (s *Session) teardown() {
	s.teardownOnce.Do(func() {
		s.media.StopAll()
		if s.links != nil {
			s.links.DestroyAll()
		}
		if s.channel != nil {
			s.channel.Close()
		}
		close(s.done)
	})
}

func (s *Session) emit(ev Event) {
	select {
	case s.events <- ev:
	default:
		slog.Warn("dropping session event", "kind", ev.Kind)
	}
}

// Events returns session notifications for rendering.
func (s *Session) Events() <-chan Event { return s.events }

// Done is closed once teardown has completed.
func (s *Session) Done() <-chan struct{} { return s.done }

// Roster returns the current participant snapshot in join order.
func (s *Session) Roster() []protocol.Participant { return s.roster.Snapshot() }

// IsHost reports whether the server acknowledged us as host.
func (s *Session) IsHost() bool { return s.roster.IsHost() }

// Messages returns the chat log snapshot.
func (s *Session) Messages() []protocol.ChatMessage { return s.chat.Messages() }

// Links exposes the peer link table for state inspection.
func (s *Session) Links() *LinkManager { return s.links }

// Media exposes the local media controller.
func (s *Session) Media() *MediaController { return s.media }

// Board exposes the whiteboard model.
func (s *Session) Board() *Whiteboard { return s.board }
