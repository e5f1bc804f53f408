package session

import (
	"log/slog"
	"sync"

	"github.com/pion/webrtc/v4"

	"github.com/Asmer72582/upscholar-live/internal/protocol"
)

// LinkState is the lifecycle of one peer link.
type LinkState int

const (
	LinkIdle LinkState = iota
	LinkNegotiating
	LinkConnected
	LinkClosed
)

func (s LinkState) String() string {
	switch s {
	case LinkIdle:
		return "idle"
	case LinkNegotiating:
		return "negotiating"
	case LinkConnected:
		return "connected"
	case LinkClosed:
		return "closed"
	}
	return "unknown"
}

// LinkRole says which side of the offer/answer exchange we are on.
type LinkRole int

const (
	RoleInitiator LinkRole = iota
	RoleResponder
)

// Peer is the negotiation surface of one underlying media connection.
// The production implementation wraps a pion PeerConnection; tests
// substitute in-memory fakes so negotiation logic stays independent of
// transport concerns.
type Peer interface {
	// CreateOffer produces a local offer SDP and stores it as the local
	// description.
	CreateOffer() (string, error)

	// AcceptOffer applies a remote offer and returns the answer SDP.
	AcceptOffer(sdp string) (string, error)

	// AcceptAnswer applies a remote answer.
	AcceptAnswer(sdp string) error

	// AddCandidate applies one remote ICE candidate. Only valid after a
	// remote description has been applied.
	AddCandidate(c webrtc.ICECandidateInit) error

	// ReplaceVideoTrack swaps the outgoing video track in place, without
	// an offer/answer cycle.
	ReplaceVideoTrack(t webrtc.TrackLocal) error

	Close() error
}

// PeerEvents are the callbacks a Peer implementation invokes from its
// transport goroutines.
type PeerEvents struct {
	OnCandidate   func(webrtc.ICECandidateInit)
	OnConnected   func()
	OnFailed      func(err error)
	OnRemoteTrack func(track *webrtc.TrackRemote)
}

// PeerFactory builds the Peer for one remote participant.
type PeerFactory func(remoteID string, events PeerEvents) (Peer, error)

// LinkNotification tells the session about link-level happenings.
type LinkNotification struct {
	RemoteID string
	State    LinkState
	Track    *webrtc.TrackRemote
	Err      error
}

// Link is the directed pairing from self to one remote participant.
// PeerLinks live only in the manager's table; consumers look links up by
// participant id instead of holding references.
type Link struct {
	remoteID string
	role     LinkRole
	state    LinkState
	peer     Peer

	// Candidates that arrived before the remote description; flushed
	// once it is applied.
	pendingCandidates []webrtc.ICECandidateInit
	remoteDescSet     bool

	remoteTracks []*webrtc.TrackRemote
}

// LinkManager owns the PeerLink table: one link per remote participant,
// at most. It is the only writer of inbound streams.
type LinkManager struct {
	mu      sync.Mutex
	selfID  string
	newPeer PeerFactory
	send    func(*protocol.Message)
	notify  func(LinkNotification)
	links   map[string]*Link
}

func NewLinkManager(selfID string, factory PeerFactory, send func(*protocol.Message), notify func(LinkNotification)) *LinkManager {
	if notify == nil {
		notify = func(LinkNotification) {}
	}
	return &LinkManager{
		selfID:  selfID,
		newPeer: factory,
		send:    send,
		notify:  notify,
		links:   make(map[string]*Link),
	}
}

// ShouldInitiate is the glare tie-break: for any unordered pair of
// identities exactly one side initiates, the one with the
// lexicographically smaller id. Every client applies this rule to its
// local roster view and arrives at the same decision.
func ShouldInitiate(selfID, remoteID string) bool {
	return selfID < remoteID
}

// EvaluateInitiation creates an initiator link toward remoteID if the
// tie-break elects us; otherwise it does nothing and waits for the
// remote offer to create the link lazily.
func (m *LinkManager) EvaluateInitiation(remoteID string) {
	if !ShouldInitiate(m.selfID, remoteID) {
		return
	}
	m.EnsureLink(remoteID, RoleInitiator)
}

// EnsureLink registers a link for remoteID. Registration is idempotent:
// a second call for an already-tracked id is a no-op regardless of
// role, which is what defuses the duplicate-creation race.
func (m *LinkManager) EnsureLink(remoteID string, role LinkRole) {
	m.mu.Lock()
	if _, ok := m.links[remoteID]; ok {
		m.mu.Unlock()
		return
	}

	link, err := m.createLinkLocked(remoteID, role)
	m.mu.Unlock()
	if err != nil {
		slog.Warn("link create failed", "participant", remoteID, "err", err)
		m.notify(LinkNotification{RemoteID: remoteID, State: LinkClosed, Err: err})
		return
	}

	if role == RoleInitiator {
		m.sendOffer(link)
	}
}

// createLinkLocked builds the peer and registers the link. Callers hold
// the manager lock.
func (m *LinkManager) createLinkLocked(remoteID string, role LinkRole) (*Link, error) {
	events := PeerEvents{
		OnCandidate: func(c webrtc.ICECandidateInit) {
			m.sendCandidate(remoteID, c)
		},
		OnConnected: func() {
			m.markConnected(remoteID)
		},
		OnFailed: func(err error) {
			m.failLink(remoteID, err)
		},
		OnRemoteTrack: func(track *webrtc.TrackRemote) {
			m.addRemoteTrack(remoteID, track)
		},
	}

	peer, err := m.newPeer(remoteID, events)
	if err != nil {
		return nil, NewLinkError("create link", remoteID, err)
	}

	link := &Link{
		remoteID: remoteID,
		role:     role,
		state:    LinkNegotiating,
		peer:     peer,
	}
	m.links[remoteID] = link
	return link, nil
}

func (m *LinkManager) sendOffer(link *Link) {
	sdp, err := link.peer.CreateOffer()
	if err != nil {
		m.failLink(link.remoteID, NewLinkError("create offer", link.remoteID, err))
		return
	}

	msg, err := protocol.NewMessage(protocol.MessageTypeOffer, protocol.SDPPayload{SDP: sdp})
	if err != nil {
		m.failLink(link.remoteID, NewLinkError("encode offer", link.remoteID, err))
		return
	}
	msg.From = m.selfID
	msg.To = link.remoteID
	m.send(msg)
}

func (m *LinkManager) sendCandidate(remoteID string, c webrtc.ICECandidateInit) {
	msg, err := protocol.NewMessage(protocol.MessageTypeICECandidate, protocol.ICECandidatePayload{Candidate: c})
	if err != nil {
		return
	}
	msg.From = m.selfID
	msg.To = remoteID
	m.send(msg)
}

// HandleSignal routes an offer/answer/candidate envelope to the link for
// its sender. An offer for an unknown sender lazily creates a
// responder-role link, so a link can come into existence from either
// direction.
func (m *LinkManager) HandleSignal(msg *protocol.Message) {
	switch msg.Type {
	case protocol.MessageTypeOffer:
		m.handleOffer(msg)
	case protocol.MessageTypeAnswer:
		m.handleAnswer(msg)
	case protocol.MessageTypeICECandidate:
		m.handleCandidate(msg)
	}
}

func (m *LinkManager) handleOffer(msg *protocol.Message) {
	var payload protocol.SDPPayload
	if err := msg.DecodePayload(&payload); err != nil || payload.SDP == "" {
		slog.Warn("bad offer payload", "from", msg.From)
		return
	}

	m.mu.Lock()
	link, ok := m.links[msg.From]
	if ok && link.role == RoleInitiator && !link.remoteDescSet {
		// Glare: both sides sent an offer. The tie-break says the
		// smaller id is the initiator, so its own offer stands and the
		// remote one is discarded; the remote side answers ours.
		if ShouldInitiate(m.selfID, msg.From) {
			m.mu.Unlock()
			slog.Debug("discarding glare offer", "from", msg.From)
			return
		}
	}
	if !ok {
		var err error
		link, err = m.createLinkLocked(msg.From, RoleResponder)
		if err != nil {
			m.mu.Unlock()
			slog.Warn("lazy link create failed", "participant", msg.From, "err", err)
			return
		}
	}
	peer := link.peer
	m.mu.Unlock()

	answer, err := peer.AcceptOffer(payload.SDP)
	if err != nil {
		m.failLink(msg.From, NewLinkError("accept offer", msg.From, err))
		return
	}
	m.remoteDescApplied(msg.From)

	out, err := protocol.NewMessage(protocol.MessageTypeAnswer, protocol.SDPPayload{SDP: answer})
	if err != nil {
		return
	}
	out.From = m.selfID
	out.To = msg.From
	m.send(out)
}

func (m *LinkManager) handleAnswer(msg *protocol.Message) {
	var payload protocol.SDPPayload
	if err := msg.DecodePayload(&payload); err != nil || payload.SDP == "" {
		return
	}

	m.mu.Lock()
	link, ok := m.links[msg.From]
	m.mu.Unlock()
	if !ok {
		slog.Debug("answer for unknown link", "from", msg.From)
		return
	}

	if err := link.peer.AcceptAnswer(payload.SDP); err != nil {
		m.failLink(msg.From, NewLinkError("accept answer", msg.From, err))
		return
	}
	m.remoteDescApplied(msg.From)
}

func (m *LinkManager) handleCandidate(msg *protocol.Message) {
	var payload protocol.ICECandidatePayload
	if err := msg.DecodePayload(&payload); err != nil {
		return
	}

	m.mu.Lock()
	link, ok := m.links[msg.From]
	if !ok {
		// Candidates never create links; only offers do.
		m.mu.Unlock()
		return
	}
	if !link.remoteDescSet {
		link.pendingCandidates = append(link.pendingCandidates, payload.Candidate)
		m.mu.Unlock()
		return
	}
	peer := link.peer
	m.mu.Unlock()

	if err := peer.AddCandidate(payload.Candidate); err != nil {
		slog.Warn("add candidate failed", "participant", msg.From, "err", err)
	}
}

// remoteDescApplied flushes candidates that were queued while the remote
// description was still missing.
func (m *LinkManager) remoteDescApplied(remoteID string) {
	m.mu.Lock()
	link, ok := m.links[remoteID]
	if !ok {
		m.mu.Unlock()
		return
	}
	link.remoteDescSet = true
	queued := link.pendingCandidates
	link.pendingCandidates = nil
	peer := link.peer
	m.mu.Unlock()

	for _, c := range queued {
		if err := peer.AddCandidate(c); err != nil {
			slog.Warn("flush candidate failed", "participant", remoteID, "err", err)
		}
	}
}

func (m *LinkManager) markConnected(remoteID string) {
	m.mu.Lock()
	link, ok := m.links[remoteID]
	if !ok || link.state == LinkClosed {
		m.mu.Unlock()
		return
	}
	link.state = LinkConnected
	m.mu.Unlock()

	m.notify(LinkNotification{RemoteID: remoteID, State: LinkConnected})
}

// failLink isolates a negotiation failure to the one link it concerns:
// the link is destroyed, the rest of the room is untouched, and a new
// attempt happens naturally if the roster signals the participant again.
func (m *LinkManager) failLink(remoteID string, err error) {
	slog.Warn("link failed", "participant", remoteID, "err", err)
	m.DestroyLink(remoteID)
	m.notify(LinkNotification{
		RemoteID: remoteID,
		State:    LinkClosed,
		Err:      NewLinkError("negotiate", remoteID, ErrNegotiationFailed),
	})
}

func (m *LinkManager) addRemoteTrack(remoteID string, track *webrtc.TrackRemote) {
	m.mu.Lock()
	link, ok := m.links[remoteID]
	if !ok || link.state == LinkClosed {
		m.mu.Unlock()
		return
	}
	link.remoteTracks = append(link.remoteTracks, track)
	state := link.state
	m.mu.Unlock()

	m.notify(LinkNotification{RemoteID: remoteID, State: state, Track: track})
}

// DestroyLink releases the connection for remoteID and removes the
// entry. Always safe to call on an absent id, and purely local: there is
// no cancel handshake with the remote side.
func (m *LinkManager) DestroyLink(remoteID string) {
	m.mu.Lock()
	link, ok := m.links[remoteID]
	if !ok {
		m.mu.Unlock()
		return
	}
	link.state = LinkClosed
	link.remoteTracks = nil
	delete(m.links, remoteID)
	m.mu.Unlock()

	if err := link.peer.Close(); err != nil {
		slog.Debug("peer close", "participant", remoteID, "err", err)
	}
}

// DestroyAll tears down every link.
func (m *LinkManager) DestroyAll() {
	m.mu.Lock()
	ids := make([]string, 0, len(m.links))
	for id := range m.links {
		ids = append(ids, id)
	}
	m.mu.Unlock()

	for _, id := range ids {
		m.DestroyLink(id)
	}
}

// SubstituteVideoTrack swaps the outgoing video track on every live
// link in place. A link that does not support substitution falls back to
// a targeted renegotiation, leaving the other links untouched.
func (m *LinkManager) SubstituteVideoTrack(track webrtc.TrackLocal) {
	m.mu.Lock()
	live := make([]*Link, 0, len(m.links))
	for _, link := range m.links {
		if link.state == LinkConnected || link.state == LinkNegotiating {
			live = append(live, link)
		}
	}
	m.mu.Unlock()

	for _, link := range live {
		if err := link.peer.ReplaceVideoTrack(track); err != nil {
			slog.Warn("track substitution failed, renegotiating",
				"participant", link.remoteID, "err", NewLinkError("substitute", link.remoteID, ErrTrackSubstitutionFailed))
			m.sendOffer(link)
		}
	}
}

// State reports the state of the link for remoteID.
func (m *LinkManager) State(remoteID string) (LinkState, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	link, ok := m.links[remoteID]
	if !ok {
		return LinkClosed, false
	}
	return link.state, true
}

// Role reports the negotiation role of the link for remoteID.
func (m *LinkManager) Role(remoteID string) (LinkRole, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	link, ok := m.links[remoteID]
	if !ok {
		return RoleResponder, false
	}
	return link.role, true
}

// RemoteTracks returns the inbound media for remoteID.
func (m *LinkManager) RemoteTracks(remoteID string) []*webrtc.TrackRemote {
	m.mu.Lock()
	defer m.mu.Unlock()

	link, ok := m.links[remoteID]
	if !ok {
		return nil
	}
	out := make([]*webrtc.TrackRemote, len(link.remoteTracks))
	copy(out, link.remoteTracks)
	return out
}

// Count returns the number of tracked links.
func (m *LinkManager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.links)
}

// IDs returns the tracked remote participant ids.
func (m *LinkManager) IDs() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]string, 0, len(m.links))
	for id := range m.links {
		out = append(out, id)
	}
	return out
}
