package session

import (
	"sync"

	"github.com/Asmer72582/upscholar-live/internal/protocol"
)

// Roster is the locally observed view of who is in the room. It is the
// sole owner of the participant set; every other component reads it
// through snapshots and mutates it only via the methods here.
type Roster struct {
	mu     sync.RWMutex
	selfID string
	isHost bool
	order  []string
	byID   map[string]*protocol.Participant
}

func NewRoster(selfID string) *Roster {
	return &Roster{
		selfID: selfID,
		byID:   make(map[string]*protocol.Participant),
	}
}

// Bootstrap replaces the participant set wholesale with the server's
// list. Called on every join acknowledgment, including the one after a
// reconnect, which must be treated as a fresh bootstrap.
func (r *Roster) Bootstrap(participants []protocol.Participant, isHost bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.isHost = isHost
	r.order = r.order[:0]
	r.byID = make(map[string]*protocol.Participant, len(participants))
	for i := range participants {
		p := participants[i]
		r.order = append(r.order, p.ID)
		r.byID[p.ID] = &p
	}
}

// Add appends one participant. Returns false if the id is already
// tracked.
func (r *Roster) Add(p protocol.Participant) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byID[p.ID]; ok {
		return false
	}
	r.order = append(r.order, p.ID)
	r.byID[p.ID] = &p
	return true
}

// Remove drops a participant. Returns false for an unknown id.
func (r *Roster) Remove(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byID[id]; !ok {
		return false
	}
	delete(r.byID, id)
	for i, oid := range r.order {
		if oid == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return true
}

// ApplyFlags mutates the capability flags of one participant. Flag
// changes never touch link state.
func (r *Roster) ApplyFlags(id string, flags protocol.UpdateParticipantPayload) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.byID[id]
	if !ok {
		return false
	}
	p.Video = flags.Video
	p.Audio = flags.Audio
	p.Screen = flags.Screen
	return true
}

// Get returns a copy of one participant.
func (r *Roster) Get(id string) (protocol.Participant, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.byID[id]
	if !ok {
		return protocol.Participant{}, false
	}
	return *p, true
}

// Snapshot returns the roster in join order.
func (r *Roster) Snapshot() []protocol.Participant {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]protocol.Participant, 0, len(r.order))
	for _, id := range r.order {
		if p, ok := r.byID[id]; ok {
			out = append(out, *p)
		}
	}
	return out
}

// RemoteIDs returns every tracked participant id except self.
func (r *Roster) RemoteIDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]string, 0, len(r.order))
	for _, id := range r.order {
		if id != r.selfID {
			out = append(out, id)
		}
	}
	return out
}

func (r *Roster) SelfID() string { return r.selfID }

func (r *Roster) IsHost() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.isHost
}

func (r *Roster) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}
