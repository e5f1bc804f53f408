package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Asmer72582/upscholar-live/internal/protocol"
)

func rosterFixture() []protocol.Participant {
	return []protocol.Participant{
		{ID: "aaa", Name: "Host", Role: protocol.RoleHost, Video: true, Audio: true},
		{ID: "bbb", Name: "Ada", Role: protocol.RoleAttendee, Video: true, Audio: true},
		{ID: "ccc", Name: "Lin", Role: protocol.RoleAttendee, Audio: true},
	}
}

func TestBootstrapReplacesWholesale(t *testing.T) {
	r := NewRoster("bbb")
	r.Add(protocol.Participant{ID: "stale"})

	r.Bootstrap(rosterFixture(), false)

	assert.Equal(t, 3, r.Len())
	_, ok := r.Get("stale")
	assert.False(t, ok)

	snapshot := r.Snapshot()
	require.Len(t, snapshot, 3)
	// Join order from the server is preserved.
	assert.Equal(t, "aaa", snapshot[0].ID)
	assert.Equal(t, "ccc", snapshot[2].ID)
}

func TestAddRejectsDuplicates(t *testing.T) {
	r := NewRoster("self")

	assert.True(t, r.Add(protocol.Participant{ID: "bbb"}))
	assert.False(t, r.Add(protocol.Participant{ID: "bbb"}))
	assert.Equal(t, 1, r.Len())
}

func TestRemoveUnknownIsNoop(t *testing.T) {
	r := NewRoster("self")
	r.Add(protocol.Participant{ID: "bbb"})

	assert.False(t, r.Remove("zzz"))
	assert.True(t, r.Remove("bbb"))
	assert.False(t, r.Remove("bbb"))
}

func TestApplyFlagsMutatesInPlace(t *testing.T) {
	r := NewRoster("self")
	r.Bootstrap(rosterFixture(), false)

	ok := r.ApplyFlags("bbb", protocol.UpdateParticipantPayload{Video: false, Audio: true, Screen: true})
	require.True(t, ok)

	p, ok := r.Get("bbb")
	require.True(t, ok)
	assert.False(t, p.Video)
	assert.True(t, p.Screen)

	// Position in the roster is unchanged.
	assert.Equal(t, "bbb", r.Snapshot()[1].ID)

	assert.False(t, r.ApplyFlags("zzz", protocol.UpdateParticipantPayload{}))
}

func TestRemoteIDsExcludesSelf(t *testing.T) {
	r := NewRoster("bbb")
	r.Bootstrap(rosterFixture(), false)

	assert.Equal(t, []string{"aaa", "ccc"}, r.RemoteIDs())
}

func TestIsHostFollowsBootstrap(t *testing.T) {
	r := NewRoster("aaa")
	assert.False(t, r.IsHost())

	r.Bootstrap(rosterFixture(), true)
	assert.True(t, r.IsHost())

	// A rejoin ack can demote; the server's word is final.
	r.Bootstrap(rosterFixture(), false)
	assert.False(t, r.IsHost())
}
