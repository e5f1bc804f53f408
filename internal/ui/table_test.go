package ui

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Asmer72582/upscholar-live/internal/protocol"
)

func TestRosterViewMarksHost(t *testing.T) {
	out := RosterView([]protocol.Participant{
		{ID: "aaa", Name: "Teacher", Role: protocol.RoleHost, Video: true, Audio: true},
		{ID: "bbb", Name: "Ada", Role: protocol.RoleAttendee, Video: true, Audio: true},
	}, "bbb")

	assert.Contains(t, out, IconHost, "the host row carries the host marker")
	assert.Equal(t, 1, strings.Count(out, IconHost), "attendees are not marked as host")
	assert.Contains(t, out, "Ada (you)")
}

func TestRosterViewEmpty(t *testing.T) {
	out := RosterView(nil, "self")
	assert.Contains(t, out, "Nobody here yet")
}
