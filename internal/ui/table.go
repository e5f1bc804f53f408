package ui

import (
	"fmt"
	"os"
	"time"

	"github.com/charmbracelet/lipgloss"
	lgtable "github.com/charmbracelet/lipgloss/table"
	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/Asmer72582/upscholar-live/internal/protocol"
)

// RosterView renders the participant table: name, role and live flags.
func RosterView(participants []protocol.Participant, selfID string) string {
	if len(participants) == 0 {
		return MutedStyle.Render("Nobody here yet")
	}

	headers := []string{"#", "Name", "Role", "Cam", "Mic", "Screen"}
	var rows [][]string
	for i, p := range participants {
		name := p.Name
		if p.ID == selfID {
			name += " (you)"
		}
		role := p.Role
		if p.Role == protocol.RoleHost {
			role = HostStyle.Render(IconHost + " " + p.Role)
		}
		rows = append(rows, []string{
			fmt.Sprintf("%d", i+1),
			name,
			role,
			flagIcon(p.Video, IconCamOn, IconCamOff),
			flagIcon(p.Audio, IconMicOn, IconMicOff),
			flagIcon(p.Screen, IconScreen, ""),
		})
	}

	tbl := lgtable.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(Primary)).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == lgtable.HeaderRow:
				return TableHeaderStyle
			case row%2 == 0:
				return TableRowStyle
			default:
				return TableRowAltStyle
			}
		})

	return tbl.Render()
}

func flagIcon(on bool, yes, no string) string {
	if on {
		return yes
	}
	return no
}

// SessionSummary captures what happened during an attendance, printed
// after leaving.
type SessionSummary struct {
	RoomID       string
	Duration     time.Duration
	Participants int
	ChatMessages int
	Strokes      int
}

// RenderSessionSummary prints the post-session recap table.
func RenderSessionSummary(s SessionSummary) {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"Metric", "Value"})
	t.AppendRows([]table.Row{
		{"Room", s.RoomID},
		{"Duration", s.Duration.Round(time.Second).String()},
		{"Participants seen", s.Participants},
		{"Chat messages", s.ChatMessages},
		{"Whiteboard strokes", s.Strokes},
	})
	t.Render()
}

// RoomBanner renders the joined-room box with the browser link.
func RoomBanner(roomID, roomLink string) string {
	boxStyle := lipgloss.NewStyle().
		Border(lipgloss.DoubleBorder()).
		BorderForeground(Success).
		Padding(1, 2)

	content := fmt.Sprintf("%s Joined classroom!\n\n%s Room ID:  %s\n%s Web link: %s",
		IconSuccess,
		IconRoom, BoldStyle.Foreground(Primary).Render(roomID),
		IconWeb, MutedStyle.Render(roomLink),
	)

	return boxStyle.Render(content)
}
