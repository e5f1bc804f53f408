package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/Asmer72582/upscholar-live/internal/protocol"
	"github.com/Asmer72582/upscholar-live/internal/session"
)

const chatWindow = 12

// sessionEventMsg wraps one session notification for the update loop.
type sessionEventMsg struct {
	event session.Event
	ok    bool
}

// meetingModel is the live classroom view: roster on top, a scrolling
// chat window, an input line with slash commands, and a status bar.
type meetingModel struct {
	sess   *session.Session
	roomID string
	selfID string

	input    textinput.Model
	chatLog  []string
	roster   []protocol.Participant
	status   string
	quitting bool
}

// RunMeeting drives the interactive meeting view until the user leaves
// or the meeting ends. It blocks the calling goroutine.
func RunMeeting(sess *session.Session, roomID, selfID string) error {
	input := textinput.New()
	input.Placeholder = "message, or /mute /video /share /board /clear /leave"
	input.CharLimit = 512
	input.Focus()

	m := meetingModel{
		sess:   sess,
		roomID: roomID,
		selfID: selfID,
		input:  input,
		roster: sess.Roster(),
		status: "connected",
	}

	_, err := tea.NewProgram(m).Run()
	return err
}

func (m meetingModel) Init() tea.Cmd {
	return tea.Batch(m.listen(), textinput.Blink)
}

// listen waits for the next session event.
func (m meetingModel) listen() tea.Cmd {
	return func() tea.Msg {
		select {
		case ev, ok := <-m.sess.Events():
			return sessionEventMsg{event: ev, ok: ok}
		case <-m.sess.Done():
			return sessionEventMsg{ok: false}
		}
	}
}

func (m meetingModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			m.sess.Leave()
			m.quitting = true
			return m, tea.Quit
		case tea.KeyEnter:
			return m.submit()
		}

	case sessionEventMsg:
		if !msg.ok {
			m.quitting = true
			return m, tea.Quit
		}
		m.apply(msg.event)
		if msg.event.Kind == session.EventEnded {
			m.quitting = true
			return m, tea.Quit
		}
		return m, m.listen()
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *meetingModel) submit() (tea.Model, tea.Cmd) {
	line := strings.TrimSpace(m.input.Value())
	m.input.SetValue("")
	if line == "" {
		return m, nil
	}

	if strings.HasPrefix(line, "/") {
		m.command(line)
		if m.quitting {
			return m, tea.Quit
		}
		return m, nil
	}

	chat := m.sess.SendChat(line)
	m.appendChat(chat)
	return m, nil
}

func (m *meetingModel) command(line string) {
	switch strings.Fields(line)[0] {
	case "/mute":
		on := m.sess.ToggleAudio()
		m.status = fmt.Sprintf("microphone %s", onOff(on))
	case "/video":
		on := m.sess.ToggleVideo()
		m.status = fmt.Sprintf("camera %s", onOff(on))
	case "/share":
		if m.sess.Media().Sharing() {
			m.sess.StopScreenShare()
			m.status = "screen share stopped"
		} else if err := m.sess.StartScreenShare(); err != nil {
			m.status = err.Error()
		} else {
			m.status = "sharing screen"
		}
	case "/board":
		m.status = fmt.Sprintf("whiteboard: %d strokes, %d painted cells",
			len(m.sess.Board().Strokes()), m.sess.Board().PaintedCells())
	case "/clear":
		m.sess.ClearWhiteboard()
		m.status = "whiteboard cleared"
	case "/end":
		if err := m.sess.EndMeeting(); err != nil {
			m.status = err.Error()
			return
		}
		m.quitting = true
	case "/leave":
		m.sess.Leave()
		m.quitting = true
	default:
		m.status = "unknown command " + line
	}
}

func (m *meetingModel) apply(ev session.Event) {
	switch ev.Kind {
	case session.EventRosterChanged:
		m.roster = m.sess.Roster()
	case session.EventChat:
		if ev.Chat != nil {
			m.appendChat(*ev.Chat)
		}
	case session.EventWhiteboard:
		m.status = fmt.Sprintf("%s whiteboard updated", IconBoard)
	case session.EventPeerConnected:
		m.status = fmt.Sprintf("media flowing with %s", m.nameOf(ev.Participant))
	case session.EventPeerClosed:
		m.status = fmt.Sprintf("connection to %s lost", m.nameOf(ev.Participant))
	case session.EventReconnected:
		m.status = "reconnected, refreshing roster"
	case session.EventError:
		if ev.Err != nil {
			m.status = ev.Err.Error()
		}
	}
}

func (m *meetingModel) appendChat(chat protocol.ChatMessage) {
	style := ChatSenderStyle
	if chat.SenderID == m.selfID {
		style = ChatSelfStyle
	}
	line := fmt.Sprintf("%s %s %s",
		MutedStyle.Render(chat.SentAt.Format("15:04")),
		style.Render(chat.SenderName+":"),
		chat.Body,
	)
	m.chatLog = append(m.chatLog, line)
	if len(m.chatLog) > chatWindow {
		m.chatLog = m.chatLog[len(m.chatLog)-chatWindow:]
	}
}

func (m *meetingModel) nameOf(id string) string {
	for _, p := range m.roster {
		if p.ID == id {
			return p.Name
		}
	}
	return id
}

func (m meetingModel) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder
	b.WriteString(TitleStyle.Render(fmt.Sprintf("%s  %s", IconRoom, m.roomID)))
	b.WriteString("\n")
	b.WriteString(RosterView(m.roster, m.selfID))
	b.WriteString("\n\n")

	if len(m.chatLog) == 0 {
		b.WriteString(MutedStyle.Render(IconChat + "  no messages yet"))
		b.WriteString("\n")
	} else {
		b.WriteString(strings.Join(m.chatLog, "\n"))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(m.input.View())
	b.WriteString("\n")
	b.WriteString(StatusBarStyle.Render(m.status))
	b.WriteString("\n")
	return b.String()
}

func onOff(on bool) string {
	if on {
		return "on"
	}
	return "off"
}
