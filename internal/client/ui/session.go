package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/BioHazard786/warpmesh/internal/client/mesh"
	"github.com/BioHazard786/warpmesh/internal/protocol"
)

const maxLines = 200

// SendFunc delivers one chat line and reports how many peers got it.
type SendFunc func(text string) (int, error)

type peerView struct {
	id     protocol.PeerID
	name   string
	status mesh.EventKind
}

type line struct {
	at     time.Time
	from   string
	text   string
	self   bool
	system bool
}

type eventMsg mesh.Event

// eventsClosedMsg means the mesh is gone.
type eventsClosedMsg struct{}

// SessionModel is the interactive room view: peers on top, chat below, an
// input line at the bottom.
type SessionModel struct {
	room   protocol.RoomID
	self   string
	events <-chan mesh.Event
	done   <-chan struct{}
	send   SendFunc

	input   textinput.Model
	spinner spinner.Model

	peers []*peerView
	lines []line

	quitting bool
}

func NewSessionModel(room protocol.RoomID, self string, events <-chan mesh.Event, done <-chan struct{}, send SendFunc) *SessionModel {
	in := textinput.New()
	in.Placeholder = "Say something..."
	in.Prompt = "> "
	in.CharLimit = 1024
	in.Focus()

	s := spinner.New()
	s.Spinner = spinner.Points
	s.Style = SpinnerStyle

	return &SessionModel{
		room:    room,
		self:    self,
		events:  events,
		done:    done,
		send:    send,
		input:   in,
		spinner: s,
	}
}

func (m *SessionModel) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.spinner.Tick, m.listen())
}

func (m *SessionModel) listen() tea.Cmd {
	return func() tea.Msg {
		select {
		case ev := <-m.events:
			return eventMsg(ev)
		case <-m.done:
			return eventsClosedMsg{}
		}
	}
}

// Quitting reports whether the user asked to leave.
func (m *SessionModel) Quitting() bool { return m.quitting }

func (m *SessionModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			m.quitting = true
			return m, tea.Quit
		case tea.KeyEnter:
			m.submit()
			return m, nil
		}

	case tea.WindowSizeMsg:
		m.input.Width = max(10, msg.Width-4)
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case eventMsg:
		m.apply(mesh.Event(msg))
		return m, m.listen()

	case eventsClosedMsg:
		return m, tea.Quit
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *SessionModel) submit() {
	text := strings.TrimSpace(m.input.Value())
	m.input.Reset()
	if text == "" {
		return
	}
	if _, err := m.send(text); err != nil {
		m.system(fmt.Sprintf("not sent: %v", err))
		return
	}
	m.addLine(line{at: time.Now(), from: m.self, text: text, self: true})
}

func (m *SessionModel) apply(ev mesh.Event) {
	switch ev.Kind {
	case mesh.ChatReceived:
		m.addLine(line{at: ev.Chat.SentAt.Local(), from: m.nameOf(ev.Peer, ev.Chat.From), text: ev.Chat.Text})
		return
	case mesh.PeerLeft:
		m.system(m.nameOf(ev.Peer, ev.Name) + " left")
		m.removePeer(ev.Peer)
		return
	}

	p := m.peer(ev.Peer)
	switch ev.Kind {
	case mesh.PeerIdentified:
		p.name = ev.Name
		m.system(ev.Name + " joined")
	case mesh.PeerFailed:
		p.status = ev.Kind
		m.system(fmt.Sprintf("connection to %s failed", m.nameOf(ev.Peer, "")))
	default:
		p.status = ev.Kind
	}
}

func (m *SessionModel) peer(id protocol.PeerID) *peerView {
	for _, p := range m.peers {
		if p.id == id {
			return p
		}
	}
	p := &peerView{id: id, status: mesh.PeerConnecting}
	m.peers = append(m.peers, p)
	return p
}

func (m *SessionModel) removePeer(id protocol.PeerID) {
	for i, p := range m.peers {
		if p.id == id {
			m.peers = append(m.peers[:i], m.peers[i+1:]...)
			return
		}
	}
}

func (m *SessionModel) nameOf(id protocol.PeerID, fallback string) string {
	for _, p := range m.peers {
		if p.id == id && p.name != "" {
			return p.name
		}
	}
	if fallback != "" {
		return fallback
	}
	return id.Short()
}

func (m *SessionModel) system(text string) {
	m.addLine(line{at: time.Now(), text: text, system: true})
}

func (m *SessionModel) addLine(l line) {
	m.lines = append(m.lines, l)
	if len(m.lines) > maxLines {
		m.lines = m.lines[len(m.lines)-maxLines:]
	}
}

func (m *SessionModel) connected() int {
	n := 0
	for _, p := range m.peers {
		if p.status == mesh.PeerConnected {
			n++
		}
	}
	return n
}

func (m *SessionModel) View() string {
	if m.quitting {
		return MutedStyle.Render("Leaving room...") + "\n"
	}
	var b strings.Builder

	b.WriteString(HeaderStyle.Render(fmt.Sprintf("%s %s", IconRoom, m.room)))
	b.WriteString("\n")

	if len(m.peers) == 0 {
		b.WriteString(fmt.Sprintf("%s %s\n", m.spinner.View(), MutedStyle.Render("Waiting for peers...")))
	}
	for _, p := range m.peers {
		name := p.name
		if name == "" {
			name = p.id.Short()
		}
		b.WriteString(fmt.Sprintf("%s %s %s\n", IconPeer, BoldStyle.Render(name), statusText(p.status)))
	}
	b.WriteString("\n")

	for _, l := range m.lines {
		stamp := MutedStyle.Render(l.at.Format("15:04"))
		switch {
		case l.system:
			b.WriteString(fmt.Sprintf("%s %s\n", stamp, MutedStyle.Render("* "+l.text)))
		case l.self:
			b.WriteString(fmt.Sprintf("%s %s %s\n", stamp, SelfStyle.Render(l.from+":"), l.text))
		default:
			b.WriteString(fmt.Sprintf("%s %s %s\n", stamp, SenderStyle.Render(l.from+":"), l.text))
		}
	}

	b.WriteString("\n")
	b.WriteString(m.input.View())
	b.WriteString("\n")
	b.WriteString(FooterStyle.Render(fmt.Sprintf("%d connected · enter to send · esc to leave", m.connected())))
	return b.String()
}

func statusText(k mesh.EventKind) string {
	switch k {
	case mesh.PeerConnected:
		return SuccessStyle.Render("connected")
	case mesh.PeerFailed:
		return ErrorStyle.Render("failed")
	default:
		return WarningStyle.Render("connecting")
	}
}

// RunSession shows the model until the user leaves or the mesh closes.
func RunSession(m *SessionModel) error {
	_, err := tea.NewProgram(m).Run()
	return err
}
