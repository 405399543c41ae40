package ui

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/BioHazard786/sensorlink/internal/channel"
	"github.com/BioHazard786/sensorlink/internal/message"
	"github.com/BioHazard786/sensorlink/internal/session"
)

var ErrUIClosed = errors.New("ui closed")

// ViewMsg carries a new session view into the program.
type ViewMsg session.View

// SessionModel is the Bubble Tea model for a pairing session.
type SessionModel struct {
	view     session.View
	channel  channel.ID
	spinner  spinner.Model
	quitting bool
}

func NewSessionModel(role message.Role, id channel.ID) SessionModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = SpinnerStyle

	return SessionModel{
		view:    session.View{Role: role},
		channel: id,
		spinner: s,
	}
}

func (m SessionModel) Init() tea.Cmd {
	return m.spinner.Tick
}

func (m SessionModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		}

	case ViewMsg:
		m.view = session.View(msg)

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

func (m SessionModel) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder

	icon, title := IconReceive, "Receiving sensor data"
	if m.view.Role == message.RoleSender {
		icon, title = IconSend, "Sending sensor data"
	}
	b.WriteString(fmt.Sprintf("\n%s %s\n\n", icon, TitleStyle.Render(title)))

	v := m.view
	switch {
	case v.ConnectionState == session.Disconnected:
		b.WriteString(fmt.Sprintf("%s %s\n", IconDisconnect, MutedStyle.Render("Disconnected")))

	case v.ConnectionState == session.Connecting:
		b.WriteString(fmt.Sprintf("%s Connecting to broker...\n", m.spinner.View()))

	case v.PairingState == session.Pairing && v.Role == message.RoleReceiver:
		b.WriteString(ChannelInfo{ID: m.channel, ShareLink: v.ShareReference}.View())
		b.WriteString(fmt.Sprintf("\n\n%s Waiting for a sender...\n", m.spinner.View()))

	case v.PairingState == session.Pairing:
		b.WriteString(fmt.Sprintf("%s Pairing...\n", m.spinner.View()))

	case v.Role == message.RoleReceiver:
		b.WriteString(fmt.Sprintf("%s Paired with %s\n", IconPeer, BoldStyle.Render(v.RemoteID)))
		b.WriteString(MutedStyle.Render(fmt.Sprintf("%s Local id: %s   Latency: %s", IconTime, v.LocalID, v.Latency)))
		b.WriteString("\n\n")
		b.WriteString(SensorTableView(v.Snapshot))
		b.WriteString("\n")

	default:
		b.WriteString(fmt.Sprintf("%s %s\n", SuccessStyle.Render(IconSuccess), SuccessStyle.Render(fmt.Sprintf("Paired (%s)", v.LocalID))))
		b.WriteString(MutedStyle.Render(fmt.Sprintf("Streaming sensor data. Latency: %s", v.Latency)))
		b.WriteString("\n")
	}

	b.WriteString(FooterStyle.Render("Press q to quit"))
	return b.String()
}

// SessionUI runs a SessionModel and feeds it session views.
type SessionUI struct {
	program *tea.Program
	done    chan struct{}
	once    sync.Once
	err     error
}

func NewSessionUI(role message.Role, id channel.ID, opts ...tea.ProgramOption) *SessionUI {
	// Inline mode without alt screen keeps earlier output visible.
	return &SessionUI{
		program: tea.NewProgram(NewSessionModel(role, id), opts...),
		done:    make(chan struct{}),
	}
}

// Start runs the program in the background.
func (u *SessionUI) Start() {
	go func() {
		defer close(u.done)
		if _, err := u.program.Run(); err != nil {
			u.err = err
		}
	}()
}

// Render hands v to the program. It fails once the program has exited.
func (u *SessionUI) Render(v session.View) error {
	select {
	case <-u.done:
		return ErrUIClosed
	default:
	}
	u.program.Send(ViewMsg(v))
	return nil
}

// Done is closed when the program exits, including when the user quits.
func (u *SessionUI) Done() <-chan struct{} {
	return u.done
}

// Stop quits the program and waits for it to restore the terminal.
func (u *SessionUI) Stop() error {
	u.once.Do(u.program.Quit)
	<-u.done
	return u.err
}
