// Package models holds the Bubble Tea models behind commctl's interactive
// views.
package models

import (
	"time"

	comm "github.com/allbin/go-comm"
	"github.com/allbin/go-comm/internal/tui/components"
	"github.com/allbin/go-comm/internal/tui/keys"
	"github.com/allbin/go-comm/internal/tui/styles"
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

const (
	// tickInterval is how often line levels and counters are refreshed.
	tickInterval  = 250 * time.Millisecond
	breakDuration = 250 * time.Millisecond
)

type tickMsg time.Time

// OwnershipMsg reports an ownership change of the watched port.
type OwnershipMsg struct {
	Event comm.OwnershipEvent
}

// Watch shows the line levels of one acquired port and a live table of its
// events.
type Watch struct {
	port   *comm.Port
	serial bool

	table  *components.EventTable
	status *components.StatusBar
	help   help.Model
	keys   keys.WatchKeys

	lines  comm.LineState
	paused bool
	now    func() time.Time
}

func NewWatch(port *comm.Port) *Watch {
	m := &Watch{
		port:   port,
		serial: port.Kind() == comm.KindSerial,
		table:  components.NewEventTable(80, 20),
		status: components.NewStatusBar(port.Name(), port.Owner()),
		help:   help.New(),
		keys:   keys.NewWatchKeys(),
		now:    time.Now,
	}
	if m.serial {
		if sc, err := port.SerialConfig(); err == nil {
			m.status.SetLineSettings(&sc)
		}
	} else {
		m.status.SetLineSettings(nil)
	}
	m.refresh()
	return m
}

// EnableEvents turns on every notification the port supports.
func (m *Watch) EnableEvents() error {
	toggles := []func(bool) error{m.port.NotifyOnDataAvailable}
	if m.serial {
		toggles = append(toggles,
			m.port.NotifyOnCTS,
			m.port.NotifyOnDSR,
			m.port.NotifyOnRingIndicator,
			m.port.NotifyOnCarrierDetect,
			m.port.NotifyOnOverrunError,
			m.port.NotifyOnParityError,
			m.port.NotifyOnFramingError,
			m.port.NotifyOnBreakInterrupt,
		)
	}
	for _, enable := range toggles {
		if err := enable(true); err != nil {
			return err
		}
	}
	return nil
}

// Listener forwards port events to send. Input is drained on DATA_AVAILABLE
// so that every burst shows up as its own event.
func (m *Watch) Listener(send func(tea.Msg)) comm.EventListener {
	port := m.port
	return comm.EventListenerFunc(func(ev comm.LineEvent) {
		msg := components.EventMsg{Event: ev}
		if ev.Kind == comm.EventDataAvailable {
			msg.Data = drain(port)
		}
		send(msg)
	})
}

// OwnershipListener forwards ownership changes of the watched port to send.
func (m *Watch) OwnershipListener(send func(tea.Msg)) comm.OwnershipListener {
	return comm.OwnershipListenerFunc(func(_ string, ev comm.OwnershipEvent) {
		send(OwnershipMsg{Event: ev})
	})
}

func drain(port *comm.Port) []byte {
	avail, err := port.InputAvailable()
	if err != nil || avail == 0 {
		return nil
	}
	buf := make([]byte, avail)
	n, err := port.Read(buf)
	if err != nil {
		return nil
	}
	return buf[:n]
}

func (m *Watch) Lines() comm.LineState         { return m.lines }
func (m *Watch) Paused() bool                  { return m.paused }
func (m *Watch) Events() []components.EventMsg { return m.table.Events() }
func (m *Watch) Err() error                    { return m.status.Err() }

func tick() tea.Cmd {
	return tea.Tick(tickInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// refresh rereads line levels and counters.
func (m *Watch) refresh() {
	if m.serial {
		ls, err := m.port.Lines()
		if err != nil {
			m.status.SetError(err)
		} else {
			m.lines = ls
		}
	}
	m.status.SetStats(m.port.Stats())
}

func (m *Watch) apply(ev comm.LineEvent) {
	switch ev.Kind {
	case comm.EventCTS:
		m.lines.CTS = ev.NewValue
	case comm.EventDSR:
		m.lines.DSR = ev.NewValue
	case comm.EventRI:
		m.lines.RI = ev.NewValue
	case comm.EventCD:
		m.lines.CD = ev.NewValue
	}
}

func (m *Watch) setLine(set func(bool) error, state bool) {
	m.status.SetError(set(state))
	m.refresh()
}

func (m *Watch) Init() tea.Cmd {
	return tick()
}

func (m *Watch) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		// line panel, status bar and short help take a line each
		m.table.SetSize(msg.Width, msg.Height-4)
		m.status.SetWidth(msg.Width)
		m.help.Width = msg.Width

	case tickMsg:
		m.refresh()
		return m, tick()

	case components.EventMsg:
		m.apply(msg.Event)
		if !m.paused {
			m.table.Add(msg)
		}

	case OwnershipMsg:
		switch msg.Event {
		case comm.OwnershipRequested:
			m.status.SetNotice("another application requested this port")
		case comm.PortOwned:
			m.status.SetNotice("")
		}

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, m.keys.Help):
			m.help.ShowAll = !m.help.ShowAll
		case key.Matches(msg, m.keys.Clear):
			m.table.Clear()
		case key.Matches(msg, m.keys.Pause):
			m.paused = !m.paused
		case key.Matches(msg, m.keys.ToggleDTR):
			m.setLine(m.port.SetDTR, !m.lines.DTR)
		case key.Matches(msg, m.keys.ToggleRTS):
			m.setLine(m.port.SetRTS, !m.lines.RTS)
		case key.Matches(msg, m.keys.Break):
			m.status.SetError(m.port.SendBreak(breakDuration))
		case key.Matches(msg, m.keys.PageUp):
			m.table.PageUp()
		case key.Matches(msg, m.keys.PageDown):
			m.table.PageDown()
		}
	}
	return m, nil
}

func (m *Watch) View() string {
	parts := []string{
		components.LinePanel(m.port.Name(), m.lines, m.serial),
		styles.ContentBorderStyle.Render(m.table.View()),
	}
	if m.help.ShowAll {
		parts = append(parts, styles.HelpStyle.Render(m.help.View(m.keys)))
	} else {
		parts = append(parts, m.help.ShortHelpView(m.keys.ShortHelp()))
	}
	parts = append(parts, m.status.View(m.paused, m.now().Format("15:04:05")))
	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}
