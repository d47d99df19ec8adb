package components

import (
	"fmt"

	comm "github.com/allbin/go-comm"
	"github.com/allbin/go-comm/internal/tui/colors"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/evertras/bubble-table/table"
)

const (
	columnKeyTime   = "time"
	columnKeyEvent  = "event"
	columnKeyChange = "change"
	columnKeyDetail = "detail"

	// maxEvents bounds the history kept for display.
	maxEvents = 1000
)

// EventMsg carries one port event into the TUI. Data holds the bytes drained
// for a DATA_AVAILABLE event.
type EventMsg struct {
	Event comm.LineEvent
	Data  []byte
}

// EventTable lists port events newest first.
type EventTable struct {
	table  table.Model
	events []EventMsg
	width  int
	height int
}

func NewEventTable(width, height int) *EventTable {
	et := &EventTable{}
	et.table = table.New([]table.Column{
		table.NewColumn(columnKeyTime, "Time", 14),
		table.NewColumn(columnKeyEvent, "Event", 21),
		table.NewColumn(columnKeyChange, "Change", 12),
		table.NewFlexColumn(columnKeyDetail, "Detail", 1),
	}).
		BorderRounded().
		HeaderStyle(lipgloss.NewStyle().Bold(true).Foreground(colors.Text)).
		WithBaseStyle(lipgloss.NewStyle().Foreground(colors.Subtext1).BorderForeground(colors.Surface2)).
		Focused(true)
	et.SetSize(width, height)
	return et
}

// SetSize fits the table into width x height cells.
func (et *EventTable) SetSize(width, height int) {
	if width < 60 {
		width = 60
	}
	// header, borders and footer take six lines
	pageSize := height - 6
	if pageSize < 1 {
		pageSize = 1
	}
	et.width, et.height = width, height
	et.table = et.table.WithTargetWidth(width).WithPageSize(pageSize)
}

// Add records ev at the top of the table.
func (et *EventTable) Add(msg EventMsg) {
	et.events = append(et.events, msg)
	if len(et.events) > maxEvents {
		et.events = et.events[len(et.events)-maxEvents:]
	}
	et.refresh()
}

func (et *EventTable) refresh() {
	rows := make([]table.Row, 0, len(et.events))
	for i := len(et.events) - 1; i >= 0; i-- {
		rows = append(rows, formatEventRow(et.events[i]))
	}
	et.table = et.table.WithRows(rows)
}

func (et *EventTable) Clear() {
	et.events = nil
	et.table = et.table.WithRows(nil)
}

// Len returns the number of events kept.
func (et *EventTable) Len() int {
	return len(et.events)
}

// Events returns the kept events, oldest first.
func (et *EventTable) Events() []EventMsg {
	return et.events
}

func (et *EventTable) PageUp() {
	et.table = et.table.PageUp()
}

func (et *EventTable) PageDown() {
	et.table = et.table.PageDown()
}

func (et *EventTable) Update(msg tea.Msg) tea.Cmd {
	var cmd tea.Cmd
	et.table, cmd = et.table.Update(msg)
	return cmd
}

func (et *EventTable) View() string {
	return et.table.View()
}

// EventCategory groups kinds for coloring: line, data or error.
func EventCategory(kind comm.EventKind) string {
	switch kind {
	case comm.EventCTS, comm.EventDSR, comm.EventRI, comm.EventCD:
		return "line"
	case comm.EventDataAvailable, comm.EventOutputBufferEmpty:
		return "data"
	default:
		return "error"
	}
}

func formatEventRow(msg EventMsg) table.Row {
	ev := msg.Event
	category := EventCategory(ev.Kind)
	kindStyle := lipgloss.NewStyle().Foreground(colors.ForEvent(category)).Bold(true)

	change := ""
	detail := ""
	switch category {
	case "line":
		change = fmt.Sprintf("%s → %s", level(ev.OldValue), level(ev.NewValue))
	case "data":
		if len(msg.Data) > 0 {
			change = fmt.Sprintf("%d bytes", len(msg.Data))
			detail = fmt.Sprintf("% X", truncate(msg.Data, 24))
		}
	default:
		detail = errorDescription(ev.Kind)
	}

	return table.NewRow(table.RowData{
		columnKeyTime:   ev.Time.Format("15:04:05.000"),
		columnKeyEvent:  table.NewStyledCell(ev.Kind.String(), kindStyle),
		columnKeyChange: change,
		columnKeyDetail: detail,
	})
}

func level(high bool) string {
	if high {
		return "HIGH"
	}
	return "LOW"
}

func truncate(data []byte, n int) []byte {
	if len(data) > n {
		return data[:n]
	}
	return data
}

func errorDescription(kind comm.EventKind) string {
	switch kind {
	case comm.EventOverrunError:
		return "receive overrun"
	case comm.EventParityError:
		return "parity error"
	case comm.EventFramingError:
		return "framing error"
	case comm.EventBreakInterrupt:
		return "break received"
	default:
		return ""
	}
}
