package components

import (
	"fmt"

	comm "github.com/allbin/go-comm"
	"github.com/allbin/go-comm/internal/tui/colors"
	"github.com/allbin/go-comm/internal/tui/styles"
	"github.com/charmbracelet/lipgloss"
)

// StatusBar is the single line at the bottom of the watch view.
type StatusBar struct {
	port   string
	owner  string
	line   string
	stats  comm.PortStats
	err    error
	width  int
	notice string
}

func NewStatusBar(port, owner string) *StatusBar {
	return &StatusBar{port: port, owner: owner}
}

func (sb *StatusBar) SetWidth(width int) {
	sb.width = width
}

// SetLineSettings shows the serial configuration; parallel ports have none.
func (sb *StatusBar) SetLineSettings(sc *comm.SerialConfig) {
	if sc == nil {
		sb.line = "parallel"
		return
	}
	sb.line = fmt.Sprintf("%d %d%s%s %s", sc.BaudRate, sc.DataBits, sc.Parity, sc.StopBits, sc.FlowControl)
}

func (sb *StatusBar) SetStats(stats comm.PortStats) {
	sb.stats = stats
}

func (sb *StatusBar) SetError(err error) {
	sb.err = err
}

func (sb *StatusBar) Err() error {
	return sb.err
}

// SetNotice shows a transient message, such as an ownership request.
func (sb *StatusBar) SetNotice(notice string) {
	sb.notice = notice
}

// View renders the bar: mode, port and owner on the left; settings,
// counters and time on the right.
func (sb *StatusBar) View(paused bool, timestamp string) string {
	terminalWidth := sb.width
	if terminalWidth <= 0 {
		terminalWidth = 80
	}

	modeText := "LIVE"
	if paused {
		modeText = "PAUSED"
	}
	mode := styles.ModeStyle(paused).Render(modeText)

	portStyle := lipgloss.NewStyle().
		Foreground(colors.Mauve).
		Bold(true).
		Padding(0, 1)
	port := portStyle.Render(sb.port)

	var indicator string
	if sb.err != nil {
		indicator = lipgloss.NewStyle().Foreground(colors.Red).Render("✗ " + sb.err.Error())
	} else {
		indicator = lipgloss.NewStyle().Foreground(colors.Green).Render("● " + sb.owner)
	}

	dividerStyle := lipgloss.NewStyle().
		Foreground(colors.Surface2).
		Padding(0, 1)
	divider := dividerStyle.Render("│")

	leftParts := []string{mode, port, indicator}
	if sb.notice != "" {
		noticeStyle := lipgloss.NewStyle().
			Foreground(colors.Peach).
			Bold(true).
			Padding(0, 1)
		leftParts = append(leftParts, noticeStyle.Render(sb.notice))
	}
	leftParts = append(leftParts, divider)
	leftSide := lipgloss.JoinHorizontal(lipgloss.Left, leftParts...)

	infoStyle := lipgloss.NewStyle().
		Foreground(colors.Subtext0).
		Padding(0, 1)
	settings := infoStyle.Render("⚡ " + sb.line)
	counters := infoStyle.Render(fmt.Sprintf("rx %d tx %d ev %d", sb.stats.BytesRead, sb.stats.BytesWritten, sb.stats.EventsDelivered))

	timeStyle := lipgloss.NewStyle().
		Foreground(colors.Subtext1).
		Padding(0, 1)
	rightSide := lipgloss.JoinHorizontal(lipgloss.Left, settings, divider, counters, divider, timeStyle.Render(timestamp))

	spacerWidth := terminalWidth - lipgloss.Width(leftSide) - lipgloss.Width(rightSide)
	if spacerWidth < 1 {
		spacerWidth = 1
	}
	spacer := lipgloss.NewStyle().Width(spacerWidth).Render("")

	statusBarStyle := lipgloss.NewStyle().
		Foreground(colors.Text).
		Background(colors.Surface0).
		Width(terminalWidth)

	return statusBarStyle.Render(lipgloss.JoinHorizontal(lipgloss.Left, leftSide, spacer, rightSide))
}
