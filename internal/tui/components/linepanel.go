package components

import (
	comm "github.com/allbin/go-comm"
	"github.com/allbin/go-comm/internal/tui/styles"
	"github.com/charmbracelet/lipgloss"
)

// LinePanel renders modem line levels as a row of pills, inputs first.
func LinePanel(title string, ls comm.LineState, serial bool) string {
	parts := []string{styles.TitleStyle.Render(title)}
	if !serial {
		parts = append(parts, styles.LabelStyle.Render("no modem lines on parallel ports"))
		return lipgloss.JoinHorizontal(lipgloss.Center, parts...)
	}

	pill := func(name string, high bool) string {
		return styles.Signal(high).Render(name)
	}
	parts = append(parts,
		styles.LabelStyle.Render("in"),
		pill("CTS", ls.CTS), " ",
		pill("DSR", ls.DSR), " ",
		pill("RI", ls.RI), " ",
		pill("CD", ls.CD),
		styles.LabelStyle.Render("out"),
		pill("RTS", ls.RTS), " ",
		pill("DTR", ls.DTR),
	)
	return lipgloss.JoinHorizontal(lipgloss.Center, parts...)
}
