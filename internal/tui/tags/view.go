package tags

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattsolo1/grove-core/tui/theme"
)

const (
	keyWidth   = 24
	valueWidth = 36
)

func (m Model) View() string {
	if m.help.ShowAll {
		return m.help.View()
	}
	if m.confirm.Active() {
		return "\n" + m.confirm.View()
	}

	rows, _, editing := m.rows()
	title := fmt.Sprintf("Tags of %s", m.view.Owner())
	if editing {
		title += " [editing]"
	}
	header := theme.DefaultTheme.Header.Render(title)
	count := theme.DefaultTheme.Muted.Render(fmt.Sprintf("%d tags", len(rows)))

	fullView := lipgloss.JoinVertical(lipgloss.Left,
		header,
		count,
		"",
		m.renderTable(),
		"",
		m.renderStatus(),
		m.help.View(),
	)
	return "\n" + fullView
}

func (m Model) renderTable() string {
	rows, selected, editing := m.rows()
	if len(rows) == 0 {
		if editing {
			return theme.DefaultTheme.Muted.Render("No tags. Press o to add one.")
		}
		return theme.DefaultTheme.Muted.Render("No tags. Press e to start editing.")
	}

	marks := make(map[int]bool, len(selected))
	for _, i := range selected {
		marks[i] = true
	}

	var b strings.Builder
	b.WriteString(theme.DefaultTheme.TableHeader.Render(fmt.Sprintf("    %-3s %-*s %-*s %s", "#", keyWidth, "Key", valueWidth, "Value", "Created By")))
	b.WriteString("\n")

	for i, row := range rows {
		cursor := "  "
		if i == m.cursor {
			cursor = theme.DefaultTheme.Highlight.Render("▶ ")
		}
		mark := "▢"
		if marks[i] {
			mark = lipgloss.NewStyle().Foreground(theme.DefaultTheme.Colors.Orange).Render("▣")
		}

		keyCell := m.cell(i, keyColumn, row.Key, keyWidth)
		valueCell := m.cell(i, valueColumn, row.Value, valueWidth)
		fmt.Fprintf(&b, "%s%s %-3d %s %s %s\n", cursor, mark, i, keyCell, valueCell,
			theme.DefaultTheme.Muted.Render(row.CreatedBy))
	}
	return b.String()
}

// cell renders one table cell padded to width, showing the input when it is being edited.
func (m Model) cell(row int, col column, text string, width int) string {
	focused := row == m.cursor && col == m.column
	if focused && m.typing {
		return m.input.View()
	}
	style := lipgloss.NewStyle().Width(width)
	if focused {
		style = style.Underline(true)
	}
	if text == "" && col == keyColumn {
		return style.Foreground(theme.DefaultTheme.Colors.Red).Render("(no key)")
	}
	return style.Render(truncate(text, width))
}

func truncate(s string, width int) string {
	r := []rune(s)
	if len(r) <= width {
		return s
	}
	return string(r[:width-1]) + "…"
}

func (m Model) renderStatus() string {
	if m.err != nil {
		return lipgloss.NewStyle().Foreground(theme.DefaultTheme.Colors.Red).Render("Error: " + m.err.Error())
	}
	if m.status != "" {
		return theme.DefaultTheme.Info.Render(m.status)
	}
	return ""
}
