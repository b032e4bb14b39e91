package artifacts

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattsolo1/grove-core/tui/theme"

	"github.com/mattsolo1/grove-mlconsole/pkg/tree"
)

func (m Model) View() string {
	if m.help.ShowAll {
		return m.help.View()
	}
	if m.confirm.Active() {
		return "\n" + m.confirm.View()
	}

	header := theme.DefaultTheme.Header.Render(fmt.Sprintf("Artifacts of %s", m.view.Owner()))
	summary := theme.DefaultTheme.Muted.Render("Selected: " + m.view.Summary().Describe())

	fullView := lipgloss.JoinVertical(lipgloss.Left,
		header,
		summary,
		"",
		m.renderTree(),
		"",
		m.renderStatus(),
		m.help.View(),
	)
	return "\n" + fullView
}

func (m Model) renderTree() string {
	if len(m.rows) == 0 {
		return theme.DefaultTheme.Muted.Render("No artifacts.")
	}

	snap := m.view.Snapshot()
	selected := make(map[string]bool, len(snap.Selected))
	for _, id := range snap.Selected {
		selected[id] = true
	}
	expanded := make(map[string]bool, len(snap.Expanded))
	for _, id := range snap.Expanded {
		expanded[id] = true
	}

	var b strings.Builder
	vh := m.getViewportHeight()
	start := m.scrollOffset
	end := start + vh
	if end > len(m.rows) {
		end = len(m.rows)
	}

	for i := start; i < end; i++ {
		r := m.rows[i]
		cursor := "  "
		if i == m.cursor {
			cursor = theme.DefaultTheme.Highlight.Render("▶ ")
		}

		mark := "▢"
		if selected[r.node.ID] {
			mark = lipgloss.NewStyle().Foreground(theme.DefaultTheme.Colors.Orange).Render("▣")
		}

		name := r.node.Name
		if r.node.IsDir() {
			fold := "▶ "
			if expanded[r.node.ID] {
				fold = "▼ "
			}
			name = fold + lipgloss.NewStyle().Foreground(theme.DefaultTheme.Colors.Blue).Render(name+"/")
		} else {
			name = "  " + name + theme.DefaultTheme.Muted.Render("  "+tree.FormatSize(r.node.Size))
		}

		line := fmt.Sprintf("%s%s %s%s", cursor, mark, strings.Repeat("  ", r.depth), name)
		if i == m.cursor {
			line = lipgloss.NewStyle().Bold(true).Render(line)
		}
		b.WriteString(line)
		b.WriteString("\n")
	}

	if len(m.rows) > vh {
		b.WriteString(lipgloss.NewStyle().Faint(true).Render(fmt.Sprintf(" (%d-%d of %d)", start+1, end, len(m.rows))))
	}
	return b.String()
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
