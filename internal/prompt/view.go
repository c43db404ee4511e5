package prompt

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("205"))

	dimStyle      = lipgloss.NewStyle().Faint(true)
	keyStyle      = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("214"))
	checkedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	disabledStyle = lipgloss.NewStyle().Faint(true).Strikethrough(true)

	modalStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("205")).
			Padding(1, 3).
			Width(58)
)

// Visible reports whether a modal is on screen, i.e. region repaints must
// be suppressed.
func (s *Stack) Visible() bool { return len(s.entries) > 0 }

// View renders the active prompt as a bordered modal. Returns "" when the
// stack is empty.
func (s *Stack) View() string {
	if len(s.entries) == 0 {
		return ""
	}
	top := s.entries[len(s.entries)-1]
	ev := top.ev

	var b strings.Builder
	b.WriteString(titleStyle.Render(ev.title) + "\n")
	if ev.header != "" {
		b.WriteString("\n" + ev.header + "\n")
	}
	b.WriteString("\n")

	for _, o := range ev.opts {
		if o.hidden {
			continue
		}
		if o.advanced && !top.p.showAdvanced {
			continue
		}
		b.WriteString(renderOption(o) + "\n")
	}

	if ev.hasAdvanced() {
		label := "more options"
		if top.p.showAdvanced {
			label = "fewer options"
		}
		b.WriteString(dimStyle.Render("  .  "+label) + "\n")
	}

	b.WriteString("\n" + dimStyle.Render("q quit"))
	return modalStyle.Render(strings.TrimRight(b.String(), "\n"))
}

func renderOption(o evaluatedOption) string {
	key := keyStyle.Render(padKey(o.key.Label()))
	label := o.label
	if o.checkable {
		mark := "[ ] "
		if o.checked {
			mark = checkedStyle.Render("[x]") + " "
		}
		label = mark + label
	}
	if o.disabled {
		return "  " + dimStyle.Render(padKey(o.key.Label())) + "  " + disabledStyle.Render(o.label)
	}
	return "  " + key + "  " + label
}

func padKey(k string) string {
	if len(k) < 6 {
		return k + strings.Repeat(" ", 6-len(k))
	}
	return k
}

// Height is the rendered line count of the visible modal, for layout math
// in the compositor. Zero when no prompt is visible.
func (s *Stack) Height() int {
	if len(s.entries) == 0 {
		return 0
	}
	return lipgloss.Height(s.View())
}
