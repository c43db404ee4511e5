package rundown

import (
	"fmt"
	"strconv"
	"strings"

	"rundown/internal/review"
	"rundown/internal/screen"
)

// approvedSelf is the self dimension an approve action settles into.
const approvedSelf = review.Yes

func itoa(n int) string { return strconv.Itoa(n) }

func plural(n int, word string) string {
	if n == 1 {
		return itoa(n) + " " + word
	}
	return itoa(n) + " " + word + "s"
}

func approvalLabel(a review.Approval) string {
	switch a {
	case review.Yes:
		return okStyle.Render("yes")
	case review.Stale:
		return warnStyle.Render("outdated")
	}
	return errStyle.Render("no")
}

// renderHeader shows one line per tracked column with its session tally.
func (m *Model) renderHeader() {
	var lines []string
	for _, t := range m.queues {
		if !m.enabled(t) {
			lines = append(lines, dimStyle.Render(t.q.Name+": excluded"))
			continue
		}
		line := fmt.Sprintf("%s: %s", t.q.Name, plural(t.q.Len(), "item"))
		if s := t.q.SkippedCount(); s > 0 {
			line += dimStyle.Render(fmt.Sprintf(" (%d skipped)", s))
		}
		if t == m.currentQueue {
			line = headerStyle.Render(line)
		}
		lines = append(lines, line)
	}
	m.comp.Set(screen.Header, lines)
}

func (m *Model) renderProgress() {
	switch m.phase {
	case phaseFetching:
		spin := m.spin.View()
		if m.current == nil || m.currentQueue == nil {
			m.comp.Set(screen.Progress, []string{spin + " fetching items"})
			return
		}
		q := m.currentQueue.q
		m.comp.Set(screen.Progress, []string{fmt.Sprintf("%s %s: item %d of %d — #%d",
			spin, q.Name, q.Offset(), q.Len(), m.current.Number)})
	case phaseDeciding:
		q := m.currentQueue.q
		m.comp.Set(screen.Progress, []string{fmt.Sprintf("%s: item %d of %d — #%d %s",
			q.Name, q.Offset(), q.Len(), m.detail.Number,
			screen.Truncate(m.detail.Title, 48))})
	default:
		m.comp.Set(screen.Progress, nil)
	}
}

// statusSummary is the one-line reconciled verdict shown inside the
// decision prompt.
func (m *Model) statusSummary() string {
	s := m.detail.Status
	parts := []string{
		"self: " + approvalLabel(s.Self),
		"owners: " + approvalLabel(s.Owner),
		"maintainer: " + approvalLabel(s.Maintainer),
	}
	line := strings.Join(parts, "  ")
	if m.detail.SelfMerge {
		line += "\n" + dimStyle.Render("author self-merges once approved")
	}
	return line
}

func (m *Model) renderDetail() {
	d := m.detail
	lines := []string{
		titleStyle.Render(fmt.Sprintf("#%d %s", d.Number, d.Title)),
		dimStyle.Render("by "+d.Author) + "  " + dimStyle.Render(d.URL),
	}
	if len(d.Labels) > 0 {
		lines = append(lines, dimStyle.Render(strings.Join(d.Labels, ", ")))
	}
	lines = append(lines, "")
	lines = append(lines,
		"  self        "+approvalLabel(d.Status.Self),
		"  owners      "+approvalLabel(d.Status.Owner),
		"  maintainer  "+approvalLabel(d.Status.Maintainer),
	)
	if len(d.Packages) > 0 {
		lines = append(lines, "")
		for _, p := range d.Packages {
			lines = append(lines, dimStyle.Render("  "+p.Package+": "+strings.Join(p.Owners, ", ")))
		}
	}
	if len(d.Reviews) > 0 {
		lines = append(lines, "")
		for _, r := range d.Reviews {
			verdict := string(r.State)
			if r.Outdated {
				verdict += " (outdated)"
			}
			lines = append(lines, dimStyle.Render("  "+r.Reviewer+": "+verdict))
		}
	}
	m.comp.Set(screen.Detail, lines)
}

// renderIdle replaces the progress and detail regions with the end-of-run
// summary.
func (m *Model) renderIdle() {
	m.comp.Set(screen.Progress, nil)

	skipped := 0
	for _, t := range m.queues {
		skipped += t.q.SkippedCount()
	}
	line := "no items remaining"
	switch skipped {
	case 0:
	case 1:
		line += dimStyle.Render(" (1 item skipped)")
	default:
		line += dimStyle.Render(fmt.Sprintf(" (%d items skipped)", skipped))
	}
	m.comp.Set(screen.Detail, []string{
		line,
		dimStyle.Render("r refresh · v switch queue · q quit"),
	})
	m.renderHeader()
}

func (m *Model) View() string {
	if m.quitting {
		return ""
	}
	body := m.comp.Compose()
	if m.stack.Visible() {
		return body + "\n" + m.stack.View()
	}
	return body
}
