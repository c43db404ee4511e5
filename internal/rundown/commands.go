package rundown

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"rundown/internal/config"
	"rundown/internal/queue"
	"rundown/internal/source"
)

type itemsMsg struct {
	queueIdx int
	cards    []queue.Card
	err      error
}

type detailMsg struct {
	card   *queue.Card
	detail *source.Detail
	err    error
}

type navigatedMsg struct{ err error }

type approvedMsg struct {
	number    int
	selfMerge bool
	err       error
}

type mergedMsg struct {
	number int
	err    error
}

type settingsSavedMsg struct{ err error }

func (m *Model) populateCmd(queueIdx int) tea.Cmd {
	t := m.queues[queueIdx]
	oldest := m.deps.Settings.OldestFirst
	t.q.SetOldestFirst(oldest)
	src := m.deps.Source
	col := t.col
	return func() tea.Msg {
		cards, err := src.Items(context.Background(), col, oldest)
		return itemsMsg{queueIdx: queueIdx, cards: cards, err: err}
	}
}

func (m *Model) fetchDetailCmd(card *queue.Card) tea.Cmd {
	src := m.deps.Source
	skips := m.deps.Skips
	now := m.deps.Now
	opts := source.DetailOpts{
		IncludeDrafts:  m.deps.Settings.Drafts,
		IncludeWIP:     m.deps.Settings.WIP,
		IncludeSkipped: m.deps.Settings.Skipped,
		Suppressed: func(id string, lastUpdated time.Time) bool {
			return skips.Suppressed(id, lastUpdated, now())
		},
	}
	return func() tea.Msg {
		d, err := src.ItemDetail(context.Background(), card.ID, opts)
		return detailMsg{card: card, detail: d, err: err}
	}
}

func (m *Model) navigateCmd(url string) tea.Cmd {
	b := m.deps.Browser
	if b == nil {
		return nil
	}
	return func() tea.Msg {
		return navigatedMsg{err: b.Navigate(url)}
	}
}

func (m *Model) approveCmd() tea.Cmd {
	src := m.deps.Source
	number := m.detail.Number
	selfMerge := m.detail.SelfMerge
	return func() tea.Msg {
		err := src.Approve(context.Background(), number)
		return approvedMsg{number: number, selfMerge: selfMerge, err: err}
	}
}

// mergeCmd approves first when the active approval mode calls for it,
// then merges. Mutations are strictly sequential: a failed approval
// aborts the merge.
func (m *Model) mergeCmd(method config.MergeMethod) tea.Cmd {
	src := m.deps.Source
	number := m.detail.Number
	approve := m.needsPreMergeApproval()
	return func() tea.Msg {
		ctx := context.Background()
		if approve {
			if err := src.Approve(ctx, number); err != nil {
				return mergedMsg{number: number, err: err}
			}
		}
		return mergedMsg{number: number, err: src.Merge(ctx, number, method)}
	}
}

// needsPreMergeApproval applies the active approval mode to the current
// item's reconciled status.
func (m *Model) needsPreMergeApproval() bool {
	switch m.deps.Settings.ApproveMode {
	case config.ApproveAuto:
		// approve only when nobody else has approved yet
		for _, r := range m.detail.Reviews {
			if r.State == "APPROVED" && r.Reviewer != m.deps.Viewer {
				return false
			}
		}
		return true
	case config.ApproveAlways:
		// approve unless the operator's own approval is current
		return m.detail.Status.Self != approvedSelf
	}
	return false // manual: never auto-approve
}

func (m *Model) saveSettingsCmd() tea.Cmd {
	path := m.deps.SettingsPath
	s := *m.deps.Settings
	return func() tea.Msg {
		return settingsSavedMsg{err: config.Save(path, s)}
	}
}
