package rundown

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rundown/internal/config"
	"rundown/internal/queue"
	"rundown/internal/review"
	"rundown/internal/screen"
	"rundown/internal/source"
)

type fakeSource struct {
	items    map[string][]queue.Card // keyed by column ID
	details  map[string]*source.Detail
	skip     map[string]source.SkipReason
	fetched  []string // ItemDetail call order
	approved []int
	merged   []int
}

func (f *fakeSource) Columns(ctx context.Context, names []string) (map[string]source.Column, error) {
	out := make(map[string]source.Column)
	for _, n := range names {
		out[n] = source.Column{Name: n, ID: "col-" + n}
	}
	return out, nil
}

func (f *fakeSource) Items(ctx context.Context, col source.Column, oldestFirst bool) ([]queue.Card, error) {
	return f.items[col.ID], nil
}

func (f *fakeSource) ItemDetail(ctx context.Context, id string, opts source.DetailOpts) (*source.Detail, error) {
	f.fetched = append(f.fetched, id)
	if reason, ok := f.skip[id]; ok {
		return nil, &source.SkipError{Reason: reason}
	}
	return f.details[id], nil
}

func (f *fakeSource) Approve(ctx context.Context, n int) error {
	f.approved = append(f.approved, n)
	return nil
}

func (f *fakeSource) Merge(ctx context.Context, n int, method config.MergeMethod) error {
	f.merged = append(f.merged, n)
	return nil
}

func (f *fakeSource) Viewer(ctx context.Context) (string, error)       { return "me", nil }
func (f *fakeSource) Maintainers(ctx context.Context) ([]string, error) { return nil, nil }

type fakeBrowser struct {
	navs   []string
	resets int
	closed bool
}

func (b *fakeBrowser) Navigate(url string) error { b.navs = append(b.navs, url); return nil }
func (b *fakeBrowser) Reset() error              { b.resets++; return nil }
func (b *fakeBrowser) Close() error              { b.closed = true; return nil }

func card(id string, n int) queue.Card {
	return queue.Card{ID: id, Number: n, UpdatedAt: time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)}
}

func detail(id string, n int) *source.Detail {
	return &source.Detail{
		ID: id, Number: n,
		Title:  "change " + id,
		Author: "alice",
		URL:    "https://example.com/pull/" + id,
		Status: review.Status{},
	}
}

func newModel(t *testing.T, src *fakeSource, mutate func(*config.Settings)) (*Model, *fakeBrowser) {
	t.Helper()
	s := config.Default()
	if mutate != nil {
		mutate(&s)
	}
	skips, err := queue.LoadSkipRegistry(filepath.Join(t.TempDir(), "skipped.json"), time.Now())
	require.NoError(t, err)
	b := &fakeBrowser{}
	m := New(Deps{
		Source:   src,
		Browser:  b,
		Settings: &s,
		Skips:    skips,
		Columns: map[string]source.Column{
			ColumnReview: {Name: ColumnReview, ID: "col-" + ColumnReview},
			ColumnAction: {Name: ColumnAction, ID: "col-" + ColumnAction},
		},
		Viewer: "me",
		Now:    func() time.Time { return time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC) },
	})
	return m, b
}

// run executes a command tree synchronously, feeding messages back into the
// model until it settles. Timer ticks are dropped so the loop terminates.
func run(t *testing.T, m *Model, cmd tea.Cmd) {
	t.Helper()
	if cmd == nil {
		return
	}
	msg := cmd()
	switch msg := msg.(type) {
	case tea.BatchMsg:
		for _, c := range msg {
			run(t, m, c)
		}
	case spinner.TickMsg:
	case tea.QuitMsg:
	default:
		_, next := m.Update(msg)
		run(t, m, next)
	}
}

func press(t *testing.T, m *Model, r rune) {
	t.Helper()
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}})
	run(t, m, cmd)
}

func TestReviewQueueDrainsFirst(t *testing.T) {
	src := &fakeSource{
		items: map[string][]queue.Card{
			"col-Review": {card("1", 1)},
			"col-Action": {card("2", 2)},
		},
		details: map[string]*source.Detail{
			"1": detail("1", 1),
			"2": detail("2", 2),
		},
	}
	m, b := newModel(t, src, nil)
	run(t, m, m.Init())

	require.True(t, m.stack.Visible(), "decision prompt up for the first item")
	assert.Equal(t, []string{"1"}, src.fetched)
	assert.Equal(t, []string{"https://example.com/pull/1"}, b.navs)

	press(t, m, 's') // skip: moves on to the Action queue
	assert.Equal(t, []string{"1", "2"}, src.fetched)
}

func TestDisabledQueueShownExcluded(t *testing.T) {
	src := &fakeSource{
		items: map[string][]queue.Card{"col-Review": nil},
	}
	m, _ := newModel(t, src, func(s *config.Settings) { s.Action = false })
	run(t, m, m.Init())

	header := strings.Join(m.comp.Lines(screen.Header), "\n")
	assert.Contains(t, header, "Action: excluded")
	assert.Contains(t, header, "Review:")
}

func TestSkipPersistsToRegistry(t *testing.T) {
	src := &fakeSource{
		items:   map[string][]queue.Card{"col-Review": {card("7", 7)}},
		details: map[string]*source.Detail{"7": detail("7", 7)},
	}
	m, _ := newModel(t, src, func(s *config.Settings) { s.Action = false })
	run(t, m, m.Init())
	require.True(t, m.stack.Visible())

	press(t, m, 's')
	assert.True(t, m.deps.Skips.Has("7"))
}

func TestFilteredItemLoggedAndPassedOver(t *testing.T) {
	src := &fakeSource{
		items: map[string][]queue.Card{
			"col-Review": {card("1", 1), card("2", 2)},
		},
		details: map[string]*source.Detail{"2": detail("2", 2)},
		skip:    map[string]source.SkipReason{"1": source.ReasonDraft},
	}
	m, _ := newModel(t, src, func(s *config.Settings) { s.Action = false })
	run(t, m, m.Init())

	log := strings.Join(m.comp.Lines(screen.Log), "\n")
	assert.Contains(t, log, "[1/2] #1")
	assert.Contains(t, log, "draft")
	require.True(t, m.stack.Visible(), "second item reaches the operator")
	assert.Equal(t, 2, m.detail.Number)
}

func TestIdleSummaryPluralizesSkips(t *testing.T) {
	src := &fakeSource{
		items:   map[string][]queue.Card{"col-Review": {card("1", 1)}},
		details: map[string]*source.Detail{"1": detail("1", 1)},
	}
	m, _ := newModel(t, src, func(s *config.Settings) { s.Action = false })
	run(t, m, m.Init())
	press(t, m, 's')

	require.Equal(t, phaseIdle, m.phase)
	det := strings.Join(m.comp.Lines(screen.Detail), "\n")
	assert.Contains(t, det, "no items remaining")
	assert.Contains(t, det, "1 item skipped")
	assert.NotContains(t, det, "items skipped")
}

func TestMergeCompletesItem(t *testing.T) {
	src := &fakeSource{
		items:   map[string][]queue.Card{"col-Review": {card("3", 3)}},
		details: map[string]*source.Detail{"3": detail("3", 3)},
	}
	m, _ := newModel(t, src, func(s *config.Settings) {
		s.Action = false
		s.MergeMethod = config.MergeSquash
	})
	run(t, m, m.Init())
	require.True(t, m.stack.Visible())

	press(t, m, 'm')
	assert.Equal(t, []int{3}, src.merged)
	assert.Empty(t, src.approved, "manual mode never auto-approves")
	assert.Equal(t, phaseIdle, m.phase)
	assert.False(t, m.deps.Skips.Has("3"))
}

func TestApproveWithSelfMergeCompletes(t *testing.T) {
	d := detail("4", 4)
	d.SelfMerge = true
	src := &fakeSource{
		items:   map[string][]queue.Card{"col-Review": {card("4", 4)}},
		details: map[string]*source.Detail{"4": d},
	}
	m, _ := newModel(t, src, func(s *config.Settings) { s.Action = false })
	run(t, m, m.Init())

	press(t, m, 'a')
	assert.Equal(t, []int{4}, src.approved)
	assert.Empty(t, src.merged)
	assert.Equal(t, phaseIdle, m.phase, "trusted author merges on their own")
}

func TestApproveWithoutSelfMergeStays(t *testing.T) {
	src := &fakeSource{
		items:   map[string][]queue.Card{"col-Review": {card("5", 5)}},
		details: map[string]*source.Detail{"5": detail("5", 5)},
	}
	m, _ := newModel(t, src, func(s *config.Settings) { s.Action = false })
	run(t, m, m.Init())

	press(t, m, 'a')
	assert.Equal(t, []int{5}, src.approved)
	require.True(t, m.stack.Visible(), "item stays current awaiting a merge decision")
	assert.Equal(t, approvedSelf, m.detail.Status.Self)

	press(t, m, 'm') // merge… opens the method picker first
	press(t, m, 's') // squash
	assert.Equal(t, []int{5}, src.merged)
	assert.Equal(t, phaseIdle, m.phase)
}

func TestQuitFlushesAndClosesBrowser(t *testing.T) {
	src := &fakeSource{
		items:   map[string][]queue.Card{"col-Review": {card("6", 6)}},
		details: map[string]*source.Detail{"6": detail("6", 6)},
	}
	m, b := newModel(t, src, func(s *config.Settings) { s.Action = false })
	run(t, m, m.Init())

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	require.NotNil(t, cmd)
	assert.True(t, b.closed)
}

func TestDecisionKeysAcceptedAfterReopen(t *testing.T) {
	src := &fakeSource{
		items:   map[string][]queue.Card{"col-Review": {card("8", 8)}},
		details: map[string]*source.Detail{"8": detail("8", 8)},
	}
	m, b := newModel(t, src, func(s *config.Settings) { s.Action = false })
	run(t, m, m.Init())
	require.True(t, m.stack.Visible())

	press(t, m, 'o')
	assert.Len(t, b.navs, 2, "reopen navigates again")
	assert.False(t, m.stack.Busy(), "latch clears once navigation completes")

	press(t, m, 's')
	assert.True(t, m.deps.Skips.Has("8"), "skip after reopen must be accepted")
}

func TestMergeInFlightBlocksOtherActions(t *testing.T) {
	src := &fakeSource{
		items:   map[string][]queue.Card{"col-Review": {card("9", 9)}},
		details: map[string]*source.Detail{"9": detail("9", 9)},
	}
	m, _ := newModel(t, src, func(s *config.Settings) { s.Action = false })
	run(t, m, m.Init())

	press(t, m, 'm') // method picker: merge strategy not configured
	_, mergeCmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'s'}})
	require.NotNil(t, mergeCmd)
	assert.True(t, m.stack.Busy(), "decision prompt stays latched while the merge runs")

	_, approveCmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'a'}})
	assert.Nil(t, approveCmd, "no second mutation while one is in flight")
	assert.Empty(t, src.approved)

	run(t, m, mergeCmd)
	assert.Equal(t, []int{9}, src.merged)
	assert.False(t, m.stack.Busy())
	assert.Equal(t, phaseIdle, m.phase)
}

func TestFetchErrorKeepsQueueProgress(t *testing.T) {
	src := &fakeSource{
		items: map[string][]queue.Card{
			"col-Review": {card("1", 1), card("2", 2)},
		},
		details: map[string]*source.Detail{
			"1": detail("1", 1),
			"2": detail("2", 2),
		},
	}
	m, _ := newModel(t, src, func(s *config.Settings) { s.Action = false })
	run(t, m, m.Init())
	require.True(t, m.stack.Visible())
	q := m.queues[0].q
	require.Equal(t, 1, q.Offset())

	_, cmd := m.handleItems(itemsMsg{queueIdx: 0, err: errors.New("boom")})
	assert.Nil(t, cmd, "decision in progress, no advance")

	assert.Equal(t, 2, q.Len(), "cards survive a failed refresh")
	assert.Equal(t, 1, q.Offset(), "progress survives a failed refresh")
	assert.False(t, q.Stale())
	log := strings.Join(m.comp.Lines(screen.Log), "\n")
	assert.Contains(t, log, "boom")
}
