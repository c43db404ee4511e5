// Package rundown is the interactive loop: pull the next card from the
// prioritized queues, fetch and render its reconciled status, point the
// browser at it, and block on one operator decision.
package rundown

import (
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"rundown/internal/config"
	"rundown/internal/keys"
	"rundown/internal/prompt"
	"rundown/internal/queue"
	"rundown/internal/screen"
	"rundown/internal/source"
)

// The two tracked columns, drained strictly in this order.
const (
	ColumnReview = "Review"
	ColumnAction = "Action"
)

type phase int

const (
	phaseStarting phase = iota
	phaseFetching
	phaseDeciding
	phaseIdle
)

// tracked pairs a board column with its session queue.
type tracked struct {
	col source.Column
	q   *queue.Queue
}

// Deps are the collaborators and context objects injected at startup.
type Deps struct {
	Source       source.Source
	Browser      source.Browser
	Settings     *config.Settings
	SettingsPath string
	SkipPath     string
	Skips        *queue.SkipRegistry
	Columns      map[string]source.Column
	Viewer       string
	Now          func() time.Time
}

type Model struct {
	deps   Deps
	queues []*tracked
	start  int // queue the drain order currently begins at

	comp  *screen.Compositor
	stack *prompt.Stack

	phase        phase
	current      *queue.Card
	currentQueue *tracked
	detail       *source.Detail
	decision     *prompt.Prompt

	width, height int
	spin          spinner.Model
	pendingPops   int // queues still populating at startup
	quitting      bool
}

func New(deps Deps) *Model {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	m := &Model{
		deps: deps,
		comp: screen.New(80),
		spin: spinner.New(spinner.WithSpinner(spinner.Line), spinner.WithStyle(dimStyle)),
	}
	m.stack = prompt.NewStack(func() {
		m.comp.Suppress(m.stack.Visible())
	})
	for _, name := range []string{ColumnReview, ColumnAction} {
		if col, ok := deps.Columns[name]; ok {
			m.queues = append(m.queues, &tracked{
				col: col,
				q:   queue.New(name, deps.Settings.OldestFirst),
			})
		}
	}
	return m
}

// enabled reports whether a queue's column is included by the filters.
func (m *Model) enabled(t *tracked) bool {
	switch t.q.Name {
	case ColumnReview:
		return m.deps.Settings.Review
	case ColumnAction:
		return m.deps.Settings.Action
	}
	return false
}

func (m *Model) Init() tea.Cmd {
	cmds := []tea.Cmd{m.spin.Tick}
	for i, t := range m.queues {
		if m.enabled(t) {
			m.pendingPops++
			cmds = append(cmds, m.populateCmd(i))
		}
	}
	if m.pendingPops == 0 {
		m.phase = phaseIdle
		m.renderIdle()
	}
	return tea.Batch(cmds...)
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.comp.SetWidth(msg.Width)
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(keys.FromKeyMsg(msg))

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		if m.phase == phaseFetching {
			m.renderProgress()
		}
		return m, cmd

	case itemsMsg:
		return m.handleItems(msg)

	case detailMsg:
		return m.handleDetail(msg)

	case navigatedMsg:
		m.stack.Unlatch()
		// browser automation is best effort: a failed navigation is a log
		// line, never a task failure
		if msg.err != nil {
			m.comp.Append(screen.Log, dimStyle.Render("browser: "+msg.err.Error()))
		}
		return m, nil

	case approvedMsg:
		return m.handleApproved(msg)

	case mergedMsg:
		return m.handleMerged(msg)

	case settingsSavedMsg:
		m.stack.Unlatch()
		if msg.err != nil {
			m.comp.Append(screen.Log, errStyle.Render("save settings: "+msg.err.Error()))
		} else {
			m.comp.Append(screen.Log, okStyle.Render("settings saved"))
		}
		m.stack.Refresh()
		return m, nil
	}
	return m, nil
}

func (m *Model) handleKey(c keys.Chord) (tea.Model, tea.Cmd) {
	cmd, quit := m.stack.HandleKey(c)
	if quit {
		return m, m.shutdown()
	}
	if cmd != nil || m.stack.Visible() {
		m.comp.Suppress(m.stack.Visible())
		return m, cmd
	}

	// no modal up: the handful of global keys
	switch c.Name {
	case "r":
		if m.phase == phaseIdle {
			m.invalidateQueues()
			return m, m.advance()
		}
	case "v":
		if m.phase == phaseIdle && len(m.queues) > 0 {
			m.start = (m.start + 1) % len(m.queues)
			return m, m.advance()
		}
	}
	return m, nil
}

// shutdown is the orderly quit sequence: flush the skip registry, close
// the browser, stop the program.
func (m *Model) shutdown() tea.Cmd {
	m.quitting = true
	if err := m.deps.Skips.Flush(m.deps.Now()); err != nil {
		m.comp.Append(screen.Log, errStyle.Render("skip list: "+err.Error()))
	}
	if m.deps.Browser != nil {
		_ = m.deps.Browser.Close()
	}
	return tea.Quit
}

func (m *Model) invalidateQueues() {
	for _, t := range m.queues {
		t.q.Invalidate()
	}
}

// advance selects the next card. Queues are drained in fixed priority
// order starting at m.start; an exhausted queue falls through to the next
// configured one.
func (m *Model) advance() tea.Cmd {
	m.current = nil
	m.currentQueue = nil
	m.detail = nil

	for k := 0; k < len(m.queues); k++ {
		i := (m.start + k) % len(m.queues)
		t := m.queues[i]
		if !m.enabled(t) {
			continue
		}
		if t.q.Stale() {
			m.phase = phaseFetching
			m.renderProgress()
			return m.populateCmd(i)
		}
		card, ok := t.q.Next()
		if !ok {
			continue
		}
		m.current = card
		m.currentQueue = t
		m.phase = phaseFetching
		m.renderHeader()
		m.renderProgress()
		return m.fetchDetailCmd(card)
	}

	m.phase = phaseIdle
	m.renderIdle()
	return nil
}

func (m *Model) handleItems(msg itemsMsg) (tea.Model, tea.Cmd) {
	m.stack.Unlatch()
	starting := m.pendingPops > 0
	if starting {
		m.pendingPops--
	}

	t := m.queues[msg.queueIdx]
	if msg.err != nil {
		m.comp.Append(screen.Log, errStyle.Render(t.q.Name+": "+msg.err.Error()))
		if t.q.Len() == 0 && t.q.Offset() == 0 {
			t.q.Populate(nil)
		} else {
			// a failed refresh keeps the session's cards and progress
			t.q.Revalidate()
		}
	} else if t.q.Len() == 0 && t.q.Offset() == 0 {
		t.q.Populate(msg.cards)
	} else {
		t.q.Repopulate(msg.cards)
	}
	m.renderHeader()

	if starting && m.pendingPops > 0 {
		return m, nil // wait for the remaining startup populations
	}
	if m.phase == phaseDeciding {
		return m, nil
	}
	return m, m.advance()
}

func (m *Model) handleDetail(msg detailMsg) (tea.Model, tea.Cmd) {
	m.stack.Unlatch()
	if m.current == nil || msg.card != m.current {
		return m, nil // stale response from an abandoned card
	}
	t := m.currentQueue

	if msg.err != nil {
		pos := source.Position(t.q.Offset(), t.q.Len())
		if se, ok := source.Skipped(msg.err); ok {
			m.comp.Append(screen.Log, dimStyle.Render(pos+" #"+itoa(msg.card.Number)+" — "+string(se.Reason)))
		} else {
			m.comp.Append(screen.Log, errStyle.Render(pos+" #"+itoa(msg.card.Number)+" — "+msg.err.Error()))
		}
		return m, m.advance()
	}

	m.detail = msg.detail
	m.phase = phaseDeciding
	m.renderProgress()
	m.renderDetail()

	m.decision = m.decisionPrompt()
	m.stack.Push(m.decision)
	m.comp.Suppress(true)

	return m, m.navigateCmd(msg.detail.URL)
}

func (m *Model) handleApproved(msg approvedMsg) (tea.Model, tea.Cmd) {
	m.stack.Unlatch()
	if msg.err != nil {
		m.comp.Append(screen.Log, errStyle.Render("approve #"+itoa(msg.number)+": "+msg.err.Error()))
		m.stack.Refresh()
		return m, nil
	}
	if msg.selfMerge {
		// trusted author merges on their own once approved: done here
		if err := m.deps.Skips.Remove(m.current.ID, m.deps.Now()); err != nil {
			m.comp.Append(screen.Log, errStyle.Render("skip list: "+err.Error()))
		}
		m.currentQueue.q.Complete(m.current)
		return m.closeDecisionAndAdvance()
	}
	// stay on the item so the operator can follow up with a merge
	if m.detail != nil {
		m.detail.Status.Self = approvedSelf
	}
	m.comp.Append(screen.Log, okStyle.Render("approved #"+itoa(msg.number)+" — awaiting merge"))
	m.renderDetail()
	m.stack.Refresh()
	return m, nil
}

func (m *Model) handleMerged(msg mergedMsg) (tea.Model, tea.Cmd) {
	m.stack.Unlatch()
	if msg.err != nil {
		m.comp.Append(screen.Log, errStyle.Render("merge #"+itoa(msg.number)+": "+msg.err.Error()))
		m.stack.Refresh()
		return m, nil
	}
	if err := m.deps.Skips.Remove(m.current.ID, m.deps.Now()); err != nil {
		m.comp.Append(screen.Log, errStyle.Render("skip list: "+err.Error()))
	}
	m.currentQueue.q.Complete(m.current)
	m.comp.Append(screen.Log, okStyle.Render("merged #"+itoa(msg.number)))
	return m.closeDecisionAndAdvance()
}

// closeDecisionAndAdvance tears down the decision prompt for the current
// item and moves to the next one.
func (m *Model) closeDecisionAndAdvance() (tea.Model, tea.Cmd) {
	if m.decision != nil {
		m.stack.Close(m.decision, nil)
		m.decision = nil
	}
	m.comp.Suppress(m.stack.Visible())
	m.renderHeader()
	return m, m.advance()
}
