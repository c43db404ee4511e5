package prompt

import (
	tea "github.com/charmbracelet/bubbletea"

	"rundown/internal/keys"
)

// advancedToggleKey flips between the basic and full option set of the
// active prompt. It is synthesized; prompts never declare it themselves.
var advancedToggleKey = keys.Of(".")

// quitKeys end the whole session no matter which prompt is active.
var quitKeys = keys.Of("q", "ctrl+c", "ctrl+d")

// entry pairs a pushed prompt with its stack bookkeeping. closed entries
// below the top are "resolved but not popped": their result is already
// delivered, and they are fast-forwarded past once they surface.
type entry struct {
	p      *Prompt
	ev     evaluated
	closed bool
	done   chan any
}

// Stack is a LIFO of modal prompts. The top entry is the only one that is
// visible and receives keys. All methods are called from the single
// bubbletea update loop, so no locking is needed.
type Stack struct {
	entries []*entry
	busy    bool // keypress latch: an option's action is in flight

	// onSize is invoked whenever the visible prompt's rendered height may
	// have changed (push, pop, advanced toggle).
	onSize func()
}

func NewStack(onSize func()) *Stack {
	if onSize == nil {
		onSize = func() {}
	}
	return &Stack{onSize: onSize}
}

// Push suspends the current top, runs the new prompt's OnEnter, evaluates
// its dynamic fields and makes it the visible prompt. The returned channel
// receives the prompt's result exactly once when it is closed, even if that
// close happens while the prompt is buried under later pushes.
func (s *Stack) Push(p *Prompt) <-chan any {
	e := &entry{p: p, done: make(chan any, 1)}
	if p.OnEnter != nil {
		p.OnEnter(p)
	}
	e.ev = p.evaluate()
	s.entries = append(s.entries, e)
	s.onSize()
	return e.done
}

// Current returns the visible prompt, or nil when the stack is empty.
func (s *Stack) Current() *Prompt {
	if len(s.entries) == 0 {
		return nil
	}
	return s.entries[len(s.entries)-1].p
}

func (s *Stack) Depth() int { return len(s.entries) }

// Busy reports whether an option action is still in flight.
func (s *Stack) Busy() bool { return s.busy }

// Unlatch clears the keypress latch. The orchestrator calls it when the
// message produced by an option's command has been handled.
func (s *Stack) Unlatch() { s.busy = false }

// Close resolves a prompt with the given result. Closing the top pops it
// and then fast-forwards past any entries underneath that were already
// closed out-of-band. Closing a buried prompt only marks it; it is popped
// lazily when it becomes reachable.
func (s *Stack) Close(p *Prompt, result any) {
	idx := -1
	for i, e := range s.entries {
		if e.p == p {
			idx = i
			break
		}
	}
	if idx < 0 {
		return
	}
	e := s.entries[idx]
	if e.closed {
		return
	}
	e.closed = true
	p.Result = result
	e.done <- result

	if idx == len(s.entries)-1 {
		s.fastForward()
	}
}

// fastForward pops every consecutive closed entry from the top, running
// exit hooks in pop order, then restores the next live prompt.
func (s *Stack) fastForward() {
	for len(s.entries) > 0 {
		top := s.entries[len(s.entries)-1]
		if !top.closed {
			break
		}
		s.entries = s.entries[:len(s.entries)-1]
		if top.p.OnExit != nil {
			top.p.OnExit(top.p)
		}
	}
	if len(s.entries) > 0 {
		// restore: the surfacing prompt re-evaluates so it reflects any
		// mutations made while it was suspended
		top := s.entries[len(s.entries)-1]
		top.ev = top.p.evaluate()
	}
	s.busy = false
	s.onSize()
}

// Refresh re-evaluates every entry's dynamic fields in place, without
// changing stack positions. Call after mutating data a visible prompt
// renders (settings, counters).
func (s *Stack) Refresh() {
	for _, e := range s.entries {
		e.ev = e.p.evaluate()
	}
}

// HandleKey dispatches one canonical chord. It returns the action command
// to run (nil for none) and whether a quit chord was pressed. Quit chords
// are recognised regardless of prompt state, including an empty stack.
func (s *Stack) HandleKey(c keys.Chord) (tea.Cmd, bool) {
	if quitKeys.Matches(c) {
		return nil, true
	}
	if len(s.entries) == 0 {
		return nil, false
	}
	if s.busy {
		// serialized: keys during an in-flight action are dropped, not queued
		return nil, false
	}

	top := s.entries[len(s.entries)-1]

	if top.ev.hasAdvanced() && advancedToggleKey.Matches(c) {
		top.p.showAdvanced = !top.p.showAdvanced
		top.ev = top.p.evaluate()
		s.onSize()
		return nil, false
	}

	for i, o := range top.ev.opts {
		if o.hidden || o.disabled {
			continue
		}
		if o.advanced && !top.p.showAdvanced {
			continue
		}
		if !o.key.Matches(c) {
			continue
		}
		do := top.p.Options[i].Do
		if do == nil {
			return nil, false
		}
		cmd := do(top.p)
		// the latch tracks the returned command only: an action that closes
		// prompts on its way out must still leave in-flight work latched
		s.busy = cmd != nil
		if cmd == nil && len(s.entries) > 0 {
			// the action may have closed the prompt or mutated state
			s.entries[len(s.entries)-1].ev = s.entries[len(s.entries)-1].p.evaluate()
		}
		return cmd, false
	}
	return nil, false
}
