package rundown

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"rundown/internal/config"
	"rundown/internal/keys"
	"rundown/internal/prompt"
	"rundown/internal/screen"
)

// decisionPrompt is the per-item menu: one operator decision per card.
func (m *Model) decisionPrompt() *prompt.Prompt {
	return &prompt.Prompt{
		Title: prompt.Computed(func(*prompt.Prompt) string {
			return fmt.Sprintf("#%d %s", m.detail.Number, screen.Truncate(m.detail.Title, 44))
		}),
		Header: prompt.Computed(func(*prompt.Prompt) string {
			return m.statusSummary()
		}),
		Options: []prompt.Option{
			{
				Key:   keys.Of("a"),
				Label: prompt.Static("approve"),
				Disabled: prompt.FlagFunc(func(*prompt.Prompt) bool {
					return m.detail.Status.Self == approvedSelf
				}),
				Do: func(*prompt.Prompt) tea.Cmd { return m.approveCmd() },
			},
			{
				Key:   keys.Of("m"),
				Label: prompt.Computed(func(*prompt.Prompt) string {
					if m.deps.Settings.MergeMethod == config.MergeNone {
						return "merge…"
					}
					return "merge (" + string(m.deps.Settings.MergeMethod) + ")"
				}),
				Do: func(*prompt.Prompt) tea.Cmd {
					if m.deps.Settings.MergeMethod == config.MergeNone {
						m.stack.Push(m.mergeMethodPrompt(true))
						return nil
					}
					return m.mergeCmd(m.deps.Settings.MergeMethod)
				},
			},
			{
				Key:   keys.Of("s"),
				Label: prompt.Static("skip"),
				Do: func(*prompt.Prompt) tea.Cmd {
					if err := m.deps.Skips.Add(m.current.ID, m.deps.Now()); err != nil {
						// data-loss risk beats aborting the session
						m.comp.Append(screen.Log, errStyle.Render("skip list: "+err.Error()))
					}
					m.currentQueue.q.Skip(m.current)
					_, cmd := m.closeDecisionAndAdvance()
					return cmd
				},
			},
			{
				Key:   keys.Of("d"),
				Label: prompt.Static("defer to end of queue"),
				Do: func(*prompt.Prompt) tea.Cmd {
					m.currentQueue.q.Defer(m.current)
					_, cmd := m.closeDecisionAndAdvance()
					return cmd
				},
			},
			{
				Key:   keys.Of("o"),
				Label: prompt.Static("reopen in browser"),
				Do:    func(*prompt.Prompt) tea.Cmd { return m.navigateCmd(m.detail.URL) },
			},
			{
				Key:   keys.Of("v"),
				Label: prompt.Static("switch queue"),
				Do: func(*prompt.Prompt) tea.Cmd {
					m.start = (m.start + 1) % len(m.queues)
					m.currentQueue.q.Defer(m.current)
					_, cmd := m.closeDecisionAndAdvance()
					return cmd
				},
			},
			{
				Key:   keys.Of("f"),
				Label: prompt.Static("filters…"),
				Do: func(*prompt.Prompt) tea.Cmd {
					m.stack.Push(m.filtersPrompt())
					return nil
				},
			},
			{
				Key:      keys.Of("g"),
				Label:    prompt.Static("default merge method…"),
				Advanced: true,
				Do: func(*prompt.Prompt) tea.Cmd {
					m.stack.Push(m.mergeMethodPrompt(false))
					return nil
				},
			},
			{
				Key:      keys.Of("p"),
				Label:    prompt.Static("approval mode…"),
				Advanced: true,
				Do: func(*prompt.Prompt) tea.Cmd {
					m.stack.Push(m.approveModePrompt())
					return nil
				},
			},
			{
				Key:      keys.Of("w"),
				Label:    prompt.Static("save settings"),
				Advanced: true,
				Do:       func(*prompt.Prompt) tea.Cmd { return m.saveSettingsCmd() },
			},
			{
				Key:      keys.Of("r"),
				Label:    prompt.Static("refresh queue data"),
				Advanced: true,
				Do: func(*prompt.Prompt) tea.Cmd {
					m.currentQueue.q.Invalidate()
					m.currentQueue.q.Defer(m.current)
					_, cmd := m.closeDecisionAndAdvance()
					return cmd
				},
			},
		},
	}
}

// filterState snapshots the membership-affecting settings so the exit
// hook can tell whether the queues must be rebuilt.
type filterState struct {
	review, action, drafts, wip, skipped, oldest bool
}

func (m *Model) snapshotFilters() filterState {
	s := m.deps.Settings
	return filterState{s.Review, s.Action, s.Drafts, s.WIP, s.Skipped, s.OldestFirst}
}

func (m *Model) filtersPrompt() *prompt.Prompt {
	s := m.deps.Settings
	toggle := func(field *bool) func(*prompt.Prompt) tea.Cmd {
		return func(p *prompt.Prompt) tea.Cmd {
			*field = !*field
			m.stack.Refresh()
			return nil
		}
	}
	check := func(field *bool) prompt.Flag {
		return prompt.FlagFunc(func(*prompt.Prompt) bool { return *field })
	}

	return &prompt.Prompt{
		Title:  prompt.Static("Filters"),
		Header: prompt.Static("toggles apply to the next fetch"),
		OnEnter: func(p *prompt.Prompt) {
			p.State = m.snapshotFilters()
		},
		OnExit: func(p *prompt.Prompt) {
			before := p.State.(filterState)
			if before != m.snapshotFilters() {
				// membership changed: rebuild every queue and reset the
				// browser so stale tabs don't linger
				m.invalidateQueues()
				if m.deps.Browser != nil {
					_ = m.deps.Browser.Reset()
				}
			}
			m.renderHeader()
		},
		Options: []prompt.Option{
			{Key: keys.Of("1"), Label: prompt.Static("include " + ColumnReview + " column"), Checkable: true, Checked: check(&s.Review), Do: toggle(&s.Review)},
			{Key: keys.Of("2"), Label: prompt.Static("include " + ColumnAction + " column"), Checkable: true, Checked: check(&s.Action), Do: toggle(&s.Action)},
			{Key: keys.Of("d"), Label: prompt.Static("include drafts"), Checkable: true, Checked: check(&s.Drafts), Do: toggle(&s.Drafts)},
			{Key: keys.Of("w"), Label: prompt.Static("include work-in-progress"), Checkable: true, Checked: check(&s.WIP), Do: toggle(&s.WIP)},
			{Key: keys.Of("k"), Label: prompt.Static("include skipped"), Checkable: true, Checked: check(&s.Skipped), Do: toggle(&s.Skipped)},
			{Key: keys.Of("o"), Label: prompt.Static("oldest first"), Checkable: true, Checked: check(&s.OldestFirst), Do: toggle(&s.OldestFirst)},
			backOption(m),
		},
	}
}

// mergeMethodPrompt picks a strategy. When immediate is set the choice
// also triggers the merge of the current item.
func (m *Model) mergeMethodPrompt(immediate bool) *prompt.Prompt {
	p := &prompt.Prompt{
		Title: prompt.Static("Merge method"),
	}
	for _, method := range []config.MergeMethod{config.MergeMerge, config.MergeSquash, config.MergeRebase} {
		method := method
		p.Options = append(p.Options, prompt.Option{
			Key:       keys.Of(string(method[:1])),
			Label:     prompt.Static(string(method)),
			Checkable: true,
			Checked: prompt.FlagFunc(func(*prompt.Prompt) bool {
				return m.deps.Settings.MergeMethod == method
			}),
			Do: func(pp *prompt.Prompt) tea.Cmd {
				m.deps.Settings.MergeMethod = method
				m.stack.Close(pp, method)
				m.stack.Refresh()
				if immediate {
					return m.mergeCmd(method)
				}
				return nil
			},
		})
	}
	p.Options = append(p.Options, backOption(m))
	return p
}

func (m *Model) approveModePrompt() *prompt.Prompt {
	p := &prompt.Prompt{
		Title:  prompt.Static("Approval mode"),
		Header: prompt.Static("when merging: manual never approves,\nauto approves if nobody else has,\nalways approves unless you already did"),
	}
	modeKeys := map[config.ApproveMode]string{
		config.ApproveManual: "m",
		config.ApproveAuto:   "u",
		config.ApproveAlways: "a",
	}
	for _, mode := range []config.ApproveMode{config.ApproveManual, config.ApproveAuto, config.ApproveAlways} {
		mode := mode
		p.Options = append(p.Options, prompt.Option{
			Key:       keys.Of(modeKeys[mode]),
			Label:     prompt.Static(string(mode)),
			Checkable: true,
			Checked: prompt.FlagFunc(func(*prompt.Prompt) bool {
				return m.deps.Settings.ApproveMode == mode
			}),
			Do: func(pp *prompt.Prompt) tea.Cmd {
				m.deps.Settings.ApproveMode = mode
				m.stack.Close(pp, mode)
				m.stack.Refresh()
				return nil
			},
		})
	}
	p.Options = append(p.Options, backOption(m))
	return p
}

func backOption(m *Model) prompt.Option {
	return prompt.Option{
		Key:   keys.Of("esc", "b"),
		Label: prompt.Static("back"),
		Do: func(p *prompt.Prompt) tea.Cmd {
			m.stack.Close(p, nil)
			return nil
		},
	}
}
