package prompt

import (
	tea "github.com/charmbracelet/bubbletea"

	"rundown/internal/keys"
)

// Text is a menu field that is either a static string or computed against
// the prompt it belongs to. Computed fields are resolved once per render
// pass (push, refresh, advanced toggle), never on every keystroke.
type Text struct {
	static string
	fn     func(*Prompt) string
}

func Static(s string) Text                   { return Text{static: s} }
func Computed(fn func(*Prompt) string) Text { return Text{fn: fn} }

func (t Text) eval(p *Prompt) string {
	if t.fn != nil {
		return t.fn(p)
	}
	return t.static
}

// Flag is the boolean counterpart of Text. The zero value is a static false.
type Flag struct {
	static bool
	fn     func(*Prompt) bool
}

func On() Flag                             { return Flag{static: true} }
func FlagOf(v bool) Flag                   { return Flag{static: v} }
func FlagFunc(fn func(*Prompt) bool) Flag  { return Flag{fn: fn} }

func (f Flag) eval(p *Prompt) bool {
	if f.fn != nil {
		return f.fn(p)
	}
	return f.static
}

// Option is one selectable entry of a modal menu.
type Option struct {
	Key      keys.Key
	Label    Text
	Disabled Flag
	Hidden   Flag
	Checked  Flag // rendered as a checkbox only when Checkable is set
	Checkable bool
	Advanced  bool
	// Do runs when the option's key is pressed. A non-nil command is the
	// option's asynchronous work; the stack stays latched until the
	// orchestrator reports it finished.
	Do func(*Prompt) tea.Cmd
}

// Prompt is one modal menu instance. State is a bag private to the prompt,
// initialised by OnEnter and read by computed fields and actions.
type Prompt struct {
	Title   Text
	Header  Text
	Options []Option
	State   any
	OnEnter func(*Prompt)
	OnExit  func(*Prompt)

	// Result is set by Stack.Close and delivered on the push channel.
	Result any

	showAdvanced bool
}

// evaluated is the snapshot of a prompt's dynamic fields for rendering and
// key dispatch. Hidden options are kept (with the flag set) so option
// indices stay stable across refreshes.
type evaluated struct {
	title  string
	header string
	opts   []evaluatedOption
}

type evaluatedOption struct {
	key       keys.Key
	label     string
	disabled  bool
	hidden    bool
	checked   bool
	checkable bool
	advanced  bool
}

func (p *Prompt) evaluate() evaluated {
	ev := evaluated{
		title:  p.Title.eval(p),
		header: p.Header.eval(p),
	}
	for _, o := range p.Options {
		ev.opts = append(ev.opts, evaluatedOption{
			key:       o.Key,
			label:     o.Label.eval(p),
			disabled:  o.Disabled.eval(p),
			hidden:    o.Hidden.eval(p),
			checked:   o.Checked.eval(p),
			checkable: o.Checkable,
			advanced:  o.Advanced,
		})
	}
	return ev
}

// hasAdvanced reports whether the prompt needs a synthesized advanced
// toggle: any non-hidden option marked advanced.
func (ev evaluated) hasAdvanced() bool {
	for _, o := range ev.opts {
		if o.advanced && !o.hidden {
			return true
		}
	}
	return false
}
