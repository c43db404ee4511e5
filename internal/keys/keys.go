package keys

import (
	"strings"

	tea "github.com/charmbracelet/bubbletea"
)

// Chord is one canonical key press: a key name plus modifier flags.
// Normalisation folds the platform encodings of Enter and Escape together,
// including the ctrl+m sequence many terminals emit for a literal Enter.
type Chord struct {
	Name  string
	Ctrl  bool
	Shift bool
	Meta  bool
}

// Parse builds a Chord from a compact string such as "q", "ctrl+c",
// "shift+tab" or "enter". Unknown modifier prefixes are treated as part of
// the key name.
func Parse(s string) Chord {
	var c Chord
	parts := strings.Split(s, "+")
	for len(parts) > 1 {
		switch strings.ToLower(parts[0]) {
		case "ctrl":
			c.Ctrl = true
		case "shift":
			c.Shift = true
		case "alt", "meta":
			c.Meta = true
		default:
			// not a modifier — the name itself contains '+'
			c.Name = canonical(strings.Join(parts, "+"))
			return normalize(c)
		}
		parts = parts[1:]
	}
	c.Name = canonical(parts[0])
	return normalize(c)
}

// FromKeyMsg converts a bubbletea key event into a canonical Chord.
func FromKeyMsg(msg tea.KeyMsg) Chord {
	return Parse(msg.String())
}

// canonical maps the spellings terminals and bubbletea use for the same key
// onto a single name.
func canonical(name string) string {
	switch strings.ToLower(name) {
	case "return", "enter":
		return "enter"
	case "escape", "esc":
		return "esc"
	}
	return name
}

// normalize applies the cross-field quirks: ctrl+m is a literal Enter on
// most terminals, so it collapses to a plain enter chord.
func normalize(c Chord) Chord {
	if c.Ctrl && c.Name == "m" {
		c.Ctrl = false
		c.Name = "enter"
	}
	return c
}

// Equal is structural equality across all four fields.
func (c Chord) Equal(o Chord) bool {
	return c.Name == o.Name && c.Ctrl == o.Ctrl && c.Shift == o.Shift && c.Meta == o.Meta
}

func (c Chord) String() string {
	var b strings.Builder
	if c.Ctrl {
		b.WriteString("ctrl+")
	}
	if c.Meta {
		b.WriteString("alt+")
	}
	if c.Shift {
		b.WriteString("shift+")
	}
	b.WriteString(c.Name)
	return b.String()
}

// Key is the key an option listens on: one chord or a list of alternates.
type Key []Chord

// Of builds a Key from compact chord strings.
func Of(specs ...string) Key {
	k := make(Key, 0, len(specs))
	for _, s := range specs {
		k = append(k, Parse(s))
	}
	return k
}

// Matches reports whether any alternate equals the candidate chord.
func (k Key) Matches(c Chord) bool {
	for _, alt := range k {
		if alt.Equal(c) {
			return true
		}
	}
	return false
}

// Label returns the display name of the primary chord, e.g. for menus.
func (k Key) Label() string {
	if len(k) == 0 {
		return ""
	}
	return k[0].String()
}
