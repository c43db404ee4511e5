package keys

import (
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
)

func TestParse_Normalisation(t *testing.T) {
	tests := []struct {
		in   string
		want Chord
	}{
		{"q", Chord{Name: "q"}},
		{"Q", Chord{Name: "Q"}},
		{"ctrl+c", Chord{Name: "c", Ctrl: true}},
		{"ctrl+d", Chord{Name: "d", Ctrl: true}},
		{"alt+x", Chord{Name: "x", Meta: true}},
		{"shift+tab", Chord{Name: "tab", Shift: true}},
		{"enter", Chord{Name: "enter"}},
		{"return", Chord{Name: "enter"}},
		{"ctrl+m", Chord{Name: "enter"}}, // terminals emit ctrl+m for Enter
		{"esc", Chord{Name: "esc"}},
		{"escape", Chord{Name: "esc"}},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Parse(tt.in), "Parse(%q)", tt.in)
	}
}

func TestFromKeyMsg(t *testing.T) {
	msg := tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("s")}
	assert.Equal(t, Chord{Name: "s"}, FromKeyMsg(msg))

	assert.Equal(t, Chord{Name: "enter"}, FromKeyMsg(tea.KeyMsg{Type: tea.KeyEnter}))
	assert.Equal(t, Chord{Name: "esc"}, FromKeyMsg(tea.KeyMsg{Type: tea.KeyEscape}))
	assert.Equal(t, Chord{Name: "c", Ctrl: true}, FromKeyMsg(tea.KeyMsg{Type: tea.KeyCtrlC}))
}

func TestKey_Matches(t *testing.T) {
	k := Of("enter", "ctrl+m", "y")

	assert.True(t, k.Matches(Parse("enter")))
	assert.True(t, k.Matches(Parse("return")))
	assert.True(t, k.Matches(Parse("y")))
	assert.False(t, k.Matches(Parse("n")))
	assert.False(t, k.Matches(Parse("ctrl+y")))

	// ctrl+m alternates collapse to enter, so a plain enter matches too
	assert.True(t, Of("ctrl+m").Matches(Parse("enter")))
}

func TestChord_String(t *testing.T) {
	assert.Equal(t, "ctrl+c", Parse("ctrl+c").String())
	assert.Equal(t, "alt+shift+p", Chord{Name: "p", Shift: true, Meta: true}.String())
}
