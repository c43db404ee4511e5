package screen

import (
	"strings"

	"github.com/mattn/go-runewidth"
	"github.com/rivo/uniseg"
)

type tokenKind int

const (
	tokenEscape tokenKind = iota
	tokenBreak
	tokenSpace
	tokenWord
)

type token struct {
	kind tokenKind
	text string
}

// tokenize splits s into escape-sequence, line-break, whitespace-run and
// word tokens using maximal-munch scanning.
func tokenize(s string) []token {
	var toks []token
	i := 0
	for i < len(s) {
		switch {
		case s[i] == 0x1b:
			j := i + 1
			if j < len(s) && s[j] == '[' {
				// CSI: parameters and intermediates, then one final byte
				j++
				for j < len(s) && (s[j] < 0x40 || s[j] > 0x7e) {
					j++
				}
				if j < len(s) {
					j++
				}
			} else if j < len(s) {
				j++
			}
			toks = append(toks, token{tokenEscape, s[i:j]})
			i = j
		case s[i] == '\n':
			toks = append(toks, token{tokenBreak, "\n"})
			i++
		case s[i] == '\r':
			j := i + 1
			if j < len(s) && s[j] == '\n' {
				j++
			}
			toks = append(toks, token{tokenBreak, s[i:j]})
			i = j
		case s[i] == ' ' || s[i] == '\t':
			j := i
			for j < len(s) && (s[j] == ' ' || s[j] == '\t') {
				j++
			}
			toks = append(toks, token{tokenSpace, s[i:j]})
			i = j
		default:
			j := i
			for j < len(s) && s[j] != ' ' && s[j] != '\t' && s[j] != '\n' && s[j] != '\r' && s[j] != 0x1b {
				j++
			}
			toks = append(toks, token{tokenWord, s[i:j]})
			i = j
		}
	}
	return toks
}

// Wrap soft word-wraps text to the given display width. Escape sequences
// are zero-width and copied through verbatim; words are never split, so a
// word wider than the line goes out unsplit on its own line. A whitespace
// token that would be the sole start of a continuation line is discarded,
// and trailing whitespace is trimmed when a line is flushed.
func Wrap(text string, width int) []string {
	if width <= 0 {
		return strings.Split(text, "\n")
	}

	var lines []string
	var cur strings.Builder
	curWidth := 0

	flush := func() {
		lines = append(lines, strings.TrimRight(cur.String(), " \t"))
		cur.Reset()
		curWidth = 0
	}

	for _, t := range tokenize(text) {
		switch t.kind {
		case tokenBreak:
			flush()
		case tokenEscape:
			cur.WriteString(t.text)
		case tokenSpace:
			w := runewidth.StringWidth(t.text)
			if curWidth+w > width {
				flush() // the break token is dropped at the new line's start
				continue
			}
			cur.WriteString(t.text)
			curWidth += w
		case tokenWord:
			w := runewidth.StringWidth(t.text)
			if curWidth > 0 && curWidth+w > width {
				flush()
			}
			cur.WriteString(t.text)
			curWidth += w
		}
	}
	if cur.Len() > 0 || len(lines) == 0 {
		flush()
	}
	return lines
}

// Truncate shortens s to at most width columns, cutting on grapheme
// boundaries and appending an ellipsis when anything was removed.
func Truncate(s string, width int) string {
	if width <= 0 {
		return ""
	}
	if runewidth.StringWidth(s) <= width {
		return s
	}
	var b strings.Builder
	used := 0
	g := uniseg.NewGraphemes(s)
	for g.Next() {
		cluster := g.Str()
		w := runewidth.StringWidth(cluster)
		if used+w > width-1 {
			break
		}
		b.WriteString(cluster)
		used += w
	}
	return b.String() + "…"
}
