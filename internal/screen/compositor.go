// Package screen maintains the four stacked text regions of the rundown
// display. Each region keeps the source lines it wants shown and the lines
// last composed to the terminal; recomposition starts at the first line
// that differs, and clearing a region clears everything below it because
// lower regions are positioned relative to the line counts above them.
package screen

import "strings"

type Region int

const (
	Header Region = iota
	Progress
	Log
	Detail
	numRegions
)

func (r Region) String() string {
	switch r {
	case Header:
		return "header"
	case Progress:
		return "progress"
	case Log:
		return "log"
	case Detail:
		return "detail"
	}
	return "unknown"
}

// logKeep bounds the scrolling log region.
const logKeep = 50

type Compositor struct {
	width      int
	src        [numRegions][]string
	last       [numRegions][]string
	dirty      bool
	suppressed bool
	frame      string
}

func New(width int) *Compositor {
	return &Compositor{width: width, dirty: true}
}

// SetWidth changes the wrap width; every region rewraps on next compose.
func (c *Compositor) SetWidth(w int) {
	if w == c.width {
		return
	}
	c.width = w
	for r := range c.last {
		c.last[r] = nil
	}
	c.dirty = true
}

// Set replaces a region's source lines.
func (c *Compositor) Set(r Region, lines []string) {
	c.src[r] = append([]string(nil), lines...)
	c.dirty = true
}

// Append adds one line to a region, trimming the log region to its
// scrollback bound.
func (c *Compositor) Append(r Region, line string) {
	c.src[r] = append(c.src[r], line)
	if r == Log && len(c.src[r]) > logKeep {
		c.src[r] = c.src[r][len(c.src[r])-logKeep:]
	}
	c.dirty = true
}

// Clear empties a region and, because lower regions are positionally
// dependent on it, every region below it.
func (c *Compositor) Clear(r Region) {
	for rr := r; rr < numRegions; rr++ {
		c.src[rr] = nil
	}
	c.dirty = true
}

// Lines returns a region's current source lines.
func (c *Compositor) Lines(r Region) []string {
	return c.src[r]
}

// Suppress pauses composition while a modal prompt owns the screen. While
// suppressed, Compose returns the previous frame untouched.
func (c *Compositor) Suppress(on bool) {
	if c.suppressed && !on {
		c.dirty = true
	}
	c.suppressed = on
}

func (c *Compositor) Dirty() bool { return c.dirty }

// LineCount is the composed (wrapped) height of a region as of the last
// compose.
func (c *Compositor) LineCount(r Region) int {
	return len(c.last[r])
}

// ChangedFrom returns the index of the first composed line of the region
// that differs from what was last composed, or the composed length when
// nothing changed. Everything from that line down needs rewriting.
func (c *Compositor) ChangedFrom(r Region) int {
	next := c.wrapRegion(r)
	prev := c.last[r]
	i := 0
	for i < len(next) && i < len(prev) && next[i] == prev[i] {
		i++
	}
	if i == len(next) && len(next) == len(prev) {
		return len(next)
	}
	return i
}

func (c *Compositor) wrapRegion(r Region) []string {
	var out []string
	for _, line := range c.src[r] {
		out = append(out, Wrap(line, c.width)...)
	}
	return out
}

// Compose renders all four regions top to bottom and records the result as
// the last-written state. Unchanged composes return the cached frame.
func (c *Compositor) Compose() string {
	if c.suppressed || !c.dirty {
		return c.frame
	}
	var parts []string
	for r := Region(0); r < numRegions; r++ {
		wrapped := c.wrapRegion(r)
		c.last[r] = wrapped
		if len(wrapped) > 0 {
			parts = append(parts, strings.Join(wrapped, "\n"))
		}
	}
	c.frame = strings.Join(parts, "\n")
	c.dirty = false
	return c.frame
}
