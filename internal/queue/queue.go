// Package queue tracks the per-column rundown state: an ordered queue of
// cards with a consumed-offset cursor, session counters, and the skip
// registry that suppresses cards across runs.
package queue

import "time"

// Card is one trackable unit inside a column: a pull request plus its
// in-session triage flags. Flags mean "marked since this position was last
// visited", never permanent state.
type Card struct {
	ID        string
	Number    int
	UpdatedAt time.Time

	Completed bool
	Skipped   bool
	Deferred  bool
}

// Queue owns the ordered cards of one column. Cards before offset have
// been consumed this session. Changing the sort order invalidates the
// ordering, so the queue must be repopulated before the next card is
// handed out.
type Queue struct {
	Name        string
	OldestFirst bool

	cards  []Card
	offset int

	completed int
	skipped   int
	deferred  int

	stale bool // repopulation required before the next card
}

func New(name string, oldestFirst bool) *Queue {
	return &Queue{Name: name, OldestFirst: oldestFirst, stale: true}
}

// Populate replaces the queue contents with freshly fetched cards and
// resets the cursor and counters.
func (q *Queue) Populate(cards []Card) {
	q.cards = append([]Card(nil), cards...)
	q.offset = 0
	q.completed, q.skipped, q.deferred = 0, 0, 0
	q.stale = false
}

// SetOldestFirst flips the sort order. A changed order marks the queue
// stale: its ordering no longer matches what was fetched.
func (q *Queue) SetOldestFirst(oldest bool) {
	if q.OldestFirst != oldest {
		q.OldestFirst = oldest
		q.stale = true
	}
}

// Invalidate forces repopulation before the next card (manual refresh,
// membership-affecting filter change).
func (q *Queue) Invalidate() { q.stale = true }

// Revalidate clears the stale flag without touching the cards: a refresh
// fetch failed and the session keeps its current ordering and progress.
func (q *Queue) Revalidate() { q.stale = false }

// Stale reports whether the queue needs repopulating.
func (q *Queue) Stale() bool { return q.stale }

// Next hands out the card at the cursor and advances it. Whatever flags
// the card carried from an earlier visit are cleared, decrementing the
// matching counter exactly once, so the caller always receives an
// unflagged card.
func (q *Queue) Next() (*Card, bool) {
	if q.offset >= len(q.cards) {
		return nil, false
	}
	c := &q.cards[q.offset]
	if c.Skipped {
		c.Skipped = false
		q.skipped--
	}
	if c.Deferred {
		c.Deferred = false
		q.deferred--
	}
	if c.Completed {
		c.Completed = false
		q.completed--
	}
	q.offset++
	return c, true
}

// Complete marks a consumed card done.
func (q *Queue) Complete(c *Card) {
	if !c.Completed {
		c.Completed = true
		q.completed++
	}
}

// Skip marks a consumed card skipped for this session.
func (q *Queue) Skip(c *Card) {
	if !c.Skipped {
		c.Skipped = true
		q.skipped++
	}
}

// Defer relocates a consumed card to the queue tail and steps the cursor
// back so the next advance does not jump over a card. It is valid only
// while the card is still inside the visited window; anything else is a
// no-op. Reports whether the defer took effect.
func (q *Queue) Defer(c *Card) bool {
	idx := -1
	for i := range q.cards {
		if &q.cards[i] == c || (q.cards[i].ID == c.ID && q.cards[i].ID != "") {
			idx = i
			break
		}
	}
	if idx < 0 || idx >= q.offset {
		return false
	}
	moved := q.cards[idx]
	if !moved.Deferred {
		q.deferred++
	}
	moved.Deferred = true
	q.cards = append(q.cards[:idx], q.cards[idx+1:]...)
	q.cards = append(q.cards, moved)
	q.offset--
	return true
}

// Repopulate rebuilds the queue from a fresh fetch while preserving the
// session's progress: visited cards that are unchanged upstream stay at
// the front (still consumed), unseen cards follow in fetched order, and
// deferred cards are forced to the tail.
func (q *Queue) Repopulate(fetched []Card) {
	fresh := make(map[string]Card, len(fetched))
	for _, c := range fetched {
		fresh[c.ID] = c
	}

	var front, tail []Card
	placed := make(map[string]bool)

	for i := 0; i < q.offset && i < len(q.cards); i++ {
		old := q.cards[i]
		f, ok := fresh[old.ID]
		if !ok {
			continue // gone upstream
		}
		if !f.UpdatedAt.After(old.UpdatedAt) {
			front = append(front, old)
			placed[old.ID] = true
		}
		// changed upstream: falls through to the unseen section below
	}
	for i := q.offset; i < len(q.cards); i++ {
		old := q.cards[i]
		if old.Deferred {
			if f, ok := fresh[old.ID]; ok {
				f.Deferred = true
				tail = append(tail, f)
				placed[old.ID] = true
			}
		}
	}

	var middle []Card
	for _, c := range fetched {
		if !placed[c.ID] {
			middle = append(middle, c)
		}
	}

	q.cards = append(append(front, middle...), tail...)
	q.offset = len(front)
	q.recount()
	q.stale = false
}

func (q *Queue) recount() {
	q.completed, q.skipped, q.deferred = 0, 0, 0
	for _, c := range q.cards {
		if c.Completed {
			q.completed++
		}
		if c.Skipped {
			q.skipped++
		}
		if c.Deferred {
			q.deferred++
		}
	}
}

func (q *Queue) Len() int            { return len(q.cards) }
func (q *Queue) Offset() int         { return q.offset }
func (q *Queue) Remaining() int      { return len(q.cards) - q.offset }
func (q *Queue) CompletedCount() int { return q.completed }
func (q *Queue) SkippedCount() int   { return q.skipped }
func (q *Queue) DeferredCount() int  { return q.deferred }
