package queue

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func cards(ids ...string) []Card {
	out := make([]Card, len(ids))
	for i, id := range ids {
		out[i] = Card{ID: id, UpdatedAt: t0}
	}
	return out
}

func TestNext_AdvancesAndBounds(t *testing.T) {
	q := New("review", true)
	q.Populate(cards("a", "b"))

	c, ok := q.Next()
	require.True(t, ok)
	assert.Equal(t, "a", c.ID)
	assert.Equal(t, 1, q.Offset())

	c, ok = q.Next()
	require.True(t, ok)
	assert.Equal(t, "b", c.ID)

	_, ok = q.Next()
	assert.False(t, ok)
	assert.LessOrEqual(t, q.Offset(), q.Len(), "offset never exceeds length")
}

func TestNext_ClearsFlagsExactlyOnce(t *testing.T) {
	q := New("review", true)
	q.Populate(cards("a"))

	c, _ := q.Next()
	q.Skip(c)
	assert.Equal(t, 1, q.SkippedCount())

	// revisit via defer: Next must hand the card back unflagged and
	// decrement the counter exactly once
	require.True(t, q.Defer(c))
	c2, ok := q.Next()
	require.True(t, ok)
	assert.Equal(t, "a", c2.ID)
	assert.False(t, c2.Skipped)
	assert.False(t, c2.Deferred)
	assert.Equal(t, 0, q.SkippedCount())
	assert.Equal(t, 0, q.DeferredCount())
}

func TestDefer_RelocatesToTail(t *testing.T) {
	q := New("review", true)
	q.Populate(cards("a", "b", "c"))

	c, _ := q.Next() // a consumed
	require.True(t, q.Defer(c))

	assert.Equal(t, 0, q.Offset(), "cursor steps back so no card is jumped")
	assert.Equal(t, 1, q.DeferredCount())

	// order is now b, c, a
	next, _ := q.Next()
	assert.Equal(t, "b", next.ID)
	next, _ = q.Next()
	assert.Equal(t, "c", next.ID)
	next, _ = q.Next()
	assert.Equal(t, "a", next.ID)
}

func TestDefer_OutsideVisitedWindowIsNoop(t *testing.T) {
	q := New("review", true)
	q.Populate(cards("a", "b"))

	// b is not yet consumed: deferring it makes no sense
	unvisited := Card{ID: "b"}
	assert.False(t, q.Defer(&unvisited))
	assert.Equal(t, 0, q.DeferredCount())
}

func TestComplete_Counted(t *testing.T) {
	q := New("review", true)
	q.Populate(cards("a", "b", "c"))
	c, _ := q.Next()
	q.Complete(c)
	q.Complete(c) // idempotent
	assert.Equal(t, 1, q.CompletedCount())
	assert.LessOrEqual(t, q.CompletedCount(), q.Len())
}

func TestSetOldestFirst_MarksStale(t *testing.T) {
	q := New("review", true)
	q.Populate(cards("a"))
	assert.False(t, q.Stale())

	q.SetOldestFirst(true) // unchanged: not stale
	assert.False(t, q.Stale())

	q.SetOldestFirst(false)
	assert.True(t, q.Stale())
}

func TestRepopulate_PartitionsSeenUnseenDeferred(t *testing.T) {
	q := New("review", true)
	q.Populate(cards("a", "b", "c", "d"))

	a, _ := q.Next()
	q.Complete(a)
	b, _ := q.Next()
	require.True(t, q.Defer(b)) // b relocated to tail, offset back to 1

	// upstream: c updated, new card e arrives, d unchanged
	fetched := []Card{
		{ID: "e", UpdatedAt: t0},
		{ID: "c", UpdatedAt: t0.Add(time.Hour)},
		{ID: "d", UpdatedAt: t0},
		{ID: "a", UpdatedAt: t0},
		{ID: "b", UpdatedAt: t0},
	}
	q.Repopulate(fetched)

	var order []string
	for {
		c, ok := q.Next()
		if !ok {
			break
		}
		order = append(order, c.ID)
	}
	// a was seen-and-unchanged (front, already consumed so Next starts after
	// it); e/c/d follow in fetched order; deferred b is forced to the tail
	assert.Equal(t, []string{"e", "c", "d", "b"}, order)
	assert.Equal(t, 1, q.Offset()-len(order), "a stays consumed at the front")
}

func TestRepopulate_DropsCardsGoneUpstream(t *testing.T) {
	q := New("review", true)
	q.Populate(cards("a", "b"))
	q.Next()

	q.Repopulate(cards("b"))
	assert.Equal(t, 1, q.Len())
	assert.Equal(t, 0, q.Offset())
}

func TestRepopulate_ClearsStale(t *testing.T) {
	q := New("review", true)
	q.SetOldestFirst(false)
	require.True(t, q.Stale())
	q.Repopulate(cards("a"))
	assert.False(t, q.Stale())
}

func TestRevalidate_ClearsStaleWithoutReset(t *testing.T) {
	q := New("review", true)
	q.Populate(cards("a", "b"))
	q.Next()
	q.Invalidate()
	require.True(t, q.Stale())

	q.Revalidate()
	assert.False(t, q.Stale())
	assert.Equal(t, 2, q.Len())
	assert.Equal(t, 1, q.Offset())
}
