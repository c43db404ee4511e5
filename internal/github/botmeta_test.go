package github

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rundown/internal/review"
)

func comment(author, body string, at time.Time) prComment {
	var c prComment
	c.Author.Login = author
	c.Body = body
	c.CreatedAt = at
	return c
}

func TestParseBotMeta(t *testing.T) {
	body := `Automated review summary.

owners of pkg/storage: @alice, bob
owners of pkg/api: carol
self-merge: allowed

Please get the owners above to sign off.`

	meta := parseBotMeta(body)
	require.Len(t, meta.Packages, 2)
	assert.Equal(t, review.PackageOwners{Package: "pkg/storage", Owners: []string{"alice", "bob"}}, meta.Packages[0])
	assert.Equal(t, review.PackageOwners{Package: "pkg/api", Owners: []string{"carol"}}, meta.Packages[1])
	assert.True(t, meta.SelfMerge)
}

func TestParseBotMeta_ProseOnly(t *testing.T) {
	meta := parseBotMeta("LGTM, nothing structured here.\nself-merge: denied")
	assert.Empty(t, meta.Packages)
	assert.False(t, meta.SelfMerge)
}

func TestLatestBotMeta_NewestCommentWins(t *testing.T) {
	t1 := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	comments := []prComment{
		comment("review-bot", "owners of pkg/old: alice\nself-merge: allowed", t1),
		comment("human", "owners of pkg/fake: mallory", t1.Add(2*time.Hour)),
		comment("review-bot", "owners of pkg/new: bob", t1.Add(time.Hour)),
	}

	meta := latestBotMeta("review-bot", comments)
	require.Len(t, meta.Packages, 1)
	assert.Equal(t, "pkg/new", meta.Packages[0].Package)
	assert.False(t, meta.SelfMerge, "superseded comment's capability does not linger")
}

func TestLatestBotMeta_NoBotComment(t *testing.T) {
	meta := latestBotMeta("review-bot", []prComment{
		comment("human", "owners of pkg/x: y", time.Now()),
	})
	assert.Empty(t, meta.Packages)
}

func TestIsWIP(t *testing.T) {
	assert.True(t, isWIP("WIP: new parser", nil))
	assert.True(t, isWIP("[wip] new parser", nil))
	assert.True(t, isWIP("wip", nil))
	assert.True(t, isWIP("New parser", []string{"WIP"}))
	assert.True(t, isWIP("New parser", []string{"work in progress"}))
	assert.False(t, isWIP("Wipe the cache on restart", nil))
	assert.False(t, isWIP("New parser", []string{"bug"}))
}

func TestAwaitingRevision(t *testing.T) {
	assert.True(t, awaitingRevision([]string{"awaiting-revision"}))
	assert.True(t, awaitingRevision([]string{"Needs Revision"}))
	assert.False(t, awaitingRevision([]string{"enhancement"}))
}
