// Package source defines the collaborator interface the rundown core
// consumes for board, pull-request and review data, plus the stable
// snapshot shapes it receives. Implementations adapt whatever upstream API
// they talk to; the core never sees raw API responses.
package source

import (
	"context"
	"errors"
	"fmt"
	"time"

	"rundown/internal/config"
	"rundown/internal/queue"
	"rundown/internal/review"
)

// Column is a handle for one tracked board column.
type Column struct {
	Name string
	ID   string
}

// Detail is the full snapshot of one pull request, with its approval
// status already reconciled.
type Detail struct {
	ID     string
	Number int
	Title  string
	Author string
	URL    string

	Draft bool
	WIP   bool

	Labels []string

	LastCommitAt time.Time
	UpdatedAt    time.Time

	// SelfMerge is the bot-reported capability: the author is trusted to
	// merge once approved, without a separate merge step by the operator.
	SelfMerge bool

	Packages []review.PackageOwners
	Reviews  []review.Retained
	Status   review.Status
}

// DetailOpts carries the active filters a fetch applies.
type DetailOpts struct {
	IncludeDrafts  bool
	IncludeWIP     bool
	IncludeSkipped bool
	// Suppressed reports whether the skip registry currently hides the
	// item, given its last update time.
	Suppressed func(id string, lastUpdated time.Time) bool
}

// SkipReason classifies why an item was passed over without operator
// interaction.
type SkipReason string

const (
	ReasonClosed           SkipReason = "closed"
	ReasonDraft            SkipReason = "draft"
	ReasonWIP              SkipReason = "work in progress"
	ReasonAwaitingRevision SkipReason = "awaiting revision"
	ReasonSkipped          SkipReason = "skipped earlier"
)

// SkipError is the item-level recoverable failure: the item is logged and
// the rundown moves on.
type SkipError struct {
	Reason SkipReason
}

func (e *SkipError) Error() string { return string(e.Reason) }

// Skipped extracts a SkipError, if err is one.
func Skipped(err error) (*SkipError, bool) {
	var se *SkipError
	if errors.As(err, &se) {
		return se, true
	}
	return nil, false
}

// ErrColumnNotFound is fatal at startup.
var ErrColumnNotFound = errors.New("board column not found")

// ErrAuth is fatal at startup: no usable credential.
var ErrAuth = errors.New("authentication failed")

// Source is the remote data collaborator.
type Source interface {
	// Columns resolves the named board columns. Missing names yield
	// ErrColumnNotFound.
	Columns(ctx context.Context, names []string) (map[string]Column, error)
	// Items lists a column's cards in the requested order.
	Items(ctx context.Context, col Column, oldestFirst bool) ([]queue.Card, error)
	// ItemDetail fetches one PR's full snapshot, applying the active
	// filters; filtered-out items return *SkipError.
	ItemDetail(ctx context.Context, id string, opts DetailOpts) (*Detail, error)
	// Approve submits an approving review as the operator.
	Approve(ctx context.Context, prNumber int) error
	// Merge merges with the given strategy.
	Merge(ctx context.Context, prNumber int, method config.MergeMethod) error
	// Viewer is the authenticated operator's login.
	Viewer(ctx context.Context) (string, error)
	// Maintainers is the elevated-review team's membership.
	Maintainers(ctx context.Context) ([]string, error)
}

// Browser drives a debugger-attached browser tab. All operations are best
// effort for the caller: navigation failures never fail the triage flow.
type Browser interface {
	Navigate(url string) error
	Reset() error
	Close() error
}

// Position renders an item's place in its queue for log lines, e.g.
// "[3/12]".
func Position(visited, total int) string {
	return fmt.Sprintf("[%d/%d]", visited, total)
}
