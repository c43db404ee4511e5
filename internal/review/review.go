// Package review reconciles a pull request's raw review history into the
// three independent approval dimensions the rundown acts on: the operator's
// own review, per-package owner coverage, and the maintainer team's call.
// Every reconciliation is computed from a full snapshot; nothing carries
// over between fetches.
package review

import (
	"sort"
	"time"
)

// State is a raw review verdict as reported upstream.
type State string

const (
	Approved         State = "APPROVED"
	ChangesRequested State = "CHANGES_REQUESTED"
	Commented        State = "COMMENTED"
	Pending          State = "PENDING"
	Dismissed        State = "DISMISSED"
)

// qualifying reports whether a state participates in approval math at all.
func (s State) qualifying() bool {
	return s == Approved || s == ChangesRequested
}

// Review is one raw review event.
type Review struct {
	Reviewer    string
	State       State
	SubmittedAt time.Time
}

// Retained is a review that survived the latest-per-reviewer reduction,
// with its staleness relative to the PR's newest commit.
type Retained struct {
	Review
	Outdated bool
}

// Approval is one dimension's tri-state outcome.
type Approval int

const (
	No Approval = iota
	Yes
	Stale // approved, but before the latest commit
)

func (a Approval) String() string {
	switch a {
	case Yes:
		return "yes"
	case Stale:
		return "outdated"
	}
	return "no"
}

// Granted reports whether the dimension is satisfied at all, fresh or not.
func (a Approval) Granted() bool { return a != No }

// PackageOwners is the bot-provided ownership of one package touched by
// the PR.
type PackageOwners struct {
	Package string
	Owners  []string
}

// Status aggregates the three independent dimensions. None overrides
// another.
type Status struct {
	Self       Approval
	Owner      Approval
	Maintainer Approval
}

// Latest reduces raw reviews to at most one qualifying review per
// reviewer: the one with the greatest submission timestamp. The retained
// set is returned ascending by submission time so downstream
// most-recent-wins picks are deterministic. A review is outdated when it
// precedes lastCommit.
func Latest(reviews []Review, lastCommit time.Time) []Retained {
	byReviewer := make(map[string]Review)
	for _, r := range reviews {
		prev, ok := byReviewer[r.Reviewer]
		if !ok || r.SubmittedAt.After(prev.SubmittedAt) {
			byReviewer[r.Reviewer] = r
		}
	}
	var out []Retained
	for _, r := range byReviewer {
		if !r.State.qualifying() {
			continue
		}
		out = append(out, Retained{
			Review:   r,
			Outdated: r.SubmittedAt.Before(lastCommit),
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].SubmittedAt.Equal(out[j].SubmittedAt) {
			return out[i].SubmittedAt.Before(out[j].SubmittedAt)
		}
		return out[i].Reviewer < out[j].Reviewer
	})
	return out
}

// approvalOf maps one retained review onto the tri-state scale.
func approvalOf(r Retained) Approval {
	if r.State != Approved {
		return No
	}
	if r.Outdated {
		return Stale
	}
	return Yes
}

// SelfStatus is the operator's own dimension.
func SelfStatus(retained []Retained, viewer string) Approval {
	for _, r := range retained {
		if r.Reviewer == viewer {
			return approvalOf(r)
		}
	}
	return No
}

// MaintainerStatus takes the temporally last retained review by a
// maintainer-team member.
func MaintainerStatus(retained []Retained, maintainers []string) Approval {
	team := make(map[string]bool, len(maintainers))
	for _, m := range maintainers {
		team[m] = true
	}
	// retained is ascending by submission time, so the last hit wins
	var last *Retained
	for i := range retained {
		if team[retained[i].Reviewer] {
			last = &retained[i]
		}
	}
	if last == nil {
		return No
	}
	return approvalOf(*last)
}

// controlling picks the more relevant of two reviews for one package:
// CHANGES_REQUESTED beats APPROVED unless the rejection is outdated and
// the approval is not. A fresh rejection always blocks a stale approval.
func controlling(a, b Retained) Retained {
	if a.State != b.State {
		cr, ap := a, b
		if b.State == ChangesRequested {
			cr, ap = b, a
		}
		if cr.Outdated && !ap.Outdated {
			return ap
		}
		return cr
	}
	// same state: a fresh review speaks for the package over a stale one
	if a.Outdated != b.Outdated {
		if a.Outdated {
			return b
		}
		return a
	}
	if b.SubmittedAt.After(a.SubmittedAt) {
		return b
	}
	return a
}

// OwnerStatus resolves owner approval across every package the PR
// touches. A package resolves only once each of its owners has a retained
// review; a PR with any unresolved package is not owner-approved.
func OwnerStatus(retained []Retained, packages []PackageOwners) Approval {
	if len(packages) == 0 {
		return No
	}
	byReviewer := make(map[string]Retained, len(retained))
	for _, r := range retained {
		byReviewer[r.Reviewer] = r
	}

	result := Yes
	for _, pkg := range packages {
		if len(pkg.Owners) == 0 {
			return No
		}
		var ctl *Retained
		for _, owner := range pkg.Owners {
			r, ok := byReviewer[owner]
			if !ok {
				return No // owner-relationship without a matching review
			}
			if ctl == nil {
				c := r
				ctl = &c
			} else {
				c := controlling(*ctl, r)
				ctl = &c
			}
		}
		switch approvalOf(*ctl) {
		case No:
			return No
		case Stale:
			result = Stale
		}
	}
	return result
}

// Reconcile computes the full status for one snapshot.
func Reconcile(reviews []Review, lastCommit time.Time, viewer string, maintainers []string, packages []PackageOwners) Status {
	retained := Latest(reviews, lastCommit)
	return Status{
		Self:       SelfStatus(retained, viewer),
		Owner:      OwnerStatus(retained, packages),
		Maintainer: MaintainerStatus(retained, maintainers),
	}
}
