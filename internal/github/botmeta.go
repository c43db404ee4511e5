package github

import (
	"strings"

	"rundown/internal/review"
)

// botMeta is the machine-readable state the review bot leaves in a PR
// comment: which packages the PR touches with their owners, and whether
// the author may self-merge.
type botMeta struct {
	Packages  []review.PackageOwners
	SelfMerge bool
}

// latestBotMeta parses the newest comment authored by the bot. Earlier bot
// comments are superseded whole; metadata is never merged across comments.
func latestBotMeta(bot string, comments []prComment) botMeta {
	var newest *prComment
	for i := range comments {
		if comments[i].Author.Login != bot {
			continue
		}
		if newest == nil || comments[i].CreatedAt.After(newest.CreatedAt) {
			newest = &comments[i]
		}
	}
	if newest == nil {
		return botMeta{}
	}
	return parseBotMeta(newest.Body)
}

// parseBotMeta reads the bot's comment body line by line. Recognised
// lines:
//
//	owners of <package>: login, login
//	self-merge: allowed
//
// Anything else is prose and ignored.
func parseBotMeta(body string) botMeta {
	var meta botMeta
	for _, line := range strings.Split(body, "\n") {
		line = strings.TrimSpace(line)
		lower := strings.ToLower(line)
		switch {
		case strings.HasPrefix(lower, "owners of "):
			rest := line[len("owners of "):]
			pkg, owners, ok := strings.Cut(rest, ":")
			if !ok {
				continue
			}
			po := review.PackageOwners{Package: strings.TrimSpace(pkg)}
			for _, o := range strings.Split(owners, ",") {
				o = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(o), "@"))
				if o != "" {
					po.Owners = append(po.Owners, o)
				}
			}
			if po.Package != "" && len(po.Owners) > 0 {
				meta.Packages = append(meta.Packages, po)
			}
		case strings.HasPrefix(lower, "self-merge:"):
			_, v, _ := strings.Cut(lower, ":")
			v = strings.TrimSpace(v)
			meta.SelfMerge = v == "allowed" || v == "yes" || v == "true"
		}
	}
	return meta
}

// isWIP detects work-in-progress markers in the title or labels.
func isWIP(title string, labels []string) bool {
	lower := strings.ToLower(strings.TrimSpace(title))
	for _, prefix := range []string{"wip:", "wip ", "[wip]", "wip/"} {
		if strings.HasPrefix(lower, prefix) {
			return true
		}
	}
	if lower == "wip" {
		return true
	}
	for _, l := range labels {
		if strings.EqualFold(l, "wip") || strings.EqualFold(l, "work in progress") {
			return true
		}
	}
	return false
}

// awaitingRevision reports whether the author still owes changes; such
// items are passed over without operator interaction.
func awaitingRevision(labels []string) bool {
	for _, l := range labels {
		switch strings.ToLower(l) {
		case "awaiting revision", "awaiting-revision", "needs revision", "needs-revision":
			return true
		}
	}
	return false
}
