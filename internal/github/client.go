// Package github implements the source collaborator on top of the gh CLI,
// which handles authentication and API shape differences for us.
package github

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"sort"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"rundown/internal/config"
	"rundown/internal/queue"
	"rundown/internal/review"
	"rundown/internal/source"
)

const (
	fetchTimeout  = 10 * time.Second
	mutateTimeout = 30 * time.Second
)

type Client struct {
	repo    string // owner/name
	owner   string
	project int
	team    string
	bot     string

	viewer      string
	maintainers []string
}

func New(s config.Settings) (*Client, error) {
	owner, _, ok := strings.Cut(s.Repo, "/")
	if !ok || owner == "" {
		return nil, fmt.Errorf("repo must be owner/name, got %q", s.Repo)
	}
	project, err := strconv.Atoi(s.Project)
	if err != nil {
		return nil, fmt.Errorf("project must be a project number, got %q", s.Project)
	}
	return &Client{
		repo:    s.Repo,
		owner:   owner,
		project: project,
		team:    s.MaintainerTeam,
		bot:     s.Bot,
	}, nil
}

// run executes gh and returns stdout. Stderr is folded into the error.
func run(ctx context.Context, timeout time.Duration, args ...string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	out, err := exec.CommandContext(ctx, "gh", args...).Output()
	if err != nil {
		if ee, ok := err.(*exec.ExitError); ok && len(ee.Stderr) > 0 {
			return nil, fmt.Errorf("gh %s: %s", args[0], strings.TrimSpace(string(ee.Stderr)))
		}
		return nil, fmt.Errorf("gh %s: %w", args[0], err)
	}
	return out, nil
}

// CheckAuth obtains the opaque bearer token gh holds. An empty token is an
// authentication failure, fatal at startup.
func (c *Client) CheckAuth(ctx context.Context) error {
	out, err := run(ctx, fetchTimeout, "auth", "token")
	if err != nil || len(strings.TrimSpace(string(out))) == 0 {
		return source.ErrAuth
	}
	return nil
}

// projectQuery is one round trip for the board: the Status field's options
// (our columns) and every item with its status and PR content.
const projectQuery = `
query($owner: String!, $number: Int!) {
  repositoryOwner(login: $owner) {
    ... on ProjectV2Owner {
      projectV2(number: $number) {
        id
        field(name: "Status") {
          ... on ProjectV2SingleSelectField { id options { id name } }
        }
        items(first: 200) {
          nodes {
            id
            updatedAt
            fieldValueByName(name: "Status") {
              ... on ProjectV2ItemFieldSingleSelectValue { name }
            }
            content {
              ... on PullRequest { number title updatedAt }
            }
          }
        }
      }
    }
  }
}`

type projectData struct {
	Data struct {
		RepositoryOwner struct {
			ProjectV2 struct {
				ID    string `json:"id"`
				Field struct {
					Options []struct {
						ID   string `json:"id"`
						Name string `json:"name"`
					} `json:"options"`
				} `json:"field"`
				Items struct {
					Nodes []struct {
						ID               string    `json:"id"`
						UpdatedAt        time.Time `json:"updatedAt"`
						FieldValueByName struct {
							Name string `json:"name"`
						} `json:"fieldValueByName"`
						Content struct {
							Number    int       `json:"number"`
							Title     string    `json:"title"`
							UpdatedAt time.Time `json:"updatedAt"`
						} `json:"content"`
					} `json:"nodes"`
				} `json:"items"`
			} `json:"projectV2"`
		} `json:"repositoryOwner"`
	} `json:"data"`
}

func (c *Client) fetchProject(ctx context.Context) (*projectData, error) {
	out, err := run(ctx, fetchTimeout, "api", "graphql",
		"-f", "query="+projectQuery,
		"-F", "owner="+c.owner,
		"-F", fmt.Sprintf("number=%d", c.project),
	)
	if err != nil {
		return nil, err
	}
	var data projectData
	if err := json.Unmarshal(out, &data); err != nil {
		return nil, fmt.Errorf("decode project: %w", err)
	}
	if data.Data.RepositoryOwner.ProjectV2.ID == "" {
		return nil, fmt.Errorf("project %d not found for %s", c.project, c.owner)
	}
	return &data, nil
}

func (c *Client) Columns(ctx context.Context, names []string) (map[string]source.Column, error) {
	data, err := c.fetchProject(ctx)
	if err != nil {
		return nil, err
	}
	available := make(map[string]source.Column)
	for _, opt := range data.Data.RepositoryOwner.ProjectV2.Field.Options {
		available[opt.Name] = source.Column{Name: opt.Name, ID: opt.ID}
	}
	out := make(map[string]source.Column, len(names))
	for _, name := range names {
		col, ok := available[name]
		if !ok {
			return nil, fmt.Errorf("%w: %q", source.ErrColumnNotFound, name)
		}
		out[name] = col
	}
	return out, nil
}

func (c *Client) Items(ctx context.Context, col source.Column, oldestFirst bool) ([]queue.Card, error) {
	data, err := c.fetchProject(ctx)
	if err != nil {
		return nil, err
	}
	var cards []queue.Card
	for _, n := range data.Data.RepositoryOwner.ProjectV2.Items.Nodes {
		if n.FieldValueByName.Name != col.Name || n.Content.Number == 0 {
			continue
		}
		updated := n.Content.UpdatedAt
		if n.UpdatedAt.After(updated) {
			updated = n.UpdatedAt
		}
		cards = append(cards, queue.Card{
			ID:        strconv.Itoa(n.Content.Number),
			Number:    n.Content.Number,
			UpdatedAt: updated,
		})
	}
	sort.SliceStable(cards, func(i, j int) bool {
		if oldestFirst {
			return cards[i].UpdatedAt.Before(cards[j].UpdatedAt)
		}
		return cards[j].UpdatedAt.Before(cards[i].UpdatedAt)
	})
	return cards, nil
}

func (c *Client) Viewer(ctx context.Context) (string, error) {
	if c.viewer != "" {
		return c.viewer, nil
	}
	out, err := run(ctx, fetchTimeout, "api", "user", "--jq", ".login")
	if err != nil {
		return "", err
	}
	c.viewer = strings.TrimSpace(string(out))
	return c.viewer, nil
}

func (c *Client) Maintainers(ctx context.Context) ([]string, error) {
	if c.maintainers != nil {
		return c.maintainers, nil
	}
	if c.team == "" {
		c.maintainers = []string{}
		return c.maintainers, nil
	}
	out, err := run(ctx, fetchTimeout, "api",
		fmt.Sprintf("orgs/%s/teams/%s/members", c.owner, c.team),
		"--paginate", "--jq", ".[].login")
	if err != nil {
		return nil, err
	}
	var members []string
	for _, line := range strings.Split(strings.TrimSpace(string(out)), "\n") {
		if line != "" {
			members = append(members, line)
		}
	}
	c.maintainers = members
	return members, nil
}

func (c *Client) Approve(ctx context.Context, prNumber int) error {
	_, err := run(ctx, mutateTimeout, "pr", "review",
		strconv.Itoa(prNumber), "--repo", c.repo, "--approve")
	return err
}

func (c *Client) Merge(ctx context.Context, prNumber int, method config.MergeMethod) error {
	flag := "--merge"
	switch method {
	case config.MergeSquash:
		flag = "--squash"
	case config.MergeRebase:
		flag = "--rebase"
	}
	_, err := run(ctx, mutateTimeout, "pr", "merge",
		strconv.Itoa(prNumber), "--repo", c.repo, flag)
	return err
}

// prView mirrors the gh pr view JSON fields we consume.
type prView struct {
	Number    int       `json:"number"`
	Title     string    `json:"title"`
	URL       string    `json:"url"`
	State     string    `json:"state"`
	IsDraft   bool      `json:"isDraft"`
	UpdatedAt time.Time `json:"updatedAt"`
	Author    struct {
		Login string `json:"login"`
	} `json:"author"`
	Labels []struct {
		Name string `json:"name"`
	} `json:"labels"`
	Commits []struct {
		CommittedDate time.Time `json:"committedDate"`
	} `json:"commits"`
	Reviews []struct {
		Author struct {
			Login string `json:"login"`
		} `json:"author"`
		State       string    `json:"state"`
		SubmittedAt time.Time `json:"submittedAt"`
	} `json:"reviews"`
	Comments []prComment `json:"comments"`
}

type prComment struct {
	Author struct {
		Login string `json:"login"`
	} `json:"author"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"createdAt"`
}

func (c *Client) ItemDetail(ctx context.Context, id string, opts source.DetailOpts) (*source.Detail, error) {
	// the item's detail and the operator/maintainer identities are
	// independent read-only lookups; issue them together and join
	g, gctx := errgroup.WithContext(ctx)
	var pr prView
	g.Go(func() error {
		out, err := run(gctx, fetchTimeout, "pr", "view", id, "--repo", c.repo,
			"--json", "number,title,url,state,isDraft,updatedAt,author,labels,commits,reviews,comments")
		if err != nil {
			return err
		}
		return json.Unmarshal(out, &pr)
	})
	var viewer string
	g.Go(func() (err error) {
		viewer, err = c.Viewer(gctx)
		return err
	})
	var maintainers []string
	g.Go(func() (err error) {
		maintainers, err = c.Maintainers(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if pr.State != "OPEN" {
		return nil, &source.SkipError{Reason: source.ReasonClosed}
	}

	d := &source.Detail{
		ID:        id,
		Number:    pr.Number,
		Title:     pr.Title,
		Author:    pr.Author.Login,
		URL:       pr.URL,
		Draft:     pr.IsDraft,
		UpdatedAt: pr.UpdatedAt,
	}
	for _, l := range pr.Labels {
		d.Labels = append(d.Labels, l.Name)
	}
	d.WIP = isWIP(pr.Title, d.Labels)

	for _, commit := range pr.Commits {
		if commit.CommittedDate.After(d.LastCommitAt) {
			d.LastCommitAt = commit.CommittedDate
		}
	}

	// activity relevant to skip suppression: commits and non-bot comments
	lastActivity := d.LastCommitAt
	for _, cm := range pr.Comments {
		if cm.Author.Login != c.bot && cm.CreatedAt.After(lastActivity) {
			lastActivity = cm.CreatedAt
		}
	}
	d.UpdatedAt = lastActivity

	if d.Draft && !opts.IncludeDrafts {
		return nil, &source.SkipError{Reason: source.ReasonDraft}
	}
	if d.WIP && !opts.IncludeWIP {
		return nil, &source.SkipError{Reason: source.ReasonWIP}
	}
	if awaitingRevision(d.Labels) {
		return nil, &source.SkipError{Reason: source.ReasonAwaitingRevision}
	}
	if !opts.IncludeSkipped && opts.Suppressed != nil && opts.Suppressed(id, lastActivity) {
		return nil, &source.SkipError{Reason: source.ReasonSkipped}
	}

	meta := latestBotMeta(c.bot, pr.Comments)
	d.Packages = meta.Packages
	d.SelfMerge = meta.SelfMerge

	var reviews []review.Review
	for _, r := range pr.Reviews {
		reviews = append(reviews, review.Review{
			Reviewer:    r.Author.Login,
			State:       review.State(r.State),
			SubmittedAt: r.SubmittedAt,
		})
	}
	d.Reviews = review.Latest(reviews, d.LastCommitAt)
	d.Status = review.Status{
		Self:       review.SelfStatus(d.Reviews, viewer),
		Owner:      review.OwnerStatus(d.Reviews, d.Packages),
		Maintainer: review.MaintainerStatus(d.Reviews, maintainers),
	}
	return d, nil
}
