package github

import (
	"context"
	"strconv"
	"time"

	gh "github.com/google/go-github/v72/github"

	"github.com/joescharf/ghwatch/internal/fetch"
	"github.com/joescharf/ghwatch/internal/models"
)

// IssueFetcher fetches newly opened issues and pull requests. The issues
// endpoint lists both; pull requests carry a pull_request marker.
type IssueFetcher struct {
	client *Client
}

// NewIssueFetcher returns an IssueFetcher using c.
func NewIssueFetcher(c *Client) *IssueFetcher {
	return &IssueFetcher{client: c}
}

// SourceTypes implements fetch.Fetcher.
func (f *IssueFetcher) SourceTypes() []models.SourceType {
	return []models.SourceType{models.SourceIssue, models.SourcePullRequest}
}

// FetchNewActivities implements fetch.Fetcher.
func (f *IssueFetcher) FetchNewActivities(ctx context.Context, repo string, rs models.RepositoryState) ([]models.ActivityItem, error) {
	owner, name, err := fetch.SplitRepo(repo)
	if err != nil {
		f.client.logger.Warn("skipping repository", "repo", repo, "error", err)
		return nil, nil
	}

	issueSince := rs.Watermark(models.SourceIssue)
	prSince := rs.Watermark(models.SourcePullRequest)

	opts := &gh.IssueListByRepoOptions{
		State:       "all",
		Sort:        "created",
		Direction:   "desc",
		ListOptions: gh.ListOptions{PerPage: f.client.pageSize},
	}
	// since filters on update time, which is never before creation time.
	if since := earliest(issueSince, prSince); since.After(models.Epoch) {
		opts.Since = since
	}

	f.client.logger.Debug("fetching issues", "repo", repo, "issues_since", issueSince, "pulls_since", prSince)
	issues, _, err := f.client.rest.Issues.ListByRepo(ctx, owner, name, opts)
	if err != nil {
		return nil, f.client.recoverFetch(ctx, repo, "issues", err)
	}

	var items []models.ActivityItem
	for _, is := range issues {
		st, since := models.SourceIssue, issueSince
		if is.IsPullRequest() {
			st, since = models.SourcePullRequest, prSince
		}
		created := is.GetCreatedAt().Time
		if !created.After(since) {
			continue
		}
		items = append(items, models.ActivityItem{
			Repo:       repo,
			SourceType: st,
			ID:         strconv.Itoa(is.GetNumber()),
			Title:      is.GetTitle(),
			URL:        is.GetHTMLURL(),
			Author:     login(is.GetUser().GetLogin()),
			CreatedAt:  created,
			Body:       is.GetBody(),
		})
	}
	return items, nil
}

func earliest(a, b time.Time) time.Time {
	if b.Before(a) {
		return b
	}
	return a
}
