package github

import (
	"context"
	"path"
	"strconv"
	"time"

	gh "github.com/google/go-github/v72/github"

	"github.com/joescharf/ghwatch/internal/fetch"
	"github.com/joescharf/ghwatch/internal/models"
)

// CommentFetcher fetches issue comments and pull request review comments
// using the repository-wide comment listings.
type CommentFetcher struct {
	client *Client
}

// NewCommentFetcher returns a CommentFetcher using c.
func NewCommentFetcher(c *Client) *CommentFetcher {
	return &CommentFetcher{client: c}
}

// SourceTypes implements fetch.Fetcher.
func (f *CommentFetcher) SourceTypes() []models.SourceType {
	return []models.SourceType{models.SourceIssueComment, models.SourcePullRequestReviewComment}
}

// FetchNewActivities implements fetch.Fetcher. The two listings fail
// independently.
func (f *CommentFetcher) FetchNewActivities(ctx context.Context, repo string, rs models.RepositoryState) ([]models.ActivityItem, error) {
	owner, name, err := fetch.SplitRepo(repo)
	if err != nil {
		f.client.logger.Warn("skipping repository", "repo", repo, "error", err)
		return nil, nil
	}

	issueItems, err := f.issueComments(ctx, repo, owner, name, rs.Watermark(models.SourceIssueComment))
	if err != nil {
		return nil, err
	}
	reviewItems, err := f.reviewComments(ctx, repo, owner, name, rs.Watermark(models.SourcePullRequestReviewComment))
	if err != nil {
		return nil, err
	}
	return append(issueItems, reviewItems...), nil
}

func (f *CommentFetcher) issueComments(ctx context.Context, repo, owner, name string, since time.Time) ([]models.ActivityItem, error) {
	opts := &gh.IssueListCommentsOptions{
		Sort:        gh.Ptr("created"),
		Direction:   gh.Ptr("desc"),
		ListOptions: gh.ListOptions{PerPage: f.client.pageSize},
	}
	if since.After(models.Epoch) {
		opts.Since = gh.Ptr(since)
	}

	comments, _, err := f.client.rest.Issues.ListComments(ctx, owner, name, 0, opts)
	if err != nil {
		return nil, f.client.recoverFetch(ctx, repo, "issue comments", err)
	}

	var items []models.ActivityItem
	for _, c := range comments {
		created := c.GetCreatedAt().Time
		if !created.After(since) {
			continue
		}
		items = append(items, models.ActivityItem{
			Repo:       repo,
			SourceType: models.SourceIssueComment,
			ID:         strconv.FormatInt(c.GetID(), 10),
			Title:      replyTitle(c.GetIssueURL()),
			URL:        c.GetHTMLURL(),
			Author:     login(c.GetUser().GetLogin()),
			CreatedAt:  created,
			Body:       c.GetBody(),
		})
	}
	return items, nil
}

func (f *CommentFetcher) reviewComments(ctx context.Context, repo, owner, name string, since time.Time) ([]models.ActivityItem, error) {
	opts := &gh.PullRequestListCommentsOptions{
		Sort:        "created",
		Direction:   "desc",
		ListOptions: gh.ListOptions{PerPage: f.client.pageSize},
	}
	if since.After(models.Epoch) {
		opts.Since = since
	}

	comments, _, err := f.client.rest.PullRequests.ListComments(ctx, owner, name, 0, opts)
	if err != nil {
		return nil, f.client.recoverFetch(ctx, repo, "review comments", err)
	}

	var items []models.ActivityItem
	for _, c := range comments {
		created := c.GetCreatedAt().Time
		if !created.After(since) {
			continue
		}
		items = append(items, models.ActivityItem{
			Repo:       repo,
			SourceType: models.SourcePullRequestReviewComment,
			ID:         strconv.FormatInt(c.GetID(), 10),
			Title:      replyTitle(c.GetPullRequestURL()),
			URL:        c.GetHTMLURL(),
			Author:     login(c.GetUser().GetLogin()),
			CreatedAt:  created,
			Body:       c.GetBody(),
		})
	}
	return items, nil
}

// replyTitle derives "Re: #12" from an API URL ending in the issue or
// pull request number.
func replyTitle(apiURL string) string {
	n := path.Base(apiURL)
	if _, err := strconv.Atoi(n); err != nil {
		return "Re: comment"
	}
	return "Re: #" + n
}
