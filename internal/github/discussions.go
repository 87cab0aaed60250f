package github

import (
	"context"

	"github.com/shurcooL/githubv4"

	"github.com/joescharf/ghwatch/internal/fetch"
	"github.com/joescharf/ghwatch/internal/models"
)

type actor struct {
	Login string
}

type discussionCommentNode struct {
	ID         string
	CreatedAt  githubv4.DateTime
	Author     actor
	BodyText   string
	URL        string
	Discussion struct {
		Title string
		URL   string
	}
}

type discussionNode struct {
	ID        string
	Title     string
	URL       string
	CreatedAt githubv4.DateTime
	Author    actor
	BodyText  string
	Comments  struct {
		Nodes []discussionCommentNode
	} `graphql:"comments(last: $commCount)"`
}

type discussionQuery struct {
	Repository struct {
		Discussions struct {
			Nodes []discussionNode
		} `graphql:"discussions(first: $discCount, orderBy: {field: CREATED_AT, direction: DESC})"`
	} `graphql:"repository(owner: $owner, name: $name)"`
}

// DiscussionFetcher fetches discussions and discussion comments in a
// single GraphQL query: the newest discussions and the last comments of
// each.
type DiscussionFetcher struct {
	client *Client
}

// NewDiscussionFetcher returns a DiscussionFetcher using c.
func NewDiscussionFetcher(c *Client) *DiscussionFetcher {
	return &DiscussionFetcher{client: c}
}

// SourceTypes implements fetch.Fetcher.
func (f *DiscussionFetcher) SourceTypes() []models.SourceType {
	return []models.SourceType{models.SourceDiscussion, models.SourceDiscussionComment}
}

// FetchNewActivities implements fetch.Fetcher.
func (f *DiscussionFetcher) FetchNewActivities(ctx context.Context, repo string, rs models.RepositoryState) ([]models.ActivityItem, error) {
	owner, name, err := fetch.SplitRepo(repo)
	if err != nil {
		f.client.logger.Warn("skipping repository", "repo", repo, "error", err)
		return nil, nil
	}

	discSince := rs.Watermark(models.SourceDiscussion)
	commSince := rs.Watermark(models.SourceDiscussionComment)
	f.client.logger.Debug("fetching discussions",
		"repo", repo, "discussions_since", discSince, "comments_since", commSince)

	var q discussionQuery
	vars := map[string]any{
		"owner":     githubv4.String(owner),
		"name":      githubv4.String(name),
		"discCount": githubv4.Int(f.client.pageSize),
		"commCount": githubv4.Int(f.client.pageSize),
	}
	if err := f.client.graphql.Query(ctx, &q, vars); err != nil {
		return nil, f.client.recoverFetch(ctx, repo, "discussions", err)
	}

	var items []models.ActivityItem
	for _, d := range q.Repository.Discussions.Nodes {
		title := d.Title
		if title == "" {
			title = "Untitled Discussion"
		}
		if d.CreatedAt.After(discSince) {
			items = append(items, models.ActivityItem{
				Repo:       repo,
				SourceType: models.SourceDiscussion,
				ID:         d.ID,
				Title:      title,
				URL:        d.URL,
				Author:     login(d.Author.Login),
				CreatedAt:  d.CreatedAt.Time,
				Body:       d.BodyText,
			})
		}

		for _, c := range d.Comments.Nodes {
			if !c.CreatedAt.After(commSince) {
				continue
			}
			parent := c.Discussion.Title
			if parent == "" {
				parent = d.Title
			}
			if parent == "" {
				parent = "Original Discussion"
			}
			items = append(items, models.ActivityItem{
				Repo:       repo,
				SourceType: models.SourceDiscussionComment,
				ID:         c.ID,
				Title:      "Re: " + parent,
				URL:        c.URL,
				Author:     login(c.Author.Login),
				CreatedAt:  c.CreatedAt.Time,
				Body:       c.BodyText,
			})
		}
	}
	return items, nil
}
