package models

import "time"

// SourceType is the category of GitHub activity an item came from.
type SourceType string

const (
	SourceIssue                    SourceType = "issue"
	SourceIssueComment             SourceType = "issue_comment"
	SourcePullRequest              SourceType = "pull_request"
	SourcePullRequestReviewComment SourceType = "pull_request_review_comment"
	SourceDiscussion               SourceType = "discussion"
	SourceDiscussionComment        SourceType = "discussion_comment"
)

// AllSourceTypes returns every known source type in declaration order.
func AllSourceTypes() []SourceType {
	return []SourceType{
		SourceIssue,
		SourceIssueComment,
		SourcePullRequest,
		SourcePullRequestReviewComment,
		SourceDiscussion,
		SourceDiscussionComment,
	}
}

// Valid reports whether t is one of the known source types.
func (t SourceType) Valid() bool {
	for _, known := range AllSourceTypes() {
		if t == known {
			return true
		}
	}
	return false
}

// ActivityItem is one unit of activity fetched from a repository.
type ActivityItem struct {
	Repo       string     `json:"repo"` // "owner/name"
	SourceType SourceType `json:"sourceType"`
	ID         string     `json:"id"` // unique within (Repo, SourceType)
	Title      string     `json:"title"`
	URL        string     `json:"url"`
	Author     string     `json:"author"`
	CreatedAt  time.Time  `json:"createdAt"`
	Body       string     `json:"body,omitempty"`
	Summary    *string    `json:"summary,omitempty"` // nil = not summarized
}

// HasSummary reports whether the item carries a non-empty summary.
func (a ActivityItem) HasSummary() bool {
	return a.Summary != nil && *a.Summary != ""
}

// WithSummary returns a copy of the item with the summary set.
func (a ActivityItem) WithSummary(summary string) ActivityItem {
	a.Summary = &summary
	return a
}

// Before orders items chronologically, breaking ties on repo, source type
// and id so that the order is stable across runs.
func (a ActivityItem) Before(b ActivityItem) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	if a.Repo != b.Repo {
		return a.Repo < b.Repo
	}
	if a.SourceType != b.SourceType {
		return a.SourceType < b.SourceType
	}
	return a.ID < b.ID
}
