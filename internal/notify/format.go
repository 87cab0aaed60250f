package notify

import (
	"fmt"
	"strings"
	"text/template"
	"time"
	"unicode/utf8"

	"github.com/joescharf/ghwatch/internal/models"
)

// Templates are text/template sources for notification text. Title and
// Body render an ItemData; Remaining renders a RemainingData.
type Templates struct {
	Title     string
	Body      string
	Remaining string
}

// DefaultTemplates are used unless a notifier is given its own Formatter.
var DefaultTemplates = Templates{
	Title: `{{.Repo}} | {{.Title}}`,
	Body: `{{if .Summary}}📝 {{.Summary}}

{{end}}by **{{.Author}}** · {{.Label}}`,
	Remaining: `{{.Remaining}} more new {{if eq .Remaining 1}}activity was{{else}}activities were{{end}} not shown (limit {{.MaxItems}} per run).`,
}

// ItemData is the template input for one activity item.
type ItemData struct {
	Repo       string
	Title      string
	Author     string
	SourceType models.SourceType
	Label      string
	URL        string
	Summary    string // empty unless the item has a summary
	CreatedAt  time.Time
}

// RemainingData is the template input for the "not shown" message.
type RemainingData struct {
	Shown     int
	Total     int
	Remaining int
	MaxItems  int
}

// Message is a rendered item, independent of the target platform.
type Message struct {
	Title      string
	Body       string
	URL        string
	Author     string
	SourceType models.SourceType
	Timestamp  time.Time
}

// Formatter renders activity items into platform-neutral messages.
type Formatter struct {
	title     *template.Template
	body      *template.Template
	remaining *template.Template
}

// NewFormatter parses the given templates.
func NewFormatter(t Templates) (*Formatter, error) {
	title, err := template.New("title").Parse(t.Title)
	if err != nil {
		return nil, fmt.Errorf("parse title template: %w", err)
	}
	body, err := template.New("body").Parse(t.Body)
	if err != nil {
		return nil, fmt.Errorf("parse body template: %w", err)
	}
	remaining, err := template.New("remaining").Parse(t.Remaining)
	if err != nil {
		return nil, fmt.Errorf("parse remaining template: %w", err)
	}
	return &Formatter{title: title, body: body, remaining: remaining}, nil
}

// DefaultFormatter returns a Formatter for DefaultTemplates.
func DefaultFormatter() *Formatter {
	f, err := NewFormatter(DefaultTemplates)
	if err != nil {
		panic(err)
	}
	return f
}

// Item renders one activity item.
func (f *Formatter) Item(item models.ActivityItem) (Message, error) {
	data := ItemData{
		Repo:       item.Repo,
		Title:      item.Title,
		Author:     item.Author,
		SourceType: item.SourceType,
		Label:      SourceLabel(item.SourceType),
		URL:        item.URL,
		CreatedAt:  item.CreatedAt,
	}
	if item.HasSummary() {
		data.Summary = *item.Summary
	}

	title, err := render(f.title, data)
	if err != nil {
		return Message{}, err
	}
	body, err := render(f.body, data)
	if err != nil {
		return Message{}, err
	}
	return Message{
		Title:      title,
		Body:       body,
		URL:        item.URL,
		Author:     item.Author,
		SourceType: item.SourceType,
		Timestamp:  item.CreatedAt,
	}, nil
}

// Remaining renders the note for activities that were fetched but not
// sent. It returns "" when nothing was left out.
func (f *Formatter) Remaining(shown, totalFetched, maxItems int) (string, error) {
	if totalFetched <= shown {
		return "", nil
	}
	return render(f.remaining, RemainingData{
		Shown:     shown,
		Total:     totalFetched,
		Remaining: totalFetched - shown,
		MaxItems:  maxItems,
	})
}

func render(t *template.Template, data any) (string, error) {
	var b strings.Builder
	if err := t.Execute(&b, data); err != nil {
		return "", fmt.Errorf("render %s template: %w", t.Name(), err)
	}
	return strings.TrimSpace(b.String()), nil
}

// SourceLabel is the human-readable name of a source type.
func SourceLabel(t models.SourceType) string {
	switch t {
	case models.SourceIssue:
		return "Issue"
	case models.SourceIssueComment:
		return "Issue comment"
	case models.SourcePullRequest:
		return "Pull request"
	case models.SourcePullRequestReviewComment:
		return "Review comment"
	case models.SourceDiscussion:
		return "Discussion"
	case models.SourceDiscussionComment:
		return "Discussion comment"
	default:
		return string(t)
	}
}

// truncate shortens s to at most max runes, marking the cut with "…".
func truncate(s string, max int) string {
	if max <= 0 || utf8.RuneCountInString(s) <= max {
		return s
	}
	r := []rune(s)
	return string(r[:max-1]) + "…"
}
