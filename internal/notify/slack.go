package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/joescharf/ghwatch/internal/models"
)

const slackTextLimit = 3000

type slackMessage struct {
	Text   string       `json:"text"`
	Blocks []slackBlock `json:"blocks,omitempty"`
}

type slackBlock struct {
	Type     string      `json:"type"`
	Text     *slackText  `json:"text,omitempty"`
	Elements []slackText `json:"elements,omitempty"`
}

type slackText struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

var slackEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")

// SlackNotifier posts one Block Kit message per activity item to a Slack
// incoming webhook.
type SlackNotifier struct {
	hook *webhook
}

// NewSlack returns a notifier for the Slack webhook at url.
func NewSlack(url string, opts ...Option) *SlackNotifier {
	return &SlackNotifier{hook: newWebhook("slack", url, opts)}
}

// Send posts every item, continuing past failures.
func (s *SlackNotifier) Send(ctx context.Context, items []models.ActivityItem, totalFetched, maxItems int) error {
	if len(items) == 0 {
		return nil
	}

	var errs []error
	for _, item := range items {
		msg, err := s.hook.formatter.Item(item)
		if err == nil {
			err = s.hook.post(ctx, buildSlackMessage(msg))
		}
		if err != nil {
			s.hook.logger.Error("failed to send notification", "notifier", "slack", "repo", item.Repo, "id", item.ID, "error", err)
			errs = append(errs, fmt.Errorf("%s %s %s: %w", item.Repo, item.SourceType, item.ID, err))
		}
	}

	note, err := s.hook.formatter.Remaining(len(items), totalFetched, maxItems)
	if err != nil {
		s.hook.logger.Warn("failed to render remaining note", "notifier", "slack", "error", err)
	} else if note != "" {
		note = slackEscaper.Replace(note)
		msg := slackMessage{
			Text:   note,
			Blocks: []slackBlock{{Type: "context", Elements: []slackText{{Type: "mrkdwn", Text: note}}}},
		}
		if err := s.hook.post(ctx, msg); err != nil {
			s.hook.logger.Warn("failed to send remaining note", "notifier", "slack", "error", err)
		}
	}

	return errors.Join(errs...)
}

func buildSlackMessage(msg Message) slackMessage {
	title := slackEscaper.Replace(msg.Title)
	heading := "*" + title + "*"
	if msg.URL != "" {
		heading = fmt.Sprintf("*<%s|%s>*", msg.URL, title)
	}
	// Slack mrkdwn uses single asterisks for bold.
	body := strings.ReplaceAll(slackEscaper.Replace(msg.Body), "**", "*")

	blocks := []slackBlock{
		{Type: "section", Text: &slackText{Type: "mrkdwn", Text: truncate(heading+"\n"+body, slackTextLimit)}},
	}
	if !msg.Timestamp.IsZero() {
		blocks = append(blocks, slackBlock{
			Type:     "context",
			Elements: []slackText{{Type: "mrkdwn", Text: msg.Timestamp.UTC().Format("2006-01-02 15:04 UTC")}},
		})
	}
	return slackMessage{Text: truncate(msg.Title, slackTextLimit), Blocks: blocks}
}
