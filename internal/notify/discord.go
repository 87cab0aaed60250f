package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/joescharf/ghwatch/internal/models"
)

// Discord embed limits.
const (
	discordTitleLimit       = 256
	discordDescriptionLimit = 4096
	discordContentLimit     = 2000
)

var discordColors = map[models.SourceType]int{
	models.SourceIssue:                    0x2ECC71,
	models.SourceIssueComment:             0x1ABC9C,
	models.SourcePullRequest:              0x9B59B6,
	models.SourcePullRequestReviewComment: 0x8E44AD,
	models.SourceDiscussion:               0x3498DB,
	models.SourceDiscussionComment:        0x5DADE2,
}

const discordDefaultColor = 0x95A5A6

type discordPayload struct {
	Content string         `json:"content,omitempty"`
	Embeds  []discordEmbed `json:"embeds,omitempty"`
}

type discordEmbed struct {
	Title       string         `json:"title"`
	URL         string         `json:"url,omitempty"`
	Description string         `json:"description,omitempty"`
	Color       int            `json:"color"`
	Timestamp   string         `json:"timestamp,omitempty"`
	Author      *discordAuthor `json:"author,omitempty"`
	Footer      *discordFooter `json:"footer,omitempty"`
}

type discordAuthor struct {
	Name string `json:"name"`
}

type discordFooter struct {
	Text string `json:"text"`
}

// DiscordNotifier posts one embed per activity item to a Discord webhook.
type DiscordNotifier struct {
	hook *webhook
}

// NewDiscord returns a notifier for the Discord webhook at url.
func NewDiscord(url string, opts ...Option) *DiscordNotifier {
	return &DiscordNotifier{hook: newWebhook("discord", url, opts)}
}

// Send posts every item, continuing past failures. When items were left
// out of the batch a trailing message says how many; its failure is logged
// but does not fail Send.
func (d *DiscordNotifier) Send(ctx context.Context, items []models.ActivityItem, totalFetched, maxItems int) error {
	if len(items) == 0 {
		d.hook.logger.Debug("no activities to notify", "notifier", "discord")
		return nil
	}

	var errs []error
	for _, item := range items {
		if err := d.sendItem(ctx, item); err != nil {
			d.hook.logger.Error("failed to send notification", "notifier", "discord", "repo", item.Repo, "id", item.ID, "error", err)
			errs = append(errs, fmt.Errorf("%s %s %s: %w", item.Repo, item.SourceType, item.ID, err))
		}
	}

	note, err := d.hook.formatter.Remaining(len(items), totalFetched, maxItems)
	if err != nil {
		d.hook.logger.Warn("failed to render remaining note", "notifier", "discord", "error", err)
	} else if note != "" {
		if err := d.hook.post(ctx, discordPayload{Content: truncate(note, discordContentLimit)}); err != nil {
			d.hook.logger.Warn("failed to send remaining note", "notifier", "discord", "error", err)
		}
	}

	d.hook.logger.Info("sent notifications", "notifier", "discord", "sent", len(items)-len(errs), "failed", len(errs))
	return errors.Join(errs...)
}

func (d *DiscordNotifier) sendItem(ctx context.Context, item models.ActivityItem) error {
	msg, err := d.hook.formatter.Item(item)
	if err != nil {
		return err
	}
	color, ok := discordColors[item.SourceType]
	if !ok {
		color = discordDefaultColor
	}
	embed := discordEmbed{
		Title:       truncate(msg.Title, discordTitleLimit),
		URL:         msg.URL,
		Description: truncate(msg.Body, discordDescriptionLimit),
		Color:       color,
		Footer:      &discordFooter{Text: SourceLabel(item.SourceType)},
	}
	if msg.Author != "" {
		embed.Author = &discordAuthor{Name: msg.Author}
	}
	if !msg.Timestamp.IsZero() {
		embed.Timestamp = msg.Timestamp.UTC().Format(time.RFC3339)
	}
	return d.hook.post(ctx, discordPayload{Embeds: []discordEmbed{embed}})
}
