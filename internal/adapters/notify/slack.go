// internal/adapters/notify/slack.go

// Package notify delivers job lifecycle events to external channels.
package notify

import (
	"context"
	"fmt"

	"github.com/slack-go/slack"

	"reconwave/internal/core/ports"
	"reconwave/internal/platform/logx"
)

// Slack implements ports.Notifier against the Slack Web API. Only job-level
// events are forwarded; per-module events would flood a channel on any
// sizable scan.
type Slack struct {
	client  *slack.Client
	channel string
	logger  logx.Logger
}

// NewSlack creates a Slack notifier posting to channel.
func NewSlack(token, channel string, logger logx.Logger) *Slack {
	return &Slack{
		client:  slack.New(token),
		channel: channel,
		logger:  logger.With("component", "slack"),
	}
}

// Notify implements ports.Notifier.
func (s *Slack) Notify(ctx context.Context, event ports.Event) error {
	if !jobLevel(event.Type) {
		return nil
	}

	attachment := slack.Attachment{
		Color: eventColor(event.Type),
		Title: fmt.Sprintf("reconwave %s", event.Type),
		Fields: []slack.AttachmentField{
			{Title: "Job", Value: event.JobID, Short: true},
			{Title: "Time", Value: event.Timestamp.Format("15:04:05 MST"), Short: true},
		},
		Text: event.Message,
	}

	_, _, err := s.client.PostMessageContext(ctx, s.channel,
		slack.MsgOptionAttachments(attachment),
	)
	if err != nil {
		return fmt.Errorf("post to %s: %w", s.channel, err)
	}
	return nil
}

// Close implements ports.Notifier.
func (s *Slack) Close() error { return nil }

func jobLevel(t ports.EventType) bool {
	switch t {
	case ports.EventTypeJobStarted,
		ports.EventTypeJobCompleted,
		ports.EventTypeJobFailed,
		ports.EventTypeJobPartial,
		ports.EventTypeJobCanceled:
		return true
	}
	return false
}

func eventColor(t ports.EventType) string {
	switch t {
	case ports.EventTypeJobCompleted:
		return "good"
	case ports.EventTypeJobPartial:
		return "warning"
	case ports.EventTypeJobFailed, ports.EventTypeJobCanceled:
		return "danger"
	default:
		return "#439FE0"
	}
}
