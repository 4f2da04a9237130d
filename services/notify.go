package services

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/slack-go/slack"

	"project-sync/models"
)

// SlackNotifier posts a short message to an ops channel when an integration
// sync lands in ERROR. It is optional: with no token or channel configured
// every call is a no-op.
type SlackNotifier struct {
	client  *slack.Client
	channel string
}

func NewSlackNotifier() *SlackNotifier {
	token := os.Getenv("SLACK_BOT_TOKEN")
	channel := os.Getenv("SLACK_ALERT_CHANNEL")
	if token == "" || channel == "" {
		return &SlackNotifier{}
	}
	return &SlackNotifier{client: slack.New(token), channel: channel}
}

func (n *SlackNotifier) NotifySyncFailure(ctx context.Context, integration *models.Integration, syncErr error) {
	if n == nil || n.client == nil || IsTestMode {
		return
	}

	text := fmt.Sprintf(":warning: sync failed for project %s: %v", integration.ProjectID, syncErr)
	_, _, err := n.client.PostMessageContext(ctx, n.channel, slack.MsgOptionText(text, false))
	if err != nil {
		log.Printf("slack notify failed: %v", err)
	}
}
