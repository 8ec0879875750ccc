// Package notifier forwards billing alerts (spec §4.D.7) to an external
// channel. It is expansion, non-core: its absence never changes gate or
// billing behavior (spec §7, §9 "notification dispatch is a non-goal").
package notifier

import (
	"context"
	"fmt"
	"log/slog"

	goslack "github.com/slack-go/slack"

	"github.com/shakhawat2680/autoseo/pkg/billing"
)

// Notifier forwards a tenant alert to wherever humans will see it.
type Notifier interface {
	Notify(ctx context.Context, tenantID string, alert billing.Alert) error
}

// NopNotifier discards every alert. It is the default when no delivery
// channel is configured.
type NopNotifier struct{}

// Notify does nothing and never errors.
func (NopNotifier) Notify(ctx context.Context, tenantID string, alert billing.Alert) error {
	return nil
}

// SlackNotifier posts alerts to a single configured Slack channel, grounded
// on the teacher's pkg/slack.Notifier (PostAlert over a bot-token client).
type SlackNotifier struct {
	client  *goslack.Client
	channel string
	logger  *slog.Logger
}

// NewSlackNotifier creates a SlackNotifier. If botToken is empty, use
// NopNotifier instead — SlackNotifier always assumes it is enabled.
func NewSlackNotifier(botToken, channel string, logger *slog.Logger) *SlackNotifier {
	return &SlackNotifier{
		client:  goslack.New(botToken),
		channel: channel,
		logger:  logger,
	}
}

// Notify posts a single-line alert message to the configured channel.
func (n *SlackNotifier) Notify(ctx context.Context, tenantID string, alert billing.Alert) error {
	text := fmt.Sprintf("[autoseo] tenant %s: %s", tenantID, alertMessage(alert.Kind))

	_, _, err := n.client.PostMessageContext(ctx, n.channel, goslack.MsgOptionText(text, false))
	if err != nil {
		return fmt.Errorf("posting alert to slack: %w", err)
	}

	n.logger.Info("posted billing alert to slack", "tenant_id", tenantID, "kind", alert.Kind)
	return nil
}

func alertMessage(kind billing.AlertKind) string {
	switch kind {
	case billing.AlertUsage80:
		return "usage has crossed 80% of the plan allowance"
	case billing.AlertUsage90:
		return "usage has crossed 90% of the plan allowance"
	case billing.AlertUsage100:
		return "usage has reached the plan allowance"
	case billing.AlertCycleEndingSoon:
		return "billing cycle ends within 3 days"
	default:
		return string(kind)
	}
}
