package slack

import (
	"context"

	"github.com/rs/zerolog/log"
)

// LogNotifier writes notifications to the log when no Slack destination is configured
type LogNotifier struct{}

// NewLogNotifier creates a log-only notifier
func NewLogNotifier() *LogNotifier {
	return &LogNotifier{}
}

// Notify logs message and never fails
func (n *LogNotifier) Notify(ctx context.Context, message string) error {
	log.Info().Str("component", "notify").Msg(message)
	return nil
}
