// Package transport defines the chat-service contract the notifier talks to.
//
// Implementations classify their failures with retry kinds:
//   - connecting fails with retry.KindTimeout when the service is overloaded
//   - listing recent senders and sending fail with retry.KindNetwork on I/O faults
//
// Anything else (bad token, blocked by user, ...) is returned unmarked and
// is never retried.
package transport

import (
	"context"
	"time"
)

// Bot is a connected chat-service session.
type Bot interface {
	// RecentSenders lists chat ids that sent the bot something recently,
	// waiting up to wait for new activity.
	RecentSenders(ctx context.Context, wait time.Duration) ([]int64, error)
	// SendText pushes one plain text message to chatID.
	SendText(ctx context.Context, chatID int64, text string) error
}

// Connector establishes a Bot session.
type Connector func(ctx context.Context) (Bot, error)
