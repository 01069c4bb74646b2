package notifier

import (
	"context"
	"time"

	"github.com/aweist/whistle-bot/models"
)

// Notifier is the output port for public whistles and owner messages.
type Notifier interface {
	Post(ctx context.Context, text string) error
	Direct(ctx context.Context, recipientID, text string) error
	// RecentPosts returns up to n of the account's latest posts, newest first.
	RecentPosts(ctx context.Context, n int) ([]models.Whistle, error)
	GetType() string
}

// InboundSource yields direct messages sent to the bot.
type InboundSource interface {
	// FetchMessages returns messages newer than since, newest first.
	FetchMessages(ctx context.Context, since time.Time) ([]models.DirectMessage, error)
}
