package notifier

import (
	"bufio"
	"context"
	"io"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/aweist/whistle-bot/models"
)

var (
	_ Notifier      = (*ConsoleNotifier)(nil)
	_ InboundSource = (*ConsoleNotifier)(nil)
)

// History supplies previously emitted whistles for the dry-run transport.
type History interface {
	RecentWhistles(n int) ([]models.Whistle, error)
}

// ConsoleNotifier logs output instead of publishing it. Its timeline is
// the local whistle history and its inbox is whatever the owner types
// into Listen.
type ConsoleNotifier struct {
	logger  *zap.Logger
	history History
	ownerID string

	mu    sync.Mutex
	inbox []models.DirectMessage
	seq   int
}

func NewConsoleNotifier(logger *zap.Logger, history History, ownerID string) *ConsoleNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ConsoleNotifier{logger: logger, history: history, ownerID: ownerID}
}

func (c *ConsoleNotifier) GetType() string {
	return "console"
}

func (c *ConsoleNotifier) Post(ctx context.Context, text string) error {
	c.logger.Info("dry-run post", zap.String("text", text))
	return nil
}

func (c *ConsoleNotifier) Direct(ctx context.Context, recipientID, text string) error {
	c.logger.Info("dry-run direct message", zap.String("recipient", recipientID), zap.String("text", text))
	return nil
}

func (c *ConsoleNotifier) RecentPosts(ctx context.Context, n int) ([]models.Whistle, error) {
	if c.history == nil {
		return nil, nil
	}
	return c.history.RecentWhistles(n)
}

// Listen queues each non-empty line of r as a direct message from the
// owner. It returns when r is exhausted or ctx is done.
func (c *ConsoleNotifier) Listen(ctx context.Context, r io.Reader) error {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}

		c.mu.Lock()
		c.seq++
		c.inbox = append(c.inbox, models.DirectMessage{
			ID:        strconv.Itoa(c.seq),
			SenderID:  c.ownerID,
			Text:      text,
			Timestamp: time.Now(),
		})
		c.mu.Unlock()
	}
	return scanner.Err()
}

// FetchMessages drains the inbox, keeping messages newer than since.
func (c *ConsoleNotifier) FetchMessages(ctx context.Context, since time.Time) ([]models.DirectMessage, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var messages []models.DirectMessage
	for _, msg := range c.inbox {
		if msg.Timestamp.After(since) {
			messages = append(messages, msg)
		}
	}
	c.inbox = nil
	return messages, nil
}
