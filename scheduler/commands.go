package scheduler

import (
	"context"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/aweist/whistle-bot/models"
	"github.com/aweist/whistle-bot/parser"
	"github.com/aweist/whistle-bot/whistle"
)

// MessageCursor persists the timestamp of the newest handled message.
type MessageCursor interface {
	LatestMessageTimestamp() (time.Time, error)
	StoreLatestMessageTimestamp(ts time.Time) error
}

// processMessages fetches new direct messages and answers them oldest
// first. The cursor advances to the newest fetched message before any is
// handled. Without a stored cursor, messages older than the first fetch
// are backlog and go unanswered.
func (s *DailyScheduler) processMessages(ctx context.Context) error {
	if s.inbound == nil {
		return nil
	}

	since, err := s.store.LatestMessageTimestamp()
	if err != nil {
		s.logger.Warn("Error reading message cursor", zap.Error(err))
		return nil
	}

	messages, err := s.inbound.FetchMessages(ctx, since)
	if err != nil {
		if isCanceled(err) {
			return err
		}
		s.logger.Warn("Error fetching direct messages", zap.Error(err))
		return nil
	}
	if len(messages) == 0 {
		if since.IsZero() {
			if err := s.store.StoreLatestMessageTimestamp(s.clock.Now()); err != nil {
				s.logger.Warn("Error storing message cursor", zap.Error(err))
			}
		}
		return nil
	}

	sort.Slice(messages, func(i, j int) bool {
		return messages[i].Timestamp.Before(messages[j].Timestamp)
	})
	newest := messages[len(messages)-1].Timestamp
	if err := s.store.StoreLatestMessageTimestamp(newest); err != nil {
		s.logger.Warn("Error storing message cursor", zap.Error(err))
	}

	if since.IsZero() {
		s.logger.Info("No message cursor stored, skipping message backlog", zap.Int("messages", len(messages)))
		return nil
	}

	for i, msg := range messages {
		if i > 0 {
			if err := s.clock.Sleep(ctx, s.cfg.DMDelay); err != nil {
				return err
			}
		}
		if s.handleMessage(ctx, msg) {
			return nil
		}
	}
	return nil
}

// handleMessage answers one message. It returns true when the message
// requested a reset.
func (s *DailyScheduler) handleMessage(ctx context.Context, msg models.DirectMessage) bool {
	cmd := parser.ParseCommand(msg.Text)
	fromOwner := msg.SenderID == s.cfg.OwnerID

	if !fromOwner && cmd.Kind != parser.CommandToot {
		cmd = parser.Command{Kind: parser.CommandToot}
	}
	s.metrics.ObserveInbound(cmd.Kind.String())
	s.logger.Info("Direct message",
		zap.String("sender", msg.SenderID),
		zap.Stringer("command", cmd.Kind))

	switch cmd.Kind {
	case parser.CommandReset:
		_ = s.out.Reply(ctx, msg.SenderID, whistle.ResetReply)
		s.RequestReset()
		return true

	case parser.CommandLog:
		if cmd.UsageOnly || cmd.BadArgument {
			_ = s.out.Reply(ctx, msg.SenderID, whistle.LogUsageReply)
			if cmd.UsageOnly {
				return false
			}
		}
		lines := s.out.ClampLines(cmd.Lines)
		_ = s.out.Reply(ctx, msg.SenderID, s.out.LogExcerpt(lines, s.out.DMLimit()))
		return false

	default:
		now := s.clock.Now()
		if now.Hour() == 0 && now.Minute() == 0 {
			return false
		}
		_ = s.out.Reply(ctx, msg.SenderID, tootReply(msg.Text, s.cfg.MaxTootLength))
		return false
	}
}

// tootReply echoes a message as a toot whose length follows the message.
func tootReply(text string, maxLength int) string {
	n := len(text)
	if maxLength > 0 && n > maxLength {
		n = maxLength
	}
	return "T" + strings.Repeat("o", n) + "t!"
}
