package scheduler

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/aweist/whistle-bot/models"
	"github.com/aweist/whistle-bot/whistle"
)

// CeremonyMarkers remembers which days the ceremony already ran.
type CeremonyMarkers interface {
	CeremonyPerformed(day time.Time) (bool, error)
	MarkCeremonyPerformed(day time.Time) error
}

// CeremonyRunner owns the whole of ceremony day.
type CeremonyRunner struct {
	out     *Output
	clock   Clock
	markers CeremonyMarkers
	logger  *zap.Logger
}

func NewCeremonyRunner(out *Output, clock Clock, markers CeremonyMarkers, logger *zap.Logger) *CeremonyRunner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CeremonyRunner{out: out, clock: clock, markers: markers, logger: logger}
}

// Run waits for the ceremony time, posts the explanation, waits the
// configured delay, posts the in-memoriam whistle, then sleeps through
// the rest of the day. A day already marked performed only sleeps.
func (c *CeremonyRunner) Run(ctx context.Context, now time.Time, cfg models.CeremonyConfig) error {
	endOfDay := models.EndOfDay.On(now)

	done, err := c.markers.CeremonyPerformed(now)
	if err != nil {
		c.logger.Warn("Error reading ceremony marker", zap.Error(err))
	}
	if done {
		c.logger.Info("Ceremony already performed today, staying silent")
		return sleepUntil(ctx, c.clock, endOfDay)
	}

	start := cfg.StartOn(now)
	if now.Before(start) {
		c.logger.Info("Waiting for ceremony", zap.Time("start", start))
		if err := sleepUntil(ctx, c.clock, start); err != nil {
			return err
		}
	}

	if err := escalate(c.out.Whistle(ctx, KindCeremony, whistle.CeremonyExplanation)); err != nil {
		return err
	}

	if err := c.clock.Sleep(ctx, cfg.Delay()); err != nil {
		return err
	}

	if err := escalate(c.out.RandomWhistle(ctx, KindCeremony, whistle.CeremonyInMemoriam)); err != nil {
		return err
	}

	if err := c.markers.MarkCeremonyPerformed(now); err != nil {
		c.logger.Warn("Error marking ceremony performed", zap.Error(err))
	}
	c.logger.Info("Ceremony complete, silent until midnight")

	return sleepUntil(ctx, c.clock, endOfDay)
}
