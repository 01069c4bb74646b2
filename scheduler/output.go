package scheduler

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/aweist/whistle-bot/apperrors"
	"github.com/aweist/whistle-bot/metrics"
	"github.com/aweist/whistle-bot/models"
	"github.com/aweist/whistle-bot/notifier"
	"github.com/aweist/whistle-bot/whistle"
)

// Whistle kinds recorded in history and metrics.
const (
	KindRegular  = "regular"
	KindGameday  = "gameday"
	KindScore    = "score"
	KindVictory  = "victory"
	KindCeremony = "ceremony"
)

// cooldownNoticeBlock closes every error report.
const cooldownNoticeBlock = "\n\n" + whistle.CooldownNotice

// WhistleRecorder persists emitted whistles.
type WhistleRecorder interface {
	RecordWhistle(w models.Whistle) (models.Whistle, error)
}

// LogSource supplies recent log lines for owner messages.
type LogSource interface {
	Tail(n int) []string
}

// Output validates and emits whistles and owner messages through a
// notifier.
type Output struct {
	notifier    notifier.Notifier
	history     WhistleRecorder
	generator   *whistle.Generator
	clock       Clock
	metrics     *metrics.Metrics
	logger      *zap.Logger
	logs        LogSource
	ownerID     string
	window      int
	minInterval time.Duration
	dmLimit     int
	excerpt     ExcerptConfig
}

// ExcerptConfig bounds log excerpts sent by direct message.
type ExcerptConfig struct {
	DefaultLines int
	MaxLines     int
	LineMaxChars int
}

type OutputConfig struct {
	Notifier     notifier.Notifier
	History      WhistleRecorder
	Generator    *whistle.Generator
	Clock        Clock
	Metrics      *metrics.Metrics
	Logger       *zap.Logger
	Logs         LogSource
	OwnerID      string
	RecentWindow int
	MinInterval  time.Duration
	DMCharLimit  int
	Excerpt      ExcerptConfig
}

func NewOutput(cfg OutputConfig) *Output {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.RecentWindow <= 0 {
		cfg.RecentWindow = 5
	}
	if cfg.DMCharLimit <= 0 {
		cfg.DMCharLimit = 10000
	}
	if cfg.Excerpt.DefaultLines <= 0 {
		cfg.Excerpt.DefaultLines = 10
	}
	if cfg.Excerpt.MaxLines < cfg.Excerpt.DefaultLines {
		cfg.Excerpt.MaxLines = cfg.Excerpt.DefaultLines
	}
	if cfg.Excerpt.LineMaxChars <= 0 {
		cfg.Excerpt.LineMaxChars = 200
	}
	return &Output{
		notifier:    cfg.Notifier,
		history:     cfg.History,
		generator:   cfg.Generator,
		clock:       cfg.Clock,
		metrics:     cfg.Metrics,
		logger:      cfg.Logger,
		logs:        cfg.Logs,
		ownerID:     cfg.OwnerID,
		window:      cfg.RecentWindow,
		minInterval: cfg.MinInterval,
		dmLimit:     cfg.DMCharLimit,
		excerpt:     cfg.Excerpt,
	}
}

// Generator exposes the text generator used for whistles.
func (o *Output) Generator() *whistle.Generator {
	return o.generator
}

// Whistle posts a fixed text after validating it against recent output.
func (o *Output) Whistle(ctx context.Context, kind, text string) error {
	return o.emit(ctx, kind, func(recent whistle.Window) (string, error) {
		if !o.generator.Valid(text, recent) {
			return "", apperrors.New(apperrors.KindValidation, "output.whistle",
				fmt.Errorf("%s whistle is too long or repeats a recent post", kind))
		}
		return text, nil
	})
}

// RandomWhistle posts prefix followed by a freshly generated whistle.
func (o *Output) RandomWhistle(ctx context.Context, kind, prefix string) error {
	return o.emit(ctx, kind, func(recent whistle.Window) (string, error) {
		return o.generator.ValidRandom(prefix, recent)
	})
}

// ScoreWhistle posts the scoring whistle for score against opponent.
func (o *Output) ScoreWhistle(ctx context.Context, score int, opponent string) error {
	return o.Whistle(ctx, KindScore, o.generator.Score(score, opponent))
}

func (o *Output) emit(ctx context.Context, kind string, compose func(whistle.Window) (string, error)) error {
	posts, err := o.notifier.RecentPosts(ctx, o.window)
	if err != nil {
		o.metrics.ObserveWhistle(kind, err)
		o.logger.Error("Error fetching recent posts", zap.String("kind", kind), zap.Error(err))
		o.notifyFailure(ctx, kind, err)
		return err
	}
	recent := whistle.NewWindow(posts, o.window)

	if wait := recent.Wait(o.clock.Now(), o.minInterval); wait > 0 {
		o.metrics.SkipWhistle(kind, "min_interval")
		o.logger.Warn("Dropping whistle posted too soon after the last one",
			zap.String("kind", kind), zap.Duration("wait", wait))
		return o.clock.Sleep(ctx, wait)
	}

	text, err := compose(recent)
	if err != nil {
		o.metrics.SkipWhistle(kind, string(apperrors.KindOf(err)))
		o.logger.Warn("Skipping whistle", zap.String("kind", kind), zap.Error(err))
		return err
	}

	if err := o.notifier.Post(ctx, text); err != nil {
		o.metrics.ObserveWhistle(kind, err)
		o.logger.Error("Error posting whistle", zap.String("kind", kind), zap.Error(err))
		o.notifyFailure(ctx, kind, err)
		return err
	}
	o.metrics.ObserveWhistle(kind, nil)
	o.logger.Info("Whistled", zap.String("kind", kind), zap.String("text", text))

	if o.history != nil {
		if _, err := o.history.RecordWhistle(models.Whistle{Text: text, PostedAt: o.clock.Now(), Kind: kind}); err != nil {
			o.logger.Warn("Error recording whistle history", zap.Error(err))
		}
	}
	return nil
}

// notifyFailure tells the owner about a failed whistle. Auth failures are
// left to the cycle supervisor.
func (o *Output) notifyFailure(ctx context.Context, kind string, err error) {
	if apperrors.IsSetup(err) || isCanceled(err) {
		return
	}
	_ = o.Direct(ctx, fmt.Sprintf("Failed to post %s whistle: %v", kind, err))
}

// Transport names the notifier in use.
func (o *Output) Transport() string {
	return o.notifier.GetType()
}

func (o *Output) DMLimit() int {
	return o.dmLimit
}

// Direct messages the owner, truncating to the DM limit.
func (o *Output) Direct(ctx context.Context, text string) error {
	return o.Reply(ctx, o.ownerID, text)
}

// Reply messages recipientID, truncating to the DM limit.
func (o *Output) Reply(ctx context.Context, recipientID, text string) error {
	text = cutBytes(text, o.dmLimit)
	err := o.notifier.Direct(ctx, recipientID, text)
	o.metrics.ObserveDirect(err)
	if err != nil {
		o.logger.Warn("Error sending direct message", zap.String("recipient", recipientID), zap.Error(err))
	}
	return err
}

// ReportError sends the owner the error, the latest log lines, and the
// cooldown notice as one message. Delivery failures are only logged.
func (o *Output) ReportError(ctx context.Context, cause error) {
	var b strings.Builder
	fmt.Fprintf(&b, "Error: %v\n\n", cause)
	b.WriteString(o.LogExcerpt(o.excerpt.DefaultLines, o.dmLimit-len(cooldownNoticeBlock)-b.Len()))
	b.WriteString(cooldownNoticeBlock)
	_ = o.Direct(ctx, b.String())
}

// ClampLines bounds a requested log line count.
func (o *Output) ClampLines(n int) int {
	if n <= 0 {
		return o.excerpt.DefaultLines
	}
	if n > o.excerpt.MaxLines {
		return o.excerpt.MaxLines
	}
	return n
}

// LogExcerpt joins up to n recent log lines, truncating each to the line
// cap and dropping the oldest lines until the result fits in limit.
func (o *Output) LogExcerpt(n, limit int) string {
	if o.logs == nil {
		return whistle.EmptyLogExcerpt
	}
	return logExcerpt(o.logs.Tail(n), o.excerpt.LineMaxChars, limit)
}

func logExcerpt(lines []string, lineMax, limit int) string {
	if len(lines) == 0 {
		return whistle.EmptyLogExcerpt
	}

	trimmed := make([]string, len(lines))
	for i, line := range lines {
		if lineMax > 3 && len(line) > lineMax {
			line = cutBytes(line, lineMax-3) + "..."
		}
		trimmed[i] = line
	}

	for len(trimmed) > 0 {
		text := strings.Join(trimmed, "\n")
		if limit <= 0 || len(text) <= limit {
			return text
		}
		trimmed = trimmed[1:]
	}
	return whistle.EmptyLogExcerpt
}

// cutBytes shortens s to at most n bytes without splitting a rune.
func cutBytes(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
