package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/aweist/whistle-bot/apperrors"
	"github.com/aweist/whistle-bot/metrics"
	"github.com/aweist/whistle-bot/models"
	"github.com/aweist/whistle-bot/notifier"
	"github.com/aweist/whistle-bot/whistle"
)

// ErrResetRequested is returned by Run when the owner asked for a restart.
var ErrResetRequested = errors.New("reset requested")

// ScheduleSource loads the schedule file sections used at each daily reset.
type ScheduleSource interface {
	LoadWeeklySchedule() (models.WeeklySchedule, error)
	LoadCeremonyConfig() (models.CeremonyConfig, models.CeremonyReminder, error)
	LoadGameUpdatePolicy() (models.GameUpdatePolicy, error)
}

// Store is the durable state the scheduler reads and writes.
type Store interface {
	GameStore
	WhistleRecorder
	MessageCursor
	CeremonyMarkers
	CleanupOldWhistles(before time.Time) error
}

// DailyScheduler is the single actor that owns the day's state and decides
// each cycle between the ceremony, the gameday tracker, and the regular
// schedule.
type DailyScheduler struct {
	cfg       Config
	clock     Clock
	schedules ScheduleSource
	store     Store
	out       *Output
	tracker   *Tracker
	ceremony  *CeremonyRunner
	season    *SeasonPoller
	inbound   notifier.InboundSource
	board     *StatusBoard
	metrics   *metrics.Metrics
	logger    *zap.Logger

	st state

	mu     sync.Mutex
	cancel context.CancelFunc
	reset  atomic.Bool
}

// state is everything that lives for one calendar day.
type state struct {
	day           time.Time
	store         *ScheduleStore
	ceremony      models.CeremonyConfig
	ceremonyToday bool
	policy        models.GameUpdatePolicy
	whistled      bool
	whistledAt    models.ScheduleEntry
	resetDeferred bool
	pending       resetSections
}

// resetSections names the schedule file sections loaded by a daily reset.
type resetSections struct {
	weekly   bool
	ceremony bool
	policy   bool
}

var allSections = resetSections{weekly: true, ceremony: true, policy: true}

func (r resetSections) any() bool {
	return r.weekly || r.ceremony || r.policy
}

type Config struct {
	Version          string
	OwnerID          string
	ErrorCooldown    time.Duration
	StartupDelay     time.Duration
	DMDelay          time.Duration
	PollInterval     time.Duration
	MaxTootLength    int
	HistoryRetention time.Duration
}

type DailySchedulerConfig struct {
	Config    Config
	Clock     Clock
	Schedules ScheduleSource
	Store     Store
	Output    *Output
	Tracker   *Tracker
	Ceremony  *CeremonyRunner
	// Season is nil when live scores are disabled.
	Season  *SeasonPoller
	Inbound notifier.InboundSource
	Board   *StatusBoard
	Metrics *metrics.Metrics
	Logger  *zap.Logger
}

func NewDailyScheduler(config DailySchedulerConfig) *DailyScheduler {
	if config.Logger == nil {
		config.Logger = zap.NewNop()
	}
	return &DailyScheduler{
		cfg:       config.Config,
		clock:     config.Clock,
		schedules: config.Schedules,
		store:     config.Store,
		out:       config.Output,
		tracker:   config.Tracker,
		ceremony:  config.Ceremony,
		season:    config.Season,
		inbound:   config.Inbound,
		board:     config.Board,
		metrics:   config.Metrics,
		logger:    config.Logger,
	}
}

// Run boots the scheduler and cycles until ctx ends or a reset is
// requested. Boot failures are returned after the error cooldown.
func (s *DailyScheduler) Run(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	s.mu.Lock()
	s.cancel = cancel
	s.mu.Unlock()

	if err := s.boot(runCtx); err != nil {
		if s.reset.Load() {
			return ErrResetRequested
		}
		return err
	}

	for {
		err := s.safeCycle(runCtx)
		if s.reset.Load() {
			s.logger.Info("Resetting...")
			return ErrResetRequested
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err != nil {
			s.handleCycleError(runCtx, err)
		}
	}
}

// RequestReset unwinds Run at its next suspension or step boundary.
func (s *DailyScheduler) RequestReset() {
	s.reset.Store(true)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
	}
}

func (s *DailyScheduler) boot(ctx context.Context) error {
	now := s.clock.Now()
	s.logger.Info("Wetting whistle...",
		zap.String("version", s.cfg.Version),
		zap.String("transport", s.out.Transport()))
	_ = s.out.Direct(ctx, fmt.Sprintf(whistle.StartupTemplate, s.cfg.Version, now.Format("2006-01-02 15:04:05")))

	if err := s.clock.Sleep(ctx, s.cfg.StartupDelay); err != nil {
		return err
	}

	now = s.clock.Now()
	if s.season != nil {
		if err := s.season.EnsureSeason(ctx, now.Year()); err != nil {
			s.logger.Warn("Error syncing season schedule", zap.Error(err))
		}
	}

	if err := s.dailyReset(ctx, now); err != nil {
		s.logger.Error("Boot failed", zap.Error(err))
		s.out.ReportError(ctx, err)
		_ = s.clock.Sleep(ctx, s.cfg.ErrorCooldown)
		return err
	}
	s.publish()
	return nil
}

func (s *DailyScheduler) safeCycle(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("Recovered from panic in cycle", zap.Any("panic", r), zap.Stack("stack"))
			err = fmt.Errorf("panic in cycle: %v", r)
		}
	}()
	return s.cycle(ctx)
}

func (s *DailyScheduler) cycle(ctx context.Context) error {
	now := s.clock.Now()

	if !sameDay(now, s.st.day) {
		if s.tracker.Phase().InProgress() {
			if !s.st.resetDeferred {
				s.logger.Info("Deferring daily reset until the game ends", zap.Stringer("phase", s.tracker.Phase()))
				s.st.resetDeferred = true
			}
		} else if err := s.dailyReset(ctx, now); err != nil {
			return err
		}
	} else if s.st.pending.any() {
		if err := s.retryReset(ctx, now); err != nil {
			return err
		}
	}

	if err := s.processMessages(ctx); err != nil {
		return err
	}
	if s.reset.Load() {
		return nil
	}
	s.publish()

	if s.st.ceremonyToday {
		return s.ceremony.Run(ctx, now, s.st.ceremony)
	}

	if s.tracker.Active() {
		if err := s.tracker.Step(ctx, now, s.upcomingRegular(now)); err != nil {
			return err
		}
		s.publish()
		if !s.tracker.RegularEnabled() {
			return nil
		}
		now = s.clock.Now()
	}

	return s.regularCheck(ctx, now)
}

// dailyReset reloads the day's configuration. Sections that fail to load
// keep yesterday's values, are retried on later cycles, and the failures
// are returned together.
func (s *DailyScheduler) dailyReset(ctx context.Context, now time.Time) error {
	s.logger.Info("Daily reset",
		zap.String("day", now.Format("2006-01-02")),
		zap.Stringer("weekday", now.Weekday()))
	s.metrics.ObserveDailyReset()

	s.st.day = startOfDay(now)
	s.st.whistled = false
	s.st.resetDeferred = false
	s.st.ceremonyToday = false

	failed, errs := s.loadSections(ctx, now, allSections)
	s.st.pending = failed

	if s.cfg.HistoryRetention > 0 {
		if err := s.store.CleanupOldWhistles(now.Add(-s.cfg.HistoryRetention)); err != nil {
			s.logger.Warn("Error cleaning up whistle history", zap.Error(err))
		}
	}

	s.resolveGameday(ctx, now)

	if len(errs) > 0 {
		return apperrors.Config("scheduler.daily_reset", errors.Join(errs...))
	}
	return nil
}

// retryReset reloads the sections the day's reset could not load.
func (s *DailyScheduler) retryReset(ctx context.Context, now time.Time) error {
	s.logger.Info("Retrying daily reset",
		zap.Bool("weekly", s.st.pending.weekly),
		zap.Bool("ceremony", s.st.pending.ceremony),
		zap.Bool("policy", s.st.pending.policy))

	policyPending := s.st.pending.policy
	failed, errs := s.loadSections(ctx, now, s.st.pending)
	s.st.pending = failed

	if policyPending && !failed.policy {
		if s.tracker.Phase() == models.NotGameday {
			s.resolveGameday(ctx, now)
		} else {
			s.tracker.SetPregame(s.st.policy.PregameWindow())
		}
	}

	if len(errs) > 0 {
		return apperrors.Config("scheduler.daily_reset", errors.Join(errs...))
	}
	return nil
}

// loadSections loads the requested schedule file sections into the day's
// state and reports which of them failed.
func (s *DailyScheduler) loadSections(ctx context.Context, now time.Time, want resetSections) (resetSections, []error) {
	var (
		failed resetSections
		errs   []error
	)

	if want.weekly {
		weekly, err := s.schedules.LoadWeeklySchedule()
		if err != nil {
			failed.weekly = true
			errs = append(errs, err)
			if s.st.store == nil {
				s.st.store = NewScheduleStore(nil)
			}
		} else {
			s.st.store = LoadForDay(weekly, now.Weekday())
		}
	}

	if want.ceremony {
		ceremony, reminder, err := s.schedules.LoadCeremonyConfig()
		if err != nil {
			failed.ceremony = true
			errs = append(errs, err)
		} else {
			s.st.ceremony = ceremony
			s.st.ceremonyToday = ceremony.IsOn(now)
			if s.st.ceremonyToday {
				s.logger.Info("Ceremony day", zap.Time("start", ceremony.StartOn(now)))
			}
			if reminder.IsOn(now) {
				_ = s.out.Direct(ctx, whistle.CeremonyReminder)
			}
		}
	}

	if want.policy {
		policy, err := s.schedules.LoadGameUpdatePolicy()
		if err != nil {
			failed.policy = true
			errs = append(errs, err)
		} else {
			s.st.policy = policy
		}
	}

	return failed, errs
}

func (s *DailyScheduler) resolveGameday(ctx context.Context, now time.Time) {
	if s.season == nil {
		s.tracker.Resolve(ctx, now, nil, 0)
		return
	}

	if s.st.policy.IsUpdateDay(now) {
		if err := s.season.Sync(ctx, now.Year()); err != nil {
			s.logger.Warn("Error syncing season schedule", zap.Error(err))
		}
	}

	games, err := s.store.GetAllGames()
	if err != nil {
		s.logger.Warn("Error loading cached games", zap.Error(err))
	}
	s.tracker.Resolve(ctx, now, games, s.st.policy.PregameWindow())
}

// regularCheck whistles once if now is a scheduled minute, otherwise
// suspends until the next scheduled minute or the next message poll.
func (s *DailyScheduler) regularCheck(ctx context.Context, now time.Time) error {
	current := models.EntryAt(now)

	if s.st.store.Has(current) {
		if !s.st.whistled || s.st.whistledAt != current {
			s.st.whistled = true
			s.st.whistledAt = current
			return escalate(s.out.RandomWhistle(ctx, KindRegular, ""))
		}
	} else {
		s.st.whistled = false
	}

	target := s.nextRegular(now)
	if s.inbound != nil && s.cfg.PollInterval > 0 {
		if wake := now.Add(s.cfg.PollInterval); wake.Before(target) {
			target = wake
		}
	}
	return sleepUntil(ctx, s.clock, target)
}

func (s *DailyScheduler) nextRegular(now time.Time) time.Time {
	return s.st.store.NextEntryAfter(now.Hour(), now.Minute()).On(now)
}

// upcomingRegular is the next regular whistle still owed, counting the
// current minute if it has not been whistled yet.
func (s *DailyScheduler) upcomingRegular(now time.Time) time.Time {
	current := models.EntryAt(now)
	if s.st.store.Has(current) && (!s.st.whistled || s.st.whistledAt != current) {
		return current.On(now)
	}
	return s.nextRegular(now)
}

func (s *DailyScheduler) handleCycleError(ctx context.Context, err error) {
	kind := apperrors.KindOf(err)
	if kind == "" {
		kind = "internal"
	}
	s.metrics.ObserveCycleError(string(kind))
	s.logger.Error("Cycle failed, cooling down",
		zap.Error(err),
		zap.Duration("cooldown", s.cfg.ErrorCooldown))

	s.out.ReportError(ctx, err)
	_ = s.clock.Sleep(ctx, s.cfg.ErrorCooldown)
}

func (s *DailyScheduler) publish() {
	if s.board == nil {
		return
	}
	now := s.clock.Now()

	status := Status{
		Day:            s.st.day.Format("2006-01-02"),
		Phase:          s.tracker.Phase().String(),
		RegularEnabled: s.tracker.RegularEnabled(),
		CeremonyToday:  s.st.ceremonyToday,
		Transport:      s.out.Transport(),
		UpdatedAt:      now,
	}
	if s.st.store != nil {
		for _, e := range s.st.store.Entries() {
			status.Schedule = append(status.Schedule, e.String())
		}
		status.NextWhistle = s.st.store.NextEntryAfter(now.Hour(), now.Minute()).String()
	}
	if game := s.tracker.Game(); game != nil {
		g := *game
		status.Game = &g
	}
	if live := s.tracker.Live(); live != nil {
		l := *live
		status.Live = &l
	}
	s.board.Set(status)
}

// escalate keeps setup failures and cancellation for the cycle supervisor
// and absorbs everything else, which the output already reported.
func escalate(err error) error {
	if err != nil && (apperrors.IsSetup(err) || isCanceled(err)) {
		return err
	}
	return nil
}

func isCanceled(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
