package scheduler

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/aweist/whistle-bot/apperrors"
	"github.com/aweist/whistle-bot/metrics"
	"github.com/aweist/whistle-bot/models"
	"github.com/aweist/whistle-bot/whistle"
)

// ScoreSource is the upstream sports data provider.
type ScoreSource interface {
	FetchGameState(ctx context.Context, gameID int) (*models.GameState, error)
	FetchSeasonSchedule(ctx context.Context, year int, teamCode string) ([]models.GameRecord, error)
}

// Tracker drives the gameday phase machine for at most one game per day.
type Tracker struct {
	scores      ScoreSource
	out         *Output
	clock       Clock
	metrics     *metrics.Metrics
	logger      *zap.Logger
	team        string
	finals      []string
	sampling    time.Duration
	maxDuration time.Duration
	pregame     time.Duration

	phase          models.GamedayPhase
	game           *models.GameRecord
	live           *models.GameState
	regularEnabled bool
}

type TrackerConfig struct {
	Scores           ScoreSource
	Output           *Output
	Clock            Clock
	Metrics          *metrics.Metrics
	Logger           *zap.Logger
	TeamCode         string
	FinalPeriods     []string
	SamplingInterval time.Duration
	MaxGameDuration  time.Duration
}

func NewTracker(cfg TrackerConfig) *Tracker {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if len(cfg.FinalPeriods) == 0 {
		cfg.FinalPeriods = []string{"F", "F/OT", "Final"}
	}
	return &Tracker{
		scores:         cfg.Scores,
		out:            cfg.Output,
		clock:          cfg.Clock,
		metrics:        cfg.Metrics,
		logger:         cfg.Logger,
		team:           cfg.TeamCode,
		finals:         cfg.FinalPeriods,
		sampling:       cfg.SamplingInterval,
		maxDuration:    cfg.MaxGameDuration,
		regularEnabled: true,
	}
}

func (t *Tracker) Phase() models.GamedayPhase {
	return t.phase
}

// Active reports whether the tracker has work to do this cycle.
func (t *Tracker) Active() bool {
	return t.phase != models.NotGameday
}

// RegularEnabled is the gate for the regular whistle schedule.
func (t *Tracker) RegularEnabled() bool {
	return t.regularEnabled
}

// Game returns today's game, if one is being tracked.
func (t *Tracker) Game() *models.GameRecord {
	return t.game
}

// Live returns the latest adopted score snapshot.
func (t *Tracker) Live() *models.GameState {
	return t.live
}

// Resolve is the daily reset: it forgets yesterday and, if games holds one
// for today, seeds the phase from how far into the day now is.
func (t *Tracker) Resolve(ctx context.Context, now time.Time, games []models.GameRecord, pregame time.Duration) {
	t.phase = models.NotGameday
	t.game = nil
	t.live = nil
	t.regularEnabled = true
	t.pregame = pregame
	t.metrics.SetPhase(int(t.phase))

	for i := range games {
		if games[i].IsOn(now) {
			game := games[i]
			t.game = &game
			break
		}
	}
	if t.game == nil {
		return
	}

	kickoff := t.game.Kickoff.In(now.Location())
	t.logger.Info("Gameday",
		zap.Int("game_id", t.game.GameID),
		zap.String("home", t.game.HomeTeam),
		zap.String("away", t.game.AwayTeam),
		zap.Time("kickoff", kickoff))

	switch {
	case now.Hour() == 0:
		t.advance(models.MidnightGameday)
	case now.Before(kickoff.Add(-pregame)):
		t.advance(models.EarlyGameday)
	case now.Before(kickoff):
		t.regularEnabled = false
		t.advance(models.PreGame)
	default:
		t.regularEnabled = false
		t.live = t.fetch(ctx)
		t.advance(models.GameOn)
	}
}

// SetPregame replaces the pregame window for the current day.
func (t *Tracker) SetPregame(d time.Duration) {
	t.pregame = d
}

// advance moves the phase forward. Backward moves are refused; only
// Resolve may return the tracker to NotGameday.
func (t *Tracker) advance(next models.GamedayPhase) {
	if next < t.phase {
		t.logger.Error("Refusing backward gameday transition",
			zap.Stringer("from", t.phase), zap.Stringer("to", next))
		return
	}
	if next != t.phase {
		t.logger.Info("Gameday phase", zap.Stringer("from", t.phase), zap.Stringer("to", next))
	}
	t.phase = next
	t.metrics.SetPhase(int(next))
}

// Step runs one transition of the phase machine. nextRegular is when the
// regular schedule would next whistle.
func (t *Tracker) Step(ctx context.Context, now, nextRegular time.Time) error {
	switch t.phase {
	case models.NotGameday:
		return nil

	case models.MidnightGameday:
		t.regularEnabled = false
		if err := t.emit(ctx, KindGameday, whistle.GamedayMidnight); err != nil {
			return err
		}
		t.advance(models.EarlyGameday)
		return nil

	case models.EarlyGameday:
		pregameAt := t.kickoff(now).Add(-t.pregame)
		if !nextRegular.After(pregameAt) {
			t.regularEnabled = true
			return nil
		}
		t.regularEnabled = false
		t.advance(models.PreGame)
		return sleepUntil(ctx, t.clock, pregameAt)

	case models.PreGame:
		t.regularEnabled = false
		if err := t.emit(ctx, KindGameday, whistle.GamedayPregame); err != nil {
			return err
		}
		t.advance(models.ToeHitLeather)
		return sleepUntil(ctx, t.clock, t.kickoff(now))

	case models.ToeHitLeather:
		if err := t.emit(ctx, KindGameday, whistle.GamedayKickoff); err != nil {
			return err
		}
		t.live = t.fetch(ctx)
		t.advance(models.GameOn)
		return nil

	case models.GameOn:
		return t.stepGameOn(ctx, now)

	case models.PostGame:
		if t.game != nil {
			t.logger.Info("Game over, resuming regular schedule", zap.Int("game_id", t.game.GameID))
		}
		t.game = nil
		t.live = nil
		t.regularEnabled = true
		return nil

	default:
		return fmt.Errorf("unhandled gameday phase %d", t.phase)
	}
}

func (t *Tracker) stepGameOn(ctx context.Context, now time.Time) error {
	if t.maxDuration > 0 && now.Sub(t.kickoff(now)) > t.maxDuration {
		t.logger.Warn("Game exceeded maximum duration, giving up on scores",
			zap.Duration("max", t.maxDuration))
		t.advance(models.PostGame)
		return nil
	}

	state := t.fetch(ctx)
	if state == nil {
		return t.clock.Sleep(ctx, t.sampling)
	}

	if state.Scored(t.team, t.live) {
		t.live = state
		score := state.ScoreOf(t.team)
		t.logger.Info("Score!", zap.Int("score", score), zap.String("opponent", state.OpponentOf(t.team)))
		if err := escalate(t.out.ScoreWhistle(ctx, score, state.OpponentOf(t.team))); err != nil {
			return err
		}
		return t.clock.Sleep(ctx, t.sampling)
	}

	if state.HasScores() || !t.live.HasScores() {
		t.live = state
	}

	if state.IsFinal(t.finals) {
		if state.Winning(t.team) {
			text := whistle.VictoryPrefix + t.out.Generator().Score(state.ScoreOf(t.team), state.OpponentOf(t.team))
			if err := escalate(t.out.Whistle(ctx, KindVictory, text)); err != nil {
				return err
			}
		}
		t.advance(models.PostGame)
		return nil
	}

	return t.clock.Sleep(ctx, t.sampling)
}

// fetch polls the score source. Failures are missing data, never errors.
func (t *Tracker) fetch(ctx context.Context) *models.GameState {
	if t.scores == nil || t.game == nil {
		return nil
	}
	state, err := t.scores.FetchGameState(ctx, t.game.GameID)
	if err != nil {
		t.metrics.ObserveScorePoll("unavailable")
		t.logger.Warn("Score data unavailable",
			zap.Int("game_id", t.game.GameID),
			zap.String("kind", string(apperrors.KindDataUnavailable)),
			zap.Error(err))
		return nil
	}
	if state.MissingData() {
		t.metrics.ObserveScorePoll("missing")
	} else {
		t.metrics.ObserveScorePoll("ok")
	}
	return state
}

func (t *Tracker) emit(ctx context.Context, kind, text string) error {
	return escalate(t.out.Whistle(ctx, kind, text))
}

func (t *Tracker) kickoff(now time.Time) time.Time {
	if t.game == nil {
		return now
	}
	return t.game.Kickoff.In(now.Location())
}
