package scheduler

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/aweist/whistle-bot/models"
)

// GameStore caches our team's season schedule.
type GameStore interface {
	SaveSeason(season int, games []models.GameRecord) error
	SeasonSynced(season int) (bool, error)
	GetGame(gameID int) (*models.GameRecord, error)
	GetAllGames() ([]models.GameRecord, error)
}

// SeasonPoller refreshes the cached season schedule from the score source.
type SeasonPoller struct {
	scores ScoreSource
	games  GameStore
	team   string
	logger *zap.Logger
}

func NewSeasonPoller(scores ScoreSource, games GameStore, team string, logger *zap.Logger) *SeasonPoller {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SeasonPoller{scores: scores, games: games, team: team, logger: logger}
}

// EnsureSeason syncs season unless it has been synced before.
func (p *SeasonPoller) EnsureSeason(ctx context.Context, season int) error {
	synced, err := p.games.SeasonSynced(season)
	if err != nil {
		return fmt.Errorf("checking season sync: %w", err)
	}
	if synced {
		return nil
	}
	return p.Sync(ctx, season)
}

// Sync fetches season for our team and replaces the cached copy.
func (p *SeasonPoller) Sync(ctx context.Context, season int) error {
	p.logger.Info("Polling for schedule updates...", zap.Int("season", season))

	games, err := p.scores.FetchSeasonSchedule(ctx, season, p.team)
	if err != nil {
		return fmt.Errorf("fetching season schedule: %w", err)
	}

	newGames := 0
	for _, game := range games {
		existing, err := p.games.GetGame(game.GameID)
		if err != nil {
			return fmt.Errorf("getting existing game: %w", err)
		}
		if existing == nil {
			newGames++
		}
	}

	if err := p.games.SaveSeason(season, games); err != nil {
		return fmt.Errorf("saving season: %w", err)
	}

	p.logger.Info("Season schedule synced",
		zap.Int("season", season),
		zap.Int("games", len(games)),
		zap.Int("new_games", newGames))
	return nil
}
