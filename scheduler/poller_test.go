package scheduler

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aweist/whistle-bot/models"
)

func TestSeasonPoller_Sync(t *testing.T) {
	store := newTestStorage(t)
	scores := &fakeScores{season: []models.GameRecord{testGame}}
	poller := NewSeasonPoller(scores, store, "GTECH", nil)

	require.NoError(t, poller.Sync(context.Background(), 2024))

	games, err := store.GetAllGames()
	require.NoError(t, err)
	require.Len(t, games, 1)
	assert.Equal(t, 7, games[0].GameID)

	synced, err := store.SeasonSynced(2024)
	require.NoError(t, err)
	assert.True(t, synced)
}

func TestSeasonPoller_EnsureSeasonSkipsSyncedSeason(t *testing.T) {
	store := newTestStorage(t)
	require.NoError(t, store.SaveSeason(2024, nil))
	scores := &fakeScores{season: []models.GameRecord{testGame}}
	poller := NewSeasonPoller(scores, store, "GTECH", nil)

	require.NoError(t, poller.EnsureSeason(context.Background(), 2024))

	games, err := store.GetAllGames()
	require.NoError(t, err)
	assert.Empty(t, games)
}
