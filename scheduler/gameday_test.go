package scheduler

import (
	"context"
	"errors"
	"math/rand"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aweist/whistle-bot/apperrors"
	"github.com/aweist/whistle-bot/models"
	"github.com/aweist/whistle-bot/whistle"
)

var testGame = models.GameRecord{
	GameID:   7,
	Kickoff:  at(30, 19, 30),
	HomeTeam: "GTECH",
	AwayTeam: "GA",
	Season:   2024,
}

type trackerHarness struct {
	clock   *fakeClock
	n       *fakeNotifier
	scores  *fakeScores
	tracker *Tracker
}

func newTrackerHarness(now time.Time) *trackerHarness {
	clock := newFakeClock(now)
	n := &fakeNotifier{clock: clock}
	scores := &fakeScores{}
	tracker := NewTracker(TrackerConfig{
		Scores:           scores,
		Output:           newTestOutput(clock, n, nil),
		Clock:            clock,
		TeamCode:         "GTECH",
		SamplingInterval: time.Minute,
		MaxGameDuration:  6 * time.Hour,
	})
	return &trackerHarness{clock: clock, n: n, scores: scores, tracker: tracker}
}

func (h *trackerHarness) step(t *testing.T, nextRegular time.Time) {
	t.Helper()
	require.NoError(t, h.tracker.Step(context.Background(), h.clock.Now(), nextRegular))
}

func TestTracker_ResolveSeedsPhase(t *testing.T) {
	tests := []struct {
		name    string
		now     time.Time
		games   []models.GameRecord
		want    models.GamedayPhase
		regular bool
	}{
		{"no game", at(29, 9, 0), []models.GameRecord{testGame}, models.NotGameday, true},
		{"midnight", at(30, 0, 0), []models.GameRecord{testGame}, models.MidnightGameday, true},
		{"midnight hour", at(30, 0, 45), []models.GameRecord{testGame}, models.MidnightGameday, true},
		{"morning", at(30, 9, 0), []models.GameRecord{testGame}, models.EarlyGameday, true},
		{"inside pregame window", at(30, 18, 0), []models.GameRecord{testGame}, models.PreGame, false},
		{"after kickoff", at(30, 20, 0), []models.GameRecord{testGame}, models.GameOn, false},
		{"no games cached", at(30, 9, 0), nil, models.NotGameday, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTrackerHarness(tt.now)
			h.tracker.Resolve(context.Background(), tt.now, tt.games, 2*time.Hour)
			assert.Equal(t, tt.want, h.tracker.Phase())
			assert.Equal(t, tt.regular, h.tracker.RegularEnabled())
		})
	}
}

func TestTracker_ResolveResetsPreviousDay(t *testing.T) {
	h := newTrackerHarness(at(30, 20, 0))
	h.tracker.Resolve(context.Background(), h.clock.Now(), []models.GameRecord{testGame}, 2*time.Hour)
	require.Equal(t, models.GameOn, h.tracker.Phase())

	h.tracker.Resolve(context.Background(), at(31, 0, 0), []models.GameRecord{testGame}, 2*time.Hour)
	assert.Equal(t, models.NotGameday, h.tracker.Phase())
	assert.Nil(t, h.tracker.Game())
	assert.True(t, h.tracker.RegularEnabled())
}

func TestTracker_MidnightToEarly(t *testing.T) {
	h := newTrackerHarness(at(30, 0, 0))
	h.tracker.Resolve(context.Background(), h.clock.Now(), []models.GameRecord{testGame}, 2*time.Hour)

	h.step(t, at(30, 10, 0))

	assert.Equal(t, models.EarlyGameday, h.tracker.Phase())
	assert.False(t, h.tracker.RegularEnabled())
	assert.Equal(t, []string{whistle.GamedayMidnight}, h.n.texts())
}

func TestTracker_EarlyStaysWhileRegularBeforePregame(t *testing.T) {
	h := newTrackerHarness(at(30, 9, 0))
	h.tracker.Resolve(context.Background(), h.clock.Now(), []models.GameRecord{testGame}, 2*time.Hour)

	h.step(t, at(30, 15, 0))

	assert.Equal(t, models.EarlyGameday, h.tracker.Phase())
	assert.True(t, h.tracker.RegularEnabled())
	assert.Empty(t, h.n.posts)
	assert.Empty(t, h.clock.slept)
}

func TestTracker_EarlyStaysWhenRegularFallsOnThreshold(t *testing.T) {
	h := newTrackerHarness(at(30, 15, 0))
	h.tracker.Resolve(context.Background(), h.clock.Now(), []models.GameRecord{testGame}, 2*time.Hour)

	h.step(t, at(30, 17, 30))

	assert.Equal(t, models.EarlyGameday, h.tracker.Phase())
	assert.True(t, h.tracker.RegularEnabled())
	assert.Empty(t, h.clock.slept)
}

func TestTracker_EarlyToPregameSleepsUntilThreshold(t *testing.T) {
	h := newTrackerHarness(at(30, 15, 0))
	h.tracker.Resolve(context.Background(), h.clock.Now(), []models.GameRecord{testGame}, 2*time.Hour)

	h.step(t, at(30, 20, 0))

	assert.Equal(t, models.PreGame, h.tracker.Phase())
	assert.False(t, h.tracker.RegularEnabled())
	assert.Equal(t, at(30, 17, 30), h.clock.Now())
}

func TestTracker_PregameAndKickoff(t *testing.T) {
	h := newTrackerHarness(at(30, 17, 30))
	h.scores.states = []*models.GameState{gameState(nil, nil, nil)}
	h.tracker.Resolve(context.Background(), h.clock.Now(), []models.GameRecord{testGame}, 2*time.Hour)
	require.Equal(t, models.PreGame, h.tracker.Phase())

	h.step(t, models.EndOfDay.On(h.clock.Now()))
	assert.Equal(t, models.ToeHitLeather, h.tracker.Phase())
	assert.Equal(t, at(30, 19, 30), h.clock.Now())

	h.step(t, models.EndOfDay.On(h.clock.Now()))
	assert.Equal(t, models.GameOn, h.tracker.Phase())
	assert.Equal(t, []string{whistle.GamedayPregame, whistle.GamedayKickoff}, h.n.texts())
	assert.Equal(t, 1, h.scores.calls)
}

func gameOnHarness(t *testing.T, states ...*models.GameState) *trackerHarness {
	t.Helper()
	h := newTrackerHarness(at(30, 19, 30))
	h.scores.states = states
	h.tracker.Resolve(context.Background(), h.clock.Now(), []models.GameRecord{testGame}, 2*time.Hour)
	require.Equal(t, models.GameOn, h.tracker.Phase())
	return h
}

func TestTracker_ScoreAfterMissingPeriod(t *testing.T) {
	h := gameOnHarness(t,
		gameState(intp(0), intp(0), nil),
		gameState(intp(7), intp(0), strp("Q1")),
	)

	h.step(t, time.Time{})

	require.Len(t, h.n.posts, 1)
	text := h.n.posts[0].Text
	assert.Equal(t, h.tracker.out.Generator().Score(7, "GA"), text)
	assert.Contains(t, text, strings.Repeat("E", whistle.HighEsDefault))
	assert.Equal(t, 1, strings.Count(text, whistle.RivalMarker))
	assert.Equal(t, models.GameOn, h.tracker.Phase())
	assert.Equal(t, []time.Duration{time.Minute}, h.clock.slept)
	assert.Equal(t, 7, h.tracker.Live().ScoreOf("GTECH"))
}

func TestTracker_BigScoreGrowsWhistle(t *testing.T) {
	h := gameOnHarness(t,
		gameState(intp(35), intp(0), strp("Q3")),
		gameState(intp(42), intp(0), strp("Q4")),
	)

	h.step(t, time.Time{})

	require.Len(t, h.n.posts, 1)
	assert.Contains(t, h.n.posts[0].Text, "e"+strings.Repeat("E", 42)+whistle.RivalMarker)
}

func TestTracker_AwayTeamScores(t *testing.T) {
	h := newTrackerHarness(at(30, 19, 30))
	away := testGame
	away.HomeTeam, away.AwayTeam = "CLEM", "GTECH"
	h.scores.states = []*models.GameState{
		{HomeTeam: "CLEM", AwayTeam: "GTECH", HomeScore: intp(0), AwayScore: intp(0), Period: strp("Q1")},
		{HomeTeam: "CLEM", AwayTeam: "GTECH", HomeScore: intp(7), AwayScore: intp(0), Period: strp("Q1")},
		{HomeTeam: "CLEM", AwayTeam: "GTECH", HomeScore: intp(7), AwayScore: intp(3), Period: strp("Q2")},
	}
	h.tracker.Resolve(context.Background(), h.clock.Now(), []models.GameRecord{away}, 2*time.Hour)

	h.step(t, time.Time{})
	assert.Empty(t, h.n.posts, "opponent scoring is not our whistle")

	h.step(t, time.Time{})
	require.Len(t, h.n.posts, 1)
	assert.Equal(t, h.tracker.out.Generator().Score(3, "CLEM"), h.n.posts[0].Text)
	assert.NotContains(t, h.n.posts[0].Text, whistle.RivalMarker)
}

func TestTracker_MissingDataAdoptedWithoutWhistle(t *testing.T) {
	h := gameOnHarness(t,
		gameState(nil, nil, nil),
		gameState(intp(0), intp(0), strp("Q1")),
		gameState(intp(0), intp(0), strp("Q1")),
	)

	h.step(t, time.Time{})
	h.step(t, time.Time{})

	assert.Empty(t, h.n.posts)
	assert.Equal(t, models.GameOn, h.tracker.Phase())
	assert.True(t, h.tracker.Live().HasScores())
}

func TestTracker_VictoryOnFinal(t *testing.T) {
	h := gameOnHarness(t,
		gameState(intp(24), intp(17), strp("Q4")),
		gameState(intp(24), intp(17), strp("Final")),
	)

	h.step(t, time.Time{})

	require.Len(t, h.n.posts, 1)
	want := whistle.VictoryPrefix + h.tracker.out.Generator().Score(24, "GA")
	assert.Equal(t, want, h.n.posts[0].Text)
	assert.Contains(t, h.n.posts[0].Text, strings.Repeat("E", 24))
	assert.Contains(t, h.n.posts[0].Text, whistle.RivalMarker)
	assert.Equal(t, models.PostGame, h.tracker.Phase())
	assert.Empty(t, h.clock.slept)
}

func TestTracker_LossOnFinal(t *testing.T) {
	h := gameOnHarness(t,
		gameState(intp(10), intp(17), strp("Q4")),
		gameState(intp(10), intp(17), strp("F/OT")),
	)

	h.step(t, time.Time{})

	assert.Empty(t, h.n.posts)
	assert.Equal(t, models.PostGame, h.tracker.Phase())
}

func TestTracker_ScoreOnFinalStepWhistlesScoreFirst(t *testing.T) {
	h := gameOnHarness(t,
		gameState(intp(21), intp(17), strp("Q4")),
		gameState(intp(24), intp(17), strp("F")),
	)

	h.step(t, time.Time{})
	assert.Equal(t, models.GameOn, h.tracker.Phase())
	require.Len(t, h.n.posts, 1)

	h.step(t, time.Time{})
	assert.Equal(t, models.PostGame, h.tracker.Phase())
	require.Len(t, h.n.posts, 2)
	assert.True(t, strings.HasPrefix(h.n.posts[1].Text, whistle.VictoryPrefix))
}

func TestTracker_UnavailableKeepsPhase(t *testing.T) {
	h := gameOnHarness(t, gameState(intp(0), intp(0), strp("Q1")))
	h.scores.errs = []error{nil, apperrors.Unavailable("fake", errors.New("timeout"))}

	h.step(t, time.Time{})

	assert.Equal(t, models.GameOn, h.tracker.Phase())
	assert.Empty(t, h.n.posts)
	assert.Equal(t, []time.Duration{time.Minute}, h.clock.slept)
	assert.True(t, h.tracker.Live().HasScores(), "live state survives a failed poll")

	h.step(t, time.Time{})
	assert.Equal(t, 3, h.scores.calls)
}

func TestTracker_MaxDurationEscape(t *testing.T) {
	h := gameOnHarness(t, gameState(intp(0), intp(0), strp("Q1")))
	h.clock.now = at(30, 19, 30).Add(6*time.Hour + time.Minute)

	h.step(t, time.Time{})

	assert.Equal(t, models.PostGame, h.tracker.Phase())
	assert.Equal(t, 1, h.scores.calls, "no poll after the ceiling")
}

func TestTracker_PostGameRestoresRegularSchedule(t *testing.T) {
	h := gameOnHarness(t, gameState(intp(0), intp(0), strp("F")))
	h.step(t, time.Time{})
	require.Equal(t, models.PostGame, h.tracker.Phase())
	assert.False(t, h.tracker.RegularEnabled())

	h.step(t, time.Time{})

	assert.Equal(t, models.PostGame, h.tracker.Phase())
	assert.True(t, h.tracker.RegularEnabled())
	assert.Nil(t, h.tracker.Game())
	assert.Nil(t, h.tracker.Live())
	assert.True(t, h.tracker.Active())
}

func TestTracker_PhaseNeverMovesBackward(t *testing.T) {
	periods := []*string{nil, strp("Q1"), strp("Q2"), strp("Half"), strp("Final")}
	rng := rand.New(rand.NewSource(11))

	for round := 0; round < 50; round++ {
		start := at(30, rng.Intn(24), rng.Intn(60))
		h := newTrackerHarness(start)

		for i := 0; i < 20; i++ {
			var home, away *int
			if rng.Intn(4) > 0 {
				home, away = intp(rng.Intn(50)), intp(rng.Intn(50))
			}
			h.scores.states = append(h.scores.states, gameState(home, away, periods[rng.Intn(len(periods))]))
			if rng.Intn(5) == 0 {
				h.scores.errs = append(h.scores.errs, apperrors.Unavailable("fake", errors.New("down")))
			} else {
				h.scores.errs = append(h.scores.errs, nil)
			}
		}

		h.tracker.Resolve(context.Background(), start, []models.GameRecord{testGame}, 2*time.Hour)
		prev := h.tracker.Phase()
		for i := 0; i < 15; i++ {
			next := h.clock.Now().Add(time.Duration(rng.Intn(600)) * time.Minute)
			require.NoError(t, h.tracker.Step(context.Background(), h.clock.Now(), next))
			require.GreaterOrEqual(t, int(h.tracker.Phase()), int(prev))
			prev = h.tracker.Phase()
		}
	}
}
