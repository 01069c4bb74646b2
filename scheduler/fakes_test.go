package scheduler

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/aweist/whistle-bot/apperrors"
	"github.com/aweist/whistle-bot/models"
	"github.com/aweist/whistle-bot/storage"
	"github.com/aweist/whistle-bot/whistle"
)

var eastern = mustLocation("US/Eastern")

func mustLocation(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		panic(err)
	}
	return loc
}

// at builds a time on 2024-11-30 (a Saturday) unless day is given.
func at(day, hour, minute int) time.Time {
	return time.Date(2024, 11, day, hour, minute, 0, 0, eastern)
}

// fakeClock advances instantly on Sleep. Reaching the deadline cancels
// the run and stops time.
type fakeClock struct {
	mu       sync.Mutex
	now      time.Time
	deadline time.Time
	cancel   context.CancelFunc
	slept    []time.Duration
}

func newFakeClock(now time.Time) *fakeClock {
	return &fakeClock{now: now}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if d <= 0 {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.slept = append(c.slept, d)
	target := c.now.Add(d)
	if !c.deadline.IsZero() && !target.Before(c.deadline) {
		c.now = c.deadline
		if c.cancel != nil {
			c.cancel()
		}
		return context.Canceled
	}
	c.now = target
	return nil
}

type sentDM struct {
	Recipient string
	Text      string
}

// fakeNotifier records posts and serves them back as the timeline.
type fakeNotifier struct {
	clock   Clock
	posts   []models.Whistle
	dms     []sentDM
	postErr error
	dmErr   error
	panicOn int
}

func (n *fakeNotifier) GetType() string { return "fake" }

func (n *fakeNotifier) Post(ctx context.Context, text string) error {
	if n.panicOn > 0 && len(n.posts)+1 == n.panicOn {
		n.panicOn = 0
		panic("post exploded")
	}
	if n.postErr != nil {
		return n.postErr
	}
	n.posts = append(n.posts, models.Whistle{Text: text, PostedAt: n.clock.Now()})
	return nil
}

func (n *fakeNotifier) Direct(ctx context.Context, recipientID, text string) error {
	if n.dmErr != nil {
		return n.dmErr
	}
	n.dms = append(n.dms, sentDM{Recipient: recipientID, Text: text})
	return nil
}

func (n *fakeNotifier) RecentPosts(ctx context.Context, limit int) ([]models.Whistle, error) {
	var out []models.Whistle
	for i := len(n.posts) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, n.posts[i])
	}
	return out, nil
}

func (n *fakeNotifier) texts() []string {
	out := make([]string, len(n.posts))
	for i, p := range n.posts {
		out[i] = p.Text
	}
	return out
}

// fakeScores replays a queue of snapshots; the last one repeats.
type fakeScores struct {
	states []*models.GameState
	errs   []error
	calls  int
	season []models.GameRecord
}

func (f *fakeScores) FetchGameState(ctx context.Context, gameID int) (*models.GameState, error) {
	i := f.calls
	f.calls++
	if i < len(f.errs) && f.errs[i] != nil {
		return nil, f.errs[i]
	}
	if len(f.states) == 0 {
		return nil, apperrors.Unavailable("fake.state", errors.New("no data"))
	}
	if i >= len(f.states) {
		i = len(f.states) - 1
	}
	return f.states[i], nil
}

func (f *fakeScores) FetchSeasonSchedule(ctx context.Context, year int, teamCode string) ([]models.GameRecord, error) {
	return f.season, nil
}

type fakeSchedules struct {
	weekly   models.WeeklySchedule
	ceremony models.CeremonyConfig
	reminder models.CeremonyReminder
	policy   models.GameUpdatePolicy
	err      error

	// weeklyErrs fail weekly loads in call order.
	weeklyErrs  []error
	weeklyLoads int
}

func (f *fakeSchedules) LoadWeeklySchedule() (models.WeeklySchedule, error) {
	f.weeklyLoads++
	if len(f.weeklyErrs) > 0 {
		err := f.weeklyErrs[0]
		f.weeklyErrs = f.weeklyErrs[1:]
		if err != nil {
			return models.WeeklySchedule{}, err
		}
	}
	return f.weekly, f.err
}

func (f *fakeSchedules) LoadCeremonyConfig() (models.CeremonyConfig, models.CeremonyReminder, error) {
	return f.ceremony, f.reminder, f.err
}

func (f *fakeSchedules) LoadGameUpdatePolicy() (models.GameUpdatePolicy, error) {
	return f.policy, f.err
}

type fakeInbound struct {
	batches [][]models.DirectMessage
	since   []time.Time
}

func (f *fakeInbound) FetchMessages(ctx context.Context, since time.Time) ([]models.DirectMessage, error) {
	f.since = append(f.since, since)
	if len(f.batches) == 0 {
		return nil, nil
	}
	batch := f.batches[0]
	f.batches = f.batches[1:]
	return batch, nil
}

type fakeLogs []string

func (f fakeLogs) Tail(n int) []string {
	if n <= 0 || n > len(f) {
		return f
	}
	return f[len(f)-n:]
}

func newTestStorage(t *testing.T) *storage.BoltStorage {
	t.Helper()
	s, err := storage.NewBoltStorage(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func newTestOutput(clock Clock, n *fakeNotifier, history WhistleRecorder) *Output {
	return NewOutput(OutputConfig{
		Notifier:     n,
		History:      history,
		Generator:    whistle.NewGenerator(whistle.GeneratorConfig{Seed: 7, RivalCode: "GA"}),
		Clock:        clock,
		Logs:         fakeLogs{"line one", "line two", "line three"},
		OwnerID:      "owner",
		RecentWindow: 5,
		DMCharLimit:  10000,
		Excerpt:      ExcerptConfig{DefaultLines: 2, MaxLines: 5, LineMaxChars: 50},
	})
}

func intp(v int) *int       { return &v }
func strp(v string) *string { return &v }

func gameState(home, away *int, period *string) *models.GameState {
	return &models.GameState{HomeTeam: "GTECH", AwayTeam: "GA", HomeScore: home, AwayScore: away, Period: period}
}
