package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aweist/whistle-bot/apperrors"
	"github.com/aweist/whistle-bot/models"
)

const sampleSchedule = `
weekly:
  - [{hour: 8, minute: 55}, {hour: 9, minute: 5}, {hour: 17, minute: 0}]
  - [{hour: 8, minute: 55}]
  - []
  - [{hour: 14, minute: 0}]
  - []
  - [{hour: 12, minute: 0}]
  - []
ceremony:
  event: {year: 2024, month: 4, day: 19, hour: 11, minute: 0, delay_minutes: 30}
  reminder: {month: 4, day: 18}
football:
  update_months: [8, 9, 10, 11]
  update_weekday: tuesday
  pregame_hours: 2
`

func writeSchedule(t *testing.T, body string) *ScheduleFile {
	t.Helper()
	path := filepath.Join(t.TempDir(), "schedule.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return NewScheduleFile(path)
}

func TestScheduleFile_LoadWeeklySchedule(t *testing.T) {
	f := writeSchedule(t, sampleSchedule)

	week, err := f.LoadWeeklySchedule()
	require.NoError(t, err)

	assert.Equal(t, []models.ScheduleEntry{{Hour: 8, Minute: 55}, {Hour: 9, Minute: 5}, {Hour: 17, Minute: 0}}, week.ForWeekday(time.Monday))
	assert.Equal(t, []models.ScheduleEntry{{Hour: 14, Minute: 0}}, week.ForWeekday(time.Thursday))
	assert.Empty(t, week.ForWeekday(time.Sunday))
}

func TestScheduleFile_LoadCeremonyConfig(t *testing.T) {
	f := writeSchedule(t, sampleSchedule)

	event, reminder, err := f.LoadCeremonyConfig()
	require.NoError(t, err)
	assert.Equal(t, models.CeremonyConfig{Year: 2024, Month: 4, Day: 19, Hour: 11, Minute: 0, DelayMinutes: 30}, event)
	assert.Equal(t, models.CeremonyReminder{Month: 4, Day: 18}, reminder)
}

func TestScheduleFile_LoadGameUpdatePolicy(t *testing.T) {
	f := writeSchedule(t, sampleSchedule)

	policy, err := f.LoadGameUpdatePolicy()
	require.NoError(t, err)
	assert.Equal(t, []int{8, 9, 10, 11}, policy.SeasonMonths)
	assert.Equal(t, time.Tuesday, policy.UpdateWeekday)
	assert.Equal(t, 2*time.Hour, policy.PregameWindow())
}

func TestScheduleFile_Errors(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"six days", "weekly: [[], [], [], [], [], []]\n"},
		{"hour out of range", "weekly: [[{hour: 24, minute: 0}], [], [], [], [], [], []]\n"},
		{"minute out of range", "weekly: [[{hour: 1, minute: 60}], [], [], [], [], [], []]\n"},
		{"malformed yaml", "weekly: [[{hour: 1, minute: \n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := writeSchedule(t, tt.body)
			_, err := f.LoadWeeklySchedule()
			require.Error(t, err)
			assert.True(t, apperrors.Is(err, apperrors.KindConfig))
		})
	}
}

func TestScheduleFile_Missing(t *testing.T) {
	f := NewScheduleFile(filepath.Join(t.TempDir(), "nope.yaml"))
	_, err := f.LoadWeeklySchedule()
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.KindConfig))
}

func TestParseWeekday(t *testing.T) {
	tests := []struct {
		in      string
		want    time.Weekday
		wantErr bool
	}{
		{"saturday", time.Saturday, false},
		{"Sat", time.Saturday, false},
		{" TUESDAY ", time.Tuesday, false},
		{"", time.Sunday, false},
		{"funday", time.Sunday, true},
	}
	for _, tt := range tests {
		got, err := ParseWeekday(tt.in)
		if tt.wantErr {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}
