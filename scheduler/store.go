package scheduler

import (
	"sort"
	"time"

	"github.com/aweist/whistle-bot/models"
)

// ScheduleStore is the read-only set of whistle times for one day.
type ScheduleStore struct {
	entries []models.ScheduleEntry
}

// LoadForDay builds the store for weekday from the weekly schedule.
func LoadForDay(weekly models.WeeklySchedule, day time.Weekday) *ScheduleStore {
	return NewScheduleStore(weekly.ForWeekday(day))
}

func NewScheduleStore(entries []models.ScheduleEntry) *ScheduleStore {
	sorted := make([]models.ScheduleEntry, len(entries))
	copy(sorted, entries)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Before(sorted[j]) })
	return &ScheduleStore{entries: sorted}
}

// Entries returns the day's entries in time order.
func (s *ScheduleStore) Entries() []models.ScheduleEntry {
	out := make([]models.ScheduleEntry, len(s.entries))
	copy(out, s.entries)
	return out
}

// Has reports whether e is one of today's whistle times.
func (s *ScheduleStore) Has(e models.ScheduleEntry) bool {
	for _, entry := range s.entries {
		if entry == e {
			return true
		}
	}
	return false
}

// NextEntryAfter returns the earliest entry strictly later than hour:minute,
// or models.EndOfDay when nothing remains today.
func (s *ScheduleStore) NextEntryAfter(hour, minute int) models.ScheduleEntry {
	current := models.ScheduleEntry{Hour: hour, Minute: minute}
	next := models.EndOfDay
	for _, entry := range s.entries {
		if current.Before(entry) && entry.Before(next) {
			next = entry
		}
	}
	return next
}
