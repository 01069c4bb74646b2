package models

import (
	"fmt"
	"time"
)

// ScheduleEntry is one configured whistle moment within a day.
type ScheduleEntry struct {
	Hour   int `yaml:"hour" json:"hour" validate:"min=0,max=23"`
	Minute int `yaml:"minute" json:"minute" validate:"min=0,max=59"`
}

// EndOfDay is the sentinel returned when no entry remains today. It
// resolves to midnight of the next calendar day.
var EndOfDay = ScheduleEntry{Hour: 24, Minute: 0}

// Before reports whether e is strictly earlier than other.
func (e ScheduleEntry) Before(other ScheduleEntry) bool {
	return e.Hour < other.Hour || (e.Hour == other.Hour && e.Minute < other.Minute)
}

func (e ScheduleEntry) IsEndOfDay() bool {
	return e == EndOfDay
}

// On returns the start of the entry's minute on the calendar day of t.
func (e ScheduleEntry) On(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), e.Hour, e.Minute, 0, 0, t.Location())
}

func (e ScheduleEntry) String() string {
	return fmt.Sprintf("%02d:%02d", e.Hour, e.Minute)
}

// EntryAt truncates t to its hour and minute.
func EntryAt(t time.Time) ScheduleEntry {
	return ScheduleEntry{Hour: t.Hour(), Minute: t.Minute()}
}

// WeeklySchedule holds one day schedule per weekday, Monday first.
type WeeklySchedule [7][]ScheduleEntry

// ForWeekday maps Go's Sunday-first weekday onto the Monday-first layout.
func (w WeeklySchedule) ForWeekday(day time.Weekday) []ScheduleEntry {
	return w[(int(day)+6)%7]
}

// CeremonyConfig describes the yearly memorial event.
type CeremonyConfig struct {
	Year         int `yaml:"year" json:"year" validate:"min=0"`
	Month        int `yaml:"month" json:"month" validate:"omitempty,min=1,max=12"`
	Day          int `yaml:"day" json:"day" validate:"omitempty,min=1,max=31"`
	Hour         int `yaml:"hour" json:"hour" validate:"min=0,max=23"`
	Minute       int `yaml:"minute" json:"minute" validate:"min=0,max=59"`
	DelayMinutes int `yaml:"delay_minutes" json:"delay_minutes" validate:"min=0"`
}

// IsOn reports whether the ceremony falls on the calendar day of t.
func (c CeremonyConfig) IsOn(t time.Time) bool {
	return t.Year() == c.Year && int(t.Month()) == c.Month && t.Day() == c.Day
}

// StartOn returns the ceremony start on the calendar day of t.
func (c CeremonyConfig) StartOn(t time.Time) time.Time {
	return ScheduleEntry{Hour: c.Hour, Minute: c.Minute}.On(t)
}

func (c CeremonyConfig) Delay() time.Duration {
	return time.Duration(c.DelayMinutes) * time.Minute
}

// CeremonyReminder is the month/day on which the owner is reminded of the
// upcoming ceremony. It repeats every year.
type CeremonyReminder struct {
	Month int `yaml:"month" json:"month" validate:"omitempty,min=1,max=12"`
	Day   int `yaml:"day" json:"day" validate:"omitempty,min=1,max=31"`
}

func (r CeremonyReminder) IsOn(t time.Time) bool {
	return r.Month != 0 && int(t.Month()) == r.Month && t.Day() == r.Day
}

// GameUpdatePolicy controls when the season schedule is refreshed and how
// long before kickoff regular whistles stop.
type GameUpdatePolicy struct {
	SeasonMonths  []int        `json:"season_months"`
	UpdateWeekday time.Weekday `json:"update_weekday"`
	PregameHours  int          `json:"pregame_hours"`
}

// IsUpdateDay reports whether the season schedule should be refreshed on t.
func (p GameUpdatePolicy) IsUpdateDay(t time.Time) bool {
	if t.Weekday() != p.UpdateWeekday {
		return false
	}
	for _, m := range p.SeasonMonths {
		if int(t.Month()) == m {
			return true
		}
	}
	return false
}

func (p GameUpdatePolicy) PregameWindow() time.Duration {
	return time.Duration(p.PregameHours) * time.Hour
}
