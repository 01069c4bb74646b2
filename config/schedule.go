package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/aweist/whistle-bot/apperrors"
	"github.com/aweist/whistle-bot/models"
)

// ScheduleDocument mirrors the YAML schedule file.
type ScheduleDocument struct {
	Weekly   [][]models.ScheduleEntry `yaml:"weekly" validate:"len=7"`
	Ceremony CeremonySection          `yaml:"ceremony"`
	Football FootballSection          `yaml:"football"`
}

type CeremonySection struct {
	Event    models.CeremonyConfig   `yaml:"event"`
	Reminder models.CeremonyReminder `yaml:"reminder"`
}

type FootballSection struct {
	UpdateMonths  []int  `yaml:"update_months" validate:"dive,min=1,max=12"`
	UpdateWeekday string `yaml:"update_weekday"`
	PregameHours  int    `yaml:"pregame_hours" validate:"min=0,max=23"`
}

// ScheduleFile loads the weekly schedule, ceremony, and football policy
// from a YAML file. Every call rereads the file so edits apply at the
// next daily reset.
type ScheduleFile struct {
	path     string
	validate *validator.Validate
}

func NewScheduleFile(path string) *ScheduleFile {
	return &ScheduleFile{path: path, validate: validator.New()}
}

func (f *ScheduleFile) Path() string {
	return f.path
}

func (f *ScheduleFile) load() (*ScheduleDocument, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		return nil, apperrors.Config("schedule.read", err)
	}
	doc, err := ParseSchedule(data)
	if err != nil {
		return nil, err
	}
	if err := f.validate.Struct(doc); err != nil {
		return nil, apperrors.Config("schedule.validate", err)
	}
	for day, entries := range doc.Weekly {
		for _, entry := range entries {
			if err := f.validate.Struct(entry); err != nil {
				return nil, apperrors.Config("schedule.validate", fmt.Errorf("day %d entry %s: %w", day, entry, err))
			}
		}
	}
	return doc, nil
}

// ParseSchedule decodes a schedule document without validating it.
func ParseSchedule(data []byte) (*ScheduleDocument, error) {
	var doc ScheduleDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, apperrors.Config("schedule.parse", err)
	}
	return &doc, nil
}

func (f *ScheduleFile) LoadWeeklySchedule() (models.WeeklySchedule, error) {
	var week models.WeeklySchedule
	doc, err := f.load()
	if err != nil {
		return week, err
	}
	copy(week[:], doc.Weekly)
	return week, nil
}

func (f *ScheduleFile) LoadCeremonyConfig() (models.CeremonyConfig, models.CeremonyReminder, error) {
	doc, err := f.load()
	if err != nil {
		return models.CeremonyConfig{}, models.CeremonyReminder{}, err
	}
	return doc.Ceremony.Event, doc.Ceremony.Reminder, nil
}

func (f *ScheduleFile) LoadGameUpdatePolicy() (models.GameUpdatePolicy, error) {
	doc, err := f.load()
	if err != nil {
		return models.GameUpdatePolicy{}, err
	}
	day, err := ParseWeekday(doc.Football.UpdateWeekday)
	if err != nil {
		return models.GameUpdatePolicy{}, apperrors.Config("schedule.football", err)
	}
	return models.GameUpdatePolicy{
		SeasonMonths:  doc.Football.UpdateMonths,
		UpdateWeekday: day,
		PregameHours:  doc.Football.PregameHours,
	}, nil
}

// ParseWeekday accepts full or three-letter English weekday names.
func ParseWeekday(name string) (time.Weekday, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return time.Sunday, nil
	}
	for d := time.Sunday; d <= time.Saturday; d++ {
		full := strings.ToLower(d.String())
		if name == full || name == full[:3] {
			return d, nil
		}
	}
	return time.Sunday, fmt.Errorf("unknown weekday %q", name)
}
