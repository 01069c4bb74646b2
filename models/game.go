package models

import (
	"strings"
	"time"
)

// GameRecord is a schedule entry for one of our team's games.
type GameRecord struct {
	GameID       int       `json:"game_id"`
	Kickoff      time.Time `json:"kickoff"`
	HomeTeam     string    `json:"home_team"`
	AwayTeam     string    `json:"away_team"`
	HomeTeamName string    `json:"home_team_name"`
	AwayTeamName string    `json:"away_team_name"`
	Season       int       `json:"season"`
}

// IsOn reports whether the game kicks off on the calendar day of t.
func (g GameRecord) IsOn(t time.Time) bool {
	k := g.Kickoff.In(t.Location())
	return k.Year() == t.Year() && k.Month() == t.Month() && k.Day() == t.Day()
}

// Opponent returns the other team's code from team's point of view.
func (g GameRecord) Opponent(team string) string {
	if g.HomeTeam == team {
		return g.AwayTeam
	}
	return g.HomeTeam
}

// GameState is a live snapshot from the score source. Nil fields mean the
// source had no value yet.
type GameState struct {
	HomeTeam  string  `json:"home_team"`
	AwayTeam  string  `json:"away_team"`
	HomeScore *int    `json:"home_score"`
	AwayScore *int    `json:"away_score"`
	Period    *string `json:"period"`
}

// MissingData reports whether any team, score, or period field is absent.
func (s *GameState) MissingData() bool {
	return !s.HasScores() || s.Period == nil
}

// HasScores reports whether both teams and both scores are present.
func (s *GameState) HasScores() bool {
	return s != nil && s.HomeTeam != "" && s.AwayTeam != "" &&
		s.HomeScore != nil && s.AwayScore != nil
}

func (s *GameState) isHome(team string) bool {
	return s.HomeTeam == team
}

// ScoreOf returns team's score, or 0 when scores are missing.
func (s *GameState) ScoreOf(team string) int {
	if !s.HasScores() {
		return 0
	}
	if s.isHome(team) {
		return *s.HomeScore
	}
	return *s.AwayScore
}

// OpponentOf returns the code of the team playing against team.
func (s *GameState) OpponentOf(team string) string {
	if s == nil {
		return ""
	}
	if s.isHome(team) {
		return s.AwayTeam
	}
	return s.HomeTeam
}

// Scored reports whether team's score increased from prev to s. A
// comparison involving a snapshot without scores is never a score.
func (s *GameState) Scored(team string, prev *GameState) bool {
	if !prev.HasScores() || !s.HasScores() {
		return false
	}
	if s.isHome(team) {
		return *s.HomeScore > *prev.HomeScore
	}
	return *s.AwayScore > *prev.AwayScore
}

// Winning reports whether team leads, resolving home and away first.
func (s *GameState) Winning(team string) bool {
	if !s.HasScores() {
		return false
	}
	if s.isHome(team) {
		return *s.HomeScore > *s.AwayScore
	}
	return *s.AwayScore > *s.HomeScore
}

// IsFinal reports whether the period marker matches one of finals,
// case-insensitively.
func (s *GameState) IsFinal(finals []string) bool {
	if s == nil || s.Period == nil {
		return false
	}
	for _, f := range finals {
		if strings.EqualFold(strings.TrimSpace(*s.Period), f) {
			return true
		}
	}
	return false
}

// GamedayPhase is the live-game state machine position. The numeric order
// is the only allowed direction of travel within a day.
type GamedayPhase int

const (
	NotGameday GamedayPhase = iota
	MidnightGameday
	EarlyGameday
	PreGame
	ToeHitLeather
	GameOn
	PostGame
)

var phaseNames = [...]string{
	NotGameday:      "not_gameday",
	MidnightGameday: "midnight_gameday",
	EarlyGameday:    "early_gameday",
	PreGame:         "pregame",
	ToeHitLeather:   "toe_hit_leather",
	GameOn:          "game_on",
	PostGame:        "post_game",
}

func (p GamedayPhase) String() string {
	if p < NotGameday || int(p) >= len(phaseNames) {
		return "unknown"
	}
	return phaseNames[p]
}

// InProgress reports whether a game is underway or imminent, in which case
// a calendar-day change must not reset the tracker.
func (p GamedayPhase) InProgress() bool {
	return p >= PreGame && p <= GameOn
}
