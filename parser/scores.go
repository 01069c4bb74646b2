package parser

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/aweist/whistle-bot/models"
)

// DateTimeLayout is the score API's local kickoff timestamp format.
const DateTimeLayout = "2006-01-02T15:04:05"

type apiGame struct {
	GameID        int     `json:"GameID"`
	Season        int     `json:"Season"`
	DateTime      *string `json:"DateTime"`
	AwayTeam      string  `json:"AwayTeam"`
	HomeTeam      string  `json:"HomeTeam"`
	AwayTeamName  string  `json:"AwayTeamName"`
	HomeTeamName  string  `json:"HomeTeamName"`
	AwayTeamScore *int    `json:"AwayTeamScore"`
	HomeTeamScore *int    `json:"HomeTeamScore"`
	Period        *string `json:"Period"`
}

type apiBoxScore struct {
	Game *apiGame `json:"Game"`
}

// SeasonParser extracts one team's games from a season payload.
type SeasonParser struct {
	teamCode string
	loc      *time.Location
}

func NewSeasonParser(teamCode string, loc *time.Location) *SeasonParser {
	if loc == nil {
		loc = time.Local
	}
	return &SeasonParser{teamCode: teamCode, loc: loc}
}

// ParseSeason keeps the games our team plays in. Games without a kickoff
// time are skipped since they cannot be scheduled.
func (p *SeasonParser) ParseSeason(data []byte) ([]models.GameRecord, error) {
	var all []apiGame
	if err := json.Unmarshal(data, &all); err != nil {
		return nil, fmt.Errorf("decoding season: %w", err)
	}

	var games []models.GameRecord
	for _, g := range all {
		if !p.isTeamOfInterest(g) {
			continue
		}
		if g.DateTime == nil || strings.TrimSpace(*g.DateTime) == "" {
			continue
		}

		kickoff, err := time.ParseInLocation(DateTimeLayout, strings.TrimSpace(*g.DateTime), p.loc)
		if err != nil {
			return nil, fmt.Errorf("parsing kickoff for game %d: %w", g.GameID, err)
		}

		games = append(games, models.GameRecord{
			GameID:       g.GameID,
			Kickoff:      kickoff,
			HomeTeam:     g.HomeTeam,
			AwayTeam:     g.AwayTeam,
			HomeTeamName: g.HomeTeamName,
			AwayTeamName: g.AwayTeamName,
			Season:       g.Season,
		})
	}

	return games, nil
}

func (p *SeasonParser) isTeamOfInterest(g apiGame) bool {
	return strings.EqualFold(g.HomeTeam, p.teamCode) || strings.EqualFold(g.AwayTeam, p.teamCode)
}

// ParseBoxScore reads a live game snapshot. The payload may be a single
// box score or an array whose first element is the game.
func ParseBoxScore(data []byte) (*models.GameState, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, fmt.Errorf("empty box score")
	}

	var box apiBoxScore
	if trimmed[0] == '[' {
		var boxes []apiBoxScore
		if err := json.Unmarshal(trimmed, &boxes); err != nil {
			return nil, fmt.Errorf("decoding box score: %w", err)
		}
		if len(boxes) == 0 {
			return nil, fmt.Errorf("empty box score")
		}
		box = boxes[0]
	} else if err := json.Unmarshal(trimmed, &box); err != nil {
		return nil, fmt.Errorf("decoding box score: %w", err)
	}

	if box.Game == nil {
		return nil, fmt.Errorf("box score has no game")
	}

	return &models.GameState{
		HomeTeam:  box.Game.HomeTeam,
		AwayTeam:  box.Game.AwayTeam,
		HomeScore: box.Game.HomeTeamScore,
		AwayScore: box.Game.AwayTeamScore,
		Period:    box.Game.Period,
	}, nil
}
