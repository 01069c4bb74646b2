package notifier

import (
	"crypto/md5"
	"fmt"
	"strings"
	"time"

	"github.com/aweist/whistle-bot/models"
)

const icsTimeLayout = "20060102T150405Z"

// GenerateICS renders the stored games as an iCalendar feed.
func GenerateICS(games []models.GameRecord, gameLength time.Duration, now time.Time) string {
	if gameLength <= 0 {
		gameLength = 4 * time.Hour
	}
	dtStamp := now.UTC().Format(icsTimeLayout)

	var ics strings.Builder
	ics.WriteString("BEGIN:VCALENDAR\r\n")
	ics.WriteString("VERSION:2.0\r\n")
	ics.WriteString("PRODID:-//Whistle Bot//Gameday//EN\r\n")
	ics.WriteString("CALSCALE:GREGORIAN\r\n")
	ics.WriteString("METHOD:PUBLISH\r\n")

	for _, game := range games {
		writeEvent(&ics, game, gameLength, dtStamp)
	}

	ics.WriteString("END:VCALENDAR\r\n")
	return ics.String()
}

func writeEvent(ics *strings.Builder, game models.GameRecord, gameLength time.Duration, dtStamp string) {
	uid := fmt.Sprintf("%x@whistle-bot", md5.Sum([]byte(fmt.Sprintf("game-%d", game.GameID))))

	ics.WriteString("BEGIN:VEVENT\r\n")
	ics.WriteString(fmt.Sprintf("UID:%s\r\n", uid))
	ics.WriteString(fmt.Sprintf("DTSTAMP:%s\r\n", dtStamp))
	ics.WriteString(fmt.Sprintf("DTSTART:%s\r\n", game.Kickoff.UTC().Format(icsTimeLayout)))
	ics.WriteString(fmt.Sprintf("DTEND:%s\r\n", game.Kickoff.Add(gameLength).UTC().Format(icsTimeLayout)))
	ics.WriteString(fmt.Sprintf("SUMMARY:%s\r\n", escapeICS(gameSummary(game))))

	description := fmt.Sprintf("Season %d\\nGame %d", game.Season, game.GameID)
	ics.WriteString(fmt.Sprintf("DESCRIPTION:%s\r\n", description))

	ics.WriteString("BEGIN:VALARM\r\n")
	ics.WriteString("TRIGGER:-PT1H\r\n")
	ics.WriteString("ACTION:DISPLAY\r\n")
	ics.WriteString("DESCRIPTION:Kickoff in 1 hour!\r\n")
	ics.WriteString("END:VALARM\r\n")

	ics.WriteString("END:VEVENT\r\n")
}

func gameSummary(game models.GameRecord) string {
	away := game.AwayTeamName
	if away == "" {
		away = game.AwayTeam
	}
	home := game.HomeTeamName
	if home == "" {
		home = game.HomeTeam
	}
	return fmt.Sprintf("%s at %s", away, home)
}

// escapeICS escapes special characters for ICS format
func escapeICS(s string) string {
	s = strings.ReplaceAll(s, "\\", "\\\\")
	s = strings.ReplaceAll(s, "\n", "\\n")
	s = strings.ReplaceAll(s, ",", "\\,")
	s = strings.ReplaceAll(s, ";", "\\;")
	return s
}
