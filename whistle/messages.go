package whistle

// Fixed texts for gameday, ceremony, and owner messages.
const (
	GamedayMidnight = "It's midnight, and it's #GAMEDAY! " + DefaultText
	GamedayPregame  = "Pregame is underway. Get to your seats! " + DefaultText
	GamedayKickoff  = "Toe meets leather! " + DefaultText
	VictoryPrefix   = "VICTORY! "

	CeremonyExplanation = "Today the whistle stays silent until the ceremony. " +
		"We pause to remember the members of our community we lost this year."
	CeremonyInMemoriam = "In memoriam: "
	CeremonyReminder   = "Reminder: the memorial ceremony is coming up. Check the ceremony date and time in the schedule file."

	ResetReply      = "Resetting..."
	LogUsageReply   = "Print log command format: 'log [num lines]'"
	CooldownNotice  = "Sleeping for a while before continuing..."
	StartupTemplate = "[%s] Wetting whistle... @ %s"
	EmptyLogExcerpt = "(log is empty)"
)
