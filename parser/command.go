package parser

import (
	"strconv"
	"strings"
)

type CommandKind int

const (
	CommandToot CommandKind = iota
	CommandReset
	CommandLog
)

func (k CommandKind) String() string {
	switch k {
	case CommandReset:
		return "reset"
	case CommandLog:
		return "log"
	default:
		return "toot"
	}
}

const (
	keywordReset = "reset"
	keywordLog   = "log"
)

// Command is an interpreted inbound message. Lines is zero when the log
// command should use its default length.
type Command struct {
	Kind        CommandKind
	Lines       int
	BadArgument bool
	UsageOnly   bool
}

// ParseCommand interprets a message body. Who may run a command is decided
// by the caller.
func ParseCommand(text string) Command {
	lower := strings.ToLower(text)

	if strings.Contains(lower, keywordReset) {
		return Command{Kind: CommandReset}
	}

	if strings.Contains(lower, keywordLog) {
		fields := strings.Fields(lower)
		switch {
		case len(fields) == 1 && fields[0] == keywordLog:
			return Command{Kind: CommandLog}
		case len(fields) == 2 && fields[0] == keywordLog:
			n, err := strconv.Atoi(fields[1])
			if err != nil || n <= 0 {
				return Command{Kind: CommandLog, BadArgument: true}
			}
			return Command{Kind: CommandLog, Lines: n}
		default:
			return Command{Kind: CommandLog, UsageOnly: true}
		}
	}

	return Command{Kind: CommandToot}
}
