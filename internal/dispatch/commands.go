package dispatch

import (
	"fmt"
	"strings"
)

// Command names understood by the router.
const (
	CmdAge         = "age"
	CmdMatchInfo   = "match_info"
	CmdRank        = "rank"
	CmdTeamRank    = "team_rank"
	CmdLeaderboard = "leaderboard"
	CmdHelp        = "help"
)

// Argument names.
const (
	ArgUser       = "user"
	ArgMatchID    = "match_id"
	ArgPlayerName = "player_name"
)

// CommandSpec describes a command and its single optional free-text
// parameter. Platform adapters use it to register slash commands.
type CommandSpec struct {
	Name             string
	Description      string
	Param            string
	ParamDescription string
	Required         bool
	UserParam        bool // Param names a platform user rather than free text
}

// Commands is the full command surface, in help order.
var Commands = []CommandSpec{
	{
		Name:             CmdAge,
		Description:      "Displays your or another user's account creation date",
		Param:            ArgUser,
		ParamDescription: "Selected user",
		UserParam:        true,
	},
	{
		Name:             CmdMatchInfo,
		Description:      "Show match information after extracting a 9-digit match ID",
		Param:            ArgMatchID,
		ParamDescription: "aoe2 insight link, or lobby link or just plain old match id",
		Required:         true,
	},
	{
		Name:             CmdRank,
		Description:      "Show player rank statistic from aoe companion",
		Param:            ArgPlayerName,
		ParamDescription: "In-game player name to search",
		Required:         true,
	},
	{
		Name:             CmdTeamRank,
		Description:      "Show player team-rank statistic from aoe companion",
		Param:            ArgPlayerName,
		ParamDescription: "In-game player name to search",
		Required:         true,
	},
	{
		Name:        CmdLeaderboard,
		Description: "Show server-local leaderboard",
	},
	{
		Name:        CmdHelp,
		Description: "Show available commands",
	},
}

// LookupCommand returns the CommandSpec for name.
func LookupCommand(name string) (CommandSpec, bool) {
	for _, c := range Commands {
		if c.Name == name {
			return c, true
		}
	}
	return CommandSpec{}, false
}

// ParsedCommand is a command recovered from plain chat text.
type ParsedCommand struct {
	Name string
	Args map[string]string
	Rest string // raw text after the command name
}

// ParseCommand parses "/name rest..." text. It returns nil when text is not
// a command. A "@botname" suffix on the name is dropped. Unknown names are
// still returned so the router can answer them.
func ParseCommand(text string) *ParsedCommand {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "/") || len(text) == 1 {
		return nil
	}
	head, rest, _ := strings.Cut(text[1:], " ")
	if head == "" {
		return nil
	}
	if at := strings.IndexByte(head, '@'); at >= 0 {
		head = head[:at]
	}
	name := strings.ToLower(head)
	rest = strings.TrimSpace(rest)
	return &ParsedCommand{Name: name, Args: CommandArgs(name, rest), Rest: rest}
}

// CommandArgs maps the free text following a command onto its declared
// parameter.
func CommandArgs(name, rest string) map[string]string {
	args := map[string]string{}
	cs, ok := LookupCommand(name)
	if !ok || cs.Param == "" || rest == "" {
		return args
	}
	args[cs.Param] = rest
	return args
}

func helpText() string {
	var sb strings.Builder
	sb.WriteString("**Commands**\n")
	for _, c := range Commands {
		if c.Param != "" {
			param := c.Param
			if c.Required {
				param = "<" + param + ">"
			} else {
				param = "[" + param + "]"
			}
			fmt.Fprintf(&sb, "/%s %s: %s\n", c.Name, param, c.Description)
		} else {
			fmt.Fprintf(&sb, "/%s: %s\n", c.Name, c.Description)
		}
	}
	sb.WriteString("\nMention aoe2de together with a 9-digit match ID in chat and I will post the match links.")
	return sb.String()
}

func usageText(name string) string {
	cs, ok := LookupCommand(name)
	if !ok || cs.Param == "" {
		return "Usage: /" + name
	}
	return fmt.Sprintf("Usage: /%s <%s>", name, cs.Param)
}
