// Package chatcmd recognizes the audience commands typed in chat.
package chatcmd

import (
	"strings"
	"unicode"
)

type Kind int

const (
	KindNone Kind = iota
	KindGuess
	KindJoin
)

func (k Kind) String() string {
	switch k {
	case KindGuess:
		return "guess"
	case KindJoin:
		return "join"
	default:
		return "none"
	}
}

// Command is a parsed chat command. Arg is the untouched remainder after
// the command word.
type Command struct {
	Kind Kind
	Arg  string
}

var commands = map[string]Kind{
	"!palpite": KindGuess,
	"!p":       KindGuess,
	"!time":    KindJoin,
}

// Parse returns the command in msg. Messages that do not start with a known
// command word, or carry no argument, yield KindNone.
func Parse(msg string) Command {
	text := strings.TrimSpace(msg)
	if !strings.HasPrefix(text, "!") {
		return Command{}
	}

	word, rest := text, ""
	if i := strings.IndexFunc(text, unicode.IsSpace); i >= 0 {
		word, rest = text[:i], text[i:]
	}
	kind, ok := commands[strings.ToLower(word)]
	if !ok {
		return Command{}
	}

	arg := strings.TrimSpace(rest)
	if arg == "" {
		return Command{}
	}
	return Command{Kind: kind, Arg: arg}
}

// ParseLine splits a "user: message" line as produced by chat log relays.
func ParseLine(line string) (user, msg string, ok bool) {
	user, msg, ok = strings.Cut(line, ":")
	if !ok {
		return "", "", false
	}
	user = strings.TrimSpace(user)
	msg = strings.TrimSpace(msg)
	if user == "" || msg == "" {
		return "", "", false
	}
	return user, msg, true
}
