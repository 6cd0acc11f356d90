// Package announce sends short status messages to the broadcaster's chat.
package announce

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/dom/stream-games/internal/domain"
	"github.com/dom/stream-games/internal/engine"
)

const (
	// MaxMessageLen is the longest single chat message sent.
	MaxMessageLen = 430
	// MaxParts caps how many messages one announcement may span.
	MaxParts = 5

	maxWinnerTags = 25
	previewTeams  = 8
)

// Announcer delivers a message to the chat channel. Implementations split
// long text themselves and must not block the caller for long.
type Announcer interface {
	Announce(ctx context.Context, text string) error
	// Check reports whether the sink is reachable.
	Check(ctx context.Context) error
	Close() error
}

// Split breaks text on spaces into parts no longer than max runes, keeping
// at most MaxParts. Words longer than max are cut.
func Split(text string, max int) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if utf8.RuneCountInString(text) <= max {
		return []string{text}
	}

	var parts []string
	cur := ""
	for _, word := range strings.Fields(text) {
		for utf8.RuneCountInString(word) > max {
			if cur != "" {
				parts = append(parts, cur)
				cur = ""
			}
			parts = append(parts, engine.Truncate(word, max))
			word = string([]rune(word)[max:])
		}
		next := word
		if cur != "" {
			next = cur + " " + word
		}
		if utf8.RuneCountInString(next) > max {
			parts = append(parts, cur)
			cur = word
		} else {
			cur = next
		}
	}
	if cur != "" {
		parts = append(parts, cur)
	}
	if len(parts) > MaxParts {
		parts = parts[:MaxParts]
	}
	return parts
}

func RoundOpened() string {
	return "🔔 PALPITE ABERTO! Digite: !palpite 230,50"
}

func RoundClosed() string {
	return "⛔ PALPITE FECHADO!"
}

func PhaseOpened(tournament string, phase int, teams []domain.Team) string {
	msg := fmt.Sprintf("🏆 %s (fase %d aberta)", tournament, phase)
	if preview := engine.TeamPreview(teams, previewTeams); preview != "" {
		msg += " • Times: " + preview
	}
	return msg + " • Digite: !time <nome do time>"
}

func PhaseClosed(tournament string, phase int) string {
	return fmt.Sprintf("🏆 %s (fase %d fechada) • Entradas fechadas.", tournament, phase)
}

func PhaseDecided(tournament string, phase int, winner string) string {
	return fmt.Sprintf("🏆 %s (fase %d decidida) • Vencedor: %s", tournament, phase, winner)
}

func TournamentFinished(tournament string, winners []string) string {
	msg := fmt.Sprintf("🏆 %s FINALIZADO!", tournament)
	if len(winners) == 0 {
		return msg
	}
	if len(winners) > maxWinnerTags {
		winners = winners[:maxWinnerTags]
	}
	tags := make([]string, len(winners))
	for i, w := range winners {
		tags[i] = "@" + w
	}
	return msg + " • Ganhadores: " + strings.Join(tags, " ")
}
