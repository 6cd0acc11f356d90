package engine

import (
	"strconv"
	"strings"
	"unicode"

	"github.com/dom/stream-games/internal/domain"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const (
	MaxTeams        = 20
	MaxTeamNameLen  = 40
	minUsableTeams  = 2
	teamIndexPrefix = "#"
)

// PlaceholderTeams is the roster used when fewer than two usable names are given.
func PlaceholderTeams() []domain.Team {
	return []domain.Team{
		{Key: "timea", Name: "Time A"},
		{Key: "timeb", Name: "Time B"},
		{Key: "timec", Name: "Time C"},
	}
}

func foldDiacritics(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

// NormalizeTeamKey derives the stable key for a team name: diacritics
// stripped, lowercased, and reduced to [a-z0-9_-]. Returns "" when nothing
// usable is left.
func NormalizeTeamKey(name string) string {
	s := strings.ToLower(foldDiacritics(name))
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_', r == '-':
			b.WriteRune(r)
		}
	}
	return b.String()
}

// BuildTeams turns operator-supplied names into a phase roster. Names are
// capped at MaxTeamNameLen and at most MaxTeams are kept. Key collisions get
// a numeric suffix starting at 2.
func BuildTeams(names []string) []domain.Team {
	teams := make([]domain.Team, 0, len(names))
	used := make(map[string]struct{}, len(names))

	for _, raw := range names {
		if len(teams) == MaxTeams {
			break
		}
		name := SafeText(raw, MaxTeamNameLen)
		if name == "" {
			continue
		}
		key := NormalizeTeamKey(name)
		if key == "" {
			continue
		}
		if _, taken := used[key]; taken {
			i := 2
			for {
				candidate := key + strconv.Itoa(i)
				if _, taken := used[candidate]; !taken {
					key = candidate
					break
				}
				i++
			}
		}
		used[key] = struct{}{}
		teams = append(teams, domain.Team{Key: key, Name: name})
	}

	if len(teams) < minUsableTeams {
		return PlaceholderTeams()
	}
	return teams
}

// ResolveTeam maps free-text input to a team of the roster. A bare number
// (optionally prefixed by '#') is a 1-based index; otherwise the input is
// matched against team keys first and normalized team names second.
func ResolveTeam(teams []domain.Team, input string) (domain.Team, bool) {
	in := strings.TrimSpace(input)
	if in == "" {
		return domain.Team{}, false
	}

	if n, err := strconv.Atoi(strings.TrimPrefix(in, teamIndexPrefix)); err == nil {
		if n >= 1 && n <= len(teams) {
			return teams[n-1], true
		}
	}

	key := NormalizeTeamKey(in)
	if key == "" {
		return domain.Team{}, false
	}
	for _, t := range teams {
		if t.Key == key {
			return t, true
		}
	}
	for _, t := range teams {
		if NormalizeTeamKey(t.Name) == key {
			return t, true
		}
	}
	return domain.Team{}, false
}

// TeamPreview joins up to max team names for chat messages, noting how many
// were left out.
func TeamPreview(teams []domain.Team, max int) string {
	names := make([]string, 0, len(teams))
	for _, t := range teams {
		if n := strings.TrimSpace(t.Name); n != "" {
			names = append(names, n)
		}
	}
	if len(names) <= max {
		return strings.Join(names, " | ")
	}
	return strings.Join(names[:max], " | ") + " (+" + strconv.Itoa(len(names)-max) + ")"
}
