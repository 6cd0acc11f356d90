package engine

import (
	"strings"
	"unicode"
)

const (
	MaxParticipantName = 40
	MaxDisplayName     = 60
	MaxRawText         = 300
)

// NormalizeName is the identity key for a participant: leading '@' removed,
// all whitespace removed, lowercased.
func NormalizeName(name string) string {
	s := strings.TrimLeft(strings.TrimSpace(name), "@")
	s = strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
	return strings.ToLower(s)
}

// SanitizeName keeps letters, digits, spaces and . , _ - and caps the length.
func SanitizeName(name string, max int) string {
	s := strings.TrimLeft(strings.TrimSpace(name), "@")
	s = strings.Map(func(r rune) rune {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r):
			return r
		case r == ' ', r == '.', r == ',', r == '_', r == '-':
			return r
		case unicode.IsSpace(r):
			return ' '
		default:
			return -1
		}
	}, s)
	return strings.TrimSpace(Truncate(strings.TrimSpace(s), max))
}

// SafeText trims and caps free text such as tournament or display names.
func SafeText(s string, max int) string {
	return strings.TrimSpace(Truncate(strings.TrimSpace(s), max))
}

// Truncate cuts s to at most max runes.
func Truncate(s string, max int) string {
	if max <= 0 {
		return ""
	}
	n := 0
	for i := range s {
		if n == max {
			return s[:i]
		}
		n++
	}
	return s
}

// ClampInt bounds v to [lo, hi].
func ClampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
