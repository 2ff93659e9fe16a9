package utils

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

const maxCandidateNameRunes = 30

var disallowedNameChars = regexp.MustCompile(`[^가-힣a-zA-Z0-9 _-]`)

// CleanCandidateName strips characters outside Hangul, latin letters, digits,
// space, underscore and hyphen. Overlong or empty names become fallback.
func CleanCandidateName(name, fallback string) string {
	name = strings.TrimSpace(name)
	if name == "" || utf8.RuneCountInString(name) > maxCandidateNameRunes {
		return fallback
	}
	name = strings.TrimSpace(disallowedNameChars.ReplaceAllString(name, ""))
	if name == "" {
		return fallback
	}
	return name
}

func NormalizeJobRole(role, fallback string) string {
	role = strings.Join(strings.Fields(role), " ")
	if role == "" {
		return fallback
	}
	return role
}

// Truncate cuts s to at most n runes.
func Truncate(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}

// StripFences removes a surrounding markdown code fence, if any.
func StripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
