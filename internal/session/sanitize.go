package session

import (
	"regexp"
	"strings"
)

var (
	// customEmojiPattern matches Discord custom emoji markup, animated or
	// not, capturing the plain emoji name.
	customEmojiPattern = regexp.MustCompile(`<a?:(\w+):\d+>`)

	// urlPattern matches URL-like substrings, with or without a scheme.
	urlPattern = regexp.MustCompile(`(?:https?://)?[\w@:%._+~#=-]{1,256}\.[a-z]{2,6}\b[\w@:%._+~#?&/=-]*`)

	whitespacePattern = regexp.MustCompile(`\s+`)
)

// Sanitize prepares message content for speech synthesis: custom emoji markup
// is rewritten to the emoji's plain name, URL-like substrings are stripped,
// and whitespace is collapsed. Returns "" when nothing speakable remains.
func Sanitize(content string) string {
	s := customEmojiPattern.ReplaceAllString(content, "$1")
	s = urlPattern.ReplaceAllString(s, "")
	s = whitespacePattern.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}
