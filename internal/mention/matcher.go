package mention

import "strings"

// Token returns the literal marker Slack embeds in message text when a user
// is mentioned.
func Token(userID string) string {
	return "<@" + userID + ">"
}

// Matches reports whether text contains a mention of userID. The match is a
// case-sensitive literal containment test; empty text never matches.
func Matches(text, userID string) bool {
	if text == "" || strings.TrimSpace(userID) == "" {
		return false
	}
	return strings.Contains(text, Token(userID))
}
