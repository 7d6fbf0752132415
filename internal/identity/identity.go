// Package identity generates conversation identifiers.
package identity

import (
	"math/rand/v2"
	"regexp"
)

const (
	// ChatIDLength is the number of symbols in a generated chat ID.
	ChatIDLength = 16

	chatIDAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
)

var chatIDPattern = regexp.MustCompile(`^[A-Za-z0-9]{16}$`)

// NewChatID returns a random 16-symbol alphanumeric identifier.
// Uniqueness is not checked; collisions are left to the store.
func NewChatID() string {
	buf := make([]byte, ChatIDLength)
	for i := range buf {
		buf[i] = chatIDAlphabet[rand.IntN(len(chatIDAlphabet))]
	}
	return string(buf)
}

// IsValidChatID reports whether id has the shape of a generated chat ID.
func IsValidChatID(id string) bool {
	return chatIDPattern.MatchString(id)
}
