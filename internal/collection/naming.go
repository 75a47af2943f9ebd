package collection

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"strings"
)

// Vector-store collection names are restricted to [A-Za-z0-9_], must start
// with a letter and may not exceed maxNameLength characters.
const (
	maxNameLength = 100

	// truncatedPrefixLength leaves room for the separator and hash suffix when
	// an over-long name is shortened.
	truncatedPrefixLength = 90
	hashSuffixLength      = 8

	adminPrefix        = "admin_"
	conversationPrefix = "conversation_"
)

var invalidNameChars = regexp.MustCompile(`[^A-Za-z0-9_]`)

// Sanitize maps an arbitrary display name onto a valid backing collection
// name. The mapping is deterministic, so repeated calls with the same input
// always produce the same backing name.
func Sanitize(name string) string {
	s := invalidNameChars.ReplaceAllString(name, "_")

	if s == "" || !isLetter(s[0]) {
		s = "c_" + s
	}

	if len(s) > maxNameLength {
		// Keep a recognizable prefix and disambiguate with a short digest of
		// the full sanitized name, so distinct long names stay distinct.
		sum := sha256.Sum256([]byte(s))
		s = s[:truncatedPrefixLength] + "_" + hex.EncodeToString(sum[:])[:hashSuffixLength]
	}

	return s
}

// AdminBackingName derives the backing collection name for an admin-only
// registry entry. The prefix is applied before sanitization so the result
// follows the same character and length rules as any other name.
func AdminBackingName(displayName string) string {
	return Sanitize(adminPrefix + displayName)
}

// BackingName derives the backing collection name for a registry entry.
func BackingName(displayName string, adminOnly bool) string {
	if adminOnly {
		return AdminBackingName(displayName)
	}
	return Sanitize(displayName)
}

// ConversationCollectionName derives the per-conversation ephemeral
// collection name for user-uploaded files.
func ConversationCollectionName(conversationID string) string {
	return Sanitize(conversationPrefix + conversationID)
}

// HasAdminPrefix reports whether a backing name carries the admin prefix.
func HasAdminPrefix(name string) bool {
	return strings.HasPrefix(name, adminPrefix)
}

// StripAdminPrefix removes the admin prefix if present.
func StripAdminPrefix(name string) string {
	return strings.TrimPrefix(name, adminPrefix)
}

func isLetter(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}
