package domain

import (
	"strconv"
	"strings"
)

// ThreadTitleLimit is the platform's maximum topic name length.
const ThreadTitleLimit = 128

// Profile is the subset of a sender's platform profile the relay caches.
type Profile struct {
	UserID       int64
	FirstName    string
	LastName     string
	Username     string
	LanguageCode string
	IsBot        bool
}

// FormatDisplayName derives a human-readable label: full name first, then
// the @handle, then a synthetic user_<id>.
func FormatDisplayName(p Profile) string {
	parts := make([]string, 0, 2)
	for _, part := range []string{p.FirstName, p.LastName} {
		if part = strings.TrimSpace(part); part != "" {
			parts = append(parts, part)
		}
	}
	if len(parts) > 0 {
		return strings.Join(parts, " ")
	}
	if handle := strings.TrimSpace(p.Username); handle != "" {
		return "@" + handle
	}
	return "user_" + strconv.FormatInt(p.UserID, 10)
}

// ThreadTitle clips a label to ThreadTitleLimit characters.
func ThreadTitle(label string) string {
	runes := []rune(label)
	if len(runes) <= ThreadTitleLimit {
		return label
	}
	return string(runes[:ThreadTitleLimit])
}
