package camera

import (
	"regexp"
	"strings"
)

var nonAlphanumeric = regexp.MustCompile(`[^a-z0-9]+`)

// Slug renders a camera's display name (or nickname) into the
// folder-safe form used in archive paths: lowercased, non-alphanumerics
// collapsed to a single "-", leading/trailing "-" trimmed.
func Slug(name string) string {
	lower := strings.ToLower(name)
	collapsed := nonAlphanumeric.ReplaceAllString(lower, "-")
	return strings.Trim(collapsed, "-")
}
