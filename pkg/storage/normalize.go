package storage

import "strings"

// NormalizeCategory trims a category label and collapses inner whitespace.
// Matching on the normalized label stays case-sensitive.
func NormalizeCategory(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// NormalizeEmail is the form under which emails are stored and looked up.
func NormalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
