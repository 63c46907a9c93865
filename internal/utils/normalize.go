package utils

import "strings"

// ParseInputString trims surrounding whitespace from user input.
func ParseInputString(s string) string {
	return strings.TrimSpace(s)
}
