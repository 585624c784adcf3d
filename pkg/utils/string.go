package utils

// Truncate shortens s to maxLen bytes, appending an ellipsis when cut.
// Used for short-hash display in CLI output.
func Truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
