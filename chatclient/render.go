package chatclient

import (
	"fmt"
	"strings"
)

// Render formats a received line for display. Private messages are shown
// trimmed, lines attributed to selfID get a " (Me)" suffix, and anything
// else is shown unchanged.
//
// Parameters:
//   - line: A line from Lines
//   - selfID: This client's identity
//
// Returns:
//   - The text to print, without terminator
func Render(line string, selfID uint64) string {
	switch {
	case strings.Contains(line, "[Private]"):
		return strings.TrimSpace(line)
	case strings.Contains(line, fmt.Sprintf("Client %d:", selfID)):
		return strings.TrimSpace(line) + " (Me)"
	default:
		return line
	}
}
