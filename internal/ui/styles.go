// Package ui styles terminal output for the tg CLI.
package ui

import (
	"fmt"
	"strings"
)

// ANSI256 color codes matching the Ayu palette.
const (
	colorAccent   = 74  // blue
	colorCmd      = 250 // light gray
	colorMuted    = 245 // medium gray
	colorCritical = 203 // red
	colorWarn     = 214 // orange
	colorOK       = 114 // green
)

var noColor bool

func render(color int, s string) string {
	if noColor || s == "" {
		return s
	}
	return fmt.Sprintf("\x1b[38;5;%dm%s\x1b[0m", color, s)
}

// RenderAccent returns s in the accent (blue) color.
func RenderAccent(s string) string { return render(colorAccent, s) }

// RenderMuted returns s in the muted (gray) color.
func RenderMuted(s string) string { return render(colorMuted, s) }

// RenderCommand returns s styled as a command name (light gray).
func RenderCommand(s string) string { return render(colorCmd, s) }

// RenderCritical marks critical-path tasks and rejected edges.
func RenderCritical(s string) string { return render(colorCritical, s) }

// RenderWarn marks overloaded assignees and unestimated tasks.
func RenderWarn(s string) string { return render(colorWarn, s) }

// RenderOK marks healthy values.
func RenderOK(s string) string { return render(colorOK, s) }

// RenderStatus colors a task status.
func RenderStatus(status string) string {
	switch status {
	case "done":
		return RenderOK(status)
	case "blocked":
		return RenderCritical(status)
	case "in_progress", "review":
		return RenderAccent(status)
	case "archived":
		return RenderMuted(status)
	default:
		return status
	}
}

// RenderPath joins task ids with arrows, e.g. "A → C → D".
func RenderPath(ids []string) string {
	if len(ids) == 0 {
		return RenderMuted("(none)")
	}
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = RenderCritical(id)
	}
	return strings.Join(parts, RenderMuted(" → "))
}

// ForceNoColor disables color output globally.
func ForceNoColor() {
	noColor = true
}
