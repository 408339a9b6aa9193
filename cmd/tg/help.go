package main

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/taskgraph/internal/ui"
)

// flagTypes are the pflag type names cobra prints after a flag name.
var flagTypes = []string{"string", "int", "float64", "duration", "stringSlice", "stringArray"}

// colorizedHelpFunc returns a cobra help function that styles the default
// help text when the terminal supports color.
func colorizedHelpFunc() func(*cobra.Command, []string) {
	return func(cmd *cobra.Command, args []string) {
		out := cmd.OutOrStdout()
		if noColor || !ui.ShouldUseColor() {
			_ = cmd.Usage()
			return
		}

		var buf bytes.Buffer
		cmd.SetOut(&buf)
		_ = cmd.Usage()
		cmd.SetOut(out)
		fmt.Fprint(out, colorizeHelpOutput(buf.String()))
	}
}

// colorizeHelpOutput styles section headers, command names in command
// listings, flag types and "(default ...)" annotations.
func colorizeHelpOutput(s string) string {
	lines := strings.Split(s, "\n")
	inCommands := false
	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		switch {
		case trimmed == "":
			continue
		case line[0] != ' ' && strings.HasSuffix(trimmed, ":"):
			inCommands = listsCommands(trimmed)
			if trimmed != "Usage:" {
				lines[i] = ui.RenderAccent(trimmed)
			}
		case inCommands && strings.HasPrefix(line, "  ") && !strings.HasPrefix(line, "   "):
			name, rest, ok := strings.Cut(line[2:], " ")
			if ok {
				lines[i] = "  " + ui.RenderCommand(name) + " " + rest
			}
		case strings.HasPrefix(trimmed, "-"):
			lines[i] = colorizeFlagLine(line)
		}
	}
	return strings.Join(lines, "\n")
}

// listsCommands reports whether the section under header lists
// subcommands: "Available Commands:", "Additional Commands:" and group
// titles such as "Tasks:".
func listsCommands(header string) bool {
	if strings.Contains(header, "Commands") {
		return true
	}
	switch header {
	case "Usage:", "Aliases:", "Examples:", "Flags:", "Global Flags:":
		return false
	}
	return !strings.Contains(header, "Help Topics")
}

func colorizeFlagLine(line string) string {
	for _, typ := range flagTypes {
		if idx := strings.Index(line, " "+typ+" "); idx >= 0 {
			line = line[:idx+1] + ui.RenderMuted(typ) + line[idx+1+len(typ):]
			break
		}
	}
	if start := strings.Index(line, "(default "); start >= 0 {
		if end := strings.Index(line[start:], ")"); end >= 0 {
			end += start + 1
			line = line[:start] + ui.RenderMuted(line[start:end]) + line[end:]
		}
	}
	return line
}
