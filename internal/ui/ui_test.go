package ui

import (
	"strings"
	"testing"
)

func withColor(t *testing.T, on bool) {
	t.Helper()
	prev := noColor
	noColor = !on
	t.Cleanup(func() { noColor = prev })
}

func TestRender_NoColor(t *testing.T) {
	withColor(t, false)
	for _, fn := range []func(string) string{RenderAccent, RenderMuted, RenderCommand, RenderCritical, RenderWarn, RenderOK} {
		if got := fn("x"); got != "x" {
			t.Errorf("got %q, want plain text", got)
		}
	}
	if got := RenderPath([]string{"A", "C", "D"}); got != "A → C → D" {
		t.Errorf("RenderPath = %q", got)
	}
	if got := RenderPath(nil); got != "(none)" {
		t.Errorf("RenderPath(nil) = %q", got)
	}
}

func TestRender_Color(t *testing.T) {
	withColor(t, true)
	got := RenderCritical("A")
	if got != "\x1b[38;5;203mA\x1b[0m" {
		t.Errorf("RenderCritical = %q", got)
	}
	if RenderAccent("") != "" {
		t.Error("empty strings should stay empty")
	}
	if s := RenderStatus("blocked"); !strings.Contains(s, "203m") {
		t.Errorf("blocked status = %q", s)
	}
	if s := RenderStatus("todo"); s != "todo" {
		t.Errorf("todo status should be plain, got %q", s)
	}
}

func TestShouldUseColor(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want bool
	}{
		{"NoColor", map[string]string{"NO_COLOR": "1", "CLICOLOR_FORCE": "1"}, false},
		{"Force", map[string]string{"NO_COLOR": "", "CLICOLOR_FORCE": "1"}, true},
		{"Disabled", map[string]string{"NO_COLOR": "", "CLICOLOR_FORCE": "", "CLICOLOR": "0"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			if got := ShouldUseColor(); got != tt.want {
				t.Errorf("ShouldUseColor() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		in   string
		n    int
		want string
	}{
		{"short", 10, "short"},
		{"exactly ten", 11, "exactly ten"},
		{"a longer title here", 10, "a longe..."},
		{"ünïcödé títle", 8, "ünïcö..."},
	}
	for _, tt := range tests {
		if got := Truncate(tt.in, tt.n); got != tt.want {
			t.Errorf("Truncate(%q, %d) = %q, want %q", tt.in, tt.n, got, tt.want)
		}
	}
}

func TestWidth_NotATerminal(t *testing.T) {
	// go test runs with stdout redirected.
	if got := Width(80); got <= 0 {
		t.Errorf("Width = %d", got)
	}
}
