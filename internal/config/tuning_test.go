package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/alfredjeanlab/taskgraph/internal/assign"
)

func writeTuning(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tuning.toml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadTuning_Defaults(t *testing.T) {
	tn, err := LoadTuning("")
	if err != nil {
		t.Fatal(err)
	}
	if err := tn.Validate(); err != nil {
		t.Fatalf("defaults invalid: %v", err)
	}
	opts := tn.AssignOptions()
	if opts.TopN != assign.DefaultTopN || opts.UrgencyBonus != assign.DefaultUrgencyBonus {
		t.Errorf("assign options = %+v", opts)
	}
	if opts.Affinity.Bonus(assign.ComplexityComplex, "Senior") != 5 {
		t.Error("default affinity should carry over")
	}
	if w := tn.WorkloadOptions(); w.CapacityHoursPerWeek != 40 || w.TargetUtilization != 0.8 {
		t.Errorf("workload options = %+v", w)
	}
}

func TestLoadTuning_Overrides(t *testing.T) {
	path := writeTuning(t, `
[workload]
capacity_hours = 32.0

[assign]
top_n = 5
urgency_bonus = 15.0

[assign.affinity.simple]
Intern = 8.0
`)
	tn, err := LoadTuning(path)
	if err != nil {
		t.Fatalf("LoadTuning: %v", err)
	}
	if tn.Workload.CapacityHours != 32 {
		t.Errorf("CapacityHours = %g", tn.Workload.CapacityHours)
	}
	if tn.Workload.TargetUtilization != 0.8 {
		t.Errorf("unset field should keep default, got %g", tn.Workload.TargetUtilization)
	}
	if tn.Assign.TopN != 5 || tn.Assign.UrgencyBonus != 15 || tn.Assign.MaxMoves != assign.DefaultMaxMoves {
		t.Errorf("assign = %+v", tn.Assign)
	}

	aff := tn.AssignOptions().Affinity
	if aff.Bonus(assign.ComplexitySimple, "intern") != 8 {
		t.Error("file affinity should be used, matched case-insensitively")
	}
	if aff.Bonus(assign.ComplexitySimple, "junior") != 0 {
		t.Error("file affinity replaces the built-in table for that complexity")
	}
	if aff.Bonus(assign.ComplexityComplex, "lead") != 5 {
		t.Error("other complexities keep the built-in table")
	}
}

func TestLoadTuning_Errors(t *testing.T) {
	for _, tc := range []struct {
		name string
		body string
		want string
	}{
		{"UnknownKey", "[workload]\ncapacity = 30.0\n", "unknown key"},
		{"BadTarget", "[workload]\ntarget_utilization = 3.0\n", "target_utilization"},
		{"Thresholds", "[workload]\nunderload_threshold = 1.5\n", "underload_threshold"},
		{"TopN", "[assign]\ntop_n = 0\n", "top_n"},
		{"Complexity", "[assign.affinity.epic]\nsenior = 1.0\n", "unknown complexity"},
		{"Syntax", "[workload\n", "reading tuning file"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			_, err := LoadTuning(writeTuning(t, tc.body))
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Errorf("error = %v, want mention of %q", err, tc.want)
			}
		})
	}

	if _, err := LoadTuning(filepath.Join(t.TempDir(), "missing.toml")); err == nil {
		t.Error("expected error for missing file")
	}
}
