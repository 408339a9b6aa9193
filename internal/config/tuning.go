package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/alfredjeanlab/taskgraph/internal/assign"
	"github.com/alfredjeanlab/taskgraph/internal/workload"
)

// Tuning holds the engine's heuristic parameters. It is read from a TOML
// file; fields the file leaves out keep their defaults.
//
//	[workload]
//	capacity_hours = 40
//	target_utilization = 0.8
//
//	[assign]
//	top_n = 3
//	urgency_bonus = 10
//
//	[assign.affinity.complex]
//	senior = 5
type Tuning struct {
	Workload WorkloadTuning `toml:"workload"`
	Assign   AssignTuning   `toml:"assign"`
}

type WorkloadTuning struct {
	CapacityHours      float64 `toml:"capacity_hours"`
	TargetUtilization  float64 `toml:"target_utilization"`
	OverloadThreshold  float64 `toml:"overload_threshold"`
	UnderloadThreshold float64 `toml:"underload_threshold"`
}

type AssignTuning struct {
	TopN              int     `toml:"top_n"`
	UrgencyBonus      float64 `toml:"urgency_bonus"`
	UtilizationWeight float64 `toml:"utilization_weight"`
	EfficiencyWeight  float64 `toml:"efficiency_weight"`
	MinImprovement    float64 `toml:"min_improvement"`
	MaxMoves          int     `toml:"max_moves"`

	// complexity -> role -> bonus; replaces the built-in table per complexity.
	Affinity map[string]map[string]float64 `toml:"affinity"`
}

// DefaultTuning returns the built-in parameters.
func DefaultTuning() Tuning {
	t := Tuning{
		Workload: WorkloadTuning{
			CapacityHours:      workload.DefaultCapacityHours,
			TargetUtilization:  workload.DefaultTargetUtilization,
			OverloadThreshold:  workload.DefaultOverloadThreshold,
			UnderloadThreshold: workload.DefaultUnderloadThreshold,
		},
		Assign: AssignTuning{
			TopN:              assign.DefaultTopN,
			UrgencyBonus:      assign.DefaultUrgencyBonus,
			UtilizationWeight: assign.DefaultUtilizationWeight,
			EfficiencyWeight:  assign.DefaultEfficiencyWeight,
			MinImprovement:    assign.DefaultMinImprovement,
			MaxMoves:          assign.DefaultMaxMoves,
			Affinity:          map[string]map[string]float64{},
		},
	}
	for c, roles := range assign.DefaultAffinity() {
		t.Assign.Affinity[string(c)] = roles
	}
	return t
}

// LoadTuning reads a TOML tuning file over the defaults. An empty path
// returns the defaults.
func LoadTuning(path string) (Tuning, error) {
	t := DefaultTuning()
	if path == "" {
		return t, nil
	}

	var file Tuning
	md, err := toml.DecodeFile(path, &file)
	if err != nil {
		return Tuning{}, fmt.Errorf("reading tuning file %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return Tuning{}, fmt.Errorf("tuning file %s: unknown key %q", path, undecoded[0].String())
	}

	merge := func(section, key string, dst *float64, v float64) {
		if md.IsDefined(section, key) {
			*dst = v
		}
	}
	merge("workload", "capacity_hours", &t.Workload.CapacityHours, file.Workload.CapacityHours)
	merge("workload", "target_utilization", &t.Workload.TargetUtilization, file.Workload.TargetUtilization)
	merge("workload", "overload_threshold", &t.Workload.OverloadThreshold, file.Workload.OverloadThreshold)
	merge("workload", "underload_threshold", &t.Workload.UnderloadThreshold, file.Workload.UnderloadThreshold)
	merge("assign", "urgency_bonus", &t.Assign.UrgencyBonus, file.Assign.UrgencyBonus)
	merge("assign", "utilization_weight", &t.Assign.UtilizationWeight, file.Assign.UtilizationWeight)
	merge("assign", "efficiency_weight", &t.Assign.EfficiencyWeight, file.Assign.EfficiencyWeight)
	merge("assign", "min_improvement", &t.Assign.MinImprovement, file.Assign.MinImprovement)
	if md.IsDefined("assign", "top_n") {
		t.Assign.TopN = file.Assign.TopN
	}
	if md.IsDefined("assign", "max_moves") {
		t.Assign.MaxMoves = file.Assign.MaxMoves
	}
	for c, roles := range file.Assign.Affinity {
		t.Assign.Affinity[c] = roles
	}

	if err := t.Validate(); err != nil {
		return Tuning{}, fmt.Errorf("tuning file %s: %w", path, err)
	}
	return t, nil
}

// Validate checks that every parameter is in range.
func (t Tuning) Validate() error {
	var errs []error
	w, a := t.Workload, t.Assign
	if w.CapacityHours <= 0 {
		errs = append(errs, fmt.Errorf("workload.capacity_hours must be positive"))
	}
	if w.TargetUtilization <= 0 || w.TargetUtilization > 2 {
		errs = append(errs, fmt.Errorf("workload.target_utilization must be in (0, 2]"))
	}
	if w.UnderloadThreshold <= 0 || w.UnderloadThreshold >= w.OverloadThreshold {
		errs = append(errs, fmt.Errorf("workload.underload_threshold must be positive and below overload_threshold"))
	}
	if a.TopN < 1 {
		errs = append(errs, fmt.Errorf("assign.top_n must be at least 1"))
	}
	if a.MaxMoves < 1 {
		errs = append(errs, fmt.Errorf("assign.max_moves must be at least 1"))
	}
	if a.UrgencyBonus <= 0 || a.UtilizationWeight <= 0 || a.EfficiencyWeight <= 0 || a.MinImprovement <= 0 {
		errs = append(errs, fmt.Errorf("assign weights and bonuses must be positive"))
	}
	for c := range a.Affinity {
		switch assign.Complexity(c) {
		case assign.ComplexitySimple, assign.ComplexityModerate, assign.ComplexityComplex:
		default:
			errs = append(errs, fmt.Errorf("assign.affinity: unknown complexity %q", c))
		}
	}
	return errors.Join(errs...)
}

// WorkloadOptions converts the tuning into workload analysis options.
func (t Tuning) WorkloadOptions() workload.Options {
	return workload.Options{
		CapacityHoursPerWeek: t.Workload.CapacityHours,
		TargetUtilization:    t.Workload.TargetUtilization,
		OverloadThreshold:    t.Workload.OverloadThreshold,
		UnderloadThreshold:   t.Workload.UnderloadThreshold,
	}
}

// AssignOptions converts the tuning into recommender options.
func (t Tuning) AssignOptions() assign.Options {
	affinity := assign.Affinity{}
	for c, roles := range t.Assign.Affinity {
		bonuses := make(map[string]float64, len(roles))
		for role, bonus := range roles {
			bonuses[strings.ToLower(role)] = bonus
		}
		affinity[assign.Complexity(c)] = bonuses
	}
	return assign.Options{
		Affinity:          affinity,
		TopN:              t.Assign.TopN,
		UrgencyBonus:      t.Assign.UrgencyBonus,
		UtilizationWeight: t.Assign.UtilizationWeight,
		EfficiencyWeight:  t.Assign.EfficiencyWeight,
		MinImprovement:    t.Assign.MinImprovement,
		MaxMoves:          t.Assign.MaxMoves,
		Workload:          t.WorkloadOptions(),
	}
}
