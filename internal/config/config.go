// Package config holds infoflow's small ambient configuration surface:
// the analysis flags spec.md §6 names, loaded from an optional YAML
// project file, in the same plain package-level style
// funxy/internal/config/constants.go uses rather than a framework.
package config

import (
	"os"

	"gopkg.in/yaml.v3"
)

// Flags carries the four analysis-wide knobs spec.md §6 names.
type Flags struct {
	// CollapseExternalContext analyzes every call to a function with no
	// body (an external symbol) in the default context rather than the
	// calling function's context.
	CollapseExternalContext bool `yaml:"collapse_external_context"`

	// CollapseIndirectContext analyzes every indirect call's candidate
	// callees in the default context rather than a call-site context.
	CollapseIndirectContext bool `yaml:"collapse_indirect_context"`

	// DropAtSinks routes a source channel that is itself a recognized
	// global sink into the separate "*-sinks" constraint kind instead of
	// the ordinary default/implicit kind.
	DropAtSinks bool `yaml:"drop_at_sinks"`

	// ParallelWorkers bounds the worker pool internal/solver's bulk
	// parallel solve uses. Zero means "let the solver pick" (its own
	// default, solver.DefaultParallelWorkers, which is 16).
	ParallelWorkers int `yaml:"parallel_workers"`
}

// DefaultFlags returns the conservative default: no collapsing, sinks not
// dropped, solver picks its own worker count.
func DefaultFlags() Flags {
	return Flags{
		CollapseExternalContext: false,
		CollapseIndirectContext: false,
		DropAtSinks:             false,
		ParallelWorkers:         0,
	}
}

// LoadFlagsYAML reads an infoflow.yaml project file at path. A missing file
// is not an error: it returns DefaultFlags(). A present-but-malformed file
// is.
func LoadFlagsYAML(path string) (Flags, error) {
	flags := DefaultFlags()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return flags, nil
		}
		return flags, err
	}

	if err := yaml.Unmarshal(data, &flags); err != nil {
		return Flags{}, err
	}
	return flags, nil
}
