package deps

import (
	"fmt"
	"runtime"
)

// Target identifies the code generation target. It decides whether flow
// dependences are computed on tagged accesses.
type Target string

const (
	TargetC      Target = "c"
	TargetCUDA   Target = "cuda"
	TargetOpenCL Target = "opencl"
	TargetHLS    Target = "hls"
)

// ParseTarget parses a target name.
func ParseTarget(s string) (Target, error) {
	switch t := Target(s); t {
	case TargetC, TargetCUDA, TargetOpenCL, TargetHLS:
		return t, nil
	case "":
		return TargetC, nil
	}
	return "", fmt.Errorf("unknown target %q (want c, cuda, opencl or hls)", s)
}

// RequiresTaggedFlow reports whether the code generator for t needs to know
// which reference carries each flow dependence. Only plain C output does
// without.
func (t Target) RequiresTaggedFlow() bool {
	return t != TargetC && t != ""
}

// Options configures ComputeDependences.
type Options struct {
	// LiveRangeReordering allows the scheduler to reorder live ranges,
	// which requires order and forced dependences.
	LiveRangeReordering bool

	// AutoSA enables the reuse extension (RAR and WAW dependences).
	AutoSA bool

	Target Target

	// RAR configures reuse vector selection.
	RAR RAROptions

	// Workers bounds the number of accesses analyzed concurrently for
	// RAR. Zero means GOMAXPROCS.
	Workers int
}

// RAROptions is the explicit configuration of the reuse heuristic.
type RAROptions struct {
	// Tiled disqualifies reuse vectors with a negative component.
	Tiled bool

	// Overrides selects a candidate by index for a reference, bypassing
	// the scoring heuristic.
	Overrides map[string]int
}

// Override returns the user-selected candidate index for ref, or -1.
func (o RAROptions) Override(ref string) int {
	if i, ok := o.Overrides[ref]; ok {
		return i
	}
	return -1
}

func (o Options) workers() int {
	if o.Workers > 0 {
		return o.Workers
	}
	return runtime.GOMAXPROCS(0)
}

// Canonical converts the options that influence results to plain values
// for content hashing. Workers is excluded.
func (o Options) Canonical() map[string]any {
	overrides := make(map[string]any, len(o.RAR.Overrides))
	for ref, i := range o.RAR.Overrides {
		overrides[ref] = int64(i)
	}
	target := o.Target
	if target == "" {
		target = TargetC
	}
	return map[string]any{
		"live_range_reordering": o.LiveRangeReordering,
		"autosa":                o.AutoSA,
		"target":                string(target),
		"rar_tiled":             o.RAR.Tiled,
		"rar_overrides":         overrides,
	}
}
