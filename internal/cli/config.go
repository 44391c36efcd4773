package cli

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/roach88/polydep/internal/deps"
)

// AnalysisFlags are the analysis flags shared by analyze and candidates.
type AnalysisFlags struct {
	Config   string
	Database string
	Reorder  bool
	AutoSA   bool
	Tiled    bool
	Target   string
	RARPicks []string // ref=index
	DCE      bool
	NoCache  bool
	Workers  int
}

// AnalysisConfig is the resolved configuration of an analysis run.
type AnalysisConfig struct {
	Options       deps.Options
	DCE           bool
	Cache         bool
	InstanceLimit int // zero keeps the engine default
	Database      string
}

// ConfigFile is the YAML options file given with --config.
//
//	target: hls
//	autosa: true
//	rar:
//	  tiled: true
//	  overrides: {r_x: 1}
//	dce: true
//	db: ./polydep.db
type ConfigFile struct {
	LiveRangeReordering bool          `yaml:"live_range_reordering"`
	AutoSA              bool          `yaml:"autosa"`
	Target              string        `yaml:"target"`
	RAR                 ConfigFileRAR `yaml:"rar"`
	DCE                 bool          `yaml:"dce"`
	Cache               *bool         `yaml:"cache"`
	Workers             int           `yaml:"workers"`
	InstanceLimit       int           `yaml:"instance_limit"`
	Database            string        `yaml:"db"`
}

// ConfigFileRAR configures reuse vector selection in a ConfigFile.
type ConfigFileRAR struct {
	Tiled     bool           `yaml:"tiled"`
	Overrides map[string]int `yaml:"overrides"`
}

// LoadConfigFile reads an options file. Unknown keys are rejected.
func LoadConfigFile(path string) (*ConfigFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg ConfigFile
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return &cfg, nil
}

// addFlags registers the analysis flags on cmd.
func (f *AnalysisFlags) addFlags(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.StringVar(&f.Config, "config", "", "YAML options file; flags override its values")
	flags.StringVar(&f.Database, "db", "", "record analyses in this SQLite database")
	flags.BoolVar(&f.Reorder, "reorder", false, "compute order and forced dependences for live-range reordering")
	flags.BoolVar(&f.AutoSA, "autosa", false, "compute read-after-read and write-after-write dependences")
	flags.BoolVar(&f.Tiled, "tiled", false, "disqualify reuse vectors with negative components")
	flags.StringVar(&f.Target, "target", "c", "code generation target (c|cuda|opencl|hls)")
	flags.StringArrayVar(&f.RARPicks, "rar-pick", nil, "choose a reuse candidate: ref=index (repeatable)")
	flags.BoolVar(&f.DCE, "dce", false, "eliminate dead statement instances")
	flags.BoolVar(&f.NoCache, "no-cache", false, "always recompute, even if the database has the analysis")
	flags.IntVar(&f.Workers, "workers", 0, "concurrent reuse analyses (0 = GOMAXPROCS)")
}

// Resolve merges the options file with the flags. A flag given on the
// command line overrides the file; --rar-pick overrides per reference.
func (f *AnalysisFlags) Resolve(cmd *cobra.Command) (AnalysisConfig, error) {
	file := &ConfigFile{}
	if f.Config != "" {
		var err error
		if file, err = LoadConfigFile(f.Config); err != nil {
			return AnalysisConfig{}, err
		}
	}

	changed := cmd.Flags().Changed
	pick := func(name string, flag, fromFile bool) bool {
		if changed(name) {
			return flag
		}
		return fromFile
	}

	targetName := file.Target
	if changed("target") || targetName == "" {
		targetName = f.Target
	}
	target, err := deps.ParseTarget(targetName)
	if err != nil {
		return AnalysisConfig{}, err
	}

	overrides := make(map[string]int, len(file.RAR.Overrides))
	for ref, i := range file.RAR.Overrides {
		overrides[ref] = i
	}
	picks, err := ParseRARPicks(f.RARPicks)
	if err != nil {
		return AnalysisConfig{}, err
	}
	for ref, i := range picks {
		overrides[ref] = i
	}

	workers := file.Workers
	if changed("workers") {
		workers = f.Workers
	}

	cache := file.Cache == nil || *file.Cache
	if changed("no-cache") {
		cache = !f.NoCache
	}

	database := file.Database
	if changed("db") {
		database = f.Database
	}

	return AnalysisConfig{
		Options: deps.Options{
			LiveRangeReordering: pick("reorder", f.Reorder, file.LiveRangeReordering),
			AutoSA:              pick("autosa", f.AutoSA, file.AutoSA),
			Target:              target,
			RAR: deps.RAROptions{
				Tiled:     pick("tiled", f.Tiled, file.RAR.Tiled),
				Overrides: overrides,
			},
			Workers: workers,
		},
		DCE:           pick("dce", f.DCE, file.DCE),
		Cache:         cache,
		InstanceLimit: file.InstanceLimit,
		Database:      database,
	}, nil
}

// ParseRARPicks parses ref=index pairs. A later pick for the same
// reference wins.
func ParseRARPicks(picks []string) (map[string]int, error) {
	out := make(map[string]int, len(picks))
	for _, p := range picks {
		ref, idx, ok := strings.Cut(p, "=")
		ref = strings.TrimSpace(ref)
		if !ok || ref == "" {
			return nil, fmt.Errorf("invalid --rar-pick %q: want ref=index", p)
		}
		i, err := strconv.Atoi(strings.TrimSpace(idx))
		if err != nil || i < 0 {
			return nil, fmt.Errorf("invalid --rar-pick %q: index must be a non-negative integer", p)
		}
		out[ref] = i
	}
	return out, nil
}
