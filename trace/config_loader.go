package trace

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// SiteConfig names one site and the floors to process within it.
type SiteConfig struct {
	Name   string   `yaml:"name"`
	Floors []string `yaml:"floors"`
}

// PipelineConfig holds the tunables that become per-run Options. Zero values
// fall back to the defaults from DefaultOptions.
type PipelineConfig struct {
	SnapMeters         float64 `yaml:"snap_meters,omitempty"`
	AccuracyMin        int     `yaml:"accuracy_min,omitempty"`
	PreferUncalibrated bool    `yaml:"prefer_uncalibrated,omitempty"`
	Debias             bool    `yaml:"debias,omitempty"`
	Mode               string  `yaml:"mode,omitempty"`
	NearestTolMS       int64   `yaml:"nearest_tol_ms,omitempty"`
	Component          string  `yaml:"component,omitempty"`
	ClipLowPct         float64 `yaml:"clip_low_pct,omitempty"`
	ClipHighPct        float64 `yaml:"clip_high_pct,omitempty"`
	MaxHeatPoints      int     `yaml:"max_heat_points,omitempty"`
	FlipX              bool    `yaml:"flip_x,omitempty"`
	FlipY              bool    `yaml:"flip_y,omitempty"`
	ForceIsotropic     bool    `yaml:"force_isotropic,omitempty"`
	NameFilter         string  `yaml:"name_filter,omitempty"`
	MaxFilesPerFloor   int     `yaml:"max_files_per_floor,omitempty"`
	SimplifyTolerance  float64 `yaml:"simplify_tolerance,omitempty"`
	PointSampleEvery   int     `yaml:"point_sample_every,omitempty"`
}

// Config is the unified YAML configuration for a batch run.
type Config struct {
	// RepoBase is the GitHub repository URL (blob or tree form) that the
	// per-floor data directories live under.
	RepoBase string `yaml:"repo_base"`

	// LocalData, when set, reads floor data from this directory instead of
	// fetching from RepoBase.
	LocalData string `yaml:"local_data,omitempty"`

	CacheRoot string `yaml:"cache_root,omitempty"`
	OutputDir string `yaml:"output_dir,omitempty"`

	Sites    []SiteConfig   `yaml:"sites"`
	Pipeline PipelineConfig `yaml:"pipeline,omitempty"`
}

// LoadConfig loads the unified configuration from a YAML file
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config file not found: %s", path)
		}
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("parsing config YAML: %w", err)
	}

	// Validate required fields
	if config.RepoBase == "" && config.LocalData == "" {
		return nil, fmt.Errorf("either repo_base or local_data is required")
	}
	if len(config.Sites) == 0 {
		return nil, fmt.Errorf("at least one site must be defined")
	}

	// Validate site configs
	for i, sc := range config.Sites {
		if sc.Name == "" {
			return nil, fmt.Errorf("sites[%d].name is required", i)
		}
		if len(sc.Floors) == 0 {
			return nil, fmt.Errorf("sites[%d].floors is required for %s", i, sc.Name)
		}
	}

	if err := validatePipeline(config.Pipeline); err != nil {
		return nil, err
	}

	if config.CacheRoot == "" {
		config.CacheRoot = "cache"
	}
	if config.OutputDir == "" {
		config.OutputDir = "out"
	}
	return &config, nil
}

func validatePipeline(pc PipelineConfig) error {
	switch InterpolationMode(pc.Mode) {
	case "", ModeLinear, ModeHold, ModeSkip:
	default:
		return fmt.Errorf("pipeline.mode: unknown mode %q", pc.Mode)
	}
	switch FieldComponent(pc.Component) {
	case "", ComponentMagnitude, ComponentX, ComponentY, ComponentZ:
	default:
		return fmt.Errorf("pipeline.component: unknown component %q", pc.Component)
	}
	if pc.ClipLowPct < 0 || pc.ClipHighPct > 100 ||
		(pc.ClipHighPct != 0 && pc.ClipLowPct >= pc.ClipHighPct) {
		return fmt.Errorf("pipeline.clip percentiles: need 0 <= low < high <= 100")
	}
	return nil
}

// Options converts the YAML tunables into run Options, filling gaps with
// the defaults.
func (c *Config) Options() Options {
	opts := DefaultOptions()
	pc := c.Pipeline

	if pc.SnapMeters > 0 {
		opts.SnapMeters = pc.SnapMeters
	}
	if pc.AccuracyMin > 0 {
		opts.AccuracyMin = pc.AccuracyMin
	}
	opts.PreferUncalibrated = pc.PreferUncalibrated
	opts.Debias = pc.Debias
	if pc.Mode != "" {
		opts.Mode = InterpolationMode(pc.Mode)
	}
	if pc.NearestTolMS > 0 {
		opts.NearestTolMS = pc.NearestTolMS
	}
	if pc.Component != "" {
		opts.Component = FieldComponent(pc.Component)
	}
	if pc.ClipHighPct > 0 {
		opts.ClipLowPct = pc.ClipLowPct
		opts.ClipHighPct = pc.ClipHighPct
	}
	if pc.MaxHeatPoints > 0 {
		opts.MaxHeatPoints = pc.MaxHeatPoints
	}
	opts.FlipX = pc.FlipX
	opts.FlipY = pc.FlipY
	opts.ForceIsotropic = pc.ForceIsotropic
	opts.NameFilter = pc.NameFilter
	if pc.MaxFilesPerFloor > 0 {
		opts.MaxFilesPerFloor = pc.MaxFilesPerFloor
	}
	if pc.SimplifyTolerance > 0 {
		opts.SimplifyTolerance = pc.SimplifyTolerance
	}
	if pc.PointSampleEvery > 0 {
		opts.PointSampleEvery = pc.PointSampleEvery
	}
	return opts
}

// SaveConfig saves the configuration to a YAML file
func SaveConfig(path string, config *Config) error {
	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("marshaling config YAML: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	return nil
}
