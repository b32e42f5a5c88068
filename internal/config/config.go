// Package config loads starcat settings from .starcat.yaml, STARCAT_* env
// vars and CLI flags through viper.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/signalsfoundry/starcat/core"
	"github.com/signalsfoundry/starcat/model"
	"github.com/signalsfoundry/starcat/units"
)

// EnvPrefix is the prefix of environment overrides, e.g.
// STARCAT_NEIGHBORS_RADIUS.
const EnvPrefix = "STARCAT"

// TableConfig locates a catalog file. An empty Format is inferred from the
// file extension.
type TableConfig struct {
	Path   string `mapstructure:"path"`
	Format string `mapstructure:"format"`
}

// UnitOverride attaches a unit to a column the input file leaves unitless.
type UnitOverride struct {
	Column string `mapstructure:"column"`
	Unit   string `mapstructure:"unit"`
}

// DistanceConfig selects and parameterises the distance strategy.
type DistanceConfig struct {
	Enabled        bool    `mapstructure:"enabled"`
	Method         string  `mapstructure:"method"`
	ParallaxColumn string  `mapstructure:"parallax_column"`
	DistanceColumn string  `mapstructure:"distance_column"`
	TeffColumn     string  `mapstructure:"teff_column"`
	RadiusColumn   string  `mapstructure:"radius_column"`
	AppMagColumn   string  `mapstructure:"appmag_column"`
	RedshiftColumn string  `mapstructure:"redshift_column"`
	H0             float64 `mapstructure:"h0"`
	Om0            float64 `mapstructure:"om0"`
}

// FrameConfig names the input frame and its columns.
type FrameConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	Frame          string `mapstructure:"frame"`
	Distance       string `mapstructure:"distance_column"`
	RA             string `mapstructure:"ra_column"`
	Dec            string `mapstructure:"dec_column"`
	GLon           string `mapstructure:"glon_column"`
	GLat           string `mapstructure:"glat_column"`
	PMRA           string `mapstructure:"pmra_column"`
	PMDec          string `mapstructure:"pmdec_column"`
	PMGLon         string `mapstructure:"pmglon_column"`
	PMGLat         string `mapstructure:"pmglat_column"`
	RadialVelocity string `mapstructure:"radial_velocity_column"`
}

// NeighborsConfig controls neighbor counting.
type NeighborsConfig struct {
	Enabled  bool    `mapstructure:"enabled"`
	Radius   float64 `mapstructure:"radius"`
	Strategy string  `mapstructure:"strategy"`
	Workers  int     `mapstructure:"workers"`
}

// PhotometryConfig controls magnitude and luminosity derivation.
type PhotometryConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	AppMagColumn   string `mapstructure:"appmag_column"`
	ColorColumn    string `mapstructure:"color_column"`
	DistanceColumn string `mapstructure:"distance_column"`
	Luminosity     string `mapstructure:"luminosity"`
}

// CrossmatchConfig points at the Bailer-Jones archive mirror. With Local
// set, the estimates are read from columns the catalog already carries and
// the mirror is not opened.
type CrossmatchConfig struct {
	Release  string `mapstructure:"release"`
	Database string `mapstructure:"database"`
	SourceID string `mapstructure:"source_id"`
	Motion   bool   `mapstructure:"motion"`
	Local    bool   `mapstructure:"local"`
}

// LogConfig mirrors logging.Config.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// TracingConfig mirrors observability.TracingConfig.
type TracingConfig struct {
	Enabled     bool    `mapstructure:"enabled"`
	Exporter    string  `mapstructure:"exporter"`
	Endpoint    string  `mapstructure:"endpoint"`
	ServiceName string  `mapstructure:"service_name"`
	SampleRatio float64 `mapstructure:"sample_ratio"`
}

// Config holds all runtime configuration for a starcat run.
type Config struct {
	Input       TableConfig      `mapstructure:"input"`
	Output      TableConfig      `mapstructure:"output"`
	Units       []UnitOverride   `mapstructure:"units"`
	Distance    DistanceConfig   `mapstructure:"distance"`
	Frame       FrameConfig      `mapstructure:"frame"`
	Neighbors   NeighborsConfig  `mapstructure:"neighbors"`
	Photometry  PhotometryConfig `mapstructure:"photometry"`
	Crossmatch  CrossmatchConfig `mapstructure:"crossmatch"`
	Log         LogConfig        `mapstructure:"log"`
	MetricsAddr string           `mapstructure:"metrics_addr"`
	Tracing     TracingConfig    `mapstructure:"tracing"`
}

// SetDefaults registers every default with viper.
func SetDefaults() {
	frame := core.DefaultFrameOptions()
	dist := core.DefaultDistanceOptions()
	phot := core.DefaultPhotometry()
	cosmo := core.Planck18()

	viper.SetDefault("input.format", "")
	viper.SetDefault("output.format", "")

	viper.SetDefault("distance.enabled", true)
	viper.SetDefault("distance.method", "parallax")
	viper.SetDefault("distance.parallax_column", dist.ParallaxColumn)
	viper.SetDefault("distance.distance_column", dist.DistanceColumn)
	viper.SetDefault("distance.teff_column", "teff")
	viper.SetDefault("distance.radius_column", "radius")
	viper.SetDefault("distance.appmag_column", phot.AppMagColumn)
	viper.SetDefault("distance.redshift_column", "z")
	viper.SetDefault("distance.h0", cosmo.H0)
	viper.SetDefault("distance.om0", cosmo.Om0)

	viper.SetDefault("frame.enabled", true)
	viper.SetDefault("frame.frame", "icrs")
	viper.SetDefault("frame.distance_column", frame.Distance)
	viper.SetDefault("frame.ra_column", frame.RA)
	viper.SetDefault("frame.dec_column", frame.Dec)
	viper.SetDefault("frame.glon_column", frame.GLon)
	viper.SetDefault("frame.glat_column", frame.GLat)
	viper.SetDefault("frame.pmra_column", frame.PMRA)
	viper.SetDefault("frame.pmdec_column", frame.PMDec)
	viper.SetDefault("frame.pmglon_column", frame.PMGLon)
	viper.SetDefault("frame.pmglat_column", frame.PMGLat)
	viper.SetDefault("frame.radial_velocity_column", frame.RadialVelocity)

	viper.SetDefault("neighbors.enabled", true)
	viper.SetDefault("neighbors.radius", core.DefaultNeighborRadius)
	viper.SetDefault("neighbors.strategy", core.NeighborsIndexed.String())
	viper.SetDefault("neighbors.workers", 0)

	viper.SetDefault("photometry.enabled", false)
	viper.SetDefault("photometry.appmag_column", phot.AppMagColumn)
	viper.SetDefault("photometry.color_column", phot.ColorColumn)
	viper.SetDefault("photometry.distance_column", phot.DistanceColumn)
	viper.SetDefault("photometry.luminosity", core.KeepNonPositive.String())

	viper.SetDefault("crossmatch.release", "DR3")
	viper.SetDefault("crossmatch.database", "gaia.db")
	viper.SetDefault("crossmatch.source_id", "source_id")
	viper.SetDefault("crossmatch.motion", false)
	viper.SetDefault("crossmatch.local", false)

	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.format", "text")
	viper.SetDefault("metrics_addr", "")

	viper.SetDefault("tracing.enabled", false)
	viper.SetDefault("tracing.exporter", "stdout")
	viper.SetDefault("tracing.endpoint", "")
	viper.SetDefault("tracing.service_name", "starcat")
	viper.SetDefault("tracing.sample_ratio", 1.0)
}

// BindEnv maps STARCAT_SECTION_KEY variables onto section.key.
func BindEnv() {
	viper.SetEnvPrefix(EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
}

// Load reads configuration from viper, applying built-in defaults for any
// values not set by config file, environment, or flags.
func Load() (Config, error) {
	SetDefaults()
	BindEnv()

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	return cfg, nil
}

// Validate rejects tokens that would otherwise only fail mid-run.
func (c Config) Validate() error {
	var errs []error
	if c.Distance.Enabled {
		if _, err := c.Distance.ParseMethod(); err != nil {
			errs = append(errs, err)
		}
		if c.Distance.H0 <= 0 {
			errs = append(errs, fmt.Errorf("distance.h0 must be positive, got %v", c.Distance.H0))
		}
	}
	if c.Frame.Enabled {
		if _, err := core.ParseFrame(c.Frame.Frame); err != nil {
			errs = append(errs, fmt.Errorf("frame.frame: %w", err))
		}
	}
	if c.Neighbors.Enabled {
		if _, err := core.ParseNeighborStrategy(c.Neighbors.Strategy); err != nil {
			errs = append(errs, fmt.Errorf("neighbors.strategy: %w", err))
		}
		if !(c.Neighbors.Radius > 0) {
			errs = append(errs, fmt.Errorf("neighbors.radius must be positive, got %v", c.Neighbors.Radius))
		}
	}
	if c.Photometry.Enabled {
		if _, err := core.ParseLuminosityPolicy(c.Photometry.Luminosity); err != nil {
			errs = append(errs, fmt.Errorf("photometry.luminosity: %w", err))
		}
	}
	if c.Distance.Enabled && c.Distance.ParseMethodOrUnknown() == model.DistanceBailerJonesGeometric {
		if _, err := model.ParseGaiaRelease(c.Crossmatch.Release); err != nil {
			errs = append(errs, fmt.Errorf("crossmatch.release: %w", err))
		}
	}
	if c.Tracing.Enabled && !(c.Tracing.SampleRatio >= 0 && c.Tracing.SampleRatio <= 1) {
		errs = append(errs, fmt.Errorf("tracing.sample_ratio must be within [0, 1], got %v", c.Tracing.SampleRatio))
	}
	if _, err := c.UnitOverrides(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// ParseMethod maps distance.method onto a model.DistanceMethod.
func (d DistanceConfig) ParseMethod() (model.DistanceMethod, error) {
	m, err := model.ParseDistanceMethod(strings.ToLower(strings.TrimSpace(d.Method)))
	if err != nil {
		return model.DistanceUnknown, fmt.Errorf("distance.method: %w", err)
	}
	return m, nil
}

// ParseMethodOrUnknown is ParseMethod without the error.
func (d DistanceConfig) ParseMethodOrUnknown() model.DistanceMethod {
	m, _ := d.ParseMethod()
	return m
}

// Cosmology returns the configured cosmological model.
func (d DistanceConfig) Cosmology() core.Cosmology {
	return core.Cosmology{H0: d.H0, Om0: d.Om0}
}

// FrameOptions converts the frame section into core options.
func (f FrameConfig) FrameOptions() (core.FrameOptions, error) {
	frame, err := core.ParseFrame(f.Frame)
	if err != nil {
		return core.FrameOptions{}, err
	}
	return core.FrameOptions{
		Frame:          frame,
		Distance:       f.Distance,
		RA:             f.RA,
		Dec:            f.Dec,
		GLon:           f.GLon,
		GLat:           f.GLat,
		PMRA:           f.PMRA,
		PMDec:          f.PMDec,
		PMGLon:         f.PMGLon,
		PMGLat:         f.PMGLat,
		RadialVelocity: f.RadialVelocity,
	}, nil
}

// UnitOverrides parses the units section into column → unit.
func (c Config) UnitOverrides() (map[string]units.Unit, error) {
	out := make(map[string]units.Unit, len(c.Units))
	for _, o := range c.Units {
		if o.Column == "" {
			return nil, fmt.Errorf("units: entry with unit %q has no column", o.Unit)
		}
		u, err := units.Parse(o.Unit)
		if err != nil {
			return nil, fmt.Errorf("units: column %q: %w", o.Column, err)
		}
		out[o.Column] = u
	}
	return out, nil
}
