package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/signalsfoundry/starcat/core"
	"github.com/signalsfoundry/starcat/model"
	"github.com/signalsfoundry/starcat/units"
)

// resetViper clears all viper state between tests to avoid cross-contamination.
func resetViper(t *testing.T) {
	t.Helper()
	viper.Reset()
	t.Cleanup(viper.Reset)
}

func TestLoad_Defaults(t *testing.T) {
	resetViper(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.True(t, cfg.Distance.Enabled)
	assert.Equal(t, "parallax", cfg.Distance.Method)
	assert.Equal(t, "Plx", cfg.Distance.ParallaxColumn)
	assert.Equal(t, "icrs", cfg.Frame.Frame)
	assert.Equal(t, "RAdeg", cfg.Frame.RA)
	assert.Equal(t, core.DefaultNeighborRadius, cfg.Neighbors.Radius)
	assert.Equal(t, "kdtree", cfg.Neighbors.Strategy)
	assert.False(t, cfg.Photometry.Enabled)
	assert.Equal(t, "keep", cfg.Photometry.Luminosity)
	assert.Equal(t, "DR3", cfg.Crossmatch.Release)
	assert.Equal(t, 67.66, cfg.Distance.H0)
	require.NoError(t, cfg.Validate())
}

func TestLoad_EnvOverrides(t *testing.T) {
	tests := []struct {
		name   string
		envKey string
		envVal string
		field  func(Config) any
		want   any
	}{
		{"neighbors radius", "STARCAT_NEIGHBORS_RADIUS", "2.5", func(c Config) any { return c.Neighbors.Radius }, 2.5},
		{"neighbors strategy", "STARCAT_NEIGHBORS_STRATEGY", "pairwise", func(c Config) any { return c.Neighbors.Strategy }, "pairwise"},
		{"frame", "STARCAT_FRAME_FRAME", "galactic", func(c Config) any { return c.Frame.Frame }, "galactic"},
		{"photometry", "STARCAT_PHOTOMETRY_ENABLED", "true", func(c Config) any { return c.Photometry.Enabled }, true},
		{"log level", "STARCAT_LOG_LEVEL", "debug", func(c Config) any { return c.Log.Level }, "debug"},
		{"metrics", "STARCAT_METRICS_ADDR", ":9090", func(c Config) any { return c.MetricsAddr }, ":9090"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resetViper(t)
			t.Setenv(tt.envKey, tt.envVal)

			cfg, err := Load()
			require.NoError(t, err)
			assert.Equal(t, tt.want, tt.field(cfg))
		})
	}
}

func TestLoad_File(t *testing.T) {
	resetViper(t)
	path := filepath.Join(t.TempDir(), ".starcat.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
input:
  path: stars.csv
units:
  - column: Plx
    unit: mas
  - column: Dist
    unit: kpc
distance:
  method: distance
frame:
  frame: galactic
neighbors:
  radius: 4
`), 0o644))

	viper.SetConfigFile(path)
	require.NoError(t, viper.ReadInConfig())

	cfg, err := Load()
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "stars.csv", cfg.Input.Path)
	assert.Equal(t, 4.0, cfg.Neighbors.Radius)

	method, err := cfg.Distance.ParseMethod()
	require.NoError(t, err)
	assert.Equal(t, model.DistanceDirect, method)

	overrides, err := cfg.UnitOverrides()
	require.NoError(t, err)
	assert.Equal(t, units.Milliarcsecond, overrides["Plx"])
	assert.Equal(t, units.Kiloparsec, overrides["Dist"])

	opts, err := cfg.Frame.FrameOptions()
	require.NoError(t, err)
	assert.Equal(t, model.FrameGalactic, opts.Frame)
	assert.Equal(t, "GLON", opts.GLon)
}

func TestValidate_CollectsErrors(t *testing.T) {
	resetViper(t)
	cfg, err := Load()
	require.NoError(t, err)

	cfg.Distance.Method = "guess"
	cfg.Frame.Frame = "fk4"
	cfg.Neighbors.Radius = 0
	cfg.Neighbors.Strategy = "octree"
	cfg.Units = []UnitOverride{{Column: "x", Unit: "furlong"}}

	err = cfg.Validate()
	require.Error(t, err)
	for _, want := range []string{"distance.method", "frame.frame", "neighbors.radius", "neighbors.strategy", "furlong"} {
		assert.Contains(t, err.Error(), want)
	}
	assert.ErrorIs(t, err, core.ErrInvalidFrame)
	assert.ErrorIs(t, err, units.ErrUnknownUnit)
}

func TestValidate_BailerJonesRelease(t *testing.T) {
	resetViper(t)
	cfg, err := Load()
	require.NoError(t, err)

	cfg.Distance.Method = "bailer-jones"
	cfg.Crossmatch.Release = "DR9"
	assert.ErrorContains(t, cfg.Validate(), "crossmatch.release")

	cfg.Crossmatch.Release = "edr3"
	assert.NoError(t, cfg.Validate())
}

func TestValidate_TracingSampleRatio(t *testing.T) {
	resetViper(t)
	t.Setenv("STARCAT_TRACING_ENABLED", "true")
	t.Setenv("STARCAT_TRACING_SAMPLE_RATIO", "2")
	cfg, err := Load()
	require.NoError(t, err)

	assert.ErrorContains(t, cfg.Validate(), "tracing.sample_ratio")

	cfg.Tracing.SampleRatio = 0.25
	assert.NoError(t, cfg.Validate())
}

func TestLoad_CrossmatchLocal(t *testing.T) {
	resetViper(t)
	t.Setenv("STARCAT_CROSSMATCH_LOCAL", "true")
	cfg, err := Load()
	require.NoError(t, err)
	assert.True(t, cfg.Crossmatch.Local)
}
