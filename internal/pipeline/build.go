package pipeline

import (
	"fmt"

	"github.com/signalsfoundry/starcat/core"
	"github.com/signalsfoundry/starcat/internal/archive"
	"github.com/signalsfoundry/starcat/internal/config"
	"github.com/signalsfoundry/starcat/internal/observability"
	"github.com/signalsfoundry/starcat/model"
)

// Deps carries collaborators some stages need beyond configuration.
type Deps struct {
	// Archive serves the bailer-jones distance method.
	Archive archive.Archive
	// Collector receives neighbor query counts. May be nil.
	Collector *observability.PipelineCollector
}

// Stages maps configuration onto the ordered stage list: distance,
// photometry, frame, neighbors. Disabled stages are skipped.
func Stages(cfg config.Config, deps Deps) ([]Stage, error) {
	var stages []Stage

	if cfg.Distance.Enabled {
		s, err := distanceStage(cfg, deps)
		if err != nil {
			return nil, err
		}
		stages = append(stages, s)
	}

	if cfg.Photometry.Enabled {
		policy, err := core.ParseLuminosityPolicy(cfg.Photometry.Luminosity)
		if err != nil {
			return nil, err
		}
		stages = append(stages, core.Photometry{
			AppMagColumn:   cfg.Photometry.AppMagColumn,
			ColorColumn:    cfg.Photometry.ColorColumn,
			DistanceColumn: cfg.Photometry.DistanceColumn,
			Policy:         policy,
		})
	}

	if cfg.Frame.Enabled {
		opts, err := cfg.Frame.FrameOptions()
		if err != nil {
			return nil, err
		}
		stages = append(stages, core.FrameTransformer{Options: opts})
	}

	if cfg.Neighbors.Enabled {
		strategy, err := core.ParseNeighborStrategy(cfg.Neighbors.Strategy)
		if err != nil {
			return nil, err
		}
		collector := deps.Collector
		stages = append(stages, core.NeighborCounter{
			Radius:   cfg.Neighbors.Radius,
			Strategy: strategy,
			Workers:  cfg.Neighbors.Workers,
			OnQueries: func(s core.NeighborStrategy, n int) {
				collector.AddNeighborQueries(s.String(), n)
			},
		})
	}

	if len(stages) == 0 {
		return nil, ErrNoStages
	}
	return stages, nil
}

func distanceStage(cfg config.Config, deps Deps) (Stage, error) {
	d := cfg.Distance
	method, err := d.ParseMethod()
	if err != nil {
		return nil, err
	}

	switch method {
	case model.DistanceParallax, model.DistanceDirect:
		return core.DistanceOptions{
			ParallaxColumn: d.ParallaxColumn,
			DistanceColumn: d.DistanceColumn,
			Use:            method,
		}, nil
	case model.DistancePhotometric:
		return core.DistanceStage{Strategy: core.PhotometricStrategy{
			TeffColumn:   d.TeffColumn,
			RadiusColumn: d.RadiusColumn,
			AppMagColumn: d.AppMagColumn,
		}}, nil
	case model.DistanceRedshiftComoving:
		cosmo := d.Cosmology()
		if err := cosmo.Validate(); err != nil {
			return nil, err
		}
		return core.DistanceStage{Strategy: core.RedshiftDistance{
			Column:    d.RedshiftColumn,
			Cosmology: cosmo,
		}}, nil
	case model.DistanceBailerJonesGeometric, model.DistanceBailerJonesPhotogeo:
		release, err := model.ParseGaiaRelease(cfg.Crossmatch.Release)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", core.ErrInvalidSelection, err)
		}
		if cfg.Crossmatch.Local {
			return core.DistanceStage{Strategy: core.BailerJonesDistance{
				Columns: core.BailerJonesColumnsFor(release),
			}}, nil
		}
		if deps.Archive == nil {
			return nil, fmt.Errorf("%w: bailer-jones distances need an archive", core.ErrInvalidSelection)
		}
		return archive.CrossMatch{
			Archive:        deps.Archive,
			Release:        release,
			SourceIDColumn: cfg.Crossmatch.SourceID,
			Motion:         cfg.Crossmatch.Motion,
		}, nil
	default:
		return nil, fmt.Errorf("%w: distance method %s", core.ErrInvalidSelection, method)
	}
}
