package model

import "fmt"

// DistanceMethod identifies which measurement produced a record's distance.
// The numeric values are persisted in catalog columns and must not change.
type DistanceMethod int

const (
	DistanceUnknown              DistanceMethod = iota
	DistanceBailerJonesPhotogeo                 // 1: Bailer-Jones photogeometric estimate
	DistanceBailerJonesGeometric                // 2: Bailer-Jones geometric estimate
	DistanceParallax                            // 3: inverse parallax
	DistanceDirect                              // 4: measured distance column
	DistancePhotometric                         // 5: Stefan-Boltzmann photometric estimate
	DistanceRedshiftComoving                    // 6: comoving distance from redshift
)

func (m DistanceMethod) String() string {
	switch m {
	case DistanceBailerJonesPhotogeo:
		return "bailer-jones-photogeometric"
	case DistanceBailerJonesGeometric:
		return "bailer-jones-geometric"
	case DistanceParallax:
		return "parallax"
	case DistanceDirect:
		return "distance"
	case DistancePhotometric:
		return "photometric"
	case DistanceRedshiftComoving:
		return "redshift"
	default:
		return "unknown"
	}
}

// ParseDistanceMethod maps configuration tokens onto a DistanceMethod.
func ParseDistanceMethod(s string) (DistanceMethod, error) {
	switch s {
	case "parallax", "plx":
		return DistanceParallax, nil
	case "distance", "direct", "dist":
		return DistanceDirect, nil
	case "bailer-jones", "bj":
		return DistanceBailerJonesGeometric, nil
	case "photometric":
		return DistancePhotometric, nil
	case "redshift", "comoving":
		return DistanceRedshiftComoving, nil
	default:
		return DistanceUnknown, fmt.Errorf("unknown distance method %q", s)
	}
}
