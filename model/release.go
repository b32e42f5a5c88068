package model

import (
	"fmt"
	"strings"
)

// GaiaRelease selects the Gaia data release a cross-match runs against.
type GaiaRelease int

const (
	ReleaseUnknown GaiaRelease = iota
	ReleaseDR2
	ReleaseEDR3
	ReleaseDR3
)

func (r GaiaRelease) String() string {
	switch r {
	case ReleaseDR2:
		return "DR2"
	case ReleaseEDR3:
		return "EDR3"
	case ReleaseDR3:
		return "DR3"
	default:
		return "unknown"
	}
}

// HasPhotogeometric reports whether the release's Bailer-Jones catalog
// provides photogeometric estimates alongside geometric ones.
func (r GaiaRelease) HasPhotogeometric() bool {
	return r == ReleaseEDR3 || r == ReleaseDR3
}

// ParseGaiaRelease accepts DR2, EDR3 or DR3 in any case.
func ParseGaiaRelease(s string) (GaiaRelease, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DR2":
		return ReleaseDR2, nil
	case "EDR3":
		return ReleaseEDR3, nil
	case "DR3":
		return ReleaseDR3, nil
	default:
		return ReleaseUnknown, fmt.Errorf("release must be DR2, EDR3, or DR3, got %q", s)
	}
}
