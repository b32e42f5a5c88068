package core

import (
	"fmt"
	"math"

	"github.com/signalsfoundry/starcat/catalog"
	"github.com/signalsfoundry/starcat/model"
	"github.com/signalsfoundry/starcat/units"
)

// Physical constants in SI units.
const (
	StefanBoltzmann = 5.670374419e-8 // W m⁻² K⁻⁴
	SolarRadiusM    = 6.957e8        // m
	SolarLumW       = 3.828e26       // W
	// SolarAbsMag is the absolute bolometric magnitude of the Sun.
	SolarAbsMag = 4.75
)

// PhotometricDistance estimates the distance in parsecs of a star with
// effective temperature teff (K), radius in solar radii and apparent
// magnitude appmag. ok is false when the inputs do not describe a star.
func PhotometricDistance(teff, radius, appmag float64) (pc float64, ok bool) {
	if !(teff > 0) || !(radius > 0) || math.IsNaN(appmag) || math.IsInf(appmag, 0) {
		return 0, false
	}
	r := radius * SolarRadiusM
	lum := 4 * math.Pi * r * r * StefanBoltzmann * math.Pow(teff, 4)
	absmag := SolarAbsMag - 2.5*math.Log10(lum/SolarLumW)
	pc = math.Pow(10, (appmag-absmag+5)/5)
	if math.IsNaN(pc) || math.IsInf(pc, 0) {
		return 0, false
	}
	return pc, true
}

// PhotometricDistances applies PhotometricDistance element-wise. The three
// vectors must have equal lengths.
func PhotometricDistances(teff, radius, appmag catalog.Floats) (catalog.Floats, error) {
	n := teff.Len()
	if radius.Len() != n || appmag.Len() != n {
		return catalog.Floats{}, fmt.Errorf("%w: photometric inputs have lengths %d, %d, %d",
			ErrInvalidSelection, n, radius.Len(), appmag.Len())
	}
	out := catalog.MakeFloats(n)
	for i := 0; i < n; i++ {
		t, ok1 := teff.At(i)
		r, ok2 := radius.At(i)
		m, ok3 := appmag.At(i)
		if !ok1 || !ok2 || !ok3 {
			continue
		}
		if d, ok := PhotometricDistance(t, r, m); ok {
			out.Set(i, d)
		}
	}
	return out, nil
}

// PhotometricStrategy resolves distances from temperature, radius and
// apparent magnitude columns. Unitless columns are taken as K, solar radii
// and mag.
type PhotometricStrategy struct {
	TeffColumn   string
	RadiusColumn string
	AppMagColumn string
}

func (p PhotometricStrategy) Name() string                 { return "photometric" }
func (p PhotometricStrategy) Method() model.DistanceMethod { return model.DistancePhotometric }

func (p PhotometricStrategy) Resolve(view catalog.View) (catalog.ColumnSet, error) {
	teff, err := requiredIn(view, p.TeffColumn, "effective temperature", units.Kelvin)
	if err != nil {
		return nil, err
	}
	radius, err := requiredIn(view, p.RadiusColumn, "stellar radius", units.SolarRadius)
	if err != nil {
		return nil, err
	}
	appmag, err := requiredIn(view, p.AppMagColumn, "apparent magnitude", units.Mag)
	if err != nil {
		return nil, err
	}
	pc, err := PhotometricDistances(teff, radius, appmag)
	if err != nil {
		return nil, err
	}
	return distanceColumns(pc, p.Method())
}

// requiredIn is requireFloats followed by a conversion to want.
func requiredIn(view catalog.View, name, role string, want units.Unit) (catalog.Floats, error) {
	f, meta, err := requireFloats(view, name, role)
	if err != nil {
		return catalog.Floats{}, err
	}
	return inUnit(f, meta, want, true, name)
}
