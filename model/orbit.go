package model

import (
	"errors"
	"fmt"
	"math"
)

// ErrDegenerateOrbit is returned when the elements do not describe a closed
// ellipse (eccentricity outside [0, 1), non-positive semi-major axis, or
// non-finite input).
var ErrDegenerateOrbit = errors.New("degenerate orbit")

// DegenerateOrbitError carries the offending field alongside ErrDegenerateOrbit.
type DegenerateOrbitError struct {
	Name  string
	Field string
	Value float64
}

func (e *DegenerateOrbitError) Error() string {
	if e.Name == "" {
		return fmt.Sprintf("degenerate orbit: %s=%g", e.Field, e.Value)
	}
	return fmt.Sprintf("degenerate orbit %q: %s=%g", e.Name, e.Field, e.Value)
}

func (e *DegenerateOrbitError) Unwrap() error { return ErrDegenerateOrbit }

// OrbitalElement is one object's osculating orbit described by classical
// Keplerian elements. Angles are radians; lengths use whatever unit the
// gravitational parameter was expressed in (kilometres for the bundled bodies).
//
// Values are immutable: fields are only set by NewOrbitalElement, which also
// freezes the derived semi-minor axis and focal distance.
type OrbitalElement struct {
	name          string
	eccentricity  float64
	semiMajorAxis float64
	inclination   float64
	raan          float64
	argPerigee    float64

	semiMinorAxis float64
	focalDistance float64
}

// NewOrbitalElement validates the primary elements and computes the derived
// ones.
func NewOrbitalElement(name string, eccentricity, semiMajorAxis, inclination, raan, argPerigee float64) (OrbitalElement, error) {
	checks := []struct {
		field string
		value float64
		ok    bool
	}{
		{"eccentricity", eccentricity, eccentricity >= 0 && eccentricity < 1},
		{"semi_major_axis", semiMajorAxis, semiMajorAxis > 0 && !math.IsInf(semiMajorAxis, 0)},
		{"inclination", inclination, isFinite(inclination)},
		{"raan", raan, isFinite(raan)},
		{"arg_perigee", argPerigee, isFinite(argPerigee)},
	}
	for _, c := range checks {
		// NaN fails every comparison above, so it lands here too.
		if !c.ok {
			return OrbitalElement{}, &DegenerateOrbitError{Name: name, Field: c.field, Value: c.value}
		}
	}

	return OrbitalElement{
		name:          name,
		eccentricity:  eccentricity,
		semiMajorAxis: semiMajorAxis,
		inclination:   inclination,
		raan:          raan,
		argPerigee:    argPerigee,
		semiMinorAxis: semiMajorAxis * math.Sqrt(1-eccentricity*eccentricity),
		focalDistance: semiMajorAxis * eccentricity,
	}, nil
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func (o OrbitalElement) Name() string           { return o.name }
func (o OrbitalElement) Eccentricity() float64  { return o.eccentricity }
func (o OrbitalElement) SemiMajorAxis() float64 { return o.semiMajorAxis }
func (o OrbitalElement) Inclination() float64   { return o.inclination }
func (o OrbitalElement) RAAN() float64          { return o.raan }
func (o OrbitalElement) ArgPerigee() float64    { return o.argPerigee }
func (o OrbitalElement) SemiMinorAxis() float64 { return o.semiMinorAxis }
func (o OrbitalElement) FocalDistance() float64 { return o.focalDistance }

// Valid reports whether o was produced by NewOrbitalElement. The zero value is
// not valid.
func (o OrbitalElement) Valid() bool {
	return o.semiMajorAxis > 0 && o.eccentricity >= 0 && o.eccentricity < 1
}

// Apoapsis is the distance from the focus to the farthest point of the orbit.
func (o OrbitalElement) Apoapsis() float64 { return o.semiMajorAxis * (1 + o.eccentricity) }

// Periapsis is the distance from the focus to the closest point of the orbit.
func (o OrbitalElement) Periapsis() float64 { return o.semiMajorAxis * (1 - o.eccentricity) }

// Period returns the orbital period in seconds for the given gravitational
// parameter. It returns 0 when mu is not positive.
func (o OrbitalElement) Period(mu float64) float64 {
	if mu <= 0 {
		return 0
	}
	a := o.semiMajorAxis
	return 2 * math.Pi * math.Sqrt(a*a*a/mu)
}

func (o OrbitalElement) String() string {
	return fmt.Sprintf("%s{e=%.7f a=%.3f i=%.4f raan=%.4f argp=%.4f}",
		o.name, o.eccentricity, o.semiMajorAxis, o.inclination, o.raan, o.argPerigee)
}

// ElementRecord is the serialisable shape of an OrbitalElement, used by the
// catalog, exporters and the RPC layer.
type ElementRecord struct {
	Name          string  `json:"name" yaml:"name"`
	Eccentricity  float64 `json:"eccentricity" yaml:"eccentricity"`
	SemiMajorAxis float64 `json:"semi_major_axis" yaml:"semi_major_axis"`
	Inclination   float64 `json:"inclination" yaml:"inclination"`
	RAAN          float64 `json:"raan" yaml:"raan"`
	ArgPerigee    float64 `json:"arg_perigee" yaml:"arg_perigee"`

	// Derived; ignored by FromRecord.
	SemiMinorAxis float64 `json:"semi_minor_axis" yaml:"semi_minor_axis"`
	FocalDistance float64 `json:"focal_distance" yaml:"focal_distance"`
}

// Record returns the serialisable form of o.
func (o OrbitalElement) Record() ElementRecord {
	return ElementRecord{
		Name:          o.name,
		Eccentricity:  o.eccentricity,
		SemiMajorAxis: o.semiMajorAxis,
		Inclination:   o.inclination,
		RAAN:          o.raan,
		ArgPerigee:    o.argPerigee,
		SemiMinorAxis: o.semiMinorAxis,
		FocalDistance: o.focalDistance,
	}
}

// FromRecord rebuilds an element from its primary fields. Derived fields in r
// are recomputed rather than trusted.
func FromRecord(r ElementRecord) (OrbitalElement, error) {
	return NewOrbitalElement(r.Name, r.Eccentricity, r.SemiMajorAxis, r.Inclination, r.RAAN, r.ArgPerigee)
}
