package model

import (
	"errors"
	"math"
	"testing"
)

func TestNewOrbitalElementDerivedFields(t *testing.T) {
	cases := []struct {
		e, a float64
	}{
		{0, 7000},
		{0.0001234, 6790.2},
		{0.5, 24000},
		{0.9999, 1},
	}
	for _, tc := range cases {
		o, err := NewOrbitalElement("X", tc.e, tc.a, 0.1, 0.2, 0.3)
		if err != nil {
			t.Fatalf("NewOrbitalElement(e=%v, a=%v): %v", tc.e, tc.a, err)
		}
		if o.SemiMinorAxis() > o.SemiMajorAxis() {
			t.Errorf("e=%v: semi-minor %v > semi-major %v", tc.e, o.SemiMinorAxis(), o.SemiMajorAxis())
		}
		if o.FocalDistance() != tc.a*tc.e {
			t.Errorf("e=%v: focal distance = %v, want %v", tc.e, o.FocalDistance(), tc.a*tc.e)
		}
		want := tc.a * math.Sqrt(1-tc.e*tc.e)
		if o.SemiMinorAxis() != want {
			t.Errorf("e=%v: semi-minor = %v, want %v", tc.e, o.SemiMinorAxis(), want)
		}
	}
}

func TestNewOrbitalElementCircular(t *testing.T) {
	o, err := NewOrbitalElement("C", 0, 7000, 0, 0, 0)
	if err != nil {
		t.Fatalf("NewOrbitalElement: %v", err)
	}
	if o.SemiMinorAxis() != o.SemiMajorAxis() {
		t.Fatalf("circular orbit semi-minor = %v, want %v", o.SemiMinorAxis(), o.SemiMajorAxis())
	}
	if o.FocalDistance() != 0 {
		t.Fatalf("circular orbit focal distance = %v, want 0", o.FocalDistance())
	}
}

func TestNewOrbitalElementRejectsDegenerate(t *testing.T) {
	cases := []struct {
		name      string
		e, a, i   float64
		wantField string
	}{
		{"parabolic", 1, 7000, 0, "eccentricity"},
		{"hyperbolic", 1.5, 7000, 0, "eccentricity"},
		{"negative e", -0.1, 7000, 0, "eccentricity"},
		{"zero a", 0.1, 0, 0, "semi_major_axis"},
		{"negative a", 0.1, -1, 0, "semi_major_axis"},
		{"infinite a", 0.1, math.Inf(1), 0, "semi_major_axis"},
		{"nan e", math.NaN(), 7000, 0, "eccentricity"},
		{"nan inclination", 0.1, 7000, math.NaN(), "inclination"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewOrbitalElement("D", tc.e, tc.a, tc.i, 0, 0)
			if !errors.Is(err, ErrDegenerateOrbit) {
				t.Fatalf("err = %v, want ErrDegenerateOrbit", err)
			}
			var de *DegenerateOrbitError
			if !errors.As(err, &de) {
				t.Fatalf("err = %T, want *DegenerateOrbitError", err)
			}
			if de.Field != tc.wantField {
				t.Fatalf("field = %q, want %q", de.Field, tc.wantField)
			}
		})
	}
}

func TestZeroValueIsNotValid(t *testing.T) {
	var o OrbitalElement
	if o.Valid() {
		t.Fatalf("zero OrbitalElement reported valid")
	}
}

func TestApsidesAndPeriod(t *testing.T) {
	o, err := NewOrbitalElement("A", 0.1, 10000, 0, 0, 0)
	if err != nil {
		t.Fatalf("NewOrbitalElement: %v", err)
	}
	if got := o.Apoapsis(); math.Abs(got-11000) > 1e-9 {
		t.Errorf("Apoapsis = %v, want 11000", got)
	}
	if got := o.Periapsis(); math.Abs(got-9000) > 1e-9 {
		t.Errorf("Periapsis = %v, want 9000", got)
	}
	want := 2 * math.Pi * math.Sqrt(1e12/Earth.Mu)
	if got := o.Period(Earth.Mu); math.Abs(got-want) > 1e-9 {
		t.Errorf("Period = %v, want %v", got, want)
	}
	if got := o.Period(0); got != 0 {
		t.Errorf("Period(0) = %v, want 0", got)
	}
}

func TestRecordRoundTripRecomputesDerived(t *testing.T) {
	o, err := NewOrbitalElement("R", 0.2, 8000, 0.5, 1, 2)
	if err != nil {
		t.Fatalf("NewOrbitalElement: %v", err)
	}
	rec := o.Record()
	rec.SemiMinorAxis = -1
	rec.FocalDistance = -1

	back, err := FromRecord(rec)
	if err != nil {
		t.Fatalf("FromRecord: %v", err)
	}
	if back != o {
		t.Fatalf("FromRecord = %v, want %v", back, o)
	}
}

func TestLookupBody(t *testing.T) {
	b, err := LookupBody(" Earth ")
	if err != nil {
		t.Fatalf("LookupBody: %v", err)
	}
	if b.Mu != 398600.4418 {
		t.Fatalf("earth mu = %v, want 398600.4418", b.Mu)
	}
	if _, err := LookupBody("pluto"); err == nil {
		t.Fatalf("expected error for unknown body")
	}
}
