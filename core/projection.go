package core

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/signalsfoundry/orbit-tracer/model"
)

// DefaultSamples is the number of points ToCartesian callers use unless
// they have a reason to pick another resolution.
const DefaultSamples = 100

// ErrInvalidSamples is returned when fewer than one sample is requested.
var ErrInvalidSamples = errors.New("samples must be at least 1")

// RotationMatrix returns Rz(raan)·Rx(inclination)·Rz(argPerigee), which maps
// the perifocal frame (x towards perigee, z along the orbit normal) into the
// reference frame.
func RotationMatrix(o model.OrbitalElement) Mat3 {
	return RotZ(o.RAAN()).Mul(RotX(o.Inclination())).Mul(RotZ(o.ArgPerigee()))
}

// ToCartesian samples the orbital ellipse of o at samples points with the
// parameter t spread evenly over [0, 2π], both ends included, so the first
// and last points coincide. Points are focus-centred: the central body sits
// at the origin.
func ToCartesian(o model.OrbitalElement, samples int) ([]Vec3, error) {
	if samples < 1 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidSamples, samples)
	}
	if !o.Valid() {
		return nil, fmt.Errorf("project %q: %w", o.Name(), model.ErrDegenerateOrbit)
	}

	r := RotationMatrix(o)
	focus := r.Apply(Vec3{X: o.FocalDistance()})
	a, b := o.SemiMajorAxis(), o.SemiMinorAxis()

	step := 0.0
	if samples > 1 {
		step = 2 * math.Pi / float64(samples-1)
	}

	points := make([]Vec3, 0, samples)
	for k := 0; k < samples; k++ {
		t := step * float64(k)
		if k == samples-1 && samples > 1 {
			t = 2 * math.Pi
		}
		sin, cos := math.Sincos(t)
		p := r.Apply(Vec3{X: a * cos, Y: b * sin})
		points = append(points, p.Sub(focus))
	}
	return points, nil
}

// ProjectionRecorder receives projection timings.
type ProjectionRecorder interface {
	ObserveProjection(d time.Duration, points int)
}

// Projector wraps ToCartesian with tracing and optional metrics.
type Projector struct {
	samples int
	metrics ProjectionRecorder
}

// ProjectorOption customises a Projector.
type ProjectorOption func(*Projector)

// WithDefaultSamples sets the sample count used when Project is asked for 0.
func WithDefaultSamples(n int) ProjectorOption {
	return func(p *Projector) {
		if n > 0 {
			p.samples = n
		}
	}
}

// WithProjectionMetrics attaches a recorder for projection timings.
func WithProjectionMetrics(m ProjectionRecorder) ProjectorOption {
	return func(p *Projector) {
		p.metrics = m
	}
}

// NewProjector returns a Projector defaulting to DefaultSamples.
func NewProjector(opts ...ProjectorOption) *Projector {
	p := &Projector{samples: DefaultSamples}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// DefaultSamples reports the sample count used when 0 is requested.
func (p *Projector) DefaultSamples() int { return p.samples }

// Project samples o. samples == 0 selects the projector default; negative
// values are rejected like ToCartesian does.
func (p *Projector) Project(ctx context.Context, o model.OrbitalElement, samples int) ([]Vec3, error) {
	if samples == 0 {
		samples = p.samples
	}
	_, span := otel.Tracer(tracerName).Start(ctx, "orbit.Project")
	defer span.End()
	span.SetAttributes(
		attribute.String("orbit.name", o.Name()),
		attribute.Int("orbit.samples", samples),
	)

	start := time.Now()
	points, err := ToCartesian(o, samples)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	if p.metrics != nil {
		p.metrics.ObserveProjection(time.Since(start), len(points))
	}
	return points, nil
}
