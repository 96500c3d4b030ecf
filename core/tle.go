package core

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/signalsfoundry/orbit-tracer/internal/logging"
	"github.com/signalsfoundry/orbit-tracer/model"
)

const tracerName = "github.com/signalsfoundry/orbit-tracer/core"

const secondsPerDay = 86400.0

var (
	// ErrInvalidMu is returned when the gravitational parameter is not a
	// positive finite number.
	ErrInvalidMu = errors.New("gravitational parameter must be positive and finite")
	// ErrFormat marks records whose layout does not match the two-line format.
	ErrFormat = errors.New("malformed TLE record")
	// ErrNumericParse marks records with a non-numeric fixed-column field.
	ErrNumericParse = errors.New("malformed TLE numeric field")
)

// SkipReason classifies why a record was dropped.
type SkipReason string

const (
	SkipFormat     SkipReason = "format"
	SkipNumeric    SkipReason = "numeric"
	SkipDegenerate SkipReason = "degenerate"
)

// FormatError reports a line that does not have the expected layout.
// Line is 1-based.
type FormatError struct {
	Line int
	Msg  string
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("line %d: %s", e.Line, e.Msg)
}

func (e *FormatError) Unwrap() error { return ErrFormat }

// NumericParseError reports a fixed-column field that is not a number.
type NumericParseError struct {
	Line  int
	Field string
	Raw   string
	Err   error
}

func (e *NumericParseError) Error() string {
	return fmt.Sprintf("line %d: field %s: cannot parse %q: %v", e.Line, e.Field, e.Raw, e.Err)
}

func (e *NumericParseError) Unwrap() []error { return []error{ErrNumericParse, e.Err} }

// SkippedRecord describes one line pair that produced no element.
// Pair is the 0-based pair index, Line the 1-based line that failed.
type SkippedRecord struct {
	Pair   int
	Line   int
	Reason SkipReason
	Err    error
}

// DecodeResult is the outcome of decoding a batch of lines.
type DecodeResult struct {
	Elements []model.OrbitalElement
	Skipped  []SkippedRecord
}

// DecodeMetricsRecorder receives per-record decode outcomes.
type DecodeMetricsRecorder interface {
	ObserveDecoded()
	ObserveSkipped(reason string)
}

// column is a 0-indexed, half-open fixed-column range.
type column struct {
	field      string
	start, end int
}

var (
	colEpochYear    = column{"epoch_year", 18, 20}
	colEpochDay     = column{"epoch_day", 20, 23}
	colName         = column{"name", 2, 7}
	colInclination  = column{"inclination", 9, 17}
	colRAAN         = column{"raan", 17, 26}
	colEccentricity = column{"eccentricity", 26, 34}
	colArgPerigee   = column{"arg_perigee", 34, 43}
	colMeanMotion   = column{"mean_motion", 52, 63}
)

func (c column) from(line string, lineNo int) (string, error) {
	if len(line) < c.end {
		return "", &FormatError{
			Line: lineNo,
			Msg:  fmt.Sprintf("%s needs columns [%d,%d), line has %d characters", c.field, c.start, c.end, len(line)),
		}
	}
	return line[c.start:c.end], nil
}

// Decoder turns two-line element sets into orbital elements for a fixed
// gravitational parameter. It holds no mutable state and is safe for
// concurrent use.
type Decoder struct {
	mu      float64
	log     logging.Logger
	metrics DecodeMetricsRecorder
}

// DecoderOption customises Decoder construction.
type DecoderOption func(*Decoder)

// WithLogger routes skip diagnostics to l.
func WithLogger(l logging.Logger) DecoderOption {
	return func(d *Decoder) {
		if l != nil {
			d.log = l
		}
	}
}

// WithDecodeMetrics attaches a recorder for decode outcomes.
func WithDecodeMetrics(m DecodeMetricsRecorder) DecoderOption {
	return func(d *Decoder) {
		d.metrics = m
	}
}

// NewDecoder builds a Decoder for the gravitational parameter mu.
func NewDecoder(mu float64, opts ...DecoderOption) (*Decoder, error) {
	if !(mu > 0) || math.IsInf(mu, 0) {
		return nil, fmt.Errorf("%w: %v", ErrInvalidMu, mu)
	}
	d := &Decoder{mu: mu, log: logging.Noop()}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// Mu returns the gravitational parameter the decoder was built with.
func (d *Decoder) Mu() float64 { return d.mu }

// WithMu returns a copy of d for another gravitational parameter, keeping
// its logger and metrics.
func (d *Decoder) WithMu(mu float64) (*Decoder, error) {
	if !(mu > 0) || math.IsInf(mu, 0) {
		return nil, fmt.Errorf("%w: %v", ErrInvalidMu, mu)
	}
	cp := *d
	cp.mu = mu
	return &cp, nil
}

// ParseTLE decodes lines with a default Decoder. Only an invalid mu is
// returned as an error; bad records are reported in DecodeResult.Skipped.
func ParseTLE(lines []string, mu float64) (DecodeResult, error) {
	d, err := NewDecoder(mu)
	if err != nil {
		return DecodeResult{}, err
	}
	return d.Decode(context.Background(), lines), nil
}

// Decode walks lines as consecutive (line 1, line 2) pairs. A trailing
// unpaired line is ignored. Records that fail to decode are skipped and
// reported; they never stop the batch.
func (d *Decoder) Decode(ctx context.Context, lines []string) DecodeResult {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "tle.Decode")
	defer span.End()

	pairs := len(lines) / 2
	res := DecodeResult{Elements: make([]model.OrbitalElement, 0, pairs)}

	for i := 0; i < pairs; i++ {
		el, err := d.decodePair(ctx, lines[2*i], lines[2*i+1], 2*i+1)
		if err != nil {
			skip := SkippedRecord{Pair: i, Line: failingLine(err, 2*i+1), Reason: classify(err), Err: err}
			res.Skipped = append(res.Skipped, skip)
			d.log.Warn(ctx, "skipping TLE record",
				logging.Int("pair", skip.Pair),
				logging.Int("line", skip.Line),
				logging.String("reason", string(skip.Reason)),
				logging.String("error", err.Error()),
			)
			if d.metrics != nil {
				d.metrics.ObserveSkipped(string(skip.Reason))
			}
			continue
		}
		res.Elements = append(res.Elements, el)
		if d.metrics != nil {
			d.metrics.ObserveDecoded()
		}
	}

	span.SetAttributes(
		attribute.Int("tle.lines", len(lines)),
		attribute.Int("tle.decoded", len(res.Elements)),
		attribute.Int("tle.skipped", len(res.Skipped)),
	)
	return res
}

// decodePair decodes one record; first is the 1-based number of line1.
func (d *Decoder) decodePair(ctx context.Context, line1, line2 string, first int) (model.OrbitalElement, error) {
	second := first + 1

	if len(line1) == 0 || line1[0] != '1' {
		got := ""
		if len(line1) > 0 {
			got = line1[:1]
		}
		return model.OrbitalElement{}, &FormatError{Line: first, Msg: fmt.Sprintf("expected line number 1, got %q", got)}
	}

	// Epoch columns are read for diagnostics only.
	if year, err := colEpochYear.from(line1, first); err == nil {
		day, _ := colEpochDay.from(line1, first)
		d.log.Debug(ctx, "TLE epoch columns", logging.String("year", year), logging.String("day", day))
	}

	name, err := colName.from(line2, second)
	if err != nil {
		return model.OrbitalElement{}, err
	}

	ecc, err := parseEccentricity(line2, second)
	if err != nil {
		return model.OrbitalElement{}, err
	}

	meanMotion, err := parseFloatColumn(colMeanMotion, line2, second)
	if err != nil {
		return model.OrbitalElement{}, err
	}
	if !(meanMotion > 0) {
		return model.OrbitalElement{}, &model.DegenerateOrbitError{Name: name, Field: "mean_motion", Value: meanMotion}
	}
	a := semiMajorAxis(d.mu, meanMotionToRadians(meanMotion))

	angles := make([]float64, 0, 3)
	for _, c := range []column{colInclination, colRAAN, colArgPerigee} {
		deg, err := parseFloatColumn(c, line2, second)
		if err != nil {
			return model.OrbitalElement{}, err
		}
		angles = append(angles, degreesToRadians(deg))
	}

	return model.NewOrbitalElement(name, ecc, a, angles[0], angles[1], angles[2])
}

// parseEccentricity reads the implied-decimal eccentricity digits.
func parseEccentricity(line string, lineNo int) (float64, error) {
	raw, err := colEccentricity.from(line, lineNo)
	if err != nil {
		return 0, err
	}
	digits := strings.TrimRight(raw, " ")
	if digits == "" {
		return 0, &NumericParseError{Line: lineNo, Field: colEccentricity.field, Raw: raw, Err: errors.New("no digits")}
	}
	for _, r := range digits {
		if r < '0' || r > '9' {
			return 0, &NumericParseError{Line: lineNo, Field: colEccentricity.field, Raw: raw, Err: fmt.Errorf("unexpected character %q", r)}
		}
	}
	v, err := strconv.ParseFloat("0."+digits, 64)
	if err != nil {
		return 0, &NumericParseError{Line: lineNo, Field: colEccentricity.field, Raw: raw, Err: err}
	}
	return v, nil
}

func parseFloatColumn(c column, line string, lineNo int) (float64, error) {
	raw, err := c.from(line, lineNo)
	if err != nil {
		return 0, err
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return 0, &NumericParseError{Line: lineNo, Field: c.field, Raw: raw, Err: err}
	}
	return v, nil
}

func degreesToRadians(deg float64) float64 {
	return deg * math.Pi / 180
}

// meanMotionToRadians converts revolutions per day to radians per second.
func meanMotionToRadians(revPerDay float64) float64 {
	return revPerDay * 2 * math.Pi / secondsPerDay
}

// semiMajorAxis inverts Kepler's third law: n² a³ = mu.
func semiMajorAxis(mu, meanMotionRad float64) float64 {
	return math.Cbrt(mu / (meanMotionRad * meanMotionRad))
}

func classify(err error) SkipReason {
	switch {
	case errors.Is(err, ErrNumericParse):
		return SkipNumeric
	case errors.Is(err, model.ErrDegenerateOrbit):
		return SkipDegenerate
	default:
		return SkipFormat
	}
}

func failingLine(err error, fallback int) int {
	var fe *FormatError
	if errors.As(err, &fe) {
		return fe.Line
	}
	var ne *NumericParseError
	if errors.As(err, &ne) {
		return ne.Line
	}
	// Degenerate elements come from line 2.
	return fallback + 1
}

// ReadLines reads text lines from r, dropping carriage returns and blank
// lines so that the remaining lines pair up as (line 1, line 2).
func ReadLines(r io.Reader) ([]string, error) {
	var lines []string
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimRight(sc.Text(), "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		lines = append(lines, line)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read TLE lines: %w", err)
	}
	return lines, nil
}
