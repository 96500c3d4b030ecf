// Package export renders decoded elements and projected orbits for the CLI
// and for files handed to plotting tools.
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"text/tabwriter"

	"gopkg.in/yaml.v3"

	"github.com/signalsfoundry/orbit-tracer/core"
	"github.com/signalsfoundry/orbit-tracer/model"
)

// Format selects how elements are printed.
type Format string

const (
	FormatTable Format = "table"
	FormatJSON  Format = "json"
	FormatYAML  Format = "yaml"
	FormatCSV   Format = "csv"
)

// ParseFormat accepts a format name case-insensitively.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatTable, FormatJSON, FormatYAML, FormatCSV:
		return f, nil
	case "yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("unknown output format %q (want table, json, yaml or csv)", s)
	}
}

// Projection is one object's sampled orbit. Ground is optional and, when
// present, has one entry per point.
type Projection struct {
	Name   string
	Points []core.Vec3
	Ground []core.GeoPoint
}

// WriteElements writes elements in the requested format. mu is only used by
// the table and CSV formats for the period column; pass 0 to leave it out.
func WriteElements(w io.Writer, f Format, elements []model.OrbitalElement, mu float64) error {
	switch f {
	case FormatJSON:
		return WriteElementsJSON(w, elements)
	case FormatYAML:
		return WriteElementsYAML(w, elements)
	case FormatCSV:
		return WriteElementsCSV(w, elements, mu)
	case FormatTable, "":
		return WriteElementsTable(w, elements, mu)
	default:
		return fmt.Errorf("unknown output format %q", f)
	}
}

func records(elements []model.OrbitalElement) []model.ElementRecord {
	out := make([]model.ElementRecord, 0, len(elements))
	for _, el := range elements {
		out = append(out, el.Record())
	}
	return out
}

// WriteElementsJSON writes an indented JSON array of element records.
func WriteElementsJSON(w io.Writer, elements []model.OrbitalElement) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(records(elements))
}

// WriteElementsYAML writes a YAML sequence of element records.
func WriteElementsYAML(w io.Writer, elements []model.OrbitalElement) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(records(elements)); err != nil {
		return err
	}
	return enc.Close()
}

// ReadElementsYAML parses a sequence written by WriteElementsYAML (JSON is
// valid input too). Derived fields are recomputed.
func ReadElementsYAML(r io.Reader) ([]model.OrbitalElement, error) {
	var recs []model.ElementRecord
	if err := yaml.NewDecoder(r).Decode(&recs); err != nil {
		if err == io.EOF {
			return nil, nil
		}
		return nil, fmt.Errorf("decode elements: %w", err)
	}
	out := make([]model.OrbitalElement, 0, len(recs))
	for i, rec := range recs {
		el, err := model.FromRecord(rec)
		if err != nil {
			return nil, fmt.Errorf("element %d: %w", i, err)
		}
		out = append(out, el)
	}
	return out, nil
}

var elementHeader = []string{"name", "eccentricity", "semi_major_axis_km", "inclination_deg", "raan_deg", "arg_perigee_deg", "periapsis_km", "apoapsis_km", "period_min"}

func elementRow(el model.OrbitalElement, mu float64) []string {
	period := ""
	if p := el.Period(mu); p > 0 {
		period = formatFloat(p/60, 3)
	}
	return []string{
		el.Name(),
		formatFloat(el.Eccentricity(), 7),
		formatFloat(el.SemiMajorAxis(), 3),
		formatFloat(deg(el.Inclination()), 4),
		formatFloat(deg(el.RAAN()), 4),
		formatFloat(deg(el.ArgPerigee()), 4),
		formatFloat(el.Periapsis(), 3),
		formatFloat(el.Apoapsis(), 3),
		period,
	}
}

// WriteElementsTable writes an aligned, human-readable table with angles in
// degrees.
func WriteElementsTable(w io.Writer, elements []model.OrbitalElement, mu float64) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, strings.ToUpper(strings.Join(elementHeader, "\t")))
	for _, el := range elements {
		fmt.Fprintln(tw, strings.Join(elementRow(el, mu), "\t"))
	}
	return tw.Flush()
}

// WriteElementsCSV writes one row per element with angles in degrees.
func WriteElementsCSV(w io.Writer, elements []model.OrbitalElement, mu float64) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(elementHeader); err != nil {
		return err
	}
	for _, el := range elements {
		if err := cw.Write(elementRow(el, mu)); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteProjectionsCSV writes one row per sampled point. Ground-track columns
// are added when any projection carries them.
func WriteProjectionsCSV(w io.Writer, projections []Projection) error {
	withGround := false
	for _, p := range projections {
		if len(p.Ground) > 0 {
			withGround = true
			break
		}
	}

	header := []string{"object", "index", "x_km", "y_km", "z_km"}
	if withGround {
		header = append(header, "latitude_deg", "longitude_deg", "altitude_km")
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return err
	}
	for _, p := range projections {
		if withGround && len(p.Ground) != 0 && len(p.Ground) != len(p.Points) {
			return fmt.Errorf("projection %q: %d ground points for %d samples", p.Name, len(p.Ground), len(p.Points))
		}
		for i, pt := range p.Points {
			row := []string{
				p.Name,
				strconv.Itoa(i),
				formatFloat(pt.X, 6),
				formatFloat(pt.Y, 6),
				formatFloat(pt.Z, 6),
			}
			if withGround {
				if len(p.Ground) == 0 {
					row = append(row, "", "", "")
				} else {
					g := p.Ground[i]
					row = append(row,
						formatFloat(g.LatitudeDeg, 6),
						formatFloat(g.LongitudeDeg, 6),
						formatFloat(g.AltitudeKm, 3),
					)
				}
			}
			if err := cw.Write(row); err != nil {
				return err
			}
		}
	}
	cw.Flush()
	return cw.Error()
}

func deg(rad float64) float64 { return rad * 180 / math.Pi }

func formatFloat(v float64, prec int) string {
	return strconv.FormatFloat(v, 'f', prec, 64)
}
