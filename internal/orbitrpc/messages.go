package orbitrpc

import (
	"bytes"
	"encoding/json"
	"fmt"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/signalsfoundry/orbit-tracer/core"
	"github.com/signalsfoundry/orbit-tracer/model"
)

// Messages travel as google.protobuf.Struct on the wire. The Go types below
// are their typed views; field names are the JSON keys.

// DecodeRequest carries TLE text either as Lines or as one Text blob.
// Mu, when set, wins over Body; with neither the server default applies.
type DecodeRequest struct {
	Lines []string `json:"lines,omitempty"`
	Text  string   `json:"text,omitempty"`
	Mu    float64  `json:"mu,omitempty"`
	Body  string   `json:"body,omitempty"`
	Store bool     `json:"store,omitempty"`
}

// Element is an element record plus its catalog ID (0 when not stored).
type Element struct {
	ID int64 `json:"id,omitempty"`
	model.ElementRecord
}

// Skipped describes one record the decoder dropped.
type Skipped struct {
	Pair   int    `json:"pair"`
	Line   int    `json:"line"`
	Reason string `json:"reason"`
	Error  string `json:"error"`
}

type DecodeResponse struct {
	Mu       float64   `json:"mu"`
	Elements []Element `json:"elements"`
	Skipped  []Skipped `json:"skipped,omitempty"`
}

// ProjectRequest selects an element by catalog ID or carries one inline.
// Samples == 0 uses the server default. The ground track is computed at
// GMSTRad, or at Time (RFC 3339) when given.
type ProjectRequest struct {
	ID          int64                `json:"id,omitempty"`
	Element     *model.ElementRecord `json:"element,omitempty"`
	Samples     int                  `json:"samples,omitempty"`
	GroundTrack bool                 `json:"ground_track,omitempty"`
	GMSTRad     float64              `json:"gmst_rad,omitempty"`
	Time        string               `json:"time,omitempty"`
}

// GeoPoint is a geodetic sample of the ground track.
type GeoPoint struct {
	LatitudeDeg  float64 `json:"lat_deg"`
	LongitudeDeg float64 `json:"lon_deg"`
	AltitudeKm   float64 `json:"alt_km"`
}

type ProjectResponse struct {
	ID     int64        `json:"id,omitempty"`
	Name   string       `json:"name"`
	Points [][3]float64 `json:"points"`
	Ground []GeoPoint   `json:"ground_track,omitempty"`
}

// ListElementsRequest filters by exact name when Name is set.
type ListElementsRequest struct {
	Name string `json:"name,omitempty"`
}

type ListElementsResponse struct {
	Elements []Element `json:"elements"`
}

func pointsMessage(points []core.Vec3) [][3]float64 {
	out := make([][3]float64, 0, len(points))
	for _, p := range points {
		out = append(out, [3]float64{p.X, p.Y, p.Z})
	}
	return out
}

func groundMessage(track []core.GeoPoint) []GeoPoint {
	out := make([]GeoPoint, 0, len(track))
	for _, g := range track {
		out = append(out, GeoPoint{LatitudeDeg: g.LatitudeDeg, LongitudeDeg: g.LongitudeDeg, AltitudeKm: g.AltitudeKm})
	}
	return out
}

// ToStruct converts a typed message to its wire form.
func ToStruct(v any) (*structpb.Struct, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode message: %w", err)
	}
	s := &structpb.Struct{}
	if err := protojson.Unmarshal(data, s); err != nil {
		return nil, fmt.Errorf("encode message: %w", err)
	}
	return s, nil
}

// FromStruct fills v from a wire message. Unknown keys are rejected.
func FromStruct(s *structpb.Struct, v any) error {
	if s == nil {
		return nil
	}
	data, err := protojson.Marshal(s)
	if err != nil {
		return fmt.Errorf("decode message: %w", err)
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	return nil
}
