// Package orbitrpc exposes decoding, projection and the element catalog over
// gRPC as orbits.v1.OrbitService.
package orbitrpc

import (
	"context"
	"fmt"
	"strings"
	"time"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/signalsfoundry/orbit-tracer/catalog"
	"github.com/signalsfoundry/orbit-tracer/core"
	"github.com/signalsfoundry/orbit-tracer/internal/logging"
	"github.com/signalsfoundry/orbit-tracer/model"
)

// OrbitService implements OrbitServiceServer. The catalog is optional;
// without one, storing and listing fail with FailedPrecondition.
type OrbitService struct {
	decoder   *core.Decoder
	projector *core.Projector
	catalog   catalog.Store
	log       logging.Logger
}

// NewOrbitService wires the service. decoder and projector must be non-nil.
func NewOrbitService(decoder *core.Decoder, projector *core.Projector, store catalog.Store, log logging.Logger) *OrbitService {
	if log == nil {
		log = logging.Noop()
	}
	return &OrbitService{
		decoder:   decoder,
		projector: projector,
		catalog:   store,
		log:       log,
	}
}

func (s *OrbitService) Decode(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	log := logging.FromContext(ctx, s.log)

	var req DecodeRequest
	if err := FromStruct(in, &req); err != nil {
		return nil, ToStatusError(err)
	}
	lines, err := requestLines(req)
	if err != nil {
		return nil, ToStatusError(err)
	}
	dec, err := s.decoderFor(req)
	if err != nil {
		return nil, ToStatusError(err)
	}

	res := dec.Decode(ctx, lines)
	resp := DecodeResponse{Mu: dec.Mu(), Elements: make([]Element, 0, len(res.Elements))}

	if req.Store && len(res.Elements) > 0 {
		if s.catalog == nil {
			return nil, ToStatusError(ErrNoCatalog)
		}
		entries, err := s.catalog.Put(ctx, res.Elements...)
		if err != nil {
			log.Error(ctx, "catalog put failed", logging.Err(err))
			return nil, ToStatusError(err)
		}
		for _, e := range entries {
			resp.Elements = append(resp.Elements, Element{ID: e.ID, ElementRecord: e.Element.Record()})
		}
	} else {
		for _, el := range res.Elements {
			resp.Elements = append(resp.Elements, Element{ElementRecord: el.Record()})
		}
	}
	for _, sk := range res.Skipped {
		resp.Skipped = append(resp.Skipped, Skipped{
			Pair:   sk.Pair,
			Line:   sk.Line,
			Reason: string(sk.Reason),
			Error:  sk.Err.Error(),
		})
	}

	log.Info(ctx, "decoded TLE batch",
		logging.Int("lines", len(lines)),
		logging.Int("decoded", len(res.Elements)),
		logging.Int("skipped", len(res.Skipped)),
	)
	return toResponse(resp)
}

func (s *OrbitService) Project(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req ProjectRequest
	if err := FromStruct(in, &req); err != nil {
		return nil, ToStatusError(err)
	}

	id, el, err := s.resolveElement(ctx, req)
	if err != nil {
		return nil, ToStatusError(err)
	}

	points, err := s.projector.Project(ctx, el, req.Samples)
	if err != nil {
		return nil, ToStatusError(err)
	}
	resp := ProjectResponse{ID: id, Name: el.Name(), Points: pointsMessage(points)}

	if req.GroundTrack {
		gmst, err := requestGMST(req)
		if err != nil {
			return nil, ToStatusError(err)
		}
		resp.Ground = groundMessage(core.GroundTrack(points, gmst))
	}
	return toResponse(resp)
}

func (s *OrbitService) ListElements(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req ListElementsRequest
	if err := FromStruct(in, &req); err != nil {
		return nil, ToStatusError(err)
	}
	if s.catalog == nil {
		return nil, ToStatusError(ErrNoCatalog)
	}

	var (
		entries []catalog.Entry
		err     error
	)
	if req.Name != "" {
		entries, err = s.catalog.FindByName(ctx, req.Name)
	} else {
		entries, err = s.catalog.List(ctx)
	}
	if err != nil {
		return nil, ToStatusError(err)
	}

	resp := ListElementsResponse{Elements: make([]Element, 0, len(entries))}
	for _, e := range entries {
		resp.Elements = append(resp.Elements, Element{ID: e.ID, ElementRecord: e.Element.Record()})
	}
	return toResponse(resp)
}

func requestLines(req DecodeRequest) ([]string, error) {
	switch {
	case req.Text != "" && len(req.Lines) > 0:
		return nil, fmt.Errorf("%w: set lines or text, not both", ErrInvalidRequest)
	case req.Text != "":
		return core.ReadLines(strings.NewReader(req.Text))
	default:
		return req.Lines, nil
	}
}

func (s *OrbitService) decoderFor(req DecodeRequest) (*core.Decoder, error) {
	switch {
	case req.Mu != 0:
		return s.decoder.WithMu(req.Mu)
	case req.Body != "":
		b, err := model.LookupBody(req.Body)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
		}
		return s.decoder.WithMu(b.Mu)
	default:
		return s.decoder, nil
	}
}

func (s *OrbitService) resolveElement(ctx context.Context, req ProjectRequest) (int64, model.OrbitalElement, error) {
	switch {
	case req.ID != 0 && req.Element != nil:
		return 0, model.OrbitalElement{}, fmt.Errorf("%w: set id or element, not both", ErrInvalidRequest)
	case req.Element != nil:
		el, err := model.FromRecord(*req.Element)
		return 0, el, err
	case req.ID != 0:
		if s.catalog == nil {
			return 0, model.OrbitalElement{}, ErrNoCatalog
		}
		e, err := s.catalog.Get(ctx, req.ID)
		if err != nil {
			return 0, model.OrbitalElement{}, err
		}
		return e.ID, e.Element, nil
	default:
		return 0, model.OrbitalElement{}, fmt.Errorf("%w: id or element is required", ErrInvalidRequest)
	}
}

func requestGMST(req ProjectRequest) (float64, error) {
	if req.Time == "" {
		return req.GMSTRad, nil
	}
	if req.GMSTRad != 0 {
		return 0, fmt.Errorf("%w: set gmst_rad or time, not both", ErrInvalidRequest)
	}
	t, err := time.Parse(time.RFC3339, req.Time)
	if err != nil {
		return 0, fmt.Errorf("%w: time: %v", ErrInvalidRequest, err)
	}
	return core.GMSTAt(t), nil
}

func toResponse(v any) (*structpb.Struct, error) {
	s, err := ToStruct(v)
	if err != nil {
		return nil, ToStatusError(err)
	}
	return s, nil
}

var _ OrbitServiceServer = (*OrbitService)(nil)
