package orbitrpc

import (
	"context"
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/signalsfoundry/orbit-tracer/catalog"
	"github.com/signalsfoundry/orbit-tracer/core"
	"github.com/signalsfoundry/orbit-tracer/model"
)

var (
	// ErrInvalidRequest marks malformed or contradictory request messages.
	ErrInvalidRequest = errors.New("invalid request")
	// ErrNoCatalog is returned for catalog operations on a server without one.
	ErrNoCatalog = errors.New("catalog not configured")
)

// ToStatusError maps orbit-tracer errors onto gRPC status codes.
func ToStatusError(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}

	switch {
	case errors.Is(err, catalog.ErrNotFound):
		return status.Error(codes.NotFound, err.Error())

	case errors.Is(err, ErrInvalidRequest),
		errors.Is(err, model.ErrDegenerateOrbit),
		errors.Is(err, core.ErrInvalidMu),
		errors.Is(err, core.ErrInvalidSamples):
		return status.Error(codes.InvalidArgument, err.Error())

	case errors.Is(err, ErrNoCatalog):
		return status.Error(codes.FailedPrecondition, err.Error())

	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())

	default:
		return status.Error(codes.Internal, err.Error())
	}
}
