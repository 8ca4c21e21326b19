package api

import (
	"context"
	"errors"

	"github.com/solatis/framekeeper/internal/types"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// toStatus maps engine errors to gRPC status errors.
//
//	unknown schema             NOT_FOUND
//	schema/override mismatch   INVALID_ARGUMENT
//	sampling exhausted         RESOURCE_EXHAUSTED
//	bad schema definition      INTERNAL
//	context expiry             DEADLINE_EXCEEDED / CANCELED
func toStatus(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}
	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return status.FromContextError(err).Err()
	case errors.Is(err, types.ErrUnknownSchema):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, types.ErrSchema),
		errors.Is(err, types.ErrInvalidOverrides),
		errors.Is(err, types.ErrCoercionFailed):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, types.ErrSamplingExhausted):
		return status.Error(codes.ResourceExhausted, err.Error())
	case errors.Is(err, types.ErrImplementation):
		return status.Error(codes.Internal, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}
