package grpc

import (
	"context"
	"time"

	"google.golang.org/grpc"
)

// RequestDeadline bounds unary calls that arrive without a client deadline.
// Callers that already set one keep it. A non-positive fallback disables the bound.
func RequestDeadline(fallback time.Duration) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, _ *grpc.UnaryServerInfo, next grpc.UnaryHandler) (any, error) {
		if _, set := ctx.Deadline(); set || fallback <= 0 {
			return next(ctx, req)
		}
		bounded, cancel := context.WithTimeout(ctx, fallback)
		defer cancel()
		return next(bounded, req)
	}
}
