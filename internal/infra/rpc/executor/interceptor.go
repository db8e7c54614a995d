package executor

import (
	"context"

	"github.com/vietddude/cachekit/internal/core/domain"
	"google.golang.org/grpc"
)

// KindFunc maps a full gRPC method name to its operation kind.
type KindFunc func(method string) domain.OperationKind

// UnaryClientInterceptor routes every unary call made on a connection through
// Execute. Calls made with an already-tagged context (x-request-id present) are
// passed through so facade calls are not retried twice.
func (e *Executor) UnaryClientInterceptor(kindOf KindFunc) grpc.UnaryClientInterceptor {
	return func(
		ctx context.Context,
		method string,
		req, reply any,
		cc *grpc.ClientConn,
		invoker grpc.UnaryInvoker,
		opts ...grpc.CallOption,
	) error {
		if hasRequestID(ctx) {
			return invoker(ctx, method, req, reply, cc, opts...)
		}

		kind := domain.OperationRead
		if kindOf != nil {
			kind = kindOf(method)
		}

		_, err := e.Execute(ctx, Operation{
			Name: method,
			Kind: kind,
			Invoke: func(ctx context.Context) (any, error) {
				return nil, invoker(ctx, method, req, reply, cc, opts...)
			},
		})
		return err
	}
}
