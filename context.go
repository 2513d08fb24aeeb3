package authflow

import "context"

type requestIDContextKey struct{}

// WithRequestID attaches a correlation ID to ctx. The [Client] sends it as
// X-Request-ID on every provider call and the audit dispatcher records it;
// when absent a fresh UUID is generated per request.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDContextKey{}, id)
}

func requestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(requestIDContextKey{}).(string)
	return id
}
