// Package kit holds the small transport-agnostic pieces shared by turc's
// HTTP and MCP surfaces: the Endpoint function shape, middleware chaining,
// and typed context keys.
package kit

import "context"

// Endpoint is a transport-agnostic operation: decoded request in,
// encodable response out.
type Endpoint func(ctx context.Context, req any) (any, error)

// Middleware wraps an Endpoint with cross-cutting behaviour.
type Middleware func(Endpoint) Endpoint

// Chain composes middlewares so the first argument is outermost.
func Chain(mws ...Middleware) Middleware {
	return func(next Endpoint) Endpoint {
		for i := len(mws) - 1; i >= 0; i-- {
			next = mws[i](next)
		}
		return next
	}
}
