// Package svcfactory defines the ServiceFactory/Service contract the
// binding core produces requests against, plus the error taxonomy surfaced
// across naming failures, shutdown, and cancellation.
package svcfactory

import "context"

// Conn is an opaque client-connection handle passed through Apply. The
// core does not interpret it; it is forwarded to the injected endpoint
// factory verbatim (concrete transport is an external collaborator).
type Conn any

// Service is a request-processing handle produced by a ServiceFactory.
// Req/Rep are left to the caller (protocol framing is out of scope here).
type Service[Req, Rep any] interface {
	// Serve processes one request and returns its response.
	Serve(ctx context.Context, req Req) (Rep, error)
	// Close releases the Service. Implementations must tolerate repeated
	// calls.
	Close(ctx context.Context) error
	// IsAvailable reports whether the Service is currently usable.
	IsAvailable() bool
}

// ServiceFactory produces Services on demand and may itself come and go.
type ServiceFactory[Req, Rep any] interface {
	// Apply yields a Service wired to conn, or an error.
	Apply(ctx context.Context, conn Conn) (Service[Req, Rep], error)
	// Close releases the factory and everything it produced, honoring ctx
	// as a deadline; it must be safe to call more than once.
	Close(ctx context.Context) error
	// IsAvailable reports whether the factory can currently produce live
	// Services.
	IsAvailable() bool
}

// Builder constructs a ServiceFactory for a cache key K. Used by
// cache.FactoryCache to manufacture factories lazily on first miss.
type Builder[K comparable, Req, Rep any] func(key K) (ServiceFactory[Req, Rep], error)
