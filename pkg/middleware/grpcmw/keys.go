package grpcmw

// TraceKey and RequestKey are the context.Context keys the interceptor
// stores extracted metadata values under. Distinct struct types avoid
// collisions with keys other packages might set on the same
// context.
type TraceKey struct{}

// RequestKey is the context key for the extracted request identifier.
type RequestKey struct{}

// TraceHeader and RequestHeader are the default gRPC metadata keys the
// interceptor reads from, overridable via WithTraceKey/WithRequestKey.
const (
	TraceHeader   = "x-trace-id"
	RequestHeader = "x-request-id"
)
