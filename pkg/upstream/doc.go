// Package upstream provides the shared HTTP machinery for the two pipeline
// collaborators: the classification service and the generation backend.
//
// Both collaborators are slow (calls may take minutes), so the shared client
// is built around per-call context deadlines, connection pooling, and a
// bounded concurrency semaphore sized to the collaborator's real capacity,
// so the gateway is never the source of unbounded fan-out.
//
// Failures surface as typed errors (TimeoutError, ConnectionError,
// StatusError, DecodeError) so callers can distinguish a timeout from a
// malformed response. The subpackages classifier and generator implement the
// concrete wire contracts.
package upstream
