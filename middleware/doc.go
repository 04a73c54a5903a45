// Package middleware exposes HTTP middleware adapters for bearer-token
// enforcement built on top of authcore.Engine introspection.
//
// # Guards
//
//   - [Guard] — requires an active bearer token on every wrapped route.
//   - [RequireScope] — additionally requires a named scope in the grant.
//
// Each guard reads the Authorization header, calls Engine.Introspect, and
// injects the introspection result into the request context.
//
// # Architecture boundaries
//
// This package translates HTTP semantics into Engine calls. It does NOT
// implement token validation itself — all decisions are delegated to
// Engine.Introspect.
//
// # What this package must NOT do
//
//   - Parse or create JWTs directly (delegates to Engine).
//   - Access Redis (Engine handles I/O).
//   - Make authorization decisions beyond pass/reject from Engine.Introspect.
package middleware
