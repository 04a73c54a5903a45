// Package authcore provides an authorization-code security core with CSRF-bound
// handshakes, PKCE-verified code redemption, JWT access tokens, rotating opaque
// refresh tokens with reuse cascade revocation, and Redis-backed brute-force
// lockout.
//
// The package is designed for concurrent server workloads: Engine methods are safe to call
// from multiple goroutines after initialization through [Builder.Build].
//
// # Architecture boundaries
//
// authcore is the public surface. It exposes [Engine], [Builder], [Config], and value types
// (TokenPair, IntrospectionResult, etc.). All internal coordination — flow orchestration,
// atomic store scripts, audit dispatch — lives under internal/ and is never exported.
//
// # What this package must NOT do
//
//   - Expose Redis clients, internal stores, or encoding details in its public API.
//   - Perform I/O outside of Engine methods (construction via Builder is allocation-only
//     until Build).
//   - Import any sub-package that re-imports authcore (no import cycles).
//
// # Performance contract
//
// Introspect is the hot path. It validates signature and expiry with no Redis
// round-trip. StartFlow, CompleteApproval, RedeemCode, RotateRefreshToken, and
// Login are allowed one Redis round-trip per call; each single-use transition
// runs as one server-side script so concurrent presenters race atomically.
package authcore
