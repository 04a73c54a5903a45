// Package pkce implements Proof Key for Code Exchange (RFC 7636) verifier and
// challenge handling for the authorization code flow.
//
// # Challenge methods
//
// S256 derives the challenge as base64url(SHA-256(verifier)) and is always
// accepted. The plain method passes the verifier through unchanged and must be
// explicitly enabled in engine configuration; production deployments should
// leave it disabled.
//
// # Architecture boundaries
//
// This package owns verifier validation and challenge derivation/comparison.
// Binding a challenge to an authorization code, storing it, and deciding when
// plain is acceptable are handled by the Engine and its stores.
//
// # What this package must NOT do
//
//   - Access Redis or any I/O.
//   - Import authcore, jwt, or the stores.
//   - Generate verifiers (that is the client's job).
package pkce
