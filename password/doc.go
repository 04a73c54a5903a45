// Package password implements the password hashing primitive consumed by the
// engine, backed by Argon2id.
//
// # Output format
//
// Hashes are encoded in PHC string format:
//
//	$argon2id$v=19$m=<memory>,t=<time>,p=<threads>$<salt>$<hash>
//
// Verification decodes the parameters from the stored hash, so parameter
// changes never invalidate existing credentials. [Hasher.NeedsRehash] reports
// whether a stored hash was produced with weaker parameters than the current
// configuration so callers can re-hash on the next successful verification.
//
// # Architecture boundaries
//
// This package owns hashing and constant-time verification only. Lockout
// counting, credential lookup, and password policy live in the Engine.
//
// # What this package must NOT do
//
//   - Store or retrieve credentials.
//   - Import any other authcore package.
//   - Log plaintext passwords or hash parameters.
package password
