// Package stores contains the Redis-backed state for the authentication
// core: pending authorization requests, one-time authorization codes,
// refresh-token families, and per-account attempt counters.
//
// Every state transition the core depends on for correctness — consuming a
// request, marking a code used, rotating a refresh token, crossing the
// lockout threshold — executes as a single Lua script so that concurrent
// callers observe exactly one winner. The stores never cache records in
// process memory; Redis is the only source of truth.
//
// Clock handling: scripts receive the caller's wall-clock time as an
// argument and compare it against stored expiry fields, so record expiry is
// decided by the core's clock while key TTLs only bound garbage retention.
package stores
