// Package internal contains helper utilities that are intentionally private
// to authcore, including secure random token generation, secret hashing, and
// refresh-token encoding.
//
// # Sub-packages
//
//   - flows — pure-function flow orchestrators for every Engine operation
//   - stores — Redis-backed stores with Lua-scripted atomic transitions
//
// # What this package must NOT do
//
//   - Export types that appear in the public authcore API.
//   - Be imported by any package outside the authcore module.
package internal
