// Package scope implements the scope vocabulary used by the authorization
// flow: a registry of known scope names frozen at engine build time, parsing
// of space-delimited scope strings, and subset checks for approval narrowing.
package scope
