// Package flows contains pure-function orchestrators for the engine's
// operations. Each flow receives its collaborators through a Deps struct
// wired once by the root engine and returns a result struct whose failure
// kind the root maps onto public sentinel errors.
//
// Flows hold no state and perform no direct Redis access; every store
// round trip goes through an injected interface so the flows stay testable
// without a backend.
package flows
