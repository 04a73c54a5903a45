package internaldefs

import (
	authcore "github.com/halverth/authcore"
)

// CounterDef defines a public type used by authcore APIs.
//
// CounterDef instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type CounterDef struct {
	ID   authcore.MetricID
	Name string
	Help string
}

// HistogramDef defines a public type used by authcore APIs.
//
// HistogramDef instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type HistogramDef struct {
	ID   authcore.MetricID
	Name string
	Help string
}

// CounterDefs is an exported constant or variable used by the authentication core.
var CounterDefs = []CounterDef{
	{ID: authcore.MetricFlowStarted, Name: "authcore_flow_started_total", Help: "Authorization flows started."},
	{ID: authcore.MetricFlowRejected, Name: "authcore_flow_rejected_total", Help: "Authorization flow requests rejected."},
	{ID: authcore.MetricApprovalCompleted, Name: "authcore_approval_completed_total", Help: "Approvals completed with a minted code."},
	{ID: authcore.MetricApprovalUnknownState, Name: "authcore_approval_unknown_state_total", Help: "Approvals rejected for unknown or expired state."},
	{ID: authcore.MetricCodeRedeemed, Name: "authcore_code_redeemed_total", Help: "Authorization codes redeemed for token pairs."},
	{ID: authcore.MetricCodeReplayDetected, Name: "authcore_code_replay_detected_total", Help: "Detected authorization code replays."},
	{ID: authcore.MetricCodeBindingRejected, Name: "authcore_code_binding_rejected_total", Help: "Redemptions rejected by client, redirect, or PKCE binding."},
	{ID: authcore.MetricRefreshSuccess, Name: "authcore_refresh_success_total", Help: "Successful refresh rotations."},
	{ID: authcore.MetricRefreshFailure, Name: "authcore_refresh_failure_total", Help: "Failed refresh rotations."},
	{ID: authcore.MetricRefreshReuseDetected, Name: "authcore_refresh_reuse_detected_total", Help: "Detected refresh token reuses."},
	{ID: authcore.MetricFamilyRevoked, Name: "authcore_family_revoked_total", Help: "Token family revocations."},
	{ID: authcore.MetricLoginSuccess, Name: "authcore_login_success_total", Help: "Successful login attempts."},
	{ID: authcore.MetricLoginFailure, Name: "authcore_login_failure_total", Help: "Failed login attempts."},
	{ID: authcore.MetricLoginLocked, Name: "authcore_login_locked_total", Help: "Login attempts denied by lockout."},
	{ID: authcore.MetricIntrospectActive, Name: "authcore_introspect_active_total", Help: "Introspections returning an active token."},
	{ID: authcore.MetricIntrospectRejected, Name: "authcore_introspect_rejected_total", Help: "Introspections returning an inactive token."},
}

// HistogramDefs is an exported constant or variable used by the authentication core.
var HistogramDefs = []HistogramDef{
	{ID: authcore.MetricRedeemLatency, Name: "authcore_redeem_latency_seconds", Help: "Code redemption latency histogram."},
}

// HistogramBounds is an exported constant or variable used by the authentication core.
var HistogramBounds = []string{
	"0.005",
	"0.01",
	"0.025",
	"0.05",
	"0.1",
	"0.25",
	"0.5",
	"+Inf",
}

// HistogramBoundSuffix is an exported constant or variable used by the authentication core.
var HistogramBoundSuffix = []string{
	"0_005",
	"0_01",
	"0_025",
	"0_05",
	"0_1",
	"0_25",
	"0_5",
	"inf",
}

// NormalizeBuckets describes the normalizebuckets operation and its observable behavior.
//
// NormalizeBuckets may return an error when input validation, dependency calls, or security checks fail.
// NormalizeBuckets does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets describes the cumulativebuckets operation and its observable behavior.
//
// CumulativeBuckets may return an error when input validation, dependency calls, or security checks fail.
// CumulativeBuckets does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
