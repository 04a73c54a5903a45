package flows

import (
	"context"
	"errors"
	"time"

	"github.com/halverth/authcore/internal/stores"
)

// StartFailureKind classifies StartFlow failures for root-level mapping.
type StartFailureKind int

const (
	StartFailureNone StartFailureKind = iota
	StartFailureUnknownClient
	StartFailureRedirect
	StartFailureRequest
	StartFailureScope
	StartFailureStateGen
	StartFailureStore
)

// StartResult carries the persisted handshake or failure metadata.
type StartResult struct {
	Failure   StartFailureKind
	Err       error
	State     string
	ExpiresAt time.Time
}

// ClientInfo is the per-client configuration the flows validate against.
type ClientInfo struct {
	RedirectURIs []string
}

// AuthorizeRequestStore is the slice of the store the authorize flows need.
type AuthorizeRequestStore interface {
	SaveRequest(ctx context.Context, state string, req *stores.AuthorizationRequest, ttl time.Duration) error
	ConsumeRequest(ctx context.Context, state string, now time.Time) (*stores.AuthorizationRequest, error)
	SaveCode(ctx context.Context, codeHash [32]byte, code *stores.AuthorizationCode, ttl time.Duration) error
	RedeemCode(ctx context.Context, codeHash [32]byte, now time.Time, retention time.Duration) (*stores.AuthorizationCode, string, error)
	BindFamily(ctx context.Context, codeHash [32]byte, familyID string) error
}

// StartDeps captures StartFlow dependencies.
type StartDeps struct {
	LookupClient   func(clientID string) (ClientInfo, bool)
	ValidateScope  func(requested string) error
	ValidateMethod func(method string) error
	NewState       func() (string, error)
	RequestTTL     time.Duration
	Now            func() time.Time
	Store          AuthorizeRequestStore
}

// StartRequest is the validated input to RunStartFlow.
type StartRequest struct {
	ClientID        string
	RedirectURI     string
	CodeChallenge   string
	ChallengeMethod string
	Scope           string
}

// RunStartFlow validates the client binding and persists the pending
// authorization request under a fresh state value.
func RunStartFlow(ctx context.Context, req StartRequest, deps StartDeps) StartResult {
	client, ok := deps.LookupClient(req.ClientID)
	if !ok {
		return StartResult{Failure: StartFailureUnknownClient, Err: errors.New("unknown client")}
	}

	if !redirectAllowed(req.RedirectURI, client.RedirectURIs) {
		return StartResult{Failure: StartFailureRedirect, Err: errors.New("redirect uri not allow-listed")}
	}

	if req.CodeChallenge == "" {
		return StartResult{Failure: StartFailureRequest, Err: errors.New("missing code challenge")}
	}
	if err := deps.ValidateMethod(req.ChallengeMethod); err != nil {
		return StartResult{Failure: StartFailureRequest, Err: err}
	}

	if err := deps.ValidateScope(req.Scope); err != nil {
		return StartResult{Failure: StartFailureScope, Err: err}
	}

	state, err := deps.NewState()
	if err != nil {
		return StartResult{Failure: StartFailureStateGen, Err: err}
	}

	now := deps.Now()
	expiresAt := now.Add(deps.RequestTTL)
	record := &stores.AuthorizationRequest{
		ClientID:        req.ClientID,
		RedirectURI:     req.RedirectURI,
		CodeChallenge:   req.CodeChallenge,
		ChallengeMethod: req.ChallengeMethod,
		Scope:           req.Scope,
		ExpiresAt:       expiresAt.Unix(),
	}
	if err := deps.Store.SaveRequest(ctx, state, record, deps.RequestTTL); err != nil {
		return StartResult{Failure: StartFailureStore, Err: err}
	}

	return StartResult{State: state, ExpiresAt: expiresAt}
}

// ApprovalFailureKind classifies CompleteApproval failures.
type ApprovalFailureKind int

const (
	ApprovalFailureNone ApprovalFailureKind = iota
	ApprovalFailureUnknownState
	ApprovalFailureScope
	ApprovalFailureCodeGen
	ApprovalFailureStore
)

// ApprovalResult carries the minted code or failure metadata.
type ApprovalResult struct {
	Failure     ApprovalFailureKind
	Err         error
	Code        string
	ClientID    string
	RedirectURI string
	Scope       string
	ExpiresAt   time.Time
}

// ApprovalDeps captures CompleteApproval dependencies.
type ApprovalDeps struct {
	NewCode       func() (string, error)
	HashToken     func(string) [32]byte
	ScopeIsSubset func(sub, super string) bool
	CodeTTL       time.Duration
	Now           func() time.Time
	Store         AuthorizeRequestStore
}

// RunCompleteApproval consumes the pending request (single use) and mints a
// one-time authorization code bound to the request's redirect and challenge.
func RunCompleteApproval(ctx context.Context, state, subjectID, approvedScope string, deps ApprovalDeps) ApprovalResult {
	now := deps.Now()

	req, err := deps.Store.ConsumeRequest(ctx, state, now)
	if err != nil {
		switch {
		case errors.Is(err, stores.ErrRequestNotFound), errors.Is(err, stores.ErrRequestExpired):
			return ApprovalResult{Failure: ApprovalFailureUnknownState, Err: err}
		default:
			return ApprovalResult{Failure: ApprovalFailureStore, Err: err}
		}
	}

	// The request is already consumed at this point; a scope violation
	// aborts the flow entirely rather than leaving a resumable handshake.
	if !deps.ScopeIsSubset(approvedScope, req.Scope) {
		return ApprovalResult{Failure: ApprovalFailureScope, Err: errors.New("approved scope exceeds requested scope")}
	}

	code, err := deps.NewCode()
	if err != nil {
		return ApprovalResult{Failure: ApprovalFailureCodeGen, Err: err}
	}

	expiresAt := now.Add(deps.CodeTTL)
	record := &stores.AuthorizationCode{
		ClientID:        req.ClientID,
		RedirectURI:     req.RedirectURI,
		CodeChallenge:   req.CodeChallenge,
		ChallengeMethod: req.ChallengeMethod,
		SubjectID:       subjectID,
		Scope:           approvedScope,
		ExpiresAt:       expiresAt.Unix(),
	}
	if err := deps.Store.SaveCode(ctx, deps.HashToken(code), record, deps.CodeTTL); err != nil {
		return ApprovalResult{Failure: ApprovalFailureStore, Err: err}
	}

	return ApprovalResult{
		Code:        code,
		ClientID:    req.ClientID,
		RedirectURI: req.RedirectURI,
		Scope:       approvedScope,
		ExpiresAt:   expiresAt,
	}
}

// RedeemFailureKind classifies RedeemCode failures.
type RedeemFailureKind int

const (
	RedeemFailureNone RedeemFailureKind = iota
	RedeemFailureNotFound
	RedeemFailureExpired
	RedeemFailureReplay
	RedeemFailureBinding
	RedeemFailureIssue
	RedeemFailureStore
)

// RedeemResult carries the first token pair of a fresh family or failure
// metadata. ReplayFamilyID is set when a replayed code caused a cascade
// revocation.
type RedeemResult struct {
	Failure        RedeemFailureKind
	Err            error
	SubjectID      string
	ClientID       string
	Scope          string
	ReplayFamilyID string
	Pair           IssueResult
}

// RedeemDeps captures RedeemCode dependencies.
type RedeemDeps struct {
	HashToken       func(string) [32]byte
	VerifyChallenge func(verifier, challenge, method string) bool
	RevokeFamily    func(ctx context.Context, familyID string) error
	SpentRetention  time.Duration
	Now             func() time.Time
	Store           AuthorizeRequestStore
	Issue           IssueDeps
}

// RedeemRequest is the validated input to RunRedeemCode.
type RedeemRequest struct {
	Code         string
	RedirectURI  string
	CodeVerifier string
	ClientID     string
}

// RunRedeemCode atomically marks the code used, verifies the client,
// redirect, and PKCE bindings, then mints a new token family. A replayed
// code revokes the family issued by the first redemption before the error
// propagates.
func RunRedeemCode(ctx context.Context, req RedeemRequest, deps RedeemDeps) RedeemResult {
	now := deps.Now()
	codeHash := deps.HashToken(req.Code)

	record, replayFamily, err := deps.Store.RedeemCode(ctx, codeHash, now, deps.SpentRetention)
	if err != nil {
		switch {
		case errors.Is(err, stores.ErrCodeNotFound):
			return RedeemResult{Failure: RedeemFailureNotFound, Err: err}
		case errors.Is(err, stores.ErrCodeExpired):
			return RedeemResult{Failure: RedeemFailureExpired, Err: err}
		case errors.Is(err, stores.ErrCodeAlreadyUsed):
			result := RedeemResult{Failure: RedeemFailureReplay, Err: err, ReplayFamilyID: replayFamily}
			if replayFamily != "" {
				// Cascade revocation is mandatory and runs before the
				// error is surfaced.
				if revokeErr := deps.RevokeFamily(ctx, replayFamily); revokeErr != nil {
					result.Failure = RedeemFailureStore
					result.Err = revokeErr
				}
			}
			return result
		default:
			return RedeemResult{Failure: RedeemFailureStore, Err: err}
		}
	}

	// The code is burned already: binding failures below consume it.
	if record.ClientID != req.ClientID {
		return RedeemResult{Failure: RedeemFailureBinding, Err: errors.New("client mismatch")}
	}
	if record.RedirectURI != req.RedirectURI {
		return RedeemResult{Failure: RedeemFailureBinding, Err: errors.New("redirect uri mismatch")}
	}
	if !deps.VerifyChallenge(req.CodeVerifier, record.CodeChallenge, record.ChallengeMethod) {
		return RedeemResult{Failure: RedeemFailureBinding, Err: errors.New("pkce verification failed")}
	}

	pair, err := RunIssuePair(ctx, record.SubjectID, record.ClientID, record.Scope, deps.Issue)
	if err != nil {
		return RedeemResult{Failure: RedeemFailureIssue, Err: err}
	}

	if err := deps.Store.BindFamily(ctx, codeHash, pair.FamilyID); err != nil {
		return RedeemResult{Failure: RedeemFailureStore, Err: err}
	}

	return RedeemResult{
		SubjectID: record.SubjectID,
		ClientID:  record.ClientID,
		Scope:     record.Scope,
		Pair:      pair,
	}
}

func redirectAllowed(uri string, allowed []string) bool {
	// Exact string match only: trailing slash, scheme, and port variants
	// are all distinct URIs.
	for _, a := range allowed {
		if uri == a {
			return true
		}
	}
	return false
}
