package flows

import (
	"context"
	"errors"
	"time"

	"github.com/halverth/authcore/internal/stores"
)

// FamilyStore is the slice of the refresh store the token flows need.
type FamilyStore interface {
	CreateFamily(ctx context.Context, fam *stores.Family, firstSecretHash [32]byte, ttl time.Duration, now time.Time) error
	Rotate(ctx context.Context, providedHash, nextHash [32]byte, ttl, retention time.Duration, now time.Time) (*stores.Rotation, error)
	RevokeFamily(ctx context.Context, familyID string) error
}

// IssueDeps captures pair-issuance dependencies shared by the redeem,
// rotate, and login flows.
type IssueDeps struct {
	NewFamilyID        func() string
	NewSecret          func() ([32]byte, error)
	HashSecret         func([32]byte) [32]byte
	EncodeRefreshToken func(familyID string, secret [32]byte) (string, error)
	IssueAccess        func(subjectID, scope, familyID string, generation uint32) (string, error)
	RefreshTTL         time.Duration
	AccessTTL          time.Duration
	Now                func() time.Time
	Store              FamilyStore
}

// IssueResult is a freshly minted token pair. RefreshToken holds the raw
// refresh value; this is the only moment it exists outside the client.
type IssueResult struct {
	FamilyID     string
	Generation   uint32
	AccessToken  string
	RefreshToken string
	ExpiresIn    time.Duration
}

// RunIssuePair creates a new token family at generation zero and mints its
// first access/refresh pair.
func RunIssuePair(ctx context.Context, subjectID, clientID, grantedScope string, deps IssueDeps) (IssueResult, error) {
	familyID := deps.NewFamilyID()

	secret, err := deps.NewSecret()
	if err != nil {
		return IssueResult{}, err
	}

	fam := &stores.Family{
		FamilyID:  familyID,
		SubjectID: subjectID,
		ClientID:  clientID,
		Scope:     grantedScope,
	}
	if err := deps.Store.CreateFamily(ctx, fam, deps.HashSecret(secret), deps.RefreshTTL, deps.Now()); err != nil {
		return IssueResult{}, err
	}

	access, err := deps.IssueAccess(subjectID, grantedScope, familyID, 0)
	if err != nil {
		return IssueResult{}, err
	}

	refresh, err := deps.EncodeRefreshToken(familyID, secret)
	if err != nil {
		return IssueResult{}, err
	}

	return IssueResult{
		FamilyID:     familyID,
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresIn:    deps.AccessTTL,
	}, nil
}

// RotateFailureKind classifies refresh rotation failures.
type RotateFailureKind int

const (
	RotateFailureNone RotateFailureKind = iota
	RotateFailureDecode
	RotateFailureNotFound
	RotateFailureExpired
	RotateFailureRevoked
	RotateFailureReuse
	RotateFailureNextSecret
	RotateFailureIssue
	RotateFailureStore
)

// RotateResult carries the next-generation pair or failure metadata.
type RotateResult struct {
	Failure   RotateFailureKind
	Err       error
	SubjectID string
	ClientID  string
	Scope     string
	FamilyID  string
	Pair      IssueResult
}

// RotateDeps captures rotation dependencies.
type RotateDeps struct {
	DecodeRefreshToken func(string) (string, [32]byte, error)
	NewSecret          func() ([32]byte, error)
	HashSecret         func([32]byte) [32]byte
	EncodeRefreshToken func(familyID string, secret [32]byte) (string, error)
	IssueAccess        func(subjectID, scope, familyID string, generation uint32) (string, error)
	RefreshTTL         time.Duration
	AccessTTL          time.Duration
	SpentRetention     time.Duration
	Now                func() time.Time
	Store              FamilyStore
}

// RunRotate executes one refresh rotation. The mark-used and create-next
// transition is atomic in the store; this flow only decodes, delegates,
// and mints the replacement pair.
func RunRotate(ctx context.Context, rawToken string, deps RotateDeps) RotateResult {
	tokenFamily, secret, err := deps.DecodeRefreshToken(rawToken)
	if err != nil {
		return RotateResult{Failure: RotateFailureDecode, Err: err}
	}

	nextSecret, err := deps.NewSecret()
	if err != nil {
		return RotateResult{Failure: RotateFailureNextSecret, Err: err}
	}

	rot, err := deps.Store.Rotate(
		ctx,
		deps.HashSecret(secret),
		deps.HashSecret(nextSecret),
		deps.RefreshTTL,
		deps.SpentRetention,
		deps.Now(),
	)
	if err != nil {
		switch {
		case errors.Is(err, stores.ErrRefreshNotFound):
			return RotateResult{Failure: RotateFailureNotFound, Err: err, FamilyID: tokenFamily}
		case errors.Is(err, stores.ErrRefreshExpired):
			return RotateResult{Failure: RotateFailureExpired, Err: err, FamilyID: tokenFamily}
		case errors.Is(err, stores.ErrFamilyRevoked):
			return RotateResult{Failure: RotateFailureRevoked, Err: err, FamilyID: tokenFamily}
		case errors.Is(err, stores.ErrRefreshReused):
			return RotateResult{Failure: RotateFailureReuse, Err: err, FamilyID: tokenFamily}
		default:
			return RotateResult{Failure: RotateFailureStore, Err: err, FamilyID: tokenFamily}
		}
	}

	// A record reachable under a foreign family id means a malformed or
	// spliced token; treat it like any other invalid grant.
	if rot.FamilyID != tokenFamily {
		return RotateResult{Failure: RotateFailureNotFound, Err: errors.New("family binding mismatch"), FamilyID: tokenFamily}
	}

	access, err := deps.IssueAccess(rot.SubjectID, rot.Scope, rot.FamilyID, rot.Generation)
	if err != nil {
		return RotateResult{Failure: RotateFailureIssue, Err: err, FamilyID: rot.FamilyID}
	}

	refresh, err := deps.EncodeRefreshToken(rot.FamilyID, nextSecret)
	if err != nil {
		return RotateResult{Failure: RotateFailureIssue, Err: err, FamilyID: rot.FamilyID}
	}

	return RotateResult{
		SubjectID: rot.SubjectID,
		ClientID:  rot.ClientID,
		Scope:     rot.Scope,
		FamilyID:  rot.FamilyID,
		Pair: IssueResult{
			FamilyID:     rot.FamilyID,
			Generation:   rot.Generation,
			AccessToken:  access,
			RefreshToken: refresh,
			ExpiresIn:    deps.AccessTTL,
		},
	}
}
