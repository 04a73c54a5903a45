package flows

import (
	"context"
	"time"
)

// LoginFailureKind classifies credential login failures.
type LoginFailureKind int

const (
	LoginFailureNone LoginFailureKind = iota
	LoginFailureLocked
	LoginFailureBadCredentials
	LoginFailureIssue
	LoginFailureStore
)

// LoginResult carries the issued pair on success, and on lockout the
// remaining lock duration.
type LoginResult struct {
	Failure    LoginFailureKind
	Err        error
	SubjectID  string
	RetryAfter time.Duration
	Locked     bool
	Pair       IssueResult
}

// CredentialRecord is the stored credential for one principal.
type CredentialRecord struct {
	SubjectID    string
	PasswordHash string
	Scope        string
}

// LoginDeps captures the lockout guard, credential source, and verifier the
// login flow runs against [RunLogin].
type LoginDeps struct {
	CheckLock        func(ctx context.Context, key string) (time.Duration, error)
	RecordFailure    func(ctx context.Context, key string) (locked bool, lockedFor time.Duration, err error)
	ResetAttempts    func(ctx context.Context, key string) error
	LookupCredential func(ctx context.Context, identifier string) (*CredentialRecord, error)
	VerifyPassword   func(hash, password string) (bool, error)
	// DummyHash is verified against when the identifier is unknown, so the
	// response time does not reveal which accounts exist.
	DummyHash string
	Issue     IssueDeps
}

// RunLogin authenticates a password credential behind the lockout guard and
// issues a token pair on success. Failures for unknown identifiers count
// against the attempt key exactly like wrong passwords.
func RunLogin(ctx context.Context, identifier, password, clientID string, deps LoginDeps) LoginResult {
	remaining, err := deps.CheckLock(ctx, identifier)
	if err != nil {
		return LoginResult{Failure: LoginFailureStore, Err: err}
	}
	if remaining > 0 {
		return LoginResult{Failure: LoginFailureLocked, Locked: true, RetryAfter: remaining}
	}

	record, err := deps.LookupCredential(ctx, identifier)
	if err != nil {
		return LoginResult{Failure: LoginFailureStore, Err: err}
	}

	matched := false
	if record == nil {
		// Burn comparable work on a throwaway hash before recording the
		// failure.
		_, _ = deps.VerifyPassword(deps.DummyHash, password)
	} else {
		matched, err = deps.VerifyPassword(record.PasswordHash, password)
		if err != nil {
			return LoginResult{Failure: LoginFailureStore, Err: err}
		}
	}

	if !matched {
		locked, lockedFor, err := deps.RecordFailure(ctx, identifier)
		if err != nil {
			return LoginResult{Failure: LoginFailureStore, Err: err}
		}
		if locked {
			return LoginResult{Failure: LoginFailureLocked, Locked: true, RetryAfter: lockedFor}
		}
		return LoginResult{Failure: LoginFailureBadCredentials}
	}

	if err := deps.ResetAttempts(ctx, identifier); err != nil {
		return LoginResult{Failure: LoginFailureStore, Err: err}
	}

	pair, err := RunIssuePair(ctx, record.SubjectID, clientID, record.Scope, deps.Issue)
	if err != nil {
		return LoginResult{Failure: LoginFailureIssue, Err: err, SubjectID: record.SubjectID}
	}

	return LoginResult{SubjectID: record.SubjectID, Pair: pair}
}
