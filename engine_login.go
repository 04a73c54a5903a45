package authcore

import (
	"context"
	"fmt"

	"github.com/halverth/authcore/internal/flows"
)

// CheckAttempt describes the checkattempt operation and its observable behavior.
//
// CheckAttempt may return an error when input validation, dependency calls, or security checks fail.
// CheckAttempt does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) CheckAttempt(ctx context.Context, accountKey string) (AttemptDecision, error) {
	if !e.ready() {
		return AttemptDecision{}, ErrEngineNotReady
	}
	if !e.config.Lockout.Enabled {
		return AttemptDecision{Allowed: true}, nil
	}

	remaining, err := e.attemptStore.CheckLock(ctx, accountKey)
	if err != nil {
		return AttemptDecision{}, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	if remaining > 0 {
		return AttemptDecision{Allowed: false, RetryAfter: remaining}, nil
	}
	return AttemptDecision{Allowed: true}, nil
}

// RecordAttempt describes the recordattempt operation and its observable behavior.
//
// RecordAttempt may return an error when input validation, dependency calls, or security checks fail.
// RecordAttempt does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) RecordAttempt(ctx context.Context, accountKey string, success bool) (AttemptDecision, error) {
	if !e.ready() {
		return AttemptDecision{}, ErrEngineNotReady
	}
	if !e.config.Lockout.Enabled {
		return AttemptDecision{Allowed: true}, nil
	}

	if success {
		if err := e.attemptStore.Reset(ctx, accountKey); err != nil {
			return AttemptDecision{}, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
		}
		return AttemptDecision{Allowed: true}, nil
	}

	outcome, err := e.attemptStore.RecordFailure(
		ctx,
		accountKey,
		e.config.Lockout.Window,
		e.config.Lockout.Threshold,
		e.config.Lockout.LockDuration,
	)
	if err != nil {
		return AttemptDecision{}, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}

	if outcome.Locked {
		e.metricInc(MetricLoginLocked)
		e.emitAudit(ctx, auditEventAccountLocked, false, "", "", "", ErrAccountLocked, func() map[string]string {
			return map[string]string{"key": accountKey}
		})
		return AttemptDecision{Allowed: false, RetryAfter: outcome.LockedFor}, nil
	}

	return AttemptDecision{Allowed: true}, nil
}

// Login describes the login operation and its observable behavior.
//
// Login may return an error when input validation, dependency calls, or security checks fail.
// Login does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) Login(ctx context.Context, identifier, password, clientID string) (*TokenPair, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}
	if e.credentials == nil {
		return nil, ErrEngineNotReady
	}

	result := e.flows.Login(ctx, identifier, password, clientID)

	if result.Failure != flows.LoginFailureNone {
		return nil, e.handleLoginFailure(ctx, clientID, result)
	}

	e.metricInc(MetricLoginSuccess)
	e.emitAudit(ctx, auditEventLoginSuccess, true, result.SubjectID, clientID, result.Pair.FamilyID, nil, nil)

	return &TokenPair{
		AccessToken:  result.Pair.AccessToken,
		RefreshToken: result.Pair.RefreshToken,
		TokenType:    "Bearer",
		ExpiresIn:    result.Pair.ExpiresIn,
	}, nil
}

func (e *Engine) handleLoginFailure(ctx context.Context, clientID string, result flows.LoginResult) error {
	switch result.Failure {
	case flows.LoginFailureLocked:
		e.metricInc(MetricLoginLocked)
		err := fmt.Errorf("%w: retry after %s", ErrAccountLocked, result.RetryAfter)
		e.emitAudit(ctx, auditEventAccountLocked, false, "", clientID, "", err, nil)
		return err
	case flows.LoginFailureBadCredentials:
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, auditEventLoginFailure, false, "", clientID, "", ErrInvalidCredentials, nil)
		return ErrInvalidCredentials
	default:
		e.metricInc(MetricLoginFailure)
		err := fmt.Errorf("%w: %v", ErrBackendUnavailable, result.Err)
		e.emitAudit(ctx, auditEventLoginFailure, false, "", clientID, "", err, nil)
		return err
	}
}
