package authcore

import (
	"context"
	"fmt"

	"github.com/halverth/authcore/internal/flows"
)

// RotateRefreshToken describes the rotaterefreshtoken operation and its observable behavior.
//
// RotateRefreshToken may return an error when input validation, dependency calls, or security checks fail.
// RotateRefreshToken does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) RotateRefreshToken(ctx context.Context, refreshToken string) (*TokenPair, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}

	result := e.flows.Rotate(ctx, refreshToken)

	if result.Failure != flows.RotateFailureNone {
		return nil, e.handleRotateFailure(ctx, result)
	}

	e.metricInc(MetricRefreshSuccess)
	e.emitAudit(ctx, auditEventTokenRotated, true, result.SubjectID, result.ClientID, result.FamilyID, nil, func() map[string]string {
		return map[string]string{"generation": fmt.Sprint(result.Pair.Generation)}
	})

	return &TokenPair{
		AccessToken:  result.Pair.AccessToken,
		RefreshToken: result.Pair.RefreshToken,
		TokenType:    "Bearer",
		ExpiresIn:    result.Pair.ExpiresIn,
	}, nil
}

func (e *Engine) handleRotateFailure(ctx context.Context, result flows.RotateResult) error {
	switch result.Failure {
	case flows.RotateFailureReuse:
		// The store has already revoked the family; every outstanding
		// token in the lineage is now dead.
		e.metricInc(MetricRefreshReuseDetected)
		e.metricInc(MetricFamilyRevoked)
		e.emitAudit(ctx, auditEventTokenReuse, false, "", "", result.FamilyID, ErrTokenReuseDetected, nil)
		e.emitAudit(ctx, auditEventFamilyRevoked, true, "", "", result.FamilyID, nil, func() map[string]string {
			return map[string]string{"cause": "refresh_reuse"}
		})
		return ErrTokenReuseDetected
	case flows.RotateFailureDecode,
		flows.RotateFailureNotFound,
		flows.RotateFailureExpired,
		flows.RotateFailureRevoked:
		e.metricInc(MetricRefreshFailure)
		e.emitAudit(ctx, auditEventRotationRejected, false, "", "", result.FamilyID, ErrInvalidGrant, nil)
		return ErrInvalidGrant
	default:
		e.metricInc(MetricRefreshFailure)
		err := fmt.Errorf("%w: %v", ErrBackendUnavailable, result.Err)
		e.emitAudit(ctx, auditEventRotationRejected, false, "", "", result.FamilyID, err, nil)
		return err
	}
}

// Revoke describes the revoke operation and its observable behavior.
//
// Revoke may return an error when input validation, dependency calls, or security checks fail.
// Revoke does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) Revoke(ctx context.Context, familyID string) error {
	if !e.ready() {
		return ErrEngineNotReady
	}
	if familyID == "" {
		return fmt.Errorf("%w: empty family id", ErrInvalidRequest)
	}

	if err := e.refreshStore.RevokeFamily(ctx, familyID); err != nil {
		return fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}

	e.metricInc(MetricFamilyRevoked)
	e.emitAudit(ctx, auditEventFamilyRevoked, true, "", "", familyID, nil, func() map[string]string {
		return map[string]string{"cause": "explicit"}
	})

	return nil
}

// Introspect describes the introspect operation and its observable behavior.
//
// Introspect may return an error when input validation, dependency calls, or security checks fail.
// Introspect does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) Introspect(ctx context.Context, accessToken string) (*IntrospectionResult, error) {
	if e == nil || e.jwtManager == nil {
		return nil, ErrEngineNotReady
	}

	claims, err := e.jwtManager.ParseAccess(accessToken)
	if err != nil {
		e.metricInc(MetricIntrospectRejected)
		return &IntrospectionResult{Active: false}, nil
	}

	e.metricInc(MetricIntrospectActive)

	result := &IntrospectionResult{
		Active:     true,
		SubjectID:  claims.Subject,
		Scope:      claims.Scope,
		FamilyID:   claims.FamilyID,
		Generation: claims.Generation,
	}
	if claims.ExpiresAt != nil {
		result.ExpiresAt = claims.ExpiresAt.Time
	}
	return result, nil
}
