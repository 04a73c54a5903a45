package authcore

import (
	"context"
	"fmt"
	"time"

	"github.com/halverth/authcore/internal/flows"
)

// StartFlow describes the startflow operation and its observable behavior.
//
// StartFlow may return an error when input validation, dependency calls, or security checks fail.
// StartFlow does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) StartFlow(
	ctx context.Context,
	clientID, redirectURI, codeChallenge, challengeMethod, requestedScope string,
) (*AuthorizationTicket, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}

	result := e.flows.StartFlow(ctx, flows.StartRequest{
		ClientID:        clientID,
		RedirectURI:     redirectURI,
		CodeChallenge:   codeChallenge,
		ChallengeMethod: challengeMethod,
		Scope:           requestedScope,
	})

	if result.Failure != flows.StartFailureNone {
		err := e.mapStartFailure(result)
		e.metricInc(MetricFlowRejected)
		e.emitAudit(ctx, auditEventFlowRejected, false, "", clientID, "", err, nil)
		return nil, err
	}

	e.metricInc(MetricFlowStarted)
	e.emitAudit(ctx, auditEventFlowStarted, true, "", clientID, "", nil, func() map[string]string {
		return map[string]string{"scope": requestedScope}
	})

	return &AuthorizationTicket{
		State:     result.State,
		ExpiresAt: result.ExpiresAt,
	}, nil
}

func (e *Engine) mapStartFailure(result flows.StartResult) error {
	switch result.Failure {
	case flows.StartFailureUnknownClient:
		return ErrInvalidClient
	case flows.StartFailureRedirect:
		return ErrInvalidRedirect
	case flows.StartFailureRequest, flows.StartFailureScope:
		return fmt.Errorf("%w: %v", ErrInvalidRequest, result.Err)
	case flows.StartFailureStateGen:
		return fmt.Errorf("%w: %v", ErrBackendUnavailable, result.Err)
	default:
		return fmt.Errorf("%w: %v", ErrBackendUnavailable, result.Err)
	}
}

// CompleteApproval describes the completeapproval operation and its observable behavior.
//
// CompleteApproval may return an error when input validation, dependency calls, or security checks fail.
// CompleteApproval does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) CompleteApproval(
	ctx context.Context,
	state, subjectID, approvedScope string,
) (*IssuedCode, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}
	if subjectID == "" {
		return nil, fmt.Errorf("%w: empty subject", ErrInvalidRequest)
	}

	result := e.flows.CompleteApproval(ctx, state, subjectID, approvedScope)

	if result.Failure != flows.ApprovalFailureNone {
		var err error
		switch result.Failure {
		case flows.ApprovalFailureUnknownState:
			err = ErrUnknownOrExpiredState
			e.metricInc(MetricApprovalUnknownState)
		case flows.ApprovalFailureScope:
			err = ErrScopeNotGranted
		default:
			err = fmt.Errorf("%w: %v", ErrBackendUnavailable, result.Err)
		}
		e.emitAudit(ctx, auditEventApprovalRejected, false, subjectID, result.ClientID, "", err, nil)
		return nil, err
	}

	e.metricInc(MetricApprovalCompleted)
	e.emitAudit(ctx, auditEventApprovalCompleted, true, subjectID, result.ClientID, "", nil, func() map[string]string {
		return map[string]string{"scope": result.Scope}
	})

	return &IssuedCode{
		Code:        result.Code,
		RedirectURI: result.RedirectURI,
		Scope:       result.Scope,
		ExpiresAt:   result.ExpiresAt,
	}, nil
}

// RedeemCode describes the redeemcode operation and its observable behavior.
//
// RedeemCode may return an error when input validation, dependency calls, or security checks fail.
// RedeemCode does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) RedeemCode(
	ctx context.Context,
	clientID, code, redirectURI, codeVerifier string,
) (*TokenPair, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}

	start := time.Now()

	result := e.flows.RedeemCode(ctx, flows.RedeemRequest{
		Code:         code,
		RedirectURI:  redirectURI,
		CodeVerifier: codeVerifier,
		ClientID:     clientID,
	})

	if e.metrics.LatencyEnabled() {
		e.metrics.Observe(MetricRedeemLatency, time.Since(start))
	}

	if result.Failure != flows.RedeemFailureNone {
		return nil, e.handleRedeemFailure(ctx, clientID, result)
	}

	e.metricInc(MetricCodeRedeemed)
	e.emitAudit(ctx, auditEventCodeRedeemed, true, result.SubjectID, result.ClientID, result.Pair.FamilyID, nil, nil)

	return &TokenPair{
		AccessToken:  result.Pair.AccessToken,
		RefreshToken: result.Pair.RefreshToken,
		TokenType:    "Bearer",
		ExpiresIn:    result.Pair.ExpiresIn,
	}, nil
}

func (e *Engine) handleRedeemFailure(ctx context.Context, clientID string, result flows.RedeemResult) error {
	switch result.Failure {
	case flows.RedeemFailureReplay:
		e.metricInc(MetricCodeReplayDetected)
		if result.ReplayFamilyID != "" {
			e.metricInc(MetricFamilyRevoked)
			e.emitAudit(ctx, auditEventFamilyRevoked, true, "", clientID, result.ReplayFamilyID, nil, func() map[string]string {
				return map[string]string{"cause": "code_replay"}
			})
		}
		e.emitAudit(ctx, auditEventCodeReplay, false, "", clientID, result.ReplayFamilyID, ErrInvalidGrant, nil)
		return ErrInvalidGrant
	case flows.RedeemFailureNotFound, flows.RedeemFailureExpired:
		e.emitAudit(ctx, auditEventCodeRejected, false, "", clientID, "", ErrInvalidGrant, nil)
		return ErrInvalidGrant
	case flows.RedeemFailureBinding:
		e.metricInc(MetricCodeBindingRejected)
		e.emitAudit(ctx, auditEventCodeRejected, false, "", clientID, "", ErrInvalidGrant, func() map[string]string {
			return map[string]string{"cause": bindingCause(result.Err)}
		})
		return ErrInvalidGrant
	default:
		err := fmt.Errorf("%w: %v", ErrBackendUnavailable, result.Err)
		e.emitAudit(ctx, auditEventCodeRejected, false, "", clientID, "", err, nil)
		return err
	}
}

func bindingCause(err error) string {
	if err == nil {
		return "binding"
	}
	return err.Error()
}
