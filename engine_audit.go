package authcore

import (
	"context"
	"errors"
	"time"
)

const (
	auditEventFlowStarted       = "flow_started"
	auditEventFlowRejected      = "flow_rejected"
	auditEventApprovalCompleted = "approval_completed"
	auditEventApprovalRejected  = "approval_rejected"
	auditEventCodeRedeemed      = "code_redeemed"
	auditEventCodeReplay        = "code_replay"
	auditEventCodeRejected      = "code_rejected"
	auditEventTokenRotated      = "token_rotated"
	auditEventTokenReuse        = "token_reuse"
	auditEventRotationRejected  = "rotation_rejected"
	auditEventFamilyRevoked     = "family_revoked"
	auditEventLoginSuccess      = "login_success"
	auditEventLoginFailure      = "login_failure"
	auditEventAccountLocked     = "account_locked"
)

// AuditErrorCode defines a public type used by authcore APIs.
//
// AuditErrorCode instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type AuditErrorCode string

const (
	auditErrInvalidClient      AuditErrorCode = "invalid_client"
	auditErrInvalidRedirect    AuditErrorCode = "invalid_redirect"
	auditErrInvalidRequest     AuditErrorCode = "invalid_request"
	auditErrUnknownState       AuditErrorCode = "unknown_state"
	auditErrScopeNotGranted    AuditErrorCode = "scope_not_granted"
	auditErrInvalidGrant       AuditErrorCode = "invalid_grant"
	auditErrReuseDetected      AuditErrorCode = "reuse_detected"
	auditErrInvalidCredentials AuditErrorCode = "invalid_credentials"
	auditErrAccountLocked      AuditErrorCode = "account_locked"
	auditErrInvalidToken       AuditErrorCode = "invalid_token"
	auditErrUnavailable        AuditErrorCode = "backend_unavailable"
	auditErrInternal           AuditErrorCode = "internal_error"
)

func (e *Engine) emitAudit(
	ctx context.Context,
	eventType string,
	success bool,
	subjectID string,
	clientID string,
	familyID string,
	err error,
	metadataBuilder func() map[string]string,
) {
	if e == nil || e.audit == nil {
		return
	}

	var metadata map[string]string
	if metadataBuilder != nil {
		metadata = metadataBuilder()
	}

	event := AuditEvent{
		Timestamp: time.Now().UTC(),
		EventType: eventType,
		SubjectID: subjectID,
		ClientID:  clientID,
		FamilyID:  familyID,
		IP:        clientIPFromContext(ctx),
		Success:   success,
		Metadata:  metadata,
	}
	if code := auditErrorCode(err); code != "" {
		event.Error = string(code)
	}

	e.audit.Emit(ctx, event)
}

func auditErrorCode(err error) AuditErrorCode {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, ErrInvalidClient):
		return auditErrInvalidClient
	case errors.Is(err, ErrInvalidRedirect):
		return auditErrInvalidRedirect
	case errors.Is(err, ErrInvalidRequest):
		return auditErrInvalidRequest
	case errors.Is(err, ErrUnknownOrExpiredState):
		return auditErrUnknownState
	case errors.Is(err, ErrScopeNotGranted):
		return auditErrScopeNotGranted
	case errors.Is(err, ErrTokenReuseDetected):
		return auditErrReuseDetected
	case errors.Is(err, ErrInvalidGrant):
		return auditErrInvalidGrant
	case errors.Is(err, ErrInvalidCredentials):
		return auditErrInvalidCredentials
	case errors.Is(err, ErrAccountLocked):
		return auditErrAccountLocked
	case errors.Is(err, ErrTokenInvalid):
		return auditErrInvalidToken
	case errors.Is(err, ErrBackendUnavailable):
		return auditErrUnavailable
	default:
		return auditErrInternal
	}
}
