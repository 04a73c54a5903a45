package authcore

import (
	"context"
	"io"
	"time"

	internalaudit "github.com/halverth/authcore/internal/audit"
)

// Client is a registered OAuth2 client with its redirect allow-list.
// Redirect matching is exact string comparison against RedirectURIs.
type Client struct {
	ID           string
	RedirectURIs []string
}

// TokenPair is returned whenever the engine mints or rotates tokens: a
// signed access token plus the single currently-valid refresh token of the
// family.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
	TokenType    string
	ExpiresIn    time.Duration
}

// AuthorizationTicket is returned by [Engine.StartFlow]. The State value is
// the single-use handle the authorization UI must present back through
// [Engine.CompleteApproval].
type AuthorizationTicket struct {
	State     string
	ExpiresAt time.Time
}

// IssuedCode is returned by [Engine.CompleteApproval]. The Code is
// single-use and bound to the client, redirect URI, and PKCE challenge of
// the originating request.
type IssuedCode struct {
	Code        string
	RedirectURI string
	Scope       string
	ExpiresAt   time.Time
}

// IntrospectionResult is returned by [Engine.Introspect]. When Active is
// false the remaining fields are zero.
type IntrospectionResult struct {
	Active     bool
	SubjectID  string
	Scope      string
	FamilyID   string
	Generation uint32
	ExpiresAt  time.Time
}

// AttemptDecision is returned by [Engine.CheckAttempt]. RetryAfter is
// nonzero only when Allowed is false.
type AttemptDecision struct {
	Allowed    bool
	RetryAfter time.Duration
}

// Credential is the stored credential record returned by a
// [CredentialProvider].
type Credential struct {
	SubjectID    string
	PasswordHash string
	Scope        string
}

// CredentialProvider is the interface callers implement to integrate
// authcore with their account database. Lookup returns (nil, nil) for
// unknown identifiers; the engine treats that as a failed attempt without
// revealing account existence to the caller.
type CredentialProvider interface {
	Lookup(ctx context.Context, identifier string) (*Credential, error)
}

// SecurityReport is a read-only snapshot of the engine’s security posture,
// returned by [Engine.SecurityReport].
type SecurityReport struct {
	ProductionMode   bool
	SigningAlgorithm string
	AccessTTL        time.Duration
	RefreshTTL       time.Duration
	Argon2           PasswordConfigReport
	PlainPKCEAllowed bool
	ReuseDetection   bool
	LockoutActive    bool
	AuditActive      bool
	MetricsActive    bool
}

// PasswordConfigReport contains the Argon2 parameters active in the engine.
type PasswordConfigReport struct {
	Memory      uint32
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// AuditEvent is a structured audit record emitted by the engine.
type AuditEvent = internalaudit.Event

// AuditSink receives [AuditEvent] values from the engine’s audit dispatcher.
type AuditSink = internalaudit.Sink

// NoOpSink is an [AuditSink] that silently discards all events.
type NoOpSink = internalaudit.NoOpSink

// ChannelSink is a buffered channel-based [AuditSink].
type ChannelSink = internalaudit.ChannelSink

// JSONWriterSink is an [AuditSink] that writes JSON-encoded events to an
// [io.Writer].
type JSONWriterSink = internalaudit.JSONWriterSink

// NewChannelSink creates a [ChannelSink] with the given buffer capacity.
func NewChannelSink(buffer int) *ChannelSink {
	return internalaudit.NewChannelSink(buffer)
}

// NewJSONWriterSink creates a [JSONWriterSink] that writes to w.
func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return internalaudit.NewJSONWriterSink(w)
}
