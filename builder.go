package authcore

import (
	"context"
	"errors"
	"time"

	"github.com/halverth/authcore/internal"
	internalaudit "github.com/halverth/authcore/internal/audit"
	"github.com/halverth/authcore/internal/flows"
	"github.com/halverth/authcore/internal/stores"
	"github.com/halverth/authcore/jwt"
	"github.com/halverth/authcore/password"
	"github.com/halverth/authcore/pkce"
	"github.com/halverth/authcore/scope"
	"github.com/redis/go-redis/v9"
)

// Builder defines a public type used by authcore APIs.
//
// Builder instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Builder struct {
	config Config
	redis  redis.UniversalClient

	clients []Client
	scopes  []string

	credentials CredentialProvider
	auditSink   AuditSink

	built bool
}

// New describes the new operation and its observable behavior.
//
// New may return an error when input validation, dependency calls, or security checks fail.
// New does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

// WithConfig describes the withconfig operation and its observable behavior.
//
// WithConfig may return an error when input validation, dependency calls, or security checks fail.
// WithConfig does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis describes the withredis operation and its observable behavior.
//
// WithRedis may return an error when input validation, dependency calls, or security checks fail.
// WithRedis does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithClients describes the withclients operation and its observable behavior.
//
// WithClients may return an error when input validation, dependency calls, or security checks fail.
// WithClients does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithClients(clients []Client) *Builder {
	b.clients = clients
	return b
}

// WithScopes describes the withscopes operation and its observable behavior.
//
// WithScopes may return an error when input validation, dependency calls, or security checks fail.
// WithScopes does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithScopes(names []string) *Builder {
	b.scopes = names
	return b
}

// WithCredentialProvider describes the withcredentialprovider operation and its observable behavior.
//
// WithCredentialProvider may return an error when input validation, dependency calls, or security checks fail.
// WithCredentialProvider does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithCredentialProvider(cp CredentialProvider) *Builder {
	b.credentials = cp
	return b
}

// WithAuditSink describes the withauditsink operation and its observable behavior.
//
// WithAuditSink may return an error when input validation, dependency calls, or security checks fail.
// WithAuditSink does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithMetricsEnabled describes the withmetricsenabled operation and its observable behavior.
//
// WithMetricsEnabled may return an error when input validation, dependency calls, or security checks fail.
// WithMetricsEnabled does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// WithLatencyHistograms describes the withlatencyhistograms operation and its observable behavior.
//
// WithLatencyHistograms may return an error when input validation, dependency calls, or security checks fail.
// WithLatencyHistograms does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build describes the build operation and its observable behavior.
//
// Build may return an error when input validation, dependency calls, or security checks fail.
// Build does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)

	if b.redis == nil {
		return nil, errors.New("redis client required")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if len(b.clients) == 0 {
		return nil, errors.New("clients must be provided")
	}
	if len(b.scopes) == 0 {
		return nil, errors.New("scopes must be provided")
	}

	// -------- SCOPE REGISTRY --------
	registry := scope.NewRegistry()
	for _, name := range b.scopes {
		if err := registry.Register(name); err != nil {
			return nil, err
		}
	}
	registry.Freeze()

	// -------- CLIENT TABLE --------
	clients := make(map[string]Client, len(b.clients))
	for _, c := range b.clients {
		if c.ID == "" {
			return nil, errors.New("client with empty ID")
		}
		if len(c.RedirectURIs) == 0 {
			return nil, errors.New("client " + c.ID + " has no redirect URIs")
		}
		if _, dup := clients[c.ID]; dup {
			return nil, errors.New("duplicate client ID " + c.ID)
		}
		clients[c.ID] = c
	}

	// -------- STORES --------
	authorizeStore := stores.NewAuthorizeStore(b.redis, cfg.Token.RedisPrefix)
	refreshStore := stores.NewRefreshStore(b.redis, cfg.Token.RedisPrefix)
	attemptStore := stores.NewAttemptStore(b.redis, cfg.Token.RedisPrefix)

	engine := &Engine{
		config:         cfg,
		scopes:         registry,
		clients:        clients,
		authorizeStore: authorizeStore,
		refreshStore:   refreshStore,
		attemptStore:   attemptStore,
	}

	engine.credentials = b.credentials
	engine.audit = internalaudit.NewDispatcher(internalaudit.Config{
		Enabled:    cfg.Audit.Enabled,
		BufferSize: cfg.Audit.BufferSize,
		DropIfFull: cfg.Audit.DropIfFull,
	}, b.auditSink)
	engine.metrics = NewMetrics(cfg.Metrics)

	ph, err := password.NewHasher(password.Params{
		Memory:      cfg.Password.Memory,
		Time:        cfg.Password.Time,
		Parallelism: cfg.Password.Parallelism,
		SaltLength:  cfg.Password.SaltLength,
		KeyLength:   cfg.Password.KeyLength,
	})
	if err != nil {
		return nil, err
	}
	engine.passwordHash = ph

	// Hashed once so unknown identifiers cost the same as wrong passwords.
	dummy, err := ph.Hash("authcore.dummy.credential")
	if err != nil {
		return nil, err
	}
	engine.dummyHash = dummy

	jm, err := jwt.NewManager(jwt.Config{
		AccessTTL:     cfg.JWT.AccessTTL,
		SigningMethod: jwt.SigningMethod(cfg.JWT.SigningMethod),
		PrivateKey:    cloneBytes(cfg.JWT.PrivateKey),
		PublicKey:     cloneBytes(cfg.JWT.PublicKey),
		Issuer:        cfg.JWT.Issuer,
		Audience:      cfg.JWT.Audience,
		Leeway:        cfg.JWT.Leeway,
		KeyID:         cfg.JWT.KeyID,
		VerifyKeys:    cfg.JWT.VerifyKeys,
	})
	if err != nil {
		return nil, err
	}
	engine.jwtManager = jm

	engine.flows = flows.New(b.flowDeps(engine))

	b.built = true

	return engine, nil
}

func (b *Builder) flowDeps(engine *Engine) flows.Deps {
	cfg := engine.config

	issue := flows.IssueDeps{
		NewFamilyID:        internal.NewFamilyID,
		NewSecret:          internal.NewRefreshSecret,
		HashSecret:         internal.HashSecret,
		EncodeRefreshToken: internal.EncodeRefreshToken,
		IssueAccess:        engine.jwtManager.CreateAccess,
		RefreshTTL:         cfg.Token.RefreshTTL,
		AccessTTL:          cfg.JWT.AccessTTL,
		Now:                time.Now,
		Store:              engine.refreshStore,
	}

	lookupClient := func(clientID string) (flows.ClientInfo, bool) {
		c, ok := engine.clients[clientID]
		if !ok {
			return flows.ClientInfo{}, false
		}
		return flows.ClientInfo{RedirectURIs: c.RedirectURIs}, true
	}

	validateMethod := func(raw string) error {
		m, err := pkce.ParseMethod(raw)
		if err != nil {
			return err
		}
		if m == pkce.MethodPlain && !cfg.Flow.AllowPlainPKCE {
			return errors.New("plain code challenges are disabled")
		}
		return nil
	}

	verifyChallenge := func(verifier, challenge, method string) bool {
		m, err := pkce.ParseMethod(method)
		if err != nil {
			return false
		}
		if err := pkce.ValidateVerifier(verifier); err != nil {
			return false
		}
		return pkce.VerifyChallenge(verifier, challenge, m)
	}

	checkLock := func(ctx context.Context, key string) (time.Duration, error) {
		if !cfg.Lockout.Enabled {
			return 0, nil
		}
		return engine.attemptStore.CheckLock(ctx, key)
	}

	recordFailure := func(ctx context.Context, key string) (bool, time.Duration, error) {
		if !cfg.Lockout.Enabled {
			return false, 0, nil
		}
		outcome, err := engine.attemptStore.RecordFailure(
			ctx, key, cfg.Lockout.Window, cfg.Lockout.Threshold, cfg.Lockout.LockDuration,
		)
		if err != nil {
			return false, 0, err
		}
		return outcome.Locked, outcome.LockedFor, nil
	}

	resetAttempts := func(ctx context.Context, key string) error {
		if !cfg.Lockout.Enabled {
			return nil
		}
		return engine.attemptStore.Reset(ctx, key)
	}

	verifyPassword := func(hash, plaintext string) (bool, error) {
		return engine.passwordHash.Verify(plaintext, hash)
	}

	lookupCredential := func(ctx context.Context, identifier string) (*flows.CredentialRecord, error) {
		if engine.credentials == nil {
			return nil, nil
		}
		cred, err := engine.credentials.Lookup(ctx, identifier)
		if err != nil {
			return nil, err
		}
		if cred == nil {
			return nil, nil
		}
		return &flows.CredentialRecord{
			SubjectID:    cred.SubjectID,
			PasswordHash: cred.PasswordHash,
			Scope:        cred.Scope,
		}, nil
	}

	return flows.Deps{
		Start: flows.StartDeps{
			LookupClient:   lookupClient,
			ValidateScope:  engine.scopes.ValidateRequested,
			ValidateMethod: validateMethod,
			NewState:       internal.NewStateToken,
			RequestTTL:     cfg.Flow.RequestTTL,
			Now:            time.Now,
			Store:          engine.authorizeStore,
		},
		Approval: flows.ApprovalDeps{
			NewCode:       internal.NewCodeToken,
			HashToken:     internal.HashToken,
			ScopeIsSubset: scope.IsSubset,
			CodeTTL:       cfg.Flow.CodeTTL,
			Now:           time.Now,
			Store:         engine.authorizeStore,
		},
		Redeem: flows.RedeemDeps{
			HashToken:       internal.HashToken,
			VerifyChallenge: verifyChallenge,
			RevokeFamily:    engine.refreshStore.RevokeFamily,
			SpentRetention:  cfg.Token.SpentRetention,
			Now:             time.Now,
			Store:           engine.authorizeStore,
			Issue:           issue,
		},
		Rotate: flows.RotateDeps{
			DecodeRefreshToken: internal.DecodeRefreshToken,
			NewSecret:          internal.NewRefreshSecret,
			HashSecret:         internal.HashSecret,
			EncodeRefreshToken: internal.EncodeRefreshToken,
			IssueAccess:        engine.jwtManager.CreateAccess,
			RefreshTTL:         cfg.Token.RefreshTTL,
			AccessTTL:          cfg.JWT.AccessTTL,
			SpentRetention:     cfg.Token.SpentRetention,
			Now:                time.Now,
			Store:              engine.refreshStore,
		},
		Login: flows.LoginDeps{
			CheckLock:        checkLock,
			RecordFailure:    recordFailure,
			ResetAttempts:    resetAttempts,
			LookupCredential: lookupCredential,
			VerifyPassword:   verifyPassword,
			DummyHash:        engine.dummyHash,
			Issue:            issue,
		},
	}
}
