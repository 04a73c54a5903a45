package authcore

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

// RFC 7636 appendix B test vector.
const (
	testVerifier  = "dBjftJeZ4CVP-mB92K27uhbUJU1p1r_wW1gFWFOEjXk"
	testChallenge = "E9Melhoa2OwvFrEMTJguCHaoeK1t8URWbuGJSstw-cM"
)

const (
	testClientID = "web"
	testRedirect = "https://app.example.com/cb"
)

type stubCredentials struct {
	mu      sync.RWMutex
	byIdent map[string]Credential
	lookups int
}

func newStubCredentials() *stubCredentials {
	return &stubCredentials{byIdent: make(map[string]Credential)}
}

func (s *stubCredentials) Put(identifier string, c Credential) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byIdent[identifier] = c
}

func (s *stubCredentials) Lookup(_ context.Context, identifier string) (*Credential, error) {
	s.mu.Lock()
	s.lookups++
	c, ok := s.byIdent[identifier]
	s.mu.Unlock()
	if !ok {
		return nil, nil
	}
	out := c
	return &out, nil
}

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run failed: %v", err)
	}

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		_ = client.Close()
		mr.Close()
	})
	return mr, client
}

// newTestConfig keeps the Argon2 parameters at the hard floors so engine
// construction stays fast under the race detector.
func newTestConfig(t *testing.T) Config {
	t.Helper()

	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("ed25519.GenerateKey failed: %v", err)
	}

	cfg := DefaultConfig()
	cfg.JWT.PrivateKey = priv
	cfg.JWT.PublicKey = pub
	cfg.JWT.Issuer = "authcore-test"
	cfg.Password.Memory = 8 * 1024
	cfg.Password.Time = 1
	cfg.Password.Parallelism = 1
	cfg.Password.SaltLength = 16
	cfg.Password.KeyLength = 16
	cfg.Lockout.Threshold = 3
	cfg.Lockout.Window = time.Minute
	cfg.Lockout.LockDuration = time.Minute
	return cfg
}

func newTestEngine(t *testing.T, rdb *redis.Client, cp CredentialProvider, sink AuditSink, mutate ...func(*Config)) *Engine {
	t.Helper()

	cfg := newTestConfig(t)
	for _, m := range mutate {
		m(&cfg)
	}

	b := New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithClients([]Client{
			{ID: testClientID, RedirectURIs: []string{testRedirect}},
		}).
		WithScopes([]string{"profile", "email", "admin"})
	if cp != nil {
		b = b.WithCredentialProvider(cp)
	}
	if sink != nil {
		b = b.WithAuditSink(sink)
	}

	engine, err := b.Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(engine.Close)
	return engine
}

// seedCredential hashes the password with the engine's hasher and registers
// it under the identifier.
func seedCredential(t *testing.T, engine *Engine, cp *stubCredentials, identifier, password, subjectID, scope string) {
	t.Helper()

	hash, err := engine.passwordHash.Hash(password)
	if err != nil {
		t.Fatalf("Hash failed: %v", err)
	}
	cp.Put(identifier, Credential{
		SubjectID:    subjectID,
		PasswordHash: hash,
		Scope:        scope,
	})
}

// issueCode runs the front half of the flow and returns the one-time code.
func issueCode(t *testing.T, engine *Engine, subjectID, requestedScope, approvedScope string) *IssuedCode {
	t.Helper()

	ctx := context.Background()
	ticket, err := engine.StartFlow(ctx, testClientID, testRedirect, testChallenge, "S256", requestedScope)
	if err != nil {
		t.Fatalf("StartFlow failed: %v", err)
	}

	code, err := engine.CompleteApproval(ctx, ticket.State, subjectID, approvedScope)
	if err != nil {
		t.Fatalf("CompleteApproval failed: %v", err)
	}
	return code
}
