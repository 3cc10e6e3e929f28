package middleware

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	authkit "github.com/craftdex/authkit"
	"github.com/craftdex/authkit/password"
)

type stubProvider struct {
	byID    map[string]authkit.Identity
	byIdent map[string]string
}

func newStubProvider() *stubProvider {
	return &stubProvider{
		byID:    make(map[string]authkit.Identity),
		byIdent: make(map[string]string),
	}
}

func (p *stubProvider) add(identity authkit.Identity) {
	p.byID[identity.Subject] = identity
	p.byIdent[identity.Identifier] = identity.Subject
}

func (p *stubProvider) IdentityByIdentifier(identifier string) (authkit.Identity, error) {
	subject, ok := p.byIdent[identifier]
	if !ok {
		return authkit.Identity{}, authkit.ErrIdentityNotFound
	}
	return p.byID[subject], nil
}

func (p *stubProvider) IdentityByID(subject string) (authkit.Identity, error) {
	identity, ok := p.byID[subject]
	if !ok {
		return authkit.Identity{}, authkit.ErrIdentityNotFound
	}
	return identity, nil
}

func (p *stubProvider) UpdatePasswordHash(subject string, newHash string) error {
	identity, ok := p.byID[subject]
	if !ok {
		return authkit.ErrIdentityNotFound
	}
	identity.PasswordHash = newHash
	p.byID[subject] = identity
	return nil
}

func testConfig(t *testing.T) authkit.Config {
	t.Helper()

	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("GenerateKey failed: %v", err)
	}

	cfg := authkit.DefaultConfig()
	cfg.Token.PrivateKey = priv
	cfg.Token.PublicKey = pub
	cfg.Token.Issuer = "authkit-middleware-test"
	cfg.Password.Memory = 8 * 1024
	cfg.Password.Time = 1
	cfg.Password.Parallelism = 1
	return cfg
}

// newTestEngine builds an engine against an in-process redis. sink may be nil;
// passing one enables the audit pipeline.
func newTestEngine(t *testing.T, cfg authkit.Config, provider authkit.IdentityProvider, sink authkit.AuditSink) (*authkit.Engine, *miniredis.Miniredis, func()) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run failed: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	builder := authkit.New().
		WithConfig(&cfg).
		WithRedis(rdb).
		WithProvider(provider)
	if sink != nil {
		builder = builder.WithAuditSink(sink)
	}

	engine, err := builder.Build()
	if err != nil {
		mr.Close()
		t.Fatalf("Build failed: %v", err)
	}
	return engine, mr, func() {
		engine.Close()
		_ = rdb.Close()
		mr.Close()
	}
}

func seedIdentity(t *testing.T, provider *stubProvider, subject, identifier, pass string, roles ...string) {
	t.Helper()

	hasher, err := password.NewHasher(password.Config{
		Memory:      8 * 1024,
		Time:        1,
		Parallelism: 1,
		SaltLength:  16,
		KeyLength:   32,
	})
	if err != nil {
		t.Fatalf("hasher init failed: %v", err)
	}
	hash, err := hasher.Hash(pass)
	if err != nil {
		t.Fatalf("hash failed: %v", err)
	}

	provider.add(authkit.Identity{
		Subject:      subject,
		Identifier:   identifier,
		PasswordHash: hash,
		Roles:        roles,
		Status:       authkit.AccountActive,
	})
}

func login(t *testing.T, engine *authkit.Engine, identifier, pass string) *authkit.TokenPair {
	t.Helper()

	pair, err := engine.Login(context.Background(), identifier, pass)
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}
	return pair
}

func serveGuarded(engine *authkit.Engine, authorization string, roles ...string) (*httptest.ResponseRecorder, bool) {
	var handlerCalled bool
	handler := Guard(engine, roles...)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handlerCalled = true
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec, handlerCalled
}

func TestGuardAllowsValidBearerToken(t *testing.T) {
	provider := newStubProvider()
	seedIdentity(t, provider, "u1", "alice", "correct-horse-battery", "member")

	engine, _, cleanup := newTestEngine(t, testConfig(t), provider, nil)
	defer cleanup()

	pair := login(t, engine, "alice", "correct-horse-battery")

	var got *authkit.AuthResult
	handler := Guard(engine)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		res, ok := AuthResultFromContext(r.Context())
		if !ok {
			t.Error("guarded handler ran without an auth result in context")
		}
		got = res
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+pair.AccessToken)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if got == nil {
		t.Fatal("handler never saw the auth result")
	}
	if got.Subject != "u1" {
		t.Errorf("Subject = %q, want %q", got.Subject, "u1")
	}
	if !got.HasRole("member") {
		t.Errorf("Roles = %v, missing %q", got.Roles, "member")
	}
}

func TestGuardRejectionsAreUniform(t *testing.T) {
	provider := newStubProvider()
	seedIdentity(t, provider, "u1", "alice", "correct-horse-battery", "member")

	engine, _, cleanup := newTestEngine(t, testConfig(t), provider, nil)
	defer cleanup()

	pair := login(t, engine, "alice", "correct-horse-battery")

	tests := []struct {
		name          string
		authorization string
	}{
		{name: "missing header", authorization: ""},
		{name: "not a bearer scheme", authorization: "Basic dXNlcjpwYXNz"},
		{name: "empty bearer token", authorization: "Bearer "},
		{name: "garbage token", authorization: "Bearer not-a-token"},
		{name: "refresh token on an access endpoint", authorization: "Bearer " + pair.RefreshToken},
	}

	var bodies []string
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, called := serveGuarded(engine, tt.authorization)
			if rec.Code != http.StatusUnauthorized {
				t.Fatalf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
			}
			if called {
				t.Error("handler ran for a rejected request")
			}
			bodies = append(bodies, rec.Body.String())
		})
	}

	// Every rejection must read identically so the endpoint leaks nothing
	// about why a given token failed.
	for i := 1; i < len(bodies); i++ {
		if bodies[i] != bodies[0] {
			t.Errorf("rejection body %d = %q, differs from %q", i, bodies[i], bodies[0])
		}
	}
}

func TestGuardEnforcesEveryRequiredRole(t *testing.T) {
	provider := newStubProvider()
	seedIdentity(t, provider, "u1", "alice", "correct-horse-battery", "member")
	seedIdentity(t, provider, "u2", "root", "correct-horse-battery", "member", "admin")

	engine, _, cleanup := newTestEngine(t, testConfig(t), provider, nil)
	defer cleanup()

	memberPair := login(t, engine, "alice", "correct-horse-battery")
	adminPair := login(t, engine, "root", "correct-horse-battery")

	rec, called := serveGuarded(engine, "Bearer "+memberPair.AccessToken, "member", "admin")
	if rec.Code != http.StatusUnauthorized || called {
		t.Errorf("member token passed a guard requiring admin: status=%d called=%v", rec.Code, called)
	}

	rec, called = serveGuarded(engine, "Bearer "+adminPair.AccessToken, "member", "admin")
	if rec.Code != http.StatusOK || !called {
		t.Errorf("admin token rejected: status=%d called=%v", rec.Code, called)
	}
}

func TestGuardRejectsRevokedToken(t *testing.T) {
	provider := newStubProvider()
	seedIdentity(t, provider, "u1", "alice", "correct-horse-battery", "member")

	engine, _, cleanup := newTestEngine(t, testConfig(t), provider, nil)
	defer cleanup()

	pair := login(t, engine, "alice", "correct-horse-battery")

	rec, _ := serveGuarded(engine, "Bearer "+pair.AccessToken)
	if rec.Code != http.StatusOK {
		t.Fatalf("pre-logout status = %d, want %d", rec.Code, http.StatusOK)
	}

	if err := engine.Logout(context.Background(), pair.RefreshToken); err != nil {
		t.Fatalf("logout failed: %v", err)
	}

	rec, called := serveGuarded(engine, "Bearer "+pair.AccessToken)
	if rec.Code != http.StatusUnauthorized || called {
		t.Errorf("revoked token passed the guard: status=%d called=%v", rec.Code, called)
	}
}

func TestGuardNilEngineRejects(t *testing.T) {
	handler := Guard(nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler ran behind a nil-engine guard")
	}))

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer whatever")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
}

func TestGuardFailsClosedWhenBackendDown(t *testing.T) {
	provider := newStubProvider()
	seedIdentity(t, provider, "u1", "alice", "correct-horse-battery", "member")

	engine, mr, cleanup := newTestEngine(t, testConfig(t), provider, nil)
	defer cleanup()

	pair := login(t, engine, "alice", "correct-horse-battery")
	mr.Close()

	rec, called := serveGuarded(engine, "Bearer "+pair.AccessToken)
	if rec.Code != http.StatusUnauthorized || called {
		t.Errorf("request passed with the backend down: status=%d called=%v", rec.Code, called)
	}
}

func TestAuthResultFromContextOutsideGuard(t *testing.T) {
	if res, ok := AuthResultFromContext(context.Background()); ok || res != nil {
		t.Errorf("AuthResultFromContext on a bare context = (%v, %v), want (nil, false)", res, ok)
	}
}
