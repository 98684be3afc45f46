package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"admin-auth/internal/audit"
	"admin-auth/internal/config"
	"admin-auth/internal/hashing"
	"admin-auth/internal/mailer"
	"admin-auth/internal/models"
	"admin-auth/internal/repository"
	"admin-auth/internal/secrets"
	"admin-auth/internal/token"
)

type memoryStore struct {
	mu      sync.Mutex
	records map[string]models.OTPRecord
	ttls    map[string]time.Duration
	puts    int
	deletes int
	getErr  error
	putErr  error
	delErr  error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{records: map[string]models.OTPRecord{}, ttls: map[string]time.Duration{}}
}

func (s *memoryStore) Put(ctx context.Context, r *models.OTPRecord, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.putErr != nil {
		return s.putErr
	}
	s.puts++
	s.records[r.Identity] = *r
	s.ttls[r.Identity] = ttl
	return nil
}

func (s *memoryStore) Get(ctx context.Context, identity string) (*models.OTPRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.getErr != nil {
		return nil, s.getErr
	}
	r, ok := s.records[identity]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &r, nil
}

func (s *memoryStore) Delete(ctx context.Context, identity string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.delErr != nil {
		return s.delErr
	}
	s.deletes++
	delete(s.records, identity)
	return nil
}

type capturingMailer struct {
	mu   sync.Mutex
	sent []mailer.Message
	err  error
}

func (m *capturingMailer) Send(ctx context.Context, msg mailer.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, msg)
	return nil
}

type recordingAuditor struct {
	mu      sync.Mutex
	entries []audit.Entry
}

func (a *recordingAuditor) Record(ctx context.Context, e audit.Entry) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.entries = append(a.entries, e)
}

func (a *recordingAuditor) types() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	var out []string
	for _, e := range a.entries {
		out = append(out, e.Type)
	}
	return out
}

type stubThrottle struct {
	allow bool
	err   error
}

func (t *stubThrottle) Allow(ctx context.Context, identity string) (bool, error) {
	return t.allow, t.err
}

type failingKeys struct{}

func (failingKeys) SigningKey(ctx context.Context) ([]byte, error) {
	return nil, errors.New("AccessDeniedException")
}

type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

const testSigningKey = "unit-test-signing-key"

// harness wires issuer, verifier and authorizer over shared fakes, the way
// the three functions share a table and a secret in production.
type harness struct {
	cfg        *config.Config
	clock      *testClock
	store      *memoryStore
	mail       *capturingMailer
	auditor    *recordingAuditor
	keys       secrets.KeyProvider
	tokens     *token.Manager
	issuer     *Issuer
	verifier   *Verifier
	authorizer *Authorizer
}

func newHarness(opts ...func(*config.Config)) *harness {
	cfg := config.NewDefaultConfig()
	cfg.OTP.BcryptCost = 4
	for _, opt := range opts {
		opt(cfg)
	}

	hasher, err := hashing.NewHasher(cfg.OTP)
	if err != nil {
		panic(err)
	}

	h := &harness{
		cfg:     cfg,
		clock:   &testClock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)},
		store:   newMemoryStore(),
		mail:    &capturingMailer{},
		auditor: &recordingAuditor{},
		keys:    secrets.NewCachedProvider("static", secrets.NewStaticProvider(testSigningKey)),
	}
	h.tokens = token.NewManager(cfg.Token).WithClock(h.clock.Now)

	h.issuer = NewIssuer(cfg.OTP, IssuerDeps{
		Store:   h.store,
		Hasher:  hasher,
		Mailer:  h.mail,
		Auditor: h.auditor,
	})
	h.issuer.now = h.clock.Now

	h.verifier = NewVerifier(cfg.OTP, VerifierDeps{
		Store:   h.store,
		Hasher:  hasher,
		Keys:    h.keys,
		Tokens:  h.tokens,
		Auditor: h.auditor,
	})
	h.verifier.now = h.clock.Now

	h.authorizer = NewAuthorizer(h.keys, h.tokens)
	return h
}

// issue runs Issue with a fixed code.
func (h *harness) issue(email, code string) error {
	h.issuer.generate = func() (string, error) { return code, nil }
	_, err := h.issuer.Issue(context.Background(), IssueRequest{Email: email})
	return err
}

func (h *harness) verify(email, code string) (*VerifyResult, error) {
	return h.verifier.Verify(context.Background(), VerifyRequest{Email: email, OTP: code})
}
