package services

import (
	"context"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/harentsoaR/dentaheal-api/internal/config"
	"github.com/harentsoaR/dentaheal-api/internal/repository"
	"github.com/harentsoaR/dentaheal-api/internal/utils"
)

var baseTime = time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: baseTime}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type sentMail struct {
	To, Subject, Body string
}

// captureMailer records messages; SendFunc overrides delivery when set.
type captureMailer struct {
	mu       sync.Mutex
	sent     []sentMail
	SendFunc func(to, subject, body string) error
}

func (m *captureMailer) Send(_ context.Context, to, subject, body string) error {
	if m.SendFunc != nil {
		if err := m.SendFunc(to, subject, body); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, sentMail{To: to, Subject: subject, Body: body})
	return nil
}

func (m *captureMailer) Sent() []sentMail {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]sentMail(nil), m.sent...)
}

// countingLimiter blocks a key after max failures.
type countingLimiter struct {
	mu       sync.Mutex
	max      int
	failures map[string]int
}

func newCountingLimiter(max int) *countingLimiter {
	return &countingLimiter{max: max, failures: make(map[string]int)}
}

func (l *countingLimiter) Blocked(_ context.Context, key string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.failures[key] >= l.max, nil
}

func (l *countingLimiter) Fail(_ context.Context, key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.failures[key]++
	return nil
}

func (l *countingLimiter) Reset(_ context.Context, key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.failures, key)
	return nil
}

func testAuthConfig() config.AuthConfig {
	return config.AuthConfig{
		JWTSecret:                "test-secret",
		TokenTTLHours:            168,
		BcryptCost:               bcrypt.MinCost,
		OTPTTLSeconds:            120,
		VerifyIssuesTokenPatient: true,
		VerifyIssuesTokenDoctor:  false,
	}
}

type identityFixture struct {
	svc      *IdentityService
	accounts *repository.MemoryAccounts
	mailer   *captureMailer
	clock    *fakeClock
	tokens   *utils.TokenManager
}

func newIdentityFixture(cfg config.AuthConfig) *identityFixture {
	clock := newFakeClock()
	mailer := &captureMailer{}
	accounts := repository.NewMemoryAccounts()
	tokens := utils.NewTokenManager(cfg.JWTSecret, cfg.TokenTTL()).WithClock(clock.Now)

	svc := NewIdentityService(cfg, IdentityDependencies{
		Accounts: accounts,
		Notifier: NewNotificationService(mailer, nil),
		Tokens:   tokens,
		Clock:    clock.Now,
	})
	return &identityFixture{svc: svc, accounts: accounts, mailer: mailer, clock: clock, tokens: tokens}
}
