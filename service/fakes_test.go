package service_test

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/layer-3/zeroturbo/adapters/store"
	"github.com/layer-3/zeroturbo/adapters/tokenizer"
	"github.com/layer-3/zeroturbo/core"
	"github.com/layer-3/zeroturbo/ports"
	"github.com/layer-3/zeroturbo/service"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type memoryAccounts struct {
	mu       sync.Mutex
	accounts map[string]*core.Account
}

func newMemoryAccounts() *memoryAccounts {
	return &memoryAccounts{accounts: make(map[string]*core.Account)}
}

func (r *memoryAccounts) FindByID(ctx context.Context, id string) (*core.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if a, ok := r.accounts[id]; ok {
		return a, nil
	}
	return nil, core.ErrNotFound
}

func (r *memoryAccounts) FindByEmail(ctx context.Context, email string) (*core.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.accounts {
		if a.Email == email {
			return a, nil
		}
	}
	return nil, core.ErrNotFound
}

func (r *memoryAccounts) Create(ctx context.Context, account *core.Account) (*core.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.accounts {
		if a.Email == account.Email {
			return nil, core.ErrAlreadyExists
		}
	}
	created := *account
	created.TimeCreated = time.Now()
	r.accounts[created.ID] = &created
	return &created, nil
}

type capturingMailer struct {
	mu    sync.Mutex
	codes map[string]string
}

func (m *capturingMailer) SendCode(ctx context.Context, email string, code string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.codes[email] = code
	return nil
}

func (m *capturingMailer) last(email string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.codes[strings.ToLower(strings.TrimSpace(email))]
}

type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) PublishLogout(ctx context.Context, accountID string, tokenID string) error {
	return m.Called(accountID, tokenID).Error(0)
}

func (m *mockPublisher) PublishAccountCreated(ctx context.Context, accountID string, email string) error {
	return m.Called(accountID, email).Error(0)
}

type fixture struct {
	issuer    *service.IssuerService
	tokenizer *tokenizer.JWTTokenizer
	accounts  *memoryAccounts
	mailer    *capturingMailer
	events    *mockPublisher
}

const (
	testClient   = "web"
	testRedirect = "https://zeroturbo.example.com/"
)

func newFixture(t *testing.T) *fixture {
	mem := store.NewMemoryStore()
	return newFixtureWithGrants(t, mem, mem)
}

func newFixtureWithGrants(t *testing.T, tokens ports.Store, grants ports.GrantStore) *fixture {
	key, kid, err := tokenizer.GenerateSigningKey()
	require.NoError(t, err)

	f := &fixture{
		tokenizer: tokenizer.NewJWTTokenizer(key, kid, "https://openauth.zeroturbo.example.com"),
		accounts:  newMemoryAccounts(),
		mailer:    &capturingMailer{codes: make(map[string]string)},
		events:    &mockPublisher{},
	}
	f.events.On("PublishAccountCreated", mock.Anything, mock.Anything).Return(nil).Maybe()
	f.events.On("PublishLogout", mock.Anything, mock.Anything).Return(nil).Maybe()

	f.issuer = service.NewIssuerService(
		f.tokenizer, tokens, grants, f.accounts, f.mailer, f.events,
		zaptest.NewLogger(t),
		service.IssuerOptions{RedirectOrigins: []string{"https://zeroturbo.example.com"}},
	)
	return f
}

// login runs the browser half of the flow and returns the code and the verifier that redeems it
func (f *fixture) login(t *testing.T, email string) (code string, challenge core.Challenge) {
	ctx := context.Background()

	challenge, err := core.NewChallenge()
	require.NoError(t, err)

	req, err := f.issuer.Authorize(ctx, service.AuthorizeParams{
		ClientID:            testClient,
		RedirectURI:         testRedirect,
		ResponseType:        "code",
		State:               challenge.State,
		CodeChallenge:       core.CodeChallengeS256(challenge.Verifier),
		CodeChallengeMethod: core.PKCEMethodS256,
	})
	require.NoError(t, err)

	require.NoError(t, f.issuer.SendCode(ctx, req.ID, email))
	redirect, err := f.issuer.VerifyCode(ctx, req.ID, f.mailer.last(email))
	require.NoError(t, err)

	return codeFrom(t, redirect, challenge.State), challenge
}

// slowGrants delays reads the way a network round-trip to Redis would
type slowGrants struct {
	*store.MemoryStore
	delay time.Duration
}

func (g slowGrants) Get(ctx context.Context, key string) ([]byte, error) {
	time.Sleep(g.delay)
	return g.MemoryStore.Get(ctx, key)
}
