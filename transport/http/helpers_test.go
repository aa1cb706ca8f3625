package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/gin-gonic/gin"
	"github.com/layer-3/zeroturbo/adapters/events"
	"github.com/layer-3/zeroturbo/adapters/store"
	"github.com/layer-3/zeroturbo/adapters/tokenizer"
	"github.com/layer-3/zeroturbo/core"
	"github.com/layer-3/zeroturbo/service"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

const (
	testIssuer   = "https://openauth.zeroturbo.example.com"
	testClient   = "web"
	testRedirect = "https://zeroturbo.example.com/"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type accountTable struct {
	mu   sync.Mutex
	rows map[string]*core.Account
}

func (r *accountTable) FindByID(ctx context.Context, id string) (*core.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if a, ok := r.rows[id]; ok {
		return a, nil
	}
	return nil, core.ErrNotFound
}

func (r *accountTable) FindByEmail(ctx context.Context, email string) (*core.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.rows {
		if a.Email == email {
			return a, nil
		}
	}
	return nil, core.ErrNotFound
}

func (r *accountTable) Create(ctx context.Context, account *core.Account) (*core.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	created := *account
	created.TimeCreated = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	r.rows[created.ID] = &created
	return &created, nil
}

type inbox struct {
	mu    sync.Mutex
	codes map[string]string
}

func (m *inbox) SendCode(ctx context.Context, email string, code string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.codes[email] = code
	return nil
}

func (m *inbox) code(email string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.codes[email]
}

type testServer struct {
	issuer    *service.IssuerService
	tokenizer *tokenizer.JWTTokenizer
	accounts  *accountTable
	inbox     *inbox
	router    *gin.Engine
}

func newTestServer(t *testing.T) *testServer {
	key, kid, err := tokenizer.GenerateSigningKey()
	require.NoError(t, err)

	pubSub := gochannel.NewGoChannel(gochannel.Config{}, watermill.NopLogger{})
	t.Cleanup(func() { _ = pubSub.Close() })

	log := zaptest.NewLogger(t)
	s := &testServer{
		tokenizer: tokenizer.NewJWTTokenizer(key, kid, testIssuer),
		accounts:  &accountTable{rows: make(map[string]*core.Account)},
		inbox:     &inbox{codes: make(map[string]string)},
	}
	mem := store.NewMemoryStore()
	s.issuer = service.NewIssuerService(
		s.tokenizer, mem, mem, s.accounts, s.inbox,
		events.NewWatermillPublisher(pubSub),
		log,
		service.IssuerOptions{RedirectOrigins: []string{"https://zeroturbo.example.com"}},
	)
	s.router = SetupIssuerRouter(s.issuer, s.tokenizer, testIssuer, log)
	return s
}

func (s *testServer) do(req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *testServer) postForm(path string, form url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return s.do(req)
}

func authorizeQuery(challenge core.Challenge) url.Values {
	return url.Values{
		"client_id":             {testClient},
		"redirect_uri":          {testRedirect},
		"response_type":         {"code"},
		"state":                 {challenge.State},
		"code_challenge":        {core.CodeChallengeS256(challenge.Verifier)},
		"code_challenge_method": {core.PKCEMethodS256},
		"provider":              {"code"},
	}
}

// signIn walks the browser through the pin code pages and returns the redirect it lands on
func (s *testServer) signIn(t *testing.T, email string, challenge core.Challenge) *url.URL {
	w := s.do(httptest.NewRequest(http.MethodGet, "/authorize?"+authorizeQuery(challenge).Encode(), nil))
	require.Equal(t, http.StatusFound, w.Code)

	form, err := url.Parse(w.Header().Get("Location"))
	require.NoError(t, err)
	require.Equal(t, "/code/authorize", form.Path)
	requestID := form.Query().Get("request")
	require.NotEmpty(t, requestID)

	w = s.do(httptest.NewRequest(http.MethodGet, form.String(), nil))
	require.Equal(t, http.StatusOK, w.Code)

	w = s.postForm("/code/authorize", url.Values{"action": {"request"}, "request": {requestID}, "email": {email}})
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), `name="code"`)

	w = s.postForm("/code/authorize", url.Values{
		"action":  {"verify"},
		"request": {requestID},
		"email":   {email},
		"code":    {s.inbox.code(email)},
	})
	require.Equal(t, http.StatusFound, w.Code)

	redirect, err := url.Parse(w.Header().Get("Location"))
	require.NoError(t, err)
	return redirect
}
