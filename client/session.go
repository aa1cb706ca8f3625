package client

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/url"
	"sync"
	"sync/atomic"

	"github.com/layer-3/zeroturbo/core"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// Status is the stage of the session lifecycle
type Status int32

const (
	StatusUninitialized Status = iota
	StatusLoading
	StatusAuthenticated
	StatusAnonymous
)

func (s Status) String() string {
	switch s {
	case StatusUninitialized:
		return "uninitialized"
	case StatusLoading:
		return "loading"
	case StatusAuthenticated:
		return "authenticated"
	case StatusAnonymous:
		return "anonymous"
	default:
		return "unknown"
	}
}

// State is the snapshot handed to observers
type State struct {
	Status Status
	User   *core.Account
}

// Loading reports whether the session has not settled yet
func (s State) Loading() bool {
	return s.Status == StatusUninitialized || s.Status == StatusLoading
}

// AuthClient is the issuer side of the session
type AuthClient interface {
	Authorize(redirectURI string) (string, core.Challenge, error)
	Exchange(ctx context.Context, code, redirectURI, verifier string) (*core.TokenPair, error)
	Refresh(ctx context.Context, refresh string) (*core.TokenPair, error)
	Logout(ctx context.Context, refresh string) error
}

// AccountSource resolves an access token to its account
type AccountSource interface {
	Fetch(ctx context.Context, accessToken string) (*core.Account, error)
}

// Navigator moves the user agent
type Navigator interface {
	// Redirect leaves the application for an external URL, such as the issuer's authorize page
	Redirect(ctx context.Context, url string) error
	// Replace moves to an application path without keeping the current location in history
	Replace(path string)
}

// Options configures a Session
type Options struct {
	// RedirectURI is where the issuer sends the user back with code and state
	RedirectURI string
	// Durable survives restarts and holds the refresh token and the cached account
	Durable Storage
	// Scoped lives for one sign-in attempt and holds the PKCE challenge
	Scoped Storage
}

// Session owns the sign-in lifecycle: callback handling, silent refresh, token access and sign out.
// The access token only ever lives in memory.
type Session struct {
	auth        AuthClient
	accounts    AccountSource
	nav         Navigator
	durable     Storage
	scoped      Storage
	redirectURI string
	logger      *zap.Logger

	initialized atomic.Bool
	refreshes   singleflight.Group

	mu     sync.Mutex
	access string
	state  State
	nextID int
	subs   map[int]func(State)
}

// NewSession creates a session in the uninitialized state
func NewSession(auth AuthClient, accounts AccountSource, nav Navigator, opts Options, logger *zap.Logger) *Session {
	if opts.Durable == nil {
		opts.Durable = NewMemoryStorage()
	}
	if opts.Scoped == nil {
		opts.Scoped = NewMemoryStorage()
	}

	return &Session{
		auth:        auth,
		accounts:    accounts,
		nav:         nav,
		durable:     opts.Durable,
		scoped:      opts.Scoped,
		redirectURI: opts.RedirectURI,
		logger:      logger.Named("session"),
		subs:        make(map[int]func(State)),
	}
}

// State returns the current snapshot
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Subscribe registers fn for every state change and returns a function that removes it
func (s *Session) Subscribe(fn func(State)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextID
	s.nextID++
	s.subs[id] = fn

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.subs, id)
	}
}

// Init runs the startup sequence once: callback handling when location carries code and state,
// silent refresh otherwise. It returns false without doing anything on every call after the first.
func (s *Session) Init(ctx context.Context, location *url.URL) bool {
	if !s.initialized.CompareAndSwap(false, true) {
		s.logger.Debug("init skipped, session already initialized")
		return false
	}

	s.settle(StatusLoading, nil)

	var query url.Values
	if location != nil {
		query = location.Query()
	}
	code, state := query.Get("code"), query.Get("state")

	if code != "" && state != "" {
		s.callback(ctx, code, state)
		return true
	}

	s.authenticate(ctx)
	return true
}

// SignIn stores a fresh PKCE challenge and sends the user to the issuer
func (s *Session) SignIn(ctx context.Context) error {
	authorizeURL, challenge, err := s.auth.Authorize(s.redirectURI)
	if err != nil {
		return err
	}

	data, err := json.Marshal(challenge)
	if err != nil {
		return err
	}
	if err := s.scoped.Set(KeyChallenge, string(data)); err != nil {
		return err
	}

	return s.nav.Redirect(ctx, authorizeURL)
}

// GetToken returns a freshly rotated access token. Without a usable session it starts SignIn and
// returns ErrSignInRequired; the caller should abandon whatever it was about to do.
// Network failures are returned as is and leave the stored session intact.
func (s *Session) GetToken(ctx context.Context) (string, error) {
	token, err := s.refresh(ctx)
	if err == nil {
		return token, nil
	}

	var netErr *NetworkError
	if errors.As(err, &netErr) {
		return "", err
	}

	if err := s.SignIn(ctx); err != nil {
		return "", errors.Join(ErrSignInRequired, err)
	}
	return "", ErrSignInRequired
}

// SignOut forgets the session locally, revokes it at the issuer and goes home
func (s *Session) SignOut(ctx context.Context) {
	refresh, ok, err := s.durable.Get(KeyRefresh)
	if err != nil {
		s.logger.Warn("failed to read refresh token", zap.Error(err))
	}

	for _, key := range []string{KeyRefresh, KeyUser} {
		if err := s.durable.Delete(key); err != nil {
			s.logger.Error("failed to delete stored session", zap.String("key", key), zap.Error(err))
		}
	}

	s.mu.Lock()
	s.access = ""
	s.mu.Unlock()
	s.settle(StatusAnonymous, nil)

	if ok && refresh != "" {
		if err := s.auth.Logout(ctx, refresh); err != nil {
			s.logger.Warn("failed to revoke refresh token", zap.Error(err))
		}
	}

	s.nav.Replace("/")
}

func (s *Session) authenticate(ctx context.Context) {
	token, err := s.refresh(ctx)
	if err != nil {
		if !errors.Is(err, ErrNoRefreshToken) {
			s.logger.Info("silent refresh failed", zap.Error(err))
		}
		s.settle(StatusAnonymous, nil)
		return
	}

	s.loadUser(ctx, token)
}

func (s *Session) callback(ctx context.Context, code, state string) {
	token := s.redeem(ctx, code, state)

	s.nav.Replace("/")

	if token == "" {
		s.settle(StatusAnonymous, nil)
		return
	}
	s.loadUser(ctx, token)
}

// redeem exchanges the code when state matches the stored challenge, returning the access token or ""
func (s *Session) redeem(ctx context.Context, code, state string) string {
	raw, ok, err := s.scoped.Get(KeyChallenge)
	if delErr := s.scoped.Delete(KeyChallenge); delErr != nil {
		s.logger.Warn("failed to delete challenge", zap.Error(delErr))
	}
	if err != nil || !ok {
		s.logger.Info("callback without a stored challenge", zap.Error(err))
		return ""
	}

	var challenge core.Challenge
	if err := json.Unmarshal([]byte(raw), &challenge); err != nil {
		s.logger.Info("stored challenge is unreadable", zap.Error(err))
		return ""
	}
	if challenge.Verifier == "" || subtle.ConstantTimeCompare([]byte(challenge.State), []byte(state)) != 1 {
		s.logger.Info("callback state does not match the stored challenge")
		return ""
	}

	pair, err := s.auth.Exchange(ctx, code, s.redirectURI, challenge.Verifier)
	if err != nil {
		s.logger.Warn("code exchange failed", zap.Error(err))
		return ""
	}

	if err := s.durable.Set(KeyRefresh, pair.Refresh); err != nil {
		s.logger.Error("failed to store refresh token", zap.Error(err))
		return ""
	}

	s.mu.Lock()
	s.access = pair.Access
	s.mu.Unlock()

	return pair.Access
}

// refresh rotates the stored refresh token. Concurrent callers share a single rotation.
func (s *Session) refresh(ctx context.Context) (string, error) {
	v, err, _ := s.refreshes.Do(KeyRefresh, func() (interface{}, error) {
		refresh, ok, err := s.durable.Get(KeyRefresh)
		if err != nil {
			return "", err
		}
		if !ok || refresh == "" {
			return "", ErrNoRefreshToken
		}

		pair, err := s.auth.Refresh(ctx, refresh)
		if err != nil {
			if errors.Is(err, core.ErrInvalidGrant) {
				// Spent or revoked, it will never work again
				if delErr := s.durable.Delete(KeyRefresh); delErr != nil {
					s.logger.Error("failed to delete rejected refresh token", zap.Error(delErr))
				}
				s.mu.Lock()
				s.access = ""
				signedIn := s.state.Status == StatusAuthenticated
				s.mu.Unlock()
				if signedIn {
					s.settle(StatusAnonymous, nil)
				}
			}
			return "", err
		}

		if err := s.durable.Set(KeyRefresh, pair.Refresh); err != nil {
			return "", err
		}

		s.mu.Lock()
		s.access = pair.Access
		s.mu.Unlock()

		return pair.Access, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

func (s *Session) loadUser(ctx context.Context, token string) {
	account, err := s.accounts.Fetch(ctx, token)
	if err != nil {
		var netErr *NetworkError
		if errors.As(err, &netErr) {
			s.logger.Warn("account fetch failed", zap.Error(err))
		} else {
			s.logger.Info("account not available for token", zap.Error(err))
		}
		s.settle(StatusAnonymous, nil)
		return
	}

	if data, err := json.Marshal(account); err == nil {
		if err := s.durable.Set(KeyUser, string(data)); err != nil {
			s.logger.Warn("failed to cache account", zap.Error(err))
		}
	}

	s.settle(StatusAuthenticated, account)
}

func (s *Session) settle(status Status, user *core.Account) {
	s.mu.Lock()
	s.state = State{Status: status, User: user}
	state := s.state
	subs := make([]func(State), 0, len(s.subs))
	for _, fn := range s.subs {
		subs = append(subs, fn)
	}
	s.mu.Unlock()

	for _, fn := range subs {
		fn(state)
	}
}

// CachedUser returns the account stored by the last successful fetch. It may be stale.
func (s *Session) CachedUser() (*core.Account, bool) {
	raw, ok, err := s.durable.Get(KeyUser)
	if err != nil || !ok {
		return nil, false
	}

	account := &core.Account{}
	if err := json.Unmarshal([]byte(raw), account); err != nil {
		return nil, false
	}
	return account, true
}
