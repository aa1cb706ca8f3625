package service

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net"
	"net/url"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/layer-3/zeroturbo/core"
	"github.com/layer-3/zeroturbo/ports"
	"go.uber.org/zap"
)

const (
	requestKeyPrefix  = "request:"
	pinKeyPrefix      = "pin:"
	codeKeyPrefix     = "code:"
	attemptsKeyPrefix = "attempts:"

	maxPinAttempts = 5
)

// IssuerOptions tunes token lifetimes and which clients may authorize
type IssuerOptions struct {
	// RedirectOrigins are the origins redirect URIs may point to. Loopback hosts are always allowed.
	RedirectOrigins []string
	// ClientIDs restricts client_id values. Empty accepts any client.
	ClientIDs []string

	AccessTTL  time.Duration
	RefreshTTL time.Duration
	RequestTTL time.Duration
	CodeTTL    time.Duration
}

// DefaultIssuerOptions returns the lifetimes used when none are configured
func DefaultIssuerOptions() IssuerOptions {
	return IssuerOptions{
		AccessTTL:  15 * time.Minute,
		RefreshTTL: 30 * 24 * time.Hour,
		RequestTTL: 10 * time.Minute,
		CodeTTL:    time.Minute,
	}
}

// AuthorizeParams are the query parameters of an /authorize request
type AuthorizeParams struct {
	ClientID            string
	RedirectURI         string
	ResponseType        string
	State               string
	CodeChallenge       string
	CodeChallengeMethod string
}

// ExchangeParams are the form fields of an authorization_code grant
type ExchangeParams struct {
	Code         string
	RedirectURI  string
	ClientID     string
	CodeVerifier string
}

// IssuerService handles the authorization code flow with emailed pin codes
type IssuerService struct {
	tokenizer ports.Tokenizer
	store     ports.Store
	grants    ports.GrantStore
	accounts  ports.AccountRepository
	mailer    ports.Mailer
	eventPub  ports.EventPublisher
	logger    *zap.Logger
	validate  *validator.Validate

	opts IssuerOptions
}

// NewIssuerService creates a new issuer service
func NewIssuerService(
	tokenizer ports.Tokenizer,
	store ports.Store,
	grants ports.GrantStore,
	accounts ports.AccountRepository,
	mailer ports.Mailer,
	eventPub ports.EventPublisher,
	logger *zap.Logger,
	opts IssuerOptions,
) *IssuerService {
	defaults := DefaultIssuerOptions()
	if opts.AccessTTL <= 0 {
		opts.AccessTTL = defaults.AccessTTL
	}
	if opts.RefreshTTL <= 0 {
		opts.RefreshTTL = defaults.RefreshTTL
	}
	if opts.RequestTTL <= 0 {
		opts.RequestTTL = defaults.RequestTTL
	}
	if opts.CodeTTL <= 0 {
		opts.CodeTTL = defaults.CodeTTL
	}

	return &IssuerService{
		tokenizer: tokenizer,
		store:     store,
		grants:    grants,
		accounts:  accounts,
		mailer:    mailer,
		eventPub:  eventPub,
		logger:    logger.Named("issuer"),
		validate:  validator.New(),
		opts:      opts,
	}
}

// AccessTTL is the lifetime of issued access tokens
func (s *IssuerService) AccessTTL() time.Duration {
	return s.opts.AccessTTL
}

// Authorize validates an authorization request and parks it until the user proves their email
func (s *IssuerService) Authorize(ctx context.Context, params AuthorizeParams) (*core.AuthRequest, error) {
	// Client and redirect come first: later failures are reported by redirecting to redirect_uri
	if err := s.checkClient(params.ClientID); err != nil {
		return nil, err
	}
	if err := s.checkRedirect(params.RedirectURI); err != nil {
		return nil, err
	}
	if params.ResponseType != "code" {
		return nil, fmt.Errorf("unsupported response_type %q: %w", params.ResponseType, core.ErrInvalidRequest)
	}
	if params.CodeChallenge == "" || params.CodeChallengeMethod != core.PKCEMethodS256 {
		return nil, fmt.Errorf("pkce with S256 is required: %w", core.ErrInvalidRequest)
	}

	req := &core.AuthRequest{
		ID:                  uuid.New().String(),
		ClientID:            params.ClientID,
		RedirectURI:         params.RedirectURI,
		State:               params.State,
		CodeChallenge:       params.CodeChallenge,
		CodeChallengeMethod: params.CodeChallengeMethod,
		ExpiresAt:           time.Now().Add(s.opts.RequestTTL),
	}

	if err := s.putJSON(ctx, requestKeyPrefix+req.ID, req, s.opts.RequestTTL); err != nil {
		return nil, err
	}

	return req, nil
}

// Request loads a pending authorization request
func (s *IssuerService) Request(ctx context.Context, requestID string) (*core.AuthRequest, error) {
	req := &core.AuthRequest{}
	if err := s.getJSON(ctx, requestKeyPrefix+requestID, req); err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return nil, core.ErrInvalidRequest
		}
		return nil, err
	}
	return req, nil
}

// SendCode emails a fresh pin for a pending request, replacing any earlier pin
func (s *IssuerService) SendCode(ctx context.Context, requestID, email string) error {
	req, err := s.Request(ctx, requestID)
	if err != nil {
		return err
	}

	email = strings.ToLower(strings.TrimSpace(email))
	if err := s.validate.Var(email, "required,email"); err != nil {
		return core.ErrInvalidEmail
	}

	code, err := generatePin()
	if err != nil {
		return err
	}

	pin := &core.PinCode{
		RequestID: req.ID,
		Email:     email,
		Code:      code,
		ExpiresAt: req.ExpiresAt,
	}
	if err := s.putJSON(ctx, pinKeyPrefix+req.ID, pin, time.Until(req.ExpiresAt)); err != nil {
		return err
	}
	if err := s.grants.Delete(ctx, attemptsKeyPrefix+req.ID); err != nil {
		return err
	}

	if err := s.mailer.SendCode(ctx, email, code); err != nil {
		return fmt.Errorf("failed to deliver pin code: %w", err)
	}

	return nil
}

// VerifyCode checks the pin and, on success, returns the client redirect carrying a fresh authorization code
func (s *IssuerService) VerifyCode(ctx context.Context, requestID, code string) (string, error) {
	pin := &core.PinCode{}
	if err := s.getJSON(ctx, pinKeyPrefix+requestID, pin); err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return "", core.ErrInvalidCode
		}
		return "", err
	}

	ttl := time.Until(pin.ExpiresAt)
	if ttl <= 0 {
		return "", core.ErrInvalidCode
	}

	// The attempt is counted before the pin is compared so parallel guesses cannot share a slot
	attempts, err := s.grants.Incr(ctx, attemptsKeyPrefix+requestID, ttl)
	if err != nil {
		return "", err
	}
	if attempts > maxPinAttempts {
		s.burnPin(ctx, requestID)
		return "", core.ErrTooManyAttempts
	}
	if subtle.ConstantTimeCompare([]byte(strings.TrimSpace(code)), []byte(pin.Code)) != 1 {
		if attempts >= maxPinAttempts {
			s.burnPin(ctx, requestID)
			return "", core.ErrTooManyAttempts
		}
		return "", core.ErrInvalidCode
	}

	// Consume the pin and the request so neither can be replayed
	if _, err := s.grants.Take(ctx, pinKeyPrefix+requestID); err != nil {
		return "", core.ErrInvalidCode
	}
	_ = s.grants.Delete(ctx, attemptsKeyPrefix+requestID)
	req := &core.AuthRequest{}
	if err := s.takeJSON(ctx, requestKeyPrefix+requestID, req); err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return "", core.ErrInvalidRequest
		}
		return "", err
	}

	account, err := s.findOrCreateAccount(ctx, pin.Email)
	if err != nil {
		return "", err
	}

	authCode, err := core.RandomString(32)
	if err != nil {
		return "", err
	}
	grant := &core.AuthCode{
		Code:          authCode,
		ClientID:      req.ClientID,
		RedirectURI:   req.RedirectURI,
		CodeChallenge: req.CodeChallenge,
		Subject:       core.Subject{AccountID: account.ID, Email: account.Email},
		ExpiresAt:     time.Now().Add(s.opts.CodeTTL),
	}
	if err := s.putJSON(ctx, codeKeyPrefix+authCode, grant, s.opts.CodeTTL); err != nil {
		return "", err
	}

	redirect, err := url.Parse(req.RedirectURI)
	if err != nil {
		return "", core.ErrInvalidRedirect
	}
	query := redirect.Query()
	query.Set("code", authCode)
	query.Set("state", req.State)
	redirect.RawQuery = query.Encode()

	return redirect.String(), nil
}

// Exchange trades an authorization code and its PKCE verifier for a token pair
func (s *IssuerService) Exchange(ctx context.Context, params ExchangeParams) (*core.TokenPair, error) {
	grant := &core.AuthCode{}
	if err := s.takeJSON(ctx, codeKeyPrefix+params.Code, grant); err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return nil, core.ErrInvalidGrant
		}
		return nil, err
	}

	if grant.ClientID != params.ClientID {
		return nil, fmt.Errorf("client mismatch: %w", core.ErrInvalidGrant)
	}
	if grant.RedirectURI != params.RedirectURI {
		return nil, fmt.Errorf("redirect_uri mismatch: %w", core.ErrInvalidGrant)
	}
	if !core.VerifyCodeChallenge(grant.CodeChallenge, params.CodeVerifier) {
		return nil, fmt.Errorf("code verifier mismatch: %w", core.ErrInvalidGrant)
	}

	return s.issue(grant.ClientID, grant.Subject)
}

// Refresh rotates the refresh token and issues new access and refresh tokens
func (s *IssuerService) Refresh(ctx context.Context, refreshTokenStr string) (*core.TokenPair, error) {
	session, err := s.tokenizer.RefreshTokenToSession(refreshTokenStr)
	if err != nil {
		if errors.Is(err, core.ErrTokenExpired) {
			return nil, core.ErrTokenExpired
		}
		return nil, fmt.Errorf("invalid refresh token: %w", err)
	}

	if time.Now().After(session.RefreshExpiry) {
		return nil, core.ErrTokenExpired
	}

	// Claiming the refresh ID is the rotation: only one caller can ever win it
	remainingTime := time.Until(session.RefreshExpiry)
	claimed, err := s.store.ClaimToken(ctx, session.RefreshID, remainingTime)
	if err != nil {
		return nil, fmt.Errorf("failed to invalidate old token: %w", err)
	}
	if !claimed {
		return nil, core.ErrTokenInvalidated
	}

	return s.issue(session.ClientID, session.Subject)
}

// Logout invalidates a refresh token
func (s *IssuerService) Logout(ctx context.Context, refreshTokenStr string) error {
	session, err := s.tokenizer.RefreshTokenToSession(refreshTokenStr)
	if err != nil {
		return fmt.Errorf("invalid refresh token: %w", err)
	}

	var remainingTime time.Duration
	if time.Now().After(session.RefreshExpiry) {
		remainingTime = time.Hour
	} else {
		remainingTime = time.Until(session.RefreshExpiry)
	}

	if err := s.store.InvalidateToken(ctx, session.RefreshID, remainingTime); err != nil {
		return fmt.Errorf("failed to invalidate token: %w", err)
	}

	if err := s.eventPub.PublishLogout(ctx, session.Subject.AccountID, session.RefreshID); err != nil {
		// The token is already invalidated, which is the part that matters
		s.logger.Warn("failed to publish logout event", zap.Error(err))
	}

	return nil
}

// ValidateAccessToken checks an access token and that its refresh token is still live
func (s *IssuerService) ValidateAccessToken(ctx context.Context, accessToken string) (*core.Session, error) {
	session, err := s.tokenizer.AccessTokenToSession(accessToken)
	if err != nil {
		if errors.Is(err, core.ErrTokenExpired) {
			return nil, core.ErrTokenExpired
		}
		return nil, fmt.Errorf("invalid access token: %w", err)
	}

	if time.Now().After(session.AccessExpiry) {
		return nil, core.ErrTokenExpired
	}

	if session.RefreshID != "" {
		invalidated, err := s.store.IsTokenInvalidated(ctx, session.RefreshID)
		if err != nil {
			return nil, fmt.Errorf("failed to check token invalidation: %w", err)
		}

		// Rotation and logout both retire the pair the access token belongs to
		if invalidated {
			return nil, core.ErrTokenInvalidated
		}
	}

	return session, nil
}

func (s *IssuerService) issue(clientID string, subject core.Subject) (*core.TokenPair, error) {
	now := time.Now()
	session := &core.Session{
		ID:            uuid.New().String(),
		ClientID:      clientID,
		Subject:       subject,
		IssuedAt:      now,
		RefreshExpiry: now.Add(s.opts.RefreshTTL),
		AccessExpiry:  now.Add(s.opts.AccessTTL),
		RefreshID:     uuid.New().String(),
	}

	accessToken, err := s.tokenizer.SessionToAccessToken(session)
	if err != nil {
		return nil, fmt.Errorf("failed to create access token: %w", err)
	}

	refreshToken, err := s.tokenizer.SessionToRefreshToken(session)
	if err != nil {
		return nil, fmt.Errorf("failed to create refresh token: %w", err)
	}

	return &core.TokenPair{
		Access:    accessToken,
		Refresh:   refreshToken,
		ExpiresIn: int(s.opts.AccessTTL / time.Second),
	}, nil
}

func (s *IssuerService) findOrCreateAccount(ctx context.Context, email string) (*core.Account, error) {
	account, err := s.accounts.FindByEmail(ctx, email)
	if err == nil {
		return account, nil
	}
	if !errors.Is(err, core.ErrNotFound) {
		return nil, fmt.Errorf("failed to look up account: %w", err)
	}

	account, err = s.accounts.Create(ctx, &core.Account{ID: uuid.New().String(), Email: email})
	if errors.Is(err, core.ErrAlreadyExists) {
		// Lost a race with a concurrent sign-in for the same email
		return s.accounts.FindByEmail(ctx, email)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create account: %w", err)
	}

	s.logger.Info("account created", zap.String("account_id", account.ID))
	if err := s.eventPub.PublishAccountCreated(ctx, account.ID, account.Email); err != nil {
		s.logger.Warn("failed to publish account created event", zap.Error(err))
	}

	return account, nil
}

func (s *IssuerService) checkClient(clientID string) error {
	if clientID == "" {
		return core.ErrInvalidClient
	}
	if len(s.opts.ClientIDs) == 0 {
		return nil
	}
	for _, id := range s.opts.ClientIDs {
		if id == clientID {
			return nil
		}
	}
	return core.ErrInvalidClient
}

func (s *IssuerService) checkRedirect(redirectURI string) error {
	u, err := url.Parse(redirectURI)
	if err != nil || u.Scheme == "" || u.Host == "" || u.Fragment != "" {
		return core.ErrInvalidRedirect
	}

	if ip := net.ParseIP(u.Hostname()); (ip != nil && ip.IsLoopback()) || u.Hostname() == "localhost" {
		return nil
	}

	origin := u.Scheme + "://" + u.Host
	for _, allowed := range s.opts.RedirectOrigins {
		if strings.TrimRight(allowed, "/") == origin {
			return nil
		}
	}
	return core.ErrInvalidRedirect
}

func (s *IssuerService) putJSON(ctx context.Context, key string, v any, ttl time.Duration) error {
	if ttl <= 0 {
		return core.ErrInvalidRequest
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode grant: %w", err)
	}
	return s.grants.Put(ctx, key, data, ttl)
}

func (s *IssuerService) getJSON(ctx context.Context, key string, v any) error {
	data, err := s.grants.Get(ctx, key)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}

func (s *IssuerService) takeJSON(ctx context.Context, key string, v any) error {
	data, err := s.grants.Take(ctx, key)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}

func (s *IssuerService) burnPin(ctx context.Context, requestID string) {
	if err := s.grants.Delete(ctx, pinKeyPrefix+requestID); err != nil {
		s.logger.Warn("failed to burn pin", zap.String("request_id", requestID), zap.Error(err))
	}
}

func generatePin() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1_000_000))
	if err != nil {
		return "", fmt.Errorf("failed to generate pin: %w", err)
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}
