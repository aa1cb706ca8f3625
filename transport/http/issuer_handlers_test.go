package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/layer-3/zeroturbo/core"
	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
	Error        string `json:"error"`
}

func decodeToken(t *testing.T, w *httptest.ResponseRecorder) tokenResponse {
	var resp tokenResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func exchangeForm(code, verifier string) url.Values {
	return url.Values{
		"grant_type":    {"authorization_code"},
		"code":          {code},
		"redirect_uri":  {testRedirect},
		"client_id":     {testClient},
		"code_verifier": {verifier},
	}
}

func TestIssuer_CodeFlow(t *testing.T) {
	s := newTestServer(t)

	challenge, err := core.NewChallenge()
	require.NoError(t, err)

	redirect := s.signIn(t, "x@example.com", challenge)
	assert.Equal(t, "zeroturbo.example.com", redirect.Host)
	assert.Equal(t, challenge.State, redirect.Query().Get("state"))
	code := redirect.Query().Get("code")
	require.NotEmpty(t, code)

	w := s.postForm("/token", exchangeForm(code, challenge.Verifier))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	pair := decodeToken(t, w)
	assert.Equal(t, "Bearer", pair.TokenType)
	assert.Equal(t, 900, pair.ExpiresIn)
	assert.NotEmpty(t, pair.AccessToken)
	assert.NotEmpty(t, pair.RefreshToken)
	assert.Equal(t, "no-store", w.Header().Get("Cache-Control"))

	// The code is single use
	w = s.postForm("/token", exchangeForm(code, challenge.Verifier))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "invalid_grant", decodeToken(t, w).Error)

	req := httptest.NewRequest(http.MethodGet, "/userinfo", nil)
	req.Header.Set("Authorization", "Bearer "+pair.AccessToken)
	w = s.do(req)
	require.Equal(t, http.StatusOK, w.Code)

	var info struct {
		Type       string       `json:"type"`
		Properties core.Subject `json:"properties"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &info))
	assert.Equal(t, "account", info.Type)
	assert.Equal(t, "x@example.com", info.Properties.Email)
	assert.NotEmpty(t, info.Properties.AccountID)
}

func TestIssuer_ExchangeRejectsWrongVerifier(t *testing.T) {
	s := newTestServer(t)

	challenge, err := core.NewChallenge()
	require.NoError(t, err)
	code := s.signIn(t, "x@example.com", challenge).Query().Get("code")

	other, err := core.NewChallenge()
	require.NoError(t, err)

	w := s.postForm("/token", exchangeForm(code, other.Verifier))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "invalid_grant", decodeToken(t, w).Error)
}

func TestIssuer_RefreshRotation(t *testing.T) {
	s := newTestServer(t)

	challenge, err := core.NewChallenge()
	require.NoError(t, err)
	code := s.signIn(t, "x@example.com", challenge).Query().Get("code")

	first := decodeToken(t, s.postForm("/token", exchangeForm(code, challenge.Verifier)))

	w := s.postForm("/token", url.Values{"grant_type": {"refresh_token"}, "refresh_token": {first.RefreshToken}})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	second := decodeToken(t, w)
	assert.NotEqual(t, first.RefreshToken, second.RefreshToken)

	// The rotated-out refresh token can not be replayed
	w = s.postForm("/token", url.Values{"grant_type": {"refresh_token"}, "refresh_token": {first.RefreshToken}})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "invalid_grant", decodeToken(t, w).Error)

	w = s.postForm("/token", url.Values{"grant_type": {"refresh_token"}, "refresh_token": {second.RefreshToken}})
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestIssuer_TokenRequestErrors(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		name  string
		form  url.Values
		error string
	}{
		{"missing grant type", url.Values{}, "invalid_request"},
		{"unknown grant type", url.Values{"grant_type": {"password"}}, "unsupported_grant_type"},
		{"missing refresh token", url.Values{"grant_type": {"refresh_token"}}, "invalid_request"},
		{"garbage refresh token", url.Values{"grant_type": {"refresh_token"}, "refresh_token": {"nope"}}, "invalid_grant"},
		{"missing verifier", url.Values{"grant_type": {"authorization_code"}, "code": {"c"}}, "invalid_request"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := s.postForm("/token", tt.form)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, tt.error, decodeToken(t, w).Error)
		})
	}
}

func TestIssuer_Logout(t *testing.T) {
	s := newTestServer(t)

	challenge, err := core.NewChallenge()
	require.NoError(t, err)
	code := s.signIn(t, "x@example.com", challenge).Query().Get("code")
	pair := decodeToken(t, s.postForm("/token", exchangeForm(code, challenge.Verifier)))

	body, _ := json.Marshal(map[string]string{"refresh_token": pair.RefreshToken})
	req := httptest.NewRequest(http.MethodPost, "/logout", strings.NewReader(string(body)))
	req.Header.Set("Content-Type", "application/json")
	w := s.do(req)
	require.Equal(t, http.StatusOK, w.Code)

	w = s.postForm("/token", url.Values{"grant_type": {"refresh_token"}, "refresh_token": {pair.RefreshToken}})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	req = httptest.NewRequest(http.MethodGet, "/userinfo", nil)
	req.Header.Set("Authorization", "Bearer "+pair.AccessToken)
	assert.Equal(t, http.StatusUnauthorized, s.do(req).Code)
}

func TestIssuer_AuthorizeRejections(t *testing.T) {
	s := newTestServer(t)

	challenge, err := core.NewChallenge()
	require.NoError(t, err)

	t.Run("foreign redirect is never followed", func(t *testing.T) {
		q := authorizeQuery(challenge)
		q.Set("redirect_uri", "https://evil.example.net/")
		w := s.do(httptest.NewRequest(http.MethodGet, "/authorize?"+q.Encode(), nil))
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Empty(t, w.Header().Get("Location"))
	})

	for name, tweak := range map[string]func(url.Values){
		"unsupported response type": func(q url.Values) { q.Set("response_type", "token") },
		"unknown provider":          func(q url.Values) { q.Set("provider", "github") },
	} {
		t.Run(name+" with foreign redirect", func(t *testing.T) {
			q := authorizeQuery(challenge)
			tweak(q)
			q.Set("redirect_uri", "https://evil.example.net/steal")
			w := s.do(httptest.NewRequest(http.MethodGet, "/authorize?"+q.Encode(), nil))
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Empty(t, w.Header().Get("Location"))
		})
	}

	t.Run("plain pkce is sent back to the client", func(t *testing.T) {
		q := authorizeQuery(challenge)
		q.Set("code_challenge_method", "plain")
		w := s.do(httptest.NewRequest(http.MethodGet, "/authorize?"+q.Encode(), nil))
		require.Equal(t, http.StatusFound, w.Code)

		location, err := url.Parse(w.Header().Get("Location"))
		require.NoError(t, err)
		assert.Equal(t, "zeroturbo.example.com", location.Host)
		assert.Equal(t, "invalid_request", location.Query().Get("error"))
		assert.Equal(t, challenge.State, location.Query().Get("state"))
	})

	t.Run("unknown request id", func(t *testing.T) {
		w := s.do(httptest.NewRequest(http.MethodGet, "/code/authorize?request=missing", nil))
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestIssuer_CodePages(t *testing.T) {
	s := newTestServer(t)

	challenge, err := core.NewChallenge()
	require.NoError(t, err)

	w := s.do(httptest.NewRequest(http.MethodGet, "/authorize?"+authorizeQuery(challenge).Encode(), nil))
	location, err := url.Parse(w.Header().Get("Location"))
	require.NoError(t, err)
	requestID := location.Query().Get("request")

	w = s.postForm("/code/authorize", url.Values{"action": {"request"}, "request": {requestID}, "email": {"not-an-email"}})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "Invalid email")

	w = s.postForm("/code/authorize", url.Values{"action": {"request"}, "request": {requestID}, "email": {"x@example.com"}})
	require.Equal(t, http.StatusOK, w.Code)

	w = s.postForm("/code/authorize", url.Values{"action": {"verify"}, "request": {requestID}, "email": {"x@example.com"}, "code": {"000000x"}})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "Invalid code")
	assert.Contains(t, w.Body.String(), "x@example.com")

	w = s.postForm("/code/authorize", url.Values{"action": {"bogus"}, "request": {requestID}})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestIssuer_WellKnown(t *testing.T) {
	s := newTestServer(t)

	w := s.do(httptest.NewRequest(http.MethodGet, "/.well-known/jwks.json", nil))
	require.Equal(t, http.StatusOK, w.Code)

	set, err := jwk.Parse(w.Body.Bytes())
	require.NoError(t, err)
	require.Equal(t, 1, set.Len())
	key, ok := set.Key(0)
	require.True(t, ok)
	assert.NotEmpty(t, key.KeyID())

	w = s.do(httptest.NewRequest(http.MethodGet, "/.well-known/oauth-authorization-server", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var meta map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &meta))
	assert.Equal(t, testIssuer, meta["issuer"])
	assert.Equal(t, testIssuer+"/token", meta["token_endpoint"])
	assert.Equal(t, testIssuer+"/.well-known/jwks.json", meta["jwks_uri"])
}

func TestIssuer_UserInfoRequiresBearer(t *testing.T) {
	s := newTestServer(t)

	w := s.do(httptest.NewRequest(http.MethodGet, "/userinfo", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	req := httptest.NewRequest(http.MethodGet, "/userinfo", nil)
	req.Header.Set("Authorization", "Bearer garbage")
	assert.Equal(t, http.StatusUnauthorized, s.do(req).Code)
}
