package http

import (
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/layer-3/zeroturbo/core"
	"github.com/layer-3/zeroturbo/ports"
	"github.com/layer-3/zeroturbo/service"
)

// IssuerHandlers contains HTTP handlers for the OAuth endpoints
type IssuerHandlers struct {
	issuer    *service.IssuerService
	tokenizer ports.Tokenizer
	issuerURL string
}

// NewIssuerHandlers creates new issuer handlers
func NewIssuerHandlers(issuer *service.IssuerService, tokenizer ports.Tokenizer, issuerURL string) *IssuerHandlers {
	return &IssuerHandlers{
		issuer:    issuer,
		tokenizer: tokenizer,
		issuerURL: strings.TrimRight(issuerURL, "/"),
	}
}

type tokenRequest struct {
	GrantType    string `form:"grant_type" binding:"required"`
	Code         string `form:"code"`
	RedirectURI  string `form:"redirect_uri"`
	ClientID     string `form:"client_id"`
	CodeVerifier string `form:"code_verifier"`
	RefreshToken string `form:"refresh_token"`
}

func oauthError(c *gin.Context, status int, code, description string) {
	c.JSON(status, gin.H{"error": code, "error_description": description})
}

// Token handles the authorization_code and refresh_token grants
func (h *IssuerHandlers) Token(c *gin.Context) {
	var req tokenRequest
	if err := c.ShouldBind(&req); err != nil {
		oauthError(c, http.StatusBadRequest, "invalid_request", "grant_type is required")
		return
	}

	var (
		pair *core.TokenPair
		err  error
	)

	switch req.GrantType {
	case "authorization_code":
		if req.Code == "" || req.CodeVerifier == "" || req.RedirectURI == "" || req.ClientID == "" {
			oauthError(c, http.StatusBadRequest, "invalid_request", "code, code_verifier, redirect_uri and client_id are required")
			return
		}
		pair, err = h.issuer.Exchange(c.Request.Context(), service.ExchangeParams{
			Code:         req.Code,
			RedirectURI:  req.RedirectURI,
			ClientID:     req.ClientID,
			CodeVerifier: req.CodeVerifier,
		})

	case "refresh_token":
		if req.RefreshToken == "" {
			oauthError(c, http.StatusBadRequest, "invalid_request", "refresh_token is required")
			return
		}
		pair, err = h.issuer.Refresh(c.Request.Context(), req.RefreshToken)

	default:
		oauthError(c, http.StatusBadRequest, "unsupported_grant_type", req.GrantType)
		return
	}

	if err != nil {
		switch {
		case errors.Is(err, core.ErrInvalidGrant),
			errors.Is(err, core.ErrInvalidToken),
			errors.Is(err, core.ErrTokenExpired),
			errors.Is(err, core.ErrTokenInvalidated):
			oauthError(c, http.StatusBadRequest, "invalid_grant", "grant is invalid, expired or already used")
		default:
			_ = c.Error(err)
			oauthError(c, http.StatusInternalServerError, "server_error", "failed to issue tokens")
		}
		return
	}

	c.Header("Cache-Control", "no-store")
	c.JSON(http.StatusOK, gin.H{
		"access_token":  pair.Access,
		"refresh_token": pair.Refresh,
		"token_type":    "Bearer",
		"expires_in":    pair.ExpiresIn,
	})
}

// Logout handles session logout
func (h *IssuerHandlers) Logout(c *gin.Context) {
	var req struct {
		RefreshToken string `json:"refresh_token" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	err := h.issuer.Logout(c.Request.Context(), req.RefreshToken)
	if err != nil {
		switch {
		case errors.Is(err, core.ErrTokenExpired):
			// Even if expired, we'll consider logout successful
			c.JSON(http.StatusOK, gin.H{"message": "Logged out"})
		case errors.Is(err, core.ErrInvalidToken):
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid refresh token"})
		default:
			_ = c.Error(err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to logout"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Logged out"})
}

// JWKS serves the JSON Web Key Set used to verify access tokens
func (h *IssuerHandlers) JWKS(c *gin.Context) {
	set, err := h.tokenizer.PublicKeys()
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create JWKS"})
		return
	}

	c.Header("Cache-Control", "public, max-age=300")
	c.JSON(http.StatusOK, set)
}

// Metadata serves the OAuth authorization server metadata document
func (h *IssuerHandlers) Metadata(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"issuer":                                h.issuerURL,
		"authorization_endpoint":                h.issuerURL + "/authorize",
		"token_endpoint":                        h.issuerURL + "/token",
		"jwks_uri":                              h.issuerURL + "/.well-known/jwks.json",
		"response_types_supported":              []string{"code"},
		"grant_types_supported":                 []string{"authorization_code", "refresh_token"},
		"code_challenge_methods_supported":      []string{core.PKCEMethodS256},
		"token_endpoint_auth_methods_supported": []string{"none"},
	})
}

// UserInfo returns the subject of the presented access token
func (h *IssuerHandlers) UserInfo(c *gin.Context) {
	subject, ok := subjectFrom(c)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Subject not found in context"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"type":       "account",
		"properties": subject,
	})
}

// Authorize starts the authorization code flow and hands over to the pin code pages
func (h *IssuerHandlers) Authorize(c *gin.Context) {
	params := service.AuthorizeParams{
		ClientID:            c.Query("client_id"),
		RedirectURI:         c.Query("redirect_uri"),
		ResponseType:        c.Query("response_type"),
		State:               c.Query("state"),
		CodeChallenge:       c.Query("code_challenge"),
		CodeChallengeMethod: c.Query("code_challenge_method"),
	}
	if provider := c.Query("provider"); provider != "" && provider != "code" {
		params.ResponseType = ""
	}

	req, err := h.issuer.Authorize(c.Request.Context(), params)
	if err != nil {
		switch {
		case errors.Is(err, core.ErrInvalidRedirect), errors.Is(err, core.ErrInvalidClient):
			// Never redirect to an unverified location
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "error_description": err.Error()})
		case errors.Is(err, core.ErrInvalidRequest):
			c.Redirect(http.StatusFound, withQuery(params.RedirectURI, url.Values{
				"error":             {"invalid_request"},
				"error_description": {err.Error()},
				"state":             {params.State},
			}))
		default:
			_ = c.Error(err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "server_error"})
		}
		return
	}

	c.Redirect(http.StatusFound, "/code/authorize?request="+url.QueryEscape(req.ID))
}

func withQuery(raw string, values url.Values) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	q := u.Query()
	for k, v := range values {
		q[k] = v
	}
	u.RawQuery = q.Encode()
	return u.String()
}
