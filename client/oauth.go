package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/layer-3/zeroturbo/core"
)

// Client talks to the issuer's authorize and token endpoints as a public PKCE client
type Client struct {
	clientID   string
	issuer     string
	httpClient *http.Client
}

// NewClient creates an issuer client. A nil httpClient uses http.DefaultClient.
func NewClient(clientID, issuer string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		clientID:   clientID,
		issuer:     strings.TrimRight(issuer, "/"),
		httpClient: httpClient,
	}
}

type tokenResponse struct {
	AccessToken      string `json:"access_token"`
	RefreshToken     string `json:"refresh_token"`
	ExpiresIn        int    `json:"expires_in"`
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

// Authorize builds the authorize URL for the pin code provider along with the challenge that must survive until the callback
func (c *Client) Authorize(redirectURI string) (string, core.Challenge, error) {
	challenge, err := core.NewChallenge()
	if err != nil {
		return "", core.Challenge{}, err
	}

	query := url.Values{
		"client_id":             {c.clientID},
		"redirect_uri":          {redirectURI},
		"response_type":         {"code"},
		"state":                 {challenge.State},
		"code_challenge":        {core.CodeChallengeS256(challenge.Verifier)},
		"code_challenge_method": {core.PKCEMethodS256},
		"provider":              {"code"},
	}

	return c.issuer + "/authorize?" + query.Encode(), challenge, nil
}

// Exchange redeems an authorization code
func (c *Client) Exchange(ctx context.Context, code, redirectURI, verifier string) (*core.TokenPair, error) {
	return c.token(ctx, "exchange", url.Values{
		"grant_type":    {"authorization_code"},
		"code":          {code},
		"redirect_uri":  {redirectURI},
		"client_id":     {c.clientID},
		"code_verifier": {verifier},
	})
}

// Refresh rotates a refresh token. The old token is spent once this returns successfully.
func (c *Client) Refresh(ctx context.Context, refresh string) (*core.TokenPair, error) {
	return c.token(ctx, "refresh", url.Values{
		"grant_type":    {"refresh_token"},
		"refresh_token": {refresh},
		"client_id":     {c.clientID},
	})
}

// Logout revokes a refresh token at the issuer
func (c *Client) Logout(ctx context.Context, refresh string) error {
	body, err := json.Marshal(map[string]string{"refresh_token": refresh})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.issuer+"/logout", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &NetworkError{Op: "logout", Err: err}
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	switch {
	case resp.StatusCode == http.StatusOK:
		return nil
	case resp.StatusCode == http.StatusBadRequest:
		return core.ErrInvalidGrant
	default:
		return &NetworkError{Op: "logout", Status: resp.StatusCode}
	}
}

func (c *Client) token(ctx context.Context, op string, form url.Values) (*core.TokenPair, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.issuer+"/token", strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &NetworkError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	var body tokenResponse
	decodeErr := json.NewDecoder(resp.Body).Decode(&body)

	switch {
	case resp.StatusCode == http.StatusOK:
		if decodeErr != nil {
			return nil, &NetworkError{Op: op, Err: fmt.Errorf("invalid token response: %w", decodeErr)}
		}
		if body.AccessToken == "" || body.RefreshToken == "" {
			return nil, &NetworkError{Op: op, Err: fmt.Errorf("token response without tokens")}
		}
		return &core.TokenPair{
			Access:    body.AccessToken,
			Refresh:   body.RefreshToken,
			ExpiresIn: body.ExpiresIn,
		}, nil

	case (resp.StatusCode == http.StatusBadRequest || resp.StatusCode == http.StatusUnauthorized) && decodeErr == nil && body.Error != "":
		return nil, fmt.Errorf("%s rejected (%s: %s): %w", op, body.Error, body.ErrorDescription, core.ErrInvalidGrant)

	default:
		return nil, &NetworkError{Op: op, Status: resp.StatusCode}
	}
}
