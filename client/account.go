package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/layer-3/zeroturbo/core"
)

// AccountFetcher loads the account behind an access token from the API
type AccountFetcher struct {
	apiURL     string
	httpClient *http.Client
}

// NewAccountFetcher creates a fetcher for {apiURL}/account. A nil httpClient uses http.DefaultClient.
func NewAccountFetcher(apiURL string, httpClient *http.Client) *AccountFetcher {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &AccountFetcher{
		apiURL:     strings.TrimRight(apiURL, "/"),
		httpClient: httpClient,
	}
}

// Fetch returns the account, ErrUnauthenticated when the API does not accept the token, or a *NetworkError otherwise
func (f *AccountFetcher) Fetch(ctx context.Context, accessToken string) (*core.Account, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.apiURL+"/account", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/json")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, &NetworkError{Op: "fetch account", Err: err}
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		account := &core.Account{}
		if err := json.NewDecoder(resp.Body).Decode(account); err != nil {
			return nil, &NetworkError{Op: "fetch account", Err: fmt.Errorf("invalid account response: %w", err)}
		}
		if account.ID == "" {
			return nil, &NetworkError{Op: "fetch account", Err: fmt.Errorf("account response without id")}
		}
		return account, nil

	case http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound:
		return nil, ErrUnauthenticated

	default:
		return nil, &NetworkError{Op: "fetch account", Status: resp.StatusCode}
	}
}
