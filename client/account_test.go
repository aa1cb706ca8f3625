package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeJSON(r *http.Request, v any) error {
	return json.NewDecoder(r.Body).Decode(v)
}

// accountAPI answers /account for the given bearer token only
func accountAPI(t *testing.T, token string, body string) *httptest.Server {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/account" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		if r.Header.Get("Authorization") != "Bearer "+token {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestAccountFetcher_Fetch(t *testing.T) {
	srv := accountAPI(t, "a1", `{"id":"u1","email":"x@example.com"}`)
	f := NewAccountFetcher(srv.URL+"/", srv.Client())

	account, err := f.Fetch(context.Background(), "a1")
	require.NoError(t, err)
	assert.Equal(t, "u1", account.ID)
	assert.Equal(t, "x@example.com", account.Email)

	_, err = f.Fetch(context.Background(), "a2")
	assert.ErrorIs(t, err, ErrUnauthenticated)
}

func TestAccountFetcher_Statuses(t *testing.T) {
	tests := []struct {
		status  int
		body    string
		network bool
	}{
		{http.StatusUnauthorized, "", false},
		{http.StatusForbidden, "", false},
		{http.StatusNotFound, "", false},
		{http.StatusBadGateway, "", true},
		{http.StatusOK, "not json", true},
		{http.StatusOK, `{"email":"x@example.com"}`, true},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			_, err := NewAccountFetcher(srv.URL, srv.Client()).Fetch(context.Background(), "a1")
			require.Error(t, err)

			var netErr *NetworkError
			if tt.network {
				assert.ErrorAs(t, err, &netErr)
			} else {
				assert.ErrorIs(t, err, ErrUnauthenticated)
			}
		})
	}
}

func TestAccountFetcher_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	addr := srv.URL
	srv.Close()

	_, err := NewAccountFetcher(addr, nil).Fetch(context.Background(), "a1")

	var netErr *NetworkError
	assert.ErrorAs(t, err, &netErr)
	assert.NotErrorIs(t, err, ErrUnauthenticated)
}
