package cli

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/layer-3/zeroturbo/client"
	"github.com/layer-3/zeroturbo/core"
)

// callbackServer receives the issuer's redirect on the loopback address
type callbackServer struct {
	listener   net.Listener
	srv        *http.Server
	result     chan *url.URL
	challenges client.Storage
}

// listenCallback accepts only redirects whose state matches the challenge pending in challenges
func listenCallback(addr string, challenges client.Storage) (*callbackServer, error) {
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen for the sign in callback on %s: %w", addr, err)
	}

	c := &callbackServer{
		listener:   l,
		result:     make(chan *url.URL, 1),
		challenges: challenges,
	}
	c.srv = &http.Server{Handler: http.HandlerFunc(c.handle), ReadHeaderTimeout: 10 * time.Second}

	go func() { _ = c.srv.Serve(l) }()
	return c, nil
}

func (c *callbackServer) handle(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if q.Get("error") == "" && (q.Get("code") == "" || q.Get("state") == "") {
		http.NotFound(w, r)
		return
	}

	if !c.pending(q.Get("state")) {
		http.Error(w, "unexpected sign in response", http.StatusBadRequest)
		return
	}

	location := *r.URL
	select {
	case c.result <- &location:
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		fmt.Fprintln(w, "Return to the terminal to finish signing in.")
	default:
		http.Error(w, "sign in already completed", http.StatusConflict)
	}
}

func (c *callbackServer) pending(state string) bool {
	raw, ok, err := c.challenges.Get(client.KeyChallenge)
	if err != nil || !ok || state == "" {
		return false
	}
	var challenge core.Challenge
	if err := json.Unmarshal([]byte(raw), &challenge); err != nil {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(state), []byte(challenge.State)) == 1
}

// Wait returns the callback location, or the error the issuer redirected with
func (c *callbackServer) Wait(ctx context.Context) (*url.URL, error) {
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("gave up waiting for the sign in callback: %w", ctx.Err())
	case location := <-c.result:
		q := location.Query()
		if e := q.Get("error"); e != "" {
			return nil, errors.New("sign in failed: " + e + " " + q.Get("error_description"))
		}
		return location, nil
	}
}

func (c *callbackServer) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	return c.srv.Shutdown(ctx)
}
