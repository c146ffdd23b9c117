// Package vrchat owns the authenticated VRChat API session and the group
// instance fetch used by the poll worker and the manual /instances endpoint.
package vrchat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"sync"
	"time"

	"github.com/pquerna/otp/totp"
	"github.com/rs/zerolog"

	"vrcnotify/internal/model"
)

const userAgent = "vrcnotify/1.0"

// Credentials is the login identity for the single VRChat account this
// process acts as. Read-only after construction.
type Credentials struct {
	Username   string
	Password   string
	TOTPSecret string // base32 seed for the 2FA code
}

// Client talks to the VRChat API. It holds at most one authenticated
// session (an http.Client with a cookie jar) behind a mutex; callers never
// touch the slot directly, they go through acquireSession so the
// re-authentication invariant holds.
type Client struct {
	baseURL    string
	creds      Credentials
	groupID    string
	maxRetries int
	timeout    time.Duration
	log        zerolog.Logger

	// sleep is context-aware so a shutdown interrupts a backoff wait.
	// Swapped out in tests to avoid real waiting.
	sleep func(ctx context.Context, d time.Duration) error

	mu      sync.Mutex
	session *http.Client // nil until a handshake succeeds
}

// NewClient builds a Client. maxRetries bounds the login+TOTP sequence
// retries on rate limiting; timeout applies to every outbound call.
func NewClient(baseURL string, creds Credentials, groupID string, maxRetries int, timeout time.Duration, log zerolog.Logger) *Client {
	if maxRetries <= 0 {
		maxRetries = 5
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL:    baseURL,
		creds:      creds,
		groupID:    groupID,
		maxRetries: maxRetries,
		timeout:    timeout,
		log:        log.With().Str("component", "vrchat").Logger(),
		sleep:      sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// acquireSession returns the cached session if one exists, otherwise runs
// the full login+TOTP handshake and caches the result. A cached session
// costs zero network calls.
func (c *Client) acquireSession(ctx context.Context) (*http.Client, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.session != nil {
		return c.session, nil
	}

	sess, err := c.login(ctx)
	if err != nil {
		return nil, err
	}
	c.session = sess
	return sess, nil
}

// invalidate clears the cached slot, but only if it still holds the session
// the caller saw fail. A concurrent caller may already have replaced it.
func (c *Client) invalidate(sess *http.Client) {
	c.mu.Lock()
	if c.session == sess {
		c.session = nil
	}
	c.mu.Unlock()
}

type loginResponse struct {
	RequiresTwoFactorAuth []string `json:"requiresTwoFactorAuth"`
}

// login runs the credential + TOTP handshake. Each rate-limited attempt
// backs off 2^attempt seconds and re-runs the whole sequence, because the
// TOTP code has to be re-derived from the current time window.
func (c *Client) login(ctx context.Context) (*http.Client, error) {
	for attempt := 0; attempt < c.maxRetries; attempt++ {
		jar, err := cookiejar.New(nil)
		if err != nil {
			return nil, &AuthError{Reason: "cookie jar init", Err: err}
		}
		sess := &http.Client{Jar: jar, Timeout: c.timeout}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/auth/user", nil)
		if err != nil {
			return nil, &AuthError{Reason: "build login request", Err: err}
		}
		req.SetBasicAuth(c.creds.Username, c.creds.Password)
		req.Header.Set("User-Agent", userAgent)

		resp, err := sess.Do(req)
		if err != nil {
			return nil, &AuthError{Reason: "login request", Err: err}
		}
		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return nil, &AuthError{Reason: "read login response", Err: err}
		}

		c.log.Debug().Int("status", resp.StatusCode).Msg("login response")

		if resp.StatusCode != http.StatusOK {
			// Bad credentials or anything else non-2FA: abort, no retry.
			return nil, &AuthError{Reason: fmt.Sprintf("login rejected with status %d", resp.StatusCode)}
		}

		var lr loginResponse
		if err := json.Unmarshal(body, &lr); err != nil {
			return nil, &AuthError{Reason: "parse login response", Err: err}
		}

		if len(lr.RequiresTwoFactorAuth) == 0 {
			c.log.Info().Msg("login ok, account does not require 2FA")
			return sess, nil
		}

		code, err := totp.GenerateCode(c.creds.TOTPSecret, time.Now())
		if err != nil {
			return nil, &AuthError{Reason: "generate TOTP code", Err: err}
		}

		status, err := c.verifyTOTP(ctx, sess, code)
		if err != nil {
			return nil, &AuthError{Reason: "TOTP verify request", Err: err}
		}

		switch status {
		case http.StatusOK:
			c.log.Info().Msg("2FA verification ok")
			return sess, nil
		case http.StatusTooManyRequests:
			wait := time.Duration(1<<attempt) * time.Second
			c.log.Warn().
				Dur("wait", wait).
				Int("attempt", attempt+1).
				Int("max", c.maxRetries).
				Msg("rate limited during 2FA verify, backing off")
			if err := c.sleep(ctx, wait); err != nil {
				return nil, &AuthError{Reason: "backoff interrupted", Err: err}
			}
		default:
			return nil, &AuthError{Reason: fmt.Sprintf("2FA verification rejected with status %d", status)}
		}
	}

	return nil, &AuthError{Reason: fmt.Sprintf("retry budget exhausted after %d attempts", c.maxRetries)}
}

func (c *Client) verifyTOTP(ctx context.Context, sess *http.Client, code string) (int, error) {
	payload, _ := json.Marshal(map[string]string{"code": code})

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/auth/twofactorauth/totp/verify", bytes.NewReader(payload))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", userAgent)

	resp, err := sess.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	return resp.StatusCode, nil
}

// FetchGroupInstances returns the group's live instances, index 0 being the
// most relevant one. A 401 on a cached session triggers exactly one
// re-authentication; a second 401 on the fresh session is fatal rather than
// looping.
func (c *Client) FetchGroupInstances(ctx context.Context) ([]model.GroupInstance, error) {
	sess, err := c.acquireSession(ctx)
	if err != nil {
		return nil, err
	}

	instances, status, err := c.listInstances(ctx, sess)
	if err != nil {
		return nil, err
	}
	if status != http.StatusUnauthorized {
		return instances, nil
	}

	c.log.Warn().Msg("session expired, re-authenticating")
	c.invalidate(sess)

	sess, err = c.acquireSession(ctx)
	if err != nil {
		return nil, err
	}
	instances, status, err = c.listInstances(ctx, sess)
	if err != nil {
		return nil, err
	}
	if status == http.StatusUnauthorized {
		c.invalidate(sess)
		return nil, &AuthError{Reason: "freshly authenticated session rejected with 401"}
	}
	return instances, nil
}

type apiError struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

// listInstances does one GET of the instance list. It reports a 401 via the
// status return so FetchGroupInstances can run the bounded re-auth, and maps
// every other failure to FetchError.
func (c *Client) listInstances(ctx context.Context, sess *http.Client) ([]model.GroupInstance, int, error) {
	url := fmt.Sprintf("%s/groups/%s/instances", c.baseURL, c.groupID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, 0, &FetchError{Message: err.Error()}
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := sess.Do(req)
	if err != nil {
		return nil, 0, &FetchError{Message: err.Error()}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, &FetchError{Message: "read response body: " + err.Error()}
	}

	c.log.Debug().Int("status", resp.StatusCode).Msg("instances response")

	switch resp.StatusCode {
	case http.StatusOK:
		var instances []model.GroupInstance
		if err := json.Unmarshal(body, &instances); err != nil {
			return nil, resp.StatusCode, &FetchError{Message: "malformed instances response: " + err.Error()}
		}
		return instances, resp.StatusCode, nil
	case http.StatusUnauthorized:
		return nil, resp.StatusCode, nil
	default:
		msg := "unknown"
		var ae apiError
		if err := json.Unmarshal(body, &ae); err == nil && ae.Error.Message != "" {
			msg = ae.Error.Message
		}
		return nil, resp.StatusCode, &FetchError{Message: msg}
	}
}
