/* Copyright 2025 LogYourBody Authors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package client provides an interface for interacting with the remote store
// over HTTP and the data structures for responses
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/logyourbody/logyourbody/pkg/cli/database"
	"github.com/logyourbody/logyourbody/pkg/units"
	"github.com/pkg/errors"
	"golang.org/x/time/rate"
)

// ErrNotAuthenticated is an error for a request the server rejected because
// the session is missing, expired or invalid
var ErrNotAuthenticated = errors.New("not authenticated")

// HTTPError represents an HTTP error response from the server
type HTTPError struct {
	StatusCode int
	Message    string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf(`response %d "%s"`, e.StatusCode, e.Message)
}

// IsAuth returns true if the error indicates an authentication failure
func (e *HTTPError) IsAuth() bool {
	return e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden
}

const (
	// clientRateLimitPerSecond is the max requests per second the client will make
	clientRateLimitPerSecond = 50
	// clientRateLimitBurst is the burst capacity for rate limiting
	clientRateLimitBurst = 100
)

// rateLimitedTransport wraps an http.RoundTripper with rate limiting
type rateLimitedTransport struct {
	transport http.RoundTripper
	limiter   *rate.Limiter
}

func (t *rateLimitedTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if err := t.limiter.Wait(req.Context()); err != nil {
		return nil, err
	}
	return t.transport.RoundTrip(req)
}

// NewRateLimitedHTTPClient creates an HTTP client with rate limiting
func NewRateLimitedHTTPClient() *http.Client {
	interval := time.Second / time.Duration(clientRateLimitPerSecond)

	transport := &rateLimitedTransport{
		transport: http.DefaultTransport,
		limiter:   rate.NewLimiter(rate.Every(interval), clientRateLimitBurst),
	}
	return &http.Client{
		Transport: transport,
	}
}

// User is the authenticated user as reported by the server
type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// Client talks to the remote store on behalf of one session
type Client struct {
	endpoint   string
	sessionKey string
	httpClient *http.Client
}

// New returns a client for the given API endpoint and session
func New(endpoint, sessionKey string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = NewRateLimitedHTTPClient()
	}

	return &Client{endpoint: endpoint, sessionKey: sessionKey, httpClient: httpClient}
}

func (c *Client) do(ctx context.Context, method, path string, body, dest interface{}) error {
	var reqBody io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return errors.Wrap(err, "marshalling request body")
		}
		reqBody = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.endpoint+path, reqBody)
	if err != nil {
		return errors.Wrap(err, "constructing request")
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.sessionKey != "" {
		req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", c.sessionKey))
	}

	res, err := c.httpClient.Do(req)
	if err != nil {
		return errors.Wrapf(err, "making request to %s %s", method, path)
	}
	defer res.Body.Close()

	if res.StatusCode == http.StatusUnauthorized || res.StatusCode == http.StatusForbidden {
		return ErrNotAuthenticated
	}
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		return &HTTPError{StatusCode: res.StatusCode, Message: string(bytes.TrimSpace(msg))}
	}

	if dest != nil {
		if err := json.NewDecoder(res.Body).Decode(dest); err != nil {
			return errors.Wrap(err, "decoding response body")
		}
	}

	return nil
}

// get performs a lookup by identifier; absent records yield found == false
func (c *Client) get(ctx context.Context, path string, dest interface{}) (bool, error) {
	err := c.do(ctx, http.MethodGet, path, nil, dest)

	var httpErr *HTTPError
	if errors.As(err, &httpErr) && httpErr.StatusCode == http.StatusNotFound {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	return true, nil
}

// GetMe returns the authenticated user
func (c *Client) GetMe(ctx context.Context) (User, error) {
	var ret User
	if err := c.do(ctx, http.MethodGet, "/v1/me", nil, &ret); err != nil {
		return ret, errors.Wrap(err, "getting the authenticated user")
	}

	return ret, nil
}

// Ping checks that the server is reachable. It requires no session.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+"/health", nil)
	if err != nil {
		return errors.Wrap(err, "constructing request")
	}

	res, err := c.httpClient.Do(req)
	if err != nil {
		return errors.Wrap(err, "pinging the server")
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return &HTTPError{StatusCode: res.StatusCode, Message: "health check failed"}
	}

	return nil
}

// GetProfile returns the remote copy of the profile, or nil if absent
func (c *Client) GetProfile(ctx context.Context, id string) (*database.Profile, error) {
	var ret database.Profile
	found, err := c.get(ctx, fmt.Sprintf("/v1/profiles/%s", id), &ret)
	if err != nil {
		return nil, errors.Wrapf(err, "getting remote profile %s", id)
	}
	if !found {
		return nil, nil
	}

	return &ret, nil
}

// UpsertProfile idempotently writes the profile to the remote store, keyed by
// its identifier
func (c *Client) UpsertProfile(ctx context.Context, p database.Profile) error {
	if err := c.do(ctx, http.MethodPut, fmt.Sprintf("/v1/profiles/%s", p.ID), p, nil); err != nil {
		return errors.Wrapf(err, "upserting profile %s", p.ID)
	}

	return nil
}

// GetBodyMetric returns the remote copy of the body metric entry, or nil if absent
func (c *Client) GetBodyMetric(ctx context.Context, id string) (*database.BodyMetric, error) {
	var ret database.BodyMetric
	found, err := c.get(ctx, fmt.Sprintf("/v1/body-metrics/%s", id), &ret)
	if err != nil {
		return nil, errors.Wrapf(err, "getting remote body metric %s", id)
	}
	if !found {
		return nil, nil
	}

	return &ret, nil
}

// UpsertBodyMetric idempotently writes the body metric entry to the remote
// store. The weight is normalized to kilograms at this boundary; the local
// store may hold the user's native unit but the server stores one unit only.
func (c *Client) UpsertBodyMetric(ctx context.Context, m database.BodyMetric) error {
	if m.Weight != nil && m.WeightUnit != units.WeightKg && m.WeightUnit != "" {
		normalized := units.NormalizeWeight(*m.Weight, m.WeightUnit)
		m.Weight = &normalized
		m.WeightUnit = units.WeightKg
	}

	if err := c.do(ctx, http.MethodPut, fmt.Sprintf("/v1/body-metrics/%s", m.ID), m, nil); err != nil {
		return errors.Wrapf(err, "upserting body metric %s", m.ID)
	}

	return nil
}

// GetDailyMetric returns the remote copy of the daily metric entry, or nil if absent
func (c *Client) GetDailyMetric(ctx context.Context, id string) (*database.DailyMetric, error) {
	var ret database.DailyMetric
	found, err := c.get(ctx, fmt.Sprintf("/v1/daily-metrics/%s", id), &ret)
	if err != nil {
		return nil, errors.Wrapf(err, "getting remote daily metric %s", id)
	}
	if !found {
		return nil, nil
	}

	return &ret, nil
}

// UpsertDailyMetric idempotently writes the daily metric entry to the remote store
func (c *Client) UpsertDailyMetric(ctx context.Context, m database.DailyMetric) error {
	if err := c.do(ctx, http.MethodPut, fmt.Sprintf("/v1/daily-metrics/%s", m.ID), m, nil); err != nil {
		return errors.Wrapf(err, "upserting daily metric %s", m.ID)
	}

	return nil
}

// SigninResponse is the response from the signin endpoint
type SigninResponse struct {
	Key    string `json:"key"`
	Expiry int64  `json:"expiry"`
	UserID string `json:"user_id"`
}

// Signin exchanges credentials for a session
func (c *Client) Signin(ctx context.Context, email, password string) (SigninResponse, error) {
	var ret SigninResponse

	body := map[string]string{"email": email, "password": password}
	if err := c.do(ctx, http.MethodPost, "/v1/signin", body, &ret); err != nil {
		return ret, errors.Wrap(err, "signing in")
	}

	return ret, nil
}

// Signout invalidates the session on the server
func (c *Client) Signout(ctx context.Context) error {
	if err := c.do(ctx, http.MethodPost, "/v1/signout", nil, nil); err != nil {
		return errors.Wrap(err, "signing out")
	}

	return nil
}
