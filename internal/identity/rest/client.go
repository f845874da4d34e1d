// Package rest implements identity.Provider against the provider's HTTP
// admin API.
//
// Server-to-server calls are authenticated with the OAuth2 client-credentials
// grant: the oauth2 library manages the admin token (fetching, caching,
// refreshing) and injects the Authorization header on every request through
// an authenticated *http.Client.
//
// API shape (JSON everywhere):
//
//	POST   {base}/v1/accounts                       {email,password} → 201 {id}
//	GET    {base}/v1/accounts/lookup?email=<email>  → 200 record
//	GET    {base}/v1/accounts/{id}                  → 200 record
//	DELETE {base}/v1/accounts/{id}                  → 204
//	POST   {base}/v1/verification-links             {email} → 200 {link}
//	GET    {base}/v1/accounts?page_token=&page_size= → 200 {records,nextPageToken}
//
// Errors come back as {"error":{"code","message"}}; codes are pattern-matched
// to the identity sentinel errors.
package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/oauth2/clientcredentials"

	"github.com/dmejias/account-service/internal/identity"
)

const listPageSize = 100

// Config holds everything needed to construct a Client.
type Config struct {
	BaseURL      string
	TokenURL     string // OAuth2 token endpoint for the client-credentials grant
	ClientID     string
	ClientSecret string
	Timeout      time.Duration

	// HTTPClient overrides the OAuth2-authenticated client. Tests use this
	// to point the client at an httptest server without a token endpoint.
	HTTPClient *http.Client
}

// Client talks to the identity provider's admin API. It implements
// identity.Provider except for VerifyToken, which is delegated to the
// shared-secret TokenVerifier (tokens are verified locally, not remotely).
type Client struct {
	baseURL  string
	http     *http.Client
	verifier *identity.TokenVerifier
}

var _ identity.Provider = (*Client)(nil)

// New creates a Client. The verifier handles bearer-token verification; all
// other operations go over HTTP.
func New(cfg Config, verifier *identity.TokenVerifier) *Client {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		cc := clientcredentials.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			TokenURL:     cfg.TokenURL,
		}
		// Client(ctx) returns an *http.Client that attaches and refreshes
		// the admin bearer token on every request.
		httpClient = cc.Client(context.Background())
	}
	if cfg.Timeout > 0 {
		httpClient.Timeout = cfg.Timeout
	}

	return &Client{
		baseURL:  cfg.BaseURL,
		http:     httpClient,
		verifier: verifier,
	}
}

// record mirrors the provider's account representation on the wire.
type record struct {
	ID            string    `json:"id"`
	Email         string    `json:"email"`
	EmailVerified bool      `json:"emailVerified"`
	Disabled      bool      `json:"disabled"`
	CreatedAt     time.Time `json:"createdAt"`
}

func (r record) toIdentity() *identity.Record {
	return &identity.Record{
		ID:            r.ID,
		Email:         r.Email,
		EmailVerified: r.EmailVerified,
		Disabled:      r.Disabled,
		CreatedAt:     r.CreatedAt,
	}
}

// apiError is the provider's error envelope.
type apiError struct {
	Err struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// CreateCredential registers a new email/password credential and returns the
// provider-assigned identifier.
func (c *Client) CreateCredential(ctx context.Context, email, password string) (string, error) {
	body, err := json.Marshal(map[string]string{"email": email, "password": password})
	if err != nil {
		return "", fmt.Errorf("rest: encoding create request: %w", err)
	}

	resp, err := c.do(ctx, http.MethodPost, c.baseURL+"/v1/accounts", body)
	if err != nil {
		return "", fmt.Errorf("rest: creating credential: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("rest: creating credential: %w", c.classify(resp))
	}

	var out struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("rest: decoding create response: %w", err)
	}
	if out.ID == "" {
		return "", fmt.Errorf("rest: provider returned an empty identifier")
	}
	return out.ID, nil
}

// GetByEmail resolves a provider record by email address.
func (c *Client) GetByEmail(ctx context.Context, email string) (*identity.Record, error) {
	u := c.baseURL + "/v1/accounts/lookup?email=" + url.QueryEscape(email)
	return c.getRecord(ctx, u, "looking up credential by email")
}

// GetByID resolves a provider record by external identifier.
func (c *Client) GetByID(ctx context.Context, id string) (*identity.Record, error) {
	u := c.baseURL + "/v1/accounts/" + url.PathEscape(id)
	return c.getRecord(ctx, u, "looking up credential by id")
}

func (c *Client) getRecord(ctx context.Context, u, op string) (*identity.Record, error) {
	resp, err := c.do(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("rest: %s: %w", op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("rest: %s: %w", op, c.classify(resp))
	}

	var rec record
	if err := json.NewDecoder(resp.Body).Decode(&rec); err != nil {
		return nil, fmt.Errorf("rest: decoding record: %w", err)
	}
	return rec.toIdentity(), nil
}

// VerifyToken validates a provider-issued bearer token locally.
func (c *Client) VerifyToken(_ context.Context, token string) (*identity.Claims, error) {
	return c.verifier.Verify(token)
}

// GenerateVerificationLink asks the provider for an email-verification URL.
func (c *Client) GenerateVerificationLink(ctx context.Context, email string) (string, error) {
	body, err := json.Marshal(map[string]string{"email": email})
	if err != nil {
		return "", fmt.Errorf("rest: encoding verification-link request: %w", err)
	}

	resp, err := c.do(ctx, http.MethodPost, c.baseURL+"/v1/verification-links", body)
	if err != nil {
		return "", fmt.Errorf("rest: generating verification link: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return "", fmt.Errorf("rest: generating verification link: %w", c.classify(resp))
	}

	var out struct {
		Link string `json:"link"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("rest: decoding verification-link response: %w", err)
	}
	return out.Link, nil
}

// DeleteCredential removes the provider's record for the identifier.
func (c *Client) DeleteCredential(ctx context.Context, id string) error {
	u := c.baseURL + "/v1/accounts/" + url.PathEscape(id)
	resp, err := c.do(ctx, http.MethodDelete, u, nil)
	if err != nil {
		return fmt.Errorf("rest: deleting credential: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNoContent && resp.StatusCode != http.StatusOK {
		return fmt.Errorf("rest: deleting credential: %w", c.classify(resp))
	}
	return nil
}

// ListRecords returns one page of provider records plus the next page token.
func (c *Client) ListRecords(ctx context.Context, pageToken string) ([]identity.Record, string, error) {
	q := url.Values{"page_size": {strconv.Itoa(listPageSize)}}
	if pageToken != "" {
		q.Set("page_token", pageToken)
	}

	resp, err := c.do(ctx, http.MethodGet, c.baseURL+"/v1/accounts?"+q.Encode(), nil)
	if err != nil {
		return nil, "", fmt.Errorf("rest: listing credentials: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("rest: listing credentials: %w", c.classify(resp))
	}

	var out struct {
		Records       []record `json:"records"`
		NextPageToken string   `json:"nextPageToken"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, "", fmt.Errorf("rest: decoding list response: %w", err)
	}

	records := make([]identity.Record, 0, len(out.Records))
	for _, r := range out.Records {
		records = append(records, *r.toIdentity())
	}
	return records, out.NextPageToken, nil
}

// do builds and executes a JSON request with the authenticated client.
func (c *Client) do(ctx context.Context, method, u string, body []byte) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	return c.http.Do(req)
}

// classify turns a non-2xx response into a sentinel error where the
// provider's error code (or the HTTP status) identifies a known category.
// Unknown codes produce a generic error carrying the status for logs.
func (c *Client) classify(resp *http.Response) error {
	var body apiError
	_ = json.NewDecoder(resp.Body).Decode(&body)

	switch body.Err.Code {
	case "EMAIL_EXISTS":
		return identity.ErrEmailExists
	case "TOO_MANY_ATTEMPTS", "TOO_MANY_REQUESTS":
		return identity.ErrRateLimited
	case "NOT_FOUND", "USER_NOT_FOUND":
		return identity.ErrNotFound
	case "INVALID_TOKEN":
		return identity.ErrInvalidToken
	}

	switch resp.StatusCode {
	case http.StatusNotFound:
		return identity.ErrNotFound
	case http.StatusTooManyRequests:
		return identity.ErrRateLimited
	}

	return fmt.Errorf("provider returned status %d (code %q)", resp.StatusCode, body.Err.Code)
}
