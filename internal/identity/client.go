// Package identity talks to the remote identity service over HTTP.
package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"fdss/internal/domain"
	"fdss/internal/logger"

	"github.com/google/uuid"
)

const maxResponseSize = 1 << 20

var ErrBadResponse = errors.New("malformed identity service response")

var _ domain.IdentityService = (*Client)(nil)

type Client struct {
	baseURL   string
	http      *http.Client
	userAgent string
	log       logger.Logger
}

type Option func(*Client)

func WithUserAgent(ua string) Option {
	return func(c *Client) { c.userAgent = ua }
}

// WithHTTPClient replaces the underlying client. Its transport is still
// wrapped for bearer injection.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

func NewClient(baseURL string, tokens TokenSource, clientID uuid.UUID, log logger.Logger, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{},
		log:     log.With("component", "identity"),
	}
	for _, opt := range opts {
		opt(c)
	}

	base := c.http.Transport
	if base == nil {
		base = http.DefaultTransport
	}
	wrapped := *c.http
	wrapped.Transport = &bearerTransport{base: base, tokens: tokens, clientID: clientID, userAgent: c.userAgent}
	c.http = &wrapped

	return c
}

type loginResponse struct {
	AccessToken string              `json:"access_token"`
	TokenType   string              `json:"token_type"`
	User        *domain.UserProfile `json:"user"`
}

type messageResponse struct {
	Message string `json:"message"`
}

type registerRequest struct {
	FullName string      `json:"full_name"`
	Email    string      `json:"email"`
	Password string      `json:"password"`
	Role     domain.Role `json:"role"`
}

func (c *Client) Login(ctx context.Context, creds domain.Credentials) (*domain.AuthResult, error) {
	var res loginResponse
	if err := c.do(ctx, http.MethodPost, "/auth/login", creds, &res); err != nil {
		return nil, err
	}

	if res.AccessToken == "" || res.User == nil {
		return nil, fmt.Errorf("%w: login without token or user", ErrBadResponse)
	}
	defaultRole(res.User)

	return &domain.AuthResult{Token: res.AccessToken, User: res.User}, nil
}

func (c *Client) Register(ctx context.Context, req domain.Registration) error {
	role := req.Role
	if role == "" {
		role = domain.RoleMember
	}

	return c.do(ctx, http.MethodPost, "/auth/register", registerRequest{
		FullName: req.FullName,
		Email:    req.Email,
		Password: req.Password,
		Role:     role,
	}, nil)
}

func (c *Client) ForgotPassword(ctx context.Context, req domain.ResetRequest) (string, error) {
	var res messageResponse
	if err := c.do(ctx, http.MethodPost, "/auth/forgot-password", req, &res); err != nil {
		return "", err
	}
	return res.Message, nil
}

func (c *Client) ResetPassword(ctx context.Context, req domain.ResetConfirmation) (string, error) {
	var res messageResponse
	if err := c.do(ctx, http.MethodPost, "/auth/reset-password", req, &res); err != nil {
		return "", err
	}
	return res.Message, nil
}

func (c *Client) UpdateProfile(ctx context.Context, req domain.ProfileUpdate) (*domain.UserProfile, error) {
	var user domain.UserProfile
	if err := c.do(ctx, http.MethodPut, "/auth/profile", req, &user); err != nil {
		return nil, err
	}

	if user.Email == "" {
		return nil, fmt.Errorf("%w: profile without email", ErrBadResponse)
	}
	defaultRole(&user)
	return &user, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	res, err := c.http.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		c.log.Warn("identity request failed", "method", method, "path", path, "error", err)
		return fmt.Errorf("%w: %v", domain.ErrTransport, err)
	}
	defer res.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(res.Body, maxResponseSize))
	if err != nil {
		return fmt.Errorf("%w: reading response: %v", domain.ErrTransport, err)
	}

	if res.StatusCode < 200 || res.StatusCode > 299 {
		serr := &domain.ServiceError{Status: res.StatusCode, Detail: detailOf(raw)}
		c.log.Debug("identity service rejected request", "path", path, "status", res.StatusCode)
		return serr
	}

	if out == nil || len(bytes.TrimSpace(raw)) == 0 {
		if out != nil {
			return fmt.Errorf("%w: empty body", ErrBadResponse)
		}
		return nil
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%w: %v", ErrBadResponse, err)
	}
	return nil
}

// defaultRole fills in the role the service assigns to accounts created
// without one.
func defaultRole(u *domain.UserProfile) {
	if u.Role == "" {
		u.Role = domain.RoleMember
	}
}

// detailOf extracts a human readable detail. Only string details count;
// framework validation lists are ignored.
func detailOf(raw []byte) string {
	var body struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(raw, &body); err != nil || len(body.Detail) == 0 {
		return ""
	}

	var detail string
	if err := json.Unmarshal(body.Detail, &detail); err != nil {
		return ""
	}
	return strings.TrimSpace(detail)
}
