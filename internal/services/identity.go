package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"socialconnect/internal/utils"
	"strings"
	"time"
)

// Identity is what the external provider asserts about a token holder.
type Identity struct {
	Email     string
	Confirmed bool
}

// IdentityProvider is the third-party auth service the local user table
// mirrors. It owns credentials and confirmation state.
type IdentityProvider interface {
	SignUp(ctx context.Context, email, password string, metadata map[string]string) error
	VerifyIdentity(ctx context.Context, token string) (*Identity, error)
	IssueSession(ctx context.Context, email, password string) (string, error)
	SendPasswordReset(ctx context.Context, email string) error
	UpdatePassword(ctx context.Context, token, newPassword string) (*Identity, error)
	SignOut(ctx context.Context, token string) error
}

// SupabaseClient talks to the Supabase auth (GoTrue) REST API.
type SupabaseClient struct {
	baseURL       string
	key           string
	resetRedirect string
	client        *http.Client
}

func NewSupabaseClient(baseURL, key, resetRedirect string) *SupabaseClient {
	return &SupabaseClient{
		baseURL:       strings.TrimRight(baseURL, "/"),
		key:           key,
		resetRedirect: resetRedirect,
		client:        &http.Client{Timeout: 15 * time.Second},
	}
}

// supabaseUser is the subset of the GoTrue user object we read.
type supabaseUser struct {
	ID               string     `json:"id"`
	Email            string     `json:"email"`
	ConfirmedAt      *time.Time `json:"confirmed_at"`
	EmailConfirmedAt *time.Time `json:"email_confirmed_at"`
}

func (u *supabaseUser) identity() *Identity {
	return &Identity{
		Email:     u.Email,
		Confirmed: u.ConfirmedAt != nil || u.EmailConfirmedAt != nil,
	}
}

type supabaseError struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
	Msg              string `json:"msg"`
	Message          string `json:"message"`
}

func (e supabaseError) text() string {
	for _, s := range []string{e.ErrorDescription, e.Msg, e.Message, e.Error} {
		if s != "" {
			return s
		}
	}
	return ""
}

// do sends a JSON request and decodes a 2xx body into out. Non-2xx answers
// come back as *providerError.
func (c *SupabaseClient) do(ctx context.Context, method, endpoint, token string, in, out any) error {
	if c.baseURL == "" {
		return fmt.Errorf("SUPABASE_URL 未配置")
	}
	var body io.Reader
	if in != nil {
		buf, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+endpoint, body)
	if err != nil {
		return fmt.Errorf("创建请求失败: %w", err)
	}
	req.Header.Set("apikey", c.key)
	req.Header.Set("Content-Type", "application/json")
	if token == "" {
		token = c.key
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("读取响应失败: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var se supabaseError
		_ = json.Unmarshal(data, &se)
		return &providerError{status: resp.StatusCode, msg: se.text()}
	}
	if out != nil && len(data) > 0 {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("解析响应失败: %w", err)
		}
	}
	return nil
}

type providerError struct {
	status int
	msg    string
}

func (e *providerError) Error() string {
	if e.msg == "" {
		return fmt.Sprintf("provider returned status %d", e.status)
	}
	return fmt.Sprintf("provider returned status %d: %s", e.status, e.msg)
}

func (e *providerError) clientFault() bool {
	return e.status >= 400 && e.status < 500
}

func (c *SupabaseClient) SignUp(ctx context.Context, email, password string, metadata map[string]string) error {
	payload := map[string]any{
		"email":    email,
		"password": password,
		"data":     metadata,
	}
	err := c.do(ctx, http.MethodPost, "/auth/v1/signup", "", payload, nil)
	if err == nil {
		return nil
	}
	if pe, ok := err.(*providerError); ok && pe.clientFault() && pe.msg != "" {
		return Validationf("Supabase signup failed: %s", pe.msg)
	}
	return Upstream("Supabase signup failed", err)
}

func (c *SupabaseClient) VerifyIdentity(ctx context.Context, token string) (*Identity, error) {
	if token == "" {
		return nil, ErrUnauthorized
	}
	var user supabaseUser
	if err := c.do(ctx, http.MethodGet, "/auth/v1/user", token, nil, &user); err != nil {
		if pe, ok := err.(*providerError); ok && pe.clientFault() {
			return nil, ErrUnauthorized
		}
		return nil, Upstream("Failed to fetch user from Supabase", err)
	}
	if user.Email == "" {
		return nil, ErrUnauthorized
	}
	return user.identity(), nil
}

func (c *SupabaseClient) IssueSession(ctx context.Context, email, password string) (string, error) {
	var session struct {
		AccessToken string `json:"access_token"`
	}
	payload := map[string]string{"email": email, "password": password}
	if err := c.do(ctx, http.MethodPost, "/auth/v1/token?grant_type=password", "", payload, &session); err != nil {
		if pe, ok := err.(*providerError); ok && pe.clientFault() {
			return "", ErrBadLogin
		}
		return "", Upstream("Supabase login failed", err)
	}
	if session.AccessToken == "" {
		return "", Upstream("Supabase login failed", fmt.Errorf("empty access token"))
	}
	return session.AccessToken, nil
}

func (c *SupabaseClient) SendPasswordReset(ctx context.Context, email string) error {
	endpoint := "/auth/v1/recover"
	if c.resetRedirect != "" {
		endpoint += "?redirect_to=" + url.QueryEscape(c.resetRedirect)
	}
	if err := c.do(ctx, http.MethodPost, endpoint, "", map[string]string{"email": email}, nil); err != nil {
		return Upstream("password reset", err)
	}
	return nil
}

func (c *SupabaseClient) UpdatePassword(ctx context.Context, token, newPassword string) (*Identity, error) {
	var user supabaseUser
	err := c.do(ctx, http.MethodPut, "/auth/v1/user", token, map[string]string{"password": newPassword}, &user)
	if err != nil {
		if pe, ok := err.(*providerError); ok && pe.clientFault() {
			if pe.status == http.StatusUnauthorized || pe.status == http.StatusForbidden {
				return nil, ErrUnauthorized
			}
			return nil, Validationf("Failed to update Supabase user: %s", pe.msg)
		}
		return nil, Upstream("Failed to update Supabase user", err)
	}
	return user.identity(), nil
}

func (c *SupabaseClient) SignOut(ctx context.Context, token string) error {
	if err := c.do(ctx, http.MethodPost, "/auth/v1/logout", token, nil, nil); err != nil {
		return Upstream("Supabase logout failed", err)
	}
	return nil
}

// CachedIdentity memoises VerifyIdentity per token so authenticated
// requests do not all round-trip to the provider.
type CachedIdentity struct {
	IdentityProvider
	cache *utils.Cache[Identity]
}

func NewCachedIdentity(p IdentityProvider, size int, ttl time.Duration) (*CachedIdentity, error) {
	cache, err := utils.NewCache[Identity](size, ttl)
	if err != nil {
		return nil, err
	}
	return &CachedIdentity{IdentityProvider: p, cache: cache}, nil
}

func (c *CachedIdentity) VerifyIdentity(ctx context.Context, token string) (*Identity, error) {
	if id, ok := c.cache.Get(token); ok {
		return &id, nil
	}
	id, err := c.IdentityProvider.VerifyIdentity(ctx, token)
	if err != nil {
		return nil, err
	}
	// Unconfirmed identities may flip at any moment.
	if id.Confirmed {
		c.cache.Set(token, *id)
	}
	return id, nil
}

func (c *CachedIdentity) SignOut(ctx context.Context, token string) error {
	c.cache.Delete(token)
	return c.IdentityProvider.SignOut(ctx, token)
}

func (c *CachedIdentity) UpdatePassword(ctx context.Context, token, newPassword string) (*Identity, error) {
	c.cache.Delete(token)
	return c.IdentityProvider.UpdatePassword(ctx, token, newPassword)
}
