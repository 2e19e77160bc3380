package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

type User struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"createdAt"`
}

// Session is the result of a successful login.
type Session struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	User         User   `json:"user"`
	ExpiresIn    int    `json:"expiresIn"`
}

func (c *Client) postForm(ctx context.Context, path string, values url.Values) (*http.Response, error) {
	req, err := c.newRequest(ctx, http.MethodPost, path, formBody(values))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")
	return c.httpClient().Do(req)
}

func (c *Client) Signup(ctx context.Context, username, email, password string) (*User, error) {
	resp, err := c.postForm(ctx, "/signup", url.Values{
		"username": {username},
		"email":    {email},
		"password": {password},
	})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if err := checkResponse(resp); err != nil {
		return nil, err
	}
	var out struct {
		User User `json:"user"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &out.User, nil
}

// Login authenticates and stores the access token on the client for later
// calls.
func (c *Client) Login(ctx context.Context, email, password string) (*Session, error) {
	resp, err := c.postForm(ctx, "/login", url.Values{"email": {email}, "password": {password}})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if err := checkResponse(resp); err != nil {
		return nil, err
	}
	var s Session
	if err := json.NewDecoder(resp.Body).Decode(&s); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	c.Token = s.AccessToken
	return &s, nil
}

// Me returns the user behind the current token.
func (c *Client) Me(ctx context.Context) (*User, error) {
	if c.Token == "" {
		return nil, ErrNotLoggedIn
	}
	var out struct {
		User User `json:"user"`
	}
	if err := c.getJSON(ctx, "/api/me", &out); err != nil {
		return nil, err
	}
	return &out.User, nil
}
