// Package client is the typed gateway to the bloghub API. Everything the
// session store and the CLI do on the wire goes through the API interface
// here; HTTPClient talks to a real server, Mock is the in-process double.
package client

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

	"github.com/soficodes/bloghub/internal/domain/identity"
	"github.com/soficodes/bloghub/internal/domain/post"
)

// Session is what a successful authenticate or register hands back.
type Session struct {
	AccessToken string
	User        identity.Identity
	RedirectTo  string
}

type PostPage struct {
	Posts  []post.Post `json:"posts"`
	Total  int         `json:"total"`
	Limit  int         `json:"limit"`
	Offset int         `json:"offset"`
}

type API interface {
	Authenticate(ctx context.Context, email, password string) (Session, error)
	Register(ctx context.Context, name, email, password string) (Session, error)
	FetchProfile(ctx context.Context, token string) (identity.Identity, error)
	UpdateProfile(ctx context.Context, token, name string) (identity.Identity, error)
	RevokeSession(ctx context.Context, token string) error

	ListPosts(ctx context.Context, filter post.ListPostsFilter) (PostPage, error)
	FetchPost(ctx context.Context, id string) (post.Post, error)
	CreatePost(ctx context.Context, token string, req post.CreatePostRequest) (post.Post, error)
	UpdatePost(ctx context.Context, token, id string, req post.UpdatePostRequest) (post.Post, error)
	DeletePost(ctx context.Context, token, id string) error
}

type HTTPClient struct {
	baseURL string
	http    *http.Client
}

func NewHTTPClient(baseURL string) *HTTPClient {
	return &HTTPClient{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 10 * time.Second},
	}
}

type sessionResponse struct {
	AccessToken string            `json:"accessToken"`
	User        identity.Identity `json:"user"`
	RedirectTo  string            `json:"redirectTo"`
}

func (c *HTTPClient) Authenticate(ctx context.Context, email, password string) (Session, error) {
	body := map[string]string{"email": email, "password": password}

	var resp sessionResponse

	if err := c.do(ctx, http.MethodPost, "/auth/login", "", body, &resp); err != nil {
		return Session{}, err
	}

	return Session{AccessToken: resp.AccessToken, User: resp.User, RedirectTo: resp.RedirectTo}, nil
}

func (c *HTTPClient) Register(ctx context.Context, name, email, password string) (Session, error) {
	body := map[string]string{"name": name, "email": email, "password": password}

	var resp sessionResponse

	if err := c.do(ctx, http.MethodPost, "/auth/signup", "", body, &resp); err != nil {
		return Session{}, err
	}

	return Session{AccessToken: resp.AccessToken, User: resp.User, RedirectTo: resp.RedirectTo}, nil
}

func (c *HTTPClient) FetchProfile(ctx context.Context, token string) (identity.Identity, error) {
	var u identity.Identity
	err := c.do(ctx, http.MethodGet, "/auth/profile", token, nil, &u)
	return u, err
}

func (c *HTTPClient) UpdateProfile(ctx context.Context, token, name string) (identity.Identity, error) {
	var u identity.Identity
	err := c.do(ctx, http.MethodPut, "/auth/profile", token, map[string]string{"name": name}, &u)
	return u, err
}

func (c *HTTPClient) RevokeSession(ctx context.Context, token string) error {
	return c.do(ctx, http.MethodPost, "/auth/logout", token, map[string]string{}, nil)
}

func (c *HTTPClient) ListPosts(ctx context.Context, filter post.ListPostsFilter) (PostPage, error) {
	q := url.Values{}

	if filter.Category != nil {
		q.Set("category", *filter.Category)
	}

	if filter.AuthorID != nil {
		q.Set("author", *filter.AuthorID)
	}

	if filter.Query != nil {
		q.Set("q", *filter.Query)
	}

	if filter.Limit > 0 {
		q.Set("limit", strconv.Itoa(filter.Limit))
	}

	if filter.Offset > 0 {
		q.Set("offset", strconv.Itoa(filter.Offset))
	}

	path := "/posts"

	if encoded := q.Encode(); encoded != "" {
		path += "?" + encoded
	}

	var page PostPage
	err := c.do(ctx, http.MethodGet, path, "", nil, &page)
	return page, err
}

func (c *HTTPClient) FetchPost(ctx context.Context, id string) (post.Post, error) {
	var p post.Post
	err := c.do(ctx, http.MethodGet, "/posts/"+url.PathEscape(id), "", nil, &p)
	return p, err
}

func (c *HTTPClient) CreatePost(ctx context.Context, token string, req post.CreatePostRequest) (post.Post, error) {
	var p post.Post
	err := c.do(ctx, http.MethodPost, "/posts", token, req, &p)
	return p, err
}

func (c *HTTPClient) UpdatePost(ctx context.Context, token, id string, req post.UpdatePostRequest) (post.Post, error) {
	var p post.Post
	err := c.do(ctx, http.MethodPut, "/posts/"+url.PathEscape(id), token, req, &p)
	return p, err
}

func (c *HTTPClient) DeletePost(ctx context.Context, token, id string) error {
	return c.do(ctx, http.MethodDelete, "/posts/"+url.PathEscape(id), token, nil, nil)
}

// do runs one request and decodes either the payload or the error
// envelope into a typed error.
func (c *HTTPClient) do(ctx context.Context, method, path, token string, body, out any) error {
	var reader io.Reader

	if body != nil {
		buf, err := json.Marshal(body)

		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}

		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)

	if err != nil {
		return err
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	req.Header.Set("Accept", "application/json")

	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)

	if err != nil {
		return err
	}

	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if out == nil || resp.StatusCode == http.StatusNoContent {
			return nil
		}

		return json.NewDecoder(resp.Body).Decode(out)
	}

	return decodeError(resp)
}

type errorEnvelope struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func decodeError(resp *http.Response) error {
	var env errorEnvelope

	_ = json.NewDecoder(io.LimitReader(resp.Body, 4096)).Decode(&env)

	switch resp.StatusCode {
	case http.StatusUnauthorized:
		if env.Error.Code == "invalid_credentials" {
			return ErrInvalidCredentials
		}
		return ErrUnauthorized
	case http.StatusForbidden:
		return ErrForbidden
	case http.StatusNotFound:
		return ErrNotFound
	case http.StatusConflict:
		if env.Error.Code == "email_taken" {
			return ErrDuplicateEmail
		}
	}

	return &APIError{Status: resp.StatusCode, Code: env.Error.Code, Message: env.Error.Message}
}
