// Package client is a typed HTTP client for the gallery Profile API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/kalambet/gallery/internal/profile"
)

// Error classes. Every *Error matches exactly one of them with errors.Is.
var (
	ErrValidation   = errors.New("validation failed")
	ErrUnauthorized = errors.New("not signed in")
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrUpstream     = errors.New("server error")
)

// Error is a non-2xx response from the API.
type Error struct {
	Status  int
	Type    string
	Message string
	Param   string
}

func (e *Error) Error() string {
	if e.Param != "" {
		return fmt.Sprintf("%s: %s (%d)", e.Param, e.Message, e.Status)
	}
	return fmt.Sprintf("%s (%d)", e.Message, e.Status)
}

func (e *Error) Unwrap() error {
	switch e.Status {
	case http.StatusBadRequest:
		return ErrValidation
	case http.StatusUnauthorized:
		return ErrUnauthorized
	case http.StatusNotFound:
		return ErrNotFound
	case http.StatusConflict:
		return ErrConflict
	}
	return ErrUpstream
}

type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// New returns a client for the server at baseURL. token may be empty for
// anonymous access.
func New(baseURL, token string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// WithHTTPClient replaces the underlying http.Client.
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	c.httpClient = hc
	return c
}

// Token returns the session token in use.
func (c *Client) Token() string { return c.token }

// SetToken replaces the session token.
func (c *Client) SetToken(token string) { c.token = token }

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader, contentType string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")
	return req, nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	ct := ""
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshalling request: %w", err)
		}
		body = bytes.NewReader(data)
		ct = "application/json"
	}
	req, err := c.newRequest(ctx, method, path, body, ct)
	if err != nil {
		return err
	}
	return c.send(req, out)
}

func (c *Client) send(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: server not reachable (%v)", ErrUpstream, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return decodeError(resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

func decodeError(resp *http.Response) error {
	e := &Error{Status: resp.StatusCode}
	data, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		e.Message = http.StatusText(resp.StatusCode)
		return e
	}
	var body struct {
		Error struct {
			Message string `json:"message"`
			Type    string `json:"type"`
			Param   string `json:"param"`
		} `json:"error"`
	}
	if json.Unmarshal(data, &body) == nil && body.Error.Message != "" {
		e.Message, e.Type, e.Param = body.Error.Message, body.Error.Type, body.Error.Param
		return e
	}
	e.Message = strings.TrimSpace(string(data))
	if e.Message == "" {
		e.Message = http.StatusText(resp.StatusCode)
	}
	return e
}

// Health checks that the server and its storage are up.
func (c *Client) Health(ctx context.Context) error {
	return c.doJSON(ctx, http.MethodGet, "/health", nil, nil)
}

// Profile fetches the museum document for username as seen by this client's session.
func (c *Client) Profile(ctx context.Context, username string) (profile.Document, error) {
	var doc profile.Document
	err := c.doJSON(ctx, http.MethodGet, "/api/profile/"+url.PathEscape(username), nil, &doc)
	return doc, err
}

// UsernameAvailable reports whether username can still be claimed.
func (c *Client) UsernameAvailable(ctx context.Context, username string) (bool, error) {
	var out struct {
		Available bool `json:"available"`
	}
	err := c.doJSON(ctx, http.MethodGet, "/api/username/check?username="+url.QueryEscape(username), nil, &out)
	return out.Available, err
}

// Me describes the signed-in account.
type Me struct {
	ID               string `json:"id"`
	Name             string `json:"name"`
	Username         string `json:"username"`
	UsernameRequired bool   `json:"usernameRequired"`
}

func (c *Client) Me(ctx context.Context) (Me, error) {
	var me Me
	err := c.doJSON(ctx, http.MethodGet, "/api/me", nil, &me)
	return me, err
}

// SetUsername claims username for the signed-in account.
func (c *Client) SetUsername(ctx context.Context, username string) error {
	return c.doJSON(ctx, http.MethodPost, "/api/me/username", map[string]string{"username": username}, nil)
}

func (c *Client) UpdateIntro(ctx context.Context, intro string) error {
	return c.doJSON(ctx, http.MethodPut, "/api/profile/intro", map[string]string{"intro": intro}, nil)
}

// UpdateSkills replaces the whole skills list.
func (c *Client) UpdateSkills(ctx context.Context, skills []profile.Skill) error {
	return c.doJSON(ctx, http.MethodPut, "/api/profile/skills", map[string][]profile.Skill{"skills": skills}, nil)
}

// UpdateLinks replaces the whole social links set.
func (c *Client) UpdateLinks(ctx context.Context, links profile.Links) error {
	return c.doJSON(ctx, http.MethodPut, "/api/profile/links", map[string]profile.Links{"sns": links}, nil)
}

// Image is an optional upload attached to a work update.
type Image struct {
	Filename string
	Data     io.Reader
}

// UpdateWork replaces works[index] and returns the stored picture URL.
func (c *Client) UpdateWork(ctx context.Context, index int, w profile.Work, img *Image) (string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fields := []struct{ k, v string }{
		{"index", strconv.Itoa(index)},
		{"title", w.Title},
		{"desc", w.Desc},
		{"siteUrl", w.SiteURL},
	}
	for _, f := range fields {
		if err := mw.WriteField(f.k, f.v); err != nil {
			return "", fmt.Errorf("writing %s: %w", f.k, err)
		}
	}
	if img != nil {
		name := img.Filename
		if name == "" {
			name = "image"
		}
		fw, err := mw.CreateFormFile("image", name)
		if err != nil {
			return "", fmt.Errorf("creating image part: %w", err)
		}
		if _, err := io.Copy(fw, img.Data); err != nil {
			return "", fmt.Errorf("reading image: %w", err)
		}
	}
	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("closing form: %w", err)
	}

	req, err := c.newRequest(ctx, http.MethodPut, "/api/profile/works", &buf, mw.FormDataContentType())
	if err != nil {
		return "", err
	}
	var out struct {
		PictureURL string `json:"pictureUrl"`
	}
	if err := c.send(req, &out); err != nil {
		return "", err
	}
	return out.PictureURL, nil
}

// Session is the result of a dev sign-in.
type Session struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Username string `json:"username"`
	Token    string `json:"token"`
}

// Login signs in by email on servers with dev login enabled. On success the
// client uses the returned token.
func (c *Client) Login(ctx context.Context, email, name string) (Session, error) {
	var s Session
	if err := c.doJSON(ctx, http.MethodPost, "/api/auth/session", map[string]string{"email": email, "name": name}, &s); err != nil {
		return Session{}, err
	}
	c.token = s.Token
	return s, nil
}

// Logout clears the server cookie and forgets the token.
func (c *Client) Logout(ctx context.Context) error {
	err := c.doJSON(ctx, http.MethodDelete, "/api/auth/session", nil, nil)
	c.token = ""
	return err
}
