package pdapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"pd-docgen/internal/model"
)

const (
	HeaderAPIKey = "X-Pipedream-API-Key"
	HeaderOrgID  = "X-Org-Id"

	DefaultProjectLimit = 100
	DefaultTimeout      = 60 * time.Second
	DefaultMaxBodyBytes = 8 << 20
)

// Doer is the transport seam; *http.Client satisfies it.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

type Credentials struct {
	APIKey string
	OrgID  string
}

type Options struct {
	BaseURL      string
	Credentials  Credentials
	ProjectLimit int
	Timeout      time.Duration
	MaxBodyBytes int64
	UserAgent    string
	HTTPClient   Doer
}

type Client struct {
	base         *url.URL
	creds        Credentials
	projectLimit int
	maxBodyBytes int64
	userAgent    string
	http         Doer
}

// StatusError is a server-reported failure (non-2xx response).
type StatusError struct {
	Op         string
	StatusCode int
	Status     string
	Body       string
}

func (e *StatusError) Error() string {
	text := strings.TrimSpace(e.Status)
	if text == "" {
		text = http.StatusText(e.StatusCode)
	}
	msg := fmt.Sprintf("failed to %s: %s (HTTP %d)", e.Op, text, e.StatusCode)
	if body := strings.TrimSpace(e.Body); body != "" {
		msg += ": " + truncate(body, 200)
	}
	return msg
}

// TransportError is a failure to complete the HTTP exchange at all.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: request failed: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

func (e *TransportError) TransportFailure() bool {
	return true
}

func IsTransport(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}

func New(opts Options) (*Client, error) {
	creds := Credentials{
		APIKey: strings.TrimSpace(opts.Credentials.APIKey),
		OrgID:  strings.TrimSpace(opts.Credentials.OrgID),
	}
	if creds.APIKey == "" {
		return nil, fmt.Errorf("%w: set --api-key or PDDOC_API_KEY", model.ErrAuthInput)
	}
	rawBase := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if rawBase == "" {
		return nil, errors.New("API base URL is required")
	}
	base, err := url.Parse(rawBase)
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid API base URL %q", rawBase)
	}

	limit := opts.ProjectLimit
	if limit <= 0 {
		limit = DefaultProjectLimit
	}
	maxBody := opts.MaxBodyBytes
	if maxBody <= 0 {
		maxBody = DefaultMaxBodyBytes
	}
	doer := opts.HTTPClient
	if doer == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = DefaultTimeout
		}
		doer = &http.Client{Timeout: timeout}
	}
	ua := strings.TrimSpace(opts.UserAgent)
	if ua == "" {
		ua = "pd-docgen"
	}

	return &Client{
		base:         base,
		creds:        creds,
		projectLimit: limit,
		maxBodyBytes: maxBody,
		userAgent:    ua,
		http:         doer,
	}, nil
}

// ListProjects fetches the project catalog. Failures wrap model.ErrConnection;
// an empty list is reported as model.ErrEmptyCatalog.
func (c *Client) ListProjects(ctx context.Context) ([]model.Project, error) {
	q := url.Values{}
	q.Set("limit", strconv.Itoa(c.projectLimit))
	body, err := c.get(ctx, "fetch projects", q.Encode(), "projects")
	if err != nil {
		if IsTransport(err) {
			return nil, fmt.Errorf("%w: this might be a CORS or network issue, ensure the API server is reachable: %v", model.ErrConnection, err)
		}
		return nil, fmt.Errorf("%w: %v", model.ErrConnection, err)
	}

	var payload model.ProjectList
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("%w: parse project list: %v", model.ErrConnection, err)
	}
	if len(payload.Projects) == 0 {
		return nil, model.ErrEmptyCatalog
	}
	return payload.Projects, nil
}

func (c *Client) RawDocumentation(ctx context.Context, projectID string) (string, error) {
	body, err := c.get(ctx, "generate documentation", "", "projects", projectID, "raw-documentation")
	if err != nil {
		return "", err
	}
	return string(body), nil
}

func (c *Client) EnhancedDocumentation(ctx context.Context, projectID, description string) (string, error) {
	query := "project_description=" + EncodeURIComponent(description)
	body, err := c.get(ctx, "generate documentation", query, "projects", projectID, "documentation")
	if err != nil {
		return "", err
	}
	return string(body), nil
}

// Generate issues the mode-appropriate documentation request for p.
func (c *Client) Generate(ctx context.Context, p model.Project, mode model.GenerationMode, description string) (string, error) {
	switch mode {
	case model.ModeEnhanced:
		return c.EnhancedDocumentation(ctx, p.ID, description)
	case model.ModeRaw, "":
		return c.RawDocumentation(ctx, p.ID)
	default:
		return "", fmt.Errorf("unsupported generation mode %q", mode)
	}
}

// get issues an authenticated GET for base/segments..., escaping each segment.
func (c *Client) get(ctx context.Context, op, rawQuery string, segments ...string) ([]byte, error) {
	u := *c.base
	path := strings.TrimRight(c.base.Path, "/")
	rawPath := strings.TrimRight(c.base.EscapedPath(), "/")
	for _, seg := range segments {
		path += "/" + seg
		rawPath += "/" + url.PathEscape(seg)
	}
	u.Path = path
	u.RawPath = rawPath
	u.RawQuery = rawQuery

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("%s: build request: %w", op, err)
	}
	req.Header.Set(HeaderAPIKey, c.creds.APIKey)
	if c.creds.OrgID != "" {
		req.Header.Set(HeaderOrgID, c.creds.OrgID)
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &TransportError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBodyBytes+1))
	if err != nil {
		return nil, &TransportError{Op: op, Err: fmt.Errorf("read response: %w", err)}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &StatusError{
			Op:         op,
			StatusCode: resp.StatusCode,
			Status:     statusText(resp),
			Body:       string(body),
		}
	}
	if int64(len(body)) > c.maxBodyBytes {
		return nil, fmt.Errorf("%s: response exceeds %d bytes", op, c.maxBodyBytes)
	}
	return body, nil
}

// EncodeURIComponent percent-encodes s for use as a single query value,
// encoding spaces as %20 rather than '+'.
func EncodeURIComponent(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}

func statusText(resp *http.Response) string {
	s := strings.TrimSpace(resp.Status)
	code := strconv.Itoa(resp.StatusCode)
	s = strings.TrimSpace(strings.TrimPrefix(s, code))
	if s == "" {
		s = http.StatusText(resp.StatusCode)
	}
	return s
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
