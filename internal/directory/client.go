// Package directory talks to the remote server directory over its HTTP API.
package directory

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"time"

	"hscsupdater/internal/roster"
)

const (
	DefaultPingTimeout    = 1 * time.Second
	DefaultRequestTimeout = 5 * time.Second

	// maxBodySnippet bounds how much of a rejection body is kept for logging.
	maxBodySnippet = 4096
)

// ErrUnreachable covers every transport failure, timeouts included.
var ErrUnreachable = errors.New("directory unreachable")

// RejectedError is returned when the directory answers with a non-2xx status.
type RejectedError struct {
	Op         string
	StatusCode int
	Body       string
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("directory rejected %s: status %d: %s", e.Op, e.StatusCode, e.Body)
}

// Config describes how to reach the directory.
type Config struct {
	Address        string
	Port           int
	APIKey         string
	ServerPort     int
	PingTimeout    time.Duration
	RequestTimeout time.Duration
}

// Client is stateless apart from its configuration; it is safe for concurrent use.
type Client struct {
	baseURL        string
	apiKey         string
	serverPort     string
	pingTimeout    time.Duration
	requestTimeout time.Duration
	http           *http.Client
}

type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithBaseURL overrides the URL derived from address and port. Used by tests.
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = u }
}

func New(cfg Config, opts ...Option) *Client {
	c := &Client{
		baseURL:        "http://" + net.JoinHostPort(cfg.Address, strconv.Itoa(cfg.Port)) + "/api/v1",
		apiKey:         cfg.APIKey,
		serverPort:     strconv.Itoa(cfg.ServerPort),
		pingTimeout:    cfg.PingTimeout,
		requestTimeout: cfg.RequestTimeout,
		http:           &http.Client{},
	}
	if c.pingTimeout <= 0 {
		c.pingTimeout = DefaultPingTimeout
	}
	if c.requestTimeout <= 0 {
		c.requestTimeout = DefaultRequestTimeout
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Ping reports whether the directory answered with a 2xx inside the ping timeout.
func (c *Client) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.pingTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/ping", nil)
	if err != nil {
		return fmt.Errorf("build ping request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodySnippet))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%w: ping status %d", ErrUnreachable, resp.StatusCode)
	}
	return nil
}

// Register sends the full server snapshot.
func (c *Client) Register(ctx context.Context, info roster.ServerInfo) error {
	return c.send(ctx, "register", http.MethodPost, "/register/"+c.serverPort, info)
}

func (c *Client) AddClient(ctx context.Context, cl roster.Client) error {
	return c.send(ctx, "add_client", http.MethodPatch, "/add_client/"+c.serverPort, cl)
}

func (c *Client) RemoveClient(ctx context.Context, cl roster.Client) error {
	return c.send(ctx, "remove_client", http.MethodPatch, "/remove_client/"+c.serverPort, cl)
}

func (c *Client) send(ctx context.Context, op, method, path string, body any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode %s body: %w", op, err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.requestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build %s request: %w", op, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w: %v", op, ErrUnreachable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, maxBodySnippet))
		return &RejectedError{Op: op, StatusCode: resp.StatusCode, Body: string(bytes.TrimSpace(b))}
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodySnippet))
	return nil
}
