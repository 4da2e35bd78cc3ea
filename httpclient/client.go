// Package httpclient is the REST side of the notification service.
package httpclient

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/buger/jsonparser"

	"github.com/collabhub/notifyclient/internal/codec"
	"github.com/collabhub/notifyclient/pkg/auth"
	"github.com/collabhub/notifyclient/pkg/constants"
	"github.com/collabhub/notifyclient/pkg/logger"
	"github.com/collabhub/notifyclient/pkg/models"
)

// APIError is returned for any non-2xx response.
type APIError struct {
	Status  int
	Message string
	URL     string
	Method  string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s %s: %d %s", e.Method, e.URL, e.Status, e.Message)
}

type Option func(c *Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithTimeout bounds each call. A client given with WithHTTPClient is
// copied, never modified.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		hc := *c.httpClient
		hc.Timeout = timeout
		c.httpClient = &hc
	}
}

func WithLogger(l logger.Logger) Option {
	return func(c *Client) {
		c.logger = logger.OrNop(l)
	}
}

// WithAuthScheme sets the Authorization scheme, "Token" by default.
func WithAuthScheme(scheme string) Option {
	return func(c *Client) {
		c.authScheme = scheme
	}
}

func WithUnmarshaler(u codec.Unmarshaler) Option {
	return func(c *Client) {
		c.unmarshaler = u
	}
}

type Client struct {
	// BaseURL is the notifications collection, e.g.
	// http://localhost/api/v1/notifications/.
	BaseURL string

	tokens      auth.TokenSource
	authScheme  string
	httpClient  *http.Client
	unmarshaler codec.Unmarshaler
	logger      logger.Logger
}

func New(baseURL string, tokens auth.TokenSource, opts ...Option) *Client {
	c := &Client{
		BaseURL:     baseURL,
		tokens:      tokens,
		authScheme:  constants.DefaultAuthScheme,
		unmarshaler: codec.JSON{},
		logger:      logger.Nop(),
		httpClient: &http.Client{
			Timeout: constants.DefaultHTTPTimeout,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ListNotifications fetches the full snapshot with GET <base>.
func (c *Client) ListNotifications(ctx context.Context) ([]models.Notification, error) {
	body, err := c.request(ctx, http.MethodGet, c.BaseURL)
	if err != nil {
		return nil, err
	}

	var snapshot models.Snapshot
	if err := c.unmarshaler.Unmarshal(body, &snapshot); err != nil {
		return nil, fmt.Errorf("httpclient.Client failed to decode snapshot: %w", err)
	}
	return snapshot.Notifications, nil
}

// GetNotification fetches one notification with GET <base>/<id>.
func (c *Client) GetNotification(ctx context.Context, id int64) (models.Notification, error) {
	u, err := url.JoinPath(c.BaseURL, strconv.FormatInt(id, 10))
	if err != nil {
		return models.Notification{}, err
	}
	// The backend routes collection members with a trailing slash.
	if strings.HasSuffix(c.BaseURL, "/") {
		u += "/"
	}

	body, err := c.request(ctx, http.MethodGet, u)
	if err != nil {
		return models.Notification{}, err
	}

	var n models.Notification
	if err := c.unmarshaler.Unmarshal(body, &n); err != nil {
		return models.Notification{}, fmt.Errorf("httpclient.Client failed to decode notification %d: %w", id, err)
	}
	return n, nil
}

// Do issues an action call. The response body is discarded.
func (c *Client) Do(ctx context.Context, method, rawURL string) error {
	_, err := c.request(ctx, method, rawURL)
	return err
}

func (c *Client) request(ctx context.Context, method, rawURL string) ([]byte, error) {
	token, err := c.tokens.Token()
	if err != nil {
		return nil, fmt.Errorf("httpclient.Client refused %s %s: %w", method, rawURL, err)
	}

	req, err := http.NewRequestWithContext(ctx, method, rawURL, http.NoBody)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", auth.Header(c.authScheme, token))

	return c.MakeRequest(req)
}

// MakeRequest sends req and returns the body of a 2xx response.
func (c *Client) MakeRequest(req *http.Request) ([]byte, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("httpclient.Client request failed", "method", req.Method, "url", req.URL.Redacted(), "error", err)
		return nil, fmt.Errorf("error making HTTP request: %w", err)
	}
	defer resp.Body.Close()

	respBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return respBytes, nil
	}

	apiErr := &APIError{
		Status:  resp.StatusCode,
		Message: errorMessage(respBytes, resp.Status),
		URL:     req.URL.Redacted(),
		Method:  req.Method,
	}
	c.logger.Error("httpclient.Client received error response", "method", apiErr.Method, "url", apiErr.URL, "status", apiErr.Status, "message", apiErr.Message)
	return nil, apiErr
}

// errorMessage picks the human-readable part of an error body.
func errorMessage(body []byte, fallback string) string {
	for _, key := range []string{"detail", "message", "error"} {
		if msg, err := jsonparser.GetString(body, key); err == nil && msg != "" {
			return msg
		}
	}
	if text := strings.TrimSpace(string(body)); text != "" && len(text) <= 200 && !strings.HasPrefix(text, "<") {
		return text
	}
	return fallback
}
