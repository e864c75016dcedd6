package httpclient

import (
	"io"
	"net/http"
	"time"
)

const defaultTimeout = 30 * time.Second

// Client is the HTTP surface used by outbound integrations (email provider,
// event webhooks). Tests substitute it with httptest servers or fakes.
type Client interface {
	Post(url, contentType string, body io.Reader) (*http.Response, error)
	Get(url string) (*http.Response, error)
	Do(req *http.Request) (*http.Response, error)
}

// StandardHTTPClient wraps the standard http.Client
type StandardHTTPClient struct {
	client *http.Client
}

// NewStandardClient creates a new HTTP client with default settings
func NewStandardClient() Client {
	return NewClientWithTimeout(defaultTimeout)
}

// NewClientWithTimeout creates a client whose requests time out after d
func NewClientWithTimeout(d time.Duration) Client {
	if d <= 0 {
		d = defaultTimeout
	}
	return &StandardHTTPClient{
		client: &http.Client{Timeout: d},
	}
}

// Post makes a POST request
func (c *StandardHTTPClient) Post(url, contentType string, body io.Reader) (*http.Response, error) {
	return c.client.Post(url, contentType, body)
}

// Get makes a GET request
func (c *StandardHTTPClient) Get(url string) (*http.Response, error) {
	return c.client.Get(url)
}

// Do executes an HTTP request
func (c *StandardHTTPClient) Do(req *http.Request) (*http.Response, error) {
	return c.client.Do(req)
}
