package utils

import (
	"bufio"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"math/rand"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/andybalholm/brotli"

	"lanzoufetch/internal"
)

// RetryConfig defines retry behavior configuration
type RetryConfig struct {
	MaxAttempts   int
	BaseDelay     time.Duration
	MaxDelay      time.Duration
	Multiplier    float64
	JitterPercent float64
}

// DefaultRetryConfig returns the default retry configuration
func DefaultRetryConfig() *RetryConfig {
	return &RetryConfig{
		MaxAttempts:   3,
		BaseDelay:     500 * time.Millisecond,
		MaxDelay:      5 * time.Second,
		Multiplier:    2.0,
		JitterPercent: 0.1,
	}
}

// HTTPClientConfig contains configuration for the HTTP client
type HTTPClientConfig struct {
	Timeout     time.Duration
	ProxyURL    string
	Fingerprint string
	RetryConfig *RetryConfig
}

// HTTPClientConfigFrom derives client settings from the application config
func HTTPClientConfigFrom(cfg *internal.Config) *HTTPClientConfig {
	rc := DefaultRetryConfig()
	rc.MaxAttempts = cfg.MaxRetries + 1
	return &HTTPClientConfig{
		Timeout:     cfg.Timeout,
		ProxyURL:    cfg.ProxyURL,
		Fingerprint: cfg.Fingerprint,
		RetryConfig: rc,
	}
}

// Response is a fully read HTTP response with the body already decompressed
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
	Cookies    []*http.Cookie
	URL        string
}

// StatusError reports a response whose status was outside the accepted range.
// Header is kept so callers can inspect Location on 3xx.
type StatusError struct {
	StatusCode int
	Header     http.Header
	URL        string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d from %s", e.StatusCode, e.URL)
}

// Location returns the Location header, if any
func (e *StatusError) Location() string {
	if e.Header == nil {
		return ""
	}
	return e.Header.Get("Location")
}

// HTTPClient is a cookie-less HTTP client with retry logic. It is safe for
// concurrent use; callers supply all headers, including cookies.
type HTTPClient struct {
	client      *http.Client
	probe       *http.Client
	timeout     time.Duration
	retryConfig *RetryConfig
}

// NewHTTPClient creates a new HTTP client with default configuration
func NewHTTPClient() *HTTPClient {
	c, _ := NewHTTPClientWithConfig(&HTTPClientConfig{
		Timeout:     10 * time.Second,
		RetryConfig: DefaultRetryConfig(),
	})
	return c
}

// NewHTTPClientWithConfig creates a new HTTP client with custom configuration
func NewHTTPClientWithConfig(config *HTTPClientConfig) (*HTTPClient, error) {
	if config.RetryConfig == nil {
		config.RetryConfig = DefaultRetryConfig()
	}
	if config.RetryConfig.MaxAttempts < 1 {
		config.RetryConfig.MaxAttempts = 1
	}
	if config.Timeout <= 0 {
		config.Timeout = 10 * time.Second
	}

	transport, err := buildTransport(config)
	if err != nil {
		return nil, err
	}

	client := &http.Client{
		Transport: transport,
		Timeout:   config.Timeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= 10 {
				return fmt.Errorf("too many redirects")
			}
			return nil
		},
	}

	probe := &http.Client{
		Transport: transport,
		Timeout:   config.Timeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}

	return &HTTPClient{
		client:      client,
		probe:       probe,
		timeout:     config.Timeout,
		retryConfig: config.RetryConfig,
	}, nil
}

func buildTransport(config *HTTPClientConfig) (http.RoundTripper, error) {
	hello, fingerprint, err := ClientHelloFor(config.Fingerprint)
	if err != nil {
		return nil, err
	}

	var parsedProxy *url.URL
	if config.ProxyURL != "" {
		parsedProxy, err = url.Parse(config.ProxyURL)
		if err != nil {
			return nil, fmt.Errorf("invalid proxy URL: %w", err)
		}
	}

	if fingerprint {
		var dialer ContextDialer
		if parsedProxy != nil {
			if parsedProxy.Scheme != "socks5" {
				return nil, fmt.Errorf("fingerprinted TLS only supports socks5 proxies, got %s", parsedProxy.Scheme)
			}
			if dialer, err = proxyDialer(parsedProxy.Host, config.Timeout); err != nil {
				return nil, err
			}
		}
		return newFingerprintTransport(hello, dialer, config.Timeout), nil
	}

	transport := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout:   config.Timeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   config.Timeout,
		ResponseHeaderTimeout: config.Timeout,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   10,
		IdleConnTimeout:       90 * time.Second,
	}

	if parsedProxy != nil {
		if err := configureProxy(transport, parsedProxy, config.Timeout); err != nil {
			return nil, err
		}
	}
	return transport, nil
}

// configureProxy sets up proxy configuration for the transport
func configureProxy(transport *http.Transport, proxyURL *url.URL, timeout time.Duration) error {
	switch proxyURL.Scheme {
	case "http", "https":
		transport.Proxy = http.ProxyURL(proxyURL)
	case "socks5":
		dialer, err := proxyDialer(proxyURL.Host, timeout)
		if err != nil {
			return err
		}
		transport.DialContext = dialer.DialContext
	default:
		return fmt.Errorf("unsupported proxy scheme: %s", proxyURL.Scheme)
	}

	return nil
}

// Get performs a GET request
func (c *HTTPClient) Get(ctx context.Context, url string, headers http.Header) (*Response, error) {
	return c.Do(ctx, http.MethodGet, url, headers, "")
}

// PostForm performs a POST with an application/x-www-form-urlencoded body.
// POSTs are never retried.
func (c *HTTPClient) PostForm(ctx context.Context, url string, headers http.Header, form url.Values) (*Response, error) {
	h := headers.Clone()
	if h == nil {
		h = http.Header{}
	}
	h.Set("Content-Type", "application/x-www-form-urlencoded")
	return c.Do(ctx, http.MethodPost, url, h, form.Encode())
}

// Do executes a request, retrying idempotent methods on transient failures.
// Only 2xx responses are returned; anything else is a *StatusError.
func (c *HTTPClient) Do(ctx context.Context, method, url string, headers http.Header, body string) (*Response, error) {
	attempts := c.retryConfig.MaxAttempts
	if method != http.MethodGet && method != http.MethodHead {
		attempts = 1
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			delay := c.calculateDelay(attempt)
			internal.LogDebug("retrying %s %s in %v (attempt %d/%d): %v", method, url, delay, attempt+1, attempts, lastErr)

			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		resp, err := c.once(ctx, c.client, method, url, headers, body)
		if err != nil {
			lastErr = err
			if !c.isRetryableError(err) {
				return nil, err
			}
			continue
		}

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return resp, nil
		}

		lastErr = &StatusError{StatusCode: resp.StatusCode, Header: resp.Header, URL: url}
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			continue
		}
		return nil, lastErr
	}

	if attempts == 1 {
		return nil, lastErr
	}
	return nil, fmt.Errorf("request failed after %d attempts: %w", attempts, lastErr)
}

// Probe sends a single HEAD request without following redirects. Status codes
// 200-399 are returned as-is; others produce a *StatusError.
func (c *HTTPClient) Probe(ctx context.Context, url string, headers http.Header) (*Response, error) {
	resp, err := c.once(ctx, c.probe, http.MethodHead, url, headers, "")
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 400 {
		return nil, &StatusError{StatusCode: resp.StatusCode, Header: resp.Header, URL: url}
	}
	return resp, nil
}

// Stream issues a GET and hands back the open response. The caller closes the body.
func (c *HTTPClient) Stream(ctx context.Context, url string, headers http.Header) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	for k, vs := range headers {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	// downloads can outlive the per-request timeout
	streamer := &http.Client{Transport: c.client.Transport, CheckRedirect: c.client.CheckRedirect}
	resp, err := streamer.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		resp.Body.Close()
		return nil, &StatusError{StatusCode: resp.StatusCode, Header: resp.Header, URL: url}
	}
	return resp, nil
}

func (c *HTTPClient) once(ctx context.Context, client *http.Client, method, url string, headers http.Header, body string) (*Response, error) {
	var reqBody io.Reader
	if body != "" {
		reqBody = strings.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	for k, vs := range headers {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	if host := headers.Get("Host"); host != "" {
		req.Host = host
	}
	if req.Header.Get("Accept-Encoding") == "" {
		req.Header.Set("Accept-Encoding", "gzip, br")
	}

	logger := internal.GetLogger()
	logger.LogHTTPRequest(req)

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	logger.LogHTTPResponse(resp)

	data, err := ReadBody(resp)
	if err != nil {
		return nil, err
	}

	finalURL := url
	if resp.Request != nil && resp.Request.URL != nil {
		finalURL = resp.Request.URL.String()
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       data,
		Cookies:    resp.Cookies(),
		URL:        finalURL,
	}, nil
}

// ReadBody reads the whole body, undoing gzip or brotli content encoding.
// HEAD responses and empty bodies yield nil whatever their encoding.
func ReadBody(resp *http.Response) ([]byte, error) {
	if resp.Request != nil && resp.Request.Method == http.MethodHead {
		return nil, nil
	}
	body := bufio.NewReader(resp.Body)
	if _, err := body.Peek(1); errors.Is(err, io.EOF) {
		return nil, nil
	}

	var reader io.Reader = body
	switch strings.ToLower(strings.TrimSpace(resp.Header.Get("Content-Encoding"))) {
	case "gzip":
		gz, err := gzip.NewReader(body)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil, nil
			}
			return nil, fmt.Errorf("gzip decode failed: %w", err)
		}
		defer gz.Close()
		reader = gz
	case "br":
		reader = brotli.NewReader(body)
	}

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("read body failed: %w", err)
	}
	return data, nil
}

// calculateDelay calculates the delay for the next retry attempt
func (c *HTTPClient) calculateDelay(attempt int) time.Duration {
	// Exponential backoff: baseDelay * multiplier^(attempt-1)
	delay := float64(c.retryConfig.BaseDelay) * math.Pow(c.retryConfig.Multiplier, float64(attempt-1))

	jitter := delay * c.retryConfig.JitterPercent * (rand.Float64()*2 - 1)
	delay += jitter

	if delay > float64(c.retryConfig.MaxDelay) {
		delay = float64(c.retryConfig.MaxDelay)
	}
	if delay < 0 {
		delay = float64(c.retryConfig.BaseDelay)
	}

	return time.Duration(delay)
}

// isRetryableError determines if an error should trigger a retry
func (c *HTTPClient) isRetryableError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	errStr := strings.ToLower(err.Error())
	retryableErrors := []string{
		"timeout",
		"connection refused",
		"connection reset",
		"no such host",
		"network is unreachable",
		"temporary failure",
		"eof",
	}

	for _, retryableErr := range retryableErrors {
		if strings.Contains(errStr, retryableErr) {
			return true
		}
	}

	return false
}
