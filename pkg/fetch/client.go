package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"time"

	errs "imgscraper/pkg/errors"
	"imgscraper/pkg/logger"
	"imgscraper/pkg/retry"
)

// DefaultUserAgent matches the browser engine's default profile.
const DefaultUserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"

// maxImageSize caps a single response body.
const maxImageSize = 64 << 20

// Client downloads image bytes the way the page's own <img> requests would:
// same user agent, the page as referer and the site's session cookies.
type Client struct {
	httpClient *http.Client
	headers    map[string]string
	retry      *retry.Config
	logger     logger.Logger
}

// NewClient creates an image client. A nil retry config disables retries.
func NewClient(timeout time.Duration, rc *retry.Config, log logger.Logger) *Client {
	if log == nil {
		log = logger.GetLogger()
	}
	jar, _ := cookiejar.New(nil)

	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
			Jar:     jar,
		},
		headers: map[string]string{
			"User-Agent":      DefaultUserAgent,
			"Accept":          "image/avif,image/webp,image/apng,image/*,*/*;q=0.8",
			"Accept-Language": "en-US,en;q=0.9",
			"Sec-Fetch-Dest":  "image",
			"Sec-Fetch-Mode":  "no-cors",
			"Sec-Fetch-Site":  "cross-site",
		},
		retry:  rc,
		logger: log.WithField("component", "fetch"),
	}
}

// SetHeader sets a custom header for the client
func (c *Client) SetHeader(key, value string) {
	c.headers[key] = value
}

// SetHeaders sets multiple headers at once
func (c *Client) SetHeaders(headers map[string]string) {
	for key, value := range headers {
		c.headers[key] = value
	}
}

// SetCookies installs cookies for every request to u's host.
func (c *Client) SetCookies(u *url.URL, cookies []*http.Cookie) {
	c.httpClient.Jar.SetCookies(u, cookies)
}

// SetTransport replaces the HTTP transport, mainly for tests.
func (c *Client) SetTransport(rt http.RoundTripper) {
	c.httpClient.Transport = rt
}

// Fetch downloads one image, retrying transient failures.
func (c *Client) Fetch(ctx context.Context, imageURL, referer string) ([]byte, error) {
	if c.retry == nil {
		return c.fetchOnce(ctx, imageURL, referer)
	}
	return retry.DoWithResult(ctx, func(ctx context.Context) ([]byte, error) {
		return c.fetchOnce(ctx, imageURL, referer)
	}, c.retry)
}

func (c *Client) fetchOnce(ctx context.Context, imageURL, referer string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return nil, &errs.Error{
			Type:    errs.ErrorTypeParsing,
			Message: fmt.Sprintf("failed to create request: %v", err),
		}
	}
	for key, value := range c.headers {
		req.Header.Set(key, value)
	}
	if referer != "" {
		req.Header.Set("Referer", referer)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		logger.LogImageFetch(c.logger, imageURL, 0, 0, time.Since(start))
		return nil, &errs.Error{
			Type:    errs.ErrorTypeNetwork,
			Message: fmt.Sprintf("network error: %v", err),
		}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		logger.LogImageFetch(c.logger, imageURL, resp.StatusCode, 0, time.Since(start))
		return nil, errs.FromStatus(resp.StatusCode, imageURL)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxImageSize+1))
	if err != nil {
		return nil, &errs.Error{
			Type:    errs.ErrorTypeNetwork,
			Message: fmt.Sprintf("failed to read image data: %v", err),
			Code:    resp.StatusCode,
		}
	}
	if len(data) > maxImageSize {
		return nil, &errs.Error{
			Type:    errs.ErrorTypeParsing,
			Message: fmt.Sprintf("image exceeds %d bytes", maxImageSize),
			Code:    resp.StatusCode,
		}
	}

	logger.LogImageFetch(c.logger, imageURL, resp.StatusCode, len(data), time.Since(start))
	return data, nil
}
