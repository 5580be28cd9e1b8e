// Package scrapbox fetches project listings, pages and images from a
// Scrapbox server.
package scrapbox

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/starford/cardring/internal/apperr"
	"github.com/starford/cardring/internal/index"
	"github.com/starford/cardring/internal/models"
	"github.com/starford/cardring/internal/netguard"
	"github.com/starford/cardring/internal/texture"
)

// DefaultBaseURL is the public Scrapbox server.
const DefaultBaseURL = "https://scrapbox.io"

const maxImageSize = 10 << 20

// ErrNetwork wraps transport failures and unexpected responses.
var ErrNetwork = errors.New("scrapbox: upstream unavailable")

// Client talks to the Scrapbox page API.
type Client struct {
	base     string
	http     *http.Client
	cache    index.PageCache
	logger   *slog.Logger
	attempts int
	delay    time.Duration
	limit    int
	guard    func(host string) error
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(h *http.Client) Option { return func(c *Client) { c.http = h } }

// WithCache stores every fetched listing and page in cache and serves them
// from it when the server is unreachable.
func WithCache(cache index.PageCache) Option { return func(c *Client) { c.cache = cache } }

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option { return func(c *Client) { c.logger = l } }

// WithRetry sets the attempt count and the initial backoff delay.
func WithRetry(attempts int, delay time.Duration) Option {
	return func(c *Client) {
		c.attempts = attempts
		c.delay = delay
	}
}

// WithImageGuard replaces the host check applied to image URLs and their
// redirects. nil disables it.
func WithImageGuard(check func(host string) error) Option {
	return func(c *Client) { c.guard = check }
}

// New creates a client for the server at baseURL.
func New(baseURL string, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	c := &Client{
		base:     strings.TrimRight(baseURL, "/"),
		http:     &http.Client{Timeout: 15 * time.Second},
		logger:   slog.Default(),
		attempts: 3,
		delay:    500 * time.Millisecond,
		limit:    1000,
		guard:    netguard.CheckHost,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

type pagesResponse struct {
	Pages []models.PageSummary `json:"pages"`
}

type pageResponse struct {
	Title        string   `json:"title"`
	Image        string   `json:"image"`
	Links        []string `json:"links"`
	RelatedPages struct {
		Links1Hop []struct {
			Title string `json:"title"`
		} `json:"links1hop"`
	} `json:"relatedPages"`
}

// ProjectPages lists the pages of project. When the server cannot be
// reached the cached listing is returned instead.
func (c *Client) ProjectPages(ctx context.Context, project string) ([]models.PageSummary, error) {
	u := fmt.Sprintf("%s/api/pages/%s?limit=%d", c.base, url.PathEscape(project), c.limit)
	var resp pagesResponse
	err := c.getJSON(ctx, u, &resp)
	if err == nil {
		if c.cache != nil {
			if cerr := c.cache.PutListing(project, resp.Pages); cerr != nil {
				c.logger.Warn("scrapbox: cache listing failed", slog.String("project", project), slog.String("error", cerr.Error()))
			}
		}
		return resp.Pages, nil
	}
	if c.cache != nil && errors.Is(err, ErrNetwork) {
		if pages, cerr := c.cache.Listing(project); cerr == nil {
			c.logger.Warn("scrapbox: serving cached listing",
				slog.String("project", project),
				slog.String("error", err.Error()))
			return pages, nil
		}
	}
	return nil, fmt.Errorf("scrapbox: list %s: %w", project, err)
}

// PageDetail returns one page with its links and one-hop related titles.
// When the server cannot be reached the cached page is returned instead.
func (c *Client) PageDetail(ctx context.Context, project, title string) (*models.PageDetail, error) {
	u := fmt.Sprintf("%s/api/pages/%s/%s", c.base, url.PathEscape(project), url.PathEscape(title))
	var resp pageResponse
	err := c.getJSON(ctx, u, &resp)
	if err == nil {
		d := resp.detail()
		if c.cache != nil {
			row := index.PageRow{Project: project, Title: d.Title, Image: d.Image, Position: -1}
			if cerr := c.cache.UpsertPage(row, *d); cerr != nil {
				c.logger.Warn("scrapbox: cache page failed", slog.String("title", title), slog.String("error", cerr.Error()))
			}
		}
		return d, nil
	}
	if c.cache != nil && errors.Is(err, ErrNetwork) {
		if d, cerr := c.cache.Page(project, title); cerr == nil {
			return d, nil
		}
	}
	return nil, fmt.Errorf("scrapbox: page %s/%s: %w", project, title, err)
}

func (r *pageResponse) detail() *models.PageDetail {
	d := &models.PageDetail{
		Title:   r.Title,
		Image:   r.Image,
		Links:   r.Links,
		Related: make([]string, 0, len(r.RelatedPages.Links1Hop)),
	}
	if d.Links == nil {
		d.Links = []string{}
	}
	for _, p := range r.RelatedPages.Links1Hop {
		d.Related = append(d.Related, p.Title)
	}
	return d
}

// ImageDataURI downloads the image at rawURL and returns it as a data URI
// carrying the response content type. Blocked hosts, non-image responses
// and any other failure yield texture.Placeholder.
func (c *Client) ImageDataURI(ctx context.Context, rawURL string) string {
	data, ctype, err := c.getImage(ctx, rawURL)
	if err != nil {
		c.logger.Debug("scrapbox: image unavailable", slog.String("url", rawURL), slog.String("error", err.Error()))
		return texture.Placeholder
	}
	return "data:" + ctype + ";base64," + base64.StdEncoding.EncodeToString(data)
}

func (c *Client) getImage(ctx context.Context, rawURL string) ([]byte, string, error) {
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return nil, "", apperr.ErrInvalidURL
	}
	hc := c.http
	if c.guard != nil {
		if err := c.guard(u.Hostname()); err != nil {
			return nil, "", err
		}
		guarded := *c.http
		next := c.http.CheckRedirect
		guarded.CheckRedirect = func(req *http.Request, via []*http.Request) error {
			if err := c.guard(req.URL.Hostname()); err != nil {
				return err
			}
			if next != nil {
				return next(req, via)
			}
			if len(via) >= 10 {
				return errors.New("stopped after 10 redirects")
			}
			return nil
		}
		hc = &guarded
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, "", err
	}
	resp, err := hc.Do(req)
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("%w: status %d", ErrNetwork, resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxImageSize+1))
	if err != nil {
		return nil, "", err
	}
	if len(data) > maxImageSize {
		return nil, "", fmt.Errorf("image exceeds %d bytes", maxImageSize)
	}
	ctype := resp.Header.Get("Content-Type")
	if ctype == "" {
		ctype = http.DetectContentType(data)
	}
	if mt, _, err := mime.ParseMediaType(ctype); err != nil || !strings.HasPrefix(mt, "image/") {
		return nil, "", fmt.Errorf("not an image: %q", ctype)
	}
	return data, ctype, nil
}

func (c *Client) getJSON(ctx context.Context, u string, v any) error {
	return Retry(ctx, c.attempts, c.delay, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return err
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.http.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return &RetryableError{Err: fmt.Errorf("%w: %v", ErrNetwork, err)}
		}
		defer resp.Body.Close()

		if err := checkStatus(resp.StatusCode); err != nil {
			return err
		}
		if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
			return fmt.Errorf("decode %s: %w", u, err)
		}
		return nil
	})
}

func checkStatus(code int) error {
	switch {
	case code == http.StatusOK:
		return nil
	case code == http.StatusNotFound:
		return apperr.ErrNotFound
	case code >= 500:
		return &RetryableError{Err: fmt.Errorf("%w: status %d", ErrNetwork, code)}
	default:
		return fmt.Errorf("%w: status %d", ErrNetwork, code)
	}
}
