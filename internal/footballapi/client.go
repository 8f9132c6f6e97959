package footballapi

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/rs/zerolog"

	"football/internal/logger"
	"football/internal/metrics"
)

const (
	DefaultBaseURL    = "https://api.football-data.org/v4"
	DefaultCalls      = 10
	DefaultPeriod     = 60 * time.Second
	DefaultMaxRetries = 5
	DefaultBaseDelay  = 2 * time.Second

	authHeader   = "X-Auth-Token"
	maxBodyBytes = 16 << 20
	maxPages     = 1000

	// Pagination envelope keys.
	pageItemsKey = "content"
	nextPageKey  = "next"
)

var payloadJSON = jsoniter.Config{
	EscapeHTML: false,
	UseNumber:  true,
}.Froze()

// Config configures a Client. Zero values take the package defaults, except
// MaxRetries: zero disables 429 retries.
type Config struct {
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client
	Timeout    time.Duration

	Calls      int           // quota: calls per Period
	Period     time.Duration // quota window
	MaxRetries int           // retries after a 429, not counting the first send
	BaseDelay  time.Duration // first 429 backoff, doubled per retry

	Clock   Clock
	Logger  zerolog.Logger
	Metrics *metrics.Metrics
}

// Client is a rate-limited football-data.org client. One per pipeline run.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	maxRetries int
	baseDelay  time.Duration

	limiter *Limiter
	clock   Clock
	log     zerolog.Logger
	metrics *metrics.Metrics
}

// NewClient builds a Client from cfg.
func NewClient(cfg Config) (*Client, error) {
	clock := cfg.Clock
	if clock == nil {
		clock = SystemClock{}
	}
	calls := cfg.Calls
	if calls == 0 {
		calls = DefaultCalls
	}
	period := cfg.Period
	if period == 0 {
		period = DefaultPeriod
	}
	limiter, err := NewLimiter(calls, period, clock)
	if err != nil {
		return nil, err
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	maxRetries := cfg.MaxRetries
	if maxRetries < 0 {
		return nil, fmt.Errorf("max retries must not be negative, got %d", maxRetries)
	}
	baseDelay := cfg.BaseDelay
	if baseDelay <= 0 {
		baseDelay = DefaultBaseDelay
	}

	return &Client{
		httpClient: httpClient,
		baseURL:    baseURL,
		apiKey:     strings.TrimSpace(cfg.APIKey),
		maxRetries: maxRetries,
		baseDelay:  baseDelay,
		limiter:    limiter,
		clock:      clock,
		log:        logger.Component(cfg.Logger, "footballapi"),
		metrics:    cfg.Metrics,
	}, nil
}

// Get fetches one endpoint and decodes the JSON object it returns.
func (c *Client) Get(ctx context.Context, endpoint string, params url.Values) (map[string]any, error) {
	fullURL := c.resolve(endpoint, params)
	body, err := c.fetch(ctx, fullURL)
	if err != nil {
		return nil, err
	}
	return decodeObject(body, fullURL)
}

// GetPaginated follows the body's next link and collects every page's
// content items in order. A failing page ends pagination: the items gathered
// so far are returned and the failure is only logged. A failing first page
// has nothing to keep and returns its error.
func (c *Client) GetPaginated(ctx context.Context, endpoint string, params url.Values) ([]any, error) {
	return c.GetPages(ctx, endpoint, params, pageItemsKey)
}

// GetPages is GetPaginated with a custom items key.
func (c *Client) GetPages(ctx context.Context, endpoint string, params url.Values, itemsKey string) ([]any, error) {
	var items []any
	seen := make(map[string]bool)
	next := c.resolve(endpoint, params)
	for page := 1; next != ""; page++ {
		err := c.checkNext(next, page, seen)
		var doc map[string]any
		if err == nil {
			var body []byte
			body, err = c.fetch(ctx, next)
			if err == nil {
				doc, err = decodeObject(body, next)
			}
		}
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return items, ctxErr
			}
			if page == 1 {
				return nil, err
			}
			c.metrics.PaginationStopped()
			c.log.Warn().Err(err).
				Str("endpoint", endpoint).
				Int("page", page).
				Int("items", len(items)).
				Msg("pagination stopped early")
			break
		}
		if content, ok := doc[itemsKey].([]any); ok {
			items = append(items, content...)
		}
		next, _ = doc[nextPageKey].(string)
		if next != "" {
			next = c.resolve(next, nil)
		}
	}
	return items, nil
}

// checkNext refuses a page link that leaves the API host, repeats an earlier
// page or goes past maxPages. The API key is only ever sent to baseURL's host.
func (c *Client) checkNext(next string, page int, seen map[string]bool) error {
	if page > maxPages {
		return fmt.Errorf("page limit of %d reached", maxPages)
	}
	if seen[next] {
		return fmt.Errorf("next link %s repeats an earlier page", redactURL(next))
	}
	seen[next] = true

	u, err := url.Parse(next)
	if err != nil {
		return fmt.Errorf("parse next link: %w", err)
	}
	base, err := url.Parse(c.baseURL)
	if err != nil {
		return fmt.Errorf("parse base url: %w", err)
	}
	if u.Scheme != base.Scheme || u.Host != base.Host {
		return fmt.Errorf("next link %s leaves %s", redactURL(next), base.Host)
	}
	return nil
}

// fetch sends a GET through the limiter, retrying only on 429.
func (c *Client) fetch(ctx context.Context, fullURL string) ([]byte, error) {
	delay := c.baseDelay
	for attempt := 0; ; attempt++ {
		start := c.clock.Now()
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
		if waited := c.clock.Now().Sub(start); waited > 0 {
			c.metrics.ThrottleWait(waited)
			c.log.Debug().Dur("waited", waited).Msg("throttled by client quota")
		}

		body, err := c.send(ctx, fullURL)
		if err == nil {
			c.metrics.APIRequest("ok")
			return body, nil
		}
		if !errors.Is(err, ErrRateLimited) {
			c.metrics.APIRequest(outcome(err))
			return nil, err
		}
		c.metrics.APIRequest("rate_limited")
		if attempt >= c.maxRetries {
			return nil, fmt.Errorf("%w after %d retries: %w", ErrRateLimitExhausted, attempt, err)
		}

		c.metrics.RateLimitRetry()
		c.log.Warn().
			Str("url", redactURL(fullURL)).
			Int("attempt", attempt+1).
			Dur("delay", delay).
			Msg("upstream quota exceeded, backing off")
		if err := c.clock.Sleep(ctx, delay); err != nil {
			return nil, err
		}
		delay *= 2
	}
}

// send performs a single HTTP exchange and classifies the status.
func (c *Client) send(ctx context.Context, fullURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set(authHeader, c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("%w: GET %s: %v", ErrNetwork, redactURL(fullURL), err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes+1))
	if err != nil {
		return nil, fmt.Errorf("%w: read body of %s: %v", ErrNetwork, redactURL(fullURL), err)
	}
	if len(body) > maxBodyBytes {
		return nil, fmt.Errorf("%w: GET %s: more than %d bytes", ErrResponseTooLarge, redactURL(fullURL), maxBodyBytes)
	}
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return body, nil
	}
	return nil, &StatusError{
		StatusCode: resp.StatusCode,
		URL:        redactURL(fullURL),
		Body:       abbreviateBody(body),
	}
}

// resolve turns an endpoint into an absolute URL. Absolute endpoints (next
// links) are used as given.
func (c *Client) resolve(endpoint string, params url.Values) string {
	full := endpoint
	if !strings.HasPrefix(endpoint, "http://") && !strings.HasPrefix(endpoint, "https://") {
		full = c.baseURL + "/" + strings.TrimLeft(endpoint, "/")
	}
	if encoded := params.Encode(); encoded != "" {
		sep := "?"
		if strings.Contains(full, "?") {
			sep = "&"
		}
		full += sep + encoded
	}
	return full
}

// ── Helpers ────────────────────────────────────────────────

func decodeObject(body []byte, fullURL string) (map[string]any, error) {
	var doc map[string]any
	if err := payloadJSON.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("decode response of %s: %w", redactURL(fullURL), err)
	}
	if doc == nil {
		return nil, fmt.Errorf("decode response of %s: expected JSON object", redactURL(fullURL))
	}
	return doc, nil
}

func outcome(err error) string {
	var statusErr *StatusError
	switch {
	case errors.As(err, &statusErr):
		return strconv.Itoa(statusErr.StatusCode)
	case errors.Is(err, ErrNetwork):
		return "network"
	default:
		return "error"
	}
}

func abbreviateBody(body []byte) string {
	text := strings.TrimSpace(string(body))
	if len(text) <= 240 {
		return text
	}
	return text[:240] + "..."
}

// redactURL strips credentials that may have been put in the query string.
func redactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	q := u.Query()
	for _, key := range []string{"api_key", "apikey", "token"} {
		if q.Has(key) {
			q.Set(key, "REDACTED")
		}
	}
	u.RawQuery = q.Encode()
	return u.String()
}
