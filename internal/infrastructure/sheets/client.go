package sheets

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"time"

	"github.com/orderdesk/backend/internal/domain"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

// DefaultBaseURL serves the CSV export of Google spreadsheets
const DefaultBaseURL = "https://docs.google.com"

const maxAttempts = 3

// Client reads worksheets through the spreadsheet CSV export
type Client struct {
	httpClient  *http.Client
	baseURL     string
	sheetID     string
	rateLimiter *rate.Limiter
	backoffBase time.Duration
	debug       bool
}

// NewClient creates a client for one spreadsheet.
// requestsPerMinute <= 0 defaults to 60.
func NewClient(sheetID, baseURL string, requestsPerMinute int) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if requestsPerMinute <= 0 {
		requestsPerMinute = 60
	}

	return &Client{
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		baseURL:     baseURL,
		sheetID:     sheetID,
		rateLimiter: rate.NewLimiter(rate.Limit(float64(requestsPerMinute)/60), 5),
		backoffBase: 500 * time.Millisecond,
	}
}

// SetDebug enables or disables request logging
func (c *Client) SetDebug(debug bool) {
	c.debug = debug
}

// exportURL builds the CSV export URL of a worksheet
func (c *Client) exportURL(worksheet string) string {
	params := url.Values{}
	params.Add("tqx", "out:csv")
	params.Add("sheet", worksheet)
	return fmt.Sprintf("%s/spreadsheets/d/%s/gviz/tq?%s", c.baseURL, url.PathEscape(c.sheetID), params.Encode())
}

// exponentialBackoff returns the wait before retrying after the given attempt (1-based)
func (c *Client) exponentialBackoff(attempt int) time.Duration {
	return c.backoffBase * time.Duration(1<<(attempt-1))
}

// Rows downloads a worksheet and returns all of its rows, header first.
// Server errors and 429 responses are retried; other client errors are not.
func (c *Client) Rows(ctx context.Context, worksheet string) ([][]string, error) {
	reqURL := c.exportURL(worksheet)

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if attempt > 1 {
			if err := sleepCtx(ctx, c.exponentialBackoff(attempt-1)); err != nil {
				return nil, err
			}
		}

		if err := c.rateLimiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter error: %w", err)
		}

		body, retry, err := c.fetch(ctx, reqURL)
		if err == nil {
			rows, err := parseCSV(body)
			if err != nil {
				return nil, fmt.Errorf("%w: %v", domain.ErrSheetFailure, err)
			}
			if c.debug {
				log.Debug().
					Str("component", "sheets").
					Str("worksheet", worksheet).
					Int("rows", len(rows)).
					Msg("worksheet fetched")
			}
			return rows, nil
		}

		lastErr = err
		log.Warn().
			Err(err).
			Str("component", "sheets").
			Str("worksheet", worksheet).
			Int("attempt", attempt).
			Msg("worksheet request failed")
		if !retry {
			return nil, err
		}
	}

	return nil, lastErr
}

// fetch performs one GET; retry tells whether the failure is transient
func (c *Client) fetch(ctx context.Context, reqURL string) (body []byte, retry bool, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, false, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", "orderdesk/1.0")
	req.Header.Set("Accept", "text/csv")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, false, ctx.Err()
		}
		return nil, true, fmt.Errorf("%w: %v", domain.ErrSheetFailure, err)
	}
	defer resp.Body.Close()

	body, err = io.ReadAll(resp.Body)
	if err != nil {
		return nil, true, fmt.Errorf("%w: reading body: %v", domain.ErrSheetFailure, err)
	}

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return nil, true, fmt.Errorf("%w: status %d", domain.ErrSheetFailure, resp.StatusCode)
	default:
		return nil, false, fmt.Errorf("%w: status %d", domain.ErrSheetFailure, resp.StatusCode)
	}

	// A spreadsheet that is not shared answers 200 with the sign-in page
	if mediaType, _, _ := mime.ParseMediaType(resp.Header.Get("Content-Type")); mediaType == "text/html" {
		return nil, false, fmt.Errorf("%w: export returned html, check the sheet sharing settings", domain.ErrSheetFailure)
	}

	return body, false, nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
