package slack

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/orderdesk/backend/internal/domain"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

// DefaultAPIBaseURL is the Slack Web API root
const DefaultAPIBaseURL = "https://slack.com/api"

const maxAttempts = 3

// Client posts notifications to Slack, either through an incoming webhook
// or with a bot token to chat.postMessage
type Client struct {
	httpClient  *http.Client
	webhookURL  string
	token       string
	channel     string
	apiBaseURL  string
	rateLimiter *rate.Limiter
	backoffBase time.Duration
}

type postMessageRequest struct {
	Channel string `json:"channel,omitempty"`
	Text    string `json:"text"`
}

type postMessageResponse struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

func newClient() *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
		// Slack allows roughly one message per second per channel
		rateLimiter: rate.NewLimiter(rate.Limit(1), 3),
		backoffBase: 500 * time.Millisecond,
	}
}

// NewWebhookClient creates a notifier for an incoming webhook URL
func NewWebhookClient(webhookURL string) *Client {
	c := newClient()
	c.webhookURL = webhookURL
	return c
}

// NewBotClient creates a notifier that posts as a bot to channel
func NewBotClient(token, channel, apiBaseURL string) *Client {
	if apiBaseURL == "" {
		apiBaseURL = DefaultAPIBaseURL
	}
	c := newClient()
	c.token = token
	c.channel = channel
	c.apiBaseURL = strings.TrimRight(apiBaseURL, "/")
	return c
}

// Notify delivers message, retrying on 429 and server errors
func (c *Client) Notify(ctx context.Context, message string) error {
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := c.rateLimiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limiter error: %w", err)
		}

		wait, err := c.post(ctx, message)
		if err == nil {
			return nil
		}
		lastErr = err
		if wait < 0 || attempt == maxAttempts {
			break
		}
		if wait == 0 {
			wait = c.backoffBase * time.Duration(1<<(attempt-1))
		}

		log.Warn().
			Err(err).
			Str("component", "slack").
			Int("attempt", attempt).
			Dur("retry_in", wait).
			Msg("notification failed, retrying")

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
	return lastErr
}

// post sends one request. wait < 0 means the error is permanent, wait == 0
// means retry with backoff, and wait > 0 is the server-provided delay.
func (c *Client) post(ctx context.Context, message string) (wait time.Duration, err error) {
	req, err := c.newRequest(ctx, message)
	if err != nil {
		return -1, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return -1, ctx.Err()
		}
		return 0, fmt.Errorf("%w: %v", domain.ErrNotifyFailure, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, fmt.Errorf("%w: reading body: %v", domain.ErrNotifyFailure, err)
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return retryAfter(resp.Header.Get("Retry-After")), fmt.Errorf("%w: rate limited", domain.ErrNotifyFailure)
	case resp.StatusCode >= 500:
		return 0, fmt.Errorf("%w: status %d", domain.ErrNotifyFailure, resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return -1, fmt.Errorf("%w: status %d: %s", domain.ErrNotifyFailure, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	// Webhooks answer a plain "ok"; the Web API answers JSON with an ok flag
	if c.webhookURL != "" {
		return 0, nil
	}
	var parsed postMessageResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return -1, fmt.Errorf("%w: decoding response: %v", domain.ErrNotifyFailure, err)
	}
	if !parsed.OK {
		return -1, fmt.Errorf("%w: %s", domain.ErrNotifyFailure, parsed.Error)
	}
	return 0, nil
}

func (c *Client) newRequest(ctx context.Context, message string) (*http.Request, error) {
	target := c.webhookURL
	payload := postMessageRequest{Text: message}
	if target == "" {
		target = c.apiBaseURL + "/chat.postMessage"
		payload.Channel = c.channel
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	return req, nil
}

func retryAfter(header string) time.Duration {
	secs, err := strconv.Atoi(strings.TrimSpace(header))
	if err != nil || secs <= 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}
