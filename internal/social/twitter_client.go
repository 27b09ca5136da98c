// Package social wraps the third-party Twitter gateway API. All calls
// go through one shared service key plus a per-account AuthToken, and
// every call sleeps a random interval first so traffic does not look
// machine-timed.
package social

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/Past-Tang/x/internal/settings"
)

// Tweet is a single tweet as returned by the gateway. Different gateway
// versions name the id field differently, so unmarshalling accepts all
// known spellings.
type Tweet struct {
	ID        string `json:"id"`
	Text      string `json:"text"`
	AuthorID  string `json:"author_id"`
	CreatedAt string `json:"created_at"`
}

func (t *Tweet) UnmarshalJSON(data []byte) error {
	var raw struct {
		ID        string `json:"id"`
		IDStr     string `json:"id_str"`
		TweetID   string `json:"tweetId"`
		Text      string `json:"text"`
		FullText  string `json:"full_text"`
		AuthorID  string `json:"author_id"`
		CreatedAt string `json:"created_at"`
		Author    struct {
			ID string `json:"id"`
		} `json:"author"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	t.ID = raw.ID
	if t.ID == "" {
		t.ID = raw.IDStr
	}
	if t.ID == "" {
		t.ID = raw.TweetID
	}
	t.Text = raw.Text
	if t.Text == "" {
		t.Text = raw.FullText
	}
	t.AuthorID = raw.AuthorID
	if t.AuthorID == "" {
		t.AuthorID = raw.Author.ID
	}
	t.CreatedAt = raw.CreatedAt
	return nil
}

// Result carries the outcome of a single gateway call. Body and
// DurationMs are populated even when the call failed so execution logs
// can record what the gateway actually said.
type Result struct {
	TweetID    string
	StatusCode int
	Body       string
	DurationMs int
}

// Client talks to a twitterapi.io-style gateway. Base URL and service
// key are read from settings on every call so admin changes apply
// without a restart.
type Client struct {
	settings   settings.Source
	httpClient *http.Client
	logger     *slog.Logger

	// test seams
	sleep       func(ctx context.Context, d time.Duration) error
	randFloat64 func() float64
}

// NewClient creates a gateway client.
func NewClient(src settings.Source, logger *slog.Logger) *Client {
	return &Client{
		settings: src,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger:      logger,
		sleep:       sleepCtx,
		randFloat64: rand.Float64,
	}
}

// GetUserTweets fetches the user's most recent tweets, newest first.
func (c *Client) GetUserTweets(ctx context.Context, authToken, userID string, count int) ([]Tweet, *Result, error) {
	params := url.Values{}
	params.Set("userId", userID)
	params.Set("count", strconv.Itoa(count))

	res, err := c.do(ctx, http.MethodGet, "/twitter/user/last_tweets?"+params.Encode(), authToken, nil)
	if err != nil {
		return nil, res, err
	}

	var payload struct {
		Tweets []Tweet `json:"tweets"`
	}
	if err := json.Unmarshal([]byte(res.Body), &payload); err != nil {
		return nil, res, fmt.Errorf("failed to parse tweets response: %w", err)
	}
	return payload.Tweets, res, nil
}

// ReplyToTweet posts text as a reply to the given tweet.
func (c *Client) ReplyToTweet(ctx context.Context, authToken, tweetID, text string) (*Result, error) {
	if authToken == "" {
		return nil, errors.New("auth token is required for replying to tweets")
	}
	body := map[string]string{
		"tweetId": tweetID,
		"text":    text,
	}
	return c.do(ctx, http.MethodPost, "/twitter/tweet/reply", authToken, body)
}

// PostTweet publishes a standalone tweet.
func (c *Client) PostTweet(ctx context.Context, authToken, text string) (*Result, error) {
	if authToken == "" {
		return nil, errors.New("auth token is required for posting tweets")
	}
	body := map[string]string{
		"text": text,
	}
	return c.do(ctx, http.MethodPost, "/twitter/tweet", authToken, body)
}

func (c *Client) do(ctx context.Context, method, endpoint, authToken string, body any) (*Result, error) {
	if err := c.applyRandomDelay(ctx); err != nil {
		return nil, err
	}

	baseURL := c.settings.String(ctx, settings.KeyTwitterAPIBaseURL, settings.DefaultTwitterAPIBaseURL)
	apiKey := c.settings.String(ctx, settings.KeyTwitterAPIKey, "")

	var reqBody io.Reader
	if body != nil {
		bodyBytes, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		reqBody = bytes.NewReader(bodyBytes)
	}

	req, err := http.NewRequestWithContext(ctx, method, baseURL+endpoint, reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if apiKey != "" {
		req.Header.Set("X-API-Key", apiKey)
	}
	if authToken != "" {
		req.Header.Set("AuthToken", authToken)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	durationMs := int(time.Since(start).Milliseconds())
	if err != nil {
		return &Result{DurationMs: durationMs}, fmt.Errorf("gateway request failed: %w", err)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return &Result{StatusCode: resp.StatusCode, DurationMs: durationMs}, fmt.Errorf("failed to read response: %w", err)
	}

	res := &Result{
		StatusCode: resp.StatusCode,
		Body:       string(bodyBytes),
		DurationMs: durationMs,
	}
	res.TweetID = extractTweetID(bodyBytes)

	if resp.StatusCode >= http.StatusBadRequest {
		return res, fmt.Errorf("gateway returned status %d: %s", resp.StatusCode, truncate(res.Body, 200))
	}

	c.logger.Debug("gateway call completed",
		"method", method,
		"endpoint", endpoint,
		"status", resp.StatusCode,
		"duration_ms", durationMs)

	return res, nil
}

// applyRandomDelay sleeps a uniformly random interval between the
// configured min and max delay, aborting early if ctx is cancelled.
func (c *Client) applyRandomDelay(ctx context.Context) error {
	minDelay := c.settings.Int(ctx, settings.KeyMinRandomDelay, settings.DefaultMinRandomDelay)
	maxDelay := c.settings.Int(ctx, settings.KeyMaxRandomDelay, settings.DefaultMaxRandomDelay)
	if maxDelay < minDelay {
		maxDelay = minDelay
	}
	if maxDelay <= 0 {
		return nil
	}

	seconds := float64(minDelay) + c.randFloat64()*float64(maxDelay-minDelay)
	return c.sleep(ctx, time.Duration(seconds*float64(time.Second)))
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func extractTweetID(body []byte) string {
	var payload struct {
		TweetID string `json:"tweetId"`
		Data    struct {
			TweetID string `json:"tweetId"`
			ID      string `json:"id"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return ""
	}
	if payload.TweetID != "" {
		return payload.TweetID
	}
	if payload.Data.TweetID != "" {
		return payload.Data.TweetID
	}
	return payload.Data.ID
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
