// Package sync retrieves show feeds over HTTP and turns them into raw entries.
package sync

import (
	"context"
	"errors"
	"fmt"
	"html"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/microcosm-cc/bluemonday"
	"github.com/mmcdole/gofeed"
	"github.com/sethvargo/go-retry"

	"github.com/jdholdren/podwatch/internal/podwatch"
)

const (
	DefaultYouTubeBaseURL = "https://www.youtube.com/feeds/videos.xml"

	// Feeds bigger than this are cut off before parsing.
	maxFeedBytes = 20 << 20
	// Titles are cut to this many bytes, on a rune boundary.
	maxTitleBytes = 2048
)

type Config struct {
	// Timeout of a single attempt.
	Timeout time.Duration
	// Retries after the first attempt, for transport errors and 5xx responses.
	Retries uint64
	// Backoff is the first wait between attempts; it doubles each time.
	Backoff time.Duration
	// CacheTTL keeps successful fetches around so back to back syncs of
	// the same show don't hit upstream twice. Zero disables the cache.
	CacheTTL time.Duration

	YouTubeBaseURL string
	UserAgent      string
}

// Client fetches RSS and YouTube feeds.
type Client struct {
	http  *http.Client
	cfg   Config
	cache *expirable.LRU[string, []podwatch.RawEntry]
}

func New(cfg Config) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.Backoff == 0 {
		cfg.Backoff = 500 * time.Millisecond
	}
	if cfg.YouTubeBaseURL == "" {
		cfg.YouTubeBaseURL = DefaultYouTubeBaseURL
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "podwatch/1.0"
	}

	c := &Client{
		http: &http.Client{Timeout: cfg.Timeout},
		cfg:  cfg,
	}
	if cfg.CacheTTL > 0 {
		c.cache = expirable.NewLRU[string, []podwatch.RawEntry](256, nil, cfg.CacheTTL)
	}

	return c
}

// FeedURL expands a show's locator. YouTube locators are channel ids.
func (c *Client) FeedURL(kind podwatch.SourceKind, locator string) (string, error) {
	switch kind {
	case podwatch.SourceRSS:
		return locator, nil
	case podwatch.SourceYouTube:
		return fmt.Sprintf("%s?channel_id=%s", c.cfg.YouTubeBaseURL, url.QueryEscape(locator)), nil
	}

	return "", fmt.Errorf("unknown source kind %q", kind)
}

// Fetch returns the entries of a feed in the order the feed lists them.
//
// Every failure wraps [podwatch.ErrFeedUnavailable]. A feed without items
// returns an empty slice and no error.
func (c *Client) Fetch(ctx context.Context, kind podwatch.SourceKind, locator string) ([]podwatch.RawEntry, error) {
	feedURL, err := c.FeedURL(kind, locator)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", podwatch.ErrFeedUnavailable, err)
	}

	if c.cache != nil {
		if entries, ok := c.cache.Get(feedURL); ok {
			slog.DebugContext(ctx, "feed cache hit", "url", feedURL)
			return entries, nil
		}
	}

	var entries []podwatch.RawEntry
	b := retry.WithMaxRetries(c.cfg.Retries, retry.NewExponential(c.cfg.Backoff))
	if err := retry.Do(ctx, b, func(ctx context.Context) error {
		got, err := c.fetchOnce(ctx, feedURL)
		if err != nil {
			slog.WarnContext(ctx, "feed fetch attempt failed", "url", feedURL, "error", err)
			return err
		}

		entries = got
		return nil
	}); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", podwatch.ErrFeedUnavailable, feedURL, err)
	}

	if c.cache != nil {
		c.cache.Add(feedURL, entries)
	}

	return entries, nil
}

func (c *Client) fetchOnce(ctx context.Context, feedURL string) ([]podwatch.RawEntry, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feedURL, nil)
	if err != nil {
		return nil, fmt.Errorf("error building request: %w", err)
	}
	req.Header.Set("User-Agent", c.cfg.UserAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		if errors.Is(ctx.Err(), context.Canceled) {
			return nil, err
		}
		return nil, retry.RetryableError(fmt.Errorf("error getting feed url: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusInternalServerError {
		return nil, retry.RetryableError(fmt.Errorf("unexpected status code: %d", resp.StatusCode))
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	return Parse(io.LimitReader(resp.Body, maxFeedBytes))
}

// Parse decodes an RSS or Atom document.
func Parse(r io.Reader) ([]podwatch.RawEntry, error) {
	feed, err := gofeed.NewParser().Parse(r)
	if err != nil {
		return nil, fmt.Errorf("error decoding feed: %w", err)
	}

	entries := make([]podwatch.RawEntry, 0, len(feed.Items))
	for _, item := range feed.Items {
		entries = append(entries, podwatch.RawEntry{
			Title:       sanitize(item.Title),
			PublishedAt: publishTime(item),
			GUID:        pickGUID(item),
		})
	}

	return entries, nil
}

func publishTime(item *gofeed.Item) time.Time {
	if item.PublishedParsed != nil {
		return *item.PublishedParsed
	}
	if item.UpdatedParsed != nil {
		return *item.UpdatedParsed
	}
	return time.Time{}
}

func pickGUID(item *gofeed.Item) string {
	if item.GUID != "" {
		return item.GUID
	}
	return item.Link
}

var stripPolicy = bluemonday.StrictPolicy()

// Removes all html tags from a title and decodes its entities.
//
// Also limits the length of the string so there's not a massive chunk of text being stored.
func sanitize(s string) string {
	s = strings.TrimSpace(s)
	s = html.UnescapeString(stripPolicy.Sanitize(s))
	if len(s) > maxTitleBytes {
		n := maxTitleBytes
		for n > 0 && !utf8.RuneStart(s[n]) {
			n--
		}
		s = s[:n]
	}

	return s
}
