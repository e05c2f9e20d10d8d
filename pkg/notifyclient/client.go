// Package notifyclient follows a user's notifications over the API's WebSocket
// stream and falls back to polling while the stream is unavailable.
package notifyclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// ErrPollInFlight is returned when a poll is requested while another is still running.
var ErrPollInFlight = errors.New("poll already in flight")

const (
	notificationsPath = "/api/v1/notifications"
	streamPath        = "/api/v1/notifications/ws"
	seenCapacity      = 1024
	minDelay          = 50 * time.Millisecond
)

// Notification mirrors the API's notification payload.
type Notification struct {
	ID        uint      `json:"id"`
	UserID    uint      `json:"user_id"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	Type      string    `json:"type"`
	IsRead    bool      `json:"is_read"`
	RelatedID *uint     `json:"related_id"`
	CreatedAt time.Time `json:"created_at"`
}

// Handler receives each notification once.
type Handler func(Notification)

// Config controls endpoints and retry pacing.
type Config struct {
	BaseURL           string
	Token             string
	PollInterval      time.Duration
	MaxBackoff        time.Duration
	ReconnectInterval time.Duration
	StreamIdleTimeout time.Duration
	PageSize          int
	HTTPClient        *http.Client
	Dialer            *websocket.Dialer
}

func (c Config) withDefaults() Config {
	if c.PollInterval <= 0 {
		c.PollInterval = 15 * time.Second
	}
	if c.MaxBackoff <= 0 {
		c.MaxBackoff = 2 * time.Minute
	}
	if c.MaxBackoff < c.PollInterval {
		c.MaxBackoff = c.PollInterval
	}
	if c.ReconnectInterval <= 0 {
		c.ReconnectInterval = time.Minute
	}
	if c.StreamIdleTimeout <= 0 {
		c.StreamIdleTimeout = 90 * time.Second
	}
	if c.PageSize <= 0 || c.PageSize > 100 {
		c.PageSize = 50
	}
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: 10 * time.Second}
	}
	if c.Dialer == nil {
		c.Dialer = &websocket.Dialer{HandshakeTimeout: 5 * time.Second}
	}
	c.BaseURL = strings.TrimRight(c.BaseURL, "/")
	return c
}

// Client delivers notifications to a Handler exactly once per id.
type Client struct {
	cfg     Config
	handler Handler
	logger  zerolog.Logger

	polling atomic.Bool

	mu        sync.Mutex
	seen      map[uint]struct{}
	seenOrder []uint

	randMu sync.Mutex
	rand   *rand.Rand
}

// New validates cfg and builds a client.
func New(cfg Config, handler Handler, logger zerolog.Logger) (*Client, error) {
	if handler == nil {
		return nil, errors.New("notification handler is required")
	}
	if cfg.Token == "" {
		return nil, errors.New("access token is required")
	}
	parsed, err := url.Parse(cfg.BaseURL)
	if err != nil || parsed.Host == "" || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		return nil, fmt.Errorf("invalid base url %q", cfg.BaseURL)
	}

	return &Client{
		cfg:     cfg.withDefaults(),
		handler: handler,
		logger:  logger.With().Str("component", "notifyclient").Logger(),
		seen:    make(map[uint]struct{}),
		rand:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}, nil
}

// Run streams notifications until ctx is cancelled. Whenever the stream drops
// the client polls instead and retries the stream every ReconnectInterval.
func (c *Client) Run(ctx context.Context) error {
	for {
		err := c.stream(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.logger.Warn().Err(err).Msg("notification stream unavailable, polling")

		if err := c.pollUntil(ctx, time.Now().Add(c.cfg.ReconnectInterval)); err != nil {
			return err
		}
	}
}

func (c *Client) stream(ctx context.Context) error {
	header := http.Header{}
	header.Set("Authorization", "Bearer "+c.cfg.Token)

	conn, resp, err := c.cfg.Dialer.DialContext(ctx, c.streamURL(), header)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		return fmt.Errorf("dial stream: %w", err)
	}
	defer conn.Close()

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-done:
		}
	}()

	idle := c.cfg.StreamIdleTimeout
	_ = conn.SetReadDeadline(time.Now().Add(idle))
	conn.SetPingHandler(func(data string) error {
		_ = conn.SetReadDeadline(time.Now().Add(idle))
		return conn.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(time.Second))
	})

	c.logger.Info().Msg("notification stream connected")
	// Catch up on anything sent while disconnected.
	if err := c.PollOnce(ctx); err != nil && !errors.Is(err, ErrPollInFlight) {
		c.logger.Debug().Err(err).Msg("catch-up poll failed")
	}

	for {
		var frame struct {
			Event string        `json:"event"`
			Data  *Notification `json:"data"`
		}
		if err := conn.ReadJSON(&frame); err != nil {
			return fmt.Errorf("read stream: %w", err)
		}
		_ = conn.SetReadDeadline(time.Now().Add(idle))
		if frame.Event == "notification" && frame.Data != nil {
			c.deliver([]Notification{*frame.Data})
		}
	}
}

func (c *Client) pollUntil(ctx context.Context, until time.Time) error {
	failures := 0
	for {
		err := c.PollOnce(ctx)
		switch {
		case err == nil:
			failures = 0
		case errors.Is(err, ErrPollInFlight):
		case ctx.Err() != nil:
			return ctx.Err()
		default:
			failures++
			c.logger.Warn().Err(err).Int("failures", failures).Msg("notification poll failed")
		}

		if !time.Now().Before(until) {
			return nil
		}

		timer := time.NewTimer(c.nextDelay(failures))
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// PollOnce fetches the latest page and delivers unseen notifications oldest first.
// Concurrent calls do not overlap: the later one returns ErrPollInFlight.
func (c *Client) PollOnce(ctx context.Context) error {
	if !c.polling.CompareAndSwap(false, true) {
		return ErrPollInFlight
	}
	defer c.polling.Store(false)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s%s?limit=%d", c.cfg.BaseURL, notificationsPath, c.cfg.PageSize), nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.Token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.cfg.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("poll notifications: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("poll notifications: unexpected status %d", resp.StatusCode)
	}

	var envelope struct {
		Success bool `json:"success"`
		Data    struct {
			Items []Notification `json:"items"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return fmt.Errorf("decode notifications: %w", err)
	}

	c.deliver(envelope.Data.Items)
	return nil
}

func (c *Client) deliver(items []Notification) {
	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })

	fresh := make([]Notification, 0, len(items))
	c.mu.Lock()
	for _, item := range items {
		if _, ok := c.seen[item.ID]; ok {
			continue
		}
		c.seen[item.ID] = struct{}{}
		c.seenOrder = append(c.seenOrder, item.ID)
		fresh = append(fresh, item)
	}
	for len(c.seenOrder) > seenCapacity {
		delete(c.seen, c.seenOrder[0])
		c.seenOrder = c.seenOrder[1:]
	}
	c.mu.Unlock()

	for _, item := range fresh {
		c.handler(item)
	}
}

// nextDelay returns the regular interval while healthy. After failures it
// draws uniformly from [0, min(MaxBackoff, PollInterval*2^failures)).
func (c *Client) nextDelay(failures int) time.Duration {
	if failures <= 0 {
		return c.cfg.PollInterval
	}

	ceiling := c.cfg.MaxBackoff
	if failures < 32 {
		if scaled := c.cfg.PollInterval << uint(failures); scaled > 0 && scaled < ceiling {
			ceiling = scaled
		}
	}

	c.randMu.Lock()
	delay := time.Duration(c.rand.Int63n(int64(ceiling)))
	c.randMu.Unlock()

	if delay < minDelay {
		return minDelay
	}
	return delay
}

// streamURL carries no credentials; the token only travels in the Authorization
// header so it stays out of proxy and access logs.
func (c *Client) streamURL() string {
	base := c.cfg.BaseURL
	switch {
	case strings.HasPrefix(base, "https://"):
		base = "wss://" + strings.TrimPrefix(base, "https://")
	case strings.HasPrefix(base, "http://"):
		base = "ws://" + strings.TrimPrefix(base, "http://")
	}
	return base + streamPath
}
