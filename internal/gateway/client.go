package gateway

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sony/gobreaker"

	"github.com/wonny/putscan/internal/contracts"
	"github.com/wonny/putscan/internal/realtime/cache"
	"github.com/wonny/putscan/internal/realtime/feed"
	"github.com/wonny/putscan/pkg/config"
	"github.com/wonny/putscan/pkg/httputil"
	"github.com/wonny/putscan/pkg/logger"
	"github.com/wonny/putscan/pkg/metrics"
	"github.com/wonny/putscan/pkg/redis"
)

const (
	snapshotInterval = 500 * time.Millisecond
	handshakeTimeout = 10 * time.Second
)

// Client is the IBKR Client Portal data feed.
// It implements contracts.MarketFeed over REST plus the quote stream.
// ⭐ SSOT: IBKR gateway 호출은 이 클라이언트에서만
type Client struct {
	cfg     config.GatewayConfig
	baseURL string
	http    *httputil.Client
	breaker *gobreaker.CircuitBreaker
	metrics *metrics.Registry
	logger  *logger.Logger

	feed *feed.FeedManager

	mu      sync.Mutex
	months  map[int64][]string // underlying conid -> option months (JAN24...)
	session string
	started bool
}

// New creates a gateway client. rc and m may be nil.
func New(cfg *config.Config, rc *redis.Client, m *metrics.Registry, log *logger.Logger) *Client {
	if rc == nil {
		rc = &redis.Client{}
	}

	httpClient := httputil.New(cfg, log).
		DisableRetry().
		WithPacing(cfg.Gateway.RateLimit, 1)
	if rc.Enabled() {
		httpClient.WithRateLimiter(redis.NewRateLimiter(rc, "putscan"), redis.GatewayRateLimit(cfg.Gateway.RateLimit))
	}

	c := &Client{
		cfg:     cfg.Gateway,
		baseURL: cfg.Gateway.BaseURL(),
		http:    httpClient,
		breaker: newHistoryBreaker(),
		metrics: m,
		logger:  log.WithField("component", "gateway"),
		months:  make(map[int64][]string),
	}

	book := cache.NewQuoteBook(log)
	poller := feed.NewSnapshotPoller(c, book, log, snapshotInterval)

	var stream *feed.StreamClient
	if cfg.Gateway.Streaming {
		dialer := &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: handshakeTimeout,
			TLSClientConfig:  &tls.Config{InsecureSkipVerify: cfg.Gateway.InsecureTLS}, //nolint:gosec
		}
		stream = feed.NewStreamClient(cfg.Gateway.StreamURL(), dialer, log, book)
	}
	c.feed = feed.NewFeedManager(log, book, stream, poller)

	return c
}

// newHistoryBreaker trips after repeated history failures so a dead
// historical data farm costs one timeout, not one per contract
func newHistoryBreaker() *gobreaker.CircuitBreaker {
	st := gobreaker.Settings{Name: "ibkr-history"}
	st.Interval = 60 * time.Second
	st.Timeout = 30 * time.Second
	st.ReadyToTrip = func(counts gobreaker.Counts) bool {
		if counts.ConsecutiveFailures >= 5 {
			return true
		}
		if counts.Requests < 20 {
			return false
		}
		return float64(counts.TotalFailures)/float64(counts.Requests) > 0.5
	}
	// abandoned requests and "no data" replies say nothing about the farm
	st.IsSuccessful = func(err error) bool {
		if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return true
		}
		var statusErr *httputil.StatusError
		return errors.As(err, &statusErr) && statusErr.StatusCode < 500
	}
	return gobreaker.NewCircuitBreaker(st)
}

// Status returns the brokerage session state
func (c *Client) Status(ctx context.Context) (AuthStatus, error) {
	var status AuthStatus
	if err := c.post(ctx, "auth_status", pathAuthStatus, nil, &status); err != nil {
		return status, err
	}
	return status, nil
}

// Connect verifies the brokerage session and starts the live quote feed.
// Any failure here is fatal for the scan.
func (c *Client) Connect(ctx context.Context) error {
	c.logger.WithFields(map[string]interface{}{
		"url":       c.baseURL,
		"client_id": c.cfg.ClientID,
	}).Info("Connecting to IBKR gateway")

	status, err := c.Status(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", contracts.ErrSessionFailed, err)
	}
	if !status.Ready() {
		return fmt.Errorf("%w: authenticated=%t connected=%t competing=%t %s",
			contracts.ErrSessionFailed, status.Authenticated, status.Connected, status.Competing, status.Message)
	}

	session, err := c.Tickle(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", contracts.ErrSessionFailed, err)
	}

	c.mu.Lock()
	c.session = session
	c.started = true
	c.mu.Unlock()

	c.feed.Start(ctx, session)

	c.logger.WithFields(map[string]interface{}{
		"server":    status.ServerInfo.ServerName,
		"version":   status.ServerInfo.ServerVersion,
		"feed_mode": string(c.feed.Mode()),
	}).Info("Connected to IBKR gateway")
	return nil
}

// Tickle keeps the gateway session alive and returns the session token
// used to authenticate the quote stream
func (c *Client) Tickle(ctx context.Context) (string, error) {
	var tickle tickleResponse
	if err := c.post(ctx, "tickle", pathTickle, nil, &tickle); err != nil {
		return "", err
	}
	if !tickle.IServer.AuthStatus.Authenticated {
		return tickle.Session, fmt.Errorf("tickle: session not authenticated")
	}
	return tickle.Session, nil
}

// Close stops the live quote feed
func (c *Client) Close() error {
	c.mu.Lock()
	started := c.started
	c.started = false
	c.mu.Unlock()

	if started {
		c.feed.Stop()
		c.logger.Info("Disconnected from IBKR gateway")
	}
	return nil
}

// FeedMode reports the live quote transport in use
func (c *Client) FeedMode() feed.Mode {
	return c.feed.Mode()
}

// Subscribe implements contracts.QuoteSource
func (c *Client) Subscribe(ctx context.Context, conID int64) (contracts.QuoteSubscription, error) {
	return c.feed.Subscribe(ctx, conID)
}

func (c *Client) endpoint(path string, query url.Values) string {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	return u
}

// get performs a GET and decodes JSON, counting the call under name
func (c *Client) get(ctx context.Context, name, path string, query url.Values, out interface{}) error {
	err := c.http.GetJSON(ctx, c.endpoint(path, query), out)
	c.metrics.RecordGatewayRequest(name, err)
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	return nil
}

// post performs a JSON POST and decodes the response
func (c *Client) post(ctx context.Context, name, path string, body, out interface{}) error {
	if body == nil {
		body = struct{}{}
	}
	err := c.http.PostJSONDecode(ctx, c.endpoint(path, nil), body, out)
	c.metrics.RecordGatewayRequest(name, err)
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	return nil
}

var _ contracts.MarketFeed = (*Client)(nil)
