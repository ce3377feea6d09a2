package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/wonny/putscan/internal/realtime"
	"github.com/wonny/putscan/internal/realtime/cache"
	"github.com/wonny/putscan/pkg/logger"
)

const (
	// Reconnect settings
	reconnectDelay    = 1 * time.Second
	maxReconnectDelay = 30 * time.Second

	// Keepalive settings; the gateway expects a "tic" text message
	pingInterval = 30 * time.Second
	readWait     = 90 * time.Second
	writeWait    = 10 * time.Second
)

// StreamClient manages live quotes via the Client Portal WebSocket
// ⭐ SSOT: IBKR WebSocket 연결 및 구독 관리는 이 클라이언트에서만
type StreamClient struct {
	url    string
	dialer *websocket.Dialer
	logger *logger.Logger
	book   *cache.QuoteBook

	session string

	conn    *websocket.Conn
	connMu  sync.RWMutex
	writeMu sync.Mutex

	active    map[int64]bool
	symbolsMu sync.RWMutex

	stopOnce     sync.Once
	stopCh       chan struct{}
	doneCh       chan struct{}
	started      bool
	reconnecting bool
	reconnectMu  sync.Mutex
}

// NewStreamClient creates a stream client writing into book
func NewStreamClient(url string, dialer *websocket.Dialer, log *logger.Logger, book *cache.QuoteBook) *StreamClient {
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}
	return &StreamClient{
		url:    url,
		dialer: dialer,
		logger: log,
		book:   book,
		active: make(map[int64]bool),
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}
}

// Start dials the stream and authenticates it with the session token
func (c *StreamClient) Start(ctx context.Context, session string) error {
	c.logger.WithField("url", c.url).Info("Starting IBKR quote stream")

	c.session = session
	if err := c.connect(ctx); err != nil {
		return fmt.Errorf("initial connection failed: %w", err)
	}

	c.started = true
	go c.readLoop(ctx)
	go c.pingLoop(ctx)

	return nil
}

// Stop closes the stream and waits for the read loop to exit
func (c *StreamClient) Stop() {
	c.stopOnce.Do(func() {
		c.logger.Info("Stopping IBKR quote stream")
		close(c.stopCh)

		c.connMu.Lock()
		if c.conn != nil {
			_ = c.conn.Close()
		}
		c.connMu.Unlock()

		if c.started {
			<-c.doneCh
		}
	})
}

// connect establishes the WebSocket connection and resubscribes
func (c *StreamClient) connect(ctx context.Context) error {
	conn, _, err := c.dialer.DialContext(ctx, c.url, nil)
	if err != nil {
		return fmt.Errorf("dial failed: %w", err)
	}

	_ = conn.SetReadDeadline(time.Now().Add(readWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(readWait))
	})

	c.connMu.Lock()
	c.conn = conn
	c.connMu.Unlock()

	auth, _ := json.Marshal(map[string]string{"session": c.session})
	if err := c.write(auth); err != nil {
		_ = conn.Close()
		return fmt.Errorf("session message failed: %w", err)
	}

	c.logger.Debug("Connected to IBKR quote stream")

	// Resubscribe contracts that were active before a reconnect
	for _, conID := range c.activeConIDs() {
		if err := c.write([]byte(subscribeMessage(conID))); err != nil {
			c.logger.WithError(err).WithField("conid", conID).Warn("Failed to resubscribe")
		}
	}

	return nil
}

// Subscribe starts streaming quotes for conID
func (c *StreamClient) Subscribe(conID int64) error {
	if err := c.write([]byte(subscribeMessage(conID))); err != nil {
		return fmt.Errorf("subscribe %d: %w", conID, err)
	}

	c.symbolsMu.Lock()
	c.active[conID] = true
	c.symbolsMu.Unlock()

	c.logger.WithField("conid", conID).Debug("Subscribed to contract")
	return nil
}

// Unsubscribe stops streaming quotes for conID
func (c *StreamClient) Unsubscribe(conID int64) error {
	c.symbolsMu.Lock()
	delete(c.active, conID)
	c.symbolsMu.Unlock()

	if err := c.write([]byte(unsubscribeMessage(conID))); err != nil {
		return fmt.Errorf("unsubscribe %d: %w", conID, err)
	}

	c.logger.WithField("conid", conID).Debug("Unsubscribed from contract")
	return nil
}

// ActiveCount returns the number of subscribed contracts
func (c *StreamClient) ActiveCount() int {
	c.symbolsMu.RLock()
	defer c.symbolsMu.RUnlock()
	return len(c.active)
}

func (c *StreamClient) activeConIDs() []int64 {
	c.symbolsMu.RLock()
	defer c.symbolsMu.RUnlock()

	ids := make([]int64, 0, len(c.active))
	for id := range c.active {
		ids = append(ids, id)
	}
	return ids
}

// write sends one text frame; gorilla connections allow a single writer
func (c *StreamClient) write(msg []byte) error {
	c.connMu.RLock()
	conn := c.conn
	c.connMu.RUnlock()

	if conn == nil {
		return fmt.Errorf("stream not connected")
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteMessage(websocket.TextMessage, msg)
}

// readLoop reads messages until Stop or context cancellation
func (c *StreamClient) readLoop(ctx context.Context) {
	defer close(c.doneCh)

	for {
		select {
		case <-ctx.Done():
			return
		case <-c.stopCh:
			return
		default:
		}

		c.connMu.RLock()
		conn := c.conn
		c.connMu.RUnlock()

		_, message, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-c.stopCh:
				return
			default:
			}
			c.logger.WithError(err).Warn("Failed to read stream message")
			if !c.handleDisconnect(ctx) {
				return
			}
			continue
		}

		_ = conn.SetReadDeadline(time.Now().Add(readWait))

		if err := c.handleMessage(message); err != nil {
			c.logger.WithError(err).Debug("Failed to handle stream message")
		}
	}
}

// handleMessage applies one market data message to the quote book.
// Non market data topics (system, heartbeat, status) are ignored.
func (c *StreamClient) handleMessage(message []byte) error {
	var msg map[string]interface{}
	if err := json.Unmarshal(message, &msg); err != nil {
		return fmt.Errorf("unmarshal message: %w", err)
	}

	topic, _ := msg["topic"].(string)
	if !strings.HasPrefix(topic, "smd+") {
		return nil
	}

	conID, ok := ParseConID(msg["conid"])
	if !ok {
		conID, ok = ParseConID(strings.TrimPrefix(topic, "smd+"))
	}
	if !ok {
		return fmt.Errorf("market data message without conid: %s", topic)
	}

	values := ParseFields(msg)
	if len(values) == 0 {
		return nil
	}

	c.book.Apply(realtime.Tick{
		ConID:     conID,
		Values:    values,
		Timestamp: time.Now(),
		Source:    realtime.SourceStream,
	})
	return nil
}

// handleDisconnect reconnects with exponential backoff.
// Returns false when the client is stopping.
func (c *StreamClient) handleDisconnect(ctx context.Context) bool {
	c.reconnectMu.Lock()
	if c.reconnecting {
		c.reconnectMu.Unlock()
		return true
	}
	c.reconnecting = true
	c.reconnectMu.Unlock()

	defer func() {
		c.reconnectMu.Lock()
		c.reconnecting = false
		c.reconnectMu.Unlock()
	}()

	c.logger.Warn("Quote stream disconnected, attempting to reconnect")

	delay := reconnectDelay
	for {
		select {
		case <-ctx.Done():
			return false
		case <-c.stopCh:
			return false
		case <-time.After(delay):
		}

		if err := c.connect(ctx); err != nil {
			c.logger.WithError(err).WithField("delay", delay).Warn("Reconnect failed, retrying")

			delay *= 2
			if delay > maxReconnectDelay {
				delay = maxReconnectDelay
			}
			continue
		}

		c.logger.Info("Reconnected to IBKR quote stream")
		return true
	}
}

// pingLoop keeps the gateway session alive
func (c *StreamClient) pingLoop(ctx context.Context) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-c.stopCh:
			return
		case <-ticker.C:
			if err := c.write([]byte("tic")); err != nil {
				c.logger.WithError(err).Debug("Failed to send keepalive")
			}
		}
	}
}

func subscribeMessage(conID int64) string {
	fields, _ := json.Marshal(map[string][]string{"fields": QuoteFieldCodes})
	return "smd+" + strconv.FormatInt(conID, 10) + "+" + string(fields)
}

func unsubscribeMessage(conID int64) string {
	return "umd+" + strconv.FormatInt(conID, 10) + "+{}"
}
