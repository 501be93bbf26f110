package kraken

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/wonny/talos/internal/market"
	"github.com/wonny/talos/pkg/config"
	"github.com/wonny/talos/pkg/logger"
)

const (
	// Reconnect settings
	reconnectDelay    = 5 * time.Second
	maxReconnectDelay = 5 * time.Minute

	// Ping/Pong settings
	pingInterval = 30 * time.Second
	pongWait     = 60 * time.Second
	writeWait    = 10 * time.Second
)

// WebSocketClient streams real-time ticker data from Kraken WebSocket v2
// ⭐ SSOT: Kraken WebSocket 연결 및 구독 관리는 이 클라이언트에서만
type WebSocketClient struct {
	cfg     config.KrakenConfig
	logger  *logger.Logger
	feed    *market.Feed
	symbols []string

	conn   *websocket.Conn
	connMu sync.RWMutex

	stopCh       chan struct{}
	doneCh       chan struct{}
	reconnecting bool
	reconnectMu  sync.Mutex
}

// NewWebSocketClient creates a ticker stream client pushing into the feed
func NewWebSocketClient(cfg config.KrakenConfig, symbols []string, feed *market.Feed, log *logger.Logger) *WebSocketClient {
	return &WebSocketClient{
		cfg:     cfg,
		logger:  log,
		feed:    feed,
		symbols: symbols,
		stopCh:  make(chan struct{}),
		doneCh:  make(chan struct{}),
	}
}

// Start connects and begins streaming
func (c *WebSocketClient) Start(ctx context.Context) error {
	c.logger.Info("Starting Kraken WebSocket client")

	if err := c.connect(ctx); err != nil {
		return fmt.Errorf("initial connection failed: %w", err)
	}

	go c.readLoop(ctx)
	go c.pingLoop(ctx)

	return nil
}

// Stop closes the connection and waits for the read loop to exit
func (c *WebSocketClient) Stop() {
	c.logger.Info("Stopping Kraken WebSocket client")

	close(c.stopCh)

	c.connMu.Lock()
	if c.conn != nil {
		c.conn.Close()
	}
	c.connMu.Unlock()

	<-c.doneCh
}

// connect establishes the WebSocket connection and subscribes
func (c *WebSocketClient) connect(ctx context.Context) error {
	c.connMu.Lock()
	defer c.connMu.Unlock()

	c.logger.WithField("url", c.cfg.WSURL).Debug("Connecting to Kraken WebSocket")

	dialer := websocket.DefaultDialer
	conn, _, err := dialer.DialContext(ctx, c.cfg.WSURL, nil)
	if err != nil {
		return fmt.Errorf("dial failed: %w", err)
	}

	c.conn = conn

	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	c.logger.Info("Connected to Kraken WebSocket")

	return c.subscribeTicker(conn)
}

// subscribeTicker subscribes to the v2 ticker channel for all symbols
func (c *WebSocketClient) subscribeTicker(conn *websocket.Conn) error {
	if len(c.symbols) == 0 {
		return nil
	}

	msg := map[string]interface{}{
		"method": "subscribe",
		"params": map[string]interface{}{
			"channel": "ticker",
			"symbol":  c.symbols,
		},
	}

	if err := conn.WriteJSON(msg); err != nil {
		return fmt.Errorf("subscribe ticker: %w", err)
	}

	c.logger.WithField("symbols", c.symbols).Debug("Subscribed to ticker channel")
	return nil
}

// readLoop reads messages from the WebSocket
func (c *WebSocketClient) readLoop(ctx context.Context) {
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

		if conn == nil {
			time.Sleep(1 * time.Second)
			continue
		}

		_, message, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-c.stopCh:
				return
			default:
			}
			c.logger.WithError(err).Error("Failed to read message")
			c.handleDisconnect(ctx)
			continue
		}

		if err := c.handleMessage(message); err != nil {
			c.logger.WithError(err).Error("Failed to handle message")
		}
	}
}

// handleMessage processes a ticker channel message
func (c *WebSocketClient) handleMessage(message []byte) error {
	var msg tickerMessage
	if err := json.Unmarshal(message, &msg); err != nil {
		return fmt.Errorf("unmarshal message: %w", err)
	}

	// Ignore heartbeats, status and subscription acks
	if msg.Channel != "ticker" || len(msg.Data) == 0 {
		return nil
	}

	for _, data := range msg.Data {
		if data.Symbol == "" || data.Last <= 0 {
			continue
		}

		tick := market.Tick{
			Symbol: data.Symbol,
			Price:  data.Last,
			TS:     time.Now().UTC(),
		}

		if c.feed.Update(tick) {
			c.logger.WithFields(map[string]interface{}{
				"symbol": tick.Symbol,
				"price":  tick.Price,
			}).Debug("Updated price from WebSocket")
		}
	}

	return nil
}

// handleDisconnect reconnects with exponential backoff
func (c *WebSocketClient) handleDisconnect(ctx context.Context) {
	c.reconnectMu.Lock()
	if c.reconnecting {
		c.reconnectMu.Unlock()
		return
	}
	c.reconnecting = true
	c.reconnectMu.Unlock()

	defer func() {
		c.reconnectMu.Lock()
		c.reconnecting = false
		c.reconnectMu.Unlock()
	}()

	c.logger.Warn("WebSocket disconnected, attempting to reconnect")

	delay := reconnectDelay
	for {
		select {
		case <-ctx.Done():
			return
		case <-c.stopCh:
			return
		case <-time.After(delay):
		}

		if err := c.connect(ctx); err != nil {
			c.logger.WithError(err).WithField("delay", delay).Error("Reconnect failed, retrying")

			// Exponential backoff
			delay *= 2
			if delay > maxReconnectDelay {
				delay = maxReconnectDelay
			}
			continue
		}

		c.logger.Info("Reconnected to Kraken WebSocket")
		return
	}
}

// pingLoop sends periodic pings to keep the connection alive
func (c *WebSocketClient) pingLoop(ctx context.Context) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-c.stopCh:
			return
		case <-ticker.C:
			c.connMu.RLock()
			conn := c.conn
			c.connMu.RUnlock()

			if conn == nil {
				continue
			}

			if err := conn.WriteControl(websocket.PingMessage, []byte{}, time.Now().Add(writeWait)); err != nil {
				c.logger.WithError(err).Error("Failed to send ping")
			}
		}
	}
}

// tickerMessage is a Kraken WebSocket v2 ticker channel message
type tickerMessage struct {
	Channel string `json:"channel"`
	Type    string `json:"type"`
	Data    []struct {
		Symbol string  `json:"symbol"`
		Last   float64 `json:"last"`
		Bid    float64 `json:"bid"`
		Ask    float64 `json:"ask"`
	} `json:"data"`
}
