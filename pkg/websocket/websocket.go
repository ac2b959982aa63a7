package websocketPkg

import (
	"SentraKTP/internal/entity"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	jsoniter "github.com/json-iterator/go"
	"github.com/sirupsen/logrus"
)

var ErrNotConfigured = errors.New("KTP detection URL not configured")

type IWebsocket interface {
	Detect(ctx context.Context, frame []byte) ([]entity.DetectionBox, error)
	IsConnected() bool
	Reconnect() error
	Close()
}

// webSocketClient talks to the card detection service. The service answers
// each base64 frame with one JSON message, so a request holds reqMu for the
// whole write and read.
type webSocketClient struct {
	log          *logrus.Logger
	url          string
	conn         *websocket.Conn
	mu           sync.Mutex
	reqMu        sync.Mutex
	pingInterval time.Duration
	readTimeout  time.Duration
	writeTimeout time.Duration
}

func NewAIWebSocketClient(log *logrus.Logger) IWebsocket {
	url := os.Getenv("AI_KTP_DETECTION_URL")
	if url == "" {
		url = "ws://localhost:8000/api/v1/ktp/ws"
	}

	client := &webSocketClient{
		log:          log,
		url:          url,
		pingInterval: 30 * time.Second,
		readTimeout:  10 * time.Second,
		writeTimeout: 5 * time.Second,
	}

	go client.connectInBackground()

	return client
}

func (c *webSocketClient) connectInBackground() {
	if err := c.Reconnect(); err != nil {
		c.log.WithError(err).Warn("Initial connection to KTP detection failed, will retry on demand")
		return
	}
	c.log.WithField("url", c.url).Info("Connected to KTP detection service")
}

func (c *webSocketClient) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.conn != nil
}

func (c *webSocketClient) Reconnect() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}

	if c.url == "" {
		return ErrNotConfigured
	}

	dialer := *websocket.DefaultDialer
	dialer.HandshakeTimeout = 10 * time.Second

	conn, _, err := dialer.Dial(c.url, nil)
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", c.url, err)
	}

	conn.SetPingHandler(func(appData string) error {
		if err := conn.WriteControl(websocket.PongMessage, []byte(appData), time.Now().Add(c.writeTimeout)); err != nil {
			c.log.WithError(err).Debug("Error sending pong")
		}
		return nil
	})

	c.conn = conn
	go c.keepAlive(conn)

	return nil
}

func (c *webSocketClient) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
}

func (c *webSocketClient) keepAlive(conn *websocket.Conn) {
	ticker := time.NewTicker(c.pingInterval)
	defer ticker.Stop()

	for range ticker.C {
		c.mu.Lock()
		if c.conn != conn {
			c.mu.Unlock()
			return
		}

		err := conn.WriteControl(websocket.PingMessage, []byte{}, time.Now().Add(c.writeTimeout))
		if err != nil {
			c.log.WithError(err).Warn("Ping to KTP detection failed, marking connection as dead")
			c.conn = nil
			conn.Close()
			c.mu.Unlock()
			return
		}

		c.mu.Unlock()
	}
}

func (c *webSocketClient) getConnection() (*websocket.Conn, error) {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()

	if conn != nil {
		return conn, nil
	}

	if err := c.Reconnect(); err != nil {
		return nil, fmt.Errorf("cannot connect to KTP detection service: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil, errors.New("not connected to KTP detection service")
	}
	return c.conn, nil
}

func (c *webSocketClient) drop(conn *websocket.Conn) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == conn {
		c.conn = nil
	}
	conn.Close()
}

// Detect sends one encoded frame and waits for the detector's boxes.
func (c *webSocketClient) Detect(ctx context.Context, frame []byte) ([]entity.DetectionBox, error) {
	c.reqMu.Lock()
	defer c.reqMu.Unlock()

	conn, err := c.getConnection()
	if err != nil {
		return nil, err
	}

	deadline := time.Now().Add(c.writeTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	conn.SetWriteDeadline(deadline)

	payload := base64.StdEncoding.EncodeToString(frame)
	if err := conn.WriteMessage(websocket.TextMessage, []byte(payload)); err != nil {
		c.drop(conn)
		return nil, fmt.Errorf("error sending KTP frame: %w", err)
	}

	deadline = time.Now().Add(c.readTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	conn.SetReadDeadline(deadline)

	_, message, err := conn.ReadMessage()
	if err != nil {
		c.drop(conn)
		return nil, fmt.Errorf("error reading KTP message: %w", err)
	}

	conn.SetReadDeadline(time.Time{})
	conn.SetWriteDeadline(time.Time{})

	var result entity.KTPDetectionResult
	if err := jsoniter.ConfigCompatibleWithStandardLibrary.Unmarshal(message, &result); err != nil {
		return nil, fmt.Errorf("error unmarshaling KTP response: %w", err)
	}

	if result.Error != "" {
		return nil, fmt.Errorf("KTP detection service: %s", result.Error)
	}

	c.log.WithField("boxes", len(result.Boxes)).Debug("KTP detection result received")

	return result.Boxes, nil
}
