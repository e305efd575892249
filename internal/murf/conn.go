package murf

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	// writeTimeout bounds a single outbound frame write.
	writeTimeout = 5 * time.Second
	// pingTimeout bounds the keepalive probe write.
	pingTimeout = 2 * time.Second
)

var (
	// ErrNotConnected is returned when sending without an open connection.
	ErrNotConnected = errors.New("not connected to murf")
	// ErrConnectionFailed is returned when the websocket dial fails.
	ErrConnectionFailed = errors.New("murf connection failed")
	// ErrSendFailed is returned when an outbound message cannot be written.
	ErrSendFailed = errors.New("murf send failed")
)

// connManager owns the websocket connection lifecycle. At most one live
// connection exists at a time; writes are serialized.
type connManager struct {
	baseURL string
	apiKey  string
	logger  *slog.Logger

	mu      sync.Mutex
	writeMu sync.Mutex
	ws      *websocket.Conn
}

func newConnManager(baseURL, apiKey string, logger *slog.Logger) *connManager {
	return &connManager{
		baseURL: baseURL,
		apiKey:  apiKey,
		logger:  logger,
	}
}

// buildURL embeds the URL-affecting settings as query parameters.
func buildURL(base string, s Settings) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("parse murf url: %w", err)
	}
	q := u.Query()
	q.Set("sample_rate", strconv.Itoa(s.SampleRate))
	q.Set("format", s.Format)
	q.Set("channel_type", s.ChannelType)
	q.Set("model", s.Model)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// connect dials the service. It is a no-op when a connection is already
// open. On failure the connection stays unset and the error is returned.
func (c *connManager) connect(ctx context.Context, s Settings) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.ws != nil {
		return nil
	}

	wsURL, err := buildURL(c.baseURL, s)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrConnectionFailed, err)
	}

	header := http.Header{}
	header.Set("api-key", c.apiKey)

	c.logger.Debug("connecting to murf", "url", c.baseURL,
		"sample_rate", s.SampleRate, "format", s.Format,
		"channel_type", s.ChannelType, "model", s.Model)

	ws, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, header)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrConnectionFailed, err)
	}

	c.ws = ws
	c.logger.Debug("connected to murf")
	return nil
}

// close tears down the current connection. Idempotent.
func (c *connManager) close() error {
	c.mu.Lock()
	ws := c.ws
	c.ws = nil
	c.mu.Unlock()

	if ws == nil {
		return nil
	}
	return ws.Close()
}

// drop closes and clears ws only if it is still the current connection.
// The receive loop uses this after a read failure so a reconnect that
// already replaced the connection is left alone.
func (c *connManager) drop(ws *websocket.Conn) {
	if ws == nil {
		return
	}
	c.mu.Lock()
	if c.ws == ws {
		c.ws = nil
	}
	c.mu.Unlock()
	ws.Close()
}

// connected reports whether a connection is currently open.
func (c *connManager) connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ws != nil
}

// verify sends a keepalive ping. Any failure means "not connected", never a
// fatal error.
func (c *connManager) verify() bool {
	c.mu.Lock()
	ws := c.ws
	c.mu.Unlock()

	if ws == nil {
		return false
	}
	if err := ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(pingTimeout)); err != nil {
		c.logger.Error("murf connection verification failed", "error", err)
		return false
	}
	return true
}

// writeJSON sends one outbound message as a JSON text frame.
func (c *connManager) writeJSON(v any) error {
	c.mu.Lock()
	ws := c.ws
	c.mu.Unlock()

	if ws == nil {
		return ErrNotConnected
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	ws.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := ws.WriteJSON(v); err != nil {
		return fmt.Errorf("%w: %v", ErrSendFailed, err)
	}
	return nil
}

// read blocks for the next inbound message and returns the connection it was
// read from so a failure can be attributed to the right connection.
func (c *connManager) read() (*websocket.Conn, int, []byte, error) {
	c.mu.Lock()
	ws := c.ws
	c.mu.Unlock()

	if ws == nil {
		return nil, 0, nil, ErrNotConnected
	}
	msgType, data, err := ws.ReadMessage()
	return ws, msgType, data, err
}
