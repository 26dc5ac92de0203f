// Package natsclient manages the NATS connection for the request/reply
// service layer: connect with backoff, status tracking and a drain-first
// close. Subscriptions and message handling live in the service package.
package natsclient

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/c360/quantdata/errors"
	"github.com/c360/quantdata/pkg/retry"
)

// ConnectionStatus represents the state of the NATS connection
type ConnectionStatus int

// Possible connection statuses
const (
	StatusDisconnected ConnectionStatus = iota
	StatusConnecting
	StatusConnected
	StatusReconnecting
	StatusClosed
)

// String returns the string representation of ConnectionStatus
func (s ConnectionStatus) String() string {
	switch s {
	case StatusDisconnected:
		return "disconnected"
	case StatusConnecting:
		return "connecting"
	case StatusConnected:
		return "connected"
	case StatusReconnecting:
		return "reconnecting"
	case StatusClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Client wraps one NATS connection with lifecycle management.
type Client struct {
	url    string
	name   string
	logger *slog.Logger

	connectTimeout time.Duration
	reconnectWait  time.Duration
	maxReconnects  int
	drainTimeout   time.Duration

	mu     sync.RWMutex
	conn   *nats.Conn
	status ConnectionStatus
}

// Option is a functional option for configuring the Client
type Option func(*Client)

// WithName sets the connection name reported to the server.
func WithName(name string) Option {
	return func(c *Client) { c.name = name }
}

// WithLogger sets the client logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithConnectTimeout bounds one dial attempt.
func WithConnectTimeout(d time.Duration) Option {
	return func(c *Client) { c.connectTimeout = d }
}

// WithReconnectWait sets the wait between automatic reconnection attempts.
func WithReconnectWait(d time.Duration) Option {
	return func(c *Client) { c.reconnectWait = d }
}

// WithMaxReconnects caps automatic reconnection attempts (-1 for infinite).
func WithMaxReconnects(n int) Option {
	return func(c *Client) { c.maxReconnects = n }
}

// WithDrainTimeout bounds the drain on Close.
func WithDrainTimeout(d time.Duration) Option {
	return func(c *Client) { c.drainTimeout = d }
}

// New creates a client for the given server URL. No I/O happens until
// Connect.
func New(url string, opts ...Option) *Client {
	c := &Client{
		url:            url,
		name:           "quantdata",
		logger:         slog.Default(),
		connectTimeout: 5 * time.Second,
		reconnectWait:  2 * time.Second,
		maxReconnects:  -1,
		drainTimeout:   30 * time.Second,
		status:         StatusDisconnected,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With("component", "NATSClient")
	return c
}

// URL returns the NATS server URL
func (c *Client) URL() string { return c.url }

// Status returns the current connection status
func (c *Client) Status() ConnectionStatus {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.status
}

// Conn returns the live connection, or nil before Connect.
func (c *Client) Conn() *nats.Conn {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.conn
}

// IsConnected reports whether the connection is currently usable.
func (c *Client) IsConnected() bool {
	conn := c.Conn()
	return conn != nil && conn.IsConnected()
}

// Connect dials the server, retrying with backoff until the context ends.
// After the initial connect succeeds the nats library handles reconnection
// on its own.
func (c *Client) Connect(ctx context.Context) error {
	c.setStatus(StatusConnecting)

	err := retry.Do(ctx, retry.Connect(), func() error {
		conn, err := nats.Connect(c.url,
			nats.Name(c.name),
			nats.Timeout(c.connectTimeout),
			nats.ReconnectWait(c.reconnectWait),
			nats.MaxReconnects(c.maxReconnects),
			nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
				c.setStatus(StatusReconnecting)
				c.logger.Warn("disconnected", "error", err)
			}),
			nats.ReconnectHandler(func(conn *nats.Conn) {
				c.setStatus(StatusConnected)
				c.logger.Info("reconnected", "url", conn.ConnectedUrl())
			}),
			nats.ClosedHandler(func(*nats.Conn) {
				c.setStatus(StatusClosed)
			}),
		)
		if err != nil {
			return err
		}
		c.mu.Lock()
		c.conn = conn
		c.status = StatusConnected
		c.mu.Unlock()
		return nil
	})
	if err != nil {
		c.setStatus(StatusDisconnected)
		return errors.WrapTransient(err, "NATSClient", "Connect", "dial")
	}

	c.logger.Info("connected", "url", c.url)
	return nil
}

// Close drains in-flight subscriptions and closes the connection. Safe to
// call before Connect and more than once.
func (c *Client) Close() error {
	c.mu.Lock()
	conn := c.conn
	c.conn = nil
	c.status = StatusClosed
	c.mu.Unlock()

	if conn == nil {
		return nil
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := conn.Drain(); err != nil {
			c.logger.Warn("drain failed, closing hard", "error", err)
			conn.Close()
		}
	}()

	select {
	case <-done:
		return nil
	case <-time.After(c.drainTimeout):
		conn.Close()
		return errors.WrapTransient(errors.ErrConnectionLost, "NATSClient", "Close", "drain timeout")
	}
}

func (c *Client) setStatus(status ConnectionStatus) {
	c.mu.Lock()
	c.status = status
	c.mu.Unlock()
}
