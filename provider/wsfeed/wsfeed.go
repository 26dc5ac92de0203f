// Package wsfeed implements the provider adapter contract over a streaming
// websocket quote feed. The feed pushes ticks; the adapter keeps the latest
// raw tick per symbol and Fetch answers from that book, subscribing to a
// symbol on first request.
package wsfeed

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/segmentio/encoding/json"

	"github.com/c360/quantdata/errors"
	"github.com/c360/quantdata/provider"
	"github.com/c360/quantdata/types"
)

// Config describes one websocket feed deployment.
type Config struct {
	// ID is the stable provider identifier.
	ID string `json:"id" mapstructure:"id"`

	// Name is the human-readable provider name.
	Name string `json:"name" mapstructure:"name"`

	// URL is the websocket endpoint (ws:// or wss://).
	URL string `json:"url" mapstructure:"url"`

	// DialTimeout bounds the websocket handshake.
	DialTimeout time.Duration `json:"dial_timeout" mapstructure:"dial_timeout"`

	// PingInterval is the keepalive cadence; the read side allows twice this
	// before treating the session as dead.
	PingInterval time.Duration `json:"ping_interval" mapstructure:"ping_interval"`

	// Capabilities declares the (asset, data) pairs this deployment serves.
	// Websocket feeds serve realtime quotes.
	Capabilities types.CapabilitySet `json:"capabilities" mapstructure:"capabilities"`
}

func (c Config) withDefaults() Config {
	if c.Name == "" {
		c.Name = c.ID
	}
	if c.DialTimeout <= 0 {
		c.DialTimeout = 10 * time.Second
	}
	if c.PingInterval <= 0 {
		c.PingInterval = 30 * time.Second
	}
	return c
}

// subscribeMsg is the outbound subscription request.
type subscribeMsg struct {
	Op     string `json:"op"`
	Symbol string `json:"symbol"`
}

// Adapter is the websocket feed provider adapter.
type Adapter struct {
	cfg Config

	mu      sync.RWMutex
	conn    *websocket.Conn
	book    map[string]map[string]any
	subs    map[string]bool
	lastMsg time.Time
	done    chan struct{}

	writeMu sync.Mutex
}

// New creates an adapter. The configuration must carry an ID, a URL and at
// least one capability.
func New(cfg Config) (*Adapter, error) {
	if cfg.ID == "" || cfg.URL == "" {
		return nil, errors.WrapInvalid(errors.ErrInvalidConfig, "WSFeed", "New", "id and url validation")
	}
	if cfg.Capabilities.Empty() {
		return nil, errors.WrapInvalid(errors.ErrInvalidCapability, "WSFeed", "New", "capability validation")
	}
	return &Adapter{
		cfg:  cfg.withDefaults(),
		book: make(map[string]map[string]any),
		subs: make(map[string]bool),
	}, nil
}

// ID implements provider.Adapter
func (a *Adapter) ID() string { return a.cfg.ID }

// DisplayName implements provider.Adapter
func (a *Adapter) DisplayName() string { return a.cfg.Name }

// Capabilities implements provider.Adapter
func (a *Adapter) Capabilities() types.CapabilitySet { return a.cfg.Capabilities }

// Connect implements provider.Adapter. It dials the feed and starts the read
// and keepalive loops.
func (a *Adapter) Connect(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.conn != nil {
		return nil
	}

	dialer := websocket.Dialer{HandshakeTimeout: a.cfg.DialTimeout}
	conn, resp, err := dialer.DialContext(ctx, a.cfg.URL, nil)
	if err != nil {
		if resp != nil {
			err = fmt.Errorf("%w (status %d)", err, resp.StatusCode)
		}
		return errors.WrapTransient(err, "WSFeed", "Connect", "dial")
	}

	a.conn = conn
	a.book = make(map[string]map[string]any)
	a.subs = make(map[string]bool)
	a.lastMsg = time.Now()
	a.done = make(chan struct{})

	go a.readLoop(conn, a.done)
	go a.pingLoop(conn, a.done)
	return nil
}

// Disconnect implements provider.Adapter
func (a *Adapter) Disconnect() error {
	a.mu.Lock()
	conn := a.conn
	done := a.done
	a.conn = nil
	a.done = nil
	a.mu.Unlock()

	if conn == nil {
		return nil
	}
	if done != nil {
		close(done)
	}
	return conn.Close()
}

// IsConnected implements provider.Adapter
func (a *Adapter) IsConnected() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.conn != nil
}

// HealthCheck implements provider.Adapter. The session is healthy while the
// read loop keeps receiving within two keepalive intervals.
func (a *Adapter) HealthCheck(_ context.Context) provider.HealthCheckResult {
	a.mu.RLock()
	conn := a.conn
	lastMsg := a.lastMsg
	a.mu.RUnlock()

	if conn == nil {
		return provider.HealthCheckResult{OK: false, Message: "no session"}
	}
	silence := time.Since(lastMsg)
	if silence > 2*a.cfg.PingInterval {
		return provider.HealthCheckResult{
			OK:      false,
			Message: fmt.Sprintf("no traffic for %s", silence.Round(time.Second)),
		}
	}
	return provider.HealthCheckResult{OK: true, Latency: silence}
}

// Fetch implements provider.Adapter. Only realtime quotes are served; the
// first fetch for a symbol subscribes and waits for the first tick.
func (a *Adapter) Fetch(ctx context.Context, query types.Query) (*provider.RawResult, error) {
	if query.Data != types.DataRealtimeQuote {
		return nil, errors.WrapInvalid(errors.ErrInvalidData, "WSFeed", "Fetch",
			fmt.Sprintf("unsupported data type '%s'", query.Data))
	}
	if !a.IsConnected() {
		return nil, errors.WrapTransient(errors.ErrNoConnection, "WSFeed", "Fetch", "session check")
	}

	if err := a.ensureSubscribed(query.Symbol); err != nil {
		return nil, err
	}

	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()
	for {
		if tick, ok := a.latest(query.Symbol); ok {
			return &provider.RawResult{Records: []map[string]any{tick}}, nil
		}
		select {
		case <-ctx.Done():
			return nil, errors.WrapTransient(errors.ErrProviderTimeout, "WSFeed", "Fetch",
				fmt.Sprintf("first tick for '%s'", query.Symbol))
		case <-ticker.C:
		}
	}
}

// ListAssets implements provider.Adapter. Streaming feeds have no listing
// endpoint; the symbols currently in the book are returned.
func (a *Adapter) ListAssets(_ context.Context, asset types.AssetType, _ string) ([]types.AssetDescriptor, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	descriptors := make([]types.AssetDescriptor, 0, len(a.book))
	for symbol := range a.book {
		descriptors = append(descriptors, types.AssetDescriptor{Symbol: symbol, Asset: asset})
	}
	return descriptors, nil
}

func (a *Adapter) ensureSubscribed(symbol string) error {
	a.mu.Lock()
	conn := a.conn
	already := a.subs[symbol]
	if !already {
		a.subs[symbol] = true
	}
	a.mu.Unlock()

	if already {
		return nil
	}
	if err := a.writeJSON(conn, subscribeMsg{Op: "subscribe", Symbol: symbol}); err != nil {
		a.mu.Lock()
		delete(a.subs, symbol)
		a.mu.Unlock()
		return errors.WrapTransient(err, "WSFeed", "ensureSubscribed", symbol)
	}
	return nil
}

func (a *Adapter) latest(symbol string) (map[string]any, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	tick, ok := a.book[symbol]
	return tick, ok
}

// readLoop stores the newest tick per symbol. Ticks without a symbol field
// are dropped; the normalizer cannot attribute them.
func (a *Adapter) readLoop(conn *websocket.Conn, done chan struct{}) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-done:
			default:
				// Session died underneath us; fetches will fail until the
				// operator reconnects.
				_ = a.Disconnect()
			}
			return
		}

		var tick map[string]any
		if err := json.Unmarshal(data, &tick); err != nil {
			continue
		}
		symbol, _ := tick["symbol"].(string)
		if symbol == "" {
			continue
		}

		a.mu.Lock()
		a.book[symbol] = tick
		a.lastMsg = time.Now()
		a.mu.Unlock()
	}
}

func (a *Adapter) pingLoop(conn *websocket.Conn, done chan struct{}) {
	ticker := time.NewTicker(a.cfg.PingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			deadline := time.Now().Add(a.cfg.DialTimeout)
			if err := conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				return
			}
		}
	}
}

func (a *Adapter) writeJSON(conn *websocket.Conn, v any) error {
	if conn == nil {
		return errors.ErrNoConnection
	}
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	a.writeMu.Lock()
	defer a.writeMu.Unlock()
	return conn.WriteMessage(websocket.TextMessage, data)
}
