// Package httpfeed implements the provider adapter contract over a JSON
// HTTP market data API. Endpoint paths and authentication are configured per
// deployment; the response payload is passed to the normalizer raw, so
// vendor field naming needs no adapter-side mapping.
package httpfeed

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/segmentio/encoding/json"

	"github.com/c360/quantdata/errors"
	"github.com/c360/quantdata/provider"
	"github.com/c360/quantdata/types"
)

// Config describes one HTTP feed deployment.
type Config struct {
	// ID is the stable provider identifier.
	ID string `json:"id" mapstructure:"id"`

	// Name is the human-readable provider name.
	Name string `json:"name" mapstructure:"name"`

	// BaseURL roots every endpoint path.
	BaseURL string `json:"base_url" mapstructure:"base_url"`

	// APIKey is sent as a bearer token when set.
	APIKey string `json:"api_key" mapstructure:"api_key"`

	// KlinePath, QuotePath and ListPath are the endpoint paths relative to
	// BaseURL. Defaults follow the common /klines, /quote, /symbols layout.
	KlinePath string `json:"kline_path" mapstructure:"kline_path"`
	QuotePath string `json:"quote_path" mapstructure:"quote_path"`
	ListPath  string `json:"list_path" mapstructure:"list_path"`

	// PingPath is probed by Connect and HealthCheck.
	PingPath string `json:"ping_path" mapstructure:"ping_path"`

	// Timeout bounds one HTTP exchange. The engine's per-call deadline still
	// applies on top.
	Timeout time.Duration `json:"timeout" mapstructure:"timeout"`

	// Capabilities declares the (asset, data) pairs this deployment serves.
	Capabilities types.CapabilitySet `json:"capabilities" mapstructure:"capabilities"`
}

func (c Config) withDefaults() Config {
	if c.Name == "" {
		c.Name = c.ID
	}
	if c.KlinePath == "" {
		c.KlinePath = "/klines"
	}
	if c.QuotePath == "" {
		c.QuotePath = "/quote"
	}
	if c.ListPath == "" {
		c.ListPath = "/symbols"
	}
	if c.PingPath == "" {
		c.PingPath = "/ping"
	}
	if c.Timeout <= 0 {
		c.Timeout = 10 * time.Second
	}
	return c
}

// Adapter is the HTTP feed provider adapter.
type Adapter struct {
	cfg       Config
	client    *http.Client
	connected atomic.Bool
}

// New creates an adapter. The configuration must carry an ID, a BaseURL and
// at least one capability.
func New(cfg Config) (*Adapter, error) {
	if cfg.ID == "" || cfg.BaseURL == "" {
		return nil, errors.WrapInvalid(errors.ErrInvalidConfig, "HTTPFeed", "New", "id and base_url validation")
	}
	if cfg.Capabilities.Empty() {
		return nil, errors.WrapInvalid(errors.ErrInvalidCapability, "HTTPFeed", "New", "capability validation")
	}
	if _, err := url.Parse(cfg.BaseURL); err != nil {
		return nil, errors.WrapInvalid(err, "HTTPFeed", "New", "base url validation")
	}
	cfg = cfg.withDefaults()
	return &Adapter{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}, nil
}

// ID implements provider.Adapter
func (a *Adapter) ID() string { return a.cfg.ID }

// DisplayName implements provider.Adapter
func (a *Adapter) DisplayName() string { return a.cfg.Name }

// Capabilities implements provider.Adapter
func (a *Adapter) Capabilities() types.CapabilitySet { return a.cfg.Capabilities }

// Connect implements provider.Adapter. HTTP is stateless; Connect verifies
// reachability and credentials with one ping.
func (a *Adapter) Connect(ctx context.Context) error {
	if err := a.ping(ctx); err != nil {
		return err
	}
	a.connected.Store(true)
	return nil
}

// Disconnect implements provider.Adapter
func (a *Adapter) Disconnect() error {
	a.connected.Store(false)
	a.client.CloseIdleConnections()
	return nil
}

// IsConnected implements provider.Adapter
func (a *Adapter) IsConnected() bool { return a.connected.Load() }

// HealthCheck implements provider.Adapter
func (a *Adapter) HealthCheck(ctx context.Context) provider.HealthCheckResult {
	start := time.Now()
	if err := a.ping(ctx); err != nil {
		return provider.HealthCheckResult{OK: false, Latency: time.Since(start), Message: err.Error()}
	}
	return provider.HealthCheckResult{OK: true, Latency: time.Since(start)}
}

// Fetch implements provider.Adapter
func (a *Adapter) Fetch(ctx context.Context, query types.Query) (*provider.RawResult, error) {
	path := a.cfg.KlinePath
	if query.Data == types.DataRealtimeQuote {
		path = a.cfg.QuotePath
	}

	params := url.Values{}
	params.Set("symbol", query.Symbol)
	if query.Freq != "" {
		params.Set("interval", string(query.Freq))
	}
	if !query.Start.IsZero() {
		params.Set("start", strconv.FormatInt(query.Start.UTC().Unix(), 10))
	}
	if !query.End.IsZero() {
		params.Set("end", strconv.FormatInt(query.End.UTC().Unix(), 10))
	}
	if query.Count > 0 {
		params.Set("limit", strconv.Itoa(query.Count))
	}

	body, err := a.get(ctx, path, params)
	if err != nil {
		return nil, err
	}
	return decodeRecords(body)
}

// ListAssets implements provider.Adapter
func (a *Adapter) ListAssets(ctx context.Context, asset types.AssetType, market string) ([]types.AssetDescriptor, error) {
	params := url.Values{}
	params.Set("type", string(asset))
	if market != "" {
		params.Set("market", market)
	}

	body, err := a.get(ctx, a.cfg.ListPath, params)
	if err != nil {
		return nil, err
	}

	var descriptors []types.AssetDescriptor
	if err := json.Unmarshal(body, &descriptors); err != nil {
		return nil, errors.WrapInvalid(err, "HTTPFeed", "ListAssets", "decode listing")
	}
	for i := range descriptors {
		if descriptors[i].Asset == "" {
			descriptors[i].Asset = asset
		}
	}
	return descriptors, nil
}

func (a *Adapter) ping(ctx context.Context) error {
	_, err := a.get(ctx, a.cfg.PingPath, nil)
	return err
}

func (a *Adapter) get(ctx context.Context, path string, params url.Values) ([]byte, error) {
	endpoint := a.cfg.BaseURL + path
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, errors.WrapInvalid(err, "HTTPFeed", "get", "build request")
	}
	req.Header.Set("Accept", "application/json")
	if a.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+a.cfg.APIKey)
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, errors.WrapTransient(err, "HTTPFeed", "get", "execute request")
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<20))
	if err != nil {
		return nil, errors.WrapTransient(err, "HTTPFeed", "get", "read response")
	}

	switch {
	case resp.StatusCode == http.StatusOK:
		return body, nil
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, errors.WrapTransient(errors.ErrRateLimited, "HTTPFeed", "get", path)
	case resp.StatusCode >= 500:
		return nil, errors.WrapTransient(
			fmt.Errorf("server status %d", resp.StatusCode), "HTTPFeed", "get", path)
	default:
		return nil, errors.WrapInvalid(
			fmt.Errorf("unexpected status %d", resp.StatusCode), "HTTPFeed", "get", path)
	}
}

// decodeRecords accepts the two payload layouts seen across vendors: a bare
// array of row objects, or an envelope with the rows under "data".
func decodeRecords(body []byte) (*provider.RawResult, error) {
	var rows []map[string]any
	if err := json.Unmarshal(body, &rows); err == nil {
		return &provider.RawResult{Records: rows}, nil
	}

	var envelope struct {
		Fields []string         `json:"fields"`
		Data   []map[string]any `json:"data"`
	}
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Data != nil {
		return &provider.RawResult{Fields: envelope.Fields, Records: envelope.Data}, nil
	}

	// A single row object is a valid quote payload.
	var row map[string]any
	if err := json.Unmarshal(body, &row); err == nil && len(row) > 0 {
		return &provider.RawResult{Records: []map[string]any{row}}, nil
	}

	return nil, errors.WrapInvalid(errors.ErrInvalidData, "HTTPFeed", "decodeRecords", "payload layout")
}
