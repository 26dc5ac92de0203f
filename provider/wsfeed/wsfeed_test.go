package wsfeed

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/segmentio/encoding/json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/quantdata/errors"
	"github.com/c360/quantdata/types"
)

var stockQuote = types.Capability{Asset: types.AssetStock, Data: types.DataRealtimeQuote}

// feedServer answers every subscribe request with one tick for the symbol.
func feedServer(t *testing.T) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer func() { _ = conn.Close() }()
		for {
			var msg subscribeMsg
			if err := conn.ReadJSON(&msg); err != nil {
				return
			}
			if msg.Op != "subscribe" {
				continue
			}
			tick := map[string]any{
				"symbol":    msg.Symbol,
				"timestamp": time.Now().Unix(),
				"price":     321.5,
				"bid":       321.4,
				"ask":       321.6,
			}
			data, err := json.Marshal(tick)
			require.NoError(t, err)
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		}
	}))
	t.Cleanup(server.Close)
	return server
}

func wsURL(server *httptest.Server) string {
	return "ws" + strings.TrimPrefix(server.URL, "http")
}

func newConnected(t *testing.T, server *httptest.Server) *Adapter {
	t.Helper()
	adapter, err := New(Config{
		ID:           "stream",
		URL:          wsURL(server),
		Capabilities: types.CapabilitySet{stockQuote},
	})
	require.NoError(t, err)
	require.NoError(t, adapter.Connect(context.Background()))
	t.Cleanup(func() { _ = adapter.Disconnect() })
	return adapter
}

func TestNew_Validation(t *testing.T) {
	_, err := New(Config{URL: "ws://x", Capabilities: types.CapabilitySet{stockQuote}})
	assert.Error(t, err, "missing id")

	_, err = New(Config{ID: "x", URL: "ws://x"})
	assert.Error(t, err, "missing capabilities")
}

func TestConnect_FailsWhenServerRefuses(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	t.Cleanup(server.Close)

	adapter, err := New(Config{
		ID: "stream", URL: wsURL(server), Capabilities: types.CapabilitySet{stockQuote},
	})
	require.NoError(t, err)

	err = adapter.Connect(context.Background())
	require.Error(t, err)
	assert.True(t, errors.IsTransient(err))
	assert.False(t, adapter.IsConnected())
}

func TestFetch_SubscribesAndServesLatestTick(t *testing.T) {
	adapter := newConnected(t, feedServer(t))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	raw, err := adapter.Fetch(ctx, types.Query{
		Symbol: "AAPL", Asset: types.AssetStock, Data: types.DataRealtimeQuote,
	})
	require.NoError(t, err)
	require.Len(t, raw.Records, 1)
	assert.Equal(t, "AAPL", raw.Records[0]["symbol"])
	assert.Equal(t, 321.5, raw.Records[0]["price"])

	// Second fetch answers from the book without waiting.
	raw, err = adapter.Fetch(ctx, types.Query{
		Symbol: "AAPL", Asset: types.AssetStock, Data: types.DataRealtimeQuote,
	})
	require.NoError(t, err)
	require.Len(t, raw.Records, 1)
}

func TestFetch_RejectsKlineQueries(t *testing.T) {
	adapter := newConnected(t, feedServer(t))

	_, err := adapter.Fetch(context.Background(), types.Query{
		Symbol: "AAPL", Asset: types.AssetStock, Data: types.DataHistoricalKline, Freq: types.FreqDaily,
	})
	require.Error(t, err)
	assert.True(t, errors.IsInvalid(err))
}

func TestFetch_TimesOutWithoutTicks(t *testing.T) {
	// Server accepts subscribes but never sends ticks.
	upgrader := websocket.Upgrader{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer func() { _ = conn.Close() }()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	t.Cleanup(server.Close)

	adapter := newConnected(t, server)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	_, err := adapter.Fetch(ctx, types.Query{
		Symbol: "AAPL", Asset: types.AssetStock, Data: types.DataRealtimeQuote,
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrProviderTimeout))
}

func TestFetch_WithoutSession(t *testing.T) {
	adapter, err := New(Config{
		ID: "stream", URL: "ws://127.0.0.1:1", Capabilities: types.CapabilitySet{stockQuote},
	})
	require.NoError(t, err)

	_, err = adapter.Fetch(context.Background(), types.Query{
		Symbol: "AAPL", Asset: types.AssetStock, Data: types.DataRealtimeQuote,
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrNoConnection))
}

func TestHealthCheck(t *testing.T) {
	adapter := newConnected(t, feedServer(t))
	probe := adapter.HealthCheck(context.Background())
	assert.True(t, probe.OK)

	require.NoError(t, adapter.Disconnect())
	probe = adapter.HealthCheck(context.Background())
	assert.False(t, probe.OK)
}

func TestListAssets_ReturnsBookSymbols(t *testing.T) {
	adapter := newConnected(t, feedServer(t))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err := adapter.Fetch(ctx, types.Query{
		Symbol: "AAPL", Asset: types.AssetStock, Data: types.DataRealtimeQuote,
	})
	require.NoError(t, err)

	descriptors, err := adapter.ListAssets(context.Background(), types.AssetStock, "")
	require.NoError(t, err)
	require.Len(t, descriptors, 1)
	assert.Equal(t, "AAPL", descriptors[0].Symbol)
}
