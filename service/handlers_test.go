package service

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/segmentio/encoding/json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/quantdata/engine"
	"github.com/c360/quantdata/provider"
	"github.com/c360/quantdata/router"
	"github.com/c360/quantdata/testutil"
	"github.com/c360/quantdata/types"
)

func newTestService(t *testing.T) (*Service, *testutil.FakeAdapter) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	cfg := engine.DefaultConfig()
	cfg.Strategy = router.StrategyPriority
	eng, err := engine.New(context.Background(), cfg, logger, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = eng.Close() })

	fake := testutil.NewFakeAdapter("alpha",
		types.Capability{Asset: types.AssetStock, Data: types.DataHistoricalKline})
	fake.FetchFunc = func(context.Context, types.Query) (*provider.RawResult, error) {
		return &provider.RawResult{Records: testutil.KlineRecords(5, time.Now())}, nil
	}
	require.NoError(t, eng.RegisterProvider(context.Background(), fake, 1))

	return New(Config{}, eng, nil, nil, logger), fake
}

func marshalQuery(t *testing.T, query types.Query) []byte {
	t.Helper()
	data, err := json.Marshal(query)
	require.NoError(t, err)
	return data
}

func testQuery(symbol string) types.Query {
	return types.Query{
		Symbol: symbol,
		Asset:  types.AssetStock,
		Data:   types.DataHistoricalKline,
		Freq:   types.FreqDaily,
		Count:  5,
	}
}

func TestHandleQuery(t *testing.T) {
	svc, _ := newTestService(t)

	raw := svc.handleQuery(context.Background(), marshalQuery(t, testQuery("AAPL")))

	var reply queryReply
	require.NoError(t, json.Unmarshal(raw, &reply))
	require.True(t, reply.OK)
	require.NotNil(t, reply.Result)
	assert.Len(t, reply.Result.Bars, 5)
	assert.Equal(t, "alpha", reply.Result.Source.Provider)
	assert.Nil(t, reply.Error)
}

func TestHandleQuery_MalformedBody(t *testing.T) {
	svc, _ := newTestService(t)

	raw := svc.handleQuery(context.Background(), []byte("{not json"))

	var reply queryReply
	require.NoError(t, json.Unmarshal(raw, &reply))
	assert.False(t, reply.OK)
	require.NotNil(t, reply.Error)
	assert.Equal(t, "invalid", reply.Error.Class)
}

func TestHandleQuery_InvalidQuery(t *testing.T) {
	svc, _ := newTestService(t)

	raw := svc.handleQuery(context.Background(), marshalQuery(t, types.Query{Asset: types.AssetStock}))

	var reply queryReply
	require.NoError(t, json.Unmarshal(raw, &reply))
	assert.False(t, reply.OK)
	require.NotNil(t, reply.Error)
	assert.Equal(t, "invalid", reply.Error.Class)
}

func TestHandleBatch(t *testing.T) {
	svc, _ := newTestService(t)

	queries := []types.Query{testQuery("AAPL"), {Symbol: "BAD"}, testQuery("MSFT")}
	data, err := json.Marshal(queries)
	require.NoError(t, err)

	raw := svc.handleBatch(context.Background(), data)

	var reply batchReply
	require.NoError(t, json.Unmarshal(raw, &reply))
	require.True(t, reply.OK)
	require.Len(t, reply.Items, 3)

	assert.NotNil(t, reply.Items[0].Result)
	assert.Nil(t, reply.Items[0].Error)
	assert.Nil(t, reply.Items[1].Result)
	require.NotNil(t, reply.Items[1].Error)
	assert.NotNil(t, reply.Items[2].Result)
	assert.Equal(t, "MSFT", reply.Items[2].Query.Symbol)
}

func TestHandleProviders(t *testing.T) {
	svc, _ := newTestService(t)

	raw := svc.handleProviders(context.Background(), nil)

	var reply providersReply
	require.NoError(t, json.Unmarshal(raw, &reply))
	require.True(t, reply.OK)
	require.Len(t, reply.Providers, 1)
	assert.Equal(t, "alpha", reply.Providers[0].ID)
}

func TestHandleProviderMetrics(t *testing.T) {
	svc, _ := newTestService(t)

	_ = svc.handleQuery(context.Background(), marshalQuery(t, testQuery("AAPL")))
	raw := svc.handleProviderMetrics(context.Background(), nil)

	var reply metricsReply
	require.NoError(t, json.Unmarshal(raw, &reply))
	require.True(t, reply.OK)
	require.Len(t, reply.Metrics, 1)
	assert.Equal(t, "alpha", reply.Metrics[0].Provider)
	assert.Equal(t, int64(1), reply.Metrics[0].Success)
}

func TestHandleHealth_WithoutWatcher(t *testing.T) {
	svc, _ := newTestService(t)

	raw := svc.handleHealth(context.Background(), nil)

	var reply healthReply
	require.NoError(t, json.Unmarshal(raw, &reply))
	require.True(t, reply.OK)
	assert.Equal(t, "healthy", reply.Status.Status)
}

func TestHandleInvalidate(t *testing.T) {
	svc, fake := newTestService(t)
	query := testQuery("AAPL")

	_ = svc.handleQuery(context.Background(), marshalQuery(t, query))
	require.Equal(t, int64(1), fake.FetchCalls())

	raw := svc.handleInvalidate(context.Background(), marshalQuery(t, query))
	var ack ackReply
	require.NoError(t, json.Unmarshal(raw, &ack))
	require.True(t, ack.OK)

	_ = svc.handleQuery(context.Background(), marshalQuery(t, query))
	assert.Equal(t, int64(2), fake.FetchCalls())
}

func TestSubjects(t *testing.T) {
	svc, _ := newTestService(t)
	subjects := svc.Subjects()
	assert.Contains(t, subjects, "quantdata.query")
	assert.Contains(t, subjects, "quantdata.health")
	assert.Len(t, subjects, 6)
}
