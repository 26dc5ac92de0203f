package service

import (
	"context"

	"github.com/segmentio/encoding/json"

	"github.com/c360/quantdata/errors"
	"github.com/c360/quantdata/health"
	"github.com/c360/quantdata/metric"
	"github.com/c360/quantdata/provider"
	"github.com/c360/quantdata/types"
)

// errorBody is the wire shape of a failed operation.
type errorBody struct {
	Message string `json:"message"`
	Class   string `json:"class"`
}

func toErrorBody(err error) *errorBody {
	return &errorBody{
		Message: err.Error(),
		Class:   errors.Classify(err).String(),
	}
}

type queryReply struct {
	OK     bool          `json:"ok"`
	Result *types.Result `json:"result,omitempty"`
	Error  *errorBody    `json:"error,omitempty"`
}

type batchItemReply struct {
	Query  types.Query   `json:"query"`
	Result *types.Result `json:"result,omitempty"`
	Error  *errorBody    `json:"error,omitempty"`
}

type batchReply struct {
	OK    bool             `json:"ok"`
	Items []batchItemReply `json:"items,omitempty"`
	Error *errorBody       `json:"error,omitempty"`
}

type providersReply struct {
	OK        bool            `json:"ok"`
	Providers []provider.Info `json:"providers"`
}

type metricsReply struct {
	OK      bool              `json:"ok"`
	Metrics []metric.Snapshot `json:"metrics"`
}

type healthReply struct {
	OK     bool          `json:"ok"`
	Status health.Status `json:"status"`
}

type ackReply struct {
	OK    bool       `json:"ok"`
	Error *errorBody `json:"error,omitempty"`
}

func (s *Service) handleQuery(ctx context.Context, data []byte) []byte {
	var query types.Query
	if err := json.Unmarshal(data, &query); err != nil {
		return s.marshal(queryReply{Error: toErrorBody(
			errors.WrapInvalid(err, "Service", "handleQuery", "decode query"))})
	}

	result, err := s.engine.Resolve(ctx, query)
	if err != nil {
		return s.marshal(queryReply{Error: toErrorBody(err)})
	}
	return s.marshal(queryReply{OK: true, Result: result})
}

func (s *Service) handleBatch(ctx context.Context, data []byte) []byte {
	var queries []types.Query
	if err := json.Unmarshal(data, &queries); err != nil {
		return s.marshal(batchReply{Error: toErrorBody(
			errors.WrapInvalid(err, "Service", "handleBatch", "decode queries"))})
	}

	items := s.engine.ResolveBatch(ctx, queries)
	reply := batchReply{OK: true, Items: make([]batchItemReply, len(items))}
	for i, item := range items {
		reply.Items[i] = batchItemReply{Query: item.Query, Result: item.Result}
		if item.Err != nil {
			reply.Items[i].Error = toErrorBody(item.Err)
		}
	}
	return s.marshal(reply)
}

func (s *Service) handleProviders(_ context.Context, _ []byte) []byte {
	return s.marshal(providersReply{OK: true, Providers: s.engine.Registry().All()})
}

func (s *Service) handleProviderMetrics(_ context.Context, _ []byte) []byte {
	return s.marshal(metricsReply{OK: true, Metrics: s.engine.ProviderMetrics()})
}

func (s *Service) handleHealth(_ context.Context, _ []byte) []byte {
	var status health.Status
	if s.watcher != nil {
		status = s.watcher.Monitor().AggregateHealth("engine")
	} else if len(s.engine.Registry().All()) > 0 {
		status = health.NewHealthy("engine", "providers registered, no watcher running")
	} else {
		status = health.NewDegraded("engine", "no providers registered")
	}
	return s.marshal(healthReply{OK: true, Status: status})
}

func (s *Service) handleInvalidate(_ context.Context, data []byte) []byte {
	var query types.Query
	if err := json.Unmarshal(data, &query); err != nil {
		return s.marshal(ackReply{Error: toErrorBody(
			errors.WrapInvalid(err, "Service", "handleInvalidate", "decode query"))})
	}
	if err := query.Validate(); err != nil {
		return s.marshal(ackReply{Error: toErrorBody(err)})
	}

	s.engine.InvalidateCache(query)
	return s.marshal(ackReply{OK: true})
}

// marshal encodes a reply, falling back to a static error body when the
// reply itself cannot encode.
func (s *Service) marshal(v any) []byte {
	data, err := json.Marshal(v)
	if err != nil {
		s.logger.Error("reply encode failed", "error", err)
		return []byte(`{"ok":false,"error":{"message":"reply encoding failed","class":"fatal"}}`)
	}
	return data
}
