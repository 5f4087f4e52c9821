package remote

import (
	"context"

	"task-sync/backend/internal/protocol"
)

// LocalExchange satisfies the engine's Exchange contract by invoking the
// authority in process. Used in single-process deployments where one
// binary plays both roles; the two sides still talk only through the
// wire types.
type LocalExchange struct {
	exchange *Exchange
}

func NewLocalExchange(exchange *Exchange) *LocalExchange {
	return &LocalExchange{exchange: exchange}
}

func (l *LocalExchange) SendBatch(ctx context.Context, req protocol.BatchRequest) (*protocol.BatchResponse, error) {
	resp := l.exchange.ProcessBatch(req)
	return &resp, nil
}

func (l *LocalExchange) Ping(ctx context.Context) error {
	return nil
}
