package push

import (
	"context"
	"log/slog"
)

var _ Gateway = (*LogGateway)(nil)

// LogGateway accepts every token and only logs the request. It is the
// development provider.
type LogGateway struct {
	maxBatch int
	logger   *slog.Logger
}

func NewLogGateway(maxBatch int, logger *slog.Logger) *LogGateway {
	if maxBatch <= 0 {
		maxBatch = 500
	}
	return &LogGateway{maxBatch: maxBatch, logger: logger}
}

func (g *LogGateway) MaxBatch() int { return g.maxBatch }

func (g *LogGateway) SendBulk(ctx context.Context, req Request) ([]TokenOutcome, error) {
	g.logger.InfoContext(ctx, "PUSH_SENT",
		slog.Int("tokens", len(req.Tokens)),
		slog.String("title", req.Title),
		slog.String("priority", string(req.Priority)),
	)
	out := make([]TokenOutcome, len(req.Tokens))
	for i, tok := range req.Tokens {
		out[i] = TokenOutcome{Token: tok, Status: Success}
	}
	return out, nil
}
