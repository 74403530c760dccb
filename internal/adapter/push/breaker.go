package push

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sony/gobreaker"
	"github.com/webitel/im-realtime-service/internal/domain/model"
)

var _ Gateway = (*BreakerGateway)(nil)

type BreakerConfig struct {
	MaxFailures uint32
	OpenTimeout time.Duration
}

// BreakerGateway stops calling a failing provider for OpenTimeout after
// MaxFailures consecutive call-level errors. Calls rejected by an open
// breaker are reported as transient.
type BreakerGateway struct {
	next Gateway
	cb   *gobreaker.CircuitBreaker
}

func NewBreakerGateway(next Gateway, cfg BreakerConfig, logger *slog.Logger) *BreakerGateway {
	maxFailures := cfg.MaxFailures
	if maxFailures == 0 {
		maxFailures = 5
	}
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "push-gateway",
		MaxRequests: 1,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= maxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("CIRCUIT_BREAKER_STATE",
				slog.String("breaker", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()),
			)
		},
	})
	return &BreakerGateway{next: next, cb: cb}
}

func (b *BreakerGateway) MaxBatch() int { return b.next.MaxBatch() }

func (b *BreakerGateway) SendBulk(ctx context.Context, req Request) ([]TokenOutcome, error) {
	res, err := b.cb.Execute(func() (interface{}, error) {
		return b.next.SendBulk(ctx, req)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, fmt.Errorf("push gateway: %v: %w", err, model.ErrTransientDelivery)
	}
	if err != nil {
		return nil, err
	}
	out, _ := res.([]TokenOutcome)
	return out, nil
}

// State exposes the breaker state for stats surfaces.
func (b *BreakerGateway) State() string { return b.cb.State().String() }
