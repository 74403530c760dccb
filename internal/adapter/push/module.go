package push

import (
	"log/slog"

	"github.com/webitel/im-realtime-service/config"
	"go.uber.org/fx"
)

// New selects the configured provider and wraps it with the circuit breaker.
func New(cfg *config.Config, logger *slog.Logger) Gateway {
	var gw Gateway
	switch cfg.Push.Provider {
	case "http":
		gw = NewHTTPGateway(HTTPConfig{
			Endpoint: cfg.Push.Endpoint,
			APIKey:   cfg.Push.APIKey,
			MaxBatch: cfg.Push.MaxBatch,
			Timeout:  cfg.Push.Timeout,
		}, logger)
	default:
		gw = NewLogGateway(cfg.Push.MaxBatch, logger)
	}
	return NewBreakerGateway(gw, BreakerConfig{
		MaxFailures: cfg.Push.BreakerMaxFailures,
		OpenTimeout: cfg.Push.BreakerOpenTimeout,
	}, logger)
}

var Module = fx.Module("push",
	fx.Provide(New),
)
