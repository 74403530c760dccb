package auth

import (
	"github.com/webitel/im-realtime-service/config"
	"go.uber.org/fx"
)

var Module = fx.Module("auth",
	fx.Provide(func(cfg *config.Config) (*Authenticator, error) {
		return NewAuthenticator(Config{
			Secret:   []byte(cfg.Auth.Secret),
			Issuer:   cfg.Auth.Issuer,
			Audience: cfg.Auth.Audience,
		})
	}),
)
