package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/urfave/cli/v2"
	"github.com/webitel/im-realtime-service/config"
	"github.com/webitel/im-realtime-service/internal/adapter/auth"
	"github.com/webitel/im-realtime-service/internal/domain/model"
)

const (
	ServiceName      = "im-realtime-service"
	ServiceNamespace = "webitel"
)

var (
	version        = "0.0.0"
	commit         = "hash"
	commitDate     = time.Now().String()
	branch         = "branch"
	buildTimestamp = ""
)

func Run() error {
	app := &cli.App{
		Name:    ServiceName,
		Usage:   "Real-time presence, messaging and notification hub",
		Version: fmt.Sprintf("%s (%s@%s, %s) %s", version, branch, commit, commitDate, buildTimestamp),
		Commands: []*cli.Command{
			serverCmd(),
			topCmd(),
			tokenCmd(),
		},
	}

	return app.Run(os.Args)
}

func configFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "config_file",
		Aliases: []string{"c"},
		Usage:   "Path to the configuration file",
		EnvVars: []string{"IM_CONFIG_FILE"},
	}
}

func serverCmd() *cli.Command {
	return &cli.Command{
		Name:      "server",
		Aliases:   []string{"s"},
		Usage:     "Run the websocket and HTTP server",
		ArgsUsage: "[-- --http.addr=:8080 --log.level=debug ...]",
		Flags:     []cli.Flag{configFlag()},
		Action: func(c *cli.Context) error {
			cfg, err := config.LoadConfig(c.String("config_file"), c.Args().Slice())
			if err != nil {
				return err
			}
			app := NewApp(cfg)

			if err := app.Start(c.Context); err != nil {
				return err
			}

			stop := make(chan os.Signal, 1)
			signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
			<-stop

			slog.Info("Shutting down...")
			ctx, cancel := context.WithTimeout(context.Background(), app.StopTimeout())
			defer cancel()
			return app.Stop(ctx)
		},
	}
}

// tokenCmd signs a development token with the configured secret.
func tokenCmd() *cli.Command {
	return &cli.Command{
		Name:  "token",
		Usage: "Issue a development bearer token",
		Flags: []cli.Flag{
			configFlag(),
			&cli.StringFlag{Name: "user", Usage: "Identity (uuid); random when empty"},
			&cli.StringFlag{Name: "username", Value: "dev"},
			&cli.StringSliceFlag{Name: "role", Usage: "Role claim, repeatable"},
			&cli.DurationFlag{Name: "ttl", Value: 24 * time.Hour},
		},
		Action: func(c *cli.Context) error {
			cfg, err := config.LoadConfig(c.String("config_file"), nil)
			if err != nil {
				return err
			}
			authn, err := auth.NewAuthenticator(auth.Config{
				Secret:   []byte(cfg.Auth.Secret),
				Issuer:   cfg.Auth.Issuer,
				Audience: cfg.Auth.Audience,
			})
			if err != nil {
				return err
			}

			id := uuid.New()
			if s := c.String("user"); s != "" {
				if id, err = uuid.Parse(s); err != nil {
					return fmt.Errorf("user: %w", err)
				}
			}
			tok, err := authn.Issue(model.Principal{
				UserID:   id,
				Username: c.String("username"),
				Roles:    c.StringSlice("role"),
			}, c.Duration("ttl"))
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(c.App.Writer, tok)
			return err
		},
	}
}
