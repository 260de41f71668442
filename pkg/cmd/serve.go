package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/apoxy-dev/shorty/build"
	"github.com/apoxy-dev/shorty/config"
	"github.com/apoxy-dev/shorty/pkg/log"
	"github.com/apoxy-dev/shorty/pkg/server"
	"github.com/apoxy-dev/shorty/pkg/shortener"
	"github.com/apoxy-dev/shorty/pkg/store"
)

var listenPort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the URL shortener server",
	Long: `Run the URL shortener server until interrupted.

The app password is reloaded when the config file changes. Other settings
require a restart.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if listenPort != 0 {
			cfg.Port = listenPort
		}
		return runServer(cmd.Context(), cfg)
	},
}

func init() {
	serveCmd.Flags().IntVarP(&listenPort, "listen-port", "p", 0, "Port to listen on (overrides the config file).")
	rootCmd.AddCommand(serveCmd)
}

func newShortener(st store.Store, cfg *config.Config) *shortener.Shortener {
	return shortener.New(st, cfg.AppPassword,
		shortener.WithKeyLength(cfg.KeyLength),
		shortener.WithMaxKeyAttempts(cfg.MaxKeyAttempts),
		shortener.WithReservedKeys(shortener.ReservedKeys()...),
	)
}

func runServer(ctx context.Context, cfg *config.Config) error {
	if cfg.SentryDSN != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:         cfg.SentryDSN,
			Release:     build.BuildVersion,
			Debug:       cfg.Verbose,
			DebugWriter: log.NewDefaultLogWriter(log.DebugLevel),
		}); err != nil {
			return fmt.Errorf("failed to initialize sentry: %w", err)
		}
		defer sentry.Flush(5 * time.Second)
	}

	if cfg.AppPassword == config.DefaultAppPassword {
		log.Warnf("The app password is still the default one, change app_password in %s!", config.ConfigFile)
	}

	st, err := store.Open(ctx, cfg.StoreOptions())
	if err != nil {
		return fmt.Errorf("failed to open %s store: %w", cfg.Store.Driver, err)
	}
	defer func() {
		if err := st.Close(); err != nil {
			log.Errorf("failed to close store: %v", err)
		}
	}()

	sh := newShortener(st, cfg)
	router, err := shortener.NewRouter(st, sh)
	if err != nil {
		return fmt.Errorf("failed to build routes: %w", err)
	}

	srv := &server.Server{
		Addr:           fmt.Sprintf(":%d", cfg.Port),
		Handler:        router,
		MaxRequestSize: cfg.MaxRequestSize,
		ReadTimeout:    cfg.ReadTimeout,
		WriteTimeout:   cfg.WriteTimeout,
	}
	slog.Info("Starting server",
		slog.String("server", build.ServerName()),
		slog.String("addr", srv.Addr),
		slog.String("store", cfg.Store.Driver))

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.ListenAndServe(ctx)
	})
	if _, err := os.Stat(config.ConfigFile); err == nil {
		g.Go(func() error {
			current := *cfg
			return config.Watch(ctx, config.ConfigFile, func(next *config.Config) {
				if listenPort != 0 {
					next.Port = listenPort
				}
				applyReload(&current, next, sh)
			})
		})
	} else if !errors.Is(err, os.ErrNotExist) {
		log.Warnf("Not watching config file: %v", err)
	}

	return g.Wait()
}

// applyReload swaps the password of sh if it changed between cur and next.
// Everything else only takes effect after a restart.
func applyReload(cur, next *config.Config, sh *shortener.Shortener) {
	if next.AppPassword != cur.AppPassword {
		sh.SetPassword(next.AppPassword)
		cur.AppPassword = next.AppPassword
		slog.Info("App password updated")
	}
	if *next != *cur {
		slog.Warn("Config changed, restart shorty to apply settings other than app_password")
	}
}
