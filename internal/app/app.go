// Package app wires the storage, cache, geo and HTTP layers together and
// manages the server lifecycle.
package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"github.com/go-chi/httplog/v2"
	goredis "github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	myhttp "github.com/trimlink/trimlink/internal/api/http"
	"github.com/trimlink/trimlink/internal/auth"
	"github.com/trimlink/trimlink/internal/config"
	dbpostgres "github.com/trimlink/trimlink/internal/database/postgres"
	dbredis "github.com/trimlink/trimlink/internal/database/redis"
	"github.com/trimlink/trimlink/internal/service"
	"github.com/trimlink/trimlink/pkg/geo"
	"github.com/trimlink/trimlink/pkg/postgres"
)

func Run(ctx context.Context, cfg *config.Config) error {
	const op = "app.Run"

	logger := httplog.NewLogger("trimlink", httplog.Options{
		JSON:    cfg.Env == config.EnvProd,
		Concise: cfg.Env != config.EnvProd,
	})

	db, err := postgres.New(
		ctx,
		cfg.Postgres.DSN(),
		postgres.WithConnMaxIdleTime(cfg.Postgres.ConnMaxIdleTime),
		postgres.WithConnMaxLifetime(cfg.Postgres.ConnMaxLifetime),
		postgres.WithMaxIdleConns(cfg.Postgres.MaxIdleConns),
		postgres.WithMaxOpenConns(cfg.Postgres.MaxOpenConns),
	)
	if err != nil {
		return fmt.Errorf("%s: failed to connect to database: %w", op, err)
	}
	defer db.Close()

	if err := postgres.RunMigrations("file://migrations", cfg.Postgres.DSN()); err != nil {
		return fmt.Errorf("%s: failed to run migrations: %w", op, err)
	}

	urlRepo := dbpostgres.NewURLRepository(db)

	opts := []service.Option{
		service.WithLogger(logger.Logger),
		service.WithShortCodeLength(cfg.ShortCodeLength),
		service.WithDefaultExpiryDays(cfg.DefaultExpiryDays),
		service.WithFallbackCountry(cfg.FallbackCountry),
	}

	if cfg.Redis.Addr != "" {
		client := goredis.NewClient(&goredis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer client.Close()

		if err := client.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("%s: failed to connect to redis: %w", op, err)
		}

		opts = append(opts, service.WithCache(dbredis.NewURLCache(client, cfg.Redis.TTL)))
	}

	if cfg.GeoIP.DBPath != "" {
		resolver, err := geo.OpenMaxMind(cfg.GeoIP.DBPath)
		if err != nil {
			return fmt.Errorf("%s: failed to open geoip database: %w", op, err)
		}
		defer resolver.Close()

		opts = append(opts, service.WithGeoResolver(resolver))
	} else {
		opts = append(opts, service.WithGeoResolver(geo.Static{Code: cfg.FallbackCountry}))
	}

	urlSvc := service.NewURLService(urlRepo, opts...)
	tokens := auth.NewTokenService(cfg.Auth.Secret, cfg.Auth.TokenTTL)

	server := &http.Server{
		Addr:           cfg.HTTPServer.Addr(),
		Handler:        myhttp.NewRouter(logger, urlSvc, tokens, cfg.BaseURL),
		ReadTimeout:    cfg.HTTPServer.ReadTimeout,
		WriteTimeout:   cfg.HTTPServer.WriteTimeout,
		IdleTimeout:    cfg.HTTPServer.IdleTimeout,
		MaxHeaderBytes: cfg.HTTPServer.MaxHeaderBytes,
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		var err error

		switch cfg.Env {
		case config.EnvProd:
			err = server.ListenAndServeTLS(cfg.HTTPServer.CertFile, cfg.HTTPServer.KeyFile)
		default:
			err = server.ListenAndServe()
		}

		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("%s: server error occurred: %w", op, err)
		}

		return nil
	})

	g.Go(func() error {
		<-ctx.Done()

		if err := server.Shutdown(context.Background()); err != nil {
			return fmt.Errorf("%s: failed to shutdown server: %w", op, err)
		}

		return nil
	})

	return g.Wait()
}
