package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/and161185/gnss-relay/internal/buildinfo"
	"github.com/and161185/gnss-relay/internal/config"
	"github.com/and161185/gnss-relay/internal/server"
	"github.com/and161185/gnss-relay/storage"
	"github.com/and161185/gnss-relay/storage/inmemory"
	"github.com/and161185/gnss-relay/storage/postgres"
)

var (
	buildVersion string
	buildDate    string
	buildCommit  string
)

func main() {
	buildinfo.BuildVersion, buildinfo.BuildDate, buildinfo.BuildCommit = buildVersion, buildDate, buildCommit
	buildinfo.PrintBuildInfo(os.Stdout, "collector")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM, syscall.SIGQUIT)
	defer stop()

	cfg, err := config.NewServerConfig()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	defer func() { _ = cfg.Logger.Sync() }()

	if err := run(ctx, cfg); err != nil {
		cfg.Logger.Fatal(err)
	}
}

func openStorage(ctx context.Context, cfg *config.ServerConfig) (storage.Storage, func(), error) {
	if cfg.DatabaseDsn == "" {
		return inmemory.NewMemStorage(cfg.StoreCapacity), func() {}, nil
	}
	pg, err := postgres.NewPostgresStorage(ctx, cfg.DatabaseDsn, cfg.Logger)
	if err != nil {
		return nil, nil, err
	}
	return pg, pg.Close, nil
}

func run(ctx context.Context, cfg *config.ServerConfig) error {
	st, closeStorage, err := openStorage(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStorage()

	cfg.Logger.Infow("collector config",
		"addr", cfg.Addr,
		"postgres", cfg.DatabaseDsn != "",
		"storeCapacity", cfg.StoreCapacity,
		"hashCheck", cfg.Key != "",
		"decrypt", cfg.CryptoKeyPath != "",
		"trustedSubnet", cfg.TrustedSubnet,
		"auth", cfg.AuthSecret != "",
	)

	srv, err := server.NewServer(st, cfg)
	if err != nil {
		return err
	}
	return srv.Run(ctx)
}
