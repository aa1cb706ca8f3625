package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/layer-3/zeroturbo/adapters/postgres"
	"github.com/layer-3/zeroturbo/adapters/verifier"
	"github.com/layer-3/zeroturbo/config"
	"github.com/layer-3/zeroturbo/logger"
	"github.com/layer-3/zeroturbo/service"
	"github.com/layer-3/zeroturbo/transport/http"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.LoadAPI()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	log := logger.New(cfg.Log.ForStage(cfg.Stage))
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Fatal("api stopped", zap.Error(err))
	}
}

func run(ctx context.Context, cfg *config.API, log *zap.Logger) error {
	db, err := postgres.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close()

	jwks, err := verifier.NewJWKSVerifier(ctx, cfg.AuthURL)
	if err != nil {
		return err
	}

	router := http.SetupAPIRouter(
		service.NewAccountService(postgres.NewAccountRepository(db)),
		jwks,
		[]string{cfg.FrontendURL},
		log,
	)
	return http.Serve(ctx, cfg.Addr, router, log)
}
