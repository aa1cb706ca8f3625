package main

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-redisstream/pkg/redisstream"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/layer-3/zeroturbo/adapters/events"
	"github.com/layer-3/zeroturbo/adapters/mailer"
	"github.com/layer-3/zeroturbo/adapters/postgres"
	"github.com/layer-3/zeroturbo/adapters/store"
	"github.com/layer-3/zeroturbo/adapters/tokenizer"
	"github.com/layer-3/zeroturbo/config"
	"github.com/layer-3/zeroturbo/logger"
	"github.com/layer-3/zeroturbo/ports"
	"github.com/layer-3/zeroturbo/service"
	"github.com/layer-3/zeroturbo/transport/http"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.LoadIssuer()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	log := logger.New(cfg.Log.ForStage(cfg.Stage))
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Fatal("issuer stopped", zap.Error(err))
	}
}

func run(ctx context.Context, cfg *config.Issuer, log *zap.Logger) error {
	db, err := postgres.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := postgres.Migrate(db); err != nil {
		return err
	}

	signKey, keyID, err := signingKey(cfg.PrivateJWK, log)
	if err != nil {
		return err
	}
	tok := tokenizer.NewJWTTokenizer(signKey, keyID, cfg.URL)

	var (
		tokenStore ports.Store
		grantStore ports.GrantStore
		publisher  message.Publisher
	)

	wmLogger := watermill.NewStdLogger(false, false)
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("failed to parse redis url: %w", err)
		}
		redisClient := redis.NewClient(opts)
		defer redisClient.Close()

		redisStore := store.NewRedisStore(redisClient)
		tokenStore, grantStore = redisStore, redisStore

		publisher, err = redisstream.NewPublisher(redisstream.PublisherConfig{Client: redisClient}, wmLogger)
		if err != nil {
			return fmt.Errorf("failed to create redis publisher: %w", err)
		}
	} else {
		// Sessions do not survive restarts and can not be shared between replicas
		log.Warn("REDIS_URL is not set, using in-memory stores")
		memoryStore := store.NewMemoryStore()
		tokenStore, grantStore = memoryStore, memoryStore
		publisher = gochannel.NewGoChannel(gochannel.Config{}, wmLogger)
	}
	defer publisher.Close()

	var pinMailer ports.Mailer
	switch cfg.EmailProvider {
	case "ses":
		pinMailer, err = mailer.NewSESMailer(ctx, cfg.EmailSender)
		if err != nil {
			return err
		}
	default:
		pinMailer = mailer.NewLogMailer(log)
	}

	issuer := service.NewIssuerService(
		tok,
		tokenStore,
		grantStore,
		postgres.NewAccountRepository(db),
		pinMailer,
		events.NewWatermillPublisher(publisher),
		log,
		service.IssuerOptions{
			RedirectOrigins: []string{cfg.FrontendURL},
			ClientIDs:       cfg.ClientIDs,
			AccessTTL:       cfg.AccessTTL,
			RefreshTTL:      cfg.RefreshTTL,
			RequestTTL:      cfg.RequestTTL,
			CodeTTL:         cfg.CodeTTL,
		},
	)

	router := http.SetupIssuerRouter(issuer, tok, cfg.URL, log)
	return http.Serve(ctx, cfg.Addr, router, log)
}

// signingKey loads the configured JWK or generates a key that lives as long as the process
func signingKey(privateJWK string, log *zap.Logger) (*ecdsa.PrivateKey, string, error) {
	if privateJWK != "" {
		return tokenizer.ParseSigningKey([]byte(privateJWK))
	}

	log.Warn("ISSUER_PRIVATE_JWK is not set, generating an ephemeral signing key")
	return tokenizer.GenerateSigningKey()
}
