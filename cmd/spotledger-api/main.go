// README: Entry point; loads config, wires stores and services, serves the HTTP API until SIGINT/SIGTERM.
package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/gin-gonic/gin"

	"spotledger/internal/clock"
	"spotledger/internal/config"
	httptransport "spotledger/internal/http"
	"spotledger/internal/infra"
	"spotledger/internal/modules/account"
	"spotledger/internal/modules/booking"
	"spotledger/internal/modules/location"
	"spotledger/internal/modules/pricing"
	"spotledger/internal/modules/space"
	"spotledger/migrations"
)

const serviceName = "spotledger-api"

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger := infra.NewLogger(cfg.Log.Level)
	slog.SetDefault(logger)

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("spotledger-api stopped", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	shutdownTracer, err := infra.InitTracer(ctx, serviceName, cfg.OTLP.Endpoint)
	if err != nil {
		return err
	}
	defer func() { _ = shutdownTracer(context.Background()) }()

	verifier, err := newVerifier(ctx, cfg.Auth)
	if err != nil {
		return err
	}

	dbPool, err := infra.NewDB(ctx, cfg.DB.DSN)
	if err != nil {
		return err
	}
	defer dbPool.Close()

	if err := migrations.Apply(ctx, dbPool); err != nil {
		return err
	}

	pricingSvc, err := pricing.NewService(cfg.Pricing)
	if err != nil {
		return err
	}

	spaceDeps := space.Deps{
		Repo:           space.NewStore(dbPool, cfg.Pricing.Currency),
		Clock:          clock.NewSystem(),
		Log:            logger.With(slog.String("module", "space")),
		NearbyRadiusKm: cfg.Search.NearbyRadiusKm,
		Currency:       cfg.Pricing.Currency,
	}
	if redisClient := infra.NewRedis(cfg.Redis.Addr); redisClient != nil {
		defer redisClient.Close()
		spaceDeps.Geo = location.NewGeoIndex(redisClient)
	}
	if cfg.Maps.APIKey != "" {
		geocoder, err := location.NewMapsGeocoder(cfg.Maps.APIKey, cfg.Maps.Region)
		if err != nil {
			return err
		}
		spaceDeps.Geocoder = geocoder
	}
	spaceSvc := space.NewService(spaceDeps)
	if n, err := spaceSvc.RebuildGeoIndex(ctx); err != nil {
		logger.Warn("geo index rebuild failed", slog.String("error", err.Error()))
	} else if spaceDeps.Geo != nil {
		logger.Info("geo index rebuilt", slog.Int("spaces", n))
	}

	accountSvc := account.NewService(account.NewStore(dbPool, cfg.Pricing.Currency))

	bookingDeps := booking.Deps{
		Repo:      booking.NewStore(dbPool, cfg.Pricing.Currency),
		Pricing:   pricingSvc,
		Spaces:    spaceSvc,
		Accounts:  accountSvc,
		Clock:     clock.NewSystem(),
		Log:       logger.With(slog.String("module", "booking")),
		OpTimeout: cfg.OpTimeout,
	}
	if cfg.AMQP.URL != "" {
		publisher, err := infra.NewPublisher(cfg.AMQP.URL, cfg.AMQP.Exchange)
		if err != nil {
			return err
		}
		defer publisher.Close()
		bookingDeps.Publisher = publisher
	}
	bookingSvc := booking.NewService(bookingDeps)

	if !strings.EqualFold(cfg.Log.Level, "DEBUG") {
		gin.SetMode(gin.ReleaseMode)
	}
	router := httptransport.NewRouter(httptransport.RouterDeps{
		Verifier:       verifier,
		Accounts:       accountSvc,
		Spaces:         spaceSvc,
		Bookings:       bookingSvc,
		CommissionRate: pricingSvc.CommissionRate(),
		Currency:       cfg.Pricing.Currency,
		Log:            logger,
	})

	return httptransport.NewServer(cfg.HTTP.Addr, router, logger).Run(ctx)
}

func newVerifier(ctx context.Context, cfg config.AuthConfig) (infra.TokenVerifier, error) {
	switch cfg.Mode {
	case "firebase":
		v, err := infra.NewFirebaseVerifier(ctx, cfg.FirebaseProjectID, cfg.FirebaseCredentialsFile)
		if err != nil {
			return nil, fmt.Errorf("firebase init: %w", err)
		}
		return v, nil
	case "jwt":
		return infra.NewJWTVerifier(cfg.JWTSecret), nil
	default:
		return nil, fmt.Errorf("unknown auth mode %q", cfg.Mode)
	}
}
