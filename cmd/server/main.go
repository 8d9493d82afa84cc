package main // Entry point package

import (
	"log"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"

	"github.com/rettibot/bts-backend/internal/config"
	"github.com/rettibot/bts-backend/internal/handler"
	"github.com/rettibot/bts-backend/internal/linksign"
	"github.com/rettibot/bts-backend/internal/lock"
	"github.com/rettibot/bts-backend/internal/middleware"
	"github.com/rettibot/bts-backend/internal/notify"
	"github.com/rettibot/bts-backend/internal/payment"
	"github.com/rettibot/bts-backend/internal/queue"
	"github.com/rettibot/bts-backend/internal/router"
	"github.com/rettibot/bts-backend/internal/service"
	"github.com/rettibot/bts-backend/internal/store"
)

func main() {
	// .env is a development convenience; in production everything comes
	// from real environment variables.
	if err := godotenv.Load(); err == nil {
		log.Println("loaded configuration from .env")
	}
	cfg := config.Load()

	purchases := store.NewAirtable(cfg.AirtableAPIKey, cfg.AirtableBaseID, cfg.AirtableTable)
	locker := lock.New(purchases, lock.Config{
		RetryDelay:     cfg.Lock.RetryDelay,
		HoldTime:       cfg.Lock.HoldTime,
		AcquireTimeout: cfg.Lock.AcquireTimeout,
	})

	var stripeClient *payment.StripeClient
	if cfg.StripeSecretKey != "" {
		stripeClient = payment.NewStripeClient(cfg.StripeSecretKey)
	}
	var nowClient *payment.NOWPaymentsClient
	if cfg.NOWPaymentsAPIKey != "" {
		nowClient = payment.NewNOWPaymentsClient(cfg.NOWPaymentsAPIKey)
	}
	var flouciClient *payment.FlouciClient
	if cfg.FlouciAppToken != "" {
		flouciClient = payment.NewFlouciClient(cfg.FlouciAppToken, cfg.FlouciAppSecret)
	}

	verifiers := map[string]payment.Verifier{}
	if stripeClient != nil {
		verifiers["stripe"] = stripeClient
	}
	if nowClient != nil {
		verifiers["nowpayments"] = nowClient
	}

	var signer linksign.Signer
	if cfg.B2Endpoint != "" {
		s, err := linksign.NewB2Signer(cfg.B2Endpoint, cfg.B2KeyID, cfg.B2AppKey, cfg.B2Bucket)
		if err != nil {
			log.Fatalf("link signer: %v", err)
		}
		signer = s
	} else {
		log.Println("B2_ENDPOINT not set; downloads will fail until the bucket is configured")
	}

	var notifier notify.Notifier
	if cfg.ResendAPIKey != "" {
		notifier = notify.NewResendNotifier(cfg.ResendAPIKey, cfg.EmailFrom)
	}

	svc := service.New(service.Config{
		JWTSecret:        cfg.JWTSecret,
		NormalTokenTTL:   cfg.NormalTokenTTL,
		RescueTokenTTL:   cfg.RescueTokenTTL,
		LinkTTL:          cfg.LinkTTL,
		InitialDownloads: cfg.DownloadGrant,
		SiteURL:          cfg.SiteURL,
		StreamURL:        cfg.StreamURL,
	}, purchases, locker, verifiers, signer, notifier, queue.NewPublisher())

	// Audit-log consumer; reconnects forever on its own.
	go func() {
		if err := queue.StartEntitlementConsumer(); err != nil {
			log.Printf("entitlement consumer stopped: %v", err)
		}
	}()

	rdb := config.NewRedisClient()
	rateLimit := middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb)

	e := echo.New()
	router.RegisterRoutes(e, router.Handlers{
		Entitlement: handler.NewEntitlementHandler(svc),
		Checkout:    handler.NewCheckoutHandler(stripeClient, nowClient, flouciClient, cfg.SiteURL),
		Reservation: handler.NewReservationHandler(svc),
		Webhook:     handler.NewWebhookHandler(cfg.NOWPaymentsIPNSecret),
	}, rateLimit)

	addr := ":" + cfg.Port
	log.Printf("listening on %s (env=%s)", addr, cfg.Env)

	if err := e.Start(addr); err != nil {
		log.Fatal(err)
	}
}
