package config // package config loads application configuration from environment variables

import (
	"log"
	"os"
	"strconv"
	"time"
)

// Config holds all runtime configuration values. Each field corresponds to
// an environment variable. Secrets the service cannot run without are
// enforced by must(); provider credentials are optional so that local
// development with the in-memory store needs no accounts.
type Config struct {
	Env  string // application environment (e.g. "dev", "prod")
	Port string // HTTP port to listen on

	JWTSecret      string        // secret used to sign access tokens
	NormalTokenTTL time.Duration // lifetime of payment-issued tokens
	RescueTokenTTL time.Duration // lifetime of backup-issued tokens
	LinkTTL        time.Duration // validity of a signed download URL
	DownloadGrant  int           // downloads granted on record creation

	AirtableAPIKey string // record store credentials
	AirtableBaseID string
	AirtableTable  string

	StripeSecretKey      string
	NOWPaymentsAPIKey    string
	NOWPaymentsIPNSecret string
	FlouciAppToken       string
	FlouciAppSecret      string

	ResendAPIKey string
	EmailFrom    string // sender shown on outbound mail

	B2Endpoint string // S3-compatible endpoint host for the release bucket
	B2KeyID    string
	B2AppKey   string
	B2Bucket   string

	SiteURL   string // public storefront URL used in emails and redirects
	StreamURL string // secure player URL reported by the status endpoint

	Lock LockConfig
}

// LockConfig holds the download-lock timings. The hold time must exceed
// the longest critical section; the acquire timeout stays below the hold
// time on purpose.
type LockConfig struct {
	RetryDelay     time.Duration
	HoldTime       time.Duration
	AcquireTimeout time.Duration
}

// Load reads configuration from environment variables. Missing required
// variables cause the program to exit with a fatal log message.
func Load() Config {
	return Config{
		Env:  envStr("APP_ENV", "dev"),
		Port: envStr("APP_PORT", "8080"),

		JWTSecret:      must("JWT_SECRET"),
		NormalTokenTTL: envDur("ACCESS_TOKEN_TTL", 7*24*time.Hour),
		RescueTokenTTL: envDur("RESCUE_TOKEN_TTL", 24*time.Hour),
		LinkTTL:        envDur("DOWNLOAD_LINK_TTL", 60*time.Second),
		DownloadGrant:  envInt("DOWNLOAD_GRANT", 2),

		AirtableAPIKey: must("AIRTABLE_API_KEY"),
		AirtableBaseID: must("AIRTABLE_BASE_ID"),
		AirtableTable:  must("AIRTABLE_TABLE_NAME"),

		StripeSecretKey:      os.Getenv("STRIPE_SECRET_KEY"),
		NOWPaymentsAPIKey:    os.Getenv("NOWPAYMENTS_API_KEY"),
		NOWPaymentsIPNSecret: os.Getenv("NOWPAYMENTS_IPN_SECRET"),
		FlouciAppToken:       os.Getenv("FLOUCI_APP_TOKEN"),
		FlouciAppSecret:      os.Getenv("FLOUCI_APP_SECRET"),

		ResendAPIKey: os.Getenv("RESEND_API_KEY"),
		EmailFrom:    envStr("EMAIL_FROM", "RATCHOPPER <noreply@bts.ratchoppermusic.com>"),

		B2Endpoint: os.Getenv("B2_ENDPOINT"),
		B2KeyID:    os.Getenv("B2_KEY_ID"),
		B2AppKey:   os.Getenv("B2_APPLICATION_KEY"),
		B2Bucket:   os.Getenv("B2_BUCKET_NAME"),

		SiteURL:   envStr("SITE_URL", "https://bts.ratchoppermusic.com"),
		StreamURL: os.Getenv("UNTITLED_STREAM_URL"),

		Lock: LockConfig{
			RetryDelay:     envDur("LOCK_RETRY_DELAY", 200*time.Millisecond),
			HoldTime:       envDur("LOCK_HOLD_TIME", 8*time.Second),
			AcquireTimeout: envDur("LOCK_ACQUIRE_TIMEOUT", 7*time.Second),
		},
	}
}

// must retrieves the value of a required environment variable. If the
// variable is unset or empty, the application logs a fatal error and exits.
func must(key string) string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		log.Fatalf("missing required env var: %s", key)
	}
	return v
}

func envStr(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}

func envBool(k string, d bool) bool {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	switch v {
	case "1", "true", "TRUE", "True", "yes", "YES", "on", "ON":
		return true
	case "0", "false", "FALSE", "False", "no", "NO", "off", "OFF":
		return false
	}
	return d
}

func envInt(k string, d int) int {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	if n, err := strconv.Atoi(v); err == nil {
		return n
	}
	return d
}

func envDur(k string, d time.Duration) time.Duration {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	if dur, err := time.ParseDuration(v); err == nil {
		return dur
	}
	return d
}
