package main

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/avetrov/market-settlement/internal/domain/coupon"
	"github.com/avetrov/market-settlement/internal/repository"
)

type couponJSON struct {
	ID         string          `json:"id"`
	MerchantID string          `json:"merchantId"`
	Code       string          `json:"code"`
	Discount   decimal.Decimal `json:"discount"`
	ValidDays  int             `json:"validDays"`
	TotalQty   int             `json:"totalQty"`
}

func main() {
	var (
		databaseURL  string
		couponsFile  string
		apiKey       string
		apiKeyPepper string
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&couponsFile, "coupons-file", "db/seed/coupons.json", "path to coupons JSON file")
	flag.StringVar(&apiKey, "api-key", "", "API key to seed (or SETTLE_SEED_API_KEY env)")
	flag.StringVar(&apiKeyPepper, "api-key-pepper", "", "HMAC pepper for API key hashing (or SETTLE_API_KEY_PEPPER env)")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}
	if apiKey == "" {
		apiKey = os.Getenv("SETTLE_SEED_API_KEY")
	}
	if apiKey == "" {
		slog.Error("API key is required: set --api-key or SETTLE_SEED_API_KEY")
		os.Exit(1)
	}
	if apiKeyPepper == "" {
		apiKeyPepper = os.Getenv("SETTLE_API_KEY_PEPPER")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, databaseURL, couponsFile, apiKey, apiKeyPepper); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("seed completed successfully")
}

func run(ctx context.Context, databaseURL, couponsFile, apiKey, pepper string) error {
	slog.Info("connecting to database")

	pool, err := repository.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	slog.Info("running migrations")

	if err := repository.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	seeder := repository.NewSeeder(pool)

	if err := seedCoupons(ctx, seeder, couponsFile); err != nil {
		return errors.Wrap(err, "seed coupons")
	}

	if err := seedAPIKey(ctx, seeder, apiKey, pepper); err != nil {
		return errors.Wrap(err, "seed api key")
	}

	return nil
}

func seedCoupons(ctx context.Context, seeder *repository.Seeder, couponsFile string) error {
	slog.Info("reading coupons file", slog.String("path", couponsFile))

	data, err := os.ReadFile(couponsFile)
	if err != nil {
		return errors.Wrap(err, "read coupons file")
	}

	var coupons []couponJSON
	if err := json.Unmarshal(data, &coupons); err != nil {
		return errors.Wrap(err, "parse coupons JSON")
	}

	slog.Info("upserting coupons", slog.Int("count", len(coupons)))

	for _, c := range coupons {
		// Negative validDays seed already-expired coupons for testing.
		var validUntil *time.Time
		if c.ValidDays != 0 {
			t := time.Now().UTC().AddDate(0, 0, c.ValidDays)
			validUntil = &t
		}

		if err := seeder.UpsertCoupon(ctx, &coupon.Coupon{
			ID:         c.ID,
			MerchantID: c.MerchantID,
			Code:       c.Code,
			Discount:   c.Discount,
			ValidUntil: validUntil,
			TotalQty:   c.TotalQty,
		}); err != nil {
			return err
		}

		slog.Info("upserted coupon", slog.String("id", c.ID), slog.String("code", c.Code))
	}

	return nil
}

func seedAPIKey(ctx context.Context, seeder *repository.Seeder, apiKey, pepper string) error {
	slog.Info("seeding default API key")

	mac := hmac.New(sha256.New, []byte(pepper))
	mac.Write([]byte(apiKey))
	keyHash := hex.EncodeToString(mac.Sum(nil))

	if err := seeder.UpsertAPIKey(ctx, "default", keyHash, "Default test key"); err != nil {
		return err
	}

	slog.Info("upserted API key", slog.String("id", "default"))

	return nil
}
