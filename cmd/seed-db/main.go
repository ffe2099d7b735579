// Command seed-db loads catalog items, coupons and one API key into the shop
// database. Re-running it updates existing records in place.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/xenking/sqshop/internal/domain/auth"
	"github.com/xenking/sqshop/internal/domain/catalog"
	"github.com/xenking/sqshop/internal/domain/coupon"
	"github.com/xenking/sqshop/internal/storage/postgres"
)

type itemJSON struct {
	Name                  string              `json:"name"`
	Slug                  string              `json:"slug"`
	Size                  string              `json:"size"`
	Category              string              `json:"category"`
	Label                 string              `json:"label"`
	Price                 decimal.Decimal     `json:"price"`
	DiscountPrice         decimal.NullDecimal `json:"discount_price"`
	Available             *bool               `json:"available"`
	Description           string              `json:"description"`
	AdditionalInformation string              `json:"additional_information"`
	// Image is a path relative to the seed file.
	Image string `json:"image"`
}

type couponJSON struct {
	Code   string          `json:"code"`
	Amount decimal.Decimal `json:"amount"`
}

type seedFile struct {
	Items   []itemJSON   `json:"items"`
	Coupons []couponJSON `json:"coupons"`
}

type options struct {
	databaseURL string
	seedFile    string
	apiKey      string
	pepper      string
	userID      string
	scopes      string
}

func main() {
	var opts options
	flag.StringVar(&opts.databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&opts.seedFile, "seed-file", "db/seed/shop.json", "path to the seed JSON file")
	flag.StringVar(&opts.apiKey, "api-key", "", "API key to seed (or SQSHOP_SEED_API_KEY env)")
	flag.StringVar(&opts.pepper, "api-key-pepper", "", "HMAC pepper for API key hashing (or SQSHOP_API_KEY_PEPPER env)")
	flag.StringVar(&opts.userID, "user-id", "admin", "user the seeded API key acts as")
	flag.StringVar(&opts.scopes, "scopes", auth.ScopeShop+","+auth.ScopeAdmin, "comma separated scopes of the seeded key")
	flag.Parse()

	lg, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer func() { _ = lg.Sync() }()

	if opts.databaseURL == "" {
		opts.databaseURL = os.Getenv("DATABASE_URL")
	}
	if opts.databaseURL == "" {
		lg.Fatal("Database URL is required: set --database-url or DATABASE_URL")
	}
	if opts.apiKey == "" {
		opts.apiKey = os.Getenv("SQSHOP_SEED_API_KEY")
	}
	if opts.apiKey == "" {
		lg.Fatal("API key is required: set --api-key or SQSHOP_SEED_API_KEY")
	}
	if opts.pepper == "" {
		opts.pepper = os.Getenv("SQSHOP_API_KEY_PEPPER")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, lg, opts); err != nil {
		lg.Fatal("Seed failed", zap.Error(err))
	}
	lg.Info("Seed completed")
}

func run(ctx context.Context, lg *zap.Logger, opts options) error {
	data, err := os.ReadFile(opts.seedFile)
	if err != nil {
		return errors.Wrap(err, "read seed file")
	}
	var seed seedFile
	if err := json.Unmarshal(data, &seed); err != nil {
		return errors.Wrap(err, "parse seed file")
	}

	lg.Info("Connecting to database")
	pool, err := postgres.NewPool(ctx, opts.databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}
	db := postgres.NewDB(pool)

	compressor, err := catalog.NewCompressor(catalog.CompressorOptions{})
	if err != nil {
		return errors.Wrap(err, "create compressor")
	}
	items := postgres.NewItemRepository(db)
	svc := catalog.NewService(items, postgres.NewImageStore(db), compressor)

	baseDir := filepath.Dir(opts.seedFile)
	for _, in := range seed.Items {
		if err := seedItem(ctx, lg, svc, baseDir, in); err != nil {
			return errors.Wrapf(err, "seed item %s", in.Slug)
		}
	}

	coupons := make([]coupon.Coupon, 0, len(seed.Coupons))
	for _, in := range seed.Coupons {
		c := coupon.Coupon{ID: uuid.New().String(), Code: coupon.NormalizeCode(in.Code), Amount: in.Amount}
		if err := c.Validate(); err != nil {
			return errors.Wrapf(err, "coupon %s", in.Code)
		}
		coupons = append(coupons, c)
	}
	n, err := postgres.NewCouponRepository(db).Upsert(ctx, coupons)
	if err != nil {
		return errors.Wrap(err, "upsert coupons")
	}
	lg.Info("Upserted coupons", zap.Int("count", n))

	key := &auth.APIKeyInfo{
		ID:      uuid.New().String(),
		KeyHash: auth.HashKey([]byte(opts.pepper), opts.apiKey),
		Name:    "seed",
		UserID:  opts.userID,
		Scopes:  strings.Split(opts.scopes, ","),
	}
	if err := postgres.NewAPIKeyRepository(db).Create(ctx, key); err != nil {
		return errors.Wrap(err, "create api key")
	}
	lg.Info("Upserted API key", zap.String("user_id", key.UserID), zap.Strings("scopes", key.Scopes))
	return nil
}

func seedItem(ctx context.Context, lg *zap.Logger, svc *catalog.Service, baseDir string, in itemJSON) error {
	it := &catalog.Item{
		Name:                  in.Name,
		Slug:                  in.Slug,
		Size:                  catalog.Size(in.Size),
		Category:              catalog.Category(in.Category),
		Label:                 catalog.Label(in.Label),
		Price:                 in.Price,
		DiscountPrice:         in.DiscountPrice,
		Available:             in.Available == nil || *in.Available,
		Description:           in.Description,
		AdditionalInformation: in.AdditionalInformation,
	}

	existing, err := svc.GetBySlug(ctx, in.Slug)
	switch {
	case err == nil:
		it.ID = existing.ID
		err = svc.Update(ctx, it)
	case errors.Is(err, catalog.ErrNotFound):
		err = svc.Create(ctx, it)
	}
	if err != nil {
		return err
	}
	lg.Info("Upserted item", zap.String("id", it.ID), zap.String("slug", it.Slug))

	if in.Image == "" {
		return nil
	}
	path := in.Image
	if !filepath.IsAbs(path) {
		path = filepath.Join(baseDir, path)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrap(err, "read image")
	}
	if _, err := svc.SetImage(ctx, it.ID, raw, filepath.Base(path)); err != nil {
		return errors.Wrap(err, "set image")
	}
	return nil
}
