// Command coupon-import bulk loads coupons from gzip-compressed CSV files of
// CODE,AMOUNT lines.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"path/filepath"
	"sort"

	"github.com/go-faster/errors"
	"go.uber.org/zap"

	"github.com/xenking/sqshop/internal/storage/postgres"
)

func main() {
	var (
		dataDir     string
		databaseURL string
		batchSize   int
	)

	flag.StringVar(&dataDir, "data-dir", "data", "directory scanned for *.gz files when no files are given")
	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.IntVar(&batchSize, "batch-size", 1000, "coupons per upsert batch")
	flag.Parse()

	lg, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer func() { _ = lg.Sync() }()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		lg.Fatal("Database URL is required: set --database-url or DATABASE_URL")
	}

	files := flag.Args()
	if len(files) == 0 {
		files, err = filepath.Glob(filepath.Join(dataDir, "*.gz"))
		if err != nil {
			lg.Fatal("Bad data dir", zap.Error(err))
		}
		sort.Strings(files)
	}
	if len(files) == 0 {
		lg.Fatal("No input files", zap.String("data_dir", dataDir))
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, lg, databaseURL, files, batchSize); err != nil {
		lg.Fatal("Coupon import failed", zap.Error(err))
	}
}

func run(ctx context.Context, lg *zap.Logger, databaseURL string, files []string, batchSize int) error {
	for _, f := range files {
		if _, err := os.Stat(f); err != nil {
			return errors.Wrapf(err, "check file %s", f)
		}
	}

	lg.Info("Connecting to database")
	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	imp := &importer{
		lg:        lg,
		store:     postgres.NewCouponRepository(postgres.NewDB(pool)),
		batchSize: batchSize,
	}
	stats, err := imp.Import(ctx, files)
	if err != nil {
		return err
	}
	lg.Info("Coupon import completed",
		zap.Int("files", len(files)),
		zap.Int("parsed", stats.Parsed),
		zap.Int("invalid", stats.Invalid),
		zap.Int("repeated", stats.Repeated),
		zap.Int("written", stats.Written),
	)
	return nil
}
