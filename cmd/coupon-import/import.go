package main

import (
	"bufio"
	"context"
	"io"
	"os"
	"strings"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/klauspost/pgzip"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/sqshop/internal/domain/coupon"
	"github.com/xenking/sqshop/internal/domain/validate"
)

const (
	bloomFPR      = 0.001
	minBloomSize  = 1024
	progressEvery = 1_000_000
)

// upserter is implemented by *postgres.CouponRepository.
type upserter interface {
	Upsert(ctx context.Context, coupons []coupon.Coupon) (int, error)
}

// fileCodes holds the valid coupons of one file in file order and a bloom
// filter over their codes.
type fileCodes struct {
	path    string
	coupons []coupon.Coupon
	filter  *bloom.BloomFilter
	invalid int
}

type stats struct {
	Parsed   int
	Invalid  int
	Repeated int
	// Tracked counts codes kept in the exact set because a later file's
	// filter may list them.
	Tracked int
	Written int
}

type importer struct {
	lg        *zap.Logger
	store     upserter
	batchSize int
}

// Import parses every file concurrently, drops codes already present in an
// earlier file and upserts the rest in batches. Files are ranked in the order
// given: the first file that lists a code wins.
func (imp *importer) Import(ctx context.Context, files []string) (stats, error) {
	parsed := make([]*fileCodes, len(files))

	g, gctx := errgroup.WithContext(ctx)
	for i, path := range files {
		g.Go(func() error {
			fc, err := imp.parseFile(gctx, path)
			if err != nil {
				return errors.Wrapf(err, "parse %s", path)
			}
			parsed[i] = fc
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return stats{}, err
	}

	var (
		st        stats
		survivors []coupon.Coupon
		// owner maps a code to the first file listing it, for codes that a
		// later file may repeat. Codes no later filter matches are never
		// stored.
		owner = make(map[string]string)
	)
	for i, fc := range parsed {
		st.Parsed += len(fc.coupons) + fc.invalid
		st.Invalid += fc.invalid
		later := parsed[i+1:]
		for _, c := range fc.coupons {
			if first, ok := owner[c.Code]; ok {
				st.Repeated++
				imp.lg.Info("Coupon repeated in later file",
					zap.String("code", c.Code),
					zap.String("file", fc.path),
					zap.String("first_file", first),
				)
				continue
			}
			if mayRecur(later, c.Code) {
				owner[c.Code] = fc.path
			}
			survivors = append(survivors, c)
		}
		// Only later files are tested from here on.
		fc.filter = nil
	}
	st.Tracked = len(owner)
	imp.lg.Info("Cross-file check done",
		zap.Int("survivors", len(survivors)),
		zap.Int("tracked", st.Tracked),
		zap.Int("repeated", st.Repeated),
	)

	written, err := imp.write(ctx, survivors)
	st.Written = written
	if err != nil {
		return st, errors.Wrap(err, "write coupons")
	}
	return st, nil
}

// mayRecur reports whether any of the later files may list code. Bloom
// filters have no false negatives, so a false answer is final.
func mayRecur(later []*fileCodes, code string) bool {
	for _, fc := range later {
		if fc.filter.TestString(code) {
			return true
		}
	}
	return false
}

func (imp *importer) write(ctx context.Context, coupons []coupon.Coupon) (int, error) {
	size := imp.batchSize
	if size <= 0 {
		size = 1000
	}
	written := 0
	for start := 0; start < len(coupons); start += size {
		end := min(start+size, len(coupons))
		n, err := imp.store.Upsert(ctx, coupons[start:end])
		written += n
		if err != nil {
			return written, err
		}
		imp.lg.Info("Write progress", zap.Int("written", written), zap.Int("total", len(coupons)))
	}
	return written, nil
}

func (imp *importer) parseFile(ctx context.Context, path string) (*fileCodes, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open")
	}
	defer func() { _ = f.Close() }()

	gz, err := pgzip.NewReader(f)
	if err != nil {
		return nil, errors.Wrap(err, "create gzip reader")
	}
	defer func() { _ = gz.Close() }()

	fc, err := imp.parse(ctx, gz)
	if err != nil {
		return nil, err
	}
	fc.path = path
	imp.lg.Info("File parsed",
		zap.String("file", path),
		zap.Int("coupons", len(fc.coupons)),
		zap.Int("invalid", fc.invalid),
	)
	return fc, nil
}

// parse reads CODE,AMOUNT lines. Blank lines, # comments and a code,amount
// header are skipped; invalid lines are counted and logged. Within one file
// the first line for a code wins.
func (imp *importer) parse(ctx context.Context, r io.Reader) (*fileCodes, error) {
	fc := &fileCodes{}
	seen := make(map[string]struct{})

	scanner := bufio.NewScanner(r)
	line := 0
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		line++
		if line%progressEvery == 0 {
			imp.lg.Debug("Parse progress", zap.Int("lines", line))
		}

		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") || strings.EqualFold(text, "code,amount") {
			continue
		}
		c, err := parseLine(text)
		if err != nil {
			fc.invalid++
			imp.lg.Warn("Invalid coupon line", zap.Int("line", line), zap.Error(err))
			continue
		}
		if _, dup := seen[c.Code]; dup {
			continue
		}
		seen[c.Code] = struct{}{}
		fc.coupons = append(fc.coupons, c)
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "scan")
	}

	fc.filter = bloom.NewWithEstimates(uint(max(len(fc.coupons), minBloomSize)), bloomFPR)
	for _, c := range fc.coupons {
		fc.filter.AddString(c.Code)
	}
	return fc, nil
}

func parseLine(text string) (coupon.Coupon, error) {
	code, amount, ok := strings.Cut(text, ",")
	if !ok {
		return coupon.Coupon{}, validate.Errorf("line", "expected CODE,AMOUNT")
	}
	c := coupon.Coupon{Code: coupon.NormalizeCode(code)}
	v, err := validate.ParseMoney("amount", strings.TrimSpace(amount))
	if err != nil {
		return coupon.Coupon{}, err
	}
	c.Amount = v
	if err := c.Validate(); err != nil {
		return coupon.Coupon{}, err
	}
	c.ID = uuid.New().String()
	return c, nil
}
