// coupon-ingest loads merchant coupon batch dumps into the ledger. Merchants
// export their promotional codes as newline-delimited gzip files; a code is
// accepted only when at least two independent dumps agree on it, which filters
// out corrupted or partially exported batches without keeping every code in
// memory.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log/slog"
	"math/bits"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	pgzip "github.com/klauspost/pgzip"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/avetrov/market-settlement/internal/domain/coupon"
	"github.com/avetrov/market-settlement/internal/repository"
)

const (
	bloomCapacity = 120_000_000
	bloomFPR      = 0.001
	numDumps      = 3
	progressEvery = 10_000_000
	minCodeLen    = 8
	maxCodeLen    = 10
)

// codeRule describes the coupon to create for a known code. Codes without a
// rule get the default one.
type codeRule struct {
	discount  string
	totalQty  int
	validDays int
}

var codeRules = map[string]codeRule{
	"FIFTYOFF": {discount: "50", totalQty: 1000, validDays: 30},
	"HUNDREDO": {discount: "100", totalQty: 200, validDays: 14},
	"WELCOMES": {discount: "20", totalQty: 50000, validDays: 90},
	"FLASHSALE": {discount: "80", totalQty: 500, validDays: 3},
}

var defaultRule = codeRule{discount: "10", totalQty: 10000, validDays: 60}

// dumpResult holds candidate codes found in a single dump during pass 2.
type dumpResult struct {
	candidates map[string]uint
}

func main() {
	var (
		dataDir     string
		merchantID  string
		databaseURL string
	)

	flag.StringVar(&dataDir, "data-dir", "data", "directory containing couponbatchN.gz dumps")
	flag.StringVar(&merchantID, "merchant-id", "", "merchant the ingested coupons belong to")
	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}
	if merchantID == "" {
		slog.Error("merchant id is required: set --merchant-id")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, dataDir, merchantID, databaseURL); err != nil {
		slog.Error("coupon ingest failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("coupon ingest completed successfully")
}

func run(ctx context.Context, dataDir, merchantID, databaseURL string) error {
	dumps := make([]string, numDumps)
	for i := range numDumps {
		dumps[i] = filepath.Join(dataDir, fmt.Sprintf("couponbatch%d.gz", i+1))
	}
	for _, d := range dumps {
		if _, err := os.Stat(d); err != nil {
			return errors.Wrapf(err, "check dump %s", d)
		}
	}

	// Pass 1: build one bloom filter per dump, concurrently.
	slog.Info("pass 1: building bloom filters", slog.Int("dumps", numDumps))

	filters, err := buildBloomFilters(ctx, dumps)
	if err != nil {
		return errors.Wrap(err, "build bloom filters")
	}

	// Pass 2: keep codes that at least two dumps agree on.
	slog.Info("pass 2: finding agreed codes")

	validCodes, err := findValidCodes(ctx, dumps, filters)
	if err != nil {
		return errors.Wrap(err, "find valid codes")
	}

	slog.Info("valid codes found", slog.Int("count", len(validCodes)))

	if len(validCodes) == 0 {
		slog.Info("no valid codes to insert")
		return nil
	}

	slog.Info("connecting to database")

	pool, err := repository.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	if err := writeCoupons(ctx, repository.NewSeeder(pool), merchantID, validCodes); err != nil {
		return errors.Wrap(err, "write coupons to database")
	}

	return nil
}

// buildBloomFilters creates one bloom filter per dump, concurrently.
func buildBloomFilters(ctx context.Context, dumps []string) ([]*bloom.BloomFilter, error) {
	filters := make([]*bloom.BloomFilter, len(dumps))

	g, ctx := errgroup.WithContext(ctx)
	for i, d := range dumps {
		g.Go(buildFilterForDump(ctx, i, d, filters))
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return filters, nil
}

func buildFilterForDump(ctx context.Context, idx int, path string, filters []*bloom.BloomFilter) func() error {
	return func() error {
		filter := bloom.NewWithEstimates(bloomCapacity, bloomFPR)
		var count uint64

		if err := streamGzFile(ctx, path, func(code string) {
			if len(code) >= minCodeLen && len(code) <= maxCodeLen {
				filter.AddString(code)
				count++
				if count%progressEvery == 0 {
					slog.Info("pass 1 progress",
						slog.Int("dump", idx+1),
						slog.Uint64("codes", count),
					)
				}
			}
		}); err != nil {
			return errors.Wrapf(err, "build filter for dump %d", idx+1)
		}

		slog.Info("pass 1 complete",
			slog.Int("dump", idx+1),
			slog.Uint64("total_codes", count),
		)

		filters[idx] = filter
		return nil
	}
}

// findValidCodes re-streams each dump and checks codes against the OTHER
// dumps' bloom filters. A code is valid if it appears in 2 or more dumps.
func findValidCodes(ctx context.Context, dumps []string, filters []*bloom.BloomFilter) ([]string, error) {
	results := make([]dumpResult, len(dumps))

	g, ctx := errgroup.WithContext(ctx)
	for i, d := range dumps {
		g.Go(findCandidatesInDump(ctx, i, d, filters, results))
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	// Merge per-dump bitmasks, then keep codes seen in 2+ dumps.
	merged := make(map[string]uint)
	for _, r := range results {
		for code, mask := range r.candidates {
			merged[code] |= mask
		}
	}

	var valid []string
	for code, mask := range merged {
		if bits.OnesCount(mask) >= 2 {
			valid = append(valid, code)
		}
	}

	return valid, nil
}

func findCandidatesInDump(
	ctx context.Context,
	idx int,
	path string,
	filters []*bloom.BloomFilter,
	results []dumpResult,
) func() error {
	return func() error {
		candidates := make(map[string]uint)
		dumpBit := uint(1) << uint(idx)
		var count uint64

		if err := streamGzFile(ctx, path, func(code string) {
			if len(code) < minCodeLen || len(code) > maxCodeLen {
				return
			}

			count++
			if count%progressEvery == 0 {
				slog.Info("pass 2 progress",
					slog.Int("dump", idx+1),
					slog.Uint64("codes", count),
				)
			}

			for j, f := range filters {
				if j == idx {
					continue
				}
				if f.TestString(code) {
					candidates[code] |= dumpBit
					break
				}
			}
		}); err != nil {
			return errors.Wrapf(err, "scan dump %d for candidates", idx+1)
		}

		slog.Info("pass 2 complete",
			slog.Int("dump", idx+1),
			slog.Uint64("total_codes", count),
			slog.Int("candidates", len(candidates)),
		)

		results[idx] = dumpResult{candidates: candidates}
		return nil
	}
}

// streamGzFile opens a gzip-compressed dump and calls fn for each line.
func streamGzFile(ctx context.Context, path string, fn func(code string)) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrapf(err, "open %s", path)
	}
	defer func() { _ = f.Close() }()

	gz, err := pgzip.NewReader(f)
	if err != nil {
		return errors.Wrapf(err, "create gzip reader for %s", path)
	}
	defer func() { _ = gz.Close() }()

	scanner := bufio.NewScanner(gz)
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		fn(scanner.Text())
	}

	if err := scanner.Err(); err != nil {
		return errors.Wrapf(err, "scan %s", path)
	}

	return nil
}

// writeCoupons upserts all valid coupon codes for the merchant.
func writeCoupons(ctx context.Context, seeder *repository.Seeder, merchantID string, codes []string) error {
	slog.Info("writing coupons to database", slog.Int("count", len(codes)))

	for i, code := range codes {
		rule, ok := codeRules[code]
		if !ok {
			rule = defaultRule
		}

		discount, err := decimal.NewFromString(rule.discount)
		if err != nil {
			return errors.Wrapf(err, "parse discount for code %s", code)
		}

		validUntil := time.Now().UTC().AddDate(0, 0, rule.validDays)
		if err := seeder.UpsertCoupon(ctx, &coupon.Coupon{
			ID:         merchantID + "-" + strings.ToLower(code),
			MerchantID: merchantID,
			Code:       code,
			Discount:   discount,
			ValidUntil: &validUntil,
			TotalQty:   rule.totalQty,
		}); err != nil {
			return err
		}

		if (i+1)%100 == 0 || i+1 == len(codes) {
			slog.Info("write progress", slog.Int("written", i+1), slog.Int("total", len(codes)))
		}
	}

	return nil
}
