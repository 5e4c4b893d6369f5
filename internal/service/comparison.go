package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/raphaelgruber/refcheck/internal/metrics"
	"github.com/raphaelgruber/refcheck/internal/models"
)

// Options tunes a ComparisonService.
type Options struct {
	// Concurrency is the number of names classified in parallel.
	// Values below 2 run strictly sequentially.
	Concurrency int

	// OnProgress, if set, is called after each name is classified.
	// It may be called from several goroutines when Concurrency > 1.
	OnProgress func(done, total int)

	// Metrics, if set, records timings of snapshot queries.
	Metrics *metrics.Collector

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// ComparisonService compares the reference databases of a previous
// (older) snapshot against a current (newer) one.
type ComparisonService struct {
	previous Snapshot
	current  Snapshot
	opts     Options
	logger   *slog.Logger
}

// NewComparisonService creates a comparison service over two snapshots.
func NewComparisonService(previous, current Snapshot, opts Options) *ComparisonService {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &ComparisonService{
		previous: previous,
		current:  current,
		opts:     opts,
		logger:   logger,
	}
}

// Run loads both catalogs and compares them.
func (s *ComparisonService) Run(ctx context.Context) (ComparisonResult, error) {
	previousCat, currentCat, err := s.LoadCatalogs(ctx)
	if err != nil {
		return ComparisonResult{}, err
	}
	return s.Compare(ctx, previousCat, currentCat)
}

// LoadCatalogs fetches and indexes the previous catalog, then the current one.
func (s *ComparisonService) LoadCatalogs(ctx context.Context) (previousCat, currentCat *Catalog, err error) {
	previousCat, err = s.LoadCatalog(ctx, s.previous)
	if err != nil {
		return nil, nil, err
	}
	currentCat, err = s.LoadCatalog(ctx, s.current)
	if err != nil {
		return nil, nil, err
	}
	return previousCat, currentCat, nil
}

// LoadCatalog fetches every reference database of one snapshot and indexes it.
func (s *ComparisonService) LoadCatalog(ctx context.Context, snap Snapshot) (*Catalog, error) {
	start := time.Now()
	rds, err := snap.FetchReferenceDatabases(ctx)
	s.record(metrics.OpFetchCatalog, start, err)
	if err != nil {
		if errors.Is(err, ErrConnection) {
			return nil, err
		}
		return nil, &ConnectionError{Snapshot: snap.Name(), Op: "fetch reference databases", Err: err}
	}

	catalog, err := BuildCatalog(rds)
	if err != nil {
		return nil, fmt.Errorf("build catalog for %s: %w", snap.Name(), err)
	}

	for _, c := range catalog.Collisions() {
		s.logger.Warn("duplicate canonical name, keeping the later record",
			"snapshot", snap.Name(),
			"name", c.Name,
			"kept", c.Kept.Identity,
			"dropped", c.Dropped.Identity)
	}
	s.logger.Info("catalog loaded",
		"snapshot", snap.Name(),
		"records", len(rds),
		"names", catalog.Len(),
		"duration_ms", time.Since(start).Milliseconds())

	return catalog, nil
}

// Compare classifies every name of the previous catalog against the current one.
// Names are visited in case-insensitive order; names only present in the
// current catalog are ignored.
func (s *ComparisonService) Compare(ctx context.Context, previousCat, currentCat *Catalog) (ComparisonResult, error) {
	names := previousCat.Names()
	outcomes := make([]Outcome, len(names))

	var done atomic.Int64
	classifyAt := func(ctx context.Context, i int) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		o, err := s.classify(ctx, names[i], previousCat, currentCat)
		if err != nil {
			return err
		}
		outcomes[i] = o
		if s.opts.OnProgress != nil {
			s.opts.OnProgress(int(done.Add(1)), len(names))
		}
		return nil
	}

	if s.opts.Concurrency < 2 {
		for i := range names {
			if err := classifyAt(ctx, i); err != nil {
				return ComparisonResult{}, err
			}
		}
	} else {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(s.opts.Concurrency)
		for i := range names {
			g.Go(func() error { return classifyAt(gctx, i) })
		}
		if err := g.Wait(); err != nil {
			return ComparisonResult{}, err
		}
	}

	b := newResultBuilder(len(outcomes))
	for _, o := range outcomes {
		b.add(o)
	}
	result := b.build()

	summary := result.Summary()
	s.logger.Info("comparison complete",
		"total", summary.Total,
		"missing", summary.Missing,
		"reduced", summary.Reduced,
		"stable", summary.Stable)

	return result, nil
}

func (s *ComparisonService) classify(ctx context.Context, name string, previousCat, currentCat *Catalog) (Outcome, error) {
	previousRD, _ := previousCat.Get(name)
	currentRD, ok := currentCat.Get(name)
	if !ok {
		s.logger.Debug("reference database missing", "name", name, "identity", previousRD.Identity)
		return Outcome{Class: Missing, Name: name}, nil
	}

	oldCount, err := s.ReferrerCount(ctx, s.previous, previousRD)
	if err != nil {
		return Outcome{}, err
	}
	newCount, err := s.ReferrerCount(ctx, s.current, currentRD)
	if err != nil {
		return Outcome{}, err
	}

	label, err := DisplayLabel(currentRD)
	if err != nil {
		return Outcome{}, err
	}

	class := Stable
	if oldCount > newCount {
		class = Reduced
	}
	return Outcome{Class: class, Name: name, Label: label, OldCount: oldCount, NewCount: newCount}, nil
}

// ReferrerCount returns the number of records referencing rd in snap.
// Failures become a *CountUnavailableError; a count is never guessed.
func (s *ComparisonService) ReferrerCount(ctx context.Context, snap Snapshot, rd models.ReferenceDatabase) (int, error) {
	start := time.Now()
	n, err := ReferrerCount(ctx, snap, rd)
	s.record(metrics.OpCountReferrers, start, err)
	return n, err
}

// ReferrerCount returns the number of records referencing rd in snap.
func ReferrerCount(ctx context.Context, snap Snapshot, rd models.ReferenceDatabase) (int, error) {
	name, err := CanonicalName(rd)
	if err != nil {
		name = rd.Identity
	}
	n, err := snap.CountReferrers(ctx, rd.Identity)
	if err != nil {
		return 0, &CountUnavailableError{Snapshot: snap.Name(), Identity: rd.Identity, Name: name, Err: err}
	}
	if n < 0 {
		return 0, &CountUnavailableError{
			Snapshot: snap.Name(), Identity: rd.Identity, Name: name,
			Err: fmt.Errorf("negative count %d", n),
		}
	}
	return n, nil
}

func (s *ComparisonService) record(op string, start time.Time, err error) {
	if s.opts.Metrics == nil {
		return
	}
	if err != nil {
		s.opts.Metrics.RecordFailure(op, time.Since(start))
		return
	}
	s.opts.Metrics.RecordTiming(op, time.Since(start))
}
