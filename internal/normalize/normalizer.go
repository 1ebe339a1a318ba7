package normalize

import (
	"context"
	"errors"
	"fmt"
	"os"
	"runtime"
	"sort"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	asmerrors "asmlsp/internal/errors"
	"asmlsp/internal/schema"
	"asmlsp/internal/storage"
)

// FileResult is the outcome for one input file.
type FileResult struct {
	Path    string         `json:"path"`
	Kind    schema.DocKind `json:"kind"`
	Records int            `json:"records"`
	Err     error          `json:"-"`
}

// StoreResult describes one store written by a run.
type StoreResult struct {
	Key     schema.StoreKey `json:"key"`
	Records int             `json:"records"`
}

// Report summarizes a normalizer run.
type Report struct {
	Results []FileResult  `json:"results"`
	Stores  []StoreResult `json:"stores"`
}

// Failed reports whether any input failed.
func (r *Report) Failed() bool {
	for _, res := range r.Results {
		if res.Err != nil {
			return true
		}
	}
	return false
}

// Options controls a normalizer run.
type Options struct {
	// Merge folds new records into existing stores instead of replacing them.
	Merge bool
	// Concurrency bounds parallel extraction; zero means GOMAXPROCS.
	Concurrency int
}

// Normalizer extracts raw sources and writes the resulting stores.
type Normalizer struct {
	store  storage.Store
	logger *zap.Logger
	opts   Options
}

// New creates a normalizer writing to store.
func New(store storage.Store, logger *zap.Logger, opts Options) *Normalizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = runtime.GOMAXPROCS(0)
	}
	return &Normalizer{store: store, logger: logger, opts: opts}
}

// ExtractFile parses one source file.
func ExtractFile(src Source) (schema.Records, error) {
	if src.Format == "" {
		f, ok := DetectFormat(src.Path)
		if !ok {
			return schema.Records{}, asmerrors.NewParseError(src.Path, 0, "cannot detect format from extension", nil)
		}
		src.Format = f
	}
	ext, err := ExtractorFor(src.Format)
	if err != nil {
		return schema.Records{}, asmerrors.NewParseError(src.Path, 0, err.Error(), nil)
	}

	f, err := os.Open(src.Path)
	if err != nil {
		return schema.Records{}, asmerrors.NewParseError(src.Path, 0, "cannot open source", err)
	}
	defer f.Close()

	recs, err := ext.Extract(f, src)
	if err != nil {
		return schema.Records{}, err
	}
	if recs.Len() == 0 {
		return recs, asmerrors.NewParseError(src.Path, 0, fmt.Sprintf("no %s records found", src.Kind), nil)
	}
	return recs, nil
}

// Run extracts every source in parallel, merges the records per store key
// and writes the stores. A failing source is recorded in the report and does
// not stop its siblings. The returned error is reserved for cancellation and
// store write failures.
func (n *Normalizer) Run(ctx context.Context, sources []Source) (*Report, error) {
	report := &Report{Results: make([]FileResult, len(sources))}
	extracted := make([]schema.Records, len(sources))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(n.opts.Concurrency)
	for i, src := range sources {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			recs, err := ExtractFile(src)
			report.Results[i] = FileResult{Path: src.Path, Kind: src.Kind, Records: recs.Len(), Err: err}
			if err != nil {
				n.logger.Warn("source failed", zap.String("path", src.Path), zap.Error(err))
				return nil
			}
			extracted[i] = recs
			n.logger.Debug("extracted source",
				zap.String("path", src.Path),
				zap.String("kind", string(src.Kind)),
				zap.Int("records", recs.Len()))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return report, err
	}

	// Combine in input order so output does not depend on scheduling.
	var all schema.Records
	for _, recs := range extracted {
		all.Append(recs)
	}

	groups := groupByKey(all)
	keys := make([]schema.StoreKey, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].Less(keys[j]) })

	for _, key := range keys {
		recs := *groups[key]
		if n.opts.Merge {
			existing, err := n.store.Read(ctx, key)
			switch {
			case err == nil:
				prior := existing.Records()
				prior.Append(recs)
				recs = prior
			case errors.Is(err, storage.ErrStoreNotFound):
			default:
				return report, fmt.Errorf("cannot merge into %s: %w", key, err)
			}
		}

		payload := storage.NewPayload(key, Dedup(recs))
		if err := n.store.Write(ctx, payload); err != nil {
			return report, fmt.Errorf("failed to write store %s: %w", key, err)
		}
		report.Stores = append(report.Stores, StoreResult{Key: key, Records: payload.Len()})
		n.logger.Info("wrote store", zap.String("key", key.String()), zap.Int("records", payload.Len()))
	}
	return report, nil
}
