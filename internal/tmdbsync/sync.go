// Package tmdbsync refreshes the movies dataset stored in object storage from
// the TMDB API: it scrapes every id between the dataset and the newest TMDB
// movie, archives the raw documents and merges them into the Parquet table.
package tmdbsync

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/vk/dispatchgrid/internal/ctxlog"
	"github.com/vk/dispatchgrid/internal/dataset"
	"github.com/vk/dispatchgrid/internal/objectstore"
	"github.com/vk/dispatchgrid/internal/tmdb"
	"golang.org/x/sync/errgroup"
)

// Source is the part of the TMDB API the sync uses.
type Source interface {
	Latest(ctx context.Context) (int64, error)
	Movie(ctx context.Context, id int64) (json.RawMessage, error)
	Keywords(ctx context.Context, id int64) ([]string, error)
}

// Start selects the first id to fetch.
type Start string

const (
	// StartMin refetches from the lowest id in the dataset.
	StartMin Start = "min"
	// StartMax fetches only ids above the highest one in the dataset.
	StartMax Start = "max"
)

// Options configure a sync. Zero values select the defaults.
type Options struct {
	Dataset       string
	TempPrefix    string
	ArchivePrefix string
	Workers       int
	StartFrom     Start
	// StartID is the first id when the dataset does not exist yet.
	StartID  int64
	KeepTemp bool
	// MaxFailures aborts the sync once more ids than this failed to fetch.
	// Zero keeps going whatever fails.
	MaxFailures int64
	Progress    io.Writer
	Now         func() time.Time
}

// ErrTooManyFailures is returned when more ids failed than MaxFailures allows.
var ErrTooManyFailures = errors.New("too many movies failed to fetch")

// Defaults match the layout of the production bucket.
const (
	DefaultDataset       = "diffusion/TMDB_movies.parquet"
	DefaultTempPrefix    = "diffusion/temp_data/"
	DefaultArchivePrefix = "diffusion/TMDB_archive/"
	DefaultWorkers       = 5
)

func (o *Options) applyDefaults() error {
	if o.Dataset == "" {
		o.Dataset = DefaultDataset
	}
	if o.TempPrefix == "" {
		o.TempPrefix = DefaultTempPrefix
	}
	if o.ArchivePrefix == "" {
		o.ArchivePrefix = DefaultArchivePrefix
	}
	o.TempPrefix = withSlash(o.TempPrefix)
	o.ArchivePrefix = withSlash(o.ArchivePrefix)
	if o.Workers <= 0 {
		o.Workers = DefaultWorkers
	}
	switch o.StartFrom {
	case "":
		o.StartFrom = StartMin
	case StartMin, StartMax:
	default:
		return fmt.Errorf("invalid start_from '%s': must be 'min' or 'max'", o.StartFrom)
	}
	if o.MaxFailures < 0 {
		return fmt.Errorf("invalid max_failures %d: must not be negative", o.MaxFailures)
	}
	if o.StartID <= 0 {
		o.StartID = 1
	}
	if o.Progress == nil {
		o.Progress = io.Discard
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return nil
}

// Report summarizes a finished sync.
type Report struct {
	First   int64
	Latest  int64
	Fetched int64
	Skipped int64
	Failed  int64
	// FailedIDs lists the ids that could not be fetched, in ascending order.
	FailedIDs []int64
	Archive   string
	Archived  int
	Rows      int
}

// Syncer runs the dataset refresh.
type Syncer struct {
	store  objectstore.Store
	source Source
	opts   Options
}

// New validates opts and returns a Syncer.
func New(store objectstore.Store, source Source, opts Options) (*Syncer, error) {
	if err := opts.applyDefaults(); err != nil {
		return nil, err
	}
	return &Syncer{store: store, source: source, opts: opts}, nil
}

// TempKey is where the document of one movie is staged.
func (s *Syncer) TempKey(id int64) string {
	return fmt.Sprintf("%sscrapeTMDB_movies_%d.ndjson", s.opts.TempPrefix, id)
}

// ArchiveKey is the combined archive for the given day.
func (s *Syncer) ArchiveKey(day time.Time) string {
	return fmt.Sprintf("%scombined_%s.ndjson", s.opts.ArchivePrefix, day.UTC().Format(time.DateOnly))
}

// Run executes the whole refresh.
func (s *Syncer) Run(ctx context.Context) (*Report, error) {
	logger := ctxlog.FromContext(ctx)
	logger.Info("🎬 Starting TMDB sync", "dataset", s.opts.Dataset, "workers", s.opts.Workers)

	existing, err := s.loadDataset(ctx)
	if err != nil {
		return nil, err
	}

	latest, err := s.source.Latest(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get latest movie id: %w", err)
	}

	report := &Report{First: s.firstID(existing), Latest: latest}
	logger.Info("Total movies to process", "first", report.First, "latest", latest, "count", max(0, latest-report.First+1))

	if err := s.fetch(ctx, report); err != nil {
		return report, err
	}

	docs, staged, err := s.combine(ctx, report)
	if err != nil {
		return report, err
	}
	if len(docs) == 0 {
		logger.Info("Nothing staged, dataset left unchanged.")
		report.Rows = len(existing)
		return report, nil
	}

	if err := s.merge(ctx, existing, docs, report); err != nil {
		return report, err
	}

	if !s.opts.KeepTemp {
		for _, key := range staged {
			if err := s.store.Remove(ctx, key); err != nil {
				return report, fmt.Errorf("failed to clean staged document: %w", err)
			}
		}
		logger.Debug("Staged documents removed.", "count", len(staged))
	}

	logger.Info("✅ TMDB sync finished", "fetched", report.Fetched, "skipped", report.Skipped, "failed", report.Failed, "rows", report.Rows)
	return report, nil
}

func (s *Syncer) loadDataset(ctx context.Context) ([]dataset.Movie, error) {
	data, err := s.store.Get(ctx, s.opts.Dataset)
	if errors.Is(err, objectstore.ErrNotFound) {
		ctxlog.FromContext(ctx).Warn("Dataset does not exist yet, starting empty.", "dataset", s.opts.Dataset)
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load dataset: %w", err)
	}
	return dataset.ReadParquet(data)
}

func (s *Syncer) firstID(existing []dataset.Movie) int64 {
	lo, hi, ok := dataset.IDRange(existing)
	switch {
	case !ok:
		return s.opts.StartID
	case s.opts.StartFrom == StartMax:
		return hi + 1
	default:
		return lo
	}
}

// fetch stages one document per id with a bounded pool. Ids TMDB does not
// know are skipped. Other failures are recorded and the remaining ids are
// still fetched, unless MaxFailures is exceeded or ctx is cancelled.
func (s *Syncer) fetch(ctx context.Context, report *Report) error {
	logger := ctxlog.FromContext(ctx)
	total := report.Latest - report.First + 1
	if total <= 0 {
		return nil
	}

	bar := progressbar.NewOptions64(total,
		progressbar.OptionSetWriter(s.opts.Progress),
		progressbar.OptionSetDescription("fetching movies"),
		progressbar.OptionShowCount(),
		progressbar.OptionThrottle(500*time.Millisecond),
		progressbar.OptionOnCompletion(func() { fmt.Fprintln(s.opts.Progress) }),
	)

	var (
		fetched, skipped atomic.Int64
		mu               sync.Mutex
		failed           []int64
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.Workers)

	for id := report.First; id <= report.Latest; id++ {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			defer bar.Add(1)
			ok, err := s.fetchOne(gctx, id)
			switch {
			case err == nil && ok:
				fetched.Add(1)
			case err == nil:
				skipped.Add(1)
			case gctx.Err() != nil:
				return err
			default:
				logger.Warn("Failed to fetch movie, continuing.", "id", id, "error", err)
				mu.Lock()
				failed = append(failed, id)
				n := int64(len(failed))
				mu.Unlock()
				if s.opts.MaxFailures > 0 && n > s.opts.MaxFailures {
					return fmt.Errorf("%w: %d (limit %d), last: movie %d: %w", ErrTooManyFailures, n, s.opts.MaxFailures, id, err)
				}
			}
			return nil
		})
	}

	err := g.Wait()
	_ = bar.Finish()
	slices.Sort(failed)
	report.Fetched, report.Skipped = fetched.Load(), skipped.Load()
	report.Failed, report.FailedIDs = int64(len(failed)), failed
	if err == nil {
		err = ctx.Err()
	}
	if err != nil {
		return fmt.Errorf("fetch aborted: %w", err)
	}
	if report.Failed > 0 {
		logger.Warn("⚠️ Some movies could not be fetched", "failed", report.Failed, "ids", failed)
	}
	return nil
}

func (s *Syncer) fetchOne(ctx context.Context, id int64) (bool, error) {
	doc, err := s.source.Movie(ctx, id)
	if errors.Is(err, tmdb.ErrNotFound) {
		ctxlog.FromContext(ctx).Debug("Movie id not found, skipping.", "id", id)
		return false, nil
	}
	if err != nil {
		return false, err
	}

	keywords, err := s.source.Keywords(ctx, id)
	if err != nil && !errors.Is(err, tmdb.ErrNotFound) {
		return false, err
	}
	doc, err = dataset.WithField(doc, "keywords", dataset.JoinKeywords(keywords))
	if err != nil {
		return false, fmt.Errorf("movie %d: %w", id, err)
	}

	var buf bytes.Buffer
	if err := dataset.WriteNDJSON(&buf, []json.RawMessage{doc}); err != nil {
		return false, fmt.Errorf("movie %d: %w", id, err)
	}
	if err := s.store.Put(ctx, s.TempKey(id), buf.Bytes(), "application/x-ndjson"); err != nil {
		return false, err
	}
	return true, nil
}

// combine gathers every staged document into the dated archive.
func (s *Syncer) combine(ctx context.Context, report *Report) ([]json.RawMessage, []string, error) {
	objects, err := s.store.List(ctx, s.opts.TempPrefix)
	if err != nil {
		return nil, nil, err
	}

	var docs []json.RawMessage
	keys := make([]string, 0, len(objects))
	for _, obj := range objects {
		data, err := s.store.Get(ctx, obj.Key)
		if err != nil {
			return nil, nil, err
		}
		part, err := dataset.ReadNDJSON(bytes.NewReader(data))
		if err != nil {
			return nil, nil, fmt.Errorf("staged document '%s': %w", obj.Key, err)
		}
		docs = append(docs, part...)
		keys = append(keys, obj.Key)
	}
	if len(docs) == 0 {
		return nil, keys, nil
	}

	var buf bytes.Buffer
	if err := dataset.WriteNDJSON(&buf, docs); err != nil {
		return nil, nil, err
	}
	report.Archive = s.ArchiveKey(s.opts.Now())
	report.Archived = len(docs)
	if err := s.store.Put(ctx, report.Archive, buf.Bytes(), "application/x-ndjson"); err != nil {
		return nil, nil, fmt.Errorf("failed to upload archive: %w", err)
	}
	ctxlog.FromContext(ctx).Info("📦 Archive uploaded", "key", report.Archive, "documents", len(docs))
	return docs, keys, nil
}

func (s *Syncer) merge(ctx context.Context, existing []dataset.Movie, docs []json.RawMessage, report *Report) error {
	update := make([]dataset.Movie, 0, len(docs))
	for _, doc := range docs {
		m, err := dataset.FromDocument(doc)
		if err != nil {
			return err
		}
		update = append(update, m)
	}

	merged := dataset.Merge(existing, update)
	data, err := dataset.WriteParquet(merged)
	if err != nil {
		return err
	}
	if err := s.store.Put(ctx, s.opts.Dataset, data, "application/vnd.apache.parquet"); err != nil {
		return fmt.Errorf("failed to upload dataset: %w", err)
	}
	report.Rows = len(merged)
	ctxlog.FromContext(ctx).Info("🗃️ Dataset updated", "key", s.opts.Dataset, "rows", len(merged), "added", len(merged)-len(existing))
	return nil
}

func withSlash(prefix string) string {
	if strings.HasSuffix(prefix, "/") {
		return prefix
	}
	return prefix + "/"
}
