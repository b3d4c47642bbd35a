package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/firewhere/internal/domain"
	"github.com/couchcryptid/firewhere/internal/observability"
	"github.com/couchcryptid/storm-data-shared/retry"
)

// CatalogSource loads the station catalog and county directory.
type CatalogSource interface {
	LoadCatalog(ctx context.Context) (*domain.Catalog, error)
	LoadDirectory(ctx context.Context) (*domain.Directory, error)
}

// PredictorLoader builds the predictor, e.g. by reading a model artifact.
type PredictorLoader func(ctx context.Context) (domain.Predictor, error)

// Recorder receives every served prediction.
type Recorder interface {
	Record(ctx context.Context, event domain.PredictionEvent) error
}

// Snapshot is the immutable state every request reads from.
type Snapshot struct {
	Catalog   *domain.Catalog
	Resolver  *domain.Resolver
	Directory *domain.Directory
	Predictor domain.Predictor
	LoadedAt  time.Time
}

// NewSnapshot assembles a snapshot. A nil directory is replaced by an empty one.
func NewSnapshot(catalog *domain.Catalog, directory *domain.Directory, predictor domain.Predictor, threshold float64) *Snapshot {
	if directory == nil {
		directory = domain.NewDirectory(nil)
	}
	return &Snapshot{
		Catalog:   catalog,
		Resolver:  domain.NewResolver(catalog, threshold),
		Directory: directory,
		Predictor: predictor,
		LoadedAt:  domain.Now(),
	}
}

// Options holds the optional collaborators.
type Options struct {
	// Threshold is the coverage radius in degrees; zero selects the default.
	Threshold float64
	// Geocoder resolves counties missing from the directory. Nil disables the fallback.
	Geocoder domain.Geocoder
	// Recorder publishes prediction events. Nil disables publishing.
	Recorder Recorder
}

// Pipeline owns the loaded snapshot and runs the prediction flow against it.
type Pipeline struct {
	source        CatalogSource
	loadPredictor PredictorLoader
	opts          Options
	logger        *slog.Logger
	metrics       *observability.Metrics
	snapshot      atomic.Pointer[Snapshot]
}

// New creates a Pipeline. Nothing is loaded until Load or Run is called.
func New(source CatalogSource, loadPredictor PredictorLoader, logger *slog.Logger, metrics *observability.Metrics, opts Options) *Pipeline {
	return &Pipeline{
		source:        source,
		loadPredictor: loadPredictor,
		opts:          opts,
		logger:        logger,
		metrics:       metrics,
	}
}

// CheckReadiness returns nil once a snapshot is published, or an error
// describing why the service is not yet ready.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if p.snapshot.Load() == nil {
		return domain.ErrNotReady
	}
	return nil
}

// Snapshot returns the published snapshot or ErrNotReady.
func (p *Pipeline) Snapshot() (*Snapshot, error) {
	s := p.snapshot.Load()
	if s == nil {
		return nil, domain.ErrNotReady
	}
	return s, nil
}

// Publish makes s visible to all subsequent requests.
func (p *Pipeline) Publish(s *Snapshot) {
	p.snapshot.Store(s)
	p.metrics.SnapshotLoaded.Set(1)
	p.metrics.CatalogStations.Set(float64(s.Catalog.Len()))
}

// Load reads the catalog, directory and predictor once and publishes them.
func (p *Pipeline) Load(ctx context.Context) error {
	start := time.Now()

	catalog, err := p.source.LoadCatalog(ctx)
	if err != nil {
		return fmt.Errorf("load catalog: %w", err)
	}
	directory, err := p.source.LoadDirectory(ctx)
	if err != nil {
		return fmt.Errorf("load directory: %w", err)
	}
	predictor, err := p.loadPredictor(ctx)
	if err != nil {
		return fmt.Errorf("load predictor: %w", err)
	}

	snap := NewSnapshot(catalog, directory, predictor, p.opts.Threshold)
	p.Publish(snap)
	p.logger.Info("snapshot loaded",
		"stations", catalog.Len(),
		"states", len(snap.Directory.States()),
		"duration", time.Since(start),
	)
	return nil
}

// Run retries Load with exponential backoff until it succeeds or ctx is
// cancelled. A cancelled context returns its error.
func (p *Pipeline) Run(ctx context.Context) error {
	// Exponential backoff: start at 200ms, double each retry, cap at 5s.
	backoff := 200 * time.Millisecond
	maxBackoff := 5 * time.Second

	for {
		err := p.Load(ctx)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		p.logger.Error("snapshot load failed, retrying", "error", err, "backoff", backoff)
		if !retry.SleepWithContext(ctx, backoff) {
			return ctx.Err()
		}
		backoff = retry.NextBackoff(backoff, maxBackoff)
	}
}
