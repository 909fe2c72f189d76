package table

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/ajitpratap0/coltable/pkg/adapter"
	"github.com/ajitpratap0/coltable/pkg/data"
	"github.com/ajitpratap0/coltable/pkg/errors"
	"github.com/ajitpratap0/coltable/pkg/logger"
	"github.com/ajitpratap0/coltable/pkg/metrics"
	"github.com/ajitpratap0/coltable/pkg/observability"
	"github.com/ajitpratap0/coltable/pkg/store"
)

// Acquisition describes how a lazy table obtains its store.
type Acquisition interface {
	// Open acquires the store. It is called at most once per LazyTable.
	Open(ctx context.Context) (store.ReadStore, error)
	// Location returns where the store is persisted, or "" when it is not
	// backed by a saved table.
	Location() string
}

// FileAcquisition opens a persisted data file through its factory.
type FileAcquisition struct {
	Path    string
	Factory store.Factory
	Schema  []store.ColumnType
	// Size is the row count recorded when the table was saved.
	Size int64
}

func (a FileAcquisition) Open(ctx context.Context) (store.ReadStore, error) {
	rs, err := a.Factory.Open(ctx, a.Path, a.Schema)
	if err != nil {
		return nil, err
	}
	if rs.Size() != a.Size {
		rs.Close()
		return nil, errors.Newf(errors.ErrorTypeStorage, "data file holds %d rows, descriptor records %d",
			rs.Size(), a.Size).WithDetail("path", a.Path)
	}
	return rs, nil
}

func (a FileAcquisition) Location() string { return a.Path }

type lazyState int

const (
	lazyUnopened lazyState = iota
	lazyOpening
	lazyOpen
	lazyFailed
	lazyDisposed
)

var lazyStateNames = [...]string{"unopened", "opening", "open", "failed", "disposed"}

func (s lazyState) String() string { return lazyStateNames[s] }

// LazyTable is a table whose store is acquired on first use. The open
// routine runs exactly once; concurrent first users block until it has
// finished and then share its result. A failed or cancelled open is final.
type LazyTable struct {
	id        string
	adapter   *adapter.SpecAdapter
	factoryID string
	acq       Acquisition
	repo      *Repository
	logger    *zap.Logger

	once    sync.Once
	mu      sync.Mutex
	state   lazyState
	store   store.ReadStore
	openErr error
}

var _ Table = (*LazyTable)(nil)

// LazyOptions configures a LazyTable.
type LazyOptions struct {
	// FactoryID is the identifier of the factory that reopens the store.
	FactoryID string
	// Repository, when set, is notified when the table is cleared before
	// its store was ever acquired.
	Repository *Repository
	Logger     *zap.Logger
}

// NewLazyTable creates an unopened lazy table.
func NewLazyTable(sa *adapter.SpecAdapter, acq Acquisition, opts LazyOptions) *LazyTable {
	id := newTableID()
	return &LazyTable{
		id:        id,
		adapter:   sa,
		factoryID: opts.FactoryID,
		acq:       acq,
		repo:      opts.Repository,
		logger:    logger.OrDefault(opts.Logger, "table").With(zap.String("table_id", id)),
	}
}

func (t *LazyTable) ID() string { return t.id }

func (t *LazyTable) Spec() *data.TableSpec { return t.adapter.Spec() }

func (t *LazyTable) HasRowKeys() bool { return t.adapter.RowKeys() }

// IsOpen reports whether the store has been acquired and not yet released.
func (t *LazyTable) IsOpen() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state == lazyOpen
}

// EnsureOpen acquires the store if that has not happened yet and returns it.
// The open runs under the context of the first caller; if that context is
// cancelled or times out, the open fails for every caller and is not retried.
func (t *LazyTable) EnsureOpen(ctx context.Context) (store.ReadStore, error) {
	t.once.Do(func() { t.open(ctx) })

	t.mu.Lock()
	defer t.mu.Unlock()
	switch t.state {
	case lazyOpen:
		return t.store, nil
	case lazyFailed:
		return nil, t.openErr
	default:
		return nil, errDisposed(t.id)
	}
}

// Store is EnsureOpen.
func (t *LazyTable) Store(ctx context.Context) (store.ReadStore, error) {
	return t.EnsureOpen(ctx)
}

func (t *LazyTable) open(ctx context.Context) {
	t.mu.Lock()
	if t.state != lazyUnopened {
		t.mu.Unlock()
		return
	}
	t.state = lazyOpening
	t.mu.Unlock()

	timer := metrics.NewTimer("lazy_open")
	ctx = logger.ContextWithTable(ctx, t.id)
	var rs store.ReadStore
	err := observability.Trace(ctx, "lazy_open", func(ctx context.Context, span *observability.Span) error {
		span.SetAttribute("table.id", t.id)
		span.SetAttribute("table.location", t.acq.Location())
		var err error
		rs, err = t.acq.Open(ctx)
		return err
	})
	metrics.LazyOpenLatency.Observe(timer.Stop().Seconds())
	metrics.LazyOpens.WithLabelValues(metrics.Status(err, isCancelled)).Inc()

	t.mu.Lock()
	defer t.mu.Unlock()
	if err != nil {
		t.state = lazyFailed
		if isCancelled(err) {
			t.openErr = err
		} else {
			t.openErr = errors.Wrap(err, errors.ErrorTypeStorage, "lazy table open failed").
				WithDetail("table_id", t.id)
		}
		t.logger.Warn("lazy table open failed", zap.Error(err))
		return
	}
	t.state = lazyOpen
	t.store = rs
	metrics.TablesLive.Inc()
	t.logger.Debug("lazy table opened",
		zap.String("location", t.acq.Location()),
		zap.Int64("rows", rs.Size()),
		zap.Duration("duration", timer.Stop()))
}

func (t *LazyTable) Size(ctx context.Context) (int64, error) {
	rs, err := t.EnsureOpen(ctx)
	if err != nil {
		return 0, err
	}
	return rs.Size(), nil
}

func (t *LazyTable) Iterator(ctx context.Context) (RowIterator, error) {
	return t.IteratorWithFilter(ctx, AllColumns())
}

func (t *LazyTable) IteratorWithFilter(ctx context.Context, f Filter) (RowIterator, error) {
	rs, err := t.EnsureOpen(ctx)
	if err != nil {
		return nil, err
	}
	return newIterator(rs, t.adapter, f)
}

// SaveToFile persists the table. A table that was itself loaded from disk
// is already persisted and cannot be saved again.
func (t *LazyTable) SaveToFile(ctx context.Context, dir string) error {
	if loc := t.acq.Location(); loc != "" {
		return errors.New(errors.ErrorTypeState, "table is already persisted").
			WithDetail("location", loc).
			WithDetail("table_id", t.id)
	}
	rs, err := t.EnsureOpen(ctx)
	if err != nil {
		return err
	}
	return save(ctx, dir, t.adapter, rs, t.factoryID, t.logger)
}

// Clear disposes the table. A table whose store was never acquired is
// removed from its repository instead; an open in progress is waited for.
func (t *LazyTable) Clear() error {
	neverOpened := false
	t.once.Do(func() {
		t.mu.Lock()
		t.state = lazyDisposed
		t.mu.Unlock()
		neverOpened = true
	})
	if neverOpened {
		if t.repo != nil {
			t.repo.Remove(t.id)
		}
		t.logger.Debug("lazy table disposed before open")
		return nil
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	switch t.state {
	case lazyOpen:
		err := t.store.Close()
		t.store = nil
		t.state = lazyDisposed
		metrics.TablesLive.Dec()
		if err != nil {
			return errors.Wrap(err, errors.ErrorTypeStorage, "failed to release table store").
				WithDetail("table_id", t.id)
		}
		t.logger.Debug("lazy table cleared")
	case lazyFailed:
		t.state = lazyDisposed
	}
	return nil
}

func isCancelled(err error) bool {
	return errors.IsType(err, errors.ErrorTypeCancelled)
}
