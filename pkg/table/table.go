// Package table implements the row-oriented table API on top of a columnar
// physical store.
//
// Rows are appended through a RowContainer, which exclusively owns a write
// store until Close seals it into an immutable BufferedTable. Tables saved
// with SaveTable are reopened by LoadTable as a LazyTable, whose store is
// acquired on first use, exactly once, even under concurrent access.
//
// Reading always goes through a RowIterator. The iterator strategy follows
// the Filter: all columns use a full iterator, a proper subset a projected
// iterator that never decodes unselected columns, and an empty projection
// an iterator that touches no data column at all. Unselected cells read as
// data.Unmaterialized, which is distinct from data.Missing.
package table

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ajitpratap0/coltable/pkg/adapter"
	"github.com/ajitpratap0/coltable/pkg/data"
	"github.com/ajitpratap0/coltable/pkg/errors"
	"github.com/ajitpratap0/coltable/pkg/metrics"
	"github.com/ajitpratap0/coltable/pkg/store"
)

// Table is an immutable, readable table.
type Table interface {
	// ID identifies the table within a Repository.
	ID() string
	Spec() *data.TableSpec
	HasRowKeys() bool
	// Size returns the number of rows. A lazy table opens its store first.
	Size(ctx context.Context) (int64, error)
	// Iterator iterates all columns.
	Iterator(ctx context.Context) (RowIterator, error)
	// IteratorWithFilter picks the iteration strategy from f.
	IteratorWithFilter(ctx context.Context, f Filter) (RowIterator, error)
	// SaveToFile persists the table under dir.
	SaveToFile(ctx context.Context, dir string) error
	// Clear releases the table's store. Clearing twice is a no-op; any store
	// access afterwards is a state error.
	Clear() error
}

func newTableID() string { return uuid.NewString() }

// BufferedTable is a table whose store is open from construction.
type BufferedTable struct {
	id      string
	adapter *adapter.SpecAdapter
	factory store.Factory
	logger  *zap.Logger

	mu    sync.RWMutex
	store store.ReadStore
}

var _ Table = (*BufferedTable)(nil)

func newBufferedTable(sa *adapter.SpecAdapter, rs store.ReadStore, factory store.Factory, l *zap.Logger) *BufferedTable {
	metrics.TablesLive.Inc()
	id := newTableID()
	return &BufferedTable{
		id:      id,
		adapter: sa,
		factory: factory,
		store:   rs,
		logger:  l.With(zap.String("table_id", id)),
	}
}

func (t *BufferedTable) ID() string { return t.id }

func (t *BufferedTable) Spec() *data.TableSpec { return t.adapter.Spec() }

func (t *BufferedTable) HasRowKeys() bool { return t.adapter.RowKeys() }

// Store returns the open store.
func (t *BufferedTable) Store() (store.ReadStore, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.store == nil {
		return nil, errDisposed(t.id)
	}
	return t.store, nil
}

func (t *BufferedTable) Size(context.Context) (int64, error) {
	rs, err := t.Store()
	if err != nil {
		return 0, err
	}
	return rs.Size(), nil
}

func (t *BufferedTable) Iterator(ctx context.Context) (RowIterator, error) {
	return t.IteratorWithFilter(ctx, AllColumns())
}

func (t *BufferedTable) IteratorWithFilter(_ context.Context, f Filter) (RowIterator, error) {
	rs, err := t.Store()
	if err != nil {
		return nil, err
	}
	return newIterator(rs, t.adapter, f)
}

func (t *BufferedTable) SaveToFile(ctx context.Context, dir string) error {
	rs, err := t.Store()
	if err != nil {
		return err
	}
	return save(ctx, dir, t.adapter, rs, t.factory.ID(), t.logger)
}

func (t *BufferedTable) Clear() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.store == nil {
		return nil
	}
	err := t.store.Close()
	t.store = nil
	metrics.TablesLive.Dec()
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeStorage, "failed to release table store").
			WithDetail("table_id", t.id)
	}
	t.logger.Debug("table cleared")
	return nil
}

func errDisposed(id string) error {
	return errors.New(errors.ErrorTypeState, "table has been cleared").WithDetail("table_id", id)
}

// Repository tracks live tables by ID. It is safe for concurrent use.
type Repository struct {
	mu     sync.RWMutex
	tables map[string]Table
}

// NewRepository creates an empty repository.
func NewRepository() *Repository {
	return &Repository{tables: make(map[string]Table)}
}

// Put registers t under its ID, replacing any previous entry.
func (r *Repository) Put(t Table) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tables[t.ID()] = t
}

// Get returns the table registered under id.
func (r *Repository) Get(id string) (Table, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tables[id]
	return t, ok
}

// Remove unregisters id and reports whether it was present.
func (r *Repository) Remove(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.tables[id]
	delete(r.tables, id)
	return ok
}

// Len returns the number of registered tables.
func (r *Repository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tables)
}
