// Package persistence is the orchestration layer of Lattice: it wires the
// metadata repository, schema discoverer, index engine, query executor,
// and blob store into the operation surface the server and CLI consume,
// and emits events around every mutating operation.
package persistence

import (
	"context"
	"fmt"
	"sync"

	"github.com/asaidimu/go-events"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jchristn/lattice/core"
	"github.com/jchristn/lattice/core/index"
	"github.com/jchristn/lattice/core/metadata"
	"github.com/jchristn/lattice/core/query"
	"github.com/jchristn/lattice/core/schema"
)

// Options configures the persistence layer.
type Options struct {
	// EnableObjectLocking serializes ingests per collection with a mutex,
	// giving linearizable ingest ordering at the cost of throughput.
	EnableObjectLocking bool
}

// Persistence orchestrates every Lattice operation over one backend
// adapter and one blob store. Instances are safe for concurrent use.
type Persistence struct {
	repo     *metadata.Repository
	blobs    core.DocumentBlobStore
	discover *schema.Discoverer
	engine   *index.Engine
	executor *query.Executor
	logger   *zap.Logger
	emitter  emitter
	locking  bool

	collectionLocks sync.Map // collection id -> *sync.Mutex

	subMu         sync.RWMutex
	subscriptions map[string]*SubscriptionInfo
}

// New creates the persistence layer and initializes the fixed metadata
// tables on the backend.
func New(ctx context.Context, db core.DatabaseAdapter, blobs core.DocumentBlobStore, logger *zap.Logger, opts Options) (*Persistence, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	bus, err := events.NewTypedEventBus[PersistenceEvent](events.DefaultConfig())
	if err != nil {
		return nil, fmt.Errorf("could not initialize event bus: %w", err)
	}

	repo := metadata.NewRepository(db, logger)
	if err := repo.Initialize(ctx); err != nil {
		return nil, fmt.Errorf("failed to initialize metadata tables: %w", err)
	}

	return &Persistence{
		repo:          repo,
		blobs:         blobs,
		discover:      schema.NewDiscoverer(repo, logger),
		engine:        index.NewEngine(repo, logger),
		executor:      query.NewExecutor(repo, blobs, logger),
		logger:        logger,
		emitter:       emitter{bus: bus},
		locking:       opts.EnableObjectLocking,
		subscriptions: make(map[string]*SubscriptionInfo),
	}, nil
}

// Repository exposes the metadata repository for read-only callers.
func (p *Persistence) Repository() *metadata.Repository {
	return p.repo
}

// Ping reports whether the backend is reachable.
func (p *Persistence) Ping(ctx context.Context) error {
	return p.repo.Adapter().Ping(ctx)
}

// lockCollection acquires the collection's ingest mutex when object
// locking is enabled; the returned function releases it.
func (p *Persistence) lockCollection(id string) func() {
	if !p.locking {
		return func() {}
	}
	v, _ := p.collectionLocks.LoadOrStore(id, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

// GetCollection fetches one collection by id.
func (p *Persistence) GetCollection(ctx context.Context, id string) (*core.Collection, error) {
	return p.repo.GetCollection(ctx, id)
}

// CollectionExists reports whether a collection exists.
func (p *Persistence) CollectionExists(ctx context.Context, id string) (bool, error) {
	return p.repo.CollectionExists(ctx, id)
}

// ListCollections returns every collection.
func (p *Persistence) ListCollections(ctx context.Context) ([]core.Collection, error) {
	return p.repo.ListCollections(ctx)
}

// ListSchemas returns every discovered schema.
func (p *Persistence) ListSchemas(ctx context.Context) ([]core.Schema, error) {
	return p.repo.ListSchemas(ctx)
}

// GetSchema fetches one schema by id.
func (p *Persistence) GetSchema(ctx context.Context, id string) (*core.Schema, error) {
	return p.repo.GetSchema(ctx, id)
}

// GetSchemaElements returns a schema's ordered elements.
func (p *Persistence) GetSchemaElements(ctx context.Context, id string) ([]core.SchemaElement, error) {
	return p.repo.GetSchemaElements(ctx, id)
}

// ListIndexTables returns every index-table mapping.
func (p *Persistence) ListIndexTables(ctx context.Context) ([]core.IndexTableMapping, error) {
	return p.repo.ListMappings(ctx)
}

// Search runs one structured search against a collection.
func (p *Persistence) Search(ctx context.Context, q *query.SearchQuery) (*query.SearchResult, error) {
	col, err := p.repo.GetCollection(ctx, q.CollectionID)
	if err != nil {
		return nil, err
	}
	return p.executor.Search(ctx, col, q)
}

// SearchSQL compiles an expression in the SQL-like dialect and runs it as
// a structured search.
func (p *Persistence) SearchSQL(ctx context.Context, collectionID, expression string) (*query.SearchResult, error) {
	q, err := query.ParseSQL(expression)
	if err != nil {
		return nil, err
	}
	q.CollectionID = collectionID
	return p.Search(ctx, q)
}

// Enumerate runs a plain paged scan over documents.
func (p *Persistence) Enumerate(ctx context.Context, q *query.EnumerationQuery) (*query.EnumerationResult, error) {
	if q.CollectionID != "" {
		if _, err := p.repo.GetCollection(ctx, q.CollectionID); err != nil {
			return nil, err
		}
	}
	return p.executor.Enumerate(ctx, q)
}

// RegisterSubscription registers a callback for one persistence event
// type, returning an id usable with UnregisterSubscription.
func (p *Persistence) RegisterSubscription(options RegisterSubscriptionOptions) string {
	p.subMu.Lock()
	defer p.subMu.Unlock()

	unsubscribe := p.emitter.bus.Subscribe(string(options.Event), options.Callback)
	id := uuid.New().String()

	p.subscriptions[id] = &SubscriptionInfo{
		ID:          &id,
		Event:       options.Event,
		Label:       options.Label,
		Description: options.Description,
		Unsubscribe: unsubscribe,
	}
	return id
}

// UnregisterSubscription removes a subscription by id.
func (p *Persistence) UnregisterSubscription(id string) {
	p.subMu.Lock()
	defer p.subMu.Unlock()

	if info, ok := p.subscriptions[id]; ok {
		info.Unsubscribe()
		delete(p.subscriptions, id)
	}
}

// Subscriptions returns every active subscription.
func (p *Persistence) Subscriptions() []SubscriptionInfo {
	p.subMu.RLock()
	defer p.subMu.RUnlock()

	subs := make([]SubscriptionInfo, 0, len(p.subscriptions))
	for _, sub := range p.subscriptions {
		subs = append(subs, *sub)
	}
	return subs
}
