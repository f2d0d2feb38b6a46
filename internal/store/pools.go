package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// Pools caches one connection pool per connection descriptor so concurrent
// pipeline runs share pooled access to the same store.
type Pools struct {
	mu  sync.Mutex
	dbs map[string]*DB
}

// NewPools returns an empty pool cache.
func NewPools() *Pools {
	return &Pools{dbs: make(map[string]*DB)}
}

// Get returns the pool for conn, opening it on first use. The store is
// opened without holding the lock so a slow ping does not stall other
// descriptors; if two callers race, the loser's pool is closed.
func (p *Pools) Get(ctx context.Context, conn string) (*DB, error) {
	p.mu.Lock()
	db, ok := p.dbs[conn]
	p.mu.Unlock()
	if ok {
		return db, nil
	}

	opened, err := Open(ctx, conn)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if db, ok := p.dbs[conn]; ok {
		_ = opened.Close()
		return db, nil
	}
	p.dbs[conn] = opened
	return opened, nil
}

// Execute runs stmt against the store identified by conn.
func (p *Pools) Execute(ctx context.Context, conn, stmt string) (*Result, error) {
	db, err := p.Get(ctx, conn)
	if err != nil {
		return nil, err
	}
	return db.Execute(ctx, stmt)
}

// Introspect returns the Schema Document of the store identified by conn.
func (p *Pools) Introspect(ctx context.Context, conn string) (Schema, error) {
	db, err := p.Get(ctx, conn)
	if err != nil {
		return nil, err
	}
	return db.Introspect(ctx)
}

// Close closes every cached pool.
func (p *Pools) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var errs []error
	for conn, db := range p.dbs {
		if err := db.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", conn, err))
		}
		delete(p.dbs, conn)
	}
	return errors.Join(errs...)
}
