// Package repository orchestrates the repository half of hutch:
// fetching remote indexes through a driver, promoting them into the
// durable store, and expanding or shrinking the store over
// "companions" edges when repositories are added or removed.
package repository

import (
	"fmt"
	"sort"
	"time"

	"github.com/nestlab/hutch/pkg/deptree"
	"github.com/nestlab/hutch/pkg/driver"
	"github.com/nestlab/hutch/pkg/events"
	"github.com/nestlab/hutch/pkg/future"
	"github.com/nestlab/hutch/pkg/log"
	"github.com/nestlab/hutch/pkg/metrics"
	"github.com/nestlab/hutch/pkg/storage"
	"github.com/nestlab/hutch/pkg/transaction"
	"github.com/nestlab/hutch/pkg/types"
	"github.com/nestlab/hutch/pkg/wildcard"
)

// Repository wires together the storage, driver registry, and an
// optional event broker into the add/remove/find operations.
type Repository struct {
	storage  *storage.Storage
	registry *driver.Registry
	broker   *events.Broker
}

// New builds a Repository orchestrator. broker may be nil.
func New(s *storage.Storage, registry *driver.Registry, broker *events.Broker) *Repository {
	return &Repository{storage: s, registry: registry, broker: broker}
}

// Fetch resolves identifier to (driver, index), consulting the cache
// first. A cache hit never invokes a driver.
func (r *Repository) Fetch(identifier types.RepositoryIdentifier) (driver.Driver, *types.RepositoryIndex, error) {
	if idx, ok := r.storage.FetchCache(identifier); ok {
		return r.registry.ByName(idx.Driver), idx, nil
	}

	d := r.registry.SelectFor(identifier)
	if d == nil {
		return nil, nil, fmt.Errorf("no driver for %s", identifier)
	}
	if !d.Exists(identifier) {
		return nil, nil, fmt.Errorf("repository %s: %w", identifier, types.ErrNotFound)
	}

	timer := metrics.NewTimer()
	idx, err := d.FetchIndex(identifier)
	timer.ObserveDurationVec(metrics.DriverFetchDuration, d.Name())
	if err != nil {
		log.WithRepository("repository", identifier, d.Name()).Warn().Err(err).Msg("fetch failed")
		return nil, nil, fmt.Errorf("cannot fetch %s: %w", identifier, err)
	}

	idx.Driver = d.Name()
	idx.UpdateTimestamp = time.Now().Unix()
	r.storage.PutCache(identifier, idx)
	return d, idx, nil
}

// FetchAndStore returns the store entry for identifier if present, or
// a new entry structurally copied (via Clone) from a freshly fetched
// index, so it shares no slice or map with the cached index. The
// returned entry is not inserted into the store — that is the action's
// job once the transaction applies.
func (r *Repository) FetchAndStore(identifier types.RepositoryIdentifier) (*types.LocalRepositoryEntry, error) {
	if e, ok := r.storage.Store[identifier]; ok {
		return e, nil
	}

	_, idx, err := r.Fetch(identifier)
	if err != nil {
		return nil, err
	}

	entry := &types.LocalRepositoryEntry{
		RepositoryIndex: *idx,
		Identifier:      identifier,
		UserInstalled:   false,
	}
	return entry.Clone(), nil
}

// Find returns store identifiers matching the wildcard pattern; an
// empty pattern matches everything. Results are sorted for
// determinism.
func (r *Repository) Find(pattern string) []types.RepositoryIdentifier {
	m := wildcard.MustCompile(pattern, "")
	out := make([]types.RepositoryIdentifier, 0)
	for id := range r.storage.Store {
		if m.Matches(id) {
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out
}

func (r *Repository) addUnchecked(e *types.LocalRepositoryEntry) error {
	r.storage.Store[e.Identifier] = e
	return nil
}

func (r *Repository) removeUnchecked(e *types.LocalRepositoryEntry) {
	delete(r.storage.Store, e.Identifier)
}

// AddResult is what Add's Future resolves to.
type AddResult struct {
	Transaction *transaction.Transaction[*types.LocalRepositoryEntry]
	Errors      []error
}

// Add resolves the companion closure of identifiers and builds a
// transaction that installs every newly-discovered companion, then
// the user-requested identifiers themselves flagged user_installed.
func (r *Repository) Add(identifiers ...types.RepositoryIdentifier) *future.Future[AddResult] {
	var errs []error

	pool := append([]types.RepositoryIdentifier(nil), r.Find("")...)
	alreadyPresent := make(map[types.RepositoryIdentifier]bool)

	for _, id := range identifiers {
		if _, ok := r.storage.Store[id]; ok {
			errs = append(errs, fmt.Errorf("repository %s: %w", id, types.ErrAlreadyPresent))
			alreadyPresent[id] = true
			continue
		}
		pool = append(pool, id)
	}

	fetchFailed := make(map[types.RepositoryIdentifier]bool)
	getCompanions := func(name string) []string {
		_, idx, err := r.Fetch(name)
		if err != nil {
			errs = append(errs, fmt.Errorf("fetch %s: %w", name, err))
			fetchFailed[name] = true
			return []string{}
		}
		if idx.Companions == nil {
			return []string{}
		}
		return idx.Companions
	}

	expandFut := deptree.Expand(pool, getCompanions)

	return future.Map(expandFut, func(additions []string) AddResult {
		var actions []transaction.Action[*types.LocalRepositoryEntry]

		for _, companion := range additions {
			if _, ok := r.storage.Store[companion]; ok || fetchFailed[companion] {
				continue
			}
			entry, err := r.FetchAndStore(companion)
			if err != nil {
				errs = append(errs, fmt.Errorf("resolve companion %s: %w", companion, err))
				continue
			}
			actions = append(actions, transaction.Action[*types.LocalRepositoryEntry]{
				Data: entry, Apply: r.addUnchecked, Rollback: r.removeUnchecked,
			})
		}

		for _, id := range identifiers {
			if alreadyPresent[id] || fetchFailed[id] {
				continue
			}
			entry, err := r.FetchAndStore(id)
			if err != nil {
				errs = append(errs, fmt.Errorf("resolve %s: %w", id, err))
				continue
			}
			entry.UserInstalled = true
			actions = append(actions, transaction.Action[*types.LocalRepositoryEntry]{
				Data: entry, Apply: r.addUnchecked, Rollback: r.removeUnchecked,
			})
		}

		if len(actions) == 0 && len(errs) > 0 {
			return AddResult{Errors: errs}
		}

		tx := r.newTransaction(actions)
		return AddResult{Transaction: tx, Errors: errs}
	})
}

// RemoveResult is what Remove's Future resolves to.
type RemoveResult struct {
	Transaction *transaction.Transaction[*types.LocalRepositoryEntry]
	Errors      []error
}

// Remove resolves the orphan closure that removing identifiers leaves
// behind and builds a transaction undoing every affected entry.
// identifiers themselves are never pinned, even if user_installed.
func (r *Repository) Remove(identifiers ...types.RepositoryIdentifier) *future.Future[RemoveResult] {
	var errs []error
	roots := make(map[types.RepositoryIdentifier]bool, len(identifiers))

	for _, id := range identifiers {
		if _, ok := r.storage.Store[id]; !ok {
			errs = append(errs, fmt.Errorf("repository %s: %w", id, types.ErrNotPresent))
			continue
		}
		roots[id] = true
	}

	pool := r.Find("")

	getCompanions := func(name string) []string {
		e, ok := r.storage.Store[name]
		if !ok || e.Companions == nil {
			return []string{}
		}
		return e.Companions
	}

	isPinned := func(name string) bool {
		if roots[name] {
			return false
		}
		e, ok := r.storage.Store[name]
		if !ok {
			return false
		}
		return e.UserInstalled
	}

	shrinkFut := deptree.Shrink(pool, getCompanions, isPinned)

	return future.Map(shrinkFut, func(deletions []string) RemoveResult {
		var actions []transaction.Action[*types.LocalRepositoryEntry]

		for _, name := range deletions {
			entry, ok := r.storage.Store[name]
			if !ok {
				continue
			}
			actions = append(actions, transaction.Action[*types.LocalRepositoryEntry]{
				Data: entry, Apply: r.removeAction, Rollback: r.restoreAction,
			})
		}

		if len(actions) == 0 && len(errs) > 0 {
			return RemoveResult{Errors: errs}
		}

		tx := r.newTransaction(actions)
		return RemoveResult{Transaction: tx, Errors: errs}
	})
}

func (r *Repository) removeAction(e *types.LocalRepositoryEntry) error {
	r.removeUnchecked(e)
	return nil
}

func (r *Repository) restoreAction(e *types.LocalRepositoryEntry) {
	_ = r.addUnchecked(e)
}

func (r *Repository) newTransaction(actions []transaction.Action[*types.LocalRepositoryEntry]) *transaction.Transaction[*types.LocalRepositoryEntry] {
	tx := transaction.New(actions, r.broker)
	tx.SetHandlers(transaction.Handlers[*types.LocalRepositoryEntry]{
		Open:  func() { r.storage.LoadIfExpired() },
		Close: func() { r.storage.Flush() },
	})
	return tx
}
