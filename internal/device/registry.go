package device

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Logger defines the logging interface used by the Registry.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Registry wraps a Repository with an in-memory cache of TVs.
//
// The cache is populated on startup via RefreshCache and kept in sync by
// the registry's own write operations. Returned TVs are copies.
//
// All public methods are thread-safe.
type Registry struct {
	repo    Repository
	cache   map[string]TV
	cacheMu sync.RWMutex
	logger  Logger
}

// NewRegistry creates a new TV registry.
func NewRegistry(repo Repository) *Registry {
	return &Registry{
		repo:   repo,
		cache:  make(map[string]TV),
		logger: noopLogger{},
	}
}

// SetLogger sets the logger for the registry.
func (r *Registry) SetLogger(logger Logger) {
	r.logger = logger
}

// RefreshCache reloads all TVs from the repository.
func (r *Registry) RefreshCache(ctx context.Context) error {
	tvs, err := r.repo.List(ctx)
	if err != nil {
		return fmt.Errorf("loading tvs: %w", err)
	}

	r.cacheMu.Lock()
	defer r.cacheMu.Unlock()

	r.cache = make(map[string]TV, len(tvs))
	for _, tv := range tvs {
		r.cache[tv.ID] = tv
	}

	r.logger.Info("tv cache refreshed", "count", len(tvs))
	return nil
}

// GetTV returns a TV by ID, consulting the repository on a cache miss.
func (r *Registry) GetTV(ctx context.Context, id string) (*TV, error) {
	r.cacheMu.RLock()
	cached, ok := r.cache[id]
	r.cacheMu.RUnlock()
	if ok {
		return &cached, nil
	}

	tv, err := r.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	r.cacheMu.Lock()
	r.cache[id] = *tv
	r.cacheMu.Unlock()
	return tv, nil
}

// GetTVs resolves ids in order. The first unknown id aborts the lookup.
func (r *Registry) GetTVs(ctx context.Context, ids []string) ([]TV, error) {
	tvs := make([]TV, 0, len(ids))
	for _, id := range ids {
		tv, err := r.GetTV(ctx, id)
		if err != nil {
			return nil, err
		}
		tvs = append(tvs, *tv)
	}
	return tvs, nil
}

// ListTVs returns all TVs ordered by matrix output.
func (r *Registry) ListTVs(ctx context.Context) ([]TV, error) {
	r.cacheMu.RLock()
	if len(r.cache) == 0 {
		r.cacheMu.RUnlock()
		return r.repo.List(ctx)
	}
	tvs := make([]TV, 0, len(r.cache))
	for _, tv := range r.cache {
		tvs = append(tvs, tv)
	}
	r.cacheMu.RUnlock()

	sort.Slice(tvs, func(i, j int) bool {
		if tvs[i].Output != tvs[j].Output {
			return tvs[i].Output < tvs[j].Output
		}
		return tvs[i].ID < tvs[j].ID
	})
	return tvs, nil
}

// CreateTV validates and persists a new TV.
func (r *Registry) CreateTV(ctx context.Context, tv *TV) error {
	if err := tv.Validate(); err != nil {
		return err
	}
	if err := r.repo.Create(ctx, tv); err != nil {
		return err
	}

	r.cacheMu.Lock()
	r.cache[tv.ID] = *tv
	r.cacheMu.Unlock()

	r.logger.Info("tv created", "id", tv.ID, "brand", tv.Brand, "output", tv.Output)
	return nil
}

// UpdateTV validates and persists changes to an existing TV.
func (r *Registry) UpdateTV(ctx context.Context, tv *TV) error {
	if err := tv.Validate(); err != nil {
		return err
	}
	if err := r.repo.Update(ctx, tv); err != nil {
		return err
	}

	r.cacheMu.Lock()
	r.cache[tv.ID] = *tv
	r.cacheMu.Unlock()

	r.logger.Info("tv updated", "id", tv.ID)
	return nil
}

// DeleteTV removes a TV.
func (r *Registry) DeleteTV(ctx context.Context, id string) error {
	if err := r.repo.Delete(ctx, id); err != nil {
		return err
	}

	r.cacheMu.Lock()
	delete(r.cache, id)
	r.cacheMu.Unlock()

	r.logger.Info("tv deleted", "id", id)
	return nil
}

// Count returns the number of cached TVs.
func (r *Registry) Count() int {
	r.cacheMu.RLock()
	defer r.cacheMu.RUnlock()
	return len(r.cache)
}
