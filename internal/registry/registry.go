// Package registry holds the drivers every booking channel matches against.
package registry

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/example/taxilink/internal/logging"
	"github.com/example/taxilink/internal/models"
	"github.com/example/taxilink/internal/observability"
	"github.com/example/taxilink/internal/storage"
)

var ErrDriverNotFound = errors.New("driver not found")

// Registry is the in-memory driver collection, written through to the store
// after every mutation. Insertion order is preserved.
type Registry struct {
	mu      sync.RWMutex
	drivers []models.Driver
	ids     *models.IDSource
	store   storage.Store
	log     *slog.Logger
}

// Load restores the drivers from s, falling back to the built-in data set.
func Load(ctx context.Context, s storage.Store, log *slog.Logger) *Registry {
	log = logging.OrDiscard(log)
	drivers := storage.LoadOr(ctx, s, storage.KeyDrivers, models.DefaultDrivers(), log)
	r := &Registry{drivers: drivers, ids: models.NewIDSource(0), store: s, log: log}
	for _, d := range drivers {
		r.ids.Observe(d.ID)
	}
	r.updateGauge()
	return r
}

// WithIDs swaps the id source. Used by tests that need a fixed clock.
func (r *Registry) WithIDs(ids *models.IDSource) *Registry {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, d := range r.drivers {
		ids.Observe(d.ID)
	}
	r.ids = ids
	return r
}

// Register appends a driver built from the draft. Drafts are not validated.
// A failed write is returned, but the driver stays registered in memory.
func (r *Registry) Register(ctx context.Context, draft models.DriverDraft) (models.Driver, error) {
	available := true
	if draft.Available != nil {
		available = *draft.Available
	}
	r.mu.Lock()
	d := models.Driver{
		ID:        r.ids.Next(),
		Name:      draft.Name,
		Rating:    draft.Rating,
		Phone:     draft.Phone,
		Distance:  draft.Distance,
		ETA:       draft.ETA,
		Price:     draft.Price,
		Car:       draft.Car,
		Available: available,
	}
	r.drivers = append(r.drivers, d)
	err := r.persistLocked(ctx)
	r.mu.Unlock()

	observability.DriversRegistered.Inc()
	r.updateGauge()
	r.log.Info("driver registered", "driver_id", d.ID, "available", d.Available)
	return d, err
}

// SetAvailable toggles the one mutable driver field.
func (r *Registry) SetAvailable(ctx context.Context, id int64, available bool) (models.Driver, error) {
	r.mu.Lock()
	idx := r.indexLocked(id)
	if idx < 0 {
		r.mu.Unlock()
		return models.Driver{}, ErrDriverNotFound
	}
	r.drivers[idx].Available = available
	d := r.drivers[idx]
	err := r.persistLocked(ctx)
	r.mu.Unlock()

	r.updateGauge()
	r.log.Info("driver availability changed", "driver_id", id, "available", available)
	return d, err
}

// ListAvailable returns available drivers in insertion order. It is
// recomputed on every call.
func (r *Registry) ListAvailable() []models.Driver {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]models.Driver, 0, len(r.drivers))
	for _, d := range r.drivers {
		if d.Available {
			out = append(out, d)
		}
	}
	return out
}

func (r *Registry) All() []models.Driver {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]models.Driver(nil), r.drivers...)
}

func (r *Registry) Get(id int64) (models.Driver, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if idx := r.indexLocked(id); idx >= 0 {
		return r.drivers[idx], true
	}
	return models.Driver{}, false
}

func (r *Registry) indexLocked(id int64) int {
	for i, d := range r.drivers {
		if d.ID == id {
			return i
		}
	}
	return -1
}

func (r *Registry) persistLocked(ctx context.Context) error {
	if err := storage.SaveJSON(ctx, r.store, storage.KeyDrivers, r.drivers); err != nil {
		r.log.Error("persist drivers failed", "error", err)
		return err
	}
	return nil
}

func (r *Registry) updateGauge() {
	observability.DriversAvailable.Set(float64(len(r.ListAvailable())))
}
