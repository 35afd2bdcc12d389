// Package columns assigns every (device, load type) pair a stable column in
// the per-load-type output rows.
package columns

import (
	"fmt"
	"sync"

	"github.com/kilianp07/lpgsim/core/model"
)

// ErrColumnsFrozen is returned when a new column is requested for a load type
// that already emitted rows.
var ErrColumnsFrozen = fmt.Errorf("%w: column layout frozen", model.ErrConfigIntegrity)

// Entry describes one output column.
type Entry struct {
	Key          model.ColumnKey
	Column       int
	Name         string
	LocationName string
	HouseholdKey string
	Category     string
	LoadType     model.LoadType
	Device       model.Device
}

type loadTypeColumns struct {
	loadType model.LoadType
	byKey    map[model.ColumnKey]int
	entries  []Entry
	frozen   bool
}

// Registry maps column keys to column indices, partitioned by load type.
// Indices are assigned in registration order and never change.
type Registry struct {
	mu    sync.RWMutex
	byLT  map[string]*loadTypeColumns
	order []string
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{byLT: make(map[string]*loadTypeColumns)}
}

// Register assigns a column to dev for lt. Registering an existing key
// returns its entry unchanged. The boolean reports whether lt was seen for
// the first time.
func (r *Registry) Register(lt model.LoadType, dev model.Device) (Entry, bool, error) {
	key := model.NewColumnKey(dev, lt.GUID)
	return r.RegisterKey(lt, key, dev)
}

// RegisterKey is Register for a pre-built key. The key must have been built
// for lt.
func (r *Registry) RegisterKey(lt model.LoadType, key model.ColumnKey, dev model.Device) (Entry, bool, error) {
	if !key.MatchesLoadType(lt) {
		return Entry{}, false, model.NewIntegrityError("column key", dev.Name,
			fmt.Sprintf("load type guid %s does not match load type %s (%s)", key.LoadTypeGUID, lt.Name, lt.GUID))
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	cols, ok := r.byLT[lt.GUID]
	isNew := !ok
	if !ok {
		cols = &loadTypeColumns{loadType: lt, byKey: make(map[model.ColumnKey]int)}
		r.byLT[lt.GUID] = cols
		r.order = append(r.order, lt.GUID)
	}
	if idx, ok := cols.byKey[key]; ok {
		return cols.entries[idx], isNew, nil
	}
	if cols.frozen {
		return Entry{}, false, fmt.Errorf("%w: %s for load type %s", ErrColumnsFrozen, dev.Name, lt.Name)
	}
	e := Entry{
		Key:          key,
		Column:       len(cols.entries),
		Name:         dev.Name,
		LocationName: dev.LocationName,
		HouseholdKey: dev.HouseholdKey,
		Category:     dev.CategoryName,
		LoadType:     lt,
		Device:       dev,
	}
	cols.byKey[key] = e.Column
	cols.entries = append(cols.entries, e)
	return e, isNew, nil
}

// Column returns the column of key within the rows of the given load type.
func (r *Registry) Column(loadTypeGUID string, key model.ColumnKey) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cols, ok := r.byLT[loadTypeGUID]
	if !ok {
		return 0, model.NewIntegrityError("load type", loadTypeGUID, "no devices registered")
	}
	idx, ok := cols.byKey[key]
	if !ok {
		return 0, model.NewIntegrityError("device", key.DeviceInstanceGUID,
			fmt.Sprintf("not registered for load type %s", cols.loadType.Name))
	}
	return idx, nil
}

// IsRegistered reports whether key owns a column for the load type.
func (r *Registry) IsRegistered(loadTypeGUID string, key model.ColumnKey) bool {
	_, err := r.Column(loadTypeGUID, key)
	return err == nil
}

// ColumnCount returns the number of columns of a load type.
func (r *Registry) ColumnCount(loadTypeGUID string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if cols, ok := r.byLT[loadTypeGUID]; ok {
		return len(cols.entries)
	}
	return 0
}

// Freeze prevents new columns for the load type. Existing keys can still be
// re-registered.
func (r *Registry) Freeze(loadTypeGUID string) {
	r.mu.Lock()
	if cols, ok := r.byLT[loadTypeGUID]; ok {
		cols.frozen = true
	}
	r.mu.Unlock()
}

// Entries returns the columns of a load type in column order.
func (r *Registry) Entries(loadTypeGUID string) []Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cols, ok := r.byLT[loadTypeGUID]
	if !ok {
		return nil
	}
	return append([]Entry(nil), cols.entries...)
}

// LoadTypes returns the registered load types in first-seen order.
func (r *Registry) LoadTypes() []model.LoadType {
	r.mu.RLock()
	defer r.mu.RUnlock()
	res := make([]model.LoadType, 0, len(r.order))
	for _, guid := range r.order {
		res = append(res, r.byLT[guid].loadType)
	}
	return res
}
