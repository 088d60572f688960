package db

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/tphummel/devices/internal/models"
)

// Memory is an in-process device store with the same semantics as DB. It is
// safe for concurrent use; nothing survives a restart.
type Memory struct {
	mu      sync.RWMutex
	nextID  int64
	devices map[int64]models.Device
	now     func() time.Time
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		devices: make(map[int64]models.Device),
		now:     func() time.Time { return time.Now().UTC().Round(0) },
	}
}

func (m *Memory) Ping(ctx context.Context) error { return nil }

func (m *Memory) Close() error { return nil }

func (m *Memory) FindByID(ctx context.Context, id int64) (*models.Device, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	dev, ok := m.devices[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &dev, nil
}

func (m *Memory) FindByBrand(ctx context.Context, brand string) ([]*models.Device, error) {
	key := foldKey(brand)
	return m.filter(func(d models.Device) bool { return foldKey(d.Brand) == key }), nil
}

func (m *Memory) FindByState(ctx context.Context, state models.State) ([]*models.Device, error) {
	return m.filter(func(d models.Device) bool { return d.State == state }), nil
}

func (m *Memory) ListAllByCreationDesc(ctx context.Context) ([]*models.Device, error) {
	out := m.filter(func(models.Device) bool { return true })
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].CreationTime.Equal(out[j].CreationTime) {
			return out[i].CreationTime.After(out[j].CreationTime)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

func (m *Memory) ExistsByNameAndBrand(ctx context.Context, name, brand string) (bool, error) {
	nameKey, brandKey := foldKey(name), foldKey(brand)
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, d := range m.devices {
		if foldKey(d.Name) == nameKey && foldKey(d.Brand) == brandKey {
			return true, nil
		}
	}
	return false, nil
}

func (m *Memory) CountByState(ctx context.Context, state models.State) (int, error) {
	return len(m.filter(func(d models.Device) bool { return d.State == state })), nil
}

func (m *Memory) CountByStates(ctx context.Context) (map[models.State]int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	counts := make(map[models.State]int, 3)
	for _, s := range models.ValidStates() {
		counts[s] = 0
	}
	for _, d := range m.devices {
		counts[d.State]++
	}
	return counts, nil
}

// Save follows the same insert / compare-and-swap rules as DB.Save.
func (m *Memory) Save(ctx context.Context, dev *models.Device) (*models.Device, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := *dev
	if out.ID == 0 {
		m.nextID++
		out.ID = m.nextID
		if out.State == "" {
			out.State = models.StateAvailable
		}
		out.CreationTime = m.now()
		out.Version = 1
		m.devices[out.ID] = out
		return &out, nil
	}

	stored, ok := m.devices[out.ID]
	if !ok {
		return nil, ErrNotFound
	}
	if stored.Version != out.Version {
		return nil, ErrConcurrentModification
	}
	stored.Name = out.Name
	stored.Brand = out.Brand
	stored.State = out.State
	stored.Version++
	m.devices[out.ID] = stored
	return &stored, nil
}

func (m *Memory) Delete(ctx context.Context, dev *models.Device) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.devices[dev.ID]; !ok {
		return ErrNotFound
	}
	delete(m.devices, dev.ID)
	return nil
}

// filter returns copies of the matching devices ordered by id.
func (m *Memory) filter(keep func(models.Device) bool) []*models.Device {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []*models.Device{}
	for _, d := range m.devices {
		if keep(d) {
			d := d
			out = append(out, &d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
