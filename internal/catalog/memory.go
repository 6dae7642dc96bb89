package catalog

import (
	"context"
	"sync"

	"pos-system/internal/models"
)

// Memory is an in-memory catalog store used by tests and local seeding
type Memory struct {
	mu      sync.RWMutex
	items   map[int64]models.MenuItem
	tops    map[int64]models.Topping
	options map[int64]models.AddonOption
}

// NewMemory creates an empty in-memory catalog
func NewMemory() *Memory {
	return &Memory{
		items:   make(map[int64]models.MenuItem),
		tops:    make(map[int64]models.Topping),
		options: make(map[int64]models.AddonOption),
	}
}

// PutMenuItem stores or replaces a menu item
func (m *Memory) PutMenuItem(item models.MenuItem) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[item.ID] = item
}

// PutTopping stores or replaces a topping
func (m *Memory) PutTopping(topping models.Topping) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tops[topping.ID] = topping
}

// PutAddonOption stores or replaces an add-on option
func (m *Memory) PutAddonOption(option models.AddonOption) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.options[option.ID] = option
}

func (m *Memory) MenuItem(ctx context.Context, id int64) (*models.MenuItem, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	item, ok := m.items[id]
	if !ok {
		return nil, &models.ReferenceNotFoundError{Entity: "menu item", ID: id}
	}
	return &item, nil
}

func (m *Memory) Topping(ctx context.Context, id int64) (*models.Topping, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	topping, ok := m.tops[id]
	if !ok {
		return nil, &models.ReferenceNotFoundError{Entity: "topping", ID: id}
	}
	return &topping, nil
}

func (m *Memory) AddonOption(ctx context.Context, id int64) (*models.AddonOption, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	option, ok := m.options[id]
	if !ok {
		return nil, &models.ReferenceNotFoundError{Entity: "addon option", ID: id}
	}
	return &option, nil
}
