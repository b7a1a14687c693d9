package background

import (
	"fmt"
	"sync"
)

// MenuItem is one context-menu entry
type MenuItem struct {
	ID       string
	Title    string
	Contexts []string
}

// Menus is the host's context-menu API
type Menus interface {
	Create(item MenuItem) error
	Remove(id string) error
}

// MenuRegistry keeps context-menu entries in creation order. Like the
// browser API it refuses to create an id twice.
type MenuRegistry struct {
	mu    sync.Mutex
	items []MenuItem
}

// NewMenuRegistry creates an empty registry
func NewMenuRegistry() *MenuRegistry {
	return &MenuRegistry{}
}

// Create adds item, failing if its id is already registered
func (r *MenuRegistry) Create(item MenuItem) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.items {
		if existing.ID == item.ID {
			return fmt.Errorf("cannot create item with duplicate id %s", item.ID)
		}
	}
	r.items = append(r.items, item)
	return nil
}

// Remove deletes the item with id, failing if there is none
func (r *MenuRegistry) Remove(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, existing := range r.items {
		if existing.ID == id {
			r.items = append(r.items[:i], r.items[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("cannot find menu item with id %s", id)
}

// Items returns a copy of the registered entries
func (r *MenuRegistry) Items() []MenuItem {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]MenuItem, len(r.items))
	copy(out, r.items)
	return out
}
