package entity

import (
	"fmt"
	"sort"

	"cell-annotator/internal/errs"
	"cell-annotator/pkg/geometry"
)

// Manager owns the entities of one image and keeps their ids unique.
// It is not safe for concurrent use; callers serialise writes.
type Manager struct {
	entities map[int]*Entity
	ids      idAllocator
}

// NewManager creates an empty manager.
func NewManager() *Manager {
	return &Manager{
		entities: make(map[int]*Entity),
		ids:      newIDAllocator(),
	}
}

// AddEntity creates an entity with the smallest positive id not in use.
func (m *Manager) AddEntity() *Entity {
	e := newEntity(m.ids.allocate())
	m.entities[e.id] = e
	return e
}

// AddEntityWithID creates an entity with the given id. It fails with
// ErrInvalidID for id <= 0 and ErrDuplicateID when the id is taken.
func (m *Manager) AddEntityWithID(id int) (*Entity, error) {
	if err := m.checkFree(id); err != nil {
		return nil, err
	}
	m.ids.take(id)
	e := newEntity(id)
	m.entities[id] = e
	return e, nil
}

// Reserve marks id as used without creating an entity, so it is never handed
// out by AddEntity. Documents loaded with historical records stripped reserve
// their ids this way.
func (m *Manager) Reserve(id int) error {
	if err := m.checkFree(id); err != nil {
		return err
	}
	m.ids.take(id)
	return nil
}

func (m *Manager) checkFree(id int) error {
	if id <= 0 {
		return fmt.Errorf("%w: %d", errs.ErrInvalidID, id)
	}
	if m.ids.inUse(id) {
		return fmt.Errorf("%w: %d", errs.ErrDuplicateID, id)
	}
	return nil
}

// NextID returns the id the next AddEntity call would use.
func (m *Manager) NextID() int {
	return m.ids.peek()
}

// Drop removes an entity and frees its id.
func (m *Manager) Drop(id int) error {
	if _, ok := m.entities[id]; !ok {
		return fmt.Errorf("%w: %d", errs.ErrNotFound, id)
	}
	delete(m.entities, id)
	m.ids.release(id)
	return nil
}

// Get returns the entity with the given id.
func (m *Manager) Get(id int) (*Entity, bool) {
	e, ok := m.entities[id]
	return e, ok
}

// Len returns the number of entities, historical ones included.
func (m *Manager) Len() int { return len(m.entities) }

// ActiveLen returns the number of active entities.
func (m *Manager) ActiveLen() int {
	n := 0
	for _, e := range m.entities {
		if !e.historical {
			n++
		}
	}
	return n
}

// Entities returns the active entities in ascending id order.
func (m *Manager) Entities() []*Entity {
	return m.sorted(func(e *Entity) bool { return !e.historical })
}

// AllEntities returns every entity, historical ones included, in ascending
// id order.
func (m *Manager) AllEntities() []*Entity {
	return m.sorted(func(*Entity) bool { return true })
}

func (m *Manager) sorted(keep func(*Entity) bool) []*Entity {
	out := make([]*Entity, 0, len(m.entities))
	for _, e := range m.entities {
		if keep(e) {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].id < out[j].id })
	return out
}

// ContourPair is one input of GenerateFromContours.
type ContourPair struct {
	ID       int
	Polygons []geometry.Polygon
}

// GenerateFromContours adds one entity per pair, keeping each polygon list
// verbatim as the entity contours. Either every pair is added or none is.
func (m *Manager) GenerateFromContours(pairs []ContourPair) ([]*Entity, error) {
	seen := make(map[int]bool, len(pairs))
	built := make([]*Entity, 0, len(pairs))
	for _, p := range pairs {
		if err := m.checkFree(p.ID); err != nil {
			return nil, err
		}
		if seen[p.ID] {
			return nil, fmt.Errorf("%w: %d", errs.ErrDuplicateID, p.ID)
		}
		seen[p.ID] = true

		e := newEntity(p.ID)
		if err := e.FromContours(p.Polygons); err != nil {
			return nil, fmt.Errorf("entity %d: %w", p.ID, err)
		}
		built = append(built, e)
	}
	for _, e := range built {
		m.ids.take(e.id)
		m.entities[e.id] = e
	}
	return built, nil
}

// Snapshot is the stored form of one entity, as read from a document.
type Snapshot struct {
	ID       int
	Polygons []geometry.Polygon
	// Verbatim keeps Polygons as the contour view (FromContours) instead of
	// re-tracing them from the raster (FromPolygon).
	Verbatim     bool
	Historical   bool
	Predecessors []int
	Attributes   Attributes
}

// Restore adds an entity from a snapshot, historical flag included.
func (m *Manager) Restore(s Snapshot) (*Entity, error) {
	if err := m.checkFree(s.ID); err != nil {
		return nil, err
	}
	e := newEntity(s.ID)
	var err error
	if s.Verbatim {
		err = e.FromContours(s.Polygons)
	} else {
		err = e.FromPolygon(s.Polygons)
	}
	if err != nil {
		return nil, fmt.Errorf("entity %d: %w", s.ID, err)
	}
	if len(s.Predecessors) > 0 {
		e.predecessors = append([]int(nil), s.Predecessors...)
		sort.Ints(e.predecessors)
	}
	for k, v := range s.Attributes {
		e.attrs[k] = v
	}
	e.historical = s.Historical

	m.ids.take(e.id)
	m.entities[e.id] = e
	return e, nil
}
