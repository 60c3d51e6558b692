// Package registry holds the supported image collections, their validity
// windows and the per-sensor exclusion table applied during builds.
package registry

import (
	"sort"

	"github.com/rotisserie/eris"

	"github.com/dgketchum/openet-ptjpl/internal/dateutil"
	"github.com/dgketchum/openet-ptjpl/internal/landsat"
)

// Collection describes one source image collection.
type Collection struct {
	ID string
	// Sensor is the scene id prefix, e.g. LC08.
	Sensor string
	// Validity is the range during which the collection holds usable scenes.
	Validity dateutil.Window
	// CloudProperty is the scene metadata field compared against the
	// request's cloud cover maximum.
	CloudProperty string
	// Bands lists the raw source bands.
	Bands []string
	// Exclusions remove scenes from builds regardless of the request.
	Exclusions []Exclusion
}

// Exclusion drops every scene acquired inside Window. When Tiles is set
// only scenes on those WRS-2 path/rows (e.g. "044033") are dropped, and an
// unbounded Window covers the whole record.
type Exclusion struct {
	Window dateutil.Window
	Tiles  []string
	Reason string
}

// Platform returns the spacecraft name for the collection's sensor.
func (c *Collection) Platform() string {
	return landsat.SceneID{Sensor: c.Sensor}.Platform()
}

// Overlaps reports whether the collection's validity window intersects w.
func (c *Collection) Overlaps(w dateutil.Window) bool {
	return c.Validity.Overlaps(w)
}

func (c *Collection) clone() *Collection {
	out := *c
	out.Bands = append([]string(nil), c.Bands...)
	out.Exclusions = nil
	for _, ex := range c.Exclusions {
		ex.Tiles = append([]string(nil), ex.Tiles...)
		out.Exclusions = append(out.Exclusions, ex)
	}
	return &out
}

// Registry indexes collections by id.
type Registry struct {
	collections map[string]*Collection
}

// New returns an empty registry.
func New() *Registry {
	return &Registry{collections: make(map[string]*Collection)}
}

// Add registers c. Ids must be unique.
func (r *Registry) Add(c *Collection) error {
	if c == nil || c.ID == "" {
		return eris.New("registry: collection id is required")
	}
	if _, exists := r.collections[c.ID]; exists {
		return eris.Errorf("registry: duplicate collection %q", c.ID)
	}
	r.collections[c.ID] = c.clone()
	return nil
}

// Put registers c, replacing any existing entry with the same id.
func (r *Registry) Put(c *Collection) error {
	if c == nil || c.ID == "" {
		return eris.New("registry: collection id is required")
	}
	r.collections[c.ID] = c.clone()
	return nil
}

// Get returns a copy of the collection with the given id.
func (r *Registry) Get(id string) (*Collection, bool) {
	c, ok := r.collections[id]
	if !ok {
		return nil, false
	}
	return c.clone(), true
}

// Has reports whether id is registered.
func (r *Registry) Has(id string) bool {
	_, ok := r.collections[id]
	return ok
}

// IDs returns all registered ids in lexical order.
func (r *Registry) IDs() []string {
	ids := make([]string, 0, len(r.collections))
	for id := range r.collections {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// All returns copies of every collection in id order.
func (r *Registry) All() []*Collection {
	out := make([]*Collection, 0, len(r.collections))
	for _, id := range r.IDs() {
		out = append(out, r.collections[id].clone())
	}
	return out
}

// Count returns the number of registered collections.
func (r *Registry) Count() int {
	return len(r.collections)
}
