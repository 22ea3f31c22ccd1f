package intercept

import (
	"fmt"
	"sync"
)

// A Catalog maps type names to descriptors. Types enter the catalog when the
// code that defines them is loaded; a name that is not in the catalog does
// not exist yet.
type Catalog struct {
	lock  sync.RWMutex
	types map[string]*Type
	order []*Type
}

// NewCatalog creates an empty Catalog.
func NewCatalog() *Catalog {
	return &Catalog{
		types: make(map[string]*Type),
	}
}

// Declare adds types to the catalog. All names are checked before any type
// is added.
func (c *Catalog) Declare(types ...*Type) error {
	c.lock.Lock()
	defer c.lock.Unlock()

	seen := make(map[string]bool, len(types))
	for _, t := range types {
		if _, found := c.types[t.name]; found || seen[t.name] {
			return fmt.Errorf("%w: %s", ErrDuplicateType, t.name)
		}

		seen[t.name] = true
	}

	for _, t := range types {
		c.types[t.name] = t
		c.order = append(c.order, t)
	}

	return nil
}

// Lookup finds a type by name.
func (c *Catalog) Lookup(name string) (*Type, bool) {
	c.lock.RLock()
	defer c.lock.RUnlock()

	t, ok := c.types[name]

	return t, ok
}

// Types returns all the declared types in declaration order.
func (c *Catalog) Types() []*Type {
	c.lock.RLock()
	defer c.lock.RUnlock()

	out := make([]*Type, len(c.order))
	copy(out, c.order)

	return out
}
