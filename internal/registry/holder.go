package registry

import (
	"sync/atomic"
)

// Holder provides atomic access to the current catalog. Readers never block
// and always observe a fully-loaded catalog; Swap replaces the whole catalog
// at once.
type Holder struct {
	current atomic.Pointer[Catalog]
}

// NewHolder creates a holder with an initial catalog.
func NewHolder(c *Catalog) *Holder {
	h := &Holder{}
	h.current.Store(c)
	return h
}

// Current returns the active catalog.
func (h *Holder) Current() *Catalog {
	return h.current.Load()
}

// Swap installs a new catalog and returns the previous one.
func (h *Holder) Swap(c *Catalog) *Catalog {
	return h.current.Swap(c)
}
