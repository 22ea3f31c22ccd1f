package intercept

import (
	"errors"
	"sync"

	"github.com/sarchlab/minstrel/event"
	"github.com/sarchlab/minstrel/hooking"
)

type deferredWrap struct {
	id       string
	filter   event.Filter
	observer hooking.Observer
}

// Deferred keeps the wrap requests whose target does not exist yet. The
// requests are retried by RetryAll, which the code loading new types calls
// once the types are declared.
type Deferred struct {
	lock      sync.Mutex
	catalog   *Catalog
	engine    *Engine
	pending   []deferredWrap
	wildcards []hooking.Observer
}

// NewDeferred creates a Deferred that resolves names in catalog and wraps
// with engine.
func NewDeferred(catalog *Catalog, engine *Engine) *Deferred {
	return &Deferred{
		catalog: catalog,
		engine:  engine,
	}
}

// WrapByName wraps the type, or the type#operation, named by id. It returns
// true if the target exists and has been wrapped now. Otherwise the request
// is kept and retried later. The wildcard ":all:" wraps every type that
// exists now and every type declared later; it is never resolved.
func (d *Deferred) WrapByName(id string, obs hooking.Observer) (bool, error) {
	if obs == nil {
		panic("observer must not be nil")
	}

	if id == event.Wildcard {
		d.lock.Lock()
		d.wildcards = append(d.wildcards, obs)
		d.lock.Unlock()

		return false, d.wrapAll([]hooking.Observer{obs})
	}

	filter, err := event.ParseTarget(id)
	if err != nil {
		return false, err
	}

	if t, ok := d.catalog.Lookup(filter.Target); ok {
		return true, d.engine.Wrap(t, obs, filter.Operation)
	}

	d.lock.Lock()
	d.pending = append(d.pending, deferredWrap{
		id:       id,
		filter:   filter,
		observer: obs,
	})
	d.lock.Unlock()

	return false, nil
}

// RetryAll tries all the pending requests again. Resolved requests are
// removed. Then every type that is not wrapped yet is wrapped for each
// wildcard request. The errors of all the wraps are joined.
func (d *Deferred) RetryAll() error {
	type resolved struct {
		t   *Type
		req deferredWrap
	}

	d.lock.Lock()
	var ready []resolved
	remaining := d.pending[:0]

	for _, req := range d.pending {
		t, ok := d.catalog.Lookup(req.filter.Target)
		if !ok {
			remaining = append(remaining, req)
			continue
		}

		ready = append(ready, resolved{t: t, req: req})
	}

	clear(d.pending[len(remaining):])
	d.pending = remaining
	wildcards := append([]hooking.Observer(nil), d.wildcards...)
	d.lock.Unlock()

	var errs []error
	for _, r := range ready {
		err := d.engine.Wrap(r.t, r.req.observer, r.req.filter.Operation)
		if err != nil {
			errs = append(errs, err)
		}
	}

	if err := d.wrapAll(wildcards); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

func (d *Deferred) wrapAll(observers []hooking.Observer) error {
	var errs []error

	for _, obs := range observers {
		for _, t := range d.catalog.Types() {
			if err := d.engine.Wrap(t, obs, ""); err != nil {
				errs = append(errs, err)
			}
		}
	}

	return errors.Join(errs...)
}

// Pending returns the identifiers of the requests that are not resolved
// yet. Wildcard requests are listed too, since they never resolve.
func (d *Deferred) Pending() []string {
	d.lock.Lock()
	defer d.lock.Unlock()

	ids := make([]string, 0, len(d.pending)+len(d.wildcards))
	for _, req := range d.pending {
		ids = append(ids, req.id)
	}

	for range d.wildcards {
		ids = append(ids, event.Wildcard)
	}

	return ids
}
