package broker

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"ecommerce-platform/internal/models"
)

// HandlerFunc handles one decoded event
type HandlerFunc func(ctx context.Context, ev models.Event) error

// Router maps event kinds to handlers. Every known kind must be either handled
// or explicitly ignored before the router is used by a Dispatcher.
type Router struct {
	handlers map[models.EventKind]HandlerFunc
	ignored  map[models.EventKind]bool
	errs     []error
}

// NewRouter creates an empty router
func NewRouter() *Router {
	return &Router{
		handlers: make(map[models.EventKind]HandlerFunc),
		ignored:  make(map[models.EventKind]bool),
	}
}

// On registers fn for the event variant E. The kind is taken from E itself so a
// handler can never be wired to the wrong payload type.
func On[E models.Event](r *Router, fn func(context.Context, E) error) *Router {
	var zero E
	kind := zero.Kind()

	switch {
	case !kind.Known():
		r.errs = append(r.errs, fmt.Errorf("cannot route %T: not a known event kind", zero))
		return r
	case r.handlers[kind] != nil:
		r.errs = append(r.errs, fmt.Errorf("duplicate handler for %s", kind))
		return r
	case r.ignored[kind]:
		r.errs = append(r.errs, fmt.Errorf("%s is both handled and ignored", kind))
		return r
	}

	r.handlers[kind] = func(ctx context.Context, ev models.Event) error {
		typed, ok := ev.(E)
		if !ok {
			return fmt.Errorf("handler for %s received %T", kind, ev)
		}
		return fn(ctx, typed)
	}
	return r
}

// Ignore marks kinds the service deliberately does not react to
func (r *Router) Ignore(kinds ...models.EventKind) *Router {
	for _, k := range kinds {
		if r.handlers[k] != nil {
			r.errs = append(r.errs, fmt.Errorf("%s is both handled and ignored", k))
			continue
		}
		r.ignored[k] = true
	}
	return r
}

// IgnoreRest ignores every known kind that has no handler yet
func (r *Router) IgnoreRest() *Router {
	for _, k := range models.AllEventKinds {
		if r.handlers[k] == nil {
			r.ignored[k] = true
		}
	}
	return r
}

// Validate fails if registration went wrong or a known kind is unaccounted for
func (r *Router) Validate() error {
	errs := append([]error(nil), r.errs...)

	var missing []string
	for _, k := range models.AllEventKinds {
		if r.handlers[k] == nil && !r.ignored[k] {
			missing = append(missing, string(k))
		}
	}
	if len(missing) > 0 {
		errs = append(errs, fmt.Errorf("no handler or ignore rule for: %s", strings.Join(missing, ", ")))
	}
	return errors.Join(errs...)
}

// Handles reports whether a handler is registered for kind
func (r *Router) Handles(kind models.EventKind) bool {
	return r.handlers[kind] != nil
}

// Kinds returns the handled kinds in sorted order
func (r *Router) Kinds() []string {
	out := make([]string, 0, len(r.handlers))
	for k := range r.handlers {
		out = append(out, string(k))
	}
	sort.Strings(out)
	return out
}

// Route invokes the handler for ev. Unknown and ignored kinds return handled=false.
func (r *Router) Route(ctx context.Context, ev models.Event) (handled bool, err error) {
	h := r.handlers[ev.Kind()]
	if h == nil {
		return false, nil
	}

	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("handler for %s panicked: %v", ev.Kind(), rec)
		}
	}()
	return true, h(ctx, ev)
}
