package realtime

import "fmt"

// Registry maps each domain to at most one handler. Domains without a handler
// get no channel.
type Registry struct {
	handlers map[Domain]Handler
}

func NewRegistry() *Registry {
	return &Registry{handlers: make(map[Domain]Handler)}
}

// Register sets the handler for d, replacing any previous one.
func (r *Registry) Register(d Domain, h Handler) error {
	if !d.Valid() {
		return fmt.Errorf("register handler: unknown domain %q", d)
	}
	if h == nil {
		return fmt.Errorf("register handler for %s: nil handler", d)
	}
	r.handlers[d] = h
	return nil
}

// Handler returns the handler for d, if any.
func (r *Registry) Handler(d Domain) (Handler, bool) {
	if r == nil {
		return nil, false
	}
	h, ok := r.handlers[d]
	return h, ok
}

// Len returns the number of registered domains.
func (r *Registry) Len() int {
	if r == nil {
		return 0
	}
	return len(r.handlers)
}
