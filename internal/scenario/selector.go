package scenario

import "sync"

// Selector switches between scenarios, keeping at most one instance alive.
type Selector struct {
	registry *Registry
	opts     []Option

	mu     sync.Mutex
	active *Instance
}

// NewSelector creates a selector over registry. opts are applied to every
// instance it builds.
func NewSelector(registry *Registry, opts ...Option) *Selector {
	return &Selector{registry: registry, opts: opts}
}

// Registry returns the registry the selector draws from.
func (s *Selector) Registry() *Registry {
	return s.registry
}

// Select makes id the active scenario. The previously active instance is
// closed first, so none of its pending cues can fire afterwards.
func (s *Selector) Select(id string) (*Instance, error) {
	def, err := s.registry.Get(id)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active != nil {
		s.active.Close()
	}
	s.active = NewInstance(def, s.opts...)
	return s.active, nil
}

// Active returns the active instance, or nil before the first Select.
func (s *Selector) Active() *Instance {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// Close tears down the active instance.
func (s *Selector) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active != nil {
		s.active.Close()
		s.active = nil
	}
}
