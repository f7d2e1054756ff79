// SPDX-License-Identifier: MPL-2.0

package profile

import (
	"strings"
	"sync"
)

// Registry maps language names to profiles. Lookups are case-insensitive.
// It is safe for concurrent use; registration is expected only at start-up.
type Registry struct {
	mu       sync.RWMutex
	profiles map[string]Profile
	order    []string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{profiles: make(map[string]Profile)}
}

// NewDefaultRegistry creates a registry holding the built-in perl and python profiles.
func NewDefaultRegistry() *Registry {
	r := NewRegistry()
	for _, p := range Builtins() {
		// Built-ins are valid and distinct.
		_ = r.Register(p)
	}
	return r
}

// Register stores p under its lowercase name.
// It rejects invalid profiles and names that are already registered.
func (r *Registry) Register(p Profile) error {
	if err := Validate(p); err != nil {
		return err
	}
	key := normalize(p.Name())

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.profiles[key]; exists {
		return &InvalidProfileError{Name: p.Name(), Reason: "a profile with this name is already registered"}
	}
	r.profiles[key] = p
	r.order = append(r.order, key)
	return nil
}

// Lookup returns the profile registered under name, ignoring case.
func (r *Registry) Lookup(name string) (Profile, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if p, ok := r.profiles[normalize(name)]; ok {
		return p, nil
	}
	return nil, &NotFoundError{Name: name, Available: append([]string(nil), r.order...)}
}

// List returns name and image of every profile in registration order.
func (r *Registry) List() []Summary {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Summary, 0, len(r.order))
	for _, key := range r.order {
		p := r.profiles[key]
		out = append(out, Summary{Name: p.Name(), Image: p.Image()})
	}
	return out
}

// ForExtension returns the first registered profile claiming ext (".py", "py", ".PM").
func (r *Registry) ForExtension(ext string) (Profile, bool) {
	ext = normalize(ext)
	if ext == "" {
		return nil, false
	}
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, key := range r.order {
		p := r.profiles[key]
		for _, e := range p.FileExtensions() {
			if normalize(e) == ext {
				return p, true
			}
		}
	}
	return nil, false
}

func normalize(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
