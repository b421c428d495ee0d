// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package state

// Registry maps connection ids to aerial records. It is a plain index with
// O(1) lookup, insert and delete; entries are owned by the connection
// session that created them.
//
// Registry is not safe for concurrent use on its own. The Store reaches it
// under its lock; tests may use it directly from one goroutine.
type Registry struct {
	byID  map[string]Aerial
	order []string
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{byID: make(map[string]Aerial)}
}

// Join registers a new aerial seeded with the given color. Returns
// ErrDuplicateEntity if the id is already present.
func (r *Registry) Join(id string, color RGB) (Aerial, error) {
	if _, exists := r.byID[id]; exists {
		return Aerial{}, ErrDuplicateEntity
	}
	a := Aerial{ID: id, Color: color}
	r.byID[id] = a
	r.order = append(r.order, id)
	return a, nil
}

// UpdateColor replaces the color of an existing aerial. Returns
// ErrUnknownEntity if the id is not registered.
func (r *Registry) UpdateColor(id string, color RGB) (Aerial, error) {
	a, exists := r.byID[id]
	if !exists {
		return Aerial{}, ErrUnknownEntity
	}
	a.Color = color
	r.byID[id] = a
	return a, nil
}

// Get returns the aerial for an id.
func (r *Registry) Get(id string) (Aerial, bool) {
	a, exists := r.byID[id]
	return a, exists
}

// Leave removes an aerial. Removing an absent id is a no-op so disconnect
// handling stays idempotent against duplicate notifications. Reports whether
// an entry was actually removed.
func (r *Registry) Leave(id string) bool {
	if _, exists := r.byID[id]; !exists {
		return false
	}
	delete(r.byID, id)
	for i, oid := range r.order {
		if oid == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return true
}

// List returns a copy of all aerials. Enumeration follows insertion order,
// but callers must not rely on that; it is not part of the contract.
func (r *Registry) List() []Aerial {
	out := make([]Aerial, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.byID[id])
	}
	return out
}

// Count returns the number of registered aerials.
func (r *Registry) Count() int {
	return len(r.byID)
}
