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

import "sync"

// Store is the single source of truth for the shared world state: the three
// named partitions plus the aerial registry.
//
// # Description
//
// ApplyUpdate runs the partition sanitizer against the stored value and
// replaces it atomically. Snapshot returns a consistent composite taken at a
// single instant; there are no torn reads between partitions and the
// registry because everything lives behind one lock.
//
// # Thread Safety
//
// All methods are safe for concurrent use. Callers that need a mutation and
// the snapshot it produced to be adjacent in the broadcast order serialize
// the mutate-then-snapshot sequence themselves (the hub does this behind its
// own lock).
type Store struct {
	mu       sync.RWMutex
	desk     Desk
	cel      Cel
	control  Control
	registry *Registry
}

// NewStore returns a store holding the default boot state and an empty
// registry.
func NewStore() *Store {
	return &Store{
		desk:     DefaultDesk(),
		cel:      DefaultCel(),
		control:  DefaultControl(),
		registry: NewRegistry(),
	}
}

// ApplyUpdate sanitizes incoming against the named partition and stores the
// result. Reports whether any field actually changed. Unknown partition
// names and non-object payloads change nothing.
func (s *Store) ApplyUpdate(part string, incoming any) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch part {
	case PartDesk:
		next := SanitizeDesk(s.desk, incoming)
		changed := next != s.desk
		s.desk = next
		return changed
	case PartCel:
		next := SanitizeCel(s.cel, incoming)
		changed := next != s.cel
		s.cel = next
		return changed
	case PartControl:
		next := SanitizeControl(s.control, incoming)
		changed := next != s.control
		s.control = next
		return changed
	default:
		return false
	}
}

// Join registers a new aerial for the given connection id, seeded from the
// current cel default color.
func (s *Store) Join(id string) (Aerial, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.registry.Join(id, s.cel.UserColor)
}

// UpdateAerial replaces the color of the aerial owned by id. The incoming
// value is either a hex color string or an {r,g,b} object; object channels
// merge against the aerial's current color, a malformed hex string changes
// nothing. Returns the resolved aerial and whether the color changed.
func (s *Store) UpdateAerial(id string, incoming any) (Aerial, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, exists := s.registry.Get(id)
	if !exists {
		return Aerial{}, false, ErrUnknownEntity
	}

	next := cur.Color
	switch v := incoming.(type) {
	case string:
		if c, ok := ParseHexColor(v); ok {
			next = c
		}
	default:
		next = SanitizeRGB(cur.Color, incoming)
	}

	if next == cur.Color {
		return cur, false, nil
	}
	a, err := s.registry.UpdateColor(id, next)
	return a, err == nil, err
}

// Leave removes the aerial owned by id. Idempotent; reports whether an entry
// was removed.
func (s *Store) Leave(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.registry.Leave(id)
}

// Snapshot returns a consistent composite of all partitions and the registry
// view. When includeDevices is false the view carries only the count.
func (s *Store) Snapshot(includeDevices bool) Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	view := AerialsView{Count: s.registry.Count()}
	if includeDevices {
		view.Devices = s.registry.List()
	}
	return Snapshot{
		Desk:    s.desk,
		Cel:     s.cel,
		Control: s.control,
		Aerials: view,
	}
}

// Aerials returns the full registry view, devices included. Backs the
// on-demand listing endpoint.
func (s *Store) Aerials() AerialsView {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return AerialsView{Count: s.registry.Count(), Devices: s.registry.List()}
}
