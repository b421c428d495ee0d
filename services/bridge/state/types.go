// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package state owns the canonical shared world state of the bridge: the
// three named partitions (desk, cel, control), the aerial registry of
// connected mobile devices, and the sanitizers that merge untrusted partial
// updates into them.
//
// # Description
//
// Every value stored here is guaranteed to be inside its declared domain at
// all times. Incoming updates are merged field by field: a field outside its
// domain keeps the currently stored value, it never resets to a hardcoded
// default and never invalidates the other fields of the same update.
//
// # Thread Safety
//
// Store is safe for concurrent use. Registry and the sanitize functions are
// not; they are only reached through Store, which holds the lock.
package state

// Canonical partition names as they appear on the wire.
const (
	PartDesk    = "desk"
	PartCel     = "cel"
	PartControl = "control"

	// PartAerials is the implicit partition mutated by registry
	// join/update/leave. It is a broadcast name only; it cannot be
	// written through ApplyUpdate.
	PartAerials = "aerials"
)

// Accepted values for the desk partition enums.
const (
	TimeDay        = "day"
	TimeNight      = "night"
	VantageInside  = "inside"
	VantageOutside = "outside"
)

// RGB is a color with each channel clamped to [0,255].
type RGB struct {
	R int `json:"r"`
	G int `json:"g"`
	B int `json:"b"`
}

// Desk is the desktop display partition.
//
//   - Time: "day" or "night"
//   - Season: 1..4
//   - Vantage: "inside" or "outside"
type Desk struct {
	Time    string `json:"time"`
	Season  int    `json:"season"`
	Vantage string `json:"vantage"`
}

// Control is the animation parameter partition driven by the control panel.
//
//   - Speed, Density: [0,1]
//   - Color: RGB
type Control struct {
	Speed   float64 `json:"speed"`
	Density float64 `json:"density"`
	Color   RGB     `json:"color"`
}

// Cel holds the default color assigned to newly joined mobile devices.
// Changing it never propagates to aerials that already exist.
type Cel struct {
	UserColor RGB `json:"user_color"`
}

// Aerial is one connected mobile device: an opaque connection-scoped id and
// its current color.
type Aerial struct {
	ID    string `json:"id"`
	Color RGB    `json:"color"`
}

// AerialsView is the derived registry view embedded in snapshots. Devices is
// omitted for consumer classes that only need the count.
type AerialsView struct {
	Count   int      `json:"count"`
	Devices []Aerial `json:"devices,omitempty"`
}

// Snapshot is a point-in-time read-only composite of all partitions plus the
// aerial registry view. All fields are copies; mutating a Snapshot never
// affects the store.
type Snapshot struct {
	Desk    Desk        `json:"desk"`
	Cel     Cel         `json:"cel"`
	Control Control     `json:"control"`
	Aerials AerialsView `json:"aerials"`
}

// DefaultDesk returns the desk partition boot value.
func DefaultDesk() Desk {
	return Desk{Time: TimeDay, Season: 1, Vantage: VantageOutside}
}

// DefaultCel returns the cel partition boot value.
func DefaultCel() Cel {
	return Cel{UserColor: RGB{R: 255, G: 255, B: 255}}
}

// DefaultControl returns the control partition boot value.
func DefaultControl() Control {
	return Control{Speed: 0.5, Density: 0.5, Color: RGB{R: 255, G: 255, B: 255}}
}
