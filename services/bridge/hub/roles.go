// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package hub

import "github.com/AleutianAI/AerialBridge/services/bridge/state"

// Role is the fixed category assigned to a connection when it is accepted.
// It never changes for the lifetime of the connection and governs which
// partitions the connection may mutate and which snapshot shape it receives.
type Role string

const (
	RoleDesk       Role = "desk"
	RoleMobile     Role = "mobile"
	RoleControl    Role = "control"
	RoleVisualizer Role = "visualizer"
	RoleSink       Role = "sink"
)

// channelRoles maps endpoint channel names, aliases included, to canonical
// roles. Aliasing is data resolved once at connection time; the historical
// client folder names remain reachable next to the short names.
var channelRoles = map[string]Role{
	"desk":          RoleDesk,
	"DesktopClient": RoleDesk,
	"cel":           RoleMobile,
	"mobile":        RoleMobile,
	"MobileClient":  RoleMobile,
	"control":       RoleControl,
	"Control":       RoleControl,
	"visuals":       RoleVisualizer,
	"Visuals":       RoleVisualizer,
	"visualizer":    RoleVisualizer,
}

// ResolveChannel maps an endpoint channel name to its canonical role.
func ResolveChannel(name string) (Role, bool) {
	role, ok := channelRoles[name]
	return role, ok
}

// seesDevices reports whether this consumer class receives the per-entity
// aerial list in its snapshots. Desk, control and mobile consumers only get
// the count; this bounds payload size for the high-churn channels and is a
// payload policy, not a correctness one.
func (r Role) seesDevices() bool {
	return r == RoleVisualizer || r == RoleSink
}

// mayMutate reports whether this role is authorized to write the named
// partition through the generic update path. Mobile aerial ownership is
// handled separately; visualizers are read-only.
func (r Role) mayMutate(part string) bool {
	switch r {
	case RoleDesk:
		return part == state.PartDesk
	case RoleControl:
		return part == state.PartControl
	case RoleMobile:
		return part == state.PartCel
	case RoleSink:
		return part == state.PartDesk || part == state.PartCel || part == state.PartControl
	default:
		return false
	}
}
