// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/AleutianAI/AerialBridge/services/bridge/hub"
	"github.com/AleutianAI/AerialBridge/services/bridge/state"
)

// ListAerials returns the on-demand aerial listing: count plus the full
// device list, regardless of channel truncation policy.
func ListAerials(h *hub.Hub) gin.HandlerFunc {
	return func(c *gin.Context) {
		view := h.Store().Aerials()
		devices := view.Devices
		if devices == nil {
			// An empty list reads better than null for API consumers.
			devices = []state.Aerial{}
		}
		c.JSON(http.StatusOK, gin.H{"count": view.Count, "devices": devices})
	}
}
