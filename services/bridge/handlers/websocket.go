// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package handlers contains the Gin handlers binding HTTP endpoints to the
// bridge hub: websocket upgrades for the role and sink channels plus the
// plain JSON query endpoints.
package handlers

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/AleutianAI/AerialBridge/services/bridge/hub"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		// Installation clients connect from whatever host serves their
		// assets; the hub has no auth surface.
		return true
	},
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
}

// HandleRoleSocket upgrades a role channel connection. The channel path
// parameter selects the role, aliases included; unknown channels are
// rejected before the upgrade.
func HandleRoleSocket(h *hub.Hub) gin.HandlerFunc {
	return func(c *gin.Context) {
		role, ok := hub.ResolveChannel(c.Param("channel"))
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "unknown channel"})
			return
		}
		serveSocket(h, role, c)
	}
}

// HandleSinkSocket upgrades a sink (TouchDesigner-class) connection on the
// single global sink channel.
func HandleSinkSocket(h *hub.Hub) gin.HandlerFunc {
	return func(c *gin.Context) {
		serveSocket(h, hub.RoleSink, c)
	}
}

// serveSocket runs one connection session: upgrade, attach, pump inbound
// frames into the hub until the peer goes away, detach.
func serveSocket(h *hub.Hub, role hub.Role, c *gin.Context) {
	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		slog.Error("failed to upgrade the websocket", "role", role, "error", err)
		return
	}
	defer ws.Close()

	sess := h.Attach(role, ws)
	if sess == nil {
		// Hub is shutting down.
		return
	}
	defer h.Detach(sess)

	for {
		_, raw, err := ws.ReadMessage()
		if err != nil {
			slog.Info("websocket client disconnected",
				"conn_id", sess.ID(), "role", role, "error", err.Error())
			return
		}
		h.HandleMessage(sess, raw)
	}
}
