// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package routes

import (
	"net/http"
	"path/filepath"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/AleutianAI/AerialBridge/services/bridge/handlers"
	"github.com/AleutianAI/AerialBridge/services/bridge/hub"
)

// SetupRoutes registers every bridge endpoint on the router. staticDir is
// optional; when set, the client asset folders are served under their
// historical alias paths as well as the generic public root.
func SetupRoutes(router *gin.Engine, h *hub.Hub, staticDir string) {
	router.GET("/health", handlers.HealthCheck)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Realtime channels. Role endpoints accept aliases (/ws/desk and
	// /ws/DesktopClient are the same role); the sink channel keeps the
	// path the downstream engine dials.
	router.GET("/ws/:channel", handlers.HandleRoleSocket(h))
	router.GET("/td", handlers.HandleSinkSocket(h))

	// API version 1 group
	v1 := router.Group("/v1")
	{
		v1.GET("/aerials", handlers.ListAerials(h))
	}

	if staticDir != "" {
		router.StaticFS("/public", http.Dir(staticDir))
		router.StaticFS("/DesktopClient", http.Dir(filepath.Join(staticDir, "DesktopClient")))
		router.StaticFS("/MobileClient", http.Dir(filepath.Join(staticDir, "MobileClient")))
		router.StaticFS("/Control", http.Dir(filepath.Join(staticDir, "Control")))
		router.StaticFS("/Visuals", http.Dir(filepath.Join(staticDir, "Visuals")))
	}

	router.GET("/", indexPage)
}

// indexPage lists the live endpoints, the way the original bridge greeted
// operators pointing a browser at the root.
func indexPage(c *gin.Context) {
	c.Header("Content-Type", "text/html; charset=utf-8")
	c.String(http.StatusOK, `<h1>AerialBridge</h1>
<h3>Clients</h3>
<ul>
  <li><a href="/DesktopClient/">/DesktopClient/</a></li>
  <li><a href="/MobileClient/">/MobileClient/</a></li>
  <li><a href="/Control/">/Control/</a></li>
  <li><a href="/Visuals/">/Visuals/</a></li>
</ul>
<h3>Channels</h3>
<ul>
  <li>Role websocket: <code>ws://HOST/ws/{desk|cel|control|visuals}</code></li>
  <li>Sink websocket: <code>ws://HOST/td</code></li>
  <li>Aerial listing: <a href="/v1/aerials">/v1/aerials</a></li>
</ul>
`)
}
