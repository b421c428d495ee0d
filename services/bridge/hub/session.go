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

import (
	"log/slog"
	"sync/atomic"

	"golang.org/x/time/rate"
)

// Conn is the transport surface a session writes to. *websocket.Conn
// satisfies it; tests substitute an in-memory recorder.
type Conn interface {
	// WriteMessage writes a single framed message of the given type.
	WriteMessage(messageType int, data []byte) error
	// Close closes the underlying transport.
	Close() error
}

// textMessage mirrors websocket.TextMessage without importing the transport
// package here.
const textMessage = 1

// Session binds one transport connection to its role for the connection's
// lifetime. Outbound payloads flow through a bounded send queue drained by a
// private writer goroutine, so one slow consumer never stalls a broadcast to
// the others.
type Session struct {
	id      string
	role    Role
	conn    Conn
	send    chan []byte
	closed  atomic.Bool
	limiter *rate.Limiter
}

// ID returns the connection-scoped identifier. For mobile sessions it is
// also the aerial registry key.
func (s *Session) ID() string { return s.id }

// Role returns the role fixed at accept time.
func (s *Session) Role() Role { return s.role }

// enqueue places a payload on the send queue without blocking. Reports false
// when the queue is full; the caller drops the delivery for this consumer
// and carries on with the rest.
//
// Only the hub calls enqueue, and only while holding the hub lock, which is
// also the only place the queue is closed. That ordering is what makes the
// bare channel send safe.
func (s *Session) enqueue(payload []byte) bool {
	select {
	case s.send <- payload:
		return true
	default:
		return false
	}
}

// writePump drains the send queue onto the transport until the queue is
// closed or a write fails. A failed write stops the pump; the read loop will
// observe the dead socket and detach the session.
func (s *Session) writePump(log *slog.Logger) {
	for payload := range s.send {
		if err := s.conn.WriteMessage(textMessage, payload); err != nil {
			log.Debug("session write failed", "conn_id", s.id, "role", s.role, "error", err)
			// Keep draining so the hub never blocks on a dead consumer.
			for range s.send {
			}
			return
		}
	}
}

// allow applies the per-session inbound rate limit. A nil limiter admits
// everything.
func (s *Session) allow() bool {
	return s.limiter == nil || s.limiter.Allow()
}
