// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package hub wires connection sessions to the state store and fans every
// accepted mutation back out to all connected consumers.
//
// # Description
//
// The hub is the meeting point of the bridge: sessions attach with a fixed
// role, inbound messages are sanitized and applied through the store, and
// each mutation triggers one broadcast carrying the class-appropriate
// snapshot to every session. Web consumers receive {"event","data"}
// envelopes, sink consumers receive self-contained fullState frames.
//
// # Ordering
//
// The entire mutate-then-snapshot-then-enqueue sequence runs under one
// mutex, so broadcasts leave in exactly the order mutations were applied and
// the snapshot attached to a broadcast is the one its mutation produced.
// Per-session buffered queues preserve that order downstream; a consumer
// that cannot keep up loses deliveries (dropped and counted), it never
// delays the others.
package hub

import (
	"encoding/json"
	"errors"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/AleutianAI/AerialBridge/services/bridge/observability"
	"github.com/AleutianAI/AerialBridge/services/bridge/state"
)

// defaultSendBuffer is the per-session outbound queue depth used when the
// config leaves it unset.
const defaultSendBuffer = 64

// Config tunes hub behavior. The zero value is usable.
type Config struct {
	// SendBuffer is the per-session outbound queue depth.
	// Default: 64.
	SendBuffer int

	// RateLimit caps inbound messages per second per session.
	// 0 disables limiting.
	RateLimit float64

	// RateBurst is the token bucket burst when RateLimit is set.
	// Default: 10.
	RateBurst int
}

// Hub owns the session registry and the broadcast pipeline. Construct with
// New; all methods are safe for concurrent use.
type Hub struct {
	mu       sync.Mutex
	store    *state.Store
	sessions map[string]*Session
	closed   bool

	cfg     Config
	log     *slog.Logger
	metrics *observability.HubMetrics
}

// New creates a hub around the given store. logger must not be nil; metrics
// may be nil, which disables instrumentation.
func New(store *state.Store, logger *slog.Logger, metrics *observability.HubMetrics, cfg Config) *Hub {
	if cfg.SendBuffer <= 0 {
		cfg.SendBuffer = defaultSendBuffer
	}
	if cfg.RateBurst <= 0 {
		cfg.RateBurst = 10
	}
	return &Hub{
		store:    store,
		sessions: make(map[string]*Session),
		cfg:      cfg,
		log:      logger,
		metrics:  metrics,
	}
}

// Store exposes the underlying state store for read-only queries.
func (h *Hub) Store() *state.Store { return h.store }

// Attach registers a new connection under the given role and starts its
// writer. The session immediately receives its init snapshot; a mobile
// session additionally joins the aerial registry, receives its identity ack,
// and triggers an aerials broadcast. Returns nil if the hub is shut down.
func (h *Hub) Attach(role Role, conn Conn) *Session {
	s := &Session{
		id:   uuid.NewString()[:8],
		role: role,
		conn: conn,
		send: make(chan []byte, h.cfg.SendBuffer),
	}
	if h.cfg.RateLimit > 0 {
		s.limiter = rate.NewLimiter(rate.Limit(h.cfg.RateLimit), h.cfg.RateBurst)
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil
	}
	h.sessions[s.id] = s

	var identity *Identity
	if role == RoleMobile {
		aerial, err := h.store.Join(s.id)
		if errors.Is(err, state.ErrDuplicateEntity) {
			// Session ids are freshly generated, so this means broken
			// wiring somewhere. Keep the hub up, skip the join.
			h.log.Error("duplicate aerial join, registry entry skipped",
				"conn_id", s.id)
		} else {
			identity = &Identity{ID: aerial.ID, Color: aerial.Color}
		}
	}
	s.enqueue(h.initPayload(s))
	if identity != nil {
		s.enqueue(marshalEnvelope(EventYou, *identity))
		h.broadcastLocked(state.PartAerials)
	}
	h.mu.Unlock()

	go s.writePump(h.log)

	h.metrics.SessionOpened(string(role))
	h.log.Info("session connected", "conn_id", s.id, "role", role)
	return s
}

// initPayload builds the one-time snapshot delivery for a fresh session,
// shaped identically to the broadcasts its class will receive afterwards.
func (h *Hub) initPayload(s *Session) []byte {
	snap := h.store.Snapshot(s.role.seesDevices())
	if s.role == RoleSink {
		return marshalSink(snap)
	}
	return marshalEnvelope(EventInit, snap)
}

// Detach tears the session down: it leaves the session registry, a mobile
// session leaves the aerial registry with a final aerials broadcast, and the
// send queue is closed. Idempotent against duplicate disconnect
// notifications.
func (h *Hub) Detach(s *Session) {
	if s == nil || s.closed.Swap(true) {
		return
	}

	h.mu.Lock()
	if _, ok := h.sessions[s.id]; ok {
		delete(h.sessions, s.id)
		close(s.send)
		if s.role == RoleMobile {
			h.store.Leave(s.id)
			h.broadcastLocked(state.PartAerials)
		}
	}
	h.mu.Unlock()

	h.metrics.SessionClosed(string(s.role))
	h.log.Info("session closed", "conn_id", s.id, "role", s.role)
}

// HandleMessage processes one inbound frame from the session. Every failure
// mode discards the frame without mutation or broadcast; nothing here
// surfaces an error back to the sender.
func (h *Hub) HandleMessage(s *Session, raw []byte) {
	if s == nil || s.closed.Load() {
		// Transports can reorder delivery during teardown.
		h.metrics.InboundRejected(observability.ReasonClosed)
		return
	}
	if !s.allow() {
		h.metrics.InboundRejected(observability.ReasonRateLimited)
		return
	}

	if s.role == RoleSink {
		h.handleSinkMessage(s, raw)
		return
	}

	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil || env.Event == "" {
		h.metrics.InboundRejected(observability.ReasonMalformed)
		return
	}

	switch env.Event {
	case EventUpdate:
		part, ok := updatePartition(s.role)
		if !ok {
			h.metrics.InboundRejected(observability.ReasonUnauthorized)
			return
		}
		obj, ok := decodeObject(env.Data)
		if !ok {
			h.metrics.InboundRejected(observability.ReasonMalformed)
			return
		}
		h.applyAndBroadcast(s, part, obj)

	case EventMobileColor:
		if s.role != RoleMobile {
			h.metrics.InboundRejected(observability.ReasonUnauthorized)
			return
		}
		color, ok := decodeColorValue(env.Data)
		if !ok {
			h.metrics.InboundRejected(observability.ReasonMalformed)
			return
		}
		h.applyAerialColor(s, color)

	default:
		h.metrics.InboundRejected(observability.ReasonUnauthorized)
	}
}

// handleSinkMessage applies an inbound {part,data} frame from a sink
// consumer through the same sanitize/apply/broadcast pipeline as the web
// update path.
func (h *Hub) handleSinkMessage(s *Session, raw []byte) {
	var upd SinkUpdate
	if err := json.Unmarshal(raw, &upd); err != nil || upd.Part == "" || len(upd.Data) == 0 {
		h.metrics.InboundRejected(observability.ReasonMalformed)
		return
	}
	if !s.role.mayMutate(upd.Part) {
		h.metrics.InboundRejected(observability.ReasonUnknownPart)
		return
	}
	obj, ok := decodeObject(upd.Data)
	if !ok {
		h.metrics.InboundRejected(observability.ReasonMalformed)
		return
	}
	h.applyAndBroadcast(s, upd.Part, obj)
}

// applyAndBroadcast runs the mutation and its fan-out as one atomic step.
func (h *Hub) applyAndBroadcast(s *Session, part string, incoming any) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.sessions[s.id]; !ok {
		h.metrics.InboundRejected(observability.ReasonClosed)
		return
	}

	changed := h.store.ApplyUpdate(part, incoming)
	h.metrics.UpdateApplied(part, string(s.role))
	h.log.Debug("update applied", "part", part, "conn_id", s.id, "changed", changed)
	h.broadcastLocked(part)
}

// applyAerialColor updates the sender's own aerial and acknowledges the
// resolved color privately before the aerials broadcast goes out.
func (h *Hub) applyAerialColor(s *Session, incoming any) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.sessions[s.id]; !ok {
		h.metrics.InboundRejected(observability.ReasonClosed)
		return
	}

	aerial, _, err := h.store.UpdateAerial(s.id, incoming)
	if err != nil {
		// Disconnect raced ahead of this update; drop it.
		h.metrics.InboundRejected(observability.ReasonUnknownID)
		return
	}
	h.metrics.UpdateApplied(state.PartAerials, string(s.role))

	// The sender needs the clamped value it now holds, not just the
	// broadcast everyone else gets.
	if !s.enqueue(marshalEnvelope(EventYou, Identity{ID: aerial.ID, Color: aerial.Color})) {
		h.metrics.DeliveryDropped(string(s.role))
	}
	h.broadcastLocked(state.PartAerials)
}

// broadcastLocked fans the current state out to every session. Callers hold
// h.mu. Payloads are marshaled once per consumer class; each delivery is
// best-effort and independent, a full queue drops that consumer's delivery
// only.
func (h *Hub) broadcastLocked(part string) {
	full := h.store.Snapshot(true)
	countOnly := full
	countOnly.Aerials.Devices = nil

	webFull := marshalEnvelope(EventState, StateEvent{Part: part, State: full})
	webCount := marshalEnvelope(EventState, StateEvent{Part: part, State: countOnly})
	sinkFrame := marshalSink(full)

	reached := 0
	for _, sess := range h.sessions {
		var payload []byte
		switch {
		case sess.role == RoleSink:
			payload = sinkFrame
		case sess.role.seesDevices():
			payload = webFull
		default:
			payload = webCount
		}
		if sess.enqueue(payload) {
			reached++
			continue
		}
		h.metrics.DeliveryDropped(string(sess.role))
		h.log.Warn("delivery dropped, send queue full",
			"conn_id", sess.id, "role", sess.role, "part", part)
	}
	h.metrics.BroadcastSent(part, reached)
}

// Close shuts every session down and refuses new attachments. Used on
// graceful shutdown; closing the transports unblocks the handler read loops.
func (h *Hub) Close() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	sessions := make([]*Session, 0, len(h.sessions))
	for id, s := range h.sessions {
		delete(h.sessions, id)
		sessions = append(sessions, s)
	}
	h.mu.Unlock()

	for _, s := range sessions {
		if !s.closed.Swap(true) {
			close(s.send)
			_ = s.conn.Close()
			if s.role == RoleMobile {
				h.store.Leave(s.id)
			}
			h.metrics.SessionClosed(string(s.role))
		}
	}
	h.log.Info("hub closed", "sessions", len(sessions))
}

// updatePartition maps a web role to the partition its generic update event
// writes. Mobile updates write the cel default for future joiners; the
// sender's own aerial is only reachable through EventMobileColor.
func updatePartition(r Role) (string, bool) {
	switch r {
	case RoleDesk:
		return state.PartDesk, true
	case RoleControl:
		return state.PartControl, true
	case RoleMobile:
		return state.PartCel, true
	default:
		return "", false
	}
}

// decodeObject decodes a raw JSON value and requires a structured object.
func decodeObject(raw json.RawMessage) (map[string]any, bool) {
	if len(raw) == 0 {
		return nil, false
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, false
	}
	obj, ok := v.(map[string]any)
	return obj, ok
}

// decodeColorValue decodes the EventMobileColor payload: a hex string or an
// {r,g,b} object.
func decodeColorValue(raw json.RawMessage) (any, bool) {
	if len(raw) == 0 {
		return nil, false
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, false
	}
	switch v.(type) {
	case string, map[string]any:
		return v, true
	default:
		return nil, false
	}
}
