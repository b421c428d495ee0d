// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package hub

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/AerialBridge/services/bridge/state"
)

// =============================================================================
// Test Helpers
// =============================================================================

// testConn is an in-memory Conn recording everything the session writes.
type testConn struct {
	mu     sync.Mutex
	frames [][]byte
}

func (c *testConn) WriteMessage(messageType int, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	cp := make([]byte, len(data))
	copy(cp, data)
	c.frames = append(c.frames, cp)
	return nil
}

func (c *testConn) Close() error { return nil }

func (c *testConn) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.frames)
}

// frame blocks until at least i+1 frames were written, then returns frame i.
func (c *testConn) frame(t *testing.T, i int) []byte {
	t.Helper()
	require.Eventually(t, func() bool { return c.count() > i },
		2*time.Second, 5*time.Millisecond, "frame %d never arrived", i)
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.frames[i]
}

// envelope decodes frame i as a web {"event","data"} envelope.
func (c *testConn) envelope(t *testing.T, i int) Envelope {
	t.Helper()
	var env Envelope
	require.NoError(t, json.Unmarshal(c.frame(t, i), &env))
	return env
}

// stateEvent decodes frame i as an EventState envelope and returns its data.
func (c *testConn) stateEvent(t *testing.T, i int) StateEvent {
	t.Helper()
	env := c.envelope(t, i)
	require.Equal(t, EventState, env.Event)
	var ev StateEvent
	require.NoError(t, json.Unmarshal(env.Data, &ev))
	return ev
}

func newTestHub(cfg Config) *Hub {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(state.NewStore(), logger, nil, cfg)
}

// settle waits until the session's writer has drained everything enqueued so
// far, so "nothing else arrived" assertions are meaningful.
func settle(t *testing.T, c *testConn, want int) {
	t.Helper()
	require.Eventually(t, func() bool { return c.count() >= want },
		2*time.Second, 5*time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, want, c.count())
}

// =============================================================================
// Attach / Init Snapshot Tests
// =============================================================================

func TestAttach_DeskReceivesInitWithoutDevices(t *testing.T) {
	h := newTestHub(Config{})
	defer h.Close()

	conn := &testConn{}
	s := h.Attach(RoleDesk, conn)
	require.NotNil(t, s)

	env := conn.envelope(t, 0)
	assert.Equal(t, EventInit, env.Event)

	var snap state.Snapshot
	require.NoError(t, json.Unmarshal(env.Data, &snap))
	assert.Equal(t, state.DefaultDesk(), snap.Desk)
	assert.Equal(t, state.DefaultControl(), snap.Control)
	assert.Equal(t, 0, snap.Aerials.Count)
	assert.Nil(t, snap.Aerials.Devices)
}

func TestAttach_VisualizerReceivesDeviceList(t *testing.T) {
	h := newTestHub(Config{})
	defer h.Close()

	mobileConn := &testConn{}
	require.NotNil(t, h.Attach(RoleMobile, mobileConn))

	vizConn := &testConn{}
	require.NotNil(t, h.Attach(RoleVisualizer, vizConn))

	env := vizConn.envelope(t, 0)
	require.Equal(t, EventInit, env.Event)

	var snap state.Snapshot
	require.NoError(t, json.Unmarshal(env.Data, &snap))
	assert.Equal(t, 1, snap.Aerials.Count)
	require.Len(t, snap.Aerials.Devices, 1)
}

func TestAttach_SinkReceivesFullStateFrame(t *testing.T) {
	h := newTestHub(Config{})
	defer h.Close()

	conn := &testConn{}
	require.NotNil(t, h.Attach(RoleSink, conn))

	var frame SinkEnvelope
	require.NoError(t, json.Unmarshal(conn.frame(t, 0), &frame))
	assert.Equal(t, "fullState", frame.Type)
	assert.Equal(t, state.DefaultDesk(), frame.Data.Desk)
}

// TestAttach_MobileJoinFlow checks the mobile connect sequence: init
// snapshot, identity ack, then the aerials broadcast that announces the new
// device to everyone.
func TestAttach_MobileJoinFlow(t *testing.T) {
	h := newTestHub(Config{})
	defer h.Close()

	deskConn := &testConn{}
	require.NotNil(t, h.Attach(RoleDesk, deskConn))

	mobileConn := &testConn{}
	s := h.Attach(RoleMobile, mobileConn)
	require.NotNil(t, s)

	assert.Equal(t, EventInit, mobileConn.envelope(t, 0).Event)

	youEnv := mobileConn.envelope(t, 1)
	require.Equal(t, EventYou, youEnv.Event)
	var id Identity
	require.NoError(t, json.Unmarshal(youEnv.Data, &id))
	assert.Equal(t, s.ID(), id.ID)
	assert.Equal(t, state.DefaultCel().UserColor, id.Color)

	ev := mobileConn.stateEvent(t, 2)
	assert.Equal(t, state.PartAerials, ev.Part)
	assert.Equal(t, 1, ev.State.Aerials.Count)

	// The desk session sees the same aerials change, count only.
	deskEv := deskConn.stateEvent(t, 1)
	assert.Equal(t, state.PartAerials, deskEv.Part)
	assert.Equal(t, 1, deskEv.State.Aerials.Count)
	assert.Nil(t, deskEv.State.Aerials.Devices)
}

func TestAttach_AfterCloseReturnsNil(t *testing.T) {
	h := newTestHub(Config{})
	h.Close()

	assert.Nil(t, h.Attach(RoleDesk, &testConn{}))
}

// =============================================================================
// Update / Broadcast Tests
// =============================================================================

func TestHandleMessage_DeskUpdateBroadcastsToAll(t *testing.T) {
	h := newTestHub(Config{})
	defer h.Close()

	deskConn, vizConn := &testConn{}, &testConn{}
	desk := h.Attach(RoleDesk, deskConn)
	require.NotNil(t, h.Attach(RoleVisualizer, vizConn))

	h.HandleMessage(desk, []byte(`{"event":"update","data":{"time":"night"}}`))

	// The sender receives its own broadcast too, exactly once.
	ev := deskConn.stateEvent(t, 1)
	assert.Equal(t, state.PartDesk, ev.Part)
	assert.Equal(t, state.TimeNight, ev.State.Desk.Time)
	settle(t, deskConn, 2)

	vizEv := vizConn.stateEvent(t, 1)
	assert.Equal(t, state.TimeNight, vizEv.State.Desk.Time)
}

// TestHandleMessage_InvalidFieldsStillBroadcast verifies an update whose
// fields all fail sanitization still produces a broadcast of the unchanged
// state, keeping every consumer's view authoritative.
func TestHandleMessage_InvalidFieldsStillBroadcast(t *testing.T) {
	h := newTestHub(Config{})
	defer h.Close()

	conn := &testConn{}
	s := h.Attach(RoleDesk, conn)

	h.HandleMessage(s, []byte(`{"event":"update","data":{"time":"dusk"}}`))

	ev := conn.stateEvent(t, 1)
	assert.Equal(t, state.TimeDay, ev.State.Desk.Time)
}

func TestHandleMessage_BroadcastOrderMatchesApplyOrder(t *testing.T) {
	h := newTestHub(Config{})
	defer h.Close()

	ctlConn, watchConn := &testConn{}, &testConn{}
	ctl := h.Attach(RoleControl, ctlConn)
	require.NotNil(t, h.Attach(RoleVisualizer, watchConn))

	for i := 1; i <= 5; i++ {
		h.HandleMessage(ctl, []byte(fmt.Sprintf(
			`{"event":"update","data":{"speed":%g}}`, float64(i)/10)))
	}

	for i := 1; i <= 5; i++ {
		ev := watchConn.stateEvent(t, i)
		assert.Equal(t, float64(i)/10, ev.State.Control.Speed,
			"broadcast %d out of order", i)
	}
}

func TestHandleMessage_MobileUpdateWritesCelDefault(t *testing.T) {
	h := newTestHub(Config{})
	defer h.Close()

	conn := &testConn{}
	s := h.Attach(RoleMobile, conn)

	h.HandleMessage(s, []byte(`{"event":"update","data":{"user_color":{"r":9,"g":8,"b":7}}}`))

	// Frames 0..2 are the join flow; frame 3 is the cel broadcast.
	ev := conn.stateEvent(t, 3)
	assert.Equal(t, state.PartCel, ev.Part)
	assert.Equal(t, state.RGB{R: 9, G: 8, B: 7}, ev.State.Cel.UserColor)

	// The existing aerial keeps the color it joined with.
	view := h.Store().Aerials()
	require.Len(t, view.Devices, 1)
	assert.Equal(t, state.RGB{R: 255, G: 255, B: 255}, view.Devices[0].Color)
}

// =============================================================================
// Mobile Color Tests
// =============================================================================

func TestHandleMessage_MobileColorHexString(t *testing.T) {
	h := newTestHub(Config{})
	defer h.Close()

	conn := &testConn{}
	s := h.Attach(RoleMobile, conn)

	h.HandleMessage(s, []byte(`{"event":"mobile:color","data":"#102030"}`))

	// Ack first, then the aerials broadcast.
	ack := conn.envelope(t, 3)
	require.Equal(t, EventYou, ack.Event)
	var id Identity
	require.NoError(t, json.Unmarshal(ack.Data, &id))
	assert.Equal(t, state.RGB{R: 16, G: 32, B: 48}, id.Color)

	ev := conn.stateEvent(t, 4)
	assert.Equal(t, state.PartAerials, ev.Part)
	view := h.Store().Aerials()
	require.Len(t, view.Devices, 1)
	assert.Equal(t, state.RGB{R: 16, G: 32, B: 48}, view.Devices[0].Color)
}

func TestHandleMessage_MobileColorObjectClamped(t *testing.T) {
	h := newTestHub(Config{})
	defer h.Close()

	conn := &testConn{}
	s := h.Attach(RoleMobile, conn)

	h.HandleMessage(s, []byte(`{"event":"mobile:color","data":{"r":999,"g":-5,"b":128}}`))

	ack := conn.envelope(t, 3)
	require.Equal(t, EventYou, ack.Event)
	var id Identity
	require.NoError(t, json.Unmarshal(ack.Data, &id))
	assert.Equal(t, state.RGB{R: 255, G: 0, B: 128}, id.Color)
}

func TestHandleMessage_MobileColorFromDeskRejected(t *testing.T) {
	h := newTestHub(Config{})
	defer h.Close()

	conn := &testConn{}
	s := h.Attach(RoleDesk, conn)

	h.HandleMessage(s, []byte(`{"event":"mobile:color","data":"#102030"}`))
	settle(t, conn, 1)
}

// =============================================================================
// Rejection Tests
// =============================================================================

func TestHandleMessage_MalformedFramesIgnored(t *testing.T) {
	h := newTestHub(Config{})
	defer h.Close()

	conn := &testConn{}
	s := h.Attach(RoleDesk, conn)

	h.HandleMessage(s, []byte(`not json`))
	h.HandleMessage(s, []byte(`{"data":{"time":"night"}}`))
	h.HandleMessage(s, []byte(`{"event":"update","data":"night"}`))
	h.HandleMessage(s, []byte(`{"event":"reboot"}`))

	settle(t, conn, 1)
	assert.Equal(t, state.TimeDay, h.Store().Snapshot(false).Desk.Time)
}

func TestHandleMessage_VisualizerCannotMutate(t *testing.T) {
	h := newTestHub(Config{})
	defer h.Close()

	conn := &testConn{}
	s := h.Attach(RoleVisualizer, conn)

	h.HandleMessage(s, []byte(`{"event":"update","data":{"time":"night"}}`))

	settle(t, conn, 1)
	assert.Equal(t, state.TimeDay, h.Store().Snapshot(false).Desk.Time)
}

func TestHandleMessage_AfterDetachIgnored(t *testing.T) {
	h := newTestHub(Config{})
	defer h.Close()

	conn := &testConn{}
	s := h.Attach(RoleDesk, conn)
	h.Detach(s)

	h.HandleMessage(s, []byte(`{"event":"update","data":{"time":"night"}}`))
	assert.Equal(t, state.TimeDay, h.Store().Snapshot(false).Desk.Time)
}

func TestHandleMessage_RateLimited(t *testing.T) {
	h := newTestHub(Config{RateLimit: 1, RateBurst: 1})
	defer h.Close()

	conn := &testConn{}
	s := h.Attach(RoleControl, conn)

	h.HandleMessage(s, []byte(`{"event":"update","data":{"speed":0.1}}`))
	h.HandleMessage(s, []byte(`{"event":"update","data":{"speed":0.2}}`))

	// Burst of one: the second message is discarded before parsing.
	settle(t, conn, 2)
	assert.Equal(t, 0.1, h.Store().Snapshot(false).Control.Speed)
}

// =============================================================================
// Sink Channel Tests
// =============================================================================

func TestHandleMessage_SinkUpdateApplies(t *testing.T) {
	h := newTestHub(Config{})
	defer h.Close()

	sinkConn, deskConn := &testConn{}, &testConn{}
	sink := h.Attach(RoleSink, sinkConn)
	require.NotNil(t, h.Attach(RoleDesk, deskConn))

	h.HandleMessage(sink, []byte(`{"part":"control","data":{"density":0.9}}`))

	var frame SinkEnvelope
	require.NoError(t, json.Unmarshal(sinkConn.frame(t, 1), &frame))
	assert.Equal(t, 0.9, frame.Data.Control.Density)

	ev := deskConn.stateEvent(t, 1)
	assert.Equal(t, state.PartControl, ev.Part)
	assert.Equal(t, 0.9, ev.State.Control.Density)
}

func TestHandleMessage_SinkCannotWriteAerials(t *testing.T) {
	h := newTestHub(Config{})
	defer h.Close()

	conn := &testConn{}
	s := h.Attach(RoleSink, conn)

	h.HandleMessage(s, []byte(`{"part":"aerials","data":{"count":99}}`))
	h.HandleMessage(s, []byte(`{"part":"weather","data":{"rain":true}}`))

	settle(t, conn, 1)
}

// =============================================================================
// Detach / Close Tests
// =============================================================================

func TestDetach_MobileLeaveBroadcasts(t *testing.T) {
	h := newTestHub(Config{})
	defer h.Close()

	deskConn, mobileConn := &testConn{}, &testConn{}
	require.NotNil(t, h.Attach(RoleDesk, deskConn))
	mobile := h.Attach(RoleMobile, mobileConn)

	// Join broadcast first.
	require.Equal(t, 1, deskConn.stateEvent(t, 1).State.Aerials.Count)

	h.Detach(mobile)
	h.Detach(mobile) // duplicate notification is harmless

	ev := deskConn.stateEvent(t, 2)
	assert.Equal(t, state.PartAerials, ev.Part)
	assert.Equal(t, 0, ev.State.Aerials.Count)
	assert.Equal(t, 0, h.Store().Aerials().Count)
}

func TestClose_RemovesMobileAerials(t *testing.T) {
	h := newTestHub(Config{})

	require.NotNil(t, h.Attach(RoleMobile, &testConn{}))
	require.Equal(t, 1, h.Store().Aerials().Count)

	h.Close()
	h.Close() // idempotent

	assert.Equal(t, 0, h.Store().Aerials().Count)
}

// =============================================================================
// Session Queue Tests
// =============================================================================

// TestSession_EnqueueDropsWhenFull exercises the bounded queue directly: a
// full queue reports the drop instead of blocking the broadcaster.
func TestSession_EnqueueDropsWhenFull(t *testing.T) {
	s := &Session{send: make(chan []byte, 1)}

	assert.True(t, s.enqueue([]byte("one")))
	assert.False(t, s.enqueue([]byte("two")))
}

func TestSession_WritePumpDeliversInOrder(t *testing.T) {
	conn := &testConn{}
	s := &Session{conn: conn, send: make(chan []byte, 4)}

	s.enqueue([]byte("a"))
	s.enqueue([]byte("b"))
	s.enqueue([]byte("c"))
	close(s.send)

	s.writePump(slog.New(slog.NewTextHandler(io.Discard, nil)))

	require.Equal(t, 3, conn.count())
	assert.Equal(t, "a", string(conn.frames[0]))
	assert.Equal(t, "b", string(conn.frames[1]))
	assert.Equal(t, "c", string(conn.frames[2]))
}
