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
	"encoding/json"

	"github.com/AleutianAI/AerialBridge/services/bridge/state"
)

// Web channel event names. Web payloads are framed as {"event","data"}
// envelopes in both directions.
const (
	// EventInit carries the one-time full snapshot sent on connect.
	EventInit = "state:init"
	// EventState carries the incremental change notification.
	EventState = "state"
	// EventUpdate is the generic inbound partial-partition update.
	EventUpdate = "update"
	// EventMobileColor is the mobile-only inbound own-color update; data is
	// a hex string or an {r,g,b} object.
	EventMobileColor = "mobile:color"
	// EventYou is the mobile-only identity acknowledgment carrying the
	// sender's resolved {id,color}.
	EventYou = "you"
)

// sinkTypeFullState is the envelope type on every sink delivery.
const sinkTypeFullState = "fullState"

// Envelope frames every web channel message.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// StateEvent is the data of an EventState envelope: which partition changed
// plus the full snapshot for the consumer's class.
type StateEvent struct {
	Part  string         `json:"part"`
	State state.Snapshot `json:"state"`
}

// Identity is the data of an EventYou envelope.
type Identity struct {
	ID    string    `json:"id"`
	Color state.RGB `json:"color"`
}

// SinkEnvelope is the self-contained frame delivered to sink consumers. The
// sink has no per-entity querying of its own, so Data always carries the
// complete device list.
type SinkEnvelope struct {
	Type string         `json:"type"`
	Data state.Snapshot `json:"data"`
}

// SinkUpdate is the inbound sink frame: same partition names and
// sanitization as the web update path.
type SinkUpdate struct {
	Part string          `json:"part"`
	Data json.RawMessage `json:"data"`
}

func marshalEnvelope(event string, data any) []byte {
	raw, err := json.Marshal(data)
	if err != nil {
		// All envelope payloads are plain value types; this cannot fail.
		return nil
	}
	out, _ := json.Marshal(Envelope{Event: event, Data: raw})
	return out
}

func marshalSink(snap state.Snapshot) []byte {
	out, _ := json.Marshal(SinkEnvelope{Type: sinkTypeFullState, Data: snap})
	return out
}
