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

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// Sanitizers take the current partition value and an untrusted decoded JSON
// value and return a fully valid replacement. They never fail: anything that
// is not a structured value, and any field outside its domain, resolves to
// the current value. Fields are merged independently so one bad field cannot
// discard the valid ones next to it.

// SanitizeDesk merges an untrusted partial update into a desk value.
func SanitizeDesk(cur Desk, incoming any) Desk {
	obj, ok := asObject(incoming)
	if !ok {
		return cur
	}
	next := cur
	if t, ok := obj["time"].(string); ok && (t == TimeDay || t == TimeNight) {
		next.Time = t
	}
	if s, ok := toInt(obj["season"]); ok && s >= 1 && s <= 4 {
		next.Season = s
	}
	if v, ok := obj["vantage"].(string); ok && (v == VantageInside || v == VantageOutside) {
		next.Vantage = v
	}
	return next
}

// SanitizeCel merges an untrusted partial update into a cel value.
func SanitizeCel(cur Cel, incoming any) Cel {
	obj, ok := asObject(incoming)
	if !ok {
		return cur
	}
	next := cur
	next.UserColor = SanitizeRGB(cur.UserColor, obj["user_color"])
	return next
}

// SanitizeControl merges an untrusted partial update into a control value.
func SanitizeControl(cur Control, incoming any) Control {
	obj, ok := asObject(incoming)
	if !ok {
		return cur
	}
	next := cur
	if sp, ok := toNumber(obj["speed"]); ok {
		next.Speed = clampUnit(sp)
	}
	if de, ok := toNumber(obj["density"]); ok {
		next.Density = clampUnit(de)
	}
	next.Color = SanitizeRGB(cur.Color, obj["color"])
	return next
}

// SanitizeRGB merges an untrusted value into an RGB color. Each channel is
// coerced to an integer (truncation toward zero) and clamped to [0,255]; a
// missing or non-numeric channel keeps the corresponding current channel.
func SanitizeRGB(cur RGB, incoming any) RGB {
	obj, ok := asObject(incoming)
	if !ok {
		return cur
	}
	next := cur
	if r, ok := toInt(obj["r"]); ok {
		next.R = clampChannel(r)
	}
	if g, ok := toInt(obj["g"]); ok {
		next.G = clampChannel(g)
	}
	if b, ok := toInt(obj["b"]); ok {
		next.B = clampChannel(b)
	}
	return next
}

// ParseHexColor parses a "#rrggbb" (or bare "rrggbb") hex color string.
// Returns false for anything else; a bad hex string is all-or-nothing, there
// is no per-channel fallback to merge against.
func ParseHexColor(s string) (RGB, bool) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(s) != 6 {
		return RGB{}, false
	}
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return RGB{}, false
	}
	return RGB{
		R: int(v >> 16 & 0xff),
		G: int(v >> 8 & 0xff),
		B: int(v & 0xff),
	}, true
}

func asObject(v any) (map[string]any, bool) {
	obj, ok := v.(map[string]any)
	return obj, ok
}

// toNumber coerces JSON scalars the way the clients produce them: numbers
// decode as float64, numeric strings come from form inputs. NaN and
// infinities are rejected so clamping stays meaningful.
func toNumber(v any) (float64, bool) {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case int:
		f = float64(n)
	case int64:
		f = float64(n)
	case json.Number:
		parsed, err := n.Float64()
		if err != nil {
			return 0, false
		}
		f = parsed
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// toInt coerces to an integer with truncation toward zero (no rounding).
func toInt(v any) (int, bool) {
	f, ok := toNumber(v)
	if !ok {
		return 0, false
	}
	return int(math.Trunc(f)), true
}

func clampChannel(v int) int {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return v
}

func clampUnit(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
