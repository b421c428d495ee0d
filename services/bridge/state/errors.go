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

import "errors"

var (
	// ErrDuplicateEntity is returned by Join when the connection id is
	// already registered. With correct session wiring this is unreachable;
	// callers log it loudly and skip the join rather than crash the hub.
	ErrDuplicateEntity = errors.New("aerial id already registered")

	// ErrUnknownEntity is returned by UpdateAerial when the id is not
	// registered, e.g. an update that raced past its own disconnect.
	// Callers discard the update silently.
	ErrUnknownEntity = errors.New("aerial id not registered")
)
