// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package bridge

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService(t *testing.T) Service {
	t.Helper()

	// Metrics stay off so repeated constructions in one test binary do not
	// collide on the global Prometheus registry.
	svc, err := New(Config{GinMode: "test", EnableMetrics: false})
	require.NoError(t, err)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = svc.Shutdown(ctx)
	})
	return svc
}

func TestNew_RejectsInvalidConfig(t *testing.T) {
	_, err := New(Config{Port: 70000})
	assert.Error(t, err)

	_, err = New(Config{GinMode: "production"})
	assert.Error(t, err)
}

func TestNew_WiresRouterAndHub(t *testing.T) {
	svc := newTestService(t)

	require.NotNil(t, svc.Router())
	require.NotNil(t, svc.Hub())

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/health", nil)
	svc.Router().ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestService_ShutdownIsClean(t *testing.T) {
	svc, err := New(Config{GinMode: "test", EnableMetrics: false})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.NoError(t, svc.Shutdown(ctx))
}
