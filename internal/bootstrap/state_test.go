// ALN Orchestrator
// Copyright 2026 ALN Orchestrator Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/maxepunk/aln-orchestrator

package bootstrap

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMachine_HappyPath(t *testing.T) {
	m := &Machine{}
	assert.Equal(t, Uninitialized, m.State())

	require.NoError(t, m.MarkServicesReady())
	assert.Equal(t, ServicesReady, m.State())

	require.NoError(t, m.MarkHandlersReady())
	assert.Equal(t, HandlersReady, m.State())

	require.NoError(t, m.MarkListening())
	assert.Equal(t, Listening, m.State())
}

func TestMachine_RejectsOutOfOrderHandlers(t *testing.T) {
	m := &Machine{}
	err := m.MarkHandlersReady()
	require.Error(t, err)
	assert.Equal(t, Uninitialized, m.State())
}

func TestMachine_RejectsSkippingServicesReady(t *testing.T) {
	m := &Machine{}
	err := m.MarkListening()
	require.Error(t, err)
}

func TestMachine_RejectsDoubleAdvance(t *testing.T) {
	m := &Machine{}
	require.NoError(t, m.MarkServicesReady())
	err := m.MarkServicesReady()
	require.Error(t, err)
	assert.Equal(t, ServicesReady, m.State())
}

func TestMachine_ResetReturnsToUninitialized(t *testing.T) {
	m := &Machine{}
	require.NoError(t, m.MarkServicesReady())
	require.NoError(t, m.MarkHandlersReady())

	m.Reset()
	assert.Equal(t, Uninitialized, m.State())

	// A restart cycle must be able to run the whole sequence again.
	require.NoError(t, m.MarkServicesReady())
	require.NoError(t, m.MarkHandlersReady())
	require.NoError(t, m.MarkListening())
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "UNINITIALIZED", Uninitialized.String())
	assert.Equal(t, "SERVICES_READY", ServicesReady.String())
	assert.Equal(t, "HANDLERS_READY", HandlersReady.String())
	assert.Equal(t, "LISTENING", Listening.String())
	assert.Equal(t, "UNKNOWN", State(99).String())
}
