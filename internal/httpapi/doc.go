// ALN Orchestrator
// Copyright 2026 ALN Orchestrator Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/maxepunk/aln-orchestrator

// Package httpapi implements the HTTP surface: scan
// intake, read-only catalog/state/session queries, session
// lifecycle, and admin authentication. It is a thin translation layer
// - every handler decodes a request, validates it, and delegates to
// the Transaction Engine, Offline Batch Handler, Session Manager, or
// auth managers that already own the real logic; this package owns
// only routing, request validation, and response shaping.
package httpapi
