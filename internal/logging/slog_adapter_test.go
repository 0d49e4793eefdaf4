// ALN Orchestrator
// Copyright 2026 ALN Orchestrator Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/maxepunk/aln-orchestrator

package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func captureSlog(t *testing.T) (*slog.Logger, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	return NewSlogLoggerFrom(NewTestLogger(&buf)), &buf
}

func TestSlogBridge_LevelsMapToZerolog(t *testing.T) {
	resetGlobal(t)
	logger, buf := captureSlog(t)

	logger.Info("service started")
	logger.Warn("service slow")
	logger.Error("service failed")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected 3 lines, got %d: %s", len(lines), buf.String())
	}
	for i, want := range []string{"info", "warn", "error"} {
		var line map[string]interface{}
		if err := json.Unmarshal([]byte(lines[i]), &line); err != nil {
			t.Fatalf("line %d is not JSON: %v", i, err)
		}
		if line["level"] != want {
			t.Errorf("line %d level = %v, want %s", i, line["level"], want)
		}
	}
}

func TestSlogBridge_AttrTypesSurviveTranslation(t *testing.T) {
	resetGlobal(t)
	logger, buf := captureSlog(t)

	logger.Info("attrs",
		slog.String("name", "video-poller"),
		slog.Int("restarts", 2),
		slog.Bool("healthy", true),
		slog.Duration("uptime", 90*time.Second),
	)

	var line map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("output is not JSON: %v", err)
	}
	if line["name"] != "video-poller" || line["restarts"] != float64(2) || line["healthy"] != true {
		t.Fatalf("attrs lost in translation: %v", line)
	}
}

func TestSlogBridge_WithAttrsPersistAcrossCalls(t *testing.T) {
	resetGlobal(t)
	logger, buf := captureSlog(t)

	child := logger.With(slog.String("supervisor", "data-layer"))
	child.Info("first")
	child.Info("second")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	for i, l := range lines {
		if !strings.Contains(l, `"supervisor":"data-layer"`) {
			t.Errorf("line %d missing persistent attr: %s", i, l)
		}
	}
}

func TestSlogBridge_GroupsFlattenToDottedKeys(t *testing.T) {
	resetGlobal(t)
	logger, buf := captureSlog(t)

	logger.WithGroup("suture").Info("restart", slog.String("service", "http-server"))

	if !strings.Contains(buf.String(), `"suture.service":"http-server"`) {
		t.Fatalf("group prefix missing: %s", buf.String())
	}
}

func TestSlogBridge_EnabledHonorsGlobalLevel(t *testing.T) {
	resetGlobal(t)
	Init(Config{Level: "warn"})

	bridge := &slogBridge{logger: Logger()}
	if bridge.Enabled(context.Background(), slog.LevelDebug) {
		t.Fatal("debug should be disabled at warn level")
	}
	if !bridge.Enabled(context.Background(), slog.LevelError) {
		t.Fatal("error should be enabled at warn level")
	}
}

func TestToZerologLevel(t *testing.T) {
	cases := []struct {
		in   slog.Level
		want zerolog.Level
	}{
		{slog.LevelDebug, zerolog.DebugLevel},
		{slog.LevelInfo, zerolog.InfoLevel},
		{slog.LevelWarn, zerolog.WarnLevel},
		{slog.LevelError, zerolog.ErrorLevel},
	}
	for _, c := range cases {
		if got := toZerologLevel(c.in); got != c.want {
			t.Errorf("toZerologLevel(%v) = %v, want %v", c.in, got, c.want)
		}
	}
}
