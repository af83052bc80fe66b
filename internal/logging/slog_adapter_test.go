// Nuntius - Tautulli Recently Added Digests for Discord
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/nuntius

package logging

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func newBufferedSlogger() (*slog.Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	handler := &SlogHandler{logger: zerolog.New(&buf)}
	return slog.New(handler), &buf
}

func TestSlogHandlerLevels(t *testing.T) {
	zerolog.SetGlobalLevel(zerolog.TraceLevel)
	defer zerolog.SetGlobalLevel(zerolog.InfoLevel)

	tests := []struct {
		name     string
		logFunc  func(l *slog.Logger)
		expected string
	}{
		{"Debug", func(l *slog.Logger) { l.Debug("msg") }, `"level":"debug"`},
		{"Info", func(l *slog.Logger) { l.Info("msg") }, `"level":"info"`},
		{"Warn", func(l *slog.Logger) { l.Warn("msg") }, `"level":"warn"`},
		{"Error", func(l *slog.Logger) { l.Error("msg") }, `"level":"error"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			slogger, buf := newBufferedSlogger()
			tt.logFunc(slogger)
			if !strings.Contains(buf.String(), tt.expected) {
				t.Errorf("expected %s in output: %s", tt.expected, buf.String())
			}
		})
	}
}

func TestSlogHandlerMessage(t *testing.T) {
	zerolog.SetGlobalLevel(zerolog.TraceLevel)
	defer zerolog.SetGlobalLevel(zerolog.InfoLevel)

	slogger, buf := newBufferedSlogger()
	slogger.Info("service started", "service", "scheduler")

	output := buf.String()
	if !strings.Contains(output, "service started") {
		t.Errorf("expected message in output: %s", output)
	}
	if !strings.Contains(output, `"service":"scheduler"`) {
		t.Errorf("expected attribute in output: %s", output)
	}
}

func TestSlogHandlerAttrKinds(t *testing.T) {
	zerolog.SetGlobalLevel(zerolog.TraceLevel)
	defer zerolog.SetGlobalLevel(zerolog.InfoLevel)

	ts := time.Date(2026, 1, 3, 10, 30, 0, 0, time.UTC)

	tests := []struct {
		name     string
		attr     slog.Attr
		expected string
	}{
		{"string", slog.String("s", "value"), `"s":"value"`},
		{"int64", slog.Int64("n", 42), `"n":42`},
		{"uint64", slog.Uint64("u", 7), `"u":7`},
		{"float64", slog.Float64("f", 1.5), `"f":1.5`},
		{"bool", slog.Bool("b", true), `"b":true`},
		{"duration", slog.Duration("d", 2*time.Second), `"d":2000`},
		{"time", slog.Time("t", ts), `"t":"2026-01-03T10:30:00Z"`},
		{"any", slog.Any("a", []int{1, 2}), `"a":[1,2]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			slogger, buf := newBufferedSlogger()
			slogger.Info("m", tt.attr)
			if !strings.Contains(buf.String(), tt.expected) {
				t.Errorf("expected %s in output: %s", tt.expected, buf.String())
			}
		})
	}
}

func TestSlogHandlerWithAttrs(t *testing.T) {
	zerolog.SetGlobalLevel(zerolog.TraceLevel)
	defer zerolog.SetGlobalLevel(zerolog.InfoLevel)

	slogger, buf := newBufferedSlogger()
	child := slogger.With("supervisor", "root")

	child.Info("child message")

	output := buf.String()
	if !strings.Contains(output, `"supervisor":"root"`) {
		t.Errorf("expected pre-configured attribute in output: %s", output)
	}
}

func TestSlogHandlerWithGroup(t *testing.T) {
	zerolog.SetGlobalLevel(zerolog.TraceLevel)
	defer zerolog.SetGlobalLevel(zerolog.InfoLevel)

	slogger, buf := newBufferedSlogger()
	grouped := slogger.WithGroup("suture")

	grouped.Info("grouped message", "service", "http")

	output := buf.String()
	if !strings.Contains(output, `"suture.service":"http"`) {
		t.Errorf("expected group-prefixed key in output: %s", output)
	}
}

func TestSlogHandlerEmptyGroupIgnored(t *testing.T) {
	var buf bytes.Buffer
	handler := &SlogHandler{logger: zerolog.New(&buf)}

	same := handler.WithGroup("")
	if same != slog.Handler(handler) {
		t.Error("expected empty group name to return the same handler")
	}
}

func TestSlogHandlerGroupAttr(t *testing.T) {
	zerolog.SetGlobalLevel(zerolog.TraceLevel)
	defer zerolog.SetGlobalLevel(zerolog.InfoLevel)

	slogger, buf := newBufferedSlogger()
	slogger.Info("m", slog.Group("retry", slog.Int("attempt", 2)))

	output := buf.String()
	if !strings.Contains(output, `"retry.attempt":2`) {
		t.Errorf("expected group attribute key in output: %s", output)
	}
}

func TestSlogHandlerEnabled(t *testing.T) {
	var buf bytes.Buffer
	handler := &SlogHandler{logger: zerolog.New(&buf).Level(zerolog.WarnLevel)}

	if handler.Enabled(context.Background(), slog.LevelInfo) {
		t.Error("expected info to be disabled at warn level")
	}
	if !handler.Enabled(context.Background(), slog.LevelWarn) {
		t.Error("expected warn to be enabled at warn level")
	}
	if !handler.Enabled(context.Background(), slog.LevelError) {
		t.Error("expected error to be enabled at warn level")
	}
}

func TestSlogToZerologLevel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input    slog.Level
		expected zerolog.Level
	}{
		{slog.LevelDebug - 4, zerolog.TraceLevel},
		{slog.LevelDebug, zerolog.DebugLevel},
		{slog.LevelInfo, zerolog.InfoLevel},
		{slog.LevelWarn, zerolog.WarnLevel},
		{slog.LevelError, zerolog.ErrorLevel},
		{slog.LevelError + 4, zerolog.ErrorLevel},
	}

	for _, tt := range tests {
		result := slogToZerologLevel(tt.input)
		if result != tt.expected {
			t.Errorf("slogToZerologLevel(%v) = %v, want %v", tt.input, result, tt.expected)
		}
	}
}

func TestNewSlogLogger(t *testing.T) {
	var buf bytes.Buffer
	SetLogger(zerolog.New(&buf))
	zerolog.SetGlobalLevel(zerolog.TraceLevel)
	defer zerolog.SetGlobalLevel(zerolog.InfoLevel)

	slogger := NewSlogLogger()
	slogger.Info("via global")

	if !strings.Contains(buf.String(), "via global") {
		t.Errorf("expected message through global logger: %s", buf.String())
	}
}
