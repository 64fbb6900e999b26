package observability_test

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/kira-labs/orchestrator/observability"
)

func TestLevel_String(t *testing.T) {
	tests := []struct {
		name  string
		level observability.Level
		want  string
	}{
		{name: "trace range", level: 1, want: "TRACE"},
		{name: "verbose maps to DEBUG", level: observability.LevelVerbose, want: "DEBUG"},
		{name: "info maps to INFO", level: observability.LevelInfo, want: "INFO"},
		{name: "warning maps to WARN", level: observability.LevelWarning, want: "WARN"},
		{name: "error maps to ERROR", level: observability.LevelError, want: "ERROR"},
		{name: "fatal range", level: 21, want: "FATAL"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.level.String(); got != tt.want {
				t.Errorf("Level(%d).String() = %q, want %q", tt.level, got, tt.want)
			}
		})
	}
}

func TestLevel_SlogLevel(t *testing.T) {
	tests := []struct {
		name  string
		level observability.Level
		want  slog.Level
	}{
		{name: "verbose maps to Debug", level: observability.LevelVerbose, want: slog.LevelDebug},
		{name: "info maps to Info", level: observability.LevelInfo, want: slog.LevelInfo},
		{name: "warning maps to Warn", level: observability.LevelWarning, want: slog.LevelWarn},
		{name: "error maps to Error", level: observability.LevelError, want: slog.LevelError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.level.SlogLevel(); got != tt.want {
				t.Errorf("Level(%d).SlogLevel() = %v, want %v", tt.level, got, tt.want)
			}
		})
	}
}

func TestSlogObserver_EmitsTraceID(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	obs := observability.NewSlogObserver(logger)

	obs.OnEvent(context.Background(), observability.Event{
		Type:      "agent.invoke.start",
		Level:     observability.LevelInfo,
		Timestamp: time.Now(),
		Source:    "agent.Invoker",
		TraceID:   "trace-42",
		Data:      map[string]any{"agent": "SchedulerAgent"},
	})

	out := buf.String()
	for _, want := range []string{"agent.invoke.start", "trace_id=trace-42", "agent=SchedulerAgent", "source=agent.Invoker"} {
		if !strings.Contains(out, want) {
			t.Errorf("log output missing %q: %s", want, out)
		}
	}
}

func TestSlogObserver_OmitsEmptyTraceID(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	obs := observability.NewSlogObserver(logger)

	obs.OnEvent(context.Background(), observability.Event{
		Type:   "orchestrator.connect",
		Level:  observability.LevelInfo,
		Source: "orchestrator",
	})

	if strings.Contains(buf.String(), "trace_id") {
		t.Errorf("empty trace id should be omitted: %s", buf.String())
	}
}

func TestMultiObserver(t *testing.T) {
	var got []observability.EventType
	record := func() observability.Observer {
		return observerFunc(func(ctx context.Context, e observability.Event) {
			got = append(got, e.Type)
		})
	}

	multi := observability.NewMultiObserver(record(), nil, record())
	multi.OnEvent(context.Background(), observability.Event{Type: "test.event"})

	if len(got) != 2 {
		t.Errorf("event should reach both non-nil observers, got %d deliveries", len(got))
	}
}

type observerFunc func(ctx context.Context, event observability.Event)

func (f observerFunc) OnEvent(ctx context.Context, event observability.Event) { f(ctx, event) }
