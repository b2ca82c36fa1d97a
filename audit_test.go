package authclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

type countingSink struct {
	count atomic.Int64
}

func (s *countingSink) Emit(context.Context, AuditEvent) {
	s.count.Add(1)
}

type gateSink struct {
	gate chan struct{}
}

func newGateSink() *gateSink {
	return &gateSink{
		gate: make(chan struct{}),
	}
}

func (s *gateSink) Emit(context.Context, AuditEvent) {
	<-s.gate
}

func TestAuditDisabledReturnsNilDispatcher(t *testing.T) {
	sink := &countingSink{}
	d := newAuditDispatcher(AuditConfig{Enabled: false}, sink, nil)
	if d != nil {
		t.Fatalf("expected nil dispatcher when audit disabled")
	}
	d.Emit(context.Background(), AuditEvent{EventType: "ignored"})
	d.Close()
	if sink.count.Load() != 0 {
		t.Fatalf("expected no sink calls")
	}
}

func TestAuditBufferFullDropIfFullTrueDoesNotBlock(t *testing.T) {
	sink := newGateSink()
	dispatcher := newAuditDispatcher(AuditConfig{
		Enabled:    true,
		BufferSize: 1,
		DropIfFull: true,
	}, sink, nil)
	defer func() {
		close(sink.gate)
		dispatcher.Close()
	}()

	dispatcher.Emit(context.Background(), AuditEvent{EventType: "e1"})
	dispatcher.Emit(context.Background(), AuditEvent{EventType: "e2"})

	start := time.Now()
	dispatcher.Emit(context.Background(), AuditEvent{EventType: "e3"})
	if time.Since(start) > 100*time.Millisecond {
		t.Fatal("expected non-blocking emit when DropIfFull is true")
	}
	if dispatcher.Dropped() == 0 {
		t.Fatal("expected at least one dropped event")
	}
}

func TestAuditCloseDrainsAcceptedEvents(t *testing.T) {
	sink := &countingSink{}
	dispatcher := newAuditDispatcher(AuditConfig{
		Enabled:    true,
		BufferSize: 16,
		DropIfFull: false,
	}, sink, nil)

	for i := 0; i < 10; i++ {
		dispatcher.Emit(context.Background(), AuditEvent{EventType: "e"})
	}
	dispatcher.Close()

	if got := sink.count.Load(); got != 10 {
		t.Fatalf("expected 10 delivered events, got %d", got)
	}
	dispatcher.Emit(context.Background(), AuditEvent{EventType: "after-close"})
	if got := sink.count.Load(); got != 10 {
		t.Fatalf("emit after close must be ignored, got %d", got)
	}
}

func TestAuditSinkPanicDoesNotStopDispatcher(t *testing.T) {
	var delivered atomic.Int64
	sink := AuditSinkFunc(func(_ context.Context, ev AuditEvent) {
		if ev.EventType == "boom" {
			panic("sink failure")
		}
		delivered.Add(1)
	})
	dispatcher := newAuditDispatcher(AuditConfig{Enabled: true, BufferSize: 4}, sink, nil)

	dispatcher.Emit(context.Background(), AuditEvent{EventType: "boom"})
	dispatcher.Emit(context.Background(), AuditEvent{EventType: "ok"})
	dispatcher.Close()

	if delivered.Load() != 1 {
		t.Fatalf("expected event after panic to be delivered, got %d", delivered.Load())
	}
	if dispatcher.Dropped() != 1 {
		t.Fatalf("expected panicked event counted as dropped, got %d", dispatcher.Dropped())
	}
}

func TestSlogSinkLevels(t *testing.T) {
	var buf bytes.Buffer
	sink := NewSlogSink(slog.New(slog.NewJSONHandler(&buf, nil)))

	sink.Emit(context.Background(), AuditEvent{EventType: AuditRefreshSuccess, CycleID: "c1", Waiters: 2, Success: true})
	sink.Emit(context.Background(), AuditEvent{EventType: AuditRefreshFailure, CycleID: "c1", Error: "rejected"})

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 records, got %q", buf.String())
	}
	var first, second map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &first); err != nil {
		t.Fatalf("invalid record: %v", err)
	}
	if err := json.Unmarshal([]byte(lines[1]), &second); err != nil {
		t.Fatalf("invalid record: %v", err)
	}
	if first["level"] != "INFO" || first["event_type"] != AuditRefreshSuccess || first["waiters"] != float64(2) {
		t.Fatalf("unexpected success record %v", first)
	}
	if second["level"] != "WARN" || second["error"] != "rejected" {
		t.Fatalf("unexpected failure record %v", second)
	}
}

func TestJSONWriterSinkWritesLines(t *testing.T) {
	var buf bytes.Buffer
	sink := NewJSONWriterSink(&buf)
	sink.Emit(context.Background(), AuditEvent{EventType: AuditRefreshSuccess, CycleID: "c1", Waiters: 3, Success: true})

	line := strings.TrimSpace(buf.String())
	var ev AuditEvent
	if err := json.Unmarshal([]byte(line), &ev); err != nil {
		t.Fatalf("invalid json line %q: %v", line, err)
	}
	if ev.EventType != AuditRefreshSuccess || ev.Waiters != 3 || ev.CycleID != "c1" {
		t.Fatalf("unexpected event %+v", ev)
	}
}

func TestClientAuditsRefreshFailureAndTermination(t *testing.T) {
	ts := newTokenServer(t, "never")
	store := newFakeStore("stale", "refresh-1")
	sink := NewChannelSink(8)

	cfg := DefaultConfig()
	cfg.BaseURL = ts.srv.URL
	cfg.Audit.Enabled = true
	cfg.Audit.BufferSize = 8
	cfg.Audit.DropIfFull = false

	client, err := New().
		WithConfig(cfg).
		WithTokenStore(store).
		WithRefreshEndpoint(RefreshFunc(func(context.Context, string) (TokenPair, error) {
			return TokenPair{}, errors.New("refresh rejected: 401")
		})).
		WithSessionTerminator(SessionTerminatorFunc(func(ctx context.Context) { _ = store.Clear(ctx) })).
		WithAuditSink(sink).
		Build()
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}

	if _, err := client.Do(context.Background(), &Request{Method: http.MethodGet, Path: "/api/v1/achievements"}); !errors.Is(err, ErrRefreshFailed) {
		t.Fatalf("expected refresh failure, got %v", err)
	}
	client.Close()

	var types []string
	for len(types) < 2 {
		select {
		case ev := <-sink.Events():
			if ev.Timestamp.IsZero() {
				t.Fatalf("expected timestamp on %s", ev.EventType)
			}
			types = append(types, ev.EventType)
		case <-time.After(2 * time.Second):
			t.Fatalf("expected audit events, got %v", types)
		}
	}
	if types[0] != AuditRefreshFailure || types[1] != AuditSessionTerminated {
		t.Fatalf("unexpected audit sequence %v", types)
	}
}
