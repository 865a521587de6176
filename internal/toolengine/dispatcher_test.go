package toolengine

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	apperrors "hyperfocus/internal/errors"
	"hyperfocus/internal/events"
	"hyperfocus/internal/toolregistry"
	"hyperfocus/internal/tools/ports"
)

func TestExecuteParallelCollectsPerRequestID(t *testing.T) {
	registry := toolregistry.New(nil)
	if err := registry.Register(testMeta("double", false), func(_ context.Context, args map[string]any, _ string) (any, error) {
		n, _ := args["key"].(string)
		return n + n, nil
	}); err != nil {
		t.Fatalf("register: %v", err)
	}
	engine := newTestEngine(t, registry, Options{MaxParallel: 4})

	var calls []ports.ExecutionContext
	for i := 0; i < 6; i++ {
		calls = append(calls, testContext("double", fmt.Sprintf("call-%d", i), map[string]any{"key": fmt.Sprint(i)}))
	}

	results := engine.ExecuteParallel(context.Background(), calls)
	if len(results) != len(calls) {
		t.Fatalf("expected %d results, got %d", len(calls), len(results))
	}
	for i := 0; i < 6; i++ {
		id := fmt.Sprintf("call-%d", i)
		res, ok := results[id]
		if !ok {
			t.Fatalf("missing result for %s", id)
		}
		if res.Error != nil {
			t.Fatalf("%s failed: %v", id, res.Error)
		}
		want := fmt.Sprint(i) + fmt.Sprint(i)
		if res.Content != want {
			t.Fatalf("%s: expected %q, got %v", id, want, res.Content)
		}
	}
}

func TestExecuteParallelIsolatesFailures(t *testing.T) {
	registry := toolregistry.New(nil)
	if err := registry.Register(testMeta("ok", false), func(context.Context, map[string]any, string) (any, error) {
		return "fine", nil
	}); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := registry.Register(testMeta("broken", false), func(context.Context, map[string]any, string) (any, error) {
		return nil, errors.New("handler failure")
	}); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := registry.Register(testMeta("explode", false), func(context.Context, map[string]any, string) (any, error) {
		panic("boom")
	}); err != nil {
		t.Fatalf("register: %v", err)
	}

	stream := events.NewStream()
	engine := newTestEngine(t, registry, Options{Events: stream})

	results := engine.ExecuteParallel(context.Background(), []ports.ExecutionContext{
		testContext("ok", "call-ok", nil),
		testContext("broken", "call-broken", nil),
		testContext("explode", "call-explode", nil),
		testContext("missing", "call-missing", nil),
	})

	if res := results["call-ok"]; res.Error != nil || res.Content != "fine" {
		t.Fatalf("sibling failures leaked into healthy call: %+v", res)
	}
	if res := results["call-broken"]; res.Error == nil {
		t.Fatal("expected handler failure to surface")
	}
	if res := results["call-explode"]; res.Error == nil {
		t.Fatal("expected contained panic to surface")
	}
	res := results["call-missing"]
	if res.Error == nil || apperrors.KindOf(res.Error) != apperrors.KindNotFound {
		t.Fatalf("expected not-found for unknown tool, got %+v", res)
	}

	// Every branch, including the synthesized miss, keeps the event pairing.
	if open := stream.Unpaired(); len(open) != 0 {
		t.Fatalf("unpaired tool calls after batch: %v", open)
	}
	if got := len(stream.Calls()); got != 4 {
		t.Fatalf("expected 4 call events, got %d", got)
	}
}

func TestExecuteParallelHonorsMaxParallel(t *testing.T) {
	var active, peak atomic.Int64
	registry := toolregistry.New(nil)
	if err := registry.Register(testMeta("slow", false), func(context.Context, map[string]any, string) (any, error) {
		now := active.Add(1)
		for {
			prev := peak.Load()
			if now <= prev || peak.CompareAndSwap(prev, now) {
				break
			}
		}
		time.Sleep(30 * time.Millisecond)
		active.Add(-1)
		return "ok", nil
	}); err != nil {
		t.Fatalf("register: %v", err)
	}
	engine := newTestEngine(t, registry, Options{MaxParallel: 2})

	var calls []ports.ExecutionContext
	for i := 0; i < 6; i++ {
		// Distinct arguments so deduplication stays out of the picture.
		calls = append(calls, testContext("slow", fmt.Sprintf("call-%d", i), map[string]any{"key": fmt.Sprint(i)}))
	}
	engine.ExecuteParallel(context.Background(), calls)

	if got := peak.Load(); got > 2 {
		t.Fatalf("expected at most 2 concurrent executions, observed %d", got)
	}
}

func TestExecuteParallelEmptyBatch(t *testing.T) {
	engine := newTestEngine(t, toolregistry.New(nil), Options{})
	results := engine.ExecuteParallel(context.Background(), nil)
	if len(results) != 0 {
		t.Fatalf("expected empty result map, got %d entries", len(results))
	}
}
