package toolengine

import (
	"context"
	"sync"

	"github.com/sourcegraph/conc/pool"

	apperrors "hyperfocus/internal/errors"
	"hyperfocus/internal/tools/ports"
)

// ExecuteParallel fans out independent tool calls concurrently and collects
// one outcome per request id. A failing call never blocks or aborts its
// siblings, and callers must correlate via request id rather than arrival
// order.
func (e *Engine) ExecuteParallel(ctx context.Context, calls []ports.ExecutionContext) map[string]*ports.ToolResult {
	results := make(map[string]*ports.ToolResult, len(calls))
	if len(calls) == 0 {
		return results
	}

	var mu sync.Mutex
	p := pool.New()
	if e.maxParallel > 0 {
		p = pool.New().WithMaxGoroutines(e.maxParallel)
	}

	for _, call := range calls {
		call := call
		p.Go(func() {
			var result *ports.ToolResult
			if _, ok := e.registry.Get(call.ToolName); !ok {
				// Synthesize the miss without entering the cache/dedup path.
				e.emitCall(call)
				result = e.finish(call, &ports.ToolResult{
					CallID: call.RequestID,
					Error:  apperrors.NewNotFound(call.ToolName, e.registry.Names()),
				})
			} else {
				result = e.Execute(ctx, call)
			}
			mu.Lock()
			results[call.RequestID] = result
			mu.Unlock()
		})
	}

	p.Wait()
	return results
}
