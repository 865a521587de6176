package toolengine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"

	apperrors "hyperfocus/internal/errors"
	"hyperfocus/internal/events"
	"hyperfocus/internal/logging"
	"hyperfocus/internal/toolregistry"
	"hyperfocus/internal/tools/ports"
)

// Options configures an Engine. Zero values fall back to the production
// defaults.
type Options struct {
	CacheTTL       time.Duration
	CacheMaxSize   int
	SweepInterval  time.Duration
	DefaultTimeout time.Duration
	MaxParallel    int
	Log            ExecutionLog
	Events         events.Sink
	Logger         logging.Logger
	Metrics        *Metrics
}

const (
	defaultCacheTTL      = 5 * time.Minute
	defaultCacheMaxSize  = 1000
	defaultSweepInterval = time.Minute
)

// Engine executes a single tool call with caching, in-flight deduplication,
// timeout enforcement and execution logging, regardless of which handler is
// invoked. Construct with NewEngine and release with Close; instances do
// not share state, so tests can create as many as they need.
type Engine struct {
	registry *toolregistry.Registry
	cache    *resultCache
	flight   singleflight.Group

	timeout     time.Duration
	maxParallel int

	log     ExecutionLog
	events  events.Sink
	logger  logging.Logger
	metrics *Metrics
	tracer  trace.Tracer

	stopSweep chan struct{}
	sweepDone chan struct{}
	closeOnce sync.Once
}

// NewEngine builds an engine over the given registry and starts the
// background cache sweep.
func NewEngine(registry *toolregistry.Registry, opts Options) (*Engine, error) {
	if registry == nil {
		return nil, fmt.Errorf("toolengine: registry is required")
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = defaultCacheTTL
	}
	if opts.CacheMaxSize <= 0 {
		opts.CacheMaxSize = defaultCacheMaxSize
	}
	if opts.SweepInterval <= 0 {
		opts.SweepInterval = defaultSweepInterval
	}
	cache, err := newResultCache(opts.CacheMaxSize, opts.CacheTTL)
	if err != nil {
		return nil, err
	}

	e := &Engine{
		registry:    registry,
		cache:       cache,
		timeout:     opts.DefaultTimeout,
		maxParallel: opts.MaxParallel,
		log:         opts.Log,
		events:      events.OrNop(opts.Events),
		logger:      logging.OrNop(opts.Logger),
		metrics:     opts.Metrics,
		tracer:      otel.Tracer("hyperfocus/toolengine"),
		stopSweep:   make(chan struct{}),
		sweepDone:   make(chan struct{}),
	}
	if e.log == nil {
		e.log = NopExecutionLog()
	}

	go e.sweepLoop(opts.SweepInterval)
	return e, nil
}

// Close stops the background sweep. Safe to call more than once.
func (e *Engine) Close() {
	e.closeOnce.Do(func() {
		close(e.stopSweep)
		<-e.sweepDone
	})
}

func (e *Engine) sweepLoop(interval time.Duration) {
	defer close(e.sweepDone)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if removed := e.cache.sweep(time.Now()); removed > 0 {
				e.logger.Debug("Cache sweep removed %d expired entries", removed)
			}
		case <-e.stopSweep:
			return
		}
	}
}

// CacheLen reports the number of live cache entries.
func (e *Engine) CacheLen() int {
	return e.cache.len()
}

// Execute runs one tool call end to end: event emission, cache lookup,
// in-flight deduplication, handler invocation, result recording. It never
// returns nil and never lets a handler error escape as a Go error.
func (e *Engine) Execute(ctx context.Context, ec ports.ExecutionContext) *ports.ToolResult {
	e.emitCall(ec)

	tool, err := e.registry.Resolve(ec.ToolName)
	if err != nil {
		return e.finish(ec, &ports.ToolResult{CallID: ec.RequestID, Error: err})
	}
	return e.finish(ec, e.executeResolved(ctx, ec, tool))
}

// executeResolved is the cache → dedup → invoke → record pipeline for an
// already-resolved tool. Steps happen strictly in that order.
func (e *Engine) executeResolved(ctx context.Context, ec ports.ExecutionContext, tool *toolregistry.RegisteredTool) *ports.ToolResult {
	ctx, span := e.tracer.Start(ctx, "tool.execute",
		trace.WithAttributes(
			attribute.String("tool.name", ec.ToolName),
			attribute.String("tool.call_id", ec.RequestID),
		))
	defer span.End()

	if violations := toolregistry.ValidateArguments(tool.Meta.InputSchema, ec.Parameters); len(violations) > 0 {
		err := apperrors.NewValidation(fmt.Sprintf("invalid arguments for %s: %s",
			ec.ToolName, toolregistry.FormatViolations(violations)))
		span.SetStatus(codes.Error, err.Error())
		return &ports.ToolResult{CallID: ec.RequestID, Error: err}
	}

	key := cacheKey(ec.ToolName, ec.Parameters)

	if tool.Meta.Cacheable {
		if content, ok := e.cache.get(key, time.Now()); ok {
			e.metrics.cacheHit()
			span.SetAttributes(attribute.Bool("tool.cached", true))
			return &ports.ToolResult{CallID: ec.RequestID, Content: content, Cached: true}
		}
		e.metrics.cacheMiss()
	}

	// At most one concurrent execution per (tool, parameter-set) pair; the
	// flight entry is removed when the call settles.
	v, _, shared := e.flight.Do(key, func() (any, error) {
		return e.invoke(ctx, ec, tool, key), nil
	})
	if shared {
		e.metrics.dedupShare()
		span.SetAttributes(attribute.Bool("tool.deduplicated", true))
	}
	out := v.(*flightOutcome)

	result := &ports.ToolResult{
		CallID:   ec.RequestID,
		Content:  out.content,
		Error:    out.err,
		Duration: out.duration,
	}
	if out.err != nil {
		span.RecordError(out.err)
		span.SetStatus(codes.Error, out.err.Error())
	}
	return result
}

// flightOutcome is shared among all callers awaiting the same in-flight
// execution. Errors travel inside it so singleflight hands every waiter the
// identical settlement.
type flightOutcome struct {
	content  any
	err      error
	duration time.Duration
}

type handlerReturn struct {
	content any
	err     error
}

// invoke runs the handler with the configured timeout, records the
// execution log entry and stores cacheable successes. Exactly one invoke
// happens per flight.
func (e *Engine) invoke(ctx context.Context, ec ports.ExecutionContext, tool *toolregistry.RegisteredTool, key string) *flightOutcome {
	hctx := ctx
	if e.timeout > 0 {
		var cancel context.CancelFunc
		hctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	start := time.Now()
	ch := make(chan handlerReturn, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				ch <- handlerReturn{err: fmt.Errorf("tool %s panicked: %v", ec.ToolName, r)}
			}
		}()
		content, err := tool.Handler(hctx, ec.Parameters, ec.UserID)
		ch <- handlerReturn{content: content, err: err}
	}()

	var out *flightOutcome
	select {
	case ret := <-ch:
		out = &flightOutcome{content: ret.content, err: ret.err, duration: time.Since(start)}
	case <-hctx.Done():
		// The handler received hctx and is expected to stop cooperatively;
		// the waiting caller stops here either way.
		err := hctx.Err()
		if err == context.DeadlineExceeded {
			out = &flightOutcome{err: apperrors.NewTimeout(ec.ToolName, err), duration: time.Since(start)}
		} else {
			out = &flightOutcome{err: apperrors.Wrap(apperrors.KindUnknown, err), duration: time.Since(start)}
		}
	}

	if out.err != nil {
		e.logger.Warn("Tool %s failed for user %s after %s: %v", ec.ToolName, ec.UserID, out.duration, out.err)
		e.metrics.execution(ec.ToolName, LogStatusError, out.duration.Seconds())
		e.record(ctx, ec, out, LogStatusError)
		return out
	}

	if tool.Meta.Cacheable {
		e.cache.put(key, out.content, time.Now())
	}
	e.logger.Debug("Tool %s completed in %s", ec.ToolName, out.duration)
	e.metrics.execution(ec.ToolName, LogStatusCompleted, out.duration.Seconds())
	e.record(ctx, ec, out, LogStatusCompleted)
	return out
}

// record writes the execution log entry. Log sink failures never fail the
// tool call.
func (e *Engine) record(ctx context.Context, ec ports.ExecutionContext, out *flightOutcome, status string) {
	rec := ExecutionRecord{
		UserID:          ec.UserID,
		ToolName:        ec.ToolName,
		ToolCallID:      ec.RequestID,
		Parameters:      ec.Parameters,
		Result:          out.content,
		Status:          status,
		ExecutionTimeMS: out.duration.Milliseconds(),
		CompletedAt:     time.Now(),
	}
	if out.err != nil {
		rec.ErrorMessage = out.err.Error()
	}
	if err := e.log.RecordExecution(ctx, rec); err != nil {
		e.logger.Warn("Execution log write failed for %s: %v", ec.ToolName, err)
	}
}

func (e *Engine) emitCall(ec ports.ExecutionContext) {
	e.events.EmitToolCall(events.ToolCallEvent{
		ID:         ec.RequestID,
		Name:       ec.ToolName,
		Parameters: ec.Parameters,
		Timestamp:  time.Now(),
		Status:     events.StatusRunning,
	})
}

// finish pairs the result event with the call event emitted at the start of
// Execute and is the single exit path, so every tool_call gets exactly one
// tool_result.
func (e *Engine) finish(ec ports.ExecutionContext, result *ports.ToolResult) *ports.ToolResult {
	if result.CallID == "" {
		result.CallID = ec.RequestID
	}
	event := events.ToolResultEvent{
		ID:         ec.RequestID + "-result",
		ToolCallID: result.CallID,
		Timestamp:  time.Now(),
	}
	if result.Error != nil {
		event.Error = result.Error.Error()
	} else {
		event.Result = result.Content
	}
	e.events.EmitToolResult(event)
	return result
}
