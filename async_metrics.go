package ringlog

import (
	"context"
	"sync"

	"github.com/ringlog/ringlog/internal/constants"
)

// AsyncMetrics is a point-in-time snapshot of the ingestion pipeline's
// internal counters: how many Records a Logger has accepted, written,
// dropped, or failed to write, plus the current queue depth and the
// number of writes still outstanding against the ring.
type AsyncMetrics struct {
	Enqueued    uint64
	Written     uint64
	Dropped     uint64
	WriteErrors uint64
	QueueDepth  uint64
	Outstanding uint64
}

// AsyncMetricsHandler receives periodic AsyncMetrics snapshots.
type AsyncMetricsHandler func(context.Context, AsyncMetrics)

//nolint:gochecknoglobals // async metrics use a package-level registry for global handlers.
var asyncMetricsRegistryOnce = sync.OnceValue(func() *asyncMetricsHandlerRegistry {
	return &asyncMetricsHandlerRegistry{}
})

// RegisterAsyncMetricsHandler adds a global handler invoked every time a
// Logger emits an AsyncMetrics snapshot (spec.md itself names no metrics
// surface; this is the ambient observability hook every Logger drives
// on a timer, so a caller can wire in a Prometheus exporter, a
// dashboard, or just a log line without reaching into Logger internals).
func RegisterAsyncMetricsHandler(handler AsyncMetricsHandler) {
	if handler == nil {
		return
	}

	asyncMetricsRegistryOnce().register(handler)
}

// ClearAsyncMetricsHandlers removes all registered async metrics handlers.
func ClearAsyncMetricsHandlers() {
	asyncMetricsRegistryOnce().reset()
}

// EmitAsyncMetrics notifies every registered handler with metrics. The
// handlers run one after another and share a single context whose
// deadline is DefaultMetricsEmitTimeout; a handler that ignores its
// context is not interrupted and delays the handlers after it.
func EmitAsyncMetrics(ctx context.Context, metrics AsyncMetrics) {
	ctx, cancel := context.WithTimeout(ctx, constants.DefaultMetricsEmitTimeout)
	defer cancel()

	asyncMetricsRegistryOnce().emit(ctx, metrics)
}

type asyncMetricsHandlerRegistry struct {
	mu       sync.RWMutex
	handlers []AsyncMetricsHandler
}

func (r *asyncMetricsHandlerRegistry) register(handler AsyncMetricsHandler) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.handlers = append(r.handlers, handler)
}

func (r *asyncMetricsHandlerRegistry) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.handlers = nil
}

func (r *asyncMetricsHandlerRegistry) emit(ctx context.Context, metrics AsyncMetrics) {
	handlers := r.snapshot()
	for _, handler := range handlers {
		handler(ctx, metrics)
	}
}

func (r *asyncMetricsHandlerRegistry) snapshot() []AsyncMetricsHandler {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if len(r.handlers) == 0 {
		return nil
	}

	clone := make([]AsyncMetricsHandler, len(r.handlers))
	copy(clone, r.handlers)

	return clone
}
