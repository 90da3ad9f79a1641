package handlers

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/ticket-intake/internal/observability"
)

const pingTimeout = 2 * time.Second

// Pinger is a dependency the readiness check pings.
type Pinger interface {
	Ping(ctx context.Context) error
}

// QueueInspector reports the depth of the event queue.
type QueueInspector interface {
	Len(ctx context.Context) (pending, inflight int64, err error)
}

// HealthHandler serves liveness, readiness and the metrics snapshot.
type HealthHandler struct {
	serviceName  string
	version      string
	started      time.Time
	dependencies map[string]Pinger
	metrics      *observability.Metrics
	queue        QueueInspector
}

// NewHealthHandler returns a handler. Only the dependencies passed in are
// checked for readiness.
func NewHealthHandler(serviceName, version string, metrics *observability.Metrics, dependencies map[string]Pinger) *HealthHandler {
	return &HealthHandler{
		serviceName:  serviceName,
		version:      version,
		started:      time.Now(),
		metrics:      metrics,
		dependencies: dependencies,
	}
}

// WithQueue adds event queue depth to the metrics snapshot.
func (h *HealthHandler) WithQueue(q QueueInspector) *HealthHandler {
	h.queue = q
	return h
}

// Live GET /health/live.
func (h *HealthHandler) Live(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":         "alive",
		"service":        h.serviceName,
		"version":        h.version,
		"uptime_seconds": int64(time.Since(h.started).Seconds()),
	})
}

// Ready GET /health/ready. Dependencies are pinged in parallel.
func (h *HealthHandler) Ready(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), pingTimeout)
	defer cancel()

	names := make([]string, 0, len(h.dependencies))
	for name := range h.dependencies {
		names = append(names, name)
	}
	sort.Strings(names)

	results := make([]error, len(names))
	var wg sync.WaitGroup
	for i, name := range names {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = h.dependencies[name].Ping(ctx)
		}()
	}
	wg.Wait()

	depStatus := fiber.Map{}
	ready := true
	for i, name := range names {
		if results[i] != nil {
			depStatus[name] = results[i].Error()
			ready = false
			continue
		}
		depStatus[name] = "ok"
	}

	if ready {
		return c.JSON(fiber.Map{"status": "ready", "dependencies": depStatus})
	}
	return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
		"error": fiber.Map{
			"code":    "DEPENDENCY_UNAVAILABLE",
			"message": "one or more dependencies unavailable",
			"details": depStatus,
		},
	})
}

// Metrics GET /metrics.
func (h *HealthHandler) Metrics(c *fiber.Ctx) error {
	snap := h.metrics.Snapshot()
	if h.queue != nil {
		ctx, cancel := context.WithTimeout(c.UserContext(), pingTimeout)
		defer cancel()
		if pending, inflight, err := h.queue.Len(ctx); err == nil {
			snap.Queue = &observability.QueueDepth{Pending: pending, InFlight: inflight}
		}
	}
	return c.JSON(snap)
}
