package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/ticket-intake/internal/observability"
)

type stubQueue struct{ pending, inflight int64 }

func (q stubQueue) Len(context.Context) (int64, int64, error) { return q.pending, q.inflight, nil }

type okPinger struct{}

func (okPinger) Ping(context.Context) error { return nil }

func TestHealthHandlerQueueDepth(t *testing.T) {
	h := NewHealthHandler("svc", "v1", observability.NewMetrics(), map[string]Pinger{"redis": okPinger{}}).
		WithQueue(stubQueue{pending: 3, inflight: 1})
	app := fiber.New()
	app.Get("/metrics", h.Metrics)
	app.Get("/ready", h.Ready)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	var snap observability.Snapshot
	if err := json.NewDecoder(resp.Body).Decode(&snap); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if snap.Queue == nil || snap.Queue.Pending != 3 || snap.Queue.InFlight != 1 {
		t.Errorf("expected queue depth 3/1, got %+v", snap.Queue)
	}

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/ready", nil))
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected ready 200, got %d", resp.StatusCode)
	}
}
