package observability

import (
	"strconv"
	"sync"
	"time"
)

// Metrics provides basic in-memory counters.
type Metrics struct {
	mu           sync.Mutex
	requestCount map[string]int64
	errorCount   map[string]int64
	stepCount    map[string]int64
	runCount     map[string]int64
	runDuration  map[string]time.Duration
}

// NewMetrics initializes metrics storage.
func NewMetrics() *Metrics {
	return &Metrics{
		requestCount: make(map[string]int64),
		errorCount:   make(map[string]int64),
		stepCount:    make(map[string]int64),
		runCount:     make(map[string]int64),
		runDuration:  make(map[string]time.Duration),
	}
}

// RecordRequest increments counters for requests.
func (m *Metrics) RecordRequest(path, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	key := pathKey(path, method, status)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requestCount[key]++
}

// RecordError increments error counters.
func (m *Metrics) RecordError(path, method, code string) {
	if m == nil {
		return
	}
	key := path + "|" + method + "|" + code
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errorCount[key]++
}

// RecordStep counts one step attempt outcome.
func (m *Metrics) RecordStep(workflow, step, outcome string) {
	if m == nil {
		return
	}
	key := workflow + "|" + step + "|" + outcome
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stepCount[key]++
}

// RecordRun counts a finished run and accumulates its wall time.
func (m *Metrics) RecordRun(workflow, status string, duration time.Duration) {
	if m == nil {
		return
	}
	key := workflow + "|" + status
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runCount[key]++
	m.runDuration[key] += duration
}

// Snapshot is a point-in-time copy of every counter.
type Snapshot struct {
	Requests      map[string]int64 `json:"requests"`
	Errors        map[string]int64 `json:"errors"`
	Steps         map[string]int64 `json:"steps"`
	Runs          map[string]int64 `json:"runs"`
	RunDurationMS map[string]int64 `json:"run_duration_ms"`
	Queue         *QueueDepth      `json:"queue,omitempty"`
}

// QueueDepth counts events waiting in and taken from the Redis queue.
type QueueDepth struct {
	Pending  int64 `json:"pending"`
	InFlight int64 `json:"in_flight"`
}

// Snapshot copies the current counters.
func (m *Metrics) Snapshot() Snapshot {
	snap := Snapshot{
		Requests:      map[string]int64{},
		Errors:        map[string]int64{},
		Steps:         map[string]int64{},
		Runs:          map[string]int64{},
		RunDurationMS: map[string]int64{},
	}
	if m == nil {
		return snap
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	copyCounts(snap.Requests, m.requestCount)
	copyCounts(snap.Errors, m.errorCount)
	copyCounts(snap.Steps, m.stepCount)
	copyCounts(snap.Runs, m.runCount)
	for k, d := range m.runDuration {
		snap.RunDurationMS[k] = d.Milliseconds()
	}
	return snap
}

func copyCounts(dst, src map[string]int64) {
	for k, v := range src {
		dst[k] = v
	}
}

func pathKey(path, method string, status int) string {
	return path + "|" + method + "|" + strconv.Itoa(status)
}
