//go:build integration

package testutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
)

// HECEvent — конверт события, как его шлёт мост.
type HECEvent struct {
	Event      string `json:"event"`
	SourceType string `json:"sourcetype"`
	Source     string `json:"source"`
}

// CaptureHEC — тестовый приёмник событий: складывает принятые конверты
// и может отвергать первые N запросов (для проверки повторов).
type CaptureHEC struct {
	Server *httptest.Server

	mu       sync.Mutex
	batches  [][]HECEvent
	failLeft atomic.Int32
	requests atomic.Int32
}

func NewCaptureHEC() *CaptureHEC {
	c := &CaptureHEC{}
	c.Server = httptest.NewServer(http.HandlerFunc(c.handle))
	return c
}

// FailNext — следующие n запросов получат 503.
func (c *CaptureHEC) FailNext(n int) { c.failLeft.Store(int32(n)) }

func (c *CaptureHEC) Requests() int { return int(c.requests.Load()) }

// Batches — копия принятых батчей (по одному на запрос).
func (c *CaptureHEC) Batches() [][]HECEvent {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([][]HECEvent, len(c.batches))
	copy(out, c.batches)
	return out
}

// Events — все принятые события в порядке получения.
func (c *CaptureHEC) Events() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []string
	for _, b := range c.batches {
		for _, e := range b {
			out = append(out, e.Event)
		}
	}
	return out
}

func (c *CaptureHEC) Close() { c.Server.Close() }

func (c *CaptureHEC) handle(w http.ResponseWriter, r *http.Request) {
	c.requests.Add(1)

	if r.URL.Path != "/services/collector/event" {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	if c.failLeft.Load() > 0 {
		c.failLeft.Add(-1)
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}

	// тело — конкатенация JSON-конвертов без разделителей
	dec := json.NewDecoder(r.Body)
	var batch []HECEvent
	for dec.More() {
		var ev HECEvent
		if err := dec.Decode(&ev); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		batch = append(batch, ev)
	}

	c.mu.Lock()
	c.batches = append(c.batches, batch)
	c.mu.Unlock()

	w.WriteHeader(http.StatusOK)
}
