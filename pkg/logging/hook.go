package logging

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Record is what adapters receive: a redacted, flattened log line.
type Record struct {
	Level   Level
	Message string
	Time    time.Time
	Fields  map[string]any
}

// Flatten merges level, message and timestamp into the record fields.
func (r Record) Flatten() map[string]any {
	out := make(map[string]any, len(r.Fields)+3)
	for k, v := range r.Fields {
		out[k] = v
	}
	out["level"] = string(r.Level)
	out["message"] = r.Message
	out["timestamp"] = r.Time.UTC().Format(time.RFC3339Nano)
	return out
}

type Adapter interface {
	Name() string
	Accepts(level Level) bool
	Send(rec Record) error
}

type closer interface {
	Close() error
}

type adapterHook struct {
	adapters []Adapter
	once     sync.Once
}

func newAdapterHook(adapters []Adapter) *adapterHook {
	return &adapterHook{adapters: adapters}
}

func (h *adapterHook) Levels() []logrus.Level {
	return logrus.AllLevels
}

func (h *adapterHook) Fire(entry *logrus.Entry) error {
	rec := recordFromEntry(entry)
	for _, a := range h.adapters {
		if !a.Accepts(rec.Level) {
			continue
		}
		if err := a.Send(rec); err != nil {
			adapterDropped.WithLabelValues(a.Name(), "send_failed").Inc()
			fmt.Fprintf(os.Stderr, "[logger] adapter %s failed: %v\n", a.Name(), err)
		}
	}
	return nil
}

// Close flushes every adapter that buffers or holds a resource.
func (h *adapterHook) Close() {
	h.once.Do(func() {
		for _, a := range h.adapters {
			if c, ok := a.(closer); ok {
				if err := c.Close(); err != nil {
					fmt.Fprintf(os.Stderr, "[logger] closing adapter %s: %v\n", a.Name(), err)
				}
			}
		}
	})
}

func recordFromEntry(entry *logrus.Entry) Record {
	fields := make(map[string]any, len(entry.Data))
	for k, v := range entry.Data {
		if k == SeverityField {
			continue
		}
		if err, ok := v.(error); ok {
			fields[k] = err.Error()
			continue
		}
		fields[k] = v
	}
	return Record{
		Level:   levelOf(entry),
		Message: entry.Message,
		Time:    entry.Time,
		Fields:  Sanitize(fields),
	}
}

// AsyncAdapter delivers records from a bounded queue on its own goroutine. A full
// queue drops the record.
type AsyncAdapter struct {
	inner  Adapter
	queue  chan Record
	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

func NewAsyncAdapter(inner Adapter, size int) *AsyncAdapter {
	a := &AsyncAdapter{
		inner: inner,
		queue: make(chan Record, size),
	}
	a.wg.Add(1)
	go a.run()
	return a
}

func (a *AsyncAdapter) Name() string {
	return a.inner.Name()
}

func (a *AsyncAdapter) Accepts(level Level) bool {
	return a.inner.Accepts(level)
}

func (a *AsyncAdapter) Send(rec Record) error {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.closed {
		adapterDropped.WithLabelValues(a.Name(), "closed").Inc()
		return nil
	}
	select {
	case a.queue <- rec:
	default:
		adapterDropped.WithLabelValues(a.Name(), "queue_full").Inc()
	}
	return nil
}

func (a *AsyncAdapter) run() {
	defer a.wg.Done()
	for rec := range a.queue {
		if err := a.inner.Send(rec); err != nil {
			adapterDropped.WithLabelValues(a.Name(), "delivery_failed").Inc()
		}
	}
}

// Close stops accepting records and waits for the queue to drain.
func (a *AsyncAdapter) Close() error {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return nil
	}
	a.closed = true
	close(a.queue)
	a.mu.Unlock()
	a.wg.Wait()
	if c, ok := a.inner.(closer); ok {
		return c.Close()
	}
	return nil
}
