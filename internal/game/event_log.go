package game

import (
	"bufio"
	"encoding/json"
	"io"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

const (
	EventBufferSize      = 1024 // ring size, oldest events drop first
	MaxEventsPerSec      = 2000
	MaxEventsPerPlayer   = 50 // per second
	BatchFlushSize       = 64
	BatchFlushInterval   = 100 * time.Millisecond
	PlayerLimiterCleanup = 5 * time.Minute
)

// EventLog is a bounded, rate-limited JSONL event sink. Emit never blocks
// the game loop: events are buffered in a ring and written by a background
// goroutine.
type EventLog struct {
	ring      [EventBufferSize]Event
	ringMu    sync.Mutex
	writeHead uint64
	readHead  uint64

	globalLimiter  *rate.Limiter
	playerLimiters sync.Map // playerID -> *limiterEntry

	out     io.Writer
	closer  io.Closer
	outMu   sync.Mutex
	running atomic.Bool
	stop    chan struct{}
	stopped sync.Once
	wg      sync.WaitGroup

	total   atomic.Uint64
	dropped atomic.Uint64
}

type limiterEntry struct {
	limiter  *rate.Limiter
	lastUsed atomic.Int64 // unix nano
}

// EventLogStats is a monitoring view of the log
type EventLogStats struct {
	Total   uint64 `json:"total"`
	Dropped uint64 `json:"dropped"`
	Pending uint64 `json:"pending"`
	Running bool   `json:"running"`
}

// NewEventLog creates a stopped event log
func NewEventLog() *EventLog {
	return &EventLog{
		globalLimiter: rate.NewLimiter(MaxEventsPerSec, MaxEventsPerSec/10),
		stop:          make(chan struct{}),
	}
}

// Start opens filePath for append and starts the writer. An empty path
// keeps events in memory only.
func (el *EventLog) Start(filePath string) error {
	if filePath == "" {
		return el.StartWriter(io.Discard)
	}
	f, err := os.OpenFile(filePath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	el.closer = f
	return el.StartWriter(f)
}

// StartWriter starts the writer goroutines on w
func (el *EventLog) StartWriter(w io.Writer) error {
	if el.running.Swap(true) {
		return nil
	}
	el.out = w
	el.wg.Add(2)
	go el.writerLoop()
	go el.cleanupLoop()
	return nil
}

// Stop flushes pending events and closes the output. Safe to call twice.
func (el *EventLog) Stop() {
	if !el.running.Load() {
		return
	}
	el.stopped.Do(func() {
		el.running.Store(false)
		close(el.stop)
		el.wg.Wait()

		el.outMu.Lock()
		if el.closer != nil {
			el.closer.Close()
		}
		el.outMu.Unlock()
	})
}

// Emit queues an event. It returns false when the log is stopped or the
// event was rate limited.
func (el *EventLog) Emit(event Event) bool {
	if !el.running.Load() {
		return false
	}
	if !el.globalLimiter.Allow() {
		el.dropped.Add(1)
		return false
	}
	if event.PlayerID != "" && !el.playerLimiter(event.PlayerID).Allow() {
		el.dropped.Add(1)
		return false
	}

	el.ringMu.Lock()
	el.writeHead++
	event.Sequence = el.writeHead
	if el.writeHead-el.readHead > EventBufferSize {
		el.readHead++
		el.dropped.Add(1)
	}
	el.ring[el.writeHead%EventBufferSize] = event
	el.ringMu.Unlock()

	el.total.Add(1)
	return true
}

func (el *EventLog) playerLimiter(playerID string) *rate.Limiter {
	now := time.Now().UnixNano()
	if v, ok := el.playerLimiters.Load(playerID); ok {
		e := v.(*limiterEntry)
		e.lastUsed.Store(now)
		return e.limiter
	}
	e := &limiterEntry{limiter: rate.NewLimiter(MaxEventsPerPlayer, MaxEventsPerPlayer/5)}
	e.lastUsed.Store(now)
	v, _ := el.playerLimiters.LoadOrStore(playerID, e)
	return v.(*limiterEntry).limiter
}

func (el *EventLog) writerLoop() {
	defer el.wg.Done()

	ticker := time.NewTicker(BatchFlushInterval)
	defer ticker.Stop()

	batch := make([]Event, 0, BatchFlushSize)
	for {
		select {
		case <-el.stop:
			for {
				batch = el.drain(batch[:0])
				if len(batch) == 0 {
					return
				}
				el.write(batch)
			}
		case <-ticker.C:
			batch = el.drain(batch[:0])
			if len(batch) > 0 {
				el.write(batch)
			}
		}
	}
}

func (el *EventLog) cleanupLoop() {
	defer el.wg.Done()

	ticker := time.NewTicker(PlayerLimiterCleanup)
	defer ticker.Stop()

	for {
		select {
		case <-el.stop:
			return
		case <-ticker.C:
			cutoff := time.Now().Add(-PlayerLimiterCleanup).UnixNano()
			el.playerLimiters.Range(func(k, v interface{}) bool {
				if v.(*limiterEntry).lastUsed.Load() < cutoff {
					el.playerLimiters.Delete(k)
				}
				return true
			})
		}
	}
}

// drain moves up to BatchFlushSize events from the ring into batch
func (el *EventLog) drain(batch []Event) []Event {
	el.ringMu.Lock()
	defer el.ringMu.Unlock()

	for el.readHead < el.writeHead && len(batch) < BatchFlushSize {
		el.readHead++
		batch = append(batch, el.ring[el.readHead%EventBufferSize])
	}
	return batch
}

// write appends events as newline-delimited JSON
func (el *EventLog) write(batch []Event) {
	el.outMu.Lock()
	defer el.outMu.Unlock()

	w := bufio.NewWriter(el.out)
	enc := json.NewEncoder(w)
	for _, e := range batch {
		enc.Encode(e)
	}
	w.Flush()
}

// Stats returns counters for monitoring
func (el *EventLog) Stats() EventLogStats {
	el.ringMu.Lock()
	pending := el.writeHead - el.readHead
	el.ringMu.Unlock()

	return EventLogStats{
		Total:   el.total.Load(),
		Dropped: el.dropped.Load(),
		Pending: pending,
		Running: el.running.Load(),
	}
}
