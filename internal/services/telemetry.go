package services

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/interledger/relay-connector/internal/ilp"
	"github.com/interledger/relay-connector/internal/metrics"
)

// Record is one fulfilled packet's telemetry entry, grounded on
// interledger-relay's services/big_query/mod.rs RowData. Destination has
// already had its STREAM connection tag stripped so that many packets on
// one connection aggregate under a single destination.
type Record struct {
	Account     string
	Destination ilp.Address
	Amount      uint64
	FulfillTime time.Time
}

// Exporter streams a completed batch of Records to a sink (a logger, a
// streaming-insert API, ...). The default, used by the reference
// cmd/ wiring, logs each batch via the structured logger (§4.3.6).
type Exporter interface {
	Export(ctx context.Context, records []Record) error
}

// LogExporter is the default Exporter: it writes each record as a log line.
type LogExporter struct {
	Log *logrus.Entry
}

func (e LogExporter) Export(ctx context.Context, records []Record) error {
	for _, r := range records {
		e.Log.WithFields(logrus.Fields{
			"account":      r.Account,
			"destination":  string(r.Destination),
			"amount":       r.Amount,
			"fulfill_time": r.FulfillTime,
		}).Info("telemetry record")
	}
	return nil
}

// telemetryQueue batches Records up to capacity before handing the batch to
// the exporter in a background goroutine, grounded on
// big_query/logger_queue.rs LoggerQueue.
type telemetryQueue struct {
	mu       sync.Mutex
	buf      []Record
	flushing bool
	capacity int
}

func newTelemetryQueue(capacity int) *telemetryQueue {
	return &telemetryQueue{capacity: capacity}
}

// tryWrite appends r to the queue, returning false (refusing the row) if
// the queue is currently mid-flush. Reaching capacity triggers an
// asynchronous flush.
func (q *telemetryQueue) tryWrite(exporter Exporter, log *logrus.Entry, r Record) bool {
	q.mu.Lock()
	if q.flushing {
		q.mu.Unlock()
		return false
	}
	q.buf = append(q.buf, r)
	full := len(q.buf) >= q.capacity
	var toFlush []Record
	if full {
		q.flushing = true
		toFlush = q.buf
		q.buf = nil
	}
	q.mu.Unlock()

	if full {
		go q.flush(exporter, log, toFlush)
	}
	return true
}

func (q *telemetryQueue) flush(exporter Exporter, log *logrus.Entry, rows []Record) {
	err := exporter.Export(context.Background(), rows)

	q.mu.Lock()
	q.flushing = false
	if err != nil {
		q.buf = append(rows, q.buf...)
	}
	q.mu.Unlock()

	if err != nil {
		log.WithError(err).WithField("rows", len(rows)).Warn("telemetry flush error")
	}
}

// flushNow forces a flush of whatever is buffered, even below capacity, if
// the queue isn't already mid-flush. Used by the periodic flush ticker and
// by shutdown drain.
func (q *telemetryQueue) flushNow(exporter Exporter, log *logrus.Entry) {
	q.mu.Lock()
	if q.flushing || len(q.buf) == 0 {
		q.mu.Unlock()
		return
	}
	q.flushing = true
	rows := q.buf
	q.buf = nil
	q.mu.Unlock()

	go q.flush(exporter, log, rows)
}

func (q *telemetryQueue) isReady() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return !q.flushing
}

func (q *telemetryQueue) isIdle() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return !q.flushing && len(q.buf) == 0
}

func (q *telemetryQueue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.buf)
}

// TelemetrySink is the bounded in-memory multi-queue sink behind the
// Telemetry Gate (§4.3.6): N queues sharded so that writes never block,
// with a bounded overflow list for the rare case every queue refuses a
// row mid-flush, grounded on interledger-relay's services/big_query/{mod,
// logger,logger_queue}.rs.
type TelemetrySink struct {
	queues        []*telemetryQueue
	exporter      Exporter
	log           *logrus.Entry
	flushInterval time.Duration

	overflowMu  sync.Mutex
	overflow    []Record
	maxOverflow int

	stopCh   chan struct{}
	doneCh   chan struct{}
	stopOnce sync.Once

	// Metrics is optional; when set, each Write reports the current depth
	// of every queue (§6 Metrics).
	Metrics *metrics.Registry
}

// NewTelemetrySink builds a sink with queueCount queues, each flushing at
// batchCapacity records, exporting via exporter. A zero queueCount produces
// a "dummy" sink that discards every write without buffering
// (matching Logger::default()/is_dummy in the original).
func NewTelemetrySink(queueCount, batchCapacity int, flushInterval time.Duration, exporter Exporter, log *logrus.Entry) *TelemetrySink {
	queues := make([]*telemetryQueue, queueCount)
	for i := range queues {
		queues[i] = newTelemetryQueue(batchCapacity)
	}
	return &TelemetrySink{
		queues:        queues,
		exporter:      exporter,
		log:           log,
		flushInterval: flushInterval,
		maxOverflow:   batchCapacity * 10,
		stopCh:        make(chan struct{}),
		doneCh:        make(chan struct{}),
	}
}

func (s *TelemetrySink) IsDummy() bool { return len(s.queues) == 0 }

// IsAvailable reports whether at least one queue is not currently flushing
// (or the sink is dummy, which is always available).
func (s *TelemetrySink) IsAvailable() bool {
	if s.IsDummy() {
		return true
	}
	for _, q := range s.queues {
		if q.isReady() {
			return true
		}
	}
	return false
}

// Write enqueues r into the first queue that accepts it, falling back to
// the bounded overflow list if every queue is mid-flush.
func (s *TelemetrySink) Write(r Record) {
	if s.IsDummy() {
		return
	}
	defer s.reportDepth()

	for _, q := range s.queues {
		if q.tryWrite(s.exporter, s.log, r) {
			return
		}
	}

	s.overflowMu.Lock()
	defer s.overflowMu.Unlock()
	if len(s.overflow) >= s.maxOverflow {
		s.log.Warn("telemetry overflow full, dropping record")
		return
	}
	s.overflow = append(s.overflow, r)
}

// reportDepth publishes each queue's current buffered-row count to the
// gauge, keyed by queue index (§6 Metrics).
func (s *TelemetrySink) reportDepth() {
	if s.Metrics == nil {
		return
	}
	for i, q := range s.queues {
		s.Metrics.TelemetryQueueDepth.WithLabelValues(strconv.Itoa(i)).Set(float64(q.len()))
	}
}

// Clean tries to move as much of the overflow back onto the queues as
// possible, logging if any remains.
func (s *TelemetrySink) Clean() {
	s.overflowMu.Lock()
	defer s.overflowMu.Unlock()

	remaining := s.overflow[:0]
	for _, r := range s.overflow {
		placed := false
		for _, q := range s.queues {
			if q.tryWrite(s.exporter, s.log, r) {
				placed = true
				break
			}
		}
		if !placed {
			remaining = append(remaining, r)
		}
	}
	s.overflow = remaining
	if len(s.overflow) > 0 {
		s.log.WithField("len", len(s.overflow)).Info("non-empty telemetry overflow")
	}
}

// Start launches the background ticker that staggers a flush across the
// queues and periodically drains the overflow, returning once ctx is
// cancelled or Stop is called.
func (s *TelemetrySink) Start(ctx context.Context) {
	if s.IsDummy() || s.flushInterval <= 0 {
		close(s.doneCh)
		return
	}
	go func() {
		defer close(s.doneCh)
		interval := s.flushInterval / time.Duration(len(s.queues))
		if interval <= 0 {
			interval = s.flushInterval
		}
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		index := 0
		for {
			select {
			case <-ctx.Done():
				return
			case <-s.stopCh:
				return
			case <-ticker.C:
				if index == 0 {
					s.Clean()
				}
				s.queues[index].flushNow(s.exporter, s.log)
				index = (index + 1) % len(s.queues)
			}
		}
	}()
}

// Stop flushes every queue immediately, then polls for idleness for up to
// ~25s (100 attempts x 250ms), matching the original's shutdown drain
// (§4.3.6, §5 cancellation). It is idempotent: the PreStop middleware and
// an ordinary shutdown path can both call it without double-closing stopCh.
func (s *TelemetrySink) Stop(ctx context.Context) {
	s.stopOnce.Do(func() { s.stopLocked(ctx) })
}

func (s *TelemetrySink) stopLocked(ctx context.Context) {
	close(s.stopCh)
	if !s.IsDummy() {
		<-s.doneCh
	}
	if s.IsDummy() {
		return
	}

	s.Clean()
	for _, q := range s.queues {
		q.flushNow(s.exporter, s.log)
	}

	const attempts = 100
	const pollInterval = 250 * time.Millisecond
	for i := 0; i < attempts; i++ {
		if s.allIdle() {
			s.log.Debug("telemetry sink stopped with no unlogged rows")
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(pollInterval):
		}
	}
	s.log.Warn("telemetry sink stopped with unlogged rows")
}

func (s *TelemetrySink) allIdle() bool {
	s.overflowMu.Lock()
	overflowEmpty := len(s.overflow) == 0
	s.overflowMu.Unlock()
	if !overflowEmpty {
		return false
	}
	for _, q := range s.queues {
		if !q.isIdle() {
			return false
		}
	}
	return true
}

// TelemetryGate wraps the router with the back-pressured sink (§4.3.6): a
// full sink rejects immediately, a successful Fulfill is recorded.
type TelemetryGate struct {
	Address ilp.Address
	Sink    *TelemetrySink
	Log     *logrus.Entry
	Next    Service
}

func NewTelemetryGate(address ilp.Address, sink *TelemetrySink, log *logrus.Entry, next Service) *TelemetryGate {
	return &TelemetryGate{Address: address, Sink: sink, Log: log, Next: next}
}

func (g *TelemetryGate) Call(ctx context.Context, req *Request) (*ilp.Fulfill, error) {
	if g.Sink == nil || g.Sink.IsDummy() {
		return g.Next.Call(ctx, req)
	}

	if !g.Sink.IsAvailable() {
		g.Log.WithFields(logrus.Fields{
			"account":     req.FromAccount,
			"destination": string(req.Prepare.Destination),
			"amount":      req.Prepare.Amount,
		}).Warn("telemetry sink unavailable, dropping packet")
		return nil, ilp.RejectBuilder{
			Code:        ilp.T03ConnectorBusy,
			Message:     []byte("backend is unavailable"),
			TriggeredBy: g.Address,
		}.Build()
	}

	fulfill, err := g.Next.Call(ctx, req)
	if err != nil {
		return nil, err
	}

	g.Sink.Write(Record{
		Account:     req.FromAccount,
		Destination: req.Prepare.Destination.SplitConnectionTag(),
		Amount:      req.Prepare.Amount,
		FulfillTime: time.Now(),
	})
	return fulfill, nil
}
