package calibration

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/phasemirror/dissonance-oracle/internal/reputation"
	"github.com/phasemirror/dissonance-oracle/pkg/metrics"
)

// AsyncUpdater is a bounded worker pool that writes contributor
// consistency-score deltas back to the reputation engine without
// blocking the calibration pass that computed them. Grounded on
// AsyncWebhookProcessor's worker/queueMonitor shape, adapted from
// reject-on-full to drop-oldest-on-overflow: a stale score update is
// worthless once a fresher one for the same org is queued behind it.
type AsyncUpdater struct {
	engine  reputation.Engine
	logger  *slog.Logger
	metrics *metrics.CalibrationMetrics
	workers int

	mu       sync.Mutex
	queue    []scoreUpdate
	capacity int
	notify   chan struct{}
	stopChan chan struct{}
	wg       sync.WaitGroup
	running  bool
}

type scoreUpdate struct {
	orgIDHash string
	delta     float64
}

// AsyncUpdaterConfig configures an AsyncUpdater.
type AsyncUpdaterConfig struct {
	Engine    reputation.Engine
	Logger    *slog.Logger
	Metrics   *metrics.CalibrationMetrics
	Workers   int // default 4
	QueueSize int // default 256
}

// NewAsyncUpdater builds an AsyncUpdater (not started yet).
func NewAsyncUpdater(config AsyncUpdaterConfig) *AsyncUpdater {
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	if config.Workers <= 0 {
		config.Workers = 4
	}
	if config.QueueSize <= 0 {
		config.QueueSize = 256
	}
	return &AsyncUpdater{
		engine:   config.Engine,
		logger:   config.Logger,
		metrics:  config.Metrics,
		workers:  config.Workers,
		capacity: config.QueueSize,
		notify:   make(chan struct{}, config.QueueSize),
		stopChan: make(chan struct{}),
	}
}

// Start spawns the worker pool and the queue-depth monitor.
func (u *AsyncUpdater) Start(ctx context.Context) {
	u.mu.Lock()
	if u.running {
		u.mu.Unlock()
		return
	}
	u.running = true
	u.mu.Unlock()

	for i := 0; i < u.workers; i++ {
		u.wg.Add(1)
		go u.worker(ctx)
	}
	u.wg.Add(1)
	go u.queueMonitor(ctx)
}

// Stop signals workers to drain the queue and returns once they exit
// or the given context is done.
func (u *AsyncUpdater) Stop(ctx context.Context) {
	u.mu.Lock()
	if !u.running {
		u.mu.Unlock()
		return
	}
	u.running = false
	u.mu.Unlock()

	close(u.stopChan)

	done := make(chan struct{})
	go func() {
		u.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		u.logger.Warn("async updater stop timed out, some updates may be lost")
	}
}

// Submit enqueues a consistency-score delta for orgIDHash. Never
// blocks: if the queue is at capacity, the oldest pending update is
// dropped to make room.
func (u *AsyncUpdater) Submit(orgIDHash string, delta float64) {
	u.mu.Lock()
	dropped := false
	if len(u.queue) >= u.capacity {
		u.queue = u.queue[1:]
		dropped = true
	}
	u.queue = append(u.queue, scoreUpdate{orgIDHash: orgIDHash, delta: delta})
	depth := len(u.queue)
	u.mu.Unlock()

	if dropped && u.metrics != nil {
		u.metrics.RecordReputationDropped()
	}
	if u.metrics != nil {
		u.metrics.SetReputationQueueDepth(depth)
	}

	select {
	case u.notify <- struct{}{}:
	default:
	}
}

func (u *AsyncUpdater) dequeue() (scoreUpdate, bool) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if len(u.queue) == 0 {
		return scoreUpdate{}, false
	}
	next := u.queue[0]
	u.queue = u.queue[1:]
	return next, true
}

func (u *AsyncUpdater) worker(ctx context.Context) {
	defer u.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case <-u.stopChan:
			u.drain(ctx)
			return
		case <-u.notify:
			u.processOne(ctx)
		}
	}
}

func (u *AsyncUpdater) drain(ctx context.Context) {
	for {
		update, ok := u.dequeue()
		if !ok {
			return
		}
		u.apply(ctx, update)
	}
}

func (u *AsyncUpdater) processOne(ctx context.Context) {
	update, ok := u.dequeue()
	if !ok {
		return
	}
	u.apply(ctx, update)
}

func (u *AsyncUpdater) apply(ctx context.Context, update scoreUpdate) {
	outcome := "ok"
	if err := u.engine.UpdateConsistencyScore(ctx, update.orgIDHash, update.delta); err != nil {
		outcome = "error"
		u.logger.Warn("consistency score update failed",
			"org_id_hash", update.orgIDHash, "delta", update.delta, "error", err)
	}
	if u.metrics != nil {
		u.metrics.RecordReputationUpdate(outcome)
	}
}

func (u *AsyncUpdater) queueMonitor(ctx context.Context) {
	defer u.wg.Done()
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-u.stopChan:
			return
		case <-ticker.C:
			u.mu.Lock()
			depth := len(u.queue)
			u.mu.Unlock()
			if u.metrics != nil {
				u.metrics.SetReputationQueueDepth(depth)
			}
			if depth > u.capacity*8/10 {
				u.logger.Warn("reputation update queue high utilization",
					"current", depth, "capacity", u.capacity)
			}
		}
	}
}
