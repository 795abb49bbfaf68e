package core

import (
	"context"
	"sync"
	"time"
)

// pingTimeout bounds a single liveness probe.
const pingTimeout = 5 * time.Second

// Health is the outcome of the latest connection probe.
type Health struct {
	Healthy   bool          `json:"healthy" yaml:"healthy"`
	CheckedAt time.Time     `json:"checked_at" yaml:"checked_at"`
	Latency   time.Duration `json:"latency" yaml:"latency"`
	Err       error         `json:"-" yaml:"-"`
}

// healthMonitor pings the pool on an interval so dead connections surface
// before a reservation request hits them.
type healthMonitor struct {
	db       *DB
	interval time.Duration
	stop     chan struct{}
	wg       sync.WaitGroup

	mu   sync.RWMutex
	last Health
}

// WithHealthCheck pings the database every interval in the background.
// The monitor stops on Close.
func WithHealthCheck(interval time.Duration) Option {
	return func(db *DB) {
		if interval <= 0 || db.health != nil {
			return
		}
		m := &healthMonitor{db: db, interval: interval, stop: make(chan struct{})}
		db.health = m
		m.wg.Add(1)
		go m.run()
	}
}

func (m *healthMonitor) run() {
	defer m.wg.Done()
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			m.record(m.db.probe(context.Background()))
		case <-m.stop:
			return
		}
	}
}

func (m *healthMonitor) record(h Health) {
	m.mu.Lock()
	m.last = h
	m.mu.Unlock()
}

func (m *healthMonitor) snapshot() Health {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.last
}

func (m *healthMonitor) shutdown() {
	close(m.stop)
	m.wg.Wait()
}

// Ping probes the database once. With a running monitor the result also
// becomes the reported Health.
func (db *DB) Ping(ctx context.Context) Health {
	h := db.probe(ctx)
	if db.health != nil {
		db.health.record(h)
	}
	return h
}

// Health returns the latest background probe. Without WithHealthCheck it
// probes synchronously.
func (db *DB) Health() Health {
	if db.health == nil {
		return db.probe(context.Background())
	}
	return db.health.snapshot()
}

func (db *DB) probe(ctx context.Context) Health {
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	start := time.Now()
	err := db.sqlx.PingContext(ctx)
	h := Health{Healthy: err == nil, CheckedAt: db.now(), Latency: time.Since(start), Err: err}
	if err != nil {
		db.logger.Warn("database health check failed", "error", err, "driver", db.driverName)
	} else {
		db.logger.Debug("database health check passed", "latency", h.Latency)
	}
	return h
}
