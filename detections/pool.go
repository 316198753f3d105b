package detections

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

var (
	ErrPoolClosed     = errors.New("session pool is closed")
	ErrAcquireTimeout = errors.New("timeout waiting for available session")
)

// SessionPool hands out exclusive sessions. With size 1 every inference
// call is serialized.
type SessionPool struct {
	sessions       chan Session
	size           int
	acquireTimeout time.Duration
	mu             sync.Mutex
	closed         bool
	metrics        *poolMetrics
}

type poolMetrics struct {
	mu              sync.RWMutex
	inUse           int
	totalAcquired   int64
	totalReleased   int64
	acquireFailures int64
	waitTime        time.Duration
}

// PoolStats is a snapshot of pool usage.
type PoolStats struct {
	PoolSize        int           `json:"pool_size"`
	InUse           int           `json:"sessions_in_use"`
	TotalAcquired   int64         `json:"total_acquired"`
	TotalReleased   int64         `json:"total_released"`
	AcquireFailures int64         `json:"acquire_failures"`
	WaitTime        time.Duration `json:"wait_time_ns"`
}

// NewSessionPool creates size sessions with newSession. If any creation
// fails, the ones already made are destroyed.
func NewSessionPool(size int, acquireTimeout time.Duration, newSession func() (Session, error)) (*SessionPool, error) {
	if size <= 0 {
		size = DefaultPoolSize
	}
	if acquireTimeout <= 0 {
		acquireTimeout = DefaultAcquireTimeout
	}

	pool := &SessionPool{
		sessions:       make(chan Session, size),
		size:           size,
		acquireTimeout: acquireTimeout,
		metrics:        &poolMetrics{},
	}

	for i := 0; i < size; i++ {
		session, err := newSession()
		if err != nil {
			pool.Destroy()
			return nil, fmt.Errorf("failed to initialize session %d: %w", i, err)
		}
		pool.sessions <- session
	}

	return pool, nil
}

func (p *SessionPool) Size() int {
	return p.size
}

func (p *SessionPool) Acquire(ctx context.Context) (Session, error) {
	p.mu.Lock()
	closed := p.closed
	p.mu.Unlock()
	if closed {
		return nil, ErrPoolClosed
	}

	start := time.Now()
	defer func() {
		p.metrics.mu.Lock()
		p.metrics.waitTime += time.Since(start)
		p.metrics.mu.Unlock()
	}()

	timer := time.NewTimer(p.acquireTimeout)
	defer timer.Stop()

	select {
	case session, ok := <-p.sessions:
		if !ok {
			return nil, ErrPoolClosed
		}
		p.metrics.mu.Lock()
		p.metrics.inUse++
		p.metrics.totalAcquired++
		p.metrics.mu.Unlock()
		return session, nil
	case <-timer.C:
		p.recordFailure()
		return nil, ErrAcquireTimeout
	case <-ctx.Done():
		p.recordFailure()
		return nil, ctx.Err()
	}
}

func (p *SessionPool) Release(session Session) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.metrics.mu.Lock()
	p.metrics.inUse--
	p.metrics.totalReleased++
	p.metrics.mu.Unlock()

	if p.closed {
		session.Destroy()
		return
	}
	p.sessions <- session
}

// Destroy closes the pool and destroys idle sessions. Sessions still in use
// are destroyed when released.
func (p *SessionPool) Destroy() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return
	}

	p.closed = true
	close(p.sessions)

	for session := range p.sessions {
		session.Destroy()
	}
}

func (p *SessionPool) recordFailure() {
	p.metrics.mu.Lock()
	p.metrics.acquireFailures++
	p.metrics.mu.Unlock()
}

func (p *SessionPool) Stats() PoolStats {
	p.metrics.mu.RLock()
	defer p.metrics.mu.RUnlock()
	return PoolStats{
		PoolSize:        p.size,
		InUse:           p.metrics.inUse,
		TotalAcquired:   p.metrics.totalAcquired,
		TotalReleased:   p.metrics.totalReleased,
		AcquireFailures: p.metrics.acquireFailures,
		WaitTime:        p.metrics.waitTime,
	}
}
