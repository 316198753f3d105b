package detections

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
)

// fakeSession replays a canned output and fails the test on concurrent use.
type fakeSession struct {
	t         *testing.T
	in        []float32
	out       []float32
	canned    []float32
	busy      atomic.Bool
	runs      atomic.Int64
	destroyed atomic.Bool
	mu        sync.Mutex
	lastInput []float32
	fail      error
}

func newFakeSession(t *testing.T, inputLen int, canned []float32) *fakeSession {
	return &fakeSession{
		t:      t,
		in:     make([]float32, inputLen),
		out:    make([]float32, len(canned)),
		canned: canned,
	}
}

func (f *fakeSession) InputData() []float32  { return f.in }
func (f *fakeSession) OutputData() []float32 { return f.out }

func (f *fakeSession) Run() error {
	if !f.busy.CompareAndSwap(false, true) {
		f.t.Error("session used concurrently")
	}
	defer f.busy.Store(false)

	f.runs.Add(1)
	if f.fail != nil {
		return f.fail
	}
	f.mu.Lock()
	f.lastInput = append(f.lastInput[:0], f.in...)
	f.mu.Unlock()
	copy(f.out, f.canned)
	return nil
}

func (f *fakeSession) Destroy() {
	f.destroyed.Store(true)
}

func newFakePool(t *testing.T, sessions ...Session) *SessionPool {
	t.Helper()
	i := 0
	pool, err := NewSessionPool(len(sessions), 0, func() (Session, error) {
		if i >= len(sessions) {
			return nil, errors.New("no more fake sessions")
		}
		s := sessions[i]
		i++
		return s, nil
	})
	if err != nil {
		t.Fatalf("NewSessionPool failed: %v", err)
	}
	return pool
}
