package core

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

type WriteGateScope string

const (
	WriteGateScopeTenant WriteGateScope = "tenant"
	WriteGateScopeGlobal WriteGateScope = "global"
)

// GateKey returns the write gate key guarding tenantID under scope.
func GateKey(scope WriteGateScope, tenantID string) string {
	if scope == WriteGateScopeGlobal {
		return "reconcile:global"
	}
	return "reconcile:tenant:" + strings.TrimSpace(tenantID)
}

// MemoryWriteGate is an in-process keyed mutex.
type MemoryWriteGate struct {
	mu    sync.Mutex
	slots map[string]*gateSlot
}

type gateSlot struct {
	ch   chan struct{}
	refs int
}

func NewMemoryWriteGate() *MemoryWriteGate {
	return &MemoryWriteGate{slots: make(map[string]*gateSlot)}
}

func (g *MemoryWriteGate) Acquire(ctx context.Context, key string) (LockHandle, error) {
	if g == nil {
		return nil, fmt.Errorf("core: write gate is not configured")
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, fmt.Errorf("core: write gate key is required")
	}

	g.mu.Lock()
	slot, ok := g.slots[key]
	if !ok {
		slot = &gateSlot{ch: make(chan struct{}, 1)}
		g.slots[key] = slot
	}
	slot.refs++
	g.mu.Unlock()

	select {
	case slot.ch <- struct{}{}:
		return &memoryGateHandle{gate: g, key: key, slot: slot}, nil
	case <-ctx.Done():
		g.release(key, slot)
		return nil, ctx.Err()
	}
}

func (g *MemoryWriteGate) release(key string, slot *gateSlot) {
	g.mu.Lock()
	defer g.mu.Unlock()
	slot.refs--
	if slot.refs == 0 {
		delete(g.slots, key)
	}
}

type memoryGateHandle struct {
	gate *MemoryWriteGate
	key  string
	slot *gateSlot
	once sync.Once
}

func (h *memoryGateHandle) Unlock(context.Context) error {
	if h == nil || h.gate == nil {
		return nil
	}
	h.once.Do(func() {
		<-h.slot.ch
		h.gate.release(h.key, h.slot)
	})
	return nil
}

var _ WriteGate = (*MemoryWriteGate)(nil)
