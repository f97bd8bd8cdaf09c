// Package faults delivers permission faults from write call sites to diagnostic consumers.
package faults

import (
	"context"
	"fmt"
	"sync"

	"github.com/opsdeck/opsdeck/internal/domain"
	"github.com/opsdeck/opsdeck/internal/infra/logger"
	"github.com/opsdeck/opsdeck/internal/infra/metrics"
	"github.com/opsdeck/opsdeck/internal/ports"
)

// LocalBridge fans faults out to the handlers subscribed in this process.
// A fault reported while nobody is subscribed is dropped; nothing is queued or replayed.
type LocalBridge struct {
	log logger.Logger

	mu       sync.RWMutex
	handlers map[uint64]ports.FaultHandler
	nextID   uint64
}

// NewLocalBridge creates a bridge with no subscribers
func NewLocalBridge(log logger.Logger) *LocalBridge {
	return &LocalBridge{
		log:      log,
		handlers: make(map[uint64]ports.FaultHandler),
	}
}

var _ ports.FaultBridge = (*LocalBridge)(nil)

// ReportPermissionFault logs the fault and hands it to every current subscriber
func (b *LocalBridge) ReportPermissionFault(ctx context.Context, fault domain.PermissionFault) {
	logger.LogPermissionFault(ctx, b.log, fault)
	b.deliver(ctx, fault)
}

// Subscribe attaches handler until the returned function is called
func (b *LocalBridge) Subscribe(handler ports.FaultHandler) func() {
	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.handlers[id] = handler
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.handlers, id)
			b.mu.Unlock()
		})
	}
}

// Subscribers returns the number of attached handlers
func (b *LocalBridge) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.handlers)
}

func (b *LocalBridge) deliver(ctx context.Context, fault domain.PermissionFault) {
	b.mu.RLock()
	handlers := make([]ports.FaultHandler, 0, len(b.handlers))
	for _, h := range b.handlers {
		handlers = append(handlers, h)
	}
	b.mu.RUnlock()

	if len(handlers) == 0 {
		metrics.PermissionFaults.WithLabelValues("dropped").Inc()
		b.log.Debug(ctx, "Permission fault dropped, no consumer attached", map[string]interface{}{
			"path": fault.Path,
		})
		return
	}

	for _, h := range handlers {
		b.invoke(ctx, h, fault)
	}
	metrics.PermissionFaults.WithLabelValues("delivered").Inc()
}

func (b *LocalBridge) invoke(ctx context.Context, h ports.FaultHandler, fault domain.PermissionFault) {
	defer func() {
		if r := recover(); r != nil {
			b.log.Error(ctx, "Fault consumer panicked", fmt.Errorf("%v", r), map[string]interface{}{
				"path": fault.Path,
			})
		}
	}()
	h(fault)
}
