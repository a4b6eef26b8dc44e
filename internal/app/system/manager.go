package system

import (
	"context"
	"fmt"
	"sync"

	core "github.com/R3E-Network/service_layer/internal/app/core/service"
)

// Manager coordinates the lifecycle of registered services, starting them in
// registration order and stopping them in reverse order.
type Manager struct {
	mu    sync.Mutex
	svcs  []Service
	descr []DescriptorProvider

	started   bool
	startOnce sync.Once
	stopOnce  sync.Once
}

// NewManager constructs an empty Manager.
func NewManager() *Manager {
	return &Manager{}
}

// Register adds a service to the managed set. It must be called before Start.
func (m *Manager) Register(svc Service) error {
	if svc == nil {
		return fmt.Errorf("system: cannot register nil service")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.started {
		return fmt.Errorf("system: cannot register %s after manager has started", svc.Name())
	}
	m.svcs = append(m.svcs, svc)
	if dp, ok := svc.(DescriptorProvider); ok {
		m.descr = append(m.descr, dp)
	}
	return nil
}

// Start begins every registered service in registration order. If a service
// fails to start, previously started services are stopped in reverse order
// before the error is returned.
func (m *Manager) Start(ctx context.Context) error {
	var startErr error
	m.startOnce.Do(func() {
		m.mu.Lock()
		svcs := make([]Service, len(m.svcs))
		copy(svcs, m.svcs)
		m.started = true
		m.mu.Unlock()

		started := make([]Service, 0, len(svcs))
		for _, svc := range svcs {
			if err := svc.Start(ctx); err != nil {
				startErr = fmt.Errorf("start %s: %w", svc.Name(), err)
				for i := len(started) - 1; i >= 0; i-- {
					_ = started[i].Stop(ctx)
				}
				return
			}
			started = append(started, svc)
		}
	})
	return startErr
}

// Stop halts every registered service in reverse registration order. Stop is
// idempotent; subsequent calls are no-ops.
func (m *Manager) Stop(ctx context.Context) error {
	var stopErr error
	m.stopOnce.Do(func() {
		m.mu.Lock()
		svcs := make([]Service, len(m.svcs))
		copy(svcs, m.svcs)
		m.mu.Unlock()

		for i := len(svcs) - 1; i >= 0; i-- {
			if err := svcs[i].Stop(ctx); err != nil && stopErr == nil {
				stopErr = fmt.Errorf("stop %s: %w", svcs[i].Name(), err)
			}
		}
	})
	return stopErr
}

// DescriptorProviders returns every registered service that advertises a
// descriptor.
func (m *Manager) DescriptorProviders() []DescriptorProvider {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]DescriptorProvider, len(m.descr))
	copy(out, m.descr)
	return out
}

// Descriptors returns the sorted descriptors of every registered service.
func (m *Manager) Descriptors() []core.Descriptor {
	return CollectDescriptors(m.DescriptorProviders())
}

// NoopService is a placeholder Service used to reserve a manager slot without
// lifecycle behaviour.
type NoopService struct {
	ServiceName string
}

func (n NoopService) Name() string {
	if n.ServiceName == "" {
		return "noop"
	}
	return n.ServiceName
}

func (NoopService) Start(context.Context) error { return nil }
func (NoopService) Stop(context.Context) error  { return nil }
