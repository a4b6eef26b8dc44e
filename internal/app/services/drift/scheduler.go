package drift

import (
	"context"
	"sync"
	"time"

	"github.com/R3E-Network/service_layer/internal/app/core/service"
	"github.com/R3E-Network/service_layer/internal/app/domain"
	"github.com/R3E-Network/service_layer/internal/app/storage"
	"github.com/R3E-Network/service_layer/pkg/logger"
)

const checkInterval = 30 * time.Second

// detectDriftRetryPolicy retries one transient storage failure per
// project/kind pair before giving up for this tick; the next tick will try
// again regardless.
var detectDriftRetryPolicy = service.RetryPolicy{
	Attempts:       2,
	InitialBackoff: 200 * time.Millisecond,
	MaxBackoff:     1 * time.Second,
	Multiplier:     2,
}

// NotificationSink is notified whenever the scheduler records a new alert,
// so it can create a Notification and broadcast it over the live-update hub.
type NotificationSink interface {
	NotifyDriftAlert(ctx context.Context, alert domain.DriftAlert)
}

// Scheduler runs DetectDrift across every project and span kind on a fixed
// tick, skipping a project until its own check interval has passed since its
// last-checked timestamp. Projects are checked one after another within a
// tick.
type Scheduler struct {
	detector *Detector
	projects storage.ProjectStore
	spans    storage.TraceStore
	sink     NotificationSink
	tracer   service.Tracer
	log      *logger.Logger

	mu        sync.Mutex
	lastCheck map[string]time.Time

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewScheduler constructs a Scheduler. sink may be nil if no notification
// fan-out is configured.
func NewScheduler(detector *Detector, projects storage.ProjectStore, spans storage.TraceStore, sink NotificationSink, tracer service.Tracer, log *logger.Logger) *Scheduler {
	if tracer == nil {
		tracer = service.NoopTracer
	}
	if log == nil {
		log = logger.NewDefault("drift-scheduler")
	}
	return &Scheduler{
		detector:  detector,
		projects:  projects,
		spans:     spans,
		sink:      sink,
		tracer:    tracer,
		log:       log,
		lastCheck: map[string]time.Time{},
	}
}

func (s *Scheduler) Name() string { return "drift-scheduler" }

// Start launches the background tick loop; calls after the first are no-ops.
// It returns immediately; the loop runs until Stop is called or ctx is
// cancelled.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return nil
	}
	loopCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	s.wg.Add(1)
	go s.loop(loopCtx)
	return nil
}

// Stop ends the tick loop and waits for the in-flight check to finish.
func (s *Scheduler) Stop(ctx context.Context) error {
	if s.cancel != nil {
		s.cancel()
	}
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
	}
	return nil
}

func (s *Scheduler) loop(ctx context.Context) {
	defer s.wg.Done()
	ticker := time.NewTicker(checkInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.checkProjects(ctx)
		}
	}
}

func (s *Scheduler) checkProjects(ctx context.Context) {
	spanCtx, end := s.tracer.StartSpan(ctx, "drift.scheduler.tick", nil)
	defer end(nil)

	projects, err := s.projects.ListProjects(spanCtx)
	if err != nil {
		s.log.Errorf("drift scheduler: list projects: %v", err)
		return
	}

	for _, p := range projects {
		settings, err := s.projects.GetSettings(spanCtx, p.ID)
		if err != nil {
			settings = domain.DefaultProjectSettings(p.ID)
		}
		if !settings.DriftCheckEnabled {
			continue
		}

		interval := time.Duration(settings.DriftCheckIntervalMinutes) * time.Minute
		if interval <= 0 {
			interval = checkInterval
		}

		s.mu.Lock()
		last, checked := s.lastCheck[p.ID]
		if checked && time.Since(last) < interval {
			s.mu.Unlock()
			continue
		}
		s.lastCheck[p.ID] = time.Now()
		s.mu.Unlock()

		for _, kind := range domain.ValidSpanKinds {
			var alert *domain.DriftAlert
			err := service.Retry(spanCtx, detectDriftRetryPolicy, func() error {
				var detectErr error
				alert, detectErr = s.detector.DetectDrift(spanCtx, p.ID, kind, settings.PSIBaselineWindow, settings.PSICurrentWindow)
				return detectErr
			})
			if err != nil {
				s.log.Errorf("drift scheduler: detect drift for %s/%s: %v", p.ID, kind, err)
				continue
			}
			if alert != nil && s.sink != nil {
				s.sink.NotifyDriftAlert(spanCtx, *alert)
			}
		}
	}
}
