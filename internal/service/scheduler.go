package service

import (
	"context"
	"sync"
	"time"

	"household-inventory-api/internal/model"

	"go.uber.org/zap"
)

// Sweep names accepted by Scheduler.RunNow.
const (
	SweepExpiry        = "expiry"
	SweepNotifications = "notifications"
	SweepRetention     = "retention"
)

// SchedulerConfig holds the sweep intervals. A zero interval disables that sweep's ticker.
type SchedulerConfig struct {
	// ExpiryInterval is how often statuses are refreshed.
	// Default: 1 hour
	ExpiryInterval time.Duration

	// NotificationInterval is how often notifications are generated for every member.
	// Default: 6 hours
	NotificationInterval time.Duration

	// RetentionInterval is how often old read notifications are purged.
	// Default: 24 hours
	RetentionInterval time.Duration

	// JobTimeout bounds one sweep run.
	// Default: 5 minutes
	JobTimeout time.Duration

	// InitialDelay is the wait before the first run of each sweep.
	// Default: 1 minute
	InitialDelay time.Duration
}

// DefaultSchedulerConfig returns default scheduler configuration.
func DefaultSchedulerConfig() SchedulerConfig {
	return SchedulerConfig{
		ExpiryInterval:       time.Hour,
		NotificationInterval: 6 * time.Hour,
		RetentionInterval:    24 * time.Hour,
		JobTimeout:           5 * time.Minute,
		InitialDelay:         time.Minute,
	}
}

type sweepJob struct {
	name     string
	interval time.Duration
	run      func(ctx context.Context) (interface{}, error)
}

// Scheduler triggers the expiry refresh, notification batch and retention purge
// on their own tickers.
type Scheduler struct {
	jobs      map[string]sweepJob
	config    SchedulerConfig
	logger    *zap.Logger
	stopCh    chan struct{}
	stopOnce  sync.Once
	wg        sync.WaitGroup
	isRunning bool
	mu        sync.Mutex
}

// NewScheduler creates a scheduler over the monitor and notification service.
func NewScheduler(monitor *ExpiryMonitor, notifications *NotificationService, config SchedulerConfig, logger *zap.Logger) *Scheduler {
	if config.JobTimeout <= 0 {
		config.JobTimeout = 5 * time.Minute
	}

	s := &Scheduler{
		config: config,
		logger: logger,
		stopCh: make(chan struct{}),
	}
	s.jobs = map[string]sweepJob{
		SweepExpiry: {
			name:     SweepExpiry,
			interval: config.ExpiryInterval,
			run: func(ctx context.Context) (interface{}, error) {
				return monitor.RefreshStatuses(ctx)
			},
		},
		SweepNotifications: {
			name:     SweepNotifications,
			interval: config.NotificationInterval,
			run: func(ctx context.Context) (interface{}, error) {
				return notifications.RunBatch(ctx)
			},
		},
		SweepRetention: {
			name:     SweepRetention,
			interval: config.RetentionInterval,
			run: func(ctx context.Context) (interface{}, error) {
				deleted, err := notifications.PurgeRead(ctx)
				return map[string]int64{"deleted": deleted}, err
			},
		},
	}
	return s
}

// Start begins every sweep that has a positive interval.
func (s *Scheduler) Start() {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return
	}
	s.isRunning = true
	s.mu.Unlock()

	for _, job := range s.jobs {
		if job.interval <= 0 {
			continue
		}
		s.logger.Info("sweep scheduled",
			zap.String("sweep", job.name),
			zap.Duration("interval", job.interval),
		)
		s.wg.Add(1)
		go s.loop(job)
	}
}

func (s *Scheduler) loop(job sweepJob) {
	defer s.wg.Done()

	if s.config.InitialDelay > 0 {
		select {
		case <-time.After(s.config.InitialDelay):
		case <-s.stopCh:
			return
		}
	}
	s.execute(job)

	ticker := time.NewTicker(job.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.execute(job)
		case <-s.stopCh:
			s.logger.Info("sweep stopped", zap.String("sweep", job.name))
			return
		}
	}
}

func (s *Scheduler) execute(job sweepJob) {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.JobTimeout)
	defer cancel()

	// Stop cancels an in-flight run; committed work is kept.
	go func() {
		select {
		case <-s.stopCh:
			cancel()
		case <-ctx.Done():
		}
	}()

	if _, err := job.run(ctx); err != nil {
		s.logger.Error("sweep failed", zap.String("sweep", job.name), zap.Error(err))
	}
}

// Stop stops every sweep and waits for in-flight runs to return.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() {
		s.mu.Lock()
		close(s.stopCh)
		s.isRunning = false
		s.mu.Unlock()
	})
	s.wg.Wait()
}

// RunNow triggers one sweep synchronously and returns its report.
func (s *Scheduler) RunNow(ctx context.Context, name string) (interface{}, error) {
	job, ok := s.jobs[name]
	if !ok {
		return nil, model.Invalid("sweep", "unknown sweep "+name)
	}
	ctx, cancel := context.WithTimeout(ctx, s.config.JobTimeout)
	defer cancel()
	return job.run(ctx)
}
