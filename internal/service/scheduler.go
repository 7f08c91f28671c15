package service

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

const defaultSyncInterval = 60 * time.Second

// Syncer is the slice of the sync overlay the scheduler drives. Target 0
// means every registered peer.
type Syncer interface {
	SyncIncremental(ctx context.Context, id uint64) error
}

// SchedulerService periodically pushes incremental syncs to all peers. The
// sync engine itself stays passive; this is the piece that decides when it
// runs.
type SchedulerService struct {
	syncer Syncer
	logger *zap.Logger

	interval time.Duration
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

func NewSchedulerService(syncer Syncer, logger *zap.Logger) *SchedulerService {
	return &SchedulerService{
		syncer:   syncer,
		logger:   logger,
		interval: defaultSyncInterval,
		stopCh:   make(chan struct{}),
	}
}

func (s *SchedulerService) SetInterval(d time.Duration) {
	s.interval = d
}

// Start runs the scheduler in a background goroutine.
func (s *SchedulerService) Start() {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		s.logger.Info("sync scheduler started", zap.Duration("interval", s.interval))

		for {
			select {
			case <-ticker.C:
				ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
				if err := s.syncer.SyncIncremental(ctx, 0); err != nil {
					s.logger.Warn("scheduled sync failed", zap.Error(err))
				}
				cancel()
			case <-s.stopCh:
				s.logger.Info("sync scheduler stopped")
				return
			}
		}
	}()
}

// Stop gracefully stops the scheduler.
func (s *SchedulerService) Stop() {
	close(s.stopCh)
	s.wg.Wait()
}
