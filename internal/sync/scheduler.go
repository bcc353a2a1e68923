package sync

import (
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"offline-sync-engine/internal/config"
	"offline-sync-engine/internal/logger"
)

// Scheduler periodically sweeps the queue through the coordinator, a
// safety net on top of the event-driven drains for operations whose
// pending-retry timer was lost to a restart.
type Scheduler struct {
	cfg     config.SchedulerConfig
	coord   *Coordinator
	cron    *cron.Cron
	entryID cron.EntryID
}

func NewScheduler(cfg config.SchedulerConfig, coord *Coordinator) *Scheduler {
	return &Scheduler{
		cfg:   cfg,
		coord: coord,
		cron:  cron.New(),
	}
}

func (s *Scheduler) Start() {
	if !s.cfg.Enabled {
		logger.Log.Info("Scheduler is disabled")
		return
	}

	logger.Log.Info("Starting scheduler", zap.String("interval", s.cfg.Interval))

	id, err := s.cron.AddFunc(s.cfg.Interval, func() {
		s.triggerSync()
	})
	if err != nil {
		logger.Log.Error("Failed to schedule job", zap.Error(err))
		return
	}

	s.entryID = id
	s.cron.Start()
}

func (s *Scheduler) Stop() {
	if s.cron != nil {
		s.cron.Stop()
	}
	logger.Log.Info("Stopped scheduler")
}

func (s *Scheduler) triggerSync() {
	pending, err := s.coord.Pending()
	if err != nil {
		logger.Log.Error("Failed to inspect queue for scheduled sync", zap.Error(err))
		return
	}
	if len(pending) == 0 {
		return
	}

	logger.Log.Info("Triggering scheduled sync", zap.Int("pending", len(pending)))

	if !s.coord.SyncNow() {
		logger.Log.Info("Sync already running or offline, skipping scheduled run")
	}
}
