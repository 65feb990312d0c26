// Package scheduler runs the daily maintenance jobs. Correctness never
// depends on them: the ledger resets lazily on read and history is pruned on
// load. The jobs only keep the persisted records from growing.
package scheduler

import (
	"encoding/json"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/pyiy/zimage/internal/history"
	"github.com/pyiy/zimage/internal/store"
)

type Scheduler struct {
	store   store.Service
	history *history.Manager
	logger  *slog.Logger
	c       *cron.Cron
}

func New(s store.Service, h *history.Manager, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		store:   s,
		history: h,
		logger:  logger.With("component", "scheduler"),
		c:       cron.New(),
	}
}

// Start registers the daily maintenance job and starts the cron loop.
func (s *Scheduler) Start() error {
	_, err := s.c.AddFunc("@daily", s.RunMaintenance)
	if err != nil {
		return err
	}
	s.c.Start()
	return nil
}

func (s *Scheduler) Stop() {
	s.c.Stop()
}

// RunMaintenance prunes stale history and drops a previous-day exhaustion
// snapshot. Exported so tests and the startup path can invoke it directly.
func (s *Scheduler) RunMaintenance() {
	s.logger.Info("Running daily maintenance")

	if err := s.history.Prune(); err != nil {
		s.logger.Error("Failed to prune history", "error", err)
	}

	if err := s.dropStaleLedger(); err != nil {
		s.logger.Error("Failed to drop stale ledger snapshot", "error", err)
	}
}

// dropStaleLedger deletes the exhaustion snapshot when its day is over.
func (s *Scheduler) dropStaleLedger() error {
	raw, ok, err := s.store.Get(store.KeyTokenLedger)
	if err != nil || !ok {
		return err
	}
	var snap struct {
		Date string `json:"date"`
	}
	if err := json.Unmarshal([]byte(raw), &snap); err != nil {
		// A corrupt snapshot is useless either way.
		return s.store.Delete(store.KeyTokenLedger)
	}
	if snap.Date != time.Now().UTC().Format("2006-01-02") {
		s.logger.Info("Dropping stale exhaustion snapshot", "day", snap.Date)
		return s.store.Delete(store.KeyTokenLedger)
	}
	return nil
}
