package service

import (
	"context"
	"time"

	"github.com/linksmith/linksmith/internal/app/repository"
	"go.uber.org/zap"
)

// IndexRefresher periodically rebuilds the short-id collision filter from
// the links table. Event-driven updates keep the filter current between
// rebuilds; the full reload bounds drift after missed events or restarts.
type IndexRefresher struct {
	logger   *zap.Logger
	index    repository.ShortIDIndex
	interval time.Duration
	stopChan chan struct{}
}

// NewIndexRefresher creates a refresher that reloads index every interval.
func NewIndexRefresher(logger *zap.Logger, index repository.ShortIDIndex, interval time.Duration) *IndexRefresher {
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	return &IndexRefresher{
		logger:   logger,
		index:    index,
		interval: interval,
		stopChan: make(chan struct{}),
	}
}

// Start begins the periodic reloads.
func (r *IndexRefresher) Start() {
	go r.run()
}

// Stop stops the periodic reloads.
func (r *IndexRefresher) Stop() {
	close(r.stopChan)
}

func (r *IndexRefresher) run() {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.reload()
		case <-r.stopChan:
			r.logger.Info("index refresher stopped")
			return
		}
	}
}

func (r *IndexRefresher) reload() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	start := time.Now()
	if err := r.index.Reload(ctx); err != nil {
		r.logger.Error("failed to reload short id index", zap.Error(err))
		return
	}

	r.logger.Info("short id index reloaded", zap.Duration("took", time.Since(start)))
}
