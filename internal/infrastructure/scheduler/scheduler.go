package scheduler

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Sink receives sweep requests. Implementations must not block; the ws core
// coalesces ticks it has not drained yet.
type Sink interface {
	Sweep(now time.Time)
}

// AlarmScheduler hands the current time to the sink on a fixed period. The
// sink does the actual due-alarm scan on its own loop, so a tick costs one
// channel send here.
type AlarmScheduler struct {
	sink     Sink
	interval time.Duration
	logger   *zap.SugaredLogger
	stopChan chan struct{}
}

func NewAlarmScheduler(sink Sink, interval time.Duration, logger *zap.SugaredLogger) *AlarmScheduler {
	if interval <= 0 {
		interval = time.Second
	}

	return &AlarmScheduler{
		sink:     sink,
		interval: interval,
		logger:   logger,
		stopChan: make(chan struct{}),
	}
}

func (s *AlarmScheduler) Start(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Infow("alarm scheduler started", "interval", s.interval)

	for {
		select {
		case t := <-ticker.C:
			s.sink.Sweep(t)
		case <-s.stopChan:
			s.logger.Infow("alarm scheduler stopped")
			return
		case <-ctx.Done():
			s.logger.Infow("alarm scheduler context cancelled")
			return
		}
	}
}

func (s *AlarmScheduler) Stop() {
	close(s.stopChan)
}
