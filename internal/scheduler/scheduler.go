// Package scheduler runs background housekeeping on a cron.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"tasktracker/internal/metrics"
	"tasktracker/pkg/logger"
)

type SessionPurger interface {
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

type Scheduler struct {
	cron *cron.Cron
}

func New() *Scheduler {
	return &Scheduler{
		cron: cron.New(cron.WithChain(cron.Recover(cronLogger{}))),
	}
}

// Every registers job to run once per interval.
func (s *Scheduler) Every(interval time.Duration, job func()) (cron.EntryID, error) {
	if interval <= 0 {
		return 0, fmt.Errorf("interval must be positive")
	}
	return s.cron.AddFunc(fmt.Sprintf("@every %s", interval), job)
}

func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop waits for running jobs to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

// PurgeSessions deletes sessions whose refresh token has expired. Such rows
// can no longer authenticate anything.
func PurgeSessions(ctx context.Context, store SessionPurger, reg *metrics.Registry) (int64, error) {
	n, err := store.DeleteExpired(ctx, time.Now())
	if err != nil {
		logger.ErrorLogger.Error("Error purging expired sessions", zap.Error(err))
		return 0, err
	}
	if reg != nil {
		reg.SessionsPurged.Add(float64(n))
	}
	if n > 0 {
		logger.SystemLogger.Info("Purged expired sessions", zap.Int64("count", n))
	}
	return n, nil
}

// SchedulePurge registers PurgeSessions every interval.
func (s *Scheduler) SchedulePurge(interval time.Duration, store SessionPurger, reg *metrics.Registry) error {
	_, err := s.Every(interval, func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		_, _ = PurgeSessions(ctx, store, reg)
	})
	return err
}

// cronLogger routes cron's own messages to the system logger.
type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...interface{}) {
	logger.SystemLogger.Sugar().Infow(msg, keysAndValues...)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	logger.ErrorLogger.Sugar().Errorw(msg, append(keysAndValues, "error", err)...)
}
