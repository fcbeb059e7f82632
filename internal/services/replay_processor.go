package services

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/fastygo/catalog-sync/domain"
	"github.com/fastygo/catalog-sync/internal/infrastructure/journal"
)

// ConnectionHealth abstracts the connection monitor functionality.
type ConnectionHealth interface {
	IsOnline(component string) bool
}

// EventSender re-sends a stamped event.
type EventSender interface {
	Send(ctx context.Context, event domain.Event) error
}

// JournalStore is the persistence the replay processor drains.
type JournalStore interface {
	Append(entry journal.Entry) error
	GetBatch(limit int) ([]journal.Entry, error)
	Remove(entry journal.Entry) error
	Requeue(entry journal.Entry, cause error) error
	Cleanup(olderThan time.Time) (int, error)
	Size() (int, error)
}

// ReplayConfig controls how often and how much of the journal is replayed.
type ReplayConfig struct {
	Schedule   string
	BatchSize  int
	MaxReplays int
	Retention  time.Duration
	Timeout    time.Duration
}

// ReplayProcessor re-publishes journaled events on a cron schedule. Replays
// reuse the original timestamp, so the queue deduplicates against any copy
// that did get through.
type ReplayProcessor struct {
	store   JournalStore
	sender  EventSender
	monitor ConnectionHealth
	logger  *zap.Logger
	cron    *cron.Cron
	cfg     ReplayConfig
}

func NewReplayProcessor(
	store JournalStore,
	sender EventSender,
	monitor ConnectionHealth,
	logger *zap.Logger,
	cfg ReplayConfig,
) (*ReplayProcessor, error) {
	if cfg.Schedule == "" {
		cfg.Schedule = "@every 30s"
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if cfg.MaxReplays <= 0 {
		cfg.MaxReplays = 5
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	rp := &ReplayProcessor{
		store:   store,
		sender:  sender,
		monitor: monitor,
		logger:  logger,
		cfg:     cfg,
		cron:    cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
	}

	if _, err := rp.cron.AddFunc(cfg.Schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), cfg.Timeout)
		defer cancel()
		if err := rp.Drain(ctx); err != nil {
			rp.logger.Error("journal replay failed", zap.Error(err))
		}
	}); err != nil {
		return nil, err
	}

	return rp, nil
}

// Start launches the cron scheduler.
func (rp *ReplayProcessor) Start() {
	if rp == nil || rp.cron == nil {
		return
	}
	rp.cron.Start()
	rp.logger.Info("journal replay started", zap.String("schedule", rp.cfg.Schedule))
}

// Stop waits for a running replay or for ctx, whichever ends first.
func (rp *ReplayProcessor) Stop(ctx context.Context) {
	if rp == nil || rp.cron == nil {
		return
	}
	stopCtx := rp.cron.Stop()
	select {
	case <-stopCtx.Done():
	case <-ctx.Done():
	}
	rp.logger.Info("journal replay stopped")
}

// Drain replays one batch synchronously.
func (rp *ReplayProcessor) Drain(ctx context.Context) error {
	if rp == nil || rp.store == nil {
		return nil
	}
	if rp.monitor != nil && !rp.monitor.IsOnline("queue") {
		rp.logger.Debug("skipping journal replay (queue offline)")
		return nil
	}

	if rp.cfg.Retention > 0 {
		if removed, err := rp.store.Cleanup(time.Now().Add(-rp.cfg.Retention)); err != nil {
			rp.logger.Warn("journal cleanup failed", zap.Error(err))
		} else if removed > 0 {
			rp.logger.Warn("expired journal entries dropped", zap.Int("count", removed))
		}
	}

	entries, err := rp.store.GetBatch(rp.cfg.BatchSize)
	if err != nil {
		return err
	}

	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return err
		}

		if err := rp.sender.Send(ctx, entry.Event); err != nil {
			rp.logger.Error("journal replay attempt failed",
				zap.String("entry_id", entry.ID),
				zap.String("owner_id", entry.Event.OwnerID),
				zap.Int("replays", entry.Replays+1),
				zap.Error(err))

			if entry.Replays+1 >= rp.cfg.MaxReplays {
				rp.logger.Warn("dropping journal entry (max replays reached)",
					zap.String("entry_id", entry.ID),
					zap.String("event_type", entry.Event.EventType))
				if err := rp.store.Remove(entry); err != nil {
					rp.logger.Warn("failed to remove journal entry", zap.Error(err))
				}
				continue
			}
			if err := rp.store.Requeue(entry, err); err != nil {
				rp.logger.Error("failed to requeue journal entry", zap.Error(err))
			}
			continue
		}

		if err := rp.store.Remove(entry); err != nil {
			rp.logger.Warn("failed to purge replayed journal entry", zap.Error(err))
		}
	}
	return nil
}

// Size returns the number of journaled events.
func (rp *ReplayProcessor) Size() int {
	if rp == nil || rp.store == nil {
		return 0
	}
	size, err := rp.store.Size()
	if err != nil {
		return 0
	}
	return size
}
