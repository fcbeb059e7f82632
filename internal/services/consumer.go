package services

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/fastygo/catalog-sync/domain"
	"github.com/fastygo/catalog-sync/internal/infrastructure/queue"
	"github.com/fastygo/catalog-sync/repository"
)

// EventSource is the receiving half of the FIFO queue.
type EventSource interface {
	Receive(ctx context.Context, opts queue.ReceiveOptions) ([]queue.Message, error)
	Acknowledge(ctx context.Context, handles []string) ([]string, error)
}

// handleReleaser is implemented by sources that track in-flight messages locally.
type handleReleaser interface {
	Release(handles []string)
}

type CatalogAssembler interface {
	Assemble(ctx context.Context, ownerID string) (*domain.Snapshot, error)
}

type CatalogWriter interface {
	Write(ctx context.Context, ownerID string, snapshot *domain.Snapshot) error
}

// ConsumerConfig bounds polling and per-owner work.
type ConsumerConfig struct {
	MaxMessages       int
	WaitTime          time.Duration
	VisibilityTimeout time.Duration
	PollInterval      time.Duration
	Concurrency       int
	OwnerTimeout      time.Duration
	AckTimeout        time.Duration
}

// CycleResult summarises one poll-process-acknowledge pass.
type CycleResult struct {
	Received     int
	Malformed    int
	Owners       int
	FailedOwners int
	Acknowledged int
	AckFailed    int
}

// Consumer rebuilds owner snapshots from catalog events. Messages of an owner
// are acknowledged only after that owner's snapshot was written.
type Consumer struct {
	source      EventSource
	assembler   CatalogAssembler
	writer      CatalogWriter
	deadLetters repository.DeadLetterRepository
	logger      *zap.Logger
	cfg         ConsumerConfig

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

func NewConsumer(
	source EventSource,
	assembler CatalogAssembler,
	writer CatalogWriter,
	deadLetters repository.DeadLetterRepository,
	logger *zap.Logger,
	cfg ConsumerConfig,
) *Consumer {
	if cfg.MaxMessages <= 0 || cfg.MaxMessages > queue.MaxBatch {
		cfg.MaxMessages = queue.MaxBatch
	}
	if cfg.WaitTime <= 0 {
		cfg.WaitTime = 10 * time.Second
	}
	if cfg.VisibilityTimeout <= 0 {
		cfg.VisibilityTimeout = 60 * time.Second
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 5 * time.Second
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	if cfg.OwnerTimeout <= 0 {
		cfg.OwnerTimeout = 30 * time.Second
	}
	if cfg.AckTimeout <= 0 {
		cfg.AckTimeout = 10 * time.Second
	}
	if deadLetters == nil {
		deadLetters = repository.NopDeadLetters{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Consumer{
		source:      source,
		assembler:   assembler,
		writer:      writer,
		deadLetters: deadLetters,
		logger:      logger,
		cfg:         cfg,
		now:         func() time.Time { return time.Now().UTC() },
		sleep:       sleepContext,
	}
}

// Run polls until ctx is cancelled. Cancellation is observed between cycles;
// a cycle that already received messages always finishes acknowledging them.
func (c *Consumer) Run(ctx context.Context) error {
	c.logger.Info("consumer started",
		zap.Int("max_messages", c.cfg.MaxMessages),
		zap.Int("concurrency", c.cfg.Concurrency))
	defer c.logger.Info("consumer stopped")

	for {
		if ctx.Err() != nil {
			return nil
		}

		result, err := c.RunOnce(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			c.logger.Error("consumer cycle failed", zap.Error(err))
			_ = c.sleep(ctx, c.cfg.PollInterval)
			continue
		}
		if result.Received == 0 {
			_ = c.sleep(ctx, c.cfg.PollInterval)
		}
	}
}

// RunOnce executes a single cycle.
func (c *Consumer) RunOnce(ctx context.Context) (CycleResult, error) {
	var result CycleResult

	messages, err := c.source.Receive(ctx, queue.ReceiveOptions{
		MaxMessages: c.cfg.MaxMessages,
		Wait:        c.cfg.WaitTime,
		Visibility:  c.cfg.VisibilityTimeout,
	})
	if err != nil {
		return result, err
	}
	result.Received = len(messages)
	if len(messages) == 0 {
		return result, nil
	}

	work := context.WithoutCancel(ctx)

	groups, malformed := c.group(work, messages)
	result.Malformed = malformed
	result.Owners = len(groups.order)

	succeeded := c.processOwners(work, groups)

	var handles []string
	for i, ownerID := range groups.order {
		if succeeded[i] {
			handles = append(handles, groups.handles[ownerID]...)
		} else {
			result.FailedOwners++
		}
	}

	result.Acknowledged, result.AckFailed = c.acknowledge(work, handles)
	c.release(messages, handles)

	c.logger.Info("consumer cycle complete",
		zap.Int("received", result.Received),
		zap.Int("malformed", result.Malformed),
		zap.Int("owners", result.Owners),
		zap.Int("failed_owners", result.FailedOwners),
		zap.Int("acknowledged", result.Acknowledged),
		zap.Int("ack_failed", result.AckFailed))
	return result, nil
}

type ownerGroups struct {
	order   []string
	handles map[string][]string
}

// group parses messages and collects handles per owner in first-seen order.
// Malformed messages are copied to the dead-letter sink and left unacknowledged.
func (c *Consumer) group(ctx context.Context, messages []queue.Message) (ownerGroups, int) {
	groups := ownerGroups{handles: make(map[string][]string)}
	malformed := 0

	for _, msg := range messages {
		event, err := domain.ParseEvent(msg.Body)
		if err != nil {
			malformed++
			c.deadLetter(ctx, msg, err)
			continue
		}
		if _, seen := groups.handles[event.OwnerID]; !seen {
			groups.order = append(groups.order, event.OwnerID)
		}
		groups.handles[event.OwnerID] = append(groups.handles[event.OwnerID], msg.Handle)
	}
	return groups, malformed
}

func (c *Consumer) deadLetter(ctx context.Context, msg queue.Message, cause error) {
	c.logger.Warn("malformed catalog event",
		zap.String("message_id", msg.ID),
		zap.Int("receive_count", msg.ReceiveCount),
		zap.Error(cause))

	recorded, err := c.deadLetters.Record(ctx, domain.DeadLetter{
		MessageID:    msg.ID,
		Body:         msg.Body,
		Reason:       cause.Error(),
		ReceiveCount: msg.ReceiveCount,
		RecordedAt:   c.now(),
	})
	if err != nil {
		c.logger.Error("dead letter record failed", zap.String("message_id", msg.ID), zap.Error(err))
		return
	}
	if recorded {
		c.logger.Info("dead letter recorded", zap.String("message_id", msg.ID))
	}
}

// processOwners regenerates each owner's snapshot once. The result slice is
// indexed like groups.order.
func (c *Consumer) processOwners(ctx context.Context, groups ownerGroups) []bool {
	succeeded := make([]bool, len(groups.order))

	var g errgroup.Group
	g.SetLimit(c.cfg.Concurrency)
	for i, ownerID := range groups.order {
		g.Go(func() error {
			succeeded[i] = c.processOwner(ctx, ownerID, len(groups.handles[ownerID]))
			return nil
		})
	}
	_ = g.Wait()
	return succeeded
}

func (c *Consumer) processOwner(ctx context.Context, ownerID string, events int) bool {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.OwnerTimeout)
	defer cancel()

	logger := c.logger.With(zap.String("owner_id", ownerID), zap.Int("events", events))

	snapshot, err := c.assembler.Assemble(ctx, ownerID)
	if err != nil {
		logger.Error("catalog assembly failed", zap.Error(err))
		return false
	}
	if err := c.writer.Write(ctx, ownerID, snapshot); err != nil {
		logger.Error("catalog write failed", zap.Error(err))
		return false
	}
	return true
}

// acknowledge deletes handles in sub-batches of queue.MaxBatch. A failing
// sub-batch is logged and the remaining ones are still attempted.
func (c *Consumer) acknowledge(ctx context.Context, handles []string) (int, int) {
	acked, failed := 0, 0
	for start := 0; start < len(handles); start += queue.MaxBatch {
		end := min(start+queue.MaxBatch, len(handles))
		chunk := handles[start:end]

		ackCtx, cancel := context.WithTimeout(ctx, c.cfg.AckTimeout)
		rejected, err := c.source.Acknowledge(ackCtx, chunk)
		cancel()

		if err != nil {
			c.logger.Error("acknowledge batch failed", zap.Int("size", len(chunk)), zap.Error(err))
			failed += len(chunk)
			continue
		}
		if len(rejected) > 0 {
			c.logger.Warn("acknowledge entries rejected", zap.Int("rejected", len(rejected)), zap.Int("size", len(chunk)))
		}
		failed += len(rejected)
		acked += len(chunk) - len(rejected)
	}
	return acked, failed
}

// release lets sources drop bookkeeping for messages left to redelivery.
func (c *Consumer) release(messages []queue.Message, acked []string) {
	r, ok := c.source.(handleReleaser)
	if !ok {
		return
	}
	done := make(map[string]struct{}, len(acked))
	for _, h := range acked {
		done[h] = struct{}{}
	}
	var pending []string
	for _, msg := range messages {
		if _, ok := done[msg.Handle]; !ok {
			pending = append(pending, msg.Handle)
		}
	}
	if len(pending) > 0 {
		r.Release(pending)
	}
}
