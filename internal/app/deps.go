// Package app wires the configured backends shared by the API server and
// the snapshot consumer.
package app

import (
	"context"
	"fmt"

	goRedis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/fastygo/catalog-sync/internal/config"
	awsInfra "github.com/fastygo/catalog-sync/internal/infrastructure/aws"
	"github.com/fastygo/catalog-sync/internal/infrastructure/journal"
	"github.com/fastygo/catalog-sync/internal/infrastructure/monitor"
	pgInfra "github.com/fastygo/catalog-sync/internal/infrastructure/postgres"
	"github.com/fastygo/catalog-sync/internal/infrastructure/queue"
	redisInfra "github.com/fastygo/catalog-sync/internal/infrastructure/redis"
	"github.com/fastygo/catalog-sync/internal/services/lifecycle"
	"github.com/fastygo/catalog-sync/repository"
	"github.com/fastygo/catalog-sync/repository/dynamo"
	"github.com/fastygo/catalog-sync/repository/filesystem"
	"github.com/fastygo/catalog-sync/repository/memory"
	"github.com/fastygo/catalog-sync/repository/postgres"
	redisRepo "github.com/fastygo/catalog-sync/repository/redis"
	s3Repo "github.com/fastygo/catalog-sync/repository/s3"
)

type pinger interface {
	Ping(ctx context.Context) error
}

// Options selects the optional parts a process needs.
type Options struct {
	// WithJournal opens the publish journal when it is enabled in config.
	// Only the process that publishes may hold the journal file.
	WithJournal bool
}

// Deps are the backends selected by configuration.
type Deps struct {
	Records     repository.RecordRepository
	Snapshots   repository.SnapshotRepository
	Queue       queue.Queue
	DeadLetters repository.DeadLetterRepository
	Journal     *journal.Store
	Monitor     *monitor.Monitor
}

// Build connects every configured backend and registers their shutdown with
// manager. Components are registered in start order so they stop in reverse.
func Build(ctx context.Context, cfg *config.Config, logger *zap.Logger, manager *lifecycle.Manager, opts Options) (*Deps, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	deps := &Deps{}
	var probes []monitor.Probe

	var clients *awsInfra.Clients
	needsAWS := cfg.Store.Backend == config.StoreDynamo ||
		cfg.Queue.Backend == config.QueueSQS ||
		cfg.Snapshot.Backend == config.SnapshotS3
	if needsAWS {
		var err error
		if clients, err = awsInfra.NewClients(ctx, cfg.AWS); err != nil {
			return nil, err
		}
	}

	records, err := buildRecords(ctx, cfg, clients, logger, manager)
	if err != nil {
		return nil, err
	}
	deps.Records = records
	if p, ok := records.(pinger); ok {
		probes = append(probes, monitor.Probe{Name: "records", Check: p.Ping, Timeout: cfg.Store.Timeout})
	}

	q, err := buildQueue(ctx, cfg, clients, manager)
	if err != nil {
		return nil, err
	}
	deps.Queue = q
	probes = append(probes, monitor.Probe{Name: "queue", Check: q.Ping})

	snapshots, err := buildSnapshots(cfg, clients)
	if err != nil {
		return nil, err
	}
	deps.Snapshots = snapshots
	if p, ok := snapshots.(pinger); ok {
		probes = append(probes, monitor.Probe{Name: "snapshots", Check: p.Ping, Timeout: cfg.Snapshot.Timeout})
	}

	redisClient, err := redisInfra.NewClient(ctx, cfg.Redis)
	if err != nil {
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}
	if redisClient != nil {
		manager.RegisterCloser("redis", redisClient.Close)
		deps.DeadLetters = redisRepo.NewDeadLetterRepository(redisClient, cfg.Redis.DeadLetterMax, cfg.Redis.DeadLetterTTL)
		probes = append(probes, monitor.Probe{Name: "redis", Check: redisPing(redisClient)})
	} else {
		logger.Info("redis not configured, dead letters are only logged")
		deps.DeadLetters = repository.NopDeadLetters{}
	}

	var sizer monitor.JournalSizer
	if opts.WithJournal && cfg.Journal.Enabled {
		store, err := journal.Open(cfg.Journal.Path)
		if err != nil {
			return nil, fmt.Errorf("open journal: %w", err)
		}
		manager.RegisterCloser("journal", store.Close)
		deps.Journal = store
		sizer = store
	}

	deps.Monitor = monitor.New(probes, sizer, cfg.Monitor.Interval, logger)
	deps.Monitor.Start()
	manager.Register("monitor", func(context.Context) error {
		deps.Monitor.Stop()
		return nil
	})

	return deps, nil
}

func buildRecords(ctx context.Context, cfg *config.Config, clients *awsInfra.Clients, logger *zap.Logger, manager *lifecycle.Manager) (repository.RecordRepository, error) {
	switch cfg.Store.Backend {
	case config.StoreDynamo:
		return dynamo.NewRecordStore(clients.DynamoDB, dynamo.Options{
			Table:    cfg.Store.DynamoTable,
			Timeout:  cfg.Store.Timeout,
			PageSize: int32(cfg.Store.PageSize),
		}), nil
	case config.StorePostgres:
		if err := pgInfra.RunMigrations(cfg.Database, cfg.Migrations, logger); err != nil {
			return nil, fmt.Errorf("migrations failed: %w", err)
		}
		pool, err := pgInfra.NewPool(ctx, cfg.Database, logger)
		if err != nil {
			return nil, fmt.Errorf("postgres connection failed: %w", err)
		}
		manager.Register("postgres", func(context.Context) error {
			pool.Close()
			return nil
		})
		return postgres.NewRecordStore(pool, cfg.Store.Timeout, cfg.Store.PageSize), nil
	case config.StoreMemory:
		logger.Warn("using in-memory record store, data is lost on restart")
		return memory.NewRecordStore(nil), nil
	default:
		return nil, fmt.Errorf("unknown record store %q", cfg.Store.Backend)
	}
}

func buildQueue(ctx context.Context, cfg *config.Config, clients *awsInfra.Clients, manager *lifecycle.Manager) (queue.Queue, error) {
	switch cfg.Queue.Backend {
	case config.QueueSQS:
		return queue.NewSQSQueue(ctx, clients.SQS, cfg.Queue.Name)
	case config.QueueJetStream:
		q, err := queue.ConnectJetStream(cfg.Queue.NATSURL, queue.JetStreamConfig{
			Stream:      cfg.Queue.Stream,
			Subject:     cfg.Queue.Subject,
			Durable:     cfg.Queue.Durable,
			AckWait:     cfg.Consumer.VisibilityTimeout,
			DedupWindow: cfg.Queue.DedupWindow,
		})
		if err != nil {
			return nil, fmt.Errorf("jetstream connection failed: %w", err)
		}
		manager.RegisterCloser("jetstream", q.Close)
		return q, nil
	default:
		return nil, fmt.Errorf("unknown queue backend %q", cfg.Queue.Backend)
	}
}

func buildSnapshots(cfg *config.Config, clients *awsInfra.Clients) (repository.SnapshotRepository, error) {
	switch cfg.Snapshot.Backend {
	case config.SnapshotS3:
		return s3Repo.NewSnapshotStore(clients.S3, cfg.Snapshot.Bucket, cfg.Snapshot.Timeout), nil
	case config.SnapshotLocal:
		return filesystem.NewSnapshotStore(cfg.Snapshot.LocalPath)
	default:
		return nil, fmt.Errorf("unknown snapshot store %q", cfg.Snapshot.Backend)
	}
}

func redisPing(client *goRedis.Client) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		return client.Ping(ctx).Err()
	}
}
