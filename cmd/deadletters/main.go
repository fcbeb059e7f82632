// Command deadletters prints the most recent dead-lettered catalog events
// as JSON lines, newest first.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/fastygo/catalog-sync/internal/config"
	redisInfra "github.com/fastygo/catalog-sync/internal/infrastructure/redis"
	"github.com/fastygo/catalog-sync/repository"
	redisRepo "github.com/fastygo/catalog-sync/repository/redis"
)

func main() {
	limit := flag.Int("limit", 50, "maximum number of dead letters to print")
	timeout := flag.Duration("timeout", 10*time.Second, "redis timeout")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	client, err := redisInfra.NewClient(ctx, cfg.Redis)
	if err != nil {
		log.Fatalf("redis connection failed: %v", err)
	}
	if client == nil {
		log.Fatal("REDIS_URL is not set, dead letters are not stored")
	}
	defer client.Close()

	letters := redisRepo.NewDeadLetterRepository(client, cfg.Redis.DeadLetterMax, cfg.Redis.DeadLetterTTL)
	if err := run(ctx, letters, *limit, os.Stdout); err != nil {
		log.Fatalf("list dead letters: %v", err)
	}
}

func run(ctx context.Context, letters repository.DeadLetterRepository, limit int, out io.Writer) error {
	items, err := letters.List(ctx, limit)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(out)
	for _, letter := range items {
		if err := enc.Encode(letter); err != nil {
			return fmt.Errorf("encode %s: %w", letter.MessageID, err)
		}
	}
	return nil
}
