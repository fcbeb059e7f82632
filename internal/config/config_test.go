package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("RECORD_STORE", "")
	t.Setenv("CONSUMER_MAX_MESSAGES", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Store.Backend != StoreDynamo || cfg.Store.DynamoTable != "my-catalog-table" {
		t.Fatalf("unexpected store config %+v", cfg.Store)
	}
	if cfg.Queue.Name != "catalog-emit.fifo" || cfg.Snapshot.Bucket != "catalog-bucket" {
		t.Fatalf("unexpected queue/snapshot config %+v %+v", cfg.Queue, cfg.Snapshot)
	}
	if cfg.Consumer.MaxMessages != 10 || cfg.Consumer.WaitTime != 10*time.Second || cfg.Consumer.VisibilityTimeout != time.Minute {
		t.Fatalf("unexpected consumer config %+v", cfg.Consumer)
	}
	if cfg.Publisher.MaxRetries != 3 || cfg.Publisher.BaseDelay != 250*time.Millisecond {
		t.Fatalf("unexpected publisher config %+v", cfg.Publisher)
	}
}

func TestLoadRejectsOutOfRangeBatch(t *testing.T) {
	t.Setenv("CONSUMER_MAX_MESSAGES", "11")
	if _, err := Load(); err == nil {
		t.Fatal("expected error for batch size above 10")
	}
}

func TestDurationAcceptsBareSeconds(t *testing.T) {
	t.Setenv("CONSUMER_WAIT_SECONDS", "3")
	if got := getDuration("CONSUMER_WAIT_SECONDS", time.Second); got != 3*time.Second {
		t.Fatalf("expected 3s, got %v", got)
	}
}

func TestLoadRejectsSQSReceiveLimits(t *testing.T) {
	cases := map[string]string{
		"CONSUMER_WAIT_SECONDS":       "30",
		"CONSUMER_VISIBILITY_SECONDS": "13h",
	}
	for key, value := range cases {
		t.Run(key, func(t *testing.T) {
			t.Setenv("QUEUE_BACKEND", QueueSQS)
			t.Setenv(key, value)
			if _, err := Load(); err == nil {
				t.Fatalf("expected %s=%s to be rejected", key, value)
			}
		})
	}
}

func TestLoadAllowsLongWaitOnJetStream(t *testing.T) {
	t.Setenv("QUEUE_BACKEND", QueueJetStream)
	t.Setenv("CONSUMER_WAIT_SECONDS", "30")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Consumer.WaitTime != 30*time.Second {
		t.Fatalf("expected 30s wait, got %v", cfg.Consumer.WaitTime)
	}
}

func TestValidateConsumerRefusesMemoryStore(t *testing.T) {
	t.Setenv("RECORD_STORE", StoreMemory)
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if err := cfg.ValidateConsumer(); err == nil {
		t.Fatal("expected memory store to be refused for the consumer")
	}

	cfg.Store.Backend = StoreDynamo
	if err := cfg.ValidateConsumer(); err != nil {
		t.Fatalf("dynamodb should be accepted: %v", err)
	}
}
