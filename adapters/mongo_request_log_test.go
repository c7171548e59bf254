package adapters

import (
	"context"
	"os"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/satriahrh/scribe/adapters/mongo"
	"github.com/satriahrh/scribe/domain/entities"
)

// TestMongoRequestLogRepository_Integration tests the MongoDB request log
// This test requires a running MongoDB instance (skipped if MONGODB_URI is not set)
func TestMongoRequestLogRepository_Integration(t *testing.T) {
	mongoURI := os.Getenv("MONGODB_URI")
	if mongoURI == "" {
		t.Skip("Skipping MongoDB integration test - MONGODB_URI not set")
	}

	ctx := context.Background()
	logger, _ := zap.NewDevelopment()

	client, err := mongo.NewClient(ctx, mongo.Config{URI: mongoURI, Database: "scribe_test"}, logger)
	if err != nil {
		t.Fatalf("Failed to connect to MongoDB: %v", err)
	}
	defer client.Close(ctx)
	defer func() {
		// Clean up test database
		client.Database.Drop(ctx)
	}()

	repo := NewMongoRequestLogRepository(client.Database, logger)

	t.Run("CreateAndList", func(t *testing.T) {
		first := entities.NewRequestRecord(entities.SourceUpload, "mock", "", time.Hour)
		first.Filename = "first.webm"
		second := entities.NewRequestRecord(entities.SourceWebSocket, "mock", "", time.Hour)
		second.Filename = "second.webm"
		second.CreatedAt = first.CreatedAt.Add(time.Second)

		if err := repo.Create(ctx, first); err != nil {
			t.Fatalf("Failed to create record: %v", err)
		}
		if err := repo.Create(ctx, second); err != nil {
			t.Fatalf("Failed to create record: %v", err)
		}

		records, err := repo.ListRecent(ctx, 10)
		if err != nil {
			t.Fatalf("Failed to list records: %v", err)
		}
		if len(records) != 2 || records[0].Filename != "second.webm" {
			t.Errorf("Expected newest record first, got %+v", records)
		}
	})

	t.Run("DeleteExpired", func(t *testing.T) {
		deleted, err := repo.DeleteExpired(ctx, time.Now().Add(2*time.Hour))
		if err != nil {
			t.Fatalf("Failed to delete expired records: %v", err)
		}
		if deleted != 2 {
			t.Errorf("Expected 2 deleted records, got %d", deleted)
		}
	})
}
