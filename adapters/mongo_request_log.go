package adapters

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"github.com/satriahrh/scribe/domain/entities"
	"github.com/satriahrh/scribe/domain/repositories"
)

const requestLogCollection = "transcription_requests"

// MongoRequestLogRepository implements RequestLogRepository using MongoDB
type MongoRequestLogRepository struct {
	collection *mongo.Collection
	logger     *zap.Logger
}

var _ repositories.RequestLogRepository = (*MongoRequestLogRepository)(nil)

// NewMongoRequestLogRepository creates a new MongoDB request log repository
func NewMongoRequestLogRepository(db *mongo.Database, logger *zap.Logger) *MongoRequestLogRepository {
	collection := db.Collection(requestLogCollection)

	// Create indexes in the background so startup is not blocked
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		createdAtIndex := mongo.IndexModel{
			Keys: bson.D{{Key: "created_at", Value: -1}},
		}

		// TTL index for automatic cleanup of expired records
		ttlIndex := mongo.IndexModel{
			Keys:    bson.D{{Key: "expires_at", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(0),
		}

		_, err := collection.Indexes().CreateMany(ctx, []mongo.IndexModel{createdAtIndex, ttlIndex})
		if err != nil {
			logger.Error("Failed to create request log indexes", zap.Error(err))
		} else {
			logger.Info("Request log indexes created successfully")
		}
	}()

	return &MongoRequestLogRepository{
		collection: collection,
		logger:     logger,
	}
}

// Create stores a new request record
func (r *MongoRequestLogRepository) Create(ctx context.Context, record *entities.RequestRecord) error {
	if err := record.Validate(); err != nil {
		return err
	}

	if _, err := r.collection.InsertOne(ctx, record); err != nil {
		r.logger.Error("Failed to create request record", zap.Error(err), zap.String("request_id", record.ID))
		return err
	}
	return nil
}

// ListRecent returns the newest records first
func (r *MongoRequestLogRepository) ListRecent(ctx context.Context, limit int) ([]*entities.RequestRecord, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}

	cursor, err := r.collection.Find(ctx, bson.M{}, opts)
	if err != nil {
		r.logger.Error("Failed to list request records", zap.Error(err))
		return nil, err
	}
	defer cursor.Close(ctx)

	records := make([]*entities.RequestRecord, 0)
	if err := cursor.All(ctx, &records); err != nil {
		r.logger.Error("Failed to decode request records", zap.Error(err))
		return nil, err
	}
	return records, nil
}

// DeleteExpired removes records past their expiry. The TTL index does the
// same eventually; this keeps the log exact between TTL monitor passes.
func (r *MongoRequestLogRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	result, err := r.collection.DeleteMany(ctx, bson.M{"expires_at": bson.M{"$lte": now}})
	if err != nil {
		r.logger.Error("Failed to delete expired request records", zap.Error(err))
		return 0, err
	}
	return result.DeletedCount, nil
}
