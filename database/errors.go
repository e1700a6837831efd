package database

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"social/logging"
	"social/metrics"
	"social/models"
)

const storeService = "document store"

// exec runs one store operation under the operation timeout and translates
// its error into the models taxonomy.
func (s *MongoStore) exec(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := time.Now()
	err := fn(ctx)
	metrics.StoreOperationDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())

	if err == nil {
		return nil
	}
	translated := translate(err)
	if errors.Is(translated, models.ErrServiceUnavailable) {
		metrics.StoreErrors.WithLabelValues(op).Inc()
		logging.Ctx(ctx).Error().Err(err).Str("operation", op).Msg("document store operation failed")
	}
	return translated
}

// translate maps driver errors onto the models error kinds. Errors already
// in the taxonomy pass through unchanged.
func translate(err error) error {
	var appErr *models.Error
	switch {
	case err == nil:
		return nil
	case errors.As(err, &appErr):
		return appErr
	case errors.Is(err, mongo.ErrNoDocuments):
		return models.NotFound("Item", "unknown")
	case errors.Is(err, context.Canceled):
		return err
	default:
		return models.Unavailable(storeService, err)
	}
}

func parseObjectID(id string) (primitive.ObjectID, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return primitive.NilObjectID, models.Invalid("invalid id " + id)
	}
	return oid, nil
}
