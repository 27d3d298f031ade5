package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/contentforge/studio-api/internal/core/domain"
	"github.com/contentforge/studio-api/internal/core/ports"
)

const collectionUsage = "usage_records"

type UsageRepository struct {
	client *mongo.Client
	users  *mongo.Collection
	usage  *mongo.Collection
}

func NewUsageRepository(client *mongo.Client, db *mongo.Database) *UsageRepository {
	return &UsageRepository{
		client: client,
		users:  db.Collection(collectionUsers),
		usage:  db.Collection(collectionUsage),
	}
}

type applyResult struct {
	balance int64
	rec     *domain.UsageRecord
}

// ApplyDelta adjusts the user's balance and appends the matching usage record
// in one transaction. FindOneAndUpdate with $inc serializes concurrent deltas
// on the server, so simultaneous debits for the same user never lose an
// update; the transaction guarantees the record lands iff the balance moved.
func (r *UsageRepository) ApplyDelta(ctx context.Context, userID, feature string, delta int64) (int64, *domain.UsageRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	session, err := r.client.StartSession()
	if err != nil {
		return 0, nil, fmt.Errorf("start session: %w", err)
	}
	defer session.EndSession(ctx)

	out, err := session.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		now := time.Now().UTC()

		opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
		update := bson.M{
			"$inc": bson.M{"token_balance": delta},
			"$set": bson.M{"updated_at": now},
		}

		var u domain.User
		if err := r.users.FindOneAndUpdate(sc, bson.M{"_id": userID}, update, opts).Decode(&u); err != nil {
			if errors.Is(err, mongo.ErrNoDocuments) {
				return nil, domain.ErrUserNotFound
			}
			return nil, fmt.Errorf("apply balance delta: %w", err)
		}

		rec := &domain.UsageRecord{
			ID:         uuid.NewString(),
			UserID:     userID,
			Feature:    feature,
			TokenDelta: delta,
			CreatedAt:  now,
		}
		if _, err := r.usage.InsertOne(sc, rec); err != nil {
			return nil, fmt.Errorf("insert usage record: %w", err)
		}

		return applyResult{balance: u.TokenBalance, rec: rec}, nil
	})
	if err != nil {
		return 0, nil, err
	}

	res := out.(applyResult)
	return res.balance, res.rec, nil
}

// List returns usage records newest first. The _id tiebreak keeps ordering
// stable for records created within the same millisecond.
func (r *UsageRepository) List(ctx context.Context, f ports.UsageFilter) ([]*domain.UsageRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	filter := bson.M{}
	if f.UserID != "" {
		filter["user_id"] = f.UserID
	}
	if f.Feature != "" {
		filter["feature"] = f.Feature
	}
	created := bson.M{}
	if !f.DateFrom.IsZero() {
		created["$gte"] = f.DateFrom
	}
	if !f.DateTo.IsZero() {
		created["$lte"] = f.DateTo
	}
	if len(created) > 0 {
		filter["created_at"] = created
	}

	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}})
	if f.Limit > 0 {
		page := f.Page
		if page < 1 {
			page = 1
		}
		opts.SetSkip(int64((page - 1) * f.Limit)).SetLimit(int64(f.Limit))
	}

	cur, err := r.usage.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("list usage: %w", err)
	}
	defer cur.Close(ctx)

	var recs []*domain.UsageRecord
	if err := cur.All(ctx, &recs); err != nil {
		return nil, fmt.Errorf("decode usage: %w", err)
	}
	return recs, nil
}

func (r *UsageRepository) DeleteByUser(ctx context.Context, userID string) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	if _, err := r.usage.DeleteMany(ctx, bson.M{"user_id": userID}); err != nil {
		return fmt.Errorf("delete usage by user: %w", err)
	}
	return nil
}
