package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const collectionSchema = "schema_version"

// migration is one idempotent schema step. Steps run in order and are
// recorded in the schema_version collection, so reruns skip completed steps.
type migration struct {
	version int
	name    string
	run     func(ctx context.Context, db *mongo.Database) error
}

var migrations = []migration{
	{
		version: 1,
		name:    "user indexes",
		run: func(ctx context.Context, db *mongo.Database) error {
			_, err := db.Collection(collectionUsers).Indexes().CreateMany(ctx, []mongo.IndexModel{
				{Keys: bson.D{{Key: "username", Value: 1}}, Options: options.Index().SetUnique(true)},
				{Keys: bson.D{{Key: "created_at", Value: -1}}},
			})
			return err
		},
	},
	{
		version: 2,
		name:    "usage ledger indexes",
		run: func(ctx context.Context, db *mongo.Database) error {
			_, err := db.Collection(collectionUsage).Indexes().CreateMany(ctx, []mongo.IndexModel{
				{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "created_at", Value: -1}}},
				{Keys: bson.D{{Key: "feature", Value: 1}}},
			})
			return err
		},
	},
	{
		version: 3,
		name:    "artifact indexes",
		run: func(ctx context.Context, db *mongo.Database) error {
			_, err := db.Collection(collectionArtifacts).Indexes().CreateMany(ctx, []mongo.IndexModel{
				{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "created_at", Value: -1}}},
				{Keys: bson.D{{Key: "kind", Value: 1}}},
			})
			return err
		},
	},
	{
		version: 4,
		name:    "transcript indexes",
		run: func(ctx context.Context, db *mongo.Database) error {
			_, err := db.Collection(collectionTranscripts).Indexes().CreateMany(ctx, []mongo.IndexModel{
				{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "created_at", Value: -1}}},
			})
			return err
		},
	},
}

type schemaDoc struct {
	ID        string    `bson:"_id"`
	Version   int       `bson:"version"`
	UpdatedAt time.Time `bson:"updated_at"`
}

// Migrate applies all pending migrations and records the reached version.
func Migrate(ctx context.Context, db *mongo.Database, log zerolog.Logger) error {
	ctx, cancel := context.WithTimeout(ctx, 60*time.Second)
	defer cancel()

	schema := db.Collection(collectionSchema)

	var current schemaDoc
	err := schema.FindOne(ctx, bson.M{"_id": "schema"}).Decode(&current)
	if err != nil && !errors.Is(err, mongo.ErrNoDocuments) {
		return fmt.Errorf("read schema version: %w", err)
	}

	for _, m := range migrations {
		if m.version <= current.Version {
			continue
		}

		if err := m.run(ctx, db); err != nil {
			return fmt.Errorf("migration %d (%s): %w", m.version, m.name, err)
		}

		doc := schemaDoc{ID: "schema", Version: m.version, UpdatedAt: time.Now().UTC()}
		if _, err := schema.ReplaceOne(ctx, bson.M{"_id": "schema"}, doc, options.Replace().SetUpsert(true)); err != nil {
			return fmt.Errorf("record schema version %d: %w", m.version, err)
		}

		log.Info().Int("version", m.version).Str("name", m.name).Msg("migration applied")
	}

	return nil
}
