package registry

import (
	"context"
	"fmt"
	"time"

	apperrors "github.com/sweetpotato0/docarag/errors"
	"github.com/sweetpotato0/docarag/rag/document"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoRegistry persists document records in MongoDB.
type MongoRegistry struct {
	client     *mongo.Client
	collection *mongo.Collection
}

// MongoConfig holds MongoDB connection settings.
type MongoConfig struct {
	URI        string
	Database   string
	Collection string
}

// DefaultMongoConfig returns the local-development defaults.
func DefaultMongoConfig() *MongoConfig {
	return &MongoConfig{
		URI:        "mongodb://localhost:27017",
		Database:   "docarag",
		Collection: "documents",
	}
}

// mongoRecord is the internal representation for MongoDB.
type mongoRecord struct {
	DocumentID string         `bson:"_id"`
	Filename   string         `bson:"filename,omitempty"`
	Title      string         `bson:"title,omitempty"`
	SourceType string         `bson:"source_type,omitempty"`
	Chunks     int            `bson:"chunks"`
	Metadata   map[string]any `bson:"metadata,omitempty"`
	CreatedAt  time.Time      `bson:"created_at"`
	UpdatedAt  time.Time      `bson:"updated_at"`
}

// NewMongoRegistry connects to MongoDB and prepares the documents collection.
func NewMongoRegistry(ctx context.Context, config *MongoConfig) (*MongoRegistry, error) {
	if config == nil {
		config = DefaultMongoConfig()
	}

	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(config.URI))
	if err != nil {
		return nil, fmt.Errorf("connect to mongodb: %w", err)
	}
	if err := client.Ping(connectCtx, nil); err != nil {
		return nil, fmt.Errorf("ping mongodb: %w", err)
	}

	collection := client.Database(config.Database).Collection(config.Collection)
	reg := &MongoRegistry{client: client, collection: collection}
	if err := reg.createIndexes(ctx); err != nil {
		return nil, fmt.Errorf("create indexes: %w", err)
	}
	return reg, nil
}

func (r *MongoRegistry) createIndexes(ctx context.Context) error {
	indexModel := mongo.IndexModel{
		Keys: bson.D{{Key: "created_at", Value: -1}},
	}
	_, err := r.collection.Indexes().CreateOne(ctx, indexModel)
	return err
}

// Save implements Registry as an upsert keyed by document ID.
func (r *MongoRegistry) Save(ctx context.Context, rec *Record) error {
	if rec == nil || rec.DocumentID == "" {
		return fmt.Errorf("%w: record must have a document id", apperrors.ErrInvalidInput)
	}

	now := time.Now().UTC()
	createdAt := rec.CreatedAt
	if createdAt.IsZero() {
		createdAt = now
	}

	update := bson.M{
		"$set": bson.M{
			"filename":    rec.Filename,
			"title":       rec.Title,
			"source_type": string(rec.SourceType),
			"chunks":      rec.Chunks,
			"metadata":    rec.Metadata,
			"updated_at":  now,
		},
		"$setOnInsert": bson.M{"created_at": createdAt},
	}
	opts := options.Update().SetUpsert(true)
	if _, err := r.collection.UpdateByID(ctx, rec.DocumentID, update, opts); err != nil {
		return fmt.Errorf("upsert document record: %w", err)
	}
	return nil
}

// Get implements Registry.
func (r *MongoRegistry) Get(ctx context.Context, documentID string) (*Record, error) {
	var raw mongoRecord
	err := r.collection.FindOne(ctx, bson.M{"_id": documentID}).Decode(&raw)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, fmt.Errorf("document %s: %w", documentID, apperrors.ErrNotFound)
		}
		return nil, fmt.Errorf("find document record: %w", err)
	}
	return raw.toRecord(), nil
}

// List implements Registry, newest first.
func (r *MongoRegistry) List(ctx context.Context) ([]*Record, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	cursor, err := r.collection.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("list document records: %w", err)
	}
	defer cursor.Close(ctx)

	var records []*Record
	for cursor.Next(ctx) {
		var raw mongoRecord
		if err := cursor.Decode(&raw); err != nil {
			return nil, fmt.Errorf("decode document record: %w", err)
		}
		records = append(records, raw.toRecord())
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("iterate document records: %w", err)
	}
	return records, nil
}

// Delete implements Registry.
func (r *MongoRegistry) Delete(ctx context.Context, documentID string) error {
	result, err := r.collection.DeleteOne(ctx, bson.M{"_id": documentID})
	if err != nil {
		return fmt.Errorf("delete document record: %w", err)
	}
	if result.DeletedCount == 0 {
		return fmt.Errorf("document %s: %w", documentID, apperrors.ErrNotFound)
	}
	return nil
}

// Close disconnects from MongoDB.
func (r *MongoRegistry) Close(ctx context.Context) error {
	return r.client.Disconnect(ctx)
}

func (m *mongoRecord) toRecord() *Record {
	return &Record{
		DocumentID: m.DocumentID,
		Filename:   m.Filename,
		Title:      m.Title,
		SourceType: document.SourceType(m.SourceType),
		Chunks:     m.Chunks,
		Metadata:   m.Metadata,
		CreatedAt:  m.CreatedAt,
		UpdatedAt:  m.UpdatedAt,
	}
}
