package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/dflow-platform/dflow-api/internal/dmodel"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoRepo implements Repository on a MongoDB collection. Documents are
// keyed by a UUID string _id.
type MongoRepo struct {
	col *mongo.Collection
}

// NewMongoRepo ensures the per-user recency index used by LastForUser.
func NewMongoRepo(ctx context.Context, col *mongo.Collection) (*MongoRepo, error) {
	idx := mongo.IndexModel{Keys: bson.D{{Key: "username", Value: 1}, {Key: "updatedAt", Value: -1}}}
	if _, err := col.Indexes().CreateOne(ctx, idx); err != nil {
		return nil, fmt.Errorf("create models index: %w", err)
	}
	return &MongoRepo{col: col}, nil
}

func (m *MongoRepo) Create(ctx context.Context, doc *dmodel.Model) (string, error) {
	if doc.ID == "" {
		doc.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	doc.CreatedAt = now
	doc.UpdatedAt = now
	if _, err := m.col.InsertOne(ctx, doc); err != nil {
		return "", err
	}
	return doc.ID, nil
}

func (m *MongoRepo) Get(ctx context.Context, id string) (*dmodel.Model, error) {
	return m.findOne(ctx, bson.M{"_id": id}, nil)
}

func (m *MongoRepo) Delete(ctx context.Context, id string) error {
	res, err := m.col.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (m *MongoRepo) LastForUser(ctx context.Context, username string) (*dmodel.Model, error) {
	opts := options.FindOne().SetSort(recency)
	return m.findOne(ctx, bson.M{"username": username}, opts)
}

func (m *MongoRepo) ListForUser(ctx context.Context, username string) ([]*dmodel.Model, error) {
	cur, err := m.col.Find(ctx, bson.M{"username": username}, options.Find().SetSort(recency))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	out := []*dmodel.Model{}
	for cur.Next(ctx) {
		var d dmodel.Model
		if err := cur.Decode(&d); err != nil {
			return nil, err
		}
		out = append(out, &d)
	}
	return out, cur.Err()
}

var recency = bson.D{{Key: "updatedAt", Value: -1}, {Key: "createdAt", Value: -1}}

func (m *MongoRepo) findOne(ctx context.Context, filter bson.M, opts *options.FindOneOptions) (*dmodel.Model, error) {
	var d dmodel.Model
	var res *mongo.SingleResult
	if opts != nil {
		res = m.col.FindOne(ctx, filter, opts)
	} else {
		res = m.col.FindOne(ctx, filter)
	}
	if err := res.Decode(&d); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &d, nil
}
