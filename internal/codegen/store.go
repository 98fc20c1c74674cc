// Package codegen records metadata about code generation runs.
package codegen

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	StatusReady = "ready"
	StatusError = "error"
)

// Job is the persisted record of one codegen run.
type Job struct {
	JobID       string    `bson:"jobId" json:"jobId"`
	Username    string    `bson:"username" json:"username"`
	Status      string    `bson:"status" json:"status"`
	ArtifactKey string    `bson:"artifactKey,omitempty" json:"artifactKey,omitempty"`
	Message     string    `bson:"message,omitempty" json:"message,omitempty"`
	CreatedAt   time.Time `bson:"createdAt" json:"createdAt"`
	UpdatedAt   time.Time `bson:"updatedAt" json:"updatedAt"`
}

// Store persists codegen jobs. Load returns nil, nil when the job is unknown.
type Store interface {
	Save(ctx context.Context, j *Job) error
	Load(ctx context.Context, jobID string) (*Job, error)
	ListForUser(ctx context.Context, username string) ([]*Job, error)
}

// MongoStore keeps jobs in a Mongo collection, upserting by jobId.
type MongoStore struct {
	col *mongo.Collection
}

func NewMongoStore(ctx context.Context, col *mongo.Collection) (*MongoStore, error) {
	_, err := col.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "jobId", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "username", Value: 1}, {Key: "createdAt", Value: -1}}},
	})
	if err != nil {
		return nil, fmt.Errorf("codegen indexes: %w", err)
	}
	return &MongoStore{col: col}, nil
}

func (s *MongoStore) Save(ctx context.Context, j *Job) error {
	stamp(j)
	filter := bson.M{"jobId": j.JobID}
	opts := options.Update().SetUpsert(true)
	if _, err := s.col.UpdateOne(ctx, filter, bson.M{"$set": j}, opts); err != nil {
		return fmt.Errorf("save codegen job: %w", err)
	}
	return nil
}

func (s *MongoStore) Load(ctx context.Context, jobID string) (*Job, error) {
	var j Job
	if err := s.col.FindOne(ctx, bson.M{"jobId": jobID}).Decode(&j); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, err
	}
	return &j, nil
}

func (s *MongoStore) ListForUser(ctx context.Context, username string) ([]*Job, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	cur, err := s.col.Find(ctx, bson.M{"username": username}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	var out []*Job
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// MemoryStore is used when MongoDB is not configured and in tests.
type MemoryStore struct {
	mu   sync.RWMutex
	jobs map[string]Job
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{jobs: make(map[string]Job)}
}

func (s *MemoryStore) Save(_ context.Context, j *Job) error {
	if j.JobID == "" {
		return errors.New("job id is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if prev, ok := s.jobs[j.JobID]; ok && !prev.CreatedAt.IsZero() {
		j.CreatedAt = prev.CreatedAt
	}
	stamp(j)
	s.jobs[j.JobID] = *j
	return nil
}

func (s *MemoryStore) Load(_ context.Context, jobID string) (*Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	j, ok := s.jobs[jobID]
	if !ok {
		return nil, nil
	}
	return &j, nil
}

func (s *MemoryStore) ListForUser(_ context.Context, username string) ([]*Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*Job
	for _, j := range s.jobs {
		if j.Username == username {
			cp := j
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, k int) bool { return out[i].CreatedAt.After(out[k].CreatedAt) })
	return out, nil
}

func stamp(j *Job) {
	now := time.Now().UTC()
	if j.CreatedAt.IsZero() {
		j.CreatedAt = now
	}
	j.UpdatedAt = now
}
