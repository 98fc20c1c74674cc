package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/dflow-platform/dflow-api/internal/dmodel"
	"github.com/dflow-platform/dflow-api/internal/dmodel/repository"
	"github.com/dflow-platform/dflow-api/internal/merge"
	"github.com/dflow-platform/dflow-api/internal/models"
	"github.com/dflow-platform/dflow-api/pkg/metrics"
	"go.mongodb.org/mongo-driver/mongo"
)

var (
	ErrNotFound       = errors.New("model does not exist")
	ErrEmptyModel     = errors.New("model is empty")
	ErrNotText        = errors.New("model is not text")
	ErrMalformedModel = errors.New("model has a section without a closing end")
)

// Service holds the model business operations used by the handler layer.
type Service struct {
	repo repository.Repository
}

func New(repo repository.Repository) *Service {
	return &Service{repo: repo}
}

// NewMemoryService returns a Service backed by the in-memory repository.
func NewMemoryService() *Service {
	return New(repository.NewMemoryRepo())
}

// NewMongoService returns a Service backed by a MongoDB collection.
func NewMongoService(ctx context.Context, col *mongo.Collection) (*Service, error) {
	repo, err := repository.NewMongoRepo(ctx, col)
	if err != nil {
		return nil, err
	}
	return New(repo), nil
}

// Store saves raw as a new model owned by u. Models the merger would refuse
// are rejected.
func (s *Service) Store(ctx context.Context, u *models.User, raw []byte) (*dmodel.Model, error) {
	if err := checkMergeable(string(raw)); err != nil {
		return nil, err
	}
	m := &dmodel.Model{Raw: string(raw), UserID: u.ID, Username: u.Username}
	if _, err := s.repo.Create(ctx, m); err != nil {
		return nil, fmt.Errorf("store model: %w", err)
	}
	metrics.ModelsStored.Inc()
	return m, nil
}

func (s *Service) Get(ctx context.Context, id string) (*dmodel.Model, error) {
	return translate(s.repo.Get(ctx, id))
}

func (s *Service) Delete(ctx context.Context, id string) error {
	err := s.repo.Delete(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return ErrNotFound
	}
	return err
}

// LastForUser returns the user's current model.
func (s *Service) LastForUser(ctx context.Context, username string) (*dmodel.Model, error) {
	return translate(s.repo.LastForUser(ctx, username))
}

func (s *Service) ListForUser(ctx context.Context, username string) ([]*dmodel.Model, error) {
	return s.repo.ListForUser(ctx, username)
}

// LatestPerUser collects the current model of each user, preserving the
// order of users. Users without models are skipped.
func (s *Service) LatestPerUser(ctx context.Context, users []*models.User) ([]*dmodel.Model, error) {
	out := make([]*dmodel.Model, 0, len(users))
	for _, u := range users {
		m, err := s.LastForUser(ctx, u.Username)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("latest model for %s: %w", u.Username, err)
		}
		out = append(out, m)
	}
	return out, nil
}

func checkMergeable(raw string) error {
	_, err := merge.Extract(raw)
	var de *merge.DocumentError
	switch {
	case err == nil:
		return nil
	case errors.Is(err, merge.ErrEmptyDocument):
		return ErrEmptyModel
	case errors.Is(err, merge.ErrNotText):
		return ErrNotText
	case errors.Is(err, merge.ErrMalformedSection) && errors.As(err, &de):
		return fmt.Errorf("%w: %s at offset %d", ErrMalformedModel, de.Section, de.Offset)
	}
	return err
}

func translate(m *dmodel.Model, err error) (*dmodel.Model, error) {
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrNotFound
	}
	return m, err
}
