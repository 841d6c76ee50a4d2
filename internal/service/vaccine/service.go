package vaccine

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	gocache "github.com/patrickmn/go-cache"

	"github.com/Aytsuu/CIUDAD-APP-sub005/internal/model"
	"github.com/Aytsuu/CIUDAD-APP-sub005/internal/repository"
)

// Directory is the read side the saga and handlers need: vaccine
// definitions and their stock batches.
type Directory interface {
	GetDefinition(ctx context.Context, id uuid.UUID) (*model.VaccineDefinition, error)
	ListDefinitions(ctx context.Context) ([]*model.VaccineDefinition, error)
	ListBatches(ctx context.Context, vaccineID uuid.UUID) ([]*model.VaccineStockBatch, error)
}

// Service caches vaccine definitions; they are immutable reference
// data, so a short TTL only bounds staleness after redeploys of the
// inventory system.
type Service struct {
	vaccines repository.VaccineRepository
	stock    repository.StockRepository
	cache    *gocache.Cache
}

func NewService(vaccines repository.VaccineRepository, stock repository.StockRepository) *Service {
	return &Service{
		vaccines: vaccines,
		stock:    stock,
		cache:    gocache.New(10*time.Minute, 30*time.Minute),
	}
}

func (s *Service) GetDefinition(ctx context.Context, id uuid.UUID) (*model.VaccineDefinition, error) {
	if cached, found := s.cache.Get(id.String()); found {
		return cached.(*model.VaccineDefinition), nil
	}

	vaccine, err := s.vaccines.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get vaccine definition: %w", err)
	}

	s.cache.Set(id.String(), vaccine, gocache.DefaultExpiration)
	return vaccine, nil
}

func (s *Service) ListDefinitions(ctx context.Context) ([]*model.VaccineDefinition, error) {
	vaccines, err := s.vaccines.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list vaccine definitions: %w", err)
	}
	return vaccines, nil
}

func (s *Service) ListBatches(ctx context.Context, vaccineID uuid.UUID) ([]*model.VaccineStockBatch, error) {
	batches, err := s.stock.ListBatches(ctx, vaccineID)
	if err != nil {
		return nil, fmt.Errorf("failed to list stock batches: %w", err)
	}
	return batches, nil
}
