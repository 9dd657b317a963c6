package product

import (
	"context"
	"fmt"
	"time"

	"github.com/vurksha/backend/internal/api/apierror"
	"github.com/vurksha/backend/internal/infrastructure/cache"
)

// listing is what a cached product list page holds.
type listing struct {
	Items []Product `json:"items"`
	Total int64     `json:"total"`
}

// Service serves catalog reads through the cache.
type Service struct {
	repo     Repository
	cache    *cache.Cache
	cacheTTL time.Duration
}

// NewService wires the product service.
func NewService(repo Repository, c *cache.Cache, cacheTTL time.Duration) *Service {
	if cacheTTL <= 0 {
		cacheTTL = time.Minute
	}
	return &Service{repo: repo, cache: c, cacheTTL: cacheTTL}
}

// Get returns one product, cache-aside.
func (s *Service) Get(ctx context.Context, id string) (Product, error) {
	return cache.GetOrSet(ctx, s.cache, "product:"+id, s.cacheTTL, func(ctx context.Context) (Product, error) {
		p, found, err := s.repo.Find(ctx, id)
		if err != nil {
			return Product{}, apierror.Internal(err)
		}
		if !found || !p.Active {
			return Product{}, apierror.NotFound("product", id)
		}
		return p, nil
	})
}

// GetMany returns the products whose IDs exist; unknown IDs are
// omitted. Batch reads skip the cache: they serve inter-service
// validation, which wants current stock.
func (s *Service) GetMany(ctx context.Context, ids []string) ([]Product, error) {
	if len(ids) == 0 {
		return []Product{}, nil
	}
	list, err := s.repo.FindMany(ctx, ids)
	if err != nil {
		return nil, apierror.Internal(err)
	}
	return list, nil
}

// List returns one page of the catalog, cache-aside keyed by the full
// query shape.
func (s *Service) List(ctx context.Context, q Query) ([]Product, int64, error) {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.Limit < 1 || q.Limit > 100 {
		q.Limit = 20
	}

	key := fmt.Sprintf("products:%s:%s:%t:%d:%d", q.CategoryID, q.Search, q.Featured, q.Page, q.Limit)
	page, err := cache.GetOrSet(ctx, s.cache, key, s.cacheTTL, func(ctx context.Context) (listing, error) {
		items, total, err := s.repo.List(ctx, q)
		if err != nil {
			return listing{}, apierror.Internal(err)
		}
		return listing{Items: items, Total: total}, nil
	})
	if err != nil {
		return nil, 0, err
	}
	return page.Items, page.Total, nil
}

// Categories returns the category tree, cache-aside.
func (s *Service) Categories(ctx context.Context) ([]Category, error) {
	return cache.GetOrSet(ctx, s.cache, "categories", s.cacheTTL, func(ctx context.Context) ([]Category, error) {
		list, err := s.repo.Categories(ctx)
		if err != nil {
			return nil, apierror.Internal(err)
		}
		return list, nil
	})
}

// Banners returns the storefront banners, cache-aside.
func (s *Service) Banners(ctx context.Context) ([]Banner, error) {
	return cache.GetOrSet(ctx, s.cache, "banners", s.cacheTTL, func(ctx context.Context) ([]Banner, error) {
		list, err := s.repo.Banners(ctx)
		if err != nil {
			return nil, apierror.Internal(err)
		}
		return list, nil
	})
}
