// Package product implements the read-side catalog: products,
// categories, and promotional banners, with cache-aside reads.
package product

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"
)

// Product is one catalog item.
type Product struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	CategoryID  string    `json:"categoryId"`
	Price       float64   `json:"price"`
	MRP         float64   `json:"mrp"`
	Stock       int       `json:"stock"`
	Unit        string    `json:"unit"`
	ImageURL    string    `json:"imageUrl,omitempty"`
	Featured    bool      `json:"featured"`
	Active      bool      `json:"active"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Category groups products.
type Category struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	ImageURL string `json:"imageUrl,omitempty"`
	Rank     int    `json:"rank"`
}

// Banner is a promotional tile on the storefront.
type Banner struct {
	ID       string `json:"id"`
	ImageURL string `json:"imageUrl"`
	Target   string `json:"target,omitempty"`
	Rank     int    `json:"rank"`
}

// Query filters a product listing.
type Query struct {
	CategoryID string
	Search     string
	Featured   bool
	Page       int
	Limit      int
}

// Repository is the catalog's source of truth.
type Repository interface {
	Find(ctx context.Context, id string) (Product, bool, error)
	FindMany(ctx context.Context, ids []string) ([]Product, error)
	List(ctx context.Context, q Query) ([]Product, int64, error)
	Categories(ctx context.Context) ([]Category, error)
	Banners(ctx context.Context) ([]Banner, error)
}

// MemoryRepository is the in-memory Repository used by tests and local
// runs.
type MemoryRepository struct {
	mu         sync.RWMutex
	products   map[string]Product
	categories []Category
	banners    []Banner
}

// NewMemoryRepository returns an empty repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{products: make(map[string]Product)}
}

// Seed replaces the catalog contents.
func (r *MemoryRepository) Seed(products []Product, categories []Category, banners []Banner) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.products = make(map[string]Product, len(products))
	for _, p := range products {
		r.products[p.ID] = p
	}
	r.categories = categories
	r.banners = banners
}

// SetStock adjusts one product's stock.
func (r *MemoryRepository) SetStock(id string, stock int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.products[id]; ok {
		p.Stock = stock
		r.products[id] = p
	}
}

func (r *MemoryRepository) Find(_ context.Context, id string) (Product, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.products[id]
	return p, ok, nil
}

func (r *MemoryRepository) FindMany(_ context.Context, ids []string) ([]Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Product, 0, len(ids))
	for _, id := range ids {
		if p, ok := r.products[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func (r *MemoryRepository) List(_ context.Context, q Query) ([]Product, int64, error) {
	r.mu.RLock()
	matched := make([]Product, 0, len(r.products))
	for _, p := range r.products {
		if !p.Active {
			continue
		}
		if q.CategoryID != "" && p.CategoryID != q.CategoryID {
			continue
		}
		if q.Featured && !p.Featured {
			continue
		}
		if q.Search != "" && !strings.Contains(strings.ToLower(p.Name), strings.ToLower(q.Search)) {
			continue
		}
		matched = append(matched, p)
	}
	r.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool { return matched[i].Name < matched[j].Name })

	total := int64(len(matched))
	start := (q.Page - 1) * q.Limit
	if start >= len(matched) {
		return []Product{}, total, nil
	}
	end := start + q.Limit
	if end > len(matched) {
		end = len(matched)
	}
	return matched[start:end], total, nil
}

func (r *MemoryRepository) Categories(context.Context) ([]Category, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Category, len(r.categories))
	copy(out, r.categories)
	sort.Slice(out, func(i, j int) bool { return out[i].Rank < out[j].Rank })
	return out, nil
}

func (r *MemoryRepository) Banners(context.Context) ([]Banner, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Banner, len(r.banners))
	copy(out, r.banners)
	sort.Slice(out, func(i, j int) bool { return out[i].Rank < out[j].Rank })
	return out, nil
}
