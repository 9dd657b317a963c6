package cart

import (
	"context"
	"errors"
	"time"

	"github.com/bytedance/sonic"
	"go.uber.org/zap"

	"github.com/vurksha/backend/internal/api/apierror"
	"github.com/vurksha/backend/internal/clients/product"
	"github.com/vurksha/backend/internal/infrastructure/events"
	"github.com/vurksha/backend/internal/infrastructure/logging"
	"github.com/vurksha/backend/internal/infrastructure/store"
)

// Catalog is the slice of the product client the cart needs.
type Catalog interface {
	Get(ctx context.Context, id string) (product.Product, error)
	GetBatch(ctx context.Context, ids []string) (map[string]product.Product, error)
}

// Config tunes cart behavior.
type Config struct {
	// TTL for stored carts. Defaults to the package TTL.
	TTL time.Duration
	// OptimisticValidation lets carts pass validation when the product
	// service cannot answer, deferring the real check to order time.
	OptimisticValidation bool
}

// Service implements cart operations.
type Service struct {
	kv      store.Store
	catalog Catalog
	bus     events.Bus
	cfg     Config
	logger  *logging.Logger
}

// NewService wires the cart service.
func NewService(kv store.Store, catalog Catalog, bus events.Bus, cfg Config, logger *logging.Logger) *Service {
	if cfg.TTL <= 0 {
		cfg.TTL = TTL
	}
	return &Service{kv: kv, catalog: catalog, bus: bus, cfg: cfg, logger: logger}
}

func cartKey(userID string) string { return "cart:" + userID }

// Get loads the user's cart, empty when none exists.
func (s *Service) Get(ctx context.Context, userID string) (View, error) {
	c, err := s.load(ctx, userID)
	if err != nil {
		return View{}, err
	}
	return NewView(c), nil
}

// AddItem puts quantity of productID into the cart, validating the
// product exists, is active, and has stock. When the catalog cannot
// answer and the optimistic policy is on, the line is admitted
// unchecked and settled at validation time.
func (s *Service) AddItem(ctx context.Context, userID, productID string, quantity int) (View, error) {
	if quantity < 1 {
		return View{}, apierror.Validation("Quantity must be at least 1",
			apierror.FieldError{Field: "quantity", Message: "must be >= 1", Code: "min"})
	}

	degraded := false
	p, err := s.catalog.Get(ctx, productID)
	if err != nil {
		if !product.IsUnavailable(err) || !s.cfg.OptimisticValidation {
			return View{}, err
		}
		// Admit the line unchecked; Validate reprices and re-checks
		// stock before checkout.
		s.logger.Warn("adding cart item optimistically, product service unavailable",
			zap.String("user_id", userID), zap.String("product_id", productID), zap.Error(err))
		degraded = true
		p = product.Product{ID: productID, Active: true}
	}
	if !p.Active {
		return View{}, apierror.NotFound("product", productID)
	}

	c, err := s.load(ctx, userID)
	if err != nil {
		return View{}, err
	}

	if i := c.find(productID); i >= 0 {
		c.Items[i].Quantity += quantity
		if !degraded {
			c.Items[i].Price = p.Price
		}
	} else {
		c.Items = append(c.Items, Item{
			ProductID: p.ID,
			Name:      p.Name,
			Price:     p.Price,
			Unit:      p.Unit,
			ImageURL:  p.ImageURL,
			Quantity:  quantity,
		})
	}
	if i := c.find(productID); !degraded && p.Stock > 0 && c.Items[i].Quantity > p.Stock {
		return View{}, apierror.New(apierror.CodeInsufficientStock, "Not enough stock").
			WithDetails(map[string]any{"productId": productID, "available": p.Stock})
	}

	if err := s.save(ctx, userID, c); err != nil {
		return View{}, err
	}
	s.publish(ctx, events.CartItemAdded, userID, map[string]any{
		"productId": productID, "quantity": quantity,
	})
	return NewView(c), nil
}

// UpdateQuantity sets the quantity of a line; zero removes it.
func (s *Service) UpdateQuantity(ctx context.Context, userID, productID string, quantity int) (View, error) {
	if quantity < 0 {
		return View{}, apierror.Validation("Quantity must not be negative",
			apierror.FieldError{Field: "quantity", Message: "must be >= 0", Code: "min"})
	}
	if quantity == 0 {
		return s.RemoveItem(ctx, userID, productID)
	}

	c, err := s.load(ctx, userID)
	if err != nil {
		return View{}, err
	}
	i := c.find(productID)
	if i < 0 {
		return View{}, apierror.NotFound("cart item", productID)
	}
	c.Items[i].Quantity = quantity
	if err := s.save(ctx, userID, c); err != nil {
		return View{}, err
	}
	return NewView(c), nil
}

// RemoveItem drops a line from the cart.
func (s *Service) RemoveItem(ctx context.Context, userID, productID string) (View, error) {
	c, err := s.load(ctx, userID)
	if err != nil {
		return View{}, err
	}
	i := c.find(productID)
	if i < 0 {
		return View{}, apierror.NotFound("cart item", productID)
	}
	c.Items = append(c.Items[:i], c.Items[i+1:]...)
	if err := s.save(ctx, userID, c); err != nil {
		return View{}, err
	}
	s.publish(ctx, events.CartItemRemoved, userID, map[string]any{"productId": productID})
	return NewView(c), nil
}

// Clear empties the cart.
func (s *Service) Clear(ctx context.Context, userID string) error {
	if err := s.kv.Del(ctx, cartKey(userID)); err != nil {
		return apierror.Wrap(apierror.CodeServiceUnavailable, "Cart storage unavailable", err)
	}
	s.publish(ctx, events.CartCleared, userID, nil)
	return nil
}

// Validate re-checks every line against the catalog: product still
// active, price current, stock sufficient. When the catalog cannot
// answer and the optimistic policy is on, the cart passes with
// Degraded set.
func (s *Service) Validate(ctx context.Context, userID string) (Validation, error) {
	c, err := s.load(ctx, userID)
	if err != nil {
		return Validation{}, err
	}
	if len(c.Items) == 0 {
		return Validation{}, apierror.New(apierror.CodeCartEmpty, "Cart is empty")
	}

	ids := make([]string, len(c.Items))
	for i, it := range c.Items {
		ids[i] = it.ProductID
	}

	known, err := s.catalog.GetBatch(ctx, ids)
	if err != nil {
		if product.IsUnavailable(err) && s.cfg.OptimisticValidation {
			s.logger.Warn("validating cart optimistically, product service unavailable",
				zap.String("user_id", userID), zap.Error(err))
			return Validation{Valid: true, Degraded: true}, nil
		}
		return Validation{}, err
	}

	var problems []Problem
	changed := false
	for i, it := range c.Items {
		p, ok := known[it.ProductID]
		switch {
		case !ok || !p.Active:
			problems = append(problems, Problem{ProductID: it.ProductID, Reason: "unavailable"})
		case p.Stock < it.Quantity:
			problems = append(problems, Problem{ProductID: it.ProductID, Reason: "insufficient_stock", Available: p.Stock})
		case p.Price != it.Price:
			// Reprice silently; the client sees the new subtotal.
			c.Items[i].Price = p.Price
			changed = true
		}
	}
	if changed {
		if err := s.save(ctx, userID, c); err != nil {
			return Validation{}, err
		}
	}
	return Validation{Valid: len(problems) == 0, Problems: problems}, nil
}

func (s *Service) load(ctx context.Context, userID string) (Cart, error) {
	raw, err := s.kv.Get(ctx, cartKey(userID))
	if errors.Is(err, store.ErrNotFound) {
		return Cart{UserID: userID, Items: []Item{}}, nil
	}
	if err != nil {
		return Cart{}, apierror.Wrap(apierror.CodeServiceUnavailable, "Cart storage unavailable", err)
	}
	var c Cart
	if err := sonic.UnmarshalString(raw, &c); err != nil {
		s.logger.Warn("dropping corrupt cart", zap.String("user_id", userID), zap.Error(err))
		return Cart{UserID: userID, Items: []Item{}}, nil
	}
	return c, nil
}

func (s *Service) save(ctx context.Context, userID string, c Cart) error {
	c.UserID = userID
	c.UpdatedAt = time.Now().UTC()
	raw, err := sonic.MarshalString(c)
	if err != nil {
		return apierror.Internal(err)
	}
	if err := s.kv.SetEX(ctx, cartKey(userID), raw, s.cfg.TTL); err != nil {
		return apierror.Wrap(apierror.CodeServiceUnavailable, "Cart storage unavailable", err)
	}
	return nil
}

func (s *Service) publish(ctx context.Context, eventType, userID string, payload map[string]any) {
	if payload == nil {
		payload = map[string]any{}
	}
	payload["userId"] = userID
	event := events.NewEvent(eventType, "cart", userID, "cart-service", payload).
		WithCorrelation("", "", userID)
	if err := s.bus.Publish(ctx, event); err != nil {
		s.logger.Warn("failed to publish cart event",
			zap.String("event_type", eventType), zap.Error(err))
	}
}
