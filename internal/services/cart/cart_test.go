package cart

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vurksha/backend/internal/api/apierror"
	"github.com/vurksha/backend/internal/clients/product"
	"github.com/vurksha/backend/internal/infrastructure/events"
	"github.com/vurksha/backend/internal/infrastructure/logging"
	"github.com/vurksha/backend/internal/infrastructure/resilience"
	"github.com/vurksha/backend/internal/infrastructure/store"
)

// fakeCatalog serves canned products, optionally failing as if the
// product service were down.
type fakeCatalog struct {
	products map[string]product.Product
	down     bool
}

func (f *fakeCatalog) Get(_ context.Context, id string) (product.Product, error) {
	if f.down {
		return product.Product{}, resilience.ErrCircuitOpen
	}
	p, ok := f.products[id]
	if !ok {
		return product.Product{}, apierror.NotFound("product", id)
	}
	return p, nil
}

func (f *fakeCatalog) GetBatch(_ context.Context, ids []string) (map[string]product.Product, error) {
	if f.down {
		return nil, resilience.ErrCircuitOpen
	}
	out := make(map[string]product.Product)
	for _, id := range ids {
		if p, ok := f.products[id]; ok {
			out[id] = p
		}
	}
	return out, nil
}

func newCatalog() *fakeCatalog {
	return &fakeCatalog{products: map[string]product.Product{
		"p-1": {ID: "p-1", Name: "Paneer", Price: 249, Stock: 10, Unit: "500g", Active: true},
		"p-2": {ID: "p-2", Name: "Milk", Price: 58, Stock: 2, Unit: "1L", Active: true},
	}}
}

func newService(catalog Catalog, optimistic bool) (*Service, *events.MemoryBus) {
	bus := events.NewMemoryBus(5)
	svc := NewService(store.NewMemory(), catalog, bus, Config{OptimisticValidation: optimistic}, logging.NewNop())
	return svc, bus
}

func TestAddListRemoveFlow(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(newCatalog(), false)

	v, err := svc.AddItem(ctx, "u-1", "p-1", 2)
	require.NoError(t, err)
	assert.Equal(t, 498.0, v.Subtotal)
	assert.Equal(t, 2, v.ItemCount)

	v, err = svc.AddItem(ctx, "u-1", "p-2", 1)
	require.NoError(t, err)
	assert.Equal(t, 556.0, v.Subtotal)
	assert.Equal(t, 3, v.ItemCount)

	// Adding the same product again merges lines.
	v, err = svc.AddItem(ctx, "u-1", "p-1", 1)
	require.NoError(t, err)
	assert.Len(t, v.Items, 2)
	assert.Equal(t, 4, v.ItemCount)

	v, err = svc.RemoveItem(ctx, "u-1", "p-2")
	require.NoError(t, err)
	assert.Len(t, v.Items, 1)

	require.NoError(t, svc.Clear(ctx, "u-1"))
	v, err = svc.Get(ctx, "u-1")
	require.NoError(t, err)
	assert.Empty(t, v.Items)
}

func TestAddItemChecksStock(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(newCatalog(), false)

	_, err := svc.AddItem(ctx, "u-1", "p-2", 3)
	require.Error(t, err)
	assert.Equal(t, apierror.CodeInsufficientStock, apierror.From(err).Code)
}

func TestUpdateQuantityZeroRemoves(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(newCatalog(), false)

	_, err := svc.AddItem(ctx, "u-1", "p-1", 2)
	require.NoError(t, err)

	v, err := svc.UpdateQuantity(ctx, "u-1", "p-1", 0)
	require.NoError(t, err)
	assert.Empty(t, v.Items)
}

func TestCartsAreIsolatedPerUser(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(newCatalog(), false)

	_, err := svc.AddItem(ctx, "u-1", "p-1", 1)
	require.NoError(t, err)

	v, err := svc.Get(ctx, "u-2")
	require.NoError(t, err)
	assert.Empty(t, v.Items)
}

func TestValidateFindsProblems(t *testing.T) {
	ctx := context.Background()
	catalog := newCatalog()
	svc, _ := newService(catalog, false)

	_, err := svc.AddItem(ctx, "u-1", "p-1", 2)
	require.NoError(t, err)
	_, err = svc.AddItem(ctx, "u-1", "p-2", 2)
	require.NoError(t, err)

	// Stock drops and a product disappears after the items were added.
	p2 := catalog.products["p-2"]
	p2.Stock = 1
	catalog.products["p-2"] = p2
	delete(catalog.products, "p-1")

	res, err := svc.Validate(ctx, "u-1")
	require.NoError(t, err)
	assert.False(t, res.Valid)
	require.Len(t, res.Problems, 2)
	assert.Equal(t, "unavailable", res.Problems[0].Reason)
	assert.Equal(t, "insufficient_stock", res.Problems[1].Reason)
	assert.Equal(t, 1, res.Problems[1].Available)
}

func TestValidateReprices(t *testing.T) {
	ctx := context.Background()
	catalog := newCatalog()
	svc, _ := newService(catalog, false)

	_, err := svc.AddItem(ctx, "u-1", "p-1", 1)
	require.NoError(t, err)

	p1 := catalog.products["p-1"]
	p1.Price = 299
	catalog.products["p-1"] = p1

	res, err := svc.Validate(ctx, "u-1")
	require.NoError(t, err)
	assert.True(t, res.Valid)

	v, err := svc.Get(ctx, "u-1")
	require.NoError(t, err)
	assert.Equal(t, 299.0, v.Subtotal)
}

func TestValidateEmptyCart(t *testing.T) {
	svc, _ := newService(newCatalog(), false)
	_, err := svc.Validate(context.Background(), "u-1")
	require.Error(t, err)
	assert.Equal(t, apierror.CodeCartEmpty, apierror.From(err).Code)
}

func TestOptimisticValidationOnOutage(t *testing.T) {
	ctx := context.Background()
	catalog := newCatalog()
	svc, _ := newService(catalog, true)

	_, err := svc.AddItem(ctx, "u-1", "p-1", 1)
	require.NoError(t, err)

	catalog.down = true
	res, err := svc.Validate(ctx, "u-1")
	require.NoError(t, err)
	assert.True(t, res.Valid)
	assert.True(t, res.Degraded)
}

func TestPessimisticValidationOnOutage(t *testing.T) {
	ctx := context.Background()
	catalog := newCatalog()
	svc, _ := newService(catalog, false)

	_, err := svc.AddItem(ctx, "u-1", "p-1", 1)
	require.NoError(t, err)

	catalog.down = true
	_, err = svc.Validate(ctx, "u-1")
	require.Error(t, err)
}

func TestOptimisticAddOnOutage(t *testing.T) {
	ctx := context.Background()
	catalog := newCatalog()
	svc, _ := newService(catalog, true)

	catalog.down = true
	v, err := svc.AddItem(ctx, "u-1", "p-1", 2)
	require.NoError(t, err, "an unreachable catalog must not block the add")
	require.Len(t, v.Items, 1)
	assert.Equal(t, 2, v.ItemCount)
	assert.Zero(t, v.Items[0].Price, "price is unknown until the catalog answers")

	// Once the catalog is back, validation settles the deferred checks.
	catalog.down = false
	res, err := svc.Validate(ctx, "u-1")
	require.NoError(t, err)
	assert.True(t, res.Valid)

	v, err = svc.Get(ctx, "u-1")
	require.NoError(t, err)
	assert.Equal(t, 498.0, v.Subtotal, "validation reprices the admitted line")
}

func TestPessimisticAddOnOutage(t *testing.T) {
	ctx := context.Background()
	catalog := newCatalog()
	svc, _ := newService(catalog, false)

	catalog.down = true
	_, err := svc.AddItem(ctx, "u-1", "p-1", 1)
	require.Error(t, err)
}

func TestCartEventsPublished(t *testing.T) {
	ctx := context.Background()
	svc, bus := newService(newCatalog(), false)

	var types []string
	require.NoError(t, bus.Subscribe(ctx, "audit", "cart.#", func(_ context.Context, e events.DomainEvent) events.Outcome {
		types = append(types, e.EventType)
		return events.Ack
	}))

	_, err := svc.AddItem(ctx, "u-1", "p-1", 1)
	require.NoError(t, err)
	_, err = svc.RemoveItem(ctx, "u-1", "p-1")
	require.NoError(t, err)
	require.NoError(t, svc.Clear(ctx, "u-1"))

	assert.Equal(t, []string{events.CartItemAdded, events.CartItemRemoved, events.CartCleared}, types)
}
