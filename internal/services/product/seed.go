package product

import "time"

// SampleCatalog returns a small grocery catalog for development runs,
// where no real catalog source is wired up.
func SampleCatalog() ([]Product, []Category, []Banner) {
	now := time.Now().UTC()
	products := []Product{
		{ID: "p-milk", Name: "Toned Milk", CategoryID: "c-dairy", Price: 27, MRP: 29, Stock: 120, Unit: "500ml", Active: true, Featured: true, CreatedAt: now},
		{ID: "p-curd", Name: "Fresh Curd", CategoryID: "c-dairy", Price: 35, MRP: 40, Stock: 60, Unit: "400g", Active: true, CreatedAt: now},
		{ID: "p-paneer", Name: "Paneer", CategoryID: "c-dairy", Price: 90, MRP: 99, Stock: 30, Unit: "200g", Active: true, CreatedAt: now},
		{ID: "p-banana", Name: "Banana Robusta", CategoryID: "c-fruit", Price: 48, MRP: 55, Stock: 80, Unit: "1kg", Active: true, Featured: true, CreatedAt: now},
		{ID: "p-apple", Name: "Shimla Apple", CategoryID: "c-fruit", Price: 160, MRP: 180, Stock: 40, Unit: "1kg", Active: true, CreatedAt: now},
		{ID: "p-onion", Name: "Onion", CategoryID: "c-veg", Price: 32, MRP: 38, Stock: 200, Unit: "1kg", Active: true, CreatedAt: now},
		{ID: "p-tomato", Name: "Tomato", CategoryID: "c-veg", Price: 28, MRP: 34, Stock: 150, Unit: "1kg", Active: true, CreatedAt: now},
		{ID: "p-bread", Name: "Whole Wheat Bread", CategoryID: "c-bakery", Price: 45, MRP: 50, Stock: 25, Unit: "400g", Active: true, CreatedAt: now},
		{ID: "p-eggs", Name: "Farm Eggs", CategoryID: "c-dairy", Price: 84, MRP: 90, Stock: 0, Unit: "12pc", Active: true, CreatedAt: now},
	}
	categories := []Category{
		{ID: "c-fruit", Name: "Fruits", Rank: 1},
		{ID: "c-veg", Name: "Vegetables", Rank: 2},
		{ID: "c-dairy", Name: "Dairy & Eggs", Rank: 3},
		{ID: "c-bakery", Name: "Bakery", Rank: 4},
	}
	banners := []Banner{
		{ID: "b-free-delivery", ImageURL: "/banners/free-delivery.png", Target: "/products?featured=true", Rank: 1},
		{ID: "b-fresh-fruit", ImageURL: "/banners/fresh-fruit.png", Target: "/products?category=c-fruit", Rank: 2},
	}
	return products, categories, banners
}
