package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hamzaabbasi123-ab/olivegrrove/internal/database"
	"github.com/hamzaabbasi123-ab/olivegrrove/internal/models"
	"github.com/shopspring/decimal"
)

// SampleProducts is the fixed catalog inserted on first startup.
var SampleProducts = []models.Product{
	{
		Name:        "Organic Olive Oil",
		Price:       decimal.RequireFromString("24.99"),
		Description: "Premium quality extra virgin olive oil from Mediterranean olives.",
		Image:       "olive-oil.jpg",
	},
	{
		Name:        "Artisan Coffee Blend",
		Price:       decimal.RequireFromString("14.95"),
		Description: "Rich, aromatic coffee blend with notes of chocolate and nuts.",
		Image:       "coffee.jpg",
	},
	{
		Name:        "Handcrafted Soap Set",
		Price:       decimal.RequireFromString("19.99"),
		Description: "Natural olive oil based soaps with essential oils.",
		Image:       "soap-set.jpg",
	},
	{
		Name:        "Rustic Bread Basket",
		Price:       decimal.RequireFromString("32.50"),
		Description: "Handwoven bread basket perfect for your kitchen.",
		Image:       "bread-basket.jpg",
	},
	{
		Name:        "Ceramic Dinner Set",
		Price:       decimal.RequireFromString("89.99"),
		Description: "Earthenware dinner set with olive branch pattern.",
		Image:       "dinner-set.jpg",
	},
	{
		Name:        "Olive Wood Cutting Board",
		Price:       decimal.RequireFromString("39.95"),
		Description: "Beautiful and durable olive wood cutting board.",
		Image:       "cutting-board.jpg",
	},
	{
		Name:        "Herbal Tea Collection",
		Price:       decimal.RequireFromString("22.99"),
		Description: "Assortment of organic herbal teas in reusable tin.",
		Image:       "tea-collection.jpg",
	},
	{
		Name:        "Handmade Throw Blanket",
		Price:       decimal.RequireFromString("45.00"),
		Description: "Cozy throw blanket in olive and brown tones.",
		Image:       "throw-blanket.jpg",
	},
	{
		Name:        "Aromatic Candle Set",
		Price:       decimal.RequireFromString("28.75"),
		Description: "Soy candles with scents of sandalwood and olive blossom.",
		Image:       "candle-set.jpg",
	},
	{
		Name:        "Bamboo Serving Tray",
		Price:       decimal.RequireFromString("37.50"),
		Description: "Eco-friendly bamboo serving tray with handles.",
		Image:       "serving-tray.jpg",
	},
}

// SeedProducts inserts products only when the catalog is empty and returns the
// number of rows inserted. It runs serializable so concurrent starters insert once.
func SeedProducts(ctx context.Context, db *sql.DB, products []models.Product) (int, error) {
	inserted := 0

	err := database.WithRetry(ctx, db, database.TxOptions{
		IsolationLevel: sql.LevelSerializable,
		MaxRetries:     3,
	}, func(tx *sql.Tx) error {
		inserted = 0

		var count int64
		if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM products`).Scan(&count); err != nil {
			return fmt.Errorf("count products: %w", err)
		}
		if count > 0 {
			return nil
		}

		for _, p := range products {
			_, err := tx.ExecContext(ctx,
				`INSERT INTO products (name, price, description, image)
				 VALUES ($1, $2, $3, $4)`,
				p.Name, p.Price, p.Description, p.Image)
			if err != nil {
				return fmt.Errorf("insert product %q: %w", p.Name, err)
			}
			inserted++
		}

		return nil
	})
	if err != nil {
		return 0, err
	}

	return inserted, nil
}
