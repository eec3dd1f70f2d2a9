package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/hamzaabbasi123-ab/olivegrrove/internal/database"
	"github.com/hamzaabbasi123-ab/olivegrrove/internal/models"
	"github.com/shopspring/decimal"
)

// AddCartItem adds one unit of the product to the user's cart, creating the
// line with quantity 1 or incrementing an existing one. It returns the new quantity.
func AddCartItem(ctx context.Context, db *sql.DB, userID, productID int64) (int, error) {
	var quantity int

	// The INSERT ... SELECT yields no row when the product does not exist.
	err := db.QueryRowContext(ctx,
		`INSERT INTO cart_items (user_id, product_id, quantity)
		 SELECT $1, p.id, 1 FROM products p WHERE p.id = $2
		 ON CONFLICT (user_id, product_id)
		 DO UPDATE SET quantity = cart_items.quantity + 1
		 RETURNING quantity`,
		userID, productID).Scan(&quantity)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, database.ErrProductNotFound
		}
		if database.IsForeignKeyViolation(err) {
			return 0, database.ErrUserNotFound
		}
		return 0, fmt.Errorf("add cart item: %w", err)
	}

	return quantity, nil
}

// RemoveCartItem deletes the line for the product. Removing an absent line is
// not an error; the returned bool reports whether a line was deleted.
func RemoveCartItem(ctx context.Context, db *sql.DB, userID, productID int64) (bool, error) {
	result, err := db.ExecContext(ctx,
		`DELETE FROM cart_items WHERE user_id = $1 AND product_id = $2`,
		userID, productID)
	if err != nil {
		return false, fmt.Errorf("remove cart item: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("get rows affected: %w", err)
	}

	return rowsAffected > 0, nil
}

// GetCart returns the user's cart lines priced at current catalog prices.
func GetCart(ctx context.Context, db *sql.DB, userID int64) (*models.Cart, error) {
	query := `
		SELECT p.id, p.name, p.price, p.image, c.quantity
		FROM cart_items c
		JOIN products p ON p.id = c.product_id
		WHERE c.user_id = $1
		ORDER BY c.id`

	rows, err := db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("get cart: %w", err)
	}
	defer rows.Close()

	cart := &models.Cart{Items: []models.CartItem{}, Total: decimal.Zero}
	for rows.Next() {
		var item models.CartItem
		err := rows.Scan(
			&item.ProductID,
			&item.Name,
			&item.Price,
			&item.Image,
			&item.Quantity,
		)
		if err != nil {
			return nil, fmt.Errorf("scan cart item: %w", err)
		}
		item.Total = item.Price.Mul(decimal.NewFromInt(int64(item.Quantity)))
		cart.Total = cart.Total.Add(item.Total)
		cart.Items = append(cart.Items, item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return cart, nil
}
