package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hamzaabbasi123-ab/olivegrrove/internal/database"
	"github.com/hamzaabbasi123-ab/olivegrrove/internal/models"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

type pricedLine struct {
	productID int64
	quantity  int
	price     decimal.Decimal
}

// Checkout converts the user's cart into an order in one transaction: the
// order row, one order item per cart line with the price copied from the
// catalog, and removal of the cart lines. Nothing is written if any step fails.
//
// Cart lines are locked with FOR UPDATE, so a concurrent checkout for the same
// user waits and then finds an empty cart instead of creating a second order.
func Checkout(ctx context.Context, db *sql.DB, userID int64) (*models.Order, error) {
	var order *models.Order

	err := database.WithTransaction(ctx, db, database.DefaultTxOptions(), func(tx *sql.Tx) error {
		lines, err := lockCartLines(ctx, tx, userID)
		if err != nil {
			return err
		}
		if len(lines) == 0 {
			return database.ErrEmptyCart
		}

		total := decimal.Zero
		for _, line := range lines {
			total = total.Add(line.price.Mul(decimal.NewFromInt(int64(line.quantity))))
		}

		order = &models.Order{UserID: userID, TotalAmount: total}
		err = tx.QueryRowContext(ctx,
			`INSERT INTO orders (user_id, order_date, total_amount, status)
			 VALUES ($1, NOW(), $2, $3)
			 RETURNING id, order_date, status`,
			userID, total, models.OrderStatusProcessing).Scan(&order.ID, &order.OrderDate, &order.Status)
		if err != nil {
			return fmt.Errorf("create order: %w", err)
		}

		for _, line := range lines {
			item := models.OrderItem{
				OrderID:   order.ID,
				ProductID: line.productID,
				Quantity:  line.quantity,
				Price:     line.price,
			}
			err := tx.QueryRowContext(ctx,
				`INSERT INTO order_items (order_id, product_id, quantity, price)
				 VALUES ($1, $2, $3, $4)
				 RETURNING id`,
				item.OrderID, item.ProductID, item.Quantity, item.Price).Scan(&item.ID)
			if err != nil {
				return fmt.Errorf("create order item: %w", err)
			}
			order.Items = append(order.Items, item)
		}

		result, err := tx.ExecContext(ctx,
			`DELETE FROM cart_items WHERE user_id = $1`,
			userID)
		if err != nil {
			return fmt.Errorf("clear cart: %w", err)
		}

		rowsAffected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("get rows affected: %w", err)
		}
		if rowsAffected != int64(len(lines)) {
			return database.ErrCartChanged
		}

		return nil
	})

	if err != nil {
		return nil, err
	}

	return order, nil
}

func lockCartLines(ctx context.Context, tx *sql.Tx, userID int64) ([]pricedLine, error) {
	rows, err := tx.QueryContext(ctx,
		`SELECT c.product_id, c.quantity, p.price
		 FROM cart_items c
		 JOIN products p ON p.id = c.product_id
		 WHERE c.user_id = $1
		 ORDER BY c.id
		 FOR UPDATE OF c`,
		userID)
	if err != nil {
		return nil, fmt.Errorf("lock cart lines: %w", err)
	}
	defer rows.Close()

	var lines []pricedLine
	for rows.Next() {
		var line pricedLine
		if err := rows.Scan(&line.productID, &line.quantity, &line.price); err != nil {
			return nil, fmt.Errorf("scan cart line: %w", err)
		}
		lines = append(lines, line)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return lines, nil
}

// ListOrders returns the user's orders newest first, each with its items.
func ListOrders(ctx context.Context, db *sql.DB, userID int64) ([]models.Order, error) {
	query := `
		SELECT id, user_id, order_date, total_amount, status
		FROM orders
		WHERE user_id = $1
		ORDER BY order_date DESC, id DESC`

	rows, err := db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	orders := []models.Order{}
	index := make(map[int64]int)
	var ids []int64
	for rows.Next() {
		var order models.Order
		err := rows.Scan(
			&order.ID,
			&order.UserID,
			&order.OrderDate,
			&order.TotalAmount,
			&order.Status,
		)
		if err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		index[order.ID] = len(orders)
		ids = append(ids, order.ID)
		orders = append(orders, order)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	if len(ids) == 0 {
		return orders, nil
	}

	itemsQuery := `
		SELECT i.id, i.order_id, i.product_id, p.name, i.quantity, i.price
		FROM order_items i
		JOIN products p ON p.id = i.product_id
		WHERE i.order_id = ANY($1)
		ORDER BY i.order_id, i.id`

	itemRows, err := db.QueryContext(ctx, itemsQuery, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("list order items: %w", err)
	}
	defer itemRows.Close()

	for itemRows.Next() {
		var item models.OrderItem
		err := itemRows.Scan(
			&item.ID,
			&item.OrderID,
			&item.ProductID,
			&item.ProductName,
			&item.Quantity,
			&item.Price,
		)
		if err != nil {
			return nil, fmt.Errorf("scan order item: %w", err)
		}
		pos := index[item.OrderID]
		orders[pos].Items = append(orders[pos].Items, item)
	}

	if err := itemRows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return orders, nil
}
