package repository

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/anphashop/shop-system/internal/model"
)

// OrderFilter описывает параметры выборки заказов.
type OrderFilter struct {
	Email   string
	Status  model.OrderStatus
	From    *time.Time
	To      *time.Time
	Page    int
	PerPage int
}

// CreateOrder сохраняет заказ вместе с позициями.
func (r *PostgresRepository) CreateOrder(ctx context.Context, o *model.Order) (int64, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var id int64
	err = tx.QueryRow(ctx,
		`INSERT INTO orders (code, user_id, email, total, voucher_id, discount, payment_method, status)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8) RETURNING id`,
		o.Code, o.UserID, o.Email, o.Total, o.VoucherID, o.Discount,
		string(o.PaymentMethod), string(model.OrderStatusPending),
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert order: %w", err)
	}

	for i := range o.Items {
		item := &o.Items[i]
		err = tx.QueryRow(ctx,
			`INSERT INTO order_items (order_id, product_id, quantity, unit_price)
			 VALUES ($1, $2, $3, $4) RETURNING id`,
			id, item.ProductID, item.Quantity, item.UnitPrice,
		).Scan(&item.ID)
		if err != nil {
			return 0, fmt.Errorf("insert order item: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit tx: %w", err)
	}

	return id, nil
}

const orderColumns = `id, code, user_id, email, total, voucher_id, discount, payment_method, status, message, created_at, updated_at`

func scanOrder(row pgx.Row) (*model.Order, error) {
	var o model.Order
	var method, status string
	err := row.Scan(&o.ID, &o.Code, &o.UserID, &o.Email, &o.Total, &o.VoucherID, &o.Discount,
		&method, &status, &o.Message, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("scan order: %w", err)
	}
	o.PaymentMethod = model.PaymentMethod(method)
	o.Status = model.OrderStatus(status)
	return &o, nil
}

func (r *PostgresRepository) loadOrderItems(ctx context.Context, o *model.Order) error {
	rows, err := r.pool.Query(ctx,
		`SELECT i.id, i.product_id, p.title, i.quantity, i.unit_price
		 FROM order_items i
		 JOIN products p ON p.id = i.product_id
		 WHERE i.order_id = $1
		 ORDER BY i.id`,
		o.ID)
	if err != nil {
		return fmt.Errorf("select order items: %w", err)
	}
	defer rows.Close()

	itemByID := make(map[int64]*model.OrderItem)
	for rows.Next() {
		var item model.OrderItem
		if err := rows.Scan(&item.ID, &item.ProductID, &item.Title, &item.Quantity, &item.UnitPrice); err != nil {
			return fmt.Errorf("scan order item: %w", err)
		}
		o.Items = append(o.Items, item)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("rows error: %w", err)
	}
	for i := range o.Items {
		itemByID[o.Items[i].ID] = &o.Items[i]
	}

	if o.Status != model.OrderStatusDone || len(o.Items) == 0 {
		return nil
	}

	accRows, err := r.pool.Query(ctx,
		`SELECT `+accountColumns+` FROM accounts
		 WHERE order_item_id = ANY(SELECT id FROM order_items WHERE order_id = $1)
		 ORDER BY id`,
		o.ID)
	if err != nil {
		return fmt.Errorf("select assigned accounts: %w", err)
	}
	defer accRows.Close()

	for accRows.Next() {
		a, err := scanAccount(accRows)
		if err != nil {
			return err
		}
		if a.OrderItemID == nil {
			continue
		}
		if item, ok := itemByID[*a.OrderItemID]; ok {
			item.Accounts = append(item.Accounts, *a)
		}
	}

	if err := accRows.Err(); err != nil {
		return fmt.Errorf("rows error: %w", err)
	}

	return nil
}

// GetOrderByCode возвращает заказ с позициями и, для выданных заказов,
// с привязанными аккаунтами.
func (r *PostgresRepository) GetOrderByCode(ctx context.Context, code string) (*model.Order, error) {
	o, err := scanOrder(r.pool.QueryRow(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE code = $1`, code))
	if err != nil {
		return nil, err
	}

	if err := r.loadOrderItems(ctx, o); err != nil {
		return nil, err
	}

	return o, nil
}

// ListOrders возвращает страницу заказов по типизированному фильтру.
func (r *PostgresRepository) ListOrders(ctx context.Context, filter OrderFilter) ([]model.Order, error) {
	var (
		conds []string
		args  []any
	)

	if filter.Email != "" {
		args = append(args, filter.Email)
		conds = append(conds, "email = $"+strconv.Itoa(len(args)))
	}
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		conds = append(conds, "status = $"+strconv.Itoa(len(args)))
	}
	if filter.From != nil {
		args = append(args, *filter.From)
		conds = append(conds, "created_at >= $"+strconv.Itoa(len(args)))
	}
	if filter.To != nil {
		args = append(args, *filter.To)
		conds = append(conds, "created_at <= $"+strconv.Itoa(len(args)))
	}

	query := `SELECT ` + orderColumns + ` FROM orders`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY updated_at DESC"

	limit, offset := limitOffset(filter.Page, filter.PerPage)
	args = append(args, limit, offset)
	query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("select orders: %w", err)
	}
	defer rows.Close()

	var res []model.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, *o)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	for i := range res {
		if err := r.loadOrderItems(ctx, &res[i]); err != nil {
			return nil, err
		}
	}

	return res, nil
}

// ListOrdersByUser возвращает историю заказов пользователя.
func (r *PostgresRepository) ListOrdersByUser(ctx context.Context, userID int64, page, perPage int) ([]model.Order, error) {
	limit, offset := limitOffset(page, perPage)

	rows, err := r.pool.Query(ctx,
		`SELECT `+orderColumns+` FROM orders
		 WHERE user_id = $1
		 ORDER BY updated_at DESC
		 LIMIT $2 OFFSET $3`,
		userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("select user orders: %w", err)
	}
	defer rows.Close()

	var res []model.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, *o)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	for i := range res {
		if err := r.loadOrderItems(ctx, &res[i]); err != nil {
			return nil, err
		}
	}

	return res, nil
}

// ListPendingOrderCodes возвращает коды самых старых заказов, ожидающих выдачи.
func (r *PostgresRepository) ListPendingOrderCodes(ctx context.Context, limit int) ([]string, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT code FROM orders WHERE status = $1 ORDER BY created_at LIMIT $2`,
		string(model.OrderStatusPending), limit)
	if err != nil {
		return nil, fmt.Errorf("select pending orders: %w", err)
	}
	defer rows.Close()

	var res []string
	for rows.Next() {
		var code string
		if err := rows.Scan(&code); err != nil {
			return nil, fmt.Errorf("scan order code: %w", err)
		}
		res = append(res, code)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}

// CancelOrder переводит заказ из pending в cancel.
func (r *PostgresRepository) CancelOrder(ctx context.Context, code string) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE orders SET status = $2, updated_at = now() WHERE code = $1 AND status = $3`,
		code, string(model.OrderStatusCancel), string(model.OrderStatusPending))
	if err != nil {
		return fmt.Errorf("cancel order: %w", err)
	}
	if tag.RowsAffected() == 0 {
		if _, err := r.GetOrderByCode(ctx, code); err != nil {
			return err
		}
		return ErrOrderNotDeliverable
	}
	return nil
}

// HasDeliveredProduct сообщает, получал ли пользователь этот товар в выданном заказе.
// Используется для допуска к написанию отзыва.
func (r *PostgresRepository) HasDeliveredProduct(ctx context.Context, userID, productID int64) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (
			SELECT 1
			FROM orders o
			JOIN order_items i ON i.order_id = o.id
			WHERE o.user_id = $1 AND i.product_id = $2 AND o.status = $3
		)`,
		userID, productID, string(model.OrderStatusDone),
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check delivered product: %w", err)
	}
	return exists, nil
}

// Summary возвращает агрегированные показатели магазина.
func (r *PostgresRepository) Summary(ctx context.Context) (*model.Summary, error) {
	var s model.Summary

	err := r.pool.QueryRow(ctx,
		`SELECT
			COALESCE(SUM(total) FILTER (WHERE status = $1), 0),
			COUNT(*) FILTER (WHERE status = $2),
			COUNT(*) FILTER (WHERE status = $1),
			COUNT(*) FILTER (WHERE status = $3)
		 FROM orders`,
		string(model.OrderStatusDone),
		string(model.OrderStatusPending),
		string(model.OrderStatusCancel),
	).Scan(&s.Revenue, &s.PendingOrders, &s.DoneOrders, &s.CancelOrders)
	if err != nil {
		return nil, fmt.Errorf("order summary: %w", err)
	}

	rows, err := r.pool.Query(ctx,
		`SELECT id, title, sold FROM products ORDER BY sold DESC, id LIMIT 5`)
	if err != nil {
		return nil, fmt.Errorf("top products: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var t model.TopProduct
		if err := rows.Scan(&t.ProductID, &t.Title, &t.Sold); err != nil {
			return nil, fmt.Errorf("scan top product: %w", err)
		}
		s.TopProducts = append(s.TopProducts, t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return &s, nil
}
