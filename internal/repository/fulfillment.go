package repository

import (
	"context"
	"fmt"
	"slices"

	"github.com/shopspring/decimal"

	"github.com/anphashop/shop-system/internal/model"
)

// DeliverOrder переводит заказ из pending в done: подбирает по каждой позиции
// свободные аккаунты, закрепляет их за покупателем, обновляет счётчики товаров,
// списывает использование ваучера с начислением комиссии владельцу и, при оплате
// с баланса, списывает сумму заказа. Вся выдача выполняется в одной транзакции:
// при нехватке аккаунтов возвращается ShortageError и ни одна запись не меняется.
// Конфликты сериализации повторяются withRetry.
func (r *PostgresRepository) DeliverOrder(ctx context.Context, code, message string) (*model.Order, error) {
	err := r.withRetry(ctx, func() error {
		return r.deliverOrderTx(ctx, code, message)
	})
	if err != nil {
		return nil, err
	}

	return r.GetOrderByCode(ctx, code)
}

func (r *PostgresRepository) deliverOrderTx(ctx context.Context, code, message string) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	// Блокируем строку заказа: одновременная повторная выдача того же заказа
	// дождётся завершения первой и увидит статус done.
	o, err := scanOrder(tx.QueryRow(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE code = $1 FOR UPDATE`, code))
	if err != nil {
		return err
	}
	if o.Status != model.OrderStatusPending {
		return ErrOrderNotDeliverable
	}

	type orderItem struct {
		id        int64
		productID int64
		title     string
		quantity  int
	}

	rows, err := tx.Query(ctx,
		`SELECT i.id, i.product_id, p.title, i.quantity
		 FROM order_items i
		 JOIN products p ON p.id = i.product_id
		 WHERE i.order_id = $1
		 ORDER BY i.id`,
		o.ID)
	if err != nil {
		return fmt.Errorf("select order items: %w", err)
	}

	var items []orderItem
	for rows.Next() {
		var item orderItem
		if err := rows.Scan(&item.id, &item.productID, &item.title, &item.quantity); err != nil {
			rows.Close()
			return fmt.Errorf("scan order item: %w", err)
		}
		items = append(items, item)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("rows error: %w", err)
	}

	perProduct := make(map[int64]int)

	for _, item := range items {
		// Свободные аккаунты: активные, никому не выданные, с renew в будущем.
		// Сначала продаются те, чей renew ближе. SKIP LOCKED исключает гонку
		// двух заказов за одни и те же аккаунты.
		accRows, err := tx.Query(ctx,
			`SELECT id FROM accounts
			 WHERE product_id = $1 AND active AND using_user IS NULL AND renew_at > now()
			 ORDER BY renew_at
			 LIMIT $2
			 FOR UPDATE SKIP LOCKED`,
			item.productID, item.quantity)
		if err != nil {
			return fmt.Errorf("select free accounts: %w", err)
		}

		var ids []int64
		for accRows.Next() {
			var id int64
			if err := accRows.Scan(&id); err != nil {
				accRows.Close()
				return fmt.Errorf("scan account id: %w", err)
			}
			ids = append(ids, id)
		}
		accRows.Close()
		if err := accRows.Err(); err != nil {
			return fmt.Errorf("rows error: %w", err)
		}

		if len(ids) < item.quantity {
			return &ShortageError{
				ProductTitle: item.title,
				Requested:    item.quantity,
				Available:    len(ids),
			}
		}

		_, err = tx.Exec(ctx,
			`UPDATE accounts
			 SET begin_at = now(),
			     expire_at = now() + make_interval(
			         days => duration_days, hours => duration_hours,
			         mins => duration_minutes, secs => duration_seconds::double precision),
			     using_user = $2,
			     order_item_id = $3,
			     updated_at = now()
			 WHERE id = ANY($1)`,
			ids, o.Email, item.id)
		if err != nil {
			return fmt.Errorf("assign accounts: %w", err)
		}

		perProduct[item.productID] += item.quantity
	}

	// Счётчики обновляются в порядке возрастания id товара: параллельные
	// выдачи с пересекающимися товарами берут блокировки в одном порядке
	// и не взаимоблокируются.
	productIDs := make([]int64, 0, len(perProduct))
	for id := range perProduct {
		productIDs = append(productIDs, id)
	}
	slices.Sort(productIDs)

	for _, productID := range productIDs {
		_, err := tx.Exec(ctx,
			`UPDATE products SET sold = sold + $2, stock = stock - $2, updated_at = now() WHERE id = $1`,
			productID, perProduct[productID])
		if err != nil {
			return fmt.Errorf("update product counters: %w", err)
		}
	}

	if o.VoucherID != nil {
		var ownerID int64
		var commissionType string
		var commissionValue decimal.Decimal
		err := tx.QueryRow(ctx,
			`SELECT v.owner_id, u.commission_type, u.commission_value
			 FROM vouchers v
			 JOIN users u ON u.id = v.owner_id
			 WHERE v.id = $1
			 FOR UPDATE OF v`,
			*o.VoucherID,
		).Scan(&ownerID, &commissionType, &commissionValue)
		if err != nil {
			return fmt.Errorf("lock voucher: %w", err)
		}

		commission := commissionValue
		if model.CommissionType(commissionType) == model.CommissionPercentage {
			commission = o.Total.Mul(commissionValue).Div(decimal.NewFromInt(100))
		}

		if _, err := tx.Exec(ctx,
			`INSERT INTO voucher_usages (voucher_id, email) VALUES ($1, $2)
			 ON CONFLICT DO NOTHING`,
			*o.VoucherID, o.Email); err != nil {
			return fmt.Errorf("record voucher usage: %w", err)
		}

		if _, err := tx.Exec(ctx,
			`UPDATE vouchers SET times_left = times_left - 1, commission = commission + $2 WHERE id = $1`,
			*o.VoucherID, commission); err != nil {
			return fmt.Errorf("update voucher: %w", err)
		}
	}

	if o.PaymentMethod == model.PaymentBalance && o.UserID != nil {
		tag, err := tx.Exec(ctx,
			`UPDATE users SET balance = balance - $2 WHERE id = $1 AND balance >= $2`,
			*o.UserID, o.Total)
		if err != nil {
			return fmt.Errorf("debit balance: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return ErrInsufficientBalance
		}
	}

	if _, err := tx.Exec(ctx,
		`UPDATE orders SET status = $2, message = $3, updated_at = now() WHERE id = $1`,
		o.ID, string(model.OrderStatusDone), message); err != nil {
		return fmt.Errorf("update order: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}

	return nil
}
