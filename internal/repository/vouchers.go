package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/anphashop/shop-system/internal/model"
)

const voucherColumns = `id, code, owner_id, type, value, times_left, expires_at, min_total, max_reduce, commission, created_at`

func scanVoucher(row pgx.Row) (*model.Voucher, error) {
	var v model.Voucher
	var vt string
	err := row.Scan(&v.ID, &v.Code, &v.OwnerID, &vt, &v.Value, &v.TimesLeft,
		&v.ExpiresAt, &v.MinTotal, &v.MaxReduce, &v.Commission, &v.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrVoucherNotFound
		}
		return nil, fmt.Errorf("scan voucher: %w", err)
	}
	v.Type = model.VoucherType(vt)
	return &v, nil
}

// CreateVoucher создаёт скидочный код.
func (r *PostgresRepository) CreateVoucher(ctx context.Context, v *model.Voucher) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx,
		`INSERT INTO vouchers (code, owner_id, type, value, times_left, expires_at, min_total, max_reduce)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8) RETURNING id`,
		v.Code, v.OwnerID, string(v.Type), v.Value, v.TimesLeft, v.ExpiresAt, v.MinTotal, v.MaxReduce,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("create voucher: %w", err)
	}
	return id, nil
}

// GetVoucherByCode возвращает ваучер по коду.
func (r *PostgresRepository) GetVoucherByCode(ctx context.Context, code string) (*model.Voucher, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+voucherColumns+` FROM vouchers WHERE code = $1`, code)
	return scanVoucher(row)
}

// VoucherUsedByEmail сообщает, использовал ли указанный email этот ваучер.
func (r *PostgresRepository) VoucherUsedByEmail(ctx context.Context, voucherID int64, email string) (bool, error) {
	var used bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM voucher_usages WHERE voucher_id = $1 AND email = $2)`,
		voucherID, email,
	).Scan(&used)
	if err != nil {
		return false, fmt.Errorf("check voucher usage: %w", err)
	}
	return used, nil
}

// UpdateVoucher изменяет параметры ваучера. Счётчики использования и комиссия
// не трогаются: их ведёт выдача заказов.
func (r *PostgresRepository) UpdateVoucher(ctx context.Context, v *model.Voucher) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE vouchers
		 SET code = $2, type = $3, value = $4, times_left = $5, expires_at = $6,
		     min_total = $7, max_reduce = $8
		 WHERE id = $1`,
		v.ID, v.Code, string(v.Type), v.Value, v.TimesLeft, v.ExpiresAt, v.MinTotal, v.MaxReduce)
	if err != nil {
		return fmt.Errorf("update voucher: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrVoucherNotFound
	}
	return nil
}

// DeleteVoucher удаляет ваучер.
func (r *PostgresRepository) DeleteVoucher(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM vouchers WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete voucher: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrVoucherNotFound
	}
	return nil
}

// ListVouchers возвращает страницу ваучеров, новые сверху.
func (r *PostgresRepository) ListVouchers(ctx context.Context, page, perPage int) ([]model.Voucher, error) {
	limit, offset := limitOffset(page, perPage)

	rows, err := r.pool.Query(ctx,
		`SELECT `+voucherColumns+` FROM vouchers ORDER BY created_at DESC LIMIT $1 OFFSET $2`,
		limit, offset)
	if err != nil {
		return nil, fmt.Errorf("select vouchers: %w", err)
	}
	defer rows.Close()

	var res []model.Voucher
	for rows.Next() {
		v, err := scanVoucher(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, *v)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}
