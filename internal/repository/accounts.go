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

// AccountFilter описывает параметры выборки аккаунтов из пула.
type AccountFilter struct {
	ProductID  *int64
	Assigned   *bool
	ActiveOnly bool
	UsingUser  string
	Page       int
	PerPage    int
}

const accountColumns = `id, product_id, payload, active, using_user, begin_at, expire_at, renew_at,
	duration_days, duration_hours, duration_minutes, duration_seconds, order_item_id, created_at, updated_at`

func scanAccount(row pgx.Row) (*model.Account, error) {
	var a model.Account
	err := row.Scan(&a.ID, &a.ProductID, &a.Payload, &a.Active, &a.UsingUser,
		&a.Begin, &a.Expire, &a.Renew,
		&a.Duration.Days, &a.Duration.Hours, &a.Duration.Minutes, &a.Duration.Seconds,
		&a.OrderItemID, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAccountNotFound
		}
		return nil, fmt.Errorf("scan account: %w", err)
	}
	return &a, nil
}

// CreateAccount добавляет аккаунт в пул и увеличивает счётчик склада товара,
// если аккаунт сразу доступен к продаже.
func (r *PostgresRepository) CreateAccount(ctx context.Context, a *model.Account) (int64, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var id int64
	err = tx.QueryRow(ctx,
		`INSERT INTO accounts (product_id, payload, active, renew_at,
			duration_days, duration_hours, duration_minutes, duration_seconds)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8) RETURNING id`,
		a.ProductID, a.Payload, a.Active, a.Renew,
		a.Duration.Days, a.Duration.Hours, a.Duration.Minutes, a.Duration.Seconds,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert account: %w", err)
	}

	if a.Active && a.Renew.After(time.Now()) {
		if _, err := tx.Exec(ctx,
			`UPDATE products SET stock = stock + 1, updated_at = now() WHERE id = $1`,
			a.ProductID); err != nil {
			return 0, fmt.Errorf("bump stock: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit tx: %w", err)
	}

	return id, nil
}

// GetAccountByID возвращает аккаунт по идентификатору.
func (r *PostgresRepository) GetAccountByID(ctx context.Context, id int64) (*model.Account, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = $1`, id)
	return scanAccount(row)
}

// UpdateAccount изменяет аккаунт и пересчитывает счётчик склада,
// если изменилась доступность аккаунта к продаже.
func (r *PostgresRepository) UpdateAccount(ctx context.Context, a *model.Account) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	prev, err := scanAccount(tx.QueryRow(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE id = $1 FOR UPDATE`, a.ID))
	if err != nil {
		return err
	}

	_, err = tx.Exec(ctx,
		`UPDATE accounts
		 SET payload = $2, active = $3, renew_at = $4,
		     duration_days = $5, duration_hours = $6, duration_minutes = $7, duration_seconds = $8,
		     updated_at = now()
		 WHERE id = $1`,
		a.ID, a.Payload, a.Active, a.Renew,
		a.Duration.Days, a.Duration.Hours, a.Duration.Minutes, a.Duration.Seconds)
	if err != nil {
		return fmt.Errorf("update account: %w", err)
	}

	now := time.Now()
	wasFree := prev.Available(now)
	isFree := a.Active && prev.UsingUser == nil && a.Renew.After(now)

	var delta int
	switch {
	case !wasFree && isFree:
		delta = 1
	case wasFree && !isFree:
		delta = -1
	}
	if delta != 0 {
		if _, err := tx.Exec(ctx,
			`UPDATE products SET stock = stock + $2, updated_at = now() WHERE id = $1`,
			prev.ProductID, delta); err != nil {
			return fmt.Errorf("adjust stock: %w", err)
		}
	}

	return tx.Commit(ctx)
}

// DeleteAccount удаляет аккаунт из пула и уменьшает счётчик склада,
// если аккаунт был доступен к продаже.
func (r *PostgresRepository) DeleteAccount(ctx context.Context, id int64) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	prev, err := scanAccount(tx.QueryRow(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		return err
	}

	if _, err := tx.Exec(ctx, `DELETE FROM accounts WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete account: %w", err)
	}

	if prev.Available(time.Now()) {
		if _, err := tx.Exec(ctx,
			`UPDATE products SET stock = stock - 1, updated_at = now() WHERE id = $1`,
			prev.ProductID); err != nil {
			return fmt.Errorf("drop stock: %w", err)
		}
	}

	return tx.Commit(ctx)
}

// ListAccounts возвращает страницу пула аккаунтов по типизированному фильтру.
func (r *PostgresRepository) ListAccounts(ctx context.Context, filter AccountFilter) ([]model.Account, error) {
	var (
		conds []string
		args  []any
	)

	if filter.ProductID != nil {
		args = append(args, *filter.ProductID)
		conds = append(conds, "product_id = $"+strconv.Itoa(len(args)))
	}
	if filter.Assigned != nil {
		if *filter.Assigned {
			conds = append(conds, "using_user IS NOT NULL")
		} else {
			conds = append(conds, "using_user IS NULL")
		}
	}
	if filter.ActiveOnly {
		conds = append(conds, "active")
	}
	if filter.UsingUser != "" {
		args = append(args, filter.UsingUser)
		conds = append(conds, "using_user = $"+strconv.Itoa(len(args)))
	}

	query := `SELECT ` + accountColumns + ` FROM accounts`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY updated_at DESC"

	limit, offset := limitOffset(filter.Page, filter.PerPage)
	args = append(args, limit, offset)
	query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("select accounts: %w", err)
	}
	defer rows.Close()

	var res []model.Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, *a)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}

// ExpiringAccount описывает выданный аккаунт, срок которого скоро истечёт.
type ExpiringAccount struct {
	AccountID    int64
	Email        string
	ProductTitle string
	Expire       time.Time
}

// ListExpiringAccounts возвращает выданные аккаунты, истекающие в течение указанного
// интервала, по которым ещё не отправлялось предупреждение.
func (r *PostgresRepository) ListExpiringAccounts(ctx context.Context, within time.Duration) ([]ExpiringAccount, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT a.id, a.using_user, p.title, a.expire_at
		 FROM accounts a
		 JOIN products p ON p.id = a.product_id
		 WHERE a.using_user IS NOT NULL
		   AND NOT a.expiry_warned
		   AND a.expire_at > now()
		   AND a.expire_at <= now() + $1
		 ORDER BY a.expire_at`,
		within)
	if err != nil {
		return nil, fmt.Errorf("select expiring accounts: %w", err)
	}
	defer rows.Close()

	var res []ExpiringAccount
	for rows.Next() {
		var e ExpiringAccount
		if err := rows.Scan(&e.AccountID, &e.Email, &e.ProductTitle, &e.Expire); err != nil {
			return nil, fmt.Errorf("scan expiring account: %w", err)
		}
		res = append(res, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}

// MarkExpiryWarned помечает аккаунты как предупреждённые об истечении срока.
func (r *PostgresRepository) MarkExpiryWarned(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := r.pool.Exec(ctx,
		`UPDATE accounts SET expiry_warned = TRUE WHERE id = ANY($1)`, ids)
	if err != nil {
		return fmt.Errorf("mark expiry warned: %w", err)
	}
	return nil
}
