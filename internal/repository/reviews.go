package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/anphashop/shop-system/internal/model"
)

// CreateReview сохраняет отзыв. Повторный отзыв на тот же товар запрещён.
func (r *PostgresRepository) CreateReview(ctx context.Context, review *model.Review) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx,
		`INSERT INTO reviews (product_id, user_id, rating, content)
		 VALUES ($1, $2, $3, $4) RETURNING id`,
		review.ProductID, review.UserID, review.Rating, review.Content,
	).Scan(&id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return 0, ErrDuplicateReview
		}
		return 0, fmt.Errorf("create review: %w", err)
	}
	return id, nil
}

// ListReviewsByProduct возвращает отзывы о товаре, новые сверху.
func (r *PostgresRepository) ListReviewsByProduct(ctx context.Context, productID int64, page, perPage int) ([]model.Review, error) {
	limit, offset := limitOffset(page, perPage)

	rows, err := r.pool.Query(ctx,
		`SELECT rv.id, rv.product_id, rv.user_id, u.name, rv.rating, rv.content, rv.created_at
		 FROM reviews rv
		 JOIN users u ON u.id = rv.user_id
		 WHERE rv.product_id = $1
		 ORDER BY rv.created_at DESC
		 LIMIT $2 OFFSET $3`,
		productID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("select reviews: %w", err)
	}
	defer rows.Close()

	var res []model.Review
	for rows.Next() {
		var rv model.Review
		if err := rows.Scan(&rv.ID, &rv.ProductID, &rv.UserID, &rv.UserName, &rv.Rating, &rv.Content, &rv.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan review: %w", err)
		}
		res = append(res, rv)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}
