package repository

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/anphashop/shop-system/internal/model"
)

// ProductFilter описывает параметры выборки товаров каталога.
type ProductFilter struct {
	Search     string
	PriceMin   *decimal.Decimal
	PriceMax   *decimal.Decimal
	ActiveOnly bool
	SortBy     string // updated_at, price, sold
	SortAsc    bool
	Page       int
	PerPage    int
}

const productColumns = `p.id, p.slug, p.title, p.description, p.price, p.stock, p.sold, p.active,
	p.created_at, p.updated_at,
	f.id, f.type, f.value, f.starts_at, f.ends_at`

const productJoin = ` FROM products p LEFT JOIN flash_sales f ON f.id = p.flash_sale_id`

func scanProduct(row pgx.Row) (*model.Product, error) {
	var p model.Product
	var fsID *int64
	var fsType *string
	var fsValue *decimal.Decimal
	var fsStarts, fsEnds *time.Time

	err := row.Scan(&p.ID, &p.Slug, &p.Title, &p.Description, &p.Price, &p.Stock, &p.Sold, &p.Active,
		&p.CreatedAt, &p.UpdatedAt,
		&fsID, &fsType, &fsValue, &fsStarts, &fsEnds)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrProductNotFound
		}
		return nil, fmt.Errorf("scan product: %w", err)
	}

	if fsID != nil {
		p.FlashSale = &model.FlashSale{
			ID:       *fsID,
			Type:     model.FlashSaleType(*fsType),
			Value:    *fsValue,
			StartsAt: *fsStarts,
			EndsAt:   *fsEnds,
		}
	}

	return &p, nil
}

// GetProductBySlug возвращает товар по его идентификатору в адресной строке.
func (r *PostgresRepository) GetProductBySlug(ctx context.Context, slug string) (*model.Product, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+productColumns+productJoin+` WHERE p.slug = $1`, slug)
	return scanProduct(row)
}

// GetProductByID возвращает товар по идентификатору.
func (r *PostgresRepository) GetProductByID(ctx context.Context, id int64) (*model.Product, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+productColumns+productJoin+` WHERE p.id = $1`, id)
	return scanProduct(row)
}

// escapeLike экранирует спецсимволы шаблона LIKE, чтобы пользовательский
// поиск сравнивался буквально, а не как маска.
func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

// ListProducts возвращает страницу каталога по типизированному фильтру.
func (r *PostgresRepository) ListProducts(ctx context.Context, filter ProductFilter) ([]model.Product, error) {
	var (
		conds []string
		args  []any
	)

	if filter.ActiveOnly {
		conds = append(conds, "p.active")
	}
	if filter.Search != "" {
		args = append(args, escapeLike(filter.Search))
		n := strconv.Itoa(len(args))
		conds = append(conds, "(p.title ILIKE '%' || $"+n+" || '%' OR p.description ILIKE '%' || $"+n+" || '%')")
	}
	if filter.PriceMin != nil {
		args = append(args, *filter.PriceMin)
		conds = append(conds, "p.price >= $"+strconv.Itoa(len(args)))
	}
	if filter.PriceMax != nil {
		args = append(args, *filter.PriceMax)
		conds = append(conds, "p.price <= $"+strconv.Itoa(len(args)))
	}

	query := `SELECT ` + productColumns + productJoin
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}

	sortBy := "p.updated_at"
	switch filter.SortBy {
	case "price":
		sortBy = "p.price"
	case "sold":
		sortBy = "p.sold"
	}
	dir := "DESC"
	if filter.SortAsc {
		dir = "ASC"
	}
	query += fmt.Sprintf(" ORDER BY %s %s", sortBy, dir)

	limit, offset := limitOffset(filter.Page, filter.PerPage)
	args = append(args, limit, offset)
	query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("select products: %w", err)
	}
	defer rows.Close()

	var res []model.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, *p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}

// CreateProduct создаёт товар каталога.
func (r *PostgresRepository) CreateProduct(ctx context.Context, p *model.Product) (int64, error) {
	var flashSaleID *int64
	if p.FlashSale != nil {
		flashSaleID = &p.FlashSale.ID
	}

	var id int64
	err := r.pool.QueryRow(ctx,
		`INSERT INTO products (slug, title, description, price, active, flash_sale_id)
		 VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`,
		p.Slug, p.Title, p.Description, p.Price, p.Active, flashSaleID,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("create product: %w", err)
	}
	return id, nil
}

// UpdateProduct обновляет карточку товара. Счётчики stock и sold не трогает:
// ими управляют жизненный цикл аккаунтов и выдача заказов.
func (r *PostgresRepository) UpdateProduct(ctx context.Context, p *model.Product) error {
	var flashSaleID *int64
	if p.FlashSale != nil {
		flashSaleID = &p.FlashSale.ID
	}

	tag, err := r.pool.Exec(ctx,
		`UPDATE products
		 SET slug = $2, title = $3, description = $4, price = $5, active = $6,
		     flash_sale_id = $7, updated_at = now()
		 WHERE id = $1`,
		p.ID, p.Slug, p.Title, p.Description, p.Price, p.Active, flashSaleID)
	if err != nil {
		return fmt.Errorf("update product: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrProductNotFound
	}
	return nil
}

// DeleteProduct удаляет товар вместе с его пулом аккаунтов.
func (r *PostgresRepository) DeleteProduct(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete product: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrProductNotFound
	}
	return nil
}

// CreateFlashSale создаёт распродажу.
func (r *PostgresRepository) CreateFlashSale(ctx context.Context, f *model.FlashSale) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx,
		`INSERT INTO flash_sales (type, value, starts_at, ends_at)
		 VALUES ($1, $2, $3, $4) RETURNING id`,
		string(f.Type), f.Value, f.StartsAt, f.EndsAt,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("create flash sale: %w", err)
	}
	return id, nil
}

// UpdateFlashSale обновляет параметры распродажи.
func (r *PostgresRepository) UpdateFlashSale(ctx context.Context, f *model.FlashSale) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE flash_sales SET type = $2, value = $3, starts_at = $4, ends_at = $5 WHERE id = $1`,
		f.ID, string(f.Type), f.Value, f.StartsAt, f.EndsAt)
	if err != nil {
		return fmt.Errorf("update flash sale: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrFlashSaleNotFound
	}
	return nil
}

// DeleteFlashSale удаляет распродажу; ссылки товаров обнуляются каскадно.
func (r *PostgresRepository) DeleteFlashSale(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM flash_sales WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete flash sale: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrFlashSaleNotFound
	}
	return nil
}
