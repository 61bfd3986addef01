package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/mmeshcher/pharmacy-backoffice/internal/model"
)

const productColumns = `id, name, description, cost_price, profit_margin::text, quantity, created_at`

// CreateProducts добавляет товары одной транзакцией: либо все, либо ни одного.
func (r *PostgresRepository) CreateProducts(ctx context.Context, products []model.Product) ([]model.Product, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	created := make([]model.Product, 0, len(products))
	for _, p := range products {
		err := tx.QueryRow(ctx,
			`INSERT INTO products (name, description, cost_price, profit_margin, quantity)
			 VALUES ($1, $2, $3, CAST($4::text AS NUMERIC), $5)
			 RETURNING id, created_at`,
			p.Name, p.Description, int64(p.CostPrice), p.ProfitMargin.String(), p.Quantity,
		).Scan(&p.ID, &p.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("insert product %q: %w", p.Name, err)
		}
		created = append(created, p)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	return created, nil
}

// GetProduct возвращает товар по идентификатору.
func (r *PostgresRepository) GetProduct(ctx context.Context, id int64) (*model.Product, error) {
	var p *model.Product
	err := r.withRetry(ctx, func() error {
		var err error
		p, err = scanProduct(r.pool.QueryRow(ctx,
			`SELECT `+productColumns+` FROM products WHERE id = $1`,
			id,
		))
		return err
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrProductNotFound
		}
		return nil, fmt.Errorf("get product: %w", err)
	}
	return p, nil
}

// ListProducts возвращает товары, в названии которых встречается nameContains (без учёта регистра).
// Подстрока сравнивается буквально, символы % и _ не являются шаблонами.
func (r *PostgresRepository) ListProducts(ctx context.Context, nameContains string) ([]model.Product, error) {
	var res []model.Product
	err := r.withRetry(ctx, func() error {
		rows, err := r.pool.Query(ctx,
			`SELECT `+productColumns+`
			 FROM products
			 WHERE strpos(LOWER(name), LOWER($1)) > 0
			 ORDER BY id`,
			nameContains,
		)
		if err != nil {
			return err
		}
		defer rows.Close()

		res = res[:0]
		for rows.Next() {
			p, err := scanProduct(rows)
			if err != nil {
				return err
			}
			res = append(res, *p)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	return res, nil
}

func scanProduct(row pgx.Row) (*model.Product, error) {
	var (
		p         model.Product
		costPrice int64
		margin    string
		createdAt time.Time
	)
	if err := row.Scan(&p.ID, &p.Name, &p.Description, &costPrice, &margin, &p.Quantity, &createdAt); err != nil {
		return nil, err
	}

	m, err := decimal.NewFromString(margin)
	if err != nil {
		return nil, fmt.Errorf("parse profit margin %q: %w", margin, err)
	}

	p.CostPrice = model.Money(costPrice)
	p.ProfitMargin = m
	p.CreatedAt = createdAt
	return &p, nil
}
