package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/mmeshcher/pharmacy-backoffice/internal/model"
)

// Purchase списывает стоимость покупки со счёта пользователя и уменьшает остаток товара.
// Обе операции выполняются в одной транзакции; строки товара и счёта блокируются
// в фиксированном порядке (товар, затем счёт), а сами изменения выполняются условными UPDATE,
// которые не дают уйти в минус ни складу, ни балансу.
func (r *PostgresRepository) Purchase(ctx context.Context, userID, productID, quantity int64) (*model.PurchaseResult, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var (
		costPrice int64
		margin    string
		stock     int64
	)
	err = tx.QueryRow(ctx,
		`SELECT cost_price, profit_margin::text, quantity FROM products WHERE id = $1 FOR UPDATE`,
		productID,
	).Scan(&costPrice, &margin, &stock)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrProductNotFound
		}
		return nil, fmt.Errorf("lock product for update: %w", err)
	}

	profitMargin, err := decimal.NewFromString(margin)
	if err != nil {
		return nil, fmt.Errorf("parse profit margin %q: %w", margin, err)
	}

	var balance int64
	err = tx.QueryRow(ctx,
		`SELECT balance FROM bank_accounts WHERE user_id = $1 FOR UPDATE`,
		userID,
	).Scan(&balance)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAccountNotFound
		}
		return nil, fmt.Errorf("lock bank account for update: %w", err)
	}

	product := model.Product{CostPrice: model.Money(costPrice), ProfitMargin: profitMargin}
	unitPrice, err := product.SalePrice()
	if err != nil {
		return nil, fmt.Errorf("sale price of product %d: %w", productID, err)
	}

	total, err := checkPurchase(stock, quantity, model.Money(balance), unitPrice)
	if err != nil {
		return nil, err
	}

	var newStock int64
	err = tx.QueryRow(ctx,
		`UPDATE products SET quantity = quantity - $1 WHERE id = $2 AND quantity >= $1 RETURNING quantity`,
		quantity, productID,
	).Scan(&newStock)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrInsufficientStock
		}
		return nil, fmt.Errorf("decrement stock: %w", err)
	}

	var newBalance int64
	err = tx.QueryRow(ctx,
		`UPDATE bank_accounts SET balance = balance - $1 WHERE user_id = $2 AND balance >= $1 RETURNING balance`,
		int64(total), userID,
	).Scan(&newBalance)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrInsufficientBalance
		}
		return nil, fmt.Errorf("debit balance: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	return &model.PurchaseResult{
		Balance:   model.Money(newBalance),
		Quantity:  newStock,
		UnitPrice: unitPrice,
		TotalCost: total,
	}, nil
}
