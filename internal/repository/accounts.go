package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/mmeshcher/pharmacy-backoffice/internal/model"
)

// CreateBankAccount открывает банковский счёт пользователя.
func (r *PostgresRepository) CreateBankAccount(ctx context.Context, acc model.BankAccount) (*model.BankAccount, error) {
	err := r.pool.QueryRow(ctx,
		`INSERT INTO bank_accounts (user_id, account_number, bank_name, branch_code, account_type, balance)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id, created_at`,
		acc.UserID, acc.AccountNumber, acc.BankName, acc.BranchCode, acc.AccountType, int64(acc.Balance),
	).Scan(&acc.ID, &acc.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrAccountExists
		}
		if isForeignKeyViolation(err) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("create bank account: %w", err)
	}
	return &acc, nil
}

// GetBankAccountByUser возвращает счёт пользователя.
func (r *PostgresRepository) GetBankAccountByUser(ctx context.Context, userID int64) (*model.BankAccount, error) {
	var (
		acc     model.BankAccount
		balance int64
	)
	err := r.pool.QueryRow(ctx,
		`SELECT id, user_id, account_number, bank_name, branch_code, account_type, balance, created_at
		 FROM bank_accounts
		 WHERE user_id = $1`,
		userID,
	).Scan(&acc.ID, &acc.UserID, &acc.AccountNumber, &acc.BankName, &acc.BranchCode, &acc.AccountType, &balance, &acc.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAccountNotFound
		}
		return nil, fmt.Errorf("get bank account: %w", err)
	}
	acc.Balance = model.Money(balance)
	return &acc, nil
}

// Deposit зачисляет сумму на счёт пользователя и возвращает новый баланс.
func (r *PostgresRepository) Deposit(ctx context.Context, userID int64, amount model.Money) (model.Money, error) {
	var balance int64
	err := r.pool.QueryRow(ctx,
		`UPDATE bank_accounts SET balance = balance + $1 WHERE user_id = $2 RETURNING balance`,
		int64(amount), userID,
	).Scan(&balance)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrAccountNotFound
		}
		if isNumericOverflow(err) {
			return 0, fmt.Errorf("%w: %w", ErrBalanceLimit, err)
		}
		return 0, fmt.Errorf("deposit: %w", err)
	}
	return model.Money(balance), nil
}

// UpdateBankAccount меняет реквизиты счёта пользователя. Баланс не затрагивается.
func (r *PostgresRepository) UpdateBankAccount(ctx context.Context, userID int64, upd model.BankAccountUpdate) (*model.BankAccount, error) {
	var (
		acc     model.BankAccount
		balance int64
	)
	err := r.pool.QueryRow(ctx,
		`UPDATE bank_accounts SET
		     account_number = COALESCE($2, account_number),
		     bank_name = COALESCE($3, bank_name),
		     branch_code = COALESCE($4, branch_code),
		     account_type = COALESCE($5, account_type)
		 WHERE user_id = $1
		 RETURNING id, user_id, account_number, bank_name, branch_code, account_type, balance, created_at`,
		userID, upd.AccountNumber, upd.BankName, upd.BranchCode, upd.AccountType,
	).Scan(&acc.ID, &acc.UserID, &acc.AccountNumber, &acc.BankName, &acc.BranchCode, &acc.AccountType, &balance, &acc.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAccountNotFound
		}
		return nil, fmt.Errorf("update bank account: %w", err)
	}
	acc.Balance = model.Money(balance)
	return &acc, nil
}

// DeleteBankAccount закрывает счёт пользователя.
func (r *PostgresRepository) DeleteBankAccount(ctx context.Context, userID int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM bank_accounts WHERE user_id = $1`, userID)
	if err != nil {
		return fmt.Errorf("delete bank account: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrAccountNotFound
	}
	return nil
}
