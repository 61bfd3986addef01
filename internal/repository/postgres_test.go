package repository

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmeshcher/pharmacy-backoffice/internal/model"
)

func newMockRepository(t *testing.T) (*PostgresRepository, pgxmock.PgxPoolIface) {
	t.Helper()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)

	repo := newPostgresRepository(mock)
	repo.retryDelays = []time.Duration{time.Millisecond, time.Millisecond}

	return repo, mock
}

func productRows() *pgxmock.Rows {
	return pgxmock.NewRows([]string{"id", "name", "description", "cost_price", "profit_margin", "quantity", "created_at"})
}

func TestCreateUser(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		repo, mock := newMockRepository(t)
		mock.ExpectQuery("INSERT INTO users").
			WithArgs("user@example.com", "User", []byte("hash")).
			WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(5)))

		id, err := repo.CreateUser(context.Background(), "user@example.com", "User", []byte("hash"))
		require.NoError(t, err)
		assert.Equal(t, int64(5), id)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("duplicate email", func(t *testing.T) {
		repo, mock := newMockRepository(t)
		mock.ExpectQuery("INSERT INTO users").
			WithArgs("user@example.com", "User", []byte("hash")).
			WillReturnError(&pgconn.PgError{Code: pgerrcode.UniqueViolation})

		_, err := repo.CreateUser(context.Background(), "user@example.com", "User", []byte("hash"))
		assert.ErrorIs(t, err, ErrUserExists)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestGetUserByEmail_NotFound(t *testing.T) {
	repo, mock := newMockRepository(t)
	mock.ExpectQuery("SELECT id, email").
		WithArgs("missing@example.com").
		WillReturnError(pgx.ErrNoRows)

	_, err := repo.GetUserByEmail(context.Background(), "missing@example.com")
	assert.ErrorIs(t, err, ErrUserNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateBankAccount(t *testing.T) {
	acc := model.BankAccount{
		UserID:        1,
		AccountNumber: "1234567890",
		BankName:      "Test Bank",
		BranchCode:    "0001",
		AccountType:   "Savings",
		Balance:       100000,
	}

	t.Run("success", func(t *testing.T) {
		repo, mock := newMockRepository(t)
		now := time.Now()
		mock.ExpectQuery("INSERT INTO bank_accounts").
			WithArgs(int64(1), "1234567890", "Test Bank", "0001", "Savings", int64(100000)).
			WillReturnRows(pgxmock.NewRows([]string{"id", "created_at"}).AddRow(int64(3), now))

		res, err := repo.CreateBankAccount(context.Background(), acc)
		require.NoError(t, err)
		assert.Equal(t, int64(3), res.ID)
		assert.Equal(t, model.Money(100000), res.Balance)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("second account", func(t *testing.T) {
		repo, mock := newMockRepository(t)
		mock.ExpectQuery("INSERT INTO bank_accounts").
			WithArgs(int64(1), "1234567890", "Test Bank", "0001", "Savings", int64(100000)).
			WillReturnError(&pgconn.PgError{Code: pgerrcode.UniqueViolation})

		_, err := repo.CreateBankAccount(context.Background(), acc)
		assert.ErrorIs(t, err, ErrAccountExists)
	})
}

func TestDeposit(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		repo, mock := newMockRepository(t)
		mock.ExpectQuery("UPDATE bank_accounts SET balance = balance \\+").
			WithArgs(int64(500), int64(1)).
			WillReturnRows(pgxmock.NewRows([]string{"balance"}).AddRow(int64(1500)))

		balance, err := repo.Deposit(context.Background(), 1, 500)
		require.NoError(t, err)
		assert.Equal(t, model.Money(1500), balance)
	})

	t.Run("no account", func(t *testing.T) {
		repo, mock := newMockRepository(t)
		mock.ExpectQuery("UPDATE bank_accounts").
			WithArgs(int64(500), int64(1)).
			WillReturnError(pgx.ErrNoRows)

		_, err := repo.Deposit(context.Background(), 1, 500)
		assert.ErrorIs(t, err, ErrAccountNotFound)
	})

	t.Run("bigint overflow", func(t *testing.T) {
		repo, mock := newMockRepository(t)
		mock.ExpectQuery("UPDATE bank_accounts").
			WithArgs(int64(math.MaxInt64), int64(1)).
			WillReturnError(&pgconn.PgError{Code: pgerrcode.NumericValueOutOfRange})

		_, err := repo.Deposit(context.Background(), 1, model.Money(math.MaxInt64))
		assert.ErrorIs(t, err, ErrBalanceLimit)
	})
}

func TestUpdateUser(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		repo, mock := newMockRepository(t)
		now := time.Now()
		name := "Renamed"

		mock.ExpectQuery("UPDATE users SET").
			WithArgs(int64(1), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
			WillReturnRows(pgxmock.NewRows([]string{"id", "email", "name", "status", "password_hash", "created_at", "updated_at"}).
				AddRow(int64(1), "user@example.com", "Renamed", true, []byte("hash"), now, now))

		u, err := repo.UpdateUser(context.Background(), 1, model.UserUpdate{Name: &name})
		require.NoError(t, err)
		assert.Equal(t, "Renamed", u.Name)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("email taken", func(t *testing.T) {
		repo, mock := newMockRepository(t)
		email := "taken@example.com"

		mock.ExpectQuery("UPDATE users SET").
			WithArgs(int64(1), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
			WillReturnError(&pgconn.PgError{Code: pgerrcode.UniqueViolation})

		_, err := repo.UpdateUser(context.Background(), 1, model.UserUpdate{Email: &email})
		assert.ErrorIs(t, err, ErrUserExists)
	})

	t.Run("not found", func(t *testing.T) {
		repo, mock := newMockRepository(t)
		name := "Renamed"

		mock.ExpectQuery("UPDATE users SET").
			WithArgs(int64(9), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
			WillReturnError(pgx.ErrNoRows)

		_, err := repo.UpdateUser(context.Background(), 9, model.UserUpdate{Name: &name})
		assert.ErrorIs(t, err, ErrUserNotFound)
	})
}

func TestDeleteUser(t *testing.T) {
	repo, mock := newMockRepository(t)

	mock.ExpectExec("DELETE FROM users").
		WithArgs(int64(1)).
		WillReturnResult(pgxmock.NewResult("DELETE", 1))
	mock.ExpectExec("DELETE FROM users").
		WithArgs(int64(1)).
		WillReturnResult(pgxmock.NewResult("DELETE", 0))

	require.NoError(t, repo.DeleteUser(context.Background(), 1))
	assert.ErrorIs(t, repo.DeleteUser(context.Background(), 1), ErrUserNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateBankAccount(t *testing.T) {
	repo, mock := newMockRepository(t)
	now := time.Now()
	bank := "Other Bank"

	mock.ExpectQuery("UPDATE bank_accounts SET").
		WithArgs(int64(1), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows([]string{"id", "user_id", "account_number", "bank_name", "branch_code", "account_type", "balance", "created_at"}).
			AddRow(int64(3), int64(1), "1234567890", "Other Bank", "0001", "Savings", int64(100000), now))
	mock.ExpectQuery("UPDATE bank_accounts SET").
		WithArgs(int64(2), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnError(pgx.ErrNoRows)

	acc, err := repo.UpdateBankAccount(context.Background(), 1, model.BankAccountUpdate{BankName: &bank})
	require.NoError(t, err)
	assert.Equal(t, "Other Bank", acc.BankName)
	assert.Equal(t, model.Money(100000), acc.Balance)

	_, err = repo.UpdateBankAccount(context.Background(), 2, model.BankAccountUpdate{BankName: &bank})
	assert.ErrorIs(t, err, ErrAccountNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteBankAccount(t *testing.T) {
	repo, mock := newMockRepository(t)

	mock.ExpectExec("DELETE FROM bank_accounts").
		WithArgs(int64(1)).
		WillReturnResult(pgxmock.NewResult("DELETE", 0))

	assert.ErrorIs(t, repo.DeleteBankAccount(context.Background(), 1), ErrAccountNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateProducts(t *testing.T) {
	t.Run("all rows in one transaction", func(t *testing.T) {
		repo, mock := newMockRepository(t)
		now := time.Now()

		mock.ExpectBegin()
		mock.ExpectQuery("INSERT INTO products").
			WithArgs("Aspirin", "Pain reliever", int64(599), "0.1", int64(100)).
			WillReturnRows(pgxmock.NewRows([]string{"id", "created_at"}).AddRow(int64(1), now))
		mock.ExpectQuery("INSERT INTO products").
			WithArgs("Ibuprofen", "Anti-inflammatory", int64(749), "0.2", int64(200)).
			WillReturnRows(pgxmock.NewRows([]string{"id", "created_at"}).AddRow(int64(2), now))
		mock.ExpectCommit()
		mock.ExpectRollback().WillReturnError(pgx.ErrTxClosed)

		created, err := repo.CreateProducts(context.Background(), []model.Product{
			{Name: "Aspirin", Description: "Pain reliever", CostPrice: 599, ProfitMargin: decimal.RequireFromString("0.1"), Quantity: 100},
			{Name: "Ibuprofen", Description: "Anti-inflammatory", CostPrice: 749, ProfitMargin: decimal.RequireFromString("0.2"), Quantity: 200},
		})
		require.NoError(t, err)
		require.Len(t, created, 2)
		assert.Equal(t, int64(1), created[0].ID)
		assert.Equal(t, int64(2), created[1].ID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("insert failure rolls back", func(t *testing.T) {
		repo, mock := newMockRepository(t)

		mock.ExpectBegin()
		mock.ExpectQuery("INSERT INTO products").
			WithArgs("Aspirin", "Pain reliever", int64(599), "0.1", int64(100)).
			WillReturnError(assert.AnError)
		mock.ExpectRollback()

		_, err := repo.CreateProducts(context.Background(), []model.Product{
			{Name: "Aspirin", Description: "Pain reliever", CostPrice: 599, ProfitMargin: decimal.RequireFromString("0.1"), Quantity: 100},
		})
		assert.ErrorIs(t, err, assert.AnError)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestGetProduct(t *testing.T) {
	t.Run("retries connection errors", func(t *testing.T) {
		repo, mock := newMockRepository(t)
		now := time.Now()

		mock.ExpectQuery("SELECT id, name").
			WithArgs(int64(7)).
			WillReturnError(errors.New("dial tcp: connection refused"))
		mock.ExpectQuery("SELECT id, name").
			WithArgs(int64(7)).
			WillReturnRows(productRows().AddRow(int64(7), "Aspirin", "Pain reliever", int64(8000), "0.25", int64(10), now))

		p, err := repo.GetProduct(context.Background(), 7)
		require.NoError(t, err)
		assert.Equal(t, "Aspirin", p.Name)
		price, err := p.SalePrice()
		require.NoError(t, err)
		assert.Equal(t, model.Money(10000), price)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("not found is not retried", func(t *testing.T) {
		repo, mock := newMockRepository(t)

		mock.ExpectQuery("SELECT id, name").
			WithArgs(int64(999)).
			WillReturnError(pgx.ErrNoRows)

		_, err := repo.GetProduct(context.Background(), 999)
		assert.ErrorIs(t, err, ErrProductNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestListProducts(t *testing.T) {
	repo, mock := newMockRepository(t)
	now := time.Now()

	mock.ExpectQuery("SELECT id, name").
		WithArgs("asp").
		WillReturnRows(productRows().
			AddRow(int64(1), "Aspirin", "Pain reliever", int64(599), "0.1000", int64(100), now))

	products, err := repo.ListProducts(context.Background(), "asp")
	require.NoError(t, err)
	require.Len(t, products, 1)
	assert.Equal(t, "Aspirin", products[0].Name)
	assert.True(t, products[0].ProfitMargin.Equal(decimal.RequireFromString("0.1")))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListProducts_LiteralSubstring(t *testing.T) {
	repo, mock := newMockRepository(t)

	mock.ExpectQuery(`WHERE strpos\(LOWER\(name\), LOWER\(\$1\)\) > 0`).
		WithArgs("%").
		WillReturnRows(productRows())

	products, err := repo.ListProducts(context.Background(), "%")
	require.NoError(t, err)
	assert.Empty(t, products)
	assert.NoError(t, mock.ExpectationsWereMet())
}
