// Package model содержит доменные сущности аптечного бэк-офиса.
package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// User представляет зарегистрированного пользователя.
type User struct {
	ID           int64
	Email        string
	Name         string
	Status       bool
	PasswordHash []byte
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// UserUpdate содержит изменяемые поля пользователя. Поле nil не меняется.
type UserUpdate struct {
	Email        *string
	Name         *string
	PasswordHash []byte
}

// BankAccount описывает банковский счёт пользователя. У пользователя не больше одного счёта.
type BankAccount struct {
	ID            int64
	UserID        int64
	AccountNumber string
	BankName      string
	BranchCode    string
	AccountType   string
	Balance       Money
	CreatedAt     time.Time
}

// BankAccountUpdate содержит изменяемые реквизиты счёта. Баланс меняется только
// пополнением и покупкой.
type BankAccountUpdate struct {
	AccountNumber *string
	BankName      *string
	BranchCode    *string
	AccountType   *string
}

// Product описывает товар каталога.
type Product struct {
	ID           int64
	Name         string
	Description  string
	CostPrice    Money
	ProfitMargin decimal.Decimal
	Quantity     int64
	CreatedAt    time.Time
}

// SalePrice возвращает цену продажи единицы товара: себестоимость × (1 + наценка).
func (p Product) SalePrice() (Money, error) {
	price := p.CostPrice.Decimal().Mul(decimal.NewFromInt(1).Add(p.ProfitMargin))
	return MoneyFromDecimal(price)
}

// PurchaseResult содержит состояние счёта и склада после покупки.
type PurchaseResult struct {
	Balance   Money
	Quantity  int64
	UnitPrice Money
	TotalCost Money
}
