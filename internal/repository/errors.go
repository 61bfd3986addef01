package repository

import (
	"errors"

	"github.com/mmeshcher/pharmacy-backoffice/internal/model"
)

var (
	// ErrUserExists возвращается при попытке создать пользователя с уже занятым email.
	ErrUserExists = errors.New("user already exists")
	// ErrUserNotFound возвращается, если пользователь не найден.
	ErrUserNotFound = errors.New("user not found")
	// ErrAccountExists возвращается при попытке открыть второй счёт тому же пользователю.
	ErrAccountExists = errors.New("bank account already exists")
	// ErrAccountNotFound возвращается, если у пользователя нет банковского счёта.
	ErrAccountNotFound = errors.New("bank account not found")
	// ErrProductNotFound возвращается, если товар не найден.
	ErrProductNotFound = errors.New("product not found")
	// ErrInsufficientStock возвращается, если на складе меньше товара, чем запрошено.
	ErrInsufficientStock = errors.New("insufficient stock")
	// ErrInsufficientBalance возвращается, если на счёте не хватает средств.
	ErrInsufficientBalance = errors.New("insufficient balance")
	// ErrBalanceLimit возвращается, если после пополнения баланс не помещается в хранилище.
	ErrBalanceLimit = errors.New("balance limit exceeded")
)

// checkPurchase проверяет наличие товара и средств и возвращает полную стоимость покупки.
// Склад проверяется раньше баланса. Стоимость, не помещающаяся в Money, заведомо больше
// любого баланса.
func checkPurchase(stock, quantity int64, balance, unitPrice model.Money) (model.Money, error) {
	if stock < quantity {
		return 0, ErrInsufficientStock
	}
	total, err := unitPrice.Mul(quantity)
	if err != nil {
		return 0, ErrInsufficientBalance
	}
	if balance < total {
		return 0, ErrInsufficientBalance
	}
	return total, nil
}
