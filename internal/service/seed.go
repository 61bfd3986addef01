package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/mmeshcher/pharmacy-backoffice/internal/model"
	"github.com/mmeshcher/pharmacy-backoffice/internal/repository"
)

type seedUser struct {
	email    string
	name     string
	password string
	account  model.BankAccount
}

var seedUsers = []seedUser{
	{
		email: "user1@example.com", name: "User One", password: "password123",
		account: model.BankAccount{AccountNumber: "1234567890", BankName: "Bank A", BranchCode: "001", AccountType: "Savings", Balance: 100000},
	},
	{
		email: "user2@example.com", name: "User Two", password: "password123",
		account: model.BankAccount{AccountNumber: "2345678901", BankName: "Bank B", BranchCode: "002", AccountType: "Checking", Balance: 200000},
	},
	{
		email: "user3@example.com", name: "User Three", password: "password123",
		account: model.BankAccount{AccountNumber: "3456789012", BankName: "Bank C", BranchCode: "003", AccountType: "Savings", Balance: 300000},
	},
}

// Seed создаёт демонстрационных пользователей и их счета. Повторный запуск ничего не дублирует.
func (s *Service) Seed(ctx context.Context, logger *zap.Logger) error {
	for _, su := range seedUsers {
		userID, err := s.RegisterUser(ctx, su.email, su.name, su.password)
		switch {
		case err == nil:
			logger.Info("seed: created user", zap.String("email", su.email))
		case errors.Is(err, repository.ErrUserExists):
			u, err := s.repo.GetUserByEmail(ctx, su.email)
			if err != nil {
				return fmt.Errorf("seed user %s: %w", su.email, err)
			}
			userID = u.ID
			logger.Info("seed: user already exists", zap.String("email", su.email))
		default:
			return fmt.Errorf("seed user %s: %w", su.email, err)
		}

		_, err = s.OpenBankAccount(ctx, userID, su.account)
		switch {
		case err == nil:
			logger.Info("seed: created bank account", zap.String("email", su.email))
		case errors.Is(err, repository.ErrAccountExists):
			logger.Info("seed: bank account already exists", zap.String("email", su.email))
		default:
			return fmt.Errorf("seed bank account %s: %w", su.email, err)
		}
	}
	return nil
}
