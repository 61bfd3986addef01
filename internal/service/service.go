// Package service реализует бизнес-логику аптечного бэк-офиса.
package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/mmeshcher/pharmacy-backoffice/internal/catalog"
	"github.com/mmeshcher/pharmacy-backoffice/internal/model"
	"github.com/mmeshcher/pharmacy-backoffice/internal/repository"
	"github.com/mmeshcher/pharmacy-backoffice/internal/validation"
)

var (
	// ErrInvalidQuantity возвращается, если запрошено неположительное количество товара.
	ErrInvalidQuantity = errors.New("quantity must be positive")
	// ErrInvalidAmount возвращается при некорректной сумме пополнения или начального баланса.
	ErrInvalidAmount = errors.New("invalid amount")
	// ErrInvalidCredentials возвращается при неверной паре email/пароль.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrInvalidInput возвращается при некорректных данных пользователя или счёта.
	ErrInvalidInput = errors.New("invalid input")
	// ErrStorageFailure оборачивает ошибки хранилища, не относящиеся к бизнес-правилам.
	ErrStorageFailure = errors.New("storage failure")
)

// Ограничения длины совпадают с размерами колонок в БД.
const (
	maxUserNameLen    = 100
	maxBankNameLen    = 100
	maxAccountTypeLen = 50
)

// ProfileUpdate содержит новые значения полей профиля. Поле nil не меняется.
type ProfileUpdate struct {
	Email    *string
	Name     *string
	Password *string
}

// Repository описывает контракт доступа к данным, используемый сервисом.
type Repository interface {
	Close() error
	CreateUser(ctx context.Context, email, name string, passwordHash []byte) (int64, error)
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
	GetUserByID(ctx context.Context, id int64) (*model.User, error)
	UpdateUser(ctx context.Context, id int64, upd model.UserUpdate) (*model.User, error)
	DeleteUser(ctx context.Context, id int64) error
	CreateBankAccount(ctx context.Context, acc model.BankAccount) (*model.BankAccount, error)
	GetBankAccountByUser(ctx context.Context, userID int64) (*model.BankAccount, error)
	UpdateBankAccount(ctx context.Context, userID int64, upd model.BankAccountUpdate) (*model.BankAccount, error)
	DeleteBankAccount(ctx context.Context, userID int64) error
	Deposit(ctx context.Context, userID int64, amount model.Money) (model.Money, error)
	CreateProducts(ctx context.Context, products []model.Product) ([]model.Product, error)
	GetProduct(ctx context.Context, id int64) (*model.Product, error)
	ListProducts(ctx context.Context, nameContains string) ([]model.Product, error)
	Purchase(ctx context.Context, userID, productID, quantity int64) (*model.PurchaseResult, error)
}

// Service содержит бизнес-логику аптечного бэк-офиса.
type Service struct {
	repo       Repository
	bcryptCost int
}

// NewService создаёт новый сервис с указанным репозиторием.
func NewService(repo Repository) *Service {
	return &Service{
		repo:       repo,
		bcryptCost: bcrypt.DefaultCost,
	}
}

// Close закрывает ресурсы сервиса.
func (s *Service) Close() error {
	if s.repo != nil {
		return s.repo.Close()
	}
	return nil
}

// storageErr помечает ошибку как сбой хранилища, если она не является одной из known.
func storageErr(err error, known ...error) error {
	for _, k := range known {
		if errors.Is(err, k) {
			return err
		}
	}
	return fmt.Errorf("%w: %w", ErrStorageFailure, err)
}

// RegisterUser регистрирует нового пользователя.
func (s *Service) RegisterUser(ctx context.Context, email, name, password string) (int64, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if !validation.IsValidEmail(email) || !validation.IsValidText(name, maxUserNameLen) || password == "" {
		return 0, ErrInvalidInput
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		return 0, fmt.Errorf("hash password: %w", err)
	}

	id, err := s.repo.CreateUser(ctx, email, strings.TrimSpace(name), hashed)
	if err != nil {
		return 0, storageErr(err, repository.ErrUserExists)
	}
	return id, nil
}

// AuthenticateUser проверяет email и пароль пользователя и возвращает его идентификатор.
func (s *Service) AuthenticateUser(ctx context.Context, email, password string) (int64, error) {
	u, err := s.repo.GetUserByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return 0, ErrInvalidCredentials
		}
		return 0, storageErr(err)
	}

	if !u.Status {
		return 0, ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(password)); err != nil {
		return 0, ErrInvalidCredentials
	}

	return u.ID, nil
}

// GetUser возвращает пользователя по идентификатору.
func (s *Service) GetUser(ctx context.Context, userID int64) (*model.User, error) {
	u, err := s.repo.GetUserByID(ctx, userID)
	if err != nil {
		return nil, storageErr(err, repository.ErrUserNotFound)
	}
	return u, nil
}

// UpdateUser меняет профиль пользователя. Email приводится к нижнему регистру,
// новый пароль хешируется.
func (s *Service) UpdateUser(ctx context.Context, userID int64, upd ProfileUpdate) (*model.User, error) {
	var changes model.UserUpdate

	if upd.Email != nil {
		email := strings.ToLower(strings.TrimSpace(*upd.Email))
		if !validation.IsValidEmail(email) {
			return nil, ErrInvalidInput
		}
		changes.Email = &email
	}
	if upd.Name != nil {
		if !validation.IsValidText(*upd.Name, maxUserNameLen) {
			return nil, ErrInvalidInput
		}
		name := strings.TrimSpace(*upd.Name)
		changes.Name = &name
	}
	if upd.Password != nil {
		if *upd.Password == "" {
			return nil, ErrInvalidInput
		}
		hashed, err := bcrypt.GenerateFromPassword([]byte(*upd.Password), s.bcryptCost)
		if err != nil {
			return nil, fmt.Errorf("hash password: %w", err)
		}
		changes.PasswordHash = hashed
	}

	u, err := s.repo.UpdateUser(ctx, userID, changes)
	if err != nil {
		return nil, storageErr(err, repository.ErrUserNotFound, repository.ErrUserExists)
	}
	return u, nil
}

// DeleteUser удаляет пользователя и его банковский счёт.
func (s *Service) DeleteUser(ctx context.Context, userID int64) error {
	if err := s.repo.DeleteUser(ctx, userID); err != nil {
		return storageErr(err, repository.ErrUserNotFound)
	}
	return nil
}

func validBankDetails(accountNumber, bankName, branchCode, accountType string) bool {
	return validation.IsValidAccountNumber(accountNumber) &&
		validation.IsValidBranchCode(branchCode) &&
		validation.IsValidText(bankName, maxBankNameLen) &&
		validation.IsValidText(accountType, maxAccountTypeLen)
}

// OpenBankAccount открывает банковский счёт текущему пользователю.
func (s *Service) OpenBankAccount(ctx context.Context, userID int64, acc model.BankAccount) (*model.BankAccount, error) {
	if !validBankDetails(acc.AccountNumber, acc.BankName, acc.BranchCode, acc.AccountType) {
		return nil, ErrInvalidInput
	}
	if acc.Balance < 0 {
		return nil, ErrInvalidAmount
	}

	acc.UserID = userID
	res, err := s.repo.CreateBankAccount(ctx, acc)
	if err != nil {
		return nil, storageErr(err, repository.ErrAccountExists, repository.ErrUserNotFound)
	}
	return res, nil
}

// GetBankAccount возвращает банковский счёт пользователя.
func (s *Service) GetBankAccount(ctx context.Context, userID int64) (*model.BankAccount, error) {
	acc, err := s.repo.GetBankAccountByUser(ctx, userID)
	if err != nil {
		return nil, storageErr(err, repository.ErrAccountNotFound)
	}
	return acc, nil
}

// UpdateBankAccount меняет реквизиты счёта пользователя. Баланс через этот метод не меняется.
func (s *Service) UpdateBankAccount(ctx context.Context, userID int64, upd model.BankAccountUpdate) (*model.BankAccount, error) {
	current, err := s.repo.GetBankAccountByUser(ctx, userID)
	if err != nil {
		return nil, storageErr(err, repository.ErrAccountNotFound)
	}

	merged := *current
	for _, f := range []struct {
		dst *string
		src *string
	}{
		{&merged.AccountNumber, upd.AccountNumber},
		{&merged.BankName, upd.BankName},
		{&merged.BranchCode, upd.BranchCode},
		{&merged.AccountType, upd.AccountType},
	} {
		if f.src != nil {
			*f.dst = strings.TrimSpace(*f.src)
		}
	}
	if !validBankDetails(merged.AccountNumber, merged.BankName, merged.BranchCode, merged.AccountType) {
		return nil, ErrInvalidInput
	}

	acc, err := s.repo.UpdateBankAccount(ctx, userID, model.BankAccountUpdate{
		AccountNumber: &merged.AccountNumber,
		BankName:      &merged.BankName,
		BranchCode:    &merged.BranchCode,
		AccountType:   &merged.AccountType,
	})
	if err != nil {
		return nil, storageErr(err, repository.ErrAccountNotFound)
	}
	return acc, nil
}

// DeleteBankAccount закрывает счёт пользователя.
func (s *Service) DeleteBankAccount(ctx context.Context, userID int64) error {
	if err := s.repo.DeleteBankAccount(ctx, userID); err != nil {
		return storageErr(err, repository.ErrAccountNotFound)
	}
	return nil
}

// Deposit пополняет счёт пользователя.
func (s *Service) Deposit(ctx context.Context, userID int64, amount model.Money) (model.Money, error) {
	if amount <= 0 {
		return 0, ErrInvalidAmount
	}
	balance, err := s.repo.Deposit(ctx, userID, amount)
	if err != nil {
		return 0, storageErr(err, repository.ErrAccountNotFound, repository.ErrBalanceLimit)
	}
	return balance, nil
}

// ImportProducts разбирает CSV и добавляет все товары из него. При ошибке в любой строке
// ничего не сохраняется.
func (s *Service) ImportProducts(ctx context.Context, r io.Reader) ([]model.Product, error) {
	products, err := catalog.ParseProducts(r)
	if err != nil {
		return nil, err
	}

	created, err := s.repo.CreateProducts(ctx, products)
	if err != nil {
		return nil, storageErr(err)
	}
	return created, nil
}

// GetProduct возвращает товар по идентификатору.
func (s *Service) GetProduct(ctx context.Context, id int64) (*model.Product, error) {
	p, err := s.repo.GetProduct(ctx, id)
	if err != nil {
		return nil, storageErr(err, repository.ErrProductNotFound)
	}
	return p, nil
}

// ListProducts возвращает товары с фильтром по названию.
func (s *Service) ListProducts(ctx context.Context, nameContains string) ([]model.Product, error) {
	products, err := s.repo.ListProducts(ctx, strings.TrimSpace(nameContains))
	if err != nil {
		return nil, storageErr(err)
	}
	return products, nil
}

// Purchase покупает quantity единиц товара productID со счёта пользователя userID.
// Бизнес-отказы возвращаются как есть, прочие ошибки оборачиваются в ErrStorageFailure. Повторов нет.
func (s *Service) Purchase(ctx context.Context, userID, productID, quantity int64) (*model.PurchaseResult, error) {
	if quantity <= 0 {
		return nil, ErrInvalidQuantity
	}

	res, err := s.repo.Purchase(ctx, userID, productID, quantity)
	if err != nil {
		return nil, storageErr(err,
			repository.ErrProductNotFound,
			repository.ErrAccountNotFound,
			repository.ErrInsufficientStock,
			repository.ErrInsufficientBalance,
		)
	}
	return res, nil
}
