package repository

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/mmeshcher/pharmacy-backoffice/internal/model"
)

// MemoryRepository хранит данные в памяти процесса. Все операции сериализуются одним мьютексом,
// поэтому проверка и изменение остатков при покупке атомарны.
type MemoryRepository struct {
	mu sync.Mutex

	users      map[int64]*model.User
	emailIndex map[string]int64
	accounts   map[int64]*model.BankAccount // userID -> счёт
	products   map[int64]*model.Product

	nextUserID    int64
	nextAccountID int64
	nextProductID int64
}

// NewMemoryRepository создаёт пустое in-memory хранилище.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		users:      make(map[int64]*model.User),
		emailIndex: make(map[string]int64),
		accounts:   make(map[int64]*model.BankAccount),
		products:   make(map[int64]*model.Product),
	}
}

// Close ничего не делает.
func (r *MemoryRepository) Close() error { return nil }

// CreateUser создаёт нового пользователя.
func (r *MemoryRepository) CreateUser(_ context.Context, email, name string, passwordHash []byte) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.emailIndex[email]; ok {
		return 0, fmt.Errorf("%w: %s", ErrUserExists, email)
	}

	r.nextUserID++
	now := time.Now()
	r.users[r.nextUserID] = &model.User{
		ID:           r.nextUserID,
		Email:        email,
		Name:         name,
		Status:       true,
		PasswordHash: passwordHash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	r.emailIndex[email] = r.nextUserID

	return r.nextUserID, nil
}

// GetUserByEmail возвращает пользователя по email.
func (r *MemoryRepository) GetUserByEmail(_ context.Context, email string) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	id, ok := r.emailIndex[email]
	if !ok {
		return nil, ErrUserNotFound
	}
	u := *r.users[id]
	return &u, nil
}

// GetUserByID возвращает пользователя по идентификатору.
func (r *MemoryRepository) GetUserByID(_ context.Context, id int64) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	res := *u
	return &res, nil
}

// UpdateUser меняет заданные поля пользователя.
func (r *MemoryRepository) UpdateUser(_ context.Context, id int64, upd model.UserUpdate) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[id]
	if !ok {
		return nil, ErrUserNotFound
	}

	if upd.Email != nil && *upd.Email != u.Email {
		if _, taken := r.emailIndex[*upd.Email]; taken {
			return nil, ErrUserExists
		}
		delete(r.emailIndex, u.Email)
		r.emailIndex[*upd.Email] = id
		u.Email = *upd.Email
	}
	if upd.Name != nil {
		u.Name = *upd.Name
	}
	if upd.PasswordHash != nil {
		u.PasswordHash = upd.PasswordHash
	}
	u.UpdatedAt = time.Now()

	res := *u
	return &res, nil
}

// DeleteUser удаляет пользователя вместе с его банковским счётом.
func (r *MemoryRepository) DeleteUser(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[id]
	if !ok {
		return ErrUserNotFound
	}
	delete(r.emailIndex, u.Email)
	delete(r.accounts, id)
	delete(r.users, id)
	return nil
}

// CreateBankAccount открывает банковский счёт пользователя.
func (r *MemoryRepository) CreateBankAccount(_ context.Context, acc model.BankAccount) (*model.BankAccount, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.users[acc.UserID]; !ok {
		return nil, ErrUserNotFound
	}
	if _, ok := r.accounts[acc.UserID]; ok {
		return nil, ErrAccountExists
	}

	r.nextAccountID++
	acc.ID = r.nextAccountID
	acc.CreatedAt = time.Now()
	stored := acc
	r.accounts[acc.UserID] = &stored

	return &acc, nil
}

// GetBankAccountByUser возвращает счёт пользователя.
func (r *MemoryRepository) GetBankAccountByUser(_ context.Context, userID int64) (*model.BankAccount, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	acc, ok := r.accounts[userID]
	if !ok {
		return nil, ErrAccountNotFound
	}
	res := *acc
	return &res, nil
}

// UpdateBankAccount меняет реквизиты счёта пользователя.
func (r *MemoryRepository) UpdateBankAccount(_ context.Context, userID int64, upd model.BankAccountUpdate) (*model.BankAccount, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	acc, ok := r.accounts[userID]
	if !ok {
		return nil, ErrAccountNotFound
	}
	if upd.AccountNumber != nil {
		acc.AccountNumber = *upd.AccountNumber
	}
	if upd.BankName != nil {
		acc.BankName = *upd.BankName
	}
	if upd.BranchCode != nil {
		acc.BranchCode = *upd.BranchCode
	}
	if upd.AccountType != nil {
		acc.AccountType = *upd.AccountType
	}

	res := *acc
	return &res, nil
}

// DeleteBankAccount закрывает счёт пользователя.
func (r *MemoryRepository) DeleteBankAccount(_ context.Context, userID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.accounts[userID]; !ok {
		return ErrAccountNotFound
	}
	delete(r.accounts, userID)
	return nil
}

// Deposit зачисляет сумму на счёт пользователя и возвращает новый баланс.
func (r *MemoryRepository) Deposit(_ context.Context, userID int64, amount model.Money) (model.Money, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	acc, ok := r.accounts[userID]
	if !ok {
		return 0, ErrAccountNotFound
	}
	balance, err := acc.Balance.Add(amount)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrBalanceLimit, err)
	}
	acc.Balance = balance
	return acc.Balance, nil
}

// CreateProducts добавляет товары.
func (r *MemoryRepository) CreateProducts(_ context.Context, products []model.Product) ([]model.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	created := make([]model.Product, 0, len(products))
	now := time.Now()
	for _, p := range products {
		r.nextProductID++
		p.ID = r.nextProductID
		p.CreatedAt = now
		stored := p
		r.products[p.ID] = &stored
		created = append(created, p)
	}
	return created, nil
}

// GetProduct возвращает товар по идентификатору.
func (r *MemoryRepository) GetProduct(_ context.Context, id int64) (*model.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.products[id]
	if !ok {
		return nil, ErrProductNotFound
	}
	res := *p
	return &res, nil
}

// ListProducts возвращает товары, в названии которых встречается nameContains (без учёта регистра).
func (r *MemoryRepository) ListProducts(_ context.Context, nameContains string) ([]model.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	needle := strings.ToLower(nameContains)
	var res []model.Product
	for _, p := range r.products {
		if needle == "" || strings.Contains(strings.ToLower(p.Name), needle) {
			res = append(res, *p)
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i].ID < res[j].ID })
	return res, nil
}

// Purchase списывает стоимость покупки со счёта и уменьшает остаток товара под одной блокировкой.
func (r *MemoryRepository) Purchase(_ context.Context, userID, productID, quantity int64) (*model.PurchaseResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.products[productID]
	if !ok {
		return nil, ErrProductNotFound
	}
	acc, ok := r.accounts[userID]
	if !ok {
		return nil, ErrAccountNotFound
	}

	unitPrice, err := p.SalePrice()
	if err != nil {
		return nil, fmt.Errorf("sale price of product %d: %w", productID, err)
	}

	total, err := checkPurchase(p.Quantity, quantity, acc.Balance, unitPrice)
	if err != nil {
		return nil, err
	}

	p.Quantity -= quantity
	acc.Balance -= total

	return &model.PurchaseResult{
		Balance:   acc.Balance,
		Quantity:  p.Quantity,
		UnitPrice: unitPrice,
		TotalCost: total,
	}, nil
}
