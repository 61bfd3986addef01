// Package handler содержит HTTP-обработчики API аптечного бэк-офиса.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/mmeshcher/pharmacy-backoffice/internal/middleware"
	"github.com/mmeshcher/pharmacy-backoffice/internal/model"
	"github.com/mmeshcher/pharmacy-backoffice/internal/repository"
	"github.com/mmeshcher/pharmacy-backoffice/internal/service"
)

// Service определяет контракт бизнес-логики, используемой HTTP-обработчиками.
type Service interface {
	RegisterUser(ctx context.Context, email, name, password string) (int64, error)
	AuthenticateUser(ctx context.Context, email, password string) (int64, error)
	GetUser(ctx context.Context, userID int64) (*model.User, error)
	UpdateUser(ctx context.Context, userID int64, upd service.ProfileUpdate) (*model.User, error)
	DeleteUser(ctx context.Context, userID int64) error
	OpenBankAccount(ctx context.Context, userID int64, acc model.BankAccount) (*model.BankAccount, error)
	GetBankAccount(ctx context.Context, userID int64) (*model.BankAccount, error)
	UpdateBankAccount(ctx context.Context, userID int64, upd model.BankAccountUpdate) (*model.BankAccount, error)
	DeleteBankAccount(ctx context.Context, userID int64) error
	Deposit(ctx context.Context, userID int64, amount model.Money) (model.Money, error)
	ImportProducts(ctx context.Context, r io.Reader) ([]model.Product, error)
	GetProduct(ctx context.Context, id int64) (*model.Product, error)
	ListProducts(ctx context.Context, nameContains string) ([]model.Product, error)
	Purchase(ctx context.Context, userID, productID, quantity int64) (*model.PurchaseResult, error)
}

// Handler реализует HTTP-обработчики API аптечного бэк-офиса.
type Handler struct {
	service        Service
	logger         *zap.Logger
	authMiddleware *middleware.AuthMiddleware
}

// NewHandler создаёт новый экземпляр обработчика HTTP-запросов.
func NewHandler(s Service, logger *zap.Logger, auth *middleware.AuthMiddleware) *Handler {
	return &Handler{
		service:        s,
		logger:         logger,
		authMiddleware: auth,
	}
}

type detailResponse struct {
	Detail string `json:"detail"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, detailResponse{Detail: detail})
}

func (h *Handler) internalError(w http.ResponseWriter, msg string, err error, fields ...zap.Field) {
	h.logger.Error(msg, append(fields, zap.Error(err))...)
	writeDetail(w, http.StatusInternalServerError, "Internal server error")
}

type registerRequest struct {
	Email    string `json:"email"`
	Name     string `json:"name"`
	Password string `json:"password"`
}

type tokenResponse struct {
	ID    int64  `json:"id"`
	Token string `json:"token"`
}

// Register обрабатывает регистрацию нового пользователя.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeDetail(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	userID, err := h.service.RegisterUser(r.Context(), req.Email, req.Name, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrUserExists):
			writeDetail(w, http.StatusConflict, "User with this email already exists")
		case errors.Is(err, service.ErrInvalidInput):
			writeDetail(w, http.StatusBadRequest, "Email, name and password are required")
		default:
			h.internalError(w, "register user error", err)
		}
		return
	}

	token, err := h.authMiddleware.SetAuthCookie(w, userID)
	if err != nil {
		h.internalError(w, "issue token error", err, zap.Int64("userID", userID))
		return
	}
	writeJSON(w, http.StatusCreated, tokenResponse{ID: userID, Token: token})
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login выполняет аутентификацию пользователя и выдаёт токен.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeDetail(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if req.Email == "" || req.Password == "" {
		writeDetail(w, http.StatusBadRequest, "Email and password are required")
		return
	}

	userID, err := h.service.AuthenticateUser(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			writeDetail(w, http.StatusUnauthorized, "Invalid credentials")
			return
		}
		h.internalError(w, "login user error", err)
		return
	}

	token, err := h.authMiddleware.SetAuthCookie(w, userID)
	if err != nil {
		h.internalError(w, "issue token error", err, zap.Int64("userID", userID))
		return
	}
	writeJSON(w, http.StatusOK, tokenResponse{ID: userID, Token: token})
}

type userResponse struct {
	ID        int64  `json:"id"`
	Email     string `json:"email"`
	Name      string `json:"name"`
	Status    bool   `json:"status"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

// GetCurrentUser возвращает профиль текущего пользователя.
func (h *Handler) GetCurrentUser(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		writeDetail(w, http.StatusUnauthorized, http.StatusText(http.StatusUnauthorized))
		return
	}

	u, err := h.service.GetUser(r.Context(), userID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			writeDetail(w, http.StatusNotFound, "User not found.")
			return
		}
		h.internalError(w, "get user error", err, zap.Int64("userID", userID))
		return
	}

	writeJSON(w, http.StatusOK, newUserResponse(u))
}

func newUserResponse(u *model.User) userResponse {
	return userResponse{
		ID:        u.ID,
		Email:     u.Email,
		Name:      u.Name,
		Status:    u.Status,
		CreatedAt: u.CreatedAt.Format(time.RFC3339),
		UpdatedAt: u.UpdatedAt.Format(time.RFC3339),
	}
}

type updateUserRequest struct {
	Email    *string `json:"email"`
	Name     *string `json:"name"`
	Password *string `json:"password"`
}

// UpdateCurrentUser частично обновляет профиль текущего пользователя.
func (h *Handler) UpdateCurrentUser(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		writeDetail(w, http.StatusUnauthorized, http.StatusText(http.StatusUnauthorized))
		return
	}

	var req updateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeDetail(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	u, err := h.service.UpdateUser(r.Context(), userID, service.ProfileUpdate{
		Email:    req.Email,
		Name:     req.Name,
		Password: req.Password,
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidInput):
			writeDetail(w, http.StatusBadRequest, "Invalid user data")
		case errors.Is(err, repository.ErrUserExists):
			writeDetail(w, http.StatusConflict, "User with this email already exists")
		case errors.Is(err, repository.ErrUserNotFound):
			writeDetail(w, http.StatusNotFound, "User not found.")
		default:
			h.internalError(w, "update user error", err, zap.Int64("userID", userID))
		}
		return
	}

	writeJSON(w, http.StatusOK, newUserResponse(u))
}

// DeleteCurrentUser удаляет текущего пользователя вместе с его счётом.
func (h *Handler) DeleteCurrentUser(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		writeDetail(w, http.StatusUnauthorized, http.StatusText(http.StatusUnauthorized))
		return
	}

	if err := h.service.DeleteUser(r.Context(), userID); err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			writeDetail(w, http.StatusNotFound, "User not found.")
			return
		}
		h.internalError(w, "delete user error", err, zap.Int64("userID", userID))
		return
	}

	h.authMiddleware.ClearAuthCookie(w)
	w.WriteHeader(http.StatusNoContent)
}

type bankAccountRequest struct {
	AccountNumber string      `json:"account_number"`
	BankName      string      `json:"bank_name"`
	BranchCode    string      `json:"branch_code"`
	AccountType   string      `json:"account_type"`
	Balance       model.Money `json:"balance"`
}

type bankAccountResponse struct {
	ID            int64       `json:"id"`
	AccountNumber string      `json:"account_number"`
	BankName      string      `json:"bank_name"`
	BranchCode    string      `json:"branch_code"`
	AccountType   string      `json:"account_type"`
	Balance       model.Money `json:"balance"`
	CreatedAt     string      `json:"created_at"`
}

func newBankAccountResponse(acc *model.BankAccount) bankAccountResponse {
	return bankAccountResponse{
		ID:            acc.ID,
		AccountNumber: acc.AccountNumber,
		BankName:      acc.BankName,
		BranchCode:    acc.BranchCode,
		AccountType:   acc.AccountType,
		Balance:       acc.Balance,
		CreatedAt:     acc.CreatedAt.Format(time.RFC3339),
	}
}

// OpenBankAccount открывает банковский счёт текущему пользователю.
func (h *Handler) OpenBankAccount(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		writeDetail(w, http.StatusUnauthorized, http.StatusText(http.StatusUnauthorized))
		return
	}

	var req bankAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeDetail(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	acc, err := h.service.OpenBankAccount(r.Context(), userID, model.BankAccount{
		AccountNumber: req.AccountNumber,
		BankName:      req.BankName,
		BranchCode:    req.BranchCode,
		AccountType:   req.AccountType,
		Balance:       req.Balance,
	})
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrAccountExists):
			writeDetail(w, http.StatusConflict, "Bank account already exists")
		case errors.Is(err, service.ErrInvalidInput):
			writeDetail(w, http.StatusBadRequest, "Invalid bank account data")
		case errors.Is(err, service.ErrInvalidAmount):
			writeDetail(w, http.StatusBadRequest, "Balance must not be negative")
		case errors.Is(err, repository.ErrUserNotFound):
			writeDetail(w, http.StatusNotFound, "User not found.")
		default:
			h.internalError(w, "open bank account error", err, zap.Int64("userID", userID))
		}
		return
	}

	writeJSON(w, http.StatusCreated, newBankAccountResponse(acc))
}

// GetBankAccount возвращает банковский счёт текущего пользователя.
func (h *Handler) GetBankAccount(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		writeDetail(w, http.StatusUnauthorized, http.StatusText(http.StatusUnauthorized))
		return
	}

	acc, err := h.service.GetBankAccount(r.Context(), userID)
	if err != nil {
		if errors.Is(err, repository.ErrAccountNotFound) {
			writeDetail(w, http.StatusNotFound, "Bank account not found")
			return
		}
		h.internalError(w, "get bank account error", err, zap.Int64("userID", userID))
		return
	}

	writeJSON(w, http.StatusOK, newBankAccountResponse(acc))
}

type updateBankAccountRequest struct {
	AccountNumber *string          `json:"account_number"`
	BankName      *string          `json:"bank_name"`
	BranchCode    *string          `json:"branch_code"`
	AccountType   *string          `json:"account_type"`
	Balance       *json.RawMessage `json:"balance"`
}

// UpdateBankAccount частично обновляет реквизиты счёта текущего пользователя.
// Баланс меняется только пополнением и покупками.
func (h *Handler) UpdateBankAccount(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		writeDetail(w, http.StatusUnauthorized, http.StatusText(http.StatusUnauthorized))
		return
	}

	var req updateBankAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeDetail(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Balance != nil {
		writeDetail(w, http.StatusBadRequest, "Balance cannot be updated directly")
		return
	}

	acc, err := h.service.UpdateBankAccount(r.Context(), userID, model.BankAccountUpdate{
		AccountNumber: req.AccountNumber,
		BankName:      req.BankName,
		BranchCode:    req.BranchCode,
		AccountType:   req.AccountType,
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidInput):
			writeDetail(w, http.StatusBadRequest, "Invalid bank account data")
		case errors.Is(err, repository.ErrAccountNotFound):
			writeDetail(w, http.StatusNotFound, "Bank account not found")
		default:
			h.internalError(w, "update bank account error", err, zap.Int64("userID", userID))
		}
		return
	}

	writeJSON(w, http.StatusOK, newBankAccountResponse(acc))
}

// DeleteBankAccount закрывает счёт текущего пользователя.
func (h *Handler) DeleteBankAccount(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		writeDetail(w, http.StatusUnauthorized, http.StatusText(http.StatusUnauthorized))
		return
	}

	if err := h.service.DeleteBankAccount(r.Context(), userID); err != nil {
		if errors.Is(err, repository.ErrAccountNotFound) {
			writeDetail(w, http.StatusNotFound, "Bank account not found")
			return
		}
		h.internalError(w, "delete bank account error", err, zap.Int64("userID", userID))
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

type depositRequest struct {
	Amount model.Money `json:"amount"`
}

type balanceResponse struct {
	Balance model.Money `json:"balance"`
}

// Deposit пополняет счёт текущего пользователя.
func (h *Handler) Deposit(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		writeDetail(w, http.StatusUnauthorized, http.StatusText(http.StatusUnauthorized))
		return
	}

	var req depositRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeDetail(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	balance, err := h.service.Deposit(r.Context(), userID, req.Amount)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidAmount):
			writeDetail(w, http.StatusBadRequest, "Amount must be positive")
		case errors.Is(err, repository.ErrBalanceLimit):
			writeDetail(w, http.StatusBadRequest, "Balance limit exceeded")
		case errors.Is(err, repository.ErrAccountNotFound):
			writeDetail(w, http.StatusNotFound, "Bank account not found")
		default:
			h.internalError(w, "deposit error", err, zap.Int64("userID", userID))
		}
		return
	}

	writeJSON(w, http.StatusOK, balanceResponse{Balance: balance})
}
