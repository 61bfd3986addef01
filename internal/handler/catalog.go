package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/mmeshcher/pharmacy-backoffice/internal/catalog"
	"github.com/mmeshcher/pharmacy-backoffice/internal/middleware"
	"github.com/mmeshcher/pharmacy-backoffice/internal/model"
	"github.com/mmeshcher/pharmacy-backoffice/internal/repository"
	"github.com/mmeshcher/pharmacy-backoffice/internal/service"
)

const maxUploadSize = 10 << 20

type productResponse struct {
	ID           int64       `json:"id"`
	Name         string      `json:"name"`
	Description  string      `json:"description"`
	CostPrice    model.Money `json:"cost_price"`
	ProfitMargin string      `json:"profit_margin"`
	SalePrice    model.Money `json:"sale_price"`
	Quantity     int64       `json:"quantity"`
	CreatedAt    string      `json:"created_at"`
}

func newProductResponse(p model.Product) (productResponse, error) {
	price, err := p.SalePrice()
	if err != nil {
		return productResponse{}, err
	}
	return productResponse{
		ID:           p.ID,
		Name:         p.Name,
		Description:  p.Description,
		CostPrice:    p.CostPrice,
		ProfitMargin: p.ProfitMargin.String(),
		SalePrice:    price,
		Quantity:     p.Quantity,
		CreatedAt:    p.CreatedAt.Format(time.RFC3339),
	}, nil
}

// UploadProducts принимает CSV-файл с товарами в поле формы file.
func (h *Handler) UploadProducts(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)

	file, _, err := r.FormFile("file")
	if err != nil {
		writeDetail(w, http.StatusBadRequest, "No file provided.")
		return
	}
	defer file.Close()

	created, err := h.service.ImportProducts(r.Context(), file)
	if err != nil {
		if errors.Is(err, catalog.ErrInvalidData) {
			reason := strings.TrimPrefix(err.Error(), catalog.ErrInvalidData.Error()+": ")
			writeDetail(w, http.StatusBadRequest, "Invalid data: "+reason)
			return
		}
		h.internalError(w, "upload products error", err)
		return
	}

	h.logger.Info("products uploaded", zap.Int("count", len(created)))
	writeDetail(w, http.StatusCreated, "Products uploaded successfully.")
}

// ListProducts возвращает товары каталога с необязательным фильтром ?name=.
func (h *Handler) ListProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.service.ListProducts(r.Context(), r.URL.Query().Get("name"))
	if err != nil {
		h.internalError(w, "list products error", err)
		return
	}

	resp := make([]productResponse, 0, len(products))
	for _, p := range products {
		item, err := newProductResponse(p)
		if err != nil {
			h.internalError(w, "sale price error", err, zap.Int64("productID", p.ID))
			return
		}
		resp = append(resp, item)
	}
	writeJSON(w, http.StatusOK, resp)
}

// GetProduct возвращает товар по идентификатору.
func (h *Handler) GetProduct(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeDetail(w, http.StatusNotFound, "Product not found")
		return
	}

	p, err := h.service.GetProduct(r.Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrProductNotFound) {
			writeDetail(w, http.StatusNotFound, "Product not found")
			return
		}
		h.internalError(w, "get product error", err, zap.Int64("productID", id))
		return
	}

	resp, err := newProductResponse(*p)
	if err != nil {
		h.internalError(w, "sale price error", err, zap.Int64("productID", id))
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

type purchaseRequest struct {
	ProductID int64 `json:"product_id"`
	Quantity  int64 `json:"quantity"`
}

type purchaseResponse struct {
	Balance   model.Money `json:"balance"`
	Quantity  int64       `json:"quantity"`
	UnitPrice model.Money `json:"unit_price"`
	TotalCost model.Money `json:"total_cost"`
}

// PurchaseProduct покупает товар со счёта текущего пользователя.
func (h *Handler) PurchaseProduct(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		writeDetail(w, http.StatusUnauthorized, http.StatusText(http.StatusUnauthorized))
		return
	}

	var req purchaseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeDetail(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	res, err := h.service.Purchase(r.Context(), userID, req.ProductID, req.Quantity)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidQuantity):
			writeDetail(w, http.StatusBadRequest, "Quantity must be positive")
		case errors.Is(err, repository.ErrProductNotFound):
			writeDetail(w, http.StatusNotFound, "Product not found")
		case errors.Is(err, repository.ErrAccountNotFound):
			writeDetail(w, http.StatusNotFound, "Bank account not found")
		case errors.Is(err, repository.ErrInsufficientStock):
			writeDetail(w, http.StatusBadRequest, "Insufficient stock")
		case errors.Is(err, repository.ErrInsufficientBalance):
			writeDetail(w, http.StatusBadRequest, "Insufficient balance")
		default:
			h.internalError(w, "purchase error", err,
				zap.Int64("userID", userID),
				zap.Int64("productID", req.ProductID),
				zap.Int64("quantity", req.Quantity),
			)
		}
		return
	}

	writeJSON(w, http.StatusOK, purchaseResponse{
		Balance:   res.Balance,
		Quantity:  res.Quantity,
		UnitPrice: res.UnitPrice,
		TotalCost: res.TotalCost,
	})
}
