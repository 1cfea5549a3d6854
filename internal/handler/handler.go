// Package handler содержит HTTP-обработчики API магазина.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/anphashop/shop-system/internal/middleware"
	"github.com/anphashop/shop-system/internal/model"
	"github.com/anphashop/shop-system/internal/repository"
	"github.com/anphashop/shop-system/internal/service"
)

// Service определяет контракт бизнес-логики, используемой HTTP-обработчиками.
type Service interface {
	Register(ctx context.Context, email, name, password string) (*model.User, error)
	Authenticate(ctx context.Context, email, password string) (*model.User, error)
	GetUser(ctx context.Context, id int64) (*model.User, error)
	TopUpBalance(ctx context.Context, userID int64, amount decimal.Decimal) error
	SetUserCommission(ctx context.Context, userID int64, ct model.CommissionType, value decimal.Decimal) error

	ListProducts(ctx context.Context, filter repository.ProductFilter) ([]model.Product, error)
	GetProduct(ctx context.Context, slug string) (*model.Product, error)
	CreateProduct(ctx context.Context, p *model.Product) (int64, error)
	UpdateProduct(ctx context.Context, p *model.Product) error
	DeleteProduct(ctx context.Context, id int64) error

	CreateFlashSale(ctx context.Context, f *model.FlashSale) (int64, error)
	UpdateFlashSale(ctx context.Context, f *model.FlashSale) error
	DeleteFlashSale(ctx context.Context, id int64) error

	CreateAccount(ctx context.Context, a *model.Account) (int64, error)
	GetAccount(ctx context.Context, id int64) (*model.Account, error)
	UpdateAccount(ctx context.Context, a *model.Account) error
	DeleteAccount(ctx context.Context, id int64) error
	ListAccounts(ctx context.Context, filter repository.AccountFilter) ([]model.Account, error)

	GetCart(ctx context.Context, userID int64) ([]model.CartItem, error)
	PutCartItem(ctx context.Context, userID, productID int64, quantity int) error
	RemoveCartItem(ctx context.Context, userID, productID int64) error

	Checkout(ctx context.Context, in service.CheckoutInput) (*model.Order, error)
	PreviewVoucher(ctx context.Context, code, email string, total decimal.Decimal) (decimal.Decimal, error)

	ListUserOrders(ctx context.Context, userID int64, page, perPage int) ([]model.Order, error)
	GetOrder(ctx context.Context, code string) (*model.Order, error)
	ListOrders(ctx context.Context, filter repository.OrderFilter) ([]model.Order, error)
	DeliverOrder(ctx context.Context, code, message string) (*service.DeliveryResult, error)
	CancelOrder(ctx context.Context, code string) error

	CreateVoucher(ctx context.Context, v *model.Voucher) (int64, error)
	UpdateVoucher(ctx context.Context, v *model.Voucher) error
	DeleteVoucher(ctx context.Context, id int64) error
	ListVouchers(ctx context.Context, page, perPage int) ([]model.Voucher, error)

	CreateReview(ctx context.Context, review *model.Review) (int64, error)
	ListReviews(ctx context.Context, productID int64, page, perPage int) ([]model.Review, error)

	Summary(ctx context.Context) (*model.Summary, error)
	SendTestEmail(to string) error
}

// Handler реализует HTTP-обработчики API магазина.
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

// Ошибки валидации тел запросов административного API.
var (
	errInvalidPrice         = errors.New("price must be a non-negative decimal")
	errInvalidDiscountType  = errors.New("type must be percentage or fixed")
	errInvalidVoucherType   = errors.New("type must be percentage, fixed or fixed-reduce")
	errInvalidDiscountValue = errors.New("value must be a positive decimal")
	errInvalidSaleWindow    = errors.New("ends_at must be after starts_at")
)

type messageResponse struct {
	Message string `json:"message"`
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("encode response", zap.Error(err))
	}
}

func (h *Handler) writeMessage(w http.ResponseWriter, status int, msg string) {
	h.writeJSON(w, status, messageResponse{Message: msg})
}

// respondError транслирует ошибки бизнес-логики в коды ответов.
func (h *Handler) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, repository.ErrUserExists),
		errors.Is(err, repository.ErrDuplicateReview),
		errors.Is(err, repository.ErrOrderNotDeliverable):
		h.writeMessage(w, http.StatusConflict, err.Error())

	case errors.Is(err, repository.ErrUserNotFound),
		errors.Is(err, repository.ErrProductNotFound),
		errors.Is(err, repository.ErrAccountNotFound),
		errors.Is(err, repository.ErrOrderNotFound),
		errors.Is(err, repository.ErrVoucherNotFound),
		errors.Is(err, repository.ErrFlashSaleNotFound):
		h.writeMessage(w, http.StatusNotFound, err.Error())

	case errors.Is(err, service.ErrInvalidCredentials):
		h.writeMessage(w, http.StatusUnauthorized, err.Error())

	case errors.Is(err, repository.ErrInsufficientBalance):
		h.writeMessage(w, http.StatusPaymentRequired, err.Error())

	case errors.Is(err, service.ErrReviewNotAllowed):
		h.writeMessage(w, http.StatusForbidden, err.Error())

	case errors.Is(err, service.ErrVoucherExpired),
		errors.Is(err, service.ErrVoucherExhausted),
		errors.Is(err, service.ErrVoucherBelowMin),
		errors.Is(err, service.ErrVoucherAlreadyUsed),
		errors.Is(err, service.ErrVoucherOwnVoucher):
		h.writeMessage(w, http.StatusUnprocessableEntity, err.Error())

	case errors.Is(err, service.ErrEmptyOrder),
		errors.Is(err, service.ErrProductInactive):
		h.writeMessage(w, http.StatusBadRequest, err.Error())

	default:
		h.logger.Error("internal error", zap.Error(err))
		h.writeMessage(w, http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError))
	}
}

func (h *Handler) currentUserID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		h.writeMessage(w, http.StatusUnauthorized, http.StatusText(http.StatusUnauthorized))
		return 0, false
	}
	return userID, true
}

func pathID(r *http.Request, name string) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, name), 10, 64)
}

func queryInt(r *http.Request, name string) int {
	v, err := strconv.Atoi(r.URL.Query().Get(name))
	if err != nil {
		return 0
	}
	return v
}
