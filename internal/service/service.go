// Package service реализует бизнес-логику магазина цифровых аккаунтов.
package service

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/anphashop/shop-system/internal/model"
	"github.com/anphashop/shop-system/internal/repository"
)

// Ошибки бизнес-логики, транслируемые обработчиками в коды ответов.
var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrEmptyOrder         = errors.New("order has no items")
	ErrProductInactive    = errors.New("product is not for sale")
	ErrVoucherExpired     = errors.New("voucher expired")
	ErrVoucherExhausted   = errors.New("voucher has no uses left")
	ErrVoucherBelowMin    = errors.New("order total below voucher minimum")
	ErrVoucherAlreadyUsed = errors.New("voucher already used by this email")
	ErrVoucherOwnVoucher  = errors.New("voucher owner cannot use own voucher")
	ErrReviewNotAllowed   = errors.New("review allowed only for delivered products")
)

// Repository описывает контракт доступа к данным, используемый сервисом.
type Repository interface {
	Close() error

	CreateUser(ctx context.Context, email, name string, passwordHash []byte) (int64, error)
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
	GetUserByID(ctx context.Context, id int64) (*model.User, error)
	TopUpBalance(ctx context.Context, userID int64, amount decimal.Decimal) error
	SetUserCommission(ctx context.Context, userID int64, ct model.CommissionType, value decimal.Decimal) error

	GetProductBySlug(ctx context.Context, slug string) (*model.Product, error)
	GetProductByID(ctx context.Context, id int64) (*model.Product, error)
	ListProducts(ctx context.Context, filter repository.ProductFilter) ([]model.Product, error)
	CreateProduct(ctx context.Context, p *model.Product) (int64, error)
	UpdateProduct(ctx context.Context, p *model.Product) error
	DeleteProduct(ctx context.Context, id int64) error

	CreateFlashSale(ctx context.Context, f *model.FlashSale) (int64, error)
	UpdateFlashSale(ctx context.Context, f *model.FlashSale) error
	DeleteFlashSale(ctx context.Context, id int64) error

	CreateAccount(ctx context.Context, a *model.Account) (int64, error)
	GetAccountByID(ctx context.Context, id int64) (*model.Account, error)
	UpdateAccount(ctx context.Context, a *model.Account) error
	DeleteAccount(ctx context.Context, id int64) error
	ListAccounts(ctx context.Context, filter repository.AccountFilter) ([]model.Account, error)
	ListExpiringAccounts(ctx context.Context, within time.Duration) ([]repository.ExpiringAccount, error)
	MarkExpiryWarned(ctx context.Context, ids []int64) error

	CreateOrder(ctx context.Context, o *model.Order) (int64, error)
	GetOrderByCode(ctx context.Context, code string) (*model.Order, error)
	ListOrders(ctx context.Context, filter repository.OrderFilter) ([]model.Order, error)
	ListOrdersByUser(ctx context.Context, userID int64, page, perPage int) ([]model.Order, error)
	ListPendingOrderCodes(ctx context.Context, limit int) ([]string, error)
	CancelOrder(ctx context.Context, code string) error
	HasDeliveredProduct(ctx context.Context, userID, productID int64) (bool, error)
	Summary(ctx context.Context) (*model.Summary, error)
	DeliverOrder(ctx context.Context, code, message string) (*model.Order, error)

	CreateVoucher(ctx context.Context, v *model.Voucher) (int64, error)
	GetVoucherByCode(ctx context.Context, code string) (*model.Voucher, error)
	VoucherUsedByEmail(ctx context.Context, voucherID int64, email string) (bool, error)
	UpdateVoucher(ctx context.Context, v *model.Voucher) error
	DeleteVoucher(ctx context.Context, id int64) error
	ListVouchers(ctx context.Context, page, perPage int) ([]model.Voucher, error)

	CreateReview(ctx context.Context, review *model.Review) (int64, error)
	ListReviewsByProduct(ctx context.Context, productID int64, page, perPage int) ([]model.Review, error)

	UpsertCartItem(ctx context.Context, userID, productID int64, quantity int) error
	ListCart(ctx context.Context, userID int64) ([]model.CartItem, error)
	DeleteCartItem(ctx context.Context, userID, productID int64) error
	ClearCart(ctx context.Context, userID int64) error
}

// Mailer описывает контракт почтовых уведомлений, используемый сервисом.
type Mailer interface {
	SendOrderConfirmation(to string, order *model.Order) error
	SendDelivery(to string, order *model.Order, message string) error
	SendShortageAlert(to, orderCode, productTitle string, requested, available int) error
	SendExpiryWarning(to, productTitle, expire string) error
	SendTest(to string) error
}

// Service содержит бизнес-логику магазина.
type Service struct {
	repo        Repository
	mailer      Mailer
	adminEmail  string
	autoDeliver bool
}

// NewService создаёт сервис с указанным репозиторием и почтовым клиентом.
// mailer может быть nil: тогда уведомления не отправляются.
func NewService(repo Repository, mailer Mailer, adminEmail string, autoDeliver bool) *Service {
	return &Service{
		repo:        repo,
		mailer:      mailer,
		adminEmail:  adminEmail,
		autoDeliver: autoDeliver,
	}
}

// Close закрывает ресурсы сервиса.
func (s *Service) Close() error {
	if s.repo != nil {
		return s.repo.Close()
	}
	return nil
}
