package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/anphashop/shop-system/internal/metrics"
	"github.com/anphashop/shop-system/internal/model"
	"github.com/anphashop/shop-system/internal/validation"
)

// CheckoutItem описывает одну позицию оформляемого заказа.
type CheckoutItem struct {
	ProductID int64
	Quantity  int
}

// CheckoutInput описывает параметры оформления заказа.
// При пустом Items и заданном UserID позиции берутся из корзины.
type CheckoutInput struct {
	UserID        *int64
	Email         string
	Items         []CheckoutItem
	VoucherCode   string
	PaymentMethod model.PaymentMethod
}

func newOrderCode() string {
	raw := strings.ReplaceAll(uuid.NewString(), "-", "")
	return "AS-" + strings.ToUpper(raw[:12])
}

// Checkout оформляет заказ в статусе pending: фиксирует позиции по текущим
// ценам (с учётом распродаж), применяет ваучер и очищает корзину пользователя.
func (s *Service) Checkout(ctx context.Context, in CheckoutInput) (*model.Order, error) {
	items := in.Items
	if len(items) == 0 && in.UserID != nil {
		cart, err := s.repo.ListCart(ctx, *in.UserID)
		if err != nil {
			return nil, err
		}
		for _, c := range cart {
			items = append(items, CheckoutItem{ProductID: c.ProductID, Quantity: c.Quantity})
		}
	}
	if len(items) == 0 {
		return nil, ErrEmptyOrder
	}

	now := time.Now()
	total := decimal.Zero
	order := &model.Order{
		Code:          newOrderCode(),
		UserID:        in.UserID,
		Email:         strings.ToLower(strings.TrimSpace(in.Email)),
		PaymentMethod: in.PaymentMethod,
		Status:        model.OrderStatusPending,
	}

	for _, item := range items {
		p, err := s.repo.GetProductByID(ctx, item.ProductID)
		if err != nil {
			return nil, err
		}
		if !p.Active {
			return nil, ErrProductInactive
		}

		price := p.EffectivePrice(now)
		total = total.Add(price.Mul(decimal.NewFromInt(int64(item.Quantity))))

		order.Items = append(order.Items, model.OrderItem{
			ProductID: p.ID,
			Title:     p.Title,
			Quantity:  item.Quantity,
			UnitPrice: price,
		})
	}

	if in.VoucherCode != "" {
		voucher, discount, err := s.validateVoucher(ctx, in.VoucherCode, order.Email, total)
		if err != nil {
			return nil, err
		}
		order.VoucherID = &voucher.ID
		order.Discount = discount
		total = total.Sub(discount)
	}

	order.Total = total

	id, err := s.repo.CreateOrder(ctx, order)
	if err != nil {
		return nil, err
	}
	order.ID = id

	if in.UserID != nil {
		if err := s.repo.ClearCart(ctx, *in.UserID); err != nil {
			return nil, err
		}
	}

	metrics.OrdersCreated.Inc()
	s.sendMail("confirmation", func() error {
		return s.mailer.SendOrderConfirmation(order.Email, order)
	})

	return order, nil
}

// PreviewVoucher проверяет применимость ваучера и возвращает размер скидки.
func (s *Service) PreviewVoucher(ctx context.Context, code, email string, total decimal.Decimal) (decimal.Decimal, error) {
	_, discount, err := s.validateVoucher(ctx, code, strings.ToLower(strings.TrimSpace(email)), total)
	return discount, err
}

// validateVoucher проверяет все условия применения ваучера:
// срок, остаток использований, минимальную сумму, повторное использование
// и запрет применять собственный ваучер.
func (s *Service) validateVoucher(ctx context.Context, code, email string, total decimal.Decimal) (*model.Voucher, decimal.Decimal, error) {
	v, err := s.repo.GetVoucherByCode(ctx, validation.NormalizeCode(code))
	if err != nil {
		return nil, decimal.Zero, err
	}

	if time.Now().After(v.ExpiresAt) {
		return nil, decimal.Zero, ErrVoucherExpired
	}
	if v.TimesLeft <= 0 {
		return nil, decimal.Zero, ErrVoucherExhausted
	}
	if total.LessThan(v.MinTotal) {
		return nil, decimal.Zero, ErrVoucherBelowMin
	}

	owner, err := s.repo.GetUserByID(ctx, v.OwnerID)
	if err != nil {
		return nil, decimal.Zero, err
	}
	if owner.Email == email {
		return nil, decimal.Zero, ErrVoucherOwnVoucher
	}

	used, err := s.repo.VoucherUsedByEmail(ctx, v.ID, email)
	if err != nil {
		return nil, decimal.Zero, err
	}
	if used {
		return nil, decimal.Zero, ErrVoucherAlreadyUsed
	}

	return v, v.Discount(total), nil
}

// GetCart возвращает корзину пользователя.
func (s *Service) GetCart(ctx context.Context, userID int64) ([]model.CartItem, error) {
	return s.repo.ListCart(ctx, userID)
}

// PutCartItem кладёт товар в корзину пользователя.
func (s *Service) PutCartItem(ctx context.Context, userID, productID int64, quantity int) error {
	p, err := s.repo.GetProductByID(ctx, productID)
	if err != nil {
		return err
	}
	if !p.Active {
		return ErrProductInactive
	}
	return s.repo.UpsertCartItem(ctx, userID, productID, quantity)
}

// RemoveCartItem убирает товар из корзины пользователя.
func (s *Service) RemoveCartItem(ctx context.Context, userID, productID int64) error {
	return s.repo.DeleteCartItem(ctx, userID, productID)
}
