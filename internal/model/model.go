// Package model содержит доменные сущности магазина цифровых аккаунтов.
package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Role описывает роль пользователя в системе.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// CommissionType описывает способ начисления партнёрской комиссии владельцу ваучера.
type CommissionType string

const (
	CommissionFlat       CommissionType = "flat"
	CommissionPercentage CommissionType = "percentage"
)

// User представляет зарегистрированного пользователя магазина.
type User struct {
	ID              int64
	Email           string
	Name            string
	PasswordHash    []byte
	Role            Role
	Balance         decimal.Decimal
	CommissionType  CommissionType
	CommissionValue decimal.Decimal
	CreatedAt       time.Time
}

// FlashSaleType описывает способ снижения цены во время распродажи.
type FlashSaleType string

const (
	FlashSalePercentage FlashSaleType = "percentage"
	FlashSaleFixed      FlashSaleType = "fixed"
)

// FlashSale описывает временную скидку, привязанную к товарам каталога.
type FlashSale struct {
	ID       int64
	Type     FlashSaleType
	Value    decimal.Decimal
	StartsAt time.Time
	EndsAt   time.Time
}

// ActiveAt сообщает, действует ли распродажа в указанный момент.
func (f *FlashSale) ActiveAt(now time.Time) bool {
	return !now.Before(f.StartsAt) && now.Before(f.EndsAt)
}

// Product описывает товар каталога: тип продаваемого аккаунта.
type Product struct {
	ID          int64
	Slug        string
	Title       string
	Description string
	Price       decimal.Decimal
	Stock       int
	Sold        int
	Active      bool
	FlashSale   *FlashSale
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// EffectivePrice возвращает цену товара с учётом действующей распродажи.
// Цена не опускается ниже нуля.
func (p *Product) EffectivePrice(now time.Time) decimal.Decimal {
	if p.FlashSale == nil || !p.FlashSale.ActiveAt(now) {
		return p.Price
	}

	var price decimal.Decimal
	switch p.FlashSale.Type {
	case FlashSalePercentage:
		price = p.Price.Sub(p.Price.Mul(p.FlashSale.Value).Div(decimal.NewFromInt(100)))
	case FlashSaleFixed:
		price = p.Price.Sub(p.FlashSale.Value)
	default:
		return p.Price
	}

	if price.IsNegative() {
		return decimal.Zero
	}
	return price
}

// Duration описывает срок действия аккаунта после выдачи покупателю.
type Duration struct {
	Days    int
	Hours   int
	Minutes int
	Seconds int
}

// AddTo возвращает момент истечения аккаунта, выданного в указанное время.
func (d Duration) AddTo(begin time.Time) time.Time {
	return begin.AddDate(0, 0, d.Days).
		Add(time.Duration(d.Hours)*time.Hour +
			time.Duration(d.Minutes)*time.Minute +
			time.Duration(d.Seconds)*time.Second)
}

// Account представляет одну продаваемую учётную запись из пула.
type Account struct {
	ID          int64
	ProductID   int64
	Payload     string
	Active      bool
	UsingUser   *string
	Begin       *time.Time
	Expire      *time.Time
	Renew       time.Time
	Duration    Duration
	OrderItemID *int64
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Available сообщает, может ли аккаунт быть выдан покупателю в указанный момент.
func (a *Account) Available(now time.Time) bool {
	return a.Active && a.UsingUser == nil && a.Renew.After(now)
}

// OrderStatus описывает статус заказа.
type OrderStatus string

const (
	OrderStatusPending OrderStatus = "pending"
	OrderStatusDone    OrderStatus = "done"
	OrderStatusCancel  OrderStatus = "cancel"
)

// PaymentMethod описывает способ оплаты заказа.
type PaymentMethod string

const (
	PaymentBalance  PaymentMethod = "balance"
	PaymentTransfer PaymentMethod = "transfer"
)

// OrderItem описывает одну позицию заказа. Accounts заполняется после выдачи.
type OrderItem struct {
	ID        int64
	ProductID int64
	Title     string
	Quantity  int
	UnitPrice decimal.Decimal
	Accounts  []Account
}

// Order описывает один оформленный заказ.
type Order struct {
	ID            int64
	Code          string
	UserID        *int64
	Email         string
	Items         []OrderItem
	Total         decimal.Decimal
	VoucherID     *int64
	Discount      decimal.Decimal
	PaymentMethod PaymentMethod
	Status        OrderStatus
	Message       string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// VoucherType описывает способ расчёта скидки по ваучеру.
type VoucherType string

const (
	VoucherPercentage  VoucherType = "percentage"
	VoucherFixed       VoucherType = "fixed"
	VoucherFixedReduce VoucherType = "fixed-reduce"
)

// Voucher описывает скидочный код, принадлежащий партнёру.
type Voucher struct {
	ID         int64
	Code       string
	OwnerID    int64
	Type       VoucherType
	Value      decimal.Decimal
	TimesLeft  int
	ExpiresAt  time.Time
	MinTotal   decimal.Decimal
	MaxReduce  decimal.Decimal
	Commission decimal.Decimal
	CreatedAt  time.Time
}

// Discount возвращает размер скидки по ваучеру для указанной суммы заказа.
// percentage — процент от суммы, fixed — сумма опускается до фиксированной
// цены, fixed-reduce — вычитается фиксированная величина. Скидка не бывает
// отрицательной, не превышает сумму заказа и ограничивается max_reduce.
func (v *Voucher) Discount(total decimal.Decimal) decimal.Decimal {
	var d decimal.Decimal
	switch v.Type {
	case VoucherPercentage:
		d = total.Mul(v.Value).Div(decimal.NewFromInt(100))
	case VoucherFixed:
		d = total.Sub(v.Value)
	case VoucherFixedReduce:
		d = v.Value
	default:
		return decimal.Zero
	}

	if !d.IsPositive() {
		return decimal.Zero
	}
	if v.MaxReduce.IsPositive() && d.GreaterThan(v.MaxReduce) {
		d = v.MaxReduce
	}
	if d.GreaterThan(total) {
		return total
	}
	return d
}

// Review описывает отзыв пользователя о товаре.
type Review struct {
	ID        int64
	ProductID int64
	UserID    int64
	UserName  string
	Rating    int
	Content   string
	CreatedAt time.Time
}

// CartItem описывает позицию корзины пользователя.
type CartItem struct {
	ProductID int64
	Title     string
	Slug      string
	Quantity  int
	UnitPrice decimal.Decimal
}

// Summary содержит агрегированные показатели магазина для административной панели.
type Summary struct {
	Revenue       decimal.Decimal
	PendingOrders int
	DoneOrders    int
	CancelOrders  int
	TopProducts   []TopProduct
}

// TopProduct описывает товар в списке лидеров продаж.
type TopProduct struct {
	ProductID int64
	Title     string
	Sold      int
}
