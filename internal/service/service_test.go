package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"

	"github.com/anphashop/shop-system/internal/model"
	"github.com/anphashop/shop-system/internal/repository"
)

type stubRepo struct {
	createUserID  int64
	createUserErr error

	getUser    *model.User
	getUserErr error

	product    *model.Product
	productErr error

	createOrderID  int64
	createOrderErr error

	deliverOrder *model.Order
	deliverErr   error

	voucher     *model.Voucher
	voucherErr  error
	voucherUsed bool

	cartItems       []model.CartItem
	clearCartCalled bool

	hasDelivered bool

	pendingCodes   []string
	deliveredCodes []string

	expiring  []repository.ExpiringAccount
	warnedIDs []int64

	createReviewID  int64
	createReviewErr error
}

func (s *stubRepo) Close() error { return nil }

func (s *stubRepo) CreateUser(ctx context.Context, email, name string, passwordHash []byte) (int64, error) {
	return s.createUserID, s.createUserErr
}

func (s *stubRepo) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	return s.getUser, s.getUserErr
}

func (s *stubRepo) GetUserByID(ctx context.Context, id int64) (*model.User, error) {
	return s.getUser, s.getUserErr
}

func (s *stubRepo) TopUpBalance(ctx context.Context, userID int64, amount decimal.Decimal) error {
	return nil
}

func (s *stubRepo) SetUserCommission(ctx context.Context, userID int64, ct model.CommissionType, value decimal.Decimal) error {
	return nil
}

func (s *stubRepo) GetProductBySlug(ctx context.Context, slug string) (*model.Product, error) {
	return s.product, s.productErr
}

func (s *stubRepo) GetProductByID(ctx context.Context, id int64) (*model.Product, error) {
	return s.product, s.productErr
}

func (s *stubRepo) ListProducts(ctx context.Context, filter repository.ProductFilter) ([]model.Product, error) {
	return nil, nil
}

func (s *stubRepo) CreateProduct(ctx context.Context, p *model.Product) (int64, error) {
	return 0, nil
}

func (s *stubRepo) UpdateProduct(ctx context.Context, p *model.Product) error { return nil }
func (s *stubRepo) DeleteProduct(ctx context.Context, id int64) error         { return nil }

func (s *stubRepo) CreateFlashSale(ctx context.Context, f *model.FlashSale) (int64, error) {
	return 0, nil
}

func (s *stubRepo) UpdateFlashSale(ctx context.Context, f *model.FlashSale) error { return nil }
func (s *stubRepo) DeleteFlashSale(ctx context.Context, id int64) error           { return nil }

func (s *stubRepo) CreateAccount(ctx context.Context, a *model.Account) (int64, error) {
	return 0, nil
}

func (s *stubRepo) GetAccountByID(ctx context.Context, id int64) (*model.Account, error) {
	return nil, nil
}

func (s *stubRepo) UpdateAccount(ctx context.Context, a *model.Account) error { return nil }
func (s *stubRepo) DeleteAccount(ctx context.Context, id int64) error         { return nil }

func (s *stubRepo) ListAccounts(ctx context.Context, filter repository.AccountFilter) ([]model.Account, error) {
	return nil, nil
}

func (s *stubRepo) ListExpiringAccounts(ctx context.Context, within time.Duration) ([]repository.ExpiringAccount, error) {
	return s.expiring, nil
}

func (s *stubRepo) MarkExpiryWarned(ctx context.Context, ids []int64) error {
	s.warnedIDs = append(s.warnedIDs, ids...)
	return nil
}

func (s *stubRepo) CreateOrder(ctx context.Context, o *model.Order) (int64, error) {
	return s.createOrderID, s.createOrderErr
}

func (s *stubRepo) GetOrderByCode(ctx context.Context, code string) (*model.Order, error) {
	return s.deliverOrder, nil
}

func (s *stubRepo) ListOrders(ctx context.Context, filter repository.OrderFilter) ([]model.Order, error) {
	return nil, nil
}

func (s *stubRepo) ListOrdersByUser(ctx context.Context, userID int64, page, perPage int) ([]model.Order, error) {
	return nil, nil
}

func (s *stubRepo) ListPendingOrderCodes(ctx context.Context, limit int) ([]string, error) {
	return s.pendingCodes, nil
}

func (s *stubRepo) CancelOrder(ctx context.Context, code string) error { return nil }

func (s *stubRepo) HasDeliveredProduct(ctx context.Context, userID, productID int64) (bool, error) {
	return s.hasDelivered, nil
}

func (s *stubRepo) Summary(ctx context.Context) (*model.Summary, error) { return nil, nil }

func (s *stubRepo) DeliverOrder(ctx context.Context, code, message string) (*model.Order, error) {
	s.deliveredCodes = append(s.deliveredCodes, code)
	return s.deliverOrder, s.deliverErr
}

func (s *stubRepo) CreateVoucher(ctx context.Context, v *model.Voucher) (int64, error) {
	return 0, nil
}

func (s *stubRepo) GetVoucherByCode(ctx context.Context, code string) (*model.Voucher, error) {
	return s.voucher, s.voucherErr
}

func (s *stubRepo) VoucherUsedByEmail(ctx context.Context, voucherID int64, email string) (bool, error) {
	return s.voucherUsed, nil
}

func (s *stubRepo) UpdateVoucher(ctx context.Context, v *model.Voucher) error { return nil }
func (s *stubRepo) DeleteVoucher(ctx context.Context, id int64) error         { return nil }

func (s *stubRepo) ListVouchers(ctx context.Context, page, perPage int) ([]model.Voucher, error) {
	return nil, nil
}

func (s *stubRepo) CreateReview(ctx context.Context, review *model.Review) (int64, error) {
	return s.createReviewID, s.createReviewErr
}

func (s *stubRepo) ListReviewsByProduct(ctx context.Context, productID int64, page, perPage int) ([]model.Review, error) {
	return nil, nil
}

func (s *stubRepo) UpsertCartItem(ctx context.Context, userID, productID int64, quantity int) error {
	return nil
}

func (s *stubRepo) ListCart(ctx context.Context, userID int64) ([]model.CartItem, error) {
	return s.cartItems, nil
}

func (s *stubRepo) DeleteCartItem(ctx context.Context, userID, productID int64) error { return nil }

func (s *stubRepo) ClearCart(ctx context.Context, userID int64) error {
	s.clearCartCalled = true
	return nil
}

type stubMailer struct {
	confirmations  int
	deliveries     int
	shortageTo     string
	shortageTitle  string
	expiryWarnings int
	expiryErr      error
	testErr        error
}

func (m *stubMailer) SendOrderConfirmation(to string, order *model.Order) error {
	m.confirmations++
	return nil
}

func (m *stubMailer) SendDelivery(to string, order *model.Order, message string) error {
	m.deliveries++
	return nil
}

func (m *stubMailer) SendShortageAlert(to, orderCode, productTitle string, requested, available int) error {
	m.shortageTo = to
	m.shortageTitle = productTitle
	return nil
}

func (m *stubMailer) SendExpiryWarning(to, productTitle, expire string) error {
	if m.expiryErr != nil {
		return m.expiryErr
	}
	m.expiryWarnings++
	return nil
}

func (m *stubMailer) SendTest(to string) error { return m.testErr }

func activeProduct(price int64) *model.Product {
	return &model.Product{
		ID:     1,
		Title:  "Netflix Premium",
		Price:  decimal.NewFromInt(price),
		Active: true,
	}
}

func TestRegister_PropagatesDuplicateError(t *testing.T) {
	repo := &stubRepo{createUserErr: repository.ErrUserExists}
	svc := NewService(repo, nil, "", false)

	_, err := svc.Register(context.Background(), "user@example.com", "User", "pass")
	if !errors.Is(err, repository.ErrUserExists) {
		t.Fatalf("expected ErrUserExists, got %v", err)
	}
}

func TestAuthenticate_WrongPassword(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("correct"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}

	repo := &stubRepo{
		getUser: &model.User{ID: 1, Email: "user@example.com", PasswordHash: hash},
	}
	svc := NewService(repo, nil, "", false)

	_, err = svc.Authenticate(context.Background(), "user@example.com", "wrong")
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestAuthenticate_UnknownUser(t *testing.T) {
	repo := &stubRepo{getUserErr: repository.ErrUserNotFound}
	svc := NewService(repo, nil, "", false)

	_, err := svc.Authenticate(context.Background(), "ghost@example.com", "pass")
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestCheckout_EmptyOrder(t *testing.T) {
	svc := NewService(&stubRepo{}, nil, "", false)

	_, err := svc.Checkout(context.Background(), CheckoutInput{Email: "buyer@example.com"})
	if !errors.Is(err, ErrEmptyOrder) {
		t.Fatalf("expected ErrEmptyOrder, got %v", err)
	}
}

func TestCheckout_InactiveProduct(t *testing.T) {
	p := activeProduct(100)
	p.Active = false
	svc := NewService(&stubRepo{product: p}, nil, "", false)

	_, err := svc.Checkout(context.Background(), CheckoutInput{
		Email: "buyer@example.com",
		Items: []CheckoutItem{{ProductID: 1, Quantity: 1}},
	})
	if !errors.Is(err, ErrProductInactive) {
		t.Fatalf("expected ErrProductInactive, got %v", err)
	}
}

func TestCheckout_UsesEffectivePrice(t *testing.T) {
	now := time.Now()
	p := activeProduct(200)
	p.FlashSale = &model.FlashSale{
		Type:     model.FlashSalePercentage,
		Value:    decimal.NewFromInt(50),
		StartsAt: now.Add(-time.Hour),
		EndsAt:   now.Add(time.Hour),
	}

	repo := &stubRepo{product: p, createOrderID: 7}
	svc := NewService(repo, nil, "", false)

	order, err := svc.Checkout(context.Background(), CheckoutInput{
		Email: "buyer@example.com",
		Items: []CheckoutItem{{ProductID: 1, Quantity: 2}},
	})
	if err != nil {
		t.Fatalf("Checkout error: %v", err)
	}

	if !order.Total.Equal(decimal.NewFromInt(200)) {
		t.Fatalf("Total = %s, want 200 (two items at sale price)", order.Total)
	}
	if !order.Items[0].UnitPrice.Equal(decimal.NewFromInt(100)) {
		t.Fatalf("UnitPrice = %s, want 100", order.Items[0].UnitPrice)
	}
	if order.Status != model.OrderStatusPending {
		t.Fatalf("Status = %s, want pending", order.Status)
	}
	if order.Code == "" || !strings.HasPrefix(order.Code, "AS-") {
		t.Fatalf("order code %q must have AS- prefix", order.Code)
	}
}

func TestCheckout_FallsBackToCartAndClearsIt(t *testing.T) {
	userID := int64(5)
	repo := &stubRepo{
		product:       activeProduct(100),
		createOrderID: 3,
		cartItems:     []model.CartItem{{ProductID: 1, Quantity: 3}},
	}
	svc := NewService(repo, nil, "", false)

	order, err := svc.Checkout(context.Background(), CheckoutInput{
		UserID: &userID,
		Email:  "buyer@example.com",
	})
	if err != nil {
		t.Fatalf("Checkout error: %v", err)
	}

	if !order.Total.Equal(decimal.NewFromInt(300)) {
		t.Fatalf("Total = %s, want 300", order.Total)
	}
	if !repo.clearCartCalled {
		t.Fatalf("cart must be cleared after checkout")
	}
}

func TestCheckout_AppliesVoucherDiscount(t *testing.T) {
	repo := &stubRepo{
		product:       activeProduct(100),
		createOrderID: 9,
		getUser:       &model.User{ID: 2, Email: "partner@example.com"},
		voucher: &model.Voucher{
			ID:        4,
			Code:      "SALE-10",
			OwnerID:   2,
			Type:      model.VoucherFixedReduce,
			Value:     decimal.NewFromInt(10),
			TimesLeft: 5,
			ExpiresAt: time.Now().Add(time.Hour),
		},
	}
	svc := NewService(repo, nil, "", false)

	order, err := svc.Checkout(context.Background(), CheckoutInput{
		Email:       "buyer@example.com",
		Items:       []CheckoutItem{{ProductID: 1, Quantity: 1}},
		VoucherCode: "sale-10",
	})
	if err != nil {
		t.Fatalf("Checkout error: %v", err)
	}

	if !order.Discount.Equal(decimal.NewFromInt(10)) {
		t.Fatalf("Discount = %s, want 10", order.Discount)
	}
	if !order.Total.Equal(decimal.NewFromInt(90)) {
		t.Fatalf("Total = %s, want 90", order.Total)
	}
	if order.VoucherID == nil || *order.VoucherID != 4 {
		t.Fatalf("VoucherID not recorded on order")
	}
}

func TestValidateVoucher_Matrix(t *testing.T) {
	base := func() *model.Voucher {
		return &model.Voucher{
			ID:        4,
			OwnerID:   2,
			Type:      model.VoucherFixedReduce,
			Value:     decimal.NewFromInt(10),
			TimesLeft: 5,
			ExpiresAt: time.Now().Add(time.Hour),
			MinTotal:  decimal.NewFromInt(50),
		}
	}

	tests := []struct {
		name    string
		mutate  func(v *model.Voucher, repo *stubRepo)
		wantErr error
	}{
		{
			name:    "expired",
			mutate:  func(v *model.Voucher, repo *stubRepo) { v.ExpiresAt = time.Now().Add(-time.Minute) },
			wantErr: ErrVoucherExpired,
		},
		{
			name:    "exhausted",
			mutate:  func(v *model.Voucher, repo *stubRepo) { v.TimesLeft = 0 },
			wantErr: ErrVoucherExhausted,
		},
		{
			name:    "below minimum",
			mutate:  func(v *model.Voucher, repo *stubRepo) { v.MinTotal = decimal.NewFromInt(500) },
			wantErr: ErrVoucherBelowMin,
		},
		{
			name: "own voucher",
			mutate: func(v *model.Voucher, repo *stubRepo) {
				repo.getUser = &model.User{ID: 2, Email: "buyer@example.com"}
			},
			wantErr: ErrVoucherOwnVoucher,
		},
		{
			name:    "already used",
			mutate:  func(v *model.Voucher, repo *stubRepo) { repo.voucherUsed = true },
			wantErr: ErrVoucherAlreadyUsed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := base()
			repo := &stubRepo{
				voucher: v,
				getUser: &model.User{ID: 2, Email: "partner@example.com"},
			}
			tt.mutate(v, repo)

			svc := NewService(repo, nil, "", false)
			_, err := svc.PreviewVoucher(context.Background(), v.Code, "buyer@example.com", decimal.NewFromInt(100))
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestDeliverOrder_Success(t *testing.T) {
	repo := &stubRepo{
		deliverOrder: &model.Order{
			Code:   "AS-123",
			Email:  "buyer@example.com",
			Status: model.OrderStatusDone,
		},
	}
	mail := &stubMailer{}
	svc := NewService(repo, mail, "admin@example.com", false)

	result, err := svc.DeliverOrder(context.Background(), "as-123", "")
	if err != nil {
		t.Fatalf("DeliverOrder error: %v", err)
	}
	if !result.Delivered {
		t.Fatalf("expected delivered result")
	}
	if mail.deliveries != 1 {
		t.Fatalf("deliveries = %d, want 1", mail.deliveries)
	}
}

func TestDeliverOrder_ShortageIsNotAnError(t *testing.T) {
	repo := &stubRepo{
		deliverErr: &repository.ShortageError{
			ProductTitle: "Netflix Premium",
			Requested:    3,
			Available:    1,
		},
	}
	mail := &stubMailer{}
	svc := NewService(repo, mail, "admin@example.com", false)

	result, err := svc.DeliverOrder(context.Background(), "AS-123", "")
	if err != nil {
		t.Fatalf("shortage must not be returned as error, got %v", err)
	}
	if result.Delivered {
		t.Fatalf("shortage must not mark order delivered")
	}
	if !strings.Contains(result.Shortage, "Netflix Premium") {
		t.Fatalf("shortage message %q must name the product", result.Shortage)
	}
	if mail.shortageTo != "admin@example.com" {
		t.Fatalf("shortage alert sent to %q, want admin address", mail.shortageTo)
	}
	if mail.deliveries != 0 {
		t.Fatalf("no delivery mail expected on shortage")
	}
}

func TestDeliverOrder_AlreadyDonePassesError(t *testing.T) {
	repo := &stubRepo{deliverErr: repository.ErrOrderNotDeliverable}
	svc := NewService(repo, nil, "", false)

	_, err := svc.DeliverOrder(context.Background(), "AS-123", "")
	if !errors.Is(err, repository.ErrOrderNotDeliverable) {
		t.Fatalf("expected ErrOrderNotDeliverable, got %v", err)
	}
}

func TestCreateReview_RequiresDeliveredProduct(t *testing.T) {
	svc := NewService(&stubRepo{hasDelivered: false}, nil, "", false)

	_, err := svc.CreateReview(context.Background(), &model.Review{ProductID: 1, UserID: 1, Rating: 5})
	if !errors.Is(err, ErrReviewNotAllowed) {
		t.Fatalf("expected ErrReviewNotAllowed, got %v", err)
	}
}

func TestPutCartItem_InactiveProduct(t *testing.T) {
	p := activeProduct(100)
	p.Active = false
	svc := NewService(&stubRepo{product: p}, nil, "", false)

	err := svc.PutCartItem(context.Background(), 1, 1, 2)
	if !errors.Is(err, ErrProductInactive) {
		t.Fatalf("expected ErrProductInactive, got %v", err)
	}
}

func TestProcessAutoDeliverBatch_DeliversPendingCodes(t *testing.T) {
	repo := &stubRepo{
		pendingCodes: []string{"AS-1", "AS-2"},
		deliverOrder: &model.Order{Code: "AS-1", Status: model.OrderStatusDone},
	}
	svc := NewService(repo, nil, "", true)

	svc.processAutoDeliverBatch(context.Background())

	if len(repo.deliveredCodes) != 2 {
		t.Fatalf("delivered %d orders, want 2", len(repo.deliveredCodes))
	}
}

func TestProcessExpiryWarnings_MarksSentOnly(t *testing.T) {
	expire := time.Now().Add(24 * time.Hour)
	repo := &stubRepo{
		expiring: []repository.ExpiringAccount{
			{AccountID: 7, Email: "buyer@example.com", ProductTitle: "Netflix Premium", Expire: expire},
		},
	}
	mail := &stubMailer{}
	svc := NewService(repo, mail, "admin@example.com", false)

	svc.processExpiryWarnings(context.Background())

	if mail.expiryWarnings != 1 {
		t.Fatalf("expiry warnings sent = %d, want 1", mail.expiryWarnings)
	}
	if len(repo.warnedIDs) != 1 || repo.warnedIDs[0] != 7 {
		t.Fatalf("warned ids = %v, want [7]", repo.warnedIDs)
	}
}

func TestProcessExpiryWarnings_SendFailureLeavesUnmarked(t *testing.T) {
	expire := time.Now().Add(24 * time.Hour)
	repo := &stubRepo{
		expiring: []repository.ExpiringAccount{
			{AccountID: 7, Email: "buyer@example.com", ProductTitle: "Netflix Premium", Expire: expire},
		},
	}
	mail := &stubMailer{expiryErr: errors.New("smtp down")}
	svc := NewService(repo, mail, "admin@example.com", false)

	svc.processExpiryWarnings(context.Background())

	if len(repo.warnedIDs) != 0 {
		t.Fatalf("warned ids = %v, want none while the warning email fails", repo.warnedIDs)
	}
}

func TestStartAutoDeliver_DisabledReturnsImmediately(t *testing.T) {
	svc := NewService(&stubRepo{}, nil, "", false)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	done := make(chan struct{})
	go func() {
		svc.StartAutoDeliver(ctx)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(200 * time.Millisecond):
		t.Fatalf("StartAutoDeliver did not return with autodeliver disabled")
	}
}

func TestSendTestEmail_WithoutMailer(t *testing.T) {
	svc := NewService(&stubRepo{}, nil, "", false)

	if err := svc.SendTestEmail("admin@example.com"); err == nil {
		t.Fatalf("expected error without configured mailer")
	}
}
