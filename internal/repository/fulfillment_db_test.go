package repository

import (
	"context"
	"errors"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/anphashop/shop-system/internal/model"
)

// Тесты выдачи работают с настоящей БД и пропускаются без DATABASE_URI.

func newTestRepository(t *testing.T) *PostgresRepository {
	t.Helper()

	dsn := os.Getenv("DATABASE_URI")
	if dsn == "" {
		t.Skip("DATABASE_URI is not set")
	}

	repo, err := NewPostgresRepository(dsn)
	if err != nil {
		t.Fatalf("connect repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })

	return repo
}

func uniqueSuffix() string {
	return strconv.FormatInt(time.Now().UnixNano(), 36)
}

func createTestUser(t *testing.T, repo *PostgresRepository, email string, balance int64) int64 {
	t.Helper()

	ctx := context.Background()
	id, err := repo.CreateUser(ctx, email, "Test User", []byte("hash"))
	if err != nil {
		t.Fatalf("create user %s: %v", email, err)
	}
	if balance > 0 {
		if err := repo.TopUpBalance(ctx, id, decimal.NewFromInt(balance)); err != nil {
			t.Fatalf("top up user %d: %v", id, err)
		}
	}
	return id
}

func createTestProduct(t *testing.T, repo *PostgresRepository, slug, title string, price int64, freeAccounts int) int64 {
	t.Helper()

	ctx := context.Background()
	id, err := repo.CreateProduct(ctx, &model.Product{
		Slug:   slug,
		Title:  title,
		Price:  decimal.NewFromInt(price),
		Active: true,
	})
	if err != nil {
		t.Fatalf("create product %s: %v", slug, err)
	}

	for i := 0; i < freeAccounts; i++ {
		_, err := repo.CreateAccount(ctx, &model.Account{
			ProductID: id,
			Payload:   slug + "-account-" + strconv.Itoa(i),
			Active:    true,
			Renew:     time.Now().Add(90 * 24 * time.Hour),
			Duration:  model.Duration{Days: 30},
		})
		if err != nil {
			t.Fatalf("create account for %s: %v", slug, err)
		}
	}

	return id
}

func TestDeliverOrder_AssignsAccountsAndSettles(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()
	sfx := uniqueSuffix()

	buyerEmail := "buyer-" + sfx + "@example.com"
	buyerID := createTestUser(t, repo, buyerEmail, 500)

	partnerID := createTestUser(t, repo, "partner-"+sfx+"@example.com", 0)
	if err := repo.SetUserCommission(ctx, partnerID, model.CommissionFlat, decimal.NewFromInt(5)); err != nil {
		t.Fatalf("set commission: %v", err)
	}

	p1 := createTestProduct(t, repo, "netflix-"+sfx, "Netflix Premium", 100, 2)
	p2 := createTestProduct(t, repo, "spotify-"+sfx, "Spotify Family", 50, 1)

	voucherID, err := repo.CreateVoucher(ctx, &model.Voucher{
		Code:      "VC-" + sfx,
		OwnerID:   partnerID,
		Type:      model.VoucherFixedReduce,
		Value:     decimal.NewFromInt(10),
		TimesLeft: 5,
		ExpiresAt: time.Now().Add(24 * time.Hour),
	})
	if err != nil {
		t.Fatalf("create voucher: %v", err)
	}

	code := "AS-" + sfx
	_, err = repo.CreateOrder(ctx, &model.Order{
		Code:          code,
		UserID:        &buyerID,
		Email:         buyerEmail,
		Total:         decimal.NewFromInt(240),
		VoucherID:     &voucherID,
		Discount:      decimal.NewFromInt(10),
		PaymentMethod: model.PaymentBalance,
		Items: []model.OrderItem{
			{ProductID: p1, Quantity: 2, UnitPrice: decimal.NewFromInt(100)},
			{ProductID: p2, Quantity: 1, UnitPrice: decimal.NewFromInt(50)},
		},
	})
	if err != nil {
		t.Fatalf("create order: %v", err)
	}

	order, err := repo.DeliverOrder(ctx, code, "enjoy")
	if err != nil {
		t.Fatalf("DeliverOrder error: %v", err)
	}

	if order.Status != model.OrderStatusDone {
		t.Fatalf("status = %s, want done", order.Status)
	}
	if len(order.Items) != 2 {
		t.Fatalf("items = %d, want 2", len(order.Items))
	}
	if got := len(order.Items[0].Accounts); got != 2 {
		t.Fatalf("accounts on first item = %d, want 2", got)
	}
	if got := len(order.Items[1].Accounts); got != 1 {
		t.Fatalf("accounts on second item = %d, want 1", got)
	}
	for _, item := range order.Items {
		for _, acc := range item.Accounts {
			if acc.UsingUser == nil || *acc.UsingUser != buyerEmail {
				t.Fatalf("account %d not assigned to buyer", acc.ID)
			}
			if acc.Expire == nil {
				t.Fatalf("account %d has no expire time after delivery", acc.ID)
			}
		}
	}

	prod1, err := repo.GetProductByID(ctx, p1)
	if err != nil {
		t.Fatalf("get product: %v", err)
	}
	if prod1.Stock != 0 || prod1.Sold != 2 {
		t.Fatalf("first product stock/sold = %d/%d, want 0/2", prod1.Stock, prod1.Sold)
	}
	prod2, err := repo.GetProductByID(ctx, p2)
	if err != nil {
		t.Fatalf("get product: %v", err)
	}
	if prod2.Stock != 0 || prod2.Sold != 1 {
		t.Fatalf("second product stock/sold = %d/%d, want 0/1", prod2.Stock, prod2.Sold)
	}

	voucher, err := repo.GetVoucherByCode(ctx, "VC-"+sfx)
	if err != nil {
		t.Fatalf("get voucher: %v", err)
	}
	if voucher.TimesLeft != 4 {
		t.Fatalf("times_left = %d, want 4", voucher.TimesLeft)
	}
	if !voucher.Commission.Equal(decimal.NewFromInt(5)) {
		t.Fatalf("commission = %s, want 5", voucher.Commission)
	}
	used, err := repo.VoucherUsedByEmail(ctx, voucherID, buyerEmail)
	if err != nil {
		t.Fatalf("check voucher usage: %v", err)
	}
	if !used {
		t.Fatalf("voucher usage not recorded for buyer email")
	}

	buyer, err := repo.GetUserByID(ctx, buyerID)
	if err != nil {
		t.Fatalf("get buyer: %v", err)
	}
	if !buyer.Balance.Equal(decimal.NewFromInt(260)) {
		t.Fatalf("balance = %s, want 260", buyer.Balance)
	}

	// Повторная выдача того же заказа не проходит и не трогает счётчики.
	if _, err := repo.DeliverOrder(ctx, code, ""); !errors.Is(err, ErrOrderNotDeliverable) {
		t.Fatalf("second delivery error = %v, want ErrOrderNotDeliverable", err)
	}
	voucher, err = repo.GetVoucherByCode(ctx, "VC-"+sfx)
	if err != nil {
		t.Fatalf("get voucher: %v", err)
	}
	if voucher.TimesLeft != 4 {
		t.Fatalf("times_left after repeat = %d, want 4 (single decrement)", voucher.TimesLeft)
	}
}

func TestDeliverOrder_ShortageRollsBackEverything(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()
	sfx := uniqueSuffix()

	buyerEmail := "buyer-" + sfx + "@example.com"
	buyerID := createTestUser(t, repo, buyerEmail, 500)
	productID := createTestProduct(t, repo, "scarce-"+sfx, "Scarce Product", 100, 1)

	code := "AS-" + sfx
	_, err := repo.CreateOrder(ctx, &model.Order{
		Code:          code,
		UserID:        &buyerID,
		Email:         buyerEmail,
		Total:         decimal.NewFromInt(200),
		PaymentMethod: model.PaymentBalance,
		Items: []model.OrderItem{
			{ProductID: productID, Quantity: 2, UnitPrice: decimal.NewFromInt(100)},
		},
	})
	if err != nil {
		t.Fatalf("create order: %v", err)
	}

	_, err = repo.DeliverOrder(ctx, code, "")
	var shortage *ShortageError
	if !errors.As(err, &shortage) {
		t.Fatalf("error = %v, want ShortageError", err)
	}
	if shortage.Requested != 2 || shortage.Available != 1 {
		t.Fatalf("shortage = %d/%d, want requested 2 available 1", shortage.Requested, shortage.Available)
	}

	order, err := repo.GetOrderByCode(ctx, code)
	if err != nil {
		t.Fatalf("get order: %v", err)
	}
	if order.Status != model.OrderStatusPending {
		t.Fatalf("status = %s, want pending after shortage", order.Status)
	}

	product, err := repo.GetProductByID(ctx, productID)
	if err != nil {
		t.Fatalf("get product: %v", err)
	}
	if product.Stock != 1 || product.Sold != 0 {
		t.Fatalf("stock/sold = %d/%d, want 1/0 untouched", product.Stock, product.Sold)
	}

	accounts, err := repo.ListAccounts(ctx, AccountFilter{ProductID: &productID})
	if err != nil {
		t.Fatalf("list accounts: %v", err)
	}
	if len(accounts) != 1 || accounts[0].UsingUser != nil {
		t.Fatalf("account must stay unassigned after shortage")
	}

	buyer, err := repo.GetUserByID(ctx, buyerID)
	if err != nil {
		t.Fatalf("get buyer: %v", err)
	}
	if !buyer.Balance.Equal(decimal.NewFromInt(500)) {
		t.Fatalf("balance = %s, want 500 untouched", buyer.Balance)
	}
}

func TestDeliverOrder_InsufficientBalanceLeavesPending(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()
	sfx := uniqueSuffix()

	buyerEmail := "buyer-" + sfx + "@example.com"
	buyerID := createTestUser(t, repo, buyerEmail, 10)
	productID := createTestProduct(t, repo, "pricey-"+sfx, "Pricey Product", 100, 1)

	code := "AS-" + sfx
	_, err := repo.CreateOrder(ctx, &model.Order{
		Code:          code,
		UserID:        &buyerID,
		Email:         buyerEmail,
		Total:         decimal.NewFromInt(100),
		PaymentMethod: model.PaymentBalance,
		Items: []model.OrderItem{
			{ProductID: productID, Quantity: 1, UnitPrice: decimal.NewFromInt(100)},
		},
	})
	if err != nil {
		t.Fatalf("create order: %v", err)
	}

	if _, err := repo.DeliverOrder(ctx, code, ""); !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("error = %v, want ErrInsufficientBalance", err)
	}

	order, err := repo.GetOrderByCode(ctx, code)
	if err != nil {
		t.Fatalf("get order: %v", err)
	}
	if order.Status != model.OrderStatusPending {
		t.Fatalf("status = %s, want pending after failed debit", order.Status)
	}

	accounts, err := repo.ListAccounts(ctx, AccountFilter{ProductID: &productID})
	if err != nil {
		t.Fatalf("list accounts: %v", err)
	}
	if len(accounts) != 1 || accounts[0].UsingUser != nil {
		t.Fatalf("account assignment must roll back with the debit")
	}

	product, err := repo.GetProductByID(ctx, productID)
	if err != nil {
		t.Fatalf("get product: %v", err)
	}
	if product.Stock != 1 || product.Sold != 0 {
		t.Fatalf("stock/sold = %d/%d, want 1/0 untouched", product.Stock, product.Sold)
	}
}
