package service

import (
	"context"

	"github.com/anphashop/shop-system/internal/model"
	"github.com/anphashop/shop-system/internal/repository"
)

// ListProducts возвращает страницу каталога.
func (s *Service) ListProducts(ctx context.Context, filter repository.ProductFilter) ([]model.Product, error) {
	return s.repo.ListProducts(ctx, filter)
}

// GetProduct возвращает товар по идентификатору в адресной строке.
func (s *Service) GetProduct(ctx context.Context, slug string) (*model.Product, error) {
	return s.repo.GetProductBySlug(ctx, slug)
}

// CreateProduct создаёт товар каталога.
func (s *Service) CreateProduct(ctx context.Context, p *model.Product) (int64, error) {
	return s.repo.CreateProduct(ctx, p)
}

// UpdateProduct обновляет карточку товара.
func (s *Service) UpdateProduct(ctx context.Context, p *model.Product) error {
	return s.repo.UpdateProduct(ctx, p)
}

// DeleteProduct удаляет товар.
func (s *Service) DeleteProduct(ctx context.Context, id int64) error {
	return s.repo.DeleteProduct(ctx, id)
}

// CreateFlashSale создаёт распродажу.
func (s *Service) CreateFlashSale(ctx context.Context, f *model.FlashSale) (int64, error) {
	return s.repo.CreateFlashSale(ctx, f)
}

// UpdateFlashSale обновляет распродажу.
func (s *Service) UpdateFlashSale(ctx context.Context, f *model.FlashSale) error {
	return s.repo.UpdateFlashSale(ctx, f)
}

// DeleteFlashSale удаляет распродажу.
func (s *Service) DeleteFlashSale(ctx context.Context, id int64) error {
	return s.repo.DeleteFlashSale(ctx, id)
}

// CreateAccount добавляет аккаунт в пул.
func (s *Service) CreateAccount(ctx context.Context, a *model.Account) (int64, error) {
	if _, err := s.repo.GetProductByID(ctx, a.ProductID); err != nil {
		return 0, err
	}
	return s.repo.CreateAccount(ctx, a)
}

// GetAccount возвращает аккаунт пула по идентификатору.
func (s *Service) GetAccount(ctx context.Context, id int64) (*model.Account, error) {
	return s.repo.GetAccountByID(ctx, id)
}

// UpdateAccount изменяет аккаунт пула.
func (s *Service) UpdateAccount(ctx context.Context, a *model.Account) error {
	return s.repo.UpdateAccount(ctx, a)
}

// DeleteAccount удаляет аккаунт из пула.
func (s *Service) DeleteAccount(ctx context.Context, id int64) error {
	return s.repo.DeleteAccount(ctx, id)
}

// ListAccounts возвращает страницу пула аккаунтов.
func (s *Service) ListAccounts(ctx context.Context, filter repository.AccountFilter) ([]model.Account, error) {
	return s.repo.ListAccounts(ctx, filter)
}
