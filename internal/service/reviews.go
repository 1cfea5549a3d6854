package service

import (
	"context"

	"github.com/anphashop/shop-system/internal/model"
)

// CreateReview сохраняет отзыв. Отзыв разрешён только покупателю,
// получившему этот товар в выданном заказе.
func (s *Service) CreateReview(ctx context.Context, review *model.Review) (int64, error) {
	delivered, err := s.repo.HasDeliveredProduct(ctx, review.UserID, review.ProductID)
	if err != nil {
		return 0, err
	}
	if !delivered {
		return 0, ErrReviewNotAllowed
	}

	return s.repo.CreateReview(ctx, review)
}

// ListReviews возвращает отзывы о товаре.
func (s *Service) ListReviews(ctx context.Context, productID int64, page, perPage int) ([]model.Review, error) {
	return s.repo.ListReviewsByProduct(ctx, productID, page, perPage)
}

// CreateVoucher создаёт скидочный код.
func (s *Service) CreateVoucher(ctx context.Context, v *model.Voucher) (int64, error) {
	return s.repo.CreateVoucher(ctx, v)
}

// UpdateVoucher обновляет ваучер.
func (s *Service) UpdateVoucher(ctx context.Context, v *model.Voucher) error {
	return s.repo.UpdateVoucher(ctx, v)
}

// DeleteVoucher удаляет ваучер.
func (s *Service) DeleteVoucher(ctx context.Context, id int64) error {
	return s.repo.DeleteVoucher(ctx, id)
}

// ListVouchers возвращает страницу ваучеров.
func (s *Service) ListVouchers(ctx context.Context, page, perPage int) ([]model.Voucher, error) {
	return s.repo.ListVouchers(ctx, page, perPage)
}
