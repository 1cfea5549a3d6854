package service

import (
	"context"
	"errors"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"

	"github.com/anphashop/shop-system/internal/model"
	"github.com/anphashop/shop-system/internal/repository"
)

const bcryptCost = 10

// Register регистрирует нового пользователя.
func (s *Service) Register(ctx context.Context, email, name, password string) (*model.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return nil, err
	}

	id, err := s.repo.CreateUser(ctx, email, name, hash)
	if err != nil {
		return nil, err
	}

	return s.repo.GetUserByID(ctx, id)
}

// Authenticate проверяет email и пароль пользователя.
func (s *Service) Authenticate(ctx context.Context, email, password string) (*model.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	u, err := s.repo.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	return u, nil
}

// GetUser возвращает пользователя по идентификатору.
func (s *Service) GetUser(ctx context.Context, id int64) (*model.User, error) {
	return s.repo.GetUserByID(ctx, id)
}

// TopUpBalance пополняет баланс пользователя на указанную сумму.
func (s *Service) TopUpBalance(ctx context.Context, userID int64, amount decimal.Decimal) error {
	if _, err := s.repo.GetUserByID(ctx, userID); err != nil {
		return err
	}
	return s.repo.TopUpBalance(ctx, userID, amount)
}

// SetUserCommission задаёт партнёрскую комиссию владельцу ваучеров.
func (s *Service) SetUserCommission(ctx context.Context, userID int64, ct model.CommissionType, value decimal.Decimal) error {
	if _, err := s.repo.GetUserByID(ctx, userID); err != nil {
		return err
	}
	return s.repo.SetUserCommission(ctx, userID, ct, value)
}
