package service

import (
	"context"
	"errors"
	"time"

	"github.com/anphashop/shop-system/internal/metrics"
	"github.com/anphashop/shop-system/internal/model"
	"github.com/anphashop/shop-system/internal/repository"
	"github.com/anphashop/shop-system/internal/validation"
)

// DeliveryResult описывает исход попытки выдачи заказа.
type DeliveryResult struct {
	Delivered bool
	Shortage  string
	Order     *model.Order
}

func (s *Service) sendMail(kind string, fn func() error) bool {
	if s.mailer == nil {
		return false
	}
	if err := fn(); err != nil {
		metrics.EmailErrors.Inc()
		return false
	}
	metrics.EmailsSent.WithLabelValues(kind).Inc()
	return true
}

// DeliverOrder выполняет выдачу заказа. Нехватка аккаунтов не является
// ошибкой вызова: она возвращается в результате, а администратору уходит
// письмо о необходимости пополнить склад.
func (s *Service) DeliverOrder(ctx context.Context, code, message string) (*DeliveryResult, error) {
	order, err := s.repo.DeliverOrder(ctx, validation.NormalizeCode(code), message)

	var shortage *repository.ShortageError
	if errors.As(err, &shortage) {
		metrics.DeliveryShortages.Inc()
		s.sendMail("shortage_alert", func() error {
			return s.mailer.SendShortageAlert(s.adminEmail, validation.NormalizeCode(code),
				shortage.ProductTitle, shortage.Requested, shortage.Available)
		})
		return &DeliveryResult{Shortage: shortage.Error()}, nil
	}
	if err != nil {
		return nil, err
	}

	metrics.OrdersDelivered.Inc()
	s.sendMail("delivery", func() error {
		return s.mailer.SendDelivery(order.Email, order, message)
	})

	return &DeliveryResult{Delivered: true, Order: order}, nil
}

// GetOrder возвращает заказ по коду.
func (s *Service) GetOrder(ctx context.Context, code string) (*model.Order, error) {
	return s.repo.GetOrderByCode(ctx, validation.NormalizeCode(code))
}

// ListUserOrders возвращает историю заказов пользователя.
func (s *Service) ListUserOrders(ctx context.Context, userID int64, page, perPage int) ([]model.Order, error) {
	return s.repo.ListOrdersByUser(ctx, userID, page, perPage)
}

// ListOrders возвращает страницу заказов по фильтру.
func (s *Service) ListOrders(ctx context.Context, filter repository.OrderFilter) ([]model.Order, error) {
	return s.repo.ListOrders(ctx, filter)
}

// CancelOrder отменяет заказ в статусе pending.
func (s *Service) CancelOrder(ctx context.Context, code string) error {
	return s.repo.CancelOrder(ctx, validation.NormalizeCode(code))
}

// Summary возвращает агрегированные показатели магазина.
func (s *Service) Summary(ctx context.Context) (*model.Summary, error) {
	return s.repo.Summary(ctx)
}

// SendTestEmail отправляет проверочное письмо для диагностики SMTP-настроек.
func (s *Service) SendTestEmail(to string) error {
	if s.mailer == nil {
		return errors.New("mailer not configured")
	}
	if err := s.mailer.SendTest(to); err != nil {
		metrics.EmailErrors.Inc()
		return err
	}
	metrics.EmailsSent.WithLabelValues("test").Inc()
	return nil
}

const (
	autoDeliverInterval  = 30 * time.Second
	autoDeliverBatchSize = 20
	expiryCheckInterval  = 12 * time.Hour
	expiryWarnWindow     = 72 * time.Hour
)

// StartAutoDeliver запускает фоновый процесс автоматической выдачи
// ожидающих заказов. Без включённого флага автодоставки не делает ничего.
func (s *Service) StartAutoDeliver(ctx context.Context) {
	if !s.autoDeliver {
		return
	}

	go func() {
		ticker := time.NewTicker(autoDeliverInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.processAutoDeliverBatch(ctx)
			}
		}
	}()
}

func (s *Service) processAutoDeliverBatch(ctx context.Context) {
	codes, err := s.repo.ListPendingOrderCodes(ctx, autoDeliverBatchSize)
	if err != nil {
		return
	}

	for _, code := range codes {
		// Нехватка обрабатывается внутри DeliverOrder, повторных попыток
		// в рамках одной итерации нет.
		_, _ = s.DeliverOrder(ctx, code, "")
	}
}

// StartExpiryWarnings запускает фоновый процесс предупреждений
// об истекающих аккаунтах.
func (s *Service) StartExpiryWarnings(ctx context.Context) {
	if s.mailer == nil {
		return
	}

	go func() {
		ticker := time.NewTicker(expiryCheckInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.processExpiryWarnings(ctx)
			}
		}
	}()
}

func (s *Service) processExpiryWarnings(ctx context.Context) {
	expiring, err := s.repo.ListExpiringAccounts(ctx, expiryWarnWindow)
	if err != nil {
		return
	}

	// Помечаются только аккаунты с успешно отправленным письмом: после сбоя
	// SMTP предупреждение уйдёт на следующей итерации.
	var warned []int64
	for _, e := range expiring {
		acc := e
		if s.sendMail("expiry_warning", func() error {
			return s.mailer.SendExpiryWarning(acc.Email, acc.ProductTitle, acc.Expire.Format(time.RFC3339))
		}) {
			warned = append(warned, acc.AccountID)
		}
	}

	if len(warned) > 0 {
		_ = s.repo.MarkExpiryWarned(ctx, warned)
	}
}
