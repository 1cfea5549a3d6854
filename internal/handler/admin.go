package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/anphashop/shop-system/internal/model"
	"github.com/anphashop/shop-system/internal/repository"
	"github.com/anphashop/shop-system/internal/validation"
)

type productRequest struct {
	Slug        string `json:"slug"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Price       string `json:"price"`
	Active      bool   `json:"active"`
	FlashSaleID *int64 `json:"flash_sale_id,omitempty"`
}

func (req *productRequest) toModel() (*model.Product, error) {
	price, err := decimal.NewFromString(req.Price)
	if err != nil || price.IsNegative() {
		return nil, errInvalidPrice
	}

	p := &model.Product{
		Slug:        req.Slug,
		Title:       req.Title,
		Description: req.Description,
		Price:       price,
		Active:      req.Active,
	}
	if req.FlashSaleID != nil {
		p.FlashSale = &model.FlashSale{ID: *req.FlashSaleID}
	}
	return p, nil
}

// AdminListProducts возвращает товары без фильтра по активности.
func (h *Handler) AdminListProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.service.ListProducts(r.Context(), parseProductFilter(r))
	if err != nil {
		h.respondError(w, err)
		return
	}

	now := time.Now()
	resp := make([]productResponse, 0, len(products))
	for i := range products {
		resp = append(resp, toProductResponse(&products[i], now))
	}

	h.writeJSON(w, http.StatusOK, resp)
}

// AdminCreateProduct создаёт товар каталога.
func (h *Handler) AdminCreateProduct(w http.ResponseWriter, r *http.Request) {
	var req productRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if !validation.IsValidSlug(req.Slug) || req.Title == "" {
		h.writeMessage(w, http.StatusBadRequest, "slug and title are required")
		return
	}

	p, err := req.toModel()
	if err != nil {
		h.writeMessage(w, http.StatusBadRequest, err.Error())
		return
	}

	id, err := h.service.CreateProduct(r.Context(), p)
	if err != nil {
		h.respondError(w, err)
		return
	}

	h.writeJSON(w, http.StatusCreated, map[string]any{"id": id, "message": "product created"})
}

// AdminUpdateProduct обновляет товар каталога.
func (h *Handler) AdminUpdateProduct(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeMessage(w, http.StatusBadRequest, "invalid product id")
		return
	}

	var req productRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if !validation.IsValidSlug(req.Slug) || req.Title == "" {
		h.writeMessage(w, http.StatusBadRequest, "slug and title are required")
		return
	}

	p, err := req.toModel()
	if err != nil {
		h.writeMessage(w, http.StatusBadRequest, err.Error())
		return
	}
	p.ID = id

	if err := h.service.UpdateProduct(r.Context(), p); err != nil {
		h.respondError(w, err)
		return
	}

	h.writeMessage(w, http.StatusOK, "product updated")
}

// AdminDeleteProduct удаляет товар каталога.
func (h *Handler) AdminDeleteProduct(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeMessage(w, http.StatusBadRequest, "invalid product id")
		return
	}

	if err := h.service.DeleteProduct(r.Context(), id); err != nil {
		h.respondError(w, err)
		return
	}

	h.writeMessage(w, http.StatusOK, "product deleted")
}

type flashSaleRequest struct {
	Type     string    `json:"type"`
	Value    string    `json:"value"`
	StartsAt time.Time `json:"starts_at"`
	EndsAt   time.Time `json:"ends_at"`
}

func (req *flashSaleRequest) toModel() (*model.FlashSale, error) {
	t := model.FlashSaleType(req.Type)
	if t != model.FlashSalePercentage && t != model.FlashSaleFixed {
		return nil, errInvalidDiscountType
	}

	value, err := decimal.NewFromString(req.Value)
	if err != nil || !value.IsPositive() {
		return nil, errInvalidDiscountValue
	}
	if !req.EndsAt.After(req.StartsAt) {
		return nil, errInvalidSaleWindow
	}

	return &model.FlashSale{
		Type:     t,
		Value:    value,
		StartsAt: req.StartsAt,
		EndsAt:   req.EndsAt,
	}, nil
}

// AdminCreateFlashSale создаёт распродажу.
func (h *Handler) AdminCreateFlashSale(w http.ResponseWriter, r *http.Request) {
	var req flashSaleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}

	f, err := req.toModel()
	if err != nil {
		h.writeMessage(w, http.StatusBadRequest, err.Error())
		return
	}

	id, err := h.service.CreateFlashSale(r.Context(), f)
	if err != nil {
		h.respondError(w, err)
		return
	}

	h.writeJSON(w, http.StatusCreated, map[string]any{"id": id, "message": "flash sale created"})
}

// AdminUpdateFlashSale обновляет распродажу.
func (h *Handler) AdminUpdateFlashSale(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeMessage(w, http.StatusBadRequest, "invalid flash sale id")
		return
	}

	var req flashSaleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}

	f, err := req.toModel()
	if err != nil {
		h.writeMessage(w, http.StatusBadRequest, err.Error())
		return
	}
	f.ID = id

	if err := h.service.UpdateFlashSale(r.Context(), f); err != nil {
		h.respondError(w, err)
		return
	}

	h.writeMessage(w, http.StatusOK, "flash sale updated")
}

// AdminDeleteFlashSale удаляет распродажу. Товары остаются в каталоге по базовой цене.
func (h *Handler) AdminDeleteFlashSale(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeMessage(w, http.StatusBadRequest, "invalid flash sale id")
		return
	}

	if err := h.service.DeleteFlashSale(r.Context(), id); err != nil {
		h.respondError(w, err)
		return
	}

	h.writeMessage(w, http.StatusOK, "flash sale deleted")
}

type accountRequest struct {
	ProductID       int64     `json:"product_id"`
	Payload         string    `json:"payload"`
	Active          bool      `json:"active"`
	Renew           time.Time `json:"renew_at"`
	DurationDays    int       `json:"duration_days"`
	DurationHours   int       `json:"duration_hours"`
	DurationMinutes int       `json:"duration_minutes"`
	DurationSeconds int       `json:"duration_seconds"`
}

func (req *accountRequest) toModel() *model.Account {
	return &model.Account{
		ProductID: req.ProductID,
		Payload:   req.Payload,
		Active:    req.Active,
		Renew:     req.Renew,
		Duration: model.Duration{
			Days:    req.DurationDays,
			Hours:   req.DurationHours,
			Minutes: req.DurationMinutes,
			Seconds: req.DurationSeconds,
		},
	}
}

type accountResponse struct {
	ID        int64  `json:"id"`
	ProductID int64  `json:"product_id"`
	Payload   string `json:"payload"`
	Active    bool   `json:"active"`
	UsingUser string `json:"using_user,omitempty"`
	Begin     string `json:"begin_at,omitempty"`
	Expire    string `json:"expire_at,omitempty"`
	Renew     string `json:"renew_at"`
	Available bool   `json:"available"`
}

func toAccountResponse(a *model.Account, now time.Time) accountResponse {
	resp := accountResponse{
		ID:        a.ID,
		ProductID: a.ProductID,
		Payload:   a.Payload,
		Active:    a.Active,
		Renew:     a.Renew.Format(time.RFC3339),
		Available: a.Available(now),
	}
	if a.UsingUser != nil {
		resp.UsingUser = *a.UsingUser
	}
	if a.Begin != nil {
		resp.Begin = a.Begin.Format(time.RFC3339)
	}
	if a.Expire != nil {
		resp.Expire = a.Expire.Format(time.RFC3339)
	}
	return resp
}

// AdminListAccounts возвращает страницу пула аккаунтов.
func (h *Handler) AdminListAccounts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	filter := repository.AccountFilter{
		ActiveOnly: q.Get("active") == "true",
		UsingUser:  q.Get("using_user"),
		Page:       queryInt(r, "page"),
		PerPage:    queryInt(r, "per_page"),
	}
	if v := int64(queryInt(r, "product_id")); v > 0 {
		filter.ProductID = &v
	}
	if v := q.Get("assigned"); v != "" {
		assigned := v == "true"
		filter.Assigned = &assigned
	}

	accounts, err := h.service.ListAccounts(r.Context(), filter)
	if err != nil {
		h.respondError(w, err)
		return
	}

	now := time.Now()
	resp := make([]accountResponse, 0, len(accounts))
	for i := range accounts {
		resp = append(resp, toAccountResponse(&accounts[i], now))
	}

	h.writeJSON(w, http.StatusOK, resp)
}

// AdminGetAccount возвращает аккаунт пула по идентификатору.
func (h *Handler) AdminGetAccount(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeMessage(w, http.StatusBadRequest, "invalid account id")
		return
	}

	a, err := h.service.GetAccount(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, toAccountResponse(a, time.Now()))
}

// AdminCreateAccount добавляет аккаунт в пул.
func (h *Handler) AdminCreateAccount(w http.ResponseWriter, r *http.Request) {
	var req accountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.ProductID <= 0 || req.Payload == "" {
		h.writeMessage(w, http.StatusBadRequest, "product_id and payload are required")
		return
	}

	id, err := h.service.CreateAccount(r.Context(), req.toModel())
	if err != nil {
		h.respondError(w, err)
		return
	}

	h.writeJSON(w, http.StatusCreated, map[string]any{"id": id, "message": "account created"})
}

// AdminUpdateAccount обновляет аккаунт пула.
func (h *Handler) AdminUpdateAccount(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeMessage(w, http.StatusBadRequest, "invalid account id")
		return
	}

	var req accountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}

	a := req.toModel()
	a.ID = id

	if err := h.service.UpdateAccount(r.Context(), a); err != nil {
		h.respondError(w, err)
		return
	}

	h.writeMessage(w, http.StatusOK, "account updated")
}

// AdminDeleteAccount удаляет аккаунт из пула.
func (h *Handler) AdminDeleteAccount(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeMessage(w, http.StatusBadRequest, "invalid account id")
		return
	}

	if err := h.service.DeleteAccount(r.Context(), id); err != nil {
		h.respondError(w, err)
		return
	}

	h.writeMessage(w, http.StatusOK, "account deleted")
}

func parseOrderFilter(r *http.Request) repository.OrderFilter {
	q := r.URL.Query()

	filter := repository.OrderFilter{
		Email:   q.Get("email"),
		Status:  model.OrderStatus(q.Get("status")),
		Page:    queryInt(r, "page"),
		PerPage: queryInt(r, "per_page"),
	}

	if v := q.Get("from"); v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			filter.From = &t
		}
	}
	if v := q.Get("to"); v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			filter.To = &t
		}
	}

	return filter
}

// AdminListOrders возвращает заказы с фильтрацией по email, статусу и датам.
func (h *Handler) AdminListOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.service.ListOrders(r.Context(), parseOrderFilter(r))
	if err != nil {
		h.respondError(w, err)
		return
	}

	resp := make([]orderResponse, 0, len(orders))
	for i := range orders {
		resp = append(resp, toOrderResponse(&orders[i]))
	}

	h.writeJSON(w, http.StatusOK, resp)
}

// AdminGetOrder возвращает любой заказ по коду.
func (h *Handler) AdminGetOrder(w http.ResponseWriter, r *http.Request) {
	order, err := h.service.GetOrder(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		h.respondError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, toOrderResponse(order))
}

type deliverRequest struct {
	Message string `json:"message,omitempty"`
}

// AdminDeliverOrder выдаёт аккаунты по заказу. При нехватке аккаунтов заказ
// остаётся в ожидании, а ответ содержит описание дефицита.
func (h *Handler) AdminDeliverOrder(w http.ResponseWriter, r *http.Request) {
	var req deliverRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			h.writeMessage(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}

	result, err := h.service.DeliverOrder(r.Context(), chi.URLParam(r, "code"), req.Message)
	if err != nil {
		h.respondError(w, err)
		return
	}

	if !result.Delivered {
		h.writeJSON(w, http.StatusConflict, map[string]any{
			"delivered": false,
			"message":   result.Shortage,
		})
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]any{
		"delivered": true,
		"order":     toOrderResponse(result.Order),
	})
}

// AdminCancelOrder отменяет ожидающий заказ.
func (h *Handler) AdminCancelOrder(w http.ResponseWriter, r *http.Request) {
	if err := h.service.CancelOrder(r.Context(), chi.URLParam(r, "code")); err != nil {
		h.respondError(w, err)
		return
	}

	h.writeMessage(w, http.StatusOK, "order cancelled")
}

type voucherRequest struct {
	Code      string    `json:"code"`
	OwnerID   int64     `json:"owner_id"`
	Type      string    `json:"type"`
	Value     string    `json:"value"`
	TimesLeft int       `json:"times_left"`
	ExpiresAt time.Time `json:"expires_at"`
	MinTotal  string    `json:"min_total"`
	MaxReduce string    `json:"max_reduce"`
}

func (req *voucherRequest) toModel() (*model.Voucher, error) {
	t := model.VoucherType(req.Type)
	if t != model.VoucherPercentage && t != model.VoucherFixed && t != model.VoucherFixedReduce {
		return nil, errInvalidVoucherType
	}

	value, err := decimal.NewFromString(req.Value)
	if err != nil || !value.IsPositive() {
		return nil, errInvalidDiscountValue
	}

	minTotal := decimal.Zero
	if req.MinTotal != "" {
		if minTotal, err = decimal.NewFromString(req.MinTotal); err != nil {
			return nil, errInvalidDiscountValue
		}
	}
	maxReduce := decimal.Zero
	if req.MaxReduce != "" {
		if maxReduce, err = decimal.NewFromString(req.MaxReduce); err != nil {
			return nil, errInvalidDiscountValue
		}
	}

	return &model.Voucher{
		Code:      validation.NormalizeCode(req.Code),
		OwnerID:   req.OwnerID,
		Type:      t,
		Value:     value,
		TimesLeft: req.TimesLeft,
		ExpiresAt: req.ExpiresAt,
		MinTotal:  minTotal,
		MaxReduce: maxReduce,
	}, nil
}

type voucherResponse struct {
	ID        int64  `json:"id"`
	Code      string `json:"code"`
	OwnerID   int64  `json:"owner_id"`
	Type      string `json:"type"`
	Value     string `json:"value"`
	TimesLeft int    `json:"times_left"`
	ExpiresAt string `json:"expires_at"`
	MinTotal  string `json:"min_total"`
	MaxReduce string `json:"max_reduce"`
}

// AdminListVouchers возвращает страницу ваучеров.
func (h *Handler) AdminListVouchers(w http.ResponseWriter, r *http.Request) {
	vouchers, err := h.service.ListVouchers(r.Context(), queryInt(r, "page"), queryInt(r, "per_page"))
	if err != nil {
		h.respondError(w, err)
		return
	}

	resp := make([]voucherResponse, 0, len(vouchers))
	for _, v := range vouchers {
		resp = append(resp, voucherResponse{
			ID:        v.ID,
			Code:      v.Code,
			OwnerID:   v.OwnerID,
			Type:      string(v.Type),
			Value:     v.Value.StringFixed(2),
			TimesLeft: v.TimesLeft,
			ExpiresAt: v.ExpiresAt.Format(time.RFC3339),
			MinTotal:  v.MinTotal.StringFixed(2),
			MaxReduce: v.MaxReduce.StringFixed(2),
		})
	}

	h.writeJSON(w, http.StatusOK, resp)
}

// AdminCreateVoucher создаёт ваучер.
func (h *Handler) AdminCreateVoucher(w http.ResponseWriter, r *http.Request) {
	var req voucherRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if !validation.IsValidVoucherCode(validation.NormalizeCode(req.Code)) {
		h.writeMessage(w, http.StatusBadRequest, "invalid voucher code")
		return
	}

	v, err := req.toModel()
	if err != nil {
		h.writeMessage(w, http.StatusBadRequest, err.Error())
		return
	}

	id, err := h.service.CreateVoucher(r.Context(), v)
	if err != nil {
		h.respondError(w, err)
		return
	}

	h.writeJSON(w, http.StatusCreated, map[string]any{"id": id, "message": "voucher created"})
}

// AdminUpdateVoucher обновляет ваучер.
func (h *Handler) AdminUpdateVoucher(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeMessage(w, http.StatusBadRequest, "invalid voucher id")
		return
	}

	var req voucherRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}

	v, err := req.toModel()
	if err != nil {
		h.writeMessage(w, http.StatusBadRequest, err.Error())
		return
	}
	v.ID = id

	if err := h.service.UpdateVoucher(r.Context(), v); err != nil {
		h.respondError(w, err)
		return
	}

	h.writeMessage(w, http.StatusOK, "voucher updated")
}

// AdminDeleteVoucher удаляет ваучер.
func (h *Handler) AdminDeleteVoucher(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeMessage(w, http.StatusBadRequest, "invalid voucher id")
		return
	}

	if err := h.service.DeleteVoucher(r.Context(), id); err != nil {
		h.respondError(w, err)
		return
	}

	h.writeMessage(w, http.StatusOK, "voucher deleted")
}

type topUpRequest struct {
	Amount string `json:"amount"`
}

// AdminTopUpBalance пополняет баланс пользователя. Применяется при подтверждении
// внешнего перевода.
func (h *Handler) AdminTopUpBalance(w http.ResponseWriter, r *http.Request) {
	userID, err := pathID(r, "id")
	if err != nil {
		h.writeMessage(w, http.StatusBadRequest, "invalid user id")
		return
	}

	var req topUpRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}

	amount, err := decimal.NewFromString(req.Amount)
	if err != nil || !amount.IsPositive() {
		h.writeMessage(w, http.StatusBadRequest, "amount must be a positive decimal")
		return
	}

	if err := h.service.TopUpBalance(r.Context(), userID, amount); err != nil {
		h.respondError(w, err)
		return
	}

	h.writeMessage(w, http.StatusOK, "balance updated")
}

type commissionRequest struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

// AdminSetCommission задаёт партнёрскую комиссию владельцу ваучеров.
func (h *Handler) AdminSetCommission(w http.ResponseWriter, r *http.Request) {
	userID, err := pathID(r, "id")
	if err != nil {
		h.writeMessage(w, http.StatusBadRequest, "invalid user id")
		return
	}

	var req commissionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}

	ct := model.CommissionType(req.Type)
	if ct != model.CommissionFlat && ct != model.CommissionPercentage {
		h.writeMessage(w, http.StatusBadRequest, "type must be flat or percentage")
		return
	}

	value, err := decimal.NewFromString(req.Value)
	if err != nil || value.IsNegative() {
		h.writeMessage(w, http.StatusBadRequest, "value must be a non-negative decimal")
		return
	}

	if err := h.service.SetUserCommission(r.Context(), userID, ct, value); err != nil {
		h.respondError(w, err)
		return
	}

	h.writeMessage(w, http.StatusOK, "commission updated")
}

// AdminSummary возвращает сводные показатели магазина.
func (h *Handler) AdminSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.service.Summary(r.Context())
	if err != nil {
		h.respondError(w, err)
		return
	}

	top := make([]map[string]any, 0, len(summary.TopProducts))
	for _, p := range summary.TopProducts {
		top = append(top, map[string]any{
			"product_id": p.ProductID,
			"title":      p.Title,
			"sold":       p.Sold,
		})
	}

	h.writeJSON(w, http.StatusOK, map[string]any{
		"revenue":        summary.Revenue.StringFixed(2),
		"pending_orders": summary.PendingOrders,
		"done_orders":    summary.DoneOrders,
		"cancel_orders":  summary.CancelOrders,
		"top_products":   top,
	})
}

type testEmailRequest struct {
	To string `json:"to"`
}

// AdminSendTestEmail отправляет тестовое письмо для проверки настроек SMTP.
func (h *Handler) AdminSendTestEmail(w http.ResponseWriter, r *http.Request) {
	var req testEmailRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if !validation.IsValidEmail(req.To) {
		h.writeMessage(w, http.StatusBadRequest, "valid recipient address is required")
		return
	}

	if err := h.service.SendTestEmail(req.To); err != nil {
		h.writeMessage(w, http.StatusBadGateway, "email delivery failed")
		return
	}

	h.writeMessage(w, http.StatusOK, "test email sent")
}
