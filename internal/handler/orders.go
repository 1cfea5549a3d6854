package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/anphashop/shop-system/internal/middleware"
	"github.com/anphashop/shop-system/internal/model"
	"github.com/anphashop/shop-system/internal/service"
	"github.com/anphashop/shop-system/internal/validation"
)

type cartItemRequest struct {
	ProductID int64 `json:"product_id"`
	Quantity  int   `json:"quantity"`
}

type cartItemResponse struct {
	ProductID int64  `json:"product_id"`
	Title     string `json:"title"`
	Slug      string `json:"slug"`
	Quantity  int    `json:"quantity"`
	UnitPrice string `json:"unit_price"`
}

// GetCart возвращает корзину текущего пользователя.
func (h *Handler) GetCart(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.currentUserID(w, r)
	if !ok {
		return
	}

	items, err := h.service.GetCart(r.Context(), userID)
	if err != nil {
		h.respondError(w, err)
		return
	}

	resp := make([]cartItemResponse, 0, len(items))
	for _, item := range items {
		resp = append(resp, cartItemResponse{
			ProductID: item.ProductID,
			Title:     item.Title,
			Slug:      item.Slug,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice.StringFixed(2),
		})
	}

	h.writeJSON(w, http.StatusOK, resp)
}

// PutCartItem кладёт товар в корзину текущего пользователя.
func (h *Handler) PutCartItem(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.currentUserID(w, r)
	if !ok {
		return
	}

	var req cartItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.ProductID <= 0 || req.Quantity <= 0 {
		h.writeMessage(w, http.StatusBadRequest, "product_id and positive quantity are required")
		return
	}

	if err := h.service.PutCartItem(r.Context(), userID, req.ProductID, req.Quantity); err != nil {
		h.respondError(w, err)
		return
	}

	h.writeMessage(w, http.StatusOK, "cart updated")
}

// RemoveCartItem убирает товар из корзины текущего пользователя.
func (h *Handler) RemoveCartItem(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.currentUserID(w, r)
	if !ok {
		return
	}

	productID, err := pathID(r, "id")
	if err != nil {
		h.writeMessage(w, http.StatusBadRequest, "invalid product id")
		return
	}

	if err := h.service.RemoveCartItem(r.Context(), userID, productID); err != nil {
		h.respondError(w, err)
		return
	}

	h.writeMessage(w, http.StatusOK, "cart updated")
}

type checkoutRequest struct {
	Items         []cartItemRequest `json:"items,omitempty"`
	VoucherCode   string            `json:"voucher_code,omitempty"`
	PaymentMethod string            `json:"payment_method"`
}

type orderItemResponse struct {
	ProductID int64    `json:"product_id"`
	Title     string   `json:"title"`
	Quantity  int      `json:"quantity"`
	UnitPrice string   `json:"unit_price"`
	Accounts  []string `json:"accounts,omitempty"`
}

type orderResponse struct {
	Code          string              `json:"code"`
	Email         string              `json:"email"`
	Items         []orderItemResponse `json:"items"`
	Total         string              `json:"total"`
	Discount      string              `json:"discount"`
	PaymentMethod string              `json:"payment_method"`
	Status        string              `json:"status"`
	Message       string              `json:"message,omitempty"`
	CreatedAt     string              `json:"created_at"`
}

func toOrderResponse(o *model.Order) orderResponse {
	resp := orderResponse{
		Code:          o.Code,
		Email:         o.Email,
		Total:         o.Total.StringFixed(2),
		Discount:      o.Discount.StringFixed(2),
		PaymentMethod: string(o.PaymentMethod),
		Status:        string(o.Status),
		Message:       o.Message,
		CreatedAt:     o.CreatedAt.Format(time.RFC3339),
	}

	for _, item := range o.Items {
		ir := orderItemResponse{
			ProductID: item.ProductID,
			Title:     item.Title,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice.StringFixed(2),
		}
		for _, acc := range item.Accounts {
			ir.Accounts = append(ir.Accounts, acc.Payload)
		}
		resp.Items = append(resp.Items, ir)
	}

	return resp
}

// Checkout оформляет заказ текущего пользователя.
func (h *Handler) Checkout(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.currentUserID(w, r)
	if !ok {
		return
	}

	var req checkoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}

	method := model.PaymentMethod(req.PaymentMethod)
	if method != model.PaymentBalance && method != model.PaymentTransfer {
		h.writeMessage(w, http.StatusBadRequest, "unknown payment method")
		return
	}

	user, err := h.service.GetUser(r.Context(), userID)
	if err != nil {
		h.respondError(w, err)
		return
	}

	in := service.CheckoutInput{
		UserID:        &userID,
		Email:         user.Email,
		VoucherCode:   req.VoucherCode,
		PaymentMethod: method,
	}
	for _, item := range req.Items {
		if item.ProductID <= 0 || item.Quantity <= 0 {
			h.writeMessage(w, http.StatusBadRequest, "product_id and positive quantity are required")
			return
		}
		in.Items = append(in.Items, service.CheckoutItem{ProductID: item.ProductID, Quantity: item.Quantity})
	}

	order, err := h.service.Checkout(r.Context(), in)
	if err != nil {
		h.respondError(w, err)
		return
	}

	h.writeJSON(w, http.StatusCreated, toOrderResponse(order))
}

type voucherPreviewRequest struct {
	Code  string `json:"code"`
	Total string `json:"total"`
}

// PreviewVoucher проверяет применимость ваучера к сумме и возвращает скидку.
func (h *Handler) PreviewVoucher(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.currentUserID(w, r)
	if !ok {
		return
	}

	var req voucherPreviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if !validation.IsValidVoucherCode(validation.NormalizeCode(req.Code)) {
		h.writeMessage(w, http.StatusUnprocessableEntity, "invalid voucher code")
		return
	}

	total, err := decimal.NewFromString(req.Total)
	if err != nil || total.IsNegative() {
		h.writeMessage(w, http.StatusBadRequest, "invalid total")
		return
	}

	user, err := h.service.GetUser(r.Context(), userID)
	if err != nil {
		h.respondError(w, err)
		return
	}

	discount, err := h.service.PreviewVoucher(r.Context(), req.Code, user.Email, total)
	if err != nil {
		h.respondError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]any{
		"discount": discount.StringFixed(2),
		"message":  "voucher applicable",
	})
}

// ListMyOrders возвращает историю заказов текущего пользователя.
func (h *Handler) ListMyOrders(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.currentUserID(w, r)
	if !ok {
		return
	}

	orders, err := h.service.ListUserOrders(r.Context(), userID, queryInt(r, "page"), queryInt(r, "per_page"))
	if err != nil {
		h.respondError(w, err)
		return
	}

	if len(orders) == 0 {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	resp := make([]orderResponse, 0, len(orders))
	for i := range orders {
		resp = append(resp, toOrderResponse(&orders[i]))
	}

	h.writeJSON(w, http.StatusOK, resp)
}

// GetMyOrder возвращает заказ текущего пользователя по коду.
func (h *Handler) GetMyOrder(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.currentUserID(w, r)
	if !ok {
		return
	}

	order, err := h.service.GetOrder(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		h.respondError(w, err)
		return
	}

	// Чужой заказ не раскрывается даже своему владельцу по роли user.
	role, _ := middleware.GetRoleFromContext(r.Context())
	if role != middleware.RoleAdmin && (order.UserID == nil || *order.UserID != userID) {
		h.writeMessage(w, http.StatusNotFound, "order not found")
		return
	}

	h.writeJSON(w, http.StatusOK, toOrderResponse(order))
}
