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

type productResponse struct {
	ID             int64  `json:"id"`
	Slug           string `json:"slug"`
	Title          string `json:"title"`
	Description    string `json:"description"`
	Price          string `json:"price"`
	EffectivePrice string `json:"effective_price"`
	OnSale         bool   `json:"on_sale"`
	Stock          int    `json:"stock"`
	Sold           int    `json:"sold"`
	Active         bool   `json:"active"`
	UpdatedAt      string `json:"updated_at"`
}

func toProductResponse(p *model.Product, now time.Time) productResponse {
	effective := p.EffectivePrice(now)
	return productResponse{
		ID:             p.ID,
		Slug:           p.Slug,
		Title:          p.Title,
		Description:    p.Description,
		Price:          p.Price.StringFixed(2),
		EffectivePrice: effective.StringFixed(2),
		OnSale:         !effective.Equal(p.Price),
		Stock:          p.Stock,
		Sold:           p.Sold,
		Active:         p.Active,
		UpdatedAt:      p.UpdatedAt.Format(time.RFC3339),
	}
}

func parseProductFilter(r *http.Request) repository.ProductFilter {
	q := r.URL.Query()

	filter := repository.ProductFilter{
		Search:  q.Get("search"),
		SortBy:  q.Get("sort"),
		SortAsc: q.Get("dir") == "asc",
		Page:    queryInt(r, "page"),
		PerPage: queryInt(r, "per_page"),
	}

	if v := q.Get("price_min"); v != "" {
		if d, err := decimal.NewFromString(v); err == nil {
			filter.PriceMin = &d
		}
	}
	if v := q.Get("price_max"); v != "" {
		if d, err := decimal.NewFromString(v); err == nil {
			filter.PriceMax = &d
		}
	}

	return filter
}

// ListProducts возвращает страницу каталога. Покупателям видны только активные товары.
func (h *Handler) ListProducts(w http.ResponseWriter, r *http.Request) {
	filter := parseProductFilter(r)
	filter.ActiveOnly = true

	products, err := h.service.ListProducts(r.Context(), filter)
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

// GetProduct возвращает карточку товара по slug.
func (h *Handler) GetProduct(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")
	if !validation.IsValidSlug(slug) {
		h.writeMessage(w, http.StatusBadRequest, "invalid product slug")
		return
	}

	p, err := h.service.GetProduct(r.Context(), slug)
	if err != nil {
		h.respondError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, toProductResponse(p, time.Now()))
}

type reviewResponse struct {
	ID        int64  `json:"id"`
	UserName  string `json:"user_name"`
	Rating    int    `json:"rating"`
	Content   string `json:"content"`
	CreatedAt string `json:"created_at"`
}

// ListReviews возвращает отзывы о товаре.
func (h *Handler) ListReviews(w http.ResponseWriter, r *http.Request) {
	productID, err := pathID(r, "id")
	if err != nil {
		h.writeMessage(w, http.StatusBadRequest, "invalid product id")
		return
	}

	reviews, err := h.service.ListReviews(r.Context(), productID, queryInt(r, "page"), queryInt(r, "per_page"))
	if err != nil {
		h.respondError(w, err)
		return
	}

	resp := make([]reviewResponse, 0, len(reviews))
	for _, rv := range reviews {
		resp = append(resp, reviewResponse{
			ID:        rv.ID,
			UserName:  rv.UserName,
			Rating:    rv.Rating,
			Content:   rv.Content,
			CreatedAt: rv.CreatedAt.Format(time.RFC3339),
		})
	}

	h.writeJSON(w, http.StatusOK, resp)
}

type createReviewRequest struct {
	Rating  int    `json:"rating"`
	Content string `json:"content"`
}

// CreateReview сохраняет отзыв текущего пользователя о товаре.
func (h *Handler) CreateReview(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.currentUserID(w, r)
	if !ok {
		return
	}

	productID, err := pathID(r, "id")
	if err != nil {
		h.writeMessage(w, http.StatusBadRequest, "invalid product id")
		return
	}

	var req createReviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if !validation.IsValidRating(req.Rating) {
		h.writeMessage(w, http.StatusBadRequest, "rating must be between 1 and 5")
		return
	}

	id, err := h.service.CreateReview(r.Context(), &model.Review{
		ProductID: productID,
		UserID:    userID,
		Rating:    req.Rating,
		Content:   req.Content,
	})
	if err != nil {
		h.respondError(w, err)
		return
	}

	h.writeJSON(w, http.StatusCreated, map[string]any{"id": id, "message": "review created"})
}
