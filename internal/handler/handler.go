// Package handler содержит HTTP-обработчики API кассового терминала.
package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/mmeshcher/kassa-terminal/internal/backend"
	"github.com/mmeshcher/kassa-terminal/internal/metrics"
	"github.com/mmeshcher/kassa-terminal/internal/middleware"
	"github.com/mmeshcher/kassa-terminal/internal/model"
	"github.com/mmeshcher/kassa-terminal/internal/payment"
	"github.com/mmeshcher/kassa-terminal/internal/pricing"
	"github.com/mmeshcher/kassa-terminal/internal/service"
	"github.com/mmeshcher/kassa-terminal/internal/session"
)

const dateLayout = "2006-01-02"

// Service определяет контракт бизнес-логики, используемой HTTP-обработчиками.
type Service interface {
	Login(ctx context.Context, username, password string) (model.Cashier, error)
	Logout(ctx context.Context)
	Me() (model.Cashier, bool)

	ExchangeRate() float64
	SetExchangeRate(rate float64) error

	Products(ctx context.Context, f backend.ProductFilter) ([]model.Product, *backend.Pagination, error)
	Branches(ctx context.Context) ([]backend.Branch, error)
	Sklads(ctx context.Context) ([]backend.Sklad, error)
	Stock(ctx context.Context, productID, skladID int64) (*backend.ProductStock, error)
	SearchClients(ctx context.Context, search string) ([]model.Customer, error)
	CreateClient(ctx context.Context, name, phone string) (*model.Customer, error)
	Orders(ctx context.Context, f backend.OrderFilter) (*backend.OrderPage, error)
	Sales(ctx context.Context, from, to time.Time) ([]model.Sale, error)

	View() (session.View, error)
	SelectCustomer(c model.Customer) (session.View, error)
	ClearCustomer() (session.View, error)
	StartSale(ctx context.Context) (session.View, error)
	Resume(ctx context.Context, orderID int64) (session.View, error)
	Quote(ctx context.Context, req service.QuoteRequest) (pricing.Quote, error)
	AddLine(ctx context.Context, req service.QuoteRequest) (session.View, error)
	ChangeQuantity(ctx context.Context, lineID int64, delta float64) (session.View, error)
	SetQuantity(ctx context.Context, lineID int64, quantity float64) (session.View, error)
	RemoveLine(ctx context.Context, lineID int64) (session.View, error)
	SetPayment(m payment.Method, amount float64) (session.PaymentView, error)
	RemovePayment(m payment.Method) (session.PaymentView, error)
	UpdateDetails(ctx context.Context, note, driverInfo string) (session.View, error)
	Complete(ctx context.Context, note, driverInfo *string) (*service.Checkout, error)
	Cancel(ctx context.Context) (int64, error)
}

// Handler реализует HTTP-обработчики API кассового терминала.
type Handler struct {
	service        Service
	logger         *zap.Logger
	authMiddleware *middleware.AuthMiddleware
	metrics        *metrics.Registry
}

// NewHandler создаёт обработчик. Метрики необязательны.
func NewHandler(s Service, logger *zap.Logger, auth *middleware.AuthMiddleware, reg *metrics.Registry) *Handler {
	return &Handler{
		service:        s,
		logger:         logger,
		authMiddleware: auth,
		metrics:        reg,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: msgBadRequest})
		return false
	}
	return true
}

func pathID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: msgBadRequest})
		return 0, false
	}
	return id, true
}

type credentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Login авторизует кассира в бэкенде и выдаёт cookie.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	cashier, err := h.service.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		h.writeError(w, "login", err)
		return
	}

	h.authMiddleware.SetAuthCookie(w, cashier.ID)
	writeJSON(w, http.StatusOK, cashier)
}

// Logout завершает работу кассира.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	h.service.Logout(r.Context())
	h.authMiddleware.ClearAuthCookie(w)
	w.WriteHeader(http.StatusOK)
}

// Me возвращает текущего кассира.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	cashier, ok := h.service.Me()
	if !ok {
		h.unauthorized(w)
		return
	}
	writeJSON(w, http.StatusOK, cashier)
}

// requireCashier пропускает запрос, только если cookie выдан текущему кассиру терминала.
func (h *Handler) requireCashier(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := middleware.GetCashierIDFromContext(r.Context())
		cashier, loggedIn := h.service.Me()
		if !ok || !loggedIn || cashier.ID != id {
			h.unauthorized(w)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (h *Handler) unauthorized(w http.ResponseWriter) {
	h.authMiddleware.ClearAuthCookie(w)
	writeJSON(w, http.StatusUnauthorized, errorResponse{Error: msgUnauthorized})
}

type rateRequest struct {
	Rate float64 `json:"rate"`
}

// GetExchangeRate возвращает курс для новых продаж.
func (h *Handler) GetExchangeRate(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, rateRequest{Rate: h.service.ExchangeRate()})
}

// SetExchangeRate меняет курс для новых продаж.
func (h *Handler) SetExchangeRate(w http.ResponseWriter, r *http.Request) {
	var req rateRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.service.SetExchangeRate(req.Rate); err != nil {
		h.writeError(w, "set exchange rate", err)
		return
	}
	writeJSON(w, http.StatusOK, req)
}

type productsResponse struct {
	Products   []model.Product     `json:"products"`
	Pagination *backend.Pagination `json:"pagination,omitempty"`
}

// Products возвращает страницу каталога.
func (h *Handler) Products(w http.ResponseWriter, r *http.Request) {
	q := queryParser{values: r.URL.Query()}
	f := backend.ProductFilter{
		Search:  q.get("search"),
		Page:    q.intParam("page"),
		PerPage: q.intParam("per_page"),
		Branch:  q.int64Param("branch"),
		Model:   q.int64Param("model"),
		Type:    q.int64Param("type"),
	}
	if q.err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: msgBadRequest})
		return
	}

	products, pagination, err := h.service.Products(r.Context(), f)
	if err != nil {
		h.writeError(w, "list products", err)
		return
	}
	if products == nil {
		products = []model.Product{}
	}
	writeJSON(w, http.StatusOK, productsResponse{Products: products, Pagination: pagination})
}

// Branches возвращает разделы каталога.
func (h *Handler) Branches(w http.ResponseWriter, r *http.Request) {
	branches, err := h.service.Branches(r.Context())
	if err != nil {
		h.writeError(w, "list branches", err)
		return
	}
	if branches == nil {
		branches = []backend.Branch{}
	}
	writeJSON(w, http.StatusOK, branches)
}

// Sklads возвращает склады филиала.
func (h *Handler) Sklads(w http.ResponseWriter, r *http.Request) {
	sklads, err := h.service.Sklads(r.Context())
	if err != nil {
		h.writeError(w, "list sklads", err)
		return
	}
	if sklads == nil {
		sklads = []backend.Sklad{}
	}
	writeJSON(w, http.StatusOK, sklads)
}

// Stock возвращает остаток товара на складе.
func (h *Handler) Stock(w http.ResponseWriter, r *http.Request) {
	skladID, ok := pathID(w, r, "skladID")
	if !ok {
		return
	}
	productID, ok := pathID(w, r, "productID")
	if !ok {
		return
	}

	stock, err := h.service.Stock(r.Context(), productID, skladID)
	if err != nil {
		h.writeError(w, "product stock", err)
		return
	}
	writeJSON(w, http.StatusOK, stock)
}

// SearchClients ищет покупателей.
func (h *Handler) SearchClients(w http.ResponseWriter, r *http.Request) {
	clients, err := h.service.SearchClients(r.Context(), r.URL.Query().Get("search"))
	if err != nil {
		h.writeError(w, "search clients", err)
		return
	}
	if clients == nil {
		clients = []model.Customer{}
	}
	writeJSON(w, http.StatusOK, clients)
}

type clientRequest struct {
	Name  string `json:"name"`
	Phone string `json:"phone"`
}

// CreateClient создаёт покупателя.
func (h *Handler) CreateClient(w http.ResponseWriter, r *http.Request) {
	var req clientRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	c, err := h.service.CreateClient(r.Context(), req.Name, req.Phone)
	if err != nil {
		h.writeError(w, "create client", err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

// Orders возвращает продажи кассира для дашборда.
func (h *Handler) Orders(w http.ResponseWriter, r *http.Request) {
	q := queryParser{values: r.URL.Query()}
	f := backend.OrderFilter{
		Page:                    q.intParam("page"),
		PageSize:                q.intParam("page_size"),
		Search:                  q.get("search"),
		DateFrom:                q.dateParam("date_from"),
		DateTo:                  q.dateParam("date_to"),
		CreatedBy:               q.int64Param("created_by"),
		IsKarzinka:              q.boolParam("is_karzinka"),
		AllProductSummaMin:      q.floatParam("all_product_summa_min"),
		TotalDebtTodayClientMin: q.floatParam("total_debt_today_client_min"),
		TotalDebtClientMin:      q.floatParam("total_debt_client_min"),
		SummaTotalMin:           q.floatParam("summa_total_min"),
	}
	if q.err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: msgBadRequest})
		return
	}

	page, err := h.service.Orders(r.Context(), f)
	if err != nil {
		h.writeError(w, "list orders", err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

// Sales возвращает продажи из локального журнала. Без дат — за сегодня.
func (h *Handler) Sales(w http.ResponseWriter, r *http.Request) {
	now := time.Now()
	from, to := now, now

	q := r.URL.Query()
	if v := q.Get("from"); v != "" {
		t, err := time.ParseInLocation(dateLayout, v, time.Local)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: msgBadRequest})
			return
		}
		from = t
	}
	if v := q.Get("to"); v != "" {
		t, err := time.ParseInLocation(dateLayout, v, time.Local)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: msgBadRequest})
			return
		}
		to = t
	}

	sales, err := h.service.Sales(r.Context(), from, to)
	if err != nil {
		h.logger.Error("list sales error", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: msgInternal})
		return
	}
	if sales == nil {
		sales = []model.Sale{}
	}
	writeJSON(w, http.StatusOK, sales)
}

// queryParser разбирает параметры запроса и запоминает первую ошибку.
type queryParser struct {
	values url.Values
	err    error
}

func (q *queryParser) get(key string) string {
	return strings.TrimSpace(q.values.Get(key))
}

func (q *queryParser) int64Param(key string) int64 {
	raw := q.get(key)
	if raw == "" || q.err != nil {
		return 0
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		q.err = err
	}
	return v
}

func (q *queryParser) intParam(key string) int {
	return int(q.int64Param(key))
}

func (q *queryParser) floatParam(key string) float64 {
	raw := q.get(key)
	if raw == "" || q.err != nil {
		return 0
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		q.err = err
	}
	return v
}

func (q *queryParser) boolParam(key string) *bool {
	raw := q.get(key)
	if raw == "" || q.err != nil {
		return nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		q.err = err
		return nil
	}
	return &v
}

func (q *queryParser) dateParam(key string) string {
	raw := q.get(key)
	if raw == "" || q.err != nil {
		return ""
	}
	if _, err := time.Parse(dateLayout, raw); err != nil {
		q.err = err
	}
	return raw
}
