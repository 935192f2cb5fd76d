package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/mmeshcher/kassa-terminal/internal/cart"
	"github.com/mmeshcher/kassa-terminal/internal/model"
	"github.com/mmeshcher/kassa-terminal/internal/money"
	"github.com/mmeshcher/kassa-terminal/internal/payment"
	"github.com/mmeshcher/kassa-terminal/internal/pricing"
	"github.com/mmeshcher/kassa-terminal/internal/service"
	"github.com/mmeshcher/kassa-terminal/internal/session"
)

// sessionResponse — снимок продажи; Warning заполняется, если корзина не загрузилась.
type sessionResponse struct {
	session.View
	Warning string `json:"warning,omitempty"`
}

// writeSession отвечает снимком продажи. Незагруженная корзина не считается ошибкой:
// продажа открыта с пустой корзиной, кассир получает предупреждение.
func (h *Handler) writeSession(w http.ResponseWriter, op string, v session.View, err error) {
	var loadErr *cart.LoadError
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, sessionResponse{View: v})
	case errors.As(err, &loadErr):
		writeJSON(w, http.StatusOK, sessionResponse{View: v, Warning: msgLinesNotLoad})
	default:
		h.writeError(w, op, err)
	}
}

// GetSession возвращает текущую продажу.
func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	v, err := h.service.View()
	h.writeSession(w, "get session", v, err)
}

type customerRequest struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Phone string `json:"phone"`
}

// SelectCustomer выбирает покупателя.
func (h *Handler) SelectCustomer(w http.ResponseWriter, r *http.Request) {
	var req customerRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	v, err := h.service.SelectCustomer(model.Customer{ID: req.ID, Name: req.Name, Phone: req.Phone})
	h.writeSession(w, "select customer", v, err)
}

// ClearCustomer снимает выбор покупателя.
func (h *Handler) ClearCustomer(w http.ResponseWriter, r *http.Request) {
	v, err := h.service.ClearCustomer()
	h.writeSession(w, "clear customer", v, err)
}

// StartSale открывает продажу.
func (h *Handler) StartSale(w http.ResponseWriter, r *http.Request) {
	v, err := h.service.StartSale(r.Context())
	h.writeSession(w, "start sale", v, err)
}

// ResumeSale возвращается к открытой корзине.
func (h *Handler) ResumeSale(w http.ResponseWriter, r *http.Request) {
	orderID, ok := pathID(w, r, "orderID")
	if !ok {
		return
	}
	v, err := h.service.Resume(r.Context(), orderID)
	h.writeSession(w, "resume sale", v, err)
}

type lineRequest struct {
	ProductID int64           `json:"product_id"`
	Tier      model.PriceTier `json:"tier"`
	Currency  model.Currency  `json:"currency"`
	Price     *float64        `json:"price"`
	Quantity  float64         `json:"quantity"`
	Source    model.Source    `json:"source"`
	SkladID   int64           `json:"sklad_id"`
}

func (l lineRequest) quote() service.QuoteRequest {
	return service.QuoteRequest{
		ProductID: l.ProductID,
		Request: pricing.Request{
			Tier:     l.Tier,
			Currency: l.Currency,
			Price:    l.Price,
			Quantity: l.Quantity,
			Source:   l.Source,
			SkladID:  l.SkladID,
		},
	}
}

// Quote рассчитывает цену товара в форме добавления.
func (h *Handler) Quote(w http.ResponseWriter, r *http.Request) {
	var req lineRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	q, err := h.service.Quote(r.Context(), req.quote())
	if err != nil {
		h.writeError(w, "quote", err)
		return
	}
	writeJSON(w, http.StatusOK, q)
}

// AddLine добавляет товар в корзину.
func (h *Handler) AddLine(w http.ResponseWriter, r *http.Request) {
	var req lineRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	v, err := h.service.AddLine(r.Context(), req.quote())
	h.writeSession(w, "add line", v, err)
}

type lineUpdateRequest struct {
	Delta    *float64 `json:"delta"`
	Quantity *float64 `json:"quantity"`
}

// UpdateLine меняет количество строки: на delta или до quantity.
func (h *Handler) UpdateLine(w http.ResponseWriter, r *http.Request) {
	lineID, ok := pathID(w, r, "lineID")
	if !ok {
		return
	}
	var req lineUpdateRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	var (
		v   session.View
		err error
	)
	switch {
	case req.Delta != nil:
		v, err = h.service.ChangeQuantity(r.Context(), lineID, *req.Delta)
	case req.Quantity != nil:
		v, err = h.service.SetQuantity(r.Context(), lineID, *req.Quantity)
	default:
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: msgBadRequest})
		return
	}
	h.writeSession(w, "update line", v, err)
}

// RemoveLine удаляет строку корзины.
func (h *Handler) RemoveLine(w http.ResponseWriter, r *http.Request) {
	lineID, ok := pathID(w, r, "lineID")
	if !ok {
		return
	}
	v, err := h.service.RemoveLine(r.Context(), lineID)
	h.writeSession(w, "remove line", v, err)
}

// paymentRequest принимает сумму числом или строкой; нечисловой ввод даёт 0.
type paymentRequest struct {
	Amount money.Decimal `json:"amount"`
}

// SetPayment задаёт сумму по способу оплаты.
func (h *Handler) SetPayment(w http.ResponseWriter, r *http.Request) {
	var req paymentRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	pv, err := h.service.SetPayment(payment.Method(chi.URLParam(r, "method")), req.Amount.Float())
	if err != nil {
		h.writeError(w, "set payment", err)
		return
	}
	writeJSON(w, http.StatusOK, pv)
}

// RemovePayment обнуляет способ оплаты.
func (h *Handler) RemovePayment(w http.ResponseWriter, r *http.Request) {
	pv, err := h.service.RemovePayment(payment.Method(chi.URLParam(r, "method")))
	if err != nil {
		h.writeError(w, "remove payment", err)
		return
	}
	writeJSON(w, http.StatusOK, pv)
}

type detailsRequest struct {
	Note       *string `json:"note"`
	DriverInfo *string `json:"driver_info"`
}

// UpdateDetails сохраняет примечание и данные водителя.
func (h *Handler) UpdateDetails(w http.ResponseWriter, r *http.Request) {
	var req detailsRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	current, err := h.service.View()
	if err != nil {
		h.writeError(w, "update details", err)
		return
	}
	note, driverInfo := current.Note, current.DriverInfo
	if req.Note != nil {
		note = *req.Note
	}
	if req.DriverInfo != nil {
		driverInfo = *req.DriverInfo
	}
	v, err := h.service.UpdateDetails(r.Context(), note, driverInfo)
	h.writeSession(w, "update details", v, err)
}

// Complete закрывает продажу и возвращает чек.
func (h *Handler) Complete(w http.ResponseWriter, r *http.Request) {
	var req detailsRequest
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: msgBadRequest})
		return
	}
	out, err := h.service.Complete(r.Context(), req.Note, req.DriverInfo)
	if err != nil {
		h.writeError(w, "complete sale", err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

type cancelResponse struct {
	OrderID int64 `json:"order_id"`
}

// Cancel отменяет открытую продажу.
func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request) {
	orderID, err := h.service.Cancel(r.Context())
	if err != nil {
		h.writeError(w, "cancel sale", err)
		return
	}
	writeJSON(w, http.StatusOK, cancelResponse{OrderID: orderID})
}
