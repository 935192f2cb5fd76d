package handler

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/mmeshcher/kassa-terminal/internal/auth"
	"github.com/mmeshcher/kassa-terminal/internal/backend"
	"github.com/mmeshcher/kassa-terminal/internal/cart"
	"github.com/mmeshcher/kassa-terminal/internal/money"
	"github.com/mmeshcher/kassa-terminal/internal/payment"
	"github.com/mmeshcher/kassa-terminal/internal/pricing"
	"github.com/mmeshcher/kassa-terminal/internal/service"
	"github.com/mmeshcher/kassa-terminal/internal/session"
	"github.com/mmeshcher/kassa-terminal/internal/validation"
)

const (
	msgBadRequest   = "Noto'g'ri so'rov."
	msgUnauthorized = "Avval tizimga kiring."
	msgInternal     = "Ichki xatolik."
	msgLinesNotLoad = "Savatdagi mahsulotlarni yuklab bo'lmadi."
)

type errorResponse struct {
	Error string `json:"error"`
}

// messages — тексты ошибок ввода и состояния для кассира.
var messages = []struct {
	err error
	msg string
}{
	{auth.ErrInvalidCredentials, "Login va parolni kiriting."},
	{session.ErrNoCustomer, "Mijozni tanlang."},
	{session.ErrInvalidCustomer, "Mijozni tanlang."},
	{session.ErrSaleNotStarted, "Savdo boshlanmagan."},
	{session.ErrSaleInProgress, "Savdo allaqachon boshlangan."},
	{session.ErrNotBasket, "Bu buyurtmani davom ettirib bo'lmaydi."},
	{session.ErrEmptyCart, "Savat bo'sh."},
	{cart.ErrInvalidQuantity, "Miqdor 1 dan kam bo'lmasligi kerak."},
	{cart.ErrLineNotFound, "Mahsulot savatda topilmadi."},
	{pricing.ErrInvalidQuantity, "Miqdor musbat bo'lishi kerak."},
	{pricing.ErrInvalidPrice, "Narx manfiy bo'lmasligi kerak."},
	{pricing.ErrInvalidTier, "Narx turi noto'g'ri."},
	{pricing.ErrInvalidCurrency, "Valyuta noto'g'ri."},
	{pricing.ErrInvalidSource, "Manba noto'g'ri."},
	{pricing.ErrSkladRequired, "Omborni tanlang."},
	{payment.ErrUnknownMethod, "To'lov turi noto'g'ri."},
	{payment.ErrUnderpaid, "To'lov summasi yetarli emas."},
	{money.ErrInvalidRate, "Kurs musbat bo'lishi kerak."},
	{validation.ErrInvalidPhone, "Telefon raqami noto'g'ri."},
	{validation.ErrEmptyName, "Mijoz ismini kiriting."},
}

func message(err error) string {
	for _, m := range messages {
		if errors.Is(err, m.err) {
			return m.msg
		}
	}
	return backend.Message(err)
}

// statusFor сопоставляет ошибку с HTTP-статусом.
func statusFor(err error) int {
	var apiErr *backend.APIError
	switch {
	case errors.Is(err, auth.ErrNotLoggedIn), errors.Is(err, backend.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, payment.ErrUnderpaid):
		return http.StatusUnprocessableEntity
	case service.IsState(err):
		return http.StatusConflict
	case service.IsInput(err):
		return http.StatusBadRequest
	case errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusUnauthorized:
		return http.StatusUnauthorized
	case errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound:
		return http.StatusNotFound
	default:
		return http.StatusBadGateway
	}
}

// writeError пишет ошибку в ответ. Ошибки бэкенда логируются; после потери
// авторизации cookie кассира удаляется.
func (h *Handler) writeError(w http.ResponseWriter, op string, err error) {
	status := statusFor(err)
	switch status {
	case http.StatusUnauthorized:
		h.authMiddleware.ClearAuthCookie(w)
		if errors.Is(err, auth.ErrNotLoggedIn) {
			writeJSON(w, status, errorResponse{Error: msgUnauthorized})
			return
		}
	case http.StatusBadGateway, http.StatusNotFound:
		h.logger.Warn(op+" error", zap.Int("status", status), zap.Error(err))
	}
	writeJSON(w, status, errorResponse{Error: message(err)})
}
