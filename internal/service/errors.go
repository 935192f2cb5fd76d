package service

import (
	"errors"

	"github.com/mmeshcher/kassa-terminal/internal/auth"
	"github.com/mmeshcher/kassa-terminal/internal/cart"
	"github.com/mmeshcher/kassa-terminal/internal/money"
	"github.com/mmeshcher/kassa-terminal/internal/payment"
	"github.com/mmeshcher/kassa-terminal/internal/pricing"
	"github.com/mmeshcher/kassa-terminal/internal/session"
	"github.com/mmeshcher/kassa-terminal/internal/validation"
)

// InputErrors — ошибки ввода кассира. Они ловятся до обращения к бэкенду.
var InputErrors = []error{
	auth.ErrInvalidCredentials,
	cart.ErrInvalidQuantity,
	pricing.ErrInvalidQuantity,
	pricing.ErrInvalidPrice,
	pricing.ErrInvalidTier,
	pricing.ErrInvalidCurrency,
	pricing.ErrInvalidSource,
	pricing.ErrSkladRequired,
	payment.ErrUnknownMethod,
	money.ErrInvalidRate,
	validation.ErrInvalidPhone,
	validation.ErrEmptyName,
	session.ErrInvalidCustomer,
}

// StateErrors — операции, недопустимые в текущем состоянии продажи.
var StateErrors = []error{
	session.ErrNoCustomer,
	session.ErrSaleNotStarted,
	session.ErrSaleInProgress,
	session.ErrNotBasket,
	session.ErrEmptyCart,
	cart.ErrLineNotFound,
}

// IsInput сообщает, что err — ошибка ввода.
func IsInput(err error) bool {
	return matchAny(err, InputErrors)
}

// IsState сообщает, что операция недопустима в текущем состоянии продажи.
func IsState(err error) bool {
	return matchAny(err, StateErrors)
}

// IsValidation сообщает, что ошибка поймана до бэкенда: ввод, состояние или недоплата.
func IsValidation(err error) bool {
	return IsInput(err) || IsState(err) || errors.Is(err, payment.ErrUnderpaid)
}

func matchAny(err error, targets []error) bool {
	for _, target := range targets {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
