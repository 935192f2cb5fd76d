package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/mmeshcher/kassa-terminal/internal/cart"
	"github.com/mmeshcher/kassa-terminal/internal/model"
	"github.com/mmeshcher/kassa-terminal/internal/payment"
	"github.com/mmeshcher/kassa-terminal/internal/pricing"
	"github.com/mmeshcher/kassa-terminal/internal/receipt"
	"github.com/mmeshcher/kassa-terminal/internal/session"
)

// Checkout — результат закрытия продажи.
type Checkout struct {
	Order   model.Order      `json:"order"`
	Sale    model.Sale       `json:"sale"`
	Receipt *receipt.Receipt `json:"receipt,omitempty"`
}

// View возвращает снимок текущей продажи.
func (s *Service) View() (session.View, error) {
	sess, err := s.current()
	if err != nil {
		return session.View{}, err
	}
	return sess.View(), nil
}

// SelectCustomer выбирает покупателя.
func (s *Service) SelectCustomer(c model.Customer) (session.View, error) {
	return s.apply(func(sess *session.Session) error {
		return sess.SelectCustomer(c)
	})
}

// ClearCustomer снимает выбор покупателя.
func (s *Service) ClearCustomer() (session.View, error) {
	return s.apply(func(sess *session.Session) error {
		return sess.ClearCustomer()
	})
}

// StartSale открывает заказ по текущему курсу.
func (s *Service) StartSale(ctx context.Context) (session.View, error) {
	return s.apply(func(sess *session.Session) error {
		_, err := sess.StartSale(ctx)
		return err
	})
}

// Resume возвращается к открытой корзине. Если строки не загрузились,
// продажа открыта с пустой корзиной и возвращается *cart.LoadError.
func (s *Service) Resume(ctx context.Context, orderID int64) (session.View, error) {
	return s.apply(func(sess *session.Session) error {
		_, err := sess.Resume(ctx, orderID)
		return err
	})
}

// QuoteRequest — расчёт цены товара в форме добавления.
type QuoteRequest struct {
	ProductID int64
	pricing.Request
}

// Quote рассчитывает цену товара по курсу открытой продажи, а без неё — по текущему курсу.
func (s *Service) Quote(ctx context.Context, req QuoteRequest) (pricing.Quote, error) {
	sess, err := s.current()
	if err != nil {
		return pricing.Quote{}, err
	}

	p, err := s.api.GetProduct(ctx, req.ProductID)
	if err != nil {
		return pricing.Quote{}, fmt.Errorf("quote product %d: %w", req.ProductID, err)
	}

	rate, ok := sess.ExchangeRate()
	if !ok {
		rate = s.rates.Current()
	}
	return pricing.Resolve(*p, rate, req.Request)
}

// AddLine добавляет товар в корзину открытой продажи по параметрам формы.
func (s *Service) AddLine(ctx context.Context, req QuoteRequest) (session.View, error) {
	return s.apply(func(sess *session.Session) error {
		p, err := s.api.GetProduct(ctx, req.ProductID)
		if err != nil {
			return fmt.Errorf("add product %d: %w", req.ProductID, err)
		}

		rate, ok := sess.ExchangeRate()
		if !ok {
			return session.ErrSaleNotStarted
		}
		editor, err := pricing.NewEditorFor(*p, rate, req.Request)
		if err != nil {
			return err
		}
		sel, err := editor.Confirm()
		if err != nil {
			return err
		}
		return sess.AddProduct(ctx, sel)
	})
}

// ChangeQuantity меняет количество строки на delta.
func (s *Service) ChangeQuantity(ctx context.Context, lineID int64, delta float64) (session.View, error) {
	return s.apply(func(sess *session.Session) error {
		return sess.ChangeQuantity(ctx, lineID, delta)
	})
}

// SetQuantity задаёт количество строки.
func (s *Service) SetQuantity(ctx context.Context, lineID int64, quantity float64) (session.View, error) {
	return s.apply(func(sess *session.Session) error {
		return sess.SetQuantity(ctx, lineID, quantity)
	})
}

// RemoveLine удаляет строку корзины.
func (s *Service) RemoveLine(ctx context.Context, lineID int64) (session.View, error) {
	return s.apply(func(sess *session.Session) error {
		return sess.RemoveLine(ctx, lineID)
	})
}

// SetPayment задаёт сумму по способу оплаты.
func (s *Service) SetPayment(m payment.Method, amount float64) (session.PaymentView, error) {
	sess, err := s.current()
	if err != nil {
		return session.PaymentView{}, err
	}
	return sess.SetPayment(m, amount)
}

// RemovePayment обнуляет способ оплаты.
func (s *Service) RemovePayment(m payment.Method) (session.PaymentView, error) {
	sess, err := s.current()
	if err != nil {
		return session.PaymentView{}, err
	}
	return sess.RemovePayment(m)
}

// UpdateDetails сохраняет примечание и данные водителя.
func (s *Service) UpdateDetails(ctx context.Context, note, driverInfo string) (session.View, error) {
	return s.apply(func(sess *session.Session) error {
		return sess.UpdateDetails(ctx, note, driverInfo)
	})
}

// Complete закрывает продажу. Примечание и данные водителя, если переданы,
// уходят тем же PATCH, что и итоги оплаты. Продажа пишется в журнал,
// ошибка журнала только логируется.
func (s *Service) Complete(ctx context.Context, note, driverInfo *string) (*Checkout, error) {
	sess, err := s.current()
	if err != nil {
		return nil, err
	}

	res, err := sess.Complete(ctx, session.Details{Note: note, DriverInfo: driverInfo})
	if err != nil {
		s.logFailure("complete sale", err)
		return nil, err
	}

	if err := s.journal.AddSale(ctx, res.Sale); err != nil {
		s.logger.Error("failed to write sale to journal", zap.Int64("orderID", res.Sale.OrderID), zap.Error(err))
	}
	if s.metrics != nil {
		s.metrics.ObserveSale(res.Sale.TotalAmount)
	}

	out := &Checkout{Order: res.Order, Sale: res.Sale}
	r, err := receipt.Build(res.Sale)
	if err != nil {
		s.logger.Error("failed to build receipt", zap.Int64("orderID", res.Sale.OrderID), zap.Error(err))
		return out, nil
	}
	out.Receipt = r
	return out, nil
}

// Cancel отменяет открытую продажу.
func (s *Service) Cancel(ctx context.Context) (int64, error) {
	sess, err := s.current()
	if err != nil {
		return 0, err
	}

	orderID, err := sess.Cancel(ctx)
	if err != nil {
		s.logFailure("cancel sale", err)
		return 0, err
	}
	if s.metrics != nil {
		s.metrics.ObserveCancel()
	}
	return orderID, nil
}

// apply выполняет операцию над продажей и возвращает её снимок даже при ошибке.
func (s *Service) apply(fn func(sess *session.Session) error) (session.View, error) {
	sess, err := s.current()
	if err != nil {
		return session.View{}, err
	}
	if err := fn(sess); err != nil {
		s.logFailure("sale operation", err)
		return sess.View(), err
	}
	return sess.View(), nil
}

// logFailure логирует ошибки бэкенда и загрузки корзины; ошибки ввода не логируются.
func (s *Service) logFailure(op string, err error) {
	var loadErr *cart.LoadError
	switch {
	case errors.As(err, &loadErr):
		s.logger.Warn(op+": cart lines not loaded", zap.Int64("orderID", loadErr.OrderID), zap.Error(err))
	case IsValidation(err):
	default:
		s.logger.Error(op+" failed", zap.Error(err))
	}
}
