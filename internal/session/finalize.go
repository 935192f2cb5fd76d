package session

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/mmeshcher/kassa-terminal/internal/backend"
	"github.com/mmeshcher/kassa-terminal/internal/cart"
	"github.com/mmeshcher/kassa-terminal/internal/model"
	"github.com/mmeshcher/kassa-terminal/internal/money"
)

// Result — итог закрытия продажи.
type Result struct {
	Order model.Order
	Sale  model.Sale
}

// OrderNumber форматирует номер чека по идентификатору заказа.
func OrderNumber(orderID int64) string {
	return fmt.Sprintf("SK-%06d", orderID)
}

// Details — примечание и данные водителя, которые сохраняются при закрытии.
// nil оставляет значение, уже записанное в продаже.
type Details struct {
	Note       *string
	DriverInfo *string
}

// Complete закрывает продажу одним PATCH заказа: итоги оплаты по корзинам расчёта,
// сумма товаров, примечание, данные водителя и снятие признака корзины.
//
// Строки перечитываются с бэкенда перед расчётом, оплата сверяется со свежим итогом.
// Недоплата отклоняется до любого обращения к заказу.
// При любой ошибке продажа остаётся открытой и ничего не очищается.
func (s *Session) Complete(ctx context.Context, d Details) (Result, error) {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.RLock()
	state, order := s.state, s.order
	s.mu.RUnlock()
	if state != StateSaleStarted {
		return Result{}, ErrSaleNotStarted
	}

	lines, err := s.lines.Fetch(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("complete order %d: %w", order.ID, err)
	}
	if len(lines) == 0 {
		return Result{}, ErrEmptyCart
	}
	total := cart.Total(lines)

	s.mu.Lock()
	if s.state != StateSaleStarted || s.payment == nil {
		s.mu.Unlock()
		return Result{}, ErrSaleNotStarted
	}
	s.payment.SetTarget(total)
	settlement, err := s.payment.Settle(order.ExchangeRate)
	paid := s.payment.Paid()
	amounts := s.payment.Amounts()
	note, driverInfo := s.note, s.driverInfo
	customer := s.customer
	s.mu.Unlock()
	if err != nil {
		return Result{}, err
	}

	if d.Note != nil {
		note = strings.TrimSpace(*d.Note)
	}
	if d.DriverInfo != nil {
		driverInfo = strings.TrimSpace(*d.DriverInfo)
	}

	basket := false
	patch := backend.OrderPatch{
		Note:                 &note,
		DriverInfo:           &driverInfo,
		IsKarzinka:           &basket,
		AllProductSumma:      money.DecimalPtr(total),
		SummaTotalDollar:     money.DecimalPtr(settlement.TotalDollar),
		SummaDollar:          money.DecimalPtr(settlement.ForeignCashUSD),
		SummaNaqt:            money.DecimalPtr(settlement.CashUZS),
		SummaTerminal:        money.DecimalPtr(settlement.TerminalUZS),
		SummaTransfer:        money.DecimalPtr(settlement.TransferUZS),
		TotalDebtTodayClient: money.DecimalPtr(settlement.DebtUZS),
	}

	rec, err := s.api.UpdateOrder(ctx, order.ID, patch)
	if err != nil {
		return Result{}, fmt.Errorf("complete order %d: %w", order.ID, err)
	}

	updated := rec.Order()
	if updated.ID == 0 {
		updated = *order
		updated.IsBasket = false
		updated.Settlement = settlement
		updated.AllProductSumma = total
		updated.Note = note
		updated.DriverInfo = driverInfo
	}

	sale := model.Sale{
		OrderID:        order.ID,
		OrderNumber:    OrderNumber(order.ID),
		Date:           s.now(),
		Items:          lines,
		TotalAmount:    total,
		PaidAmount:     paid,
		ExchangeRate:   order.ExchangeRate,
		CashierName:    cashierName(s.cashier),
		PaymentMethods: amounts,
	}
	if customer != nil {
		c := *customer
		sale.Customer = &c
	}

	s.clear(StateFinalized)
	s.logger.Info("sale finalized",
		zap.Int64("orderID", order.ID),
		zap.Float64("total", total),
		zap.Float64("paid", paid),
	)
	return Result{Order: updated, Sale: sale}, nil
}

func cashierName(c model.Cashier) string {
	if c.FullName != "" {
		return c.FullName
	}
	return c.Username
}
