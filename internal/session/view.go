package session

import (
	"github.com/mmeshcher/kassa-terminal/internal/model"
	"github.com/mmeshcher/kassa-terminal/internal/money"
	"github.com/mmeshcher/kassa-terminal/internal/payment"
)

// PaymentView — состояние оплаты для экрана кассира.
type PaymentView struct {
	Target           float64            `json:"target"`
	TargetUSD        string             `json:"target_usd"`
	Paid             float64            `json:"paid"`
	Remaining        float64            `json:"remaining"`
	DisplayRemaining float64            `json:"display_remaining"`
	CanFinalize      bool               `json:"can_finalize"`
	Amounts          map[string]float64 `json:"amounts"`
}

// View — снимок продажи для экрана кассира.
type View struct {
	State        State                `json:"state"`
	Cashier      model.Cashier        `json:"cashier"`
	Customer     *model.Customer      `json:"customer,omitempty"`
	Order        *model.Order         `json:"order,omitempty"`
	ExchangeRate float64              `json:"exchange_rate,omitempty"`
	Lines        []model.CartLine     `json:"lines"`
	Total        float64              `json:"total"`
	TotalUSD     string               `json:"total_usd,omitempty"`
	Note         string               `json:"note,omitempty"`
	DriverInfo   string               `json:"driver_info,omitempty"`
	Payment      *PaymentView         `json:"payment,omitempty"`
	Methods      []payment.MethodInfo `json:"methods,omitempty"`
}

// View возвращает снимок продажи.
func (s *Session) View() View {
	lines := s.lines.Lines()
	total := s.lines.Total()

	s.mu.Lock()
	defer s.mu.Unlock()

	v := View{
		State:      s.state,
		Cashier:    s.cashier,
		Lines:      lines,
		Total:      total,
		Note:       s.note,
		DriverInfo: s.driverInfo,
	}
	if s.customer != nil {
		c := *s.customer
		v.Customer = &c
	}
	if s.order != nil {
		o := *s.order
		v.Order = &o
		v.ExchangeRate = o.ExchangeRate
		v.TotalUSD = money.FormatForeign(money.ToForeign(total, o.ExchangeRate))
	}
	if s.payment != nil {
		s.payment.SetTarget(total)
		pv := s.paymentView()
		v.Payment = &pv
		v.Methods = payment.Methods()
	}
	return v
}

// paymentView вызывается под s.mu.
func (s *Session) paymentView() PaymentView {
	pv := PaymentView{
		Target:           s.payment.Target(),
		Paid:             s.payment.Paid(),
		Remaining:        s.payment.Remaining(),
		DisplayRemaining: s.payment.DisplayRemaining(),
		CanFinalize:      s.payment.CanFinalize(),
		Amounts:          s.payment.Amounts(),
	}
	if s.order != nil {
		pv.TargetUSD = money.FormatForeign(money.ToForeign(pv.Target, s.order.ExchangeRate))
	}
	return pv
}
