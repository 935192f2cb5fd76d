// Package payment распределяет оплату продажи по способам и корзинам расчёта.
package payment

import (
	"errors"
	"fmt"
	"math"

	"github.com/mmeshcher/kassa-terminal/internal/model"
	"github.com/mmeshcher/kassa-terminal/internal/money"
)

var (
	ErrUnknownMethod = errors.New("unknown payment method")
	ErrUnderpaid     = errors.New("paid amount is less than the total")
)

// Method — способ оплаты. Суммы по всем способам вводятся в сумах.
type Method string

const (
	MethodCash   Method = "cash"
	MethodUSD    Method = "usd"
	MethodCard   Method = "card"
	MethodUzcard Method = "uzcard"
	MethodHumo   Method = "humo"
	MethodClick  Method = "click"
	MethodDebt   Method = "debt"
)

// Bucket — корзина расчёта, в которой бэкенд хранит итог оплаты.
type Bucket string

const (
	BucketCash     Bucket = "summa_naqt"
	BucketForeign  Bucket = "summa_dollar"
	BucketTransfer Bucket = "summa_transfer"
	BucketTerminal Bucket = "summa_terminal"
	BucketDebt     Bucket = "total_debt_today_client"
)

// MethodInfo описывает способ оплаты для кассира.
type MethodInfo struct {
	Method Method `json:"method"`
	Label  string `json:"label"`
	Bucket Bucket `json:"bucket"`
}

var catalogue = []MethodInfo{
	{Method: MethodCash, Label: "Naqd", Bucket: BucketCash},
	{Method: MethodUSD, Label: "US dollar naqd", Bucket: BucketForeign},
	{Method: MethodCard, Label: "Plastik perevod", Bucket: BucketTransfer},
	{Method: MethodUzcard, Label: "Uzcard", Bucket: BucketTerminal},
	{Method: MethodHumo, Label: "Humo", Bucket: BucketTerminal},
	{Method: MethodClick, Label: "Click", Bucket: BucketTerminal},
	{Method: MethodDebt, Label: "Nasiya", Bucket: BucketDebt},
}

// Methods возвращает поддерживаемые способы оплаты в порядке показа.
func Methods() []MethodInfo {
	out := make([]MethodInfo, len(catalogue))
	copy(out, catalogue)
	return out
}

// Bucket возвращает корзину расчёта способа оплаты.
func (m Method) Bucket() (Bucket, bool) {
	for _, info := range catalogue {
		if info.Method == m {
			return info.Bucket, true
		}
	}
	return "", false
}

// Valid сообщает, поддерживается ли способ оплаты.
func (m Method) Valid() bool {
	_, ok := m.Bucket()
	return ok
}

// Allocation — суммы, принятые по способам оплаты, против итога продажи.
// Не безопасна для одновременного использования.
type Allocation struct {
	target  float64
	amounts map[Method]float64
}

// NewAllocation создаёт распределение для итога target в сумах.
func NewAllocation(target float64) *Allocation {
	return &Allocation{
		target:  target,
		amounts: make(map[Method]float64),
	}
}

// Target возвращает итог продажи.
func (a *Allocation) Target() float64 {
	return a.target
}

// SetTarget меняет итог, например после перезагрузки корзины. Принятые суммы сохраняются.
func (a *Allocation) SetTarget(target float64) {
	a.target = target
}

// Set задаёт сумму по способу оплаты. Отрицательная или нечисловая сумма даёт 0.
// Возвращает оплаченную сумму.
func (a *Allocation) Set(m Method, amount float64) (float64, error) {
	if !m.Valid() {
		return a.Paid(), fmt.Errorf("%w: %q", ErrUnknownMethod, m)
	}
	if amount < 0 || math.IsNaN(amount) || math.IsInf(amount, 0) {
		amount = 0
	}
	if amount == 0 {
		delete(a.amounts, m)
	} else {
		a.amounts[m] = amount
	}
	return a.Paid(), nil
}

// SetText разбирает введённую сумму и задаёт её.
func (a *Allocation) SetText(m Method, s string) (float64, error) {
	return a.Set(m, money.ParseAmount(s))
}

// Remove обнуляет способ оплаты и возвращает оплаченную сумму.
func (a *Allocation) Remove(m Method) float64 {
	delete(a.amounts, m)
	return a.Paid()
}

// Reset обнуляет все способы оплаты.
func (a *Allocation) Reset() {
	a.amounts = make(map[Method]float64)
}

// Paid возвращает сумму всех способов оплаты.
func (a *Allocation) Paid() float64 {
	var sum float64
	for _, info := range catalogue {
		sum += a.amounts[info.Method]
	}
	return sum
}

// Remaining возвращает недоплату со знаком: отрицательное значение — переплата.
func (a *Allocation) Remaining() float64 {
	return a.target - a.Paid()
}

// DisplayRemaining возвращает остаток для показа, не меньше нуля.
func (a *Allocation) DisplayRemaining() float64 {
	return math.Max(0, a.Remaining())
}

// CanFinalize сообщает, покрыт ли итог оплатой. Переплата допустима.
func (a *Allocation) CanFinalize() bool {
	return a.Remaining() <= 0
}

// Amounts возвращает ненулевые суммы по способам оплаты.
func (a *Allocation) Amounts() map[string]float64 {
	out := make(map[string]float64, len(a.amounts))
	for m, v := range a.amounts {
		out[string(m)] = v
	}
	return out
}

// Settle раскладывает оплату по корзинам расчёта по курсу продажи.
// Терминальные способы суммируются в одну корзину, доллары хранятся в долларах.
func (a *Allocation) Settle(rate float64) (model.Settlement, error) {
	if !a.CanFinalize() {
		return model.Settlement{}, fmt.Errorf("%w: remaining %s", ErrUnderpaid, money.FormatMinor(a.Remaining()))
	}
	if err := money.ValidateRate(rate); err != nil {
		return model.Settlement{}, err
	}

	var s model.Settlement
	for m, amount := range a.amounts {
		bucket, _ := m.Bucket()
		switch bucket {
		case BucketCash:
			s.CashUZS += amount
		case BucketForeign:
			s.ForeignCashUSD += money.ToForeign(amount, rate)
		case BucketTransfer:
			s.TransferUZS += amount
		case BucketTerminal:
			s.TerminalUZS += amount
		case BucketDebt:
			s.DebtUZS += amount
		}
	}
	s.TotalDollar = money.ToForeign(a.target, rate)
	return s, nil
}
