// Package session ведёт продажу на кассе: выбор покупателя, открытие заказа,
// корзину, оплату и закрытие.
package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/mmeshcher/kassa-terminal/internal/backend"
	"github.com/mmeshcher/kassa-terminal/internal/cart"
	"github.com/mmeshcher/kassa-terminal/internal/model"
	"github.com/mmeshcher/kassa-terminal/internal/money"
	"github.com/mmeshcher/kassa-terminal/internal/payment"
	"github.com/mmeshcher/kassa-terminal/internal/pricing"
)

// State — состояние продажи.
type State int

const (
	StateNoCustomer State = iota
	StateCustomerSelected
	StateSaleStarted
	StateFinalized
	StateCancelled
)

func (s State) String() string {
	switch s {
	case StateNoCustomer:
		return "no_customer"
	case StateCustomerSelected:
		return "customer_selected"
	case StateSaleStarted:
		return "sale_started"
	case StateFinalized:
		return "finalized"
	case StateCancelled:
		return "cancelled"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// MarshalText кодирует состояние строкой.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

var (
	ErrNoCustomer      = errors.New("customer is not selected")
	ErrInvalidCustomer = errors.New("customer must have an id")
	ErrSaleNotStarted  = errors.New("sale is not started")
	ErrSaleInProgress  = errors.New("sale is already in progress")
	ErrNotBasket       = errors.New("order is not an open basket")
	ErrEmptyCart       = errors.New("cart is empty")
)

// OrderAPI — операции бэкенда над заказом.
type OrderAPI interface {
	CreateOrder(ctx context.Context, req backend.CreateOrderRequest) (*backend.OrderRecord, error)
	GetOrder(ctx context.Context, id int64) (*backend.OrderRecord, error)
	UpdateOrder(ctx context.Context, id int64, patch backend.OrderPatch) (*backend.OrderRecord, error)
	DeleteOrder(ctx context.Context, id int64) error
}

// Backend — всё, что продаже нужно от бэкенда.
type Backend interface {
	OrderAPI
	cart.LineAPI
}

// RateSource выдаёт текущий курс для новых заказов.
type RateSource interface {
	Current() float64
}

// Option настраивает сессию.
type Option func(*Session)

// WithLogger задаёт логгер.
func WithLogger(l *zap.Logger) Option {
	return func(s *Session) {
		s.logger = l
	}
}

// WithClock подменяет часы (для тестов).
func WithClock(now func() time.Time) Option {
	return func(s *Session) {
		s.now = now
	}
}

// WithCartObserver подключает наблюдателя изменений корзины.
func WithCartObserver(o cart.Observer) Option {
	return func(s *Session) {
		s.lines.SetObserver(o)
	}
}

// Session — продажа одного кассира на одной кассе.
//
// Переходы состояния (открытие, возобновление, закрытие, отмена) выполняются
// под исключительной блокировкой; изменения корзины и оплаты — под разделяемой,
// поэтому закрытие всегда видит завершённые правки строк.
type Session struct {
	api     Backend
	rates   RateSource
	cashier model.Cashier
	logger  *zap.Logger
	now     func() time.Time
	lines   *cart.Synchronizer

	txMu sync.RWMutex

	mu         sync.RWMutex
	state      State
	customer   *model.Customer
	order      *model.Order
	payment    *payment.Allocation
	note       string
	driverInfo string
}

// New создаёт пустую сессию кассира.
func New(api Backend, rates RateSource, cashier model.Cashier, opts ...Option) *Session {
	s := &Session{
		api:     api,
		rates:   rates,
		cashier: cashier,
		logger:  zap.NewNop(),
		now:     time.Now,
		lines:   cart.NewSynchronizer(api),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Cashier возвращает кассира сессии.
func (s *Session) Cashier() model.Cashier {
	return s.cashier
}

// State возвращает текущее состояние.
func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// SelectCustomer выбирает покупателя для новой продажи.
func (s *Session) SelectCustomer(c model.Customer) error {
	if c.ID <= 0 {
		return ErrInvalidCustomer
	}

	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateSaleStarted {
		return ErrSaleInProgress
	}
	s.customer = &c
	s.state = StateCustomerSelected
	return nil
}

// ClearCustomer снимает выбор покупателя до открытия продажи.
func (s *Session) ClearCustomer() error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateSaleStarted {
		return ErrSaleInProgress
	}
	s.customer = nil
	s.state = StateNoCustomer
	return nil
}

// StartSale открывает заказ-корзину для выбранного покупателя по текущему курсу.
// Курс фиксируется в заказе и дальше не меняется.
// При ошибке создания заказа продажа остаётся в CustomerSelected.
func (s *Session) StartSale(ctx context.Context) (model.Order, error) {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.RLock()
	state, customer := s.state, s.customer
	s.mu.RUnlock()

	switch {
	case state == StateSaleStarted:
		return model.Order{}, ErrSaleInProgress
	case state != StateCustomerSelected || customer == nil:
		return model.Order{}, ErrNoCustomer
	}

	rate := s.rates.Current()
	if err := money.ValidateRate(rate); err != nil {
		return model.Order{}, err
	}

	rec, err := s.api.CreateOrder(ctx, backend.NewBasketOrder(customer.ID, s.cashier.ID, rate))
	if err != nil {
		return model.Order{}, fmt.Errorf("start sale: %w", err)
	}

	order := rec.Order()
	if order.ExchangeRate <= 0 {
		order.ExchangeRate = rate
	}
	if order.Client == nil {
		c := *customer
		order.Client = &c
	}
	order.IsBasket = true

	loadErr := s.open(ctx, order, *order.Client)
	s.logger.Info("sale started",
		zap.Int64("orderID", order.ID),
		zap.Int64("clientID", customer.ID),
		zap.Float64("rate", order.ExchangeRate),
	)
	return order, loadErr
}

// Resume возвращается к открытой корзине по номеру заказа.
// Если строки не загрузились, продажа всё равно открывается с пустой корзиной
// и возвращается *cart.LoadError.
func (s *Session) Resume(ctx context.Context, orderID int64) (model.Order, error) {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	if s.State() == StateSaleStarted {
		return model.Order{}, ErrSaleInProgress
	}

	rec, err := s.api.GetOrder(ctx, orderID)
	if err != nil {
		return model.Order{}, fmt.Errorf("resume order %d: %w", orderID, err)
	}
	if rec.IsDelete || !rec.IsKarzinka {
		return model.Order{}, fmt.Errorf("resume order %d: %w", orderID, ErrNotBasket)
	}

	order := rec.Order()
	if order.ExchangeRate <= 0 {
		order.ExchangeRate = s.rates.Current()
		s.logger.Warn("order has no exchange rate, using current", zap.Int64("orderID", orderID), zap.Float64("rate", order.ExchangeRate))
	}
	customer := model.Customer{ID: rec.Client}
	if order.Client != nil {
		customer = *order.Client
	} else {
		order.Client = &customer
	}

	loadErr := s.open(ctx, order, customer)
	s.logger.Info("sale resumed", zap.Int64("orderID", orderID))
	return order, loadErr
}

// open переводит сессию в SaleStarted. Вызывается под txMu.
func (s *Session) open(ctx context.Context, order model.Order, customer model.Customer) error {
	s.mu.Lock()
	s.order = &order
	s.customer = &customer
	s.note = order.Note
	s.driverInfo = order.DriverInfo
	s.payment = payment.NewAllocation(0)
	s.state = StateSaleStarted
	s.mu.Unlock()

	err := s.lines.Bind(ctx, order.ID)
	s.syncTarget()
	if err != nil {
		s.logger.Warn("failed to load cart lines", zap.Int64("orderID", order.ID), zap.Error(err))
	}
	return err
}

// Editor открывает форму цены товара по курсу открытой продажи.
func (s *Session) Editor(p model.Product) (*pricing.Editor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.state != StateSaleStarted {
		return nil, ErrSaleNotStarted
	}
	return pricing.NewEditor(p, s.order.ExchangeRate)
}

// ExchangeRate возвращает курс открытой продажи.
func (s *Session) ExchangeRate() (float64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.order == nil {
		return 0, false
	}
	return s.order.ExchangeRate, true
}

// AddProduct добавляет подтверждённый товар в корзину открытой продажи.
func (s *Session) AddProduct(ctx context.Context, sel pricing.Selection) error {
	return s.editLines(func() error {
		return s.lines.Add(ctx, cart.Item{
			Product:   sel.Product,
			Quantity:  sel.Quantity,
			UnitPrice: sel.UnitPriceUZS,
			Tier:      sel.Tier,
			SkladID:   sel.SkladID,
		})
	})
}

// ChangeQuantity меняет количество строки на delta, не опуская ниже 1.
func (s *Session) ChangeQuantity(ctx context.Context, lineID int64, delta float64) error {
	return s.editLines(func() error {
		return s.lines.ApplyDelta(ctx, lineID, delta)
	})
}

// SetQuantity задаёт количество строки.
func (s *Session) SetQuantity(ctx context.Context, lineID int64, quantity float64) error {
	return s.editLines(func() error {
		return s.lines.UpdateQuantity(ctx, lineID, quantity)
	})
}

// RemoveLine удаляет строку из корзины.
func (s *Session) RemoveLine(ctx context.Context, lineID int64) error {
	return s.editLines(func() error {
		return s.lines.Remove(ctx, lineID)
	})
}

// ReloadLines перечитывает корзину с бэкенда.
func (s *Session) ReloadLines(ctx context.Context) ([]model.CartLine, error) {
	var lines []model.CartLine
	err := s.editLines(func() error {
		var err error
		lines, err = s.lines.Reload(ctx)
		return err
	})
	return lines, err
}

// editLines выполняет изменение корзины, только пока продажа открыта.
func (s *Session) editLines(fn func() error) error {
	s.txMu.RLock()
	defer s.txMu.RUnlock()

	if s.State() != StateSaleStarted {
		return ErrSaleNotStarted
	}
	err := fn()
	s.syncTarget()
	return err
}

func (s *Session) syncTarget() {
	total := s.lines.Total()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.payment != nil {
		s.payment.SetTarget(total)
	}
}

// SetPayment задаёт сумму по способу оплаты.
func (s *Session) SetPayment(m payment.Method, amount float64) (PaymentView, error) {
	s.txMu.RLock()
	defer s.txMu.RUnlock()

	total := s.lines.Total()

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateSaleStarted {
		return PaymentView{}, ErrSaleNotStarted
	}
	s.payment.SetTarget(total)
	if _, err := s.payment.Set(m, amount); err != nil {
		return PaymentView{}, err
	}
	return s.paymentView(), nil
}

// RemovePayment обнуляет способ оплаты.
func (s *Session) RemovePayment(m payment.Method) (PaymentView, error) {
	s.txMu.RLock()
	defer s.txMu.RUnlock()

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateSaleStarted {
		return PaymentView{}, ErrSaleNotStarted
	}
	if !m.Valid() {
		return PaymentView{}, fmt.Errorf("%w: %q", payment.ErrUnknownMethod, m)
	}
	s.payment.Remove(m)
	return s.paymentView(), nil
}

// UpdateDetails сохраняет примечание и данные водителя в заказе.
// При ошибке бэкенда локальные значения не меняются.
func (s *Session) UpdateDetails(ctx context.Context, note, driverInfo string) error {
	s.txMu.RLock()
	defer s.txMu.RUnlock()

	s.mu.RLock()
	state, order := s.state, s.order
	s.mu.RUnlock()
	if state != StateSaleStarted {
		return ErrSaleNotStarted
	}

	note = strings.TrimSpace(note)
	driverInfo = strings.TrimSpace(driverInfo)
	if _, err := s.api.UpdateOrder(ctx, order.ID, backend.OrderPatch{Note: &note, DriverInfo: &driverInfo}); err != nil {
		return fmt.Errorf("update order %d details: %w", order.ID, err)
	}

	s.mu.Lock()
	s.note = note
	s.driverInfo = driverInfo
	s.mu.Unlock()
	return nil
}

// Cancel отменяет открытую продажу: заказ удаляется на бэкенде, сессия очищается.
// При ошибке бэкенда продажа остаётся открытой.
func (s *Session) Cancel(ctx context.Context) (int64, error) {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.RLock()
	state, order := s.state, s.order
	s.mu.RUnlock()
	if state != StateSaleStarted {
		return 0, ErrSaleNotStarted
	}

	if err := s.api.DeleteOrder(ctx, order.ID); err != nil {
		return 0, fmt.Errorf("cancel order %d: %w", order.ID, err)
	}

	s.clear(StateCancelled)
	s.logger.Info("sale cancelled", zap.Int64("orderID", order.ID))
	return order.ID, nil
}

// Reset бросает продажу без обращения к бэкенду (например, при выходе кассира).
//
// txMu не берётся: принудительный выход срабатывает внутри запроса к бэкенду,
// а операция, которая этот запрос сделала, уже держит txMu. Операции после
// обращения к бэкенду перепроверяют состояние под mu.
func (s *Session) Reset() {
	s.clear(StateNoCustomer)
}

func (s *Session) clear(next State) {
	s.mu.Lock()
	s.state = next
	s.customer = nil
	s.order = nil
	s.payment = nil
	s.note = ""
	s.driverInfo = ""
	s.mu.Unlock()

	s.lines.Reset()
}
