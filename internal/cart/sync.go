package cart

import (
	"context"
	"fmt"
	"sync"

	"github.com/mmeshcher/kassa-terminal/internal/backend"
	"github.com/mmeshcher/kassa-terminal/internal/model"
)

// LineAPI — операции бэкенда над строками заказа.
type LineAPI interface {
	ListOrderLines(ctx context.Context, orderID int64) ([]backend.OrderLine, error)
	CreateOrderLine(ctx context.Context, req backend.CreateOrderLineRequest) (*backend.OrderLine, error)
	UpdateOrderLine(ctx context.Context, lineID int64, count float64) (*backend.OrderLine, error)
	DeleteOrderLine(ctx context.Context, lineID int64) error
}

// Observer получает сведения об успешных изменениях корзины.
type Observer interface {
	ObserveCartMutation(kind string)
}

// Виды изменений корзины для Observer.
const (
	MutationAdd    = "add"
	MutationUpdate = "update"
	MutationRemove = "remove"
)

// Synchronizer держит корзину продажи согласованной со строками заказа на бэкенде.
//
// В режиме Draft все операции локальные. После Bind каждая операция уходит на бэкенд,
// а корзина заменяется свежей загрузкой. Изменения одного заказа выполняются строго
// по очереди; загрузка, которую обогнала более поздняя, отбрасывается.
type Synchronizer struct {
	api      LineAPI
	observer Observer

	// opMu упорядочивает изменения вместе с последующей перезагрузкой.
	opMu sync.Mutex

	mu      sync.RWMutex
	cart    Cart
	gen     uint64
	applied uint64
}

// NewSynchronizer создаёт синхронизатор с пустым черновиком.
func NewSynchronizer(api LineAPI) *Synchronizer {
	return &Synchronizer{
		api:  api,
		cart: &Draft{},
	}
}

// SetObserver подключает наблюдателя изменений.
func (s *Synchronizer) SetObserver(o Observer) {
	s.observer = o
}

// Cart возвращает текущий вид корзины.
func (s *Synchronizer) Cart() Cart {
	s.mu.RLock()
	defer s.mu.RUnlock()

	switch c := s.cart.(type) {
	case *Draft:
		return &Draft{lines: c.Lines(), nextID: c.nextID}
	case *Bound:
		return &Bound{OrderID: c.OrderID, lines: c.Lines()}
	default:
		panic(fmt.Sprintf("cart: unexpected variant %T", c))
	}
}

// Lines возвращает строки корзины.
func (s *Synchronizer) Lines() []model.CartLine {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cart.Lines()
}

// Total возвращает сумму корзины в сумах.
func (s *Synchronizer) Total() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cart.Total()
}

// OrderID возвращает заказ, к которому привязана корзина.
func (s *Synchronizer) OrderID() (int64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if b, ok := s.cart.(*Bound); ok {
		return b.OrderID, true
	}
	return 0, false
}

// Bind привязывает корзину к заказу навсегда: строки черновика переносятся
// в заказ, после чего корзина загружается с бэкенда.
// Если перенести часть строк не удалось, корзина всё равно остаётся привязанной.
func (s *Synchronizer) Bind(ctx context.Context, orderID int64) error {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	s.mu.Lock()
	var pending []Item
	if d, ok := s.cart.(*Draft); ok {
		for _, l := range d.lines {
			pending = append(pending, Item{
				Product:   model.Product{ID: l.ProductID, Name: l.Name, UnitCode: l.UnitCode},
				Quantity:  l.Quantity,
				UnitPrice: l.UnitPrice,
				Tier:      l.Tier,
				SkladID:   l.SkladID,
			})
		}
	}
	s.cart = &Bound{OrderID: orderID}
	s.mu.Unlock()

	var pushErr error
	for _, it := range pending {
		if _, err := s.api.CreateOrderLine(ctx, it.request(orderID)); err != nil && pushErr == nil {
			pushErr = fmt.Errorf("move draft line %d to order %d: %w", it.Product.ID, orderID, err)
		}
	}

	if err := s.refresh(ctx, orderID); err != nil {
		return err
	}
	return pushErr
}

// Reset возвращает пустой черновик. Незавершённые загрузки прежнего заказа отбрасываются.
func (s *Synchronizer) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cart = &Draft{}
	s.applied = s.gen
}

// Reload загружает строки привязанного заказа заново. Для черновика ничего не делает.
func (s *Synchronizer) Reload(ctx context.Context) ([]model.CartLine, error) {
	orderID, bound := s.OrderID()
	if !bound {
		return s.Lines(), nil
	}
	if err := s.refresh(ctx, orderID); err != nil {
		return s.Lines(), err
	}
	return s.Lines(), nil
}

// Fetch перечитывает строки привязанного заказа, как Reload, но при ошибке
// загрузки корзина остаётся прежней.
func (s *Synchronizer) Fetch(ctx context.Context) ([]model.CartLine, error) {
	orderID, bound := s.OrderID()
	if !bound {
		return s.Lines(), nil
	}
	if err := s.load(ctx, orderID, false); err != nil {
		return nil, err
	}
	return s.Lines(), nil
}

// Add добавляет товар в корзину. Для привязанной корзины строка создаётся на бэкенде;
// при ошибке корзина не меняется.
func (s *Synchronizer) Add(ctx context.Context, it Item) error {
	if err := it.validate(); err != nil {
		return err
	}

	s.opMu.Lock()
	defer s.opMu.Unlock()

	s.mu.Lock()
	switch c := s.cart.(type) {
	case *Draft:
		c.add(it)
		s.mu.Unlock()
		s.observe(MutationAdd)
		return nil
	case *Bound:
		orderID := c.OrderID
		s.mu.Unlock()

		if _, err := s.api.CreateOrderLine(ctx, it.request(orderID)); err != nil {
			return fmt.Errorf("add product %d: %w", it.Product.ID, err)
		}
		s.observe(MutationAdd)
		return s.refresh(ctx, orderID)
	default:
		s.mu.Unlock()
		panic(fmt.Sprintf("cart: unexpected variant %T", c))
	}
}

// UpdateQuantity задаёт количество строки. Количество меньше 1 отклоняется.
func (s *Synchronizer) UpdateQuantity(ctx context.Context, lineID int64, quantity float64) error {
	if quantity < 1 {
		return ErrInvalidQuantity
	}

	s.opMu.Lock()
	defer s.opMu.Unlock()

	return s.setQuantity(ctx, lineID, quantity)
}

// ApplyDelta меняет количество строки на delta с нижней границей 1.
// Количество читается под той же блокировкой, что и изменение, поэтому
// быстрые повторные нажатия складываются, а не теряются.
func (s *Synchronizer) ApplyDelta(ctx context.Context, lineID int64, delta float64) error {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	s.mu.RLock()
	line, ok := lineByID(s.cart.Lines(), lineID)
	s.mu.RUnlock()
	if !ok {
		return ErrLineNotFound
	}

	next := ApplyDelta(line.Quantity, delta)
	if next == line.Quantity {
		return nil
	}
	return s.setQuantity(ctx, lineID, next)
}

func (s *Synchronizer) setQuantity(ctx context.Context, lineID int64, quantity float64) error {
	s.mu.Lock()
	switch c := s.cart.(type) {
	case *Draft:
		err := c.setQuantity(lineID, quantity)
		s.mu.Unlock()
		if err == nil {
			s.observe(MutationUpdate)
		}
		return err
	case *Bound:
		orderID := c.OrderID
		s.mu.Unlock()

		if _, err := s.api.UpdateOrderLine(ctx, lineID, quantity); err != nil {
			return fmt.Errorf("update line %d: %w", lineID, err)
		}
		s.observe(MutationUpdate)
		return s.refresh(ctx, orderID)
	default:
		s.mu.Unlock()
		panic(fmt.Sprintf("cart: unexpected variant %T", c))
	}
}

// Remove удаляет строку из корзины.
func (s *Synchronizer) Remove(ctx context.Context, lineID int64) error {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	s.mu.Lock()
	switch c := s.cart.(type) {
	case *Draft:
		err := c.remove(lineID)
		s.mu.Unlock()
		if err == nil {
			s.observe(MutationRemove)
		}
		return err
	case *Bound:
		orderID := c.OrderID
		s.mu.Unlock()

		if err := s.api.DeleteOrderLine(ctx, lineID); err != nil {
			return fmt.Errorf("remove line %d: %w", lineID, err)
		}
		s.observe(MutationRemove)
		return s.refresh(ctx, orderID)
	default:
		s.mu.Unlock()
		panic(fmt.Sprintf("cart: unexpected variant %T", c))
	}
}

// refresh заменяет строки привязанной корзины свежей загрузкой.
// При ошибке корзина становится пустой.
func (s *Synchronizer) refresh(ctx context.Context, orderID int64) error {
	return s.load(ctx, orderID, true)
}

// load применяет загрузку, только если она новее уже применённой и корзина
// всё ещё привязана к тому же заказу.
func (s *Synchronizer) load(ctx context.Context, orderID int64, emptyOnError bool) error {
	s.mu.Lock()
	s.gen++
	gen := s.gen
	s.mu.Unlock()

	remote, err := s.api.ListOrderLines(ctx, orderID)
	if err != nil && !emptyOnError {
		return &LoadError{OrderID: orderID, Err: err}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.cart.(*Bound)
	if !ok || b.OrderID != orderID || gen <= s.applied {
		return nil
	}
	s.applied = gen

	if err != nil {
		b.lines = nil
		return &LoadError{OrderID: orderID, Err: err}
	}
	b.replace(remote)
	return nil
}

func (s *Synchronizer) observe(kind string) {
	if s.observer != nil {
		s.observer.ObserveCartMutation(kind)
	}
}
