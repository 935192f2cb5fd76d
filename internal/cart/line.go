// Package cart ведёт корзину продажи: локальный черновик до создания заказа
// и проекцию удалённых строк заказа после.
package cart

import (
	"errors"
	"fmt"
	"math"

	"github.com/mmeshcher/kassa-terminal/internal/backend"
	"github.com/mmeshcher/kassa-terminal/internal/model"
	"github.com/mmeshcher/kassa-terminal/internal/money"
)

var (
	ErrInvalidQuantity = errors.New("quantity must be at least 1")
	ErrLineNotFound    = errors.New("cart line not found")
)

// LineTotal — сумма строки: количество, умноженное на начисленную цену, без округления.
func LineTotal(quantity, unitPrice float64) float64 {
	return quantity * unitPrice
}

// ApplyDelta меняет количество на delta, не опуская его ниже 1.
// Удаление строки — отдельное действие.
func ApplyDelta(quantity, delta float64) float64 {
	return math.Max(1, quantity+delta)
}

// Total суммирует строки корзины.
func Total(lines []model.CartLine) float64 {
	var sum float64
	for _, l := range lines {
		sum += l.TotalPrice
	}
	return sum
}

// Item — товар, добавляемый в корзину, с уже рассчитанной ценой в сумах.
type Item struct {
	Product   model.Product
	Quantity  float64
	UnitPrice float64
	Tier      model.PriceTier
	SkladID   int64
}

func (it Item) validate() error {
	if it.Quantity <= 0 || math.IsNaN(it.Quantity) || math.IsInf(it.Quantity, 0) {
		return ErrInvalidQuantity
	}
	if it.UnitPrice < 0 || math.IsNaN(it.UnitPrice) || math.IsInf(it.UnitPrice, 0) {
		return fmt.Errorf("invalid unit price %v", it.UnitPrice)
	}
	return nil
}

func (it Item) tier() model.PriceTier {
	if it.Tier.Valid() {
		return it.Tier
	}
	return it.Product.DefaultTier()
}

// request формирует тело создания удалённой строки: заполняется цена только выбранного уровня.
func (it Item) request(orderID int64) backend.CreateOrderLineRequest {
	tier := it.tier()
	req := backend.CreateOrderLineRequest{
		OrderHistory: orderID,
		Product:      it.Product.ID,
		Count:        money.Decimal(it.Quantity),
		PriceType:    string(tier),
	}
	if tier == model.TierWholesale {
		req.WholesalePrice = money.DecimalPtr(it.UnitPrice)
	} else {
		req.UnitPrice = money.DecimalPtr(it.UnitPrice)
	}
	if it.SkladID > 0 {
		sklad := it.SkladID
		req.Sklad = &sklad
	}
	return req
}

// fromRemote проецирует удалённую строку на строку корзины.
// Помеченные удалёнными строки отбрасываются.
func fromRemote(r backend.OrderLine) (model.CartLine, bool) {
	if r.IsDelete {
		return model.CartLine{}, false
	}

	name := r.DisplayName()
	if name == "" {
		name = fmt.Sprintf("Mahsulot #%d", r.Product)
	}

	// цена берётся по уровню строки, а если она пустая, то по другому уровню
	tier := model.TierUnit
	price, fallback := r.UnitPrice.Float(), r.WholesalePrice.Float()
	if r.PriceType == string(model.TierWholesale) {
		tier = model.TierWholesale
		price, fallback = fallback, price
	}
	if price == 0 {
		price = fallback
	}

	qty := r.Count.Float()
	line := model.CartLine{
		ID:         r.ID,
		ProductID:  r.Product,
		Name:       name,
		UnitCode:   r.UnitCode,
		Quantity:   qty,
		UnitPrice:  price,
		TotalPrice: LineTotal(qty, price),
		Tier:       tier,
	}
	if r.Sklad != nil {
		line.SkladID = *r.Sklad
	}
	return line, true
}

// LoadError — не удалось загрузить строки заказа. Корзина при этом считается пустой.
type LoadError struct {
	OrderID int64
	Err     error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load lines of order %d: %v", e.OrderID, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}
