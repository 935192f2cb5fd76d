// Package pricing рассчитывает цену товара при добавлении в корзину:
// уровень цены, валюта отображения, ручная правка и итог строки.
package pricing

import (
	"errors"
	"math"

	"github.com/mmeshcher/kassa-terminal/internal/model"
	"github.com/mmeshcher/kassa-terminal/internal/money"
)

var (
	ErrInvalidQuantity = errors.New("quantity must be positive")
	ErrInvalidPrice    = errors.New("price must not be negative")
	ErrInvalidTier     = errors.New("unknown price tier")
	ErrInvalidCurrency = errors.New("unknown currency")
	ErrInvalidSource   = errors.New("unknown stock source")
	ErrSkladRequired   = errors.New("sklad must be selected for warehouse source")
)

// Editor — состояние формы добавления товара.
//
// Смена уровня цены и смена валюты одинаково пересчитывают поле цены
// от базовой цены товара, ручная правка при этом сбрасывается.
// В бэкенд всегда уходит цена в сумах.
type Editor struct {
	product  model.Product
	rate     float64
	tier     model.PriceTier
	currency model.Currency
	// displayed хранится в валюте отображения без округления.
	displayed float64
	quantity  float64
	source    model.Source
	skladID   int64
}

// NewEditor открывает форму для товара по курсу продажи.
// Уровень цены по умолчанию — оптовый для единицы "optom", иначе поштучный.
func NewEditor(p model.Product, rate float64) (*Editor, error) {
	if err := money.ValidateRate(rate); err != nil {
		return nil, err
	}
	e := &Editor{
		product:  p,
		rate:     rate,
		tier:     p.DefaultTier(),
		currency: model.CurrencyUZS,
		quantity: 1,
		source:   model.SourceFilial,
	}
	e.recompute()
	return e, nil
}

func (e *Editor) recompute() {
	base := e.product.BasePrice(e.tier)
	if e.currency == model.CurrencyUSD {
		e.displayed = money.ToForeign(base, e.rate)
		return
	}
	e.displayed = base
}

// SetTier выбирает уровень цены и пересчитывает цену от базовой.
func (e *Editor) SetTier(t model.PriceTier) error {
	if !t.Valid() {
		return ErrInvalidTier
	}
	e.tier = t
	e.recompute()
	return nil
}

// SetCurrency выбирает валюту отображения и пересчитывает цену от базовой.
func (e *Editor) SetCurrency(c model.Currency) error {
	if !c.Valid() {
		return ErrInvalidCurrency
	}
	e.currency = c
	e.recompute()
	return nil
}

// SetPrice задаёт цену вручную в текущей валюте отображения.
func (e *Editor) SetPrice(v float64) error {
	if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
		return ErrInvalidPrice
	}
	e.displayed = v
	return nil
}

// SetPriceText разбирает введённую цену; некорректный ввод даёт 0.
func (e *Editor) SetPriceText(s string) error {
	return e.SetPrice(money.ParseAmount(s))
}

// SetQuantity задаёт количество; дробное допустимо для весовых единиц.
func (e *Editor) SetQuantity(q float64) error {
	if q <= 0 || math.IsNaN(q) || math.IsInf(q, 0) {
		return ErrInvalidQuantity
	}
	e.quantity = q
	return nil
}

// SetSource выбирает источник товара. Для склада нужен его идентификатор.
func (e *Editor) SetSource(src model.Source, skladID int64) error {
	switch src {
	case model.SourceFilial:
		e.source = src
		e.skladID = 0
	case model.SourceSklad:
		e.source = src
		e.skladID = skladID
	default:
		return ErrInvalidSource
	}
	return nil
}

// Displayed возвращает цену в валюте отображения без округления.
func (e *Editor) Displayed() float64 {
	return e.displayed
}

// DisplayedText форматирует цену для поля ввода: доллары с двумя знаками, сумы как есть.
func (e *Editor) DisplayedText() string {
	if e.currency == model.CurrencyUSD {
		return money.FormatForeign(e.displayed)
	}
	return money.FormatMinor(e.displayed)
}

// PriceUZS возвращает цену за единицу в сумах.
func (e *Editor) PriceUZS() float64 {
	if e.currency == model.CurrencyUSD {
		return money.RoundDisplay(money.ToMinor(e.displayed, e.rate))
	}
	return e.displayed
}

// Quote возвращает текущий расчёт формы.
func (e *Editor) Quote() Quote {
	price := e.PriceUZS()
	return Quote{
		ProductID:     e.product.ID,
		Tier:          e.tier,
		Currency:      e.currency,
		Displayed:     e.displayed,
		DisplayedText: e.DisplayedText(),
		UnitPriceUZS:  price,
		Quantity:      e.quantity,
		LineTotal:     e.quantity * price,
		Source:        e.source,
		SkladID:       e.skladID,
	}
}

// Confirm проверяет форму и возвращает выбор для корзины.
func (e *Editor) Confirm() (Selection, error) {
	if e.source == model.SourceSklad && e.skladID <= 0 {
		return Selection{}, ErrSkladRequired
	}
	if e.quantity <= 0 {
		return Selection{}, ErrInvalidQuantity
	}
	price := e.PriceUZS()
	return Selection{
		Product:      e.product,
		Tier:         e.tier,
		Quantity:     e.quantity,
		UnitPriceUZS: price,
		LineTotal:    e.quantity * price,
		SkladID:      e.skladID,
	}, nil
}

// Quote — расчёт цены для отображения.
type Quote struct {
	ProductID     int64           `json:"product_id"`
	Tier          model.PriceTier `json:"tier"`
	Currency      model.Currency  `json:"currency"`
	Displayed     float64         `json:"displayed"`
	DisplayedText string          `json:"displayed_text"`
	UnitPriceUZS  float64         `json:"unit_price_uzs"`
	Quantity      float64         `json:"quantity"`
	LineTotal     float64         `json:"line_total"`
	Source        model.Source    `json:"source"`
	SkladID       int64           `json:"sklad_id,omitempty"`
}

// Selection — подтверждённый товар с ценой в сумах.
type Selection struct {
	Product      model.Product
	Tier         model.PriceTier
	Quantity     float64
	UnitPriceUZS float64
	LineTotal    float64
	SkladID      int64
}

// Request — параметры разового расчёта цены.
// Пустые поля оставляют значения формы по умолчанию; Price — ручная цена в валюте Currency.
type Request struct {
	Tier     model.PriceTier
	Currency model.Currency
	Price    *float64
	Quantity float64
	Source   model.Source
	SkladID  int64
}

// NewEditorFor открывает форму и применяет параметры запроса в том порядке,
// в каком их выставил бы кассир: уровень, валюта, цена, количество, источник.
func NewEditorFor(p model.Product, rate float64, req Request) (*Editor, error) {
	e, err := NewEditor(p, rate)
	if err != nil {
		return nil, err
	}
	if req.Tier != "" {
		if err := e.SetTier(req.Tier); err != nil {
			return nil, err
		}
	}
	if req.Currency != "" {
		if err := e.SetCurrency(req.Currency); err != nil {
			return nil, err
		}
	}
	if req.Price != nil {
		if err := e.SetPrice(*req.Price); err != nil {
			return nil, err
		}
	}
	if req.Quantity != 0 {
		if err := e.SetQuantity(req.Quantity); err != nil {
			return nil, err
		}
	}
	if req.Source != "" {
		if err := e.SetSource(req.Source, req.SkladID); err != nil {
			return nil, err
		}
	}
	return e, nil
}

// Resolve рассчитывает цену без сохранения состояния формы.
func Resolve(p model.Product, rate float64, req Request) (Quote, error) {
	e, err := NewEditorFor(p, rate, req)
	if err != nil {
		return Quote{}, err
	}
	return e.Quote(), nil
}
