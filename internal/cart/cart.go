package cart

import (
	"github.com/mmeshcher/kassa-terminal/internal/backend"
	"github.com/mmeshcher/kassa-terminal/internal/model"
)

// Cart — корзина в одном из двух видов: *Draft (заказа ещё нет) или *Bound (привязана к заказу).
type Cart interface {
	Lines() []model.CartLine
	Total() float64
	cart()
}

// Draft — локальная корзина до создания заказа. Изменения не уходят в сеть.
type Draft struct {
	lines  []model.CartLine
	nextID int64
}

func (*Draft) cart() {}

// Lines возвращает копию строк.
func (d *Draft) Lines() []model.CartLine {
	return cloneLines(d.lines)
}

func (d *Draft) Total() float64 {
	return Total(d.lines)
}

// add добавляет товар. Строка того же товара, уровня цены и склада объединяется
// с существующей, цена берётся новая.
func (d *Draft) add(it Item) model.CartLine {
	tier := it.tier()
	for i := range d.lines {
		l := &d.lines[i]
		if l.ProductID == it.Product.ID && l.Tier == tier && l.SkladID == it.SkladID {
			l.Quantity += it.Quantity
			l.UnitPrice = it.UnitPrice
			l.TotalPrice = LineTotal(l.Quantity, l.UnitPrice)
			return *l
		}
	}

	d.nextID++
	line := model.CartLine{
		ID:         d.nextID,
		ProductID:  it.Product.ID,
		Name:       it.Product.Name,
		UnitCode:   it.Product.UnitCode,
		Quantity:   it.Quantity,
		UnitPrice:  it.UnitPrice,
		TotalPrice: LineTotal(it.Quantity, it.UnitPrice),
		Tier:       tier,
		SkladID:    it.SkladID,
	}
	d.lines = append(d.lines, line)
	return line
}

func (d *Draft) setQuantity(lineID int64, quantity float64) error {
	for i := range d.lines {
		if d.lines[i].ID == lineID {
			d.lines[i].Quantity = quantity
			d.lines[i].TotalPrice = LineTotal(quantity, d.lines[i].UnitPrice)
			return nil
		}
	}
	return ErrLineNotFound
}

func (d *Draft) remove(lineID int64) error {
	for i := range d.lines {
		if d.lines[i].ID == lineID {
			d.lines = append(d.lines[:i], d.lines[i+1:]...)
			return nil
		}
	}
	return ErrLineNotFound
}

// Bound — корзина заказа на бэкенде. Строки — проекция последней загрузки,
// между загрузками им не доверяют.
type Bound struct {
	OrderID int64
	lines   []model.CartLine
}

func (*Bound) cart() {}

// Lines возвращает копию строк.
func (b *Bound) Lines() []model.CartLine {
	return cloneLines(b.lines)
}

func (b *Bound) Total() float64 {
	return Total(b.lines)
}

func (b *Bound) replace(remote []backend.OrderLine) {
	lines := make([]model.CartLine, 0, len(remote))
	for _, r := range remote {
		if l, ok := fromRemote(r); ok {
			lines = append(lines, l)
		}
	}
	b.lines = lines
}

func lineByID(lines []model.CartLine, id int64) (model.CartLine, bool) {
	for _, l := range lines {
		if l.ID == id {
			return l, true
		}
	}
	return model.CartLine{}, false
}

func cloneLines(lines []model.CartLine) []model.CartLine {
	if len(lines) == 0 {
		return []model.CartLine{}
	}
	out := make([]model.CartLine, len(lines))
	copy(out, lines)
	return out
}
