package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/mmeshcher/kassa-terminal/internal/model"
)

// MemoryRepository хранит журнал продаж в памяти процесса.
type MemoryRepository struct {
	mu    sync.RWMutex
	sales map[int64]model.Sale
}

// NewMemoryRepository создаёт пустой журнал в памяти.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{sales: make(map[int64]model.Sale)}
}

func (r *MemoryRepository) Close() error {
	return nil
}

// AddSale записывает закрытую продажу. Повторная запись того же заказа игнорируется.
func (r *MemoryRepository) AddSale(_ context.Context, sale model.Sale) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sales[sale.OrderID]; ok {
		return nil
	}
	r.sales[sale.OrderID] = cloneSale(sale)
	return nil
}

// ListSales возвращает продажи за дни с from по to включительно, новые первыми.
func (r *MemoryRepository) ListSales(_ context.Context, from, to time.Time) ([]model.Sale, error) {
	start, end := DayBounds(from, to)

	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []model.Sale
	for _, s := range r.sales {
		if inBounds(s.Date, start, end) {
			out = append(out, cloneSale(s))
		}
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Date.Equal(out[j].Date) {
			return out[i].OrderID > out[j].OrderID
		}
		return out[i].Date.After(out[j].Date)
	})
	return out, nil
}

func cloneSale(s model.Sale) model.Sale {
	out := s
	out.Items = append([]model.CartLine(nil), s.Items...)
	if s.Customer != nil {
		c := *s.Customer
		out.Customer = &c
	}
	if s.PaymentMethods != nil {
		out.PaymentMethods = make(map[string]float64, len(s.PaymentMethods))
		for k, v := range s.PaymentMethods {
			out.PaymentMethods[k] = v
		}
	}
	return out
}
