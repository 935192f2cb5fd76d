// Package rate хранит текущий курс сума к доллару для новых продаж.
package rate

import (
	"sync"

	"github.com/mmeshcher/kassa-terminal/internal/money"
)

// Board — текущий курс терминала. Открытая продажа его не читает:
// курс фиксируется в заказе при создании.
type Board struct {
	mu   sync.RWMutex
	rate float64
}

// NewBoard создаёт табло с начальным курсом.
func NewBoard(initial float64) (*Board, error) {
	if err := money.ValidateRate(initial); err != nil {
		return nil, err
	}
	return &Board{rate: initial}, nil
}

// Current возвращает текущий курс.
func (b *Board) Current() float64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.rate
}

// Set меняет курс для будущих продаж.
func (b *Board) Set(rate float64) error {
	if err := money.ValidateRate(rate); err != nil {
		return err
	}
	b.mu.Lock()
	b.rate = rate
	b.mu.Unlock()
	return nil
}
