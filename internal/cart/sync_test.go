package cart

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmeshcher/kassa-terminal/internal/backend"
	"github.com/mmeshcher/kassa-terminal/internal/model"
	"github.com/mmeshcher/kassa-terminal/internal/money"
)

// fakeLines хранит строки заказов в памяти и считает вызовы.
type fakeLines struct {
	mu     sync.Mutex
	nextID int64
	lines  map[int64]*backend.OrderLine

	created []backend.CreateOrderLineRequest
	calls   int

	listErr   error
	createErr error
	updateErr error
	deleteErr error

	// block, если задан, задерживает первую загрузку до закрытия канала.
	block   chan struct{}
	started chan struct{}
}

func newFakeLines() *fakeLines {
	return &fakeLines{nextID: 100, lines: make(map[int64]*backend.OrderLine)}
}

func (f *fakeLines) ListOrderLines(_ context.Context, orderID int64) ([]backend.OrderLine, error) {
	f.mu.Lock()
	block := f.block
	f.block = nil
	started := f.started
	f.started = nil
	f.mu.Unlock()

	var snapshot []backend.OrderLine
	f.mu.Lock()
	for _, l := range f.lines {
		if l.OrderHistory == orderID {
			snapshot = append(snapshot, *l)
		}
	}
	err := f.listErr
	f.mu.Unlock()

	if block != nil {
		close(started)
		<-block
	}
	if err != nil {
		return nil, err
	}
	sortLines(snapshot)
	return snapshot, nil
}

func (f *fakeLines) CreateOrderLine(_ context.Context, req backend.CreateOrderLineRequest) (*backend.OrderLine, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.created = append(f.created, req)
	f.nextID++
	line := &backend.OrderLine{
		ID:           f.nextID,
		OrderHistory: req.OrderHistory,
		Product:      req.Product,
		Count:        req.Count,
		PriceType:    req.PriceType,
		Sklad:        req.Sklad,
	}
	if req.UnitPrice != nil {
		line.UnitPrice = *req.UnitPrice
	}
	if req.WholesalePrice != nil {
		line.WholesalePrice = *req.WholesalePrice
	}
	f.lines[line.ID] = line
	return line, nil
}

func (f *fakeLines) UpdateOrderLine(_ context.Context, lineID int64, count float64) (*backend.OrderLine, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.updateErr != nil {
		return nil, f.updateErr
	}
	l, ok := f.lines[lineID]
	if !ok {
		return nil, &backend.APIError{Op: "update order line", StatusCode: 404}
	}
	l.Count = money.Decimal(count)
	return l, nil
}

func (f *fakeLines) DeleteOrderLine(_ context.Context, lineID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.deleteErr != nil {
		return f.deleteErr
	}
	if l, ok := f.lines[lineID]; ok {
		l.IsDelete = true
	}
	return nil
}

func (f *fakeLines) put(l backend.OrderLine) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lines[l.ID] = &l
}

func sortLines(lines []backend.OrderLine) {
	for i := 1; i < len(lines); i++ {
		for j := i; j > 0 && lines[j].ID < lines[j-1].ID; j-- {
			lines[j], lines[j-1] = lines[j-1], lines[j]
		}
	}
}

var bamboo = model.Product{ID: 10, Name: "Bamboo", UnitPrice: 12000, WholesalePrice: 10000, UnitCode: "dona"}

func TestDraft_IsOffline(t *testing.T) {
	api := newFakeLines()
	s := NewSynchronizer(api)
	ctx := context.Background()

	require.NoError(t, s.Add(ctx, Item{Product: bamboo, Quantity: 2, UnitPrice: 12000}))
	require.NoError(t, s.Add(ctx, Item{Product: bamboo, Quantity: 1, UnitPrice: 11000}))

	lines := s.Lines()
	require.Len(t, lines, 1)
	assert.Equal(t, 3.0, lines[0].Quantity)
	assert.Equal(t, 11000.0, lines[0].UnitPrice)
	assert.Equal(t, 33000.0, lines[0].TotalPrice)

	require.NoError(t, s.ApplyDelta(ctx, lines[0].ID, -5))
	assert.Equal(t, 1.0, s.Lines()[0].Quantity)

	require.NoError(t, s.Remove(ctx, lines[0].ID))
	assert.Empty(t, s.Lines())
	assert.Zero(t, api.calls)

	_, bound := s.OrderID()
	assert.False(t, bound)
	assert.IsType(t, &Draft{}, s.Cart())
}

func TestDraft_SeparateLinesPerTierAndSklad(t *testing.T) {
	s := NewSynchronizer(newFakeLines())
	ctx := context.Background()

	require.NoError(t, s.Add(ctx, Item{Product: bamboo, Quantity: 1, UnitPrice: 12000, Tier: model.TierUnit}))
	require.NoError(t, s.Add(ctx, Item{Product: bamboo, Quantity: 1, UnitPrice: 10000, Tier: model.TierWholesale}))
	require.NoError(t, s.Add(ctx, Item{Product: bamboo, Quantity: 1, UnitPrice: 12000, Tier: model.TierUnit, SkladID: 2}))

	assert.Len(t, s.Lines(), 3)
	assert.Equal(t, 34000.0, s.Total())
}

func TestAdd_InvalidQuantity(t *testing.T) {
	s := NewSynchronizer(newFakeLines())
	for _, q := range []float64{0, -1} {
		assert.ErrorIs(t, s.Add(context.Background(), Item{Product: bamboo, Quantity: q, UnitPrice: 1}), ErrInvalidQuantity)
	}
}

func TestBound_AddRefetches(t *testing.T) {
	api := newFakeLines()
	s := NewSynchronizer(api)
	ctx := context.Background()

	require.NoError(t, s.Bind(ctx, 501))
	require.NoError(t, s.Add(ctx, Item{Product: bamboo, Quantity: 2, UnitPrice: 12000}))

	lines := s.Lines()
	require.Len(t, lines, 1)
	assert.Equal(t, int64(101), lines[0].ID)
	assert.Equal(t, 24000.0, lines[0].TotalPrice)
	assert.Equal(t, 24000.0, s.Total())

	require.Len(t, api.created, 1)
	assert.Equal(t, "unit", api.created[0].PriceType)
	require.NotNil(t, api.created[0].UnitPrice)
	assert.Nil(t, api.created[0].WholesalePrice)
	assert.Nil(t, api.created[0].Sklad)
}

func TestBound_AddWholesaleWithSklad(t *testing.T) {
	api := newFakeLines()
	s := NewSynchronizer(api)
	ctx := context.Background()

	require.NoError(t, s.Bind(ctx, 501))
	require.NoError(t, s.Add(ctx, Item{Product: bamboo, Quantity: 5, UnitPrice: 8000, Tier: model.TierWholesale, SkladID: 3}))

	require.Len(t, api.created, 1)
	req := api.created[0]
	assert.Equal(t, "wholesale", req.PriceType)
	assert.Nil(t, req.UnitPrice)
	require.NotNil(t, req.WholesalePrice)
	assert.Equal(t, 8000.0, req.WholesalePrice.Float())
	require.NotNil(t, req.Sklad)
	assert.Equal(t, int64(3), *req.Sklad)

	lines := s.Lines()
	require.Len(t, lines, 1)
	assert.Equal(t, 40000.0, lines[0].TotalPrice)
	assert.Equal(t, model.TierWholesale, lines[0].Tier)
	assert.Equal(t, int64(3), lines[0].SkladID)
}

func TestBound_AddFailureLeavesCart(t *testing.T) {
	api := newFakeLines()
	api.put(backend.OrderLine{ID: 1, OrderHistory: 501, Product: 10, Count: 1, UnitPrice: 12000})
	s := NewSynchronizer(api)
	ctx := context.Background()
	require.NoError(t, s.Bind(ctx, 501))

	api.createErr = &backend.APIError{Op: "create order line", StatusCode: 400, Detail: "Omborda yetarli emas"}
	err := s.Add(ctx, Item{Product: bamboo, Quantity: 1, UnitPrice: 12000})
	require.Error(t, err)
	assert.Equal(t, "Omborda yetarli emas", backend.Message(err))

	require.Len(t, s.Lines(), 1)
	assert.Equal(t, int64(1), s.Lines()[0].ID)
}

func TestBound_ReflectsServerState(t *testing.T) {
	api := newFakeLines()
	s := NewSynchronizer(api)
	ctx := context.Background()
	require.NoError(t, s.Bind(ctx, 501))
	require.NoError(t, s.Add(ctx, Item{Product: bamboo, Quantity: 2, UnitPrice: 12000}))

	// другая касса удалила строку, а сервер добавил свою
	api.mu.Lock()
	api.lines[101].IsDelete = true
	api.mu.Unlock()
	api.put(backend.OrderLine{ID: 200, OrderHistory: 501, Product: 11, Count: 1, UnitPrice: 5000})

	require.NoError(t, s.Add(ctx, Item{Product: bamboo, Quantity: 1, UnitPrice: 12000}))

	var ids []int64
	for _, l := range s.Lines() {
		ids = append(ids, l.ID)
	}
	assert.Equal(t, []int64{102, 200}, ids)
	assert.Equal(t, 17000.0, s.Total())
}

func TestBound_UpdateAndDelta(t *testing.T) {
	api := newFakeLines()
	api.put(backend.OrderLine{ID: 1, OrderHistory: 501, Product: 10, Count: 2, UnitPrice: 12000})
	s := NewSynchronizer(api)
	ctx := context.Background()
	require.NoError(t, s.Bind(ctx, 501))

	assert.ErrorIs(t, s.UpdateQuantity(ctx, 1, 0), ErrInvalidQuantity)
	assert.ErrorIs(t, s.UpdateQuantity(ctx, 1, 0.5), ErrInvalidQuantity)
	assert.Zero(t, api.calls)

	require.NoError(t, s.UpdateQuantity(ctx, 1, 4))
	assert.Equal(t, 48000.0, s.Total())

	require.NoError(t, s.ApplyDelta(ctx, 1, -10))
	assert.Equal(t, 1.0, s.Lines()[0].Quantity)

	calls := api.calls
	require.NoError(t, s.ApplyDelta(ctx, 1, -1))
	assert.Equal(t, calls, api.calls, "delta at the floor must not reach the backend")

	assert.ErrorIs(t, s.ApplyDelta(ctx, 999, 1), ErrLineNotFound)
}

func TestBound_Remove(t *testing.T) {
	api := newFakeLines()
	api.put(backend.OrderLine{ID: 1, OrderHistory: 501, Product: 10, Count: 2, UnitPrice: 12000})
	api.put(backend.OrderLine{ID: 2, OrderHistory: 501, Product: 11, Count: 1, UnitPrice: 3000})
	s := NewSynchronizer(api)
	ctx := context.Background()
	require.NoError(t, s.Bind(ctx, 501))

	require.NoError(t, s.Remove(ctx, 1))
	lines := s.Lines()
	require.Len(t, lines, 1)
	assert.Equal(t, int64(2), lines[0].ID)
}

func TestBound_RemoteFailureKeepsCart(t *testing.T) {
	api := newFakeLines()
	api.put(backend.OrderLine{ID: 1, OrderHistory: 501, Product: 10, Count: 2, UnitPrice: 12000})
	s := NewSynchronizer(api)
	ctx := context.Background()
	require.NoError(t, s.Bind(ctx, 501))

	api.updateErr = errors.New("network down")
	api.deleteErr = errors.New("network down")

	require.Error(t, s.UpdateQuantity(ctx, 1, 5))
	require.Error(t, s.Remove(ctx, 1))

	lines := s.Lines()
	require.Len(t, lines, 1)
	assert.Equal(t, 2.0, lines[0].Quantity)
}

func TestLoadError_EmptiesCart(t *testing.T) {
	api := newFakeLines()
	api.put(backend.OrderLine{ID: 1, OrderHistory: 501, Product: 10, Count: 2, UnitPrice: 12000})
	s := NewSynchronizer(api)
	ctx := context.Background()
	require.NoError(t, s.Bind(ctx, 501))
	require.Len(t, s.Lines(), 1)

	api.listErr = errors.New("timeout")
	lines, err := s.Reload(ctx)

	var loadErr *LoadError
	require.ErrorAs(t, err, &loadErr)
	assert.Equal(t, int64(501), loadErr.OrderID)
	assert.Empty(t, lines)
	assert.Zero(t, s.Total())
}

func TestFetch_FailureKeepsCart(t *testing.T) {
	api := newFakeLines()
	api.put(backend.OrderLine{ID: 1, OrderHistory: 501, Product: 10, Count: 2, UnitPrice: 12000})
	s := NewSynchronizer(api)
	ctx := context.Background()
	require.NoError(t, s.Bind(ctx, 501))

	api.listErr = errors.New("timeout")
	lines, err := s.Fetch(ctx)

	var loadErr *LoadError
	require.ErrorAs(t, err, &loadErr)
	assert.Nil(t, lines)
	require.Len(t, s.Lines(), 1)
	assert.Equal(t, 24000.0, s.Total())

	api.listErr = nil
	api.put(backend.OrderLine{ID: 2, OrderHistory: 501, Product: 11, Count: 1, UnitPrice: 5000})
	lines, err = s.Fetch(ctx)
	require.NoError(t, err)
	assert.Len(t, lines, 2)
	assert.Equal(t, 29000.0, s.Total())
}

func TestBind_MovesDraftLines(t *testing.T) {
	api := newFakeLines()
	s := NewSynchronizer(api)
	ctx := context.Background()

	require.NoError(t, s.Add(ctx, Item{Product: bamboo, Quantity: 2, UnitPrice: 12000}))
	require.NoError(t, s.Bind(ctx, 501))

	orderID, bound := s.OrderID()
	require.True(t, bound)
	assert.Equal(t, int64(501), orderID)

	require.Len(t, api.created, 1)
	assert.Equal(t, int64(501), api.created[0].OrderHistory)
	assert.Equal(t, 24000.0, s.Total())
}

func TestStaleReloadIsDiscarded(t *testing.T) {
	api := newFakeLines()
	api.put(backend.OrderLine{ID: 1, OrderHistory: 501, Product: 10, Count: 1, UnitPrice: 12000})
	s := NewSynchronizer(api)
	ctx := context.Background()
	require.NoError(t, s.Bind(ctx, 501))

	release := make(chan struct{})
	started := make(chan struct{})
	api.mu.Lock()
	api.block = release
	api.started = started
	api.mu.Unlock()

	done := make(chan error, 1)
	go func() {
		_, err := s.Reload(ctx)
		done <- err
	}()
	<-started

	// загрузка выше уже прочитала старое состояние; изменение её обгоняет
	require.NoError(t, s.UpdateQuantity(ctx, 1, 3))
	assert.Equal(t, 3.0, s.Lines()[0].Quantity)

	close(release)
	require.NoError(t, <-done)

	require.Len(t, s.Lines(), 1)
	assert.Equal(t, 3.0, s.Lines()[0].Quantity)
	assert.Equal(t, 36000.0, s.Total())
}

func TestConcurrentDeltasAllApply(t *testing.T) {
	api := newFakeLines()
	api.put(backend.OrderLine{ID: 1, OrderHistory: 501, Product: 10, Count: 1, UnitPrice: 1000})
	s := NewSynchronizer(api)
	ctx := context.Background()
	require.NoError(t, s.Bind(ctx, 501))

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, s.ApplyDelta(ctx, 1, 1))
		}()
	}
	wg.Wait()

	lines := s.Lines()
	require.Len(t, lines, 1)
	assert.Equal(t, 11.0, lines[0].Quantity)
	assert.Equal(t, lines[0].Quantity*lines[0].UnitPrice, lines[0].TotalPrice)
}

func TestReset(t *testing.T) {
	api := newFakeLines()
	s := NewSynchronizer(api)
	require.NoError(t, s.Bind(context.Background(), 501))

	s.Reset()
	_, bound := s.OrderID()
	assert.False(t, bound)
	assert.Empty(t, s.Lines())
}

type countingObserver struct {
	kinds []string
}

func (o *countingObserver) ObserveCartMutation(kind string) {
	o.kinds = append(o.kinds, kind)
}

func TestObserver(t *testing.T) {
	api := newFakeLines()
	s := NewSynchronizer(api)
	obs := &countingObserver{}
	s.SetObserver(obs)
	ctx := context.Background()
	require.NoError(t, s.Bind(ctx, 501))

	require.NoError(t, s.Add(ctx, Item{Product: bamboo, Quantity: 1, UnitPrice: 12000}))
	require.NoError(t, s.UpdateQuantity(ctx, 101, 2))
	require.NoError(t, s.Remove(ctx, 101))

	assert.Equal(t, []string{MutationAdd, MutationUpdate, MutationRemove}, obs.kinds)
}
