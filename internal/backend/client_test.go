package backend

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubTokens struct {
	token     string
	refreshed string
	refreshes int32
	err       error
}

func (s *stubTokens) Token(context.Context) (string, error) {
	return s.token, nil
}

func (s *stubTokens) Refresh(context.Context) (string, error) {
	atomic.AddInt32(&s.refreshes, 1)
	if s.err != nil {
		return "", s.err
	}
	return s.refreshed, nil
}

func testContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestCreateOrder_OK(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/order-history", r.URL.Path)
		assert.Equal(t, "Bearer access", r.Header.Get("Authorization"))

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "12180", body["exchange_rate"])
		assert.Equal(t, true, body["is_karzinka"])
		assert.Equal(t, float64(7), body["client"])

		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"id": 501, "client": 7, "employee": 3, "exchange_rate": "12180.00", "is_karzinka": true}`)
	}))
	defer ts.Close()

	client := NewClient(ts.URL)
	client.SetTokenSource(&stubTokens{token: "access"})

	order, err := client.CreateOrder(testContext(t), NewBasketOrder(7, 3, 12180))
	require.NoError(t, err)
	assert.Equal(t, int64(501), order.ID)
	assert.Equal(t, 12180.0, order.Order().ExchangeRate)
	assert.True(t, order.Order().IsBasket)
}

func TestDo_RefreshesOnceOn401(t *testing.T) {
	var calls int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		if r.Header.Get("Authorization") != "Bearer fresh" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = io.WriteString(w, `{"id": 1, "username": "kassir", "order_filial": 4}`)
	}))
	defer ts.Close()

	tokens := &stubTokens{token: "stale", refreshed: "fresh"}
	client := NewClient(ts.URL)
	client.SetTokenSource(tokens)

	user, err := client.CurrentUser(testContext(t))
	require.NoError(t, err)
	assert.Equal(t, int64(4), user.Cashier().FilialID)
	assert.Equal(t, int32(1), atomic.LoadInt32(&tokens.refreshes))
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestDo_SecondUnauthorized(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer ts.Close()

	tokens := &stubTokens{token: "stale", refreshed: "still-bad"}
	client := NewClient(ts.URL)
	client.SetTokenSource(tokens)

	_, err := client.GetOrder(testContext(t), 1)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnauthorized)
	assert.Equal(t, int32(1), atomic.LoadInt32(&tokens.refreshes))
}

func TestDo_RefreshFailure(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer ts.Close()

	client := NewClient(ts.URL)
	client.SetTokenSource(&stubTokens{token: "stale", err: errors.New("refresh expired")})

	err := client.DeleteOrder(testContext(t), 1)
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestDo_APIErrorDetail(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		message string
	}{
		{name: "detail", status: http.StatusBadRequest, body: `{"detail": "Mahsulot topilmadi"}`, message: "Mahsulot topilmadi"},
		{name: "field errors", status: http.StatusBadRequest, body: `{"phone_number": ["already exists"], "full_name": ["required"]}`, message: "full_name: required; phone_number: already exists"},
		{name: "no body", status: http.StatusInternalServerError, body: ``, message: genericMessage},
		{name: "html", status: http.StatusBadGateway, body: `<html>bad gateway</html>`, message: genericMessage},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, tt.body)
			}))
			defer ts.Close()

			client := NewClient(ts.URL)
			_, err := client.GetClient(testContext(t), 9)
			require.Error(t, err)

			var apiErr *APIError
			require.ErrorAs(t, err, &apiErr)
			assert.Equal(t, tt.status, apiErr.StatusCode)
			assert.Equal(t, tt.message, Message(err))
		})
	}
}

func TestIsNotFound(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer ts.Close()

	_, err := NewClient(ts.URL).GetProduct(testContext(t), 1)
	assert.True(t, IsNotFound(err))
}

func TestListOrderLines_ArrayAndEnvelope(t *testing.T) {
	bodies := map[string]string{
		"array":    `[{"id": 1, "product": 10, "count": "2.00", "unit_price": "12000.00", "price_type": "unit"}]`,
		"envelope": `{"count": 1, "results": [{"id": 1, "product": 10, "count": "2.00", "unit_price": "12000.00", "price_type": "unit"}]}`,
	}

	for name, body := range bodies {
		t.Run(name, func(t *testing.T) {
			ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/v1/order-history-product", r.URL.Path)
				assert.Equal(t, "501", r.URL.Query().Get("order_history"))
				_, _ = io.WriteString(w, body)
			}))
			defer ts.Close()

			lines, err := NewClient(ts.URL).ListOrderLines(testContext(t), 501)
			require.NoError(t, err)
			require.Len(t, lines, 1)
			assert.Equal(t, 2.0, lines[0].Count.Float())
			assert.Equal(t, 12000.0, lines[0].UnitPrice.Float())
		})
	}
}

func TestUpdateOrderLine_SendsCount(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPatch, r.Method)
		assert.Equal(t, "/v1/order-history-product/77", r.URL.Path)

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "3", body["count"])

		_, _ = io.WriteString(w, `{"id": 77, "count": "3"}`)
	}))
	defer ts.Close()

	line, err := NewClient(ts.URL).UpdateOrderLine(testContext(t), 77, 3)
	require.NoError(t, err)
	assert.Equal(t, 3.0, line.Count.Float())
}

func TestListProducts_SkipsDeleted(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "4", r.URL.Query().Get("filial"))
		assert.Equal(t, "qalpoq", r.URL.Query().Get("search"))
		_, _ = io.WriteString(w, `{
			"pagination": {"currentPage": 1, "lastPage": 1, "perPage": 20, "total": 2},
			"results": [
				{"id": 1, "branch_detail": {"id": 1, "name": "Kiyim"}, "size_detail": {"id": 2, "size": 42}, "unit_price": "12000", "wholesale_price": "10000", "real_price": "11000", "count": "5", "unit_code": ""},
				{"id": 2, "is_delete": true}
			]
		}`)
	}))
	defer ts.Close()

	products, page, err := NewClient(ts.URL).ListProducts(testContext(t), ProductFilter{Search: "qalpoq", Filial: 4})
	require.NoError(t, err)
	require.Len(t, products, 1)
	assert.Equal(t, "Kiyim 42", products[0].Name)
	assert.Equal(t, "dona", products[0].UnitCode)
	assert.Equal(t, 11000.0, products[0].Price)
	require.NotNil(t, page)
	assert.Equal(t, 2, page.Total)
}

func TestProductStock_Empty(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/product-stock/", r.URL.Path)
		_, _ = io.WriteString(w, `[]`)
	}))
	defer ts.Close()

	stock, err := NewClient(ts.URL).ProductStock(testContext(t), 10, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(10), stock.Product)
	assert.Equal(t, int64(2), stock.Sklad)
	assert.Equal(t, 0.0, stock.Count.Float())
}

func TestListMyOrders_Filters(t *testing.T) {
	basket := true
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "/v1/order-history/self", r.URL.Path)
		assert.Equal(t, "2026-10-01", q.Get("date_from"))
		assert.Equal(t, "true", q.Get("is_karzinka"))
		assert.Equal(t, "1000000", q.Get("all_product_summa_min"))
		assert.Empty(t, q.Get("summa_total_min"))
		_, _ = io.WriteString(w, `{"count": 1, "results": [{"id": 5, "all_product_summa": "1200000.00"}]}`)
	}))
	defer ts.Close()

	page, err := NewClient(ts.URL).ListMyOrders(testContext(t), OrderFilter{
		DateFrom:           "2026-10-01",
		IsKarzinka:         &basket,
		AllProductSummaMin: 1_000_000,
	})
	require.NoError(t, err)
	require.Len(t, page.Results, 1)
	assert.Equal(t, 1200000.0, page.Results[0].Order().AllProductSumma)
}

func TestRefreshToken_KeepsRefresh(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("Authorization"))
		_, _ = io.WriteString(w, `{"access": "new-access"}`)
	}))
	defer ts.Close()

	client := NewClient(ts.URL)
	client.SetTokenSource(&stubTokens{token: "ignored"})

	pair, err := client.RefreshToken(testContext(t), "old-refresh")
	require.NoError(t, err)
	assert.Equal(t, "new-access", pair.Access)
	assert.Equal(t, "old-refresh", pair.Refresh)
}

func TestNewClient_AddsScheme(t *testing.T) {
	c := NewClient("localhost:8000/api/")
	assert.Equal(t, "http://localhost:8000/api", c.baseURL)
}
