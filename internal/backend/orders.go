package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
)

// CreateOrder открывает новую продажу (POST /v1/order-history).
func (c *Client) CreateOrder(ctx context.Context, req CreateOrderRequest) (*OrderRecord, error) {
	var out OrderRecord
	err := c.do(ctx, request{
		op:     "create order",
		method: http.MethodPost,
		path:   "/v1/order-history",
		body:   req,
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// GetOrder возвращает продажу по идентификатору.
func (c *Client) GetOrder(ctx context.Context, id int64) (*OrderRecord, error) {
	var out OrderRecord
	err := c.do(ctx, request{
		op:     "get order",
		method: http.MethodGet,
		path:   fmt.Sprintf("/v1/order-history/%d", id),
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateOrder частично обновляет продажу.
func (c *Client) UpdateOrder(ctx context.Context, id int64, patch OrderPatch) (*OrderRecord, error) {
	var out OrderRecord
	err := c.do(ctx, request{
		op:     "update order",
		method: http.MethodPatch,
		path:   fmt.Sprintf("/v1/order-history/%d", id),
		body:   patch,
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteOrder отменяет продажу; бэкенд помечает её удалённой.
func (c *Client) DeleteOrder(ctx context.Context, id int64) error {
	return c.do(ctx, request{
		op:     "delete order",
		method: http.MethodDelete,
		path:   fmt.Sprintf("/v1/order-history/%d", id),
	}, nil)
}

// ListMyOrders возвращает продажи текущего кассира для дашборда.
func (c *Client) ListMyOrders(ctx context.Context, f OrderFilter) (*OrderPage, error) {
	q := url.Values{}
	setInt(q, "page", int64(f.Page))
	setInt(q, "page_size", int64(f.PageSize))
	if f.Search != "" {
		q.Set("search", f.Search)
	}
	if f.DateFrom != "" {
		q.Set("date_from", f.DateFrom)
	}
	if f.DateTo != "" {
		q.Set("date_to", f.DateTo)
	}
	setInt(q, "created_by", f.CreatedBy)
	if f.IsKarzinka != nil {
		q.Set("is_karzinka", strconv.FormatBool(*f.IsKarzinka))
	}
	setFloat(q, "all_product_summa_min", f.AllProductSummaMin)
	setFloat(q, "total_debt_today_client_min", f.TotalDebtTodayClientMin)
	setFloat(q, "total_debt_client_min", f.TotalDebtClientMin)
	setFloat(q, "summa_total_min", f.SummaTotalMin)

	var raw json.RawMessage
	err := c.do(ctx, request{
		op:     "list orders",
		method: http.MethodGet,
		path:   "/v1/order-history/self",
		query:  q,
	}, &raw)
	if err != nil {
		return nil, err
	}

	var page OrderPage
	if len(raw) > 0 && raw[0] == '[' {
		if err := json.Unmarshal(raw, &page.Results); err != nil {
			return nil, fmt.Errorf("list orders: decode response: %w", err)
		}
		page.Count = len(page.Results)
		return &page, nil
	}
	if err := json.Unmarshal(raw, &page); err != nil {
		return nil, fmt.Errorf("list orders: decode response: %w", err)
	}
	return &page, nil
}
