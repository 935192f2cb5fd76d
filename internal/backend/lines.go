package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/mmeshcher/kassa-terminal/internal/money"
)

// ListOrderLines возвращает все строки продажи, включая помеченные удалёнными.
func (c *Client) ListOrderLines(ctx context.Context, orderID int64) ([]OrderLine, error) {
	q := url.Values{}
	q.Set("order_history", strconv.FormatInt(orderID, 10))

	var raw json.RawMessage
	err := c.do(ctx, request{
		op:     "list order lines",
		method: http.MethodGet,
		path:   "/v1/order-history-product",
		query:  q,
	}, &raw)
	if err != nil {
		return nil, err
	}

	lines, err := decodeResults[OrderLine](raw)
	if err != nil {
		return nil, fmt.Errorf("list order lines: decode response: %w", err)
	}
	return lines, nil
}

// CreateOrderLine добавляет строку в продажу.
func (c *Client) CreateOrderLine(ctx context.Context, req CreateOrderLineRequest) (*OrderLine, error) {
	var out OrderLine
	err := c.do(ctx, request{
		op:     "create order line",
		method: http.MethodPost,
		path:   "/v1/order-history-product",
		body:   req,
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateOrderLine меняет количество в строке продажи.
func (c *Client) UpdateOrderLine(ctx context.Context, lineID int64, count float64) (*OrderLine, error) {
	var out OrderLine
	err := c.do(ctx, request{
		op:     "update order line",
		method: http.MethodPatch,
		path:   fmt.Sprintf("/v1/order-history-product/%d", lineID),
		body:   updateOrderLineRequest{Count: money.Decimal(count)},
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteOrderLine удаляет строку продажи.
func (c *Client) DeleteOrderLine(ctx context.Context, lineID int64) error {
	return c.do(ctx, request{
		op:     "delete order line",
		method: http.MethodDelete,
		path:   fmt.Sprintf("/v1/order-history-product/%d", lineID),
	}, nil)
}
