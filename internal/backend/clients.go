package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/mmeshcher/kassa-terminal/internal/model"
)

// SearchClients ищет покупателей по имени или телефону. Удалённые записи отбрасываются.
func (c *Client) SearchClients(ctx context.Context, search string, filialID int64) ([]model.Customer, error) {
	q := url.Values{}
	if search != "" {
		q.Set("search", search)
	}
	setInt(q, "filial", filialID)

	var raw json.RawMessage
	err := c.do(ctx, request{
		op:     "search clients",
		method: http.MethodGet,
		path:   "/v1/client",
		query:  q,
	}, &raw)
	if err != nil {
		return nil, err
	}

	records, err := decodeResults[ClientRecord](raw)
	if err != nil {
		return nil, fmt.Errorf("search clients: decode response: %w", err)
	}

	customers := make([]model.Customer, 0, len(records))
	for _, r := range records {
		if r.IsDelete {
			continue
		}
		customers = append(customers, r.Customer())
	}
	return customers, nil
}

// GetClient возвращает покупателя по идентификатору.
func (c *Client) GetClient(ctx context.Context, id int64) (*model.Customer, error) {
	var out ClientRecord
	err := c.do(ctx, request{
		op:     "get client",
		method: http.MethodGet,
		path:   fmt.Sprintf("/v1/client/%d", id),
	}, &out)
	if err != nil {
		return nil, err
	}
	customer := out.Customer()
	return &customer, nil
}

// CreateClient регистрирует нового покупателя.
func (c *Client) CreateClient(ctx context.Context, req CreateClientRequest) (*model.Customer, error) {
	var out ClientRecord
	err := c.do(ctx, request{
		op:     "create client",
		method: http.MethodPost,
		path:   "/v1/client",
		body:   req,
	}, &out)
	if err != nil {
		return nil, err
	}
	customer := out.Customer()
	return &customer, nil
}
