package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/mmeshcher/kassa-terminal/internal/model"
)

// ListProducts запрашивает каталог филиала. Помеченные удалёнными товары отбрасываются.
func (c *Client) ListProducts(ctx context.Context, f ProductFilter) ([]model.Product, *Pagination, error) {
	q := url.Values{}
	setInt(q, "page", int64(f.Page))
	setInt(q, "per_page", int64(f.PerPage))
	if f.Search != "" {
		q.Set("search", f.Search)
	}
	setInt(q, "filial", f.Filial)
	setInt(q, "branch", f.Branch)
	setInt(q, "model", f.Model)
	setInt(q, "type", f.Type)

	var out struct {
		Pagination *Pagination     `json:"pagination"`
		Results    []ProductRecord `json:"results"`
	}
	err := c.do(ctx, request{
		op:     "list products",
		method: http.MethodGet,
		path:   "/v1/product",
		query:  q,
	}, &out)
	if err != nil {
		return nil, nil, err
	}

	products := make([]model.Product, 0, len(out.Results))
	for _, r := range out.Results {
		if r.IsDelete {
			continue
		}
		products = append(products, r.Product())
	}
	return products, out.Pagination, nil
}

// GetProduct возвращает товар по идентификатору.
func (c *Client) GetProduct(ctx context.Context, id int64) (*model.Product, error) {
	var out ProductRecord
	err := c.do(ctx, request{
		op:     "get product",
		method: http.MethodGet,
		path:   fmt.Sprintf("/v1/product/%d", id),
	}, &out)
	if err != nil {
		return nil, err
	}
	p := out.Product()
	return &p, nil
}

// ListBranches возвращает разделы каталога.
func (c *Client) ListBranches(ctx context.Context) ([]Branch, error) {
	var raw json.RawMessage
	err := c.do(ctx, request{
		op:     "list branches",
		method: http.MethodGet,
		path:   "/v1/product-branch",
	}, &raw)
	if err != nil {
		return nil, err
	}
	branches, err := decodeResults[Branch](raw)
	if err != nil {
		return nil, fmt.Errorf("list branches: decode response: %w", err)
	}
	return branches, nil
}

// ListSklads возвращает склады филиала.
func (c *Client) ListSklads(ctx context.Context, filialID int64) ([]Sklad, error) {
	q := url.Values{}
	setInt(q, "filial", filialID)

	var raw json.RawMessage
	err := c.do(ctx, request{
		op:     "list sklads",
		method: http.MethodGet,
		path:   "/v1/sklad",
		query:  q,
	}, &raw)
	if err != nil {
		return nil, err
	}
	sklads, err := decodeResults[Sklad](raw)
	if err != nil {
		return nil, fmt.Errorf("list sklads: decode response: %w", err)
	}
	return sklads, nil
}

// ProductStock возвращает остаток товара на складе; если записи нет — нулевой остаток.
func (c *Client) ProductStock(ctx context.Context, productID, skladID int64) (*ProductStock, error) {
	q := url.Values{}
	q.Set("product", strconv.FormatInt(productID, 10))
	q.Set("sklad", strconv.FormatInt(skladID, 10))

	var raw json.RawMessage
	err := c.do(ctx, request{
		op:     "product stock",
		method: http.MethodGet,
		path:   "/v1/product-stock/",
		query:  q,
	}, &raw)
	if err != nil {
		return nil, err
	}

	stocks, err := decodeResults[ProductStock](raw)
	if err != nil {
		return nil, fmt.Errorf("product stock: decode response: %w", err)
	}
	if len(stocks) == 0 {
		return &ProductStock{Product: productID, Sklad: skladID}, nil
	}
	return &stocks[0], nil
}
