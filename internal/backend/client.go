// Package backend предоставляет клиент REST API учётной системы (order-history, каталог, покупатели).
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-cleanhttp"
)

// DefaultTimeout — таймаут запроса к бэкенду по умолчанию.
const DefaultTimeout = 30 * time.Second

// genericMessage показывается кассиру, если бэкенд не прислал пояснение.
const genericMessage = "Xatolik yuz berdi. Qaytadan urinib ko'ring."

// ErrUnauthorized возвращается, когда сессию не удалось восстановить после 401.
var ErrUnauthorized = errors.New("backend: unauthorized")

// APIError описывает ответ бэкенда с кодом ошибки.
type APIError struct {
	Op         string
	StatusCode int
	Detail     string
}

func (e *APIError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s: status %d: %s", e.Op, e.StatusCode, e.Detail)
	}
	return fmt.Sprintf("%s: status %d", e.Op, e.StatusCode)
}

// Message возвращает текст для кассира: пояснение бэкенда или общее сообщение.
func Message(err error) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Detail != "" {
		return apiErr.Detail
	}
	return genericMessage
}

// IsNotFound сообщает, что бэкенд ответил 404.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

// TokenSource выдаёт токен доступа и умеет обновлять его после 401.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
	Refresh(ctx context.Context) (string, error)
}

// Observer получает сведения о каждом запросе к бэкенду.
type Observer interface {
	ObserveRequest(op string, statusCode int, elapsed time.Duration)
}

// Client инкапсулирует HTTP-взаимодействие с бэкендом.
type Client struct {
	baseURL    string
	httpClient *http.Client
	tokens     TokenSource
	observer   Observer
}

// Option настраивает клиент.
type Option func(*Client)

// WithHTTPClient подменяет HTTP-клиент.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithTimeout задаёт таймаут запросов.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.httpClient.Timeout = d
		}
	}
}

// WithObserver подключает наблюдателя запросов (метрики).
func WithObserver(o Observer) Option {
	return func(c *Client) {
		c.observer = o
	}
}

// NewClient создаёт клиент бэкенда по указанному базовому адресу (например, https://host/api).
func NewClient(baseURL string, opts ...Option) *Client {
	base := strings.TrimRight(baseURL, "/")
	if base != "" && !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		base = "http://" + base
	}

	hc := cleanhttp.DefaultPooledClient()
	hc.Timeout = DefaultTimeout

	c := &Client{
		baseURL:    base,
		httpClient: hc,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SetTokenSource подключает источник токенов. Без него запросы уходят без авторизации.
func (c *Client) SetTokenSource(ts TokenSource) {
	c.tokens = ts
}

type request struct {
	op     string
	method string
	path   string
	query  url.Values
	body   any
	public bool
}

func (c *Client) do(ctx context.Context, req request, out any) error {
	if c == nil || c.baseURL == "" {
		return fmt.Errorf("%s: backend client not configured", req.op)
	}

	var payload []byte
	if req.body != nil {
		var err error
		payload, err = json.Marshal(req.body)
		if err != nil {
			return fmt.Errorf("%s: encode request: %w", req.op, err)
		}
	}

	target := c.baseURL + req.path
	if len(req.query) > 0 {
		target += "?" + req.query.Encode()
	}

	var token string
	if !req.public && c.tokens != nil {
		t, err := c.tokens.Token(ctx)
		if err != nil {
			return fmt.Errorf("%s: %w: %v", req.op, ErrUnauthorized, err)
		}
		token = t
	}

	resp, err := c.send(ctx, req, target, payload, token)
	if err != nil {
		return err
	}

	if resp.StatusCode == http.StatusUnauthorized && !req.public && c.tokens != nil {
		resp.Body.Close()

		fresh, refreshErr := c.tokens.Refresh(ctx)
		if refreshErr != nil {
			return fmt.Errorf("%s: %w: %v", req.op, ErrUnauthorized, refreshErr)
		}

		resp, err = c.send(ctx, req, target, payload, fresh)
		if err != nil {
			return err
		}
		if resp.StatusCode == http.StatusUnauthorized {
			resp.Body.Close()
			return fmt.Errorf("%s: %w", req.op, ErrUnauthorized)
		}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		return &APIError{
			Op:         req.op,
			StatusCode: resp.StatusCode,
			Detail:     parseDetail(body),
		}
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s: decode response: %w", req.op, err)
	}
	return nil
}

func (c *Client) send(ctx context.Context, req request, target string, payload []byte, token string) (*http.Response, error) {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.method, target, body)
	if err != nil {
		return nil, fmt.Errorf("%s: create request: %w", req.op, err)
	}
	httpReq.Header.Set("Accept", "application/json")
	if payload != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if c.observer != nil {
		status := 0
		if resp != nil {
			status = resp.StatusCode
		}
		c.observer.ObserveRequest(req.op, status, time.Since(start))
	}
	if err != nil {
		return nil, fmt.Errorf("%s: do request: %w", req.op, err)
	}
	return resp, nil
}

// parseDetail достаёт пояснение из тела ошибки: {"detail": ...}, {"message": ...}
// или ошибки полей вида {"field": ["msg"]}.
func parseDetail(body []byte) string {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return ""
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(body, &obj); err != nil {
		return ""
	}

	for _, key := range []string{"detail", "message", "error"} {
		if raw, ok := obj[key]; ok {
			var s string
			if json.Unmarshal(raw, &s) == nil && s != "" {
				return s
			}
		}
	}

	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		var msgs []string
		if json.Unmarshal(obj[k], &msgs) == nil && len(msgs) > 0 {
			parts = append(parts, k+": "+strings.Join(msgs, " "))
		}
	}
	return strings.Join(parts, "; ")
}

// decodeResults разбирает ответ, который может быть массивом или конвертом {results: [...]}.
func decodeResults[T any](raw json.RawMessage) ([]T, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}

	if raw[0] == '[' {
		var items []T
		if err := json.Unmarshal(raw, &items); err != nil {
			return nil, err
		}
		return items, nil
	}

	var envelope struct {
		Results []T `json:"results"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, err
	}
	return envelope.Results, nil
}

func setInt(q url.Values, key string, v int64) {
	if v > 0 {
		q.Set(key, strconv.FormatInt(v, 10))
	}
}

func setFloat(q url.Values, key string, v float64) {
	if v > 0 {
		q.Set(key, strconv.FormatFloat(v, 'f', -1, 64))
	}
}
