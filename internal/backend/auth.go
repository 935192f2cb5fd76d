package backend

import (
	"context"
	"net/http"
)

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type refreshRequest struct {
	Refresh string `json:"refresh"`
}

// Login получает пару токенов по логину и паролю кассира.
func (c *Client) Login(ctx context.Context, username, password string) (*TokenPair, error) {
	var out TokenPair
	err := c.do(ctx, request{
		op:     "login",
		method: http.MethodPost,
		path:   "/v1/auth/token",
		body:   loginRequest{Username: username, Password: password},
		public: true,
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// RefreshToken обменивает refresh-токен на новый токен доступа.
// Если бэкенд не вернул новый refresh-токен, сохраняется прежний.
func (c *Client) RefreshToken(ctx context.Context, refresh string) (*TokenPair, error) {
	var out TokenPair
	err := c.do(ctx, request{
		op:     "refresh token",
		method: http.MethodPost,
		path:   "/v1/auth/token/refresh",
		body:   refreshRequest{Refresh: refresh},
		public: true,
	}, &out)
	if err != nil {
		return nil, err
	}
	if out.Refresh == "" {
		out.Refresh = refresh
	}
	return &out, nil
}

// CurrentUser возвращает профиль авторизованного кассира.
func (c *Client) CurrentUser(ctx context.Context) (*User, error) {
	var out User
	err := c.do(ctx, request{
		op:     "current user",
		method: http.MethodGet,
		path:   "/v1/user-view",
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}
