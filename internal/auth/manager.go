// Package auth ведёт авторизацию кассира: токены бэкенда, профиль и выход.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/mmeshcher/kassa-terminal/internal/backend"
	"github.com/mmeshcher/kassa-terminal/internal/cache"
	"github.com/mmeshcher/kassa-terminal/internal/model"
)

// refreshSkew — за сколько до истечения токен доступа обновляется заранее.
const refreshSkew = 30 * time.Second

var (
	ErrNotLoggedIn        = errors.New("cashier is not logged in")
	ErrInvalidCredentials = errors.New("username and password are required")
)

// Backend — часть API бэкенда, нужная для авторизации.
type Backend interface {
	Login(ctx context.Context, username, password string) (*backend.TokenPair, error)
	RefreshToken(ctx context.Context, refresh string) (*backend.TokenPair, error)
	CurrentUser(ctx context.Context) (*backend.User, error)
}

// Manager хранит авторизацию кассира и выдаёт токен для запросов к бэкенду.
// Реализует backend.TokenSource.
type Manager struct {
	api    Backend
	store  cache.TokenStore
	logger *zap.Logger
	now    func() time.Time

	mu    sync.Mutex
	creds *cache.Credentials
	hooks []func()

	refreshMu sync.Mutex
}

// NewManager создаёт менеджер авторизации.
func NewManager(api Backend, store cache.TokenStore, logger *zap.Logger) *Manager {
	if store == nil {
		store = cache.NewMemoryTokenStore()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		api:    api,
		store:  store,
		logger: logger,
		now:    time.Now,
	}
}

// OnLogout регистрирует обработчик, вызываемый при любом выходе кассира,
// включая принудительный после неудачного обновления токена.
func (m *Manager) OnLogout(fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hooks = append(m.hooks, fn)
}

// Restore поднимает сохранённую авторизацию после перезапуска терминала.
func (m *Manager) Restore(ctx context.Context) (model.Cashier, bool, error) {
	creds, ok, err := m.store.Load(ctx)
	if err != nil {
		return model.Cashier{}, false, fmt.Errorf("load credentials: %w", err)
	}
	if !ok || creds.Access == "" {
		return model.Cashier{}, false, nil
	}

	m.mu.Lock()
	m.creds = creds
	m.mu.Unlock()

	if creds.Cashier != nil {
		return *creds.Cashier, true, nil
	}

	cashier, err := m.loadCashier(ctx)
	if err != nil {
		m.clear(ctx)
		return model.Cashier{}, false, err
	}
	return cashier, true, nil
}

// Login авторизует кассира в бэкенде и загружает его профиль.
func (m *Manager) Login(ctx context.Context, username, password string) (model.Cashier, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return model.Cashier{}, ErrInvalidCredentials
	}

	pair, err := m.api.Login(ctx, username, password)
	if err != nil {
		return model.Cashier{}, err
	}

	m.mu.Lock()
	m.creds = &cache.Credentials{Access: pair.Access, Refresh: pair.Refresh}
	m.mu.Unlock()

	cashier, err := m.loadCashier(ctx)
	if err != nil {
		m.clear(ctx)
		return model.Cashier{}, err
	}

	m.logger.Info("cashier logged in", zap.Int64("cashierID", cashier.ID), zap.String("username", cashier.Username))
	return cashier, nil
}

func (m *Manager) loadCashier(ctx context.Context) (model.Cashier, error) {
	user, err := m.api.CurrentUser(ctx)
	if err != nil {
		return model.Cashier{}, err
	}
	cashier := user.Cashier()

	m.mu.Lock()
	if m.creds == nil {
		m.mu.Unlock()
		return model.Cashier{}, ErrNotLoggedIn
	}
	m.creds.Cashier = &cashier
	snapshot := *m.creds
	m.mu.Unlock()

	if err := m.store.Save(ctx, &snapshot); err != nil {
		m.logger.Warn("failed to persist credentials", zap.Error(err))
	}
	return cashier, nil
}

// Logout завершает сессию кассира. Незавершённая продажа сбрасывается обработчиками OnLogout.
func (m *Manager) Logout(ctx context.Context) {
	m.clear(ctx)
}

// Cashier возвращает профиль авторизованного кассира.
func (m *Manager) Cashier() (model.Cashier, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.creds == nil || m.creds.Cashier == nil {
		return model.Cashier{}, false
	}
	return *m.creds.Cashier, true
}

// Token возвращает действующий токен доступа, заранее обновляя истекающий.
func (m *Manager) Token(ctx context.Context) (string, error) {
	m.mu.Lock()
	if m.creds == nil {
		m.mu.Unlock()
		return "", ErrNotLoggedIn
	}
	access := m.creds.Access
	canRefresh := m.creds.Refresh != ""
	m.mu.Unlock()

	if canRefresh && m.expiresSoon(access) {
		return m.Refresh(ctx)
	}
	return access, nil
}

// Refresh обменивает refresh-токен на новый токен доступа.
// При неудаче сессия кассира сбрасывается.
func (m *Manager) Refresh(ctx context.Context) (string, error) {
	m.mu.Lock()
	if m.creds == nil {
		m.mu.Unlock()
		return "", ErrNotLoggedIn
	}
	stale := m.creds.Access
	m.mu.Unlock()

	m.refreshMu.Lock()
	defer m.refreshMu.Unlock()

	m.mu.Lock()
	if m.creds == nil {
		m.mu.Unlock()
		return "", ErrNotLoggedIn
	}
	if m.creds.Access != stale {
		// другой запрос уже обновил токен, пока мы ждали
		access := m.creds.Access
		m.mu.Unlock()
		return access, nil
	}
	refresh := m.creds.Refresh
	m.mu.Unlock()

	if refresh == "" {
		m.clear(ctx)
		return "", ErrNotLoggedIn
	}

	pair, err := m.api.RefreshToken(ctx, refresh)
	if err != nil {
		m.logger.Warn("token refresh failed, clearing session", zap.Error(err))
		m.clear(ctx)
		return "", fmt.Errorf("refresh token: %w", err)
	}

	m.mu.Lock()
	if m.creds == nil {
		m.mu.Unlock()
		return "", ErrNotLoggedIn
	}
	m.creds.Access = pair.Access
	if pair.Refresh != "" {
		m.creds.Refresh = pair.Refresh
	}
	snapshot := *m.creds
	m.mu.Unlock()

	if err := m.store.Save(ctx, &snapshot); err != nil {
		m.logger.Warn("failed to persist credentials", zap.Error(err))
	}
	return pair.Access, nil
}

func (m *Manager) clear(ctx context.Context) {
	m.mu.Lock()
	hadSession := m.creds != nil
	m.creds = nil
	hooks := append([]func(){}, m.hooks...)
	m.mu.Unlock()

	if err := m.store.Clear(ctx); err != nil {
		m.logger.Warn("failed to clear credentials", zap.Error(err))
	}
	if !hadSession {
		return
	}
	for _, fn := range hooks {
		fn()
	}
}

// expiresSoon читает exp из токена без проверки подписи: подпись проверяет бэкенд.
func (m *Manager) expiresSoon(token string) bool {
	claims := jwtlib.MapClaims{}
	if _, _, err := jwtlib.NewParser().ParseUnverified(token, claims); err != nil {
		return false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return false
	}
	return m.now().Add(refreshSkew).After(exp.Time)
}
