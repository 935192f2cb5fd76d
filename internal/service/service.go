// Package service связывает ядро кассы с бэкендом, журналом продаж и метриками.
package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/mmeshcher/kassa-terminal/internal/auth"
	"github.com/mmeshcher/kassa-terminal/internal/backend"
	"github.com/mmeshcher/kassa-terminal/internal/cart"
	"github.com/mmeshcher/kassa-terminal/internal/model"
	"github.com/mmeshcher/kassa-terminal/internal/session"
	"github.com/mmeshcher/kassa-terminal/internal/validation"
)

// Backend описывает операции бэкенда, используемые сервисом.
type Backend interface {
	session.Backend
	ListProducts(ctx context.Context, f backend.ProductFilter) ([]model.Product, *backend.Pagination, error)
	GetProduct(ctx context.Context, id int64) (*model.Product, error)
	ListBranches(ctx context.Context) ([]backend.Branch, error)
	ListSklads(ctx context.Context, filialID int64) ([]backend.Sklad, error)
	ProductStock(ctx context.Context, productID, skladID int64) (*backend.ProductStock, error)
	SearchClients(ctx context.Context, search string, filialID int64) ([]model.Customer, error)
	CreateClient(ctx context.Context, req backend.CreateClientRequest) (*model.Customer, error)
	ListMyOrders(ctx context.Context, f backend.OrderFilter) (*backend.OrderPage, error)
}

// Auth описывает сессию кассира.
type Auth interface {
	Login(ctx context.Context, username, password string) (model.Cashier, error)
	Logout(ctx context.Context)
	Restore(ctx context.Context) (model.Cashier, bool, error)
	Cashier() (model.Cashier, bool)
	OnLogout(fn func())
}

// Journal описывает локальный журнал завершённых продаж.
type Journal interface {
	Close() error
	AddSale(ctx context.Context, sale model.Sale) error
	ListSales(ctx context.Context, from, to time.Time) ([]model.Sale, error)
}

// Rates описывает табло курса.
type Rates interface {
	Current() float64
	Set(rate float64) error
}

// Metrics принимает события продаж.
type Metrics interface {
	cart.Observer
	ObserveSale(total float64)
	ObserveCancel()
}

// Option настраивает сервис.
type Option func(*Service)

// WithLogger задаёт логгер.
func WithLogger(l *zap.Logger) Option {
	return func(s *Service) {
		s.logger = l
	}
}

// WithMetrics подключает метрики.
func WithMetrics(m Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithFilial задаёт филиал по умолчанию, если у кассира он не указан.
func WithFilial(id int64) Option {
	return func(s *Service) {
		s.filialID = id
	}
}

// Service содержит бизнес-логику кассового терминала.
type Service struct {
	api      Backend
	auth     Auth
	rates    Rates
	journal  Journal
	metrics  Metrics
	logger   *zap.Logger
	filialID int64

	mu   sync.RWMutex
	sess *session.Session
}

// NewService создаёт сервис. Продажа кассира сбрасывается при выходе и при потере авторизации.
func NewService(api Backend, a Auth, rates Rates, journal Journal, opts ...Option) *Service {
	s := &Service{
		api:     api,
		auth:    a,
		rates:   rates,
		journal: journal,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	a.OnLogout(s.dropSession)
	return s
}

// Close закрывает ресурсы сервиса.
func (s *Service) Close() error {
	if s.journal != nil {
		return s.journal.Close()
	}
	return nil
}

// Login авторизует кассира и открывает для него пустую продажу.
func (s *Service) Login(ctx context.Context, username, password string) (model.Cashier, error) {
	cashier, err := s.auth.Login(ctx, username, password)
	if err != nil {
		return model.Cashier{}, err
	}
	s.openSession(cashier)
	return cashier, nil
}

// Restore поднимает сохранённую авторизацию при старте терминала.
func (s *Service) Restore(ctx context.Context) (model.Cashier, bool, error) {
	cashier, ok, err := s.auth.Restore(ctx)
	if err != nil || !ok {
		return model.Cashier{}, false, err
	}
	s.openSession(cashier)
	s.logger.Info("cashier session restored", zap.Int64("cashierID", cashier.ID))
	return cashier, true, nil
}

// Logout завершает работу кассира. Незакрытая продажа остаётся на бэкенде корзиной.
func (s *Service) Logout(ctx context.Context) {
	s.auth.Logout(ctx)
	s.dropSession()
}

// Me возвращает текущего кассира.
func (s *Service) Me() (model.Cashier, bool) {
	return s.auth.Cashier()
}

func (s *Service) openSession(cashier model.Cashier) {
	opts := []session.Option{session.WithLogger(s.logger)}
	if s.metrics != nil {
		opts = append(opts, session.WithCartObserver(s.metrics))
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sess != nil {
		s.sess.Reset()
	}
	s.sess = session.New(s.api, s.rates, cashier, opts...)
}

func (s *Service) dropSession() {
	s.mu.Lock()
	sess := s.sess
	s.sess = nil
	s.mu.Unlock()

	if sess != nil {
		sess.Reset()
		s.logger.Info("cashier session dropped", zap.Int64("cashierID", sess.Cashier().ID))
	}
}

func (s *Service) current() (*session.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.sess == nil {
		return nil, auth.ErrNotLoggedIn
	}
	return s.sess, nil
}

// filial возвращает филиал кассира, а при его отсутствии — филиал из конфигурации.
func (s *Service) filial() int64 {
	if c, ok := s.auth.Cashier(); ok && c.FilialID > 0 {
		return c.FilialID
	}
	return s.filialID
}

// ExchangeRate возвращает текущий курс для новых продаж.
func (s *Service) ExchangeRate() float64 {
	return s.rates.Current()
}

// SetExchangeRate меняет курс для новых продаж. Открытые продажи его не видят.
func (s *Service) SetExchangeRate(rate float64) error {
	if err := s.rates.Set(rate); err != nil {
		return err
	}
	s.logger.Info("exchange rate changed", zap.Float64("rate", rate))
	return nil
}

// Products возвращает страницу каталога филиала.
func (s *Service) Products(ctx context.Context, f backend.ProductFilter) ([]model.Product, *backend.Pagination, error) {
	if f.Filial == 0 {
		f.Filial = s.filial()
	}
	return s.api.ListProducts(ctx, f)
}

// Branches возвращает разделы каталога.
func (s *Service) Branches(ctx context.Context) ([]backend.Branch, error) {
	return s.api.ListBranches(ctx)
}

// Sklads возвращает склады филиала кассира.
func (s *Service) Sklads(ctx context.Context) ([]backend.Sklad, error) {
	return s.api.ListSklads(ctx, s.filial())
}

// Stock возвращает остаток товара на складе.
func (s *Service) Stock(ctx context.Context, productID, skladID int64) (*backend.ProductStock, error) {
	return s.api.ProductStock(ctx, productID, skladID)
}

// SearchClients ищет покупателей филиала.
func (s *Service) SearchClients(ctx context.Context, search string) ([]model.Customer, error) {
	return s.api.SearchClients(ctx, strings.TrimSpace(search), s.filial())
}

// CreateClient создаёт покупателя. Имя обязательно, телефон приводится к +998XXXXXXXXX.
func (s *Service) CreateClient(ctx context.Context, name, phone string) (*model.Customer, error) {
	name, err := validation.CustomerName(name)
	if err != nil {
		return nil, err
	}
	phone, err = validation.NormalizePhone(phone)
	if err != nil {
		return nil, err
	}

	c, err := s.api.CreateClient(ctx, backend.CreateClientRequest{
		FullName:    name,
		PhoneNumber: phone,
		Filial:      s.filial(),
	})
	if err != nil {
		return nil, fmt.Errorf("create client: %w", err)
	}
	s.logger.Info("client created", zap.Int64("clientID", c.ID))
	return c, nil
}

// Orders возвращает продажи кассира для дашборда.
func (s *Service) Orders(ctx context.Context, f backend.OrderFilter) (*backend.OrderPage, error) {
	return s.api.ListMyOrders(ctx, f)
}

// Sales возвращает продажи из локального журнала за дни с from по to.
func (s *Service) Sales(ctx context.Context, from, to time.Time) ([]model.Sale, error) {
	return s.journal.ListSales(ctx, from, to)
}
