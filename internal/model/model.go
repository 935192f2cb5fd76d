// Package model содержит доменные сущности кассового терминала.
package model

import (
	"strings"
	"time"
)

// PriceTier описывает ценовой уровень строки: поштучная или оптовая цена.
type PriceTier string

const (
	TierUnit      PriceTier = "unit"
	TierWholesale PriceTier = "wholesale"
)

// Valid сообщает, известен ли ценовой уровень.
func (t PriceTier) Valid() bool {
	return t == TierUnit || t == TierWholesale
}

// Currency описывает валюту отображения цены.
type Currency string

const (
	CurrencyUZS Currency = "UZS"
	CurrencyUSD Currency = "USD"
)

// Valid сообщает, известна ли валюта.
func (c Currency) Valid() bool {
	return c == CurrencyUZS || c == CurrencyUSD
}

// Source описывает, откуда отпускается товар: из филиала или со склада.
type Source string

const (
	SourceFilial Source = "filial"
	SourceSklad  Source = "sklad"
)

// UnitWholesale — код единицы, для которой по умолчанию выбирается оптовая цена.
const UnitWholesale = "optom"

// Product описывает товар каталога филиала. Ядро товар не изменяет.
type Product struct {
	ID             int64   `json:"id"`
	Name           string  `json:"name"`
	BranchName     string  `json:"branch_name,omitempty"`
	ModelName      string  `json:"model_name,omitempty"`
	TypeName       string  `json:"type_name,omitempty"`
	Size           string  `json:"size,omitempty"`
	UnitPrice      float64 `json:"unit_price"`
	WholesalePrice float64 `json:"wholesale_price"`
	Price          float64 `json:"price"`
	Stock          float64 `json:"stock"`
	UnitCode       string  `json:"unit_code"`
	FilialID       int64   `json:"filial_id,omitempty"`
}

// DefaultTier возвращает ценовой уровень по умолчанию для товара.
func (p Product) DefaultTier() PriceTier {
	if strings.EqualFold(strings.TrimSpace(p.UnitCode), UnitWholesale) {
		return TierWholesale
	}
	return TierUnit
}

// BasePrice возвращает цену уровня tier в сумах, а если она не задана — общую цену товара.
func (p Product) BasePrice(tier PriceTier) float64 {
	price := p.UnitPrice
	if tier == TierWholesale {
		price = p.WholesalePrice
	}
	if price <= 0 {
		return p.Price
	}
	return price
}

// ComposeName собирает отображаемое имя из частей, пропуская пустые.
func ComposeName(parts ...string) string {
	filled := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			filled = append(filled, p)
		}
	}
	return strings.Join(filled, " ")
}

// Customer описывает покупателя.
type Customer struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Phone string `json:"phone,omitempty"`
}

// CartLine — строка корзины: товар с количеством и начисленной ценой.
// TotalPrice всегда равна Quantity * UnitPrice.
type CartLine struct {
	ID         int64     `json:"id"`
	ProductID  int64     `json:"product_id"`
	Name       string    `json:"name"`
	UnitCode   string    `json:"unit_code,omitempty"`
	Quantity   float64   `json:"quantity"`
	UnitPrice  float64   `json:"unit_price"`
	TotalPrice float64   `json:"total_price"`
	Tier       PriceTier `json:"tier"`
	SkladID    int64     `json:"sklad_id,omitempty"`
}

// Cashier описывает авторизованного кассира.
type Cashier struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	FullName string `json:"full_name"`
	FilialID int64  `json:"filial_id,omitempty"`
}

// Settlement содержит итоговые суммы оплаты заказа по корзинам расчёта.
// ForeignCashUSD хранится в долларах, остальные суммы — в сумах.
type Settlement struct {
	CashUZS        float64 `json:"summa_naqt"`
	ForeignCashUSD float64 `json:"summa_dollar"`
	TransferUZS    float64 `json:"summa_transfer"`
	TerminalUZS    float64 `json:"summa_terminal"`
	DebtUZS        float64 `json:"total_debt_today_client"`
	TotalDollar    float64 `json:"summa_total_dollar"`
}

// ReconcileUZS возвращает сумму всех корзин в сумах по курсу rate.
func (s Settlement) ReconcileUZS(rate float64) float64 {
	return s.CashUZS + s.ForeignCashUSD*rate + s.TransferUZS + s.TerminalUZS + s.DebtUZS
}

// Order описывает продажу (order-history) на стороне бэкенда.
type Order struct {
	ID              int64      `json:"id"`
	ClientID        int64      `json:"client_id"`
	Client          *Customer  `json:"client,omitempty"`
	EmployeeID      int64      `json:"employee_id"`
	ExchangeRate    float64    `json:"exchange_rate"`
	IsBasket        bool       `json:"is_basket"`
	IsDeleted       bool       `json:"is_deleted"`
	Note            string     `json:"note"`
	DriverInfo      string     `json:"driver_info"`
	AllProductSumma float64    `json:"all_product_summa"`
	Settlement      Settlement `json:"settlement"`
	Date            *time.Time `json:"date,omitempty"`
}

// Sale — снимок завершённой продажи для чека и локального журнала.
type Sale struct {
	OrderID        int64              `json:"order_id"`
	OrderNumber    string             `json:"order_number"`
	Date           time.Time          `json:"date"`
	Items          []CartLine         `json:"items"`
	TotalAmount    float64            `json:"total_amount"`
	PaidAmount     float64            `json:"paid_amount"`
	ExchangeRate   float64            `json:"exchange_rate"`
	Customer       *Customer          `json:"customer,omitempty"`
	CashierName    string             `json:"cashier_name,omitempty"`
	PaymentMethods map[string]float64 `json:"payment_methods"`
}
