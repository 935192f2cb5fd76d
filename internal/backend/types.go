package backend

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/mmeshcher/kassa-terminal/internal/model"
	"github.com/mmeshcher/kassa-terminal/internal/money"
)

// FlexString принимает из JSON как строку, так и число.
type FlexString string

// UnmarshalJSON разбирает строку или число; null даёт пустую строку.
func (f *FlexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" {
		*f = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = FlexString(s)
		return nil
	}
	*f = FlexString(strings.TrimSpace(string(data)))
	return nil
}

// NamedRef — денормализованная ссылка вида {id, name}.
type NamedRef struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// SizeRef — денормализованный размер товара.
type SizeRef struct {
	ID   int64      `json:"id"`
	Size FlexString `json:"size"`
}

func refName(r *NamedRef) string {
	if r == nil {
		return ""
	}
	return r.Name
}

func sizeName(r *SizeRef) string {
	if r == nil {
		return ""
	}
	return string(r.Size)
}

// ClientRecord — покупатель в представлении бэкенда.
type ClientRecord struct {
	ID          int64         `json:"id"`
	FullName    string        `json:"full_name"`
	PhoneNumber string        `json:"phone_number"`
	Filial      int64         `json:"filial"`
	TotalDebt   money.Decimal `json:"total_debt"`
	Keshbek     money.Decimal `json:"keshbek"`
	IsActive    bool          `json:"is_active"`
	IsDelete    bool          `json:"is_delete"`
}

// Customer преобразует запись в доменного покупателя.
func (c ClientRecord) Customer() model.Customer {
	return model.Customer{
		ID:    c.ID,
		Name:  c.FullName,
		Phone: c.PhoneNumber,
	}
}

// CreateClientRequest — тело POST /v1/client.
type CreateClientRequest struct {
	FullName     string        `json:"full_name"`
	PhoneNumber  string        `json:"phone_number"`
	Filial       int64         `json:"filial"`
	TotalDebt    money.Decimal `json:"total_debt"`
	Keshbek      money.Decimal `json:"keshbek"`
	IsProfitLoss bool          `json:"is_profit_loss"`
	Type         int           `json:"type"`
	IsDelete     bool          `json:"is_delete"`
}

// OrderRecord — продажа (order-history) в представлении бэкенда.
type OrderRecord struct {
	ID                   int64         `json:"id"`
	Client               int64         `json:"client"`
	ClientDetail         *ClientRecord `json:"client_detail"`
	Employee             int64         `json:"employee"`
	ExchangeRate         money.Decimal `json:"exchange_rate"`
	Date                 *string       `json:"date"`
	Note                 string        `json:"note"`
	AllProfitDollar      money.Decimal `json:"all_profit_dollar"`
	TotalDebtClient      money.Decimal `json:"total_debt_client"`
	TotalDebtTodayClient money.Decimal `json:"total_debt_today_client"`
	AllProductSumma      money.Decimal `json:"all_product_summa"`
	SummaTotalDollar     money.Decimal `json:"summa_total_dollar"`
	SummaDollar          money.Decimal `json:"summa_dollar"`
	SummaNaqt            money.Decimal `json:"summa_naqt"`
	SummaKilik           money.Decimal `json:"summa_kilik"`
	SummaTerminal        money.Decimal `json:"summa_terminal"`
	SummaTransfer        money.Decimal `json:"summa_transfer"`
	DiscountAmount       money.Decimal `json:"discount_amount"`
	ZdachaDollar         money.Decimal `json:"zdacha_dollar"`
	ZdachaSom            money.Decimal `json:"zdacha_som"`
	IsDelete             bool          `json:"is_delete"`
	OrderStatus          bool          `json:"order_status"`
	DriverInfo           string        `json:"driver_info"`
	IsKarzinka           bool          `json:"is_karzinka"`
}

// Order преобразует запись в доменную продажу.
func (o OrderRecord) Order() model.Order {
	order := model.Order{
		ID:              o.ID,
		ClientID:        o.Client,
		EmployeeID:      o.Employee,
		ExchangeRate:    o.ExchangeRate.Float(),
		IsBasket:        o.IsKarzinka,
		IsDeleted:       o.IsDelete,
		Note:            o.Note,
		DriverInfo:      o.DriverInfo,
		AllProductSumma: o.AllProductSumma.Float(),
		Settlement: model.Settlement{
			CashUZS:        o.SummaNaqt.Float(),
			ForeignCashUSD: o.SummaDollar.Float(),
			TransferUZS:    o.SummaTransfer.Float(),
			TerminalUZS:    o.SummaTerminal.Float(),
			DebtUZS:        o.TotalDebtTodayClient.Float(),
			TotalDollar:    o.SummaTotalDollar.Float(),
		},
	}
	if o.ClientDetail != nil {
		c := o.ClientDetail.Customer()
		order.Client = &c
	}
	return order
}

// CreateOrderRequest — тело POST /v1/order-history. Все суммы по умолчанию нулевые.
type CreateOrderRequest struct {
	Client               int64         `json:"client"`
	Employee             int64         `json:"employee"`
	ExchangeRate         money.Decimal `json:"exchange_rate"`
	Note                 string        `json:"note"`
	AllProfitDollar      money.Decimal `json:"all_profit_dollar"`
	TotalDebtClient      money.Decimal `json:"total_debt_client"`
	TotalDebtTodayClient money.Decimal `json:"total_debt_today_client"`
	AllProductSumma      money.Decimal `json:"all_product_summa"`
	SummaTotalDollar     money.Decimal `json:"summa_total_dollar"`
	SummaDollar          money.Decimal `json:"summa_dollar"`
	SummaNaqt            money.Decimal `json:"summa_naqt"`
	SummaKilik           money.Decimal `json:"summa_kilik"`
	SummaTerminal        money.Decimal `json:"summa_terminal"`
	SummaTransfer        money.Decimal `json:"summa_transfer"`
	DiscountAmount       money.Decimal `json:"discount_amount"`
	ZdachaDollar         money.Decimal `json:"zdacha_dollar"`
	ZdachaSom            money.Decimal `json:"zdacha_som"`
	IsDelete             bool          `json:"is_delete"`
	OrderStatus          bool          `json:"order_status"`
	UpdateStatus         int           `json:"update_status"`
	IsDebtorProduct      bool          `json:"is_debtor_product"`
	StatusOrderDukon     bool          `json:"status_order_dukon"`
	StatusOrderSklad     bool          `json:"status_order_sklad"`
	DriverInfo           string        `json:"driver_info"`
	IsKarzinka           bool          `json:"is_karzinka"`
}

// NewBasketOrder формирует запрос на открытие корзины для покупателя по фиксированному курсу.
func NewBasketOrder(clientID, employeeID int64, rate float64) CreateOrderRequest {
	return CreateOrderRequest{
		Client:           clientID,
		Employee:         employeeID,
		ExchangeRate:     money.Decimal(rate),
		OrderStatus:      true,
		StatusOrderDukon: true,
		StatusOrderSklad: true,
		IsKarzinka:       true,
	}
}

// OrderPatch — тело PATCH /v1/order-history/{id}; nil-поля не отправляются.
type OrderPatch struct {
	Note                 *string        `json:"note,omitempty"`
	DriverInfo           *string        `json:"driver_info,omitempty"`
	IsKarzinka           *bool          `json:"is_karzinka,omitempty"`
	AllProductSumma      *money.Decimal `json:"all_product_summa,omitempty"`
	SummaTotalDollar     *money.Decimal `json:"summa_total_dollar,omitempty"`
	SummaDollar          *money.Decimal `json:"summa_dollar,omitempty"`
	SummaNaqt            *money.Decimal `json:"summa_naqt,omitempty"`
	SummaTerminal        *money.Decimal `json:"summa_terminal,omitempty"`
	SummaTransfer        *money.Decimal `json:"summa_transfer,omitempty"`
	TotalDebtTodayClient *money.Decimal `json:"total_debt_today_client,omitempty"`
}

// OrderFilter — параметры списка продаж для дашборда.
type OrderFilter struct {
	Page                    int
	PageSize                int
	Search                  string
	DateFrom                string
	DateTo                  string
	CreatedBy               int64
	IsKarzinka              *bool
	AllProductSummaMin      float64
	TotalDebtTodayClientMin float64
	TotalDebtClientMin      float64
	SummaTotalMin           float64
}

// OrderPage — страница списка продаж.
type OrderPage struct {
	Count    int           `json:"count"`
	Next     *string       `json:"next"`
	Previous *string       `json:"previous"`
	Results  []OrderRecord `json:"results"`
}

// OrderLine — строка продажи (order-history-product) в представлении бэкенда.
type OrderLine struct {
	ID             int64         `json:"id"`
	OrderHistory   int64         `json:"order_history"`
	Product        int64         `json:"product"`
	Sklad          *int64        `json:"sklad"`
	BranchDetail   *NamedRef     `json:"branch_detail"`
	ModelDetail    *NamedRef     `json:"model_detail"`
	TypeDetail     *NamedRef     `json:"type_detail"`
	SizeDetail     *SizeRef      `json:"size_detail"`
	UnitCode       string        `json:"unit_code"`
	Count          money.Decimal `json:"count"`
	UnitPrice      money.Decimal `json:"unit_price"`
	WholesalePrice money.Decimal `json:"wholesale_price"`
	PriceType      string        `json:"price_type"`
	IsDelete       bool          `json:"is_delete"`
}

// DisplayName собирает имя товара из денормализованных полей.
func (l OrderLine) DisplayName() string {
	return model.ComposeName(refName(l.BranchDetail), refName(l.ModelDetail), refName(l.TypeDetail), sizeName(l.SizeDetail))
}

// CreateOrderLineRequest — тело POST /v1/order-history-product.
// Заполняется только цена выбранного уровня.
type CreateOrderLineRequest struct {
	OrderHistory   int64          `json:"order_history"`
	Product        int64          `json:"product"`
	Count          money.Decimal  `json:"count"`
	UnitPrice      *money.Decimal `json:"unit_price,omitempty"`
	WholesalePrice *money.Decimal `json:"wholesale_price,omitempty"`
	PriceType      string         `json:"price_type"`
	Sklad          *int64         `json:"sklad,omitempty"`
}

type updateOrderLineRequest struct {
	Count money.Decimal `json:"count"`
}

// ProductRecord — товар каталога в представлении бэкенда.
type ProductRecord struct {
	ID             int64         `json:"id"`
	Filial         int64         `json:"filial"`
	Branch         int64         `json:"branch"`
	BranchDetail   *NamedRef     `json:"branch_detail"`
	Model          int64         `json:"model"`
	ModelDetail    *NamedRef     `json:"model_detail"`
	Type           int64         `json:"type"`
	TypeDetail     *NamedRef     `json:"type_detail"`
	Size           int64         `json:"size"`
	SizeDetail     *SizeRef      `json:"size_detail"`
	Count          money.Decimal `json:"count"`
	RealPrice      money.Decimal `json:"real_price"`
	UnitPrice      money.Decimal `json:"unit_price"`
	WholesalePrice money.Decimal `json:"wholesale_price"`
	MinPrice       money.Decimal `json:"min_price"`
	UnitCode       string        `json:"unit_code"`
	Note           string        `json:"note"`
	IsDelete       bool          `json:"is_delete"`
}

// Product преобразует запись в доменный товар.
func (p ProductRecord) Product() model.Product {
	name := model.ComposeName(refName(p.BranchDetail), refName(p.ModelDetail), refName(p.TypeDetail), sizeName(p.SizeDetail))
	unit := p.UnitCode
	if unit == "" {
		unit = "dona"
	}
	return model.Product{
		ID:             p.ID,
		Name:           name,
		BranchName:     refName(p.BranchDetail),
		ModelName:      refName(p.ModelDetail),
		TypeName:       refName(p.TypeDetail),
		Size:           sizeName(p.SizeDetail),
		UnitPrice:      p.UnitPrice.Float(),
		WholesalePrice: p.WholesalePrice.Float(),
		Price:          p.RealPrice.Float(),
		Stock:          p.Count.Float(),
		UnitCode:       unit,
		FilialID:       p.Filial,
	}
}

// ProductFilter — параметры запроса каталога.
type ProductFilter struct {
	Page    int
	PerPage int
	Search  string
	Filial  int64
	Branch  int64
	Model   int64
	Type    int64
}

// Pagination — блок пагинации каталога.
type Pagination struct {
	CurrentPage int `json:"currentPage"`
	LastPage    int `json:"lastPage"`
	PerPage     int `json:"perPage"`
	Total       int `json:"total"`
}

// Branch — раздел каталога.
type Branch struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Sorting  int    `json:"sorting"`
	IsDelete bool   `json:"is_delete"`
}

// Sklad — склад филиала.
type Sklad struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// ProductStock — остаток товара на складе.
type ProductStock struct {
	Product int64         `json:"product"`
	Sklad   int64         `json:"sklad"`
	Count   money.Decimal `json:"count"`
}

// TokenPair — пара токенов, выдаваемая /v1/auth/token.
type TokenPair struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
}

// User — профиль текущего пользователя (/v1/user-view).
type User struct {
	ID          int64   `json:"id"`
	Username    string  `json:"username"`
	FullName    string  `json:"full_name"`
	IsActive    bool    `json:"is_active"`
	PhoneNumber string  `json:"phone_number"`
	Filials     []int64 `json:"filials"`
	OrderFilial *int64  `json:"order_filial"`
}

// Cashier преобразует профиль в доменного кассира.
// Филиал берётся из order_filial, а при его отсутствии — первый из filials.
func (u User) Cashier() model.Cashier {
	c := model.Cashier{
		ID:       u.ID,
		Username: u.Username,
		FullName: u.FullName,
	}
	switch {
	case u.OrderFilial != nil:
		c.FilialID = *u.OrderFilial
	case len(u.Filials) > 0:
		c.FilialID = u.Filials[0]
	}
	return c
}
