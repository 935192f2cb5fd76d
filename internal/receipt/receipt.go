// Package receipt формирует чек закрытой продажи: текст для печати и QR-код.
package receipt

import (
	"fmt"
	"sort"
	"strings"
	"time"

	qrcode "github.com/skip2/go-qrcode"

	"github.com/mmeshcher/kassa-terminal/internal/model"
	"github.com/mmeshcher/kassa-terminal/internal/money"
	"github.com/mmeshcher/kassa-terminal/internal/payment"
)

// QRSize — сторона QR-кода в пикселях.
const QRSize = 120

const separator = "--------------------------------"

// Receipt — готовый к печати чек.
type Receipt struct {
	OrderNumber string `json:"order_number"`
	Text        string `json:"text"`
	QRPayload   string `json:"qr_payload"`
	QRPNG       []byte `json:"qr_png"`
}

// Build формирует чек продажи.
func Build(sale model.Sale) (*Receipt, error) {
	payload := Payload(sale)
	png, err := qrcode.Encode(payload, qrcode.Medium, QRSize)
	if err != nil {
		return nil, fmt.Errorf("encode receipt qr: %w", err)
	}

	return &Receipt{
		OrderNumber: sale.OrderNumber,
		Text:        Text(sale),
		QRPayload:   payload,
		QRPNG:       png,
	}, nil
}

// Payload возвращает содержимое QR-кода чека.
func Payload(sale model.Sale) string {
	return fmt.Sprintf("Order: %s\nTotal: %s UZS\nDate: %s",
		sale.OrderNumber,
		money.FormatMinor(sale.TotalAmount),
		sale.Date.Format(time.RFC3339),
	)
}

// Text возвращает текст чека для печати.
func Text(sale model.Sale) string {
	var b strings.Builder

	b.WriteString("SAVDO CHEKI\n")
	fmt.Fprintf(&b, "Chek: %s\n", sale.OrderNumber)
	fmt.Fprintf(&b, "Sana: %s\n", sale.Date.Format("02.01.2006 15:04"))
	if sale.CashierName != "" {
		fmt.Fprintf(&b, "Kassir: %s\n", sale.CashierName)
	}
	if sale.Customer != nil {
		fmt.Fprintf(&b, "Mijoz: %s\n", sale.Customer.Name)
		if sale.Customer.Phone != "" {
			fmt.Fprintf(&b, "Tel: %s\n", sale.Customer.Phone)
		}
	}
	b.WriteString(separator + "\n")

	for _, item := range sale.Items {
		unit := item.UnitCode
		if unit == "" {
			unit = "dona"
		}
		fmt.Fprintf(&b, "%s\n", item.Name)
		fmt.Fprintf(&b, "  %s %s x %s = %s UZS\n",
			money.FormatMinor(item.Quantity),
			unit,
			money.FormatMinor(item.UnitPrice),
			money.FormatMinor(item.TotalPrice),
		)
	}
	b.WriteString(separator + "\n")

	fmt.Fprintf(&b, "Jami: %s UZS\n", money.FormatMinor(sale.TotalAmount))
	if sale.ExchangeRate > 0 {
		fmt.Fprintf(&b, "Jami USD: %s\n", money.FormatForeign(money.ToForeign(sale.TotalAmount, sale.ExchangeRate)))
		fmt.Fprintf(&b, "Kurs: 1 USD = %s UZS\n", money.FormatMinor(sale.ExchangeRate))
	}
	fmt.Fprintf(&b, "To'langan: %s UZS\n", money.FormatMinor(sale.PaidAmount))

	for _, line := range paymentLines(sale.PaymentMethods) {
		fmt.Fprintf(&b, "  %s\n", line)
	}
	if change := sale.PaidAmount - sale.TotalAmount; change > 0 {
		fmt.Fprintf(&b, "Qaytim: %s UZS\n", money.FormatMinor(change))
	}

	b.WriteString(separator + "\n")
	b.WriteString("Xaridingiz uchun rahmat!\n")
	return b.String()
}

// paymentLines перечисляет способы оплаты в порядке каталога, неизвестные — в конце по алфавиту.
func paymentLines(amounts map[string]float64) []string {
	seen := make(map[string]bool, len(amounts))
	var lines []string
	for _, info := range payment.Methods() {
		v, ok := amounts[string(info.Method)]
		if !ok || v == 0 {
			continue
		}
		seen[string(info.Method)] = true
		lines = append(lines, fmt.Sprintf("%s: %s", info.Label, money.FormatMinor(v)))
	}

	var rest []string
	for k, v := range amounts {
		if !seen[k] && v != 0 {
			rest = append(rest, fmt.Sprintf("%s: %s", k, money.FormatMinor(v)))
		}
	}
	sort.Strings(rest)
	return append(lines, rest...)
}
