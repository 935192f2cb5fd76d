// Package money содержит пересчёт сумм между сумом (UZS) и долларом (USD)
// и разбор денежных значений, которые бэкенд передаёт десятичными строками.
package money

import (
	"encoding/json"
	"errors"
	"math"
	"strconv"
	"strings"
)

// ErrInvalidRate возвращается, если курс не положителен.
var ErrInvalidRate = errors.New("exchange rate must be positive")

// ValidateRate проверяет, что курс пригоден для пересчёта.
func ValidateRate(rate float64) error {
	if rate <= 0 || math.IsNaN(rate) || math.IsInf(rate, 0) {
		return ErrInvalidRate
	}
	return nil
}

// ToForeign переводит сумму в сумах в доллары по курсу rate (сумов за 1 USD).
// Результат не округляется; округление выполняется только при отображении.
func ToForeign(amountMinor, rate float64) float64 {
	if rate <= 0 {
		return 0
	}
	return amountMinor / rate
}

// ToMinor переводит сумму в долларах в сумы по курсу rate.
func ToMinor(amountForeign, rate float64) float64 {
	return amountForeign * rate
}

// RoundDisplay округляет значение до двух знаков после запятой (половина вверх).
func RoundDisplay(v float64) float64 {
	return math.Round(v*100) / 100
}

// FormatForeign форматирует долларовую сумму с двумя знаками после запятой.
func FormatForeign(v float64) string {
	return strconv.FormatFloat(RoundDisplay(v), 'f', 2, 64)
}

// FormatMinor форматирует сумму в сумах без лишних нулей.
func FormatMinor(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// ParseAmount разбирает число из пользовательского ввода или ответа бэкенда.
// Пустая строка и некорректный ввод дают 0.
func ParseAmount(s string) float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	s = strings.ReplaceAll(s, " ", "")
	s = strings.ReplaceAll(s, ",", ".")

	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

// Decimal — число, которое бэкенд передаёт десятичной строкой ("12180.00").
// При чтении принимает строку, число или null; при записи всегда пишет строку.
type Decimal float64

// Float возвращает значение как float64.
func (d Decimal) Float() float64 {
	return float64(d)
}

// MarshalJSON кодирует значение десятичной строкой.
func (d Decimal) MarshalJSON() ([]byte, error) {
	return json.Marshal(strconv.FormatFloat(float64(d), 'f', -1, 64))
}

// UnmarshalJSON разбирает значение терпимо: всё, что не удалось прочитать, становится 0.
func (d *Decimal) UnmarshalJSON(data []byte) error {
	raw := strings.TrimSpace(string(data))
	if raw == "" || raw == "null" {
		*d = 0
		return nil
	}

	if strings.HasPrefix(raw, `"`) {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			*d = 0
			return nil
		}
		raw = s
	}

	*d = Decimal(ParseAmount(raw))
	return nil
}

// DecimalPtr возвращает указатель на Decimal, удобный для частичных обновлений.
func DecimalPtr(v float64) *Decimal {
	d := Decimal(v)
	return &d
}
