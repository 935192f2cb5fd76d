// Package validation содержит функции валидации входных данных.
package validation

import (
	"errors"
	"strings"
	"unicode"
)

var (
	// ErrInvalidPhone возвращается, если номер не приводится к виду +998XXXXXXXXX.
	ErrInvalidPhone = errors.New("phone must contain 9 digits after +998")
	// ErrEmptyName возвращается для пустого имени покупателя.
	ErrEmptyName = errors.New("customer name is required")
)

const countryCode = "998"

// NormalizePhone приводит номер к виду +998XXXXXXXXX.
// Принимает 9 цифр абонента или 12 цифр с кодом страны, разделители игнорируются.
// Пустой номер допустим и возвращается пустым.
func NormalizePhone(phone string) (string, error) {
	var digits strings.Builder
	for _, ch := range phone {
		if unicode.IsDigit(ch) {
			digits.WriteRune(ch)
		}
	}

	d := digits.String()
	switch {
	case d == "" && strings.TrimSpace(phone) == "":
		return "", nil
	case len(d) == 9:
		return "+" + countryCode + d, nil
	case len(d) == 12 && strings.HasPrefix(d, countryCode):
		return "+" + d, nil
	default:
		return "", ErrInvalidPhone
	}
}

// CustomerName проверяет имя покупателя и возвращает его без крайних пробелов.
func CustomerName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", ErrEmptyName
	}
	return name, nil
}
