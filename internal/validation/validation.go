// Package validation содержит функции валидации входных данных.
package validation

import (
	"net/mail"
	"net/url"
	"strings"
	"unicode"
)

var platforms = map[string]bool{
	"instagram": true,
	"tiktok":    true,
	"youtube":   true,
	"twitter":   true,
	"facebook":  true,
	"telegram":  true,
}

var actions = map[string]bool{
	"like":      true,
	"follow":    true,
	"comment":   true,
	"share":     true,
	"subscribe": true,
	"view":      true,
}

// IsValidPlatform проверяет, поддерживается ли социальная платформа.
func IsValidPlatform(platform string) bool {
	return platforms[strings.ToLower(platform)]
}

// IsValidAction проверяет вид действия задания.
func IsValidAction(action string) bool {
	return actions[strings.ToLower(action)]
}

// IsValidURL допускает только абсолютные http(s) ссылки.
func IsValidURL(raw string) bool {
	u, err := url.ParseRequestURI(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// IsValidLogin проверяет, что логин является адресом электронной почты.
func IsValidLogin(login string) bool {
	addr, err := mail.ParseAddress(login)
	return err == nil && addr.Address == login
}

// IsValidCardNumber проверяет номер карты для вывода средств по алгоритму Луна.
// Пробелы между группами цифр допускаются.
func IsValidCardNumber(number string) bool {
	number = strings.ReplaceAll(number, " ", "")
	if len(number) < 12 {
		return false
	}

	sum := 0
	double := false

	for i := len(number) - 1; i >= 0; i-- {
		ch := rune(number[i])
		if !unicode.IsDigit(ch) {
			return false
		}
		digit := int(ch - '0')
		if double {
			digit *= 2
			if digit > 9 {
				digit -= 9
			}
		}
		sum += digit
		double = !double
	}

	return sum%10 == 0
}
