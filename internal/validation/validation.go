// Package validation содержит функции валидации входных данных.
package validation

import (
	"strings"
	"unicode"
)

// IsValidEmail проверяет адрес электронной почты по базовым правилам:
// ровно один символ @, непустая локальная часть и домен с точкой.
func IsValidEmail(email string) bool {
	if len(email) < 5 || len(email) > 254 {
		return false
	}

	at := strings.IndexByte(email, '@')
	if at <= 0 || at != strings.LastIndexByte(email, '@') {
		return false
	}

	local := email[:at]
	domain := email[at+1:]

	if local == "" || domain == "" {
		return false
	}
	if strings.ContainsAny(email, " \t\r\n") {
		return false
	}

	dot := strings.LastIndexByte(domain, '.')
	if dot <= 0 || dot == len(domain)-1 {
		return false
	}

	return true
}

// IsValidVoucherCode проверяет формат кода ваучера: от 4 до 32 символов,
// только латинские буквы, цифры и дефис.
func IsValidVoucherCode(code string) bool {
	if len(code) < 4 || len(code) > 32 {
		return false
	}

	for _, ch := range code {
		if ch > unicode.MaxASCII {
			return false
		}
		if !unicode.IsLetter(ch) && !unicode.IsDigit(ch) && ch != '-' {
			return false
		}
	}

	return true
}

// NormalizeCode приводит код ваучера или заказа к каноническому виду.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// IsValidSlug проверяет формат идентификатора товара в адресной строке:
// строчные латинские буквы, цифры и дефис, без дефисов по краям.
func IsValidSlug(slug string) bool {
	if slug == "" || len(slug) > 64 {
		return false
	}
	if slug[0] == '-' || slug[len(slug)-1] == '-' {
		return false
	}

	for _, ch := range slug {
		if ch >= 'a' && ch <= 'z' {
			continue
		}
		if ch >= '0' && ch <= '9' {
			continue
		}
		if ch == '-' {
			continue
		}
		return false
	}

	return true
}

// IsValidRating проверяет оценку отзыва.
func IsValidRating(rating int) bool {
	return rating >= 1 && rating <= 5
}
