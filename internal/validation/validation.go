// Package validation содержит функции валидации входных данных.
package validation

import (
	"strings"
	"unicode/utf8"
)

// IsValidAccountNumber проверяет, что номер счёта состоит из 6–20 цифр.
func IsValidAccountNumber(number string) bool {
	return isDigits(number, 6, 20)
}

// IsValidBranchCode проверяет, что код отделения состоит из 1–10 цифр.
func IsValidBranchCode(code string) bool {
	return isDigits(code, 1, 10)
}

// IsValidEmail выполняет минимальную проверку формата local@domain.tld.
func IsValidEmail(email string) bool {
	if len(email) > 254 || strings.ContainsAny(email, " \t\r\n") {
		return false
	}

	at := strings.LastIndexByte(email, '@')
	if at <= 0 || at == len(email)-1 {
		return false
	}

	domain := email[at+1:]
	dot := strings.LastIndexByte(domain, '.')
	return dot > 0 && dot < len(domain)-1
}

// IsValidText проверяет, что строка непустая после обрезки пробелов и содержит
// не больше maxLen символов.
func IsValidText(s string, maxLen int) bool {
	s = strings.TrimSpace(s)
	return s != "" && utf8.RuneCountInString(s) <= maxLen
}

// isDigits допускает только ASCII-цифры, поэтому длина в байтах равна числу символов.
func isDigits(s string, minLen, maxLen int) bool {
	if len(s) < minLen || len(s) > maxLen {
		return false
	}

	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}

	return true
}
