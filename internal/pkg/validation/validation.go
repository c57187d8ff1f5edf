package validation

import (
	"regexp"
	"strings"
	"unicode"
)

var emailRe = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// Fullname: letters, spaces, hyphens, apostrophes only.
var fullnameRe = regexp.MustCompile(`^[A-Za-z\s\-']+$`)

func IsValidEmail(email string) bool {
	return emailRe.MatchString(email)
}

// IsValidPassword requires at least 8 characters with at least one letter,
// one number, and one special character.
func IsValidPassword(password string) bool {
	if len(password) < 8 {
		return false
	}
	hasLetter, hasDigit, hasSpecial := false, false, false
	for _, r := range password {
		switch {
		case unicode.IsLetter(r):
			hasLetter = true
		case unicode.IsDigit(r):
			hasDigit = true
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			hasSpecial = true
		}
	}
	return hasLetter && hasDigit && hasSpecial
}

func IsValidFullname(fullname string) bool {
	return fullname != "" && fullnameRe.MatchString(fullname)
}

// PaymentMethods are the methods the upstream store accepts for metodo_pago.
var PaymentMethods = []string{"Efectivo", "Transferencia", "Tarjeta", "Cheque", "PSE"}

// IsValidPaymentMethod matches case-insensitively so console input casing
// does not matter.
func IsValidPaymentMethod(method string) bool {
	for _, m := range PaymentMethods {
		if strings.EqualFold(m, strings.TrimSpace(method)) {
			return true
		}
	}
	return false
}
