// Package validation checks submission input and formats phone numbers
// for display.
package validation

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/dmitrijs2005/leadkeeper/internal/common"
)

const (
	FieldName  = "name"
	FieldPhone = "phone"
	FieldPin   = "pin"

	minNameLen = 2
	maxNameLen = 20
)

var (
	mobilePhone   = regexp.MustCompile(`^01[016789]\d{7,8}$`)
	fallbackPhone = regexp.MustCompile(`^\d{10}$`)
	pinPattern    = regexp.MustCompile(`^\d{4}$`)
)

// ValidateName accepts 2 to 20 characters of precomposed Hangul syllables
// (가 to 힣), Latin letters and whitespace. Surrounding whitespace is ignored.
func ValidateName(name string) error {
	name = strings.TrimSpace(name)
	n := utf8.RuneCountInString(name)
	if n < minNameLen || n > maxNameLen {
		return &common.FieldError{Field: FieldName, Reason: "name must be 2 to 20 characters"}
	}
	for _, r := range name {
		switch {
		case r >= '가' && r <= '힣':
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case unicode.IsSpace(r):
		default:
			return &common.FieldError{Field: FieldName, Reason: "name may contain letters and spaces only"}
		}
	}
	return nil
}

// NormalizePhone strips every non-digit character.
func NormalizePhone(phone string) string {
	var b strings.Builder
	b.Grow(len(phone))
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// ValidatePhone normalises phone and checks it against the mobile pattern
// (01X prefix, 10 or 11 digits) or the generic 10-digit fallback. It returns
// the digits-only form.
func ValidatePhone(phone string) (string, error) {
	digits := NormalizePhone(phone)
	if digits == "" {
		return "", &common.FieldError{Field: FieldPhone, Reason: "phone number is required"}
	}
	if !mobilePhone.MatchString(digits) && !fallbackPhone.MatchString(digits) {
		return "", &common.FieldError{Field: FieldPhone, Reason: "phone number format is invalid"}
	}
	return digits, nil
}

// ValidatePin requires exactly four decimal digits.
func ValidatePin(pin string) error {
	if !pinPattern.MatchString(pin) {
		return common.ErrInvalidPin
	}
	return nil
}

// FormatPhone renders a stored phone for display: 11 digits as 3-4-4,
// 10 digits as 3-3-4. Anything else is returned unchanged.
func FormatPhone(phone string) string {
	switch len(phone) {
	case 11:
		return phone[:3] + "-" + phone[3:7] + "-" + phone[7:]
	case 10:
		return phone[:3] + "-" + phone[3:6] + "-" + phone[6:]
	default:
		return phone
	}
}
