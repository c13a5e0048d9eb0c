// Package phone canonicalizes Congolese mobile numbers. The canonical form is
// digits only with the 242 country code, which is what the mobile money
// gateway expects and what identifies a customer.
package phone

import (
	"errors"
	"fmt"
	"strings"
)

const countryCode = "242"

var ErrInvalidPhone = errors.New("invalid_phone")

func Canonical(raw string) (string, error) {
	var b strings.Builder
	for _, r := range strings.TrimSpace(raw) {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '+' || r == ' ' || r == '-' || r == '.' || r == '(' || r == ')':
		default:
			return "", fmt.Errorf("%w: %q", ErrInvalidPhone, raw)
		}
	}
	digits := strings.TrimPrefix(b.String(), "00")
	if !strings.HasPrefix(digits, countryCode) {
		digits = countryCode + digits
	}
	if len(digits) < 11 || len(digits) > 15 {
		return "", fmt.Errorf("%w: %q", ErrInvalidPhone, raw)
	}
	return digits, nil
}

// Local returns the number without the country code, as shown to clients.
func Local(canonical string) string {
	return strings.TrimPrefix(canonical, countryCode)
}
