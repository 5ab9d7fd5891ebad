package domain

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	nonDigitRe   = regexp.MustCompile(`\D`)
	kenyanE164Re = regexp.MustCompile(`^\+254[17]\d{8}$`)
)

// PhoneNumber is a Kenyan mobile number normalized to E.164 form
// (+254XXXXXXXXX). The constructor accepts the shapes users actually type —
// "07XX...", "01XX...", "254...", "+254...", or a bare 9-digit subscriber
// number — and stores exactly one canonical representation.
type PhoneNumber struct {
	value string
}

// NewPhoneNumber normalizes and validates the input.
func NewPhoneNumber(raw string) (PhoneNumber, error) {
	digits := nonDigitRe.ReplaceAllString(raw, "")

	var candidate string
	switch {
	case strings.HasPrefix(digits, "254") && len(digits) == 12:
		candidate = "+" + digits
	case strings.HasPrefix(digits, "0") && len(digits) == 10:
		candidate = "+254" + digits[1:]
	case len(digits) == 9:
		candidate = "+254" + digits
	default:
		return PhoneNumber{}, fmt.Errorf("%w: unrecognized shape", ErrInvalidPhone)
	}

	if !kenyanE164Re.MatchString(candidate) {
		return PhoneNumber{}, fmt.Errorf("%w: not a Kenyan mobile number", ErrInvalidPhone)
	}
	return PhoneNumber{value: candidate}, nil
}

// E164 returns the canonical +254XXXXXXXXX form.
func (p PhoneNumber) E164() string { return p.value }

// Local returns the 0XXXXXXXXX form used in local display.
func (p PhoneNumber) Local() string {
	return "0" + p.value[4:]
}

func (p PhoneNumber) String() string { return p.value }
