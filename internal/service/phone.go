package service

import (
	"strings"

	appErrors "github.com/clinicbook/clinic-api/pkg/errors"
)

var phonePrefixes = []string{
	"010", "011", "012", "015",
	"02", "03",
	"040", "041", "042", "043", "044", "045", "046", "047", "048",
	"088", "089",
	"090", "091", "092", "093", "094", "095", "096", "097", "098", "099",
}

// NormalizePhone strips formatting from an Egyptian phone number and returns
// the canonical 11-digit local form. International numbers (+20...) are
// converted to local format before checking.
func NormalizePhone(value string) (string, error) {
	var b strings.Builder
	for _, r := range value {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := b.String()

	if strings.HasPrefix(digits, "20") && len(digits) == 12 {
		digits = "0" + digits[2:]
	}

	if len(digits) != 11 {
		return "", appErrors.Clone(appErrors.ErrValidation, "Phone number must be exactly 11 digits.")
	}

	for _, prefix := range phonePrefixes {
		if strings.HasPrefix(digits, prefix) {
			return digits, nil
		}
	}
	return "", appErrors.Clone(appErrors.ErrValidation, "Phone number must start with a valid Egyptian mobile or landline prefix.")
}
