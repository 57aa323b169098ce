package phone

import (
	"regexp"
	"strings"
)

var nonDigits = regexp.MustCompile(`\D`)

// ToCanonical converts a raw phone number into E.164. Bare 10-11 digit
// local numbers are assumed to be Brazilian and get country code 55.
func ToCanonical(raw string) string {
	digits := nonDigits.ReplaceAllString(raw, "")
	if len(digits) >= 10 && len(digits) <= 11 {
		digits = "55" + digits
	}
	return "+" + digits
}

// ToProviderFormat converts an E.164 number into the digit-only form the
// protocol backends expect. Brazilian mobiles with a 9-digit subscriber
// part starting with 9 and a mobile-valid second digit (6-9) lose the
// leading 9, the legacy 8-digit format some protocol libraries require.
// All other numbers pass through with only the + stripped. Idempotent.
func ToProviderFormat(e164 string) string {
	digits := nonDigits.ReplaceAllString(e164, "")
	if !strings.HasPrefix(digits, "55") || len(digits) != 13 {
		return digits
	}
	// 55 + 2-digit area code + 9-digit subscriber number
	local := digits[4:]
	if local[0] == '9' && local[1] >= '6' && local[1] <= '9' {
		return digits[:4] + local[1:]
	}
	return digits
}
