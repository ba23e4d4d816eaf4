package util

import (
	"regexp"
	"strings"
)

var nonDigits = regexp.MustCompile(`\D+`)

// NormalizePhone normalizes user input into the digits-only form the WhatsApp
// provider expects for Brazilian numbers: non-digit characters stripped,
// trunk zero removed, country code 55 prefixed when absent.
func NormalizePhone(raw string) string {
	s := nonDigits.ReplaceAllString(strings.TrimSpace(raw), "")
	if s == "" {
		return ""
	}

	if strings.HasPrefix(s, "00") {
		s = s[2:]
	}
	if strings.HasPrefix(s, "0") {
		s = s[1:]
	}

	// 10/11 digit numbers are DDD + line without country code.
	if len(s) == 10 || len(s) == 11 {
		s = "55" + s
	}

	return s
}
