package utils

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"strconv"
	"strings"
)

var nonDigits = regexp.MustCompile(`\D`)

// CleanDigits removes every non-numeric character from s
func CleanDigits(s string) string {
	return nonDigits.ReplaceAllString(s, "")
}

// IsValidAccessKey reports whether s normalizes to a 44-digit NFC-e access key
func IsValidAccessKey(s string) bool {
	cleaned := CleanDigits(s)
	return len(cleaned) == 44
}

// FormatAccessKey formats an access key as 11 groups of 4 digits,
// the way the authority prints it on the receipt
func FormatAccessKey(key string) string {
	cleaned := CleanDigits(key)
	if len(cleaned) != 44 {
		return key
	}

	groups := make([]string, 0, 11)
	for i := 0; i < 44; i += 4 {
		groups = append(groups, cleaned[i:i+4])
	}
	return strings.Join(groups, " ")
}

// HashAccessKey returns the SHA-256 hex digest of an access key.
// The digest is stored instead of the raw key and doubles as the
// per-user dedup lookup value.
func HashAccessKey(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}

// ParseDecimal converts Brazilian-formatted numbers to float64.
// Both "1.234,56" and "1234.56" yield 1234.56.
func ParseDecimal(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if strings.Contains(s, ",") {
		// dots are thousands separators when a comma decimal is present
		s = strings.ReplaceAll(s, ".", "")
		s = strings.Replace(s, ",", ".", 1)
	}
	return strconv.ParseFloat(s, 64)
}
