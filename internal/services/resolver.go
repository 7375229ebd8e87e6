package services

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/vamojunto/nfce-api/internal/utils"
)

// ConsultPath is the authority's public QR-code consultation endpoint
const ConsultPath = "/NFCeConsultaPublica/Paginas/ConsultaQRCode.aspx"

// pParamPattern captures the full p= payload from a QR-code URL. The payload
// is pipe-delimited (KEY|VERSION|TYPE|NUM|HASH) and the trailing hash is
// alphanumeric, so the match cannot stop at digits.
var pParamPattern = regexp.MustCompile(`p=([^&#\s]+)`)

// ResolveAccessKey normalizes raw user input into a canonical 44-digit
// access key. Bare codes (with or without separators) are accepted first so
// they are never misread as URL fragments; only then is the input treated as
// a QR-code URL with a p= parameter.
func ResolveAccessKey(input string) (string, error) {
	code := utils.CleanDigits(input)
	if len(code) == 44 {
		return code, nil
	}

	if m := pParamPattern.FindStringSubmatch(input); m != nil {
		// only the first pipe-delimited segment is the key; the rest of the
		// payload (version, type, number, signing hash) is kept verbatim for
		// URL construction
		code = utils.CleanDigits(strings.Split(m[1], "|")[0])
		if len(code) == 44 {
			return code, nil
		}
	}

	return "", NewNoteError(KindInvalidAccessKey,
		"access key must contain exactly 44 digits", nil)
}

// BuildConsultURL derives the consultation URL for a resolved key. The
// authority's endpoint needs the signing hash beyond the bare key to render
// full data, so the richest parameter set available wins:
//
//  1. the original input is a URL with a query string: forward it verbatim;
//  2. the original input carries a pipe-delimited p= payload: attach it;
//  3. bare key only, which may yield degraded or empty results.
func BuildConsultURL(baseURL, key, originalInput string) string {
	base := strings.TrimRight(baseURL, "/") + ConsultPath
	input := strings.TrimSpace(originalInput)

	if u, err := url.Parse(input); err == nil && u.IsAbs() && u.RawQuery != "" {
		return base + "?" + u.RawQuery
	}

	if strings.Contains(input, "|") {
		payload := input
		if m := pParamPattern.FindStringSubmatch(input); m != nil {
			payload = m[1]
		}
		return base + "?p=" + payload
	}

	return base + "?p=" + key
}
