package web

import (
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
)

// decodeBorrower reads a borrower name from a raw header value. Browsers
// send UTF-8, but some clients send Latin-1 bytes; anything that is not
// valid UTF-8 is decoded as ISO-8859-1, which never fails.
func decodeBorrower(raw string) string {
	if !utf8.ValidString(raw) {
		decoded, err := charmap.ISO8859_1.NewDecoder().String(raw)
		if err == nil {
			raw = decoded
		}
	}
	return strings.TrimSpace(raw)
}
