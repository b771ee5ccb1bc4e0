package report

import (
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
)

// TextSafe converts raw bytes of an HTTP message to a string that can be embedded in a text
// report. Valid UTF-8 is kept as is. Anything else is read as ISO-8859-1, which maps every byte
// to a code point, so arbitrary binary payloads never cause an error.
func TextSafe(data []byte) string {
	if utf8.Valid(data) {
		return string(data)
	}
	decoded, err := charmap.ISO8859_1.NewDecoder().Bytes(data)
	if err != nil {
		return strings.ToValidUTF8(string(data), string(utf8.RuneError))
	}
	return string(decoded)
}
