package subscription

import (
	"encoding/base64"
	"strings"
	"unicode"
)

// decodeBase64 decodes standard or URL-safe base64 with or without
// padding. All whitespace is removed first, since subscription bodies are
// often wrapped at 76 columns.
func decodeBase64(s string) ([]byte, error) {
	s = strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
	s = strings.NewReplacer("+", "-", "/", "_").Replace(s)
	s = strings.TrimRight(s, "=")
	if n := len(s) % 4; n != 0 {
		s += strings.Repeat("=", 4-n)
	}
	return base64.URLEncoding.DecodeString(s)
}
