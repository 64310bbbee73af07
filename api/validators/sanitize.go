package validators

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// SanitizeString NFC-normalizes input, drops control characters, collapses
// runs of whitespace and cuts the result to maxLen runes. maxLen <= 0 keeps
// the full length.
func SanitizeString(input string, maxLen int) string {
	var b strings.Builder
	b.Grow(len(input))
	pendingSpace := false
	count := 0
	for _, r := range norm.NFC.String(input) {
		if unicode.IsSpace(r) {
			pendingSpace = b.Len() > 0
			continue
		}
		if unicode.IsControl(r) {
			continue
		}
		if maxLen > 0 && count >= maxLen {
			break
		}
		if pendingSpace {
			if maxLen > 0 && count+1 >= maxLen {
				break
			}
			b.WriteByte(' ')
			count++
			pendingSpace = false
		}
		b.WriteRune(r)
		count++
	}
	return b.String()
}
