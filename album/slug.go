package album

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var slugTransform = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Slugify converts an album name into a URL-safe ASCII slug: accents are
// decomposed and stripped, everything non-alphanumeric becomes a hyphen, and
// hyphen runs collapse.
func Slugify(name string) string {
	ascii, _, err := transform.String(slugTransform, name)
	if err != nil {
		ascii = name
	}
	ascii = strings.ToLower(ascii)

	var b strings.Builder
	lastHyphen := true // trims leading hyphens
	for _, r := range ascii {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastHyphen = false
		default:
			if !lastHyphen {
				b.WriteByte('-')
				lastHyphen = true
			}
		}
	}
	return strings.TrimRight(b.String(), "-")
}
