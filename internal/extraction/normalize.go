package extraction

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// polishFold covers letters NFD does not decompose.
var polishFold = strings.NewReplacer("ł", "l", "Ł", "l")

// normalize lowercases s and strips diacritics so that "Mężczyzna" and
// "mezczyzna" match the same rule.
func normalize(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, polishFold.Replace(s))
	if err != nil {
		out = s
	}
	return strings.ToLower(out)
}
