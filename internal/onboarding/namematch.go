package onboarding

import (
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"
	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// canonicalTokens folds common spellings of company suffixes so
// "Acme Limited" and "ACME LTD." compare equal.
var canonicalTokens = map[string]string{
	"limited":      "ltd",
	"company":      "co",
	"incorporated": "inc",
	"enterprises":  "ent",
	"enterprise":   "ent",
	"nigeria":      "nig",
	"and":          "&",
}

var fold = cases.Fold()

func normalizeName(name string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	stripped, _, err := transform.String(t, name)
	if err != nil {
		stripped = name
	}

	tokens := strings.FieldsFunc(fold.String(stripped), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '&'
	})

	for i, tok := range tokens {
		if c, ok := canonicalTokens[tok]; ok {
			tokens[i] = c
		}
	}

	// word order differs between banks ("ADEYEMI JOHN" vs "John Adeyemi")
	sort.Strings(tokens)

	return strings.Join(tokens, " ")
}

// NameSimilarity scores two names in [0,1] using edit distance over their
// normalised, token-sorted forms.
func NameSimilarity(a, b string) float64 {
	na, nb := normalizeName(a), normalizeName(b)
	if na == "" || nb == "" {
		return 0
	}
	if na == nb {
		return 1
	}

	longest := max(utf8.RuneCountInString(na), utf8.RuneCountInString(nb))
	dist := levenshtein.ComputeDistance(na, nb)

	return 1 - float64(dist)/float64(longest)
}
