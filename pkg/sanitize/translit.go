package sanitize

import (
	"strings"
	"unicode"

	"github.com/gosimple/unidecode"
)

// Transliterator maps text to a Latin approximation.
type Transliterator interface {
	Transliterate(text string) (string, error)
}

// Ukrainian follows the national romanization table of 2010 except for the
// soft sign and the apostrophe, which the table drops and which are written
// as ' here. Letters the table does not cover are handed to unidecode.
type Ukrainian struct{}

var ukrainianTable = map[rune]string{
	'а': "a", 'б': "b", 'в': "v", 'г': "h", 'ґ': "g", 'д': "d", 'е': "e",
	'є': "ie", 'ж': "zh", 'з': "z", 'и': "y", 'і': "i", 'ї': "i", 'й': "i",
	'к': "k", 'л': "l", 'м': "m", 'н': "n", 'о': "o", 'п': "p", 'р': "r",
	'с': "s", 'т': "t", 'у': "u", 'ф': "f", 'х': "kh", 'ц': "ts", 'ч': "ch",
	'ш': "sh", 'щ': "shch", 'ь': "'", 'ю': "iu", 'я': "ia",
}

// word-initial forms
var ukrainianInitial = map[rune]string{
	'є': "ye", 'ї': "yi", 'й': "y", 'ю': "yu", 'я': "ya",
}

func (Ukrainian) Transliterate(text string) (string, error) {
	runes := []rune(text)
	var sb strings.Builder
	sb.Grow(len(text))

	for i, r := range runes {
		lower := unicode.ToLower(r)

		latin, ok := ukrainianTable[lower]
		if !ok {
			if r < unicode.MaxASCII || Representable(string(r)) {
				sb.WriteRune(r)
			} else {
				sb.WriteString(unidecode.Unidecode(string(r)))
			}
			continue
		}

		if initial, ok := ukrainianInitial[lower]; ok && wordStart(runes, i) {
			latin = initial
		}
		if lower == 'г' && i > 0 && unicode.ToLower(runes[i-1]) == 'з' {
			latin = "gh"
		}

		if unicode.IsUpper(r) {
			latin = applyCase(runes, i, latin)
		}
		sb.WriteString(latin)
	}

	return sb.String(), nil
}

func wordStart(runes []rune, i int) bool {
	return i == 0 || !unicode.IsLetter(runes[i-1]) && runes[i-1] != '\'' && runes[i-1] != '’'
}

// applyCase upper-cases the whole replacement inside upper-case words and only
// its first letter otherwise.
func applyCase(runes []rune, i int, latin string) string {
	if latin == "'" {
		return latin
	}

	neighbourUpper := false
	if i+1 < len(runes) && unicode.IsLetter(runes[i+1]) {
		neighbourUpper = unicode.IsUpper(runes[i+1])
	} else if i > 0 && unicode.IsLetter(runes[i-1]) {
		neighbourUpper = unicode.IsUpper(runes[i-1])
	}

	if neighbourUpper {
		return strings.ToUpper(latin)
	}

	return strings.ToUpper(latin[:1]) + latin[1:]
}
