package language

import (
	"strings"

	xlang "golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

// Undetermined is the key used when no language is known.
const Undetermined = "und"

type entry struct {
	code2 string   // ISO 639-1 (2-letter)
	code3 string   // ISO 639-2 primary (3-letter)
	alt3  string   // ISO 639-2 alternate (e.g. "fre" vs "fra")
	words []string // English names
}

var languages = []entry{
	{"en", "eng", "", []string{"english"}},
	{"es", "spa", "", []string{"spanish"}},
	{"fr", "fra", "fre", []string{"french"}},
	{"de", "deu", "ger", []string{"german"}},
	{"it", "ita", "", []string{"italian"}},
	{"pt", "por", "", []string{"portuguese"}},
	{"ja", "jpn", "", []string{"japanese"}},
	{"ko", "kor", "", []string{"korean"}},
	{"zh", "zho", "chi", []string{"chinese"}},
	{"ru", "rus", "", []string{"russian"}},
	{"ar", "ara", "", []string{"arabic"}},
	{"hi", "hin", "", []string{"hindi"}},
	{"nl", "nld", "dut", []string{"dutch"}},
	{"pl", "pol", "", []string{"polish"}},
	{"sv", "swe", "", []string{"swedish"}},
	{"da", "dan", "", []string{"danish"}},
	{"no", "nor", "", []string{"norwegian"}},
	{"fi", "fin", "", []string{"finnish"}},
	{"tr", "tur", "", []string{"turkish"}},
	{"uk", "ukr", "", []string{"ukrainian"}},
	{"id", "ind", "", []string{"indonesian"}},
	{"vi", "vie", "", []string{"vietnamese"}},
}

// Index maps built at init time.
var (
	byCode3 map[string]*entry
	byWord  map[string]*entry
)

func init() {
	byCode3 = make(map[string]*entry, len(languages)*2)
	byWord = make(map[string]*entry, len(languages))
	for i := range languages {
		e := &languages[i]
		byCode3[e.code3] = e
		if e.alt3 != "" {
			byCode3[e.alt3] = e
		}
		for _, w := range e.words {
			byWord[w] = e
		}
	}
}

// Normalize maps a language code, ISO 639-2 code or English language name
// to the lowercase tag used for lookups. "English" and "eng" become "en",
// "en_US" becomes "en-us". Empty input stays empty; input that is not a
// language tag is lowercased and passed through.
func Normalize(code string) string {
	code = strings.ReplaceAll(strings.ToLower(strings.TrimSpace(code)), "_", "-")
	if code == "" {
		return ""
	}
	if e, ok := byWord[code]; ok {
		return e.code2
	}
	base, rest, hasRest := strings.Cut(code, "-")
	if e, ok := byCode3[base]; ok {
		code = e.code2
		if hasRest {
			code += "-" + rest
		}
	}
	tag, err := xlang.Parse(code)
	if err != nil {
		return code
	}
	return strings.ToLower(tag.String())
}

// Base returns the primary language subtag of code ("en" for "en-GB").
func Base(code string) string {
	base, _, _ := strings.Cut(Normalize(code), "-")
	return base
}

// Key is Normalize with Undetermined for empty input, for use in map and
// store keys.
func Key(code string) string {
	if n := Normalize(code); n != "" {
		return n
	}
	return Undetermined
}

// DisplayName returns the English name of code, "Unknown" for empty input,
// or the uppercased code when it is not recognized.
func DisplayName(code string) string {
	n := Normalize(code)
	if n == "" || n == Undetermined {
		return "Unknown"
	}
	tag, err := xlang.Parse(n)
	if err != nil {
		return strings.ToUpper(n)
	}
	if name := display.English.Tags().Name(tag); name != "" {
		return name
	}
	return strings.ToUpper(n)
}
