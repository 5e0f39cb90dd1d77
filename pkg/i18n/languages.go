package i18n

import (
	"strings"

	"golang.org/x/text/language"
)

// DefaultLanguages are the languages the manager ships catalogs for, keyed by catalog code.
var DefaultLanguages = map[string]string{
	"en": "english",
	"cn": "chinese",
	"nl": "dutch",
	"fr": "french",
	"de": "german",
	"it": "italian",
	"pt": "portuguese",
	"ro": "romanian",
	"es": "spanish",
}

var (
	supported = []language.Tag{
		language.English,
		language.Chinese,
		language.Dutch,
		language.French,
		language.German,
		language.Italian,
		language.Portuguese,
		language.Romanian,
		language.Spanish,
	}
	matcher = language.NewMatcher(supported)
)

// Normalize maps a BCP 47 tag such as "nl-BE" or "zh-Hans" onto a catalog code. Unknown
// languages are returned unchanged.
func Normalize(lang string) string {
	lang = strings.TrimSpace(lang)
	if _, ok := DefaultLanguages[strings.ToLower(lang)]; ok {
		return strings.ToLower(lang)
	}
	tag, err := language.Parse(lang)
	if err != nil {
		return lang
	}
	_, idx, conf := matcher.Match(tag)
	if conf == language.No {
		return lang
	}
	base, _ := supported[idx].Base()
	if code := base.String(); code != "zh" {
		return code
	}
	return "cn"
}
