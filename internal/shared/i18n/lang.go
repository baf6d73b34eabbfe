// Package i18n holds the user-facing strings of the demo screens and
// notices in English and Chinese.
package i18n

import "golang.org/x/text/language"

// Lang represents a supported language
type Lang string

const (
	EN Lang = "en"
	ZH Lang = "zh"
)

var matcher = language.NewMatcher([]language.Tag{
	language.English,
	language.Chinese,
})

// DetectLang picks the closest supported language for a BCP 47 locale such
// as "zh-Hans-CN" or "en_GB". Unknown or malformed locales fall back to EN.
func DetectLang(locale string) Lang {
	tag, err := language.Parse(locale)
	if err != nil {
		return EN
	}
	_, idx, conf := matcher.Match(tag)
	if conf == language.No || idx != 1 {
		return EN
	}
	return ZH
}
