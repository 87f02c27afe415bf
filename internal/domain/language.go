package domain

import (
	"strings"

	"golang.org/x/text/language"
)

// Language enumerates the target languages a result can be delivered in.
type Language string

const (
	LanguageEnglish   Language = "english"
	LanguageHindi     Language = "hindi"
	LanguageBengali   Language = "bengali"
	LanguageTamil     Language = "tamil"
	LanguageTelugu    Language = "telugu"
	LanguageMarathi   Language = "marathi"
	LanguageGujarati  Language = "gujarati"
	LanguageKannada   Language = "kannada"
	LanguageMalayalam Language = "malayalam"
	LanguagePunjabi   Language = "punjabi"
	LanguageOdia      Language = "odia"
)

// WorkingLanguage is the language the enhancement stage writes in. Text is
// treated as English unless it has been explicitly translated.
const WorkingLanguage = LanguageEnglish

var languageTags = map[Language]language.Tag{
	LanguageEnglish:   language.English,
	LanguageHindi:     language.Hindi,
	LanguageBengali:   language.Bengali,
	LanguageTamil:     language.Tamil,
	LanguageTelugu:    language.Telugu,
	LanguageMarathi:   language.Marathi,
	LanguageGujarati:  language.Gujarati,
	LanguageKannada:   language.Kannada,
	LanguageMalayalam: language.Malayalam,
	LanguagePunjabi:   language.Punjabi,
	LanguageOdia:      language.MustParse("or"),
}

// ParseLanguage accepts either the enum name ("hindi") or a BCP-47 code
// ("hi", "hi-IN") and returns the matching Language. Unknown input is
// returned lower-cased so that validation can reject it.
func ParseLanguage(raw string) Language {
	v := strings.ToLower(strings.TrimSpace(raw))
	if v == "" {
		return ""
	}
	if _, ok := languageTags[Language(v)]; ok {
		return Language(v)
	}
	if tag, err := language.Parse(v); err == nil {
		base, _ := tag.Base()
		for lang, known := range languageTags {
			if kb, _ := known.Base(); kb == base {
				return lang
			}
		}
	}
	return Language(v)
}

// Valid reports whether l is one of the supported languages.
func (l Language) Valid() bool {
	_, ok := languageTags[l]
	return ok
}

// Tag returns the BCP-47 tag of the language, or language.Und.
func (l Language) Tag() language.Tag {
	if tag, ok := languageTags[l]; ok {
		return tag
	}
	return language.Und
}

// Locale returns the regional locale used by speech voices, e.g. "hi-IN".
func (l Language) Locale() string {
	tag := l.Tag()
	if tag == language.Und {
		return "en-IN"
	}
	base, _ := tag.Base()
	return base.String() + "-IN"
}

// Languages lists every supported language.
func Languages() []Language {
	return []Language{
		LanguageEnglish, LanguageHindi, LanguageBengali, LanguageTamil, LanguageTelugu, LanguageMarathi,
		LanguageGujarati, LanguageKannada, LanguageMalayalam, LanguagePunjabi, LanguageOdia,
	}
}
