package textproc

import "strings"

var languageNames = map[string]string{
	"en": "English", "eng": "English",
	"hu": "Hungarian", "hun": "Hungarian",
	"ja": "Japanese", "jpn": "Japanese",
	"ko": "Korean", "kor": "Korean",
	"zh": "Chinese", "zho": "Chinese", "chi": "Chinese",
	"de": "German", "deu": "German", "ger": "German",
	"fr": "French", "fra": "French", "fre": "French",
	"es": "Spanish", "spa": "Spanish",
	"it": "Italian", "ita": "Italian",
	"pt": "Portuguese", "por": "Portuguese",
	"ru": "Russian", "rus": "Russian",
	"pl": "Polish", "pol": "Polish",
}

// LanguageName returns the English name of an ISO 639-1 or 639-2 code. Unknown codes are
// returned as given so that prompts stay meaningful. E.g., "hun" -> "Hungarian"
func LanguageName(code string) string {
	if name, ok := languageNames[strings.ToLower(strings.TrimSpace(code))]; ok {
		return name
	}
	return code
}

// LanguageCode returns the two letter code of an ISO 639-1 or 639-2 code, or "" when unknown.
// E.g., "jpn" -> "ja"
func LanguageCode(code string) string {
	name, ok := languageNames[strings.ToLower(strings.TrimSpace(code))]
	if !ok {
		return ""
	}
	for short, other := range languageNames {
		if len(short) == 2 && other == name {
			return short
		}
	}
	return ""
}
