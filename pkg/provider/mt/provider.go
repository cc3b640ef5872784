// Package mt defines the Translator interface for machine-translation
// backends, plus the output cleaning shared by LLM-backed implementations.
//
// Implementations must be safe for concurrent use.
package mt

import "context"

// Translator is the abstraction over any MT backend.
type Translator interface {
	// Translate renders text from sourceLang into targetLang. When the two
	// codes are equal the input is returned unchanged without contacting
	// any backend. Implementations must honor ctx cancellation and
	// deadlines.
	Translate(ctx context.Context, text, sourceLang, targetLang string) (string, error)
}

// languageNames maps ISO 639-1 codes to English names for prompt building.
// Codes not listed are passed to the backend verbatim.
var languageNames = map[string]string{
	"ko": "Korean",
	"en": "English",
	"ja": "Japanese",
	"zh": "Chinese",
	"es": "Spanish",
	"fr": "French",
	"de": "German",
	"pt": "Portuguese",
	"ru": "Russian",
	"it": "Italian",
	"ar": "Arabic",
	"he": "Hebrew",
	"hi": "Hindi",
	"bn": "Bengali",
	"tr": "Turkish",
}

// LanguageName returns the English name for an ISO 639-1 code, or the code
// itself when unknown.
func LanguageName(code string) string {
	if name, ok := languageNames[code]; ok {
		return name
	}
	return code
}
