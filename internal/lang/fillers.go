package lang

import "strings"

// fillerWords holds hesitation sounds across the supported languages. An
// utterance that transcribes to one of these carries no translatable content.
var fillerWords = map[string]struct{}{
	// Korean
	"음": {}, "어": {}, "그": {}, "아": {}, "네": {}, "예": {},
	// English
	"um": {}, "uh": {}, "hmm": {}, "ah": {}, "oh": {}, "mm": {},
	"mhm": {}, "uh-huh": {}, "huh": {},
	// Japanese
	"えーと": {}, "あの": {}, "その": {}, "まあ": {}, "ええと": {},
	// Chinese
	"嗯": {}, "啊": {}, "呃": {}, "那个": {}, "这个": {},
}

// IsFiller reports whether text is a bare hesitation sound once surrounding
// whitespace and trailing punctuation are stripped. Comparison is
// case-insensitive.
func IsFiller(text string) bool {
	t := strings.TrimSpace(text)
	t = strings.TrimRight(t, ".,!?…。、")
	t = strings.ToLower(t)
	if t == "" {
		return false
	}
	_, ok := fillerWords[t]
	return ok
}
