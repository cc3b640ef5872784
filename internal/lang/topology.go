// Package lang classifies languages by word-order topology and derives the
// buffering strategy for a speaker/listener language pair.
//
// Languages whose word order matches can be interpreted in short chunks
// without reordering artifacts; pairs that differ (e.g. Korean into English)
// need whole clauses before translation reads naturally, so they buffer up to
// a sentence boundary instead.
package lang

// Family is a word-order topology class.
type Family string

const (
	// SOV covers subject-object-verb languages (Korean, Japanese, Turkish,
	// Hindi, Bengali).
	SOV Family = "SOV"
	// SVO covers subject-verb-object languages and is the default for
	// unknown codes.
	SVO Family = "SVO"
	// VSO covers verb-subject-object languages (Arabic, Hebrew).
	VSO Family = "VSO"
)

// Strategy selects how much audio to buffer before transcription.
type Strategy string

const (
	// StrategyChunk buffers a fixed short chunk; used when speaker and
	// listener share a word-order family.
	StrategyChunk Strategy = "CHUNK_BASED"
	// StrategySentence buffers until a sentence boundary; used across
	// word-order families.
	StrategySentence Strategy = "SENTENCE_BASED"
)

const (
	// ChunkDurationMs is the buffer target for [StrategyChunk].
	ChunkDurationMs = 1500
	// SentenceMaxMs is the buffer ceiling for [StrategySentence].
	SentenceMaxMs = 2500
)

// families maps ISO 639-1 codes to their word-order family. Codes not listed
// default to SVO.
var families = map[string]Family{
	"ko": SOV, "ja": SOV, "tr": SOV, "hi": SOV, "bn": SOV,
	"en": SVO, "zh": SVO, "es": SVO, "fr": SVO, "de": SVO,
	"pt": SVO, "ru": SVO, "it": SVO,
	"ar": VSO, "he": VSO,
}

// FamilyOf returns the word-order family for an ISO 639-1 code. Unknown codes
// return SVO.
func FamilyOf(code string) Family {
	if f, ok := families[code]; ok {
		return f
	}
	return SVO
}

// StrategyFor returns the buffering strategy for a speaker/listener pair:
// chunk-based when both languages share a family, sentence-based otherwise.
func StrategyFor(source, target string) Strategy {
	if FamilyOf(source) == FamilyOf(target) {
		return StrategyChunk
	}
	return StrategySentence
}

// MaxBufferMs returns the buffer limit in milliseconds for a speaker/listener
// pair, per [StrategyFor].
func MaxBufferMs(source, target string) int {
	if StrategyFor(source, target) == StrategyChunk {
		return ChunkDurationMs
	}
	return SentenceMaxMs
}
