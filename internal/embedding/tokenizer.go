package embedding

import (
	"strings"
	"unicode"

	"github.com/cespare/xxhash/v2"
)

// BERT special tokens and vocabulary bounds used by SimpleTokenizer.
const (
	clsToken  int64 = 101
	sepToken  int64 = 102
	firstWord int64 = 1000
	vocabSize int64 = 30522
)

// Tokenizer produces model inputs (input_ids, attention_mask, token_type_ids).
type Tokenizer interface {
	Tokenize(text string, maxTokens int) (inputIDs, attentionMask, tokenTypeIDs []int64)
}

// SimpleTokenizer maps each word to a stable id in the model's vocabulary
// range by hashing it. Sequences are [CLS] words... [SEP], zero padded.
type SimpleTokenizer struct{}

// Tokenize returns maxTokens-long slices. Words past maxTokens-2 are dropped.
func (t *SimpleTokenizer) Tokenize(text string, maxTokens int) (inputIDs, attentionMask, tokenTypeIDs []int64) {
	if maxTokens < 2 {
		maxTokens = 256
	}
	inputIDs = make([]int64, maxTokens)
	attentionMask = make([]int64, maxTokens)
	tokenTypeIDs = make([]int64, maxTokens)

	inputIDs[0], attentionMask[0] = clsToken, 1
	pos := 1
	for _, word := range SplitWords(text) {
		if pos == maxTokens-1 {
			break
		}
		inputIDs[pos], attentionMask[pos] = wordID(word), 1
		pos++
	}
	inputIDs[pos], attentionMask[pos] = sepToken, 1
	return inputIDs, attentionMask, tokenTypeIDs
}

// wordID hashes word into [firstWord, vocabSize).
func wordID(word string) int64 {
	return firstWord + int64(xxhash.Sum64String(word)%uint64(vocabSize-firstWord))
}

// SplitWords lower-cases text and splits it on anything that is not a letter or digit.
func SplitWords(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	if len(fields) == 0 {
		return nil
	}
	return fields
}
