package tokenizer

import (
	"strings"
)

// CountWords counts whitespace separated words.
func CountWords(text string) int {
	return len(strings.Fields(text))
}

// ApproximateUsage estimates the token cost of a completion when the provider
// does not report one: one token per word of prompt and response.
func ApproximateUsage(prompt, response string) int64 {
	return int64(CountWords(prompt) + CountWords(response))
}
